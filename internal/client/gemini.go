package client

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"forge/internal/logging"
)

// GeminiClient wraps the Google Gemini API.
type GeminiClient struct {
	client         *genai.Client
	plannerModel   string
	coderModel     string
	embeddingModel string
}

// NewGeminiClient creates a Gemini-backed capability client.
func NewGeminiClient(ctx context.Context, apiKey, plannerModel, coderModel, embeddingModel string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client:         client,
		plannerModel:   plannerModel,
		coderModel:     coderModel,
		embeddingModel: embeddingModel,
	}, nil
}

// Plan sends the architect prompt and collects the full response.
func (c *GeminiClient) Plan(ctx context.Context, request string, pc PlanContext) (string, error) {
	prompt := BuildPlanPrompt(request, pc)

	sr := c.stream(ctx, c.plannerModel, prompt)
	text, err := sr.Collect()
	if err != nil {
		return "", NewAgentCallError("plan", err)
	}
	return text, nil
}

// Generate streams the content of one file from the coder model.
func (c *GeminiClient) Generate(ctx context.Context, spec FileSpec, gc GenContext) (*StreamingResponse, error) {
	prompt := BuildGeneratePrompt(spec, gc)
	return c.stream(ctx, c.coderModel, prompt), nil
}

// Review sends the reviewer prompt over the generated files and collects the
// full response.
func (c *GeminiClient) Review(ctx context.Context, request string, files map[string]string) (string, error) {
	prompt := BuildReviewPrompt(request, files)

	sr := c.stream(ctx, c.plannerModel, prompt)
	text, err := sr.Collect()
	if err != nil {
		return "", NewAgentCallError("review", err)
	}
	return text, nil
}

// Embed returns an embedding for the given text.
func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	contents := []*genai.Content{
		{Parts: []*genai.Part{{Text: text}}},
	}

	resp, err := c.client.Models.EmbedContent(ctx, c.embeddingModel, contents, nil)
	if err != nil {
		return nil, NewAgentCallError("embed", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, NewAgentCallError("embed", fmt.Errorf("no embedding returned"))
	}
	return resp.Embeddings[0].Values, nil
}

// Close implements Client. The genai client holds no persistent connection.
func (c *GeminiClient) Close() error {
	return nil
}

// stream starts a streaming generation call and adapts the response iterator
// to the chunk channel contract.
func (c *GeminiClient) stream(ctx context.Context, model, prompt string) *StreamingResponse {
	chunks := make(chan Chunk, 64)

	contents := []*genai.Content{
		{Role: genai.RoleUser, Parts: []*genai.Part{genai.NewPartFromText(prompt)}},
	}

	go func() {
		defer close(chunks)

		iter := c.client.Models.GenerateContentStream(ctx, model, contents, nil)
		for resp, err := range iter {
			if err != nil {
				logging.Debug("gemini stream ended with error", "model", model, "error", err)
				select {
				case chunks <- Chunk{Err: err}:
				case <-ctx.Done():
				}
				return
			}

			text := resp.Text()
			if text == "" {
				continue
			}
			select {
			case chunks <- Chunk{Text: text}:
			case <-ctx.Done():
				return
			}
		}

		select {
		case chunks <- Chunk{Done: true}:
		case <-ctx.Done():
		}
	}()

	return &StreamingResponse{Chunks: chunks}
}
