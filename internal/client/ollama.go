package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"

	"forge/internal/logging"
)

// OllamaClient talks to a local or remote Ollama server.
type OllamaClient struct {
	client         *api.Client
	plannerModel   string
	coderModel     string
	embeddingModel string
}

// NewOllamaClient creates an Ollama-backed capability client.
func NewOllamaClient(baseURL, plannerModel, coderModel, embeddingModel string) (*OllamaClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base URL %q: %w", baseURL, err)
	}

	httpClient := &http.Client{Timeout: 10 * time.Minute}

	return &OllamaClient{
		client:         api.NewClient(u, httpClient),
		plannerModel:   plannerModel,
		coderModel:     coderModel,
		embeddingModel: embeddingModel,
	}, nil
}

// Plan sends the architect prompt and collects the full response.
func (c *OllamaClient) Plan(ctx context.Context, request string, pc PlanContext) (string, error) {
	prompt := BuildPlanPrompt(request, pc)

	sr, err := c.stream(ctx, c.plannerModel, prompt)
	if err != nil {
		return "", NewAgentCallError("plan", err)
	}

	text, err := sr.Collect()
	if err != nil {
		return "", NewAgentCallError("plan", err)
	}
	return text, nil
}

// Generate streams the content of one file from the coder model.
func (c *OllamaClient) Generate(ctx context.Context, spec FileSpec, gc GenContext) (*StreamingResponse, error) {
	prompt := BuildGeneratePrompt(spec, gc)

	sr, err := c.stream(ctx, c.coderModel, prompt)
	if err != nil {
		return nil, NewAgentCallError("generate", err)
	}
	return sr, nil
}

// Review sends the reviewer prompt over the generated files and collects the
// full response.
func (c *OllamaClient) Review(ctx context.Context, request string, files map[string]string) (string, error) {
	prompt := BuildReviewPrompt(request, files)

	sr, err := c.stream(ctx, c.plannerModel, prompt)
	if err != nil {
		return "", NewAgentCallError("review", err)
	}

	text, err := sr.Collect()
	if err != nil {
		return "", NewAgentCallError("review", err)
	}
	return text, nil
}

// Embed returns an embedding for the given text.
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.Embed(ctx, &api.EmbedRequest{
		Model: c.embeddingModel,
		Input: text,
	})
	if err != nil {
		return nil, NewAgentCallError("embed", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, NewAgentCallError("embed", fmt.Errorf("no embedding returned"))
	}
	return resp.Embeddings[0], nil
}

// Close implements Client. The Ollama client holds no persistent connection.
func (c *OllamaClient) Close() error {
	return nil
}

// stream starts a generation request and adapts Ollama callbacks to the
// chunk channel contract.
func (c *OllamaClient) stream(ctx context.Context, model, prompt string) (*StreamingResponse, error) {
	chunks := make(chan Chunk, 64)
	stream := true

	req := &api.GenerateRequest{
		Model:  model,
		Prompt: prompt,
		Stream: &stream,
	}

	go func() {
		defer close(chunks)

		err := c.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
			if resp.Response != "" {
				select {
				case chunks <- Chunk{Text: resp.Response}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if resp.Done {
				select {
				case chunks <- Chunk{Done: true}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
		if err != nil {
			logging.Debug("ollama stream ended with error", "model", model, "error", err)
			select {
			case chunks <- Chunk{Err: err}:
			case <-ctx.Done():
			}
		}
	}()

	return &StreamingResponse{Chunks: chunks}, nil
}
