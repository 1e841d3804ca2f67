package client

import "context"

// FileSpec describes one file a coder agent is asked to produce.
type FileSpec struct {
	Path     string   // Project-relative path of the target file
	Purpose  string   // What the file is for, from the manifest
	Requires []string // Paths this file may import from
}

// PlanContext carries the inputs for a planning call.
type PlanContext struct {
	// ExistingFiles maps path to content for iterative builds. Empty for
	// new projects.
	ExistingFiles map[string]string

	// RAGContext is retrieved knowledge relevant to the request.
	RAGContext string
}

// GenContext carries the inputs for a generation call.
type GenContext struct {
	// Request is the original user request driving the build.
	Request string

	// Interfaces summarizes the public surface of the other planned files
	// so the coder can reference them consistently.
	Interfaces string

	// Existing is the current content of the target file when modifying,
	// empty when creating.
	Existing string
}

// Client is the abstract agent capability. The architect and coder roles are
// two uses of the same interface, distinguished only by the call they make.
type Client interface {
	// Plan asks the architect model for a build manifest. The returned text
	// is raw model output; the planner extracts and validates the JSON.
	Plan(ctx context.Context, request string, pc PlanContext) (string, error)

	// Generate asks the coder model for the content of one file and returns
	// a finite, non-restartable stream of text tokens.
	Generate(ctx context.Context, spec FileSpec, gc GenContext) (*StreamingResponse, error)

	// Review asks the architect model to inspect a set of generated files
	// and respond with surgical fixes. The returned text is raw model
	// output; the caller extracts and validates the JSON.
	Review(ctx context.Context, request string, files map[string]string) (string, error)

	// Embed returns an embedding vector for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Close releases the underlying connection.
	Close() error
}

// StreamingResponse represents a streaming generation response.
type StreamingResponse struct {
	// Chunks receives response chunks until the final chunk (Done) or an
	// error chunk, after which the channel is closed.
	Chunks <-chan Chunk
}

// Chunk is a single piece of a streaming response.
type Chunk struct {
	// Text contains the text content of this chunk.
	Text string

	// Err contains any error that occurred mid-stream.
	Err error

	// Done indicates this is the final chunk.
	Done bool
}

// Collect drains a streaming response into a single string.
func (sr *StreamingResponse) Collect() (string, error) {
	var out []byte
	for chunk := range sr.Chunks {
		if chunk.Err != nil {
			return "", chunk.Err
		}
		out = append(out, chunk.Text...)
	}
	return string(out), nil
}
