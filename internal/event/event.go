package event

import "time"

// Type identifies the kind of event.
type Type string

const (
	// Build session lifecycle.
	TypeSessionStatus Type = "session_status"
	TypeTaskStatus    Type = "task_status"
	TypeFileChunk     Type = "file_chunk"
	TypeFileCommitted Type = "file_committed"
	TypeFileStale     Type = "file_stale"

	// Command execution.
	TypeJobStatus Type = "job_status"
	TypeJobOutput Type = "job_output"
)

// Event is a single notification emitted by the core. Consumers (editor,
// visualizer, transcript renderer) subscribe to the bus; the core never
// depends on their shape.
type Event struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	SessionID string `json:"session_id,omitempty"`
	TaskID    string `json:"task_id,omitempty"`
	JobID     string `json:"job_id,omitempty"`
	Path      string `json:"path,omitempty"`

	// Status carries the new status for status-change events.
	Status string `json:"status,omitempty"`

	// Text carries streamed content: a token chunk, an output line,
	// or a unified diff for commit events.
	Text string `json:"text,omitempty"`

	// Version is the file version for commit events.
	Version int `json:"version,omitempty"`

	// Error describes the failure for failed transitions.
	Error string `json:"error,omitempty"`
}
