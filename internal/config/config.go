package config

import "time"

// Config represents the main application configuration.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Build    BuildConfig    `yaml:"build"`
	Executor ExecutorConfig `yaml:"executor"`
	RAG      RAGConfig      `yaml:"rag"`
	Store    StoreConfig    `yaml:"store"`
	Logging  LoggingConfig  `yaml:"logging"`

	// Runtime version information
	Version string `yaml:"-"`
}

// APIConfig holds model provider settings. Resolved once at startup and
// injected into the client factory; core logic never reads it directly.
type APIConfig struct {
	// Active provider: gemini or ollama (default: ollama)
	Provider string `yaml:"provider"`

	// GeminiKey is the API key for the Gemini provider.
	GeminiKey string `yaml:"gemini_key,omitempty"`

	// OllamaBaseURL is the Ollama server URL (default: http://localhost:11434)
	OllamaBaseURL string `yaml:"ollama_base_url,omitempty"`

	// Model names per agent role.
	PlannerModel   string `yaml:"planner_model"`
	CoderModel     string `yaml:"coder_model"`
	EmbeddingModel string `yaml:"embedding_model"`

	// Retry configuration for generation calls.
	Retry RetryConfig `yaml:"retry"`
}

// RetryConfig holds retry settings for generation calls.
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries"` // Maximum attempts per task (default: 3)
	RetryDelay time.Duration `yaml:"retry_delay"` // Initial backoff delay (default: 1s)
	MaxDelay   time.Duration `yaml:"max_delay"`   // Backoff cap (default: 30s)
}

// BuildConfig holds build session settings.
type BuildConfig struct {
	// Concurrency is the maximum number of generation tasks in flight.
	Concurrency int `yaml:"concurrency"`

	// GenerationTimeout bounds each generation call.
	GenerationTimeout time.Duration `yaml:"generation_timeout"`

	// Review runs an architect review pass over the generated files after
	// all tasks settle, applying surgical fixes before the session closes.
	Review bool `yaml:"review"`
}

// ExecutorConfig holds command execution settings.
type ExecutorConfig struct {
	// Timeout is the wall-clock limit for a single job.
	Timeout time.Duration `yaml:"timeout"`

	// GracePeriod is the delay between SIGTERM and SIGKILL on cancellation.
	GracePeriod time.Duration `yaml:"grace_period"`
}

// RAGConfig holds knowledge index settings.
type RAGConfig struct {
	ChunkSize int           `yaml:"chunk_size"` // Lines per sliding-window chunk
	Overlap   int           `yaml:"overlap"`    // Overlapping lines between windows
	TopK      int           `yaml:"top_k"`      // Default result count for queries
	CacheTTL  time.Duration `yaml:"cache_ttl"`  // Embedding cache entry lifetime
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	// Path to the SQLite database. Empty means <config dir>/forge.db.
	Path string `yaml:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  bool   `yaml:"file"` // Log to <config dir>/forge.log instead of stderr
}
