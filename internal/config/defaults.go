package config

import "time"

// Default configuration values.
const (
	// Build settings
	DefaultConcurrency       = 4
	DefaultGenerationTimeout = 2 * time.Minute

	// Retry settings
	DefaultMaxRetries = 3
	DefaultRetryDelay = 1 * time.Second
	DefaultMaxDelay   = 30 * time.Second

	// Executor settings
	DefaultJobTimeout  = 5 * time.Minute
	DefaultGracePeriod = 5 * time.Second

	// RAG settings
	DefaultChunkSize = 50
	DefaultOverlap   = 10
	DefaultTopK      = 5
	DefaultCacheTTL  = 7 * 24 * time.Hour

	// Model defaults
	DefaultOllamaBaseURL  = "http://localhost:11434"
	DefaultPlannerModel   = "qwen2.5-coder:14b"
	DefaultCoderModel     = "qwen2.5-coder:14b"
	DefaultEmbeddingModel = "nomic-embed-text"
)

// DefaultConfig returns a configuration populated with defaults.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Provider:       "ollama",
			OllamaBaseURL:  DefaultOllamaBaseURL,
			PlannerModel:   DefaultPlannerModel,
			CoderModel:     DefaultCoderModel,
			EmbeddingModel: DefaultEmbeddingModel,
			Retry: RetryConfig{
				MaxRetries: DefaultMaxRetries,
				RetryDelay: DefaultRetryDelay,
				MaxDelay:   DefaultMaxDelay,
			},
		},
		Build: BuildConfig{
			Concurrency:       DefaultConcurrency,
			GenerationTimeout: DefaultGenerationTimeout,
			Review:            true,
		},
		Executor: ExecutorConfig{
			Timeout:     DefaultJobTimeout,
			GracePeriod: DefaultGracePeriod,
		},
		RAG: RAGConfig{
			ChunkSize: DefaultChunkSize,
			Overlap:   DefaultOverlap,
			TopK:      DefaultTopK,
			CacheTTL:  DefaultCacheTTL,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
