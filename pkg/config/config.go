// Package config loads and validates all process configuration from the
// environment. Do not hardcode tunables elsewhere: if a value needs
// configuring, it belongs here.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Provider names accepted for LLM_PROVIDER.
const (
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
)

// Config is the full process configuration.
type Config struct {
	// Critical infrastructure.
	DatabaseURL string `env:"DATABASE_URL,required"`
	// QueueURL is an alternate DSN for the job queue pool. Empty means the
	// queue shares DATABASE_URL.
	QueueURL string `env:"QUEUE_URL"`

	HTTPPort    string   `env:"HTTP_PORT" envDefault:"8080"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`

	// AI providers.
	LLMProvider      string `env:"LLM_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	AnthropicAPIKey  string `env:"ANTHROPIC_API_KEY"`
	GeminiAPIKey     string `env:"GEMINI_API_KEY"`
	OpenRouterAPIKey string `env:"OPENROUTER_API_KEY"`
	ChatModel        string `env:"CHAT_MODEL" envDefault:"gpt-4o-mini"`
	EmbeddingModel   string `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	EmbeddingDim     int    `env:"EMBEDDING_DIM" envDefault:"1536"`

	// API protection.
	RateLimitPerMin int `env:"RATE_LIMIT_REQUESTS_PER_MIN" envDefault:"60"`

	Queue  QueueConfig
	Recall RecallConfig
	Facts  FactConfig
}

// QueueConfig controls how jobs are polled, claimed, and processed.
type QueueConfig struct {
	// WorkerCount is the number of worker goroutines in this process.
	WorkerCount int `env:"QUEUE_WORKER_COUNT" envDefault:"4"`

	// MaxConcurrentJobs bounds jobs running at once across the pool.
	MaxConcurrentJobs int `env:"QUEUE_MAX_CONCURRENT_JOBS" envDefault:"10"`

	// PollInterval is the base interval for checking pending jobs; each poll
	// is skewed by a random offset within ±PollIntervalJitter.
	PollInterval       time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"1s"`
	PollIntervalJitter time.Duration `env:"QUEUE_POLL_JITTER" envDefault:"500ms"`

	// JobTimeout caps a single job run; ConsolidateTimeout overrides it for
	// consolidation jobs, which call the LLM twice.
	JobTimeout         time.Duration `env:"QUEUE_JOB_TIMEOUT" envDefault:"120s"`
	ConsolidateTimeout time.Duration `env:"QUEUE_CONSOLIDATE_TIMEOUT" envDefault:"180s"`

	// HeartbeatInterval and OrphanThreshold drive stuck-job recovery: a
	// running job whose heartbeat is older than the threshold is requeued.
	HeartbeatInterval       time.Duration `env:"QUEUE_HEARTBEAT_INTERVAL" envDefault:"15s"`
	OrphanScanInterval      time.Duration `env:"QUEUE_ORPHAN_SCAN_INTERVAL" envDefault:"1m"`
	OrphanThreshold         time.Duration `env:"QUEUE_ORPHAN_THRESHOLD" envDefault:"5m"`
	GracefulShutdownTimeout time.Duration `env:"QUEUE_SHUTDOWN_TIMEOUT" envDefault:"3m"`
}

// RecallConfig holds the recall engine thresholds.
type RecallConfig struct {
	// MaxLimit is the hard cap on the recall limit parameter.
	MaxLimit int `env:"RECALL_MAX_LIMIT" envDefault:"20"`
	// VectorDistanceMax is the maximum cosine distance for vector hits
	// (0 = identical, 2 = opposite).
	VectorDistanceMax float64 `env:"RECALL_VECTOR_DISTANCE_MAX" envDefault:"0.75"`
	// LexicalSimilarityMin is the minimum token-set ratio (0-100) for a
	// lexical hit to be returned.
	LexicalSimilarityMin float64 `env:"RECALL_LEXICAL_SIMILARITY_MIN" envDefault:"30"`
}

// FactConfig holds the fact lifecycle thresholds.
type FactConfig struct {
	// WindowSize is how many trailing messages extraction reads per run.
	WindowSize int `env:"EXTRACTION_WINDOW_SIZE" envDefault:"5"`
	// MinConfidence drops extracted candidates below this confidence.
	MinConfidence float64 `env:"EXTRACTION_MIN_CONFIDENCE" envDefault:"0.5"`
	// DupThreshold is the token-set ratio (0-100) at or above which a
	// candidate refreshes an existing fact instead of inserting.
	DupThreshold float64 `env:"FACT_DUP_THRESHOLD" envDefault:"75"`
	// SemanticThreshold is the cosine similarity at or above which
	// consolidation clusters two facts of the same category.
	SemanticThreshold float64 `env:"FACT_SEMANTIC_THRESHOLD" envDefault:"0.92"`
}

// Load parses configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints and provider key presence.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	switch c.LLMProvider {
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderOpenRouter:
	default:
		return fmt.Errorf("LLM_PROVIDER must be one of openai, anthropic, gemini, openrouter; got %q", c.LLMProvider)
	}
	if c.EmbeddingDim < 1 {
		return fmt.Errorf("EMBEDDING_DIM must be positive; got %d", c.EmbeddingDim)
	}
	if c.Queue.WorkerCount < 1 {
		return fmt.Errorf("QUEUE_WORKER_COUNT must be at least 1; got %d", c.Queue.WorkerCount)
	}
	if c.Queue.MaxConcurrentJobs < c.Queue.WorkerCount {
		return fmt.Errorf("QUEUE_MAX_CONCURRENT_JOBS (%d) cannot be below QUEUE_WORKER_COUNT (%d)",
			c.Queue.MaxConcurrentJobs, c.Queue.WorkerCount)
	}
	if c.Recall.MaxLimit < 1 {
		return fmt.Errorf("RECALL_MAX_LIMIT must be at least 1; got %d", c.Recall.MaxLimit)
	}
	if c.Facts.WindowSize < 1 {
		return fmt.Errorf("EXTRACTION_WINDOW_SIZE must be at least 1; got %d", c.Facts.WindowSize)
	}
	return nil
}

// QueueDSN returns the DSN the queue pool should use.
func (c *Config) QueueDSN() string {
	if c.QueueURL != "" {
		return c.QueueURL
	}
	return c.DatabaseURL
}

// ProviderAPIKey returns the API key configured for the selected provider.
func (c *Config) ProviderAPIKey() string {
	switch c.LLMProvider {
	case ProviderOpenAI:
		return c.OpenAIAPIKey
	case ProviderAnthropic:
		return c.AnthropicAPIKey
	case ProviderGemini:
		return c.GeminiAPIKey
	case ProviderOpenRouter:
		return c.OpenRouterAPIKey
	}
	return ""
}
