package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	APIPort  string
	LogLevel string
	APIKey   string

	APIMaxConnections   int
	APIRateLimitRPS     float64
	APIRateLimitBurst   int
	APIMaxInFlight      int
	APIBackpressureWait time.Duration

	IndexDir          string
	IndexStrictVerify bool
	IndexBackend      string

	QdrantURL        string
	QdrantCollection string

	IndexS3Endpoint  string
	IndexS3Bucket    string
	IndexS3Prefix    string
	IndexS3AccessKey string
	IndexS3SecretKey string
	IndexS3UseSSL    bool

	EmbedProvider  string
	EmbedModel     string
	EmbedDimension int
	EmbedBatchSize int
	EmbedWorkers   int

	OllamaURL      string
	OllamaGenModel string

	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIGenModel   string
	OpenAIEmbedModel string

	SynthProvider  string
	GenMaxTokens   int
	GenTemperature float64
	GenTopK        int
	GenTopP        float64

	RAGTopK            int
	RAGOverfetchFactor int

	ChunkSize    int
	ChunkOverlap int
	MinTextChars int

	SampleSize int
	SampleSeed int64

	PostgresDSN string

	NATSURL     string
	NATSSubject string

	ResilienceRetryMaxAttempts    int
	ResilienceRetryInitialBackoff time.Duration
	ResilienceRetryMaxBackoff     time.Duration
	ResilienceBreakerEnabled      bool
	ResilienceBreakerMinRequests  int
	ResilienceBreakerFailureRatio float64
	ResilienceBreakerOpenTimeout  time.Duration

	WorkerMetricsPort string
}

func Load() Config {
	return Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),
		APIKey:   mustEnv("API_KEY", ""),

		APIMaxConnections:   mustEnvInt("API_MAX_CONNECTIONS", 256),
		APIRateLimitRPS:     mustEnvFloat("API_RATE_LIMIT_RPS", 20),
		APIRateLimitBurst:   mustEnvInt("API_RATE_LIMIT_BURST", 40),
		APIMaxInFlight:      mustEnvInt("API_MAX_IN_FLIGHT", 32),
		APIBackpressureWait: mustEnvDuration("API_BACKPRESSURE_WAIT", 250*time.Millisecond),

		IndexDir:          mustEnv("INDEX_DIR", "./vector_store"),
		IndexStrictVerify: mustEnvBool("INDEX_STRICT_VERIFY", true),
		IndexBackend:      mustEnv("INDEX_BACKEND", "flat"),

		QdrantURL:        mustEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection: mustEnv("QDRANT_COLLECTION", "complaints"),

		IndexS3Endpoint:  mustEnv("INDEX_S3_ENDPOINT", ""),
		IndexS3Bucket:    mustEnv("INDEX_S3_BUCKET", "complaint-index"),
		IndexS3Prefix:    mustEnv("INDEX_S3_PREFIX", "vector_store"),
		IndexS3AccessKey: mustEnv("INDEX_S3_ACCESS_KEY", ""),
		IndexS3SecretKey: mustEnv("INDEX_S3_SECRET_KEY", ""),
		IndexS3UseSSL:    mustEnvBool("INDEX_S3_USE_SSL", false),

		EmbedProvider:  mustEnv("EMBED_PROVIDER", "ollama"),
		EmbedModel:     mustEnv("EMBED_MODEL", "all-minilm"),
		EmbedDimension: mustEnvInt("EMBED_DIMENSION", 384),
		EmbedBatchSize: mustEnvInt("EMBED_BATCH_SIZE", 256),
		EmbedWorkers:   mustEnvInt("EMBED_WORKERS", 4),

		OllamaURL:      mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaGenModel: mustEnv("OLLAMA_GEN_MODEL", "qwen2.5:0.5b-instruct"),

		OpenAIAPIKey:     mustEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:    mustEnv("OPENAI_BASE_URL", ""),
		OpenAIGenModel:   mustEnv("OPENAI_GEN_MODEL", "gpt-4o-mini"),
		OpenAIEmbedModel: mustEnv("OPENAI_EMBED_MODEL", "text-embedding-3-small"),

		SynthProvider:  mustEnv("SYNTH_PROVIDER", "template"),
		GenMaxTokens:   mustEnvInt("GEN_MAX_TOKENS", 256),
		GenTemperature: mustEnvFloat("GEN_TEMPERATURE", 0.7),
		GenTopK:        mustEnvInt("GEN_TOP_K", 50),
		GenTopP:        mustEnvFloat("GEN_TOP_P", 0.95),

		RAGTopK:            mustEnvInt("RAG_TOP_K", 5),
		RAGOverfetchFactor: mustEnvInt("RAG_OVERFETCH_FACTOR", 5),

		ChunkSize:    mustEnvInt("CHUNK_SIZE", 500),
		ChunkOverlap: mustEnvInt("CHUNK_OVERLAP", 50),
		MinTextChars: mustEnvInt("MIN_TEXT_CHARS", 50),

		SampleSize: mustEnvInt("SAMPLE_SIZE", 150000),
		SampleSeed: int64(mustEnvInt("SAMPLE_SEED", 42)),

		PostgresDSN: mustEnv("POSTGRES_DSN", ""),

		NATSURL:     mustEnv("NATS_URL", ""),
		NATSSubject: mustEnv("NATS_SUBJECT", "complaints.queries"),

		ResilienceRetryMaxAttempts:    mustEnvInt("RESILIENCE_RETRY_MAX_ATTEMPTS", 3),
		ResilienceRetryInitialBackoff: mustEnvDuration("RESILIENCE_RETRY_INITIAL_BACKOFF", 100*time.Millisecond),
		ResilienceRetryMaxBackoff:     mustEnvDuration("RESILIENCE_RETRY_MAX_BACKOFF", 400*time.Millisecond),
		ResilienceBreakerEnabled:      mustEnvBool("RESILIENCE_BREAKER_ENABLED", true),
		ResilienceBreakerMinRequests:  mustEnvInt("RESILIENCE_BREAKER_MIN_REQUESTS", 10),
		ResilienceBreakerFailureRatio: mustEnvFloat("RESILIENCE_BREAKER_FAILURE_RATIO", 0.5),
		ResilienceBreakerOpenTimeout:  mustEnvDuration("RESILIENCE_BREAKER_OPEN_TIMEOUT", 30*time.Second),

		WorkerMetricsPort: mustEnv("WORKER_METRICS_PORT", "9090"),
	}
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return parsed
}
