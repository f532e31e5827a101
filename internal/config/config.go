package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by HINDSIGHT_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("HINDSIGHT_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// EmbedURL returns the embedding service URL. The primary var wins over the
// legacy one.
func EmbedURL() string {
	if u := os.Getenv("HINDSIGHT_TEI_EMBED_URL"); u != "" {
		return u
	}
	return os.Getenv("HINDSIGHT_API_EMBEDDINGS_TEI_URL")
}

// RerankURL returns the rerank service URL. The primary var wins over the
// legacy one.
func RerankURL() string {
	if u := os.Getenv("HINDSIGHT_TEI_RERANK_URL"); u != "" {
		return u
	}
	return os.Getenv("HINDSIGHT_API_RERANKER_TEI_URL")
}

func TEIAPIKey() string {
	return os.Getenv("HINDSIGHT_TEI_API_KEY")
}

// RerankBatchSize returns the rerank batch size. Defaults to 128.
func RerankBatchSize() int {
	n, err := strconv.Atoi(os.Getenv("HINDSIGHT_TEI_RERANK_BATCH_SIZE"))
	if err != nil || n <= 0 {
		return 128
	}
	return n
}

// RerankMaxConcurrent returns the rerank worker concurrency. Defaults to 8.
func RerankMaxConcurrent() int {
	n, err := strconv.Atoi(os.Getenv("HINDSIGHT_TEI_RERANK_MAX_CONCURRENT"))
	if err != nil || n <= 0 {
		return 8
	}
	return n
}

const (
	defaultRetainMaxCompletionTokens = 4096
	defaultRetainChunkSize           = 2048
)

func RetainMaxCompletionTokens() int {
	n, err := strconv.Atoi(os.Getenv("HINDSIGHT_API_RETAIN_MAX_COMPLETION_TOKENS"))
	if err != nil || n <= 0 {
		return defaultRetainMaxCompletionTokens
	}
	return n
}

func RetainChunkSize() int {
	n, err := strconv.Atoi(os.Getenv("HINDSIGHT_API_RETAIN_CHUNK_SIZE"))
	if err != nil || n <= 0 {
		return defaultRetainChunkSize
	}
	return n
}

// ValidateRetainTokens enforces the relationship between the retain
// completion ceiling and the chunk size. Violations fail fast with both
// parameter names and the remediation.
func ValidateRetainTokens(maxCompletionTokens, chunkSize int) error {
	if maxCompletionTokens <= chunkSize {
		return fmt.Errorf(
			"HINDSIGHT_API_RETAIN_MAX_COMPLETION_TOKENS (%d) must be greater than HINDSIGHT_API_RETAIN_CHUNK_SIZE (%d): raise the completion ceiling or lower the chunk size",
			maxCompletionTokens, chunkSize,
		)
	}
	return nil
}

// LLMProvider returns the configured LLM provider.
// Defaults to "openai" if not set.
// Valid values: openai, anthropic, mock
func LLMProvider() string {
	p := os.Getenv("LLM_PROVIDER")
	if p == "" {
		return "openai"
	}
	return p
}

func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

func AnthropicAPIKey() string {
	return os.Getenv("ANTHROPIC_API_KEY")
}

// LLMAPIKey returns the API key for the configured LLM provider.
func LLMAPIKey() string {
	switch LLMProvider() {
	case "anthropic":
		return AnthropicAPIKey()
	case "mock":
		return ""
	default:
		return OpenAIAPIKey()
	}
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}
