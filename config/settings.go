package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Settings holds every environment-driven knob of the backend.
type Settings struct {
	DatabaseURL string

	OpenAIAPIKey    string
	AnthropicAPIKey string
	GeminiAPIKey    string
	JinaAPIKey      string

	// LLMProvider selects the chat backend: openai, anthropic, gemini.
	LLMProvider string
	ChatModel   string
	EvalModel   string

	EmbeddingModel      string
	EmbeddingDimensions int

	ChunkSize    int
	ChunkOverlap int

	// RedisAddr enables the query-embedding cache when non-empty.
	RedisAddr string

	HTTPAddr string
	Debug    bool
	LogLevel string
}

// Load reads settings from the environment, consulting a .env file first
// when one exists in the working directory.
func Load() (*Settings, error) {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	s := &Settings{
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey:     os.Getenv("ANTHROPIC_API_KEY"),
		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),
		JinaAPIKey:          os.Getenv("JINA_API_KEY"),
		LLMProvider:         envDefault("LLM_PROVIDER", "openai"),
		ChatModel:           envDefault("CHAT_MODEL", "gpt-4o-mini"),
		EvalModel:           envDefault("EVAL_MODEL", "gpt-4o-mini"),
		EmbeddingModel:      envDefault("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDimensions: envInt("EMBEDDING_DIMENSIONS", 1536),
		ChunkSize:           envInt("CHUNK_SIZE", 1000),
		ChunkOverlap:        envInt("CHUNK_OVERLAP", 200),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		HTTPAddr:            envDefault("HTTP_ADDR", ":8000"),
		Debug:               envBool("DEBUG"),
		LogLevel:            envDefault("LOG_LEVEL", "info"),
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks internal consistency of the settings.
func (s *Settings) Validate() error {
	v := NewValidator()
	v.RequireNonEmpty("DATABASE_URL", s.DatabaseURL)
	v.ValidateOneOf("LLM_PROVIDER", s.LLMProvider, "openai", "anthropic", "gemini")
	v.RequirePositive("EMBEDDING_DIMENSIONS", s.EmbeddingDimensions)
	v.RequirePositive("CHUNK_SIZE", s.ChunkSize)
	v.RequireNonNegative("CHUNK_OVERLAP", s.ChunkOverlap)
	if s.ChunkOverlap >= s.ChunkSize {
		v.ValidateRange("CHUNK_OVERLAP", s.ChunkOverlap, 0, s.ChunkSize-1)
	}
	return v.Error()
}

func envDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes"
}
