package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Keys      APIKeys
	Ai        AIConfig
	Engine    EngineConfig
	Session   SessionConfig
	Telemetry TelemetryConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	LogLevel           string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection   string
	LogLevel     string
	MaxOpenConns int
	MaxIdleConns int
}

type APIKeys struct {
	GoogleGemini string
	IndexTopic   string // catalog indexing topic
}

type AIConfig struct {
	EmbeddingProvider     string // "gemini" or "ollama"
	EmbeddingCacheTTL     time.Duration
	GeminiEmbeddingModel  string
	OllamaBaseURL         string
	OllamaModel           string
	LLMProvider           string // "gemini" or "ollama"
	LLMModel              string
	LLMTimeout            time.Duration
	LLMRetryBackoff       time.Duration
	UseLLMClassifier      bool
	GenerationTemperature float64
}

type EngineConfig struct {
	SQLTimeout        time.Duration
	SemanticTimeout   time.Duration
	ResultCap         int
	TopK              int
	MinSimilarity     float64
	HistoryCharBudget int
	VagueThreshold    int
	SemanticFallback  bool
	ChunkSize         int
	ChunkOverlap      int
	ComparisonTTL     time.Duration
}

type SessionConfig struct {
	TTL      time.Duration
	MaxTurns int
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "5000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/chatbot.log"),
			LogLevel:           getEnv("LOG_LEVEL", "info"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
		},
		Database: DatabaseConfig{
			Connection:   getEnv("DB_CONNECTION_STRING", ""),
			LogLevel:     getEnv("DB_LOG_LEVEL", "warn"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		},
		Keys: APIKeys{
			GoogleGemini: getEnv("GOOGLE_GEMINI_API_KEY", ""),
			IndexTopic:   getEnv("CATALOG_INDEX_TOPIC_NAME", "CATALOG_INDEX"),
		},
		Ai: AIConfig{
			EmbeddingProvider:     getEnv("EMBEDDING_PROVIDER", "gemini"),
			EmbeddingCacheTTL:     getEnvAsDuration("EMBEDDING_CACHE_TTL", 24*time.Hour),
			GeminiEmbeddingModel:  getEnv("GEMINI_EMBEDDING_MODEL", "text-embedding-004"),
			OllamaBaseURL:         getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:           getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			LLMProvider:           getEnv("LLM_PROVIDER", "gemini"),
			LLMModel:              getEnv("LLM_MODEL", "gemini-2.0-flash"),
			LLMTimeout:            getEnvAsDuration("LLM_TIMEOUT", 20*time.Second),
			LLMRetryBackoff:       getEnvAsDuration("LLM_RETRY_BACKOFF", 500*time.Millisecond),
			UseLLMClassifier:      getEnvAsBool("USE_LLM_CLASSIFIER", false),
			GenerationTemperature: getEnvAsFloat("GENERATION_TEMPERATURE", 0.2),
		},
		Engine: EngineConfig{
			SQLTimeout:        getEnvAsDuration("SQL_TIMEOUT", 3*time.Second),
			SemanticTimeout:   getEnvAsDuration("SEMANTIC_TIMEOUT", 5*time.Second),
			ResultCap:         getEnvAsInt("RESULT_CAP", 20),
			TopK:              getEnvAsInt("SEMANTIC_TOP_K", 5),
			MinSimilarity:     getEnvAsFloat("MIN_SIMILARITY", 0.35),
			HistoryCharBudget: getEnvAsInt("HISTORY_CHAR_BUDGET", 4000),
			VagueThreshold:    getEnvAsInt("VAGUE_THRESHOLD", 1),
			SemanticFallback:  getEnvAsBool("SEMANTIC_FALLBACK", true),
			ChunkSize:         getEnvAsInt("CHUNK_SIZE", 1500),
			ChunkOverlap:      getEnvAsInt("CHUNK_OVERLAP", 200),
			ComparisonTTL:     getEnvAsDuration("COMPARISON_CACHE_TTL", time.Hour),
		},
		Session: SessionConfig{
			TTL:      getEnvAsDuration("SESSION_TTL", 30*time.Minute),
			MaxTurns: getEnvAsInt("MAX_TURNS", 10),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getEnvAsBool("OTEL_ENABLED", false),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "finverse-chatbot"),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("3s") or plain seconds ("3")
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	if seconds, err := strconv.ParseFloat(strValue, 64); err == nil {
		return time.Duration(seconds * float64(time.Second))
	}
	return fallback
}
