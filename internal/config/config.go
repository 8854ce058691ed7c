package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Telegram TelegramConfig
	Archive  ArchiveConfig
	Resolver ResolverConfig
	Ai       AIConfig
	SMTP     SMTPConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JWTSecret          string
	MutationTopic      string
}

type TelegramConfig struct {
	BotToken    string
	AdminChatID int64
	PollTimeout int
	TempDir     string
}

type ArchiveConfig struct {
	QuestionsFile    string
	StatsFile        string
	QuestionsPerPage int
}

type ResolverConfig struct {
	// Fuzzy acceptance score in [0,100]. Deployments have run anywhere
	// between 75 and 90, so this is a tunable, not a constant.
	Threshold float64

	// Maximum cosine distance for the semantic fallback to accept a match.
	SemanticMaxDistance float64
}

type AIConfig struct {
	EmbeddingProvider string // "gemini", "ollama", "jina" or "" to disable the semantic path
	OllamaBaseURL     string
	OllamaModel       string
	GoogleGemini      string
	Jina              string
}

type SMTPConfig struct {
	Host         string
	Port         int
	Email        string
	Password     string
	SenderName   string
	CuratorEmail string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/bot.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			JWTSecret:          getEnv("JWT_SECRET", ""),
			MutationTopic:      getEnv("ARCHIVE_MUTATION_TOPIC_NAME", "ARCHIVE_MUTATED"),
		},
		Telegram: TelegramConfig{
			BotToken:    getEnv("TELEGRAM_BOT_TOKEN", ""),
			AdminChatID: getEnvAsInt64("ADMIN_CHAT_ID", 0),
			PollTimeout: getEnvAsInt("POLL_TIMEOUT_SECONDS", 50),
			TempDir:     getEnv("IMAGE_TEMP_DIR", os.TempDir()),
		},
		Archive: ArchiveConfig{
			QuestionsFile:    getEnv("QUESTIONS_FILE", "questions.json"),
			StatsFile:        getEnv("STATS_FILE", "stats.json"),
			QuestionsPerPage: getEnvAsInt("QUESTIONS_PER_PAGE", 5),
		},
		Resolver: ResolverConfig{
			Threshold:           getEnvAsFloat("RESOLVER_THRESHOLD", 85),
			SemanticMaxDistance: getEnvAsFloat("SEMANTIC_MAX_DISTANCE", 0.5),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", ""),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:       getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			GoogleGemini:      getEnv("GOOGLE_GEMINI_API_KEY", ""),
			Jina:              getEnv("JINA_API_KEY", ""),
		},
		SMTP: SMTPConfig{
			Host:         getEnv("SMTP_HOST", ""),
			Port:         getEnvAsInt("SMTP_PORT", 587),
			Email:        getEnv("SMTP_EMAIL", ""),
			Password:     getEnv("SMTP_PASSWORD", ""),
			SenderName:   getEnv("SMTP_SENDER_NAME", "TriviaBot"),
			CuratorEmail: getEnv("CURATOR_ALERT_EMAIL", ""),
		},
	}
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

func getEnvAsInt64(key string, fallback int64) int64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseInt(strValue, 10, 64); err == nil {
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
