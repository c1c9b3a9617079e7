package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	ServerPort      string
	ServerHost      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxRequestBody  int64
	RateLimitRPS    int
	RateLimitBurst  int

	// Artifacts
	ArtifactDir    string
	ModelFile      string
	EncoderFile    string
	ScalerFile     string
	FormConfigPath string

	// Database
	HistoryEnabled   bool
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	CacheEnabled       bool
	RedisHost          string
	RedisPort          string
	RedisPassword      string
	RedisDB            int
	PredictionCacheTTL time.Duration
	CachePrefix        string

	// Kafka
	EventsEnabled   bool
	KafkaBrokers    []string
	KafkaGroupID    string
	PredictionTopic string
}

func Load() *Config {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	return &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		ServerHost:      getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		MaxRequestBody:  int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 1024*1024)),
		RateLimitRPS:    getIntEnv("RATE_LIMIT_RPS", 20),
		RateLimitBurst:  getIntEnv("RATE_LIMIT_BURST", 40),

		ArtifactDir:    getEnv("ARTIFACT_DIR", "artifacts"),
		ModelFile:      getEnv("MODEL_FILE", "model.json"),
		EncoderFile:    getEnv("ENCODER_FILE", "encoder.json"),
		ScalerFile:     getEnv("SCALER_FILE", "scaler.json"),
		FormConfigPath: getEnv("FORM_CONFIG_PATH", ""),

		HistoryEnabled:   getBoolEnv("HISTORY_ENABLED", false),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "obesity"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "obesity123"),
		PostgresDB:       getEnv("POSTGRES_DB", "obesity"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		CacheEnabled:       getBoolEnv("CACHE_ENABLED", false),
		RedisHost:          getEnv("REDIS_HOST", "localhost"),
		RedisPort:          getEnv("REDIS_PORT", "6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getIntEnv("REDIS_DB", 0),
		PredictionCacheTTL: getDuration("PREDICTION_CACHE_TTL", 10*time.Minute),
		CachePrefix:        getEnv("PREDICTION_CACHE_PREFIX", "prediction"),

		EventsEnabled:   getBoolEnv("EVENTS_ENABLED", false),
		KafkaBrokers:    getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:    getEnv("KAFKA_GROUP_ID", "obesity-audit"),
		PredictionTopic: getEnv("PREDICTION_TOPIC", "predictions"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
