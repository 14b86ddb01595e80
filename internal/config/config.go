package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	ClinicName  string
	IntakeEmail string

	OpenAIAPIKey string
	OpenAIModel  string
	ModelTimeout time.Duration

	CallBudget    int
	HistoryBudget int
	SessionTTL    time.Duration

	UseRedisSessions bool
	RedisAddr        string
	RedisPassword    string
	RedisTLS         bool

	DatabaseURL string

	CORSAllowedOrigins string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		ClinicName:  getEnv("CLINIC_NAME", "Medical Clinic"),
		IntakeEmail: getEnv("CLINIC_INTAKE_EMAIL", "appointments@medicalclinic.com"),

		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		ModelTimeout: getEnvAsDuration("MODEL_TIMEOUT", 10*time.Second),

		CallBudget:    getEnvAsInt("CALL_BUDGET", 15),
		HistoryBudget: getEnvAsInt("HISTORY_BUDGET", 2000),
		SessionTTL:    getEnvAsDuration("SESSION_TTL", 24*time.Hour),

		UseRedisSessions: getEnvAsBool("USE_REDIS_SESSIONS", false),
		RedisAddr:        getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisTLS:         getEnvAsBool("REDIS_TLS", false),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
