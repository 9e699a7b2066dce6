package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port              string
	DatabaseURL       string
	AnthropicAPIKey   string
	AnthropicTimeout  time.Duration
	OpenAIAPIKey      string
	PineconeAPIKey    string
	PineconeIndexName string
	CalendlyURL       string
}

// Load reads configuration from the environment, loading a local .env
// file first when one exists.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("[INFO] No .env file loaded, relying on process environment")
	}

	return &Config{
		Port:              getEnv("PORT", "8080"),
		DatabaseURL:       os.Getenv("DB_URL"),
		AnthropicAPIKey:   os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicTimeout:  time.Duration(getEnvInt("ANTHROPIC_TIMEOUT_SECONDS", 60)) * time.Second,
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		PineconeAPIKey:    os.Getenv("PINECONE_API_KEY"),
		PineconeIndexName: getEnv("PINECONE_INDEX_NAME", "clinic-office-data"),
		CalendlyURL:       os.Getenv("CALENDLY_URL"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("[WARN] Invalid value %q for %s, using default %d", value, key, defaultValue)
		return defaultValue
	}
	return parsed
}
