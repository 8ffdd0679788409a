// Package config provides environment-based configuration for Sadhana.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the Sadhana service.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Database (PostgreSQL with pgvector)
	DatabaseURL string

	// NATS / Hermes
	NatsURL string

	// Embeddings
	EmbeddingBackend    string // "simple", "local" or "openai"
	EmbeddingModel      string
	EmbeddingSidecarURL string
	OpenAIAPIKey        string
	OpenAIModel         string

	// SMTP delivery
	SMTPHost              string
	SMTPPort              int
	SMTPUser              string
	SMTPPassword          string
	SMTPPasswordEncrypted string
	SMTPFrom              string
	SMTPFromName          string
	ReportSubject         string

	// Encryption
	EncryptionKeyPath string
	EncryptionKey     string // loaded from file or env

	// Rate limiting
	RecommendRateLimit int           // requests per window
	RateWindow         time.Duration // window for rate limiting

	// Admin routes are disabled when empty.
	AdminAPIKey string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	c := &Config{
		Port:                  envInt("SADHANA_PORT", 8600),
		LogLevel:              envStr("SADHANA_LOG_LEVEL", "info"),
		DatabaseURL:           envStr("DATABASE_URL", ""),
		NatsURL:               envStr("NATS_URL", "nats://localhost:4222"),
		EmbeddingBackend:      strings.ToLower(envStr("EMBEDDING_BACKEND", "local")),
		EmbeddingModel:        envStr("EMBEDDING_MODEL", "jashwanthakula26/yoga-asana-model"),
		EmbeddingSidecarURL:   envStr("EMBEDDING_SIDECAR_URL", "http://localhost:8601"),
		OpenAIAPIKey:          envStr("OPENAI_API_KEY", ""),
		OpenAIModel:           envStr("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
		SMTPHost:              envStr("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:              envInt("SMTP_PORT", 587),
		SMTPUser:              envStr("SMTP_USER", ""),
		SMTPPassword:          envStr("SMTP_PASSWORD", ""),
		SMTPPasswordEncrypted: envStr("SMTP_PASSWORD_ENCRYPTED", ""),
		SMTPFrom:              envStr("SMTP_FROM", ""),
		SMTPFromName:          envStr("SMTP_FROM_NAME", "Sadhana"),
		ReportSubject:         envStr("REPORT_SUBJECT", "Your Recommended Yoga Asanas"),
		EncryptionKeyPath:     encryptionKeyPath(),
		EncryptionKey:         EncryptionKey(),
		RecommendRateLimit:    envInt("RECOMMEND_RATE_LIMIT", 20),
		RateWindow:            time.Minute,
		AdminAPIKey:           envStr("ADMIN_API_KEY", ""),
	}

	if c.SMTPFrom == "" {
		c.SMTPFrom = c.SMTPUser
	}

	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	switch c.EmbeddingBackend {
	case "simple", "local", "openai":
	default:
		return nil, fmt.Errorf("unknown EMBEDDING_BACKEND %q", c.EmbeddingBackend)
	}
	if c.EmbeddingBackend == "openai" && c.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai backend")
	}

	return c, nil
}

// EncryptionKey returns ENCRYPTION_KEY, or the contents of the file at
// ENCRYPTION_KEY_PATH when the variable is unset. It needs no other config,
// so operator commands can call it without a database.
func EncryptionKey() string {
	if key := envStr("ENCRYPTION_KEY", ""); key != "" {
		return key
	}
	data, err := os.ReadFile(encryptionKeyPath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func encryptionKeyPath() string {
	return envStr("ENCRYPTION_KEY_PATH", "/run/secrets/sadhana_encryption_key")
}

// SMTPConfigured reports whether report delivery can be attempted.
func (c *Config) SMTPConfigured() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
