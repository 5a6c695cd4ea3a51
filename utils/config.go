package utils

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the settings read from the environment
type Config struct {
	Port          string
	MongoURI      string
	MongoDB       string
	StoreBackend  string // "mongo" or "memory"
	JWTSecret     string
	JWTExpiresIn  time.Duration
	Env           string // "development" or "production"
	EmailProvider string // "postmark", "sendgrid" or empty
	PostmarkToken string
	SendgridKey   string
	EmailSender   string
	CORSOrigins   []string
	PublicURL     string // base of links placed in emails
}

// IsDevelopment reports whether raw error text may be sent to clients
func (c *Config) IsDevelopment() bool {
	return c.Env != "production"
}

// LoadConfig reads the .env file when present, then the process environment
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Proceeding with environment variables.")
	}

	expiry, err := ParseExpiry(getEnv("JWT_EXPIRES_IN", "7d"))
	if err != nil {
		return nil, fmt.Errorf("JWT_EXPIRES_IN: %w", err)
	}

	port := getEnv("PORT", "8000")
	cfg := &Config{
		Port:          port,
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:       getEnv("MONGO_DB", "farmmarket"),
		StoreBackend:  strings.ToLower(getEnv("STORE_BACKEND", "mongo")),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		JWTExpiresIn:  expiry,
		Env:           strings.ToLower(getEnv("APP_ENV", "development")),
		EmailProvider: strings.ToLower(os.Getenv("EMAIL_PROVIDER")),
		PostmarkToken: os.Getenv("POSTMARK_API_TOKEN"),
		SendgridKey:   os.Getenv("SENDGRID_API_KEY"),
		EmailSender:   getEnv("EMAIL_SENDER", "no-reply@farmmarket.local"),
		CORSOrigins:   splitList(getEnv("CORS_ORIGINS", "*")),
		PublicURL:     strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:"+port), "/"),
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is not set")
	}
	if cfg.StoreBackend != "mongo" && cfg.StoreBackend != "memory" {
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	return cfg, nil
}

// ParseExpiry accepts Go durations ("72h") and whole days ("7d")
func ParseExpiry(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil || days <= 0 {
			return 0, fmt.Errorf("invalid day count %q", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("expiry must be positive, got %s", s)
	}
	return d, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
