package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            string
	DBUrl           string
	JWTSecret       string
	RedisURL        string
	AppEnv          string
	LogLevel        string
	EnableMetrics   bool
	CatalogCacheTTL time.Duration
	Site            SiteSettings
}

// SiteSettings are handed to the components that render prices or pick a
// default language. Nothing in the core reads them from globals.
type SiteSettings struct {
	Name            string
	DefaultLanguage string
	DefaultCurrency string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	jwtSecret, exists := os.LookupEnv("JWT_SECRET")
	if !exists || jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return &Config{
		Port:            getEnv("PORT", "8080"),
		DBUrl:           getEnv("DB_URL", ""),
		JWTSecret:       jwtSecret,
		RedisURL:        getEnv("REDIS_URL", ""),
		AppEnv:          normalizeEnv(getEnv("APP_ENV", "production")),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		EnableMetrics:   getEnvBool("ENABLE_METRICS", true),
		CatalogCacheTTL: time.Duration(getEnvInt("CATALOG_CACHE_TTL_SECONDS", 300)) * time.Second,
		Site: SiteSettings{
			Name:            getEnv("SITE_NAME", "Prolean"),
			DefaultLanguage: strings.ToLower(getEnv("DEFAULT_LANGUAGE", "fr")),
			DefaultCurrency: strings.ToUpper(getEnv("DEFAULT_CURRENCY", "MAD")),
		},
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}

	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func normalizeEnv(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "develop", "development", "local":
		return "development"
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	case "test", "testing":
		return "test"
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}

func (c *Config) IsDevelopment() bool {
	return c != nil && c.AppEnv == "development"
}
