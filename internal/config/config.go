package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"distill/internal/distill"
)

// Config holds all application configuration
type Config struct {
	Port     string
	MongoURI string
	RedisURL string

	// Auth configuration
	JWTSecret          string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration

	// Distillation configuration
	LexiconPath       string // Optional YAML lexicon for the distiller
	DefaultMaxLength  int    // Applied when a request sets no cap; 0 disables
	DashboardCacheTTL time.Duration

	// Usage quotas (per user per UTC day; 0 disables a quota)
	DailyCaptureLimit int
	DailyDistillLimit int

	// Event retention
	EventRetentionDays int
	RetentionSchedule  string // Cron expression for the cleanup job
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "3001"),
		MongoURI: getEnv("MONGODB_URI", ""),
		RedisURL: getEnv("REDIS_URL", ""),

		JWTSecret:          getEnv("JWT_SECRET", ""),
		AccessTokenExpiry:  getDurationEnv("ACCESS_TOKEN_EXPIRY", 15*time.Minute),
		RefreshTokenExpiry: getDurationEnv("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour),

		LexiconPath:       getEnv("LEXICON_PATH", ""),
		DefaultMaxLength:  getIntEnv("DEFAULT_MAX_LENGTH", 0),
		DashboardCacheTTL: getDurationEnv("DASHBOARD_CACHE_TTL", 5*time.Minute),

		DailyCaptureLimit: getIntEnv("DAILY_CAPTURE_LIMIT", 0),
		DailyDistillLimit: getIntEnv("DAILY_DISTILL_LIMIT", 0),

		EventRetentionDays: getIntEnv("EVENT_RETENTION_DAYS", 180),
		RetentionSchedule:  getEnv("RETENTION_SCHEDULE", "0 3 * * *"),
	}
}

// Validate checks the parts of the configuration that would otherwise fail
// at first use (cron expressions, retention horizon).
func (c *Config) Validate() error {
	if c.EventRetentionDays < 0 {
		return fmt.Errorf("EVENT_RETENTION_DAYS must be non-negative, got %d", c.EventRetentionDays)
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(c.RetentionSchedule); err != nil {
		return fmt.Errorf("invalid RETENTION_SCHEDULE %q: %w", c.RetentionSchedule, err)
	}
	return nil
}

// LoadLexicon loads the distiller lexicon from a YAML file. An empty path
// returns the built-in default.
func LoadLexicon(filePath string) (distill.Lexicon, error) {
	if filePath == "" {
		return distill.DefaultLexicon(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return distill.Lexicon{}, fmt.Errorf("failed to read lexicon file: %w", err)
	}

	var lex distill.Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return distill.Lexicon{}, fmt.Errorf("failed to parse lexicon YAML: %w", err)
	}

	return lex, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(strings.TrimSpace(value))
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
