package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	TelegramToken string
	APIURL        string
	DatabaseURI   string
	AIAPIKey      string
	AIBaseURL     string
	AIModel       string
	// ClerkJWTKey is the PEM public key of session tokens. Empty disables
	// signature checks.
	ClerkJWTKey    string
	HTTPTimeout    time.Duration
	Location       *time.Location
	WeekStart      time.Weekday
	EmbeddingsCron string
	// AgendaCron schedules the morning agenda push. Empty disables it.
	AgendaCron string
	PlansFile  string
	DevMode    bool
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env file is optional in production
	}

	timeout, err := time.ParseDuration(getEnvOrDefault("HTTP_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}

	loc, err := time.LoadLocation(getEnvOrDefault("TIMEZONE", "Local"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	weekStart, err := parseWeekday(getEnvOrDefault("WEEK_START", "sunday"))
	if err != nil {
		return nil, err
	}

	devMode, _ := strconv.ParseBool(os.Getenv("DEV_MODE"))

	return &Config{
		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
		APIURL:         getEnvOrDefault("API_URL", "http://localhost:5001/api"),
		DatabaseURI:    os.Getenv("DATABASE_URI"),
		AIAPIKey:       os.Getenv("AI_API_KEY"),
		AIBaseURL:      getEnvOrDefault("AI_BASE_URL", "https://openrouter.ai/api/v1"),
		AIModel:        getEnvOrDefault("AI_MODEL", "openai/gpt-4o-mini"),
		ClerkJWTKey:    strings.ReplaceAll(os.Getenv("CLERK_JWT_KEY"), `\n`, "\n"),
		HTTPTimeout:    timeout,
		Location:       loc,
		WeekStart:      weekStart,
		EmbeddingsCron: getEnvOrDefault("EMBEDDINGS_CRON", "0 3 * * *"),
		AgendaCron:     envOr("AGENDA_CRON", "0 8 * * *"),
		PlansFile:      os.Getenv("PLANS_FILE"),
		DevMode:        devMode,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envOr is like getEnvOrDefault but keeps an explicitly empty value.
func envOr(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func parseWeekday(s string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sunday", "sun":
		return time.Sunday, nil
	case "monday", "mon":
		return time.Monday, nil
	}
	return 0, fmt.Errorf("invalid WEEK_START %q: use sunday or monday", s)
}
