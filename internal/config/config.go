package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	LogLevel string

	DatabaseURL string

	ClerkSecretKey     string
	ClerkWebhookSecret string

	Timezone *time.Location

	ScorerProvider string
	ScorerURL      string
	ScorerToken    string
	GeminiAPIKey   string
	GeminiModel    string
	ScorerTimeout  time.Duration

	R2AccountID       string
	R2AccessKeyID     string
	R2AccessKeySecret string
	R2Bucket          string
	CDNBaseURL        string

	RedisURL string

	// FCMServiceAccountJSON is base64 encoded; FCMKeyFile is used when it is empty.
	FCMServiceAccountJSON string
	FCMKeyFile            string

	MetricsUser string
	MetricsPass string

	SubmitCooldown time.Duration

	DailyAnnounceHour   uint
	DailyAnnounceMinute uint
}

// Load reads .env (if present) and the environment. It does not validate;
// each command checks what it needs.
func Load() (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	cfg := &Config{
		Port:                  getEnv("PORT", "3333"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		ClerkSecretKey:        os.Getenv("CLERK_SECRET_KEY"),
		ClerkWebhookSecret:    os.Getenv("CLERK_WEBHOOK_SECRET"),
		ScorerProvider:        strings.ToLower(getEnv("SCORER_PROVIDER", "none")),
		ScorerURL:             os.Getenv("SCORER_URL"),
		ScorerToken:           os.Getenv("SCORER_TOKEN"),
		GeminiAPIKey:          os.Getenv("GEMINI_API_KEY"),
		GeminiModel:           os.Getenv("GEMINI_MODEL"),
		R2AccountID:           os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
		R2AccessKeyID:         os.Getenv("R2_ACCESS_KEY_ID"),
		R2AccessKeySecret:     os.Getenv("R2_ACCESS_KEY_SECRET"),
		R2Bucket:              os.Getenv("R2_BUCKET_NAME"),
		CDNBaseURL:            os.Getenv("CDN_BASE_URL"),
		RedisURL:              os.Getenv("REDIS_URL"),
		FCMServiceAccountJSON: os.Getenv("FCM_SERVICE_ACCOUNT_JSON"),
		FCMKeyFile:            getEnv("FCM_KEY_FILE", "./serviceAccountKey.json"),
		MetricsUser:           os.Getenv("METRICS_USER"),
		MetricsPass:           os.Getenv("METRICS_PASS"),
	}

	var err error
	if cfg.Timezone, err = time.LoadLocation(getEnv("TIMEZONE", "UTC")); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	if cfg.ScorerTimeout, err = getDuration("SCORER_TIMEOUT", 8*time.Second); err != nil {
		return nil, err
	}
	if cfg.SubmitCooldown, err = getDuration("SUBMIT_COOLDOWN", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.DailyAnnounceHour, cfg.DailyAnnounceMinute, err = parseClock(getEnv("DAILY_ANNOUNCE_AT", "09:00")); err != nil {
		return nil, fmt.Errorf("invalid DAILY_ANNOUNCE_AT: %w", err)
	}

	return cfg, nil
}

// ValidateDatabase is enough for migrate and seed.
func (c *Config) ValidateDatabase() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL environment variable is not set")
	}
	return nil
}

// Validate checks everything serve needs.
func (c *Config) Validate() error {
	var errs []error
	if err := c.ValidateDatabase(); err != nil {
		errs = append(errs, err)
	}
	if c.ClerkSecretKey == "" {
		errs = append(errs, errors.New("CLERK_SECRET_KEY environment variable is not set"))
	}
	switch c.ScorerProvider {
	case "none", "huggingface":
	case "gemini":
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required when SCORER_PROVIDER=gemini"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown SCORER_PROVIDER %q", c.ScorerProvider))
	}
	return errors.Join(errs...)
}

func (c *Config) R2Enabled() bool {
	return c.R2AccountID != "" && c.R2Bucket != ""
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}

func parseClock(s string) (uint, uint, error) {
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	hour, err := strconv.ParseUint(h, 10, 8)
	if err != nil || hour > 23 {
		return 0, 0, fmt.Errorf("bad hour in %q", s)
	}
	minute, err := strconv.ParseUint(m, 10, 8)
	if err != nil || minute > 59 {
		return 0, 0, fmt.Errorf("bad minute in %q", s)
	}
	return uint(hour), uint(minute), nil
}
