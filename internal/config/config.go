package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the resumix server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	AI        AIConfig
	RateLimit RateLimitConfig
	Jobs      JobsConfig
	Uploads   UploadConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	// URL is optional; when empty the in-memory job store is used.
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	// URL is optional; when empty rate limiting is local-only.
	URL string
}

type AuthConfig struct {
	// KeyHashes are bcrypt hashes of the accepted X-API-Key values.
	KeyHashes []string
}

type AIConfig struct {
	Provider       string
	BaseURL        string
	RequestTimeout time.Duration
}

type RateLimitConfig struct {
	RequestsPerMinute int
	MaxConcurrent     int
	FailFast          bool
	MaxDelay          time.Duration
}

type JobsConfig struct {
	Retention     time.Duration
	SweepInterval time.Duration
	Stagger       time.Duration
	UnitTimeout   time.Duration
	PromptsFile   string
}

type UploadConfig struct {
	Dir          string
	MaxFileBytes int64
	MaxTotal     int64
}

var validProviders = map[string]bool{
	"openai": true,
	"mock":   true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("RESUMIX_PORT", 8080),
			Env:  envString("RESUMIX_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Auth: AuthConfig{
			KeyHashes: envList("RESUMIX_API_KEY_HASHES"),
		},
		AI: AIConfig{
			Provider:       envString("AI_PROVIDER", "openai"),
			BaseURL:        envString("OPENAI_API_URL", "https://api.openai.com/v1/responses"),
			RequestTimeout: envDuration("AI_REQUEST_TIMEOUT", 300*time.Second),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: envInt("OPENAI_RPM_PER_KEY", 480),
			MaxConcurrent:     envInt("OPENAI_MAX_CONCURRENCY_PER_KEY", 20),
			FailFast:          envBool("OPENAI_RPM_FAIL_FAST", false),
			MaxDelay:          envDuration("OPENAI_RPM_MAX_DELAY", time.Hour),
		},
		Jobs: JobsConfig{
			Retention:     envDuration("JOB_RETENTION", time.Hour),
			SweepInterval: envDuration("JOB_SWEEP_INTERVAL", 5*time.Minute),
			Stagger:       envDuration("BATCH_STAGGER", 250*time.Millisecond),
			UnitTimeout:   envDuration("SUBTASK_TIMEOUT", 6*time.Minute),
			PromptsFile:   envString("PROMPTS_FILE", "prompts/prompts.yaml"),
		},
		Uploads: UploadConfig{
			Dir:          envString("UPLOAD_DIR", "uploads"),
			MaxFileBytes: envInt64("MAX_FILE_SIZE", 5*1024*1024),
			MaxTotal:     envInt64("UPLOAD_DIR_MAX_BYTES", 50*1024*1024),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("AI_PROVIDER must be one of openai, mock; got %q", c.AI.Provider)
	}
	if !strings.HasPrefix(c.AI.BaseURL, "http://") && !strings.HasPrefix(c.AI.BaseURL, "https://") {
		return fmt.Errorf("OPENAI_API_URL must start with http:// or https://, got %q", c.AI.BaseURL)
	}
	if len(c.Auth.KeyHashes) == 0 {
		return fmt.Errorf("RESUMIX_API_KEY_HASHES is required")
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("OPENAI_RPM_PER_KEY must be positive, got %d", c.RateLimit.RequestsPerMinute)
	}
	if c.RateLimit.MaxConcurrent < 0 {
		return fmt.Errorf("OPENAI_MAX_CONCURRENCY_PER_KEY must not be negative, got %d", c.RateLimit.MaxConcurrent)
	}
	if c.Jobs.Retention <= 0 {
		return fmt.Errorf("JOB_RETENTION must be positive, got %s", c.Jobs.Retention)
	}
	if c.Jobs.Stagger < 0 {
		return fmt.Errorf("BATCH_STAGGER must not be negative, got %s", c.Jobs.Stagger)
	}
	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
