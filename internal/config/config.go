package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
)

const MinAdminAPIKeyLength = 16

type Config struct {
	ResendAPIKey  string `env:"RESEND_API_KEY,required=true"`
	ResendBaseURL string `env:"RESEND_BASE_URL,default=https://api.resend.com"`
	DatabaseDSN   string `env:"DATABASE_DSN,required=true"`
	RedisURL      string `env:"REDIS_URL,required=true"`
	RabbitMQURL   string `env:"RABBITMQ_URL,required=true"`
	// AdminAPIKey guards the campaign routes (Authorization: Bearer <key>).
	AdminAPIKey string `env:"ADMIN_API_KEY,required=true"`

	SiteURL          string `env:"SITE_URL,default=https://ndscalesmart.com"`
	BrandName        string `env:"BRAND_NAME,default=ND Scale Smart"`
	FromEmail        string `env:"FROM_EMAIL,default=newsletter@ndscalesmart.com"`
	ContactFromEmail string `env:"CONTACT_FROM_EMAIL,default=solutions@ndscalesmart.com"`
	AdminEmail       string `env:"ADMIN_EMAIL,default=solutions@ndscalesmart.com"`

	BatchSize               int `env:"BATCH_SIZE,default=50"`
	BatchDelayMS            int `env:"BATCH_DELAY_MS,default=1000"`
	ResultChunkSize         int `env:"RESULT_CHUNK_SIZE,default=100"`
	ResultWorkerConcurrency int `env:"RESULT_WORKER_CONCURRENCY,default=2"`
	ProviderRateLimitPerSec int `env:"PROVIDER_RATE_LIMIT_PER_SEC,default=0"`

	APIPort            int    `env:"API_PORT,default=8080"`
	LogLevel           string `env:"LOG_LEVEL,default=info"`
	ShutdownTimeoutSec int    `env:"SHUTDOWN_TIMEOUT_SEC,default=15"`
}

// ConfigurationError means the process cannot start with the given environment.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return "invalid configuration: " + e.Err.Error()
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Load reads the environment. Files in dotenvFiles that exist are loaded
// first; variables already set in the environment win over file values.
func Load(dotenvFiles ...string) (*Config, error) {
	for _, file := range dotenvFiles {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return nil, &ConfigurationError{Err: fmt.Errorf("failed to load %s: %w", file, err)}
		}
	}

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, &ConfigurationError{Err: fmt.Errorf("failed to load config: %w", err)}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &ConfigurationError{Err: err}
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.ResendAPIKey) == "" {
		errs = append(errs, fmt.Errorf("RESEND_API_KEY must not be blank"))
	}
	if n := len(strings.TrimSpace(c.AdminAPIKey)); n < MinAdminAPIKeyLength {
		errs = append(errs, fmt.Errorf("ADMIN_API_KEY must be at least %d characters, got %d", MinAdminAPIKeyLength, n))
	}
	if err := validateBaseURL(c.SiteURL); err != nil {
		errs = append(errs, fmt.Errorf("SITE_URL: %w", err))
	}
	if err := validateBaseURL(c.ResendBaseURL); err != nil {
		errs = append(errs, fmt.Errorf("RESEND_BASE_URL: %w", err))
	}
	for name, addr := range map[string]string{
		"FROM_EMAIL":         c.FromEmail,
		"CONTACT_FROM_EMAIL": c.ContactFromEmail,
		"ADMIN_EMAIL":        c.AdminEmail,
	} {
		if err := domain.ValidateEmail(domain.NormalizeEmail(addr)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if c.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("BATCH_SIZE must be at least 1, got %d", c.BatchSize))
	}
	if c.BatchDelayMS < 0 {
		errs = append(errs, fmt.Errorf("BATCH_DELAY_MS must not be negative, got %d", c.BatchDelayMS))
	}
	if c.ResultChunkSize < 1 {
		errs = append(errs, fmt.Errorf("RESULT_CHUNK_SIZE must be at least 1, got %d", c.ResultChunkSize))
	}
	if c.ResultWorkerConcurrency < 1 {
		errs = append(errs, fmt.Errorf("RESULT_WORKER_CONCURRENCY must be at least 1, got %d", c.ResultWorkerConcurrency))
	}
	if c.ProviderRateLimitPerSec < 0 {
		errs = append(errs, fmt.Errorf("PROVIDER_RATE_LIMIT_PER_SEC must not be negative, got %d", c.ProviderRateLimitPerSec))
	}
	if c.ShutdownTimeoutSec < 1 {
		errs = append(errs, fmt.Errorf("SHUTDOWN_TIMEOUT_SEC must be at least 1, got %d", c.ShutdownTimeoutSec))
	}

	return errors.Join(errs...)
}

func (c *Config) BatchDelay() time.Duration {
	return time.Duration(c.BatchDelayMS) * time.Millisecond
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSec) * time.Second
}

// SiteBaseURL is SITE_URL without a trailing slash.
func (c *Config) SiteBaseURL() string {
	return strings.TrimRight(strings.TrimSpace(c.SiteURL), "/")
}

// SiteOrigin is the scheme and host of SITE_URL, used as the allowed CORS origin.
func (c *Config) SiteOrigin() string {
	u, err := url.Parse(c.SiteBaseURL())
	if err != nil || u.Host == "" {
		return c.SiteBaseURL()
	}
	return u.Scheme + "://" + u.Host
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}
