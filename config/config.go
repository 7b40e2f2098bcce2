package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"

	developmentJWTSecret = "pharmacy-marketplace-dev-secret"
)

type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	Port     string `env:"PORT" envDefault:"8080"`
	GinMode  string `env:"GIN_MODE" envDefault:"debug"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	// text or json
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	DBDriver string `env:"DB_DRIVER" envDefault:"sqlite"`
	DBDSN    string `env:"DB_DSN" envDefault:"pharmacy.db"`

	JWTSecret    string        `env:"JWT_SECRET"`
	TokenTTL     time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
	CookieName   string        `env:"COOKIE_NAME" envDefault:"tigerToken"`
	CookieSecure bool          `env:"COOKIE_SECURE" envDefault:"false"`
	FrontendURL  string        `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	Guiddini   GuiddiniConfig   `envPrefix:"GUIDDINI_"`
	Sweep      SweepConfig      `envPrefix:"SWEEP_"`
	Kafka      KafkaConfig      `envPrefix:"KAFKA_"`
	RateLimit  RateLimitConfig  `envPrefix:"RATE_LIMIT_"`
	ChangeFeed ChangeFeedConfig `envPrefix:"CHANGE_FEED_"`
}

type GuiddiniConfig struct {
	BaseURL   string        `env:"BASE_URL" envDefault:"https://epay.guiddini.dz"`
	AppKey    string        `env:"APP_KEY"`
	AppSecret string        `env:"APP_SECRET"`
	Timeout   time.Duration `env:"TIMEOUT" envDefault:"15s"`
}

// SweepConfig schedules the daily expiration sweep at Hour:Minute local time.
type SweepConfig struct {
	Enabled bool `env:"ENABLED" envDefault:"true"`
	Hour    int  `env:"HOUR" envDefault:"2"`
	Minute  int  `env:"MINUTE" envDefault:"0"`
}

type KafkaConfig struct {
	Brokers []string `env:"BROKERS" envSeparator:","`
	Topic   string   `env:"PAYMENT_TOPIC" envDefault:"payment-events"`
}

type RateLimitConfig struct {
	PaymentRPS   float64 `env:"PAYMENT_RPS" envDefault:"2"`
	PaymentBurst int     `env:"PAYMENT_BURST" envDefault:"10"`
	AuthPerMin   int     `env:"AUTH_PER_MINUTE" envDefault:"10"`
}

// ChangeFeedConfig controls the trigger based stock change feed.
type ChangeFeedConfig struct {
	Enabled  bool          `env:"ENABLED" envDefault:"true"`
	Interval time.Duration `env:"INTERVAL" envDefault:"2s"`
}

// Load reads an optional .env file and then the process environment.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	switch c.DBDriver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (want mysql or sqlite)", c.DBDriver)
	}

	if c.JWTSecret == "" {
		if c.IsProduction() {
			return errors.New("JWT_SECRET is required in production")
		}
		c.JWTSecret = developmentJWTSecret
	}

	if c.Sweep.Hour < 0 || c.Sweep.Hour > 23 || c.Sweep.Minute < 0 || c.Sweep.Minute > 59 {
		return fmt.Errorf("invalid sweep time %02d:%02d", c.Sweep.Hour, c.Sweep.Minute)
	}
	if c.Guiddini.Timeout <= 0 {
		return errors.New("GUIDDINI_TIMEOUT must be positive")
	}
	if c.ChangeFeed.Enabled && c.ChangeFeed.Interval <= 0 {
		return errors.New("CHANGE_FEED_INTERVAL must be positive")
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

func (c *Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}
