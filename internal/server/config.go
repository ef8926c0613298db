// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the livechat service.
package server

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/samber/lo"

	"github.com/Tyrowin/livechat/internal/chat"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Port                    string        `env:"SERVER_PORT,default=:8080" validate:"required"`
	AllowedOrigins          string        `env:"ALLOWED_ORIGINS,default=http://localhost:8080"`
	MaxMessageSize          int64         `env:"MAX_MESSAGE_SIZE,default=4096" validate:"gt=0"`
	RateLimitBurst          int           `env:"RATE_LIMIT_BURST,default=5" validate:"gte=0"`
	RateLimitRefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL,default=1s" validate:"gte=0"`

	JWTSecret string        `env:"JWT_SECRET" validate:"required"`
	JWTIssuer string        `env:"JWT_ISSUER,default=livechat"`
	TokenTTL  time.Duration `env:"TOKEN_TTL,default=24h" validate:"gt=0"`

	HistoryCapacity     int           `env:"HISTORY_CAPACITY,default=1000" validate:"gt=0"`
	JoinHistory         int           `env:"JOIN_HISTORY,default=20" validate:"gt=0"`
	HistoryDefaultLimit int           `env:"HISTORY_DEFAULT_LIMIT,default=50" validate:"gt=0"`
	SendQueueSize       int           `env:"SEND_QUEUE_SIZE,default=256" validate:"gt=0"`
	TypingTimeout       time.Duration `env:"TYPING_TIMEOUT,default=5s" validate:"gte=0"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s" validate:"gt=0"`
	LogLevel        string        `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR"`
}

// NewConfig creates a Config instance populated with default values for all settings.
// The JWT secret has no default and must be set by the caller.
func NewConfig() *Config {
	var cfg Config
	if err := env.Unmarshal(env.EnvSet{}, &cfg); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &cfg
}

// LoadConfig reads the given dotenv files (".env" when none are given) into the
// process environment, then decodes and validates the environment. Missing
// dotenv files are ignored and never override variables already set.
func LoadConfig(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Origins returns the configured origin allowlist.
func (c *Config) Origins() []string {
	return parseOrigins(c.AllowedOrigins)
}

// RateLimit returns the per-connection message budget.
func (c *Config) RateLimit() RateLimitConfig {
	return RateLimitConfig{Burst: c.RateLimitBurst, RefillInterval: c.RateLimitRefillInterval}
}

// Engine returns the room settings for chat.NewEngine.
func (c *Config) Engine() chat.Config {
	return chat.Config{
		HistoryCapacity: c.HistoryCapacity,
		JoinHistory:     c.JoinHistory,
		HistoryLimit:    c.HistoryDefaultLimit,
		QueueSize:       c.SendQueueSize,
		TypingTimeout:   c.TypingTimeout,
	}
}

func parseOrigins(origins string) []string {
	if strings.TrimSpace(origins) == "" {
		return nil
	}
	return lo.Map(strings.Split(origins, ","), func(origin string, _ int) string {
		return strings.TrimSpace(origin)
	})
}
