package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
)

// Config carries every runtime knob the service reads from the
// environment. Defaults match production values, so an empty
// environment yields a working local setup.
type Config struct {
	AppName  string `env:"APP_NAME" envDefault:"authcore"`
	Env      string `env:"ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	Issuer   string `env:"TOKEN_ISSUER" envDefault:"authcore"`
	Audience string `env:"TOKEN_AUDIENCE" envDefault:"authcore-clients"`

	SigningSecret       string        `env:"SIGNING_SECRET" envDefault:""`
	AccessTokenTTL      time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL     time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"720h"`
	KeyRotationGrace    time.Duration `env:"KEY_ROTATION_GRACE" envDefault:"1h"`
	KeyRotationInterval time.Duration `env:"KEY_ROTATION_INTERVAL" envDefault:"24h"`
	ClockSkewLeeway     time.Duration `env:"CLOCK_SKEW_LEEWAY" envDefault:"5s"`

	LockoutThreshold int           `env:"LOCKOUT_THRESHOLD" envDefault:"5"`
	LockoutWindow    time.Duration `env:"LOCKOUT_WINDOW" envDefault:"15m"`

	OneTimeCodeTTL time.Duration `env:"OTP_TTL" envDefault:"5m"`

	PasswordMinLength  int `env:"PASSWORD_MIN_LENGTH" envDefault:"8"`
	PasswordMaxLength  int `env:"PASSWORD_MAX_LENGTH" envDefault:"64"`
	PasswordMinScore   int `env:"PASSWORD_MIN_SCORE" envDefault:"70"`
	PasswordExpiryDays int `env:"PASSWORD_EXPIRY_DAYS" envDefault:"90"`
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, errors.Wrap(err, "[config.Load] env.Parse")
	}
	return c, nil
}
