package logger

import (
	"log/slog"
	"strings"
)

// Environment names accepted in Config.Environment.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Config holds logger settings loaded from the environment with config.Load.
// Empty Level and Format follow the environment profile: text at debug level
// in development, JSON at info level otherwise.
type Config struct {
	Level       string   `env:"LOG_LEVEL"`
	Format      Format   `env:"LOG_FORMAT"`
	Environment string   `env:"APP_ENV" envDefault:"production"`
	Service     string   `env:"APP_NAME" envDefault:"twofactor"`
	RedactKeys  []string `env:"LOG_REDACT_KEYS"` // Added to DefaultRedactedKeys
}

// NewFromConfig creates a logger for cfg. Unknown formats fall back to the profile.
func NewFromConfig(cfg Config, opts ...Option) *slog.Logger {
	env := normalizeEnvironment(cfg.Environment)

	base := []Option{WithLevel(slog.LevelInfo), WithFormat(FormatJSON)}
	if env == EnvDevelopment {
		base = []Option{WithLevel(slog.LevelDebug), WithFormat(FormatText)}
	}
	if cfg.Level != "" {
		base = append(base, WithLevel(ParseLevel(cfg.Level)))
	}
	if f := Format(strings.ToLower(string(cfg.Format))); f == FormatJSON || f == FormatText {
		base = append(base, WithFormat(f))
	}

	attrs := []slog.Attr{slog.String("env", env)}
	if cfg.Service != "" {
		attrs = append(attrs, slog.String("service", cfg.Service))
	}
	base = append(base, WithAttr(attrs...), WithRedactedKeys(cfg.RedactKeys...))

	return New(append(base, opts...)...)
}

func normalizeEnvironment(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case EnvProduction, "prod":
		return EnvProduction
	case EnvStaging, "stage":
		return EnvStaging
	default:
		return EnvDevelopment
	}
}
