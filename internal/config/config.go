// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

// ErrInvalidConfig is returned when a loaded value fails validation.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Output naming modes.
const (
	// NamingPerFile derives the image name from the uploaded file name.
	NamingPerFile = "per_file"
	// NamingFixed writes every image to the same file.
	NamingFixed = "fixed"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port            int      `env:"PORT, default=5000" json:"port" validate:"min=1,max=65535"`
	ShowErrorDetail bool     `env:"SHOW_ERROR_DETAIL, default=false" json:"show_error_detail"`
	AllowedOrigins  []string `env:"ALLOWED_ORIGINS, default=*" json:"allowed_origins"`
	// Bytes of a multipart upload held in memory; the rest spills to disk.
	MaxUploadMemory int64 `env:"MAX_UPLOAD_MEMORY, default=33554432" json:"max_upload_memory" validate:"min=65536"`

	// Filesystem layout
	UploadDir    string `env:"UPLOAD_DIR, default=uploads" json:"upload_dir" validate:"required"`
	StaticDir    string `env:"STATIC_DIR, default=static" json:"static_dir" validate:"required"`
	OutputNaming string `env:"OUTPUT_NAMING, default=per_file" json:"output_naming" validate:"oneof=per_file fixed"`

	// Analysis settings
	NFFT             int     `env:"N_FFT, default=2048" json:"n_fft" validate:"min=16,max=65536"`
	HopLength        int     `env:"HOP_LENGTH, default=512" json:"hop_length" validate:"min=1,ltefield=NFFT"`
	TopDB            float64 `env:"TOP_DB, default=80" json:"top_db" validate:"gt=0"`
	TargetSampleRate int     `env:"TARGET_SAMPLE_RATE, default=0" json:"target_sample_rate" validate:"min=0,max=384000"`
	FFmpegPath       string  `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty" validate:"omitempty,url"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// FixedOutputName reports whether every render overwrites the same image.
func (c *Config) FixedOutputName() bool {
	return c.OutputNaming == NamingFixed
}

// Load reads configuration from environment variables using go-envconfig
// and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks field ranges and enumerations.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, MaxUploadMemory: %d, UploadDir: %s, StaticDir: %s, OutputNaming: %s, NFFT: %d, HopLength: %d, TopDB: %g, TargetSampleRate: %d, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.MaxUploadMemory,
		c.UploadDir,
		c.StaticDir,
		c.OutputNaming,
		c.NFFT,
		c.HopLength,
		c.TopDB,
		c.TargetSampleRate,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
