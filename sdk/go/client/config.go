package client

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/typedrpc/internal/core/codec"
	"github.com/zeusync/typedrpc/internal/core/observability/log"
	"github.com/zeusync/typedrpc/internal/core/protocol"
)

// Config holds configuration for the client
type Config struct {
	// Schema is the path of the JSON or YAML schema document.
	Schema    string          `yaml:"schema" json:"schema"`
	Transport protocol.Config `yaml:"transport" json:"transport"`

	LogLevel log.Level `yaml:"log_level" json:"log_level"`

	// BatchConcurrency bounds the calls CallBatch keeps in flight.
	BatchConcurrency int `yaml:"batch_concurrency" json:"batch_concurrency"`

	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	Codec     CodecConfig     `yaml:"codec" json:"codec"`
}

// RateLimitConfig limits calls per method. A zero Requests disables it.
type RateLimitConfig struct {
	Requests int           `yaml:"requests" json:"requests"`
	Window   time.Duration `yaml:"window" json:"window"`
}

type CodecConfig struct {
	MaxDepth          int    `yaml:"max_depth" json:"max_depth"`
	MaxSequenceLength uint64 `yaml:"max_sequence_length" json:"max_sequence_length"`
	// MaxEmptyItems of zero rejects any sequence of zero-width elements.
	MaxEmptyItems uint64 `yaml:"max_empty_items" json:"max_empty_items"`
}

// DefaultClientConfig returns default client configuration
func DefaultClientConfig() Config {
	defaults := codec.DefaultOptions()
	return Config{
		Transport:        protocol.DefaultConfig(),
		LogLevel:         log.LevelInfo,
		BatchConcurrency: 8,
		Codec: CodecConfig{
			MaxDepth:          defaults.MaxDepth,
			MaxSequenceLength: defaults.MaxSequenceLength,
			MaxEmptyItems:     defaults.MaxEmptyItems,
		},
	}
}

// LoadConfig reads a YAML config file over DefaultClientConfig, so the
// file only needs the keys it changes.
func LoadConfig(path string) (Config, error) {
	config := DefaultClientConfig()
	f, err := os.Open(path)
	if err != nil {
		return config, err
	}
	defer func() { _ = f.Close() }()

	if err = yaml.NewDecoder(f).Decode(&config); err != nil {
		return config, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}
	return config, config.Validate()
}

func (c Config) Validate() error {
	if err := c.Transport.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.BatchConcurrency < 0 {
		return fmt.Errorf("%w: negative batch concurrency", ErrInvalidConfig)
	}
	if c.RateLimit.Requests < 0 || (c.RateLimit.Requests > 0 && c.RateLimit.Window <= 0) {
		return fmt.Errorf("%w: rate limit needs a positive request count and window", ErrInvalidConfig)
	}
	if c.Codec.MaxDepth <= 0 || c.Codec.MaxSequenceLength == 0 {
		return fmt.Errorf("%w: codec limits must be positive", ErrInvalidConfig)
	}
	return nil
}

func (c Config) codecOptions() []codec.Option {
	return []codec.Option{
		codec.WithMaxDepth(c.Codec.MaxDepth),
		codec.WithMaxSequenceLength(c.Codec.MaxSequenceLength),
		codec.WithMaxEmptyItems(c.Codec.MaxEmptyItems),
	}
}
