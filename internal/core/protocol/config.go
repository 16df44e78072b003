package protocol

import (
	"fmt"
	"time"
)

// Config holds transport configuration
type Config struct {
	// Endpoint is the ws:// or wss:// URL of the node.
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	DialTimeout    time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout" json:"write_timeout"`

	// PingInterval of zero disables keep-alive pings.
	PingInterval time.Duration `yaml:"ping_interval" json:"ping_interval"`

	// MaxMessageSize bounds both outgoing requests and incoming responses.
	MaxMessageSize uint32 `yaml:"max_message_size" json:"max_message_size"`
	BufferSize     uint32 `yaml:"buffer_size" json:"buffer_size"`
}

func DefaultConfig() Config {
	return Config{
		Endpoint:       "ws://127.0.0.1:9944",
		DialTimeout:    10 * time.Second,
		RequestTimeout: 30 * time.Second,
		WriteTimeout:   10 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 16 << 20,
		BufferSize:     4096,
	}
}

func (c Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("%w: endpoint is required", ErrInvalidConfig)
	}
	if c.DialTimeout < 0 || c.RequestTimeout < 0 || c.WriteTimeout < 0 || c.PingInterval < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalidConfig)
	}
	return nil
}
