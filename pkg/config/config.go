// Package config loads and validates wwise-mcp configuration.
//
// Configuration comes from an optional wwise-mcp.yaml in the config
// directory, merged on top of built-in defaults. Values may reference
// environment variables with {{.VAR}} template syntax.
package config

import "time"

// Config holds the resolved runtime configuration for the tool-server.
type Config struct {
	// EndpointURL is the WAAPI WebSocket endpoint of the Wwise Authoring
	// application.
	EndpointURL string `yaml:"endpoint_url"`

	// CallTimeout is how long a caller waits on a reply channel before
	// giving up with a timeout error. The dispatcher may still complete
	// the call; its late reply is dropped.
	CallTimeout time.Duration `yaml:"call_timeout"`

	// RPCTimeout bounds a single WAAPI round-trip performed by the
	// dispatcher consumer, so a dead connection cannot wedge the consumer.
	RPCTimeout time.Duration `yaml:"rpc_timeout"`

	// ShutdownTimeout is how long Stop waits for the dispatcher consumer
	// to drain before forcing cleanup.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// PollInterval is the queue consumer wakeup interval. It bounds
	// shutdown latency regardless of how far in the future the earliest
	// request is scheduled.
	PollInterval time.Duration `yaml:"poll_interval"`

	// MaxQueueSize caps the dispatcher request queue. Producers that would
	// exceed it fail with a queue-full error instead of blocking.
	MaxQueueSize int `yaml:"max_queue_size"`

	// MaxSubscriptionEvents caps each subscription's event buffer. When
	// full, newest events are dropped.
	MaxSubscriptionEvents int `yaml:"max_subscription_events"`

	// StatusAddr, when non-empty, enables the local HTTP status server
	// (e.g. "127.0.0.1:9090").
	StatusAddr string `yaml:"status_addr"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		EndpointURL:           "ws://127.0.0.1:8080/waapi",
		CallTimeout:           1 * time.Second,
		RPCTimeout:            30 * time.Second,
		ShutdownTimeout:       2 * time.Second,
		PollInterval:          100 * time.Millisecond,
		MaxQueueSize:          100000,
		MaxSubscriptionEvents: 1024,
	}
}
