package graphwise

import (
	"fmt"
	"net"
	"runtime"
	"strconv"
	"time"
)

const (
	// DefaultModel is the model requested when none is configured.
	DefaultModel = "sentence-transformers/paraphrase-multilingual-MiniLM-L12-v2"

	// DefaultBatchSizeKiB is the default byte budget per request, in KiB.
	DefaultBatchSizeKiB = 256

	defaultIdleTimeout     = 30 * time.Second
	defaultShutdownTimeout = 5 * time.Second
)

// Config is the immutable configuration of a Client.
type Config struct {
	Host  string
	Port  int
	Model string

	// ByteBudget bounds the estimated wire size of one request, in bytes.
	ByteBudget int

	// PoolSize is the maximum number of concurrent calls. -1 uses
	// runtime.NumCPU().
	PoolSize        int
	PoolIdleTimeout time.Duration

	// Secret enables request signing when non-empty.
	Secret string

	// Dimension is the known embedding size, or 0 to learn it from the
	// service.
	Dimension int

	ShutdownTimeout time.Duration
}

// Target returns the gRPC dial target for the configured address. The
// passthrough scheme hands host:port straight to the dialer, matching a
// plain forAddress(host, port) channel.
func (c Config) Target() string {
	return "passthrough:///" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// PoolConfig derives the worker pool sizing: min(size, 2) core workers,
// size max workers and a queue twice as deep.
func (c Config) PoolConfig() PoolConfig {
	size := c.PoolSize
	if size < 0 {
		size = runtime.NumCPU()
	}
	return PoolConfig{
		MinWorkers:  min(size, 2),
		MaxWorkers:  size,
		QueueSize:   2 * size,
		IdleTimeout: c.PoolIdleTimeout,
	}
}

func (c Config) validate() error {
	if c.Host == "" {
		return fmt.Errorf("graphwise: host must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("graphwise: port must be between 1 and 65535, got %d", c.Port)
	}
	if c.Model == "" {
		return fmt.Errorf("graphwise: model must not be empty")
	}
	if c.ByteBudget <= 0 {
		return fmt.Errorf("graphwise: byte budget must be greater than 0")
	}
	if c.PoolSize == 0 || c.PoolSize < -1 {
		return fmt.Errorf("graphwise: pool size must be -1 or greater than 0, got %d", c.PoolSize)
	}
	if c.Dimension < 0 {
		return fmt.Errorf("graphwise: dimension must be >= 0")
	}
	return nil
}
