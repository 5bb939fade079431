package roguesd

import (
	"time"

	"github.com/moffa90/go-roguesd/protocol"
)

// MaxChunkSize is the largest read or write request sent in one command.
const MaxChunkSize = 512

// Config holds the client configuration.
type Config struct {
	// ProgressCallback is called during transfers to report progress (optional)
	ProgressCallback ProgressCallback

	// Logger is used for logging operations (optional)
	Logger Logger

	// Metrics receives command and byte counters (optional)
	Metrics Metrics

	// BlockingSync makes Sync wait for the module without a deadline
	BlockingSync bool

	// SyncTimeout bounds the wait for the module after ESC when BlockingSync is off
	SyncTimeout time.Duration

	// PollInterval is the wait between byte-availability checks
	PollInterval time.Duration

	// ChunkSize is the maximum data size per read or write request in transfers
	ChunkSize int

	// LineFinishDelay is the idle time that ends a legacy line write
	LineFinishDelay time.Duration

	// ProgramMemory is the path source for OpenProgram (optional)
	ProgramMemory ProgramMemory
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		SyncTimeout:     protocol.SyncTimeout,
		PollInterval:    protocol.PollInterval,
		ChunkSize:       MaxChunkSize,
		LineFinishDelay: protocol.LineFinishDelay,
	}
}

// Option is a functional option for configuring the Client.
type Option func(*Config)

// WithProgressCallback sets a callback function to track transfer progress.
//
// Example:
//
//	client := roguesd.New(port,
//	    roguesd.WithProgressCallback(func(p roguesd.Progress) {
//	        fmt.Printf("%.1f%% complete\n", p.Percentage)
//	    }),
//	)
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for the client operations.
//
// Example:
//
//	client := roguesd.New(port, roguesd.WithLogger(myLogger))
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithMetrics sets the metrics sink.
//
// Example:
//
//	client := roguesd.New(port, roguesd.WithMetrics(metrics.New(nil)))
func WithMetrics(m Metrics) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

// WithBlockingSync makes Sync wait for the module's first byte without a
// deadline instead of giving up after SyncTimeout.
func WithBlockingSync(blocking bool) Option {
	return func(c *Config) {
		c.BlockingSync = blocking
	}
}

// WithSyncTimeout sets how long Sync waits for the module after ESC.
//
// Example:
//
//	client := roguesd.New(port, roguesd.WithSyncTimeout(2*time.Second))
func WithSyncTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.SyncTimeout = timeout
		}
	}
}

// WithPollInterval sets the wait between byte-availability checks.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Config) {
		if interval > 0 {
			c.PollInterval = interval
		}
	}
}

// WithChunkSize sets the maximum data size per request in transfers.
// Default is 512 bytes.
//
// Example:
//
//	client := roguesd.New(port, roguesd.WithChunkSize(128))
func WithChunkSize(size int) Option {
	return func(c *Config) {
		if size > 0 && size <= MaxChunkSize {
			c.ChunkSize = size
		}
	}
}

// WithLineFinishDelay sets the idle time that ends a legacy line write.
// It must exceed the module's 10 ms write time-out.
func WithLineFinishDelay(delay time.Duration) Option {
	return func(c *Config) {
		if delay > 0 {
			c.LineFinishDelay = delay
		}
	}
}

// WithProgramMemory sets the byte store OpenProgram reads paths from.
//
// Example:
//
//	image := roguesd.ProgramImage("/log.txt\x00/data.bin\x00")
//	client := roguesd.New(port, roguesd.WithProgramMemory(image))
func WithProgramMemory(mem ProgramMemory) Option {
	return func(c *Config) {
		c.ProgramMemory = mem
	}
}
