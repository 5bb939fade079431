// Package logging builds zap loggers and adapts them to roguesd.Logger.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	OutputPath string // stdout, stderr, or file path
}

// New builds a logger from cfg. An unknown level falls back to info.
func New(cfg Config) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var config zap.Config
	if cfg.Format == "console" {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
	}

	config.Level = zap.NewAtomicLevelAt(level)
	if cfg.OutputPath != "" {
		config.OutputPaths = []string{cfg.OutputPath}
	}

	return config.Build(zap.AddStacktrace(zapcore.ErrorLevel))
}

// Adapter satisfies roguesd.Logger with a zap sugared logger.
type Adapter struct {
	s *zap.SugaredLogger
}

// NewAdapter wraps l. A nil logger discards everything.
//
// Example:
//
//	logger, _ := logging.New(logging.Config{Level: "debug", Format: "console"})
//	client := roguesd.New(port, roguesd.WithLogger(logging.NewAdapter(logger)))
func NewAdapter(l *zap.Logger) *Adapter {
	if l == nil {
		l = zap.NewNop()
	}
	// Skip the adapter frame so callers show up in the output.
	return &Adapter{s: l.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

// Debug logs at debug level.
func (a *Adapter) Debug(msg string, keysAndValues ...interface{}) {
	a.s.Debugw(msg, keysAndValues...)
}

// Info logs at info level.
func (a *Adapter) Info(msg string, keysAndValues ...interface{}) {
	a.s.Infow(msg, keysAndValues...)
}

// Error logs at error level.
func (a *Adapter) Error(msg string, keysAndValues ...interface{}) {
	a.s.Errorw(msg, keysAndValues...)
}
