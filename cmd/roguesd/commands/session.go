package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/moffa90/go-roguesd/logging"
	"github.com/moffa90/go-roguesd/metrics"
	"github.com/moffa90/go-roguesd/roguesd"
	"github.com/moffa90/go-roguesd/simulator"
	"github.com/moffa90/go-roguesd/transport"
)

// session is a synced client plus everything to tear down after the command.
type session struct {
	client  *roguesd.Client
	logger  *zap.Logger
	closers []func()
}

// openSession connects to the configured module and syncs with it.
func openSession(cmd *cobra.Command, opts *rootOptions) (*session, error) {
	cfg := opts.cfg
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	s := &session{logger: logger}
	s.closers = append(s.closers, func() { _ = logger.Sync() })

	clientOpts := []roguesd.Option{
		roguesd.WithLogger(logging.NewAdapter(logger)),
		roguesd.WithBlockingSync(cfg.Blocking),
		roguesd.WithSyncTimeout(cfg.SyncTimeout),
	}
	if opts.progress {
		clientOpts = append(clientOpts, roguesd.WithProgressCallback(progressPrinter(cmd.ErrOrStderr())))
	}
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		clientOpts = append(clientOpts, roguesd.WithMetrics(metrics.New(reg)))
		s.serveMetrics(cfg.MetricsAddr, reg)
	}

	port, err := s.openPort(cfg)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.client = roguesd.New(port, clientOpts...)
	if err := s.client.Sync(cmd.Context()); err != nil {
		s.Close()
		return nil, fmt.Errorf("sync: %w", err)
	}
	logger.Debug("session ready",
		zap.Stringer("module", s.client.ModuleType()),
		zap.Stringer("dialect", s.client.Dialect()))
	return s, nil
}

func (s *session) openPort(cfg *Config) (roguesd.Port, error) {
	if cfg.Simulate {
		return demoCard(), nil
	}
	if cfg.Port == "" {
		return nil, errors.New("no port given: use --port, ROGUESD_PORT or --simulate")
	}
	stream, err := transport.OpenSerial(cfg.Port, cfg.Baud)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, func() { _ = stream.Close() })
	return stream, nil
}

func (s *session) serveMetrics(addr string, reg *prometheus.Registry) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	s.closers = append(s.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
}

// Close releases resources in reverse order of acquisition.
func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// demoCard is the module used by --simulate.
func demoCard() *simulator.Module {
	mod := simulator.New(simulator.DefaultConfig())
	mod.WriteFile("/readme.txt", []byte("RogueSD demo card\n"))
	mod.WriteFile("/logs/boot.log", []byte("boot ok\nsync ok\n"))
	mod.WriteFile("/music/track01.mp3", make([]byte, 4096))
	return mod
}

func progressPrinter(w io.Writer) roguesd.ProgressCallback {
	return func(p roguesd.Progress) {
		if p.Phase != roguesd.PhaseTransferring && p.Phase != roguesd.PhaseComplete {
			return
		}
		if p.BytesTotal > 0 {
			fmt.Fprintf(w, "\r%s %s: %d/%d bytes (%.1f%%)", p.Operation, p.Path, p.BytesDone, p.BytesTotal, p.Percentage)
		} else {
			fmt.Fprintf(w, "\r%s %s: %d bytes", p.Operation, p.Path, p.BytesDone)
		}
		if p.Phase == roguesd.PhaseComplete {
			fmt.Fprintln(w)
		}
	}
}
