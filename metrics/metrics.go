// Package metrics provides a Prometheus implementation of roguesd.Metrics.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector counts the commands and payload bytes exchanged with a module.
//
// All metrics use the roguesd_ prefix. A nil *Collector is valid and
// records nothing, so callers can pass one around unconditionally.
type Collector struct {
	// CommandsTotal counts command lines sent, by operation
	CommandsTotal *prometheus.CounterVec

	// CommandErrors counts failed commands by operation and error code
	CommandErrors *prometheus.CounterVec

	// BytesTotal counts file payload bytes by direction ("read", "write")
	BytesTotal *prometheus.CounterVec
}

// New creates the collector and registers it with reg.
// A nil reg registers with prometheus.DefaultRegisterer.
// Panics if registration fails (expected during initialization only).
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	client := roguesd.New(port, roguesd.WithMetrics(metrics.New(reg)))
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		CommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roguesd_commands_total",
				Help: "Total commands sent to the module by operation",
			},
			[]string{"op"},
		),
		CommandErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roguesd_command_errors_total",
				Help: "Total failed commands by operation and error code",
			},
			[]string{"op", "code"},
		),
		BytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roguesd_bytes_total",
				Help: "Total file payload bytes moved by direction",
			},
			[]string{"direction"},
		),
	}

	reg.MustRegister(c.CommandsTotal, c.CommandErrors, c.BytesTotal)
	return c
}

// CommandSent records one command line.
func (c *Collector) CommandSent(op string) {
	if c == nil {
		return
	}
	c.CommandsTotal.WithLabelValues(op).Inc()
}

// CommandFailed records an error code reported for op.
func (c *Collector) CommandFailed(op string, code byte) {
	if c == nil {
		return
	}
	c.CommandErrors.WithLabelValues(op, CodeLabel(code)).Inc()
}

// BytesTransferred records n payload bytes moved in direction.
func (c *Collector) BytesTransferred(direction string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.BytesTotal.WithLabelValues(direction).Add(float64(n))
}

// CodeLabel formats an error code as its label value, e.g. "0xF2".
func CodeLabel(code byte) string {
	return fmt.Sprintf("0x%02X", code)
}
