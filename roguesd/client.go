package roguesd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/moffa90/go-roguesd/protocol"
)

// Port is the byte link to the module.
//
// ReadByte is only called after Available has reported true. Flush discards
// anything buffered on the input side.
type Port interface {
	Available() bool
	ReadByte() (byte, error)
	PeekByte() (byte, error)
	WriteByte(c byte) error
	Flush() error
}

// State is the negotiation progress of a session.
type State uint8

const (
	StateDisconnected State = iota
	StateSynced
	StateVersionKnown
	StateCapabilityResolved
	StateReady
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateSynced:
		return "synced"
	case StateVersionKnown:
		return "version known"
	case StateCapabilityResolved:
		return "capability resolved"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Client drives one module over a Port.
//
// A Client assumes exclusive use of the port and is NOT safe for concurrent
// use: exactly one operation may be in flight at a time. Every reply is
// read by polling the port, and ordinary operations have no deadline other
// than the context passed in.
type Client struct {
	port   Port
	rd     *protocol.Reader
	config Config

	state   State
	version protocol.Version
	dialect protocol.Dialect
	prefix  string
	prompt  byte
	lastErr byte
}

// New creates a new Client on the given port with the given options.
// The session is unusable until Sync succeeds.
//
// Example:
//
//	port, _ := transport.OpenSerial("/dev/ttyUSB0", 9600)
//	client := roguesd.New(port,
//	    roguesd.WithLogger(myLogger),
//	    roguesd.WithSyncTimeout(2*time.Second),
//	)
//	if err := client.Sync(ctx); err != nil {
//	    log.Fatal(err)
//	}
func New(port Port, opts ...Option) *Client {
	if port == nil {
		panic("port cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Client{
		port:   port,
		rd:     protocol.NewReader(port, cfg.PollInterval),
		config: cfg,
		prompt: protocol.DefaultPrompt,
	}
}

// Version returns the parsed version reply of the last Sync.
func (c *Client) Version() protocol.Version { return c.version }

// FirmwareVersion returns the firmware version as major*100+minor.
func (c *Client) FirmwareVersion() int { return c.version.Code() }

// ModuleType returns the kind of module detected by Sync.
func (c *Client) ModuleType() protocol.ModuleType { return c.version.Module }

// Dialect returns the command set selected by Sync.
func (c *Client) Dialect() protocol.Dialect { return c.dialect }

// Prompt returns the negotiated prompt character.
func (c *Client) Prompt() byte { return c.prompt }

// State returns the negotiation state.
func (c *Client) State() State { return c.state }

// Ready reports whether Sync completed.
func (c *Client) Ready() bool { return c.state == StateReady }

// LastErrorCode returns the most recent error code reported by the module
// or synthesized by the client. It is not cleared by successful operations.
func (c *Client) LastErrorCode() byte { return c.lastErr }

// checkReady fails fast before the transport is touched.
func (c *Client) checkReady(op string) error {
	if c.state != StateReady {
		return fmt.Errorf("%s: %w", op, ErrNotReady)
	}
	return nil
}

// requireCurrent rejects operations the legacy command set lacks.
func (c *Client) requireCurrent(op string) error {
	if c.dialect == protocol.Legacy {
		return c.fail(op, protocol.CodeNotSupported)
	}
	return nil
}

// send writes a complete command line.
func (c *Client) send(op string, cmd []byte) error {
	c.logDebug("send command", "op", op, "cmd", fmt.Sprintf("%q", cmd))
	if c.config.Metrics != nil {
		c.config.Metrics.CommandSent(op)
	}
	return c.writeRaw(cmd)
}

// writeRaw writes bytes without logging them as a command.
func (c *Client) writeRaw(data []byte) error {
	for _, b := range data {
		if err := c.port.WriteByte(b); err != nil {
			return c.lost(fmt.Errorf("write: %w", err))
		}
	}
	return nil
}

// lost ends a ready session after a command was sent but its exchange was
// cut short by the link or by ctx. The rest of the reply may still arrive,
// so every later operation fails with ErrNotReady until Sync flushes it.
func (c *Client) lost(err error) error {
	if c.state == StateReady {
		c.state = StateDisconnected
		c.logError("exchange interrupted, resync required", "error", err)
	}
	return err
}

// status classifies the start of a reply. On failure the error code is
// recorded and returned as a *protocol.ModuleError.
func (c *Client) status(ctx context.Context, op string) error {
	ok, code, err := c.rd.ReadStatus(ctx, c.prompt)
	if err != nil {
		return c.lost(fmt.Errorf("%s: read reply: %w", op, err))
	}
	if !ok {
		return c.fail(op, code)
	}
	return nil
}

// statusEOF is status with the end-of-file code reported as io.EOF.
func (c *Client) statusEOF(ctx context.Context, op string) error {
	err := c.status(ctx, op)
	if errors.Is(err, protocol.ErrEOF) {
		return io.EOF
	}
	return err
}

// peekError handles replies whose success form starts with data rather
// than a status marker. It returns nil when the reply is not an error.
func (c *Client) peekError(ctx context.Context, op string) error {
	b, err := c.rd.Peek(ctx)
	if err != nil {
		return c.lost(fmt.Errorf("%s: read reply: %w", op, err))
	}
	if b != protocol.ErrorMarker {
		return nil
	}
	return c.status(ctx, op)
}

// consumePrompt drops the byte that closes a data reply.
func (c *Client) consumePrompt(ctx context.Context, op string) error {
	if _, err := c.rd.Next(ctx); err != nil {
		return c.lost(fmt.Errorf("%s: read prompt: %w", op, err))
	}
	return nil
}

// fail records code as the last error and builds the matching error value.
func (c *Client) fail(op string, code byte) error {
	c.lastErr = code
	if c.config.Metrics != nil {
		c.config.Metrics.CommandFailed(op, code)
	}
	if code == protocol.CodeDesync {
		c.logError("response out of step, resync required", "op", op)
	} else {
		c.logDebug("command failed", "op", op, "code", fmt.Sprintf("0x%02X", code))
	}
	return &protocol.ModuleError{Operation: op, Code: code}
}

func (c *Client) countBytes(direction string, n int) {
	if c.config.Metrics != nil && n > 0 {
		c.config.Metrics.BytesTransferred(direction, n)
	}
}

func validHandle(h protocol.Handle) error {
	if !h.Valid() {
		return &InvalidHandleError{Handle: h}
	}
	return nil
}

// logDebug logs a debug message if a logger is configured.
func (c *Client) logDebug(msg string, keysAndValues ...interface{}) {
	if c.config.Logger != nil {
		c.config.Logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if a logger is configured.
func (c *Client) logInfo(msg string, keysAndValues ...interface{}) {
	if c.config.Logger != nil {
		c.config.Logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if a logger is configured.
func (c *Client) logError(msg string, keysAndValues ...interface{}) {
	if c.config.Logger != nil {
		c.config.Logger.Error(msg, keysAndValues...)
	}
}
