package roguesd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-roguesd/protocol"
	"github.com/moffa90/go-roguesd/simulator"
)

// MockPort replays scripted replies. Each carriage return or ESC written
// releases the next reply into the input buffer.
type MockPort struct {
	replies  [][]byte
	in       []byte
	written  bytes.Buffer
	writeErr error
	flushes  int

	// holding keeps all but the first holdFrom bytes of the next reply in
	// late until Deliver is called.
	holding  bool
	holdFrom int
	late     []byte

	// lag is the number of polls a released reply stays unavailable.
	lag     int
	lagLeft int
}

func NewMockPort(replies ...string) *MockPort {
	m := &MockPort{}
	m.AddReplies(replies...)
	return m
}

func (m *MockPort) AddReplies(replies ...string) {
	for _, r := range replies {
		m.replies = append(m.replies, []byte(r))
	}
}

func (m *MockPort) Available() bool {
	if m.lagLeft > 0 {
		m.lagLeft--
		return false
	}
	return len(m.in) > 0
}

// HoldNext delivers only the first n bytes of the next reply.
func (m *MockPort) HoldNext(n int) {
	m.holding = true
	m.holdFrom = n
}

// Deliver releases the bytes kept back by HoldNext.
func (m *MockPort) Deliver() {
	m.in = append(m.in, m.late...)
	m.late = nil
}

func (m *MockPort) ReadByte() (byte, error) {
	if len(m.in) == 0 {
		return 0, errors.New("mock: nothing to read")
	}
	b := m.in[0]
	m.in = m.in[1:]
	return b, nil
}

func (m *MockPort) PeekByte() (byte, error) {
	if len(m.in) == 0 {
		return 0, errors.New("mock: nothing to read")
	}
	return m.in[0], nil
}

func (m *MockPort) WriteByte(c byte) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.written.WriteByte(c)
	if (c == protocol.CarriageReturn || c == protocol.Escape) && len(m.replies) > 0 {
		r := m.replies[0]
		m.replies = m.replies[1:]
		if m.holding {
			n := min(m.holdFrom, len(r))
			m.late = append(m.late, r[n:]...)
			r = r[:n]
			m.holding = false
		}
		m.in = append(m.in, r...)
		m.lagLeft = m.lag
	}
	return nil
}

func (m *MockPort) Flush() error {
	m.flushes++
	m.in = m.in[:0]
	return nil
}

// Written returns everything written since the last reset.
func (m *MockPort) Written() string {
	return m.written.String()
}

func (m *MockPort) ResetWritten() {
	m.written.Reset()
}

// Mock logger for testing
type MockLogger struct {
	debugMsgs []string
	infoMsgs  []string
	errorMsgs []string
}

func (l *MockLogger) Debug(msg string, kv ...interface{}) {
	l.debugMsgs = append(l.debugMsgs, msg)
}

func (l *MockLogger) Info(msg string, kv ...interface{}) {
	l.infoMsgs = append(l.infoMsgs, msg)
}

func (l *MockLogger) Error(msg string, kv ...interface{}) {
	l.errorMsgs = append(l.errorMsgs, msg)
}

// recordingMetrics counts what the client reports.
type recordingMetrics struct {
	sent   map[string]int
	failed map[string][]byte
	bytes  map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		sent:   make(map[string]int),
		failed: make(map[string][]byte),
		bytes:  make(map[string]int),
	}
}

func (r *recordingMetrics) CommandSent(op string) { r.sent[op]++ }

func (r *recordingMetrics) CommandFailed(op string, code byte) {
	r.failed[op] = append(r.failed[op], code)
}

func (r *recordingMetrics) BytesTransferred(direction string, n int) { r.bytes[direction] += n }

// currentSyncScript answers Sync for a 102.01 storage module whose listing
// style is already 0.
var currentSyncScript = []string{">", "102.01 SN:UMM1-1234ABCD>", "0>", "62>", ">"}

func testOptions(opts ...Option) []Option {
	return append([]Option{
		WithPollInterval(time.Millisecond),
		WithSyncTimeout(20 * time.Millisecond),
		WithLineFinishDelay(time.Millisecond),
	}, opts...)
}

// newMockClient syncs a client against a current module, then queues
// replies for the test.
func newMockClient(t *testing.T, replies ...string) (*Client, *MockPort) {
	t.Helper()
	port := NewMockPort(currentSyncScript...)
	c := New(port, testOptions()...)
	require.NoError(t, c.Sync(context.Background()))
	port.ResetWritten()
	port.AddReplies(replies...)
	return c, port
}

// newSimClient syncs a client against a simulated module.
func newSimClient(t *testing.T, cfg simulator.Config, opts ...Option) (*Client, *simulator.Module) {
	t.Helper()
	mod := simulator.New(cfg)
	c := New(mod, testOptions(opts...)...)
	require.NoError(t, c.Sync(context.Background()))
	mod.ResetCommands()
	return c, mod
}

func TestNew(t *testing.T) {
	port := NewMockPort()

	tests := []struct {
		name    string
		options []Option
	}{
		{
			name:    "with no options",
			options: nil,
		},
		{
			name: "with all options",
			options: []Option{
				WithProgressCallback(func(p Progress) {}),
				WithLogger(&MockLogger{}),
				WithMetrics(newRecordingMetrics()),
				WithBlockingSync(true),
				WithSyncTimeout(2 * time.Second),
				WithPollInterval(5 * time.Millisecond),
				WithChunkSize(64),
				WithLineFinishDelay(20 * time.Millisecond),
				WithProgramMemory(ProgramImage("/a\x00")),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(port, tt.options...)
			require.NotNil(t, c)
			assert.Same(t, port, c.port)
			assert.Equal(t, StateDisconnected, c.State())
			assert.False(t, c.Ready())
			assert.Equal(t, byte(protocol.DefaultPrompt), c.Prompt())
		})
	}
}

func TestNewPanicsOnNilPort(t *testing.T) {
	assert.PanicsWithValue(t, "port cannot be nil", func() {
		New(nil)
	})
}

func TestOptions(t *testing.T) {
	tests := []struct {
		name  string
		opts  []Option
		check func(t *testing.T, cfg Config)
	}{
		{
			name: "defaults",
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, protocol.SyncTimeout, cfg.SyncTimeout)
				assert.Equal(t, protocol.PollInterval, cfg.PollInterval)
				assert.Equal(t, MaxChunkSize, cfg.ChunkSize)
				assert.Equal(t, protocol.LineFinishDelay, cfg.LineFinishDelay)
				assert.False(t, cfg.BlockingSync)
			},
		},
		{
			name: "chunk size in range",
			opts: []Option{WithChunkSize(100)},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, 100, cfg.ChunkSize)
			},
		},
		{
			name: "chunk size out of range is ignored",
			opts: []Option{WithChunkSize(0), WithChunkSize(MaxChunkSize + 1)},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, MaxChunkSize, cfg.ChunkSize)
			},
		},
		{
			name: "non-positive durations are ignored",
			opts: []Option{WithSyncTimeout(0), WithPollInterval(-1), WithLineFinishDelay(0)},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, protocol.SyncTimeout, cfg.SyncTimeout)
				assert.Equal(t, protocol.PollInterval, cfg.PollInterval)
				assert.Equal(t, protocol.LineFinishDelay, cfg.LineFinishDelay)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(NewMockPort(), tt.opts...)
			tt.check(t, c.config)
		})
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "capability resolved", StateCapabilityResolved.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "state(9)", State(9).String())
}

func TestOperationsRequireSync(t *testing.T) {
	ctx := context.Background()
	port := NewMockPort()
	c := New(port)

	ops := map[string]func() error{
		"FreeHandle": func() error { _, err := c.FreeHandle(ctx); return err },
		"Open":       func() error { _, err := c.Open(ctx, "/a", protocol.OpenRead); return err },
		"OpenHandle": func() error { return c.OpenHandle(ctx, 1, "/a", protocol.OpenRead) },
		"Close":      func() error { return c.Close(ctx, 1) },
		"CloseAll":   func() error { return c.CloseAll(ctx) },
		"FileInfo":   func() error { _, err := c.FileInfo(ctx, 1); return err },
		"Size":       func() error { _, err := c.Size(ctx, "/a"); return err },
		"Exists":     func() error { _, err := c.Exists(ctx, "/a"); return err },
		"ReadByte":   func() error { _, err := c.ReadByteFrom(ctx, 1); return err },
		"Read":       func() error { _, err := c.Read(ctx, 1, make([]byte, 4)); return err },
		"ReadLine":   func() error { _, err := c.ReadLine(ctx, 1, 10); return err },
		"Write":      func() error { return c.Write(ctx, 1, []byte("x")) },
		"WriteLine":  func() error { return c.WriteLine(ctx, 1, []byte("x")) },
		"SeekTo":     func() error { return c.SeekTo(ctx, 1, 0) },
		"SeekToEnd":  func() error { return c.SeekToEnd(ctx, 1) },
		"Remove":     func() error { return c.Remove(ctx, "/a") },
		"RemoveDir":  func() error { return c.RemoveDir(ctx, "/a") },
		"Rename":     func() error { return c.Rename(ctx, "/a", "/b") },
		"Status":     func() error { return c.Status(ctx, protocol.NoHandle) },
		"CardInfo":   func() error { _, err := c.CardInfo(ctx); return err },
		"OpenDir":    func() error { return c.OpenDir(ctx, "/") },
		"FileCount":  func() error { _, err := c.FileCount(ctx, "/", ""); return err },
		"ReadDir":    func() error { _, err := c.ReadDir(ctx, ""); return err },
		"EntryName":  func() error { _, err := c.EntryName(ctx, 1, "/", "", 0); return err },
		"Setting":    func() error { _, err := c.Setting(ctx, protocol.SettingPrompt); return err },
		"Change":     func() error { return c.ChangeSetting(ctx, protocol.SettingPrompt, '#') },
		"Time":       func() error { _, err := c.Time(ctx); return err },
		"SetTime":    func() error { return c.SetTime(ctx, protocol.Clock{Year: 2026}) },
		"OpenProgram": func() error {
			return c.OpenProgram(ctx, 1, 0, protocol.OpenRead)
		},
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			err := op()
			assert.ErrorIs(t, err, ErrNotReady)
		})
	}
	assert.Empty(t, port.Written(), "nothing may reach the port before Sync")
}

func TestDesyncIsReported(t *testing.T) {
	logger := &MockLogger{}
	port := NewMockPort(currentSyncScript...)
	c := New(port, testOptions(WithLogger(logger))...)
	require.NoError(t, c.Sync(context.Background()))
	port.AddReplies("X")

	err := c.Close(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, protocol.IsDesync(err))
	assert.Equal(t, byte(protocol.CodeDesync), c.LastErrorCode())
	assert.Contains(t, logger.errorMsgs, "response out of step, resync required")
}

func TestWriteErrorIsReturned(t *testing.T) {
	c, port := newMockClient(t)
	port.writeErr = errors.New("link down")

	err := c.Close(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "link down")
	assert.False(t, protocol.IsModuleError(err))
	assert.Equal(t, StateDisconnected, c.State())
}

func TestInterruptedReplyRequiresResync(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		deliver int
		run     func(ctx context.Context, c *Client) error
	}{
		{
			name:  "setting with nothing received",
			reply: "7>",
			run: func(ctx context.Context, c *Client) error {
				_, err := c.Setting(ctx, protocol.SettingListingStyle)
				return err
			},
		},
		{
			name:    "setting with prompt missing",
			reply:   "7>",
			deliver: 1,
			run: func(ctx context.Context, c *Client) error {
				_, err := c.Setting(ctx, protocol.SettingListingStyle)
				return err
			},
		},
		{
			name:  "close with nothing received",
			reply: ">",
			run: func(ctx context.Context, c *Client) error {
				return c.Close(ctx, 1)
			},
		},
		{
			name:    "card info cut after first number",
			reply:   "1024/2048>",
			deliver: 4,
			run: func(ctx context.Context, c *Client) error {
				_, err := c.CardInfo(ctx)
				return err
			},
		},
		{
			name:    "read line with end missing",
			reply:   " abc>",
			deliver: 2,
			run: func(ctx context.Context, c *Client) error {
				_, err := c.ReadLine(ctx, 1, 16)
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &MockLogger{}
			port := NewMockPort(currentSyncScript...)
			c := New(port, testOptions(WithLogger(logger))...)
			require.NoError(t, c.Sync(context.Background()))
			port.AddReplies(tt.reply)
			port.HoldNext(tt.deliver)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
			defer cancel()
			err := tt.run(ctx, c)
			require.ErrorIs(t, err, context.DeadlineExceeded)
			assert.Equal(t, StateDisconnected, c.State())
			assert.Contains(t, logger.errorMsgs, "exchange interrupted, resync required")

			// the rest of the reply shows up late and must not be taken as
			// the answer to the next command
			port.Deliver()
			port.ResetWritten()
			port.AddReplies("3>")
			_, err = c.Setting(context.Background(), protocol.SettingListingStyle)
			assert.ErrorIs(t, err, ErrNotReady)
			assert.Empty(t, port.Written())

			port.replies = nil
			port.AddReplies(currentSyncScript...)
			require.NoError(t, c.Sync(context.Background()))
			port.AddReplies("3>")
			v, err := c.Setting(context.Background(), protocol.SettingListingStyle)
			require.NoError(t, err)
			assert.Equal(t, 3, v)
		})
	}
}

func TestModuleErrorKeepsSession(t *testing.T) {
	c, _ := newMockClient(t, "E08>", "2>")
	ctx := context.Background()

	_, err := c.Setting(ctx, protocol.SettingListingStyle)
	require.ErrorIs(t, err, protocol.ErrCardNotInserted)
	assert.Equal(t, StateReady, c.State())

	v, err := c.Setting(ctx, protocol.SettingListingStyle)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestMetricsAreReported(t *testing.T) {
	rec := newRecordingMetrics()
	c, mod := newSimClient(t, simulator.DefaultConfig(), WithMetrics(rec))
	mod.WriteFile("/a.txt", []byte("hello"))
	ctx := context.Background()

	h, err := c.Open(ctx, "/a.txt", protocol.OpenRead)
	require.NoError(t, err)
	buf := make([]byte, 5)
	_, err = c.Read(ctx, h, buf)
	require.NoError(t, err)
	assert.Error(t, c.OpenHandle(ctx, h, "/a.txt", protocol.OpenRead))

	assert.Equal(t, 2, rec.sent["open"])
	assert.Equal(t, 1, rec.sent["read"])
	assert.Equal(t, []byte{protocol.CodeOpenHandleInUse}, rec.failed["open"])
	assert.Equal(t, 5, rec.bytes[DirectionRead])
}

func TestLastErrorCodeSurvivesSuccess(t *testing.T) {
	c, _ := newMockClient(t, "EF2>", ">")
	ctx := context.Background()

	err := c.Remove(ctx, "/missing")
	assert.ErrorIs(t, err, protocol.ErrFileDoesNotExist)
	require.NoError(t, c.Remove(ctx, "/present"))
	assert.Equal(t, byte(protocol.CodeFileDoesNotExist), c.LastErrorCode())
}

func TestCommandsUsePlayerPrefix(t *testing.T) {
	cfg := simulator.Config{Module: protocol.CommercialPlayer, Major: 100, Minor: 10}
	c, mod := newSimClient(t, cfg)
	ctx := context.Background()

	_, err := c.Upload(ctx, "/track.txt", strings.NewReader("abc"))
	require.NoError(t, err)

	data, ok := mod.ReadFile("/track.txt")
	require.True(t, ok)
	assert.Equal(t, "abc", string(data))
	for _, cmd := range mod.Commands() {
		assert.True(t, strings.HasPrefix(cmd, protocol.PlayerPrefix), cmd)
	}
}
