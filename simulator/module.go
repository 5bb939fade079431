package simulator

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/moffa90/go-roguesd/protocol"
)

// Config describes the simulated module.
type Config struct {
	// Module selects the version string and the command prefix
	Module protocol.ModuleType

	// Major and Minor form the firmware version mmm.nn
	Major int
	Minor int

	// Beta is the four character beta tag, e.g. "b003" (optional)
	Beta string

	// Serial follows the module tag in the version reply
	Serial string

	// MaxHandles is the number of handles the module hands out (1-9)
	MaxHandles int

	// TotalKiB is the reported card size
	TotalKiB uint32

	// ListingStyle is the initial value of the listing style setting
	ListingStyle int

	// Now supplies the clock until SetTime is received (optional)
	Now func() time.Time
}

// DefaultConfig returns a current-dialect uMMC with firmware 102.01.
func DefaultConfig() Config {
	return Config{
		Module:       protocol.StorageOnly,
		Major:        102,
		Minor:        1,
		Serial:       "1234ABCD",
		MaxHandles:   4,
		TotalKiB:     1 << 20,
		ListingStyle: 1,
	}
}

// LegacyConfig returns a legacy-dialect uMMC with firmware 101.99.
func LegacyConfig() Config {
	cfg := DefaultConfig()
	cfg.Minor = 99
	cfg.Major = 101
	return cfg
}

type openFile struct {
	path string
	mode protocol.OpenMode
	pos  int
}

func (f *openFile) readable() bool {
	return f.mode == protocol.OpenRead || f.mode == protocol.OpenReadWrite
}

func (f *openFile) writable() bool {
	return f.mode != protocol.OpenRead
}

// rawWrite collects the data bytes that follow a write command.
type rawWrite struct {
	handle    int
	remaining int
	line      bool
	code      byte
	data      []byte
}

// Module is an in-memory module speaking the serial protocol. It
// implements the roguesd.Port contract, so a Client can drive it directly.
// Module is safe for concurrent use.
type Module struct {
	mu sync.Mutex

	cfg     Config
	dialect protocol.Dialect
	prompt  byte

	fs       *fsys
	handles  map[int]*openFile
	settings map[byte]int
	clockOff time.Duration

	dirOpen  bool
	dirPath  string
	dirIndex int

	line     []byte
	raw      *rawWrite
	out      []byte
	failNext []byte
	silent   bool
	commands []string
}

// New creates a module with an empty card containing only the root folder.
func New(cfg Config) *Module {
	if cfg.Module == 0 {
		cfg.Module = protocol.StorageOnly
	}
	if cfg.MaxHandles <= 0 || cfg.MaxHandles > protocol.MaxHandle {
		cfg.MaxHandles = protocol.LegacyMaxHandles
	}
	if cfg.TotalKiB == 0 {
		cfg.TotalKiB = 1 << 20
	}
	if cfg.Serial == "" {
		cfg.Serial = "00000000"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Module{
		cfg:     cfg,
		dialect: protocol.ResolveDialect(cfg.Module, cfg.Major*100+cfg.Minor),
		prompt:  protocol.DefaultPrompt,
		fs:      newFS(),
		handles: make(map[int]*openFile),
		settings: map[byte]int{
			protocol.SettingWriteTimeout: 0,
			protocol.SettingListingStyle: cfg.ListingStyle,
			protocol.SettingPrompt:       int(protocol.DefaultPrompt),
		},
	}
}

// Dialect returns the command set the module speaks.
func (m *Module) Dialect() protocol.Dialect {
	return m.dialect
}

// Available reports whether reply bytes are waiting. A legacy write that
// is still collecting data is completed here once the write time-out
// setting is active, as the link has gone idle.
func (m *Module) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idle()
	return len(m.out) > 0
}

// ReadByte returns the next reply byte.
func (m *Module) ReadByte() (byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idle()
	if len(m.out) == 0 {
		return 0, fmt.Errorf("simulator: no reply byte available")
	}
	b := m.out[0]
	m.out = m.out[1:]
	return b, nil
}

// PeekByte returns the next reply byte without consuming it.
func (m *Module) PeekByte() (byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idle()
	if len(m.out) == 0 {
		return 0, fmt.Errorf("simulator: no reply byte available")
	}
	return m.out[0], nil
}

// WriteByte feeds one byte to the module.
func (m *Module) WriteByte(b byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.silent {
		return nil
	}

	if m.raw != nil {
		m.rawByte(b)
		return nil
	}

	switch b {
	case protocol.Escape:
		m.line = m.line[:0]
		m.out = m.out[:0]
		m.commands = append(m.commands, string(rune(protocol.Escape)))
		m.out = append(m.out, m.prompt)
	case protocol.CarriageReturn:
		cmd := string(m.line)
		m.line = m.line[:0]
		m.commands = append(m.commands, cmd)
		m.execute(cmd)
	default:
		m.line = append(m.line, b)
	}
	return nil
}

// Flush discards pending reply bytes.
func (m *Module) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.out = m.out[:0]
	return nil
}

// FailNext makes the next command fail with code, regardless of its
// arguments. Calls queue up; a zero code lets its command through, so a
// failure can be aimed at a later command.
func (m *Module) FailNext(code byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = append(m.failNext, code)
}

// Inject appends raw bytes to the reply stream.
func (m *Module) Inject(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.out = append(m.out, data...)
}

// SetSilent makes the module ignore input and never answer.
func (m *Module) SetSilent(silent bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.silent = silent
}

// Commands returns every command line received so far, without the
// trailing carriage return. ESC is recorded as "\x1b"; write data is not
// recorded.
func (m *Module) Commands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.commands...)
}

// ResetCommands clears the command transcript.
func (m *Module) ResetCommands() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = nil
}

// Setting returns the current value of a setting.
func (m *Module) Setting(key byte) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings[key]
}

// OpenHandles returns the number of open handles.
func (m *Module) OpenHandles() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handles)
}

// WriteFile stores a file on the card, creating parent folders.
func (m *Module) WriteFile(path string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := cleanPath(path)
	m.fs.mkdirAll(parentOf(p))
	m.fs.files[p] = append([]byte(nil), data...)
}

// ReadFile returns a copy of a file on the card.
func (m *Module) ReadFile(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.fs.files[cleanPath(path)]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Mkdir creates a folder and its parents.
func (m *Module) Mkdir(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fs.mkdirAll(cleanPath(path))
}

// idle completes a pending write when the write time-out is active.
// The caller holds mu.
func (m *Module) idle() {
	if m.raw == nil || m.raw.line || m.settings[protocol.SettingWriteTimeout] == 0 {
		return
	}
	m.finishRaw()
}

func (m *Module) rawByte(b byte) {
	if m.raw.line {
		if b == protocol.CarriageReturn {
			m.finishRaw()
			return
		}
		m.raw.data = append(m.raw.data, b)
		return
	}
	m.raw.data = append(m.raw.data, b)
	m.raw.remaining--
	if m.raw.remaining <= 0 {
		m.finishRaw()
	}
}

func (m *Module) finishRaw() {
	w := m.raw
	m.raw = nil
	if w.code != 0 {
		m.fail(w.code)
		return
	}
	f := m.handles[w.handle]
	if f == nil {
		m.fail(protocol.CodeFileNotOpen)
		return
	}
	content := m.fs.files[f.path]
	if f.mode == protocol.OpenAppend {
		f.pos = len(content)
	}
	end := f.pos + len(w.data)
	if end > len(content) {
		grown := make([]byte, end)
		copy(grown, content)
		content = grown
	}
	copy(content[f.pos:], w.data)
	m.fs.files[f.path] = content
	f.pos = end
	m.ok()
}

func (m *Module) ok() {
	m.out = append(m.out, m.prompt)
}

func (m *Module) fail(code byte) {
	m.out = append(m.out, fmt.Sprintf("E%02X", code)...)
	m.out = append(m.out, m.prompt)
}

// data sends a successful reply carrying payload.
func (m *Module) data(payload []byte) {
	m.out = append(m.out, protocol.Space)
	m.out = append(m.out, payload...)
	m.out = append(m.out, m.prompt)
}

func (m *Module) version() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d.%02d", m.cfg.Major, m.cfg.Minor)
	if m.cfg.Beta != "" {
		fmt.Fprintf(&b, "-%-4.4s", m.cfg.Beta)
	}
	b.WriteString(" SN:")
	switch m.cfg.Module {
	case protocol.CommercialPlayer:
		b.WriteString("RMP3")
	case protocol.IndustrialPlayer:
		b.WriteString("UMP1")
	default:
		b.WriteString("UMM1")
	}
	b.WriteString("-")
	b.WriteString(m.cfg.Serial)
	return b.String()
}

func (m *Module) now() time.Time {
	return m.cfg.Now().Add(m.clockOff)
}
