package simulator

import (
	"strconv"
	"strings"
	"time"

	"github.com/moffa90/go-roguesd/protocol"
)

// execute runs one command line. The caller holds mu.
func (m *Module) execute(line string) {
	var forced byte
	if len(m.failNext) > 0 {
		forced, m.failNext = m.failNext[0], m.failNext[1:]
	}

	switch {
	case line == string(protocol.CmdVersion):
		if forced != 0 {
			m.fail(forced)
			return
		}
		m.out = append(m.out, m.version()...)
		m.ok()
	case strings.HasPrefix(line, string(protocol.CmdSetting)):
		if forced != 0 {
			m.fail(forced)
			return
		}
		m.setting(line[1:])
	case line == string(protocol.CmdTime) || strings.HasPrefix(line, "T "):
		if forced != 0 {
			m.fail(forced)
			return
		}
		m.clock(line[1:])
	default:
		if prefix := m.cfg.Module.Prefix(); prefix != "" {
			rest, ok := strings.CutPrefix(line, prefix)
			if !ok {
				m.fail(protocol.CodeUnrecognizedCommand)
				return
			}
			line = rest
		}
		if forced != 0 && !strings.HasPrefix(line, string(protocol.CmdWrite)) {
			m.fail(forced)
			return
		}
		m.fileCommand(line, forced)
	}
}

func (m *Module) fileCommand(line string, forced byte) {
	if line == "" {
		m.fail(protocol.CodeUnrecognizedCommand)
		return
	}
	arg := line[1:]
	switch line[0] {
	case protocol.CmdFreeHandle:
		if arg != "" {
			m.fail(protocol.CodeUnrecognizedCommand)
			return
		}
		m.freeHandle()
	case protocol.CmdOpen:
		m.open(arg)
	case protocol.CmdClose:
		if arg == "" {
			m.closeAll()
			return
		}
		m.close(arg)
	case protocol.CmdFileInfo:
		m.fileInfo(arg)
	case protocol.CmdCardInfo:
		m.cardInfo()
	case protocol.CmdStatus:
		m.status(arg)
	case protocol.CmdList:
		m.list(arg)
	case protocol.CmdRemove:
		m.remove(arg)
	case protocol.CmdRename:
		m.rename(arg)
	case protocol.CmdRead:
		if rest, ok := strings.CutPrefix(arg, string(protocol.CmdLine)); ok {
			m.readLine(rest)
			return
		}
		m.read(arg)
	case protocol.CmdWrite:
		if rest, ok := strings.CutPrefix(arg, string(protocol.CmdLine)); ok {
			m.writeLine(rest, forced)
			return
		}
		m.write(arg, forced)
	case protocol.CmdSeek:
		m.seek(arg)
	default:
		m.fail(protocol.CodeUnrecognizedCommand)
	}
}

// current rejects commands the legacy firmware does not know.
func (m *Module) current() bool {
	if m.dialect == protocol.Legacy {
		m.fail(protocol.CodeUnrecognizedCommand)
		return false
	}
	return true
}

// handleArg splits "<h><rest>" and validates the handle number.
func (m *Module) handleArg(s string) (int, string, byte) {
	if s == "" || s[0] < '0' || s[0] > '9' {
		return 0, "", protocol.CodeUnrecognizedCommand
	}
	h := int(s[0] - '0')
	if h < 1 || h > m.cfg.MaxHandles {
		return h, s[1:], protocol.CodeInvalidHandle
	}
	return h, s[1:], 0
}

// openArg is handleArg for commands that need the handle to be open.
func (m *Module) openArg(s string) (*openFile, int, string, byte) {
	h, rest, code := m.handleArg(s)
	if code != 0 {
		return nil, h, rest, code
	}
	f := m.handles[h]
	if f == nil {
		return nil, h, rest, protocol.CodeFileNotOpen
	}
	return f, h, rest, 0
}

func (m *Module) freeHandle() {
	for h := 1; h <= m.cfg.MaxHandles; h++ {
		if m.handles[h] == nil {
			m.out = append(m.out, byte('0'+h))
			m.ok()
			return
		}
	}
	m.fail(protocol.CodeNoFreeFiles)
}

func (m *Module) open(s string) {
	h, rest, code := m.handleArg(s)
	if code != 0 {
		m.fail(code)
		return
	}
	if m.handles[h] != nil {
		m.fail(protocol.CodeOpenHandleInUse)
		return
	}
	token, target, found := strings.Cut(strings.TrimPrefix(rest, " "), " ")
	if !found || target == "" {
		m.fail(protocol.CodeOpenPathInvalid)
		return
	}

	var mode protocol.OpenMode
	switch token {
	case "R":
		mode = protocol.OpenRead
	case "W":
		mode = protocol.OpenWrite
	case "RW":
		mode = protocol.OpenReadWrite
	case "A":
		mode = protocol.OpenAppend
	default:
		m.fail(protocol.CodeOpenModeInvalid)
		return
	}

	p := cleanPath(target)
	if m.fs.isDir(p) {
		m.fail(protocol.CodeNotAFile)
		return
	}
	if mode == protocol.OpenRead && !m.fs.isFile(p) {
		m.fail(protocol.CodeFileDoesNotExist)
		return
	}
	if !m.fs.isDir(parentOf(p)) {
		m.fail(protocol.CodeOpenPathInvalid)
		return
	}

	switch {
	case mode == protocol.OpenWrite:
		m.fs.files[p] = nil
	case !m.fs.isFile(p):
		m.fs.files[p] = nil
	}

	f := &openFile{path: p, mode: mode}
	if mode == protocol.OpenAppend {
		f.pos = len(m.fs.files[p])
	}
	m.handles[h] = f
	m.ok()
}

func (m *Module) close(s string) {
	_, h, rest, code := m.openArg(s)
	if code == 0 && rest != "" {
		code = protocol.CodeUnrecognizedCommand
	}
	if code != 0 {
		m.fail(code)
		return
	}
	delete(m.handles, h)
	m.ok()
}

func (m *Module) closeAll() {
	if !m.current() {
		return
	}
	m.handles = make(map[int]*openFile)
	m.ok()
}

func (m *Module) fileInfo(s string) {
	f, _, _, code := m.openArg(s)
	if code != 0 {
		m.fail(code)
		return
	}
	size := len(m.fs.files[f.path])
	m.out = append(m.out, strconv.Itoa(f.pos)+"/"+strconv.Itoa(size)...)
	m.ok()
}

func (m *Module) cardInfo() {
	usedKiB := uint32((m.fs.used() + 1023) / 1024)
	free := uint32(0)
	if usedKiB < m.cfg.TotalKiB {
		free = m.cfg.TotalKiB - usedKiB
	}
	m.out = append(m.out, strconv.FormatUint(uint64(free), 10)+"/"+strconv.FormatUint(uint64(m.cfg.TotalKiB), 10)...)
	m.ok()
}

func (m *Module) status(s string) {
	if s != "" {
		if _, _, _, code := m.openArg(s); code != 0 {
			m.fail(code)
			return
		}
	}
	m.data(nil)
}

func (m *Module) list(s string) {
	if !m.current() {
		return
	}
	switch {
	case strings.HasPrefix(s, "C "):
		entries, ok := m.fs.resolve(s[2:])
		if !ok {
			m.fail(protocol.CodeOpenPathInvalid)
			return
		}
		m.data([]byte(strconv.Itoa(len(entries))))
	case strings.HasPrefix(s, "S "):
		p := cleanPath(s[2:])
		switch {
		case m.fs.isDir(p):
			m.dirOpen, m.dirPath, m.dirIndex = true, p, 0
			m.data(nil)
		case m.fs.isFile(p):
			m.fail(protocol.CodeNotADir)
		default:
			m.fail(protocol.CodeFileDoesNotExist)
		}
	case strings.HasPrefix(s, "I "):
		m.nextEntry(s[2:])
	case strings.HasPrefix(s, "E "):
		m.entry(s[2:])
	case strings.HasPrefix(s, " "):
		p := cleanPath(s[1:])
		switch {
		case m.fs.isFile(p):
			entries, _ := m.fs.resolve(p)
			m.data([]byte(entryLine(entries[0])))
		case m.fs.isDir(p):
			var b strings.Builder
			for _, e := range m.fs.children(p) {
				b.WriteString(entryLine(e))
			}
			m.data([]byte(b.String()))
		default:
			m.fail(protocol.CodeFileDoesNotExist)
		}
	default:
		m.fail(protocol.CodeUnrecognizedCommand)
	}
}

// nextEntry advances the listing cursor of the open folder.
func (m *Module) nextEntry(mask string) {
	if !m.dirOpen {
		m.fail(protocol.CodeFileNotOpen)
		return
	}
	children := m.fs.children(m.dirPath)
	for m.dirIndex < len(children) {
		e := children[m.dirIndex]
		m.dirIndex++
		if len(match([]protocol.DirEntry{e}, mask)) == 1 {
			m.data([]byte(entryLine(e)))
			return
		}
	}
	m.fail(protocol.CodeEOF)
}

// entry answers "LE <n> <spec>"; n counts from 1.
func (m *Module) entry(s string) {
	num, spec, found := strings.Cut(s, " ")
	n, err := strconv.Atoi(num)
	if !found || err != nil {
		m.fail(protocol.CodeUnrecognizedCommand)
		return
	}
	entries, ok := m.fs.resolve(spec)
	if !ok {
		m.fail(protocol.CodeOpenPathInvalid)
		return
	}
	if n < 1 || n > len(entries) {
		m.fail(protocol.CodeEOF)
		return
	}
	m.data([]byte(entryLine(entries[n-1])))
}

func (m *Module) inUse(p string) bool {
	for _, f := range m.handles {
		if f.path == p || strings.HasPrefix(f.path, p+"/") {
			return true
		}
	}
	return false
}

func (m *Module) remove(s string) {
	if s == "" {
		m.fail(protocol.CodeOpenPathInvalid)
		return
	}
	p := cleanPath(s)
	switch {
	case p == "/":
		m.fail(protocol.CodeOpenPathInvalid)
	case m.inUse(p):
		m.fail(protocol.CodeOpenHandleInUse)
	case m.fs.isFile(p):
		m.fs.remove(p)
		m.ok()
	case m.fs.isDir(p):
		if len(m.fs.children(p)) > 0 {
			// folders must be emptied first
			m.fail(protocol.CodeFATFailure)
			return
		}
		m.fs.remove(p)
		m.ok()
	default:
		m.fail(protocol.CodeFileDoesNotExist)
	}
}

func (m *Module) rename(s string) {
	from, to, found := strings.Cut(s, string(protocol.RenameSeparator))
	if !found || from == "" || to == "" {
		m.fail(protocol.CodeUnrecognizedCommand)
		return
	}
	op, np := cleanPath(from), cleanPath(to)
	switch {
	case !m.fs.exists(op):
		m.fail(protocol.CodeFileDoesNotExist)
	case m.fs.exists(np):
		m.fail(protocol.CodeFileAlreadyExists)
	case op == "/" || strings.HasPrefix(np, op+"/") || !m.fs.isDir(parentOf(np)):
		m.fail(protocol.CodeOpenPathInvalid)
	case m.inUse(op):
		m.fail(protocol.CodeOpenHandleInUse)
	default:
		m.fs.rename(op, np)
		m.ok()
	}
}

func (m *Module) read(s string) {
	f, _, rest, code := m.openArg(s)
	if code != 0 {
		m.fail(code)
		return
	}
	fields := strings.Fields(rest)
	nums := make([]int, len(fields))
	for i, field := range fields {
		n, err := strconv.Atoi(field)
		if err != nil || n < 0 {
			m.fail(protocol.CodeUnrecognizedCommand)
			return
		}
		nums[i] = n
	}

	content := m.fs.files[f.path]
	switch {
	case len(nums) == 2 && nums[0] == 0:
		// zero-length read at an offset: the legacy seek
		if nums[1] > len(content) {
			m.fail(protocol.CodeEOF)
			return
		}
		f.pos = nums[1]
		m.ok()
	case len(nums) == 1:
		if !f.readable() {
			m.fail(protocol.CodeReadImproperMode)
			return
		}
		if nums[0] == 0 {
			m.ok()
			return
		}
		if f.pos >= len(content) {
			m.fail(protocol.CodeEOF)
			return
		}
		end := min(f.pos+nums[0], len(content))
		m.data(content[f.pos:end])
		f.pos = end
	default:
		m.fail(protocol.CodeUnrecognizedCommand)
	}
}

func (m *Module) readLine(s string) {
	if !m.current() {
		return
	}
	f, _, rest, code := m.openArg(s)
	if code != 0 {
		m.fail(code)
		return
	}
	limit, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil || limit <= 0 {
		m.fail(protocol.CodeUnrecognizedCommand)
		return
	}
	if !f.readable() {
		m.fail(protocol.CodeReadImproperMode)
		return
	}
	content := m.fs.files[f.path]
	if f.pos >= len(content) {
		m.fail(protocol.CodeEOF)
		return
	}

	end := min(f.pos+limit, len(content))
	line := content[f.pos:end]
	next := end
	if i := strings.IndexByte(string(line), '\n'); i >= 0 {
		line = line[:i]
		next = f.pos + i + 1
	}
	line = []byte(strings.TrimSuffix(string(line), "\r"))
	f.pos = next
	m.data(line)
}

func (m *Module) write(s string, forced byte) {
	h, rest, code := m.handleArg(s)
	n, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil || n < 0 {
		m.fail(protocol.CodeUnrecognizedCommand)
		return
	}
	m.startRaw(h, code, n, false, forced)
}

func (m *Module) writeLine(s string, forced byte) {
	if !m.current() {
		return
	}
	h, rest, code := m.handleArg(s)
	if code == 0 && rest != "" {
		code = protocol.CodeUnrecognizedCommand
	}
	m.startRaw(h, code, 0, true, forced)
}

// startRaw switches the input to data mode. A failing write still
// consumes its data before the error is reported.
func (m *Module) startRaw(h int, code byte, n int, line bool, forced byte) {
	if forced != 0 {
		code = forced
	}
	if code == 0 {
		switch f := m.handles[h]; {
		case f == nil:
			code = protocol.CodeFileNotOpen
		case !f.writable():
			code = protocol.CodeWriteImproperMode
		}
	}
	m.raw = &rawWrite{handle: h, remaining: n, line: line, code: code}
	if !line && n == 0 {
		m.finishRaw()
	}
}

func (m *Module) seek(s string) {
	if !m.current() {
		return
	}
	f, _, rest, code := m.openArg(s)
	if code != 0 {
		m.fail(code)
		return
	}
	size := len(m.fs.files[f.path])
	if rest == string(protocol.CmdSeekEnd) {
		f.pos = size
		m.ok()
		return
	}
	pos, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil || pos < 0 {
		m.fail(protocol.CodeUnrecognizedCommand)
		return
	}
	if pos > size {
		m.fail(protocol.CodeEOF)
		return
	}
	f.pos = pos
	m.ok()
}

// setting answers "S[T]<key>[value]". A prompt change takes effect after
// the acknowledgement.
func (m *Module) setting(s string) {
	if m.cfg.Module != protocol.StorageOnly {
		rest, ok := strings.CutPrefix(s, string(protocol.PlayerSettingPrefix))
		if !ok {
			m.fail(protocol.CodeUnrecognizedCommand)
			return
		}
		s = rest
	}
	if s == "" {
		m.fail(protocol.CodeUnrecognizedCommand)
		return
	}
	key, value := s[0], s[1:]
	if value == "" {
		m.out = append(m.out, strconv.Itoa(m.settings[key])...)
		m.ok()
		return
	}
	v, err := strconv.Atoi(value)
	if err != nil || v < 0 || v > 0xFF {
		m.fail(protocol.CodeUnrecognizedCommand)
		return
	}
	m.settings[key] = v
	m.ok()
	if key == protocol.SettingPrompt && v > 0 {
		m.prompt = byte(v)
	}
}

func (m *Module) clock(s string) {
	if !m.current() {
		return
	}
	fields := strings.Fields(s)
	if len(fields) == 0 {
		t := m.now()
		parts := []int{t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second(), int(t.Weekday())}
		for i, p := range parts {
			if i > 0 {
				m.out = append(m.out, protocol.Space)
			}
			m.out = strconv.AppendInt(m.out, int64(p), 10)
		}
		m.ok()
		return
	}

	if len(fields) != 6 {
		m.fail(protocol.CodeUnrecognizedCommand)
		return
	}
	var v [6]int
	for i, field := range fields {
		n, err := strconv.Atoi(field)
		if err != nil {
			m.fail(protocol.CodeUnrecognizedCommand)
			return
		}
		v[i] = n
	}
	base := m.cfg.Now()
	target := time.Date(v[0], time.Month(v[1]), v[2], v[3], v[4], v[5], 0, base.Location())
	m.clockOff = target.Sub(base)
	m.ok()
}
