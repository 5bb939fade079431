package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// BuildSyncCmd constructs the sync sequence: a single ESC byte that aborts
// whatever the module is doing and makes it print a prompt.
func BuildSyncCmd() []byte {
	return []byte{Escape}
}

// BuildVersionCmd constructs the version query.
//
// Command structure:
//
//	V\r
//
// The reply has the form mmm.nn[-bxxx] SN:<type><rest>-<serial><prompt>.
func BuildVersionCmd() []byte {
	return []byte{CmdVersion, CarriageReturn}
}

// BuildFreeHandleCmd constructs the free handle query.
//
// Command structure:
//
//	[prefix]F\r
func BuildFreeHandleCmd(prefix string) []byte {
	cmd := startCmd(prefix, CmdFreeHandle)
	return append(cmd, CarriageReturn)
}

// BuildOpenHeader constructs an open command up to, but excluding, the path.
// Callers that source the path elsewhere append it and a carriage return.
//
// Command structure:
//
//	[prefix]O<h> <R|W|RW|A> <path>\r
func BuildOpenHeader(prefix string, h Handle, mode OpenMode) ([]byte, error) {
	if !h.Valid() {
		return nil, fmt.Errorf("handle %d out of range 1-%d", h, MaxHandle)
	}
	token, err := mode.Token()
	if err != nil {
		return nil, err
	}

	cmd := startCmd(prefix, CmdOpen)
	cmd = append(cmd, h.digit(), Space)
	cmd = append(cmd, token...)
	return append(cmd, Space), nil
}

// BuildOpenCmd constructs a complete open command.
func BuildOpenCmd(prefix string, h Handle, mode OpenMode, path string) ([]byte, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}
	cmd, err := BuildOpenHeader(prefix, h, mode)
	if err != nil {
		return nil, err
	}
	cmd = append(cmd, path...)
	return append(cmd, CarriageReturn), nil
}

// BuildCloseCmd constructs a close command for a single handle.
//
// Command structure:
//
//	[prefix]C<h>\r
func BuildCloseCmd(prefix string, h Handle) ([]byte, error) {
	return handleCmd(prefix, CmdClose, h)
}

// BuildCloseAllCmd constructs the bulk close command (current dialect only).
//
// Command structure:
//
//	[prefix]C\r
func BuildCloseAllCmd(prefix string) []byte {
	cmd := startCmd(prefix, CmdClose)
	return append(cmd, CarriageReturn)
}

// BuildFileInfoCmd constructs the file info query.
// The reply is <position>/<size><prompt>.
//
// Command structure:
//
//	[prefix]I<h>\r
func BuildFileInfoCmd(prefix string, h Handle) ([]byte, error) {
	return handleCmd(prefix, CmdFileInfo, h)
}

// BuildCardInfoCmd constructs the card info query.
// The reply is <free KiB>/<total KiB><prompt>.
//
// Command structure:
//
//	[prefix]Q\r
func BuildCardInfoCmd(prefix string) []byte {
	cmd := startCmd(prefix, CmdCardInfo)
	return append(cmd, CarriageReturn)
}

// BuildStatusCmd constructs the status query. A zero handle queries the card.
//
// Command structure:
//
//	[prefix]Z[h]\r
func BuildStatusCmd(prefix string, h Handle) ([]byte, error) {
	if h == NoHandle {
		cmd := startCmd(prefix, CmdStatus)
		return append(cmd, CarriageReturn), nil
	}
	return handleCmd(prefix, CmdStatus, h)
}

// BuildListCountCmd constructs the entry count query.
//
// Command structure:
//
//	[prefix]LC [path[/]][mask]\r
func BuildListCountCmd(prefix, path, mask string) ([]byte, error) {
	spec := JoinMask(path, mask)
	if err := validatePath(spec); err != nil {
		return nil, err
	}
	cmd := append([]byte(prefix), CmdListCount...)
	cmd = append(cmd, Space)
	cmd = append(cmd, spec...)
	return append(cmd, CarriageReturn), nil
}

// BuildOpenDirCmd constructs the open-directory command that resets the
// remote listing cursor.
//
// Command structure:
//
//	[prefix]LS <path>\r
func BuildOpenDirCmd(prefix, path string) ([]byte, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}
	cmd := append([]byte(prefix), CmdListOpenDir...)
	cmd = append(cmd, Space)
	cmd = append(cmd, path...)
	return append(cmd, CarriageReturn), nil
}

// BuildReadDirCmd constructs the next-entry command. An empty mask matches everything.
//
// Command structure:
//
//	[prefix]LI <mask>\r
func BuildReadDirCmd(prefix, mask string) ([]byte, error) {
	if mask == "" {
		mask = "*"
	}
	if err := validatePath(mask); err != nil {
		return nil, err
	}
	cmd := append([]byte(prefix), CmdListNext...)
	cmd = append(cmd, Space)
	cmd = append(cmd, mask...)
	return append(cmd, CarriageReturn), nil
}

// BuildListEntryCmd constructs the indexed entry query.
//
// Command structure:
//
//	[prefix]LE <n> <path>[/][mask]\r
func BuildListEntryCmd(prefix string, index int, path, mask string) ([]byte, error) {
	if index < 0 {
		return nil, fmt.Errorf("entry index must not be negative, got %d", index)
	}
	spec := joinRootedMask(path, mask)
	if err := validatePath(spec); err != nil {
		return nil, err
	}
	cmd := append([]byte(prefix), CmdListEntry...)
	cmd = append(cmd, Space)
	cmd = strconv.AppendInt(cmd, int64(index), 10)
	cmd = append(cmd, Space)
	cmd = append(cmd, spec...)
	return append(cmd, CarriageReturn), nil
}

// BuildSizeCmd constructs the listing-with-path command used to read a file size.
// The reply is a single listing line: <size> <name>\r<prompt>.
//
// Command structure:
//
//	[prefix]L <path>\r
func BuildSizeCmd(prefix, path string) ([]byte, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}
	cmd := startCmd(prefix, CmdList)
	cmd = append(cmd, Space)
	cmd = append(cmd, path...)
	return append(cmd, CarriageReturn), nil
}

// BuildRemoveCmd constructs the delete command. Folders must be empty.
//
// Command structure:
//
//	[prefix]E<path>\r
func BuildRemoveCmd(prefix, path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("path cannot be empty")
	}
	if err := validatePath(path); err != nil {
		return nil, err
	}
	cmd := startCmd(prefix, CmdRemove)
	cmd = append(cmd, path...)
	return append(cmd, CarriageReturn), nil
}

// BuildRenameCmd constructs the rename command.
//
// Command structure:
//
//	[prefix]N<old>|<new>\r
func BuildRenameCmd(prefix, oldPath, newPath string) ([]byte, error) {
	if oldPath == "" || newPath == "" {
		return nil, fmt.Errorf("rename paths cannot be empty")
	}
	for _, p := range []string{oldPath, newPath} {
		if err := validatePath(p); err != nil {
			return nil, err
		}
		if strings.IndexByte(p, RenameSeparator) >= 0 {
			return nil, fmt.Errorf("path %q contains %q", p, RenameSeparator)
		}
	}
	cmd := startCmd(prefix, CmdRename)
	cmd = append(cmd, oldPath...)
	cmd = append(cmd, RenameSeparator)
	cmd = append(cmd, newPath...)
	return append(cmd, CarriageReturn), nil
}

// BuildReadCmd constructs a read of exactly count bytes.
// The reply is ' ' followed by the bytes and the prompt.
//
// Command structure:
//
//	[prefix]R<h> <count>\r
func BuildReadCmd(prefix string, h Handle, count int) ([]byte, error) {
	if count < 0 {
		return nil, fmt.Errorf("read count must not be negative, got %d", count)
	}
	cmd, err := handleHeader(prefix, CmdRead, h)
	if err != nil {
		return nil, err
	}
	cmd = append(cmd, Space)
	cmd = strconv.AppendInt(cmd, int64(count), 10)
	return append(cmd, CarriageReturn), nil
}

// BuildReadLineCmd constructs a bounded line read (current dialect only).
// The line ends where the prompt character reappears in the stream.
//
// Command structure:
//
//	[prefix]RL<h> <maxLength>\r
func BuildReadLineCmd(prefix string, h Handle, maxLength int) ([]byte, error) {
	if maxLength <= 0 {
		return nil, fmt.Errorf("line length must be positive, got %d", maxLength)
	}
	if !h.Valid() {
		return nil, fmt.Errorf("handle %d out of range 1-%d", h, MaxHandle)
	}
	cmd := startCmd(prefix, CmdRead)
	cmd = append(cmd, CmdLine, h.digit(), Space)
	cmd = strconv.AppendInt(cmd, int64(maxLength), 10)
	return append(cmd, CarriageReturn), nil
}

// BuildWriteCmd constructs a write announcement; exactly count raw bytes follow.
//
// Command structure:
//
//	[prefix]W<h> <count>\r<data...>
func BuildWriteCmd(prefix string, h Handle, count int) ([]byte, error) {
	if count < 0 {
		return nil, fmt.Errorf("write count must not be negative, got %d", count)
	}
	cmd, err := handleHeader(prefix, CmdWrite, h)
	if err != nil {
		return nil, err
	}
	cmd = append(cmd, Space)
	cmd = strconv.AppendInt(cmd, int64(count), 10)
	return append(cmd, CarriageReturn), nil
}

// BuildWriteLineStartCmd constructs the command that opens a line write.
//
// Command structure:
//
//	Current: [prefix]WL<h>\r   (line ends with \r)
//	Legacy:  [prefix]W<h> 512\r (line ends when the module write time-out expires)
func BuildWriteLineStartCmd(d Dialect, prefix string, h Handle) ([]byte, error) {
	if d == Legacy {
		return BuildWriteCmd(prefix, h, LegacyLineLength)
	}
	if !h.Valid() {
		return nil, fmt.Errorf("handle %d out of range 1-%d", h, MaxHandle)
	}
	cmd := startCmd(prefix, CmdWrite)
	cmd = append(cmd, CmdLine, h.digit())
	return append(cmd, CarriageReturn), nil
}

// BuildSeekCmd constructs a seek to an absolute position.
//
// Command structure:
//
//	Current: [prefix]J<h> <pos>\r
//	Legacy:  [prefix]R<h> 0 <pos>\r (zero-length read at the target offset)
func BuildSeekCmd(d Dialect, prefix string, h Handle, position uint32) ([]byte, error) {
	op := byte(CmdSeek)
	if d == Legacy {
		op = CmdRead
	}
	cmd, err := handleHeader(prefix, op, h)
	if err != nil {
		return nil, err
	}
	if d == Legacy {
		cmd = append(cmd, Space, '0')
	}
	cmd = append(cmd, Space)
	cmd = strconv.AppendUint(cmd, uint64(position), 10)
	return append(cmd, CarriageReturn), nil
}

// BuildSeekEndCmd constructs a seek to the end of file (current dialect only).
//
// Command structure:
//
//	[prefix]J<h>E\r
func BuildSeekEndCmd(prefix string, h Handle) ([]byte, error) {
	cmd, err := handleHeader(prefix, CmdSeek, h)
	if err != nil {
		return nil, err
	}
	return append(cmd, CmdSeekEnd, CarriageReturn), nil
}

// BuildSetSettingCmd constructs a setting change. Player modules insert a T
// after the S.
//
// Command structure:
//
//	S[T]<key><value>\r
func BuildSetSettingCmd(m ModuleType, key byte, value int) ([]byte, error) {
	if value < 0 {
		return nil, fmt.Errorf("setting value must not be negative, got %d", value)
	}
	cmd := settingHeader(m, key)
	cmd = strconv.AppendInt(cmd, int64(value), 10)
	return append(cmd, CarriageReturn), nil
}

// BuildGetSettingCmd constructs a setting query. The reply is <value><prompt>.
//
// Command structure:
//
//	S[T]<key>\r
func BuildGetSettingCmd(m ModuleType, key byte) []byte {
	return append(settingHeader(m, key), CarriageReturn)
}

// BuildGetTimeCmd constructs the clock query (current dialect only).
// The reply is seven decimal fields, each followed by one separator byte;
// the last separator is the prompt.
//
// Command structure:
//
//	T\r
func BuildGetTimeCmd() []byte {
	return []byte{CmdTime, CarriageReturn}
}

// BuildSetTimeCmd constructs the clock update (current dialect only).
//
// Command structure:
//
//	T <year> <month> <day> <hour> <minute> <second>\r
func BuildSetTimeCmd(c Clock) ([]byte, error) {
	fields := []int{c.Year, c.Month, c.Day, c.Hour, c.Minute, c.Second}
	cmd := []byte{CmdTime}
	for _, f := range fields {
		if f < 0 {
			return nil, fmt.Errorf("clock field must not be negative, got %d", f)
		}
		cmd = append(cmd, Space)
		cmd = strconv.AppendInt(cmd, int64(f), 10)
	}
	return append(cmd, CarriageReturn), nil
}

// JoinMask appends a file mask to a path, inserting a separator unless the
// path is empty or already ends with one. A mask without a path is sent
// bare.
func JoinMask(path, mask string) string {
	if mask == "" {
		return path
	}
	if path != "" && path[len(path)-1] != PathSeparator {
		return path + string(PathSeparator) + mask
	}
	return path + mask
}

// joinRootedMask is JoinMask for the indexed entry query, which roots a
// mask given without a path at "/".
func joinRootedMask(path, mask string) string {
	if mask != "" && path == "" {
		return string(PathSeparator) + mask
	}
	return JoinMask(path, mask)
}

func startCmd(prefix string, op byte) []byte {
	cmd := make([]byte, 0, len(prefix)+16)
	cmd = append(cmd, prefix...)
	return append(cmd, op)
}

func handleHeader(prefix string, op byte, h Handle) ([]byte, error) {
	if !h.Valid() {
		return nil, fmt.Errorf("handle %d out of range 1-%d", h, MaxHandle)
	}
	return append(startCmd(prefix, op), h.digit()), nil
}

func handleCmd(prefix string, op byte, h Handle) ([]byte, error) {
	cmd, err := handleHeader(prefix, op, h)
	if err != nil {
		return nil, err
	}
	return append(cmd, CarriageReturn), nil
}

func settingHeader(m ModuleType, key byte) []byte {
	cmd := []byte{CmdSetting}
	if m != StorageOnly {
		cmd = append(cmd, PlayerSettingPrefix)
	}
	return append(cmd, key)
}

func validatePath(p string) error {
	if strings.IndexByte(p, CarriageReturn) >= 0 {
		return fmt.Errorf("path %q contains a carriage return", p)
	}
	return nil
}
