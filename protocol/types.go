package protocol

import (
	"fmt"
	"time"
)

// Dialect is the command set a module understands.
// It is chosen once per session from the module type and firmware version.
type Dialect uint8

const (
	// Legacy modules lack directory listing, line reads, direct seeks and the RTC
	Legacy Dialect = iota

	// Current modules support the full command set
	Current
)

func (d Dialect) String() string {
	switch d {
	case Legacy:
		return "legacy"
	case Current:
		return "current"
	default:
		return fmt.Sprintf("dialect(%d)", uint8(d))
	}
}

// ModuleType identifies the kind of module at the other end of the link.
type ModuleType uint8

const (
	// StorageOnly is the uMMC SD card module
	StorageOnly ModuleType = iota + 1

	// IndustrialPlayer is the uMP3 playback module
	IndustrialPlayer

	// CommercialPlayer is the rMP3 playback module
	CommercialPlayer
)

func (m ModuleType) String() string {
	switch m {
	case StorageOnly:
		return "uMMC"
	case IndustrialPlayer:
		return "uMP3"
	case CommercialPlayer:
		return "rMP3"
	default:
		return fmt.Sprintf("module(%d)", uint8(m))
	}
}

// Prefix returns the string sent before every file command.
func (m ModuleType) Prefix() string {
	if m == StorageOnly {
		return ""
	}
	return PlayerPrefix
}

// ResolveDialect picks the dialect for a module type and firmware code (major*100+minor).
func ResolveDialect(m ModuleType, firmware int) Dialect {
	switch {
	case m == StorageOnly && firmware < StorageCurrentFirmware:
		return Legacy
	case m == IndustrialPlayer && firmware < IndustrialCurrentFirmware:
		return Legacy
	default:
		return Current
	}
}

// Version is the parsed reply to the version command.
type Version struct {
	// Major is the firmware major number (mmm)
	Major int

	// Minor is the firmware minor number (nn)
	Minor int

	// Beta is the beta tag (bxxx) when the firmware is a beta build
	Beta string

	// Module is the module type read from the serial number
	Module ModuleType
}

// Code returns the version encoded as major*100+minor.
func (v Version) Code() int {
	return v.Major*100 + v.Minor
}

func (v Version) String() string {
	s := fmt.Sprintf("%d.%02d", v.Major, v.Minor)
	if v.Beta != "" {
		s += "-" + v.Beta
	}
	return s
}

// Handle identifies an open file slot on the module.
// The module allocates handles; zero means "no handle".
type Handle uint8

// NoHandle is returned when the module has no free handle.
const NoHandle Handle = 0

// Valid reports whether h can be sent as a single digit.
func (h Handle) Valid() bool {
	return h >= 1 && h <= MaxHandle
}

func (h Handle) digit() byte {
	return '0' + byte(h)
}

// OpenMode is the access mode requested when opening a file.
type OpenMode uint8

const (
	OpenRead OpenMode = iota + 1
	OpenWrite
	OpenReadWrite
	OpenAppend
)

// Token returns the mode as sent on the wire.
func (m OpenMode) Token() (string, error) {
	switch m {
	case OpenRead:
		return "R", nil
	case OpenWrite:
		return "W", nil
	case OpenReadWrite:
		return "RW", nil
	case OpenAppend:
		return "A", nil
	default:
		return "", fmt.Errorf("invalid open mode %d", uint8(m))
	}
}

func (m OpenMode) String() string {
	if t, err := m.Token(); err == nil {
		return t
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// FileInfo is a point-in-time snapshot of an open file.
type FileInfo struct {
	// Position is the current byte offset
	Position uint32

	// Size is the file length in bytes
	Size uint32
}

// Remaining returns the bytes between Position and Size.
func (fi FileInfo) Remaining() uint32 {
	if fi.Position >= fi.Size {
		return 0
	}
	return fi.Size - fi.Position
}

// EntryKind distinguishes files from folders.
type EntryKind uint8

const (
	EntryNone   EntryKind = 0
	EntryFile   EntryKind = 1
	EntryFolder EntryKind = 2
)

func (k EntryKind) String() string {
	switch k {
	case EntryNone:
		return "none"
	case EntryFile:
		return "file"
	case EntryFolder:
		return "folder"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// DirEntry is one entry of a directory listing.
type DirEntry struct {
	Name string
	Kind EntryKind

	// Size is the file size reported by the listing; zero for folders
	Size uint32
}

// IsDir reports whether the entry is a folder.
func (e DirEntry) IsDir() bool {
	return e.Kind == EntryFolder
}

// CardInfo is the reply to the card info command, in KiB.
type CardInfo struct {
	FreeKiB  uint32
	TotalKiB uint32
}

// Clock is the module real-time clock.
type Clock struct {
	Year    int
	Month   int
	Day     int
	Hour    int
	Minute  int
	Second  int
	Weekday int
}

// ClockFromTime converts t to the module clock representation.
func ClockFromTime(t time.Time) Clock {
	return Clock{
		Year:    t.Year(),
		Month:   int(t.Month()),
		Day:     t.Day(),
		Hour:    t.Hour(),
		Minute:  t.Minute(),
		Second:  t.Second(),
		Weekday: int(t.Weekday()),
	}
}

// Time returns the clock as a time.Time in loc.
func (c Clock) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(c.Year, time.Month(c.Month), c.Day, c.Hour, c.Minute, c.Second, 0, loc)
}
