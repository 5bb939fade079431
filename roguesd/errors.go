package roguesd

import (
	"errors"
	"fmt"

	"github.com/moffa90/go-roguesd/protocol"
)

var (
	// ErrNotReady is returned by operations attempted before Sync succeeded.
	ErrNotReady = errors.New("session not ready: call Sync first")

	// ErrModuleAbsent is returned by Sync when nothing answers the ESC byte.
	ErrModuleAbsent = errors.New("no response from module")

	// ErrNoProgramMemory is returned by OpenProgram when no ProgramMemory is configured.
	ErrNoProgramMemory = errors.New("no program memory configured")
)

// VersionParseError indicates a version reply that could not be parsed.
// The session stays unusable until a later Sync succeeds.
type VersionParseError struct {
	Err error
}

func (e *VersionParseError) Error() string {
	return fmt.Sprintf("version negotiation failed: %v", e.Err)
}

func (e *VersionParseError) Unwrap() error {
	return e.Err
}

// InvalidHandleError indicates a handle that cannot be sent as a single digit.
type InvalidHandleError struct {
	Handle protocol.Handle
}

func (e *InvalidHandleError) Error() string {
	return fmt.Sprintf("handle %d is out of range: valid range is 1-%d",
		e.Handle, protocol.MaxHandle)
}

// PathTooLongError indicates a program memory path without a NUL terminator
// within protocol.MaxPathLength bytes.
type PathTooLongError struct {
	Addr  uint32
	Limit int
}

func (e *PathTooLongError) Error() string {
	return fmt.Sprintf("path at 0x%04X exceeds %d bytes", e.Addr, e.Limit)
}
