package protocol

import (
	"errors"
	"fmt"
)

// ModuleError represents an error reported by the module, or synthesized
// locally for unsupported operations and lost synchronization.
type ModuleError struct {
	// Operation is the command that failed
	Operation string

	// Code is the module error code
	Code byte
}

func (e *ModuleError) Error() string {
	if e.Operation == "" {
		return fmt.Sprintf("%s (0x%02X)", CodeName(e.Code), e.Code)
	}
	return fmt.Sprintf("%s failed: %s (0x%02X)", e.Operation, CodeName(e.Code), e.Code)
}

// Is matches any ModuleError carrying the same code, so callers can
// compare against the sentinels below with errors.Is.
func (e *ModuleError) Is(target error) bool {
	t, ok := target.(*ModuleError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrNoFreeFiles      = &ModuleError{Code: CodeNoFreeFiles}
	ErrUnrecognized     = &ModuleError{Code: CodeUnrecognizedCommand}
	ErrCardNotInserted  = &ModuleError{Code: CodeCardNotInserted}
	ErrEOF              = &ModuleError{Code: CodeEOF}
	ErrInvalidHandle    = &ModuleError{Code: CodeInvalidHandle}
	ErrFileExists       = &ModuleError{Code: CodeFileAlreadyExists}
	ErrFileDoesNotExist = &ModuleError{Code: CodeFileDoesNotExist}
	ErrHandleInUse      = &ModuleError{Code: CodeOpenHandleInUse}
	ErrNoFreeSpace      = &ModuleError{Code: CodeNoFreeSpace}
	ErrNotAFile         = &ModuleError{Code: CodeNotAFile}
	ErrNotADir          = &ModuleError{Code: CodeNotADir}
	ErrNotSupported     = &ModuleError{Code: CodeNotSupported}
	ErrDesync           = &ModuleError{Code: CodeDesync}
)

// IsModuleError returns true if err is or wraps a ModuleError.
func IsModuleError(err error) bool {
	var me *ModuleError
	return errors.As(err, &me)
}

// IsDesync reports whether err signals lost byte-stream alignment.
// The only recovery is to run the sync handshake again.
func IsDesync(err error) bool {
	return errors.Is(err, ErrDesync)
}

// CodeOf extracts the module error code from err, or 0 when err is not a ModuleError.
func CodeOf(err error) byte {
	var me *ModuleError
	if errors.As(err, &me) {
		return me.Code
	}
	return 0
}

// CodeName returns a human-readable name for an error code.
func CodeName(code byte) string {
	switch code {
	case CodeBufferOverrun:
		return "buffer overrun"
	case CodeNoFreeFiles:
		return "no free files"
	case CodeUnrecognizedCommand:
		return "unrecognized command"
	case CodeCardInitializationFail:
		return "card initialization error"
	case CodeFormattingError:
		return "formatting error"
	case CodeEOF:
		return "end of file"
	case CodeCardNotInserted:
		return "card not inserted"
	case CodeResetFail:
		return "card reset failure"
	case CodeCardWriteProtected:
		return "card write protected"
	case CodeInvalidHandle:
		return "invalid handle"
	case CodeOpenPathInvalid:
		return "path invalid"
	case CodeFileAlreadyExists:
		return "file already exists"
	case CodeDECreationFailure:
		return "directory entry creation failure"
	case CodeFileDoesNotExist:
		return "file does not exist"
	case CodeOpenHandleInUse:
		return "handle in use"
	case CodeOpenNoFreeHandles:
		return "no free handles"
	case CodeFATFailure:
		return "FAT failure"
	case CodeSeekNotOpen:
		return "seek on closed file"
	case CodeOpenModeInvalid:
		return "invalid open mode"
	case CodeReadImproperMode:
		return "file not open for reading"
	case CodeFileNotOpen:
		return "file not open"
	case CodeNoFreeSpace:
		return "no free space"
	case CodeWriteImproperMode:
		return "file not open for writing"
	case CodeWriteFailure:
		return "write failure"
	case CodeNotAFile:
		return "not a file"
	case CodeOpenReadOnlyFile:
		return "file is read-only"
	case CodeNotADir:
		return "not a directory"
	case CodeNotSupported:
		return "not supported by firmware"
	case CodeDesync:
		return "unexpected response byte"
	default:
		return fmt.Sprintf("unknown error code 0x%02X", code)
	}
}
