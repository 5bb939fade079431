package roguesd

import "time"

// Transfer phases reported in Progress.
const (
	PhaseOpening      = "opening"
	PhaseTransferring = "transferring"
	PhaseClosing      = "closing"
	PhaseComplete     = "complete"
)

// Progress contains information about a running file transfer.
// Passed to ProgressCallback during Download and Upload.
type Progress struct {
	// Phase describes the current operation phase:
	//   "opening"      - Allocating a handle and opening the remote file
	//   "transferring" - Moving data in ChunkSize requests
	//   "closing"      - Closing the remote handle
	//   "complete"     - Transfer finished successfully
	Phase string

	// Operation is "download" or "upload"
	Operation string

	// Path is the remote path being transferred
	Path string

	// BytesDone is the number of bytes moved so far
	BytesDone int64

	// BytesTotal is the expected transfer size, or 0 when unknown
	BytesTotal int64

	// Percentage is the completion percentage (0.0 to 100.0).
	// It stays at 0 until completion when BytesTotal is unknown.
	Percentage float64

	// ElapsedTime is the time elapsed since the transfer started
	ElapsedTime time.Duration
}

// ProgressCallback is called after every chunk of a transfer.
// Implementations should return quickly to avoid stalling the link.
//
// Example:
//
//	client := roguesd.New(port,
//	    roguesd.WithProgressCallback(func(p roguesd.Progress) {
//	        fmt.Printf("[%s] %s %.1f%%\n", p.Phase, p.Path, p.Percentage)
//	    }),
//	)
type ProgressCallback func(Progress)

// Logger is an optional logging interface that can be provided to the client.
// This allows integration with any logging framework.
//
// Example with standard log package:
//
//	type StdLogger struct{}
//	func (l *StdLogger) Debug(msg string, kv ...interface{}) { log.Println(msg, kv) }
//	func (l *StdLogger) Info(msg string, kv ...interface{})  { log.Println(msg, kv) }
//	func (l *StdLogger) Error(msg string, kv ...interface{}) { log.Println(msg, kv) }
//
//	client := roguesd.New(port, roguesd.WithLogger(&StdLogger{}))
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...interface{})

	// Info logs an info message with optional key-value pairs
	Info(msg string, keysAndValues ...interface{})

	// Error logs an error message with optional key-value pairs
	Error(msg string, keysAndValues ...interface{})
}

// Transfer directions reported to Metrics.BytesTransferred.
const (
	DirectionRead  = "read"
	DirectionWrite = "write"
)

// Metrics receives counters for every command exchanged with the module.
// The metrics package provides a Prometheus implementation.
type Metrics interface {
	// CommandSent is called once per command line written
	CommandSent(op string)

	// CommandFailed is called when the module (or the client) reports an error code
	CommandFailed(op string, code byte)

	// BytesTransferred is called with the payload size of reads and writes
	BytesTransferred(direction string, n int)
}

// ProgramMemory is a read-only byte store that file paths can be sourced
// from, as used by OpenProgram. Paths are NUL terminated.
type ProgramMemory interface {
	ReadProgramByte(addr uint32) byte
}

// ProgramImage is a ProgramMemory backed by a byte slice.
// Reads past the end return NUL.
type ProgramImage []byte

// ReadProgramByte returns the byte at addr.
func (p ProgramImage) ReadProgramByte(addr uint32) byte {
	if uint64(addr) >= uint64(len(p)) {
		return 0
	}
	return p[addr]
}
