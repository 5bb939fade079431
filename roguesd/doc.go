// Package roguesd provides a high-level client for Rogue Robotics style
// storage modules (uMMC, uMP3, rMP3) attached over a serial link.
//
// # Overview
//
// A Client owns one session with one module:
//   - Synchronizing with the module and detecting its type and firmware
//   - Selecting the legacy or current command set
//   - Opening, reading, writing, seeking and closing remote files
//   - Listing folders, renaming and deleting entries
//   - Reading and changing settings and the real-time clock
//
// # Basic Usage
//
// The simplest way to read a file:
//
//	// User provides the link (see the transport package)
//	port, err := transport.OpenSerial("/dev/ttyUSB0", 9600)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
//
//	client := roguesd.New(port)
//	if err := client.Sync(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	f, err := client.OpenFile(ctx, "/log.txt", protocol.OpenRead)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer f.Close()
//	io.Copy(os.Stdout, f)
//
// # Dialects
//
// Older firmware (uMMC below 102.01, uMP3 below 111.01) speaks the legacy
// command set. Operations it lacks (directory listing, line reads, file
// size, the clock) fail with an error matching protocol.ErrNotSupported.
// Seeks and line writes are translated automatically.
//
// # Progress Tracking
//
// Track transfers with a callback:
//
//	client := roguesd.New(port,
//	    roguesd.WithProgressCallback(func(p roguesd.Progress) {
//	        fmt.Printf("[%s] %s %d/%d\n",
//	            p.Phase, p.Path, p.BytesDone, p.BytesTotal)
//	    }),
//	)
//	n, err := client.Download(ctx, "/data.bin", localFile)
//
// # Configuration Options
//
// Customize behavior with functional options:
//
//	client := roguesd.New(port,
//	    roguesd.WithLogger(myLogger),
//	    roguesd.WithMetrics(metrics.New(nil)),
//	    roguesd.WithSyncTimeout(2*time.Second),
//	    roguesd.WithChunkSize(256),
//	)
//
// # Context Support
//
// Every operation takes a context. Replies are awaited by polling the port
// without a deadline, so a module that stops answering blocks the caller
// until the context ends:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
//	defer cancel()
//
//	err := client.Remove(ctx, "/old.txt")
//
// # Error Handling
//
// Module failures are returned as *protocol.ModuleError and can be matched
// with errors.Is:
//
//	if errors.Is(err, protocol.ErrFileDoesNotExist) { ... }
//
// End of file is reported as io.EOF. An error matching protocol.ErrDesync
// means the reply stream is out of step; call Sync to recover. The last
// code is also kept in LastErrorCode.
//
// Local errors:
//   - ErrNotReady: Operation attempted before Sync succeeded
//   - ErrModuleAbsent: Nothing answered the sync byte
//   - VersionParseError: The version reply was malformed
//   - InvalidHandleError: Handle outside 1-9
//
// # Concurrency
//
// A Client is NOT safe for concurrent use. The module answers one command
// at a time and replies carry no identifiers, so callers must serialize
// access themselves.
package roguesd
