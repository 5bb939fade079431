// Package protocol implements the wire protocol of Rogue Robotics style
// storage modules (uMMC, uMP3, rMP3).
//
// This package provides functions to build command lines and to parse the
// replies as they arrive on a byte stream.
//
// # Protocol Overview
//
// The protocol is ASCII and line oriented. The host sends one command per
// line; the module answers and then prints its prompt character:
//
//	Command: [prefix]<cmd>[handle][ args...]\r
//	Reply:   ' ' [data...] <prompt>     success with data
//	         <prompt>                   success without data
//	         E<hex code> <prompt>       failure
//
// Where:
//   - prefix is "FC" on player modules and empty on the storage module
//   - handle is a single ASCII digit naming an open file
//   - prompt is '>' until negotiated otherwise
//
// Modules come in two dialects. Legacy firmware (uMMC below 102.01, uMP3
// below 111.01) lacks directory listing, line reads, direct seeks and the
// clock; ResolveDialect picks the dialect from the version reply.
//
// # Command Builders
//
// Use the Build* functions to create command lines:
//
//	cmd, err := protocol.BuildOpenCmd(prefix, 1, protocol.OpenRead, "/log.txt")
//	cmd, err := protocol.BuildSeekCmd(protocol.Legacy, prefix, 1, 1024)
//	// ... etc
//
// # Reply Parsing
//
// Replies are not framed, so they are parsed straight off the stream with a
// Reader:
//
//	rd := protocol.NewReader(port, protocol.PollInterval)
//	ok, code, err := rd.ReadStatus(ctx, prompt)
//	if err == nil && !ok {
//	    return &protocol.ModuleError{Operation: "open", Code: code}
//	}
//
// Reader waits for every byte by polling. Reads have no deadline other than
// the context: a module that stops talking blocks the caller.
//
// # Error Handling
//
// Module failures are reported as ModuleError. errors.Is matches on the code:
//
//	if errors.Is(err, protocol.ErrFileDoesNotExist) {
//	    // ...
//	}
//
// CodeDesync marks a byte that was neither a success nor an error marker;
// the stream must be resynchronised before it can be trusted again.
package protocol
