package roguesd

import (
	"context"
	"fmt"
	"time"

	"github.com/moffa90/go-roguesd/protocol"
)

// FreeHandle asks the module for an unused handle.
// It returns protocol.NoHandle and a nil error when every handle is in use.
func (c *Client) FreeHandle(ctx context.Context) (protocol.Handle, error) {
	const op = "free handle"
	if err := c.checkReady(op); err != nil {
		return protocol.NoHandle, err
	}
	if err := c.send(op, protocol.BuildFreeHandleCmd(c.prefix)); err != nil {
		return protocol.NoHandle, err
	}

	b, err := c.rd.Peek(ctx)
	if err != nil {
		return protocol.NoHandle, c.lost(fmt.Errorf("%s: read reply: %w", op, err))
	}
	if b >= '1' && b <= '9' {
		if _, err := c.rd.Next(ctx); err != nil {
			return protocol.NoHandle, c.lost(fmt.Errorf("%s: %w", op, err))
		}
		if err := c.consumePrompt(ctx, op); err != nil {
			return protocol.NoHandle, err
		}
		return protocol.Handle(b - '0'), nil
	}

	err = c.status(ctx, op)
	if err == nil {
		// a bare prompt carries no handle
		return protocol.NoHandle, c.fail(op, protocol.CodeDesync)
	}
	if protocol.CodeOf(err) == protocol.CodeNoFreeFiles {
		return protocol.NoHandle, nil
	}
	return protocol.NoHandle, err
}

// Open allocates a free handle and opens path with it.
// When no handle is free the error matches protocol.ErrNoFreeFiles.
//
// Example:
//
//	h, err := client.Open(ctx, "/log.txt", protocol.OpenAppend)
//	if err != nil {
//	    return err
//	}
//	defer client.Close(ctx, h)
func (c *Client) Open(ctx context.Context, path string, mode protocol.OpenMode) (protocol.Handle, error) {
	h, err := c.FreeHandle(ctx)
	if err != nil {
		return protocol.NoHandle, err
	}
	if h == protocol.NoHandle {
		return protocol.NoHandle, c.fail("open", protocol.CodeNoFreeFiles)
	}
	if err := c.OpenHandle(ctx, h, path, mode); err != nil {
		return protocol.NoHandle, err
	}
	return h, nil
}

// OpenHandle opens path on a handle chosen by the caller.
func (c *Client) OpenHandle(ctx context.Context, h protocol.Handle, path string, mode protocol.OpenMode) error {
	const op = "open"
	if err := c.checkReady(op); err != nil {
		return err
	}
	if err := validHandle(h); err != nil {
		return err
	}
	cmd, err := protocol.BuildOpenCmd(c.prefix, h, mode, path)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := c.send(op, cmd); err != nil {
		return err
	}
	return c.status(ctx, op)
}

// OpenProgram opens a file whose NUL-terminated path is stored in the
// configured ProgramMemory at addr. The path is streamed to the module one
// byte at a time as it is read.
func (c *Client) OpenProgram(ctx context.Context, h protocol.Handle, addr uint32, mode protocol.OpenMode) error {
	const op = "open"
	if err := c.checkReady(op); err != nil {
		return err
	}
	if c.config.ProgramMemory == nil {
		return ErrNoProgramMemory
	}
	if err := validHandle(h); err != nil {
		return err
	}

	// validate the whole path before anything reaches the wire
	mem := c.config.ProgramMemory
	length := 0
	for ; mem.ReadProgramByte(addr+uint32(length)) != 0; length++ {
		if length >= protocol.MaxPathLength {
			return &PathTooLongError{Addr: addr, Limit: protocol.MaxPathLength}
		}
		if mem.ReadProgramByte(addr+uint32(length)) == protocol.CarriageReturn {
			return fmt.Errorf("%s: path at 0x%04X contains a carriage return", op, addr)
		}
	}

	header, err := protocol.BuildOpenHeader(c.prefix, h, mode)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := c.send(op, header); err != nil {
		return err
	}
	path := make([]byte, 0, length+1)
	for i := 0; i < length; i++ {
		path = append(path, mem.ReadProgramByte(addr+uint32(i)))
	}
	if err := c.writeRaw(append(path, protocol.CarriageReturn)); err != nil {
		return err
	}
	return c.status(ctx, op)
}

// Close closes one handle.
func (c *Client) Close(ctx context.Context, h protocol.Handle) error {
	const op = "close"
	if err := c.checkReady(op); err != nil {
		return err
	}
	if err := validHandle(h); err != nil {
		return err
	}
	cmd, err := protocol.BuildCloseCmd(c.prefix, h)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := c.send(op, cmd); err != nil {
		return err
	}
	return c.status(ctx, op)
}

// CloseAll closes every handle. Module errors are ignored; only transport
// failures are returned.
func (c *Client) CloseAll(ctx context.Context) error {
	if err := c.checkReady("close all"); err != nil {
		return err
	}
	return c.closeAll(ctx)
}

func (c *Client) closeAll(ctx context.Context) error {
	const op = "close all"
	if c.dialect == protocol.Current {
		if err := c.send(op, protocol.BuildCloseAllCmd(c.prefix)); err != nil {
			return err
		}
		if _, _, err := c.rd.ReadStatus(ctx, c.prompt); err != nil {
			return c.lost(fmt.Errorf("%s: read reply: %w", op, err))
		}
		return nil
	}

	for h := protocol.Handle(1); h <= protocol.LegacyMaxHandles; h++ {
		cmd, err := protocol.BuildCloseCmd(c.prefix, h)
		if err != nil {
			return err
		}
		if err := c.send(op, cmd); err != nil {
			return err
		}
		if _, _, err := c.rd.ReadStatus(ctx, c.prompt); err != nil {
			return c.lost(fmt.Errorf("%s: read reply: %w", op, err))
		}
	}
	return nil
}

// FileInfo returns the position and size of an open file.
func (c *Client) FileInfo(ctx context.Context, h protocol.Handle) (protocol.FileInfo, error) {
	if err := c.checkReady("file info"); err != nil {
		return protocol.FileInfo{}, err
	}
	return c.fileInfo(ctx, h)
}

func (c *Client) fileInfo(ctx context.Context, h protocol.Handle) (protocol.FileInfo, error) {
	const op = "file info"
	if err := validHandle(h); err != nil {
		return protocol.FileInfo{}, err
	}
	cmd, err := protocol.BuildFileInfoCmd(c.prefix, h)
	if err != nil {
		return protocol.FileInfo{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := c.send(op, cmd); err != nil {
		return protocol.FileInfo{}, err
	}
	if err := c.peekError(ctx, op); err != nil {
		return protocol.FileInfo{}, err
	}
	pos, size, err := c.rd.ReadPair(ctx)
	if err != nil {
		return protocol.FileInfo{}, c.lost(fmt.Errorf("%s: %w", op, err))
	}
	return protocol.FileInfo{Position: pos, Size: size}, nil
}

// Size returns the size of the file at path without opening it.
// Current dialect only. A folder fails with protocol.ErrNotAFile, a missing
// path with protocol.ErrFileDoesNotExist.
func (c *Client) Size(ctx context.Context, path string) (uint32, error) {
	const op = "size"
	if err := c.checkReady(op); err != nil {
		return 0, err
	}
	if err := c.requireCurrent(op); err != nil {
		return 0, err
	}

	kind, err := c.exists(ctx, path)
	if err != nil {
		return 0, err
	}
	switch kind {
	case protocol.EntryFolder:
		return 0, c.fail(op, protocol.CodeNotAFile)
	case protocol.EntryNone:
		return 0, c.fail(op, protocol.CodeFileDoesNotExist)
	}

	cmd, err := protocol.BuildSizeCmd(c.prefix, path)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if err := c.send(op, cmd); err != nil {
		return 0, err
	}
	if err := c.status(ctx, op); err != nil {
		return 0, err
	}
	size, err := c.rd.ReadNumber(ctx, 10)
	if err != nil {
		return 0, c.lost(fmt.Errorf("%s: %w", op, err))
	}
	if err := c.rd.DiscardThrough(ctx, protocol.CarriageReturn); err != nil {
		return 0, c.lost(fmt.Errorf("%s: %w", op, err))
	}
	if err := c.consumePrompt(ctx, op); err != nil {
		return 0, err
	}
	n, err := protocol.Uint32(size)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// Exists reports whether path is a folder, a file or missing.
// Current dialect only.
//
// The answer takes two round trips (open as a folder, then count matching
// files) and is not atomic: another writer on the card can change it in
// between.
func (c *Client) Exists(ctx context.Context, path string) (protocol.EntryKind, error) {
	if err := c.checkReady("exists"); err != nil {
		return protocol.EntryNone, err
	}
	if err := c.requireCurrent("exists"); err != nil {
		return protocol.EntryNone, err
	}
	return c.exists(ctx, path)
}

func (c *Client) exists(ctx context.Context, path string) (protocol.EntryKind, error) {
	err := c.openDir(ctx, path)
	if err == nil {
		return protocol.EntryFolder, nil
	}
	if !protocol.IsModuleError(err) {
		return protocol.EntryNone, err
	}

	n, err := c.fileCount(ctx, path, "")
	if err != nil {
		if protocol.IsModuleError(err) {
			return protocol.EntryNone, nil
		}
		return protocol.EntryNone, err
	}
	if n == 1 {
		return protocol.EntryFile, nil
	}
	return protocol.EntryNone, nil
}

// ReadByteFrom reads one byte from an open file.
// At end of file it returns io.EOF.
func (c *Client) ReadByteFrom(ctx context.Context, h protocol.Handle) (byte, error) {
	const op = "read"
	if err := c.checkReady(op); err != nil {
		return 0, err
	}
	if err := validHandle(h); err != nil {
		return 0, err
	}
	cmd, err := protocol.BuildReadCmd(c.prefix, h, 1)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if err := c.send(op, cmd); err != nil {
		return 0, err
	}
	if err := c.statusEOF(ctx, op); err != nil {
		return 0, err
	}
	b, err := c.rd.Next(ctx)
	if err != nil {
		return 0, c.lost(fmt.Errorf("%s: %w", op, err))
	}
	if err := c.consumePrompt(ctx, op); err != nil {
		return 0, err
	}
	c.countBytes(DirectionRead, 1)
	return b, nil
}

// Read reads up to len(dest) bytes from an open file.
//
// The request is clamped to the bytes remaining in the file, so the reply
// length is always known in advance. When nothing remains Read returns 0
// and a nil error without sending a read command. A module end-of-file
// error is returned as io.EOF.
func (c *Client) Read(ctx context.Context, h protocol.Handle, dest []byte) (int, error) {
	const op = "read"
	if err := c.checkReady(op); err != nil {
		return 0, err
	}

	fi, err := c.fileInfo(ctx, h)
	if err != nil {
		return 0, err
	}
	n := len(dest)
	if remaining := fi.Remaining(); uint64(n) > uint64(remaining) {
		n = int(remaining)
	}
	if n == 0 {
		return 0, nil
	}

	cmd, err := protocol.BuildReadCmd(c.prefix, h, n)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if err := c.send(op, cmd); err != nil {
		return 0, err
	}
	if err := c.statusEOF(ctx, op); err != nil {
		return 0, err
	}
	if err := c.rd.ReadFull(ctx, dest[:n]); err != nil {
		return 0, c.lost(fmt.Errorf("%s: %w", op, err))
	}
	if err := c.consumePrompt(ctx, op); err != nil {
		return 0, err
	}
	c.countBytes(DirectionRead, n)
	return n, nil
}

// ReadLine reads one line of at most maxLength bytes. Current dialect only.
// The line ends where the prompt reappears, so it must not contain the
// prompt character. At end of file it returns io.EOF.
func (c *Client) ReadLine(ctx context.Context, h protocol.Handle, maxLength int) ([]byte, error) {
	const op = "read line"
	if err := c.checkReady(op); err != nil {
		return nil, err
	}
	if err := c.requireCurrent(op); err != nil {
		return nil, err
	}
	if err := validHandle(h); err != nil {
		return nil, err
	}
	cmd, err := protocol.BuildReadLineCmd(c.prefix, h, maxLength)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := c.send(op, cmd); err != nil {
		return nil, err
	}
	if err := c.statusEOF(ctx, op); err != nil {
		return nil, err
	}
	line, err := c.rd.ReadUntil(ctx, c.prompt, 0)
	if err != nil {
		return nil, c.lost(fmt.Errorf("%s: %w", op, err))
	}
	c.countBytes(DirectionRead, len(line))
	return line, nil
}

// Write writes data to an open file in a single command.
func (c *Client) Write(ctx context.Context, h protocol.Handle, data []byte) error {
	const op = "write"
	if err := c.checkReady(op); err != nil {
		return err
	}
	if err := validHandle(h); err != nil {
		return err
	}
	cmd, err := protocol.BuildWriteCmd(c.prefix, h, len(data))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := c.send(op, cmd); err != nil {
		return err
	}
	if err := c.writeRaw(data); err != nil {
		return err
	}
	if err := c.status(ctx, op); err != nil {
		return err
	}
	c.countBytes(DirectionWrite, len(data))
	return nil
}

// WriteByteTo writes a single byte to an open file.
func (c *Client) WriteByteTo(ctx context.Context, h protocol.Handle, b byte) error {
	return c.Write(ctx, h, []byte{b})
}

// WriteString writes s to an open file.
func (c *Client) WriteString(ctx context.Context, h protocol.Handle, s string) error {
	return c.Write(ctx, h, []byte(s))
}

// WriteLine writes data followed by a line terminator. Data from the first
// carriage return onward is dropped.
func (c *Client) WriteLine(ctx context.Context, h protocol.Handle, data []byte) error {
	lw, err := c.StartLine(ctx, h)
	if err != nil {
		return err
	}
	if _, err := lw.Write(data); err != nil {
		return err
	}
	return lw.Finish(ctx)
}

// StartLine opens a line write on h. Write the line with the returned
// LineWriter, then call Finish.
//
// On legacy modules the line is announced as a 512 byte write and ended by
// the module's 10 ms write time-out. The caller MUST start writing within
// that window: if the link stays idle for 10 ms after StartLine returns,
// the module silently ends the write with whatever it has received, and
// the remaining bytes are interpreted as commands.
func (c *Client) StartLine(ctx context.Context, h protocol.Handle) (*LineWriter, error) {
	const op = "write line"
	if err := c.checkReady(op); err != nil {
		return nil, err
	}
	if err := validHandle(h); err != nil {
		return nil, err
	}
	cmd, err := protocol.BuildWriteLineStartCmd(c.dialect, c.prefix, h)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := c.send(op, cmd); err != nil {
		return nil, err
	}
	return &LineWriter{c: c}, nil
}

// LineWriter streams the body of a line write.
type LineWriter struct {
	c      *Client
	n      int
	ended  bool
	closed bool
}

// Write sends p up to, but excluding, its first carriage return. Everything
// after the first carriage return, in this and later calls, is dropped.
func (w *LineWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("write line: already finished")
	}
	if w.ended {
		return len(p), nil
	}
	body := p
	for i, b := range p {
		if b == protocol.CarriageReturn {
			body = p[:i]
			w.ended = true
			break
		}
	}
	if err := w.c.writeRaw(body); err != nil {
		return 0, err
	}
	w.n += len(body)
	return len(p), nil
}

// Finish terminates the line and reads the module's reply.
func (w *LineWriter) Finish(ctx context.Context) error {
	const op = "write line"
	if w.closed {
		return fmt.Errorf("%s: already finished", op)
	}
	w.closed = true

	if w.c.dialect == protocol.Current {
		if err := w.c.writeRaw([]byte{protocol.CarriageReturn}); err != nil {
			return err
		}
	} else {
		t := time.NewTimer(w.c.config.LineFinishDelay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return w.c.lost(ctx.Err())
		case <-t.C:
		}
	}

	if err := w.c.status(ctx, op); err != nil {
		return err
	}
	w.c.countBytes(DirectionWrite, w.n)
	return nil
}

// SeekTo moves the position of an open file.
func (c *Client) SeekTo(ctx context.Context, h protocol.Handle, position uint32) error {
	if err := c.checkReady("seek"); err != nil {
		return err
	}
	return c.seek(ctx, h, position)
}

func (c *Client) seek(ctx context.Context, h protocol.Handle, position uint32) error {
	const op = "seek"
	if err := validHandle(h); err != nil {
		return err
	}
	cmd, err := protocol.BuildSeekCmd(c.dialect, c.prefix, h, position)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := c.send(op, cmd); err != nil {
		return err
	}
	return c.status(ctx, op)
}

// SeekToEnd moves the position of an open file to its end.
// Legacy modules need a file info query first.
func (c *Client) SeekToEnd(ctx context.Context, h protocol.Handle) error {
	const op = "seek"
	if err := c.checkReady(op); err != nil {
		return err
	}
	if c.dialect == protocol.Legacy {
		fi, err := c.fileInfo(ctx, h)
		if err != nil {
			return err
		}
		return c.seek(ctx, h, fi.Size)
	}

	if err := validHandle(h); err != nil {
		return err
	}
	cmd, err := protocol.BuildSeekEndCmd(c.prefix, h)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := c.send(op, cmd); err != nil {
		return err
	}
	return c.status(ctx, op)
}

// Remove deletes a file or an empty folder.
func (c *Client) Remove(ctx context.Context, path string) error {
	return c.remove(ctx, "remove", path)
}

// RemoveDir deletes an empty folder. The module uses the same command for
// files and folders.
func (c *Client) RemoveDir(ctx context.Context, path string) error {
	return c.remove(ctx, "remove dir", path)
}

func (c *Client) remove(ctx context.Context, op, path string) error {
	if err := c.checkReady(op); err != nil {
		return err
	}
	cmd, err := protocol.BuildRemoveCmd(c.prefix, path)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := c.send(op, cmd); err != nil {
		return err
	}
	return c.status(ctx, op)
}

// Rename renames or moves a file or folder.
func (c *Client) Rename(ctx context.Context, oldPath, newPath string) error {
	const op = "rename"
	if err := c.checkReady(op); err != nil {
		return err
	}
	cmd, err := protocol.BuildRenameCmd(c.prefix, oldPath, newPath)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := c.send(op, cmd); err != nil {
		return err
	}
	return c.status(ctx, op)
}

// Status checks the card (h == protocol.NoHandle) or an open handle.
func (c *Client) Status(ctx context.Context, h protocol.Handle) error {
	const op = "status"
	if err := c.checkReady(op); err != nil {
		return err
	}
	if h != protocol.NoHandle {
		if err := validHandle(h); err != nil {
			return err
		}
	}
	cmd, err := protocol.BuildStatusCmd(c.prefix, h)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := c.send(op, cmd); err != nil {
		return err
	}
	if err := c.status(ctx, op); err != nil {
		return err
	}
	return c.consumePrompt(ctx, op)
}

// CardInfo returns the free and total card space in KiB.
func (c *Client) CardInfo(ctx context.Context) (protocol.CardInfo, error) {
	const op = "card info"
	if err := c.checkReady(op); err != nil {
		return protocol.CardInfo{}, err
	}
	if err := c.send(op, protocol.BuildCardInfoCmd(c.prefix)); err != nil {
		return protocol.CardInfo{}, err
	}
	if err := c.peekError(ctx, op); err != nil {
		return protocol.CardInfo{}, err
	}
	free, total, err := c.rd.ReadPair(ctx)
	if err != nil {
		return protocol.CardInfo{}, c.lost(fmt.Errorf("%s: %w", op, err))
	}
	return protocol.CardInfo{FreeKiB: free, TotalKiB: total}, nil
}
