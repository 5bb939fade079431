package roguesd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/moffa90/go-roguesd/protocol"
)

// File is an open remote file bound to the context it was opened with.
// It implements io.Reader, io.Writer, io.Seeker and io.Closer so remote
// files can be used with io.Copy and friends.
//
// Like the Client, a File is not safe for concurrent use.
type File struct {
	c    *Client
	ctx  context.Context
	h    protocol.Handle
	path string
}

var (
	_ io.ReadWriteSeeker = (*File)(nil)
	_ io.Closer          = (*File)(nil)
)

// OpenFile opens path on a free handle. Every later call on the File uses ctx.
//
// Example:
//
//	f, err := client.OpenFile(ctx, "/log.txt", protocol.OpenRead)
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
//	_, err = io.Copy(os.Stdout, f)
func (c *Client) OpenFile(ctx context.Context, path string, mode protocol.OpenMode) (*File, error) {
	h, err := c.Open(ctx, path, mode)
	if err != nil {
		return nil, err
	}
	return &File{c: c, ctx: ctx, h: h, path: path}, nil
}

// Name returns the remote path.
func (f *File) Name() string { return f.path }

// Handle returns the module handle backing the file.
func (f *File) Handle() protocol.Handle { return f.h }

// Read reads up to len(p) bytes, at most ChunkSize per request.
// It returns io.EOF once the position reaches the end of the file.
func (f *File) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(p) > f.c.config.ChunkSize {
		p = p[:f.c.config.ChunkSize]
	}
	n, err := f.c.Read(f.ctx, f.h, p)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write writes p in ChunkSize requests.
func (f *File) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		end := written + f.c.config.ChunkSize
		if end > len(p) {
			end = len(p)
		}
		if err := f.c.Write(f.ctx, f.h, p[written:end]); err != nil {
			return written, err
		}
		written = end
	}
	return written, nil
}

// Seek sets the position for the next Read or Write.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent, io.SeekEnd:
		fi, err := f.c.FileInfo(f.ctx, f.h)
		if err != nil {
			return 0, err
		}
		if whence == io.SeekCurrent {
			base = int64(fi.Position)
		} else {
			base = int64(fi.Size)
		}
	default:
		return 0, fmt.Errorf("seek: invalid whence %d", whence)
	}

	pos := base + offset
	if pos < 0 {
		return 0, errors.New("seek: negative position")
	}
	if pos > math.MaxUint32 {
		return 0, fmt.Errorf("seek: position %d beyond 4 GiB", pos)
	}
	if err := f.c.SeekTo(f.ctx, f.h, uint32(pos)); err != nil {
		return 0, err
	}
	return pos, nil
}

// Stat returns the current position and size.
func (f *File) Stat() (protocol.FileInfo, error) {
	return f.c.FileInfo(f.ctx, f.h)
}

// Close releases the handle.
func (f *File) Close() error {
	return f.c.Close(f.ctx, f.h)
}
