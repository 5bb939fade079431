package roguesd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/moffa90/go-roguesd/protocol"
)

// closeTimeout bounds the close issued after a failed transfer.
const closeTimeout = time.Second

// Download copies the remote file at path into w:
//  1. Open the file for reading on a free handle
//  2. Read it in ChunkSize requests with progress tracking
//  3. Close the handle
//
// It returns the number of bytes copied. The operation can be cancelled
// via context; the handle is closed on every path.
func (c *Client) Download(ctx context.Context, path string, w io.Writer) (int64, error) {
	const operation = "download"
	startTime := time.Now()

	c.reportProgress(Progress{Phase: PhaseOpening, Operation: operation, Path: path})

	f, err := c.OpenFile(ctx, path, protocol.OpenRead)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}

	fi, err := f.Stat()
	if err != nil {
		c.closeQuietly(f)
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	total := int64(fi.Size)

	var done int64
	buf := make([]byte, c.config.ChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			c.closeQuietly(f)
			return done, fmt.Errorf("cancelled: %w", err)
		}

		n, err := f.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				c.closeQuietly(f)
				return done, fmt.Errorf("write local: %w", werr)
			}
			done += int64(n)
			c.reportProgress(Progress{
				Phase:       PhaseTransferring,
				Operation:   operation,
				Path:        path,
				BytesDone:   done,
				BytesTotal:  total,
				Percentage:  percentage(done, total),
				ElapsedTime: time.Since(startTime),
			})
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			c.closeQuietly(f)
			return done, fmt.Errorf("read %s: %w", path, err)
		}
	}

	if err := c.finishTransfer(f, operation, path, done, total, startTime); err != nil {
		return done, err
	}
	return done, nil
}

// Upload copies r into the remote file at path, opened in write mode.
// The total size is reported in Progress when r has a Len method
// (bytes.Reader, strings.Reader, bytes.Buffer).
//
// It returns the number of bytes copied.
func (c *Client) Upload(ctx context.Context, path string, r io.Reader) (int64, error) {
	const operation = "upload"
	startTime := time.Now()

	var total int64
	if l, ok := r.(interface{ Len() int }); ok {
		total = int64(l.Len())
	}

	c.reportProgress(Progress{Phase: PhaseOpening, Operation: operation, Path: path, BytesTotal: total})

	f, err := c.OpenFile(ctx, path, protocol.OpenWrite)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}

	var done int64
	buf := make([]byte, c.config.ChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			c.closeQuietly(f)
			return done, fmt.Errorf("cancelled: %w", err)
		}

		n, rerr := r.Read(buf)
		if n > 0 {
			if err := c.Write(ctx, f.h, buf[:n]); err != nil {
				c.closeQuietly(f)
				return done, fmt.Errorf("write %s: %w", path, err)
			}
			done += int64(n)
			c.reportProgress(Progress{
				Phase:       PhaseTransferring,
				Operation:   operation,
				Path:        path,
				BytesDone:   done,
				BytesTotal:  total,
				Percentage:  percentage(done, total),
				ElapsedTime: time.Since(startTime),
			})
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			c.closeQuietly(f)
			return done, fmt.Errorf("read local: %w", rerr)
		}
	}

	if total == 0 {
		total = done
	}
	if err := c.finishTransfer(f, operation, path, done, total, startTime); err != nil {
		return done, err
	}
	return done, nil
}

func (c *Client) finishTransfer(f *File, operation, path string, done, total int64, startTime time.Time) error {
	c.reportProgress(Progress{
		Phase:       PhaseClosing,
		Operation:   operation,
		Path:        path,
		BytesDone:   done,
		BytesTotal:  total,
		Percentage:  percentage(done, total),
		ElapsedTime: time.Since(startTime),
	})

	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	c.reportProgress(Progress{
		Phase:       PhaseComplete,
		Operation:   operation,
		Path:        path,
		BytesDone:   done,
		BytesTotal:  total,
		Percentage:  100,
		ElapsedTime: time.Since(startTime),
	})

	c.logInfo(operation+" complete",
		"path", path,
		"bytes", done,
		"elapsed", time.Since(startTime).String(),
	)
	return nil
}

// closeQuietly releases the handle after a failed transfer. The close runs
// detached from the transfer's context, which may already be cancelled.
func (c *Client) closeQuietly(f *File) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(f.ctx), closeTimeout)
	defer cancel()
	if err := c.Close(ctx, f.h); err != nil {
		c.logError("close after failed transfer", "path", f.path, "error", err)
	}
}

func percentage(done, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(done) / float64(total) * 100
}

// reportProgress calls the progress callback if configured.
func (c *Client) reportProgress(progress Progress) {
	if c.config.ProgressCallback != nil {
		c.config.ProgressCallback(progress)
	}
}
