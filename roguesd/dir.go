package roguesd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/moffa90/go-roguesd/protocol"
)

// OpenDir opens a folder for listing with ReadDir. Current dialect only.
// Opening a folder rewinds the module's listing cursor.
func (c *Client) OpenDir(ctx context.Context, path string) error {
	if err := c.checkReady("open dir"); err != nil {
		return err
	}
	if err := c.requireCurrent("open dir"); err != nil {
		return err
	}
	return c.openDir(ctx, path)
}

func (c *Client) openDir(ctx context.Context, path string) error {
	const op = "open dir"
	cmd, err := protocol.BuildOpenDirCmd(c.prefix, path)
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

// FileCount counts the entries of path matching mask. An empty mask
// counts path itself, which yields 1 for an existing file; a mask with an
// empty path is sent as is. Current dialect only.
func (c *Client) FileCount(ctx context.Context, path, mask string) (int, error) {
	if err := c.checkReady("file count"); err != nil {
		return 0, err
	}
	if err := c.requireCurrent("file count"); err != nil {
		return 0, err
	}
	return c.fileCount(ctx, path, mask)
}

func (c *Client) fileCount(ctx context.Context, path, mask string) (int, error) {
	const op = "file count"
	cmd, err := protocol.BuildListCountCmd(c.prefix, path, mask)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if err := c.send(op, cmd); err != nil {
		return 0, err
	}
	if err := c.status(ctx, op); err != nil {
		return 0, err
	}
	n, err := c.rd.ReadNumber(ctx, 10)
	if err != nil {
		return 0, c.lost(fmt.Errorf("%s: %w", op, err))
	}
	if err := c.consumePrompt(ctx, op); err != nil {
		return 0, err
	}
	return int(n), nil
}

// ReadDir returns the next entry of the folder opened by OpenDir that
// matches mask (empty matches everything). At the end of the listing it
// returns io.EOF. Current dialect only.
func (c *Client) ReadDir(ctx context.Context, mask string) (protocol.DirEntry, error) {
	const op = "read dir"
	if err := c.checkReady(op); err != nil {
		return protocol.DirEntry{}, err
	}
	if err := c.requireCurrent(op); err != nil {
		return protocol.DirEntry{}, err
	}
	cmd, err := protocol.BuildReadDirCmd(c.prefix, mask)
	if err != nil {
		return protocol.DirEntry{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := c.send(op, cmd); err != nil {
		return protocol.DirEntry{}, err
	}
	if err := c.statusEOF(ctx, op); err != nil {
		return protocol.DirEntry{}, err
	}
	e, err := c.rd.ReadEntry(ctx, 0)
	if err != nil {
		return protocol.DirEntry{}, c.lost(fmt.Errorf("%s: %w", op, err))
	}
	return e, nil
}

// EntryName returns the entry at index among the entries of path matching
// mask. A mask with an empty path is looked up under the root. Names
// longer than capacity bytes are truncated; a capacity of 0 keeps the full
// name. Current dialect only.
func (c *Client) EntryName(ctx context.Context, index int, path, mask string, capacity int) (protocol.DirEntry, error) {
	const op = "entry name"
	if err := c.checkReady(op); err != nil {
		return protocol.DirEntry{}, err
	}
	if err := c.requireCurrent(op); err != nil {
		return protocol.DirEntry{}, err
	}
	cmd, err := protocol.BuildListEntryCmd(c.prefix, index, path, mask)
	if err != nil {
		return protocol.DirEntry{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := c.send(op, cmd); err != nil {
		return protocol.DirEntry{}, err
	}
	if err := c.status(ctx, op); err != nil {
		return protocol.DirEntry{}, err
	}
	e, err := c.rd.ReadEntry(ctx, capacity)
	if err != nil {
		return protocol.DirEntry{}, c.lost(fmt.Errorf("%s: %w", op, err))
	}
	return e, nil
}

// Entries lists the folder at path lazily. The sequence stops at the end of
// the listing or after yielding the first error. Iterating again reopens
// the folder and starts over.
//
// Example:
//
//	for e, err := range client.Entries(ctx, "/music", "*.mp3") {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(e.Name, e.Size)
//	}
func (c *Client) Entries(ctx context.Context, path, mask string) iter.Seq2[protocol.DirEntry, error] {
	return func(yield func(protocol.DirEntry, error) bool) {
		if err := c.OpenDir(ctx, path); err != nil {
			yield(protocol.DirEntry{}, err)
			return
		}
		for {
			e, err := c.ReadDir(ctx, mask)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(protocol.DirEntry{}, err)
				return
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}
