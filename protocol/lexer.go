package protocol

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrNumberRange reports a numeric reply that does not fit its field.
var ErrNumberRange = errors.New("number out of range")

// ByteSource is the read half of the link to the module.
//
// ReadByte is only valid after Available has reported true; PeekByte returns
// the same byte without consuming it.
type ByteSource interface {
	Available() bool
	ReadByte() (byte, error)
	PeekByte() (byte, error)
}

// Reader extracts bytes, numbers and status markers from a ByteSource.
//
// Every read polls Available at a fixed interval. Reads without a timeout
// have no upper bound on their latency: a silent module blocks the caller
// until ctx is cancelled. This wait is the only suspension point of the
// protocol engine.
type Reader struct {
	src  ByteSource
	poll time.Duration
}

// NewReader creates a Reader polling src every poll interval.
// A non-positive interval selects PollInterval.
func NewReader(src ByteSource, poll time.Duration) *Reader {
	if poll <= 0 {
		poll = PollInterval
	}
	return &Reader{src: src, poll: poll}
}

// wait blocks until a byte is available or ctx ends.
func (r *Reader) wait(ctx context.Context) error {
	for !r.src.Available() {
		if err := r.sleep(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reader) sleep(ctx context.Context) error {
	t := time.NewTimer(r.poll)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Next returns the next byte, waiting for it without a deadline.
func (r *Reader) Next(ctx context.Context) (byte, error) {
	if err := r.wait(ctx); err != nil {
		return 0, err
	}
	return r.src.ReadByte()
}

// Peek returns the next byte without consuming it.
func (r *Reader) Peek(ctx context.Context) (byte, error) {
	if err := r.wait(ctx); err != nil {
		return 0, err
	}
	return r.src.PeekByte()
}

// ReadTimeout waits at most d for a byte. ok is false when nothing arrived.
func (r *Reader) ReadTimeout(ctx context.Context, d time.Duration) (b byte, ok bool, err error) {
	for remaining := d; ; remaining -= r.poll {
		if r.src.Available() {
			b, err = r.src.ReadByte()
			return b, err == nil, err
		}
		if remaining <= 0 {
			return 0, false, nil
		}
		if err := r.sleep(ctx); err != nil {
			return 0, false, err
		}
	}
}

// ReadNumber reads a signed integer in the given base (2 to 36).
//
// A leading '-' negates the value. Digits are consumed greedily; letters map
// to 10..35 regardless of case. The first byte that is not a digit of the
// base is left in the stream. A number without digits reads as 0. A value
// beyond int64 fails with ErrNumberRange; the digits read so far are
// consumed and the rest stay in the stream.
func (r *Reader) ReadNumber(ctx context.Context, base int) (int64, error) {
	if base < 2 || base > 36 {
		return 0, fmt.Errorf("base %d out of range 2-36", base)
	}

	c, err := r.Peek(ctx)
	if err != nil {
		return 0, err
	}

	neg := false
	if c == '-' {
		neg = true
		if _, err := r.src.ReadByte(); err != nil {
			return 0, err
		}
		if c, err = r.Peek(ctx); err != nil {
			return 0, err
		}
	}

	var val int64
	for {
		d, ok := digitValue(c)
		if !ok || d >= base {
			break
		}
		if val > (math.MaxInt64-int64(d))/int64(base) {
			return 0, fmt.Errorf("%w: more than %d", ErrNumberRange, int64(math.MaxInt64))
		}
		val = val*int64(base) + int64(d)
		if _, err := r.src.ReadByte(); err != nil {
			return 0, err
		}
		if c, err = r.Peek(ctx); err != nil {
			return 0, err
		}
	}

	if neg {
		val = -val
	}
	return val, nil
}

// Skip discards n bytes.
func (r *Reader) Skip(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if _, err := r.Next(ctx); err != nil {
			return err
		}
	}
	return nil
}

// DiscardThrough discards bytes up to and including stop.
func (r *Reader) DiscardThrough(ctx context.Context, stop byte) error {
	for {
		b, err := r.Next(ctx)
		if err != nil {
			return err
		}
		if b == stop {
			return nil
		}
	}
}

// DiscardAlnum discards alphanumeric bytes and the first byte after them.
func (r *Reader) DiscardAlnum(ctx context.Context) error {
	for {
		b, err := r.Next(ctx)
		if err != nil {
			return err
		}
		if !isAlnum(b) {
			return nil
		}
	}
}

// ReadUntil returns the bytes before stop, consuming stop. When limit is
// positive, bytes beyond limit are consumed but dropped.
func (r *Reader) ReadUntil(ctx context.Context, stop byte, limit int) ([]byte, error) {
	var out []byte
	for {
		b, err := r.Next(ctx)
		if err != nil {
			return out, err
		}
		if b == stop {
			return out, nil
		}
		if limit <= 0 || len(out) < limit {
			out = append(out, b)
		}
	}
}

// ReadFull reads exactly len(p) bytes.
func (r *Reader) ReadFull(ctx context.Context, p []byte) error {
	for i := range p {
		b, err := r.Next(ctx)
		if err != nil {
			return err
		}
		p[i] = b
	}
	return nil
}

func digitValue(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'z':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10, true
	default:
		return 0, false
	}
}

func isAlnum(c byte) bool {
	_, ok := digitValue(c)
	return ok
}
