package protocol

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrVersionFormat indicates a version reply that does not match mmm.nn.
var ErrVersionFormat = errors.New("malformed version reply")

// ReadStatus consumes the status marker that starts every reply.
//
// A space or the prompt means success; any data that follows belongs to the
// caller. An 'E' means failure: the hex error code and the trailing prompt
// are consumed and code holds the module error. Any other byte means the
// stream is out of step; code is CodeDesync and nothing else is consumed.
//
// err is only set when the transport itself fails or ctx ends.
func (r *Reader) ReadStatus(ctx context.Context, prompt byte) (ok bool, code byte, err error) {
	b, err := r.Next(ctx)
	if err != nil {
		return false, 0, err
	}

	switch b {
	case Space, prompt:
		return true, 0, nil
	case ErrorMarker:
		code, err := r.ReadErrorCode(ctx)
		return false, code, err
	default:
		return false, CodeDesync, nil
	}
}

// ReadErrorCode reads the hex code that follows an 'E' marker, then
// consumes the trailing prompt.
func (r *Reader) ReadErrorCode(ctx context.Context) (byte, error) {
	n, err := r.ReadNumber(ctx, 16)
	if err != nil {
		return 0, err
	}
	if _, err := r.Next(ctx); err != nil {
		return 0, err
	}
	return byte(n), nil
}

// ReadVersion parses the reply to the version command.
//
// Reply format:
//
//	mmm.nn[-bxxx ]SN:<t1><t2><t3><rest>-<serial><prompt>
//
// The module type is decided by t1 ('R' for the commercial player) or else
// t3 ('M' for the storage module, anything else for the industrial player).
// Everything after the type up to the closing prompt is discarded.
func (r *Reader) ReadVersion(ctx context.Context) (Version, error) {
	var v Version

	major, err := r.ReadNumber(ctx, 10)
	if err != nil {
		return v, err
	}
	b, err := r.Next(ctx)
	if err != nil {
		return v, err
	}
	if b != '.' {
		return v, fmt.Errorf("%w: expected '.' after major %d, got 0x%02X", ErrVersionFormat, major, b)
	}
	minor, err := r.ReadNumber(ctx, 10)
	if err != nil {
		return v, err
	}
	v.Major, v.Minor = int(major), int(minor)

	// either ' ' or the start of a beta suffix
	b, err = r.Next(ctx)
	if err != nil {
		return v, err
	}
	if b == '-' {
		beta := make([]byte, VersionBetaLength)
		if err := r.ReadFull(ctx, beta); err != nil {
			return v, err
		}
		v.Beta = strings.TrimSpace(string(beta))
	}

	// SN:
	if err := r.Skip(ctx, VersionSerialMarkerLength); err != nil {
		return v, err
	}

	b, err = r.Next(ctx)
	if err != nil {
		return v, err
	}
	if b == 'R' {
		v.Module = CommercialPlayer
	} else {
		if err := r.Skip(ctx, 1); err != nil {
			return v, err
		}
		if b, err = r.Next(ctx); err != nil {
			return v, err
		}
		if b == 'M' {
			v.Module = StorageOnly
		} else {
			v.Module = IndustrialPlayer
		}
	}

	if err := r.DiscardThrough(ctx, '-'); err != nil {
		return v, err
	}
	if err := r.DiscardAlnum(ctx); err != nil {
		return v, err
	}
	return v, nil
}

// ReadPair parses <a><sep><b><prompt>, the shape of the file info and card
// info replies. The separator and the prompt are consumed without checks.
func (r *Reader) ReadPair(ctx context.Context) (a, b uint32, err error) {
	first, err := r.ReadNumber(ctx, 10)
	if err != nil {
		return 0, 0, err
	}
	if _, err := r.Next(ctx); err != nil {
		return 0, 0, err
	}
	second, err := r.ReadNumber(ctx, 10)
	if err != nil {
		return 0, 0, err
	}
	if _, err := r.Next(ctx); err != nil {
		return 0, 0, err
	}
	a, err = Uint32(first)
	if err != nil {
		return 0, 0, err
	}
	b, err = Uint32(second)
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

// Uint32 narrows a reply number to the 32-bit fields the module reports.
func Uint32(n int64) (uint32, error) {
	if n < 0 || n > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %d does not fit 32 bits", ErrNumberRange, n)
	}
	return uint32(n), nil
}

// ReadEntry parses one listing line after a successful status marker and
// consumes the trailing prompt.
//
// Line format:
//
//	D <name>\r       folder
//	<size> <name>\r  file
//
// Names longer than limit bytes are truncated when limit is positive.
func (r *Reader) ReadEntry(ctx context.Context, limit int) (DirEntry, error) {
	var e DirEntry

	c, err := r.Peek(ctx)
	if err != nil {
		return e, err
	}
	if c == FolderMarker {
		if _, err := r.Next(ctx); err != nil {
			return e, err
		}
		e.Kind = EntryFolder
	} else {
		size, err := r.ReadNumber(ctx, 10)
		if err != nil {
			return e, err
		}
		e.Kind = EntryFile
		if e.Size, err = Uint32(size); err != nil {
			return e, err
		}
	}

	// separator
	if _, err := r.Next(ctx); err != nil {
		return e, err
	}

	name, err := r.ReadUntil(ctx, CarriageReturn, limit)
	if err != nil {
		return e, err
	}
	e.Name = string(name)

	// prompt
	if _, err := r.Next(ctx); err != nil {
		return e, err
	}
	return e, nil
}

// ReadClock parses the seven clock fields. Each field is followed by one
// separator byte; the final separator is the prompt.
func (r *Reader) ReadClock(ctx context.Context) (Clock, error) {
	var fields [ClockFields]int
	for i := range fields {
		n, err := r.ReadNumber(ctx, 10)
		if err != nil {
			return Clock{}, err
		}
		if _, err := r.Next(ctx); err != nil {
			return Clock{}, err
		}
		fields[i] = int(n)
	}
	return Clock{
		Year:    fields[0],
		Month:   fields[1],
		Day:     fields[2],
		Hour:    fields[3],
		Minute:  fields[4],
		Second:  fields[5],
		Weekday: fields[6],
	}, nil
}
