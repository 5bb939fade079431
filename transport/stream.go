package transport

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// readChunk is the buffer size of a single read from the underlying stream.
const readChunk = 256

// Stream adapts a blocking io.ReadWriter to the polling byte contract of
// roguesd.Port.
//
// A background goroutine reads the underlying stream into a buffer; the
// Available, ReadByte and PeekByte methods only look at that buffer and never
// block. Once the underlying stream fails, Available reports true so the
// next ReadByte returns the error instead of leaving the caller polling.
type Stream struct {
	rw io.ReadWriter

	mu  sync.Mutex
	buf []byte
	err error

	done      chan struct{}
	closeOnce sync.Once
}

// NewStream starts reading rw in the background.
//
// Example:
//
//	conn, _ := net.Dial("tcp", "bridge.local:4000")
//	client := roguesd.New(transport.NewStream(conn))
func NewStream(rw io.ReadWriter) *Stream {
	s := &Stream{
		rw:   rw,
		done: make(chan struct{}),
	}
	go s.pump()
	return s
}

func (s *Stream) pump() {
	defer close(s.done)
	chunk := make([]byte, readChunk)
	for {
		n, err := s.rw.Read(chunk)
		s.mu.Lock()
		s.buf = append(s.buf, chunk[:n]...)
		if err != nil {
			s.err = err
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
	}
}

// Available reports whether a byte can be read without blocking.
func (s *Stream) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf) > 0 || s.err != nil
}

// ReadByte returns the next buffered byte.
func (s *Stream) ReadByte() (byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) == 0 {
		return 0, s.readErr()
	}
	b := s.buf[0]
	s.buf = s.buf[1:]
	return b, nil
}

// PeekByte returns the next buffered byte without consuming it.
func (s *Stream) PeekByte() (byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) == 0 {
		return 0, s.readErr()
	}
	return s.buf[0], nil
}

// readErr is called with mu held and an empty buffer.
func (s *Stream) readErr() error {
	if s.err == nil {
		return errors.New("no data buffered")
	}
	if errors.Is(s.err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return fmt.Errorf("read: %w", s.err)
}

// WriteByte writes one byte to the underlying stream.
func (s *Stream) WriteByte(c byte) error {
	if _, err := s.rw.Write([]byte{c}); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Flush drops buffered input. When the underlying stream can reset its own
// input buffer (as serial ports can), that buffer is reset first.
func (s *Stream) Flush() error {
	if r, ok := s.rw.(interface{ ResetInputBuffer() error }); ok {
		if err := r.ResetInputBuffer(); err != nil {
			return fmt.Errorf("reset input: %w", err)
		}
	}
	s.mu.Lock()
	s.buf = s.buf[:0]
	s.mu.Unlock()
	return nil
}

// Close closes the underlying stream if it is an io.Closer and waits for the
// reader goroutine to stop.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		c, ok := s.rw.(io.Closer)
		if !ok {
			return
		}
		err = c.Close()
		<-s.done
	})
	return err
}
