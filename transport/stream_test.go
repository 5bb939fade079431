package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-roguesd/protocol"
	"github.com/moffa90/go-roguesd/roguesd"
	"github.com/moffa90/go-roguesd/simulator"
)

var _ roguesd.Port = (*Stream)(nil)

func newPipe(t *testing.T) (*Stream, net.Conn) {
	t.Helper()
	local, remote := net.Pipe()
	s := NewStream(local)
	t.Cleanup(func() {
		remote.Close()
		s.Close()
	})
	return s, remote
}

func buffered(s *Stream) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

func TestStreamReadsInBackground(t *testing.T) {
	s, remote := newPipe(t)
	assert.False(t, s.Available())

	_, err := s.PeekByte()
	assert.Error(t, err)

	go remote.Write([]byte("ok>"))
	require.Eventually(t, func() bool { return s.Available() }, time.Second, time.Millisecond)

	b, err := s.PeekByte()
	require.NoError(t, err)
	assert.Equal(t, byte('o'), b)

	require.Eventually(t, func() bool { return buffered(s) == 3 }, time.Second, time.Millisecond)
	var got []byte
	for s.Available() {
		b, err := s.ReadByte()
		require.NoError(t, err)
		got = append(got, b)
	}
	assert.Equal(t, "ok>", string(got))
}

func TestStreamWriteByte(t *testing.T) {
	s, remote := newPipe(t)

	received := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 2)
		n, _ := io.ReadFull(remote, buf)
		received <- buf[:n]
	}()

	require.NoError(t, s.WriteByte('V'))
	require.NoError(t, s.WriteByte('\r'))
	assert.Equal(t, []byte("V\r"), <-received)
}

func TestStreamFlush(t *testing.T) {
	s, remote := newPipe(t)

	go remote.Write([]byte("stale"))
	require.Eventually(t, func() bool { return s.Available() }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return buffered(s) == 5 }, time.Second, time.Millisecond)

	require.NoError(t, s.Flush())
	assert.False(t, s.Available())
}

type resettable struct {
	io.ReadWriter
	resets int
	err    error
}

func (r *resettable) ResetInputBuffer() error {
	r.resets++
	return r.err
}

func TestStreamFlushResetsDevice(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	dev := &resettable{ReadWriter: local}
	s := NewStream(dev)
	defer local.Close()

	require.NoError(t, s.Flush())
	assert.Equal(t, 1, dev.resets)

	dev.err = errors.New("ioctl failed")
	assert.ErrorContains(t, s.Flush(), "ioctl failed")
}

func TestStreamSurfacesReadErrors(t *testing.T) {
	s, remote := newPipe(t)
	remote.Close()

	require.Eventually(t, func() bool { return s.Available() }, time.Second, time.Millisecond)
	_, err := s.ReadByte()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestStreamClose(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	s := NewStream(local)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Error(t, s.WriteByte('x'))
}

// serveModule answers bytes arriving on conn with a simulated module.
func serveModule(conn net.Conn, mod *simulator.Module) {
	buf := make([]byte, 64)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		for _, b := range buf[:n] {
			mod.WriteByte(b)
		}
		var out []byte
		for mod.Available() {
			b, err := mod.ReadByte()
			if err != nil {
				break
			}
			out = append(out, b)
		}
		if len(out) > 0 {
			if _, err := conn.Write(out); err != nil {
				return
			}
		}
	}
}

func TestClientOverStream(t *testing.T) {
	s, remote := newPipe(t)
	mod := simulator.New(simulator.DefaultConfig())
	mod.WriteFile("/hello.txt", []byte("hello over the wire"))
	go serveModule(remote, mod)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := roguesd.New(s, roguesd.WithPollInterval(time.Millisecond))
	require.NoError(t, client.Sync(ctx))
	assert.Equal(t, protocol.Current, client.Dialect())

	f, err := client.OpenFile(ctx, "/hello.txt", protocol.OpenRead)
	require.NoError(t, err)
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "hello over the wire", string(data))
	require.NoError(t, f.Close())
}

func TestIsDisconnect(t *testing.T) {
	assert.False(t, IsDisconnect(nil))
	assert.False(t, IsDisconnect(errors.New("boom")))
}
