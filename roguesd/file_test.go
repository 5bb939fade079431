package roguesd

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-roguesd/protocol"
	"github.com/moffa90/go-roguesd/simulator"
)

func TestFileCopy(t *testing.T) {
	for _, d := range dialects {
		t.Run(d.name, func(t *testing.T) {
			c, mod := newSimClient(t, d.cfg, WithChunkSize(4))
			ctx := context.Background()
			content := "The quick brown fox jumps over the lazy dog"

			f, err := c.OpenFile(ctx, "/fox.txt", protocol.OpenWrite)
			require.NoError(t, err)
			assert.Equal(t, "/fox.txt", f.Name())
			assert.True(t, f.Handle().Valid())

			n, err := io.Copy(f, strings.NewReader(content))
			require.NoError(t, err)
			assert.Equal(t, int64(len(content)), n)
			require.NoError(t, f.Close())

			data, _ := mod.ReadFile("/fox.txt")
			assert.Equal(t, content, string(data))

			f, err = c.OpenFile(ctx, "/fox.txt", protocol.OpenRead)
			require.NoError(t, err)
			defer f.Close()

			var buf bytes.Buffer
			n, err = io.Copy(&buf, f)
			require.NoError(t, err)
			assert.Equal(t, int64(len(content)), n)
			assert.Equal(t, content, buf.String())
		})
	}
}

func TestFileReadChunks(t *testing.T) {
	c, mod := newSimClient(t, simulator.DefaultConfig(), WithChunkSize(3))
	mod.WriteFile("/a.txt", []byte("abcdefg"))
	ctx := context.Background()

	f, err := c.OpenFile(ctx, "/a.txt", protocol.OpenRead)
	require.NoError(t, err)

	buf := make([]byte, 10)
	n, err := f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(buf[:n]))

	n, err = f.Read(buf[:0])
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	rest, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "defg", string(rest))

	n, err = f.Read(buf)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFileSeek(t *testing.T) {
	c, mod := newSimClient(t, simulator.DefaultConfig())
	mod.WriteFile("/a.txt", []byte("hello"))
	ctx := context.Background()

	f, err := c.OpenFile(ctx, "/a.txt", protocol.OpenRead)
	require.NoError(t, err)

	tests := []struct {
		name    string
		offset  int64
		whence  int
		wantPos int64
		wantErr string
	}{
		{name: "from start", offset: 1, whence: io.SeekStart, wantPos: 1},
		{name: "from current", offset: 2, whence: io.SeekCurrent, wantPos: 3},
		{name: "from end", offset: -2, whence: io.SeekEnd, wantPos: 3},
		{name: "to end", offset: 0, whence: io.SeekEnd, wantPos: 5},
		{name: "negative", offset: -6, whence: io.SeekEnd, wantErr: "negative position"},
		{name: "too far", offset: 1 << 33, whence: io.SeekStart, wantErr: "beyond 4 GiB"},
		{name: "bad whence", offset: 0, whence: 7, wantErr: "invalid whence"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos, err := f.Seek(tt.offset, tt.whence)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPos, pos)

			fi, err := f.Stat()
			require.NoError(t, err)
			assert.Equal(t, uint32(tt.wantPos), fi.Position)
		})
	}

	_, err = f.Seek(1, io.SeekStart)
	require.NoError(t, err)
	rest, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "ello", string(rest))
}

func TestFileWriteError(t *testing.T) {
	c, mod := newSimClient(t, simulator.DefaultConfig(), WithChunkSize(2))
	mod.WriteFile("/ro.txt", []byte("x"))
	ctx := context.Background()

	f, err := c.OpenFile(ctx, "/ro.txt", protocol.OpenRead)
	require.NoError(t, err)

	n, err := f.Write([]byte("abcd"))
	assert.Equal(t, 0, n)
	assert.Equal(t, byte(protocol.CodeWriteImproperMode), protocol.CodeOf(err))
	require.NoError(t, f.Close())
	assert.Equal(t, 0, mod.OpenHandles())
}
