package simulator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-roguesd/protocol"
)

// exchange sends one command line and drains the reply.
func exchange(t *testing.T, m *Module, cmd string) string {
	t.Helper()
	for i := 0; i < len(cmd); i++ {
		require.NoError(t, m.WriteByte(cmd[i]))
	}
	require.NoError(t, m.WriteByte('\r'))
	var out []byte
	for m.Available() {
		b, err := m.ReadByte()
		require.NoError(t, err)
		out = append(out, b)
	}
	return string(out)
}

func TestVersionString(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "storage",
			cfg:  DefaultConfig(),
			want: "102.01 SN:UMM1-1234ABCD>",
		},
		{
			name: "industrial player beta",
			cfg:  Config{Module: protocol.IndustrialPlayer, Major: 111, Minor: 1, Beta: "b003", Serial: "0000FFFF"},
			want: "111.01-b003 SN:UMP1-0000FFFF>",
		},
		{
			name: "commercial player",
			cfg:  Config{Module: protocol.CommercialPlayer, Major: 100, Minor: 10, Serial: "00000001"},
			want: "100.10 SN:RMP3-00000001>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.cfg)
			assert.Equal(t, tt.want, exchange(t, m, "V"))
		})
	}
}

func TestDialect(t *testing.T) {
	assert.Equal(t, protocol.Current, New(DefaultConfig()).Dialect())
	assert.Equal(t, protocol.Legacy, New(LegacyConfig()).Dialect())
}

func TestEscapeAnswersPrompt(t *testing.T) {
	m := New(DefaultConfig())
	m.Inject([]byte("garbage"))
	require.NoError(t, m.WriteByte(protocol.Escape))
	b, err := m.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte('>'), b)
	assert.False(t, m.Available())
	assert.Equal(t, []string{"\x1b"}, m.Commands())
}

func TestOpenAndHandles(t *testing.T) {
	m := New(DefaultConfig())
	m.Mkdir("/data")

	assert.Equal(t, "1>", exchange(t, m, "F"))
	assert.Equal(t, "EF5>", exchange(t, m, "O1 W /nope/log.txt"))
	assert.Equal(t, "EF2>", exchange(t, m, "O1 R /data/missing.txt"))
	assert.Equal(t, "EE7>", exchange(t, m, "O1 R /data"))
	assert.Equal(t, "EED>", exchange(t, m, "O1 X /data/log.txt"))
	assert.Equal(t, ">", exchange(t, m, "O1 W /data/log.txt"))
	assert.Equal(t, "EF1>", exchange(t, m, "O1 R /data/log.txt"))
	assert.Equal(t, "2>", exchange(t, m, "F"))
	assert.Equal(t, 1, m.OpenHandles())

	for h := 2; h <= 4; h++ {
		assert.Equal(t, ">", exchange(t, m, "O"+string(rune('0'+h))+" A /data/log.txt"))
	}
	assert.Equal(t, "E03>", exchange(t, m, "F"))
	assert.Equal(t, " >", exchange(t, m, "Z1"))
	assert.Equal(t, " >", exchange(t, m, "Z"))

	assert.Equal(t, ">", exchange(t, m, "C"))
	assert.Equal(t, 0, m.OpenHandles())
	assert.Equal(t, "EEB>", exchange(t, m, "Z1"))
}

func TestWriteAndRead(t *testing.T) {
	m := New(DefaultConfig())

	assert.Equal(t, ">", exchange(t, m, "O1 W /a.txt"))
	for _, b := range []byte("W1 5\rhello") {
		require.NoError(t, m.WriteByte(b))
	}
	b, err := m.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte('>'), b)

	assert.Equal(t, "5/5>", exchange(t, m, "I1"))
	assert.Equal(t, ">", exchange(t, m, "C1"))

	assert.Equal(t, ">", exchange(t, m, "O1 R /a.txt"))
	assert.Equal(t, " hel>", exchange(t, m, "R1 3"))
	assert.Equal(t, " lo>", exchange(t, m, "R1 10"))
	assert.Equal(t, "E07>", exchange(t, m, "R1 1"))
	assert.Equal(t, ">", exchange(t, m, "J1 1"))
	assert.Equal(t, " e>", exchange(t, m, "R1 1"))
	assert.Equal(t, "EEB>", exchange(t, m, "I2"))
	assert.Equal(t, "EF6>", exchange(t, m, "I7"))

	data, ok := m.ReadFile("/a.txt")
	require.True(t, ok)
	assert.Equal(t, "hello", string(data))
}

func TestLegacyWriteTimeout(t *testing.T) {
	m := New(LegacyConfig())
	assert.Equal(t, ">", exchange(t, m, "S11"))
	assert.Equal(t, ">", exchange(t, m, "O1 W /line.txt"))

	for _, b := range []byte("W1 512\rpartial") {
		require.NoError(t, m.WriteByte(b))
	}
	// polling ends the write
	assert.True(t, m.Available())
	b, err := m.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte('>'), b)

	data, _ := m.ReadFile("/line.txt")
	assert.Equal(t, "partial", string(data))
}

func TestLegacyRejectsCurrentCommands(t *testing.T) {
	m := New(LegacyConfig())
	m.WriteFile("/a.txt", []byte("abc"))
	for _, cmd := range []string{"C", "LC /", "LS /", "LI *", "LE 1 /", "L /a.txt", "T", "J1 0"} {
		assert.Equal(t, "E04>", exchange(t, m, cmd), cmd)
	}

	// legacy seek
	assert.Equal(t, ">", exchange(t, m, "O1 R /a.txt"))
	assert.Equal(t, ">", exchange(t, m, "R1 0 2"))
	assert.Equal(t, " c>", exchange(t, m, "R1 1"))
}

func TestPlayerPrefix(t *testing.T) {
	m := New(Config{Module: protocol.IndustrialPlayer, Major: 111, Minor: 1})
	m.WriteFile("/song.mp3", []byte("xyz"))

	assert.Equal(t, "E04>", exchange(t, m, "F"))
	assert.Equal(t, "1>", exchange(t, m, "FCF"))
	assert.Equal(t, " 1>", exchange(t, m, "FCLC /song.mp3"))
	assert.Equal(t, "E04>", exchange(t, m, "SL"))
	assert.Equal(t, "0>", exchange(t, m, "STL"))
}

func TestListing(t *testing.T) {
	m := New(DefaultConfig())
	m.Mkdir("/music/sub")
	m.WriteFile("/music/a.mp3", make([]byte, 10))
	m.WriteFile("/music/b.txt", make([]byte, 3))

	assert.Equal(t, " 3>", exchange(t, m, "LC /music"))
	assert.Equal(t, " 1>", exchange(t, m, "LC /music/*.mp3"))
	assert.Equal(t, " 0>", exchange(t, m, "LC /music/missing"))
	assert.Equal(t, "EF5>", exchange(t, m, "LC /nope/x"))

	assert.Equal(t, " >", exchange(t, m, "LS /music"))
	assert.Equal(t, " D sub\r>", exchange(t, m, "LI *"))
	assert.Equal(t, " 10 a.mp3\r>", exchange(t, m, "LI *"))
	assert.Equal(t, " 3 b.txt\r>", exchange(t, m, "LI *"))
	assert.Equal(t, "E07>", exchange(t, m, "LI *"))

	assert.Equal(t, " >", exchange(t, m, "LS /music"))
	assert.Equal(t, " 3 b.txt\r>", exchange(t, m, "LI *.txt"))

	assert.Equal(t, " 10 a.mp3\r>", exchange(t, m, "LE 2 /music"))
	assert.Equal(t, "E07>", exchange(t, m, "LE 9 /music"))
	assert.Equal(t, " 3 b.txt\r>", exchange(t, m, "L /music/b.txt"))
	assert.Equal(t, "EE5>", exchange(t, m, "LS /music/b.txt"))
}

func TestRemoveAndRename(t *testing.T) {
	m := New(DefaultConfig())
	m.WriteFile("/dir/a.txt", []byte("a"))

	assert.Equal(t, "EEF>", exchange(t, m, "E/dir"), "folder not empty")
	assert.Equal(t, ">", exchange(t, m, "N/dir|/moved"))
	_, ok := m.ReadFile("/moved/a.txt")
	assert.True(t, ok)
	assert.Equal(t, "EF2>", exchange(t, m, "N/dir|/x"))
	assert.Equal(t, ">", exchange(t, m, "E/moved/a.txt"))
	assert.Equal(t, ">", exchange(t, m, "E/moved"))
	assert.Equal(t, "EF2>", exchange(t, m, "E/moved"))
}

func TestSettingsAndPrompt(t *testing.T) {
	m := New(DefaultConfig())
	assert.Equal(t, "1>", exchange(t, m, "SL"))
	assert.Equal(t, ">", exchange(t, m, "SL0"))
	assert.Equal(t, 0, m.Setting(protocol.SettingListingStyle))

	// acknowledged with the old prompt
	assert.Equal(t, ">", exchange(t, m, "SP35"))
	assert.Equal(t, "35#", exchange(t, m, "SP"))
}

func TestClock(t *testing.T) {
	base := time.Date(2026, 10, 17, 9, 5, 30, 0, time.UTC)
	cfg := DefaultConfig()
	cfg.Now = func() time.Time { return base }
	m := New(cfg)

	assert.Equal(t, "2026 10 17 9 5 30 6>", exchange(t, m, "T"))
	assert.Equal(t, ">", exchange(t, m, "T 2027 1 2 3 4 5"))
	assert.Equal(t, "2027 1 2 3 4 5 6>", exchange(t, m, "T"))
}

func TestFailNext(t *testing.T) {
	m := New(DefaultConfig())
	m.FailNext(protocol.CodeCardNotInserted)
	assert.Equal(t, "E08>", exchange(t, m, "Q"))
	assert.Equal(t, "1048576/1048576>", exchange(t, m, "Q"))
}

func TestFailNextConsumesWriteData(t *testing.T) {
	m := New(DefaultConfig())
	assert.Equal(t, ">", exchange(t, m, "O1 W /a.txt"))
	m.FailNext(protocol.CodeWriteFailure)
	for _, b := range []byte("W1 3\rabc") {
		require.NoError(t, m.WriteByte(b))
	}
	reply := make([]byte, 0, 4)
	for m.Available() {
		b, err := m.ReadByte()
		require.NoError(t, err)
		reply = append(reply, b)
	}
	assert.Equal(t, "EE8>", string(reply))

	data, _ := m.ReadFile("/a.txt")
	assert.Empty(t, data)
}

func TestSilent(t *testing.T) {
	m := New(DefaultConfig())
	m.SetSilent(true)
	require.NoError(t, m.WriteByte(protocol.Escape))
	assert.False(t, m.Available())
}
