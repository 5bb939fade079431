package commands

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate keeps the user's own config and environment out of the test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	for _, k := range []string{"ROGUESD_PORT", "ROGUESD_BAUD", "ROGUESD_SIMULATE", "ROGUESD_LOG_LEVEL", "ROGUESD_SYNC_TIMEOUT"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roguesd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func loadWith(t *testing.T, configPath string, args ...string) (*Config, error) {
	t.Helper()
	cmd := NewRootCmd()
	require.NoError(t, cmd.ParseFlags(args))
	return LoadConfig(cmd, configPath)
}

const sampleConfig = `
port: /dev/ttyS1
baud: 19200
sync_timeout: 250ms
log:
  level: debug
  format: json
`

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		env     map[string]string
		args    []string
		check   func(t *testing.T, cfg *Config)
		wantErr bool
	}{
		{
			name: "defaults",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "", cfg.Port)
				assert.Equal(t, 9600, cfg.Baud)
				assert.Equal(t, time.Second, cfg.SyncTimeout)
				assert.False(t, cfg.Simulate)
				assert.Equal(t, "warn", cfg.Log.Level)
				assert.Equal(t, "console", cfg.Log.Format)
				assert.Equal(t, "stderr", cfg.Log.OutputPath)
			},
		},
		{
			name: "file",
			file: sampleConfig,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "/dev/ttyS1", cfg.Port)
				assert.Equal(t, 19200, cfg.Baud)
				assert.Equal(t, 250*time.Millisecond, cfg.SyncTimeout)
				assert.Equal(t, "debug", cfg.Log.Level)
				assert.Equal(t, "json", cfg.Log.Format)
			},
		},
		{
			name: "environment beats file",
			file: sampleConfig,
			env:  map[string]string{"ROGUESD_BAUD": "38400", "ROGUESD_LOG_LEVEL": "error"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 38400, cfg.Baud)
				assert.Equal(t, "error", cfg.Log.Level)
				assert.Equal(t, "/dev/ttyS1", cfg.Port)
			},
		},
		{
			name: "flags beat environment",
			file: sampleConfig,
			env:  map[string]string{"ROGUESD_BAUD": "38400"},
			args: []string{"--baud", "115200", "--port", "/dev/ttyUSB3", "--simulate"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 115200, cfg.Baud)
				assert.Equal(t, "/dev/ttyUSB3", cfg.Port)
				assert.True(t, cfg.Simulate)
			},
		},
		{
			name:    "invalid baud",
			file:    "baud: 0\n",
			wantErr: true,
		},
		{
			name:    "invalid sync timeout",
			file:    "sync_timeout: -1s\n",
			wantErr: true,
		},
		{
			name:    "malformed file",
			file:    "port: [unterminated\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			var path string
			if tt.file != "" {
				path = writeConfig(t, tt.file)
			}

			cfg, err := loadWith(t, path, tt.args...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}
