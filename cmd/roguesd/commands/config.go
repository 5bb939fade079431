package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/moffa90/go-roguesd/logging"
	"github.com/moffa90/go-roguesd/transport"
)

// Config is the CLI configuration.
//
// Precedence (highest to lowest): flags, ROGUESD_* environment variables,
// the YAML config file, defaults.
type Config struct {
	// Port is the serial device, e.g. /dev/ttyUSB0
	Port string `mapstructure:"port"`

	// Baud is the serial baud rate
	Baud int `mapstructure:"baud"`

	// Blocking makes Sync wait for a module that is not answering yet
	Blocking bool `mapstructure:"blocking"`

	// SyncTimeout bounds the wait for each negotiation reply
	SyncTimeout time.Duration `mapstructure:"sync_timeout"`

	// Simulate talks to an in-memory module instead of a serial port
	Simulate bool `mapstructure:"simulate"`

	// MetricsAddr serves Prometheus metrics while the command runs (optional)
	MetricsAddr string `mapstructure:"metrics_addr"`

	Log logging.Config `mapstructure:"log"`
}

// flagKeys maps persistent flags to their config keys.
var flagKeys = map[string]string{
	"port":         "port",
	"baud":         "baud",
	"simulate":     "simulate",
	"blocking":     "blocking",
	"log-level":    "log.level",
	"metrics-addr": "metrics_addr",
}

// LoadConfig reads the configuration for cmd. An empty configPath looks
// for roguesd.yaml in the working directory and the user config folder;
// a missing file is not an error.
func LoadConfig(cmd *cobra.Command, configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ROGUESD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("roguesd")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(dir + "/roguesd")
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "")
	v.SetDefault("baud", transport.DefaultBaudRate)
	v.SetDefault("blocking", false)
	v.SetDefault("sync_timeout", time.Second)
	v.SetDefault("simulate", false)
	v.SetDefault("metrics_addr", "")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.outputpath", "stderr")
}

// Validate checks the settings needed to open a session.
func (c *Config) Validate() error {
	if c.Baud <= 0 {
		return fmt.Errorf("invalid baud rate %d", c.Baud)
	}
	if c.SyncTimeout <= 0 {
		return fmt.Errorf("invalid sync_timeout %s", c.SyncTimeout)
	}
	return nil
}
