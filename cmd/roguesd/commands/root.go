// Package commands implements the roguesd command line client.
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moffa90/go-roguesd/transport"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
)

// rootOptions carries the state shared by all subcommands of one run.
type rootOptions struct {
	configPath string
	progress   bool
	cfg        *Config
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "roguesd",
		Short: "Talk to RogueSD file modules over a serial line",
		Long: `roguesd drives uMMC, uMP3 and rMP3 modules: it lists and copies files
on the card, reads card and firmware details and manages module settings.

Use --simulate to try the commands against an in-memory module.

Use "roguesd [command] --help" for more information about a command.`,
		Version:       Version + " (" + Commit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(cmd, opts.configPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Config file (default ./roguesd.yaml)")
	flags.StringP("port", "p", "", "Serial device of the module")
	flags.Int("baud", transport.DefaultBaudRate, "Serial baud rate")
	flags.Bool("simulate", false, "Use an in-memory module with a demo card")
	flags.Bool("blocking", false, "Wait for the module to answer during sync")
	flags.String("log-level", "warn", "Log level (debug, info, warn, error)")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address while running")

	rootCmd.AddCommand(
		newInfoCmd(opts),
		newLsCmd(opts),
		newCatCmd(opts),
		newGetCmd(opts),
		newPutCmd(opts),
		newRmCmd(opts),
		newMvCmd(opts),
		newStatCmd(opts),
		newTimeCmd(opts),
		newSettingCmd(opts),
		newPortsCmd(),
	)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	return rootCmd
}

// Execute runs the command line with ctx.
func Execute(ctx context.Context) error {
	err := NewRootCmd().ExecuteContext(ctx)
	if err != nil && transport.IsDisconnect(err) {
		return fmt.Errorf("%w (is the module connected?)", err)
	}
	return err
}
