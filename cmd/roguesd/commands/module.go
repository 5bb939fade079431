package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/moffa90/go-roguesd/protocol"
	"github.com/moffa90/go-roguesd/transport"
)

func newInfoCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show module, firmware and card details",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			c := s.client
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "module:   %s\n", c.ModuleType())
			fmt.Fprintf(out, "firmware: %s\n", c.Version())
			fmt.Fprintf(out, "dialect:  %s\n", c.Dialect())
			fmt.Fprintf(out, "prompt:   %q\n", c.Prompt())

			card, err := c.CardInfo(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "card:     %d KiB free of %d KiB\n", card.FreeKiB, card.TotalKiB)
			return nil
		},
	}
}

func newTimeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "time",
		Short: "Show the module clock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			clock, err := s.client.Time(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), clock.Time(time.Local).Format(time.RFC1123))
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set [RFC3339 time]",
		Short: "Set the module clock (default: now)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t := time.Now()
			if len(args) == 1 {
				var err error
				if t, err = time.Parse(time.RFC3339, args[0]); err != nil {
					return fmt.Errorf("parse time: %w", err)
				}
			}
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			return s.client.SetTime(cmd.Context(), protocol.ClockFromTime(t))
		},
	}
	cmd.AddCommand(set)
	return cmd
}

func newSettingCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "setting <key> [value]",
		Short: "Read or change a module setting",
		Long: `Read or change a numeric module setting. Keys are single characters:

  1  write time-out
  L  listing style
  P  prompt character code`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args[0]) != 1 {
				return fmt.Errorf("setting key must be one character, got %q", args[0])
			}
			key := args[0][0]

			value := 0
			if len(args) == 2 {
				var err error
				if value, err = strconv.Atoi(args[1]); err != nil {
					return fmt.Errorf("setting value: %w", err)
				}
			}

			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			if len(args) == 2 {
				return s.client.ChangeSetting(cmd.Context(), key, value)
			}
			v, err := s.client.Setting(cmd.Context(), key)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := transport.Ports()
			if err != nil {
				return err
			}
			for _, p := range ports {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
}
