package commands

import (
	"bytes"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/moffa90/go-roguesd/protocol"
)

func newLsCmd(opts *rootOptions) *cobra.Command {
	var mask string
	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List a folder on the card",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/"
			if len(args) == 1 {
				path = args[0]
			}
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for e, err := range s.client.Entries(cmd.Context(), path, mask) {
				if err != nil {
					return fmt.Errorf("list %s: %w", path, err)
				}
				if e.IsDir() {
					fmt.Fprintf(tw, "%s/\t-\n", e.Name)
				} else {
					fmt.Fprintf(tw, "%s\t%d\n", e.Name, e.Size)
				}
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&mask, "mask", "*", "Only list names matching this pattern")
	return cmd
}

func newCatCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cat <path>",
		Short: "Print a file from the card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			_, err = s.client.Download(cmd.Context(), args[0], cmd.OutOrStdout())
			return err
		},
	}
}

func newGetCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <remote> <local>",
		Short: "Copy a file from the card",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			out, err := os.Create(args[1])
			if err != nil {
				return err
			}
			n, err := s.client.Download(cmd.Context(), args[0], out)
			if cerr := out.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%d bytes)\n", args[0], args[1], n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.progress, "progress", false, "Show transfer progress")
	return cmd
}

func newPutCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put <local> <remote>",
		Short: "Copy a file to the card, replacing it if present",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := s.client.Upload(cmd.Context(), args[1], bytes.NewReader(data))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%d bytes)\n", args[0], args[1], n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.progress, "progress", false, "Show transfer progress")
	return cmd
}

func newRmCmd(opts *rootOptions) *cobra.Command {
	var dir bool
	cmd := &cobra.Command{
		Use:   "rm <path>",
		Short: "Remove a file or an empty folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			if dir {
				return s.client.RemoveDir(cmd.Context(), args[0])
			}
			return s.client.Remove(cmd.Context(), args[0])
		},
	}
	cmd.Flags().BoolVarP(&dir, "dir", "d", false, "Remove a folder")
	return cmd
}

func newMvCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mv <old> <new>",
		Short: "Rename a file or folder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			return s.client.Rename(cmd.Context(), args[0], args[1])
		},
	}
}

func newStatCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stat <path>",
		Short: "Show whether a path exists and its size",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			kind, err := s.client.Exists(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "path: %s\nkind: %s\n", args[0], kind)
			if kind != protocol.EntryFile {
				return nil
			}
			size, err := s.client.Size(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "size: %d\n", size)
			return nil
		},
	}
}
