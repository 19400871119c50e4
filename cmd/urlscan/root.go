package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for urlscan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "urlscan",
		Short: "Batch URL scanner that reports titles and detected technologies",
		Long: `urlscan fetches every URL of a list with bounded concurrency and a
per-request timeout. For each URL it records the page title and the
technologies detected from headers and page content, then writes a report
next to the list.

Scans are saved to a local history database so that later scans can be
compared with earlier ones.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
