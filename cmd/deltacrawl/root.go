package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/deltacrawl/internal/config"
)

// NewRootCmd creates the root command for deltacrawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deltacrawl",
		Short: "Incremental crawler for directories, archives and web sites",
		Long: `deltacrawl crawls hierarchical data sources and extracts metadata from every
item, recursing into archives and compressed files.

Each run is compared with the previous one: items are reported as new,
changed, unchanged or deleted, and only new or changed items are extracted.
Access records, extracted statements and run history are kept in a SQLite
database in the XDG data directory.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().String("log-format", config.LogFormatText, "Log format: text or json")
	cmd.PersistentFlags().String("db-dir", config.XDGDataDir(), "Directory of the database and ledger files")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .deltacrawl in current or home directory)")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewWatchCmd())
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
