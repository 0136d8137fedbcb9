// Package main is the entry point for the sitewatch CLI.
//
// Usage:
//
//	sitewatch fetch [urls...] [--show-result] [--subset=N]
//	sitewatch live [urls...] [--show-result] [--subset=N] [--interval=S]
//	sitewatch history [urls...] [--page=N]
//	sitewatch backup <path>
//	sitewatch restore <path>
//	sitewatch version
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/sitewatch"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const availableCommands = "fetch, live, history, backup, restore"

// rootOptions holds the persistent flags shared by every subcommand.
// Zero values mean "use the default or the environment override".
type rootOptions struct {
	configPath  string
	storePath   string
	timeout     time.Duration
	concurrency int
	logLevel    string
}

// newRootCmd builds the command tree. Each call returns fresh flag state.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "sitewatch <command> [options]",
		Short: "Poll websites and keep a paged status history",
		Long: `sitewatch polls a configured set of websites for their HTTP status and
keeps the results in a paged JSON store that can be backed up and restored.

The website list is read from web_config.json (override with --config or
SITEWATCH_CONFIG):

  [
    {"url": "https://www.example.com"},
    {"url": "https://www.google.com"}
  ]

Status history is kept in website_data.json (override with --store or
SITEWATCH_STORE).`,
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) > 0 {
				fmt.Fprintf(out, "Invalid command: %s\n", args[0])
			}
			printUsage(out)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "website list file (default web_config.json)")
	pf.StringVar(&opts.storePath, "store", "", "status history file (default website_data.json)")
	pf.DurationVar(&opts.timeout, "timeout", 0, "connect and read timeout per probe (default 5s)")
	pf.IntVar(&opts.concurrency, "concurrency", 0, "URLs probed in parallel per cycle (default 1)")
	pf.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn or error")

	root.AddCommand(
		newFetchCmd(opts),
		newLiveCmd(opts),
		newHistoryCmd(opts),
		newBackupCmd(opts),
		newRestoreCmd(opts),
		newVersionCmd(),
	)
	return root
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: sitewatch <command> [options]")
	fmt.Fprintf(w, "Available commands: %s\n", availableCommands)
}

// newLogger creates a JSON logger for CLI use.
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: lvl,
	})), nil
}

// newMonitor builds a Monitor from the persistent flags, along with the
// logger it writes to. extra options are applied last.
func (o *rootOptions) newMonitor(cmd *cobra.Command, extra ...sitewatch.Option) (*sitewatch.Monitor, *slog.Logger, error) {
	logger, err := newLogger(cmd.ErrOrStderr(), o.logLevel)
	if err != nil {
		return nil, nil, err
	}

	opts := []sitewatch.Option{sitewatch.WithLogger(logger)}
	if o.configPath != "" {
		opts = append(opts, sitewatch.WithConfigPath(o.configPath))
	}
	if o.storePath != "" {
		opts = append(opts, sitewatch.WithStorePath(o.storePath))
	}
	if o.timeout != 0 {
		opts = append(opts, sitewatch.WithTimeout(o.timeout))
	}
	if o.concurrency != 0 {
		opts = append(opts, sitewatch.WithConcurrency(o.concurrency))
	}
	opts = append(opts, extra...)

	m, err := sitewatch.New(opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create monitor: %w", err)
	}
	return m, logger, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the version, commit hash, and build date of this sitewatch binary.`,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "sitewatch %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built:  %s\n", date)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// cobra already printed the error
		os.Exit(1)
	}
}
