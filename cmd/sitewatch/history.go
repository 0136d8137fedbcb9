package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/sitewatch"
)

const timestampLayout = "2006-01-02 15:04:05 MST"

func newHistoryCmd(root *rootOptions) *cobra.Command {
	var page int

	cmd := &cobra.Command{
		Use:   "history [urls...]",
		Short: "Show recorded statuses",
		Long: `Show every recorded status for the given URLs, or for the configured
website list when no URLs are given.

With --page, show a single page of the store instead. Pages hold records in
the order they were recorded and ignore URL arguments.

Example:
  sitewatch history
  sitewatch history https://www.example.com
  sitewatch history --page=2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, err := root.newMonitor(cmd)
			if err != nil {
				return err
			}
			defer m.Close()

			out := cmd.OutOrStdout()

			if cmd.Flags().Changed("page") {
				if page < 1 {
					fmt.Fprintf(out, "Invalid page number: %d (pages start at 1)\n", page)
					return nil
				}
				p, err := m.HistoryPage(page)
				if errors.Is(err, sitewatch.ErrNoData) {
					fmt.Fprintf(out, "No data for page %d (total pages: %d)\n", page, p.TotalPages)
					return nil
				}
				if err != nil {
					return err
				}
				if err := printHistory(out, p.Records); err != nil {
					return err
				}
				fmt.Fprintf(out, "Page %d of %d\n", p.Number, p.TotalPages)
				return nil
			}

			records, err := m.History(args)
			if errors.Is(err, sitewatch.ErrNoData) {
				fmt.Fprintln(out, "No history found for the specified URLs")
				return nil
			}
			if err != nil {
				return err
			}
			return printHistory(out, records)
		},
	}

	cmd.Flags().IntVar(&page, "page", 0, "show only this store page")
	return cmd
}

// printHistory writes records as an aligned URL | Status | Timestamp table.
func printHistory(w io.Writer, records []sitewatch.StatusRecord) error {
	fmt.Fprintln(w, "Website History:")

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "URL\tStatus\tTimestamp")
	fmt.Fprintln(tw, "---\t------\t---------")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.URL, strconv.Itoa(r.Status), time.UnixMilli(r.Timestamp).Format(timestampLayout))
	}
	return tw.Flush()
}
