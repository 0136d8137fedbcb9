package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/sitewatch"
)

const exampleURL = "https://www.example.com"

func newFetchCmd(root *rootOptions) *cobra.Command {
	var (
		showResult bool
		subset     int
	)

	cmd := &cobra.Command{
		Use:   "fetch [urls...]",
		Short: "Probe every URL once and record the results",
		Long: `Probe each URL once and append the successful results to the store in
a single batch.

URLs given as arguments replace the configured website list for this run.
Invalid URLs and unreachable websites are skipped.

Example:
  sitewatch fetch
  sitewatch fetch --show-result --subset=2
  sitewatch fetch https://www.example.com https://www.google.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if subset < 0 {
				return fmt.Errorf("--subset must not be negative, got %d", subset)
			}

			m, _, err := root.newMonitor(cmd)
			if err != nil {
				return err
			}
			defer m.Close()

			out := cmd.OutOrStdout()
			var onResult func(sitewatch.ProbeResult)
			if showResult {
				onResult = func(r sitewatch.ProbeResult) {
					printResult(out, r)
				}
			}

			res, err := m.Fetch(cmd.Context(), sitewatch.Selection{URLs: args, Subset: subset}, onResult)
			for _, u := range res.Invalid {
				fmt.Fprintf(out, "Error: Invalid URL: %s\n", u)
			}

			switch {
			case errors.Is(err, sitewatch.ErrNoURLs):
				fmt.Fprintln(out, "No URLs configured in the datastore.")
				return nil
			case errors.Is(err, sitewatch.ErrNoData):
				fmt.Fprintf(out, "No valid URLs provided or fetched successfully. Example of a valid URL: %s\n", exampleURL)
				return nil
			case err != nil:
				return err
			}

			fmt.Fprintf(out, "Successfully fetched statuses for: %s\n", strings.Join(recordURLs(res.Records), ", "))
			return nil
		},
	}

	cmd.Flags().BoolVar(&showResult, "show-result", false, "print each URL's status as it is probed")
	cmd.Flags().IntVar(&subset, "subset", 0, "probe only the first N URLs (0 probes all)")
	return cmd
}

func printResult(w io.Writer, r sitewatch.ProbeResult) {
	fmt.Fprintf(w, "%s: %d\n", r.URL, r.Status)
}

func recordURLs(records []sitewatch.StatusRecord) []string {
	urls := make([]string, len(records))
	for i, r := range records {
		urls[i] = r.URL
	}
	return urls
}
