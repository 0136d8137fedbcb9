package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jpalmerr/sitewatch"
)

const (
	defaultIntervalSeconds = 5
	shutdownTimeout        = 5 * time.Second
)

func newLiveCmd(root *rootOptions) *cobra.Command {
	var (
		showResult  bool
		subset      int
		interval    int
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "live [urls...]",
		Short: "Probe URLs repeatedly until stopped",
		Long: `Probe each URL immediately and then every interval seconds, appending
every result to the store. Unreachable websites are recorded with status -1.

Monitoring stops on Ctrl+C, SIGTERM, or when a line is entered on stdin.
Without URL arguments the website list is re-read before every cycle.

When --metrics-addr is set, Prometheus metrics are served on /metrics.

Example:
  sitewatch live
  sitewatch live --interval=30 --show-result
  sitewatch live --metrics-addr=:9090 https://www.example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if subset < 0 {
				return fmt.Errorf("--subset must not be negative, got %d", subset)
			}
			if interval < 1 {
				return fmt.Errorf("--interval must be at least 1 second, got %d", interval)
			}

			var extra []sitewatch.Option
			var reg *prometheus.Registry
			if metricsAddr != "" {
				reg = prometheus.NewRegistry()
				reg.MustRegister(
					collectors.NewGoCollector(),
					collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
				)
				extra = append(extra, sitewatch.WithMetrics(reg))
			}

			m, logger, err := root.newMonitor(cmd, extra...)
			if err != nil {
				return err
			}
			defer m.Close()

			sel := sitewatch.Selection{URLs: args, Subset: subset}
			urls, err := m.Targets(sel)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(urls) == 0 {
				fmt.Fprintln(out, "No URLs configured in the datastore.")
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			if reg != nil {
				_, shutdown, err := serveMetrics(metricsAddr, reg, logger)
				if err != nil {
					return err
				}
				defer shutdown()
			}

			go stopOnInput(cmd.InOrStdin(), cancel)

			fmt.Fprintf(out, "Live monitoring started for: %s\n", strings.Join(urls, ", "))
			fmt.Fprintln(out, "Press Ctrl+C (or Enter) to stop monitoring")

			w := &syncWriter{w: out}
			opts := sitewatch.LiveOptions{
				Interval: time.Duration(interval) * time.Second,
			}
			if showResult {
				opts.OnResult = func(r sitewatch.ProbeResult) {
					printResult(w, r)
				}
				opts.OnCycle = func(records []sitewatch.StatusRecord, err error) {
					if err != nil {
						return
					}
					fmt.Fprintf(w, "Live status updates for: %s\n", strings.Join(recordURLs(records), ", "))
				}
			}

			if err := m.Live(ctx, sel, opts); err != nil {
				if errors.Is(err, sitewatch.ErrNoURLs) {
					fmt.Fprintln(out, "No URLs configured in the datastore.")
					return nil
				}
				return err
			}

			fmt.Fprintln(out, "Live monitoring stopped")
			return nil
		},
	}

	cmd.Flags().BoolVar(&showResult, "show-result", false, "print each URL's status every cycle")
	cmd.Flags().IntVar(&subset, "subset", 0, "probe only the first N URLs (0 probes all)")
	cmd.Flags().IntVar(&interval, "interval", defaultIntervalSeconds, "seconds between cycle starts")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	return cmd
}

// stopOnInput calls cancel once a line is read from r. EOF without a line
// does not cancel, so a closed stdin leaves signals as the only stop.
func stopOnInput(r io.Reader, cancel context.CancelFunc) {
	if r == nil {
		return
	}
	scanner := bufio.NewScanner(r)
	if scanner.Scan() {
		cancel()
	}
}

// serveMetrics starts a /metrics endpoint for reg on addr and returns the
// bound address together with a function that shuts the server down.
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) (net.Addr, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err.Error())
		}
	}()
	logger.Info("metrics server listening", "addr", ln.Addr().String())

	return ln.Addr(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("metrics server shutdown failed", "error", err.Error())
		}
	}, nil
}

// syncWriter serializes writes from the scheduler goroutine.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
