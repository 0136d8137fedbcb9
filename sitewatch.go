package sitewatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jpalmerr/sitewatch/config"
	"github.com/jpalmerr/sitewatch/internal/poller"
	"github.com/jpalmerr/sitewatch/internal/store"
)

// Selection narrows the URL set for a single operation.
type Selection struct {
	// URLs overrides the configured website list when non-empty.
	URLs []string

	// Subset keeps only the first Subset URLs. Zero keeps all.
	Subset int
}

// LiveOptions configures [Monitor.Live].
type LiveOptions struct {
	// Interval overrides the monitor's default interval when positive.
	Interval time.Duration

	// OnResult is called for every probe, in URL order, each cycle.
	OnResult func(ProbeResult)

	// OnCycle is called after each cycle with the records it appended.
	// err is non-nil when the cycle could not load URLs or persist records.
	OnCycle func(records []StatusRecord, err error)
}

// Monitor polls websites and keeps their status history.
//
// Monitor is created with [New] and holds one store handle for its lifetime.
// All store mutations go through that handle, which serializes them in
// process and locks the backing file against other processes.
//
// The typical lifecycle is:
//
//	m, err := sitewatch.New(sitewatch.WithStorePath("data.json"))
//	if err != nil {
//	    return err
//	}
//	defer m.Close()
//
//	res, err := m.Fetch(ctx, sitewatch.Selection{}, nil)
type Monitor struct {
	settings config.Settings
	store    store.Store
	prober   *poller.HTTPProber
	metrics  *poller.Metrics
	logger   *slog.Logger
}

// New creates a [Monitor] with the given options.
//
// Defaults come from [config.DefaultSettings]. Returns an error if any
// option or the resulting settings are invalid.
func New(opts ...Option) (*Monitor, error) {
	cfg := &monitorConfig{
		settings: config.DefaultSettings(),
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	var metrics *poller.Metrics
	if cfg.registry != nil {
		metrics = poller.NewMetrics(cfg.registry)
	}

	return &Monitor{
		settings: cfg.settings,
		store:    store.NewFileStore(cfg.settings.StorePath, store.WithPageSize(cfg.settings.PageSize)),
		prober:   poller.NewHTTPProber(cfg.settings.Timeout, metrics),
		metrics:  metrics,
		logger:   logger,
	}, nil
}

// Settings returns the effective settings.
func (m *Monitor) Settings() config.Settings {
	return m.settings
}

// Close releases idle network connections.
func (m *Monitor) Close() {
	m.prober.Close()
}

// Targets resolves a selection to the URLs an operation would probe.
//
// Explicit URLs win over the configured website list. The configuration is
// read fresh on every call; a missing file is an empty list.
func (m *Monitor) Targets(sel Selection) ([]string, error) {
	if sel.Subset < 0 {
		return nil, fmt.Errorf("subset must not be negative, got %d", sel.Subset)
	}

	urls := sel.URLs
	if len(urls) == 0 {
		websites, err := config.LoadWebsites(m.settings.ConfigPath)
		if err != nil {
			return nil, err
		}
		urls = config.URLs(websites)
	}

	if sel.Subset > 0 && sel.Subset < len(urls) {
		urls = urls[:sel.Subset]
	}
	return append([]string(nil), urls...), nil
}

// Fetch probes every selected URL once and appends the successful results
// to the store in one batch.
//
// Invalid URLs are skipped and failed probes are not recorded. Returns
// [ErrNoURLs] if nothing was selected and [ErrNoData] if no probe produced
// a status code; the FetchResult is populated in both cases.
func (m *Monitor) Fetch(ctx context.Context, sel Selection, onResult func(ProbeResult)) (FetchResult, error) {
	urls, err := m.Targets(sel)
	if err != nil {
		return FetchResult{}, err
	}
	if len(urls) == 0 {
		return FetchResult{}, ErrNoURLs
	}

	var failed []ProbeResult
	sched := poller.NewScheduler(m.prober, m.store, poller.SchedulerConfig{
		Targets:     poller.StaticTargets(urls),
		Concurrency: m.settings.Concurrency,
		Logger:      m.logger,
		Metrics:     m.metrics,
		OnResult: func(pr poller.ProbeResult) {
			r := pollerResultToPublicResult(pr)
			if r.Status == FailedStatus {
				failed = append(failed, r)
			}
			if onResult != nil {
				onResult(r)
			}
		},
	})

	cycle, err := sched.RunCycle(ctx)
	res := FetchResult{
		Records: cycle.Records,
		Invalid: cycle.Invalid,
		Failed:  failed,
	}
	if err != nil {
		return res, err
	}
	if len(res.Records) == 0 {
		return res, ErrNoData
	}

	m.logger.Info("fetch completed",
		"cycle_id", cycle.ID,
		"recorded", len(res.Records),
		"failed", len(res.Failed),
		"invalid", len(res.Invalid),
	)
	return res, nil
}

// Live probes the selected URLs immediately and then every interval until
// ctx is cancelled, appending every result (failures included) to the store.
//
// Cycles never overlap; a cycle that overruns the interval causes the missed
// ticks to be skipped. When no explicit URLs are given the website list is
// re-read each cycle. Live returns nil once ctx is cancelled and the
// in-flight cycle has finished, or [ErrNoURLs] if nothing is selected at
// start.
func (m *Monitor) Live(ctx context.Context, sel Selection, opts LiveOptions) error {
	urls, err := m.Targets(sel)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		return ErrNoURLs
	}
	if ctx.Err() != nil {
		return nil
	}

	interval := m.settings.Interval
	if opts.Interval > 0 {
		interval = opts.Interval
	}

	targets := poller.StaticTargets(urls)
	if len(sel.URLs) == 0 {
		targets = func() ([]string, error) {
			return m.Targets(sel)
		}
	}

	cfg := poller.SchedulerConfig{
		Targets:      targets,
		Interval:     interval,
		Concurrency:  m.settings.Concurrency,
		KeepFailures: true,
		Logger:       m.logger,
		Metrics:      m.metrics,
	}
	if opts.OnResult != nil {
		cfg.OnResult = func(pr poller.ProbeResult) {
			opts.OnResult(pollerResultToPublicResult(pr))
		}
	}
	if opts.OnCycle != nil {
		cfg.OnCycle = func(res poller.CycleResult, err error) {
			opts.OnCycle(res.Records, err)
		}
	}

	m.logger.Info("live monitoring started",
		"urls", strings.Join(urls, ","),
		"interval", interval.String(),
	)

	sched := poller.NewScheduler(m.prober, m.store, cfg)
	sched.Start(ctx)
	<-ctx.Done()
	sched.Stop()

	m.logger.Info("live monitoring stopped")
	return nil
}

// History returns every stored record whose URL is in urls, in store order.
// With no urls the configured website list is used.
//
// Returns [ErrNoData] if nothing matches. An unreadable store is logged and
// treated as empty.
func (m *Monitor) History(urls []string) ([]StatusRecord, error) {
	if len(urls) == 0 {
		var err error
		urls, err = m.Targets(Selection{})
		if err != nil {
			return nil, err
		}
	}

	wanted := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		wanted[u] = struct{}{}
	}

	var out []StatusRecord
	for _, r := range m.loadAll().Flatten() {
		if _, ok := wanted[r.URL]; ok {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}

// HistoryPage returns native store page n together with the total page
// count. URL filters do not apply to pages.
//
// Returns [ErrNoData] if the page holds no records.
func (m *Monitor) HistoryPage(n int) (Page, error) {
	if n < 1 {
		return Page{}, fmt.Errorf("page must be at least 1, got %d", n)
	}

	pages := m.loadAll()
	page := Page{
		Number:     n,
		Records:    pages[n],
		TotalPages: store.TotalPages(pages.Len(), m.store.PageSize()),
	}
	if len(page.Records) == 0 {
		return page, ErrNoData
	}
	return page, nil
}

// Backup writes the whole store to path.
func (m *Monitor) Backup(path string) error {
	if err := m.store.Backup(path); err != nil {
		m.logger.Error("backup failed", "path", path, "error", err.Error())
		return err
	}
	m.logger.Info("backup created", "path", path)
	return nil
}

// Restore merges the backup at path into the store and returns how many
// records were added.
//
// Restore is additive: the backup's records are appended after the current
// content, continuing from the last page. Nothing already in the store is
// removed. A backup of the wrong shape is rejected with [ErrShapeMismatch]
// and the store is left untouched.
func (m *Monitor) Restore(ctx context.Context, path string) (int, error) {
	n, err := m.store.Restore(ctx, path)
	if err != nil {
		if errors.Is(err, store.ErrShapeMismatch) {
			m.logger.Error("restore aborted, backup shape does not match store", "path", path, "error", err.Error())
		} else {
			m.logger.Error("restore failed", "path", path, "error", err.Error())
		}
		return 0, err
	}
	m.logger.Info("restore completed", "path", path, "records", n)
	return n, nil
}

// loadAll reads the store, degrading to an empty view on corruption.
func (m *Monitor) loadAll() store.Pages {
	pages, err := m.store.LoadAll()
	if err != nil {
		m.logger.Warn("failed to load store, treating as empty",
			"path", m.settings.StorePath,
			"error", err.Error(),
		)
	}
	return pages
}
