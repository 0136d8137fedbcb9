package poller

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jpalmerr/sitewatch/internal/store"
)

// DefaultInterval is the period between live cycles.
const DefaultInterval = 5 * time.Second

// ProbeResult holds the outcome of probing a single URL.
type ProbeResult struct {
	// URL is the probed URL.
	URL string

	// Status is the HTTP status code, or store.FailedStatus.
	Status int

	// CheckedAt is when the probe completed.
	CheckedAt time.Time

	// Error describes why the probe failed. nil when Status is a real code.
	Error error
}

// Record converts the result to its persisted form.
func (r ProbeResult) Record() store.StatusRecord {
	return store.StatusRecord{
		URL:       r.URL,
		Status:    r.Status,
		Timestamp: r.CheckedAt.UnixMilli(),
	}
}

// CycleResult summarises one probe-and-append cycle.
type CycleResult struct {
	// ID identifies the cycle in logs.
	ID string

	// Targets is the number of URLs the cycle started with.
	Targets int

	// Invalid lists the URLs rejected by IsValidURL. They are not probed.
	Invalid []string

	// Results holds one entry per probed URL, in target order.
	Results []ProbeResult

	// Records holds what was appended to the store, in target order.
	Records []store.StatusRecord
}

// Appender persists a batch of status records.
type Appender interface {
	Append(ctx context.Context, records []store.StatusRecord) error
}

// TargetFunc returns the URLs to probe. It is called once per cycle.
type TargetFunc func() ([]string, error)

// StaticTargets returns a [TargetFunc] that always yields urls.
func StaticTargets(urls []string) TargetFunc {
	cp := append([]string(nil), urls...)
	return func() ([]string, error) {
		return cp, nil
	}
}

// SchedulerConfig configures a [Scheduler].
type SchedulerConfig struct {
	// Targets supplies the URLs for each cycle. Required.
	Targets TargetFunc

	// Interval is the period between cycle starts in repeating mode.
	// Defaults to DefaultInterval.
	Interval time.Duration

	// Concurrency bounds parallel probes within a cycle. Defaults to 1,
	// which probes sequentially.
	Concurrency int

	// KeepFailures records failed probes (status -1) as well as successful
	// ones. When false only probes that produced a status code are appended.
	KeepFailures bool

	// OnResult is called for every probe result, in target order, before
	// the batch is appended.
	OnResult func(ProbeResult)

	// OnCycle is called after each cycle in repeating mode.
	OnCycle func(CycleResult, error)

	// Logger receives probe failures and cycle events. Defaults to slog.Default().
	Logger *slog.Logger

	// Metrics may be nil.
	Metrics *Metrics

	// Now defaults to time.Now.
	Now func() time.Time
}

// Scheduler runs probe-and-append cycles over a set of URLs.
//
// [Scheduler.RunCycle] runs a single cycle synchronously. [Scheduler.Start]
// runs cycles at a fixed rate on one background goroutine until
// [Scheduler.Stop] is called or the context is cancelled. Cycles never
// overlap: when a cycle overruns the interval, the ticks it missed are
// skipped and the next cycle starts at the next deadline on the original
// grid.
//
// All lifecycle methods (Start, Stop) are safe for concurrent use.
type Scheduler struct {
	prober Prober
	sink   Appender
	cfg    SchedulerConfig
	logger *slog.Logger

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler creates a [Scheduler] that probes with prober and appends
// to sink.
func NewScheduler(prober Prober, sink Appender, cfg SchedulerConfig) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Targets == nil {
		cfg.Targets = StaticTargets(nil)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		prober: prober,
		sink:   sink,
		cfg:    cfg,
		logger: logger,
	}
}

// RunCycle loads the targets, probes every valid URL and appends the
// resulting records in one batch.
//
// The returned CycleResult is populated as far as the cycle got, even when
// an error is returned. An error is only returned for loading targets or
// appending to the store; probe failures are part of the result.
func (s *Scheduler) RunCycle(ctx context.Context) (CycleResult, error) {
	res := CycleResult{ID: uuid.NewString()}

	urls, err := s.cfg.Targets()
	if err != nil {
		return res, fmt.Errorf("failed to load targets: %w", err)
	}
	res.Targets = len(urls)

	valid := make([]string, 0, len(urls))
	for _, u := range urls {
		if !IsValidURL(u) {
			s.logger.Warn("skipping invalid url", "cycle_id", res.ID, "url", u)
			res.Invalid = append(res.Invalid, u)
			continue
		}
		valid = append(valid, u)
	}

	res.Results = s.probeAll(ctx, valid)

	for _, r := range res.Results {
		if r.Error != nil {
			s.logger.Warn("probe failed", "cycle_id", res.ID, "url", r.URL, "error", r.Error.Error())
		} else {
			s.logger.Debug("probe completed", "cycle_id", res.ID, "url", r.URL, "status", r.Status)
		}
		if s.cfg.OnResult != nil {
			s.cfg.OnResult(r)
		}
		if r.Status != store.FailedStatus || s.cfg.KeepFailures {
			res.Records = append(res.Records, r.Record())
		}
	}

	if len(res.Records) > 0 {
		if err := s.sink.Append(ctx, res.Records); err != nil {
			return res, fmt.Errorf("failed to append %d records: %w", len(res.Records), err)
		}
	}

	s.cfg.Metrics.observeCycle(len(res.Records))
	return res, nil
}

// probeAll probes urls with bounded parallelism. Results are indexed by
// input position so their order never depends on completion order.
func (s *Scheduler) probeAll(ctx context.Context, urls []string) []ProbeResult {
	results := make([]ProbeResult, len(urls))

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Concurrency)
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			status, err := s.safeProbe(ctx, u)
			results[i] = ProbeResult{
				URL:       u,
				Status:    status,
				CheckedAt: s.cfg.Now(),
				Error:     err,
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Start begins repeating cycles in a background goroutine.
//
// The first cycle runs immediately. Start is non-blocking and idempotent;
// if Stop was called before Start, Start is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.loop(runCtx)
	}()
}

// Stop cancels the loop and waits for an in-flight cycle to finish and
// persist its records.
//
// Stop is idempotent and safe to call before Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		if s.cancel != nil {
			s.cancel()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// loop runs cycles on a fixed-rate grid anchored at the first cycle start.
//
// ctx only ends the wait between cycles. A cycle runs on a context that
// stopping does not cancel, so its probes finish within their own timeouts
// and its records are appended.
func (s *Scheduler) loop(ctx context.Context) {
	interval := s.cfg.Interval
	next := s.cfg.Now()
	cycleCtx := context.WithoutCancel(ctx)

	for {
		if ctx.Err() != nil {
			return
		}

		res, err := s.safeCycle(cycleCtx)
		if err != nil {
			s.logger.Error("cycle failed", "cycle_id", res.ID, "error", err.Error())
		}
		if s.cfg.OnCycle != nil {
			s.cfg.OnCycle(res, err)
		}

		next = next.Add(interval)
		now := s.cfg.Now()
		if now.After(next) {
			missed := int(now.Sub(next)/interval) + 1
			next = next.Add(time.Duration(missed) * interval)
			s.cfg.Metrics.observeSkipped(missed)
			s.logger.Warn("cycle overran interval, skipping ticks",
				"cycle_id", res.ID,
				"interval", interval.String(),
				"skipped", missed,
			)
		}

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// safeProbe calls the prober with panic recovery. A panicking probe counts
// as a failed probe; the panic is logged with a correlation ID.
func (s *Scheduler) safeProbe(ctx context.Context, url string) (status int, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			s.logger.Error("probe panic",
				"correlation_id", correlationID,
				"url", url,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			status = store.FailedStatus
			err = fmt.Errorf("probe panic (correlation_id: %s)", correlationID)
		}
	}()
	return s.prober.Probe(ctx, url)
}

// safeCycle runs a cycle with panic recovery so that one bad cycle cannot
// kill the loop. The panic is logged with a correlation ID.
func (s *Scheduler) safeCycle(ctx context.Context) (res CycleResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			s.logger.Error("cycle panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("cycle panic (correlation_id: %s)", correlationID)
		}
	}()
	return s.RunCycle(ctx)
}
