package sitewatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestMonitor creates a Monitor whose config and store live in a temp
// dir. urls are written to the config file when non-empty.
func newTestMonitor(t *testing.T, urls []string, opts ...Option) *Monitor {
	t.Helper()

	dir := t.TempDir()
	configPath := filepath.Join(dir, "web_config.json")
	if len(urls) > 0 {
		entries := make([]map[string]string, len(urls))
		for i, u := range urls {
			entries[i] = map[string]string{"url": u}
		}
		data, err := json.Marshal(entries)
		if err != nil {
			t.Fatalf("failed to marshal config: %v", err)
		}
		if err := os.WriteFile(configPath, data, 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
	}

	base := []Option{
		WithConfigPath(configPath),
		WithStorePath(filepath.Join(dir, "website_data.json")),
		WithLogger(testLogger()),
	}
	m, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(m.Close)
	return m
}

func statusServer(t *testing.T, code int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func closedServerURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	u := srv.URL
	srv.Close()
	return u
}

func TestMonitor_Targets(t *testing.T) {
	configured := []string{"https://a.example.com", "https://b.example.com", "https://c.example.com"}
	m := newTestMonitor(t, configured)

	tests := []struct {
		name string
		sel  Selection
		want []string
	}{
		{name: "configured", sel: Selection{}, want: configured},
		{name: "subset", sel: Selection{Subset: 2}, want: configured[:2]},
		{name: "subset larger than list", sel: Selection{Subset: 10}, want: configured},
		{name: "explicit urls win", sel: Selection{URLs: []string{"https://x.example.com"}}, want: []string{"https://x.example.com"}},
		{name: "subset of explicit urls", sel: Selection{URLs: []string{"https://x.example.com", "https://y.example.com"}, Subset: 1}, want: []string{"https://x.example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Targets(tt.sel)
			if err != nil {
				t.Fatalf("Targets() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Targets() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMonitor_TargetsNegativeSubset(t *testing.T) {
	m := newTestMonitor(t, nil)
	if _, err := m.Targets(Selection{Subset: -1}); err == nil {
		t.Fatal("Targets() expected error for negative subset, got nil")
	}
}

func TestMonitor_TargetsBadConfig(t *testing.T) {
	m := newTestMonitor(t, nil)
	if err := os.WriteFile(m.Settings().ConfigPath, []byte(`"just a string"`), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := m.Targets(Selection{}); err == nil {
		t.Fatal("Targets() expected error for malformed config, got nil")
	}
}

func TestMonitor_FetchEndToEnd(t *testing.T) {
	ok := statusServer(t, http.StatusOK)
	missing := statusServer(t, http.StatusNotFound)
	m := newTestMonitor(t, []string{ok.URL, missing.URL})

	var seen []ProbeResult
	before := time.Now().UnixMilli()
	res, err := m.Fetch(context.Background(), Selection{}, func(r ProbeResult) {
		seen = append(seen, r)
	})
	after := time.Now().UnixMilli()
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if len(res.Records) != 2 {
		t.Fatalf("len(Records) = %d, want 2", len(res.Records))
	}
	if res.Records[0].URL != ok.URL || res.Records[0].Status != http.StatusOK {
		t.Errorf("Records[0] = %+v", res.Records[0])
	}
	if res.Records[1].URL != missing.URL || res.Records[1].Status != http.StatusNotFound {
		t.Errorf("Records[1] = %+v", res.Records[1])
	}
	for _, r := range res.Records {
		if r.Timestamp < before || r.Timestamp > after {
			t.Errorf("Timestamp %d outside [%d, %d]", r.Timestamp, before, after)
		}
	}
	if len(seen) != 2 {
		t.Errorf("onResult called %d times, want 2", len(seen))
	}

	page, err := m.HistoryPage(1)
	if err != nil {
		t.Fatalf("HistoryPage(1) error = %v", err)
	}
	if !reflect.DeepEqual(page.Records, res.Records) {
		t.Errorf("page 1 = %v, want %v", page.Records, res.Records)
	}
	if page.TotalPages != 1 {
		t.Errorf("TotalPages = %d, want 1", page.TotalPages)
	}
}

func TestMonitor_FetchSkipsInvalidAndFailed(t *testing.T) {
	ok := statusServer(t, http.StatusOK)
	refused := closedServerURL(t)
	m := newTestMonitor(t, []string{"not a url", refused, ok.URL})

	res, err := m.Fetch(context.Background(), Selection{}, nil)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if !reflect.DeepEqual(res.Invalid, []string{"not a url"}) {
		t.Errorf("Invalid = %v, want [not a url]", res.Invalid)
	}
	if len(res.Failed) != 1 || res.Failed[0].URL != refused {
		t.Errorf("Failed = %v, want one failure for %s", res.Failed, refused)
	}
	if res.Failed[0].Status != FailedStatus || res.Failed[0].Error == nil {
		t.Errorf("Failed[0] = %+v, want status -1 with error", res.Failed[0])
	}
	if len(res.Records) != 1 || res.Records[0].URL != ok.URL {
		t.Errorf("Records = %v, want only %s", res.Records, ok.URL)
	}
}

func TestMonitor_FetchNoURLs(t *testing.T) {
	m := newTestMonitor(t, nil)

	_, err := m.Fetch(context.Background(), Selection{}, nil)
	if !errors.Is(err, ErrNoURLs) {
		t.Errorf("Fetch() error = %v, want ErrNoURLs", err)
	}
}

func TestMonitor_FetchNoData(t *testing.T) {
	m := newTestMonitor(t, []string{"bad url", closedServerURL(t)})

	res, err := m.Fetch(context.Background(), Selection{}, nil)
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("Fetch() error = %v, want ErrNoData", err)
	}
	if len(res.Invalid) != 1 || len(res.Failed) != 1 {
		t.Errorf("result = %+v, want one invalid and one failed", res)
	}
	if _, err := os.Stat(m.Settings().StorePath); !os.IsNotExist(err) {
		t.Errorf("store file should not exist after a fetch with no data, stat err = %v", err)
	}
}

func TestMonitor_FetchExplicitURLs(t *testing.T) {
	configured := statusServer(t, http.StatusOK)
	explicit := statusServer(t, http.StatusAccepted)
	m := newTestMonitor(t, []string{configured.URL})

	res, err := m.Fetch(context.Background(), Selection{URLs: []string{explicit.URL}}, nil)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(res.Records) != 1 || res.Records[0].URL != explicit.URL || res.Records[0].Status != http.StatusAccepted {
		t.Errorf("Records = %v, want one 202 for %s", res.Records, explicit.URL)
	}
}

func TestMonitor_HistoryPage(t *testing.T) {
	srv := statusServer(t, http.StatusOK)
	m := newTestMonitor(t, []string{srv.URL}, WithPageSize(2))

	if _, err := m.HistoryPage(1); !errors.Is(err, ErrNoData) {
		t.Fatalf("HistoryPage(1) on empty store error = %v, want ErrNoData", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := m.Fetch(context.Background(), Selection{}, nil); err != nil {
			t.Fatalf("Fetch() #%d error = %v", i, err)
		}
	}

	tests := []struct {
		page    int
		want    int
		wantErr error
	}{
		{page: 1, want: 2},
		{page: 2, want: 1},
		{page: 3, wantErr: ErrNoData},
	}
	for _, tt := range tests {
		page, err := m.HistoryPage(tt.page)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("HistoryPage(%d) error = %v, want %v", tt.page, err, tt.wantErr)
			}
			continue
		}
		if err != nil {
			t.Fatalf("HistoryPage(%d) error = %v", tt.page, err)
		}
		if len(page.Records) != tt.want {
			t.Errorf("HistoryPage(%d) len = %d, want %d", tt.page, len(page.Records), tt.want)
		}
		if page.TotalPages != 2 {
			t.Errorf("HistoryPage(%d) TotalPages = %d, want 2", tt.page, page.TotalPages)
		}
	}

	if _, err := m.HistoryPage(0); err == nil {
		t.Error("HistoryPage(0) expected error, got nil")
	}
}

func TestMonitor_HistoryFiltersByURL(t *testing.T) {
	a := statusServer(t, http.StatusOK)
	b := statusServer(t, http.StatusServiceUnavailable)
	m := newTestMonitor(t, []string{a.URL, b.URL})

	for i := 0; i < 2; i++ {
		if _, err := m.Fetch(context.Background(), Selection{}, nil); err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
	}

	got, err := m.History([]string{b.URL})
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(History) = %d, want 2", len(got))
	}
	for _, r := range got {
		if r.URL != b.URL || r.Status != http.StatusServiceUnavailable {
			t.Errorf("unexpected record %+v", r)
		}
	}

	all, err := m.History(nil)
	if err != nil {
		t.Fatalf("History(nil) error = %v", err)
	}
	if len(all) != 4 {
		t.Errorf("len(History(nil)) = %d, want 4", len(all))
	}

	if _, err := m.History([]string{"https://unknown.example.com"}); !errors.Is(err, ErrNoData) {
		t.Errorf("History(unknown) error = %v, want ErrNoData", err)
	}
}

func TestMonitor_HistoryCorruptStoreIsEmpty(t *testing.T) {
	m := newTestMonitor(t, []string{"https://a.example.com"})
	if err := os.WriteFile(m.Settings().StorePath, []byte("{not json"), 0644); err != nil {
		t.Fatalf("failed to write store: %v", err)
	}

	if _, err := m.History(nil); !errors.Is(err, ErrNoData) {
		t.Errorf("History() error = %v, want ErrNoData", err)
	}
}

func TestMonitor_HistoryPageReadsStoreOnce(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	m := newTestMonitor(t, nil, WithLogger(logger))
	if err := os.WriteFile(m.Settings().StorePath, []byte("{not json"), 0644); err != nil {
		t.Fatalf("failed to write store: %v", err)
	}

	page, err := m.HistoryPage(1)
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("HistoryPage(1) error = %v, want ErrNoData", err)
	}
	if page.TotalPages != 0 {
		t.Errorf("TotalPages = %d, want 0", page.TotalPages)
	}
	if got := strings.Count(logs.String(), "failed to load store"); got != 1 {
		t.Errorf("store load warnings = %d, want 1\nGot: %s", got, logs.String())
	}
}

func TestMonitor_BackupRestoreIsAdditive(t *testing.T) {
	srv := statusServer(t, http.StatusOK)
	m := newTestMonitor(t, []string{srv.URL})
	backup := filepath.Join(t.TempDir(), "backup.json")

	if _, err := m.Fetch(context.Background(), Selection{}, nil); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if err := m.Backup(backup); err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if _, err := m.Fetch(context.Background(), Selection{}, nil); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	n, err := m.Restore(context.Background(), backup)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Restore() = %d, want 1", n)
	}

	got, err := m.History(nil)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(got) != 3 {
		t.Errorf("len(History) = %d, want 3 after additive restore", len(got))
	}
}

func TestMonitor_RestoreShapeMismatch(t *testing.T) {
	srv := statusServer(t, http.StatusOK)
	m := newTestMonitor(t, []string{srv.URL})
	if _, err := m.Fetch(context.Background(), Selection{}, nil); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	before, err := os.ReadFile(m.Settings().StorePath)
	if err != nil {
		t.Fatalf("failed to read store: %v", err)
	}

	backup := filepath.Join(t.TempDir(), "backup.json")
	if err := os.WriteFile(backup, []byte(`{"1": [{"name": "x"}]}`), 0644); err != nil {
		t.Fatalf("failed to write backup: %v", err)
	}

	_, err = m.Restore(context.Background(), backup)
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("Restore() error = %v, want ErrShapeMismatch", err)
	}

	after, err := os.ReadFile(m.Settings().StorePath)
	if err != nil {
		t.Fatalf("failed to read store: %v", err)
	}
	if string(before) != string(after) {
		t.Error("store changed after a rejected restore")
	}
}

func TestMonitor_LiveStopsOnCancel(t *testing.T) {
	srv := statusServer(t, http.StatusOK)
	m := newTestMonitor(t, []string{srv.URL, closedServerURL(t)})

	ctx, cancel := context.WithCancel(context.Background())
	cycles := make(chan []StatusRecord, 16)
	done := make(chan error, 1)
	go func() {
		done <- m.Live(ctx, Selection{}, LiveOptions{
			Interval: 50 * time.Millisecond,
			OnCycle: func(records []StatusRecord, err error) {
				if err != nil {
					return
				}
				select {
				case cycles <- records:
				default:
				}
			},
		})
	}()

	for i := 0; i < 2; i++ {
		select {
		case records := <-cycles:
			if len(records) != 2 {
				t.Errorf("cycle %d records = %v, want 2 including the failure", i, records)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for live cycles")
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Live() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Live() did not return after cancel")
	}

	got, err := m.History(nil)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	failures := 0
	for _, r := range got {
		if r.Status == FailedStatus {
			failures++
		}
	}
	if failures < 2 {
		t.Errorf("failed records = %d, want at least 2 persisted by live", failures)
	}
}

func TestMonitor_LiveNoURLs(t *testing.T) {
	m := newTestMonitor(t, nil)
	if err := m.Live(context.Background(), Selection{}, LiveOptions{}); !errors.Is(err, ErrNoURLs) {
		t.Errorf("Live() error = %v, want ErrNoURLs", err)
	}
}

func TestMonitor_LiveCancelledBeforeStart(t *testing.T) {
	srv := statusServer(t, http.StatusOK)
	m := newTestMonitor(t, []string{srv.URL})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Live(ctx, Selection{}, LiveOptions{}); err != nil {
		t.Errorf("Live() error = %v", err)
	}
	if _, err := os.Stat(m.Settings().StorePath); !os.IsNotExist(err) {
		t.Errorf("store should not be written when cancelled before start, stat err = %v", err)
	}
}
