package sitewatch

import (
	"errors"
	"time"

	"github.com/jpalmerr/sitewatch/internal/poller"
	"github.com/jpalmerr/sitewatch/internal/store"
)

// FailedStatus is the status recorded when a probe could not complete
// (invalid URL, DNS failure, refused connection, timeout).
const FailedStatus = store.FailedStatus

var (
	// ErrNoURLs is returned when neither the configuration nor the caller
	// supplied any URL.
	ErrNoURLs = errors.New("no URLs configured")

	// ErrNoData is returned when an operation completed but produced or
	// found no status records.
	ErrNoData = errors.New("no data")

	// ErrShapeMismatch is returned by [Monitor.Restore] when the backup does
	// not have the shape of a status store. The store is left untouched.
	ErrShapeMismatch = store.ErrShapeMismatch

	// ErrCorrupt is returned when a store or backup file is not valid JSON.
	ErrCorrupt = store.ErrCorrupt
)

// StatusRecord is the persisted result of a single probe: the URL, the HTTP
// status code (or [FailedStatus]) and the probe time in Unix milliseconds.
type StatusRecord = store.StatusRecord

// ProbeResult holds the outcome of probing a single URL.
//
// ProbeResult is passed to result callbacks as soon as a cycle's probes have
// completed, before the records are persisted.
type ProbeResult struct {
	// URL is the probed URL.
	URL string

	// Status is the HTTP status code, or FailedStatus.
	Status int

	// CheckedAt is when the probe completed.
	CheckedAt time.Time

	// Error describes why the probe failed. nil when Status is a real code,
	// including 4xx and 5xx codes.
	Error error
}

// FetchResult summarises a one-shot fetch.
type FetchResult struct {
	// Records holds what was appended to the store, in URL order.
	Records []StatusRecord

	// Invalid lists configured URLs that failed validation and were skipped.
	Invalid []string

	// Failed holds probes that did not produce a status code.
	Failed []ProbeResult
}

// Page is a single native page of the store.
type Page struct {
	// Number is the requested page number.
	Number int

	// Records holds the page's records in insertion order.
	Records []StatusRecord

	// TotalPages is ceil(total records / page size) across the whole store.
	TotalPages int
}

// pollerResultToPublicResult converts an internal probe result.
func pollerResultToPublicResult(pr poller.ProbeResult) ProbeResult {
	return ProbeResult{
		URL:       pr.URL,
		Status:    pr.Status,
		CheckedAt: pr.CheckedAt,
		Error:     pr.Error,
	}
}
