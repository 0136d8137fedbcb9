package store

import (
	"context"
	"errors"
	"sort"
)

// DefaultPageSize is the number of records a page holds before rollover.
const DefaultPageSize = 10

// FailedStatus is recorded when a probe could not complete.
const FailedStatus = -1

var (
	// ErrCorrupt is returned when the backing file cannot be decoded.
	ErrCorrupt = errors.New("store file is corrupt")

	// ErrShapeMismatch is returned when a document is valid JSON but does not
	// have the page-number to record-list shape of the store.
	ErrShapeMismatch = errors.New("incompatible store shape")

	// ErrLocked is returned when the store lock could not be acquired in time.
	ErrLocked = errors.New("store is locked by another process")
)

// StatusRecord is the persisted result of a single probe.
//
// Status is either an HTTP status code or [FailedStatus]. Timestamp is the
// probe time in milliseconds since the Unix epoch.
type StatusRecord struct {
	URL       string `json:"url"`
	Status    int    `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// Pages maps a page number to the records on that page, in insertion order.
type Pages map[int][]StatusRecord

// MaxPage returns the highest page number, or 0 if there are no pages.
func (p Pages) MaxPage() int {
	highest := 0
	for n := range p {
		if n > highest {
			highest = n
		}
	}
	return highest
}

// Numbers returns the page numbers in ascending order.
func (p Pages) Numbers() []int {
	nums := make([]int, 0, len(p))
	for n := range p {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

// Len returns the total number of records across all pages.
func (p Pages) Len() int {
	total := 0
	for _, records := range p {
		total += len(records)
	}
	return total
}

// Flatten returns all records in page order.
func (p Pages) Flatten() []StatusRecord {
	out := make([]StatusRecord, 0, p.Len())
	for _, n := range p.Numbers() {
		out = append(out, p[n]...)
	}
	return out
}

// TotalPages returns how many pages of the given size the records fill.
func TotalPages(records, pageSize int) int {
	if records <= 0 || pageSize <= 0 {
		return 0
	}
	return (records + pageSize - 1) / pageSize
}

// appendRecords appends records to p starting at the last existing page
// (page 1 if p is empty). A page that already holds pageSize records is
// never written to; the next record starts page current+1 instead.
func appendRecords(p Pages, records []StatusRecord, pageSize int) {
	if len(records) == 0 {
		return
	}

	current := p.MaxPage()
	if current == 0 {
		current = 1
	}
	page := p[current]

	for _, r := range records {
		if len(page) >= pageSize {
			p[current] = page
			current++
			page = nil
		}
		page = append(page, r)
	}
	p[current] = page
}

// Store defines the operations on the paged status history.
//
// Implementations must serialize mutations so that concurrent appends are
// never lost.
type Store interface {
	// LoadAll returns every page. An unreadable store yields empty pages and
	// an error wrapping [ErrCorrupt].
	LoadAll() (Pages, error)

	// LoadPage returns the records of page n, or nil if the page does not exist.
	LoadPage(n int) ([]StatusRecord, error)

	// Append adds records after the existing content, rolling over full pages.
	Append(ctx context.Context, records []StatusRecord) error

	// Backup writes the whole store to path.
	Backup(path string) error

	// Restore merges the records of the backup at path into the store and
	// returns how many records were added.
	Restore(ctx context.Context, path string) (int, error)

	// PageSize returns the page capacity.
	PageSize() int
}
