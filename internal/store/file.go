package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const (
	defaultLockTimeout    = 10 * time.Second
	defaultLockRetryDelay = 50 * time.Millisecond
	filePerm              = 0o644
)

// FileStore is a [Store] persisted as a single JSON file.
//
// Every mutation is a read-modify-write of the whole file: the current
// content is loaded, modified in memory and written back via a temporary
// file and rename. Mutations hold both an in-process mutex and an exclusive
// file lock on path+".lock" for the full cycle. Reads take no lock; the
// rename keeps them from ever seeing a partially written file.
type FileStore struct {
	path        string
	pageSize    int
	lockTimeout time.Duration

	mu   sync.Mutex
	lock *flock.Flock
}

var _ Store = (*FileStore)(nil)

// Option configures a [FileStore].
type Option func(*FileStore)

// WithPageSize sets the page capacity. Values below 1 are ignored.
func WithPageSize(n int) Option {
	return func(s *FileStore) {
		if n >= 1 {
			s.pageSize = n
		}
	}
}

// WithLockTimeout sets how long a mutation waits for the file lock before
// failing with [ErrLocked].
func WithLockTimeout(d time.Duration) Option {
	return func(s *FileStore) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// NewFileStore creates a [FileStore] backed by the file at path.
//
// The file does not need to exist; a missing file is an empty store and is
// created on the first append.
func NewFileStore(path string, opts ...Option) *FileStore {
	s := &FileStore{
		path:        path,
		pageSize:    DefaultPageSize,
		lockTimeout: defaultLockTimeout,
		lock:        flock.New(path + ".lock"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// PageSize returns the page capacity.
func (s *FileStore) PageSize() int {
	return s.pageSize
}

// LoadAll reads every page from the backing file.
//
// A missing file yields empty pages and no error. A file that cannot be read
// or decoded yields empty pages and an error wrapping [ErrCorrupt], so callers
// can log the problem and carry on with an empty view.
func (s *FileStore) LoadAll() (Pages, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Pages{}, nil
	}
	if err != nil {
		return Pages{}, fmt.Errorf("%w: failed to read %s: %w", ErrCorrupt, s.path, err)
	}

	pages, err := decodePages(data)
	if err != nil {
		if errors.Is(err, ErrCorrupt) {
			return Pages{}, fmt.Errorf("failed to decode %s: %w", s.path, err)
		}
		return Pages{}, fmt.Errorf("%w: failed to decode %s: %w", ErrCorrupt, s.path, err)
	}
	return pages, nil
}

// LoadPage returns the records of page n, or nil if it does not exist.
func (s *FileStore) LoadPage(n int) ([]StatusRecord, error) {
	pages, err := s.LoadAll()
	if err != nil {
		return nil, err
	}
	return pages[n], nil
}

// Append adds records after the existing content.
//
// The first record goes to the last existing page if it has room, so
// successive calls share a partially filled page. A full page is never
// extended; the next record starts a new page instead.
//
// Append refuses to overwrite a backing file it cannot decode.
func (s *FileStore) Append(ctx context.Context, records []StatusRecord) error {
	if len(records) == 0 {
		return nil
	}
	return s.mutate(ctx, func(p Pages) {
		appendRecords(p, records, s.pageSize)
	})
}

// Backup writes the current content of the store to path.
func (s *FileStore) Backup(path string) error {
	pages, err := s.LoadAll()
	if err != nil {
		return fmt.Errorf("failed to read store for backup: %w", err)
	}
	if err := writeFileAtomic(path, pages); err != nil {
		return fmt.Errorf("failed to write backup %s: %w", path, err)
	}
	return nil
}

// Restore merges a backup into the store.
//
// The backup must have the store's shape, otherwise nothing is changed and
// an error wrapping [ErrShapeMismatch] (or [ErrCorrupt] for invalid JSON) is
// returned. The backup's records are flattened in page order and appended
// after the existing content with the same rollover rule as [FileStore.Append].
// Restore is additive: records already in the store are kept.
func (s *FileStore) Restore(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read backup %s: %w", path, err)
	}

	backup, err := decodePages(data)
	if err != nil {
		return 0, fmt.Errorf("backup %s: %w", path, err)
	}

	records := backup.Flatten()
	if len(records) == 0 {
		return 0, nil
	}

	err = s.mutate(ctx, func(p Pages) {
		appendRecords(p, records, s.pageSize)
	})
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// mutate runs fn against the current pages under both locks and persists
// the result.
func (s *FileStore) mutate(ctx context.Context, fn func(Pages)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer func() { _ = s.lock.Unlock() }()

	pages, err := s.LoadAll()
	if err != nil {
		return err
	}

	fn(pages)

	if err := writeFileAtomic(s.path, pages); err != nil {
		return fmt.Errorf("failed to save store %s: %w", s.path, err)
	}
	return nil
}

// acquire takes the exclusive file lock, waiting up to lockTimeout.
func (s *FileStore) acquire(ctx context.Context) error {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	ok, err := s.lock.TryLockContext(lockCtx, defaultLockRetryDelay)
	if ok {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("failed to lock store: %w", err)
	}
	return fmt.Errorf("%w (waited %s)", ErrLocked, s.lockTimeout)
}

// writeFileAtomic encodes pages and replaces path with the result.
func writeFileAtomic(path string, pages Pages) error {
	data, err := encodePages(pages)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
