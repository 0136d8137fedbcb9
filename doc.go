// Package sitewatch polls websites for HTTP reachability and keeps a paged
// history of their status codes.
//
// sitewatch can be used as a library or through the sitewatch CLI in
// cmd/sitewatch. Both go through [Monitor].
//
// # Quick Start
//
//	m, err := sitewatch.New(
//	    sitewatch.WithConfigPath("web_config.json"),
//	    sitewatch.WithStorePath("website_data.json"),
//	)
//	if err != nil {
//	    return err
//	}
//	defer m.Close()
//
//	// one probe per configured URL, appended to the store
//	res, err := m.Fetch(ctx, sitewatch.Selection{}, nil)
//
//	// probe every 5 seconds until ctx is cancelled
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//	err = m.Live(ctx, sitewatch.Selection{}, sitewatch.LiveOptions{})
//
// # Status History
//
// Every probe produces a [StatusRecord]: the URL, the HTTP status code
// (4xx and 5xx included) or [FailedStatus] when the probe could not
// complete, and a millisecond timestamp. Records are stored in pages of 10 by
// default.
// New records always go to the last page until it is full, then a new page
// is started, so pages are filled across separate fetches.
//
// [Monitor.Backup] copies the whole store to a file. [Monitor.Restore] merges
// a backup back in: its records are appended after the current content.
// Restore never removes records.
//
// # Architecture
//
// sitewatch consists of several internal packages (under internal/):
//
//   - internal/poller: URL validation, HTTP probing and the cycle scheduler
//   - internal/store: Paged JSON file store with file locking
//
// The internal packages are not part of the public API and may change
// without notice.
package sitewatch
