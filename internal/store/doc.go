// Package store provides the paged, append-only status history for sitewatch.
//
// Status records are grouped into fixed-capacity pages numbered from 1. New
// records are always appended to the highest page until it is full, at which
// point a new page is started. The whole history is persisted as a single
// JSON document that is rewritten atomically on every mutation.
//
// The main components are:
//
//   - [StatusRecord]: The persisted result of one probe
//   - [Pages]: The in-memory representation of the history
//   - [FileStore]: A JSON file backed implementation of [Store]
//
// Mutations are serialized both in-process (mutex) and across processes
// (an exclusive lock on a sibling ".lock" file), so concurrent invocations
// cannot clobber each other's appends.
package store
