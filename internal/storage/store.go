package storage

import (
	"context"
	"time"
)

// Document keys for the persisted collections. Every document is a flat JSON
// value rewritten wholesale on update.
const (
	DocUpcoming    = "upcoming"
	DocHistorical  = "historical"
	DocFighters    = "fighters"
	DocStats       = "stats"
	DocLastRefresh = "last-refresh"
	DocRefreshLock = "refresh-lock"
)

// Store reads and writes named JSON documents.
//
// Read decodes the document at key into target and reports whether a usable
// document existed. A missing or corrupt document leaves target untouched
// and returns false: callers pass a pre-populated fallback value and never
// see an error from a read.
type Store interface {
	Read(ctx context.Context, key string, target any) bool
	Write(ctx context.Context, key string, value any) error
	LastModified(ctx context.Context, key string) (time.Time, bool)
}
