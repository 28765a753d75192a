package storage

import (
	"context"
	"errors"
	"time"

	"github.com/plateau-io/plateau/internal/domain/event"
	"github.com/plateau-io/plateau/internal/domain/platform"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrDuplicateKey indicates a live platform already claims the natural key.
var ErrDuplicateKey = errors.New("platform key already in use")

// EventStore persists the append-only platform event journal.
type EventStore interface {
	// AppendEvent atomically assigns the next sequence for the platform,
	// links the hash chain, and persists the event. The stored event is
	// returned with Seq, Hash, PrevHash, and ChainHash populated.
	AppendEvent(ctx context.Context, evt event.Event) (event.Event, error)
	// ListEvents returns up to limit events with Seq > afterSeq in
	// ascending sequence order.
	ListEvents(ctx context.Context, platformID string, afterSeq uint64, limit int) ([]event.Event, error)
}

// IndexEntry is the queryable summary of one platform, maintained as a
// projection of the journal.
type IndexEntry struct {
	PlatformID string
	Key        platform.Key
	Production bool
	Deleted    bool
	VersionID  int64
	LastSeq    uint64
	UpdatedAt  time.Time
}

// PlatformIndex is the lookup surface over platform summaries. Live keys are
// unique; deleted platforms keep their entry for restore and history queries.
type PlatformIndex interface {
	GetEntry(ctx context.Context, platformID string) (IndexEntry, error)
	// GetLiveByKey returns the live platform holding the key, if any.
	GetLiveByKey(ctx context.Context, key platform.Key) (IndexEntry, error)
	// ListEntries returns entries matching the filter, ordered by
	// application then platform name. An empty filter lists everything.
	ListEntries(ctx context.Context, filter IndexFilter) ([]IndexEntry, error)
}

// IndexFilter narrows a platform index listing.
type IndexFilter struct {
	ApplicationName string
	IncludeDeleted  bool
	// WhereSQL and Args carry a pre-translated filter expression appended
	// to the listing query.
	WhereSQL string
	Args     []any
}

// GlobalPropertyUsage records one place a global property name is consumed.
type GlobalPropertyUsage struct {
	PropertiesPath string
	PropertyName   string
	// InModel reports whether the module skeleton declares the name, as
	// opposed to a {{name}} reference inside a value.
	InModel bool
}
