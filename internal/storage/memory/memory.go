// Package memory provides an in-memory event store and platform index.
// It mirrors the sqlite store's append semantics (sequence allocation, hash
// chaining, index projection) so engine and query tests can run without a
// database file.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/plateau-io/plateau/internal/domain/event"
	"github.com/plateau-io/plateau/internal/domain/platform"
	"github.com/plateau-io/plateau/internal/storage"
	"github.com/plateau-io/plateau/internal/storage/integrity"
)

// Store keeps the journal and index in process memory.
type Store struct {
	mu       sync.Mutex
	registry *event.Registry
	events   map[string][]event.Event
	index    map[string]storage.IndexEntry
}

// New creates an empty in-memory store. The registry validates every
// appended event the same way the sqlite store does.
func New(registry *event.Registry) *Store {
	return &Store{
		registry: registry,
		events:   make(map[string][]event.Event),
		index:    make(map[string]storage.IndexEntry),
	}
}

// AppendEvent assigns the next sequence, links the hash chain, persists the
// event, and folds it into the platform index.
func (s *Store) AppendEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}
	if s.registry != nil {
		validated, err := s.registry.ValidateForAppend(evt)
		if err != nil {
			return event.Event{}, err
		}
		evt = validated
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	evt.Timestamp = evt.Timestamp.UTC().Truncate(time.Millisecond)

	s.mu.Lock()
	defer s.mu.Unlock()

	journal := s.events[evt.PlatformID]
	evt.Seq = uint64(len(journal)) + 1

	hash, err := integrity.EventHash(evt)
	if err != nil {
		return event.Event{}, fmt.Errorf("compute event hash: %w", err)
	}
	evt.Hash = hash

	prevHash := ""
	if len(journal) > 0 {
		prevHash = journal[len(journal)-1].ChainHash
	}
	chainHash, err := integrity.ChainHash(evt, prevHash)
	if err != nil {
		return event.Event{}, fmt.Errorf("compute chain hash: %w", err)
	}
	evt.PrevHash = prevHash
	evt.ChainHash = chainHash

	if err := s.applyToIndex(evt); err != nil {
		return event.Event{}, err
	}
	s.events[evt.PlatformID] = append(journal, evt)
	return evt, nil
}

// ListEvents returns up to limit events after the given sequence.
func (s *Store) ListEvents(ctx context.Context, platformID string, afterSeq uint64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	journal := s.events[platformID]
	var out []event.Event
	for _, evt := range journal {
		if evt.Seq <= afterSeq {
			continue
		}
		out = append(out, evt)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// ListEventsBefore returns up to limit events before the given sequence in
// descending order.
func (s *Store) ListEventsBefore(ctx context.Context, platformID string, beforeSeq uint64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	journal := s.events[platformID]
	var out []event.Event
	for i := len(journal) - 1; i >= 0; i-- {
		evt := journal[i]
		if evt.Seq >= beforeSeq {
			continue
		}
		out = append(out, evt)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// GetEntry returns the index entry for a platform id.
func (s *Store) GetEntry(ctx context.Context, platformID string) (storage.IndexEntry, error) {
	if err := ctx.Err(); err != nil {
		return storage.IndexEntry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.index[platformID]
	if !ok {
		return storage.IndexEntry{}, storage.ErrNotFound
	}
	return entry, nil
}

// GetLiveByKey returns the live platform holding the key.
func (s *Store) GetLiveByKey(ctx context.Context, key platform.Key) (storage.IndexEntry, error) {
	if err := ctx.Err(); err != nil {
		return storage.IndexEntry{}, err
	}
	key = key.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range s.index {
		if !entry.Deleted && entry.Key == key {
			return entry, nil
		}
	}
	return storage.IndexEntry{}, storage.ErrNotFound
}

// ListEntries returns index entries matching the filter, ordered by
// application then platform name. WhereSQL filters are not supported here;
// the sqlite store owns translated filter expressions.
func (s *Store) ListEntries(ctx context.Context, filter storage.IndexFilter) ([]storage.IndexEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []storage.IndexEntry
	for _, entry := range s.index {
		if !filter.IncludeDeleted && entry.Deleted {
			continue
		}
		if filter.ApplicationName != "" && !strings.EqualFold(entry.Key.ApplicationName, filter.ApplicationName) {
			continue
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.ApplicationName != out[j].Key.ApplicationName {
			return out[i].Key.ApplicationName < out[j].Key.ApplicationName
		}
		return out[i].Key.PlatformName < out[j].Key.PlatformName
	})
	return out, nil
}

// applyToIndex folds an event into the platform summary, enforcing the
// live-key uniqueness that sqlite enforces with a partial unique index.
func (s *Store) applyToIndex(evt event.Event) error {
	entry := s.index[evt.PlatformID]
	entry.PlatformID = evt.PlatformID

	state := platform.State{
		Created:    entry.LastSeq > 0,
		Key:        entry.Key,
		Production: entry.Production,
		VersionID:  entry.VersionID,
		Deleted:    entry.Deleted,
	}
	next, err := platform.Fold(state, evt)
	if err != nil {
		return err
	}
	if next.Live() && (next.Key != entry.Key || entry.Deleted || entry.LastSeq == 0) {
		for id, other := range s.index {
			if id != evt.PlatformID && !other.Deleted && other.Key == next.Key {
				return storage.ErrDuplicateKey
			}
		}
	}

	entry.Key = next.Key
	entry.Production = next.Production
	entry.Deleted = next.Deleted
	entry.VersionID = next.VersionID
	entry.LastSeq = evt.Seq
	entry.UpdatedAt = evt.Timestamp
	s.index[evt.PlatformID] = entry
	return nil
}
