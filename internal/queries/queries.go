// Package queries implements the read side of the platform core: lookups
// over the platform index plus state rebuilt from the journal on demand.
package queries

import (
	"context"
	"errors"
	"time"

	"github.com/plateau-io/plateau/internal/catalog"
	"github.com/plateau-io/plateau/internal/domain/checkpoint"
	"github.com/plateau-io/plateau/internal/domain/event"
	"github.com/plateau-io/plateau/internal/domain/platform"
	"github.com/plateau-io/plateau/internal/domain/replay"
	"github.com/plateau-io/plateau/internal/storage"
)

// Store is the persistence surface queries read from.
type Store interface {
	ListEvents(ctx context.Context, platformID string, afterSeq uint64, limit int) ([]event.Event, error)
	ListEventsBefore(ctx context.Context, platformID string, beforeSeq uint64, limit int) ([]event.Event, error)
	GetEntry(ctx context.Context, platformID string) (storage.IndexEntry, error)
	GetLiveByKey(ctx context.Context, key platform.Key) (storage.IndexEntry, error)
	ListEntries(ctx context.Context, filter storage.IndexFilter) ([]storage.IndexEntry, error)
}

// Service answers read queries. All state it returns is rebuilt from the
// journal, never stored directly.
type Service struct {
	Store   Store
	Catalog catalog.ModuleCatalog
}

// GetPlatformID returns the id of the live platform holding the key.
func (s Service) GetPlatformID(ctx context.Context, key platform.Key) (string, error) {
	entry, err := s.Store.GetLiveByKey(ctx, key)
	if err != nil {
		return "", err
	}
	return entry.PlatformID, nil
}

// GetPlatform returns the current state of a live platform.
func (s Service) GetPlatform(ctx context.Context, platformID string) (platform.State, error) {
	state, err := s.stateAt(ctx, platformID, time.Time{})
	if err != nil {
		return platform.State{}, err
	}
	if !state.Live() {
		return platform.State{}, storage.ErrNotFound
	}
	return state, nil
}

// GetPlatformByKey returns the current state of the live platform holding
// the key.
func (s Service) GetPlatformByKey(ctx context.Context, key platform.Key) (platform.State, error) {
	entry, err := s.Store.GetLiveByKey(ctx, key)
	if err != nil {
		return platform.State{}, err
	}
	return s.GetPlatform(ctx, entry.PlatformID)
}

// GetPlatformAtTime returns the platform state as of the given instant,
// rebuilt by replaying only events at or before it. The state is historical:
// it may be deleted, or differ arbitrarily from the present.
func (s Service) GetPlatformAtTime(ctx context.Context, platformID string, at time.Time) (platform.State, error) {
	state, err := s.stateAt(ctx, platformID, at)
	if err != nil {
		return platform.State{}, err
	}
	if !state.Created {
		return platform.State{}, storage.ErrNotFound
	}
	return state, nil
}

// PlatformExists reports whether a live platform holds the key.
func (s Service) PlatformExists(ctx context.Context, key platform.Key) (bool, error) {
	_, err := s.Store.GetLiveByKey(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// PlatformsUsingModule returns the live platforms that deploy the given
// module version.
func (s Service) PlatformsUsingModule(ctx context.Context, module catalog.ModuleKey) ([]platform.State, error) {
	entries, err := s.Store.ListEntries(ctx, storage.IndexFilter{})
	if err != nil {
		return nil, err
	}
	var out []platform.State
	for _, entry := range entries {
		state, err := s.stateAt(ctx, entry.PlatformID, time.Time{})
		if err != nil {
			return nil, err
		}
		if !state.Live() {
			continue
		}
		for _, deployed := range state.Modules {
			if deployed.ModuleKey() == module {
				out = append(out, state)
				break
			}
		}
	}
	return out, nil
}

// stateAt rebuilds platform state from the journal; a zero cutoff means the
// full journal.
func (s Service) stateAt(ctx context.Context, platformID string, until time.Time) (platform.State, error) {
	applier := replay.ApplierFunc(func(state any, evt event.Event) (any, error) {
		typed, ok := state.(platform.State)
		if !ok {
			return nil, errors.New("unexpected replay state type")
		}
		return platform.Fold(typed, evt)
	})
	result, err := replay.Replay(ctx, s.Store, checkpoint.NewNoop(), applier, platformID, platform.State{}, replay.Options{UntilTime: until})
	if err != nil {
		return platform.State{}, err
	}
	state, ok := result.State.(platform.State)
	if !ok {
		return platform.State{}, errors.New("unexpected replay state type")
	}
	return state, nil
}
