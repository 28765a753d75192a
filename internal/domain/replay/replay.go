// Package replay drives event application in strict sequence order to
// rebuild projection state from the journal.
package replay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/plateau-io/plateau/internal/domain/event"
)

const defaultPageSize = 200

var (
	// ErrEventStoreRequired indicates a missing event store.
	ErrEventStoreRequired = errors.New("event store is required")
	// ErrCheckpointStoreRequired indicates a missing checkpoint store.
	ErrCheckpointStoreRequired = errors.New("checkpoint store is required")
	// ErrApplierRequired indicates a missing applier.
	ErrApplierRequired = errors.New("applier is required")
	// ErrPlatformIDRequired indicates a missing platform id.
	ErrPlatformIDRequired = errors.New("platform id is required")
	// ErrCheckpointNotFound indicates no checkpoint exists yet.
	ErrCheckpointNotFound = errors.New("checkpoint not found")
	// ErrSequenceGap indicates a hole in the journal.
	ErrSequenceGap = errors.New("event sequence gap")
)

// EventStore lists events for replay.
type EventStore interface {
	ListEvents(ctx context.Context, platformID string, afterSeq uint64, limit int) ([]event.Event, error)
}

// CheckpointStore manages replay checkpoints.
type CheckpointStore interface {
	Get(ctx context.Context, platformID string) (Checkpoint, error)
	Save(ctx context.Context, checkpoint Checkpoint) error
}

// Applier applies a domain event to projection state.
type Applier interface {
	Apply(state any, evt event.Event) (any, error)
}

// ApplierFunc adapts a fold function to the Applier interface.
type ApplierFunc func(state any, evt event.Event) (any, error)

// Apply calls f.
func (f ApplierFunc) Apply(state any, evt event.Event) (any, error) {
	return f(state, evt)
}

// Checkpoint captures the last applied sequence for a platform.
type Checkpoint struct {
	PlatformID string
	LastSeq    uint64
	UpdatedAt  time.Time
}

// Options configures replay behavior. UntilSeq and UntilTime bound the
// replay for point-in-time views; a bounded replay should run against a
// no-op checkpoint store with fresh state so the historical cutoff is not
// skipped by a newer checkpoint.
type Options struct {
	AfterSeq  uint64
	UntilSeq  uint64
	UntilTime time.Time
	PageSize  int
}

// Result captures replay outcomes.
type Result struct {
	State   any
	LastSeq uint64
	Applied int
}

// Replay applies events in order and updates checkpoints after each apply.
// Replay stops at the first sequence gap: a hole in the journal means the
// projection cannot be trusted.
func Replay(ctx context.Context, store EventStore, checkpoints CheckpointStore, applier Applier, platformID string, state any, options Options) (Result, error) {
	if store == nil {
		return Result{}, ErrEventStoreRequired
	}
	if checkpoints == nil {
		return Result{}, ErrCheckpointStoreRequired
	}
	if applier == nil {
		return Result{}, ErrApplierRequired
	}
	platformID = strings.TrimSpace(platformID)
	if platformID == "" {
		return Result{}, ErrPlatformIDRequired
	}

	checkpointSeq := uint64(0)
	checkpoint, err := checkpoints.Get(ctx, platformID)
	if err != nil {
		if !errors.Is(err, ErrCheckpointNotFound) {
			return Result{}, err
		}
	} else {
		checkpointSeq = checkpoint.LastSeq
	}

	lastSeq := options.AfterSeq
	if checkpointSeq > lastSeq {
		lastSeq = checkpointSeq
	}
	pageSize := options.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	result := Result{State: state, LastSeq: lastSeq}
	for {
		events, err := store.ListEvents(ctx, platformID, result.LastSeq, pageSize)
		if err != nil {
			return result, err
		}
		if len(events) == 0 {
			return result, nil
		}
		for _, evt := range events {
			if options.UntilSeq > 0 && evt.Seq > options.UntilSeq {
				return result, nil
			}
			if !options.UntilTime.IsZero() && evt.Timestamp.After(options.UntilTime) {
				return result, nil
			}
			expectedSeq := result.LastSeq + 1
			if evt.Seq != expectedSeq {
				return result, fmt.Errorf("%w: expected %d got %d", ErrSequenceGap, expectedSeq, evt.Seq)
			}
			nextState, err := applier.Apply(result.State, evt)
			if err != nil {
				return result, err
			}
			result.State = nextState
			result.LastSeq = evt.Seq
			result.Applied++
			if err := checkpoints.Save(ctx, Checkpoint{PlatformID: platformID, LastSeq: result.LastSeq, UpdatedAt: time.Now().UTC()}); err != nil {
				return result, err
			}
		}
	}
}
