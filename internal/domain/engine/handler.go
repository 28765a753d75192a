// Package engine executes platform commands: it serializes writers per
// platform, rebuilds state from the journal, runs the decider, and appends
// the resulting events.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/plateau-io/plateau/internal/domain/checkpoint"
	"github.com/plateau-io/plateau/internal/domain/command"
	"github.com/plateau-io/plateau/internal/domain/event"
	"github.com/plateau-io/plateau/internal/domain/platform"
	"github.com/plateau-io/plateau/internal/domain/replay"
	"github.com/plateau-io/plateau/internal/platform/id"
	"github.com/plateau-io/plateau/internal/storage"
)

var (
	// ErrCommandRegistryRequired indicates a missing command registry.
	ErrCommandRegistryRequired = errors.New("command registry is required")
	// ErrEventRegistryRequired indicates a missing event registry.
	ErrEventRegistryRequired = errors.New("event registry is required")
	// ErrStoreRequired indicates a missing store.
	ErrStoreRequired = errors.New("store is required")
	// ErrDeciderRequired indicates a missing decider.
	ErrDeciderRequired = errors.New("decider is required")
)

// Store is the persistence surface the engine needs: the journal plus the
// live-key lookup used for duplicate-key checks.
type Store interface {
	storage.EventStore
	GetLiveByKey(ctx context.Context, key platform.Key) (storage.IndexEntry, error)
}

// SnapshotStore caches replayed state keyed by platform.
type SnapshotStore interface {
	GetState(ctx context.Context, platformID string) (state any, lastSeq uint64, err error)
	SaveState(ctx context.Context, platformID string, lastSeq uint64, state any) error
}

// Decider returns a decision for a platform command.
type Decider interface {
	Decide(ctx context.Context, state platform.State, cmd command.Command, now func() time.Time) (command.Decision, error)
}

// Result captures execution outcomes.
type Result struct {
	Decision command.Decision
	State    platform.State
}

// Handler validates, serializes, and decides platform commands.
type Handler struct {
	Commands  *command.Registry
	Events    *event.Registry
	Store     Store
	Snapshots SnapshotStore
	Decider   Decider
	Now       func() time.Time
	NewID     func() (string, error)

	locks keyedLocks
}

// Accepted reports whether a decision produced events rather than
// rejections.
func (r Result) Accepted() bool {
	return len(r.Decision.Rejections) == 0
}

// Execute runs one command end to end. Commands for the same platform id are
// serialized; the state a decider sees always includes every event appended
// before it.
func (h *Handler) Execute(ctx context.Context, cmd command.Command) (Result, error) {
	if h.Commands == nil {
		return Result{}, ErrCommandRegistryRequired
	}
	if h.Events == nil {
		return Result{}, ErrEventRegistryRequired
	}
	if h.Store == nil {
		return Result{}, ErrStoreRequired
	}
	if h.Decider == nil {
		return Result{}, ErrDeciderRequired
	}

	if cmd.Type == platform.CommandTypeCreate && strings.TrimSpace(cmd.PlatformID) == "" {
		newID := h.NewID
		if newID == nil {
			newID = id.NewID
		}
		generated, err := newID()
		if err != nil {
			return Result{}, fmt.Errorf("generate platform id: %w", err)
		}
		cmd.PlatformID = generated
	}

	validated, err := h.Commands.ValidateForDecision(cmd)
	if err != nil {
		return Result{}, err
	}
	cmd = validated

	unlock := h.locks.acquire(cmd.PlatformID)
	defer unlock()

	state, err := h.loadState(ctx, cmd.PlatformID)
	if err != nil {
		return Result{}, err
	}

	if rejection, ok, err := h.checkDuplicateKey(ctx, state, cmd); err != nil {
		return Result{}, err
	} else if !ok {
		return Result{Decision: command.Reject(rejection), State: state}, nil
	}

	now := h.Now
	if now == nil {
		now = time.Now
	}
	decision, err := h.Decider.Decide(ctx, state, cmd, now)
	if err != nil {
		return Result{}, err
	}
	if len(decision.Rejections) > 0 {
		return Result{Decision: decision, State: state}, nil
	}

	stored := make([]event.Event, 0, len(decision.Events))
	for _, evt := range decision.Events {
		vetted, err := h.Events.ValidateForAppend(evt)
		if err != nil {
			return Result{}, err
		}
		appended, err := h.Store.AppendEvent(ctx, vetted)
		if err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				return Result{Decision: command.Reject(command.Rejection{
					Code:    platform.RejectionCodeDuplicateKey,
					Message: "another live platform claimed the key",
				}), State: state}, nil
			}
			return Result{}, err
		}
		stored = append(stored, appended)

		state, err = platform.Fold(state, appended)
		if err != nil {
			return Result{}, fmt.Errorf("apply appended event: %w", err)
		}
		if h.Snapshots != nil {
			if err := h.Snapshots.SaveState(ctx, cmd.PlatformID, appended.Seq, state); err != nil {
				return Result{}, fmt.Errorf("save state snapshot: %w", err)
			}
		}
	}
	decision.Events = stored

	return Result{Decision: decision, State: state}, nil
}

// LoadState rebuilds the current platform state from the journal.
func (h *Handler) LoadState(ctx context.Context, platformID string) (platform.State, error) {
	unlock := h.locks.acquire(platformID)
	defer unlock()
	return h.loadState(ctx, platformID)
}

func (h *Handler) loadState(ctx context.Context, platformID string) (platform.State, error) {
	state := platform.State{}
	options := replay.Options{}

	if h.Snapshots != nil {
		snapshot, snapshotSeq, err := h.Snapshots.GetState(ctx, platformID)
		if err != nil {
			if !errors.Is(err, replay.ErrCheckpointNotFound) {
				return platform.State{}, err
			}
		} else if typed, ok := snapshot.(platform.State); ok {
			state = typed
			options.AfterSeq = snapshotSeq
		}
	}

	result, err := replay.Replay(ctx, h.Store, checkpoint.NewNoop(), foldApplier(), platformID, state, options)
	if err != nil {
		return platform.State{}, err
	}
	folded, ok := result.State.(platform.State)
	if !ok {
		return platform.State{}, errors.New("unexpected replay state type")
	}
	return folded, nil
}

// checkDuplicateKey guards the cross-platform invariant that a natural key
// belongs to at most one live platform. The sqlite unique index remains the
// concurrency backstop.
func (h *Handler) checkDuplicateKey(ctx context.Context, state platform.State, cmd command.Command) (command.Rejection, bool, error) {
	key, relevant, err := submittedKey(cmd)
	if err != nil {
		return command.Rejection{}, false, err
	}
	if !relevant {
		return command.Rejection{}, true, nil
	}
	if cmd.Type == platform.CommandTypeUpdate && state.Live() && key == state.Key {
		return command.Rejection{}, true, nil
	}
	entry, err := h.Store.GetLiveByKey(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return command.Rejection{}, true, nil
		}
		return command.Rejection{}, false, err
	}
	if entry.PlatformID == cmd.PlatformID {
		return command.Rejection{}, true, nil
	}
	return command.Rejection{
		Code:    platform.RejectionCodeDuplicateKey,
		Message: fmt.Sprintf("platform key %s already belongs to a live platform", key),
	}, false, nil
}

// submittedKey extracts the natural key a command wants to claim.
func submittedKey(cmd command.Command) (platform.Key, bool, error) {
	switch cmd.Type {
	case platform.CommandTypeCreate:
		var payload platform.CreatePayload
		if err := json.Unmarshal(cmd.PayloadJSON, &payload); err != nil {
			return platform.Key{}, false, fmt.Errorf("decode create payload: %w", err)
		}
		return payload.Platform.Key.Normalize(), true, nil
	case platform.CommandTypeUpdate:
		var payload platform.UpdatePayload
		if err := json.Unmarshal(cmd.PayloadJSON, &payload); err != nil {
			return platform.Key{}, false, fmt.Errorf("decode update payload: %w", err)
		}
		return payload.Platform.Key.Normalize(), true, nil
	default:
		return platform.Key{}, false, nil
	}
}

func foldApplier() replay.Applier {
	return replay.ApplierFunc(func(state any, evt event.Event) (any, error) {
		typed, ok := state.(platform.State)
		if !ok {
			return nil, errors.New("unexpected replay state type")
		}
		return platform.Fold(typed, evt)
	})
}
