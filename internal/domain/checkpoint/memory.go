// Package checkpoint provides replay checkpoint stores.
package checkpoint

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/plateau-io/plateau/internal/domain/replay"
)

// ErrPlatformIDRequired indicates a missing platform id.
var ErrPlatformIDRequired = errors.New("platform id is required")

// Memory stores checkpoints and state snapshots in memory. Snapshot states
// are stored as-is: folded states must treat their slices as immutable so a
// cached snapshot cannot be mutated through a later fold.
type Memory struct {
	mu          sync.Mutex
	checkpoints map[string]replay.Checkpoint
	states      map[string]any
}

// NewMemory creates a new in-memory checkpoint store.
func NewMemory() *Memory {
	return &Memory{
		checkpoints: make(map[string]replay.Checkpoint),
		states:      make(map[string]any),
	}
}

// Get retrieves a checkpoint by platform id.
func (m *Memory) Get(ctx context.Context, platformID string) (replay.Checkpoint, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return replay.Checkpoint{}, err
		}
	}
	if m == nil {
		return replay.Checkpoint{}, errors.New("checkpoint store is required")
	}
	platformID = strings.TrimSpace(platformID)
	if platformID == "" {
		return replay.Checkpoint{}, ErrPlatformIDRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	checkpoint, ok := m.checkpoints[platformID]
	if !ok {
		return replay.Checkpoint{}, replay.ErrCheckpointNotFound
	}
	return checkpoint, nil
}

// Save persists a checkpoint.
func (m *Memory) Save(ctx context.Context, checkpoint replay.Checkpoint) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if m == nil {
		return errors.New("checkpoint store is required")
	}
	platformID := strings.TrimSpace(checkpoint.PlatformID)
	if platformID == "" {
		return ErrPlatformIDRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	checkpoint.PlatformID = platformID
	m.checkpoints[platformID] = checkpoint
	return nil
}

// GetState retrieves a replay state snapshot and its sequence.
func (m *Memory) GetState(ctx context.Context, platformID string) (any, uint64, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
	}
	if m == nil {
		return nil, 0, errors.New("checkpoint store is required")
	}
	platformID = strings.TrimSpace(platformID)
	if platformID == "" {
		return nil, 0, ErrPlatformIDRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot, ok := m.states[platformID]
	if !ok {
		return nil, 0, replay.ErrCheckpointNotFound
	}
	checkpoint, ok := m.checkpoints[platformID]
	if !ok {
		return nil, 0, replay.ErrCheckpointNotFound
	}
	return snapshot, checkpoint.LastSeq, nil
}

// SaveState persists a replay state snapshot.
func (m *Memory) SaveState(ctx context.Context, platformID string, lastSeq uint64, state any) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if m == nil {
		return errors.New("checkpoint store is required")
	}
	platformID = strings.TrimSpace(platformID)
	if platformID == "" {
		return ErrPlatformIDRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.states[platformID] = state
	m.checkpoints[platformID] = replay.Checkpoint{
		PlatformID: platformID,
		LastSeq:    lastSeq,
		UpdatedAt:  time.Now().UTC(),
	}
	return nil
}
