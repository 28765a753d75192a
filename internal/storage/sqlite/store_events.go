package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/plateau-io/plateau/internal/domain/event"
	"github.com/plateau-io/plateau/internal/storage/integrity"
)

// AppendEvent atomically appends an event and returns it with sequence and
// hash chain fields set. The platform index projection is folded inside the
// same transaction, so a journal row and its summary can never diverge.
func (s *Store) AppendEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}
	if s == nil || s.sqlDB == nil {
		return event.Event{}, fmt.Errorf("storage is not configured")
	}
	if s.eventRegistry == nil {
		return event.Event{}, fmt.Errorf("event registry is required")
	}

	validated, err := s.eventRegistry.ValidateForAppend(evt)
	if err != nil {
		return event.Event{}, err
	}
	evt = validated

	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	evt.Timestamp = evt.Timestamp.UTC().Truncate(time.Millisecond)

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return event.Event{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO platform_event_seq (platform_id, next_seq) VALUES (?, 1)`,
		evt.PlatformID,
	); err != nil {
		return event.Event{}, fmt.Errorf("init event seq: %w", err)
	}

	var seq int64
	if err := tx.QueryRowContext(ctx,
		`SELECT next_seq FROM platform_event_seq WHERE platform_id = ?`,
		evt.PlatformID,
	).Scan(&seq); err != nil {
		return event.Event{}, fmt.Errorf("get event seq: %w", err)
	}
	evt.Seq = uint64(seq)

	if _, err := tx.ExecContext(ctx,
		`UPDATE platform_event_seq SET next_seq = next_seq + 1 WHERE platform_id = ?`,
		evt.PlatformID,
	); err != nil {
		return event.Event{}, fmt.Errorf("increment event seq: %w", err)
	}

	hash, err := integrity.EventHash(evt)
	if err != nil {
		return event.Event{}, fmt.Errorf("compute event hash: %w", err)
	}
	evt.Hash = hash

	prevHash := ""
	if evt.Seq > 1 {
		if err := tx.QueryRowContext(ctx,
			`SELECT chain_hash FROM platform_events WHERE platform_id = ? AND seq = ?`,
			evt.PlatformID, seq-1,
		).Scan(&prevHash); err != nil {
			return event.Event{}, fmt.Errorf("load previous event: %w", err)
		}
	}
	chainHash, err := integrity.ChainHash(evt, prevHash)
	if err != nil {
		return event.Event{}, fmt.Errorf("compute chain hash: %w", err)
	}
	evt.PrevHash = prevHash
	evt.ChainHash = chainHash

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO platform_events (platform_id, seq, event_hash, prev_event_hash, chain_hash, timestamp, event_type, user_id, payload_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		evt.PlatformID, seq, evt.Hash, evt.PrevHash, evt.ChainHash,
		toMillis(evt.Timestamp), string(evt.Type), evt.UserID, string(evt.PayloadJSON),
	); err != nil {
		return event.Event{}, fmt.Errorf("append event: %w", err)
	}

	if err := s.applyToIndex(ctx, tx, evt); err != nil {
		return event.Event{}, err
	}

	if err := tx.Commit(); err != nil {
		return event.Event{}, fmt.Errorf("commit: %w", err)
	}
	return evt, nil
}

// ListEvents returns up to limit events with Seq > afterSeq in ascending
// sequence order.
func (s *Store) ListEvents(ctx context.Context, platformID string, afterSeq uint64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(platformID) == "" {
		return nil, fmt.Errorf("platform id is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT platform_id, seq, event_hash, prev_event_hash, chain_hash, timestamp, event_type, user_id, payload_json
		 FROM platform_events
		 WHERE platform_id = ? AND seq > ?
		 ORDER BY seq ASC
		 LIMIT ?`,
		platformID, int64(afterSeq), int64(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// listEventsTx mirrors ListEvents inside an open transaction.
func (s *Store) listEventsTx(ctx context.Context, tx *sql.Tx, platformID string, afterSeq uint64, limit int) ([]event.Event, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT platform_id, seq, event_hash, prev_event_hash, chain_hash, timestamp, event_type, user_id, payload_json
		 FROM platform_events
		 WHERE platform_id = ? AND seq > ?
		 ORDER BY seq ASC
		 LIMIT ?`,
		platformID, int64(afterSeq), int64(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListEventsBefore returns up to limit events with Seq < beforeSeq in
// descending sequence order, for backward pagination.
func (s *Store) ListEventsBefore(ctx context.Context, platformID string, beforeSeq uint64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(platformID) == "" {
		return nil, fmt.Errorf("platform id is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	// Stored sequences are int64; clamp the bound so a MaxUint64 "from the
	// newest" sentinel does not wrap negative.
	before := int64(math.MaxInt64)
	if beforeSeq < math.MaxInt64 {
		before = int64(beforeSeq)
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT platform_id, seq, event_hash, prev_event_hash, chain_hash, timestamp, event_type, user_id, payload_json
		 FROM platform_events
		 WHERE platform_id = ? AND seq < ?
		 ORDER BY seq DESC
		 LIMIT ?`,
		platformID, before, int64(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list events before: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// GetLatestEventSeq returns the latest appended sequence for a platform, or
// zero when the journal is empty.
func (s *Store) GetLatestEventSeq(ctx context.Context, platformID string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	var seq sql.NullInt64
	if err := s.sqlDB.QueryRowContext(ctx,
		`SELECT MAX(seq) FROM platform_events WHERE platform_id = ?`,
		platformID,
	).Scan(&seq); err != nil {
		return 0, fmt.Errorf("get latest event seq: %w", err)
	}
	if !seq.Valid {
		return 0, nil
	}
	return uint64(seq.Int64), nil
}

// VerifyEventIntegrity replays a platform's full journal through the chain
// verifier and reports every violation found.
func (s *Store) VerifyEventIntegrity(ctx context.Context, platformID string) ([]integrity.Issue, error) {
	const page = 500
	var all []event.Event
	afterSeq := uint64(0)
	for {
		events, err := s.ListEvents(ctx, platformID, afterSeq, page)
		if err != nil {
			return nil, err
		}
		if len(events) == 0 {
			break
		}
		all = append(all, events...)
		afterSeq = events[len(events)-1].Seq
	}
	return integrity.VerifyChain(all), nil
}

func scanEvents(rows *sql.Rows) ([]event.Event, error) {
	var out []event.Event
	for rows.Next() {
		var (
			evt       event.Event
			seq       int64
			timestamp int64
			eventType string
			payload   string
		)
		if err := rows.Scan(&evt.PlatformID, &seq, &evt.Hash, &evt.PrevHash, &evt.ChainHash,
			&timestamp, &eventType, &evt.UserID, &payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		evt.Seq = uint64(seq)
		evt.Timestamp = fromMillis(timestamp)
		evt.Type = event.Type(eventType)
		evt.PayloadJSON = []byte(payload)
		out = append(out, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return out, nil
}
