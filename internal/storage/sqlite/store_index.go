package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/plateau-io/plateau/internal/domain/event"
	"github.com/plateau-io/plateau/internal/domain/platform"
	"github.com/plateau-io/plateau/internal/storage"
)

// applyToIndex folds one appended event into the platform summary row. Runs
// inside the append transaction; the partial unique index on live keys turns
// a concurrent key claim into a constraint failure here.
func (s *Store) applyToIndex(ctx context.Context, tx *sql.Tx, evt event.Event) error {
	var (
		entry storage.IndexEntry
		found bool
	)
	row := tx.QueryRowContext(ctx,
		`SELECT application_name, platform_name, production, deleted, version_id, last_seq
		 FROM platform_index WHERE platform_id = ?`,
		evt.PlatformID,
	)
	var lastSeq int64
	err := row.Scan(&entry.Key.ApplicationName, &entry.Key.PlatformName,
		&entry.Production, &entry.Deleted, &entry.VersionID, &lastSeq)
	switch {
	case err == nil:
		found = true
		entry.LastSeq = uint64(lastSeq)
	case errors.Is(err, sql.ErrNoRows):
	default:
		return fmt.Errorf("load index entry: %w", err)
	}

	state := platform.State{
		Created:    found,
		Key:        entry.Key,
		Production: entry.Production,
		VersionID:  entry.VersionID,
		Deleted:    entry.Deleted,
	}
	next, err := platform.Fold(state, evt)
	if err != nil {
		return fmt.Errorf("fold index entry: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO platform_index (platform_id, application_name, platform_name, production, deleted, version_id, last_seq, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(platform_id) DO UPDATE SET
		   application_name = excluded.application_name,
		   platform_name = excluded.platform_name,
		   production = excluded.production,
		   deleted = excluded.deleted,
		   version_id = excluded.version_id,
		   last_seq = excluded.last_seq,
		   updated_at = excluded.updated_at`,
		evt.PlatformID, next.Key.ApplicationName, next.Key.PlatformName,
		next.Production, next.Deleted, next.VersionID, int64(evt.Seq), toMillis(evt.Timestamp),
	); err != nil {
		if isConstraintError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("update index entry: %w", err)
	}
	return nil
}

// GetEntry returns the index entry for a platform id.
func (s *Store) GetEntry(ctx context.Context, platformID string) (storage.IndexEntry, error) {
	if err := ctx.Err(); err != nil {
		return storage.IndexEntry{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.IndexEntry{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(platformID) == "" {
		return storage.IndexEntry{}, fmt.Errorf("platform id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT platform_id, application_name, platform_name, production, deleted, version_id, last_seq, updated_at
		 FROM platform_index WHERE platform_id = ?`,
		platformID,
	)
	return scanIndexEntry(row)
}

// GetLiveByKey returns the live platform holding the natural key.
func (s *Store) GetLiveByKey(ctx context.Context, key platform.Key) (storage.IndexEntry, error) {
	if err := ctx.Err(); err != nil {
		return storage.IndexEntry{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.IndexEntry{}, fmt.Errorf("storage is not configured")
	}
	key = key.Normalize()
	if key.IsZero() {
		return storage.IndexEntry{}, fmt.Errorf("platform key is required")
	}

	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT platform_id, application_name, platform_name, production, deleted, version_id, last_seq, updated_at
		 FROM platform_index
		 WHERE application_name = ? AND platform_name = ? AND deleted = 0`,
		key.ApplicationName, key.PlatformName,
	)
	return scanIndexEntry(row)
}

// ListEntries returns index entries matching the filter, ordered by
// application then platform name.
func (s *Store) ListEntries(ctx context.Context, filter storage.IndexFilter) ([]storage.IndexEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	query := `SELECT platform_id, application_name, platform_name, production, deleted, version_id, last_seq, updated_at
		 FROM platform_index WHERE 1=1`
	var args []any
	if !filter.IncludeDeleted {
		query += ` AND deleted = 0`
	}
	if filter.ApplicationName != "" {
		query += ` AND application_name = ? COLLATE NOCASE`
		args = append(args, filter.ApplicationName)
	}
	if strings.TrimSpace(filter.WhereSQL) != "" {
		query += ` AND (` + filter.WhereSQL + `)`
		args = append(args, filter.Args...)
	}
	query += ` ORDER BY application_name ASC, platform_name ASC`

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list index entries: %w", err)
	}
	defer rows.Close()

	var out []storage.IndexEntry
	for rows.Next() {
		var (
			entry     storage.IndexEntry
			lastSeq   int64
			updatedAt int64
		)
		if err := rows.Scan(&entry.PlatformID, &entry.Key.ApplicationName, &entry.Key.PlatformName,
			&entry.Production, &entry.Deleted, &entry.VersionID, &lastSeq, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan index entry: %w", err)
		}
		entry.LastSeq = uint64(lastSeq)
		entry.UpdatedAt = fromMillis(updatedAt)
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read index entries: %w", err)
	}
	return out, nil
}

// RebuildIndex re-derives every platform_index row from the journal. It
// returns the number of platforms rebuilt. Intended for maintenance; writers
// must be quiesced while it runs.
func (s *Store) RebuildIndex(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT DISTINCT platform_id FROM platform_events ORDER BY platform_id`)
	if err != nil {
		return 0, fmt.Errorf("list journal platforms: %w", err)
	}
	var platformIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan platform id: %w", err)
		}
		platformIDs = append(platformIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("read journal platforms: %w", err)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin rebuild transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM platform_index`); err != nil {
		return 0, fmt.Errorf("clear platform index: %w", err)
	}

	for _, platformID := range platformIDs {
		state := platform.State{}
		var lastSeq uint64
		var updatedAt int64
		afterSeq := uint64(0)
		for {
			events, err := s.listEventsTx(ctx, tx, platformID, afterSeq, 500)
			if err != nil {
				return 0, err
			}
			for _, evt := range events {
				next, err := platform.Fold(state, evt)
				if err != nil {
					return 0, fmt.Errorf("rebuild %s: %w", platformID, err)
				}
				state = next
				lastSeq = evt.Seq
				updatedAt = toMillis(evt.Timestamp)
				afterSeq = evt.Seq
			}
			if len(events) < 500 {
				break
			}
		}
		if lastSeq == 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO platform_index (platform_id, application_name, platform_name, production, deleted, version_id, last_seq, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			platformID, state.Key.ApplicationName, state.Key.PlatformName,
			state.Production, state.Deleted, state.VersionID, int64(lastSeq), updatedAt,
		); err != nil {
			return 0, fmt.Errorf("rebuild %s: %w", platformID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit rebuild: %w", err)
	}
	return len(platformIDs), nil
}

func scanIndexEntry(row *sql.Row) (storage.IndexEntry, error) {
	var (
		entry     storage.IndexEntry
		lastSeq   int64
		updatedAt int64
	)
	err := row.Scan(&entry.PlatformID, &entry.Key.ApplicationName, &entry.Key.PlatformName,
		&entry.Production, &entry.Deleted, &entry.VersionID, &lastSeq, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.IndexEntry{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.IndexEntry{}, fmt.Errorf("scan index entry: %w", err)
	}
	entry.LastSeq = uint64(lastSeq)
	entry.UpdatedAt = fromMillis(updatedAt)
	return entry, nil
}
