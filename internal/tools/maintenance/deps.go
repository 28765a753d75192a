package maintenance

import (
	"context"
	"database/sql"

	"github.com/plateau-io/plateau/internal/domain/event"
	"github.com/plateau-io/plateau/internal/storage"
	"github.com/plateau-io/plateau/internal/storage/integrity"
)

// journalStore is the storage surface the maintenance commands need. The
// sqlite store satisfies it; tests swap in a fake through openStore.
type journalStore interface {
	ListEvents(ctx context.Context, platformID string, afterSeq uint64, limit int) ([]event.Event, error)
	GetLatestEventSeq(ctx context.Context, platformID string) (uint64, error)
	VerifyEventIntegrity(ctx context.Context, platformID string) ([]integrity.Issue, error)
	ListEntries(ctx context.Context, filter storage.IndexFilter) ([]storage.IndexEntry, error)
	RebuildIndex(ctx context.Context) (int, error)
	DB() *sql.DB
	Close() error
}
