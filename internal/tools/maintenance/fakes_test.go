package maintenance

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/plateau-io/plateau/internal/domain/event"
	"github.com/plateau-io/plateau/internal/domain/platform"
	"github.com/plateau-io/plateau/internal/storage"
	"github.com/plateau-io/plateau/internal/storage/integrity"
)

// fakeStore serves canned journal contents to the maintenance commands.
type fakeStore struct {
	events  map[string][]event.Event
	entries []storage.IndexEntry
	issues  map[string][]integrity.Issue
	closed  bool
}

func (f *fakeStore) ListEvents(_ context.Context, platformID string, afterSeq uint64, limit int) ([]event.Event, error) {
	var out []event.Event
	for _, evt := range f.events[platformID] {
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

func (f *fakeStore) GetLatestEventSeq(_ context.Context, platformID string) (uint64, error) {
	journal := f.events[platformID]
	if len(journal) == 0 {
		return 0, nil
	}
	return journal[len(journal)-1].Seq, nil
}

func (f *fakeStore) VerifyEventIntegrity(_ context.Context, platformID string) ([]integrity.Issue, error) {
	return f.issues[platformID], nil
}

func (f *fakeStore) ListEntries(_ context.Context, _ storage.IndexFilter) ([]storage.IndexEntry, error) {
	return f.entries, nil
}

func (f *fakeStore) RebuildIndex(_ context.Context) (int, error) {
	return len(f.events), nil
}

func (f *fakeStore) DB() *sql.DB { return nil }

func (f *fakeStore) Close() error {
	f.closed = true
	return nil
}

// installFakeStore routes openStore to the fake for the duration of a test.
func installFakeStore(t *testing.T, fake *fakeStore) {
	t.Helper()
	original := openStore
	openStore = func(string, *event.Registry) (journalStore, error) {
		return fake, nil
	}
	t.Cleanup(func() { openStore = original })
}

func createdEvent(t *testing.T, platformID string, seq uint64, app, name string) event.Event {
	t.Helper()
	payload, err := json.Marshal(platform.CreatedPayload{
		Platform: platform.Definition{
			Key: platform.Key{ApplicationName: app, PlatformName: name},
		},
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return event.Event{
		PlatformID:  platformID,
		Seq:         seq,
		Type:        event.TypePlatformCreated,
		Timestamp:   time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		UserID:      "alice",
		PayloadJSON: payload,
	}
}

func propertiesEvent(t *testing.T, platformID string, seq uint64, version int64) event.Event {
	t.Helper()
	payload, err := json.Marshal(platform.PropertiesUpdatedPayload{
		PlatformVersionID: version,
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return event.Event{
		PlatformID:  platformID,
		Seq:         seq,
		Type:        event.TypePlatformPropertiesUpdated,
		Timestamp:   time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC).Add(time.Duration(seq) * time.Minute),
		UserID:      "alice",
		PayloadJSON: payload,
	}
}
