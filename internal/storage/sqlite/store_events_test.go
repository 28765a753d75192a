package sqlite

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/plateau-io/plateau/internal/domain/event"
	"github.com/plateau-io/plateau/internal/domain/platform"
	"github.com/plateau-io/plateau/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	registry, err := platform.NewEventRegistry()
	if err != nil {
		t.Fatalf("event registry: %v", err)
	}
	store, err := Open(filepath.Join(t.TempDir(), "journal.db"), registry)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func createdEvent(platformID, app, name string) event.Event {
	return event.Event{
		PlatformID:  platformID,
		Type:        event.TypePlatformCreated,
		UserID:      "alice",
		Timestamp:   time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		PayloadJSON: []byte(`{"platform":{"key":{"application_name":"` + app + `","platform_name":"` + name + `"}}}`),
	}
}

func TestAppendEventAssignsSequenceAndChain(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first, err := store.AppendEvent(ctx, createdEvent("plt_1", "demo", "prod"))
	if err != nil {
		t.Fatalf("append first: %v", err)
	}
	if first.Seq != 1 {
		t.Fatalf("seq = %d, want 1", first.Seq)
	}
	if first.Hash == "" || first.ChainHash == "" {
		t.Fatal("expected hash fields populated")
	}
	if first.PrevHash != "" {
		t.Fatalf("prev hash = %q, want empty for first event", first.PrevHash)
	}

	second, err := store.AppendEvent(ctx, event.Event{
		PlatformID: "plt_1",
		Type:       event.TypePlatformDeleted,
		UserID:     "alice",
	})
	if err != nil {
		t.Fatalf("append second: %v", err)
	}
	if second.Seq != 2 {
		t.Fatalf("seq = %d, want 2", second.Seq)
	}
	if second.PrevHash != first.ChainHash {
		t.Fatalf("prev hash = %q, want %q", second.PrevHash, first.ChainHash)
	}
}

func TestListEventsReturnsAscendingAfterSeq(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.AppendEvent(ctx, createdEvent("plt_1", "demo", "prod")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := store.AppendEvent(ctx, event.Event{PlatformID: "plt_1", Type: event.TypePlatformDeleted, UserID: "alice"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := store.AppendEvent(ctx, event.Event{PlatformID: "plt_1", Type: event.TypePlatformRestored, UserID: "alice"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	events, err := store.ListEvents(ctx, "plt_1", 1, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Seq != 2 || events[1].Seq != 3 {
		t.Fatalf("sequences = %d,%d, want 2,3", events[0].Seq, events[1].Seq)
	}
	if events[0].Type != event.TypePlatformDeleted {
		t.Fatalf("type = %s, want %s", events[0].Type, event.TypePlatformDeleted)
	}
}

func TestAppendEventRejectsDuplicateLiveKey(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.AppendEvent(ctx, createdEvent("plt_1", "demo", "prod")); err != nil {
		t.Fatalf("append: %v", err)
	}
	_, err := store.AppendEvent(ctx, createdEvent("plt_2", "demo", "prod"))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("error = %v, want %v", err, storage.ErrDuplicateKey)
	}
}

func TestDeleteFreesKeyForReuse(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.AppendEvent(ctx, createdEvent("plt_1", "demo", "prod")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := store.AppendEvent(ctx, event.Event{PlatformID: "plt_1", Type: event.TypePlatformDeleted, UserID: "alice"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.AppendEvent(ctx, createdEvent("plt_2", "demo", "prod")); err != nil {
		t.Fatalf("recreate under freed key: %v", err)
	}

	entry, err := store.GetLiveByKey(ctx, platform.Key{ApplicationName: "demo", PlatformName: "prod"})
	if err != nil {
		t.Fatalf("get live by key: %v", err)
	}
	if entry.PlatformID != "plt_2" {
		t.Fatalf("platform id = %s, want plt_2", entry.PlatformID)
	}
}

func TestIndexEntryTracksVersionAndDeletion(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.AppendEvent(ctx, createdEvent("plt_1", "demo", "prod")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := store.AppendEvent(ctx, event.Event{
		PlatformID:  "plt_1",
		Type:        event.TypePlatformPropertiesUpdated,
		UserID:      "alice",
		PayloadJSON: []byte(`{"platform_version_id":2,"valued_properties":[]}`),
	}); err != nil {
		t.Fatalf("properties update: %v", err)
	}

	entry, err := store.GetEntry(ctx, "plt_1")
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if entry.VersionID != 2 {
		t.Fatalf("version id = %d, want 2", entry.VersionID)
	}
	if entry.LastSeq != 2 {
		t.Fatalf("last seq = %d, want 2", entry.LastSeq)
	}
	if entry.Deleted {
		t.Fatal("expected live entry")
	}
}

func TestListEventsBeforeFromNewest(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.AppendEvent(ctx, createdEvent("plt_1", "demo", "prod")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := store.AppendEvent(ctx, event.Event{PlatformID: "plt_1", Type: event.TypePlatformDeleted, UserID: "alice"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := store.AppendEvent(ctx, event.Event{PlatformID: "plt_1", Type: event.TypePlatformRestored, UserID: "alice"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	events, err := store.ListEventsBefore(ctx, "plt_1", math.MaxUint64, 10)
	if err != nil {
		t.Fatalf("list events before: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	if events[0].Seq != 3 || events[1].Seq != 2 || events[2].Seq != 1 {
		t.Fatalf("sequences = %d,%d,%d, want 3,2,1", events[0].Seq, events[1].Seq, events[2].Seq)
	}

	events, err = store.ListEventsBefore(ctx, "plt_1", 3, 10)
	if err != nil {
		t.Fatalf("list events before 3: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Seq != 2 {
		t.Fatalf("first seq = %d, want 2", events[0].Seq)
	}
}

func TestVerifyEventIntegrityCleanJournal(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.AppendEvent(ctx, createdEvent("plt_1", "demo", "prod")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := store.AppendEvent(ctx, event.Event{PlatformID: "plt_1", Type: event.TypePlatformDeleted, UserID: "alice"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	issues, err := store.VerifyEventIntegrity(ctx, "plt_1")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(issues) != 0 {
		t.Fatalf("issues = %+v, want none", issues)
	}
}

func TestVerifyEventIntegrityDetectsTamperedPayload(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.AppendEvent(ctx, createdEvent("plt_1", "demo", "prod")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := store.AppendEvent(ctx, event.Event{PlatformID: "plt_1", Type: event.TypePlatformDeleted, UserID: "alice"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := store.AppendEvent(ctx, event.Event{PlatformID: "plt_1", Type: event.TypePlatformRestored, UserID: "alice"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	if _, err := store.DB().ExecContext(ctx,
		`UPDATE platform_events SET payload_json = '{"tampered":true}' WHERE platform_id = 'plt_1' AND seq = 2`,
	); err != nil {
		t.Fatalf("tamper payload: %v", err)
	}

	issues, err := store.VerifyEventIntegrity(ctx, "plt_1")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(issues) == 0 {
		t.Fatal("expected issues for tampered payload")
	}
	reasons := make(map[string]uint64)
	for _, issue := range issues {
		reasons[issue.Reason] = issue.Seq
	}
	if seq, ok := reasons["content hash mismatch"]; !ok || seq != 2 {
		t.Fatalf("issues = %+v, want content hash mismatch at seq 2", issues)
	}
	if seq, ok := reasons["chain hash mismatch"]; !ok || seq != 2 {
		t.Fatalf("issues = %+v, want chain hash mismatch at seq 2", issues)
	}
}

func TestVerifyEventIntegrityDetectsBrokenChainLink(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.AppendEvent(ctx, createdEvent("plt_1", "demo", "prod")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := store.AppendEvent(ctx, event.Event{PlatformID: "plt_1", Type: event.TypePlatformDeleted, UserID: "alice"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	if _, err := store.DB().ExecContext(ctx,
		`UPDATE platform_events SET chain_hash = 'forged' WHERE platform_id = 'plt_1' AND seq = 1`,
	); err != nil {
		t.Fatalf("tamper chain: %v", err)
	}

	issues, err := store.VerifyEventIntegrity(ctx, "plt_1")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	var sawForged, sawBrokenLink bool
	for _, issue := range issues {
		if issue.Seq == 1 && issue.Reason == "chain hash mismatch" {
			sawForged = true
		}
		if issue.Seq == 2 && issue.Reason == "chain link mismatch" {
			sawBrokenLink = true
		}
	}
	if !sawForged || !sawBrokenLink {
		t.Fatalf("issues = %+v, want forged hash at seq 1 and broken link at seq 2", issues)
	}
}
