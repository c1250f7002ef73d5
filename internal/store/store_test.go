package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDocumentRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetDocument(ctx, KeyUserProgress); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing document error = %v, want ErrNotFound", err)
	}

	if err := s.PutDocument(ctx, KeyUserProgress, `{"level":1}`); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := s.GetDocument(ctx, KeyUserProgress)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != `{"level":1}` {
		t.Errorf("value = %q", got)
	}

	// Overwrite.
	if err := s.PutDocument(ctx, KeyUserProgress, `{"level":2}`); err != nil {
		t.Fatalf("put again: %v", err)
	}
	got, _ = s.GetDocument(ctx, KeyUserProgress)
	if got != `{"level":2}` {
		t.Errorf("value after overwrite = %q", got)
	}
}

func TestBookmarkCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b := Bookmark{
		ID:           "item-1",
		ItemType:     "news",
		Title:        "Hello",
		Source:       "Example Blog",
		URL:          "https://example.com/1",
		BookmarkedAt: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}
	if err := s.AddBookmark(ctx, &b); err != nil {
		t.Fatalf("add: %v", err)
	}
	// Duplicate add is a no-op, not an error.
	if err := s.AddBookmark(ctx, &b); err != nil {
		t.Fatalf("duplicate add: %v", err)
	}

	ok, err := s.HasBookmark(ctx, "item-1")
	if err != nil || !ok {
		t.Fatalf("has = %v, %v", ok, err)
	}

	list, err := s.ListBookmarks(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len = %d, want 1", len(list))
	}
	if diff := cmp.Diff(b, list[0]); diff != "" {
		t.Errorf("bookmark mismatch (-want +got):\n%s", diff)
	}

	if err := s.RemoveBookmark(ctx, "item-1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	ok, _ = s.HasBookmark(ctx, "item-1")
	if ok {
		t.Error("bookmark still present after remove")
	}
}

func TestBookmarkOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		b := Bookmark{ID: id, ItemType: "news", BookmarkedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := s.AddBookmark(ctx, &b); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}

	list, err := s.ListBookmarks(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var ids []string
	for _, b := range list {
		ids = append(ids, b.ID)
	}
	if diff := cmp.Diff([]string{"new", "mid", "old"}, ids); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestReadItems(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := ReadItem{ID: "item-1", ItemType: "videos", ReadAt: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)}
	if err := s.MarkRead(ctx, &r); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	ok, err := s.IsRead(ctx, "item-1")
	if err != nil || !ok {
		t.Fatalf("is read = %v, %v", ok, err)
	}
	ok, _ = s.IsRead(ctx, "item-2")
	if ok {
		t.Error("unknown item reported as read")
	}

	if err := s.MarkUnread(ctx, "item-1"); err != nil {
		t.Fatalf("mark unread: %v", err)
	}
	ok, _ = s.IsRead(ctx, "item-1")
	if ok {
		t.Error("item still read after mark unread")
	}
}

func TestPendingQueueOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	ops := []PendingOp{
		{ID: "op-1", Action: "ADD_BOOKMARK", Payload: `{"id":"a"}`, CreatedAt: base},
		{ID: "op-2", Action: "MARK_READ", Payload: `{"id":"b"}`, CreatedAt: base.Add(time.Second)},
		{ID: "op-3", Action: "REMOVE_BOOKMARK", Payload: `{"id":"a"}`, CreatedAt: base.Add(2 * time.Second)},
	}
	for i := range ops {
		if err := s.AppendPending(ctx, &ops[i]); err != nil {
			t.Fatalf("append %s: %v", ops[i].ID, err)
		}
	}

	got, err := s.ListPending(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if diff := cmp.Diff(ops, got); diff != "" {
		t.Errorf("queue mismatch (-want +got):\n%s", diff)
	}

	if err := s.DeletePending(ctx, "op-2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ = s.ListPending(ctx)
	if len(got) != 2 || got[0].ID != "op-1" || got[1].ID != "op-3" {
		t.Errorf("queue after delete = %+v", got)
	}
}

func TestSubscriptions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	added := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	site := Subscription{ID: "sub-1", Kind: "site", Title: "Example Blog", FeedURL: "https://example.com/feed", AddedAt: added}
	channel := Subscription{ID: "sub-2", Kind: "youtube", Title: "Example Channel", FeedURL: "https://youtube.com/c/example", AddedAt: added.Add(time.Hour)}

	for _, sub := range []Subscription{site, channel} {
		if err := s.UpsertSubscription(ctx, &sub); err != nil {
			t.Fatalf("upsert %s: %v", sub.ID, err)
		}
	}

	all, err := s.ListSubscriptions(ctx, "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len = %d, want 2", len(all))
	}

	sites, err := s.ListSubscriptions(ctx, "site")
	if err != nil {
		t.Fatalf("list sites: %v", err)
	}
	if len(sites) != 1 || sites[0].ID != "sub-1" {
		t.Errorf("site subscriptions = %+v", sites)
	}

	// Upsert updates title in place.
	site.Title = "Renamed Blog"
	if err := s.UpsertSubscription(ctx, &site); err != nil {
		t.Fatalf("upsert rename: %v", err)
	}
	all, _ = s.ListSubscriptions(ctx, "site")
	if all[0].Title != "Renamed Blog" {
		t.Errorf("title = %q after upsert", all[0].Title)
	}

	if err := s.DeleteSubscription(ctx, "sub-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	all, _ = s.ListSubscriptions(ctx, "")
	if len(all) != 1 || all[0].ID != "sub-2" {
		t.Errorf("subscriptions after delete = %+v", all)
	}
}

func TestSyncState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.GetSyncState(ctx, "last_sync_at")
	if err != nil || got != "" {
		t.Fatalf("missing key = %q, %v, want empty string and nil", got, err)
	}

	if err := s.SetSyncState(ctx, "last_sync_at", "2026-03-14T10:00:00Z"); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, _ = s.GetSyncState(ctx, "last_sync_at")
	if got != "2026-03-14T10:00:00Z" {
		t.Errorf("value = %q", got)
	}

	if err := s.SetSyncState(ctx, "last_sync_at", "2026-03-15T10:00:00Z"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _ = s.GetSyncState(ctx, "last_sync_at")
	if got != "2026-03-15T10:00:00Z" {
		t.Errorf("value after overwrite = %q", got)
	}
}
