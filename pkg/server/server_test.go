package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/feedquest/feedquest/internal/store"
	"github.com/feedquest/feedquest/pkg/api"
	"github.com/feedquest/feedquest/pkg/progress"
)

type fakeProgress struct {
	doc          progress.UserProgress
	warning      bool
	celebrations []progress.Celebration
	readCalls    int
}

func (f *fakeProgress) Load(_ context.Context) (progress.UserProgress, error) {
	return f.doc, nil
}

func (f *fakeProgress) IncrementItemsRead(_ context.Context, _ progress.ContentType) (progress.UserProgress, error) {
	f.readCalls++
	f.doc.TotalItemsRead++
	return f.doc, nil
}

func (f *fakeProgress) StreakWarning(_ context.Context) bool { return f.warning }

func (f *fakeProgress) DrainCelebrations() []progress.Celebration {
	out := f.celebrations
	f.celebrations = nil
	return out
}

type fakeBookmarks struct {
	bookmarks map[string]store.Bookmark
	reads     map[string]store.ReadItem
	syncCalls int
	failList  bool
}

func newFakeBookmarks() *fakeBookmarks {
	return &fakeBookmarks{
		bookmarks: map[string]store.Bookmark{},
		reads:     map[string]store.ReadItem{},
	}
}

func (f *fakeBookmarks) AddBookmark(_ context.Context, b *store.Bookmark) error {
	f.bookmarks[b.ID] = *b
	return nil
}

func (f *fakeBookmarks) RemoveBookmark(_ context.Context, id string) error {
	delete(f.bookmarks, id)
	return nil
}

func (f *fakeBookmarks) MarkAsRead(_ context.Context, r *store.ReadItem) error {
	f.reads[r.ID] = *r
	return nil
}

func (f *fakeBookmarks) MarkAsUnread(_ context.Context, id string) error {
	delete(f.reads, id)
	return nil
}

func (f *fakeBookmarks) Bookmarks(_ context.Context) ([]store.Bookmark, error) {
	if f.failList {
		return nil, errors.New("db locked")
	}
	var out []store.Bookmark
	for _, b := range f.bookmarks {
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeBookmarks) SyncWithServer(_ context.Context) { f.syncCalls++ }

func (f *fakeBookmarks) PendingCount(_ context.Context) int { return 0 }

type fakeFeed struct{ items []api.Item }

func (f *fakeFeed) Aggregate(_ context.Context, _ string) ([]api.Item, error) {
	return f.items, nil
}

func newTestServer(p *fakeProgress, b *fakeBookmarks, f *fakeFeed) *httptest.Server {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return httptest.NewServer(New(p, b, f, log, 8080).Handler())
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	ts := newTestServer(&fakeProgress{}, newFakeBookmarks(), &fakeFeed{})
	defer ts.Close()

	var body map[string]string
	if code := getJSON(t, ts.URL+"/health", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestProgressEndpoints(t *testing.T) {
	p := &fakeProgress{
		doc:     progress.UserProgress{Level: 3, Experience: 450, CurrentStreak: 5},
		warning: true,
		celebrations: []progress.Celebration{
			{Kind: progress.CelebrationChallenge, ID: "read_3_articles", XPReward: 30},
		},
	}
	ts := newTestServer(p, newFakeBookmarks(), &fakeFeed{})
	defer ts.Close()

	var doc progress.UserProgress
	if code := getJSON(t, ts.URL+"/api/v1/progress", &doc); code != http.StatusOK {
		t.Fatalf("progress status = %d", code)
	}
	if doc.Level != 3 || doc.CurrentStreak != 5 {
		t.Errorf("progress doc = %+v", doc)
	}

	var warn map[string]bool
	getJSON(t, ts.URL+"/api/v1/progress/warning", &warn)
	if !warn["warning"] {
		t.Error("warning = false, want true")
	}

	var cel struct {
		Count int `json:"count"`
	}
	getJSON(t, ts.URL+"/api/v1/progress/celebrations", &cel)
	if cel.Count != 1 {
		t.Errorf("celebration count = %d, want 1", cel.Count)
	}
	// Second drain is empty.
	getJSON(t, ts.URL+"/api/v1/progress/celebrations", &cel)
	if cel.Count != 0 {
		t.Errorf("second drain count = %d, want 0", cel.Count)
	}
}

func TestItemRead(t *testing.T) {
	p := &fakeProgress{}
	ts := newTestServer(p, newFakeBookmarks(), &fakeFeed{})
	defer ts.Close()

	body := bytes.NewBufferString(`{"content_type":"news"}`)
	resp, err := http.Post(ts.URL+"/api/v1/progress/read", "application/json", body)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if p.readCalls != 1 {
		t.Errorf("readCalls = %d, want 1", p.readCalls)
	}

	// Malformed body is rejected before touching the engine.
	resp, err = http.Post(ts.URL+"/api/v1/progress/read", "application/json", bytes.NewBufferString("{"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", resp.StatusCode)
	}
}

func TestBookmarkLifecycle(t *testing.T) {
	b := newFakeBookmarks()
	ts := newTestServer(&fakeProgress{}, b, &fakeFeed{})
	defer ts.Close()

	payload := bytes.NewBufferString(`{"id":"item-1","item_type":"news","title":"Hello"}`)
	resp, err := http.Post(ts.URL+"/api/v1/bookmarks", "application/json", payload)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}

	var list struct {
		Count int `json:"count"`
	}
	getJSON(t, ts.URL+"/api/v1/bookmarks", &list)
	if list.Count != 1 {
		t.Fatalf("count = %d, want 1", list.Count)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/bookmarks/item-1", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	if len(b.bookmarks) != 0 {
		t.Error("bookmark not removed")
	}
}

func TestFeedEndpoint(t *testing.T) {
	feed := &fakeFeed{items: []api.Item{{ID: "item-1"}, {ID: "item-2"}}}
	ts := newTestServer(&fakeProgress{}, newFakeBookmarks(), feed)
	defer ts.Close()

	var body struct {
		Count int `json:"count"`
	}
	if code := getJSON(t, ts.URL+"/api/v1/feed?kind=site", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body.Count != 2 {
		t.Errorf("count = %d, want 2", body.Count)
	}
}

func TestSyncEndpoint(t *testing.T) {
	b := newFakeBookmarks()
	ts := newTestServer(&fakeProgress{}, b, &fakeFeed{})
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/sync", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if b.syncCalls != 1 {
		t.Errorf("syncCalls = %d, want 1", b.syncCalls)
	}

	// GET is rejected.
	if code := getJSON(t, ts.URL+"/api/v1/sync", nil); code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", code)
	}
}

func TestListErrorSurfaces(t *testing.T) {
	b := newFakeBookmarks()
	b.failList = true
	ts := newTestServer(&fakeProgress{}, b, &fakeFeed{})
	defer ts.Close()

	if code := getJSON(t, ts.URL+"/api/v1/bookmarks", nil); code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", code)
	}
}
