// Package bookmarks implements local-first bookmarks and read markers with
// best-effort remote synchronization. Local state is the source of truth and
// is never rolled back because of a remote failure; failed remote calls stay
// in a persisted pending queue and are retried on the next sync pass.
package bookmarks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/feedquest/feedquest/internal/store"
	"github.com/feedquest/feedquest/pkg/api"
)

// Pending queue actions.
const (
	ActionAddBookmark    = "ADD_BOOKMARK"
	ActionRemoveBookmark = "REMOVE_BOOKMARK"
	ActionMarkRead       = "MARK_READ"
	ActionMarkUnread     = "MARK_UNREAD"
)

const lastSyncKey = "last_sync_at"

// Remote is the slice of the backend API the service uses.
type Remote interface {
	AddBookmark(ctx context.Context, b api.BookmarkPayload) error
	RemoveBookmark(ctx context.Context, id string) error
	MarkRead(ctx context.Context, r api.ReadItemPayload) error
	MarkUnread(ctx context.Context, id string) error
	SyncBookmarks(ctx context.Context, req api.BookmarkSyncRequest) (*api.BookmarkSyncResponse, error)
	SyncReadItems(ctx context.Context, req api.ReadItemSyncRequest) (*api.ReadItemSyncResponse, error)
}

// Service is the bookmark/read-status store.
type Service struct {
	store   store.Store
	remote  Remote
	log     *slog.Logger
	now     func() time.Time
	syncing atomic.Bool
}

// New creates a Service.
func New(st store.Store, remote Remote, log *slog.Logger) *Service {
	return &Service{
		store:  st,
		remote: remote,
		log:    log,
		now:    time.Now,
	}
}

// SetClock overrides the service clock (useful for testing).
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// AddBookmark saves the bookmark locally, queues the operation, then
// attempts the remote call. A remote failure leaves the operation queued;
// the returned error covers local persistence only.
func (s *Service) AddBookmark(ctx context.Context, b *store.Bookmark) error {
	if b.BookmarkedAt.IsZero() {
		b.BookmarkedAt = s.now().UTC()
	}
	if err := s.store.AddBookmark(ctx, b); err != nil {
		return fmt.Errorf("add bookmark locally: %w", err)
	}

	payload := bookmarkPayload(b)
	s.enqueueAndSend(ctx, ActionAddBookmark, payload, func(ctx context.Context) error {
		return s.remote.AddBookmark(ctx, payload)
	})
	return nil
}

// RemoveBookmark deletes the bookmark locally, then best-effort remotely.
func (s *Service) RemoveBookmark(ctx context.Context, id string) error {
	if err := s.store.RemoveBookmark(ctx, id); err != nil {
		return fmt.Errorf("remove bookmark locally: %w", err)
	}

	s.enqueueAndSend(ctx, ActionRemoveBookmark, idPayload{ID: id}, func(ctx context.Context) error {
		return s.remote.RemoveBookmark(ctx, id)
	})
	return nil
}

// MarkAsRead records the read marker locally, then best-effort remotely.
func (s *Service) MarkAsRead(ctx context.Context, r *store.ReadItem) error {
	if r.ReadAt.IsZero() {
		r.ReadAt = s.now().UTC()
	}
	if err := s.store.MarkRead(ctx, r); err != nil {
		return fmt.Errorf("mark read locally: %w", err)
	}

	payload := readItemPayload(r)
	s.enqueueAndSend(ctx, ActionMarkRead, payload, func(ctx context.Context) error {
		return s.remote.MarkRead(ctx, payload)
	})
	return nil
}

// MarkAsUnread removes the read marker locally, then best-effort remotely.
func (s *Service) MarkAsUnread(ctx context.Context, id string) error {
	if err := s.store.MarkUnread(ctx, id); err != nil {
		return fmt.Errorf("mark unread locally: %w", err)
	}

	s.enqueueAndSend(ctx, ActionMarkUnread, idPayload{ID: id}, func(ctx context.Context) error {
		return s.remote.MarkUnread(ctx, id)
	})
	return nil
}

// IsBookmarked reports whether the item is bookmarked locally.
func (s *Service) IsBookmarked(ctx context.Context, id string) bool {
	ok, err := s.store.HasBookmark(ctx, id)
	if err != nil {
		s.log.Error("is bookmarked", "id", id, "error", err)
		return false
	}
	return ok
}

// IsRead reports whether the item is marked read locally.
func (s *Service) IsRead(ctx context.Context, id string) bool {
	ok, err := s.store.IsRead(ctx, id)
	if err != nil {
		s.log.Error("is read", "id", id, "error", err)
		return false
	}
	return ok
}

// Bookmarks lists local bookmarks, newest first.
func (s *Service) Bookmarks(ctx context.Context) ([]store.Bookmark, error) {
	return s.store.ListBookmarks(ctx)
}

// SyncWithServer runs a full best-effort sync pass: flush the pending queue,
// push local state, merge server-only items additively, stamp last_sync_at.
// A second call while one is in flight is a silent no-op. Errors abort the
// remainder of the pass, are logged, and never corrupt local state.
func (s *Service) SyncWithServer(ctx context.Context) {
	if !s.syncing.CompareAndSwap(false, true) {
		s.log.Debug("sync already in flight, skipping")
		return
	}
	defer s.syncing.Store(false)

	s.flushPending(ctx)

	if err := s.pushAndMerge(ctx); err != nil {
		s.log.Error("sync with server", "error", err)
		return
	}

	stamp := s.now().UTC().Format(time.RFC3339)
	if err := s.store.SetSyncState(ctx, lastSyncKey, stamp); err != nil {
		s.log.Error("stamp last sync", "error", err)
	}
}

// PendingCount returns the number of queued operations, for status display.
func (s *Service) PendingCount(ctx context.Context) int {
	ops, err := s.store.ListPending(ctx)
	if err != nil {
		return 0
	}
	return len(ops)
}

// enqueueAndSend appends the operation to the pending queue before the
// remote attempt, so a crash mid-call cannot drop it, and removes the entry
// once the remote call succeeds.
func (s *Service) enqueueAndSend(ctx context.Context, action string, payload any, send func(context.Context) error) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error("encode pending payload", "action", action, "error", err)
		return
	}

	op := &store.PendingOp{
		ID:        uuid.NewString(),
		Action:    action,
		Payload:   string(data),
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.AppendPending(ctx, op); err != nil {
		s.log.Error("append pending", "action", action, "error", err)
		// Still attempt the remote call; worst case the next full sync
		// pushes the complete local state anyway.
	}

	if err := send(ctx); err != nil {
		s.log.Warn("remote call failed, left queued", "action", action, "error", err)
		return
	}
	if err := s.store.DeletePending(ctx, op.ID); err != nil {
		s.log.Error("delete pending", "action", action, "error", err)
	}
}

// flushPending retries every queued operation, removing entries on success
// and leaving failures queued for the next pass.
func (s *Service) flushPending(ctx context.Context) {
	ops, err := s.store.ListPending(ctx)
	if err != nil {
		s.log.Error("list pending", "error", err)
		return
	}

	for _, op := range ops {
		backoff := retry.WithMaxRetries(2, retry.NewConstant(200*time.Millisecond))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			if err := s.applyPending(ctx, op); err != nil {
				return retry.RetryableError(err)
			}
			return nil
		})
		if err != nil {
			s.log.Warn("pending op still failing", "action", op.Action, "id", op.ID, "error", err)
			continue
		}
		if err := s.store.DeletePending(ctx, op.ID); err != nil {
			s.log.Error("delete pending", "id", op.ID, "error", err)
		}
	}
}

func (s *Service) applyPending(ctx context.Context, op store.PendingOp) error {
	switch op.Action {
	case ActionAddBookmark:
		var p api.BookmarkPayload
		if err := json.Unmarshal([]byte(op.Payload), &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", op.Action, err)
		}
		return s.remote.AddBookmark(ctx, p)
	case ActionRemoveBookmark:
		var p idPayload
		if err := json.Unmarshal([]byte(op.Payload), &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", op.Action, err)
		}
		return s.remote.RemoveBookmark(ctx, p.ID)
	case ActionMarkRead:
		var p api.ReadItemPayload
		if err := json.Unmarshal([]byte(op.Payload), &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", op.Action, err)
		}
		return s.remote.MarkRead(ctx, p)
	case ActionMarkUnread:
		var p idPayload
		if err := json.Unmarshal([]byte(op.Payload), &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", op.Action, err)
		}
		return s.remote.MarkUnread(ctx, p.ID)
	default:
		return fmt.Errorf("unknown pending action %q", op.Action)
	}
}

// pushAndMerge pushes the full local lists to the sync endpoints and merges
// server-only items into local state by id. The merge is additive only: no
// update-in-place for items present on both sides, no delete propagation.
func (s *Service) pushAndMerge(ctx context.Context) error {
	lastSync, err := s.store.GetSyncState(ctx, lastSyncKey)
	if err != nil {
		return err
	}

	bookmarks, err := s.store.ListBookmarks(ctx)
	if err != nil {
		return err
	}
	bookmarkPayloads := make([]api.BookmarkPayload, len(bookmarks))
	for i := range bookmarks {
		bookmarkPayloads[i] = bookmarkPayload(&bookmarks[i])
	}

	bresp, err := s.remote.SyncBookmarks(ctx, api.BookmarkSyncRequest{
		Items:      bookmarkPayloads,
		LastSyncAt: lastSync,
	})
	if err != nil {
		return fmt.Errorf("sync bookmarks: %w", err)
	}
	for _, item := range bresp.Items {
		exists, err := s.store.HasBookmark(ctx, item.ID)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		b := bookmarkFromPayload(item)
		if err := s.store.AddBookmark(ctx, &b); err != nil {
			return err
		}
	}

	reads, err := s.store.ListReadItems(ctx)
	if err != nil {
		return err
	}
	readPayloads := make([]api.ReadItemPayload, len(reads))
	for i := range reads {
		readPayloads[i] = readItemPayload(&reads[i])
	}

	rresp, err := s.remote.SyncReadItems(ctx, api.ReadItemSyncRequest{
		Items:      readPayloads,
		LastSyncAt: lastSync,
	})
	if err != nil {
		return fmt.Errorf("sync read items: %w", err)
	}
	for _, item := range rresp.Items {
		exists, err := s.store.IsRead(ctx, item.ID)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		r := store.ReadItem{ID: item.ID, ItemType: item.ItemType, ReadAt: item.ReadAt}
		if err := s.store.MarkRead(ctx, &r); err != nil {
			return err
		}
	}

	return nil
}

type idPayload struct {
	ID string `json:"id"`
}

func bookmarkPayload(b *store.Bookmark) api.BookmarkPayload {
	return api.BookmarkPayload{
		ID:           b.ID,
		ItemType:     b.ItemType,
		Title:        b.Title,
		Thumbnail:    b.Thumbnail,
		Source:       b.Source,
		URL:          b.URL,
		BookmarkedAt: b.BookmarkedAt,
	}
}

func bookmarkFromPayload(p api.BookmarkPayload) store.Bookmark {
	return store.Bookmark{
		ID:           p.ID,
		ItemType:     p.ItemType,
		Title:        p.Title,
		Thumbnail:    p.Thumbnail,
		Source:       p.Source,
		URL:          p.URL,
		BookmarkedAt: p.BookmarkedAt,
	}
}

func readItemPayload(r *store.ReadItem) api.ReadItemPayload {
	return api.ReadItemPayload{ID: r.ID, ItemType: r.ItemType, ReadAt: r.ReadAt}
}
