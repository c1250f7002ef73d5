package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/feedquest/feedquest/migrations"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Document keys for whole-document JSON records.
const (
	KeyUserProgress = "user_progress"
)

// Bookmark is a locally saved content item with denormalized display fields.
type Bookmark struct {
	ID           string    `db:"id" json:"id"`
	ItemType     string    `db:"item_type" json:"item_type"`
	Title        string    `db:"title" json:"title"`
	Thumbnail    string    `db:"thumbnail" json:"thumbnail"`
	Source       string    `db:"source" json:"source"`
	URL          string    `db:"url" json:"url"`
	BookmarkedAt time.Time `db:"bookmarked_at" json:"bookmarked_at"`
}

// ReadItem marks a content item as read.
type ReadItem struct {
	ID       string    `db:"id" json:"id"`
	ItemType string    `db:"item_type" json:"item_type"`
	ReadAt   time.Time `db:"read_at" json:"read_at"`
}

// PendingOp is a queued mutation whose remote call has not yet succeeded.
type PendingOp struct {
	ID        string    `db:"id" json:"id"`
	Action    string    `db:"action" json:"action"`
	Payload   string    `db:"payload" json:"payload"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Subscription is a cached feed or channel subscription.
type Subscription struct {
	ID      string    `db:"id" json:"id"`
	Kind    string    `db:"kind" json:"kind"`
	Title   string    `db:"title" json:"title"`
	FeedURL string    `db:"feed_url" json:"feed_url"`
	AddedAt time.Time `db:"added_at" json:"added_at"`
}

// Store is the persistence interface.
type Store interface {
	GetDocument(ctx context.Context, key string) (string, error)
	PutDocument(ctx context.Context, key, value string) error

	AddBookmark(ctx context.Context, b *Bookmark) error
	RemoveBookmark(ctx context.Context, id string) error
	HasBookmark(ctx context.Context, id string) (bool, error)
	ListBookmarks(ctx context.Context) ([]Bookmark, error)

	MarkRead(ctx context.Context, r *ReadItem) error
	MarkUnread(ctx context.Context, id string) error
	IsRead(ctx context.Context, id string) (bool, error)
	ListReadItems(ctx context.Context) ([]ReadItem, error)

	AppendPending(ctx context.Context, op *PendingOp) error
	ListPending(ctx context.Context) ([]PendingOp, error)
	DeletePending(ctx context.Context, id string) error

	UpsertSubscription(ctx context.Context, sub *Subscription) error
	ListSubscriptions(ctx context.Context, kind string) ([]Subscription, error)
	DeleteSubscription(ctx context.Context, id string) error

	GetSyncState(ctx context.Context, key string) (string, error)
	SetSyncState(ctx context.Context, key, value string) error

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if err := migrations.Run(db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetDocument(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, "SELECT value FROM documents WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("document %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get document %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) PutDocument(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("put document %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) AddBookmark(ctx context.Context, b *Bookmark) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bookmarks (id, item_type, title, thumbnail, source, url, bookmarked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, b.ID, b.ItemType, b.Title, b.Thumbnail, b.Source, b.URL, b.BookmarkedAt)
	if err != nil {
		return fmt.Errorf("add bookmark %s: %w", b.ID, err)
	}
	return nil
}

func (s *SQLiteStore) RemoveBookmark(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM bookmarks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("remove bookmark %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) HasBookmark(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM bookmarks WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("has bookmark %s: %w", id, err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) ListBookmarks(ctx context.Context) ([]Bookmark, error) {
	var bookmarks []Bookmark
	err := s.db.SelectContext(ctx, &bookmarks,
		"SELECT * FROM bookmarks ORDER BY bookmarked_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	return bookmarks, nil
}

func (s *SQLiteStore) MarkRead(ctx context.Context, r *ReadItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO read_items (id, item_type, read_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, r.ID, r.ItemType, r.ReadAt)
	if err != nil {
		return fmt.Errorf("mark read %s: %w", r.ID, err)
	}
	return nil
}

func (s *SQLiteStore) MarkUnread(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM read_items WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("mark unread %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) IsRead(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM read_items WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("is read %s: %w", id, err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) ListReadItems(ctx context.Context) ([]ReadItem, error) {
	var items []ReadItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM read_items ORDER BY read_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list read items: %w", err)
	}
	return items, nil
}

func (s *SQLiteStore) AppendPending(ctx context.Context, op *PendingOp) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_sync (id, action, payload, created_at)
		VALUES (?, ?, ?, ?)
	`, op.ID, op.Action, op.Payload, op.CreatedAt)
	if err != nil {
		return fmt.Errorf("append pending %s: %w", op.Action, err)
	}
	return nil
}

func (s *SQLiteStore) ListPending(ctx context.Context) ([]PendingOp, error) {
	var ops []PendingOp
	err := s.db.SelectContext(ctx, &ops,
		"SELECT * FROM pending_sync ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	return ops, nil
}

func (s *SQLiteStore) DeletePending(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM pending_sync WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete pending %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) UpsertSubscription(ctx context.Context, sub *Subscription) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, kind, title, feed_url, added_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			feed_url = excluded.feed_url
	`, sub.ID, sub.Kind, sub.Title, sub.FeedURL, sub.AddedAt)
	if err != nil {
		return fmt.Errorf("upsert subscription %s: %w", sub.ID, err)
	}
	return nil
}

func (s *SQLiteStore) ListSubscriptions(ctx context.Context, kind string) ([]Subscription, error) {
	query := "SELECT * FROM subscriptions"
	var args []any
	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, kind)
	}
	query += " ORDER BY added_at"

	var subs []Subscription
	if err := s.db.SelectContext(ctx, &subs, query, args...); err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return subs, nil
}

func (s *SQLiteStore) DeleteSubscription(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM subscriptions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete subscription %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) GetSyncState(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, "SELECT value FROM sync_state WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get sync state %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) SetSyncState(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set sync state %s: %w", key, err)
	}
	return nil
}
