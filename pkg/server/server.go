// Package server exposes the local HTTP API consumed by a UI frontend.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/feedquest/feedquest/internal/store"
	"github.com/feedquest/feedquest/pkg/api"
	"github.com/feedquest/feedquest/pkg/progress"
)

// ProgressService is the slice of the progress engine the server uses.
type ProgressService interface {
	Load(ctx context.Context) (progress.UserProgress, error)
	IncrementItemsRead(ctx context.Context, contentType progress.ContentType) (progress.UserProgress, error)
	StreakWarning(ctx context.Context) bool
	DrainCelebrations() []progress.Celebration
}

// BookmarkService is the slice of the bookmark store the server uses.
type BookmarkService interface {
	AddBookmark(ctx context.Context, b *store.Bookmark) error
	RemoveBookmark(ctx context.Context, id string) error
	MarkAsRead(ctx context.Context, r *store.ReadItem) error
	MarkAsUnread(ctx context.Context, id string) error
	Bookmarks(ctx context.Context) ([]store.Bookmark, error)
	SyncWithServer(ctx context.Context)
	PendingCount(ctx context.Context) int
}

// FeedService builds the aggregated feed.
type FeedService interface {
	Aggregate(ctx context.Context, kind string) ([]api.Item, error)
}

// Server provides the local HTTP API.
type Server struct {
	progress  ProgressService
	bookmarks BookmarkService
	feed      FeedService
	log       *slog.Logger
	port      int
}

// New creates a new HTTP server.
func New(p ProgressService, b BookmarkService, f FeedService, log *slog.Logger, port int) *Server {
	if port == 0 {
		port = 8080
	}
	return &Server{
		progress:  p,
		bookmarks: b,
		feed:      f,
		log:       log,
		port:      port,
	}
}

// Handler returns the routed handler with request metrics attached.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/v1/progress", s.handleProgress)
	mux.HandleFunc("/api/v1/progress/warning", s.handleStreakWarning)
	mux.HandleFunc("/api/v1/progress/read", s.handleItemRead)
	mux.HandleFunc("/api/v1/progress/celebrations", s.handleCelebrations)
	mux.HandleFunc("/api/v1/feed", s.handleFeed)
	mux.HandleFunc("/api/v1/bookmarks", s.handleBookmarks)
	mux.HandleFunc("/api/v1/bookmarks/", s.handleBookmarkByID)
	mux.HandleFunc("/api/v1/read-items", s.handleReadItems)
	mux.HandleFunc("/api/v1/read-items/", s.handleReadItemByID)
	mux.HandleFunc("/api/v1/sync", s.handleSync)
	return instrument(mux)
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.log.Info("server listening", "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	p, err := s.progress.Load(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleStreakWarning(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"warning": s.progress.StreakWarning(r.Context())})
}

func (s *Server) handleItemRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var body struct {
		ContentType string `json:"content_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	p, err := s.progress.IncrementItemsRead(r.Context(), progress.ContentType(body.ContentType))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCelebrations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	events := s.progress.DrainCelebrations()
	if events == nil {
		events = []progress.Celebration{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  events,
		"count": len(events),
	})
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	items, err := s.feed.Aggregate(r.Context(), r.URL.Query().Get("kind"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if items == nil {
		items = []api.Item{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  items,
		"count": len(items),
	})
}

func (s *Server) handleBookmarks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list, err := s.bookmarks.Bookmarks(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if list == nil {
			list = []store.Bookmark{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"data":  list,
			"count": len(list),
		})
	case http.MethodPost:
		var b store.Bookmark
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil || b.ID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
			return
		}
		if err := s.bookmarks.AddBookmark(r.Context(), &b); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusCreated, b)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (s *Server) handleBookmarkByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/bookmarks/")
	if r.Method != http.MethodDelete || id == "" {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if err := s.bookmarks.RemoveBookmark(r.Context(), id); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleReadItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var item store.ReadItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil || item.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if err := s.bookmarks.MarkAsRead(r.Context(), &item); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleReadItemByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/read-items/")
	if r.Method != http.MethodDelete || id == "" {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if err := s.bookmarks.MarkAsUnread(r.Context(), id); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	s.bookmarks.SyncWithServer(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"pending": s.bookmarks.PendingCount(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
