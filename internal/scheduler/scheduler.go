// Package scheduler runs periodic background work: server sync passes,
// daily challenge rollover and feed refresh.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/feedquest/feedquest/pkg/api"
	"github.com/feedquest/feedquest/pkg/progress"
)

// Syncer pushes local state to the backend.
type Syncer interface {
	SyncWithServer(ctx context.Context)
}

// ProgressKeeper rolls daily challenges over at day boundaries.
type ProgressKeeper interface {
	RefreshDailyChallenges(ctx context.Context) (progress.UserProgress, error)
}

// FeedRefresher rebuilds the aggregated feed.
type FeedRefresher interface {
	Aggregate(ctx context.Context, kind string) ([]api.Item, error)
}

// Scheduler runs the periodic sync and refresh loops.
type Scheduler struct {
	syncer     Syncer
	progress   ProgressKeeper
	feed       FeedRefresher
	log        *slog.Logger
	syncInt    time.Duration
	refreshInt time.Duration
}

// New creates a Scheduler.
func New(syncer Syncer, keeper ProgressKeeper, feed FeedRefresher, log *slog.Logger, syncInt, refreshInt time.Duration) *Scheduler {
	if syncInt == 0 {
		syncInt = 15 * time.Minute
	}
	if refreshInt == 0 {
		refreshInt = 30 * time.Minute
	}
	return &Scheduler{
		syncer:     syncer,
		progress:   keeper,
		feed:       feed,
		log:        log,
		syncInt:    syncInt,
		refreshInt: refreshInt,
	}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	syncTicker := time.NewTicker(s.syncInt)
	refreshTicker := time.NewTicker(s.refreshInt)
	defer syncTicker.Stop()
	defer refreshTicker.Stop()

	// Run immediately on start.
	s.syncPass(ctx)
	s.refreshFeed(ctx)

	s.log.Info("scheduler running", "sync_every", s.syncInt, "refresh_every", s.refreshInt)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return ctx.Err()
		case <-syncTicker.C:
			s.syncPass(ctx)
		case <-refreshTicker.C:
			s.refreshFeed(ctx)
		}
	}
}

func (s *Scheduler) syncPass(ctx context.Context) {
	s.log.Debug("sync pass")
	s.syncer.SyncWithServer(ctx)
	if _, err := s.progress.RefreshDailyChallenges(ctx); err != nil {
		s.log.Error("refresh daily challenges", "error", err)
	}
}

func (s *Scheduler) refreshFeed(ctx context.Context) {
	items, err := s.feed.Aggregate(ctx, "")
	if err != nil {
		s.log.Warn("feed refresh", "error", err)
		return
	}
	s.log.Debug("feed refreshed", "items", len(items))
}
