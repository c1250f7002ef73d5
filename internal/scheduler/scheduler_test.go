package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/feedquest/feedquest/pkg/api"
	"github.com/feedquest/feedquest/pkg/progress"
)

type countingSyncer struct{ calls atomic.Int32 }

func (c *countingSyncer) SyncWithServer(_ context.Context) { c.calls.Add(1) }

type countingKeeper struct{ calls atomic.Int32 }

func (c *countingKeeper) RefreshDailyChallenges(_ context.Context) (progress.UserProgress, error) {
	c.calls.Add(1)
	return progress.UserProgress{}, nil
}

type countingFeed struct{ calls atomic.Int32 }

func (c *countingFeed) Aggregate(_ context.Context, _ string) ([]api.Item, error) {
	c.calls.Add(1)
	return []api.Item{{ID: "item-1"}}, nil
}

func TestRunExecutesInitialPass(t *testing.T) {
	syncer := &countingSyncer{}
	keeper := &countingKeeper{}
	feed := &countingFeed{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	s := New(syncer, keeper, feed, log, time.Hour, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// The initial pass runs before the first tick; give it a moment then stop.
	deadline := time.After(2 * time.Second)
	for syncer.calls.Load() == 0 || feed.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("initial pass did not run")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()

	if err := <-done; err != context.Canceled {
		t.Errorf("Run returned %v, want context.Canceled", err)
	}
	if keeper.calls.Load() == 0 {
		t.Error("daily challenge refresh not invoked")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(&countingSyncer{}, &countingKeeper{}, &countingFeed{}, log, time.Hour, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Run(ctx); err != context.Canceled {
		t.Errorf("Run returned %v, want context.Canceled", err)
	}
}
