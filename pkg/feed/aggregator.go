// Package feed aggregates content items across subscriptions and previews
// candidate feeds before subscribing.
package feed

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/feedquest/feedquest/pkg/api"
)

// Subscription kinds.
const (
	KindSite    = "site"
	KindYouTube = "youtube"
)

// DefaultMaxItems caps the aggregated feed length.
const DefaultMaxItems = 50

// ItemSource is the slice of the backend API the aggregator uses.
type ItemSource interface {
	ListSubscriptions(ctx context.Context) ([]api.Subscription, error)
	ListItems(ctx context.Context, subscriptionID string, page, pageSize int) ([]api.Item, error)
}

// Aggregator builds a merged, time-ordered feed from every subscription.
type Aggregator struct {
	source   ItemSource
	log      *slog.Logger
	maxItems int
}

// NewAggregator creates an Aggregator. maxItems <= 0 selects DefaultMaxItems.
func NewAggregator(source ItemSource, log *slog.Logger, maxItems int) *Aggregator {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	return &Aggregator{source: source, log: log, maxItems: maxItems}
}

// Aggregate fetches items for every subscription of the given kind ("" means
// all kinds) and merges them newest first. A failing subscription contributes
// an empty result instead of failing the whole feed.
func (a *Aggregator) Aggregate(ctx context.Context, kind string) ([]api.Item, error) {
	subs, err := a.source.ListSubscriptions(ctx)
	if err != nil {
		return nil, err
	}

	var selected []api.Subscription
	for _, sub := range subs {
		if kind == "" || sub.Kind == kind {
			selected = append(selected, sub)
		}
	}

	results := make([][]api.Item, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	for i, sub := range selected {
		i, sub := i, sub
		g.Go(func() error {
			items, err := a.source.ListItems(gctx, sub.ID, 1, a.maxItems)
			if err != nil {
				a.log.Warn("fetch subscription items", "subscription", sub.ID, "error", err)
				return nil
			}
			results[i] = items
			return nil
		})
	}
	_ = g.Wait()

	var merged []api.Item
	for _, items := range results {
		merged = append(merged, items...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return itemTime(merged[i]).After(itemTime(merged[j]))
	})
	if len(merged) > a.maxItems {
		merged = merged[:a.maxItems]
	}
	return merged, nil
}

// itemTime orders items by published time, falling back to fetch time for
// feeds that omit publication dates.
func itemTime(item api.Item) time.Time {
	if !item.PublishedAt.IsZero() {
		return item.PublishedAt
	}
	return item.FetchedAt
}
