package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/feedquest/feedquest/internal/config"
	"github.com/feedquest/feedquest/internal/scheduler"
	"github.com/feedquest/feedquest/internal/store"
	"github.com/feedquest/feedquest/pkg/api"
	"github.com/feedquest/feedquest/pkg/bookmarks"
	"github.com/feedquest/feedquest/pkg/feed"
	"github.com/feedquest/feedquest/pkg/progress"
	"github.com/feedquest/feedquest/pkg/server"
)

func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()

	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

// app bundles the wired components shared by every command.
type app struct {
	cfg    *config.Config
	log    *slog.Logger
	db     *store.SQLiteStore
	tokens *api.TokenStore
	client *api.Client
	engine *progress.Engine
	marks  *bookmarks.Service
	agg    *feed.Aggregator
}

func buildApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := newLogger(cfg.LogLevel())

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	tokens := api.NewTokenStore(cfg.Remote.TokenPath)
	httpClient := &http.Client{Timeout: cfg.Remote.ParseTimeout()}
	client := api.New(cfg.Remote.BaseURL, httpClient, tokens.Load, cfg.Remote.RateLimit, cfg.Remote.RateBurst)

	return &app{
		cfg:    cfg,
		log:    log,
		db:     db,
		tokens: tokens,
		client: client,
		engine: progress.NewEngine(db, log),
		marks:  bookmarks.New(db, client, log),
		agg:    feed.NewAggregator(client, log, cfg.Feed.MaxItems),
	}, nil
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.log.Error("close store", "error", err)
	}
}

func runProgress(jsonOutput bool) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	p, err := a.engine.Load(ctx)
	if err != nil {
		return fmt.Errorf("load progress: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	}

	fmt.Printf("Level %d (%d XP)\n", p.Level, p.Experience)
	fmt.Printf("Streak: %d days (longest %d)\n", p.CurrentStreak, p.LongestStreak)
	fmt.Printf("Items read: %d, subscriptions: %d\n\n", p.TotalItemsRead, p.TotalSubscriptions)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHALLENGE\tPROGRESS\tXP\tDONE")
	for _, c := range p.DailyChallenges {
		done := ""
		if c.Completed {
			done = "yes"
		}
		fmt.Fprintf(w, "%s\t%d/%d\t%d\t%s\n", c.Title, c.Progress, c.Target, c.XPReward, done)
	}
	fmt.Fprintln(w, "\nACHIEVEMENT\tPROGRESS\tRARITY\tUNLOCKED")
	for _, ach := range p.Achievements {
		unlocked := ""
		if ach.UnlockedAt != nil {
			unlocked = ach.UnlockedAt.Format("2006-01-02")
		}
		fmt.Fprintf(w, "%s\t%d/%d\t%s\t%s\n", ach.Name, ach.Progress, ach.Target, ach.Rarity, unlocked)
	}
	return w.Flush()
}

func runFeed(kind string, jsonOutput bool) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	items, err := a.agg.Aggregate(context.Background(), kind)
	if err != nil {
		return fmt.Errorf("aggregate feed: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	if len(items) == 0 {
		fmt.Println("no items (try adding a subscription first: feedquest add <url>)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tTITLE\tSOURCE\tPUBLISHED")
	for _, item := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			item.ID, item.ItemType, item.Title, item.Source,
			item.PublishedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func runAdd(feedURL, kind string) error {
	if kind != feed.KindSite && kind != feed.KindYouTube {
		return fmt.Errorf("unknown kind %q (want site or youtube)", kind)
	}

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()

	previewer := feed.NewPreviewer(&http.Client{Timeout: a.cfg.Remote.ParseTimeout()})
	preview, err := previewer.Fetch(ctx, feedURL)
	if err != nil {
		return fmt.Errorf("preview feed: %w", err)
	}
	fmt.Fprintf(os.Stderr, "found %q (%d items)\n", preview.Title, preview.ItemCount)

	sub, err := a.client.AddSubscription(ctx, kind, feedURL, preview.Title)
	if err != nil {
		return fmt.Errorf("register subscription: %w", err)
	}

	local := store.Subscription{
		ID:      sub.ID,
		Kind:    sub.Kind,
		Title:   sub.Title,
		FeedURL: sub.FeedURL,
		AddedAt: sub.AddedAt,
	}
	if local.ID == "" {
		local.ID = uuid.NewString()
	}
	if err := a.db.UpsertSubscription(ctx, &local); err != nil {
		return fmt.Errorf("cache subscription: %w", err)
	}

	subs, err := a.db.ListSubscriptions(ctx, "")
	if err != nil {
		return fmt.Errorf("count subscriptions: %w", err)
	}
	total := len(subs)

	content := progress.ContentNews
	if kind == feed.KindYouTube {
		content = progress.ContentVideos
	}
	if _, err := a.engine.UpdateProgress(ctx, progress.Patch{TotalSubscriptions: &total}, content); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	printCelebrations(a.engine.DrainCelebrations())

	fmt.Printf("subscribed to %s (%s)\n", preview.Title, kind)
	return nil
}

func runRead(itemID, contentType string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()

	if err := a.marks.MarkAsRead(ctx, &store.ReadItem{ID: itemID, ItemType: contentType}); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}

	if _, err := a.engine.CheckStreak(ctx); err != nil {
		return fmt.Errorf("check streak: %w", err)
	}
	p, err := a.engine.IncrementItemsRead(ctx, progress.ContentType(contentType))
	if err != nil {
		return fmt.Errorf("record read: %w", err)
	}
	printCelebrations(a.engine.DrainCelebrations())

	fmt.Printf("marked %s as read (level %d, %d XP, streak %d)\n",
		itemID, p.Level, p.Experience, p.CurrentStreak)
	return nil
}

func runBookmark(itemID, title, itemURL, contentType string, remove bool) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()

	if remove {
		if err := a.marks.RemoveBookmark(ctx, itemID); err != nil {
			return fmt.Errorf("remove bookmark: %w", err)
		}
		fmt.Printf("removed bookmark %s\n", itemID)
		return nil
	}

	b := store.Bookmark{ID: itemID, ItemType: contentType, Title: title, URL: itemURL}
	if err := a.marks.AddBookmark(ctx, &b); err != nil {
		return fmt.Errorf("add bookmark: %w", err)
	}
	fmt.Printf("bookmarked %s\n", itemID)
	return nil
}

func runSync() error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	a.marks.SyncWithServer(ctx)

	if pending := a.marks.PendingCount(ctx); pending > 0 {
		fmt.Printf("sync finished, %d operations still queued\n", pending)
		return nil
	}
	fmt.Println("sync finished")
	return nil
}

func runLogin(email string, register bool) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	fmt.Fprint(os.Stderr, "password: ")
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return fmt.Errorf("read password: %w", scanner.Err())
	}
	password := scanner.Text()

	ctx := context.Background()
	var token string
	if register {
		token, err = a.client.Register(ctx, email, password)
	} else {
		token, err = a.client.Login(ctx, email, password)
	}
	if err != nil {
		return err
	}

	if err := a.tokens.Save(token); err != nil {
		return err
	}
	fmt.Println("logged in")
	return nil
}

func runServe(port int) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	if port == 0 {
		port = a.cfg.Server.Port
	}

	srv := server.New(a.engine, a.marks, a.agg, a.log, port)
	return srv.ListenAndServe()
}

func runDaemon(port int) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	if port == 0 {
		port = a.cfg.Server.Port
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.New(a.marks, a.engine, a.agg, a.log,
		a.cfg.Sync.ParseSyncInterval(),
		a.cfg.Sync.ParseRefreshInterval(),
	)

	// Start scheduler in background.
	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			a.log.Error("scheduler", "error", err)
		}
	}()

	srv := server.New(a.engine, a.marks, a.agg, a.log, port)
	go func() {
		<-ctx.Done()
		a.log.Info("shutting down")
	}()

	return srv.ListenAndServe()
}

func printCelebrations(events []progress.Celebration) {
	for _, c := range events {
		switch c.Kind {
		case progress.CelebrationChallenge:
			fmt.Printf("challenge complete: %s (+%d XP)\n", c.Title, c.XPReward)
		case progress.CelebrationAchievement:
			fmt.Printf("achievement unlocked: %s (+%d XP)\n", c.Title, c.XPReward)
		}
	}
}
