// Package progress implements the local gamification engine: XP/leveling,
// streaks, achievements and daily challenges, persisted as a single JSON
// document.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/feedquest/feedquest/internal/store"
)

// DocumentStore is the slice of persistence the engine needs.
type DocumentStore interface {
	GetDocument(ctx context.Context, key string) (string, error)
	PutDocument(ctx context.Context, key, value string) error
}

// Patch is a merge-patch over the progress document. Nil fields are left
// untouched.
type Patch struct {
	TotalSubscriptions *int
	TotalTimeSpent     *int
}

// Engine maintains the UserProgress document. All mutating operations are
// serialized by an internal mutex and persist a best-effort snapshot after
// each state change; persistence failures are logged, never returned.
type Engine struct {
	docs DocumentStore
	log  *slog.Logger

	mu           sync.Mutex
	current      *UserProgress
	celebrations []Celebration
	now          func() time.Time
	rng          *rand.Rand
}

// NewEngine creates an Engine backed by the given document store.
func NewEngine(docs DocumentStore, log *slog.Logger) *Engine {
	return &Engine{
		docs: docs,
		log:  log,
		now:  time.Now,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetClock overrides the engine clock (useful for testing day boundaries).
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// SetRand overrides the challenge selection source (useful for testing).
func (e *Engine) SetRand(rng *rand.Rand) {
	e.rng = rng
}

// Load returns the current progress document, initializing and persisting a
// fresh one on first run.
func (e *Engine) Load(ctx context.Context) (UserProgress, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.load(ctx)
	if err != nil {
		return UserProgress{}, err
	}
	return snapshot(p), nil
}

// IncrementItemsRead records one consumed item. News items advance read
// challenges, videos advance watch challenges. The caller earns 10 base XP
// plus the reward of every challenge completed by this event.
func (e *Engine) IncrementItemsRead(ctx context.Context, contentType ContentType) (UserProgress, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.load(ctx)
	if err != nil {
		return UserProgress{}, err
	}

	typ := ChallengeRead
	if contentType == ContentVideos {
		typ = ChallengeWatch
	}

	p.TotalItemsRead++
	bonus := e.advanceChallenges(p, typ, "")
	e.addExperience(p, 10+bonus)
	e.advanceAchievements(p, readAchievements, p.TotalItemsRead)
	e.save(ctx)
	return snapshot(p), nil
}

// CheckStreak records activity for today. A second call on the same calendar
// day is a no-op. A prior active day of exactly yesterday continues the
// streak; any other gap resets it to 1.
func (e *Engine) CheckStreak(ctx context.Context) (UserProgress, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.load(ctx)
	if err != nil {
		return UserProgress{}, err
	}

	today := e.today()
	if p.LastActiveDate == today {
		return snapshot(p), nil
	}

	yesterday := e.now().AddDate(0, 0, -1).Format(dateLayout)
	if p.LastActiveDate == yesterday {
		p.CurrentStreak++
	} else {
		p.CurrentStreak = 1
	}
	if p.CurrentStreak > p.LongestStreak {
		p.LongestStreak = p.CurrentStreak
	}
	p.LastActiveDate = today

	e.addExperience(p, 5)
	e.advanceAchievements(p, streakAchievements, p.CurrentStreak)
	e.refreshChallenges(p)
	e.save(ctx)
	return snapshot(p), nil
}

// StreakWarning reports whether the user is about to lose a streak of 3+
// days: not yet active today and the local clock is at or past 18:00.
// It never mutates state and is safe to call from any screen.
func (e *Engine) StreakWarning(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.load(ctx)
	if err != nil {
		return false
	}
	return p.CurrentStreak >= 3 && p.LastActiveDate != e.today() && e.now().Hour() >= 18
}

// UpdateProgress applies a merge-patch. When the patch carries a new
// subscription total, the subscription achievement ladder is re-evaluated and
// incomplete explore challenges advance; exploreContent narrows which explore
// challenges count (matching or "any"), all of them when omitted.
func (e *Engine) UpdateProgress(ctx context.Context, patch Patch, exploreContent ...ContentType) (UserProgress, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.load(ctx)
	if err != nil {
		return UserProgress{}, err
	}

	if patch.TotalTimeSpent != nil {
		p.TotalTimeSpent = *patch.TotalTimeSpent
	}
	if patch.TotalSubscriptions != nil {
		p.TotalSubscriptions = *patch.TotalSubscriptions
		e.advanceAchievements(p, subscriptionAchievements, p.TotalSubscriptions)

		var filter ContentType
		if len(exploreContent) > 0 {
			filter = exploreContent[0]
		}
		bonus := e.advanceChallenges(p, ChallengeExplore, filter)
		e.addExperience(p, bonus)
	}

	e.save(ctx)
	return snapshot(p), nil
}

// RefreshDailyChallenges replaces the challenge list with three fresh ones
// when the calendar day has rolled over. Idempotent within a day; safe to
// call on every screen focus.
func (e *Engine) RefreshDailyChallenges(ctx context.Context) (UserProgress, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.load(ctx)
	if err != nil {
		return UserProgress{}, err
	}
	if e.refreshChallenges(p) {
		e.save(ctx)
	}
	return snapshot(p), nil
}

// DrainCelebrations returns queued celebration events and clears the queue.
func (e *Engine) DrainCelebrations() []Celebration {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := e.celebrations
	e.celebrations = nil
	return out
}

func (e *Engine) load(ctx context.Context) (*UserProgress, error) {
	if e.current != nil {
		return e.current, nil
	}

	raw, err := e.docs.GetDocument(ctx, store.KeyUserProgress)
	if errors.Is(err, store.ErrNotFound) {
		p := e.freshProgress()
		e.current = p
		e.save(ctx)
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}

	var p UserProgress
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("decode progress document: %w", err)
	}

	// Schema-tolerant load: older snapshots may predate these fields.
	if p.DailyChallenges == nil {
		p.DailyChallenges = []DailyChallenge{}
	}
	if len(p.Achievements) == 0 {
		p.Achievements = defaultAchievements()
	}
	p.Level = LevelForExperience(p.Experience)

	e.current = &p
	if e.refreshChallenges(&p) {
		e.save(ctx)
	}
	return &p, nil
}

func (e *Engine) freshProgress() *UserProgress {
	p := &UserProgress{
		Level:             1,
		Achievements:      defaultAchievements(),
		DailyChallenges:   e.generateChallenges(),
		LastChallengeDate: e.today(),
	}
	return p
}

// save persists the current document best-effort. A failed write is logged
// and the in-memory state stays authoritative until the next attempt.
func (e *Engine) save(ctx context.Context) {
	data, err := json.Marshal(e.current)
	if err != nil {
		e.log.Error("encode progress", "error", err)
		return
	}
	if err := e.docs.PutDocument(ctx, store.KeyUserProgress, string(data)); err != nil {
		e.log.Error("persist progress", "error", err)
	}
}

func (e *Engine) addExperience(p *UserProgress, xp int) {
	p.Experience += xp
	p.Level = LevelForExperience(p.Experience)
}

// advanceChallenges bumps every incomplete challenge of the given type by
// one, capping at target. Each challenge crossing its target completes
// exactly once; the summed rewards are returned and a celebration is queued
// per completion.
func (e *Engine) advanceChallenges(p *UserProgress, typ ChallengeType, filter ContentType) int {
	bonus := 0
	for i := range p.DailyChallenges {
		c := &p.DailyChallenges[i]
		if c.Type != typ || c.Completed {
			continue
		}
		if filter != "" && c.ContentType != filter && c.ContentType != ContentAny {
			continue
		}
		c.Progress++
		if c.Progress > c.Target {
			c.Progress = c.Target
		}
		if c.Progress >= c.Target {
			c.Completed = true
			bonus += c.XPReward
			e.celebrations = append(e.celebrations, Celebration{
				Kind:     CelebrationChallenge,
				ID:       c.ID,
				Title:    c.Title,
				XPReward: c.XPReward,
			})
			e.log.Info("challenge completed", "id", c.ID, "xp", c.XPReward)
		}
	}
	return bonus
}

// advanceAchievements raises progress toward the named achievements. Progress
// never decreases and never exceeds target; reaching target unlocks exactly
// once.
func (e *Engine) advanceAchievements(p *UserProgress, ids []string, value int) {
	for i := range p.Achievements {
		a := &p.Achievements[i]
		if !slices.Contains(ids, a.ID) {
			continue
		}
		next := value
		if next > a.Target {
			next = a.Target
		}
		if next > a.Progress {
			a.Progress = next
		}
		if a.Progress >= a.Target && a.UnlockedAt == nil {
			e.unlockAchievement(p, a)
		}
	}
}

// unlockAchievement awards the rarity-scaled XP bonus and queues a
// celebration. Callers guard on UnlockedAt so the award happens exactly once.
func (e *Engine) unlockAchievement(p *UserProgress, a *Achievement) {
	now := e.now()
	a.UnlockedAt = &now
	e.addExperience(p, rarityXP[a.Rarity])
	e.celebrations = append(e.celebrations, Celebration{
		Kind:     CelebrationAchievement,
		ID:       a.ID,
		Title:    a.Name,
		XPReward: rarityXP[a.Rarity],
	})
	e.log.Info("achievement unlocked", "id", a.ID, "rarity", string(a.Rarity))
}

func (e *Engine) refreshChallenges(p *UserProgress) bool {
	today := e.today()
	if p.LastChallengeDate == today {
		return false
	}
	p.DailyChallenges = e.generateChallenges()
	p.LastChallengeDate = today
	return true
}

func (e *Engine) generateChallenges() []DailyChallenge {
	return []DailyChallenge{
		readTemplates[e.rng.Intn(len(readTemplates))].challenge(ChallengeRead),
		watchTemplates[e.rng.Intn(len(watchTemplates))].challenge(ChallengeWatch),
		exploreTemplates[e.rng.Intn(len(exploreTemplates))].challenge(ChallengeExplore),
	}
}

func (e *Engine) today() string {
	return e.now().Format(dateLayout)
}

func snapshot(p *UserProgress) UserProgress {
	out := *p
	out.Achievements = slices.Clone(p.Achievements)
	out.DailyChallenges = slices.Clone(p.DailyChallenges)
	return out
}
