package progress

import (
	"math"
	"time"
)

// Rarity is the achievement rarity tier.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// rarityXP is the one-time XP bonus awarded when an achievement unlocks.
var rarityXP = map[Rarity]int{
	RarityCommon:    25,
	RarityRare:      50,
	RarityEpic:      100,
	RarityLegendary: 250,
}

// ChallengeType classifies what kind of activity a daily challenge counts.
type ChallengeType string

const (
	ChallengeRead    ChallengeType = "read"
	ChallengeWatch   ChallengeType = "watch"
	ChallengeExplore ChallengeType = "explore"
	ChallengeStreak  ChallengeType = "streak"
)

// ContentType narrows a challenge to a content category.
type ContentType string

const (
	ContentNews   ContentType = "news"
	ContentVideos ContentType = "videos"
	ContentAny    ContentType = "any"
)

// Achievement is a catalog milestone joined with per-user progress.
// Progress is monotonically non-decreasing and capped at Target;
// UnlockedAt is set at most once and never cleared.
type Achievement struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Icon        string     `json:"icon"`
	Rarity      Rarity     `json:"rarity"`
	Target      int        `json:"target"`
	Progress    int        `json:"progress"`
	UnlockedAt  *time.Time `json:"unlocked_at,omitempty"`
}

// Unlocked reports whether the achievement has been unlocked.
func (a *Achievement) Unlocked() bool {
	return a.UnlockedAt != nil
}

// DailyChallenge is an ephemeral one-day goal. Completed is a one-way
// transition; the whole list is replaced at the next day rollover.
type DailyChallenge struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Icon        string        `json:"icon"`
	Target      int           `json:"target"`
	Progress    int           `json:"progress"`
	XPReward    int           `json:"xp_reward"`
	Completed   bool          `json:"completed"`
	Type        ChallengeType `json:"type"`
	ContentType ContentType   `json:"content_type"`
}

// UserProgress is the single per-installation progress document,
// persisted wholesale as JSON.
type UserProgress struct {
	TotalSubscriptions int              `json:"total_subscriptions"`
	TotalItemsRead     int              `json:"total_items_read"`
	CurrentStreak      int              `json:"current_streak"`
	LongestStreak      int              `json:"longest_streak"`
	LastActiveDate     string           `json:"last_active_date"`
	Level              int              `json:"level"`
	Experience         int              `json:"experience"`
	Achievements       []Achievement    `json:"achievements"`
	DailyChallenges    []DailyChallenge `json:"daily_challenges"`
	LastChallengeDate  string           `json:"last_challenge_date"`
	TotalTimeSpent     int              `json:"total_time_spent"` // minutes
}

// LevelForExperience computes the level derived from total experience.
// Level is never stored authoritatively; it is recomputed after every
// experience change and on every load.
func LevelForExperience(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return int(math.Floor(math.Sqrt(float64(xp)/100))) + 1
}

// CelebrationKind distinguishes celebration events.
type CelebrationKind string

const (
	CelebrationChallenge   CelebrationKind = "challenge_completed"
	CelebrationAchievement CelebrationKind = "achievement_unlocked"
)

// Celebration is a UI-facing event queued when a challenge completes or an
// achievement unlocks. All events are queued in completion order.
type Celebration struct {
	Kind     CelebrationKind `json:"kind"`
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	XPReward int             `json:"xp_reward"`
}

// dateLayout is the calendar-day format used for streak and challenge stamps.
const dateLayout = "2006-01-02"
