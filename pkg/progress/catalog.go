package progress

// Achievement ids referenced by engine operations.
const (
	achReader        = "reader"
	achAvidReader    = "avid_reader"
	achBookworm      = "bookworm"
	achDedicated     = "dedicated"
	achCommitted     = "committed"
	achLoyal         = "loyal"
	achFirstStep     = "first_step"
	achCurator       = "curator"
	achCollector     = "collector"
	achMasterCurator = "master_curator"
)

// readAchievements, streakAchievements and subscriptionAchievements group
// the catalog ladders advanced by each counter.
var (
	readAchievements         = []string{achReader, achAvidReader, achBookworm}
	streakAchievements       = []string{achDedicated, achCommitted, achLoyal}
	subscriptionAchievements = []string{achFirstStep, achCurator, achCollector, achMasterCurator}
)

// defaultAchievements returns the fixed achievement catalog at zero progress.
// The catalog is never added to or removed from at runtime.
func defaultAchievements() []Achievement {
	return []Achievement{
		{ID: achFirstStep, Name: "First Step", Description: "Add your first subscription", Icon: "footprints", Rarity: RarityCommon, Target: 1},
		{ID: achCurator, Name: "Curator", Description: "Follow 5 sources", Icon: "library", Rarity: RarityRare, Target: 5},
		{ID: achCollector, Name: "Collector", Description: "Follow 15 sources", Icon: "archive", Rarity: RarityEpic, Target: 15},
		{ID: achMasterCurator, Name: "Master Curator", Description: "Follow 30 sources", Icon: "crown", Rarity: RarityLegendary, Target: 30},
		{ID: achReader, Name: "Reader", Description: "Read 10 items", Icon: "book-open", Rarity: RarityCommon, Target: 10},
		{ID: achAvidReader, Name: "Avid Reader", Description: "Read 50 items", Icon: "book-marked", Rarity: RarityRare, Target: 50},
		{ID: achBookworm, Name: "Bookworm", Description: "Read 200 items", Icon: "glasses", Rarity: RarityEpic, Target: 200},
		{ID: achDedicated, Name: "Dedicated", Description: "Keep a 3-day streak", Icon: "flame", Rarity: RarityCommon, Target: 3},
		{ID: achCommitted, Name: "Committed", Description: "Keep a 7-day streak", Icon: "calendar-check", Rarity: RarityRare, Target: 7},
		{ID: achLoyal, Name: "Loyal", Description: "Keep a 30-day streak", Icon: "medal", Rarity: RarityEpic, Target: 30},
	}
}

// challengeTemplate is a daily challenge blueprint.
type challengeTemplate struct {
	ID          string
	Title       string
	Description string
	Icon        string
	Target      int
	XPReward    int
	ContentType ContentType
}

// Template pools per challenge type. Generation picks one template from each
// pool uniformly at random, so content types stay balanced across days.
var (
	readTemplates = []challengeTemplate{
		{ID: "read_3_articles", Title: "Morning Digest", Description: "Read 3 articles", Icon: "newspaper", Target: 3, XPReward: 30, ContentType: ContentNews},
		{ID: "read_5_articles", Title: "Deep Dive", Description: "Read 5 articles", Icon: "scroll", Target: 5, XPReward: 50, ContentType: ContentNews},
		{ID: "read_anything_4", Title: "Curious Mind", Description: "Open 4 items of any kind", Icon: "sparkles", Target: 4, XPReward: 40, ContentType: ContentAny},
	}
	watchTemplates = []challengeTemplate{
		{ID: "watch_2_videos", Title: "Screen Time", Description: "Watch 2 videos", Icon: "play", Target: 2, XPReward: 30, ContentType: ContentVideos},
		{ID: "watch_4_videos", Title: "Binge Mode", Description: "Watch 4 videos", Icon: "clapperboard", Target: 4, XPReward: 50, ContentType: ContentVideos},
		{ID: "watch_1_video", Title: "Quick Watch", Description: "Watch a video", Icon: "monitor-play", Target: 1, XPReward: 15, ContentType: ContentVideos},
	}
	exploreTemplates = []challengeTemplate{
		{ID: "explore_new_site", Title: "New Horizons", Description: "Add a new site subscription", Icon: "compass", Target: 1, XPReward: 40, ContentType: ContentNews},
		{ID: "explore_new_channel", Title: "Channel Surfer", Description: "Add a new channel", Icon: "antenna", Target: 1, XPReward: 40, ContentType: ContentVideos},
		{ID: "explore_any_source", Title: "Explorer", Description: "Add any new source", Icon: "map", Target: 1, XPReward: 35, ContentType: ContentAny},
	}
)

func (t challengeTemplate) challenge(typ ChallengeType) DailyChallenge {
	return DailyChallenge{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Icon:        t.Icon,
		Target:      t.Target,
		XPReward:    t.XPReward,
		Type:        typ,
		ContentType: t.ContentType,
	}
}
