// Package dashboard aggregates a user's emotional history into the summary
// shown on the dashboard page: statistics, chart data, crisis alerts, the
// mood-journal streak, and progress since the last crisis.
package dashboard

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mindmate-app/mindmate/pkg/store"
)

// Risk tier labels for crisis alerts.
const (
	TierCritical = "Critical"
	TierHigh     = "High"
	TierModerate = "Moderate"
)

// maxCrisisAlerts bounds how many recent crisis events the summary carries.
const maxCrisisAlerts = 5

// progressGoalDays is the days-since-crisis span that fills the progress bar.
const progressGoalDays = 30

// affirmations is the fixed pool a daily affirmation is drawn from.
var affirmations = []string{
	"You are doing your best, and that is enough.",
	"You are strong, capable, and resilient.",
	"Your feelings are valid, and you matter.",
	"This too shall pass.",
	"You deserve compassion, especially from yourself.",
	"Every day is a new opportunity.",
	"Progress, not perfection.",
}

// Stats summarizes the user's emotion log history.
type Stats struct {
	// TotalEntries is the all-time emotion log count.
	TotalEntries int `json:"total_entries"`

	// MostCommonEmotion is the modal emotion type, or "-" with no data.
	MostCommonEmotion string `json:"most_common_emotion"`

	// ThisWeek is the number of emotion logs in the last 7 days.
	ThisWeek int `json:"this_week"`
}

// CrisisAlert is one recent crisis event with its display tier.
type CrisisAlert struct {
	RiskScore float64   `json:"risk_score"`
	Tier      string    `json:"tier"`
	CreatedAt time.Time `json:"created_at"`
}

// Streak describes the user's consecutive-day mood journal streak.
type Streak struct {
	Days    int    `json:"days"`
	Message string `json:"message"`
}

// Progress describes time elapsed since the user's last crisis event.
type Progress struct {
	// DaysSinceCrisis is negative when no crisis has ever been logged.
	DaysSinceCrisis int `json:"days_since_crisis"`

	// Percent is the progress bar fill in [0, 100], reaching 100 after
	// 30 crisis-free days.
	Percent float64 `json:"percent"`

	Message string `json:"message"`
}

// Summary is the full dashboard payload for one user.
type Summary struct {
	Greeting            string         `json:"greeting"`
	Affirmation         string         `json:"affirmation"`
	Stats               Stats          `json:"stats"`
	EmotionCounts       map[string]int `json:"emotion_counts"`
	WeeklyEmotionCounts map[string]int `json:"weekly_emotion_counts"`
	CrisisAlerts        []CrisisAlert  `json:"crisis_alerts"`
	Streak              Streak         `json:"streak"`
	Progress            Progress       `json:"progress"`
}

// Service loads dashboard summaries. The clock and affirmation selector are
// injectable for deterministic tests.
type Service struct {
	emotions store.EmotionStore
	crises   store.CrisisStore
	moods    store.MoodStore

	now  func() time.Time
	pick func(n int) int
}

// ServiceOption configures a [Service].
type ServiceOption func(*Service)

// WithClock replaces the service clock.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPickFunc replaces the random affirmation selector.
func WithPickFunc(pick func(n int) int) ServiceOption {
	return func(s *Service) {
		if pick != nil {
			s.pick = pick
		}
	}
}

// NewService creates a dashboard [Service] over the given stores.
func NewService(st store.Store, opts ...ServiceOption) *Service {
	s := &Service{
		emotions: st,
		crises:   st,
		moods:    st,
		now:      time.Now,
		pick:     rand.IntN,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load assembles the dashboard summary for userID. The independent store
// reads run concurrently; they populate disjoint parts of the summary, so no
// ordering is required between them. displayName personalizes the greeting
// and may be empty.
func (s *Service) Load(ctx context.Context, userID, displayName string) (*Summary, error) {
	var (
		emotions  []store.EmotionLog
		crises    []store.CrisisLog
		moodTimes []time.Time
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		emotions, err = s.emotions.ListEmotionLogs(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		crises, err = s.crises.ListCrisisLogs(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		moodTimes, err = s.moods.ListMoodEntryTimes(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("dashboard: load summary: %w", err)
	}

	now := s.now()
	weekAgo := now.AddDate(0, 0, -7)

	sum := &Summary{
		Greeting:            s.greeting(displayName),
		Affirmation:         affirmations[s.pick(len(affirmations))],
		Stats:               buildStats(emotions, weekAgo),
		EmotionCounts:       countEmotions(emotions, time.Time{}),
		WeeklyEmotionCounts: countEmotions(emotions, weekAgo),
		CrisisAlerts:        buildAlerts(crises),
		Streak:              buildStreak(moodTimes, now),
		Progress:            buildProgress(crises, now),
	}
	return sum, nil
}

// greeting builds the hour-appropriate salutation.
func (s *Service) greeting(name string) string {
	if name == "" {
		name = "Friend"
	}
	hour := s.now().Hour()
	var part string
	switch {
	case hour < 12:
		part = "Good morning"
	case hour < 17:
		part = "Good afternoon"
	default:
		part = "Good evening"
	}
	return fmt.Sprintf("%s, %s 👋", part, name)
}

// buildStats computes totals, the modal emotion, and the this-week count.
func buildStats(emotions []store.EmotionLog, weekAgo time.Time) Stats {
	st := Stats{
		TotalEntries:      len(emotions),
		MostCommonEmotion: "-",
	}

	counts := countEmotions(emotions, time.Time{})
	best := 0
	for emotion, n := range counts {
		if n > best || (n == best && emotion < st.MostCommonEmotion) {
			best = n
			st.MostCommonEmotion = emotion
		}
	}

	for _, e := range emotions {
		if e.CreatedAt.After(weekAgo) {
			st.ThisWeek++
		}
	}
	return st
}

// countEmotions tallies emotion types logged after since. A zero since counts
// everything. The result is never nil.
func countEmotions(emotions []store.EmotionLog, since time.Time) map[string]int {
	counts := map[string]int{}
	for _, e := range emotions {
		if e.Emotion == "" {
			continue
		}
		if !since.IsZero() && !e.CreatedAt.After(since) {
			continue
		}
		counts[e.Emotion]++
	}
	return counts
}

// buildAlerts converts the most recent crisis logs into display alerts.
func buildAlerts(crises []store.CrisisLog) []CrisisAlert {
	alerts := []CrisisAlert{}
	for _, c := range crises {
		if len(alerts) == maxCrisisAlerts {
			break
		}
		alerts = append(alerts, CrisisAlert{
			RiskScore: c.RiskScore,
			Tier:      RiskTier(c.RiskScore),
			CreatedAt: c.CreatedAt,
		})
	}
	return alerts
}

// RiskTier maps a risk score to its display tier.
func RiskTier(score float64) string {
	switch {
	case score >= 0.9:
		return TierCritical
	case score >= 0.7:
		return TierHigh
	default:
		return TierModerate
	}
}

// buildStreak counts consecutive days with at least one mood entry, ending
// today.
func buildStreak(moodTimes []time.Time, now time.Time) Streak {
	days := map[time.Time]bool{}
	for _, t := range moodTimes {
		t = t.In(now.Location())
		days[time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location())] = true
	}

	streak := 0
	check := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for days[check] {
		streak++
		check = check.AddDate(0, 0, -1)
	}

	msg := "Log your mood to start!"
	switch {
	case streak >= 7:
		msg = "🎉 One week streak!"
	case streak >= 3:
		msg = "💪 Great start!"
	case streak >= 1:
		msg = "✨ Keep it up!"
	}
	return Streak{Days: streak, Message: msg}
}

// buildProgress computes the days-since-crisis tracker. Crisis logs arrive
// newest first.
func buildProgress(crises []store.CrisisLog, now time.Time) Progress {
	if len(crises) == 0 {
		return Progress{
			DaysSinceCrisis: -1,
			Percent:         100,
			Message:         "✨ No crisis alerts!",
		}
	}

	last := crises[0].CreatedAt
	days := int(math.Ceil(now.Sub(last).Abs().Hours() / 24))
	percent := math.Min(float64(days)/progressGoalDays*100, 100)
	return Progress{
		DaysSinceCrisis: days,
		Percent:         percent,
		Message:         "You're making great progress!",
	}
}
