package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"snapQuestAPI/internal/badge"
	"snapQuestAPI/internal/calendar"
	"snapQuestAPI/internal/challenge"
	"snapQuestAPI/internal/keywords"
	"snapQuestAPI/internal/notification"
	"snapQuestAPI/internal/profile"
	"snapQuestAPI/internal/quest"
	"snapQuestAPI/internal/repository"
	"snapQuestAPI/internal/repository/memory"
	"snapQuestAPI/internal/scorer"
	"snapQuestAPI/internal/storage"
	"snapQuestAPI/internal/verification"
)

// fakeScorer scores labels from a fixed table; unknown labels get 0.01.
type fakeScorer struct {
	mu     sync.Mutex
	scores map[string]float64
	err    error
	block  bool
	calls  int
	labels []string
}

func (f *fakeScorer) Score(ctx context.Context, _ scorer.Image, labels []string) ([]verification.LabelScore, error) {
	f.mu.Lock()
	f.calls++
	f.labels = append([]string(nil), labels...)
	block, err := f.block, f.err
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	out := make([]verification.LabelScore, 0, len(labels))
	for _, l := range labels {
		s, ok := f.scores[l]
		if !ok {
			s = 0.01
		}
		out = append(out, verification.LabelScore{Label: l, Score: s})
	}
	return out, nil
}

type recordingNotifier struct {
	mu         sync.Mutex
	sent       []*notification.Notification
	broadcasts map[string][]*notification.Notification
}

func (r *recordingNotifier) Notify(n *notification.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func (r *recordingNotifier) Broadcast(topic string, n *notification.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.broadcasts == nil {
		r.broadcasts = map[string][]*notification.Notification{}
	}
	r.broadcasts[topic] = append(r.broadcasts[topic], n)
}

func (r *recordingNotifier) ofType(t notification.NotificationType) []*notification.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*notification.Notification
	for _, n := range r.sent {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

// testEnv wires every service on the in-memory store.
type testEnv struct {
	store    *memory.Store
	clock    *clockwork.FakeClock
	cal      *calendar.Calendar
	scorer   *fakeScorer
	blobs    *storage.Memory
	notifier *recordingNotifier

	progression *ProgressionService
	verifier    *VerificationService
	badges      *BadgeService
	leaderboard *LeaderboardService
	challenges  *ChallengeService
	quests      *QuestService
	submissions *SubmissionService
	photos      *PhotoService
}

// day1 is the fake clock's starting instant, mid-morning UTC.
var day1 = time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	clock := clockwork.NewFakeClockAt(day1)
	cal := calendar.New(time.UTC, clock)
	store := memory.New(clock)

	e := &testEnv{
		store:    store,
		clock:    clock,
		cal:      cal,
		scorer:   &fakeScorer{scores: map[string]float64{}},
		blobs:    storage.NewMemory("https://cdn.test"),
		notifier: &recordingNotifier{},
	}

	e.progression = NewProgressionService(store, cal, logger)
	e.verifier = NewVerificationService(e.scorer, keywords.MustNew(), 200*time.Millisecond, logger)
	e.badges = NewBadgeService(store, cal, e.notifier, logger)
	e.leaderboard = NewLeaderboardService(store, nil, logger)
	e.challenges = NewChallengeService(store, cal, logger)
	rewards := NewRewards(e.badges, e.leaderboard, e.notifier, logger)
	e.quests = NewQuestService(store, cal, rewards, e.notifier, logger)
	e.submissions = NewSubmissionService(SubmissionDeps{
		Store:    store,
		Quests:   e.quests,
		Verifier: e.verifier,
		Blobs:    e.blobs,
		Rewards:  rewards,
		Calendar: cal,
		Logger:   logger,
	})
	e.photos = NewPhotoService(store, e.badges, logger)
	return e
}

func (e *testEnv) newUser(t *testing.T, name string) *profile.Profile {
	t.Helper()
	p, err := e.progression.CreateProfile(context.Background(), &profile.CreateProfileRequest{
		ClerkID:  "user_" + name,
		Username: name,
	})
	require.NoError(t, err)
	return p
}

func (e *testEnv) addChallenge(t *testing.T, c *challenge.Challenge) *challenge.Challenge {
	t.Helper()
	if c.Difficulty == "" {
		c.Difficulty = challenge.DifficultyEasy
	}
	out, err := e.store.UpsertChallenge(context.Background(), c)
	require.NoError(t, err)
	return out
}

func dailyChallenge(title string, day int) *challenge.Challenge {
	return &challenge.Challenge{Title: title, XPReward: 50, IsDaily: true, DayNumber: day}
}

func (e *testEnv) addBadge(t *testing.T, slug string, req badge.RequirementType, value int) *badge.Badge {
	t.Helper()
	b, err := e.store.UpsertBadge(context.Background(), &badge.Badge{
		Slug:             slug,
		Name:             slug,
		RequirementType:  req,
		RequirementValue: value,
		Icon:             badge.IconStar,
		Color:            badge.ColorGold,
	})
	require.NoError(t, err)
	return b
}

func (e *testEnv) addQuest(t *testing.T, kind quest.Kind, rewards ...int) *quest.Quest {
	t.Helper()
	q := &quest.Quest{Kind: kind, Title: string(kind) + " " + uuid.NewString()}
	for i, xp := range rewards {
		q.Tasks = append(q.Tasks, &quest.Task{Title: "Un árbol " + string(rune('A'+i)), XPReward: xp})
	}
	out, err := e.store.UpsertQuest(context.Background(), q)
	require.NoError(t, err)
	return out
}

// nextDay moves the fake clock forward one calendar day.
func (e *testEnv) nextDay() {
	e.clock.Advance(24 * time.Hour)
}

func jpeg() scorer.Image {
	return scorer.Image{Data: []byte{0xff, 0xd8, 0xff, 0xe0, 1, 2, 3}, ContentType: "image/jpeg"}
}

var _ repository.Store = (*memory.Store)(nil)
