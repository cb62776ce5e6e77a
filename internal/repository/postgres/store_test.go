package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snapQuestAPI/internal/apperror"
	"snapQuestAPI/internal/badge"
	"snapQuestAPI/internal/calendar"
	"snapQuestAPI/internal/challenge"
	"snapQuestAPI/internal/photo"
	"snapQuestAPI/internal/profile"
	"snapQuestAPI/internal/quest"
	"snapQuestAPI/internal/repository"
)

// setupTestDB connects to TEST_DATABASE_URL and applies the schema. Tests
// are skipped when it is not set.
func setupTestDB(t *testing.T) (*Store, *pgxpool.Pool) {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := Connect(ctx, dbURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := New(pool)
	require.NoError(t, store.Migrate(ctx))
	return store, pool
}

func newTestProfile(t *testing.T, s *Store, pool *pgxpool.Pool) *profile.Profile {
	t.Helper()
	ctx := context.Background()
	clerkID := "test_" + uuid.NewString()
	p, err := s.UpsertProfile(ctx, &profile.CreateProfileRequest{ClerkID: clerkID, Username: "tester"})
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM profiles WHERE clerk_id = $1`, clerkID)
	})
	return p
}

func TestAddXP_ConcurrentSum(t *testing.T) {
	s, pool := setupTestDB(t)
	p := newTestProfile(t, s, pool)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(amount int) {
			defer wg.Done()
			_, err := s.AddXP(ctx, p.ID, amount)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := s.GetProfile(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 210, got.XP)
	assert.Equal(t, profile.LevelForXP(210), got.Level)
}

func TestAddXP_Rejects(t *testing.T) {
	s, pool := setupTestDB(t)
	p := newTestProfile(t, s, pool)

	_, err := s.AddXP(context.Background(), p.ID, -5)
	assert.True(t, errors.Is(err, apperror.ErrInvalidInput))

	_, err = s.AddXP(context.Background(), uuid.New(), 5)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

// The SQL streak rule must agree with profile.AdvanceStreak.
func TestAdvanceStreak_MatchesDomainRule(t *testing.T) {
	s, pool := setupTestDB(t)
	p := newTestProfile(t, s, pool)
	ctx := context.Background()

	days := []time.Time{
		calendar.Date(2026, 3, 1),
		calendar.Date(2026, 3, 1),
		calendar.Date(2026, 3, 2),
		calendar.Date(2026, 3, 3),
		calendar.Date(2026, 3, 6),
		calendar.Date(2026, 3, 7),
	}

	model := &profile.Profile{}
	for _, day := range days {
		model.AdvanceStreak(day)

		out, err := s.AdvanceStreak(ctx, p.ID, day)
		require.NoError(t, err)
		assert.Equal(t, model.Streak, out.Profile.Streak, "day %s", day.Format("2006-01-02"))
		assert.Equal(t, model.LongestStreak, out.Profile.LongestStreak)
		require.NotNil(t, out.Profile.LastActivityDate)
		assert.Equal(t, day, *out.Profile.LastActivityDate)
	}
}

func TestRecordSubmission_CreditsOnce(t *testing.T) {
	s, pool := setupTestDB(t)
	p := newTestProfile(t, s, pool)
	ctx := context.Background()

	c, err := s.UpsertChallenge(ctx, &challenge.Challenge{
		Title:      "Test challenge " + uuid.NewString(),
		Category:   "test",
		Difficulty: challenge.DifficultyEasy,
		XPReward:   50,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = pool.Exec(context.Background(), `DELETE FROM challenges WHERE id = $1`, c.ID) })

	today := calendar.Date(2026, 10, 16)
	var wg sync.WaitGroup
	results := make([]*repository.SubmissionOutcome, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := s.RecordSubmission(ctx, repository.NewSubmission{
				Photo:    &photo.Photo{UserID: p.ID, Target: photo.ChallengeTarget(c.ID), ImageURL: "https://cdn.test/x.jpg", VerificationStatus: "verified"},
				XPReward: c.XPReward,
				Today:    today,
			})
			assert.NoError(t, err)
			results[i] = out
		}(i)
	}
	wg.Wait()

	credited := 0
	for _, r := range results {
		if r != nil && r.Credited {
			credited++
		}
	}
	assert.Equal(t, 1, credited)

	got, err := s.GetProfile(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, got.XP)
	assert.Equal(t, 1, got.Streak)

	m, err := s.GetBadgeMetrics(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, m.PhotoCount)
	assert.Equal(t, 5, m.MaxThemeRepeat)
}

func TestRecordSubmission_CreditsAgainNextDay(t *testing.T) {
	s, pool := setupTestDB(t)
	p := newTestProfile(t, s, pool)
	ctx := context.Background()

	c, err := s.UpsertChallenge(ctx, &challenge.Challenge{
		Title:      "Daily " + uuid.NewString(),
		Category:   "test",
		Difficulty: challenge.DifficultyEasy,
		XPReward:   50,
		IsDaily:    true,
		DayNumber:  1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = pool.Exec(context.Background(), `DELETE FROM challenges WHERE id = $1`, c.ID) })

	for _, day := range []time.Time{calendar.Date(2026, 10, 16), calendar.Date(2026, 10, 17)} {
		out, err := s.RecordSubmission(ctx, repository.NewSubmission{
			Photo:    &photo.Photo{UserID: p.ID, Target: photo.ChallengeTarget(c.ID), ImageURL: "https://cdn.test/x.jpg", VerificationStatus: "verified"},
			XPReward: c.XPReward,
			Today:    day,
		})
		require.NoError(t, err)
		assert.True(t, out.Credited)
	}

	got, err := s.GetProfile(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, got.XP)
	assert.Equal(t, 2, got.Streak)
	assert.Equal(t, 2, got.LongestStreak)
}

func TestAdvanceStreak_KeepsLaterActivityDate(t *testing.T) {
	s, pool := setupTestDB(t)
	p := newTestProfile(t, s, pool)
	ctx := context.Background()

	later := calendar.Date(2026, 10, 17)
	_, err := s.AdvanceStreak(ctx, p.ID, later)
	require.NoError(t, err)

	out, err := s.AdvanceStreak(ctx, p.ID, calendar.Date(2026, 10, 16))
	require.NoError(t, err)
	assert.Equal(t, 1, out.Profile.Streak)
	require.NotNil(t, out.Profile.LastActivityDate)
	assert.Equal(t, later, *out.Profile.LastActivityDate)
}

func TestCompleteTask_Postgres(t *testing.T) {
	s, pool := setupTestDB(t)
	p := newTestProfile(t, s, pool)
	ctx := context.Background()

	q, err := s.UpsertQuest(ctx, &quest.Quest{
		Kind:  quest.KindHunt,
		Title: "Test hunt " + uuid.NewString(),
		Tasks: []*quest.Task{{Title: "one", XPReward: 10}, {Title: "two", XPReward: 15}},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = pool.Exec(context.Background(), `DELETE FROM quests WHERE id = $1`, q.ID) })
	require.Len(t, q.Tasks, 2)

	now := time.Now().UTC()
	complete := func(task *quest.Task) *repository.TaskOutcome {
		out, err := s.CompleteTask(ctx, repository.TaskCompletion{
			UserID: p.ID, QuestID: q.ID, TaskID: task.ID,
			XPReward: task.XPReward, TotalTasks: len(q.Tasks),
			Today: calendar.DateOf(now, time.UTC), Now: now,
		})
		require.NoError(t, err)
		return out
	}

	first := complete(q.Tasks[0])
	assert.True(t, first.Credited)
	assert.False(t, first.QuestCompleted)

	dup := complete(q.Tasks[0])
	assert.False(t, dup.Credited)

	last := complete(q.Tasks[1])
	assert.True(t, last.QuestCompleted)
	assert.Equal(t, 25, last.Progress.TotalXPEarned)
	assert.Equal(t, 25, last.Profile.XP)
	assert.Equal(t, quest.StateCompleted, quest.StateOf(last.Progress))
}

func TestAwardBadge_Postgres(t *testing.T) {
	s, pool := setupTestDB(t)
	p := newTestProfile(t, s, pool)
	ctx := context.Background()

	b, err := s.UpsertBadge(ctx, &badge.Badge{
		Slug: "test-" + uuid.NewString(), Name: "Test", RequirementType: badge.RequirementPhotos,
		RequirementValue: 1, Icon: badge.IconCamera, Color: badge.ColorBlue,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = pool.Exec(context.Background(), `DELETE FROM badges WHERE id = $1`, b.ID) })

	ok, err := s.AwardBadge(ctx, p.ID, b.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.AwardBadge(ctx, p.ID, b.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}
