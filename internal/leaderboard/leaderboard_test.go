package leaderboard

import (
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"snapQuestAPI/internal/profile"
)

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, ClampLimit(0))
	assert.Equal(t, DefaultLimit, ClampLimit(-3))
	assert.Equal(t, 5, ClampLimit(5))
	assert.Equal(t, MaxLimit, ClampLimit(5000))
}

func TestRankFromAbove(t *testing.T) {
	assert.Equal(t, 1, RankFromAbove(0))
	assert.Equal(t, 4, RankFromAbove(3))
	assert.Equal(t, 1, RankFromAbove(-1))
}

func TestLess_TieBreak(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	early := &profile.Profile{ID: uuid.New(), Username: "early", XP: 100, CreatedAt: base}
	late := &profile.Profile{ID: uuid.New(), Username: "late", XP: 100, CreatedAt: base.Add(time.Hour)}
	rich := &profile.Profile{ID: uuid.New(), Username: "rich", XP: 300, CreatedAt: base.Add(2 * time.Hour)}

	profiles := []*profile.Profile{late, early, rich}
	sort.Slice(profiles, func(i, j int) bool { return Less(profiles[i], profiles[j]) })

	entries := Page(profiles)
	assert.Equal(t, "rich", entries[0].Username)
	assert.Equal(t, "early", entries[1].Username)
	assert.Equal(t, "late", entries[2].Username)
	for i, e := range entries {
		assert.Equal(t, i+1, e.Position)
	}
}
