package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"snapQuestAPI/internal/calendar"
)

func TestLevelForXP(t *testing.T) {
	tests := []struct {
		xp   int
		want int
	}{
		{-5, 1},
		{0, 1},
		{99, 1},
		{100, 2},
		{249, 2},
		{250, 3},
		{10999, 9},
		{11000, 10},
		{14999, 10},
		{15000, 11},
		{23000, 13},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelForXP(tt.xp), "xp=%d", tt.xp)
	}
}

func TestLevelForXP_Monotonic(t *testing.T) {
	prev := LevelForXP(0)
	for xp := 0; xp <= 40000; xp += 7 {
		level := LevelForXP(xp)
		assert.GreaterOrEqual(t, level, prev, "xp=%d", xp)
		assert.GreaterOrEqual(t, level, 1)
		prev = level
	}
}

func TestXPForLevel_RoundTrips(t *testing.T) {
	for level := 1; level <= 20; level++ {
		assert.Equal(t, level, LevelForXP(XPForLevel(level)), "level=%d", level)
		if level > 1 {
			assert.Equal(t, level-1, LevelForXP(XPForLevel(level)-1), "level=%d", level)
		}
	}
}

func TestAdvanceStreak(t *testing.T) {
	day := calendar.Date(2026, 10, 16)
	ptr := func(t time.Time) *time.Time { return &t }

	tests := []struct {
		name        string
		profile     Profile
		today       time.Time
		wantStreak  int
		wantLongest int
		wantChanged bool
	}{
		{
			name:        "first ever activity",
			profile:     Profile{},
			today:       day,
			wantStreak:  1,
			wantLongest: 1,
			wantChanged: true,
		},
		{
			name:        "same day is a no-op",
			profile:     Profile{Streak: 3, LongestStreak: 5, LastActivityDate: ptr(day)},
			today:       day,
			wantStreak:  3,
			wantLongest: 5,
		},
		{
			name:        "next day extends",
			profile:     Profile{Streak: 3, LongestStreak: 5, LastActivityDate: ptr(day.AddDate(0, 0, -1))},
			today:       day,
			wantStreak:  4,
			wantLongest: 5,
			wantChanged: true,
		},
		{
			name:        "next day raises longest",
			profile:     Profile{Streak: 5, LongestStreak: 5, LastActivityDate: ptr(day.AddDate(0, 0, -1))},
			today:       day,
			wantStreak:  6,
			wantLongest: 6,
			wantChanged: true,
		},
		{
			name:        "gap resets",
			profile:     Profile{Streak: 9, LongestStreak: 12, LastActivityDate: ptr(day.AddDate(0, 0, -2))},
			today:       day,
			wantStreak:  1,
			wantLongest: 12,
			wantChanged: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.profile
			changed := p.AdvanceStreak(tt.today)

			assert.Equal(t, tt.wantChanged, changed)
			assert.Equal(t, tt.wantStreak, p.Streak)
			assert.Equal(t, tt.wantLongest, p.LongestStreak)
			assert.GreaterOrEqual(t, p.LongestStreak, p.Streak)
			if assert.NotNil(t, p.LastActivityDate) {
				assert.Equal(t, tt.today, *p.LastActivityDate)
			}
		})
	}
}

func TestAdvanceStreak_TwiceSameDay(t *testing.T) {
	p := Profile{}
	day := calendar.Date(2026, 1, 1)

	p.AdvanceStreak(day)
	p.AdvanceStreak(day)

	assert.Equal(t, 1, p.Streak)
}

func TestAdvanceStreak_LastActivityNeverMovesBack(t *testing.T) {
	later := calendar.Date(2026, 10, 17)
	p := Profile{Streak: 2, LongestStreak: 2, LastActivityDate: &later}

	changed := p.AdvanceStreak(calendar.Date(2026, 10, 16))
	assert.False(t, changed)
	assert.Equal(t, 2, p.Streak)
	assert.Equal(t, later, *p.LastActivityDate)

	// the later day was already counted, so it must not extend again
	p.AdvanceStreak(later)
	assert.Equal(t, 2, p.Streak)

	p.AdvanceStreak(calendar.Date(2026, 10, 18))
	assert.Equal(t, 3, p.Streak)
}

func TestApplyXP_LevelNeverDrops(t *testing.T) {
	p := Profile{XP: 0, Level: 4}
	p.ApplyXP(50)

	assert.Equal(t, 50, p.XP)
	assert.Equal(t, 4, p.Level)

	p.ApplyXP(2000)
	assert.Equal(t, 6, p.Level)
}

func TestName(t *testing.T) {
	display := "Ana"
	assert.Equal(t, "ana_snaps", (&Profile{Username: "ana_snaps"}).Name())
	assert.Equal(t, "Ana", (&Profile{Username: "ana_snaps", DisplayName: &display}).Name())
}
