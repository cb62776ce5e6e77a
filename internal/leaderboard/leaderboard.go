package leaderboard

import (
	"github.com/google/uuid"

	"snapQuestAPI/internal/profile"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type LeaderboardEntry struct {
	Position    int       `json:"position"`
	UserID      uuid.UUID `json:"userId"`
	Username    string    `json:"username"`
	DisplayName *string   `json:"displayName,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	XP          int       `json:"xp"`
	Level       int       `json:"level"`
	Streak      int       `json:"streak"`
}

type Leaderboard struct {
	Entries      []*LeaderboardEntry `json:"entries"`
	UserPosition *Standing           `json:"userPosition,omitempty"`
}

// Standing is one user's place in the global ordering.
type Standing struct {
	UserID     uuid.UUID `json:"userId"`
	Rank       int       `json:"rank"`
	XP         int       `json:"xp"`
	TotalUsers int       `json:"totalUsers"`
}

// RankFromAbove is 1 + the number of users with strictly more XP. Users
// with equal XP share a rank.
func RankFromAbove(above int) int {
	if above < 0 {
		above = 0
	}
	return above + 1
}

// ClampLimit bounds a requested page size.
func ClampLimit(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}

// Page annotates profiles, already sorted, with their 1-based position in
// the returned page.
func Page(profiles []*profile.Profile) []*LeaderboardEntry {
	entries := make([]*LeaderboardEntry, 0, len(profiles))
	for i, p := range profiles {
		entries = append(entries, &LeaderboardEntry{
			Position:    i + 1,
			UserID:      p.ID,
			Username:    p.Username,
			DisplayName: p.DisplayName,
			ImageURL:    p.ImageURL,
			XP:          p.XP,
			Level:       p.Level,
			Streak:      p.Streak,
		})
	}
	return entries
}

// Less is the deterministic ordering used for top pages: more XP first,
// then the earlier account, then id.
func Less(a, b *profile.Profile) bool {
	if a.XP != b.XP {
		return a.XP > b.XP
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID.String() < b.ID.String()
}
