package challenge

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"snapQuestAPI/internal/calendar"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

type Challenge struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description,omitempty" db:"description"`
	Category    string     `json:"category" db:"category"`
	Difficulty  Difficulty `json:"difficulty" db:"difficulty"`
	XPReward    int        `json:"xpReward" db:"xp_reward"`
	DayNumber   int        `json:"dayNumber" db:"day_number"`
	IsDaily     bool       `json:"isDaily" db:"is_daily"`
	CreatedBy   *uuid.UUID `json:"createdBy,omitempty" db:"created_by"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
}

// Text is the free text keyword extraction runs over.
func (c *Challenge) Text() string {
	if c.Description == "" {
		return c.Title
	}
	return c.Title + " " + c.Description
}

func (c *Challenge) Validate() error {
	if c.Title == "" {
		return fmt.Errorf("challenge title is required")
	}
	if !c.Difficulty.Valid() {
		return fmt.Errorf("invalid difficulty %q", c.Difficulty)
	}
	if c.XPReward <= 0 {
		return fmt.Errorf("xp reward must be positive, got %d", c.XPReward)
	}
	return nil
}

// Epoch is day zero of the daily rotation.
var Epoch = calendar.Date(2024, time.January, 1)

// DayIndex returns the 1-based position in a rotation of count prompts for
// the calendar date today.
func DayIndex(today time.Time, count int) int {
	if count <= 0 {
		return 0
	}
	days := calendar.DaysBetween(Epoch, today)
	idx := days % count
	if idx < 0 {
		idx += count
	}
	return idx + 1
}

// PickDaily selects the shared prompt for today out of the daily challenges.
// The rotation is ordered by day_number so gaps in numbering are tolerated.
func PickDaily(dailies []*Challenge, today time.Time) *Challenge {
	if len(dailies) == 0 {
		return nil
	}
	sorted := make([]*Challenge, len(dailies))
	copy(sorted, dailies)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].DayNumber < sorted[j].DayNumber
	})
	return sorted[DayIndex(today, len(sorted))-1]
}
