package badge

import (
	"math"
	"time"

	"github.com/google/uuid"
)

type RequirementType string

const (
	RequirementStreak      RequirementType = "streak"
	RequirementPhotos      RequirementType = "photos"
	RequirementLikes       RequirementType = "likes"
	RequirementTopPhotos   RequirementType = "top_photos"
	RequirementThemeRepeat RequirementType = "theme_repeat"
)

func (r RequirementType) Valid() bool {
	switch r {
	case RequirementStreak, RequirementPhotos, RequirementLikes, RequirementTopPhotos, RequirementThemeRepeat:
		return true
	}
	return false
}

// TopPhotoLikes is how many likes make a photo count as a top photo.
const TopPhotoLikes = 10

type Badge struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	Slug             string          `json:"slug" db:"slug"`
	Name             string          `json:"name" db:"name"`
	Description      string          `json:"description" db:"description"`
	RequirementType  RequirementType `json:"requirementType" db:"requirement_type"`
	RequirementValue int             `json:"requirementValue" db:"requirement_value"`
	Icon             Icon            `json:"icon" db:"icon"`
	Color            Color           `json:"color" db:"color"`
	CreatedAt        time.Time       `json:"createdAt" db:"created_at"`
}

type UserBadge struct {
	UserID   uuid.UUID `json:"userId" db:"user_id"`
	BadgeID  uuid.UUID `json:"badgeId" db:"badge_id"`
	EarnedAt time.Time `json:"earnedAt" db:"earned_at"`
}

// Metrics are the historical aggregates badge requirements are measured on.
type Metrics struct {
	PhotoCount     int `json:"photoCount"`
	LikesReceived  int `json:"likesReceived"`
	TopPhotos      int `json:"topPhotos"`
	LongestStreak  int `json:"longestStreak"`
	MaxThemeRepeat int `json:"maxThemeRepeat"`
}

// Value returns the metric a requirement type is measured on.
func (m Metrics) Value(r RequirementType) int {
	switch r {
	case RequirementStreak:
		return m.LongestStreak
	case RequirementPhotos:
		return m.PhotoCount
	case RequirementLikes:
		return m.LikesReceived
	case RequirementTopPhotos:
		return m.TopPhotos
	case RequirementThemeRepeat:
		return m.MaxThemeRepeat
	}
	return 0
}

// Qualifies reports whether m meets the badge threshold.
func (b *Badge) Qualifies(m Metrics) bool {
	return m.Value(b.RequirementType) >= b.RequirementValue
}

// Progress is min(100, round(metric/requirement*100)).
func Progress(metric, requirement int) int {
	if requirement <= 0 {
		return 100
	}
	if metric <= 0 {
		return 0
	}
	pct := int(math.Round(float64(metric) / float64(requirement) * 100))
	if pct > 100 {
		return 100
	}
	return pct
}

// WithStatus is a catalog entry as seen by one user.
type WithStatus struct {
	Badge
	Presentation Presentation `json:"presentation"`
	Earned       bool         `json:"earned"`
	EarnedAt     *time.Time   `json:"earnedAt,omitempty"`
	Progress     int          `json:"progress"`
}

// NewlyEarned returns the badges in catalog that m qualifies for and that
// are not in owned. Owned badges are never re-evaluated.
func NewlyEarned(catalog []*Badge, owned map[uuid.UUID]bool, m Metrics) []*Badge {
	var out []*Badge
	for _, b := range catalog {
		if owned[b.ID] {
			continue
		}
		if b.Qualifies(m) {
			out = append(out, b)
		}
	}
	return out
}
