package profile

import (
	"time"

	"github.com/google/uuid"
)

type Profile struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	ClerkID          string     `json:"clerkId" db:"clerk_id"`
	Username         string     `json:"username" db:"username"`
	DisplayName      *string    `json:"displayName,omitempty" db:"display_name"`
	ImageURL         string     `json:"imageUrl,omitempty" db:"image_url"`
	XP               int        `json:"xp" db:"xp"`
	Level            int        `json:"level" db:"level"`
	Streak           int        `json:"streak" db:"streak"`
	LongestStreak    int        `json:"longestStreak" db:"longest_streak"`
	LastActivityDate *time.Time `json:"lastActivityDate,omitempty" db:"last_activity_date"`
	CreatedAt        time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time  `json:"updatedAt" db:"updated_at"`
}

type CreateProfileRequest struct {
	ClerkID     string `json:"clerkId" validate:"required"`
	Username    string `json:"username" validate:"required,min=3,max=30"`
	DisplayName string `json:"displayName,omitempty" validate:"omitempty,max=60"`
	ImageURL    string `json:"imageUrl,omitempty" validate:"omitempty,url"`
}

type UpdateProfileRequest struct {
	Username    string `json:"username,omitempty" validate:"omitempty,min=3,max=30"`
	DisplayName string `json:"displayName,omitempty" validate:"omitempty,max=60"`
	ImageURL    string `json:"imageUrl,omitempty" validate:"omitempty,url"`
}

// Stats is the profile screen summary.
type Stats struct {
	Profile     *Profile `json:"profile"`
	Rank        int      `json:"rank"`
	TotalUsers  int      `json:"totalUsers"`
	PhotoCount  int      `json:"photoCount"`
	BadgeCount  int      `json:"badgeCount"`
	NextLevelXP int      `json:"nextLevelXp"`
}

// Name is what leaderboards and notifications display for the user.
func (p *Profile) Name() string {
	if p.DisplayName != nil && *p.DisplayName != "" {
		return *p.DisplayName
	}
	return p.Username
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	if p.DisplayName != nil {
		name := *p.DisplayName
		c.DisplayName = &name
	}
	if p.LastActivityDate != nil {
		d := *p.LastActivityDate
		c.LastActivityDate = &d
	}
	return &c
}
