// Package repository declares the storage contracts the services run on.
// Every mutation that touches a profile's XP or streak is applied atomically
// by the implementation, never read-modify-written by callers.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"snapQuestAPI/internal/badge"
	"snapQuestAPI/internal/challenge"
	"snapQuestAPI/internal/photo"
	"snapQuestAPI/internal/profile"
	"snapQuestAPI/internal/quest"
)

type ProfileRepository interface {
	// UpsertProfile creates the profile for req.ClerkID or refreshes its
	// identity fields. Progression fields are never touched.
	UpsertProfile(ctx context.Context, req *profile.CreateProfileRequest) (*profile.Profile, error)
	UpdateProfileByClerkID(ctx context.Context, clerkID string, req *profile.UpdateProfileRequest) (*profile.Profile, error)
	DeleteProfileByClerkID(ctx context.Context, clerkID string) error
	GetProfile(ctx context.Context, id uuid.UUID) (*profile.Profile, error)
	GetProfileByClerkID(ctx context.Context, clerkID string) (*profile.Profile, error)

	// AddXP atomically increments xp by amount and raises level to match.
	AddXP(ctx context.Context, id uuid.UUID, amount int) (*profile.Profile, error)
	// AdvanceStreak atomically applies one activity on today.
	AdvanceStreak(ctx context.Context, id uuid.UUID, today time.Time) (*StreakOutcome, error)
}

type StreakOutcome struct {
	Profile      *profile.Profile
	StreakBefore int
}

// Advanced reports whether the activity moved the streak counter forward.
func (o *StreakOutcome) Advanced() bool {
	return o.Profile.Streak > o.StreakBefore
}

type ChallengeRepository interface {
	GetChallenge(ctx context.Context, id uuid.UUID) (*challenge.Challenge, error)
	ListDailyChallenges(ctx context.Context) ([]*challenge.Challenge, error)
	ListChallenges(ctx context.Context, filter ChallengeFilter) ([]*challenge.Challenge, error)
	// UpsertChallenge is keyed by title and used by the seeder.
	UpsertChallenge(ctx context.Context, c *challenge.Challenge) (*challenge.Challenge, error)
}

type ChallengeFilter struct {
	Category   string
	Difficulty challenge.Difficulty
	Limit      int
	Offset     int
}

// NewSubmission is a photo being recorded. For a challenge target the
// photo, the completion row, the XP increment and the streak advance commit
// together. A challenge credits once per user per calendar day (Today); a
// second submission for it on the same day is stored with zero XP.
type NewSubmission struct {
	Photo    *photo.Photo
	XPReward int
	Today    time.Time
}

type SubmissionOutcome struct {
	Photo    *photo.Photo
	Profile  *profile.Profile
	Credited bool
	// StreakBefore is the streak prior to this submission.
	StreakBefore int
}

type PhotoRepository interface {
	RecordSubmission(ctx context.Context, s NewSubmission) (*SubmissionOutcome, error)
	GetPhoto(ctx context.Context, id uuid.UUID) (*photo.Photo, error)
	ListUserPhotos(ctx context.Context, userID uuid.UUID, limit int) ([]*photo.Photo, error)
	// LikePhoto and UnlikePhoto are idempotent and keep likes_count in step
	// with the like rows.
	LikePhoto(ctx context.Context, userID, photoID uuid.UUID) (*photo.LikeResult, error)
	UnlikePhoto(ctx context.Context, userID, photoID uuid.UUID) (*photo.LikeResult, error)
}

// TaskCompletion is one quest task being completed, optionally with the
// photo that proves it.
type TaskCompletion struct {
	UserID     uuid.UUID
	QuestID    uuid.UUID
	TaskID     uuid.UUID
	XPReward   int
	TotalTasks int
	Photo      *photo.Photo
	Today      time.Time
	Now        time.Time
}

type TaskOutcome struct {
	Progress *quest.Progress
	Profile  *profile.Profile
	Photo    *photo.Photo
	// Credited is false when the task was already recorded.
	Credited       bool
	QuestCompleted bool
	StreakBefore   int
}

type QuestRepository interface {
	GetQuest(ctx context.Context, id uuid.UUID) (*quest.Quest, error)
	GetTask(ctx context.Context, taskID uuid.UUID) (*quest.Task, error)
	GetProgress(ctx context.Context, userID, questID uuid.UUID) (*quest.Progress, error)
	// StartQuest creates the progress record if absent and returns it.
	StartQuest(ctx context.Context, userID, questID uuid.UUID, now time.Time) (*quest.Progress, bool, error)
	// CompleteTask records the task, its XP and the streak as one unit.
	CompleteTask(ctx context.Context, c TaskCompletion) (*TaskOutcome, error)
	UpsertQuest(ctx context.Context, q *quest.Quest) (*quest.Quest, error)
}

type BadgeRepository interface {
	ListBadges(ctx context.Context) ([]*badge.Badge, error)
	ListUserBadges(ctx context.Context, userID uuid.UUID) ([]*badge.UserBadge, error)
	// AwardBadge inserts the pair if absent and reports whether it did.
	AwardBadge(ctx context.Context, userID, badgeID uuid.UUID, at time.Time) (bool, error)
	GetBadgeMetrics(ctx context.Context, userID uuid.UUID) (badge.Metrics, error)
	UpsertBadge(ctx context.Context, b *badge.Badge) (*badge.Badge, error)
}

type LeaderboardRepository interface {
	// TopProfiles orders by xp desc, created_at asc, id asc.
	TopProfiles(ctx context.Context, limit int) ([]*profile.Profile, error)
	CountProfilesAbove(ctx context.Context, xp int) (int, error)
	CountProfiles(ctx context.Context) (int, error)
}

type DeviceToken struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

type DeviceRepository interface {
	RegisterDevice(ctx context.Context, userID uuid.UUID, token DeviceToken) error
	ListDeviceTokens(ctx context.Context, userID uuid.UUID) ([]DeviceToken, error)
	RemoveDeviceToken(ctx context.Context, token string) error
}

// Store bundles every repository one backend provides.
type Store interface {
	ProfileRepository
	ChallengeRepository
	PhotoRepository
	QuestRepository
	BadgeRepository
	LeaderboardRepository
	DeviceRepository
	Ping(ctx context.Context) error
}
