package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"snapQuestAPI/internal/apperror"
	"snapQuestAPI/internal/calendar"
	"snapQuestAPI/internal/leaderboard"
	"snapQuestAPI/internal/profile"
	"snapQuestAPI/internal/repository"
)

// ProgressionService is the ledger: XP, level and streak, plus the profile
// lifecycle driven by the Clerk webhook.
type ProgressionService struct {
	store  repository.Store
	cal    *calendar.Calendar
	logger *zap.Logger
}

func NewProgressionService(store repository.Store, cal *calendar.Calendar, logger *zap.Logger) *ProgressionService {
	return &ProgressionService{store: store, cal: cal, logger: logger}
}

// AddXP atomically credits amount XP. amount must be positive.
func (s *ProgressionService) AddXP(ctx context.Context, userID uuid.UUID, amount int) (*profile.Profile, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("xp amount must be positive, got %d: %w", amount, apperror.ErrInvalidInput)
	}

	p, err := s.store.AddXP(ctx, userID, amount)
	if err != nil {
		s.logger.Error("AddXP: failed to credit xp",
			zap.String("user_id", userID.String()),
			zap.Int("amount", amount),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to add xp: %w", err)
	}
	xpCredited.WithLabelValues("manual").Add(float64(amount))
	return p, nil
}

// UpdateStreak records one activity today in the reference calendar.
func (s *ProgressionService) UpdateStreak(ctx context.Context, userID uuid.UUID) (*repository.StreakOutcome, error) {
	out, err := s.store.AdvanceStreak(ctx, userID, s.cal.Today())
	if err != nil {
		s.logger.Error("UpdateStreak: failed to advance streak",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to update streak: %w", err)
	}
	return out, nil
}

func (s *ProgressionService) CreateProfile(ctx context.Context, req *profile.CreateProfileRequest) (*profile.Profile, error) {
	p, err := s.store.UpsertProfile(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	s.logger.Info("CreateProfile: profile ready", zap.String("clerk_id", p.ClerkID), zap.String("user_id", p.ID.String()))
	return p, nil
}

func (s *ProgressionService) UpdateProfileByClerkID(ctx context.Context, clerkID string, req *profile.UpdateProfileRequest) (*profile.Profile, error) {
	p, err := s.store.UpdateProfileByClerkID(ctx, clerkID, req)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return p, nil
}

func (s *ProgressionService) DeleteProfileByClerkID(ctx context.Context, clerkID string) error {
	if err := s.store.DeleteProfileByClerkID(ctx, clerkID); err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	s.logger.Info("DeleteProfileByClerkID: profile deleted", zap.String("clerk_id", clerkID))
	return nil
}

func (s *ProgressionService) GetProfileByClerkID(ctx context.Context, clerkID string) (*profile.Profile, error) {
	p, err := s.store.GetProfileByClerkID(ctx, clerkID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// ResolveUserID maps the authenticated Clerk subject to the profile id.
func (s *ProgressionService) ResolveUserID(ctx context.Context, clerkID string) (uuid.UUID, error) {
	if clerkID == "" {
		return uuid.Nil, apperror.ErrUnauthorized
	}
	p, err := s.store.GetProfileByClerkID(ctx, clerkID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	return p.ID, nil
}

// Stats collects the profile screen summary.
func (s *ProgressionService) Stats(ctx context.Context, userID uuid.UUID) (*profile.Stats, error) {
	p, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	above, err := s.store.CountProfilesAbove(ctx, p.XP)
	if err != nil {
		return nil, err
	}
	total, err := s.store.CountProfiles(ctx)
	if err != nil {
		return nil, err
	}
	metrics, err := s.store.GetBadgeMetrics(ctx, userID)
	if err != nil {
		return nil, err
	}
	owned, err := s.store.ListUserBadges(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &profile.Stats{
		Profile:     p,
		Rank:        leaderboard.RankFromAbove(above),
		TotalUsers:  total,
		PhotoCount:  metrics.PhotoCount,
		BadgeCount:  len(owned),
		NextLevelXP: p.NextLevelXP(),
	}, nil
}
