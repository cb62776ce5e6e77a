package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"snapQuestAPI/internal/apperror"
	"snapQuestAPI/internal/badge"
	"snapQuestAPI/internal/calendar"
	"snapQuestAPI/internal/notification"
	"snapQuestAPI/internal/repository"
)

type BadgeService struct {
	badges   repository.BadgeRepository
	cal      *calendar.Calendar
	notifier Notifier
	logger   *zap.Logger
}

func NewBadgeService(badges repository.BadgeRepository, cal *calendar.Calendar, notifier Notifier, logger *zap.Logger) *BadgeService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &BadgeService{badges: badges, cal: cal, notifier: notifier, logger: logger}
}

// SyncBadges awards every badge the user now qualifies for and returns the
// ones this call inserted. Earned badges are never revisited or revoked, and
// concurrent calls award each badge at most once.
func (s *BadgeService) SyncBadges(ctx context.Context, userID uuid.UUID) ([]*badge.Badge, error) {
	catalog, err := s.badges.ListBadges(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}
	owned, err := s.ownedSet(ctx, userID)
	if err != nil {
		return nil, err
	}
	metrics, err := s.badges.GetBadgeMetrics(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute badge metrics: %w", err)
	}

	var awarded []*badge.Badge
	for _, b := range badge.NewlyEarned(catalog, owned, metrics) {
		inserted, err := s.badges.AwardBadge(ctx, userID, b.ID, s.cal.Now())
		if err != nil {
			return awarded, fmt.Errorf("failed to award badge %s: %w", b.Slug, err)
		}
		if !inserted {
			// a concurrent sync got there first
			continue
		}
		awarded = append(awarded, b)
		badgesAwarded.WithLabelValues(string(b.RequirementType)).Inc()
		s.logger.Info("SyncBadges: badge awarded",
			zap.String("user_id", userID.String()),
			zap.String("badge", b.Slug),
		)
		s.notifier.Notify(notification.BadgeEarned(userID, b))
	}
	return awarded, nil
}

// ProgressTowards returns the display percentage toward badgeID.
func (s *BadgeService) ProgressTowards(ctx context.Context, userID, badgeID uuid.UUID) (int, error) {
	catalog, err := s.badges.ListBadges(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list badges: %w", err)
	}
	var target *badge.Badge
	for _, b := range catalog {
		if b.ID == badgeID {
			target = b
			break
		}
	}
	if target == nil {
		return 0, fmt.Errorf("badge %s: %w", badgeID, apperror.ErrNotFound)
	}

	metrics, err := s.badges.GetBadgeMetrics(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to compute badge metrics: %w", err)
	}
	return badge.Progress(metrics.Value(target.RequirementType), target.RequirementValue), nil
}

// ListBadges returns the catalog with the user's earned state and progress.
func (s *BadgeService) ListBadges(ctx context.Context, userID uuid.UUID) ([]*badge.WithStatus, error) {
	catalog, err := s.badges.ListBadges(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}
	owned, err := s.badges.ListUserBadges(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user badges: %w", err)
	}
	metrics, err := s.badges.GetBadgeMetrics(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute badge metrics: %w", err)
	}

	earnedAt := make(map[uuid.UUID]*badge.UserBadge, len(owned))
	for _, ub := range owned {
		earnedAt[ub.BadgeID] = ub
	}

	out := make([]*badge.WithStatus, 0, len(catalog))
	for _, b := range catalog {
		ws := &badge.WithStatus{
			Badge:        *b,
			Presentation: b.Presentation(),
			Progress:     badge.Progress(metrics.Value(b.RequirementType), b.RequirementValue),
		}
		if ub, ok := earnedAt[b.ID]; ok {
			at := ub.EarnedAt
			ws.Earned = true
			ws.EarnedAt = &at
			ws.Progress = 100
		}
		out = append(out, ws)
	}
	return out, nil
}

func (s *BadgeService) ownedSet(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]bool, error) {
	owned, err := s.badges.ListUserBadges(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user badges: %w", err)
	}
	set := make(map[uuid.UUID]bool, len(owned))
	for _, ub := range owned {
		set[ub.BadgeID] = true
	}
	return set, nil
}
