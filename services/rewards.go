package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"snapQuestAPI/internal/badge"
	"snapQuestAPI/internal/notification"
	"snapQuestAPI/internal/profile"
)

// Rewards runs the follow-ups of a committed credit: badge sync, cache
// invalidation and streak milestone pushes. None of them can undo the credit,
// so failures are logged and the caller still succeeds.
type Rewards struct {
	badges      *BadgeService
	leaderboard *LeaderboardService
	notifier    Notifier
	logger      *zap.Logger
}

func NewRewards(badges *BadgeService, leaderboard *LeaderboardService, notifier Notifier, logger *zap.Logger) *Rewards {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Rewards{badges: badges, leaderboard: leaderboard, notifier: notifier, logger: logger}
}

func (r *Rewards) afterCredit(ctx context.Context, userID uuid.UUID, streakBefore int, p *profile.Profile) []*badge.Badge {
	if r.leaderboard != nil {
		r.leaderboard.Invalidate(ctx)
	}

	if p != nil {
		if m := notification.CrossedMilestone(streakBefore, p.Streak); m > 0 {
			r.notifier.Notify(notification.StreakMilestone(userID, m))
		}
	}

	awarded := []*badge.Badge{}
	if r.badges == nil {
		return awarded
	}
	newBadges, err := r.badges.SyncBadges(ctx, userID)
	if err != nil {
		r.logger.Warn("Rewards: badge sync failed, will catch up on next sync",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
	}
	return append(awarded, newBadges...)
}
