package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"snapQuestAPI/internal/apperror"
	"snapQuestAPI/internal/calendar"
	"snapQuestAPI/internal/challenge"
	"snapQuestAPI/internal/repository"
)

type ChallengeService struct {
	challenges repository.ChallengeRepository
	cal        *calendar.Calendar
	logger     *zap.Logger
}

func NewChallengeService(challenges repository.ChallengeRepository, cal *calendar.Calendar, logger *zap.Logger) *ChallengeService {
	return &ChallengeService{challenges: challenges, cal: cal, logger: logger}
}

// Daily returns the prompt shared by everyone today.
func (s *ChallengeService) Daily(ctx context.Context) (*challenge.Challenge, error) {
	return s.DailyFor(ctx, s.cal.Today())
}

func (s *ChallengeService) DailyFor(ctx context.Context, day time.Time) (*challenge.Challenge, error) {
	dailies, err := s.challenges.ListDailyChallenges(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily challenges: %w", err)
	}
	c := challenge.PickDaily(dailies, day)
	if c == nil {
		return nil, fmt.Errorf("no daily challenges configured: %w", apperror.ErrNotFound)
	}
	return c, nil
}

func (s *ChallengeService) Get(ctx context.Context, id uuid.UUID) (*challenge.Challenge, error) {
	c, err := s.challenges.GetChallenge(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}
	return c, nil
}

func (s *ChallengeService) List(ctx context.Context, filter repository.ChallengeFilter) ([]*challenge.Challenge, error) {
	if filter.Difficulty != "" && !filter.Difficulty.Valid() {
		return nil, fmt.Errorf("invalid difficulty %q: %w", filter.Difficulty, apperror.ErrInvalidInput)
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	out, err := s.challenges.ListChallenges(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	return out, nil
}
