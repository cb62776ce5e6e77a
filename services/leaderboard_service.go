package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"snapQuestAPI/internal/leaderboard"
	"snapQuestAPI/internal/profile"
	"snapQuestAPI/internal/repository"
)

const (
	leaderboardCachePrefix = "leaderboard:top:"
	leaderboardCacheTTL    = 30 * time.Second
)

type leaderboardStore interface {
	repository.LeaderboardRepository
	GetProfile(ctx context.Context, id uuid.UUID) (*profile.Profile, error)
}

// LeaderboardService ranks users by XP. Top pages are cached in redis for a
// short TTL when a client is configured; a nil client reads straight through.
type LeaderboardService struct {
	store  leaderboardStore
	cache  *redis.Client
	logger *zap.Logger
}

func NewLeaderboardService(store leaderboardStore, cache *redis.Client, logger *zap.Logger) *LeaderboardService {
	return &LeaderboardService{store: store, cache: cache, logger: logger}
}

// Rank is 1 + the number of users with strictly more XP.
func (s *LeaderboardService) Rank(ctx context.Context, userID uuid.UUID) (*leaderboard.Standing, error) {
	p, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	above, err := s.store.CountProfilesAbove(ctx, p.XP)
	if err != nil {
		return nil, fmt.Errorf("failed to rank user: %w", err)
	}
	total, err := s.store.CountProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	return &leaderboard.Standing{
		UserID:     userID,
		Rank:       leaderboard.RankFromAbove(above),
		XP:         p.XP,
		TotalUsers: total,
	}, nil
}

// Top returns the n highest-XP users, each with its position in the page.
func (s *LeaderboardService) Top(ctx context.Context, n int) ([]*leaderboard.LeaderboardEntry, error) {
	n = leaderboard.ClampLimit(n)
	key := fmt.Sprintf("%s%d", leaderboardCachePrefix, n)

	if entries, ok := s.cached(ctx, key); ok {
		return entries, nil
	}

	profiles, err := s.store.TopProfiles(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch leaderboard: %w", err)
	}
	entries := leaderboard.Page(profiles)

	s.remember(ctx, key, entries)
	return entries, nil
}

// Get is the leaderboard screen: the top page plus the caller's standing.
func (s *LeaderboardService) Get(ctx context.Context, userID uuid.UUID, n int) (*leaderboard.Leaderboard, error) {
	entries, err := s.Top(ctx, n)
	if err != nil {
		return nil, err
	}
	out := &leaderboard.Leaderboard{Entries: entries}
	if userID != uuid.Nil {
		standing, err := s.Rank(ctx, userID)
		if err != nil {
			return nil, err
		}
		out.UserPosition = standing
	}
	return out, nil
}

// Invalidate drops every cached page. Called after XP changes.
func (s *LeaderboardService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	iter := s.cache.Scan(ctx, 0, leaderboardCachePrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		s.logger.Warn("Leaderboard: cache scan failed", zap.Error(err))
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := s.cache.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn("Leaderboard: cache invalidation failed", zap.Error(err))
	}
}

func (s *LeaderboardService) cached(ctx context.Context, key string) ([]*leaderboard.LeaderboardEntry, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("Leaderboard: cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var entries []*leaderboard.LeaderboardEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		s.logger.Warn("Leaderboard: corrupt cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return entries, true
}

func (s *LeaderboardService) remember(ctx context.Context, key string, entries []*leaderboard.LeaderboardEntry) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, leaderboardCacheTTL).Err(); err != nil {
		s.logger.Warn("Leaderboard: cache write failed", zap.String("key", key), zap.Error(err))
	}
}
