package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"snapQuestAPI/internal/photo"
	"snapQuestAPI/internal/repository"
)

type PhotoService struct {
	photos repository.PhotoRepository
	badges *BadgeService
	logger *zap.Logger
}

func NewPhotoService(photos repository.PhotoRepository, badges *BadgeService, logger *zap.Logger) *PhotoService {
	return &PhotoService{photos: photos, badges: badges, logger: logger}
}

func (s *PhotoService) ListUserPhotos(ctx context.Context, userID uuid.UUID, limit int) ([]*photo.Photo, error) {
	out, err := s.photos.ListUserPhotos(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	if out == nil {
		out = []*photo.Photo{}
	}
	return out, nil
}

// Like is idempotent. The photo owner's like badges are synced afterwards.
func (s *PhotoService) Like(ctx context.Context, userID, photoID uuid.UUID) (*photo.LikeResult, error) {
	res, err := s.photos.LikePhoto(ctx, userID, photoID)
	if err != nil {
		return nil, fmt.Errorf("failed to like photo: %w", err)
	}
	s.syncOwner(ctx, photoID)
	return res, nil
}

// Unlike is idempotent. Badges already earned are kept.
func (s *PhotoService) Unlike(ctx context.Context, userID, photoID uuid.UUID) (*photo.LikeResult, error) {
	res, err := s.photos.UnlikePhoto(ctx, userID, photoID)
	if err != nil {
		return nil, fmt.Errorf("failed to unlike photo: %w", err)
	}
	return res, nil
}

func (s *PhotoService) syncOwner(ctx context.Context, photoID uuid.UUID) {
	if s.badges == nil {
		return
	}
	ph, err := s.photos.GetPhoto(ctx, photoID)
	if err != nil {
		s.logger.Warn("Like: failed to load photo for badge sync", zap.Error(err))
		return
	}
	if _, err := s.badges.SyncBadges(ctx, ph.UserID); err != nil {
		s.logger.Warn("Like: owner badge sync failed", zap.String("user_id", ph.UserID.String()), zap.Error(err))
	}
}
