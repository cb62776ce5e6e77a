package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"snapQuestAPI/internal/notification"
	"snapQuestAPI/internal/repository"
)

type NotificationService struct {
	devices repository.DeviceRepository
	logger  *zap.Logger
}

func NewNotificationService(devices repository.DeviceRepository, logger *zap.Logger) *NotificationService {
	return &NotificationService{devices: devices, logger: logger}
}

// RegisterDevice stores a push token for the user. Registering a token that
// belongs to another user moves it.
func (s *NotificationService) RegisterDevice(ctx context.Context, userID uuid.UUID, req *notification.RegisterDeviceRequest) error {
	err := s.devices.RegisterDevice(ctx, userID, repository.DeviceToken{Token: req.Token, Platform: req.Platform})
	if err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	s.logger.Debug("RegisterDevice: token stored", zap.String("user_id", userID.String()), zap.String("platform", req.Platform))
	return nil
}
