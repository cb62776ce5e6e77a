package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"snapQuestAPI/internal/notification"
	"snapQuestAPI/services"
)

type NotificationHandler struct {
	users               userResolver
	notificationService *services.NotificationService
	logger              *zap.Logger
}

func NewNotificationHandler(users userResolver, notificationService *services.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{users: users, notificationService: notificationService, logger: logger}
}

// POST /api/v1/notifications/register-device
func (h *NotificationHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, err := currentUserID(ctx, h.users)
	if err != nil {
		respondWithAppError(w, h.logger, "RegisterDevice", err)
		return
	}

	var req notification.RegisterDeviceRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, h.logger, "RegisterDevice", err)
		return
	}

	if err := h.notificationService.RegisterDevice(ctx, userID, &req); err != nil {
		respondWithAppError(w, h.logger, "RegisterDevice", err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Device registered successfully"})
}
