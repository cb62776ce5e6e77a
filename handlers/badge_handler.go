package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"snapQuestAPI/internal/badge"
	"snapQuestAPI/services"
)

type BadgeHandler struct {
	users  userResolver
	badges *services.BadgeService
	logger *zap.Logger
}

func NewBadgeHandler(users userResolver, badges *services.BadgeService, logger *zap.Logger) *BadgeHandler {
	return &BadgeHandler{users: users, badges: badges, logger: logger}
}

// GET /api/v1/badges
func (h *BadgeHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, err := currentUserID(ctx, h.users)
	if err != nil {
		respondWithAppError(w, h.logger, "ListBadges", err)
		return
	}
	list, err := h.badges.ListBadges(ctx, userID)
	if err != nil {
		respondWithAppError(w, h.logger, "ListBadges", err)
		return
	}
	respondWithJSON(w, http.StatusOK, list)
}

// POST /api/v1/badges/sync
func (h *BadgeHandler) Sync(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID, err := currentUserID(ctx, h.users)
	if err != nil {
		respondWithAppError(w, h.logger, "SyncBadges", err)
		return
	}
	awarded, err := h.badges.SyncBadges(ctx, userID)
	if err != nil {
		respondWithAppError(w, h.logger, "SyncBadges", err)
		return
	}
	if awarded == nil {
		awarded = []*badge.Badge{}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"newBadges": awarded})
}
