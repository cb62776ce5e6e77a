package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"snapQuestAPI/internal/leaderboard"
	"snapQuestAPI/services"
)

type LeaderboardHandler struct {
	users       userResolver
	leaderboard *services.LeaderboardService
	logger      *zap.Logger
}

func NewLeaderboardHandler(users userResolver, lb *services.LeaderboardService, logger *zap.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{users: users, leaderboard: lb, logger: logger}
}

// GET /api/v1/leaderboard?limit=
func (h *LeaderboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, err := currentUserID(ctx, h.users)
	if err != nil {
		respondWithAppError(w, h.logger, "GetLeaderboard", err)
		return
	}
	lb, err := h.leaderboard.Get(ctx, userID, queryInt(r, "limit", leaderboard.DefaultLimit))
	if err != nil {
		respondWithAppError(w, h.logger, "GetLeaderboard", err)
		return
	}
	respondWithJSON(w, http.StatusOK, lb)
}

// GET /api/v1/leaderboard/me
func (h *LeaderboardHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, err := currentUserID(ctx, h.users)
	if err != nil {
		respondWithAppError(w, h.logger, "GetRank", err)
		return
	}
	standing, err := h.leaderboard.Rank(ctx, userID)
	if err != nil {
		respondWithAppError(w, h.logger, "GetRank", err)
		return
	}
	respondWithJSON(w, http.StatusOK, standing)
}
