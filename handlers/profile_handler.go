package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"snapQuestAPI/internal/apperror"
	"snapQuestAPI/internal/profile"
	"snapQuestAPI/middleware"
	"snapQuestAPI/services"
)

type ProfileHandler struct {
	progression *services.ProgressionService
	logger      *zap.Logger
}

func NewProfileHandler(progression *services.ProgressionService, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{progression: progression, logger: logger}
}

func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	p, err := h.progression.GetProfileByClerkID(ctx, clerkID)
	if err != nil {
		respondWithAppError(w, h.logger, "GetProfile", err)
		return
	}

	respondWithJSON(w, http.StatusOK, p)
}

func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req profile.UpdateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, h.logger, "UpdateProfile", err)
		return
	}

	p, err := h.progression.UpdateProfileByClerkID(ctx, clerkID, &req)
	if err != nil {
		respondWithAppError(w, h.logger, "UpdateProfile", err)
		return
	}

	respondWithJSON(w, http.StatusOK, p)
}

func (h *ProfileHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, err := currentUserID(ctx, h.progression)
	if err != nil {
		respondWithAppError(w, h.logger, "GetStats", err)
		return
	}

	stats, err := h.progression.Stats(ctx, userID)
	if err != nil {
		respondWithAppError(w, h.logger, "GetStats", err)
		return
	}

	respondWithJSON(w, http.StatusOK, stats)
}

// GetCurrentUserID returns the caller's profile id.
func (h *ProfileHandler) GetCurrentUserID(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, err := currentUserID(ctx, h.progression)
	if err != nil {
		if apperror.StatusCode(err) == http.StatusNotFound {
			// the webhook has not provisioned this account yet
			respondWithError(w, http.StatusNotFound, "Profile not provisioned yet")
			return
		}
		respondWithAppError(w, h.logger, "GetCurrentUserID", err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"userId": userID.String()})
}
