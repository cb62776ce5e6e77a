package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"snapQuestAPI/internal/challenge"
	"snapQuestAPI/internal/repository"
	"snapQuestAPI/services"
)

type ChallengeHandler struct {
	challenges *services.ChallengeService
	logger     *zap.Logger
}

func NewChallengeHandler(challenges *services.ChallengeService, logger *zap.Logger) *ChallengeHandler {
	return &ChallengeHandler{challenges: challenges, logger: logger}
}

// GET /api/v1/challenges/daily
func (h *ChallengeHandler) GetDaily(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, err := h.challenges.Daily(ctx)
	if err != nil {
		respondWithAppError(w, h.logger, "GetDaily", err)
		return
	}
	respondWithJSON(w, http.StatusOK, c)
}

// GET /api/v1/challenges?category=&difficulty=&limit=&offset=
func (h *ChallengeHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q := r.URL.Query()
	list, err := h.challenges.List(ctx, repository.ChallengeFilter{
		Category:   q.Get("category"),
		Difficulty: challenge.Difficulty(q.Get("difficulty")),
		Limit:      queryInt(r, "limit", 0),
		Offset:     queryInt(r, "offset", 0),
	})
	if err != nil {
		respondWithAppError(w, h.logger, "ListChallenges", err)
		return
	}
	respondWithJSON(w, http.StatusOK, list)
}

// GET /api/v1/challenges/{id}
func (h *ChallengeHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id, err := pathUUID(r, "id")
	if err != nil {
		respondWithAppError(w, h.logger, "GetChallenge", err)
		return
	}
	c, err := h.challenges.Get(ctx, id)
	if err != nil {
		respondWithAppError(w, h.logger, "GetChallenge", err)
		return
	}
	respondWithJSON(w, http.StatusOK, c)
}
