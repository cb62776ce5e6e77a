package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"snapQuestAPI/services"
)

type QuestHandler struct {
	users  userResolver
	quests *services.QuestService
	logger *zap.Logger
}

func NewQuestHandler(users userResolver, quests *services.QuestService, logger *zap.Logger) *QuestHandler {
	return &QuestHandler{users: users, quests: quests, logger: logger}
}

// GET /api/v1/quests/{id}
func (h *QuestHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	questID, err := pathUUID(r, "id")
	if err != nil {
		respondWithAppError(w, h.logger, "GetQuest", err)
		return
	}
	q, err := h.quests.Get(ctx, questID)
	if err != nil {
		respondWithAppError(w, h.logger, "GetQuest", err)
		return
	}
	respondWithJSON(w, http.StatusOK, q)
}

// GET /api/v1/quests/{id}/progress
func (h *QuestHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, err := currentUserID(ctx, h.users)
	if err != nil {
		respondWithAppError(w, h.logger, "GetQuestProgress", err)
		return
	}
	questID, err := pathUUID(r, "id")
	if err != nil {
		respondWithAppError(w, h.logger, "GetQuestProgress", err)
		return
	}

	v, err := h.quests.GetProgress(ctx, userID, questID)
	if err != nil {
		respondWithAppError(w, h.logger, "GetQuestProgress", err)
		return
	}
	respondWithJSON(w, http.StatusOK, v)
}

// POST /api/v1/quests/{id}/start
func (h *QuestHandler) Start(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, err := currentUserID(ctx, h.users)
	if err != nil {
		respondWithAppError(w, h.logger, "StartQuest", err)
		return
	}
	questID, err := pathUUID(r, "id")
	if err != nil {
		respondWithAppError(w, h.logger, "StartQuest", err)
		return
	}

	v, err := h.quests.Start(ctx, userID, questID)
	if err != nil {
		respondWithAppError(w, h.logger, "StartQuest", err)
		return
	}
	respondWithJSON(w, http.StatusOK, v)
}

// GET /api/v1/quests/{id}/invite
func (h *QuestHandler) Invite(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	questID, err := pathUUID(r, "id")
	if err != nil {
		respondWithAppError(w, h.logger, "QuestInvite", err)
		return
	}
	inv, err := h.quests.Invite(ctx, questID)
	if err != nil {
		respondWithAppError(w, h.logger, "QuestInvite", err)
		return
	}
	respondWithJSON(w, http.StatusOK, inv)
}
