package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"snapQuestAPI/services"
)

type PhotoHandler struct {
	users  userResolver
	photos *services.PhotoService
	logger *zap.Logger
}

func NewPhotoHandler(users userResolver, photos *services.PhotoService, logger *zap.Logger) *PhotoHandler {
	return &PhotoHandler{users: users, photos: photos, logger: logger}
}

// GET /api/v1/photos?limit=
func (h *PhotoHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, err := currentUserID(ctx, h.users)
	if err != nil {
		respondWithAppError(w, h.logger, "ListPhotos", err)
		return
	}
	photos, err := h.photos.ListUserPhotos(ctx, userID, queryInt(r, "limit", 50))
	if err != nil {
		respondWithAppError(w, h.logger, "ListPhotos", err)
		return
	}
	respondWithJSON(w, http.StatusOK, photos)
}

// POST /api/v1/photos/{id}/like
func (h *PhotoHandler) Like(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, true)
}

// DELETE /api/v1/photos/{id}/like
func (h *PhotoHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, false)
}

func (h *PhotoHandler) toggle(w http.ResponseWriter, r *http.Request, like bool) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, err := currentUserID(ctx, h.users)
	if err != nil {
		respondWithAppError(w, h.logger, "LikePhoto", err)
		return
	}
	photoID, err := pathUUID(r, "id")
	if err != nil {
		respondWithAppError(w, h.logger, "LikePhoto", err)
		return
	}

	if like {
		res, err := h.photos.Like(ctx, userID, photoID)
		if err != nil {
			respondWithAppError(w, h.logger, "LikePhoto", err)
			return
		}
		respondWithJSON(w, http.StatusOK, res)
		return
	}

	res, err := h.photos.Unlike(ctx, userID, photoID)
	if err != nil {
		respondWithAppError(w, h.logger, "UnlikePhoto", err)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}
