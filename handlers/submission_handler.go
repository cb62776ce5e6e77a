package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"snapQuestAPI/internal/apperror"
	"snapQuestAPI/internal/photo"
	"snapQuestAPI/internal/scorer"
	"snapQuestAPI/services"
)

// multipart overhead allowed on top of the photo itself
const formOverhead = 1 << 20

type SubmissionHandler struct {
	users       userResolver
	submissions *services.SubmissionService
	logger      *zap.Logger
}

func NewSubmissionHandler(users userResolver, submissions *services.SubmissionService, logger *zap.Logger) *SubmissionHandler {
	return &SubmissionHandler{users: users, submissions: submissions, logger: logger}
}

// POST /api/v1/submissions (multipart: photo, target_type, target_id, force)
func (h *SubmissionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	userID, err := currentUserID(ctx, h.users)
	if err != nil {
		respondWithAppError(w, h.logger, "Submit", err)
		return
	}

	img, err := readPhoto(w, r)
	if err != nil {
		respondWithAppError(w, h.logger, "Submit", err)
		return
	}

	target, err := photo.ParseTarget(r.FormValue("target_type"), r.FormValue("target_id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	force, _ := strconv.ParseBool(r.FormValue("force"))

	res, err := h.submissions.Submit(ctx, services.SubmissionRequest{
		UserID: userID,
		Target: target,
		Image:  img,
		Force:  force,
	})
	if err != nil {
		respondWithAppError(w, h.logger, "Submit", err)
		return
	}

	code := http.StatusCreated
	if !res.Accepted {
		code = http.StatusOK
	}
	respondWithJSON(w, code, res)
}

// POST /api/v1/submissions/verify (multipart: photo, challenge_id)
func (h *SubmissionHandler) Verify(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	if _, err := currentUserID(ctx, h.users); err != nil {
		respondWithAppError(w, h.logger, "VerifyPhoto", err)
		return
	}

	img, err := readPhoto(w, r)
	if err != nil {
		respondWithAppError(w, h.logger, "VerifyPhoto", err)
		return
	}
	challengeID, err := uuid.Parse(r.FormValue("challenge_id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "challenge_id is required")
		return
	}

	res, err := h.submissions.VerifyOnly(ctx, challengeID, img)
	if err != nil {
		respondWithAppError(w, h.logger, "VerifyPhoto", err)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

// readPhoto parses the multipart form and returns the "photo" part. The
// content type is sniffed from the bytes, not taken from the client.
func readPhoto(w http.ResponseWriter, r *http.Request) (scorer.Image, error) {
	r.Body = http.MaxBytesReader(w, r.Body, services.MaxPhotoBytes+formOverhead)
	if err := r.ParseMultipartForm(services.MaxPhotoBytes + formOverhead); err != nil {
		return scorer.Image{}, fmt.Errorf("invalid multipart form: %w", apperror.ErrInvalidInput)
	}

	file, _, err := r.FormFile("photo")
	if err != nil {
		return scorer.Image{}, fmt.Errorf("photo is required: %w", apperror.ErrInvalidInput)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return scorer.Image{}, fmt.Errorf("failed to read photo: %w", apperror.ErrInvalidInput)
	}
	return scorer.Image{Data: data, ContentType: http.DetectContentType(data)}, nil
}
