package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"snapQuestAPI/internal/apperror"
	"snapQuestAPI/middleware"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// userResolver maps the authenticated Clerk subject to a profile id.
type userResolver interface {
	ResolveUserID(ctx context.Context, clerkID string) (uuid.UUID, error)
}

func currentUserID(ctx context.Context, users userResolver) (uuid.UUID, error) {
	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		return uuid.Nil, apperror.ErrUnauthorized
	}
	return users.ResolveUserID(ctx, clerkID)
}

// decodeJSON decodes the body into dst and runs its validate tags.
func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", apperror.ErrInvalidInput)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("field %s failed %s: %w", verrs[0].Field(), verrs[0].Tag(), apperror.ErrInvalidInput)
		}
		return fmt.Errorf("%v: %w", err, apperror.ErrInvalidInput)
	}
	return nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s: %w", name, apperror.ErrInvalidInput)
	}
	return id, nil
}

func queryInt(r *http.Request, name string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return fallback
	}
	return v
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Error marshaling JSON"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithAppError maps err to its status. Server errors are logged and
// their detail is withheld from the client.
func respondWithAppError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	code := apperror.StatusCode(err)
	if code >= http.StatusInternalServerError {
		logger.Error(op+": request failed", zap.Error(err))
	}
	respondWithError(w, code, apperror.PublicMessage(err))
}
