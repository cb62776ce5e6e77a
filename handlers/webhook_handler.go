package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"snapQuestAPI/internal/apperror"
	"snapQuestAPI/internal/profile"
)

const (
	maxWebhookBody = int64(1 << 16)
	// svix rejects deliveries older than this to stop replays
	webhookTolerance = 5 * time.Minute
)

type profileProvisioner interface {
	CreateProfile(ctx context.Context, req *profile.CreateProfileRequest) (*profile.Profile, error)
	UpdateProfileByClerkID(ctx context.Context, clerkID string, req *profile.UpdateProfileRequest) (*profile.Profile, error)
	DeleteProfileByClerkID(ctx context.Context, clerkID string) error
}

type WebhookHandler struct {
	profiles profileProvisioner
	secret   []byte
	clock    clockwork.Clock
	logger   *zap.Logger
}

type clerkWebhookEvent struct {
	Type   string          `json:"type"`
	Object string          `json:"object"`
	Data   json.RawMessage `json:"data"`
}

type clerkUserData struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	ImageURL        string `json:"image_url"`
	ProfileImageURL string `json:"profile_image_url"`
}

// NewWebhookHandler verifies deliveries with secret, the "whsec_..." value
// from the Clerk dashboard. An empty secret disables verification, which is
// only meant for local development.
func NewWebhookHandler(profiles profileProvisioner, secret string, clock clockwork.Clock, logger *zap.Logger) (*WebhookHandler, error) {
	h := &WebhookHandler{profiles: profiles, clock: clock, logger: logger}
	if h.clock == nil {
		h.clock = clockwork.NewRealClock()
	}
	if secret == "" {
		logger.Warn("CLERK_WEBHOOK_SECRET not set, webhook signatures will not be verified")
		return h, nil
	}
	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, "whsec_"))
	if err != nil {
		return nil, fmt.Errorf("invalid webhook secret: %w", err)
	}
	h.secret = key
	return h, nil
}

func (h *WebhookHandler) HandleClerkWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Warn("Webhook: failed to read body", zap.Error(err))
		respondWithError(w, http.StatusBadRequest, "Error reading body")
		return
	}

	if err := h.verify(r.Header, body); err != nil {
		h.logger.Warn("Webhook: invalid signature", zap.Error(err))
		respondWithError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	var event clerkWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		respondWithError(w, http.StatusBadRequest, "Error parsing webhook")
		return
	}

	h.logger.Info("Webhook: received event", zap.String("type", event.Type))

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	switch event.Type {
	case "user.created":
		err = h.handleUserCreated(ctx, event.Data)
	case "user.updated":
		err = h.handleUserUpdated(ctx, event.Data)
	case "user.deleted":
		err = h.handleUserDeleted(ctx, event.Data)
	default:
		h.logger.Debug("Webhook: unhandled event type", zap.String("type", event.Type))
	}
	if err != nil {
		h.logger.Error("Webhook: failed to process event", zap.String("type", event.Type), zap.Error(err))
		respondWithError(w, apperror.StatusCode(err), "Error processing webhook")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *WebhookHandler) handleUserCreated(ctx context.Context, data json.RawMessage) error {
	u, err := parseUser(data)
	if err != nil {
		return err
	}
	p, err := h.profiles.CreateProfile(ctx, u.createRequest())
	if err != nil {
		return err
	}
	h.logger.Info("Webhook: profile provisioned", zap.String("clerk_id", p.ClerkID), zap.String("user_id", p.ID.String()))
	return nil
}

// handleUserUpdated also provisions the profile if user.created was missed.
func (h *WebhookHandler) handleUserUpdated(ctx context.Context, data json.RawMessage) error {
	u, err := parseUser(data)
	if err != nil {
		return err
	}
	_, err = h.profiles.UpdateProfileByClerkID(ctx, u.ID, &profile.UpdateProfileRequest{
		Username:    u.username(),
		DisplayName: u.displayName(),
		ImageURL:    u.imageURL(),
	})
	if errors.Is(err, apperror.ErrNotFound) {
		_, err = h.profiles.CreateProfile(ctx, u.createRequest())
	}
	return err
}

func (h *WebhookHandler) handleUserDeleted(ctx context.Context, data json.RawMessage) error {
	u, err := parseUser(data)
	if err != nil {
		return err
	}
	err = h.profiles.DeleteProfileByClerkID(ctx, u.ID)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil
	}
	return err
}

func parseUser(data json.RawMessage) (*clerkUserData, error) {
	var u clerkUserData
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user data: %w", apperror.ErrInvalidInput)
	}
	if u.ID == "" {
		return nil, fmt.Errorf("user id missing: %w", apperror.ErrInvalidInput)
	}
	return &u, nil
}

func (u *clerkUserData) username() string {
	if u.Username != "" {
		return u.Username
	}
	if name := strings.TrimSpace(u.FirstName + u.LastName); name != "" {
		return name
	}
	return u.ID
}

func (u *clerkUserData) displayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u *clerkUserData) imageURL() string {
	if u.ImageURL != "" {
		return u.ImageURL
	}
	return u.ProfileImageURL
}

func (u *clerkUserData) createRequest() *profile.CreateProfileRequest {
	return &profile.CreateProfileRequest{
		ClerkID:     u.ID,
		Username:    u.username(),
		DisplayName: u.displayName(),
		ImageURL:    u.imageURL(),
	}
}

// verify checks the svix headers: the signature is base64(HMAC-SHA256(key,
// "id.timestamp.body")) and svix-signature may carry several "v1,<sig>"
// entries separated by spaces.
func (h *WebhookHandler) verify(header http.Header, body []byte) error {
	if h.secret == nil {
		return nil
	}

	id := header.Get("svix-id")
	ts := header.Get("svix-timestamp")
	sigs := header.Get("svix-signature")
	if id == "" || ts == "" || sigs == "" {
		return errors.New("missing signature headers")
	}

	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("bad timestamp %q", ts)
	}
	age := h.clock.Since(time.Unix(sec, 0))
	if age > webhookTolerance || age < -webhookTolerance {
		return fmt.Errorf("timestamp outside tolerance: %s", age)
	}

	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(id + "." + ts + "."))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	for _, entry := range strings.Fields(sigs) {
		version, sig, ok := strings.Cut(entry, ",")
		if !ok || version != "v1" {
			continue
		}
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return errors.New("no matching signature")
}
