package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"snapQuestAPI/internal/apperror"
	"snapQuestAPI/internal/calendar"
	"snapQuestAPI/internal/challenge"
	"snapQuestAPI/internal/keywords"
	"snapQuestAPI/internal/notification"
	"snapQuestAPI/internal/profile"
	"snapQuestAPI/internal/repository/memory"
	"snapQuestAPI/internal/scorer"
	"snapQuestAPI/internal/storage"
	"snapQuestAPI/middleware"
	"snapQuestAPI/services"
)

var now = time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

const webhookKey = "snapquest-webhook-test-key"

type nopNotifier struct{}

func (nopNotifier) Notify(*notification.Notification)            {}
func (nopNotifier) Broadcast(string, *notification.Notification) {}

type apiEnv struct {
	store       *memory.Store
	clock       *clockwork.FakeClock
	progression *services.ProgressionService
	router      *mux.Router
}

// newAPIEnv mounts every handler on a router without the auth middleware;
// requests carry the Clerk subject through asUser.
func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	logger := zap.NewNop()
	clock := clockwork.NewFakeClockAt(now)
	cal := calendar.New(time.UTC, clock)
	store := memory.New(clock)
	notifier := nopNotifier{}

	progression := services.NewProgressionService(store, cal, logger)
	verifier := services.NewVerificationService(scorer.Disabled{}, keywords.MustNew(), time.Second, logger)
	badges := services.NewBadgeService(store, cal, notifier, logger)
	lb := services.NewLeaderboardService(store, nil, logger)
	challenges := services.NewChallengeService(store, cal, logger)
	rewards := services.NewRewards(badges, lb, notifier, logger)
	quests := services.NewQuestService(store, cal, rewards, notifier, logger)
	submissions := services.NewSubmissionService(services.SubmissionDeps{
		Store:    store,
		Quests:   quests,
		Verifier: verifier,
		Blobs:    storage.NewMemory("https://cdn.test"),
		Rewards:  rewards,
		Calendar: cal,
		Logger:   logger,
	})
	photos := services.NewPhotoService(store, badges, logger)
	notifications := services.NewNotificationService(store, logger)

	webhook, err := NewWebhookHandler(progression, "whsec_"+base64.StdEncoding.EncodeToString([]byte(webhookKey)), clock, logger)
	require.NoError(t, err)

	r := mux.NewRouter()
	r.HandleFunc("/health", NewHealthHandler(store, logger).Health).Methods("GET")
	r.HandleFunc("/webhooks/clerk", webhook.HandleClerkWebhook).Methods("POST")

	api := r.PathPrefix("/api/v1").Subrouter()
	ph := NewProfileHandler(progression, logger)
	api.HandleFunc("/profile", ph.GetProfile).Methods("GET")
	api.HandleFunc("/profile", ph.UpdateProfile).Methods("PUT")
	api.HandleFunc("/profile/id", ph.GetCurrentUserID).Methods("GET")
	api.HandleFunc("/profile/stats", ph.GetStats).Methods("GET")

	ch := NewChallengeHandler(challenges, logger)
	api.HandleFunc("/challenges/daily", ch.GetDaily).Methods("GET")
	api.HandleFunc("/challenges/{id}", ch.Get).Methods("GET")

	sh := NewSubmissionHandler(progression, submissions, logger)
	api.HandleFunc("/submissions", sh.Submit).Methods("POST")

	pho := NewPhotoHandler(progression, photos, logger)
	api.HandleFunc("/photos/{id}/like", pho.Like).Methods("POST")

	lh := NewLeaderboardHandler(progression, lb, logger)
	api.HandleFunc("/leaderboard", lh.Get).Methods("GET")

	nh := NewNotificationHandler(progression, notifications, logger)
	api.HandleFunc("/notifications/register-device", nh.RegisterDevice).Methods("POST")

	return &apiEnv{store: store, clock: clock, progression: progression, router: r}
}

func (e *apiEnv) newUser(t *testing.T, name string) *profile.Profile {
	t.Helper()
	p, err := e.progression.CreateProfile(context.Background(), &profile.CreateProfileRequest{
		ClerkID:  "user_" + name,
		Username: name,
	})
	require.NoError(t, err)
	return p
}

func (e *apiEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func asUser(req *http.Request, clerkID string) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), middleware.ClerkIDKey, clerkID))
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), dst), rr.Body.String())
}

func signedWebhook(t *testing.T, body []byte, ts time.Time, key string) *http.Request {
	t.Helper()
	id := "msg_" + strconv.FormatInt(ts.UnixNano(), 36)
	stamp := strconv.FormatInt(ts.Unix(), 10)

	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(id + "." + stamp + "."))
	mac.Write(body)

	req := httptest.NewRequest("POST", "/webhooks/clerk", bytes.NewReader(body))
	req.Header.Set("svix-id", id)
	req.Header.Set("svix-timestamp", stamp)
	// svix sends one entry per active secret; only one has to match
	req.Header.Set("svix-signature", "v1,bm90LXRoaXMtb25l v1,"+base64.StdEncoding.EncodeToString(mac.Sum(nil)))
	return req
}

func clerkEvent(t *testing.T, typ string, data map[string]interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]interface{}{"type": typ, "object": "event", "data": data})
	require.NoError(t, err)
	return b
}

func TestWebhook_UserLifecycle(t *testing.T) {
	e := newAPIEnv(t)
	ctx := context.Background()

	created := clerkEvent(t, "user.created", map[string]interface{}{
		"id":         "user_clerk_1",
		"first_name": "Lucia",
		"last_name":  "Mar",
		"image_url":  "https://img.clerk.test/lucia.png",
	})
	rr := e.do(signedWebhook(t, created, now, webhookKey))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"success": true}`, rr.Body.String())

	p, err := e.progression.GetProfileByClerkID(ctx, "user_clerk_1")
	require.NoError(t, err)
	assert.Equal(t, "LuciaMar", p.Username)
	assert.Equal(t, "https://img.clerk.test/lucia.png", p.ImageURL)

	updated := clerkEvent(t, "user.updated", map[string]interface{}{
		"id":         "user_clerk_1",
		"username":   "lucia_m",
		"first_name": "Lucía",
		"last_name":  "Martín",
	})
	rr = e.do(signedWebhook(t, updated, now, webhookKey))
	require.Equal(t, http.StatusOK, rr.Code)
	p, err = e.progression.GetProfileByClerkID(ctx, "user_clerk_1")
	require.NoError(t, err)
	assert.Equal(t, "lucia_m", p.Username)
	require.NotNil(t, p.DisplayName)
	assert.Equal(t, "Lucía Martín", *p.DisplayName)

	deleted := clerkEvent(t, "user.deleted", map[string]interface{}{"id": "user_clerk_1"})
	rr = e.do(signedWebhook(t, deleted, now, webhookKey))
	require.Equal(t, http.StatusOK, rr.Code)
	_, err = e.progression.GetProfileByClerkID(ctx, "user_clerk_1")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	// clerk redelivers; a second delete is still a success
	rr = e.do(signedWebhook(t, deleted, now, webhookKey))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestWebhook_UpdateProvisionsMissingProfile(t *testing.T) {
	e := newAPIEnv(t)

	body := clerkEvent(t, "user.updated", map[string]interface{}{"id": "user_late", "username": "late_user"})
	rr := e.do(signedWebhook(t, body, now, webhookKey))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	p, err := e.progression.GetProfileByClerkID(context.Background(), "user_late")
	require.NoError(t, err)
	assert.Equal(t, "late_user", p.Username)
}

func TestWebhook_RejectsBadDeliveries(t *testing.T) {
	e := newAPIEnv(t)
	body := clerkEvent(t, "user.created", map[string]interface{}{"id": "user_x", "username": "xavier"})

	tests := []struct {
		name string
		req  func() *http.Request
	}{
		{"wrong key", func() *http.Request { return signedWebhook(t, body, now, "another-key") }},
		{"stale timestamp", func() *http.Request { return signedWebhook(t, body, now.Add(-10*time.Minute), webhookKey) }},
		{"future timestamp", func() *http.Request { return signedWebhook(t, body, now.Add(10*time.Minute), webhookKey) }},
		{"missing headers", func() *http.Request {
			return httptest.NewRequest("POST", "/webhooks/clerk", bytes.NewReader(body))
		}},
		{"tampered body", func() *http.Request {
			req := signedWebhook(t, body, now, webhookKey)
			tampered := bytes.Replace(body, []byte("xavier"), []byte("mallory"), 1)
			req.Body = httptest.NewRequest("POST", "/", bytes.NewReader(tampered)).Body
			return req
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := e.do(tt.req())
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
		})
	}

	_, err := e.progression.GetProfileByClerkID(context.Background(), "user_x")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestWebhook_IgnoresOtherEvents(t *testing.T) {
	e := newAPIEnv(t)
	body := clerkEvent(t, "session.created", map[string]interface{}{"id": "sess_1"})
	rr := e.do(signedWebhook(t, body, now, webhookKey))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestNewWebhookHandler_InvalidSecret(t *testing.T) {
	_, err := NewWebhookHandler(nil, "whsec_%%%not-base64", nil, zap.NewNop())
	assert.Error(t, err)
}

func multipartPhoto(t *testing.T, fields map[string]string, photo []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if photo != nil {
		fw, err := mw.CreateFormFile("photo", "photo.jpg")
		require.NoError(t, err)
		_, err = fw.Write(photo)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

var jpegBytes = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

func TestSubmit_ChallengeCreditsXP(t *testing.T) {
	e := newAPIEnv(t)
	e.newUser(t, "ana")
	c, err := e.store.UpsertChallenge(context.Background(), &challenge.Challenge{
		Title:      "Un atardecer en tu ciudad",
		Difficulty: challenge.DifficultyEasy,
		XPReward:   50,
		IsDaily:    true,
		DayNumber:  1,
	})
	require.NoError(t, err)

	body, ct := multipartPhoto(t, map[string]string{
		"target_type": "challenge",
		"target_id":   c.ID.String(),
	}, jpegBytes)
	req := httptest.NewRequest("POST", "/api/v1/submissions", body)
	req.Header.Set("Content-Type", ct)

	rr := e.do(asUser(req, "user_ana"))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var res struct {
		Accepted     bool `json:"accepted"`
		XPEarned     int  `json:"xpEarned"`
		Credited     bool `json:"credited"`
		Verification struct {
			Status string `json:"status"`
		} `json:"verification"`
		Profile struct {
			XP     int `json:"xp"`
			Streak int `json:"streak"`
		} `json:"profile"`
	}
	decode(t, rr, &res)
	assert.True(t, res.Accepted)
	assert.True(t, res.Credited)
	assert.Equal(t, 50, res.XPEarned)
	assert.Equal(t, "unavailable", res.Verification.Status)
	assert.Equal(t, 50, res.Profile.XP)
	assert.Equal(t, 1, res.Profile.Streak)
}

func TestSubmit_BadRequests(t *testing.T) {
	e := newAPIEnv(t)
	e.newUser(t, "ben")

	tests := []struct {
		name   string
		fields map[string]string
		photo  []byte
	}{
		{"no photo", map[string]string{}, nil},
		{"bad target type", map[string]string{"target_type": "venue", "target_id": "x"}, jpegBytes},
		{"bad target id", map[string]string{"target_type": "challenge", "target_id": "nope"}, jpegBytes},
		{"not an image", map[string]string{}, []byte("just some text")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := multipartPhoto(t, tt.fields, tt.photo)
			req := httptest.NewRequest("POST", "/api/v1/submissions", body)
			req.Header.Set("Content-Type", ct)
			rr := e.do(asUser(req, "user_ben"))
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
		})
	}
}

func TestSubmit_Unauthenticated(t *testing.T) {
	e := newAPIEnv(t)
	body, ct := multipartPhoto(t, nil, jpegBytes)
	req := httptest.NewRequest("POST", "/api/v1/submissions", body)
	req.Header.Set("Content-Type", ct)

	rr := e.do(req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestGetCurrentUserID(t *testing.T) {
	e := newAPIEnv(t)
	ana := e.newUser(t, "ana")

	rr := e.do(asUser(httptest.NewRequest("GET", "/api/v1/profile/id", nil), "user_ana"))
	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]string
	decode(t, rr, &body)
	assert.Equal(t, ana.ID.String(), body["userId"])

	rr = e.do(asUser(httptest.NewRequest("GET", "/api/v1/profile/id", nil), "user_ghost"))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUpdateProfile_Validates(t *testing.T) {
	e := newAPIEnv(t)
	e.newUser(t, "cai")

	req := httptest.NewRequest("PUT", "/api/v1/profile", strings.NewReader(`{"username":"x"}`))
	rr := e.do(asUser(req, "user_cai"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	req = httptest.NewRequest("PUT", "/api/v1/profile", strings.NewReader(`{"username":"cai_photos"}`))
	rr = e.do(asUser(req, "user_cai"))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var p profile.Profile
	decode(t, rr, &p)
	assert.Equal(t, "cai_photos", p.Username)
}

func TestRegisterDevice(t *testing.T) {
	e := newAPIEnv(t)
	dan := e.newUser(t, "dan")

	tests := []struct {
		body string
		want int
	}{
		{`{"token":"tok-1","platform":"android"}`, http.StatusOK},
		{`{"token":"tok-2","platform":"blackberry"}`, http.StatusBadRequest},
		{`{"platform":"ios"}`, http.StatusBadRequest},
		{`{not json`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("POST", "/api/v1/notifications/register-device", strings.NewReader(tt.body))
		rr := e.do(asUser(req, "user_dan"))
		assert.Equal(t, tt.want, rr.Code, tt.body)
	}

	tokens, err := e.store.ListDeviceTokens(context.Background(), dan.ID)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "tok-1", tokens[0].Token)
}

func TestLeaderboard_IncludesCaller(t *testing.T) {
	e := newAPIEnv(t)
	ctx := context.Background()
	for i, name := range []string{"ana", "ben", "cai"} {
		p := e.newUser(t, name)
		_, err := e.progression.AddXP(ctx, p.ID, 100*(3-i))
		require.NoError(t, err)
	}

	rr := e.do(asUser(httptest.NewRequest("GET", "/api/v1/leaderboard?limit=1", nil), "user_cai"))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var lb struct {
		Entries []struct {
			Username string `json:"username"`
			Position int    `json:"position"`
		} `json:"entries"`
		UserPosition *struct {
			Rank int `json:"rank"`
		} `json:"userPosition"`
	}
	decode(t, rr, &lb)
	require.Len(t, lb.Entries, 1)
	assert.Equal(t, "ana", lb.Entries[0].Username)
	assert.Equal(t, 1, lb.Entries[0].Position)
	require.NotNil(t, lb.UserPosition)
	assert.Equal(t, 3, lb.UserPosition.Rank)
}

func TestLikePhoto_InvalidID(t *testing.T) {
	e := newAPIEnv(t)
	e.newUser(t, "eva")

	rr := e.do(asUser(httptest.NewRequest("POST", "/api/v1/photos/not-a-uuid/like", nil), "user_eva"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetChallenge_NotFound(t *testing.T) {
	e := newAPIEnv(t)
	rr := e.do(httptest.NewRequest("GET", fmt.Sprintf("/api/v1/challenges/%s", "8f14e45f-ceea-467a-9f3b-0a1b2c3d4e5f"), nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHealth(t *testing.T) {
	e := newAPIEnv(t)
	rr := e.do(httptest.NewRequest("GET", "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"snapquest-api"}`, rr.Body.String())
}
