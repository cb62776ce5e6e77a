package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"snapQuestAPI/handlers"
	"snapQuestAPI/internal/calendar"
	"snapQuestAPI/internal/config"
	"snapQuestAPI/internal/keywords"
	"snapQuestAPI/internal/notification"
	"snapQuestAPI/internal/scorer"
	"snapQuestAPI/internal/storage"
	"snapQuestAPI/middleware"
	"snapQuestAPI/services"
)

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	clerk.SetKey(cfg.ClerkSecretKey)

	store, closeDB, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		logger.Info("Closing database connection pool...")
		closeDB()
	}()

	clock := clockwork.NewRealClock()
	cal := calendar.New(cfg.Timezone, clock)

	matchScorer, err := scorer.New(ctx, scorer.Config{
		Provider:    cfg.ScorerProvider,
		URL:         cfg.ScorerURL,
		Token:       cfg.ScorerToken,
		GeminiKey:   cfg.GeminiAPIKey,
		GeminiModel: cfg.GeminiModel,
	}, logger)
	if err != nil {
		return err
	}

	extractor, err := keywords.New()
	if err != nil {
		return err
	}

	blobs, err := newBlobStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	rdb := newRedis(ctx, cfg, logger)
	if rdb != nil {
		defer rdb.Close()
	}

	var push services.PushNotificationProvider
	fcm, err := notification.NewFCMService(ctx, cfg.FCMServiceAccountJSON, cfg.FCMKeyFile, logger)
	if err != nil {
		logger.Warn("Could not initialize FCM, push notifications disabled", zap.Error(err))
	} else {
		push = fcm
	}

	dispatcher := services.NewNotificationDispatcher(store, push, 5, logger)
	defer dispatcher.Stop()

	progression := services.NewProgressionService(store, cal, logger)
	verifier := services.NewVerificationService(matchScorer, extractor, cfg.ScorerTimeout, logger)
	badges := services.NewBadgeService(store, cal, dispatcher, logger)
	leaderboard := services.NewLeaderboardService(store, rdb, logger)
	challenges := services.NewChallengeService(store, cal, logger)
	rewards := services.NewRewards(badges, leaderboard, dispatcher, logger)
	quests := services.NewQuestService(store, cal, rewards, dispatcher, logger)
	submissions := services.NewSubmissionService(services.SubmissionDeps{
		Store:    store,
		Quests:   quests,
		Verifier: verifier,
		Blobs:    blobs,
		Rewards:  rewards,
		Calendar: cal,
		Redis:    rdb,
		Cooldown: cfg.SubmitCooldown,
		Logger:   logger,
	})
	photos := services.NewPhotoService(store, badges, logger)
	notifications := services.NewNotificationService(store, logger)

	announcer, err := services.NewDailyAnnouncer(challenges, dispatcher, services.AnnounceAt{
		Hour:     cfg.DailyAnnounceHour,
		Minute:   cfg.DailyAnnounceMinute,
		Location: cfg.Timezone,
	}, clock, logger)
	if err != nil {
		return err
	}
	announcer.Start()
	defer func() {
		if err := announcer.Stop(); err != nil {
			logger.Warn("Scheduler shutdown error", zap.Error(err))
		}
	}()

	services.RegisterMetrics(prometheus.DefaultRegisterer)
	middleware.InitPrometheus(prometheus.DefaultRegisterer)

	webhookHandler, err := handlers.NewWebhookHandler(progression, cfg.ClerkWebhookSecret, clock, logger)
	if err != nil {
		return err
	}

	limiter := middleware.NewRateLimiter(5, 30, clock)
	go limiter.Cleanup(ctx)

	r := mux.NewRouter()
	r.Use(limiter.Middleware)
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuth(cfg.MetricsUser, cfg.MetricsPass)(promhttp.Handler())).Methods("GET")
	r.HandleFunc("/health", handlers.NewHealthHandler(store, logger).Health).Methods("GET")
	r.HandleFunc("/webhooks/clerk", webhookHandler.HandleClerkWebhook).Methods("POST")

	// -------------------------------------------------------------------------
	// PROTECTED ROUTES (REQUIRE AUTH HEADER)
	// -------------------------------------------------------------------------
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.ClerkAuth(middleware.ClerkVerifier, logger))

	profileHandler := handlers.NewProfileHandler(progression, logger)
	api.HandleFunc("/profile", profileHandler.GetProfile).Methods("GET")
	api.HandleFunc("/profile", profileHandler.UpdateProfile).Methods("PUT")
	api.HandleFunc("/profile/id", profileHandler.GetCurrentUserID).Methods("GET")
	api.HandleFunc("/profile/stats", profileHandler.GetStats).Methods("GET")

	challengeHandler := handlers.NewChallengeHandler(challenges, logger)
	api.HandleFunc("/challenges", challengeHandler.List).Methods("GET")
	api.HandleFunc("/challenges/daily", challengeHandler.GetDaily).Methods("GET")
	api.HandleFunc("/challenges/{id}", challengeHandler.Get).Methods("GET")

	submissionHandler := handlers.NewSubmissionHandler(progression, submissions, logger)
	api.HandleFunc("/submissions", submissionHandler.Submit).Methods("POST")
	api.HandleFunc("/submissions/verify", submissionHandler.Verify).Methods("POST")

	photoHandler := handlers.NewPhotoHandler(progression, photos, logger)
	api.HandleFunc("/photos", photoHandler.ListMine).Methods("GET")
	api.HandleFunc("/photos/{id}/like", photoHandler.Like).Methods("POST")
	api.HandleFunc("/photos/{id}/like", photoHandler.Unlike).Methods("DELETE")

	badgeHandler := handlers.NewBadgeHandler(progression, badges, logger)
	api.HandleFunc("/badges", badgeHandler.List).Methods("GET")
	api.HandleFunc("/badges/sync", badgeHandler.Sync).Methods("POST")

	leaderboardHandler := handlers.NewLeaderboardHandler(progression, leaderboard, logger)
	api.HandleFunc("/leaderboard", leaderboardHandler.Get).Methods("GET")
	api.HandleFunc("/leaderboard/me", leaderboardHandler.Me).Methods("GET")

	questHandler := handlers.NewQuestHandler(progression, quests, logger)
	api.HandleFunc("/quests/{id}", questHandler.Get).Methods("GET")
	api.HandleFunc("/quests/{id}/progress", questHandler.GetProgress).Methods("GET")
	api.HandleFunc("/quests/{id}/start", questHandler.Start).Methods("POST")
	api.HandleFunc("/quests/{id}/invite", questHandler.Invite).Methods("GET")

	notificationHandler := handlers.NewNotificationHandler(progression, notifications, logger)
	api.HandleFunc("/notifications/register-device", notificationHandler.RegisterDevice).Methods("POST")

	corsHandler := gorillaHandlers.CORS(
		gorillaHandlers.AllowedOrigins([]string{"*"}),
		gorillaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorillaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		gorillaHandlers.ExposedHeaders([]string{"Content-Length"}),
	)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: corsHandler(r),
		// photo uploads and the scorer round trip need more than the usual 5s/10s
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 40 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("error starting server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
	logger.Info("Server shutdown complete")
	return nil
}

func newBlobStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.BlobStore, error) {
	if !cfg.R2Enabled() {
		logger.Warn("R2 not configured, photos are kept in memory")
		return storage.NewMemory(cfg.CDNBaseURL), nil
	}
	return storage.NewR2(ctx, storage.R2Config{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		AccessKeySecret: cfg.R2AccessKeySecret,
		Bucket:          cfg.R2Bucket,
		CDNBaseURL:      cfg.CDNBaseURL,
	})
}

// newRedis returns nil when REDIS_URL is unset or unreachable; the
// leaderboard cache and submit cooldown are skipped without it.
func newRedis(ctx context.Context, cfg *config.Config, logger *zap.Logger) *redis.Client {
	if cfg.RedisURL == "" {
		return nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn("Invalid REDIS_URL, continuing without redis", zap.Error(err))
		return nil
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis unreachable, continuing without redis", zap.Error(err))
		rdb.Close()
		return nil
	}
	logger.Info("Connected to redis")
	return rdb
}
