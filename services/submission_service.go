package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"snapQuestAPI/internal/apperror"
	"snapQuestAPI/internal/badge"
	"snapQuestAPI/internal/calendar"
	"snapQuestAPI/internal/challenge"
	"snapQuestAPI/internal/photo"
	"snapQuestAPI/internal/profile"
	"snapQuestAPI/internal/quest"
	"snapQuestAPI/internal/repository"
	"snapQuestAPI/internal/scorer"
	"snapQuestAPI/internal/storage"
	"snapQuestAPI/internal/verification"
)

// MaxPhotoBytes bounds a single upload.
const MaxPhotoBytes = 10 << 20

type submissionStore interface {
	repository.ChallengeRepository
	repository.PhotoRepository
}

// SubmissionService is the photo flow: verify against the prompt, store the
// bytes, then record the photo and its credit in one repository call.
type SubmissionService struct {
	store    submissionStore
	quests   *QuestService
	verifier *VerificationService
	blobs    storage.BlobStore
	rewards  *Rewards
	cal      *calendar.Calendar
	cooldown submitLock
	logger   *zap.Logger
}

type SubmissionDeps struct {
	Store    submissionStore
	Quests   *QuestService
	Verifier *VerificationService
	Blobs    storage.BlobStore
	Rewards  *Rewards
	Calendar *calendar.Calendar
	// Redis enables the per-user submit cooldown. Nil disables it.
	Redis    *redis.Client
	Cooldown time.Duration
	Logger   *zap.Logger
}

func NewSubmissionService(d SubmissionDeps) *SubmissionService {
	svc := &SubmissionService{
		store:    d.Store,
		quests:   d.Quests,
		verifier: d.Verifier,
		blobs:    d.Blobs,
		rewards:  d.Rewards,
		cal:      d.Calendar,
		logger:   d.Logger,
	}
	if d.Redis != nil && d.Cooldown > 0 {
		svc.cooldown = &redisCooldown{rdb: d.Redis, ttl: d.Cooldown, logger: d.Logger}
	}
	return svc
}

type SubmissionRequest struct {
	UserID uuid.UUID
	Target photo.Target
	Image  scorer.Image
	// Force uploads a photo verification rejected.
	Force bool
}

type SubmissionResult struct {
	// Accepted is false when verification rejected the photo and the user did
	// not force it. Nothing is stored in that case.
	Accepted       bool                `json:"accepted"`
	Verification   verification.Result `json:"verification"`
	Photo          *photo.Photo        `json:"photo,omitempty"`
	Profile        *profile.Profile    `json:"profile,omitempty"`
	XPEarned       int                 `json:"xpEarned"`
	Credited       bool                `json:"credited"`
	StreakAdvanced bool                `json:"streakAdvanced"`
	Quest          *quest.View         `json:"quest,omitempty"`
	QuestCompleted bool                `json:"questCompleted,omitempty"`
	NewBadges      []*badge.Badge      `json:"newBadges"`
}

// prompt is what a target resolves to before verification.
type prompt struct {
	title    string
	text     string
	xpReward int
	quest    *quest.Quest
	task     *quest.Task
}

func (s *SubmissionService) Submit(ctx context.Context, req SubmissionRequest) (*SubmissionResult, error) {
	if err := checkImage(req.Image); err != nil {
		return nil, err
	}
	if s.cooldown == nil {
		return s.submit(ctx, req)
	}

	if !s.cooldown.Acquire(ctx, req.UserID) {
		return nil, fmt.Errorf("please wait before submitting again: %w", apperror.ErrRateLimited)
	}
	res, err := s.submit(ctx, req)
	// only a recorded photo keeps the cooldown, so a rejection can be forced
	// and a failed submission retried straight away
	if err != nil || !res.Accepted {
		s.cooldown.Release(context.WithoutCancel(ctx), req.UserID)
	}
	return res, err
}

func (s *SubmissionService) submit(ctx context.Context, req SubmissionRequest) (*SubmissionResult, error) {
	pr, err := s.resolve(ctx, req.Target)
	if err != nil {
		return nil, err
	}

	result := verification.Skipped()
	if !req.Target.IsNone() {
		result = s.verifier.Verify(ctx, req.Image, pr.text)
	}
	if !result.IsValid {
		if !req.Force {
			s.logger.Info("Submit: rejected by verification",
				zap.String("user_id", req.UserID.String()),
				zap.String("target", req.Target.String()),
				zap.Float64("confidence", result.Confidence),
			)
			return &SubmissionResult{Verification: result, NewBadges: []*badge.Badge{}}, nil
		}
		result = verification.Override(result)
		verificationOutcomes.WithLabelValues(string(verification.StatusOverridden)).Inc()
	}

	ph := &photo.Photo{
		ID:                 uuid.New(),
		UserID:             req.UserID,
		Target:             req.Target,
		VerificationStatus: string(result.Status),
		Confidence:         result.Confidence,
		MatchedKeyword:     result.MatchedKeyword,
	}

	key := storage.PhotoKey(req.UserID, ph.ID, pr.title, req.Image.ContentType)
	url, err := s.blobs.Put(ctx, key, req.Image.Data, req.Image.ContentType)
	if err != nil {
		s.logger.Error("Submit: upload failed", zap.String("user_id", req.UserID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to upload photo: %w", err)
	}
	ph.ImageURL = url

	res, err := s.record(ctx, req, pr, ph)
	if err != nil {
		// the row was never written, so the object is orphaned
		if delErr := s.blobs.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			s.logger.Warn("Submit: failed to remove orphaned upload", zap.String("key", key), zap.Error(delErr))
		}
		return nil, err
	}
	res.Accepted = true
	res.Verification = result
	return res, nil
}

func (s *SubmissionService) record(ctx context.Context, req SubmissionRequest, pr *prompt, ph *photo.Photo) (*SubmissionResult, error) {
	if req.Target.IsQuestTask() {
		tr, err := s.quests.complete(ctx, req.UserID, pr.quest, pr.task, ph)
		if err != nil {
			return nil, err
		}
		return &SubmissionResult{
			Photo:          tr.Photo,
			Profile:        tr.Profile,
			XPEarned:       tr.XPEarned,
			Credited:       tr.Credited,
			StreakAdvanced: tr.StreakAdvanced(),
			Quest:          tr.Progress,
			QuestCompleted: tr.QuestCompleted,
			NewBadges:      tr.NewBadges,
		}, nil
	}

	out, err := s.store.RecordSubmission(ctx, repository.NewSubmission{
		Photo:    ph,
		XPReward: pr.xpReward,
		Today:    s.cal.Today(),
	})
	if err != nil {
		s.logger.Error("Submit: failed to record submission",
			zap.String("user_id", req.UserID.String()),
			zap.String("target", req.Target.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to record submission: %w", err)
	}

	res := &SubmissionResult{
		Photo:          out.Photo,
		Profile:        out.Profile,
		Credited:       out.Credited,
		StreakAdvanced: out.Profile.Streak > out.StreakBefore,
		NewBadges:      []*badge.Badge{},
	}
	if out.Credited {
		res.XPEarned = pr.xpReward
		xpCredited.WithLabelValues("challenge").Add(float64(pr.xpReward))
	}
	if s.rewards != nil {
		// a plain upload can still earn photo-count badges
		res.NewBadges = s.rewards.afterCredit(ctx, req.UserID, out.StreakBefore, out.Profile)
	}
	return res, nil
}

// VerifyOnly runs verification for a challenge without storing anything.
func (s *SubmissionService) VerifyOnly(ctx context.Context, challengeID uuid.UUID, img scorer.Image) (verification.Result, error) {
	if err := checkImage(img); err != nil {
		return verification.Result{}, err
	}
	c, err := s.store.GetChallenge(ctx, challengeID)
	if err != nil {
		return verification.Result{}, fmt.Errorf("failed to get challenge: %w", err)
	}
	return s.verifier.Verify(ctx, img, c.Text()), nil
}

func (s *SubmissionService) resolve(ctx context.Context, target photo.Target) (*prompt, error) {
	switch target.Kind() {
	case photo.TargetNone:
		return &prompt{title: "photo"}, nil

	case photo.TargetChallenge:
		c, err := s.store.GetChallenge(ctx, target.ID())
		if err != nil {
			return nil, fmt.Errorf("failed to get challenge: %w", err)
		}
		return challengePrompt(c), nil

	case photo.TargetHuntTask, photo.TargetEventTask:
		task, err := s.quests.quests.GetTask(ctx, target.ID())
		if err != nil {
			return nil, fmt.Errorf("failed to get task: %w", err)
		}
		q, task, err := s.quests.lookupTask(ctx, task.QuestID, task.ID)
		if err != nil {
			return nil, err
		}
		want := quest.KindHunt
		if target.Kind() == photo.TargetEventTask {
			want = quest.KindEvent
		}
		if q.Kind != want {
			return nil, fmt.Errorf("task %s belongs to a %s, not a %s: %w", task.ID, q.Kind, want, apperror.ErrInvalidInput)
		}
		return &prompt{title: task.Title, text: task.Text(), xpReward: task.XPReward, quest: q, task: task}, nil
	}
	return nil, fmt.Errorf("unknown target %s: %w", target, apperror.ErrInvalidInput)
}

func challengePrompt(c *challenge.Challenge) *prompt {
	return &prompt{title: c.Title, text: c.Text(), xpReward: c.XPReward}
}

// submitLock is the per-user submit cooldown.
type submitLock interface {
	// Acquire reports whether the user may submit now and starts the cooldown.
	Acquire(ctx context.Context, userID uuid.UUID) bool
	Release(ctx context.Context, userID uuid.UUID)
}

// redisCooldown keeps the cooldown as a SetNX key with a TTL. Redis failures
// let the submission through.
type redisCooldown struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func cooldownKey(userID uuid.UUID) string {
	return fmt.Sprintf("rate_limit:user:%s:submit", userID)
}

func (c *redisCooldown) Acquire(ctx context.Context, userID uuid.UUID) bool {
	ok, err := c.rdb.SetNX(ctx, cooldownKey(userID), "locked", c.ttl).Result()
	if err != nil {
		c.logger.Warn("Submit: cooldown check failed, allowing", zap.Error(err))
		return true
	}
	return ok
}

func (c *redisCooldown) Release(ctx context.Context, userID uuid.UUID) {
	if err := c.rdb.Del(ctx, cooldownKey(userID)).Err(); err != nil {
		c.logger.Warn("Submit: failed to release cooldown", zap.String("user_id", userID.String()), zap.Error(err))
	}
}

func checkImage(img scorer.Image) error {
	if len(img.Data) == 0 {
		return fmt.Errorf("photo is empty: %w", apperror.ErrInvalidInput)
	}
	if len(img.Data) > MaxPhotoBytes {
		return fmt.Errorf("photo exceeds %d bytes: %w", MaxPhotoBytes, apperror.ErrInvalidInput)
	}
	if !storage.AllowedContentType(img.ContentType) {
		return fmt.Errorf("unsupported content type %q: %w", img.ContentType, apperror.ErrInvalidInput)
	}
	return nil
}
