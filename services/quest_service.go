package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"snapQuestAPI/internal/apperror"
	"snapQuestAPI/internal/badge"
	"snapQuestAPI/internal/calendar"
	"snapQuestAPI/internal/notification"
	"snapQuestAPI/internal/photo"
	"snapQuestAPI/internal/profile"
	"snapQuestAPI/internal/quest"
	"snapQuestAPI/internal/repository"
)

// QuestService tracks hunt and event progress. Task credit, the XP it
// carries and the streak advance are committed together by the repository.
type QuestService struct {
	quests   repository.QuestRepository
	cal      *calendar.Calendar
	rewards  *Rewards
	notifier Notifier
	logger   *zap.Logger
}

func NewQuestService(quests repository.QuestRepository, cal *calendar.Calendar, rewards *Rewards, notifier Notifier, logger *zap.Logger) *QuestService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &QuestService{quests: quests, cal: cal, rewards: rewards, notifier: notifier, logger: logger}
}

type TaskResult struct {
	Progress       *quest.View      `json:"progress"`
	Profile        *profile.Profile `json:"profile"`
	Photo          *photo.Photo     `json:"photo,omitempty"`
	XPEarned       int              `json:"xpEarned"`
	Credited       bool             `json:"credited"`
	QuestCompleted bool             `json:"questCompleted"`
	NewBadges      []*badge.Badge   `json:"newBadges"`

	streakBefore int
}

// StreakAdvanced reports whether this completion moved the streak forward.
func (r *TaskResult) StreakAdvanced() bool {
	return r.Profile != nil && r.Profile.Streak > r.streakBefore
}

func (s *QuestService) Get(ctx context.Context, questID uuid.UUID) (*quest.Quest, error) {
	q, err := s.quests.GetQuest(ctx, questID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quest: %w", err)
	}
	return q, nil
}

// Start moves NOT_STARTED to IN_PROGRESS. Starting again is a no-op.
func (s *QuestService) Start(ctx context.Context, userID, questID uuid.UUID) (*quest.View, error) {
	q, err := s.Get(ctx, questID)
	if err != nil {
		return nil, err
	}
	if err := s.checkActive(q); err != nil {
		return nil, err
	}

	p, created, err := s.quests.StartQuest(ctx, userID, questID, s.cal.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to start quest: %w", err)
	}
	if created {
		s.logger.Info("StartQuest: started",
			zap.String("user_id", userID.String()),
			zap.String("quest_id", questID.String()),
		)
	}
	return quest.NewView(questID, len(q.Tasks), p), nil
}

func (s *QuestService) GetProgress(ctx context.Context, userID, questID uuid.UUID) (*quest.View, error) {
	q, err := s.Get(ctx, questID)
	if err != nil {
		return nil, err
	}
	p, err := s.quests.GetProgress(ctx, userID, questID)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("failed to get progress: %w", err)
		}
		p = nil
	}
	return quest.NewView(questID, len(q.Tasks), p), nil
}

// CompleteTask credits taskID once. Repeating it returns the current state
// with Credited false. An unstarted quest is started implicitly.
func (s *QuestService) CompleteTask(ctx context.Context, userID, questID, taskID uuid.UUID) (*TaskResult, error) {
	q, task, err := s.lookupTask(ctx, questID, taskID)
	if err != nil {
		return nil, err
	}
	return s.complete(ctx, userID, q, task, nil)
}

// lookupTask loads the quest and checks the task belongs to it.
func (s *QuestService) lookupTask(ctx context.Context, questID, taskID uuid.UUID) (*quest.Quest, *quest.Task, error) {
	q, err := s.Get(ctx, questID)
	if err != nil {
		return nil, nil, err
	}
	for _, t := range q.Tasks {
		if t.ID == taskID {
			return q, t, nil
		}
	}
	return nil, nil, fmt.Errorf("task %s in quest %s: %w", taskID, questID, apperror.ErrNotFound)
}

func (s *QuestService) complete(ctx context.Context, userID uuid.UUID, q *quest.Quest, task *quest.Task, ph *photo.Photo) (*TaskResult, error) {
	if err := s.checkActive(q); err != nil {
		return nil, err
	}

	out, err := s.quests.CompleteTask(ctx, repository.TaskCompletion{
		UserID:     userID,
		QuestID:    q.ID,
		TaskID:     task.ID,
		XPReward:   task.XPReward,
		TotalTasks: len(q.Tasks),
		Photo:      ph,
		Today:      s.cal.Today(),
		Now:        s.cal.Now(),
	})
	if err != nil {
		s.logger.Error("CompleteTask: failed to record task",
			zap.String("user_id", userID.String()),
			zap.String("task_id", task.ID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to complete task: %w", err)
	}

	questTasksCompleted.WithLabelValues(string(q.Kind), fmt.Sprint(out.Credited)).Inc()

	res := &TaskResult{
		Progress:       quest.NewView(q.ID, len(q.Tasks), out.Progress),
		Profile:        out.Profile,
		Photo:          out.Photo,
		Credited:       out.Credited,
		QuestCompleted: out.QuestCompleted,
		NewBadges:      []*badge.Badge{},
		streakBefore:   out.StreakBefore,
	}
	if !out.Credited {
		return res, nil
	}

	res.XPEarned = task.XPReward
	xpCredited.WithLabelValues(string(q.Kind)).Add(float64(task.XPReward))
	if out.QuestCompleted {
		s.logger.Info("CompleteTask: quest completed",
			zap.String("user_id", userID.String()),
			zap.String("quest_id", q.ID.String()),
		)
		s.notifier.Notify(notification.QuestCompleted(userID, q, out.Progress.TotalXPEarned))
	}
	if s.rewards != nil {
		res.NewBadges = s.rewards.afterCredit(ctx, userID, out.StreakBefore, out.Profile)
	}
	return res, nil
}

// checkActive rejects quests outside their event window.
func (s *QuestService) checkActive(q *quest.Quest) error {
	now := s.cal.Now()
	if q.StartsAt != nil && now.Before(*q.StartsAt) {
		return fmt.Errorf("quest %q has not started yet: %w", q.Title, apperror.ErrForbidden)
	}
	if q.EndsAt != nil && now.After(*q.EndsAt) {
		return fmt.Errorf("quest %q has ended: %w", q.Title, apperror.ErrForbidden)
	}
	return nil
}
