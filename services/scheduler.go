package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"snapQuestAPI/internal/notification"
)

// DailyAnnouncer pushes the day's prompt to the daily topic once a day at a
// fixed local time.
type DailyAnnouncer struct {
	sched      gocron.Scheduler
	challenges *ChallengeService
	notifier   Notifier
	logger     *zap.Logger
}

type AnnounceAt struct {
	Hour, Minute uint
	Location     *time.Location
}

func NewDailyAnnouncer(challenges *ChallengeService, notifier Notifier, at AnnounceAt, clock clockwork.Clock, logger *zap.Logger) (*DailyAnnouncer, error) {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	loc := at.Location
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	sched, err := gocron.NewScheduler(gocron.WithLocation(loc), gocron.WithClock(clock))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	a := &DailyAnnouncer{sched: sched, challenges: challenges, notifier: notifier, logger: logger}

	_, err = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(at.Hour, at.Minute, 0))),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := a.Announce(ctx); err != nil {
				a.logger.Error("DailyAnnouncer: announce failed", zap.Error(err))
			}
		}),
		gocron.WithName("daily-prompt"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("failed to schedule daily prompt: %w", err)
	}
	return a, nil
}

func (a *DailyAnnouncer) Start() {
	a.sched.Start()
	a.logger.Info("DailyAnnouncer: scheduler started")
}

func (a *DailyAnnouncer) Stop() error {
	return a.sched.Shutdown()
}

// Announce broadcasts today's prompt.
func (a *DailyAnnouncer) Announce(ctx context.Context) error {
	c, err := a.challenges.Daily(ctx)
	if err != nil {
		return err
	}
	a.notifier.Broadcast(notification.DailyTopic, notification.DailyPrompt(c))
	a.logger.Info("DailyAnnouncer: prompt announced", zap.String("challenge", c.Title))
	return nil
}
