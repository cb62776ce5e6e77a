package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"snapQuestAPI/internal/notification"
	"snapQuestAPI/internal/repository"
)

type PushNotificationProvider interface {
	// SendPush returns the tokens the provider reported as no longer valid.
	SendPush(ctx context.Context, tokens []repository.DeviceToken, n *notification.Notification) ([]string, error)
	SendTopic(ctx context.Context, topic string, n *notification.Notification) error
}

// Notifier is how services hand off notifications. Delivery is best effort
// and never affects the caller's outcome.
type Notifier interface {
	Notify(n *notification.Notification)
	Broadcast(topic string, n *notification.Notification)
}

type nopNotifier struct{}

func (nopNotifier) Notify(*notification.Notification)            {}
func (nopNotifier) Broadcast(string, *notification.Notification) {}

// NotificationDispatcher delivers notifications on a worker pool.
type NotificationDispatcher struct {
	devices      repository.DeviceRepository
	pushProvider PushNotificationProvider
	workers      int
	jobQueue     chan *DispatchJob
	stopChan     chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
	logger       *zap.Logger
}

type DispatchJob struct {
	Notification *notification.Notification
	// Topic is set for broadcasts.
	Topic string
}

const (
	defaultDispatchWorkers = 5
	enqueueTimeout         = 5 * time.Second
	deliveryTimeout        = 10 * time.Second
)

// NewNotificationDispatcher starts the workers. provider may be nil, in which
// case jobs are dropped with a debug log.
func NewNotificationDispatcher(devices repository.DeviceRepository, provider PushNotificationProvider, workers int, logger *zap.Logger) *NotificationDispatcher {
	if workers <= 0 {
		workers = defaultDispatchWorkers
	}
	d := &NotificationDispatcher{
		devices:      devices,
		pushProvider: provider,
		workers:      workers,
		jobQueue:     make(chan *DispatchJob, 100),
		stopChan:     make(chan struct{}),
		logger:       logger,
	}
	d.startWorkers()
	return d
}

func (d *NotificationDispatcher) startWorkers() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

func (d *NotificationDispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case job := <-d.jobQueue:
			d.processJob(job)
		case <-d.stopChan:
			return
		}
	}
}

func (d *NotificationDispatcher) processJob(job *DispatchJob) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	n := job.Notification
	kind := string(n.Type)

	if d.pushProvider == nil {
		d.logger.Debug("Dispatch: no push provider, skipping", zap.String("type", kind))
		notificationsSent.WithLabelValues(kind, "skipped").Inc()
		return
	}

	if job.Topic != "" {
		if err := d.pushProvider.SendTopic(ctx, job.Topic, n); err != nil {
			d.logger.Warn("Dispatch: topic send failed", zap.String("topic", job.Topic), zap.Error(err))
			notificationsSent.WithLabelValues(kind, "failed").Inc()
			return
		}
		notificationsSent.WithLabelValues(kind, "sent").Inc()
		return
	}

	tokens, err := d.devices.ListDeviceTokens(ctx, n.UserID)
	if err != nil {
		d.logger.Warn("Dispatch: failed to load device tokens", zap.String("user_id", n.UserID.String()), zap.Error(err))
		notificationsSent.WithLabelValues(kind, "failed").Inc()
		return
	}
	if len(tokens) == 0 {
		notificationsSent.WithLabelValues(kind, "skipped").Inc()
		return
	}

	stale, err := d.pushProvider.SendPush(ctx, tokens, n)
	for _, token := range stale {
		if rmErr := d.devices.RemoveDeviceToken(ctx, token); rmErr != nil {
			d.logger.Warn("Dispatch: failed to remove stale token", zap.Error(rmErr))
		}
	}
	if err != nil {
		d.logger.Warn("Dispatch: push failed", zap.String("user_id", n.UserID.String()), zap.Error(err))
		notificationsSent.WithLabelValues(kind, "failed").Inc()
		return
	}
	notificationsSent.WithLabelValues(kind, "sent").Inc()
}

// Notify queues a push to n.UserID's devices.
func (d *NotificationDispatcher) Notify(n *notification.Notification) {
	d.enqueue(&DispatchJob{Notification: n})
}

// Broadcast queues a push to every device subscribed to topic.
func (d *NotificationDispatcher) Broadcast(topic string, n *notification.Notification) {
	d.enqueue(&DispatchJob{Notification: n, Topic: topic})
}

func (d *NotificationDispatcher) enqueue(job *DispatchJob) {
	select {
	case d.jobQueue <- job:
	case <-d.stopChan:
		d.logger.Debug("Dispatch: stopped, dropping notification", zap.String("type", string(job.Notification.Type)))
	case <-time.After(enqueueTimeout):
		d.logger.Warn("Dispatch: queue full, dropping notification", zap.String("type", string(job.Notification.Type)))
	}
}

// Stop the dispatcher gracefully. Queued jobs that no worker picked up are
// dropped.
func (d *NotificationDispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.logger.Info("Stopping notification dispatcher")
		close(d.stopChan)
		d.wg.Wait()
		d.logger.Info("Notification dispatcher stopped")
	})
}
