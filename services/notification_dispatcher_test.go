package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"snapQuestAPI/internal/badge"
	"snapQuestAPI/internal/notification"
	"snapQuestAPI/internal/repository"
)

type fakePushProvider struct {
	mu     sync.Mutex
	pushes map[string][]string // notification type -> tokens
	topics map[string]int
	stale  map[string]bool
	err    error
}

func newFakePushProvider() *fakePushProvider {
	return &fakePushProvider{pushes: map[string][]string{}, topics: map[string]int{}, stale: map[string]bool{}}
}

func (f *fakePushProvider) SendPush(_ context.Context, tokens []repository.DeviceToken, n *notification.Notification) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var stale []string
	for _, tok := range tokens {
		if f.stale[tok.Token] {
			stale = append(stale, tok.Token)
			continue
		}
		f.pushes[string(n.Type)] = append(f.pushes[string(n.Type)], tok.Token)
	}
	return stale, f.err
}

func (f *fakePushProvider) SendTopic(_ context.Context, topic string, _ *notification.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics[topic]++
	return f.err
}

func (f *fakePushProvider) pushed(t notification.NotificationType) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.pushes[string(t)]...)
}

func (f *fakePushProvider) topicCount(topic string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.topics[topic]
}

func TestDispatcher_DeliversAndPrunesStaleTokens(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	e := newTestEnv(t)
	ctx := context.Background()
	u := e.newUser(t, "ana")
	require.NoError(t, e.store.RegisterDevice(ctx, u.ID, repository.DeviceToken{Token: "good", Platform: "ios"}))
	require.NoError(t, e.store.RegisterDevice(ctx, u.ID, repository.DeviceToken{Token: "gone", Platform: "android"}))

	provider := newFakePushProvider()
	provider.stale["gone"] = true
	d := NewNotificationDispatcher(e.store, provider, 2, zap.NewNop())
	defer d.Stop()

	d.Notify(notification.BadgeEarned(u.ID, &badge.Badge{Name: "Primera foto"}))

	require.Eventually(t, func() bool {
		return len(provider.pushed(notification.NotificationBadgeEarned)) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"good"}, provider.pushed(notification.NotificationBadgeEarned))

	require.Eventually(t, func() bool {
		tokens, err := e.store.ListDeviceTokens(ctx, u.ID)
		return err == nil && len(tokens) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDispatcher_Broadcast(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	e := newTestEnv(t)
	provider := newFakePushProvider()
	d := NewNotificationDispatcher(e.store, provider, 1, zap.NewNop())
	defer d.Stop()

	c := e.addChallenge(t, dailyChallenge("Un perro", 1))
	d.Broadcast(notification.DailyTopic, notification.DailyPrompt(c))

	require.Eventually(t, func() bool {
		return provider.topicCount(notification.DailyTopic) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDispatcher_ProviderErrorIsSwallowed(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	e := newTestEnv(t)
	u := e.newUser(t, "ana")
	require.NoError(t, e.store.RegisterDevice(context.Background(), u.ID, repository.DeviceToken{Token: "tok", Platform: "web"}))

	provider := newFakePushProvider()
	provider.err = errors.New("quota exceeded")
	d := NewNotificationDispatcher(e.store, provider, 1, zap.NewNop())

	d.Notify(notification.StreakMilestone(u.ID, 7))
	require.Eventually(t, func() bool {
		return len(provider.pushed(notification.NotificationStreakMilestone)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	d.Stop()
	d.Stop()
}

func TestDispatcher_NilProviderDrops(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	e := newTestEnv(t)
	ana := e.newUser(t, "ana")
	d := NewNotificationDispatcher(e.store, nil, 1, zap.NewNop())
	d.Notify(notification.StreakMilestone(ana.ID, 7))
	d.Stop()

	// after Stop, enqueue returns instead of blocking
	done := make(chan struct{})
	go func() {
		d.Notify(notification.StreakMilestone(ana.ID, 30))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked after Stop")
	}
}
