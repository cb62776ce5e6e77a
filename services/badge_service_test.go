package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snapQuestAPI/internal/apperror"
	"snapQuestAPI/internal/badge"
	"snapQuestAPI/internal/notification"
	"snapQuestAPI/internal/photo"
)

// uploads records n plain photos for userID.
func (e *testEnv) uploads(t *testing.T, userID uuid.UUID, n int) []*photo.Photo {
	t.Helper()
	var out []*photo.Photo
	for i := 0; i < n; i++ {
		res, err := e.submissions.Submit(context.Background(), SubmissionRequest{UserID: userID, Target: photo.NoTarget(), Image: jpeg()})
		require.NoError(t, err)
		out = append(out, res.Photo)
	}
	return out
}

func TestSyncBadges_AwardsOnceAndNotifies(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	u := e.newUser(t, "ana")
	e.uploads(t, u.ID, 3)

	// catalog grows after the photos already exist
	three := e.addBadge(t, "three-photos", badge.RequirementPhotos, 3)
	e.addBadge(t, "ten-photos", badge.RequirementPhotos, 10)

	awarded, err := e.badges.SyncBadges(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, awarded, 1)
	assert.Equal(t, three.ID, awarded[0].ID)

	again, err := e.badges.SyncBadges(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, again)

	sent := e.notifier.ofType(notification.NotificationBadgeEarned)
	require.Len(t, sent, 1)
	assert.Equal(t, u.ID, sent[0].UserID)
}

func TestSyncBadges_ConcurrentAwardsOnce(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	u := e.newUser(t, "ana")
	e.uploads(t, u.ID, 2)
	e.addBadge(t, "two-photos", badge.RequirementPhotos, 2)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			awarded, err := e.badges.SyncBadges(ctx, u.ID)
			assert.NoError(t, err)
			mu.Lock()
			total += len(awarded)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, total)
	owned, err := e.store.ListUserBadges(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, owned, 1)
}

func TestSyncBadges_LikeBadgeGoesToOwner(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.newUser(t, "ana")
	fan := e.newUser(t, "ben")
	e.addBadge(t, "first-like", badge.RequirementLikes, 1)

	ph := e.uploads(t, owner.ID, 1)[0]

	res, err := e.photos.Like(ctx, fan.ID, ph.ID)
	require.NoError(t, err)
	assert.Equal(t, photo.LikeLiked, res.State)
	assert.Equal(t, 1, res.LikesCount)

	owned, err := e.store.ListUserBadges(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, owned, 1)

	fanOwned, err := e.store.ListUserBadges(ctx, fan.ID)
	require.NoError(t, err)
	assert.Empty(t, fanOwned)
}

func TestSyncBadges_UnlikeKeepsBadge(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.newUser(t, "ana")
	fan := e.newUser(t, "ben")
	e.addBadge(t, "first-like", badge.RequirementLikes, 1)
	ph := e.uploads(t, owner.ID, 1)[0]

	_, err := e.photos.Like(ctx, fan.ID, ph.ID)
	require.NoError(t, err)
	res, err := e.photos.Unlike(ctx, fan.ID, ph.ID)
	require.NoError(t, err)
	assert.Equal(t, photo.LikeNotLiked, res.State)
	assert.Zero(t, res.LikesCount)

	_, err = e.badges.SyncBadges(ctx, owner.ID)
	require.NoError(t, err)
	owned, err := e.store.ListUserBadges(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, owned, 1)
}

func TestProgressTowards(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	u := e.newUser(t, "ana")
	b := e.addBadge(t, "ten-photos", badge.RequirementPhotos, 10)
	e.uploads(t, u.ID, 3)

	pct, err := e.badges.ProgressTowards(ctx, u.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, pct)

	_, err = e.badges.ProgressTowards(ctx, u.ID, uuid.New())
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestListBadges(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	u := e.newUser(t, "ana")
	e.addBadge(t, "one-photo", badge.RequirementPhotos, 1)
	e.addBadge(t, "four-photos", badge.RequirementPhotos, 4)
	e.uploads(t, u.ID, 1)

	list, err := e.badges.ListBadges(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)

	type row struct {
		Slug     string
		Earned   bool
		Progress int
	}
	var got []row
	for _, ws := range list {
		got = append(got, row{ws.Slug, ws.Earned, ws.Progress})
	}
	want := []row{
		{"one-photo", true, 100},
		{"four-photos", false, 25},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ListBadges mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "#EAB308", list[0].Presentation.Hex)
}
