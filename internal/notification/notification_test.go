package notification

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"snapQuestAPI/internal/badge"
	"snapQuestAPI/internal/challenge"
	"snapQuestAPI/internal/repository"
)

func TestCrossedMilestone(t *testing.T) {
	tests := []struct {
		before, after, want int
	}{
		{0, 1, 0},
		{6, 7, 7},
		{7, 7, 0},
		{7, 8, 0},
		{29, 30, 30},
		{99, 100, 100},
		{100, 1, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CrossedMilestone(tt.before, tt.after), "%d -> %d", tt.before, tt.after)
	}
}

func TestBadgeEarned(t *testing.T) {
	userID := uuid.New()
	b := &badge.Badge{ID: uuid.New(), Slug: "streak-7", Name: "Semana perfecta", Icon: badge.IconFlame, Color: badge.ColorOrange}

	n := BadgeEarned(userID, b)
	assert.Equal(t, userID, n.UserID)
	assert.Equal(t, NotificationBadgeEarned, n.Type)
	assert.Contains(t, n.Title, "🔥")
	assert.Contains(t, n.Body, "Semana perfecta")
	assert.Equal(t, b.ID.String(), n.Data["badgeId"])
}

func TestDailyPromptHasNoUser(t *testing.T) {
	c := &challenge.Challenge{ID: uuid.New(), Title: "Atardecer dorado"}
	n := DailyPrompt(c)
	assert.Equal(t, uuid.Nil, n.UserID)
	assert.Equal(t, "Atardecer dorado", n.Body)
	assert.Equal(t, c.ID.String(), n.Data["challengeId"])
}

func TestBuildMessagePerPlatform(t *testing.T) {
	n := StreakMilestone(uuid.New(), 7)

	android := buildMessage(n, repository.DeviceToken{Token: "a", Platform: "android"})
	assert.NotNil(t, android.Android)
	assert.Nil(t, android.APNS)

	ios := buildMessage(n, repository.DeviceToken{Token: "i", Platform: "ios"})
	assert.NotNil(t, ios.APNS)
	assert.Nil(t, ios.Android)

	web := buildMessage(n, repository.DeviceToken{Token: "w", Platform: "web"})
	assert.NotNil(t, web.Webpush)
	assert.Equal(t, "w", web.Token)
	assert.Equal(t, "7", web.Data["streak"])
}
