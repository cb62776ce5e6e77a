package notification

import (
	"fmt"

	"github.com/google/uuid"

	"snapQuestAPI/internal/badge"
	"snapQuestAPI/internal/challenge"
	"snapQuestAPI/internal/quest"
)

type NotificationType string

const (
	NotificationBadgeEarned     NotificationType = "badge_earned"
	NotificationQuestCompleted  NotificationType = "quest_completed"
	NotificationStreakMilestone NotificationType = "streak_milestone"
	NotificationDailyPrompt     NotificationType = "daily_prompt"
)

// DailyTopic is the FCM topic every client subscribes to for the daily prompt.
const DailyTopic = "daily-challenge"

// StreakMilestones are the streak lengths that trigger a push.
var StreakMilestones = []int{7, 30, 100}

type Notification struct {
	UserID uuid.UUID         `json:"userId"`
	Type   NotificationType  `json:"type"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}

type RegisterDeviceRequest struct {
	Token    string `json:"token" validate:"required"`
	Platform string `json:"platform" validate:"required,oneof=ios android web"`
}

func BadgeEarned(userID uuid.UUID, b *badge.Badge) *Notification {
	p := b.Presentation()
	return &Notification{
		UserID: userID,
		Type:   NotificationBadgeEarned,
		Title:  fmt.Sprintf("%s ¡Nueva insignia!", p.Emoji),
		Body:   fmt.Sprintf("Has conseguido \"%s\"", b.Name),
		Data: map[string]string{
			"type":    string(NotificationBadgeEarned),
			"badgeId": b.ID.String(),
			"slug":    b.Slug,
		},
	}
}

func QuestCompleted(userID uuid.UUID, q *quest.Quest, xp int) *Notification {
	return &Notification{
		UserID: userID,
		Type:   NotificationQuestCompleted,
		Title:  "🏁 ¡Completado!",
		Body:   fmt.Sprintf("Terminaste \"%s\" y ganaste %d XP", q.Title, xp),
		Data: map[string]string{
			"type":    string(NotificationQuestCompleted),
			"questId": q.ID.String(),
			"kind":    string(q.Kind),
			"xp":      fmt.Sprint(xp),
		},
	}
}

func StreakMilestone(userID uuid.UUID, days int) *Notification {
	return &Notification{
		UserID: userID,
		Type:   NotificationStreakMilestone,
		Title:  fmt.Sprintf("🔥 ¡%d días seguidos!", days),
		Body:   "Sigue así, mañana hay un nuevo reto",
		Data: map[string]string{
			"type":   string(NotificationStreakMilestone),
			"streak": fmt.Sprint(days),
		},
	}
}

// DailyPrompt is a broadcast, so it carries no user.
func DailyPrompt(c *challenge.Challenge) *Notification {
	return &Notification{
		Type:  NotificationDailyPrompt,
		Title: "📸 Reto del día",
		Body:  c.Title,
		Data: map[string]string{
			"type":        string(NotificationDailyPrompt),
			"challengeId": c.ID.String(),
		},
	}
}

// CrossedMilestone returns the milestone reached when a streak moves from
// before to after, or 0.
func CrossedMilestone(before, after int) int {
	for _, m := range StreakMilestones {
		if before < m && after >= m {
			return m
		}
	}
	return 0
}
