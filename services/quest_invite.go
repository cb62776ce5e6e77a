package services

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"

	"snapQuestAPI/internal/apperror"
)

const (
	questInviteLink = "snapquest://quests/%s"
	qrSize          = 256
)

// QuestInvite is a deep link to a quest plus the QR code that encodes it,
// for posters at events and for sharing hunts.
type QuestInvite struct {
	QuestID      uuid.UUID `json:"questId"`
	Link         string    `json:"link"`
	QrCodeBase64 string    `json:"qrCodeBase64"`
}

// Invite builds the invite for questID. Upcoming quests can be shared;
// ended ones cannot.
func (s *QuestService) Invite(ctx context.Context, questID uuid.UUID) (*QuestInvite, error) {
	q, err := s.Get(ctx, questID)
	if err != nil {
		return nil, err
	}
	if q.EndsAt != nil && s.cal.Now().After(*q.EndsAt) {
		return nil, fmt.Errorf("quest %q has ended: %w", q.Title, apperror.ErrForbidden)
	}

	link := fmt.Sprintf(questInviteLink, q.ID)
	png, err := qrcode.Encode(link, qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR png: %w", err)
	}

	return &QuestInvite{
		QuestID:      q.ID,
		Link:         link,
		QrCodeBase64: base64.StdEncoding.EncodeToString(png),
	}, nil
}
