package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"snapQuestAPI/internal/apperror"
	"snapQuestAPI/internal/badge"
)

const badgeColumns = `id, slug, name, description, requirement_type, requirement_value, icon, color, created_at`

func (s *Store) ListBadges(ctx context.Context) ([]*badge.Badge, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+badgeColumns+`
		FROM badges
		ORDER BY requirement_type, requirement_value, slug
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}
	defer rows.Close()

	var out []*badge.Badge
	for rows.Next() {
		b := &badge.Badge{}
		var icon, color string
		if err := rows.Scan(&b.ID, &b.Slug, &b.Name, &b.Description, &b.RequirementType,
			&b.RequirementValue, &icon, &color, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan badge: %w", err)
		}
		b.Icon = badge.ParseIcon(icon)
		b.Color = badge.ParseColor(color)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) ListUserBadges(ctx context.Context, userID uuid.UUID) ([]*badge.UserBadge, error) {
	rows, err := s.db.Query(ctx, `
		SELECT user_id, badge_id, earned_at
		FROM user_badges
		WHERE user_id = $1
		ORDER BY earned_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user badges: %w", err)
	}
	defer rows.Close()

	var out []*badge.UserBadge
	for rows.Next() {
		ub := &badge.UserBadge{}
		if err := rows.Scan(&ub.UserID, &ub.BadgeID, &ub.EarnedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user badge: %w", err)
		}
		out = append(out, ub)
	}
	return out, rows.Err()
}

func (s *Store) AwardBadge(ctx context.Context, userID, badgeID uuid.UUID, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO user_badges (user_id, badge_id, earned_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, badge_id) DO NOTHING
	`, userID, badgeID, at)
	if err != nil {
		return false, mapErr(err, "failed to award badge")
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) GetBadgeMetrics(ctx context.Context, userID uuid.UUID) (badge.Metrics, error) {
	var (
		m       badge.Metrics
		longest *int
	)
	err := s.db.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM photos WHERE user_id = $1),
			(SELECT COALESCE(SUM(likes_count), 0) FROM photos WHERE user_id = $1),
			(SELECT COUNT(*) FROM photos WHERE user_id = $1 AND likes_count >= $2),
			(SELECT longest_streak FROM profiles WHERE id = $1),
			(SELECT COALESCE(MAX(n), 0) FROM (
				SELECT COUNT(*) AS n
				FROM photos p
				JOIN challenges c ON c.id = p.challenge_id
				WHERE p.user_id = $1 AND c.category <> ''
				GROUP BY c.category
			) themes)
	`, userID, badge.TopPhotoLikes).Scan(&m.PhotoCount, &m.LikesReceived, &m.TopPhotos, &longest, &m.MaxThemeRepeat)
	if err != nil {
		return badge.Metrics{}, fmt.Errorf("failed to compute badge metrics: %w", err)
	}
	if longest == nil {
		return badge.Metrics{}, fmt.Errorf("profile %s: %w", userID, apperror.ErrNotFound)
	}
	m.LongestStreak = *longest
	return m, nil
}

func (s *Store) UpsertBadge(ctx context.Context, b *badge.Badge) (*badge.Badge, error) {
	if !b.RequirementType.Valid() || b.RequirementValue <= 0 {
		return nil, fmt.Errorf("invalid badge requirement %s/%d: %w", b.RequirementType, b.RequirementValue, apperror.ErrInvalidInput)
	}

	out := &badge.Badge{}
	var icon, color string
	err := s.db.QueryRow(ctx, `
		INSERT INTO badges (slug, name, description, requirement_type, requirement_value, icon, color)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (slug) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			requirement_type = EXCLUDED.requirement_type,
			requirement_value = EXCLUDED.requirement_value,
			icon = EXCLUDED.icon,
			color = EXCLUDED.color
		RETURNING `+badgeColumns,
		b.Slug, b.Name, b.Description, string(b.RequirementType), b.RequirementValue,
		string(badge.ParseIcon(string(b.Icon))), string(badge.ParseColor(string(b.Color))),
	).Scan(&out.ID, &out.Slug, &out.Name, &out.Description, &out.RequirementType,
		&out.RequirementValue, &icon, &color, &out.CreatedAt)
	if err != nil {
		return nil, mapErr(err, "failed to upsert badge")
	}
	out.Icon = badge.ParseIcon(icon)
	out.Color = badge.ParseColor(color)
	return out, nil
}
