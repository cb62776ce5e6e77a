package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"snapQuestAPI/internal/apperror"
	"snapQuestAPI/internal/challenge"
	"snapQuestAPI/internal/repository"
)

const challengeColumns = `id, title, description, category, difficulty, xp_reward, day_number, is_daily, created_by, created_at`

func scanChallenge(row pgx.Row) (*challenge.Challenge, error) {
	c := &challenge.Challenge{}
	err := row.Scan(
		&c.ID,
		&c.Title,
		&c.Description,
		&c.Category,
		&c.Difficulty,
		&c.XPReward,
		&c.DayNumber,
		&c.IsDaily,
		&c.CreatedBy,
		&c.CreatedAt,
	)
	return c, err
}

func (s *Store) GetChallenge(ctx context.Context, id uuid.UUID) (*challenge.Challenge, error) {
	c, err := scanChallenge(s.db.QueryRow(ctx, `SELECT `+challengeColumns+` FROM challenges WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("challenge %s", id))
	}
	return c, nil
}

func (s *Store) ListDailyChallenges(ctx context.Context) ([]*challenge.Challenge, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+challengeColumns+`
		FROM challenges
		WHERE is_daily
		ORDER BY day_number, created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily challenges: %w", err)
	}
	return collectChallenges(rows)
}

func (s *Store) ListChallenges(ctx context.Context, f repository.ChallengeFilter) ([]*challenge.Challenge, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+challengeColumns+`
		FROM challenges
		WHERE ($1 = '' OR LOWER(category) = LOWER($1))
		  AND ($2 = '' OR difficulty = $2)
		ORDER BY day_number, created_at
		LIMIT $3 OFFSET $4
	`, f.Category, string(f.Difficulty), limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	return collectChallenges(rows)
}

func collectChallenges(rows pgx.Rows) ([]*challenge.Challenge, error) {
	defer rows.Close()

	var out []*challenge.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read challenges: %w", err)
	}
	return out, nil
}

func (s *Store) UpsertChallenge(ctx context.Context, c *challenge.Challenge) (*challenge.Challenge, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, apperror.ErrInvalidInput)
	}

	query := `
	INSERT INTO challenges (title, description, category, difficulty, xp_reward, day_number, is_daily, created_by)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (title) DO UPDATE SET
		description = EXCLUDED.description,
		category = EXCLUDED.category,
		difficulty = EXCLUDED.difficulty,
		xp_reward = EXCLUDED.xp_reward,
		day_number = EXCLUDED.day_number,
		is_daily = EXCLUDED.is_daily
	RETURNING ` + challengeColumns

	out, err := scanChallenge(s.db.QueryRow(ctx, query,
		c.Title,
		c.Description,
		c.Category,
		string(c.Difficulty),
		c.XPReward,
		c.DayNumber,
		c.IsDaily,
		c.CreatedBy,
	))
	if err != nil {
		return nil, mapErr(err, "failed to upsert challenge")
	}
	return out, nil
}
