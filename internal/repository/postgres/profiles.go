package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"snapQuestAPI/internal/apperror"
	"snapQuestAPI/internal/profile"
	"snapQuestAPI/internal/repository"
)

func (s *Store) UpsertProfile(ctx context.Context, req *profile.CreateProfileRequest) (*profile.Profile, error) {
	if req.ClerkID == "" {
		return nil, fmt.Errorf("clerk id is required: %w", apperror.ErrInvalidInput)
	}

	query := `
	INSERT INTO profiles (clerk_id, username, display_name, image_url)
	VALUES ($1, $2, NULLIF($3, ''), $4)
	ON CONFLICT (clerk_id) DO UPDATE SET
		username = EXCLUDED.username,
		display_name = EXCLUDED.display_name,
		image_url = EXCLUDED.image_url,
		updated_at = NOW()
	RETURNING ` + profileColumns

	p, err := scanProfile(s.db.QueryRow(ctx, query, req.ClerkID, req.Username, req.DisplayName, req.ImageURL))
	if err != nil {
		return nil, mapErr(err, "failed to upsert profile")
	}
	return p, nil
}

func (s *Store) UpdateProfileByClerkID(ctx context.Context, clerkID string, req *profile.UpdateProfileRequest) (*profile.Profile, error) {
	query := `
	UPDATE profiles SET
		username = COALESCE(NULLIF($2, ''), username),
		display_name = COALESCE(NULLIF($3, ''), display_name),
		image_url = COALESCE(NULLIF($4, ''), image_url),
		updated_at = NOW()
	WHERE clerk_id = $1
	RETURNING ` + profileColumns

	p, err := scanProfile(s.db.QueryRow(ctx, query, clerkID, req.Username, req.DisplayName, req.ImageURL))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("profile for clerk id %s", clerkID))
	}
	return p, nil
}

func (s *Store) DeleteProfileByClerkID(ctx context.Context, clerkID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM profiles WHERE clerk_id = $1`, clerkID)
	if err != nil {
		return mapErr(err, "failed to delete profile")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("profile for clerk id %s: %w", clerkID, apperror.ErrNotFound)
	}
	return nil
}

func (s *Store) GetProfile(ctx context.Context, id uuid.UUID) (*profile.Profile, error) {
	return getProfile(ctx, s.db, id)
}

func (s *Store) GetProfileByClerkID(ctx context.Context, clerkID string) (*profile.Profile, error) {
	p, err := scanProfile(s.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE clerk_id = $1`, clerkID))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("profile for clerk id %s", clerkID))
	}
	return p, nil
}

func (s *Store) AddXP(ctx context.Context, id uuid.UUID, amount int) (*profile.Profile, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("xp amount must be positive, got %d: %w", amount, apperror.ErrInvalidInput)
	}

	var out *profile.Profile
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if err := addXP(ctx, tx, id, amount); err != nil {
			return err
		}
		p, err := getProfile(ctx, tx, id)
		out = p
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) AdvanceStreak(ctx context.Context, id uuid.UUID, today time.Time) (*repository.StreakOutcome, error) {
	out := &repository.StreakOutcome{}
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		before, err := lockProfile(ctx, tx, id)
		if err != nil {
			return err
		}
		out.StreakBefore = before

		if err := advanceStreak(ctx, tx, id, today); err != nil {
			return err
		}
		out.Profile, err = getProfile(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
