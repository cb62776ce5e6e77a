package postgres

import (
	"context"
	"fmt"

	"snapQuestAPI/internal/profile"
)

func (s *Store) TopProfiles(ctx context.Context, limit int) ([]*profile.Profile, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+profileColumns+`
		FROM profiles
		ORDER BY xp DESC, created_at ASC, id ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch leaderboard: %w", err)
	}
	defer rows.Close()

	var out []*profile.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) CountProfilesAbove(ctx context.Context, xp int) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM profiles WHERE xp > $1`, xp).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count profiles above %d: %w", xp, err)
	}
	return n, nil
}

func (s *Store) CountProfiles(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count profiles: %w", err)
	}
	return n, nil
}
