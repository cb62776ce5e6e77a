// Package postgres is the pgx-backed Store. XP and streak mutations run as
// single UPDATE statements inside transactions that first lock the profile
// row, so concurrent submissions for one user serialize in the database.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"snapQuestAPI/internal/apperror"
	"snapQuestAPI/internal/profile"
	"snapQuestAPI/internal/repository"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db *pgxpool.Pool
}

var _ repository.Store = (*Store)(nil)

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Connect opens a pool with the same sizing the API has always used.
func Connect(ctx context.Context, dbURL string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// inTx runs fn in a transaction and commits when it returns nil.
func (s *Store) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// mapErr turns driver errors into apperror sentinels.
func mapErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, apperror.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w", what, apperror.ErrConflict)
		case "23503":
			return fmt.Errorf("%s: referenced row missing: %w", what, apperror.ErrNotFound)
		case "23514":
			return fmt.Errorf("%s: %s: %w", what, pgErr.ConstraintName, apperror.ErrInvalidInput)
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

func date(t time.Time) pgtype.Date {
	return pgtype.Date{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), Valid: true}
}

func nullableID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

const profileColumns = `id, clerk_id, username, display_name, image_url, xp, level, streak,
	longest_streak, last_activity_date, created_at, updated_at`

func scanProfile(row pgx.Row) (*profile.Profile, error) {
	p := &profile.Profile{}
	var last pgtype.Date
	err := row.Scan(
		&p.ID,
		&p.ClerkID,
		&p.Username,
		&p.DisplayName,
		&p.ImageURL,
		&p.XP,
		&p.Level,
		&p.Streak,
		&p.LongestStreak,
		&last,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if last.Valid {
		d := time.Date(last.Time.Year(), last.Time.Month(), last.Time.Day(), 0, 0, 0, 0, time.UTC)
		p.LastActivityDate = &d
	}
	return p, nil
}

func getProfile(ctx context.Context, q querier, id uuid.UUID) (*profile.Profile, error) {
	p, err := scanProfile(q.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("profile %s", id))
	}
	return p, nil
}

// lockProfile takes the row lock that serializes credits for one user and
// returns the streak before this transaction touches it.
func lockProfile(ctx context.Context, tx pgx.Tx, id uuid.UUID) (int, error) {
	var streak int
	err := tx.QueryRow(ctx, `SELECT streak FROM profiles WHERE id = $1 FOR UPDATE`, id).Scan(&streak)
	if err != nil {
		return 0, mapErr(err, fmt.Sprintf("profile %s", id))
	}
	return streak, nil
}

// credit applies amount XP and one activity on today. Caller holds the lock.
func credit(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int, today time.Time) error {
	if amount > 0 {
		if err := addXP(ctx, tx, id, amount); err != nil {
			return err
		}
	}
	return advanceStreak(ctx, tx, id, today)
}

func addXP(ctx context.Context, q querier, id uuid.UUID, amount int) error {
	var xp, level int
	err := q.QueryRow(ctx, `
		UPDATE profiles
		SET xp = xp + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING xp, level
	`, id, amount).Scan(&xp, &level)
	if err != nil {
		return mapErr(err, "failed to add xp")
	}

	if next := profile.LevelForXP(xp); next > level {
		_, err = q.Exec(ctx, `UPDATE profiles SET level = GREATEST(level, $2) WHERE id = $1`, id, next)
		if err != nil {
			return mapErr(err, "failed to update level")
		}
	}
	return nil
}

// streakCase mirrors profile.AdvanceStreak. $2 is today.
const streakCase = `CASE
		WHEN last_activity_date IS NULL THEN 1
		WHEN last_activity_date >= $2::date THEN streak
		WHEN last_activity_date = $2::date - 1 THEN streak + 1
		ELSE 1
	END`

func advanceStreak(ctx context.Context, q querier, id uuid.UUID, today time.Time) error {
	tag, err := q.Exec(ctx, `
		UPDATE profiles
		SET streak = `+streakCase+`,
			longest_streak = GREATEST(longest_streak, `+streakCase+`),
			last_activity_date = GREATEST(last_activity_date, $2::date),
			updated_at = NOW()
		WHERE id = $1
	`, id, date(today))
	if err != nil {
		return mapErr(err, "failed to advance streak")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("profile %s: %w", id, apperror.ErrNotFound)
	}
	return nil
}
