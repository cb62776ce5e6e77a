package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"snapQuestAPI/internal/apperror"
	"snapQuestAPI/internal/photo"
	"snapQuestAPI/internal/repository"
)

const photoColumns = `id, user_id, target_kind, challenge_id, quest_task_id, image_url, xp_earned,
	likes_count, verification_status, confidence, matched_keyword, created_at`

func scanPhoto(row pgx.Row) (*photo.Photo, error) {
	ph := &photo.Photo{}
	var (
		kind        string
		challengeID *uuid.UUID
		taskID      *uuid.UUID
	)
	err := row.Scan(
		&ph.ID,
		&ph.UserID,
		&kind,
		&challengeID,
		&taskID,
		&ph.ImageURL,
		&ph.XPEarned,
		&ph.LikesCount,
		&ph.VerificationStatus,
		&ph.Confidence,
		&ph.MatchedKeyword,
		&ph.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	id := ""
	switch {
	case challengeID != nil:
		id = challengeID.String()
	case taskID != nil:
		id = taskID.String()
	default:
		// the referenced row was deleted
		kind = string(photo.TargetNone)
	}
	if ph.Target, err = photo.ParseTarget(kind, id); err != nil {
		return nil, err
	}
	return ph, nil
}

func insertPhoto(ctx context.Context, q querier, ph *photo.Photo) (*photo.Photo, error) {
	var challengeID, taskID *uuid.UUID
	switch {
	case ph.Target.Kind() == photo.TargetChallenge:
		challengeID = nullableID(ph.Target.ID())
	case ph.Target.IsQuestTask():
		taskID = nullableID(ph.Target.ID())
	}

	id := ph.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	out, err := scanPhoto(q.QueryRow(ctx, `
		INSERT INTO photos (id, user_id, target_kind, challenge_id, quest_task_id, image_url,
			xp_earned, verification_status, confidence, matched_keyword)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+photoColumns,
		id,
		ph.UserID,
		string(ph.Target.Kind()),
		challengeID,
		taskID,
		ph.ImageURL,
		ph.XPEarned,
		ph.VerificationStatus,
		ph.Confidence,
		ph.MatchedKeyword,
	))
	if err != nil {
		return nil, mapErr(err, "failed to insert photo")
	}
	return out, nil
}

func (s *Store) RecordSubmission(ctx context.Context, sub repository.NewSubmission) (*repository.SubmissionOutcome, error) {
	if sub.Photo == nil {
		return nil, fmt.Errorf("photo is required: %w", apperror.ErrInvalidInput)
	}
	if sub.Photo.Target.IsQuestTask() {
		return nil, fmt.Errorf("quest task photos are recorded through CompleteTask: %w", apperror.ErrInvalidInput)
	}

	out := &repository.SubmissionOutcome{}
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		before, err := lockProfile(ctx, tx, sub.Photo.UserID)
		if err != nil {
			return err
		}
		out.StreakBefore = before

		ph := *sub.Photo
		ph.XPEarned = 0

		if ph.Target.Kind() == photo.TargetChallenge {
			challengeID := ph.Target.ID()
			var exists bool
			err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM challenges WHERE id = $1)`, challengeID).Scan(&exists)
			if err != nil {
				return fmt.Errorf("failed to check challenge: %w", err)
			}
			if !exists {
				return fmt.Errorf("challenge %s: %w", challengeID, apperror.ErrNotFound)
			}

			if sub.XPReward > 0 {
				tag, err := tx.Exec(ctx, `
					INSERT INTO challenge_completions (user_id, challenge_id, completed_on)
					VALUES ($1, $2, $3::date)
					ON CONFLICT (user_id, challenge_id, completed_on) DO NOTHING
				`, ph.UserID, challengeID, date(sub.Today))
				if err != nil {
					return mapErr(err, "failed to record challenge completion")
				}
				out.Credited = tag.RowsAffected() == 1
			}
			if out.Credited {
				ph.XPEarned = sub.XPReward
			}
		}

		stored, err := insertPhoto(ctx, tx, &ph)
		if err != nil {
			return err
		}
		out.Photo = stored

		if out.Credited {
			_, err = tx.Exec(ctx, `
				UPDATE challenge_completions SET photo_id = $3
				WHERE user_id = $1 AND challenge_id = $2 AND completed_on = $4::date
			`, ph.UserID, ph.Target.ID(), stored.ID, date(sub.Today))
			if err != nil {
				return mapErr(err, "failed to link completion photo")
			}
			if err := credit(ctx, tx, ph.UserID, sub.XPReward, sub.Today); err != nil {
				return err
			}
		}

		out.Profile, err = getProfile(ctx, tx, ph.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetPhoto(ctx context.Context, id uuid.UUID) (*photo.Photo, error) {
	ph, err := scanPhoto(s.db.QueryRow(ctx, `SELECT `+photoColumns+` FROM photos WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("photo %s", id))
	}
	return ph, nil
}

func (s *Store) ListUserPhotos(ctx context.Context, userID uuid.UUID, limit int) ([]*photo.Photo, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+photoColumns+`
		FROM photos
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	defer rows.Close()

	var out []*photo.Photo
	for rows.Next() {
		ph, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		out = append(out, ph)
	}
	return out, rows.Err()
}

func (s *Store) LikePhoto(ctx context.Context, userID, photoID uuid.UUID) (*photo.LikeResult, error) {
	return s.setLike(ctx, userID, photoID, true)
}

func (s *Store) UnlikePhoto(ctx context.Context, userID, photoID uuid.UUID) (*photo.LikeResult, error) {
	return s.setLike(ctx, userID, photoID, false)
}

func (s *Store) setLike(ctx context.Context, userID, photoID uuid.UUID, liked bool) (*photo.LikeResult, error) {
	res := &photo.LikeResult{PhotoID: photoID, State: photo.LikeStateOf(liked)}

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `SELECT likes_count FROM photos WHERE id = $1 FOR UPDATE`, photoID).Scan(&res.LikesCount)
		if err != nil {
			return mapErr(err, fmt.Sprintf("photo %s", photoID))
		}

		var (
			query string
			delta int
		)
		if liked {
			query = `INSERT INTO photo_likes (user_id, photo_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
			delta = 1
		} else {
			query = `DELETE FROM photo_likes WHERE user_id = $1 AND photo_id = $2`
			delta = -1
		}

		tag, err := tx.Exec(ctx, query, userID, photoID)
		if err != nil {
			return mapErr(err, "failed to update like")
		}
		if tag.RowsAffected() == 0 {
			return nil
		}

		return tx.QueryRow(ctx, `
			UPDATE photos SET likes_count = likes_count + $2
			WHERE id = $1
			RETURNING likes_count
		`, photoID, delta).Scan(&res.LikesCount)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
