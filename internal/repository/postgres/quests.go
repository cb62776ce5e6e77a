package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"snapQuestAPI/internal/apperror"
	"snapQuestAPI/internal/quest"
	"snapQuestAPI/internal/repository"
)

func (s *Store) GetQuest(ctx context.Context, id uuid.UUID) (*quest.Quest, error) {
	q := &quest.Quest{}
	err := s.db.QueryRow(ctx, `
		SELECT id, kind, title, description, starts_at, ends_at, created_at
		FROM quests WHERE id = $1
	`, id).Scan(&q.ID, &q.Kind, &q.Title, &q.Description, &q.StartsAt, &q.EndsAt, &q.CreatedAt)
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("quest %s", id))
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, quest_id, title, description, xp_reward, position
		FROM quest_tasks
		WHERE quest_id = $1
		ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list quest tasks: %w", err)
	}
	defer rows.Close()

	q.Tasks = []*quest.Task{}
	for rows.Next() {
		t := &quest.Task{}
		if err := rows.Scan(&t.ID, &t.QuestID, &t.Title, &t.Description, &t.XPReward, &t.Position); err != nil {
			return nil, fmt.Errorf("failed to scan quest task: %w", err)
		}
		q.Tasks = append(q.Tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read quest tasks: %w", err)
	}
	return q, nil
}

func (s *Store) GetTask(ctx context.Context, taskID uuid.UUID) (*quest.Task, error) {
	t := &quest.Task{}
	err := s.db.QueryRow(ctx, `
		SELECT id, quest_id, title, description, xp_reward, position
		FROM quest_tasks WHERE id = $1
	`, taskID).Scan(&t.ID, &t.QuestID, &t.Title, &t.Description, &t.XPReward, &t.Position)
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("quest task %s", taskID))
	}
	return t, nil
}

func (s *Store) GetProgress(ctx context.Context, userID, questID uuid.UUID) (*quest.Progress, error) {
	return getProgress(ctx, s.db, userID, questID)
}

func getProgress(ctx context.Context, q querier, userID, questID uuid.UUID) (*quest.Progress, error) {
	p := &quest.Progress{UserID: userID, QuestID: questID, CompletedTasks: []uuid.UUID{}}
	err := q.QueryRow(ctx, `
		SELECT total_xp_earned, started_at, completed_at
		FROM quest_progress
		WHERE user_id = $1 AND quest_id = $2
	`, userID, questID).Scan(&p.TotalXPEarned, &p.StartedAt, &p.CompletedAt)
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("progress for quest %s", questID))
	}

	rows, err := q.Query(ctx, `
		SELECT task_id FROM quest_task_completions
		WHERE user_id = $1 AND quest_id = $2
		ORDER BY completed_at, task_id
	`, userID, questID)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed tasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan completed task: %w", err)
		}
		p.CompletedTasks = append(p.CompletedTasks, id)
	}
	return p, rows.Err()
}

// ensureProgress inserts the record if absent and reports whether it did.
func ensureProgress(ctx context.Context, q querier, userID, questID uuid.UUID, now time.Time) (bool, error) {
	tag, err := q.Exec(ctx, `
		INSERT INTO quest_progress (user_id, quest_id, started_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, quest_id) DO NOTHING
	`, userID, questID, now)
	if err != nil {
		return false, mapErr(err, "failed to start quest")
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) StartQuest(ctx context.Context, userID, questID uuid.UUID, now time.Time) (*quest.Progress, bool, error) {
	var (
		out     *quest.Progress
		created bool
	)
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		if created, err = ensureProgress(ctx, tx, userID, questID, now); err != nil {
			return err
		}
		out, err = getProgress(ctx, tx, userID, questID)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return out, created, nil
}

func (s *Store) CompleteTask(ctx context.Context, c repository.TaskCompletion) (*repository.TaskOutcome, error) {
	out := &repository.TaskOutcome{}

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var questID uuid.UUID
		err := tx.QueryRow(ctx, `SELECT quest_id FROM quest_tasks WHERE id = $1`, c.TaskID).Scan(&questID)
		if err != nil || questID != c.QuestID {
			if err == nil || errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("task %s in quest %s: %w", c.TaskID, c.QuestID, apperror.ErrNotFound)
			}
			return fmt.Errorf("failed to load quest task: %w", err)
		}

		before, err := lockProfile(ctx, tx, c.UserID)
		if err != nil {
			return err
		}
		out.StreakBefore = before

		if _, err := ensureProgress(ctx, tx, c.UserID, c.QuestID, c.Now); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `
			INSERT INTO quest_task_completions (user_id, task_id, quest_id, xp_earned, completed_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (user_id, task_id) DO NOTHING
		`, c.UserID, c.TaskID, c.QuestID, c.XPReward, c.Now)
		if err != nil {
			return mapErr(err, "failed to record task completion")
		}
		out.Credited = tag.RowsAffected() == 1

		if out.Credited {
			_, err = tx.Exec(ctx, `
				UPDATE quest_progress SET total_xp_earned = total_xp_earned + $3
				WHERE user_id = $1 AND quest_id = $2
			`, c.UserID, c.QuestID, c.XPReward)
			if err != nil {
				return mapErr(err, "failed to update quest progress")
			}

			var done int
			err = tx.QueryRow(ctx, `
				SELECT COUNT(*) FROM quest_task_completions
				WHERE user_id = $1 AND quest_id = $2
			`, c.UserID, c.QuestID).Scan(&done)
			if err != nil {
				return fmt.Errorf("failed to count completed tasks: %w", err)
			}

			if c.TotalTasks > 0 && done >= c.TotalTasks {
				tag, err := tx.Exec(ctx, `
					UPDATE quest_progress SET completed_at = $3
					WHERE user_id = $1 AND quest_id = $2 AND completed_at IS NULL
				`, c.UserID, c.QuestID, c.Now)
				if err != nil {
					return mapErr(err, "failed to complete quest")
				}
				out.QuestCompleted = tag.RowsAffected() == 1
			}

			if err := credit(ctx, tx, c.UserID, c.XPReward, c.Today); err != nil {
				return err
			}
		}

		if c.Photo != nil {
			ph := *c.Photo
			ph.XPEarned = 0
			if out.Credited {
				ph.XPEarned = c.XPReward
			}
			stored, err := insertPhoto(ctx, tx, &ph)
			if err != nil {
				return err
			}
			out.Photo = stored

			if out.Credited {
				_, err = tx.Exec(ctx, `
					UPDATE quest_task_completions SET photo_id = $3
					WHERE user_id = $1 AND task_id = $2
				`, c.UserID, c.TaskID, stored.ID)
				if err != nil {
					return mapErr(err, "failed to link task photo")
				}
			}
		}

		if out.Progress, err = getProgress(ctx, tx, c.UserID, c.QuestID); err != nil {
			return err
		}
		out.Profile, err = getProfile(ctx, tx, c.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) UpsertQuest(ctx context.Context, q *quest.Quest) (*quest.Quest, error) {
	if q.Kind != quest.KindHunt && q.Kind != quest.KindEvent {
		return nil, fmt.Errorf("invalid quest kind %q: %w", q.Kind, apperror.ErrInvalidInput)
	}

	var questID uuid.UUID
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO quests (kind, title, description, starts_at, ends_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (kind, title) DO UPDATE SET
				description = EXCLUDED.description,
				starts_at = EXCLUDED.starts_at,
				ends_at = EXCLUDED.ends_at
			RETURNING id
		`, string(q.Kind), q.Title, q.Description, q.StartsAt, q.EndsAt).Scan(&questID)
		if err != nil {
			return mapErr(err, "failed to upsert quest")
		}

		for i, t := range q.Tasks {
			_, err := tx.Exec(ctx, `
				INSERT INTO quest_tasks (quest_id, title, description, xp_reward, position)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (quest_id, position) DO UPDATE SET
					title = EXCLUDED.title,
					description = EXCLUDED.description,
					xp_reward = EXCLUDED.xp_reward
			`, questID, t.Title, t.Description, t.XPReward, i+1)
			if err != nil {
				return mapErr(err, fmt.Sprintf("failed to upsert task %q", t.Title))
			}
		}

		_, err = tx.Exec(ctx, `DELETE FROM quest_tasks WHERE quest_id = $1 AND position > $2`, questID, len(q.Tasks))
		if err != nil {
			return mapErr(err, "failed to trim quest tasks")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetQuest(ctx, questID)
}
