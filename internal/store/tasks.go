package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"zen-journal-backend/internal/models"
)

const taskColumns = `id, user_id, journal_entry_id, title, completed, priority, created_at`

// InsertTasks writes the batch in one transaction: either every task is
// stored or none is. Zero-valued priorities default to medium; values
// outside the enum are rejected by the schema.
func (s *Store) InsertTasks(ctx context.Context, tasks []models.Task) ([]models.Task, error) {
	if len(tasks) == 0 {
		return nil, nil
	}
	created := s.stamps(len(tasks))
	out := make([]models.Task, len(tasks))

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, s.db.Rebind(`
			INSERT INTO tasks (`+taskColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`))
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, t := range tasks {
			t.ID = newID()
			t.Title = strings.TrimSpace(t.Title)
			if t.Priority == "" {
				t.Priority = models.PriorityMedium
			}
			if t.CreatedAt.IsZero() {
				t.CreatedAt = batchStamp(created, i)
			}
			if t.Title == "" {
				return fmt.Errorf("task %d: %w: empty title", i, models.ErrInvalidInput)
			}
			if _, err := stmt.ExecContext(ctx,
				t.ID, t.UserID, nullable(t.JournalEntryID), t.Title, t.Completed, string(t.Priority), formatTS(t.CreatedAt),
			); err != nil {
				return fmt.Errorf("task %d: %w", i, err)
			}
			out[i] = t
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("insert tasks: %w", err)
	}
	return out, nil
}

func (s *Store) GetTask(ctx context.Context, userID, id string) (models.Task, error) {
	row := s.queryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ? AND user_id = ?`, id, userID)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return models.Task{}, models.ErrNotFound
	}
	return t, err
}

func (s *Store) ListTasks(ctx context.Context, userID string, opts ListOptions) ([]models.Task, error) {
	rows, err := s.query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE user_id = ?`+createdOrder(opts)+limitClause(opts), userID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	result := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (s *Store) UpdateTask(ctx context.Context, userID, id string, patch models.TaskPatch) error {
	var sets []string
	var args []any
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return fmt.Errorf("update task: %w", models.ErrEmptyContent)
		}
		sets = append(sets, "title = ?")
		args = append(args, title)
	}
	if patch.Completed != nil {
		sets = append(sets, "completed = ?")
		args = append(args, *patch.Completed)
	}
	if patch.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, string(models.ParsePriority(string(*patch.Priority))))
	}
	return s.update(ctx, TableTasks, userID, id, sets, args)
}

// ToggleTask flips completed in a single statement.
func (s *Store) ToggleTask(ctx context.Context, userID, id string) (models.Task, error) {
	res, err := s.exec(ctx, `UPDATE tasks SET completed = NOT completed WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return models.Task{}, fmt.Errorf("toggle task: %w", err)
	}
	if err := affectedOrNotFound(res); err != nil {
		return models.Task{}, err
	}
	return s.GetTask(ctx, userID, id)
}

func (s *Store) DeleteTask(ctx context.Context, userID, id string) error {
	return s.remove(ctx, TableTasks, userID, id)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (models.Task, error) {
	var (
		t        models.Task
		entryID  sql.NullString
		priority string
	)
	if err := row.Scan(&t.ID, &t.UserID, &entryID, &t.Title, &t.Completed, &priority, scanTS(&t.CreatedAt)); err != nil {
		return models.Task{}, err
	}
	t.JournalEntryID = fromNull(entryID)
	t.Priority = models.Priority(priority)
	return t, nil
}
