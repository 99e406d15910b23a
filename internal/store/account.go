package store

import (
	"context"
	"database/sql"
	"fmt"

	"zen-journal-backend/internal/models"
)

// Stats are the dashboard counters.
type Stats struct {
	TotalEntries   int `json:"total_entries"`
	CompletedTasks int `json:"completed_tasks"`
	TotalTasks     int `json:"total_tasks"`
	NotesCount     int `json:"notes_count"`
}

func (s *Store) Stats(ctx context.Context, userID string) (Stats, error) {
	var st Stats
	var completed sql.NullInt64
	err := s.queryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM journal_entries WHERE user_id = ?),
			(SELECT COUNT(*) FROM tasks WHERE user_id = ?),
			(SELECT SUM(CASE WHEN completed THEN 1 ELSE 0 END) FROM tasks WHERE user_id = ?),
			(SELECT COUNT(*) FROM notes WHERE user_id = ?)
	`, userID, userID, userID, userID).Scan(&st.TotalEntries, &st.TotalTasks, &completed, &st.NotesCount)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	st.CompletedTasks = int(completed.Int64)
	return st, nil
}

// PurgeUser deletes every record owned by the user in one transaction.
func (s *Store) PurgeUser(ctx context.Context, userID string) error {
	if userID == "" {
		return models.ErrNotFound
	}
	tables := []string{
		"analytics_events",
		"user_google_tokens",
		string(TableHealthMentions),
		string(TableNotes),
		string(TableCalendarEvents),
		string(TableTasks),
		string(TableJournalEntries),
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, t := range tables {
			if _, err := tx.ExecContext(ctx, s.db.Rebind(`DELETE FROM `+t+` WHERE user_id = ?`), userID); err != nil {
				return fmt.Errorf("purge %s: %w", t, err)
			}
		}
		return nil
	})
}
