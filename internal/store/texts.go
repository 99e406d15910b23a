package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"zen-journal-backend/internal/models"
)

// Notes and health mentions share one row shape; models.HealthMention
// converts to and from models.Note.

const textColumns = `id, user_id, journal_entry_id, content, created_at`

func (s *Store) InsertNotes(ctx context.Context, notes []models.Note) ([]models.Note, error) {
	return s.insertTexts(ctx, TableNotes, notes)
}

func (s *Store) ListNotes(ctx context.Context, userID string, opts ListOptions) ([]models.Note, error) {
	return s.listTexts(ctx, TableNotes, userID, opts)
}

func (s *Store) UpdateNote(ctx context.Context, userID, id string, patch models.ContentPatch) error {
	return s.updateText(ctx, TableNotes, userID, id, patch)
}

func (s *Store) DeleteNote(ctx context.Context, userID, id string) error {
	return s.remove(ctx, TableNotes, userID, id)
}

func (s *Store) InsertHealthMentions(ctx context.Context, mentions []models.HealthMention) ([]models.HealthMention, error) {
	in := make([]models.Note, len(mentions))
	for i, m := range mentions {
		in[i] = models.Note(m)
	}
	stored, err := s.insertTexts(ctx, TableHealthMentions, in)
	if err != nil {
		return nil, err
	}
	out := make([]models.HealthMention, len(stored))
	for i, n := range stored {
		out[i] = models.HealthMention(n)
	}
	return out, nil
}

func (s *Store) ListHealthMentions(ctx context.Context, userID string, opts ListOptions) ([]models.HealthMention, error) {
	rows, err := s.listTexts(ctx, TableHealthMentions, userID, opts)
	if err != nil {
		return nil, err
	}
	out := make([]models.HealthMention, len(rows))
	for i, n := range rows {
		out[i] = models.HealthMention(n)
	}
	return out, nil
}

func (s *Store) UpdateHealthMention(ctx context.Context, userID, id string, patch models.ContentPatch) error {
	return s.updateText(ctx, TableHealthMentions, userID, id, patch)
}

func (s *Store) DeleteHealthMention(ctx context.Context, userID, id string) error {
	return s.remove(ctx, TableHealthMentions, userID, id)
}

func (s *Store) insertTexts(ctx context.Context, table Table, recs []models.Note) ([]models.Note, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	created := s.stamps(len(recs))
	out := make([]models.Note, len(recs))

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, s.db.Rebind(`
			INSERT INTO `+string(table)+` (`+textColumns+`)
			VALUES (?, ?, ?, ?, ?)
		`))
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, r := range recs {
			r.ID = newID()
			r.Content = strings.TrimSpace(r.Content)
			if r.CreatedAt.IsZero() {
				r.CreatedAt = batchStamp(created, i)
			}
			if r.Content == "" {
				return fmt.Errorf("%s %d: %w: empty content", table, i, models.ErrInvalidInput)
			}
			if _, err := stmt.ExecContext(ctx, r.ID, r.UserID, nullable(r.JournalEntryID), r.Content, formatTS(r.CreatedAt)); err != nil {
				return fmt.Errorf("%s %d: %w", table, i, err)
			}
			out[i] = r
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}
	return out, nil
}

func (s *Store) listTexts(ctx context.Context, table Table, userID string, opts ListOptions) ([]models.Note, error) {
	rows, err := s.query(ctx, `SELECT `+textColumns+` FROM `+string(table)+` WHERE user_id = ?`+createdOrder(opts)+limitClause(opts), userID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	result := []models.Note{}
	for rows.Next() {
		var n models.Note
		var entryID sql.NullString
		if err := rows.Scan(&n.ID, &n.UserID, &entryID, &n.Content, scanTS(&n.CreatedAt)); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		n.JournalEntryID = fromNull(entryID)
		result = append(result, n)
	}
	return result, rows.Err()
}

func (s *Store) updateText(ctx context.Context, table Table, userID, id string, patch models.ContentPatch) error {
	var sets []string
	var args []any
	if patch.Content != nil {
		content := strings.TrimSpace(*patch.Content)
		if content == "" {
			return fmt.Errorf("update %s: %w", table, models.ErrEmptyContent)
		}
		sets = append(sets, "content = ?")
		args = append(args, content)
	}
	return s.update(ctx, table, userID, id, sets, args)
}
