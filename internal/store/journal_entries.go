package store

import (
	"context"
	"fmt"
	"strings"

	"zen-journal-backend/internal/models"
)

func (s *Store) InsertJournalEntry(ctx context.Context, userID, content string) (models.JournalEntry, error) {
	if strings.TrimSpace(content) == "" {
		return models.JournalEntry{}, models.ErrEmptyContent
	}
	e := models.JournalEntry{
		ID:        newID(),
		UserID:    userID,
		Content:   content,
		CreatedAt: s.stamp(),
	}

	_, err := s.exec(ctx, `
		INSERT INTO journal_entries (id, user_id, content, created_at)
		VALUES (?, ?, ?, ?)
	`, e.ID, e.UserID, e.Content, formatTS(e.CreatedAt))
	if err != nil {
		return models.JournalEntry{}, fmt.Errorf("insert journal entry: %w", err)
	}
	return e, nil
}

func (s *Store) ListJournalEntries(ctx context.Context, userID string, opts ListOptions) ([]models.JournalEntry, error) {
	rows, err := s.query(ctx, `
		SELECT id, user_id, content, created_at
		FROM journal_entries
		WHERE user_id = ?`+createdOrder(opts)+limitClause(opts), userID)
	if err != nil {
		return nil, fmt.Errorf("list journal entries: %w", err)
	}
	defer rows.Close()

	result := []models.JournalEntry{}
	for rows.Next() {
		var e models.JournalEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Content, scanTS(&e.CreatedAt)); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// DeleteJournalEntry leaves derived records in place; they keep their
// journal_entry_id and stay visible to the owner.
func (s *Store) DeleteJournalEntry(ctx context.Context, userID, id string) error {
	return s.remove(ctx, TableJournalEntries, userID, id)
}
