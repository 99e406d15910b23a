package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"zen-journal-backend/internal/models"
)

const eventColumns = `id, user_id, journal_entry_id, title, event_date, event_time, created_at, external_calendar_id, external_sync_enabled`

func (s *Store) InsertEvents(ctx context.Context, events []models.CalendarEvent) ([]models.CalendarEvent, error) {
	if len(events) == 0 {
		return nil, nil
	}
	created := s.stamps(len(events))
	out := make([]models.CalendarEvent, len(events))

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, s.db.Rebind(`
			INSERT INTO calendar_events (`+eventColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`))
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, e := range events {
			e.ID = newID()
			e.Title = strings.TrimSpace(e.Title)
			if e.CreatedAt.IsZero() {
				e.CreatedAt = batchStamp(created, i)
			}
			if e.Title == "" {
				return fmt.Errorf("event %d: %w: empty title", i, models.ErrInvalidInput)
			}
			if e.EventDate != nil && !models.ValidDate(*e.EventDate) {
				return fmt.Errorf("event %d: %w: date %q", i, models.ErrInvalidInput, *e.EventDate)
			}
			if e.EventTime != nil {
				tm, ok := models.NormalizeTime(*e.EventTime)
				if !ok {
					return fmt.Errorf("event %d: %w: time %q", i, models.ErrInvalidInput, *e.EventTime)
				}
				e.EventTime = &tm
			}
			if _, err := stmt.ExecContext(ctx,
				e.ID, e.UserID, nullable(e.JournalEntryID), e.Title,
				nullable(e.EventDate), nullable(e.EventTime), formatTS(e.CreatedAt),
				nullable(e.ExternalCalendarID), e.ExternalSyncEnabled,
			); err != nil {
				return fmt.Errorf("event %d: %w", i, err)
			}
			out[i] = e
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("insert events: %w", err)
	}
	return out, nil
}

func (s *Store) GetEvent(ctx context.Context, userID, id string) (models.CalendarEvent, error) {
	row := s.queryRow(ctx, `SELECT `+eventColumns+` FROM calendar_events WHERE id = ? AND user_id = ?`, id, userID)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return models.CalendarEvent{}, models.ErrNotFound
	}
	return e, err
}

// ListEvents orders by date and time with undated events last.
func (s *Store) ListEvents(ctx context.Context, userID string, opts ListOptions) ([]models.CalendarEvent, error) {
	order := ` ORDER BY event_date ASC NULLS LAST, event_time ASC NULLS LAST, created_at ASC, id ASC`
	if opts.Order == OrderDesc {
		order = ` ORDER BY event_date DESC NULLS LAST, event_time DESC NULLS LAST, created_at DESC, id DESC`
	}
	rows, err := s.query(ctx, `SELECT `+eventColumns+` FROM calendar_events WHERE user_id = ?`+order+limitClause(opts), userID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	result := []models.CalendarEvent{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (s *Store) UpdateEvent(ctx context.Context, userID, id string, patch models.EventPatch) error {
	var sets []string
	var args []any
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return fmt.Errorf("update event: %w", models.ErrEmptyContent)
		}
		sets = append(sets, "title = ?")
		args = append(args, title)
	}
	switch {
	case patch.ClearDate:
		sets = append(sets, "event_date = NULL")
	case patch.EventDate != nil:
		if !models.ValidDate(*patch.EventDate) {
			return fmt.Errorf("update event: %w: date %q", models.ErrInvalidInput, *patch.EventDate)
		}
		sets = append(sets, "event_date = ?")
		args = append(args, *patch.EventDate)
	}
	switch {
	case patch.ClearTime:
		sets = append(sets, "event_time = NULL")
	case patch.EventTime != nil:
		tm, ok := models.NormalizeTime(*patch.EventTime)
		if !ok {
			return fmt.Errorf("update event: %w: time %q", models.ErrInvalidInput, *patch.EventTime)
		}
		sets = append(sets, "event_time = ?")
		args = append(args, tm)
	}
	return s.update(ctx, TableCalendarEvents, userID, id, sets, args)
}

// SetExternalSync stores the provider's event id on the local event.
func (s *Store) SetExternalSync(ctx context.Context, userID, id string, externalID *string) error {
	return s.update(ctx, TableCalendarEvents, userID, id,
		[]string{"external_calendar_id = ?", "external_sync_enabled = ?"},
		[]any{nullable(externalID), externalID != nil},
	)
}

func (s *Store) DeleteEvent(ctx context.Context, userID, id string) error {
	return s.remove(ctx, TableCalendarEvents, userID, id)
}

func scanEvent(row scanner) (models.CalendarEvent, error) {
	var e models.CalendarEvent
	var entryID, date, tm, extID sql.NullString
	if err := row.Scan(&e.ID, &e.UserID, &entryID, &e.Title, &date, &tm, scanTS(&e.CreatedAt), &extID, &e.ExternalSyncEnabled); err != nil {
		return models.CalendarEvent{}, err
	}
	e.JournalEntryID = fromNull(entryID)
	e.EventDate = fromNull(date)
	e.EventTime = fromNull(tm)
	e.ExternalCalendarID = fromNull(extID)
	return e, nil
}
