// Package store is the persistence gateway. Every read and write is scoped
// by the owning user; a record owned by someone else is reported as missing.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"zen-journal-backend/internal/db"
	"zen-journal-backend/internal/models"
)

type Table string

const (
	TableJournalEntries Table = "journal_entries"
	TableTasks          Table = "tasks"
	TableCalendarEvents Table = "calendar_events"
	TableNotes          Table = "notes"
	TableHealthMentions Table = "health_mentions"
)

func (t Table) valid() bool {
	switch t {
	case TableJournalEntries, TableTasks, TableCalendarEvents, TableNotes, TableHealthMentions:
		return true
	}
	return false
}

type Order int

const (
	OrderDefault Order = iota
	OrderAsc
	OrderDesc
)

func ParseOrder(s string) Order {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "ascending", "oldest":
		return OrderAsc
	case "desc", "descending", "newest":
		return OrderDesc
	}
	return OrderDefault
}

type ListOptions struct {
	Order Order
	Limit int
}

// Store implements the gateway on top of Postgres or SQLite.
type Store struct {
	db  *db.DB
	now func() time.Time

	mu   sync.Mutex
	last time.Time
}

func New(d *db.DB) *Store {
	return &Store{db: d, now: time.Now}
}

// SetClock replaces the time source used for created_at stamps.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Store) DB() *db.DB {
	return s.db
}

func (s *Store) stamp() time.Time {
	return s.stamps(1)[0]
}

// stamps returns n strictly increasing creation times, all later than any
// stamp handed out before. Distinct values keep created_at a total order,
// which the reorder swap relies on.
func (s *Store) stamps(n int) []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.now().UTC().Truncate(time.Microsecond)
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	out := make([]time.Time, n)
	for i := range out {
		out[i] = t.Add(time.Duration(i) * time.Microsecond)
	}
	s.last = out[n-1]
	return out
}

// batchStamp gives item i of an n-item batch its creation time. The first
// item gets the newest stamp so it leads newest-first lists.
func batchStamp(stamps []time.Time, i int) time.Time {
	return stamps[len(stamps)-1-i]
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

func (s *Store) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.db.Rebind(q), args...)
}

func (s *Store) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.db.Rebind(q), args...)
}

func (s *Store) queryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.db.Rebind(q), args...)
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func affectedOrNotFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// update applies SET clauses to one owned row. An empty patch still checks
// that the row exists for the user.
func (s *Store) update(ctx context.Context, table Table, userID, id string, sets []string, args []any) error {
	if len(sets) == 0 {
		var one int
		err := s.queryRow(ctx, `SELECT 1 FROM `+string(table)+` WHERE id = ? AND user_id = ?`, id, userID).Scan(&one)
		if err == sql.ErrNoRows {
			return models.ErrNotFound
		}
		return err
	}

	q := `UPDATE ` + string(table) + ` SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND user_id = ?`
	res, err := s.exec(ctx, q, append(args, id, userID)...)
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	return affectedOrNotFound(res)
}

func (s *Store) remove(ctx context.Context, table Table, userID, id string) error {
	res, err := s.exec(ctx, `DELETE FROM `+string(table)+` WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	return affectedOrNotFound(res)
}

func limitClause(opts ListOptions) string {
	if opts.Limit > 0 {
		return fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	return ""
}

func createdOrder(opts ListOptions) string {
	if opts.Order == OrderAsc {
		return " ORDER BY created_at ASC, id ASC"
	}
	return " ORDER BY created_at DESC, id DESC"
}
