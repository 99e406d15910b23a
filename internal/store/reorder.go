package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"zen-journal-backend/internal/models"
)

// SwapCreatedAt exchanges the created_at of two records of the same user.
// created_at doubles as the manual ordering key, so swapping the two values
// swaps their positions in every created_at-ordered list. Both reads and
// both writes run in one transaction.
func (s *Store) SwapCreatedAt(ctx context.Context, table Table, userID, idA, idB string) error {
	if !table.valid() {
		return fmt.Errorf("swap: unknown table %q", table)
	}
	if idA == idB {
		_, err := s.lookupCreated(ctx, s.db.DB, table, userID, idA)
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		a, err := s.lookupCreated(ctx, tx, table, userID, idA)
		if err != nil {
			return err
		}
		b, err := s.lookupCreated(ctx, tx, table, userID, idB)
		if err != nil {
			return err
		}

		q := s.db.Rebind(`UPDATE ` + string(table) + ` SET created_at = ? WHERE id = ? AND user_id = ?`)
		if _, err := tx.ExecContext(ctx, q, formatTS(b), idA, userID); err != nil {
			return fmt.Errorf("swap %s: %w", table, err)
		}
		if _, err := tx.ExecContext(ctx, q, formatTS(a), idB, userID); err != nil {
			return fmt.Errorf("swap %s: %w", table, err)
		}
		return nil
	})
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) lookupCreated(ctx context.Context, q queryer, table Table, userID, id string) (time.Time, error) {
	var created time.Time
	err := q.QueryRowContext(ctx,
		s.db.Rebind(`SELECT created_at FROM `+string(table)+` WHERE id = ? AND user_id = ?`), id, userID,
	).Scan(scanTS(&created))
	if err == sql.ErrNoRows {
		return time.Time{}, models.ErrNotFound
	}
	return created, err
}
