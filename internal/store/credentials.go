package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"zen-journal-backend/internal/models"
)

func (s *Store) GetCredential(ctx context.Context, userID string) (models.CalendarCredential, error) {
	c := models.CalendarCredential{UserID: userID}
	err := s.queryRow(ctx, `
		SELECT access_token, refresh_token, token_expiry
		FROM user_google_tokens
		WHERE user_id = ?
	`, userID).Scan(&c.AccessToken, &c.RefreshToken, scanTS(&c.TokenExpiry))
	if err == sql.ErrNoRows {
		return models.CalendarCredential{}, models.ErrNotFound
	}
	if err != nil {
		return models.CalendarCredential{}, fmt.Errorf("get credential: %w", err)
	}
	return c, nil
}

// UpsertCredential keeps at most one credential per user.
func (s *Store) UpsertCredential(ctx context.Context, c models.CalendarCredential) error {
	_, err := s.exec(ctx, `
		INSERT INTO user_google_tokens (user_id, access_token, refresh_token, token_expiry)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = CASE WHEN EXCLUDED.refresh_token = '' THEN user_google_tokens.refresh_token ELSE EXCLUDED.refresh_token END,
			token_expiry = EXCLUDED.token_expiry
	`, c.UserID, c.AccessToken, c.RefreshToken, nullableTS(c.TokenExpiry))
	if err != nil {
		return fmt.Errorf("upsert credential: %w", err)
	}
	return nil
}

// UpdateCredentialToken stores a refreshed access token. An empty refresh
// token keeps the stored one.
func (s *Store) UpdateCredentialToken(ctx context.Context, userID, accessToken, refreshToken string, expiry time.Time) error {
	sets := []string{"access_token = ?", "token_expiry = ?"}
	args := []any{accessToken, nullableTS(expiry)}
	if refreshToken != "" {
		sets = append(sets, "refresh_token = ?")
		args = append(args, refreshToken)
	}
	q := `UPDATE user_google_tokens SET ` + strings.Join(sets, ", ") + ` WHERE user_id = ?`
	res, err := s.exec(ctx, q, append(args, userID)...)
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	return affectedOrNotFound(res)
}

func (s *Store) DeleteCredential(ctx context.Context, userID string) error {
	res, err := s.exec(ctx, `DELETE FROM user_google_tokens WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return affectedOrNotFound(res)
}
