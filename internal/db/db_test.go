package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	pg := &DB{Driver: DriverPostgres}
	assert.Equal(t, "SELECT 1 FROM tasks WHERE id = $1 AND user_id = $2", pg.Rebind("SELECT 1 FROM tasks WHERE id = ? AND user_id = ?"))

	lite := &DB{Driver: DriverSQLite}
	assert.Equal(t, "SELECT ?", lite.Rebind("SELECT ?"))
}

func TestConnectRejectsUnknownDriver(t *testing.T) {
	_, err := Connect("mysql", "whatever")
	require.Error(t, err)
}

func TestMigrateIsIdempotent(t *testing.T) {
	d, err := Connect(DriverSQLite, filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	ctx := context.Background()
	require.NoError(t, d.Migrate(ctx))
	require.NoError(t, d.Migrate(ctx))

	var n int
	require.NoError(t, d.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&n))
	assert.Zero(t, n)
}
