package main

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zen-journal-backend/internal/auth"
	"zen-journal-backend/internal/config"
	"zen-journal-backend/internal/db"
	"zen-journal-backend/internal/store"
	"zen-journal-backend/internal/views"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	cfg.DBPath = filepath.Join(t.TempDir(), "api.db")
	cfg.JWTSecret = "test-secret"
	return cfg
}

func TestRoutes(t *testing.T) {
	cfg := testConfig(t)
	d, err := db.Connect(db.DriverSQLite, cfg.DBPath)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	require.NoError(t, d.Migrate(context.Background()))

	h, err := newHandler(context.Background(), cfg, store.New(d))
	require.NoError(t, err)
	token, err := auth.GenerateToken([]byte(cfg.JWTSecret), "alice", time.Hour)
	require.NoError(t, err)

	do := func(method, path, body string, authed bool) *httptest.ResponseRecorder {
		r := httptest.NewRequest(method, path, strings.NewReader(body))
		if authed {
			r.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}

	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/health", "", false).Code)
	assert.Equal(t, http.StatusUnauthorized, do(http.MethodGet, "/entities/tasks", "", false).Code)

	w := do(http.MethodPost, "/entities/tasks", `{"title":"water plants"}`, true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(http.MethodGet, "/entities/tasks", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "water plants")

	w = do(http.MethodPost, "/journal", `{"content":"   "}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "EmptyContent")

	w = do(http.MethodGet, "/calendar/status", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"connected":false}`, w.Body.String())

	assert.Equal(t, http.StatusNotFound, do(http.MethodGet, "/entities/widgets", "", true).Code)
}

func TestRefreshStream(t *testing.T) {
	sig := views.NewSignal()
	stream := refreshStream(context.Background(), sig)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stream(w, r.WithContext(auth.WithUserID(r.Context(), "alice")))
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	require.True(t, lines.Scan())
	assert.Equal(t, ": connected", lines.Text())

	sig.Notify("bob")
	sig.Notify("alice")
	for lines.Scan() {
		if lines.Text() == "" {
			continue
		}
		assert.Equal(t, "event: refresh", lines.Text())
		break
	}
}

func TestRefreshStreamEndsWithServer(t *testing.T) {
	serverCtx, stop := context.WithCancel(context.Background())
	stream := refreshStream(serverCtx, views.NewSignal())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stream(w, r.WithContext(auth.WithUserID(r.Context(), "alice")))
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	lines := bufio.NewScanner(resp.Body)
	require.True(t, lines.Scan())
	assert.Equal(t, ": connected", lines.Text())

	stop()
	for lines.Scan() {
	}
	assert.NoError(t, lines.Err())
	assert.NoError(t, ctx.Err(), "stream closed before the client gave up")
}
