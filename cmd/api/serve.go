package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"zen-journal-backend/internal/ai"
	"zen-journal-backend/internal/analytics"
	"zen-journal-backend/internal/auth"
	"zen-journal-backend/internal/calendar"
	"zen-journal-backend/internal/config"
	"zen-journal-backend/internal/entities"
	"zen-journal-backend/internal/journal"
	"zen-journal-backend/internal/store"
	"zen-journal-backend/internal/views"
)

func addServe(root *cobra.Command, a *app) {
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			d, st, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer d.Close()
			log.Printf("[INFO] connected to %s", d.Driver)

			handler, err := newHandler(ctx, a.cfg, st)
			if err != nil {
				return err
			}
			return run(ctx, a.cfg.Addr, handler)
		},
	})
}

// newHandler wires every route. Everything except /health and the OAuth
// callback sits behind bearer auth. Refresh streams close when ctx ends.
func newHandler(ctx context.Context, cfg *config.Config, st *store.Store) (http.Handler, error) {
	secret := []byte(cfg.JWTSecret)
	mw := auth.New(secret)
	sig := views.NewSignal()
	rec := analytics.NewRecorder(st.DB())

	client := ai.New(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	pipeline := journal.New(ai.NewExtractor(client), st,
		journal.WithNotifier(sig),
		journal.WithRecorder(rec),
	)
	summarizer := ai.NewSummarizer(client)

	bridge, err := calendar.NewBridge(calendar.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		AuthURL:      cfg.GoogleAuthURL,
		TokenURL:     cfg.GoogleTokenURL,
		RedirectURL:  cfg.GoogleRedirectURL,
		APIBaseURL:   cfg.CalendarAPIURL,
		CalendarID:   cfg.CalendarID,
		TimeZone:     cfg.TimeZone,
	}, st)
	if err != nil {
		return nil, err
	}

	eh := entities.Handlers{Registry: entities.NewRegistry(st), Calendar: bridge, Notifier: sig, Recorder: rec}
	ch := calendar.Handlers{Bridge: bridge, Secret: secret, Notifier: sig, Recorder: rec, SuccessURL: cfg.CalendarSuccessURL}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("POST /journal", mw.Wrap(journal.SubmitHandler(pipeline)))
	mux.HandleFunc("GET /dashboard", mw.Wrap(journal.DashboardHandler(st, summarizer)))

	mux.HandleFunc("GET /entities/{type}", mw.Wrap(eh.List()))
	mux.HandleFunc("POST /entities/{type}", mw.Wrap(eh.Create()))
	mux.HandleFunc("PATCH /entities/{type}/{id}", mw.Wrap(eh.Update()))
	mux.HandleFunc("DELETE /entities/{type}/{id}", mw.Wrap(eh.Delete()))
	mux.HandleFunc("POST /entities/{type}/reorder", mw.Wrap(eh.Reorder()))
	mux.HandleFunc("POST /tasks/{id}/toggle", mw.Wrap(eh.Toggle()))

	mux.HandleFunc("POST /calendar/sync", mw.Wrap(ch.Sync()))
	mux.HandleFunc("GET /calendar/status", mw.Wrap(ch.Status()))
	mux.HandleFunc("GET /calendar/connect", mw.Wrap(ch.Connect()))
	mux.HandleFunc("GET /calendar/callback", ch.Callback())
	mux.HandleFunc("DELETE /calendar/credentials", mw.Wrap(ch.Disconnect()))

	mux.HandleFunc("GET /refresh/stream", mw.Wrap(refreshStream(ctx, sig)))
	mux.HandleFunc("POST /analytics/app-opened", mw.Wrap(analytics.AppOpenedHandler(rec)))
	mux.HandleFunc("POST /auth/logout", mw.Wrap(auth.LogoutHandler()))
	mux.HandleFunc("DELETE /account", mw.Wrap(auth.DeleteAccountHandler(st)))

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Session-Id", "X-Platform", "X-App-Version", "X-Device-Locale", "X-Source-Event-Key", "Idempotency-Key"},
		AllowCredentials: true,
	})
	handler := c.Handler(mux)

	if cfg.H2C {
		handler = h2c.NewHandler(handler, &http2.Server{})
	}
	return handler, nil
}

const keepAlive = 25 * time.Second

// refreshStream pushes a server-sent "refresh" event each time the caller's
// data changes. It returns when the request or the server's ctx is done.
func refreshStream(ctx context.Context, sig *views.Signal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		changed := make(chan struct{}, 1)
		cancel := sig.Subscribe(func(userID string) {
			if userID != uid {
				return
			}
			select {
			case changed <- struct{}{}:
			default:
			}
		})
		defer cancel()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		fmt.Fprint(w, ": connected\n\n")
		flusher.Flush()

		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case <-ctx.Done():
				return
			case <-changed:
				fmt.Fprint(w, "event: refresh\ndata: {}\n\n")
			case <-ticker.C:
				fmt.Fprint(w, ": ping\n\n")
			}
			flusher.Flush()
		}
	}
}

func run(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("[INFO] API server is running on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Printf("[INFO] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
