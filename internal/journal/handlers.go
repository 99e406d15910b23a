package journal

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"zen-journal-backend/internal/ai"
	"zen-journal-backend/internal/analytics"
	"zen-journal-backend/internal/auth"
	"zen-journal-backend/internal/respond"
	"zen-journal-backend/internal/store"
)

// SubmitHandler serves POST /journal.
func SubmitHandler(p *Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var body struct {
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respond.BadRequest(w, "invalid json")
			return
		}

		ctx := analytics.WithEnvelope(r.Context(), analytics.FromRequest(r))
		res, err := p.Submit(ctx, uid, body.Content)
		if err != nil {
			respond.Error(w, err)
			return
		}
		respond.JSON(w, http.StatusCreated, res)
	}
}

type Summarizer interface {
	Summarize(ctx context.Context, in ai.InsightsInput) (ai.Summary, error)
}

type Dashboard struct {
	Stats    store.Stats `json:"stats"`
	Summary  ai.Summary  `json:"summary"`
	Fallback bool        `json:"fallback"`
}

// BuildDashboard gathers the counters and the insight summary. Summarizer
// failures never fail the dashboard; the fallback summary is served.
func BuildDashboard(ctx context.Context, st *store.Store, sum Summarizer, userID string) (Dashboard, error) {
	stats, err := st.Stats(ctx, userID)
	if err != nil {
		return Dashboard{}, err
	}
	entries, err := st.ListJournalEntries(ctx, userID, store.ListOptions{Limit: ai.RecentEntryLimit})
	if err != nil {
		return Dashboard{}, err
	}
	health, err := st.ListHealthMentions(ctx, userID, store.ListOptions{})
	if err != nil {
		return Dashboard{}, err
	}

	in := ai.InsightsInput{
		CompletedTasks: stats.CompletedTasks,
		TotalTasks:     stats.TotalTasks,
	}
	for _, e := range entries {
		in.RecentEntries = append(in.RecentEntries, e.Content)
	}
	for _, h := range health {
		in.HealthMentions = append(in.HealthMentions, h.Content)
	}

	summary, err := sum.Summarize(ctx, in)
	if err != nil {
		log.Printf("[WARN] dashboard: insights unavailable for user=%s: %v", userID, err)
		summary = ai.FallbackSummary()
	}
	return Dashboard{Stats: stats, Summary: summary, Fallback: summary.Fallback}, nil
}

// DashboardHandler serves GET /dashboard.
func DashboardHandler(st *store.Store, sum Summarizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		d, err := BuildDashboard(r.Context(), st, sum, uid)
		if err != nil {
			respond.Error(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, d)
	}
}
