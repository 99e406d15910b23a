package calendar

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"zen-journal-backend/internal/analytics"
	"zen-journal-backend/internal/auth"
	"zen-journal-backend/internal/models"
	"zen-journal-backend/internal/respond"
)

const stateTTL = 10 * time.Minute

type Notifier interface {
	Notify(userID string)
}

type Handlers struct {
	Bridge   *Bridge
	Secret   []byte
	Notifier Notifier
	Recorder *analytics.Recorder
	// SuccessURL, when set, is where the callback redirects after connecting.
	SuccessURL string
}

func (h Handlers) changed(uid string) {
	if h.Notifier != nil {
		h.Notifier.Notify(uid)
	}
}

// Sync serves POST /calendar/sync with {"action", "event_id"}. A delete
// removes the external copy and unlinks the local event, which stays.
func (h Handlers) Sync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var body struct {
			Action  string `json:"action"`
			EventID string `json:"event_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.EventID == "" {
			respond.BadRequest(w, "action and event_id are required")
			return
		}
		action, err := ParseAction(body.Action)
		if err != nil {
			respond.Error(w, err)
			return
		}
		ev, err := h.Bridge.store.GetEvent(r.Context(), uid, body.EventID)
		if err != nil {
			respond.Error(w, err)
			return
		}

		res, err := h.Bridge.Sync(r.Context(), action, ev, uid)
		if err != nil {
			if !errors.Is(err, models.ErrNotConnected) {
				log.Printf("[WARN] calendar: %s user=%s event=%s: %v", action, uid, ev.ID, err)
			}
			respond.Error(w, err)
			return
		}

		var link *string
		if action == ActionCreate {
			link = &res.ExternalID
		}
		if err := h.Bridge.store.SetExternalSync(r.Context(), uid, ev.ID, link); err != nil {
			respond.Error(w, err)
			return
		}
		h.changed(uid)
		h.Recorder.Log(r.Context(), analytics.FromRequest(r), analytics.EventCalendarSynced, map[string]any{"action": string(action)}, "")
		respond.JSON(w, http.StatusOK, res)
	}
}

// Status serves GET /calendar/status.
func (h Handlers) Status() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		connected, err := h.Bridge.Connected(r.Context(), uid)
		if err != nil {
			respond.Error(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, map[string]bool{"connected": connected})
	}
}

// Connect serves GET /calendar/connect. The consent URL carries a short
// lived signed state naming the user, so the callback needs no bearer.
func (h Handlers) Connect() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		state, err := auth.GenerateState(h.Secret, uid, stateTTL)
		if err != nil {
			respond.Error(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, map[string]string{"url": h.Bridge.AuthCodeURL(state)})
	}
}

// Callback serves GET /calendar/callback?code=&state=.
func (h Handlers) Callback() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if e := q.Get("error"); e != "" {
			respond.BadRequest(w, "authorization denied: "+e)
			return
		}
		uid, err := auth.ParseState(h.Secret, q.Get("state"))
		if err != nil {
			respond.BadRequest(w, "invalid state")
			return
		}
		code := q.Get("code")
		if code == "" {
			respond.BadRequest(w, "missing code")
			return
		}
		if err := h.Bridge.Exchange(r.Context(), uid, code); err != nil {
			log.Printf("[WARN] calendar: exchange for user=%s failed: %v", uid, err)
			respond.Error(w, err)
			return
		}
		log.Printf("[INFO] calendar: connected user=%s", uid)
		h.changed(uid)

		if h.SuccessURL != "" {
			http.Redirect(w, r, h.SuccessURL, http.StatusFound)
			return
		}
		respond.JSON(w, http.StatusOK, map[string]bool{"connected": true})
	}
}

// Disconnect serves DELETE /calendar/credentials.
func (h Handlers) Disconnect() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if err := h.Bridge.Disconnect(r.Context(), uid); err != nil {
			respond.Error(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, map[string]bool{"connected": false})
	}
}
