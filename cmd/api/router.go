package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/muaviaUsmani/adhan/internal/driver"
	"github.com/muaviaUsmani/adhan/internal/logger"
	"github.com/muaviaUsmani/adhan/internal/prayer"
	"github.com/muaviaUsmani/adhan/internal/reconcile"
	"github.com/muaviaUsmani/adhan/internal/result"
	"github.com/muaviaUsmani/adhan/internal/scheduler"
)

// Control is what the API needs from the daemon. *client.Client implements it.
type Control interface {
	Preferences() (prayer.Preferences, error)
	SetPreference(event string, enabled bool) (prayer.Preferences, error)
	RequestPass(trigger scheduler.Trigger) error
	RequestPassAndWait(trigger scheduler.Trigger, timeout time.Duration) (*result.PassResult, error)
	LastPass() (*result.PassResult, error)
	Alarms() ([]driver.ScheduledItem, error)
}

// Previewer computes a dry-run reconciliation
type Previewer interface {
	Preview(ctx context.Context) (reconcile.Preview, error)
}

type handler struct {
	control Control
	preview Previewer
	ping    func(ctx context.Context) error
	log     logger.Logger
}

type preferenceUpdate struct {
	Enabled *bool `json:"enabled"`
}

// maxWait caps the ?wait= duration of POST /reconcile
const maxWait = 30 * time.Second

// NewRouter wires the control API routes. preview may be nil.
func NewRouter(control Control, preview Previewer, ping func(ctx context.Context) error, log logger.Logger) http.Handler {
	h := &handler{control: control, preview: preview, ping: ping, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)
	r.Get("/preferences", h.getPreferences)
	r.Put("/preferences/{event}", h.setPreference)
	r.Post("/reconcile", h.reconcile)
	r.Get("/status", h.status)
	r.Get("/alarms", h.alarms)
	if preview != nil {
		r.Get("/preview", h.previewPass)
	}

	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.ping(ctx); err != nil {
		h.log.Warn("Health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) getPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.control.Preferences()
	if err != nil {
		h.log.Error("Failed to load preferences", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load preferences")
		return
	}
	writeJSON(w, http.StatusOK, prefs.Clone())
}

func (h *handler) setPreference(w http.ResponseWriter, r *http.Request) {
	event := chi.URLParam(r, "event")
	if _, err := prayer.ParseEventName(event); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	var body preferenceUpdate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Enabled == nil {
		writeError(w, http.StatusBadRequest, `body must be {"enabled": true|false}`)
		return
	}

	prefs, err := h.control.SetPreference(event, *body.Enabled)
	if err != nil && prefs == nil {
		h.log.Error("Failed to save preference", "event", event, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save preference")
		return
	}
	if err != nil {
		// Saved but not published; the next scheduled pass picks it up
		h.log.Warn("Preference saved without reconciliation request", "event", event, "error", err)
	}

	h.log.Info("Preference updated", "event", event, "enabled", *body.Enabled)
	writeJSON(w, http.StatusOK, prefs.Clone())
}

func (h *handler) reconcile(w http.ResponseWriter, r *http.Request) {
	wait, err := parseWait(r.URL.Query().Get("wait"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if wait == 0 {
		if err := h.control.RequestPass(scheduler.TriggerForeground); err != nil {
			h.log.Error("Failed to request reconciliation", "error", err)
			writeError(w, http.StatusServiceUnavailable, "failed to request reconciliation")
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"trigger": string(scheduler.TriggerForeground)})
		return
	}

	res, err := h.control.RequestPassAndWait(scheduler.TriggerForeground, wait)
	if err != nil {
		h.log.Error("Failed to request reconciliation", "error", err)
		writeError(w, http.StatusServiceUnavailable, "failed to request reconciliation")
		return
	}
	if res == nil {
		writeJSON(w, http.StatusAccepted, map[string]string{"trigger": string(scheduler.TriggerForeground)})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func parseWait(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	wait, err := time.ParseDuration(raw)
	if err != nil || wait < 0 {
		return 0, fmt.Errorf("invalid wait %q", raw)
	}
	if wait > maxWait {
		wait = maxWait
	}
	return wait, nil
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	last, err := h.control.LastPass()
	if err != nil {
		h.log.Error("Failed to get last pass", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get last pass")
		return
	}
	if last == nil {
		writeError(w, http.StatusNotFound, "no pass recorded")
		return
	}
	writeJSON(w, http.StatusOK, last)
}

func (h *handler) alarms(w http.ResponseWriter, r *http.Request) {
	items, err := h.control.Alarms()
	if err != nil {
		h.log.Error("Failed to list alarms", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list alarms")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *handler) previewPass(w http.ResponseWriter, r *http.Request) {
	preview, err := h.preview.Preview(r.Context())
	if err != nil {
		h.log.Error("Failed to preview reconciliation", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to preview reconciliation")
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Ignore write error - nothing we can do if client disconnected
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
