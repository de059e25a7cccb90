package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/onnwee/sentry/config"
	"github.com/onnwee/sentry/telemetry"
)

// Handlers holds the dependencies shared by the HTTP handlers.
type Handlers struct {
	db  *sql.DB
	cfg *config.Config
}

// NewHandlers wires handler dependencies.
func NewHandlers(db *sql.DB, cfg *config.Config) *Handlers {
	return &Handlers{db: db, cfg: cfg}
}

// HandleHealthz responds to liveness probe requests by checking database connectivity.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz responds to readiness probe requests with detailed system checks.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"database", func() error { return h.db.PingContext(r.Context()) }},
		{"expiry_scheduler", func() error {
			last, err := h.lastExpiryTick(r)
			if err != nil {
				return err
			}
			if last.IsZero() {
				return fmt.Errorf("no expiry tick recorded yet")
			}
			// Stale when several intervals have passed without a heartbeat.
			stale := 12 * h.cfg.ExpiryInterval
			if stale < time.Minute {
				stale = time.Minute
			}
			if time.Since(last) > stale {
				return fmt.Errorf("last expiry tick at %s is stale", last.Format(time.RFC3339))
			}
			return nil
		}},
	}

	type checkResult struct {
		Name  string `json:"name"`
		OK    bool   `json:"ok"`
		Error string `json:"error,omitempty"`
	}
	results := make([]checkResult, 0, len(checks))
	ready := true
	for _, c := range checks {
		res := checkResult{Name: c.name, OK: true}
		if err := c.fn(); err != nil {
			res.OK = false
			res.Error = err.Error()
			ready = false
		}
		results = append(results, res)
	}

	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"ready": ready, "checks": results})
}

// HandleStatus reports active restriction counts and the last scheduler tick.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	var textMutes, voiceMutes int
	err := h.db.QueryRowContext(r.Context(),
		`SELECT
			COUNT(*) FILTER (WHERE muted_until IS NOT NULL AND muted_until > NOW()),
			COUNT(*) FILTER (WHERE voice_muted_until IS NOT NULL AND voice_muted_until > NOW())
		 FROM action_records`).Scan(&textMutes, &voiceMutes)
	if err != nil {
		telemetry.LoggerWithCorr(r.Context()).Warn("status query failed", "err", err)
		http.Error(w, "status query failed", http.StatusInternalServerError)
		return
	}

	status := map[string]any{
		"active_mutes":       textMutes,
		"active_voice_mutes": voiceMutes,
	}
	if last, err := h.lastExpiryTick(r); err == nil && !last.IsZero() {
		status["last_expiry_tick"] = last.Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}

func (h *Handlers) lastExpiryTick(r *http.Request) (time.Time, error) {
	var v string
	err := h.db.QueryRowContext(r.Context(),
		`SELECT value FROM kv WHERE key='job_expiry_last'`).Scan(&v)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse("2006-01-02T15:04:05.000Z", v)
	if err != nil {
		// Fall back to plain RFC3339 in case the value was written by hand.
		t, err = time.Parse(time.RFC3339, v)
	}
	return t, err
}
