// Package ops serves the operator endpoints: health, metrics, manual ticks
// and journal summaries. It listens on its own port, away from user traffic.
package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"tradeledger/internal/journal"
	"tradeledger/internal/metrics"
)

// CheckFunc reports whether a dependency is reachable
type CheckFunc func(ctx context.Context) error

// TickRunner runs one mark-to-market pass on demand
type TickRunner interface {
	RunNow(ctx context.Context) error
}

// JournalReader summarizes a user's settlement journal
type JournalReader interface {
	Summarize(ctx context.Context, userID uuid.UUID) (journal.Summary, error)
}

// Config holds the dependencies of the ops router. Every field but Logger
// is optional.
type Config struct {
	Checks  map[string]CheckFunc
	Ticks   TickRunner
	Journal JournalReader
	Logger  *zap.Logger
}

// NewRouter creates the ops router
func NewRouter(cfg Config) chi.Router {
	h := &handlers{cfg: cfg}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", h.health)
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(metrics.Middleware)
		if cfg.Ticks != nil {
			r.Post("/tick/run", h.runTick)
		}
		if cfg.Journal != nil {
			r.Get("/journal/{user_id}", h.journalSummary)
		}
	})
	return r
}

type handlers struct {
	cfg Config
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.cfg.Checks))
	for name, check := range h.cfg.Checks {
		if err := check(ctx); err != nil {
			h.cfg.Logger.Warn("health check failed", zap.String("dependency", name), zap.Error(err))
			deps[name] = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "healthy"
	}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "degraded"
	}
	writeJSON(w, status, map[string]interface{}{
		"status":       overall,
		"service":      "tradeledger-ops",
		"dependencies": deps,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *handlers) runTick(w http.ResponseWriter, r *http.Request) {
	h.cfg.Logger.Info("manual tick triggered")
	start := time.Now()
	if err := h.cfg.Ticks.RunNow(r.Context()); err != nil {
		h.cfg.Logger.Error("manual tick failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"duration": time.Since(start).String(),
	})
}

func (h *handlers) journalSummary(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "error": "invalid user id"})
		return
	}

	s, err := h.cfg.Journal.Summarize(r.Context(), userID)
	if err != nil {
		h.cfg.Logger.Error("journal summary failed", zap.String("user_id", userID.String()), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "error": "journal unavailable"})
		return
	}

	out := map[string]interface{}{
		"user_id":     userID,
		"settlements": s.Settlements,
		"wins":        s.Wins,
		"net_pnl":     s.NetPnL.StringFixed(2),
		"commission":  s.Commission.StringFixed(2),
		"snapshots":   s.Snapshots,
	}
	if s.Snapshots > 0 {
		out["last_equity"] = s.LastEquity.StringFixed(2)
		out["last_snapshot_at"] = s.LastAt
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
