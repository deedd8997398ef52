// Package httpapi serves the read-only operations surface: liveness, pipeline
// status and recent history per endpoint.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
	apimw "github.com/hamed0406/sitewatch/internal/httpapi/middleware"
	"github.com/hamed0406/sitewatch/internal/registry"
	"github.com/hamed0406/sitewatch/internal/repo"
	"github.com/hamed0406/sitewatch/internal/scheduler"
)

const (
	defaultChecksLimit = 20
	maxChecksLimit     = 100
)

// StatsSource is implemented by *scheduler.Scheduler.
type StatsSource interface {
	Stats() scheduler.Stats
}

type Server struct {
	Logger   *zap.Logger
	Checks   repo.CheckStore
	Sched    StatsSource
	Registry *registry.Loader
	started  time.Time
}

func NewServer(l *zap.Logger, checks repo.CheckStore, sched StatsSource, reg *registry.Loader) *Server {
	return &Server{Logger: l, Checks: checks, Sched: sched, Registry: reg, started: time.Now()}
}

// Router wires the routes. ratePerMin <= 0 disables rate limiting on /api.
func (s *Server) Router(ratePerMin, burst int) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(apimw.RateLimit(ratePerMin, burst))
		r.Get("/status", s.handleStatus)
		r.Get("/endpoints/{id}/checks", s.handleRecentChecks)
	})

	return r
}

type statusResponse struct {
	UptimeS          int64           `json:"uptime_s"`
	Endpoints        int             `json:"endpoints"`
	RegistryLoadedAt *time.Time      `json:"registry_loaded_at,omitempty"`
	Scheduler        scheduler.Stats `json:"scheduler"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		UptimeS:   int64(time.Since(s.started).Seconds()),
		Endpoints: len(s.Registry.Snapshot()),
		Scheduler: s.Sched.Stats(),
	}
	if at := s.Registry.LoadedAt(); !at.IsZero() {
		resp.RegistryLoadedAt = &at
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecentChecks(w http.ResponseWriter, r *http.Request) {
	id := domain.EndpointID(chi.URLParam(r, "id"))

	limit := defaultChecksLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxChecksLimit {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 100"})
			return
		}
		limit = n
	}

	recs, err := s.Checks.RecentChecks(r.Context(), id, limit)
	if err != nil {
		s.Logger.Warn("ops_recent_checks_failed", zap.String("endpoint_id", string(id)), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "store unavailable"})
		return
	}
	if recs == nil {
		recs = []domain.CheckRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
