// Package server exposes a running solver over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/san-kum/tethersim/internal/logging"
	"github.com/san-kum/tethersim/internal/vec"
	"github.com/san-kum/tethersim/internal/verlet"
)

const (
	inFlightAttempts = 5
	inFlightBackoff  = 2 * time.Millisecond
)

// Solver is the part of *verlet.Solver the handlers use.
type Solver interface {
	Snapshot() (verlet.Snapshot, error)
	Point(p verlet.PointID) (verlet.PointMass, error)
	BreakLinkNear(pos vec.Vec3, threshold float64) (verlet.LinkID, bool, error)
}

type Server struct {
	Solver Solver
	Logger *slog.Logger
}

type PointResponse struct {
	ID       verlet.PointID `json:"id"`
	Position vec.Vec3       `json:"position"`
	Velocity vec.Vec3       `json:"velocity"`
	Mass     float64        `json:"mass"`
	Locked   bool           `json:"locked"`
}

type TearRequest struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

type TearResponse struct {
	Broken bool          `json:"broken"`
	Link   verlet.LinkID `json:"link"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewHandler builds the router. gatherer backs /metrics; pass the registry the
// solver's metrics.Collector was registered with.
func NewHandler(s Solver, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	srv := &Server{Solver: s, Logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(srv.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok\n"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/snapshot", srv.GetSnapshot)
	r.Get("/points/{id}", srv.GetPoint)
	r.Post("/tear", srv.Tear)
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.Logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// GetSnapshot handles GET /snapshot.
func (s *Server) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := retry(r.Context(), s.Solver.Snapshot)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// GetPoint handles GET /points/{id}, where id is a handle such as "p3.1".
func (s *Server) GetPoint(w http.ResponseWriter, r *http.Request) {
	var id verlet.PointID
	if err := id.UnmarshalText([]byte(chi.URLParam(r, "id"))); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed point id"})
		return
	}
	p, err := retry(r.Context(), func() (verlet.PointMass, error) { return s.Solver.Point(id) })
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, PointResponse{
		ID:       id,
		Position: p.Position,
		Velocity: p.Velocity(),
		Mass:     p.Mass,
		Locked:   p.Locked,
	})
}

// Tear handles POST /tear and breaks at most one link near the given point.
func (s *Server) Tear(w http.ResponseWriter, r *http.Request) {
	var req TearRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Radius <= 0 {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "radius must be positive"})
		return
	}

	var resp TearResponse
	_, err := retry(r.Context(), func() (struct{}, error) {
		l, found, err := s.Solver.BreakLinkNear(vec.New(req.X, req.Y, 0), req.Radius)
		resp = TearResponse{Broken: found, Link: l}
		return struct{}{}, err
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	if resp.Broken {
		s.Logger.Info("link torn", "link", resp.Link, "x", req.X, "y", req.Y)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// retry re-issues fn while a step holds the solver.
func retry[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var (
		v   T
		err error
	)
	for i := 0; i < inFlightAttempts; i++ {
		v, err = fn()
		if !errors.Is(err, verlet.ErrStepInFlight) {
			return v, err
		}
		select {
		case <-ctx.Done():
			return v, ctx.Err()
		case <-time.After(inFlightBackoff):
		}
	}
	return v, err
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, verlet.ErrStepInFlight):
		w.Header().Set("Retry-After", "1")
		status = http.StatusServiceUnavailable
	case errors.Is(err, verlet.ErrInvalidHandle), errors.Is(err, verlet.ErrStaleHandle):
		status = http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	default:
		s.Logger.Error("request failed", "error", err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("encode response", "error", err)
	}
}
