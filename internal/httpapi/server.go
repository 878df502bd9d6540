// Package httpapi is the HTTP surface of the server: health and metrics
// endpoints, a read-only view of the running game, the zone catalog, session
// history and the websocket location ingest.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/signalsfoundry/riderunner/geo"
	"github.com/signalsfoundry/riderunner/internal/game"
	"github.com/signalsfoundry/riderunner/internal/location"
	"github.com/signalsfoundry/riderunner/internal/logging"
	"github.com/signalsfoundry/riderunner/internal/observability"
	"github.com/signalsfoundry/riderunner/internal/store"
	"github.com/signalsfoundry/riderunner/model"
	"github.com/signalsfoundry/riderunner/timectrl"
)

const (
	defaultSessionLimit = 20
	maxSessionLimit     = 200
	maxBodyBytes        = 1 << 20
)

// Error types returned in the JSON error body.
const (
	ErrTypeBadRequest  = "bad_request"
	ErrTypeValidation  = "validation_error"
	ErrTypeNotFound    = "not_found"
	ErrTypeUnavailable = "unavailable"
	ErrTypeInternal    = "internal_error"
)

// StateSource provides the current game snapshot; *game.Engine satisfies it.
type StateSource interface {
	Snapshot(ctx context.Context) (game.Snapshot, error)
}

// APIError is the JSON body of every error response.
type APIError struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

// CreateZoneRequest is the body of POST /api/v1/zones.
type CreateZoneRequest struct {
	Name        string           `json:"name"`
	Coordinates []geo.Coordinate `json:"coordinates"`
}

// Server routes HTTP requests to the engine and the store.
type Server struct {
	state      StateSource
	store      store.Store
	feed       *location.Feed
	metrics    http.Handler
	collector  *observability.ControlCollector
	log        logging.Logger
	clock      timectrl.Clock
	minZoneKm2 float64
	startedAt  time.Time
}

// Option customises a Server.
type Option func(*Server)

// WithLocationFeed enables the /ws/location ingest endpoint.
func WithLocationFeed(f *location.Feed) Option {
	return func(s *Server) { s.feed = f }
}

// WithMetricsHandler serves h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithControlMetrics records per-route request metrics.
func WithControlMetrics(c *observability.ControlCollector) Option {
	return func(s *Server) { s.collector = c }
}

// WithLogger sets the request logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithClock sets the clock stamped on created zones.
func WithClock(c timectrl.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// WithMinZoneArea sets the smallest zone, in square kilometres, that POST
// /api/v1/zones accepts.
func WithMinZoneArea(km2 float64) Option {
	return func(s *Server) { s.minZoneKm2 = km2 }
}

// NewServer builds the HTTP API.
func NewServer(state StateSource, st store.Store, opts ...Option) *Server {
	s := &Server{state: state, store: st}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logging.Noop()
	}
	if s.clock == nil {
		s.clock = timectrl.WallClock{}
	}
	s.startedAt = s.clock.Now()
	return s
}

// Routes sets up the router and its middleware.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/zones", s.handleListZones)
		r.Post("/zones", s.handleCreateZone)
		r.Get("/zones/{id}", s.handleGetZone)
		r.Get("/sessions", s.handleListSessions)
		r.Get("/sessions/current", s.handleCurrentSession)
	})

	if s.feed != nil {
		r.Handle("/ws/location", location.NewWebsocketHandler(s.feed, s.log))
	}
	return r
}

// observe tags the request context with chi's request id and records the
// request against its route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		if id := middleware.GetReqID(ctx); id != "" {
			ctx = logging.ContextWithRequestID(ctx, id)
		}
		ctx, reqLog := logging.WithRequestLogger(ctx, s.log.With(
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
		))
		ctx = logging.ContextWithLogger(ctx, reqLog)
		r = r.WithContext(ctx)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		s.collector.ObserveHTTP(route, r.Method, code, time.Since(start))
		reqLog.Debug(ctx, "request completed",
			logging.Int("status", code),
			logging.Duration("duration", time.Since(start)),
			logging.Int("bytes", ww.BytesWritten()),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": s.clock.Now().Sub(s.startedAt).Round(time.Second).String(),
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snap, err := s.state.Snapshot(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleListZones(w http.ResponseWriter, r *http.Request) {
	zones, err := s.store.ListZones(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if zones == nil {
		zones = []model.Zone{}
	}
	s.writeJSON(w, http.StatusOK, zones)
}

func (s *Server) handleGetZone(w http.ResponseWriter, r *http.Request) {
	zone, err := s.store.GetZone(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, zone)
}

func (s *Server) handleCreateZone(w http.ResponseWriter, r *http.Request) {
	var req CreateZoneRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeAPIError(w, r, http.StatusBadRequest, ErrTypeBadRequest, "malformed zone: "+err.Error())
		return
	}

	zone, err := model.NewZone(req.Name, req.Coordinates, s.minZoneKm2, s.clock.Now())
	if err != nil {
		s.writeAPIError(w, r, http.StatusUnprocessableEntity, ErrTypeValidation, err.Error())
		return
	}
	if err := s.store.SaveZone(r.Context(), zone); err != nil {
		s.writeError(w, r, err)
		return
	}
	logging.FromContext(r.Context(), s.log).Info(r.Context(), "zone created",
		logging.String("zone_id", zone.ID),
		logging.String("name", zone.Name),
		logging.Float("area_km2", zone.AreaKm2()),
	)
	w.Header().Set("Location", "/api/v1/zones/"+zone.ID)
	s.writeJSON(w, http.StatusCreated, zone)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit := defaultSessionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeAPIError(w, r, http.StatusBadRequest, ErrTypeBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxSessionLimit)
	}
	sessions, err := s.store.ListSessions(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []model.GameSession{}
	}
	s.writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleCurrentSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.LoadCurrent(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}

// writeError maps err onto a status code and JSON body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeAPIError(w, r, http.StatusNotFound, ErrTypeNotFound, err.Error())
	case errors.Is(err, game.ErrEngineStopped):
		s.writeAPIError(w, r, http.StatusServiceUnavailable, ErrTypeUnavailable, err.Error())
	default:
		logging.FromContext(r.Context(), s.log).Error(r.Context(), "request failed", logging.Err(err))
		s.writeAPIError(w, r, http.StatusInternalServerError, ErrTypeInternal, "internal server error")
	}
}

func (s *Server) writeAPIError(w http.ResponseWriter, r *http.Request, code int, errType, msg string) {
	s.writeJSON(w, code, APIError{
		Type:      errType,
		Message:   msg,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn(context.Background(), "failed to encode response", logging.Err(err))
	}
}
