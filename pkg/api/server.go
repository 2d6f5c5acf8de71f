package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/zoff-tech/queue-admin/pkg/config"
	"github.com/zoff-tech/queue-admin/pkg/store"
)

// AdminService is what the HTTP layer needs from the administration facade.
type AdminService interface {
	Summary(ctx context.Context) (store.Summary, error)

	ListDeadLetters(ctx context.Context, filter store.DeadLetterFilter, page store.PageRequest) (store.DeadLetterPage, error)
	GetDeadLetter(ctx context.Context, key store.EnvelopeKey) (store.DeadLetter, bool, error)
	SetDeadLetterReplayable(ctx context.Context, key store.EnvelopeKey, replayable bool) (int64, error)
	SetDeadLettersReplayable(ctx context.Context, keys []store.EnvelopeKey, replayable bool) (int64, error)
	DeleteDeadLetter(ctx context.Context, key store.EnvelopeKey) (int64, error)

	ListIncomingEnvelopes(ctx context.Context, filter store.EnvelopeFilter, page store.PageRequest) (store.EnvelopePage, error)
	GetIncomingEnvelope(ctx context.Context, key store.EnvelopeKey) (store.IncomingEnvelope, bool, error)
	DeleteIncomingEnvelope(ctx context.Context, key store.EnvelopeKey) (int64, error)

	ListNodes(ctx context.Context, filter store.NodeFilter, page store.PageRequest) (store.Page[store.Node], error)
	GetNode(ctx context.Context, id uuid.UUID) (store.Node, bool, error)
	DeleteNode(ctx context.Context, id uuid.UUID) (int64, error)

	ListNodeAssignments(ctx context.Context, filter store.NodeAssignmentFilter, page store.PageRequest) (store.Page[store.NodeAssignment], error)
	GetNodeAssignment(ctx context.Context, id string) (store.NodeAssignment, bool, error)
	DeleteNodeAssignment(ctx context.Context, id string) (int64, error)
}

type Server struct {
	svc       AdminService
	dashboard config.DashboardSettings
	logger    zerolog.Logger
}

// NewServer mounts the administration API under httpCfg.RoutePrefix.
func NewServer(svc AdminService, httpCfg config.HTTPSettings, dashboard config.DashboardSettings, logger zerolog.Logger) http.Handler {
	s := &Server{
		svc:       svc,
		dashboard: dashboard,
		logger:    logger.With().Str("component", "http").Logger(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(s.logger), middleware.Recoverer)

	r.Get("/health", s.health)

	r.Route(httpCfg.RoutePrefix, func(r chi.Router) {
		r.Get("/stats", s.stats)
		r.Get("/config", s.config)

		r.Route("/dead-letters", func(r chi.Router) {
			r.Get("/", s.listDeadLetters)
			r.Put("/replay-multiple", s.replayDeadLetters)
			r.Get("/{id}", s.getDeadLetter)
			r.Delete("/{id}", s.deleteDeadLetter)
			r.Put("/{id}/replay", s.replayDeadLetter)
		})

		r.Route("/incoming-envelopes", func(r chi.Router) {
			r.Get("/", s.listIncomingEnvelopes)
			r.Get("/{id}", s.getIncomingEnvelope)
			r.Delete("/{id}", s.deleteIncomingEnvelope)
		})

		r.Route("/nodes", func(r chi.Router) {
			r.Get("/", s.listNodes)
			r.Get("/{id}", s.getNode)
			r.Delete("/{id}", s.deleteNode)
		})

		r.Route("/node-assignments", func(r chi.Router) {
			r.Get("/", s.listNodeAssignments)
			r.Get("/*", s.getNodeAssignment)
			r.Delete("/*", s.deleteNodeAssignment)
		})
	})

	if len(httpCfg.AllowedOrigins) == 0 {
		return r
	}
	c := cors.New(cors.Options{
		AllowedOrigins: httpCfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(r)
}

// requestLogger logs one line per request once the handler has written its response.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			event := logger.Info()
			if status >= http.StatusInternalServerError {
				event = logger.Error()
			}
			event.
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.RequestURI()).
				Int("status", status).
				Dur("duration", time.Since(start)).
				Msg("request handled")
		})
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type dashboardConfig struct {
	Title           string `json:"title"`
	AutoRefresh     bool   `json:"autoRefresh"`
	RefreshInterval int    `json:"refreshInterval"`
	DefaultPageSize int    `json:"defaultPageSize"`
}

func (s *Server) config(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dashboardConfig{
		Title:           s.dashboard.Title,
		AutoRefresh:     s.dashboard.AutoRefresh,
		RefreshInterval: s.dashboard.RefreshIntervalSeconds(),
		DefaultPageSize: s.dashboard.DefaultPageSize,
	})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	summary, err := s.svc.Summary(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
