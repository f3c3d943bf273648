// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	service "github.com/okian/pitchside/internal/app"
	"github.com/okian/pitchside/internal/domain/analytics"
	"github.com/okian/pitchside/internal/domain/model"
	"github.com/okian/pitchside/internal/domain/roster"
	"github.com/okian/pitchside/pkg/logger"
)

// ActorHeader carries the caller id. Identity is resolved through the
// actor directory on every request.
const ActorHeader = "X-Actor-ID"

// DefaultRequestTimeout bounds each request's service call.
const DefaultRequestTimeout = 10 * time.Second

// Assessments is the service surface the handlers call. Every method takes
// the resolved actor explicitly.
type Assessments interface {
	CreateAssessment(ctx context.Context, actor model.Actor, in service.CreateInput) (model.Assessment, error)
	UpdateAssessment(ctx context.Context, actor model.Actor, id string, in service.UpdateInput) (model.Assessment, error)
	FinalizeAssessment(ctx context.Context, actor model.Actor, id string) (model.Assessment, error)
	DeleteAssessment(ctx context.Context, actor model.Actor, id string) error
	GetAssessment(ctx context.Context, actor model.Actor, id string) (model.Assessment, error)

	ListAssessmentsForPlayer(ctx context.Context, actor model.Actor, playerID string) ([]model.Assessment, error)
	ListAssessmentsForAssessor(ctx context.Context, actor model.Actor, assessorID string) ([]model.Assessment, error)
	ListAssessmentsInDateRange(ctx context.Context, actor model.Actor, from, to time.Time) ([]model.Assessment, error)

	AssessmentSummary(ctx context.Context, actor model.Actor, f analytics.Filters) (analytics.Summary, error)
	PlayerProgress(ctx context.Context, actor model.Actor, playerID string) (analytics.Progress, error)
	AssessmentStatistics(ctx context.Context, actor model.Actor, id string) (analytics.AssessmentStats, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	svc      Assessments
	actors   roster.Actors
	validate *validator.Validate
	timeout  time.Duration
	logger   logger.Logger

	healthHandler *HealthHandler
	statsHandler  *StatsHandler
}

// Option configures a Server.
type Option func(*Server)

// WithRequestTimeout bounds each handler's service call. Zero disables it.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.timeout = d
	}
}

// WithLogger sets the logger for unexpected failures.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithStats exposes provider on GET /stats.
func WithStats(provider StatsProvider) Option {
	return func(s *Server) {
		s.statsHandler = NewStatsHandler(provider)
	}
}

// WithHealth makes /healthz fail while checker reports an error.
func WithHealth(checker HealthChecker) Option {
	return func(s *Server) {
		s.healthHandler = NewHealthHandler(checker)
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(svc Assessments, actors roster.Actors, opts ...Option) *Server {
	s := &Server{
		svc:           svc,
		actors:        actors,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		timeout:       DefaultRequestTimeout,
		healthHandler: NewHealthHandler(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", MetricsMiddleware(s.healthHandler.HandleMetrics, "metrics"))
	if s.statsHandler != nil {
		mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	}

	mux.HandleFunc("POST /assessments", s.route("create_assessment", s.handleCreate))
	mux.HandleFunc("GET /assessments", s.route("list_assessments", s.handleListRange))
	mux.HandleFunc("GET /assessments/summary", s.route("assessment_summary", s.handleSummary))
	mux.HandleFunc("GET /assessments/{id}", s.route("get_assessment", s.handleGet))
	mux.HandleFunc("PATCH /assessments/{id}", s.route("update_assessment", s.handleUpdate))
	mux.HandleFunc("DELETE /assessments/{id}", s.route("delete_assessment", s.handleDelete))
	mux.HandleFunc("POST /assessments/{id}/finalize", s.route("finalize_assessment", s.handleFinalize))
	mux.HandleFunc("GET /assessments/{id}/stats", s.route("assessment_stats", s.handleStats))

	mux.HandleFunc("GET /players/{id}/assessments", s.route("player_assessments", s.handlePlayerAssessments))
	mux.HandleFunc("GET /players/{id}/progress", s.route("player_progress", s.handleProgress))
	mux.HandleFunc("GET /assessors/{id}/assessments", s.route("assessor_assessments", s.handleAssessorAssessments))
}

// actorHandler is a handler that runs on behalf of a resolved actor.
type actorHandler func(w http.ResponseWriter, r *http.Request, actor model.Actor)

// route resolves the caller, applies the request timeout and records
// metrics under endpoint.
func (s *Server) route(endpoint string, h actorHandler) http.HandlerFunc {
	return MetricsMiddleware(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
			r = r.WithContext(ctx)
		}

		actor, err := s.authenticate(r)
		if err != nil {
			s.writeFailure(w, r, err)
			return
		}
		h(w, r, actor)
	}, endpoint)
}

func (s *Server) authenticate(r *http.Request) (model.Actor, error) {
	const op = "api.authenticate"
	id := r.Header.Get(ActorHeader)
	if id == "" {
		return model.Actor{}, NewKind(op, ErrUnauthenticated)
	}
	actor, err := s.actors.Actor(r.Context(), id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Actor{}, NewKind(op, ErrUnauthenticated)
		}
		return model.Actor{}, Wrap(op, err)
	}
	return actor, nil
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	if msg == "" {
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps err onto a status and stable code. Internal failures
// never leak their cause to the caller.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing or unknown "+ActorHeader)
		return
	case errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", badRequestMessage(err))
		return
	}

	code := model.Code(err)
	status := statusOf(code)
	if status == http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Error(err),
		)
	}
	writeError(w, status, code, model.Message(err))
}

func statusOf(code string) int {
	switch code {
	case model.CodeNotFound:
		return http.StatusNotFound
	case model.CodeValidation:
		return http.StatusBadRequest
	case model.CodeConflict:
		return http.StatusConflict
	case model.CodeAccessDenied:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}
