// Package service provides the assessment lifecycle service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/pitchside/internal/adapters/cache"
	"github.com/okian/pitchside/internal/adapters/repository"
	"github.com/okian/pitchside/internal/domain/access"
	"github.com/okian/pitchside/internal/domain/analytics"
	"github.com/okian/pitchside/internal/domain/dedupe"
	"github.com/okian/pitchside/internal/domain/model"
	"github.com/okian/pitchside/internal/domain/roster"
	"github.com/okian/pitchside/internal/domain/scoring"
	"github.com/okian/pitchside/internal/domain/skills"
	"github.com/okian/pitchside/pkg/logger"
	"github.com/okian/pitchside/pkg/metrics"
)

// ProgressCache stores computed player progress between writes.
type ProgressCache interface {
	Get(ctx context.Context, playerID string) (analytics.Progress, error)
	Set(ctx context.Context, p analytics.Progress) error
	Invalidate(ctx context.Context, playerID string) error
}

// Service orchestrates the assessment lifecycle and analytics.
type Service struct {
	mu sync.RWMutex

	// Collaborators
	store    repository.Store
	players  roster.Players
	skills   roster.Skills
	progress ProgressCache

	// Domain components
	guard      *dedupe.Guard
	tracker    *scoring.Tracker
	matrix     *access.Matrix
	validator  *skills.Validator
	aggregator *analytics.Aggregator

	// Configuration
	conceal        bool
	trendThreshold float64
	now            func() time.Time
	newID          func() string

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStore sets the assessment store. The service closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithPlayers sets the player directory.
func WithPlayers(players roster.Players) Option {
	return func(s *Service) {
		s.players = players
	}
}

// WithSkills sets the skill catalog.
func WithSkills(catalog roster.Skills) Option {
	return func(s *Service) {
		s.skills = catalog
	}
}

// WithProgressCache sets the player progress cache.
func WithProgressCache(c ProgressCache) Option {
	return func(s *Service) {
		if c != nil {
			s.progress = c
		}
	}
}

// WithGuard replaces the month guard, e.g. to disable the claims gate.
func WithGuard(g *dedupe.Guard) Option {
	return func(s *Service) {
		if g != nil {
			s.guard = g
		}
	}
}

// WithTracker replaces the improvement tracker.
func WithTracker(t *scoring.Tracker) Option {
	return func(s *Service) {
		if t != nil {
			s.tracker = t
		}
	}
}

// WithConcealForbidden reports refusals on existing assessments as NotFound.
func WithConcealForbidden(conceal bool) Option {
	return func(s *Service) {
		s.conceal = conceal
	}
}

// WithTrendThreshold sets the progress trend cut-off.
func WithTrendThreshold(threshold float64) Option {
	return func(s *Service) {
		if threshold >= 0 {
			s.trendThreshold = threshold
		}
	}
}

// WithClock replaces time.Now for createdAt and updatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator replaces the uuid generator for assessment ids.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		progress:       cache.Nop{},
		guard:          dedupe.NewGuard(),
		tracker:        scoring.NewTracker(),
		trendThreshold: analytics.DefaultTrendThreshold,
		now:            time.Now,
		newID:          uuid.NewString,
		logger:         nil, // Will be replaced when service starts
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start wires the domain components. The player directory and skill
// catalog are required; the store defaults to an in-memory one.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.players == nil || s.skills == nil {
		return ErrMissingDirectory
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
		s.logger.Info(ctx, "using in-memory assessment store")
	}

	s.matrix = access.NewMatrix(access.WithConcealForbidden(s.conceal))
	s.validator = skills.NewValidator(s.skills)
	s.aggregator = analytics.NewAggregator(s.skills, s.players, analytics.WithTrendThreshold(s.trendThreshold))

	s.started = true
	s.logger.Info(ctx, "assessment service started",
		logger.Bool("concealForbidden", s.conceal),
		logger.Float64("trendThreshold", s.trendThreshold),
	)
	return nil
}

// Stop closes the store and cache.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping assessment service...")

	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "failed to close store", logger.Error(err))
	}
	if closer, ok := s.progress.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			s.logger.Warn(ctx, "failed to close progress cache", logger.Error(err))
		}
	}

	s.started = false
	s.logger.Info(ctx, "assessment service stopped")
}

// Ping checks the store when it supports health checks.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.ready("ping"); err != nil {
		return err
	}
	if p, ok := s.store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":          s.started,
		"concealForbidden": s.conceal,
		"claimsInFlight":   s.guard.InFlight(),
	}
	if counter, ok := s.store.(interface{ Count(context.Context) int }); ok && s.started {
		stats["assessments"] = counter.Count(context.Background())
	}
	return stats
}

func (s *Service) ready(op string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return model.Internal(op, ErrNotStarted)
	}
	return nil
}

// track records latency and outcome for op and converts untyped failures
// into an opaque internal error after logging them with full context.
func (s *Service) track(ctx context.Context, op string, actor model.Actor, start time.Time, errp *error) {
	metrics.RecordOperationLatency(op, float64(time.Since(start).Microseconds())/1000)

	err := *errp
	if err == nil {
		metrics.RecordOperation(op, metrics.OutcomeSuccess)
		return
	}
	metrics.RecordOperation(op, metrics.OutcomeError)

	code := model.Code(err)
	switch code {
	case model.CodeValidation:
		metrics.RecordValidationFailure(op)
	case model.CodeInternal:
		metrics.RecordErrorByComponent("service", code)
		s.log().Error(ctx, "assessment operation failed",
			logger.String("op", op),
			logger.String("actor", actor.ID),
			logger.String("role", string(actor.Role)),
			logger.Error(err),
		)
		var typed *model.Error
		if !errors.As(err, &typed) || typed.Kind != model.ErrInternal {
			*errp = model.Internal(op, err)
		}
		return
	}

	s.log().Debug(ctx, "assessment operation rejected",
		logger.String("op", op),
		logger.String("actor", actor.ID),
		logger.String("code", code),
		logger.String("reason", model.Message(err)),
	)
}

func (s *Service) log() logger.Logger {
	if s.logger == nil {
		return logger.Get()
	}
	return s.logger
}

// storeErr maps store sentinels onto the domain taxonomy.
func storeErr(op, id string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return model.NotFound(op, "assessment %s not found", id)
	}
	return err
}

// monthTaken converts a store-level uniqueness failure into the same
// Conflict the guard reports.
func monthTaken(op, playerID string, date time.Time, err error) error {
	if errors.Is(err, repository.ErrDuplicateMonth) {
		metrics.RecordDuplicateRejected()
		return dedupe.Duplicate(op, playerID, dedupe.MonthOf(date), "")
	}
	return err
}

// checkMonth runs the guard and counts rejections.
func (s *Service) checkMonth(ctx context.Context, lookup dedupe.Lookup, playerID string, date time.Time, excludeID string) error {
	err := s.guard.Check(ctx, lookup, playerID, date, excludeID)
	if err != nil && errors.Is(err, model.ErrConflict) {
		metrics.RecordDuplicateRejected()
	}
	return err
}

// claimMonth holds the in-process gate for (player, month) during a write.
// It waits out an earlier holder; the in-transaction month check decides
// whether the write still fits.
func (s *Service) claimMonth(ctx context.Context, playerID string, date time.Time) (func(), error) {
	return s.guard.Acquire(ctx, playerID, date)
}

// invalidate drops cached progress after a committed write.
func (s *Service) invalidate(ctx context.Context, playerID string) {
	if err := s.progress.Invalidate(ctx, playerID); err != nil {
		s.log().Warn(ctx, "failed to invalidate progress cache",
			logger.String("playerID", playerID),
			logger.Error(err),
		)
	}
}

// subject resolves the authorization subject of a. A player that left the
// directory yields a subject without a coach, so only elevated roles pass.
func (s *Service) subject(ctx context.Context, a *model.Assessment) (access.Subject, bool, error) {
	p, err := s.players.Player(ctx, a.PlayerID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return access.Subject{Player: model.Player{ID: a.PlayerID}, Assessment: a}, false, nil
		}
		return access.Subject{}, false, err
	}
	return access.Subject{Player: p, Assessment: a}, true, nil
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC()
}
