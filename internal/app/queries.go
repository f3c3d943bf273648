package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/okian/pitchside/internal/adapters/cache"
	"github.com/okian/pitchside/internal/adapters/repository"
	"github.com/okian/pitchside/internal/domain/access"
	"github.com/okian/pitchside/internal/domain/analytics"
	"github.com/okian/pitchside/internal/domain/model"
	"github.com/okian/pitchside/pkg/logger"
)

// GetAssessment returns one assessment with its score set.
func (s *Service) GetAssessment(ctx context.Context, actor model.Actor, id string) (out model.Assessment, err error) {
	const op = "get"
	defer s.track(ctx, op, actor, time.Now(), &err)
	if err := s.ready(op); err != nil {
		return model.Assessment{}, err
	}

	a, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Assessment{}, storeErr(op, id, err)
	}
	subject, _, err := s.subject(ctx, &a)
	if err != nil {
		return model.Assessment{}, err
	}
	if err := s.matrix.Authorize(actor, access.ActionView, subject); err != nil {
		return model.Assessment{}, err
	}
	return a, nil
}

// ListAssessmentsForPlayer returns the player's assessments, newest first,
// that actor may view.
func (s *Service) ListAssessmentsForPlayer(ctx context.Context, actor model.Actor, playerID string) (out []model.Assessment, err error) {
	const op = "list_player"
	defer s.track(ctx, op, actor, time.Now(), &err)
	if err := s.ready(op); err != nil {
		return nil, err
	}

	player, err := s.players.Player(ctx, strings.TrimSpace(playerID))
	if err != nil {
		return nil, err
	}
	if err := s.matrix.Authorize(actor, access.ActionViewPlayer, access.Subject{Player: player}); err != nil {
		return nil, err
	}

	list, err := s.store.List(ctx, repository.Filter{PlayerIDs: []string{player.ID}})
	if err != nil {
		return nil, err
	}
	return s.visible(ctx, actor, list)
}

// ListAssessmentsForAssessor returns the assessments written by assessorID.
// Coaches may only ask for their own.
func (s *Service) ListAssessmentsForAssessor(ctx context.Context, actor model.Actor, assessorID string) (out []model.Assessment, err error) {
	const op = "list_assessor"
	defer s.track(ctx, op, actor, time.Now(), &err)
	if err := s.ready(op); err != nil {
		return nil, err
	}

	assessorID = strings.TrimSpace(assessorID)
	if assessorID == "" {
		return nil, model.Invalid(op, "assessor id is required")
	}
	if err := s.matrix.Authorize(actor, access.ActionViewAssessor, access.Subject{AssessorID: assessorID}); err != nil {
		return nil, err
	}

	list, err := s.store.List(ctx, repository.Filter{AssessorID: assessorID})
	if err != nil {
		return nil, err
	}
	return s.visible(ctx, actor, list)
}

// ListAssessmentsInDateRange returns assessments dated within [from, to]
// for the players in actor's scope. Zero bounds are open.
func (s *Service) ListAssessmentsInDateRange(ctx context.Context, actor model.Actor, from, to time.Time) (out []model.Assessment, err error) {
	const op = "list_range"
	defer s.track(ctx, op, actor, time.Now(), &err)
	if err := s.ready(op); err != nil {
		return nil, err
	}

	if err := validRange(op, from, to); err != nil {
		return nil, err
	}
	scope, err := s.matrix.Scope(ctx, actor, s.players)
	if err != nil {
		return nil, err
	}

	f := repository.Filter{PlayerIDs: scope}
	if !from.IsZero() {
		f.From = model.DateOnly(from)
	}
	if !to.IsZero() {
		f.To = model.DateOnly(to)
	}
	list, err := s.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return s.visible(ctx, actor, list)
}

// AssessmentSummary aggregates the assessments in actor's scope after
// applying f.
func (s *Service) AssessmentSummary(ctx context.Context, actor model.Actor, f analytics.Filters) (out analytics.Summary, err error) {
	const op = "summary"
	defer s.track(ctx, op, actor, time.Now(), &err)
	if err := s.ready(op); err != nil {
		return analytics.Summary{}, err
	}

	if f.Period != "" {
		if _, err := validPeriod(op, f.Period); err != nil {
			return analytics.Summary{}, err
		}
	}
	if err := validRange(op, f.DateFrom, f.DateTo); err != nil {
		return analytics.Summary{}, err
	}
	scope, err := s.matrix.Scope(ctx, actor, s.players)
	if err != nil {
		return analytics.Summary{}, err
	}

	list, err := s.store.List(ctx, repository.Filter{PlayerIDs: scope})
	if err != nil {
		return analytics.Summary{}, err
	}
	return s.aggregator.Summary(ctx, list, f)
}

// PlayerProgress reports the player's averages and trend over their whole
// history. Results are cached until the player's next write.
func (s *Service) PlayerProgress(ctx context.Context, actor model.Actor, playerID string) (out analytics.Progress, err error) {
	const op = "progress"
	defer s.track(ctx, op, actor, time.Now(), &err)
	if err := s.ready(op); err != nil {
		return analytics.Progress{}, err
	}

	player, err := s.players.Player(ctx, strings.TrimSpace(playerID))
	if err != nil {
		return analytics.Progress{}, err
	}
	if err := s.matrix.Authorize(actor, access.ActionViewPlayer, access.Subject{Player: player}); err != nil {
		return analytics.Progress{}, err
	}

	cached, err := s.progress.Get(ctx, player.ID)
	switch {
	case err == nil:
		return cached, nil
	case !errors.Is(err, cache.ErrCacheMiss):
		s.log().Warn(ctx, "progress cache read failed", logger.String("playerID", player.ID), logger.Error(err))
	}

	history, err := s.store.List(ctx, repository.Filter{PlayerIDs: []string{player.ID}})
	if err != nil {
		return analytics.Progress{}, err
	}
	p, err := s.aggregator.PlayerProgress(ctx, player.ID, history)
	if err != nil {
		return analytics.Progress{}, err
	}
	if err := s.progress.Set(ctx, p); err != nil {
		s.log().Warn(ctx, "progress cache write failed", logger.String("playerID", player.ID), logger.Error(err))
	}
	return p, nil
}

// AssessmentStatistics returns averages and completeness of one assessment.
func (s *Service) AssessmentStatistics(ctx context.Context, actor model.Actor, id string) (out analytics.AssessmentStats, err error) {
	const op = "stats"
	defer s.track(ctx, op, actor, time.Now(), &err)
	if err := s.ready(op); err != nil {
		return analytics.AssessmentStats{}, err
	}

	a, err := s.store.Get(ctx, id)
	if err != nil {
		return analytics.AssessmentStats{}, storeErr(op, id, err)
	}
	subject, known, err := s.subject(ctx, &a)
	if err != nil {
		return analytics.AssessmentStats{}, err
	}
	if err := s.matrix.Authorize(actor, access.ActionView, subject); err != nil {
		return analytics.AssessmentStats{}, err
	}
	if !known {
		return analytics.AssessmentStats{}, model.NotFound(op, "player %s not found", a.PlayerID)
	}
	return s.aggregator.Stats(ctx, a, subject.Player.Level)
}

// visible keeps the assessments actor may view.
func (s *Service) visible(ctx context.Context, actor model.Actor, list []model.Assessment) ([]model.Assessment, error) {
	if actor.Elevated() {
		return list, nil
	}
	players := map[string]model.Player{}
	out := make([]model.Assessment, 0, len(list))
	for i := range list {
		p, ok := players[list[i].PlayerID]
		if !ok {
			subject, _, err := s.subject(ctx, &list[i])
			if err != nil {
				return nil, err
			}
			p = subject.Player
			players[p.ID] = p
		}
		if s.matrix.Allowed(actor, access.ActionView, access.Subject{Player: p, Assessment: &list[i]}) {
			out = append(out, list[i])
		}
	}
	return out, nil
}

func validRange(op string, from, to time.Time) error {
	if !from.IsZero() && !to.IsZero() && model.DateOnly(from).After(model.DateOnly(to)) {
		return model.Invalid(op, "date range start %s is after end %s", from.Format(time.DateOnly), to.Format(time.DateOnly))
	}
	return nil
}
