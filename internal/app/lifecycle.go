package service

import (
	"context"
	"strings"
	"time"

	"github.com/okian/pitchside/internal/adapters/repository"
	"github.com/okian/pitchside/internal/domain/access"
	"github.com/okian/pitchside/internal/domain/analytics"
	"github.com/okian/pitchside/internal/domain/model"
	"github.com/okian/pitchside/internal/domain/scoring"
	"github.com/okian/pitchside/internal/domain/skills"
	"github.com/okian/pitchside/pkg/logger"
	"github.com/okian/pitchside/pkg/metrics"
)

// CreateAssessment authorizes, checks the month rule, validates the ratings
// and writes the assessment with its score set in one transaction.
func (s *Service) CreateAssessment(ctx context.Context, actor model.Actor, in CreateInput) (out model.Assessment, err error) {
	const op = "create"
	defer s.track(ctx, op, actor, time.Now(), &err)
	if err := s.ready(op); err != nil {
		return model.Assessment{}, err
	}

	playerID := strings.TrimSpace(in.PlayerID)
	if playerID == "" {
		return model.Assessment{}, model.Invalid(op, "player id is required")
	}
	if in.Date.IsZero() {
		return model.Assessment{}, model.Invalid(op, "assessment date is required")
	}
	period, err := validPeriod(op, in.Period)
	if err != nil {
		return model.Assessment{}, err
	}
	date := model.DateOnly(in.Date)
	in.Ratings = skills.Normalize(in.Ratings)

	player, err := s.players.Player(ctx, playerID)
	if err != nil {
		return model.Assessment{}, err
	}
	if !player.Active {
		return model.Assessment{}, model.NotFound(op, "player %s not found or inactive", playerID)
	}

	if err := s.matrix.Authorize(actor, access.ActionCreate, access.Subject{Player: player}); err != nil {
		return model.Assessment{}, err
	}
	if err := s.checkMonth(ctx, s.store, playerID, date, ""); err != nil {
		return model.Assessment{}, err
	}
	if _, err := s.validator.Validate(ctx, in.Ratings, player.Level); err != nil {
		return model.Assessment{}, err
	}

	release, err := s.claimMonth(ctx, playerID, date)
	if err != nil {
		return model.Assessment{}, err
	}
	defer release()

	now := s.timestamp()
	a := model.Assessment{
		ID:         s.newID(),
		PlayerID:   playerID,
		AssessorID: actor.ID,
		Date:       date,
		Period:     period,
		Comments:   in.Comments,
		CoachNotes: in.CoachNotes,
		Finalized:  in.Finalized,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := s.checkMonth(ctx, tx, playerID, date, ""); err != nil {
			return err
		}
		scores, err := s.tracker.Snapshot(ctx, tx, a, in.Ratings)
		if err != nil {
			return err
		}
		a.Scores = scores
		return tx.Insert(ctx, a)
	})
	if err != nil {
		return model.Assessment{}, monthTaken(op, playerID, date, err)
	}

	s.invalidate(ctx, playerID)
	metrics.RecordScoresWritten(scoring.Counts(a.Scores))

	fields := []logger.Field{
		logger.String("assessmentID", a.ID),
		logger.String("playerID", playerID),
		logger.String("assessor", actor.ID),
		logger.String("month", date.Format("2006-01")),
		logger.Int("scores", len(a.Scores)),
		logger.Bool("finalized", a.Finalized),
	}
	if a.Finalized {
		c := s.recordFinalized(ctx, a, player.Level)
		fields = append(fields, logger.Bool("partial", c.Partial))
	}
	s.log().Info(ctx, "assessment created", fields...)

	return a, nil
}

// UpdateAssessment applies the provided fields only. A new score set
// replaces the old one wholesale; a date change refreshes the snapshots of
// the kept set.
func (s *Service) UpdateAssessment(ctx context.Context, actor model.Actor, id string, in UpdateInput) (out model.Assessment, err error) {
	const op = "update"
	defer s.track(ctx, op, actor, time.Now(), &err)
	if err := s.ready(op); err != nil {
		return model.Assessment{}, err
	}

	if in.Empty() {
		return model.Assessment{}, model.Invalid(op, "no fields to update")
	}
	in.Ratings = skills.Normalize(in.Ratings)
	var period model.Period
	if in.Period != nil {
		if period, err = validPeriod(op, *in.Period); err != nil {
			return model.Assessment{}, err
		}
	}
	var newDate time.Time
	if in.Date != nil {
		if in.Date.IsZero() {
			return model.Assessment{}, model.Invalid(op, "assessment date must not be empty")
		}
		newDate = model.DateOnly(*in.Date)
	}

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Assessment{}, storeErr(op, id, err)
	}
	subject, known, err := s.subject(ctx, &current)
	if err != nil {
		return model.Assessment{}, err
	}
	if err := s.matrix.Authorize(actor, access.ActionEdit, subject); err != nil {
		return model.Assessment{}, err
	}
	if current.Finalized && !actor.Elevated() {
		return model.Assessment{}, model.Conflict(op, "cannot edit a finalized assessment")
	}

	dateChanged := in.Date != nil && !newDate.Equal(current.Date)
	if dateChanged {
		if err := s.checkMonth(ctx, s.store, current.PlayerID, newDate, id); err != nil {
			return model.Assessment{}, err
		}
	}
	if in.Ratings != nil {
		if !known {
			return model.Assessment{}, model.NotFound(op, "player %s not found", current.PlayerID)
		}
		if _, err := s.validator.Validate(ctx, in.Ratings, subject.Player.Level); err != nil {
			return model.Assessment{}, err
		}
	}
	if dateChanged && monthMoved(current.Date, newDate) {
		release, err := s.claimMonth(ctx, current.PlayerID, newDate)
		if err != nil {
			return model.Assessment{}, err
		}
		defer release()
	}

	var updated model.Assessment
	err = s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		a, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return storeErr(op, id, err)
		}
		if a.Finalized && !actor.Elevated() {
			return model.Conflict(op, "cannot edit a finalized assessment")
		}
		if dateChanged {
			if err := s.checkMonth(ctx, tx, a.PlayerID, newDate, id); err != nil {
				return err
			}
			a.Date = newDate
		}
		if in.Period != nil {
			a.Period = period
		}
		if in.Comments != nil {
			a.Comments = *in.Comments
		}
		if in.CoachNotes != nil {
			a.CoachNotes = *in.CoachNotes
		}
		a.UpdatedAt = s.timestamp()

		if err := tx.Update(ctx, a); err != nil {
			return storeErr(op, id, err)
		}

		var scores []model.SkillScore
		switch {
		case in.Ratings != nil:
			scores, err = s.tracker.Snapshot(ctx, tx, a, in.Ratings)
		case dateChanged:
			scores, err = s.tracker.Recompute(ctx, tx, a)
		default:
			updated = a
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.ReplaceScores(ctx, id, scores); err != nil {
			return storeErr(op, id, err)
		}
		a.Scores = scores
		updated = a
		return nil
	})
	if err != nil {
		return model.Assessment{}, monthTaken(op, current.PlayerID, newDate, err)
	}

	if in.Ratings != nil || dateChanged {
		metrics.RecordScoresWritten(scoring.Counts(updated.Scores))
	}
	s.invalidate(ctx, updated.PlayerID)
	s.log().Info(ctx, "assessment updated",
		logger.String("assessmentID", id),
		logger.String("actor", actor.ID),
		logger.Bool("dateChanged", dateChanged),
		logger.Bool("scoresReplaced", in.Ratings != nil),
	)
	return updated, nil
}

// FinalizeAssessment locks the assessment against edits by non-elevated
// roles. Missing required skills are recorded but never block it.
func (s *Service) FinalizeAssessment(ctx context.Context, actor model.Actor, id string) (out model.Assessment, err error) {
	const op = "finalize"
	defer s.track(ctx, op, actor, time.Now(), &err)
	if err := s.ready(op); err != nil {
		return model.Assessment{}, err
	}

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Assessment{}, storeErr(op, id, err)
	}
	subject, _, err := s.subject(ctx, &current)
	if err != nil {
		return model.Assessment{}, err
	}
	if err := s.matrix.Authorize(actor, access.ActionFinalize, subject); err != nil {
		return model.Assessment{}, err
	}
	if current.Finalized {
		return model.Assessment{}, model.Conflict(op, "assessment %s is already finalized", id)
	}

	var finalized model.Assessment
	err = s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		a, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return storeErr(op, id, err)
		}
		if a.Finalized {
			return model.Conflict(op, "assessment %s is already finalized", id)
		}
		a.Finalized = true
		a.UpdatedAt = s.timestamp()
		if err := tx.Update(ctx, a); err != nil {
			return storeErr(op, id, err)
		}
		finalized = a
		return nil
	})
	if err != nil {
		return model.Assessment{}, err
	}

	s.invalidate(ctx, finalized.PlayerID)
	s.recordFinalized(ctx, finalized, subject.Player.Level)
	return finalized, nil
}

// DeleteAssessment removes the assessment and its score set. The finalized
// gate is part of the delete rule and is re-evaluated inside the
// transaction.
func (s *Service) DeleteAssessment(ctx context.Context, actor model.Actor, id string) (err error) {
	const op = "delete"
	defer s.track(ctx, op, actor, time.Now(), &err)
	if err := s.ready(op); err != nil {
		return err
	}

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return storeErr(op, id, err)
	}
	subject, _, err := s.subject(ctx, &current)
	if err != nil {
		return err
	}
	if err := s.matrix.Authorize(actor, access.ActionDelete, subject); err != nil {
		return err
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		a, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return storeErr(op, id, err)
		}
		subject.Assessment = &a
		if err := s.matrix.Authorize(actor, access.ActionDelete, subject); err != nil {
			return err
		}
		return storeErr(op, id, tx.Delete(ctx, id))
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, current.PlayerID)
	s.log().Info(ctx, "assessment deleted",
		logger.String("assessmentID", id),
		logger.String("playerID", current.PlayerID),
		logger.String("actor", actor.ID),
		logger.Bool("wasFinalized", current.Finalized),
		logger.Int("scores", len(current.Scores)),
	)
	return nil
}

// recordFinalized logs and meters completeness of a just-finalized
// assessment. Catalog failures only cost the log line.
func (s *Service) recordFinalized(ctx context.Context, a model.Assessment, level model.Level) analytics.Completeness {
	fields := []logger.Field{
		logger.String("assessmentID", a.ID),
		logger.String("playerID", a.PlayerID),
	}

	var c analytics.Completeness
	if level.Valid() {
		var err error
		c, err = s.aggregator.Completeness(ctx, a, level)
		if err != nil {
			s.log().Warn(ctx, "completeness check failed", append(fields, logger.Error(err))...)
			metrics.RecordFinalized(false)
			return c
		}
	}
	metrics.RecordFinalized(c.Partial)

	if c.Partial {
		s.log().Warn(ctx, "assessment finalized with missing skills", append(fields,
			logger.Bool("partial", true),
			logger.Int("required", c.Required),
			logger.Int("assessed", c.Assessed),
			logger.Strings("missing", c.Missing),
		)...)
		return c
	}
	s.log().Info(ctx, "assessment finalized", append(fields, logger.Bool("partial", false))...)
	return c
}

func monthMoved(from, to time.Time) bool {
	return from.Year() != to.Year() || from.Month() != to.Month()
}
