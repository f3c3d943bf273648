// Package scoring builds skill score sets with their improvement snapshots.
package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/pitchside/internal/domain/model"
)

// History answers "what did this player last score on these skills".
type History interface {
	LatestScoresBefore(ctx context.Context, playerID string, skillIDs []string, before time.Time, excludeID string) (map[string]int, error)
}

// Option applies a configuration option to the Tracker.
type Option func(*Tracker)

// WithIDGenerator replaces the uuid generator for score ids.
func WithIDGenerator(fn func() string) Option {
	return func(t *Tracker) {
		if fn != nil {
			t.newID = fn
		}
	}
}

// Tracker computes previousScore and improvement at write time.
type Tracker struct {
	newID func() string
}

// NewTracker creates a tracker that issues uuid score ids.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{newID: uuid.NewString}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Snapshot turns ratings into the score set of a, looking up each skill's
// latest score from the player's assessments dated strictly before a.Date.
// a itself is always excluded from the lookup.
func (t *Tracker) Snapshot(ctx context.Context, h History, a model.Assessment, ratings []model.Rating) ([]model.SkillScore, error) {
	scores := make([]model.SkillScore, len(ratings))
	for i, r := range ratings {
		scores[i] = model.SkillScore{
			ID:           t.newID(),
			AssessmentID: a.ID,
			SkillID:      r.SkillID,
			Score:        r.Score,
			Notes:        r.Notes,
		}
	}
	return t.apply(ctx, h, a, scores)
}

// Recompute refreshes the snapshots of a's existing scores, keeping their
// ids. Used when an assessment moves in the player's history.
func (t *Tracker) Recompute(ctx context.Context, h History, a model.Assessment) ([]model.SkillScore, error) {
	scores := make([]model.SkillScore, len(a.Scores))
	for i, s := range a.Scores {
		scores[i] = model.SkillScore{
			ID:           s.ID,
			AssessmentID: a.ID,
			SkillID:      s.SkillID,
			Score:        s.Score,
			Notes:        s.Notes,
		}
	}
	return t.apply(ctx, h, a, scores)
}

func (t *Tracker) apply(ctx context.Context, h History, a model.Assessment, scores []model.SkillScore) ([]model.SkillScore, error) {
	if len(scores) == 0 {
		return scores, nil
	}
	ids := make([]string, len(scores))
	for i, s := range scores {
		ids[i] = s.SkillID
	}

	previous, err := h.LatestScoresBefore(ctx, a.PlayerID, ids, a.Date, a.ID)
	if err != nil {
		return nil, fmt.Errorf("scoring: load history for player %s: %w", a.PlayerID, err)
	}

	for i := range scores {
		prev, ok := previous[scores[i].SkillID]
		if !ok {
			continue
		}
		scores[i].PreviousScore = model.IntPtr(prev)
		scores[i].Improvement = model.IntPtr(scores[i].Score - prev)
	}
	return scores, nil
}

// Counts splits scores by whether a previous score was found.
func Counts(scores []model.SkillScore) (withPrevious, withoutPrevious int) {
	for _, s := range scores {
		if s.PreviousScore != nil {
			withPrevious++
		} else {
			withoutPrevious++
		}
	}
	return withPrevious, withoutPrevious
}
