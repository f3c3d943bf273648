// Package skills validates skill ratings against the catalog and the
// player's level.
package skills

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/okian/pitchside/internal/domain/model"
	"github.com/okian/pitchside/internal/domain/roster"
)

// Score bounds, inclusive.
const (
	MinScore = 1
	MaxScore = 10
)

const opValidate = "skills.validate"

// Option applies a configuration option to the Validator.
type Option func(*Validator)

// WithScoreRange overrides the accepted score bounds.
func WithScoreRange(minScore, maxScore int) Option {
	return func(v *Validator) {
		if minScore <= maxScore {
			v.minScore = minScore
			v.maxScore = maxScore
		}
	}
}

// Validator checks a batch of ratings. It never writes anything.
type Validator struct {
	catalog  roster.Skills
	minScore int
	maxScore int
}

// NewValidator creates a Validator backed by catalog.
func NewValidator(catalog roster.Skills, opts ...Option) *Validator {
	v := &Validator{
		catalog:  catalog,
		minScore: MinScore,
		maxScore: MaxScore,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Normalize returns ratings with skill ids trimmed, preserving a nil or empty
// input as is. Validate and the score writer must see the same ids.
func Normalize(ratings []model.Rating) []model.Rating {
	if ratings == nil {
		return nil
	}
	out := make([]model.Rating, len(ratings))
	for i, r := range ratings {
		r.SkillID = strings.TrimSpace(r.SkillID)
		out[i] = r
	}
	return out
}

// Validate checks every rating against level. Either all ratings pass or the
// whole batch is rejected. On success it returns the resolved skills keyed by
// id so callers do not need a second catalog round-trip.
func (v *Validator) Validate(ctx context.Context, ratings []model.Rating, level model.Level) (map[string]model.Skill, error) {
	ratings = Normalize(ratings)
	ids := make([]string, 0, len(ratings))
	seen := make(map[string]struct{}, len(ratings))
	for _, r := range ratings {
		id := r.SkillID
		if id == "" {
			return nil, model.Invalid(opValidate, "skill id is required for every rating")
		}
		if _, dup := seen[id]; dup {
			return nil, model.Invalid(opValidate, "skill %s is rated more than once", id)
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return map[string]model.Skill{}, nil
	}

	found, err := v.catalog.SkillsByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%s: load skills: %w", opValidate, err)
	}

	var missing []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, model.NotFound(opValidate, "skills not found: %s", strings.Join(missing, ", "))
	}

	var problems []string
	for _, r := range ratings {
		s := found[r.SkillID]
		if s.Level != level {
			problems = append(problems, fmt.Sprintf("skill %s applies to %s players, not %s", s.ID, s.Level, level))
		}
		if !s.Active {
			problems = append(problems, fmt.Sprintf("skill %s is inactive", s.ID))
		}
		if r.Score < v.minScore || r.Score > v.maxScore {
			problems = append(problems, fmt.Sprintf("score %d for skill %s is outside [%d,%d]", r.Score, s.ID, v.minScore, v.maxScore))
		}
	}
	if len(problems) > 0 {
		return nil, model.Invalid(opValidate, "%s", strings.Join(problems, "; "))
	}
	return found, nil
}
