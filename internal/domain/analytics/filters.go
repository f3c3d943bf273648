package analytics

import (
	"time"

	"github.com/okian/pitchside/internal/domain/model"
)

// Filters narrow a summary. Zero values are ignored.
type Filters struct {
	PlayerID string
	GroupID  string
	Period   model.Period
	DateFrom time.Time // inclusive
	DateTo   time.Time // inclusive
}

type predicate func(a model.Assessment) bool

// predicates turns f into a chain applied in order. members is the
// resolved player set of f.GroupID.
func (f Filters) predicates(members map[string]struct{}) []predicate {
	var out []predicate
	if f.PlayerID != "" {
		out = append(out, func(a model.Assessment) bool { return a.PlayerID == f.PlayerID })
	}
	if f.GroupID != "" {
		out = append(out, func(a model.Assessment) bool {
			_, ok := members[a.PlayerID]
			return ok
		})
	}
	if f.Period != "" {
		out = append(out, func(a model.Assessment) bool { return a.Period == f.Period })
	}
	if !f.DateFrom.IsZero() {
		from := model.DateOnly(f.DateFrom)
		out = append(out, func(a model.Assessment) bool { return !a.Date.Before(from) })
	}
	if !f.DateTo.IsZero() {
		to := model.DateOnly(f.DateTo)
		out = append(out, func(a model.Assessment) bool { return !a.Date.After(to) })
	}
	return out
}

func apply(assessments []model.Assessment, preds []predicate) []model.Assessment {
	out := assessments
	for _, p := range preds {
		kept := make([]model.Assessment, 0, len(out))
		for _, a := range out {
			if p(a) {
				kept = append(kept, a)
			}
		}
		out = kept
	}
	return out
}
