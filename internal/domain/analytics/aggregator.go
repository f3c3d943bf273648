package analytics

import (
	"context"
	"fmt"
	"sort"

	"github.com/okian/pitchside/internal/domain/model"
	"github.com/okian/pitchside/internal/domain/roster"
)

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithTrendThreshold overrides the Improving/Declining cut-off.
func WithTrendThreshold(threshold float64) Option {
	return func(g *Aggregator) {
		if threshold >= 0 {
			g.threshold = threshold
		}
	}
}

// Aggregator resolves skills and group membership for the pure functions in
// this package. It never writes.
type Aggregator struct {
	skills    roster.Skills
	players   roster.Players
	threshold float64
}

// NewAggregator creates an aggregator over the given directories.
func NewAggregator(skills roster.Skills, players roster.Players, opts ...Option) *Aggregator {
	g := &Aggregator{
		skills:    skills,
		players:   players,
		threshold: DefaultTrendThreshold,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Completeness checks a against the active skills for level.
func (g *Aggregator) Completeness(ctx context.Context, a model.Assessment, level model.Level) (Completeness, error) {
	required, err := g.skills.ActiveSkills(ctx, level)
	if err != nil {
		return Completeness{}, fmt.Errorf("analytics: active skills for %s: %w", level, err)
	}
	return CheckCompleteness(a, required), nil
}

// Stats computes the per-assessment statistics of a for a player at level.
func (g *Aggregator) Stats(ctx context.Context, a model.Assessment, level model.Level) (AssessmentStats, error) {
	c, err := g.Completeness(ctx, a, level)
	if err != nil {
		return AssessmentStats{}, err
	}
	catalog, err := g.catalog(ctx, []model.Assessment{a})
	if err != nil {
		return AssessmentStats{}, err
	}
	return AssessmentStats{
		AssessmentID:     a.ID,
		OverallAverage:   OverallAverage(a),
		CategoryAverages: CategoryAveragesOf(a, catalog),
		Completeness:     c,
	}, nil
}

// PlayerProgress summarizes history, the full list of a player's
// assessments in any order. With no history the trend is Stable and the
// latest date is nil.
func (g *Aggregator) PlayerProgress(ctx context.Context, playerID string, history []model.Assessment) (Progress, error) {
	p := Progress{
		PlayerID:         playerID,
		TotalAssessments: len(history),
		CategoryAverages: CategoryAverages{},
		Trend:            TrendStable,
	}
	if len(history) == 0 {
		return p, nil
	}

	ordered := make([]model.Assessment, len(history))
	copy(ordered, history)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date.After(ordered[j].Date)
	})

	catalog, err := g.catalog(ctx, ordered)
	if err != nil {
		return Progress{}, err
	}

	var overall mean
	perCategory := map[model.Category]*mean{}
	for _, a := range ordered {
		overall.add(OverallAverage(a))
		for c, v := range CategoryAveragesOf(a, catalog) {
			m, ok := perCategory[c]
			if !ok {
				m = &mean{}
				perCategory[c] = m
			}
			m.add(v)
		}
	}
	p.AverageScore, _ = overall.value()
	for c, m := range perCategory {
		p.CategoryAverages[c], _ = m.value()
	}

	latest, earliest := ordered[0], ordered[len(ordered)-1]
	p.Trend = ClassifyTrend(OverallAverage(earliest), OverallAverage(latest), g.threshold)
	d := latest.Date
	p.LatestAssessmentDate = &d
	return p, nil
}

// Summary applies f to assessments in order and aggregates the rest.
// assessments must already be scoped to what the caller may see.
func (g *Aggregator) Summary(ctx context.Context, assessments []model.Assessment, f Filters) (Summary, error) {
	var members map[string]struct{}
	if f.GroupID != "" {
		ids, err := g.players.GroupPlayerIDs(ctx, f.GroupID)
		if err != nil {
			return Summary{}, fmt.Errorf("analytics: members of group %s: %w", f.GroupID, err)
		}
		members = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			members[id] = struct{}{}
		}
	}

	matched := apply(assessments, f.predicates(members))
	s := Summary{
		TotalAssessments:       len(matched),
		AverageScoreByCategory: CategoryAverages{},
	}
	for _, a := range matched {
		if a.Finalized {
			s.CompletedAssessments++
		}
	}
	s.PendingAssessments = s.TotalAssessments - s.CompletedAssessments

	catalog, err := g.catalog(ctx, matched)
	if err != nil {
		return Summary{}, err
	}
	perCategory := map[model.Category]*mean{}
	for _, a := range matched {
		for _, sc := range a.Scores {
			sk, ok := catalog[sc.SkillID]
			if !ok {
				continue
			}
			m, ok := perCategory[sk.Category]
			if !ok {
				m = &mean{}
				perCategory[sk.Category] = m
			}
			m.add(float64(sc.Score))
		}
	}
	for c, m := range perCategory {
		s.AverageScoreByCategory[c], _ = m.value()
	}
	return s, nil
}

func (g *Aggregator) catalog(ctx context.Context, assessments []model.Assessment) (map[string]model.Skill, error) {
	ids := skillIDs(assessments)
	if len(ids) == 0 {
		return map[string]model.Skill{}, nil
	}
	found, err := g.skills.SkillsByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("analytics: load skills: %w", err)
	}
	return found, nil
}
