// Package analytics computes read-only statistics over persisted
// assessments: completeness, averages, player progress and summaries.
package analytics

import (
	"sort"
	"time"

	"github.com/okian/pitchside/internal/domain/model"
)

// DefaultTrendThreshold is the overall-average delta between the earliest
// and latest assessment needed to call a trend Improving or Declining.
const DefaultTrendThreshold = 0.5

// Trend classifies a player's progress.
type Trend string

const (
	TrendImproving Trend = "Improving"
	TrendStable    Trend = "Stable"
	TrendDeclining Trend = "Declining"
)

// Completeness reports which required skills an assessment covers.
type Completeness struct {
	Complete bool
	Partial  bool
	Required int
	Assessed int
	Missing  []string // sorted
}

// CategoryAverages maps a category to its mean score. Categories that were
// not assessed are absent, never zero.
type CategoryAverages map[model.Category]float64

// AssessmentStats is the per-assessment statistics view.
type AssessmentStats struct {
	AssessmentID     string
	OverallAverage   float64
	CategoryAverages CategoryAverages
	Completeness
}

// Progress is a player's trend over their whole history.
type Progress struct {
	PlayerID             string
	TotalAssessments     int
	AverageScore         float64
	CategoryAverages     CategoryAverages
	Trend                Trend
	LatestAssessmentDate *time.Time
}

// Summary aggregates a filtered set of assessments.
type Summary struct {
	TotalAssessments       int
	CompletedAssessments   int
	PendingAssessments     int
	AverageScoreByCategory CategoryAverages
}

// CheckCompleteness compares the assessed skills of a with required.
// Complete iff the assessed ids are a superset of the required ids.
func CheckCompleteness(a model.Assessment, required []model.Skill) Completeness {
	assessed := make(map[string]struct{}, len(a.Scores))
	for _, s := range a.Scores {
		assessed[s.SkillID] = struct{}{}
	}

	missing := []string{}
	for _, sk := range required {
		if _, ok := assessed[sk.ID]; !ok {
			missing = append(missing, sk.ID)
		}
	}
	sort.Strings(missing)

	complete := len(missing) == 0
	return Completeness{
		Complete: complete,
		Partial:  !complete,
		Required: len(required),
		Assessed: len(assessed),
		Missing:  missing,
	}
}

// OverallAverage is the mean of every score in a, or 0 when a has none.
func OverallAverage(a model.Assessment) float64 {
	if len(a.Scores) == 0 {
		return 0
	}
	total := 0
	for _, s := range a.Scores {
		total += s.Score
	}
	return float64(total) / float64(len(a.Scores))
}

// CategoryAverage is the mean of a's scores whose skill is in category.
// ok is false when no score matched. Scores for skills missing from catalog
// are ignored.
func CategoryAverage(a model.Assessment, catalog map[string]model.Skill, category model.Category) (avg float64, ok bool) {
	var m mean
	for _, s := range a.Scores {
		if sk, found := catalog[s.SkillID]; found && sk.Category == category {
			m.add(float64(s.Score))
		}
	}
	return m.value()
}

// CategoryAveragesOf computes every assessed category of a.
func CategoryAveragesOf(a model.Assessment, catalog map[string]model.Skill) CategoryAverages {
	out := CategoryAverages{}
	for _, c := range model.Categories {
		if v, ok := CategoryAverage(a, catalog, c); ok {
			out[c] = v
		}
	}
	return out
}

// ClassifyTrend compares the earliest and latest overall averages.
func ClassifyTrend(earliest, latest, threshold float64) Trend {
	delta := latest - earliest
	switch {
	case delta > threshold:
		return TrendImproving
	case delta < -threshold:
		return TrendDeclining
	}
	return TrendStable
}

type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v float64) {
	m.sum += v
	m.n++
}

func (m mean) value() (float64, bool) {
	if m.n == 0 {
		return 0, false
	}
	return m.sum / float64(m.n), true
}

// skillIDs collects the distinct skill ids scored across assessments.
func skillIDs(assessments []model.Assessment) []string {
	seen := map[string]struct{}{}
	var ids []string
	for _, a := range assessments {
		for _, s := range a.Scores {
			if _, ok := seen[s.SkillID]; ok {
				continue
			}
			seen[s.SkillID] = struct{}{}
			ids = append(ids, s.SkillID)
		}
	}
	sort.Strings(ids)
	return ids
}
