// Package model contains domain models passed between layers.
package model

import "time"

// Assessment is one player's periodic skill evaluation.
// Scores is the owned score set; other entities are referenced by id only.
type Assessment struct {
	ID         string
	PlayerID   string
	AssessorID string // creating user, immutable after creation
	Date       time.Time
	Period     Period
	Comments   string
	CoachNotes string
	Finalized  bool
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Scores []SkillScore
}

// Year and Month return the calendar bucket used by the one-per-month rule.
func (a Assessment) Year() int          { return a.Date.Year() }
func (a Assessment) Month() time.Month { return a.Date.Month() }

// SkillIDs returns the ids of all assessed skills in score order.
func (a Assessment) SkillIDs() []string {
	ids := make([]string, 0, len(a.Scores))
	for _, s := range a.Scores {
		ids = append(ids, s.SkillID)
	}
	return ids
}

// Clone returns a deep copy so callers cannot alias the score set.
func (a Assessment) Clone() Assessment {
	out := a
	if a.Scores != nil {
		out.Scores = make([]SkillScore, len(a.Scores))
		for i, s := range a.Scores {
			out.Scores[i] = s.Clone()
		}
	}
	return out
}

// SkillScore is a single 1..10 rating inside an assessment.
// PreviousScore and Improvement are snapshots taken when the score is written.
type SkillScore struct {
	ID            string
	AssessmentID  string
	SkillID       string
	Score         int
	Notes         string
	PreviousScore *int
	Improvement   *int
}

// Clone copies the nullable snapshot fields.
func (s SkillScore) Clone() SkillScore {
	out := s
	if s.PreviousScore != nil {
		v := *s.PreviousScore
		out.PreviousScore = &v
	}
	if s.Improvement != nil {
		v := *s.Improvement
		out.Improvement = &v
	}
	return out
}

// Rating is a requested (skill, score) pair before it is persisted.
type Rating struct {
	SkillID string
	Score   int
	Notes   string
}

// Skill is a read-only catalog entry.
type Skill struct {
	ID       string
	Name     string
	Category Category
	Level    Level
	Active   bool
}

// Player is the subset of the player directory this service consumes.
// CoachID is the coach of the player's current group, empty if none.
type Player struct {
	ID      string
	Name    string
	Level   Level
	Active  bool
	GroupID string
	CoachID string
}

// Actor is the caller identity threaded through every operation.
type Actor struct {
	ID   string
	Role Role
}

// Elevated reports whether the actor bypasses ownership rules.
func (a Actor) Elevated() bool {
	return a.Role == RoleAdmin || a.Role == RoleManager
}

// DateOnly truncates t to UTC midnight.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IntPtr is a small helper for building nullable snapshot values.
func IntPtr(v int) *int { return &v }
