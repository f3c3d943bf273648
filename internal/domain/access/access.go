// Package access holds the authorization matrix: one table of role and
// action to an ownership rule, evaluated once per request.
package access

import (
	"context"
	"fmt"

	"github.com/okian/pitchside/internal/domain/model"
	"github.com/okian/pitchside/internal/domain/roster"
	"github.com/okian/pitchside/pkg/metrics"
)

// Action is an operation on an assessment.
type Action string

const (
	ActionView     Action = "view"
	ActionCreate   Action = "create"
	ActionEdit     Action = "edit"
	ActionFinalize Action = "finalize"
	ActionDelete   Action = "delete"

	// ActionViewPlayer reads a player's history as a whole: lists and
	// progress analytics.
	ActionViewPlayer Action = "view_player"

	// ActionViewAssessor lists the assessments written by AssessorID.
	ActionViewAssessor Action = "view_assessor"
)

// Subject is what an action targets. Assessment is nil for create and the
// player-level actions; AssessorID is only read by ActionViewAssessor.
type Subject struct {
	Player     model.Player
	Assessment *model.Assessment
	AssessorID string
}

// rule reports whether actor may act on s.
type rule func(actor model.Actor, s Subject) bool

func allow(model.Actor, Subject) bool { return true }
func deny(model.Actor, Subject) bool  { return false }

// coachesPlayer: the player's current group is coached by the actor.
func coachesPlayer(actor model.Actor, s Subject) bool {
	return s.Player.CoachID != "" && s.Player.CoachID == actor.ID
}

func self(actor model.Actor, s Subject) bool {
	return s.AssessorID != "" && s.AssessorID == actor.ID
}

// assessorAndCoach: both conditions, not either.
func assessorAndCoach(actor model.Actor, s Subject) bool {
	return s.Assessment != nil && s.Assessment.AssessorID == actor.ID && coachesPlayer(actor, s)
}

var elevated = map[Action]rule{
	ActionView:         allow,
	ActionCreate:       allow,
	ActionEdit:         allow,
	ActionFinalize:     allow,
	ActionDelete:       allow,
	ActionViewPlayer:   allow,
	ActionViewAssessor: allow,
}

var table = map[model.Role]map[Action]rule{
	model.RoleAdmin:   elevated,
	model.RoleManager: elevated,
	model.RoleCoach: {
		ActionView:         assessorAndCoach,
		ActionCreate:       coachesPlayer,
		ActionEdit:         assessorAndCoach,
		ActionFinalize:     assessorAndCoach,
		ActionDelete:       deny,
		ActionViewPlayer:   coachesPlayer,
		ActionViewAssessor: self,
	},
}

// Matrix evaluates the table. With conceal set, refusals on existing
// assessments are reported as NotFound so callers cannot probe for ids.
type Matrix struct {
	conceal bool
}

// Option applies a configuration option to the Matrix.
type Option func(*Matrix)

// WithConcealForbidden maps AccessDenied on existing assessments to NotFound.
func WithConcealForbidden(conceal bool) Option {
	return func(m *Matrix) {
		m.conceal = conceal
	}
}

// NewMatrix creates the matrix.
func NewMatrix(opts ...Option) *Matrix {
	m := &Matrix{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Authorize returns nil when actor may perform action on s. Deleting a
// finalized assessment without an elevated role is a Conflict, checked
// before ownership. When concealing, actors who cannot view the assessment
// get NotFound instead.
func (m *Matrix) Authorize(actor model.Actor, action Action, s Subject) error {
	const op = "access.Authorize"

	if action == ActionDelete && s.Assessment != nil && s.Assessment.Finalized && !actor.Elevated() {
		if m.conceal && !m.Allowed(actor, ActionView, s) {
			metrics.RecordAccessDenied(string(action), string(actor.Role))
			return model.NotFound(op, "assessment %s not found", s.Assessment.ID)
		}
		return model.Conflict(op, "cannot delete a finalized assessment")
	}

	if m.Allowed(actor, action, s) {
		return nil
	}

	metrics.RecordAccessDenied(string(action), string(actor.Role))
	if m.conceal && s.Assessment != nil {
		return model.NotFound(op, "assessment %s not found", s.Assessment.ID)
	}
	return model.Denied(op, "%s may not %s %s", describe(actor), action, target(s))
}

// Allowed evaluates the table without producing an error. Unknown roles and
// actions are refused.
func (m *Matrix) Allowed(actor model.Actor, action Action, s Subject) bool {
	rules, ok := table[actor.Role]
	if !ok {
		return false
	}
	r, ok := rules[action]
	if !ok {
		return false
	}
	return r(actor, s)
}

// Scope returns the player ids whose assessments actor may see in bulk
// reads. A nil slice means no restriction.
func (m *Matrix) Scope(ctx context.Context, actor model.Actor, players roster.Players) ([]string, error) {
	if actor.Elevated() {
		return nil, nil
	}
	if actor.Role != model.RoleCoach {
		return []string{}, nil
	}
	ids, err := players.CoachedPlayerIDs(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("access: coached players of %s: %w", actor.ID, err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// Concealing reports whether refusals are reported as NotFound.
func (m *Matrix) Concealing() bool {
	return m.conceal
}

func describe(actor model.Actor) string {
	if actor.Role == "" {
		return "actor " + actor.ID
	}
	return fmt.Sprintf("%s %s", actor.Role, actor.ID)
}

func target(s Subject) string {
	switch {
	case s.Assessment != nil:
		return "assessment " + s.Assessment.ID
	case s.AssessorID != "":
		return "assessments of " + s.AssessorID
	}
	return "player " + s.Player.ID
}
