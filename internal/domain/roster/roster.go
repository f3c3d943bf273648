// Package roster declares the read-only collaborators the assessment core
// consumes: the player directory, the skill catalog and the actor directory.
// Implementations live under internal/adapters.
package roster

import (
	"context"

	"github.com/okian/pitchside/internal/domain/model"
)

// Players resolves players and group membership.
type Players interface {
	// Player returns the player with its current group and coach.
	// Unknown ids yield an error wrapping model.ErrNotFound.
	Player(ctx context.Context, id string) (model.Player, error)

	// CoachedPlayerIDs returns every player in groups coached by coachID.
	CoachedPlayerIDs(ctx context.Context, coachID string) ([]string, error)

	// GroupPlayerIDs returns the players currently in groupID.
	GroupPlayerIDs(ctx context.Context, groupID string) ([]string, error)
}

// Skills is the skill catalog.
type Skills interface {
	// SkillsByID returns the skills found for ids; missing ids are absent
	// from the map rather than reported as an error.
	SkillsByID(ctx context.Context, ids []string) (map[string]model.Skill, error)

	// ActiveSkills returns the active skills applicable to level.
	ActiveSkills(ctx context.Context, level model.Level) ([]model.Skill, error)
}

// Actors resolves caller identities.
type Actors interface {
	Actor(ctx context.Context, id string) (model.Actor, error)
}
