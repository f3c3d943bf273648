// Package directory is a read-only, YAML-backed roster: players, groups,
// skills and actors. It implements the roster collaborator interfaces.
package directory

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sort"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/pitchside/internal/domain/model"
)

//go:embed sample.yaml
var sample []byte

// ErrInvalidRoster marks a roster document that fails validation.
var ErrInvalidRoster = errors.New("invalid roster")

// Group is a training group and its current coach.
type Group struct {
	ID    string `koanf:"id"`
	Name  string `koanf:"name"`
	Coach string `koanf:"coach"`
}

// PlayerRecord is a player as written in the roster file.
type PlayerRecord struct {
	ID     string `koanf:"id"`
	Name   string `koanf:"name"`
	Level  string `koanf:"level"`
	Active bool   `koanf:"active"`
	Group  string `koanf:"group"`
}

// SkillRecord is a catalog entry as written in the roster file.
type SkillRecord struct {
	ID       string `koanf:"id"`
	Name     string `koanf:"name"`
	Category string `koanf:"category"`
	Level    string `koanf:"level"`
	Active   bool   `koanf:"active"`
}

// ActorRecord is a user identity and role.
type ActorRecord struct {
	ID   string `koanf:"id"`
	Role string `koanf:"role"`
}

// Data is the whole roster document.
type Data struct {
	Groups  []Group        `koanf:"groups"`
	Players []PlayerRecord `koanf:"players"`
	Skills  []SkillRecord  `koanf:"skills"`
	Actors  []ActorRecord  `koanf:"actors"`
}

// Directory answers roster lookups from an immutable snapshot.
type Directory struct {
	groups  map[string]Group
	players map[string]model.Player
	skills  map[string]model.Skill
	actors  map[string]model.Actor
}

// Load reads a YAML roster from path.
func Load(path string) (*Directory, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("directory: load %s: %w", path, err)
	}
	return fromKoanf(k)
}

// Parse reads a YAML roster from memory.
func Parse(b []byte) (*Directory, error) {
	k := koanf.New(".")
	if err := k.Load(bytesProvider(b), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("directory: parse: %w", err)
	}
	return fromKoanf(k)
}

// Sample returns the built-in demo roster.
func Sample() (*Directory, error) {
	return Parse(sample)
}

func fromKoanf(k *koanf.Koanf) (*Directory, error) {
	var d Data
	if err := k.UnmarshalWithConf("", &d, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("directory: decode: %w", err)
	}
	return New(d)
}

// New validates d and builds a Directory from it.
func New(d Data) (*Directory, error) {
	dir := &Directory{
		groups:  make(map[string]Group, len(d.Groups)),
		players: make(map[string]model.Player, len(d.Players)),
		skills:  make(map[string]model.Skill, len(d.Skills)),
		actors:  make(map[string]model.Actor, len(d.Actors)),
	}

	for _, g := range d.Groups {
		if g.ID == "" {
			return nil, fmt.Errorf("%w: group without id", ErrInvalidRoster)
		}
		if _, dup := dir.groups[g.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate group %s", ErrInvalidRoster, g.ID)
		}
		dir.groups[g.ID] = g
	}

	for _, p := range d.Players {
		if p.ID == "" {
			return nil, fmt.Errorf("%w: player without id", ErrInvalidRoster)
		}
		if _, dup := dir.players[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate player %s", ErrInvalidRoster, p.ID)
		}
		level := model.Level(p.Level)
		if !level.Valid() {
			return nil, fmt.Errorf("%w: player %s has unknown level %q", ErrInvalidRoster, p.ID, p.Level)
		}
		player := model.Player{ID: p.ID, Name: p.Name, Level: level, Active: p.Active, GroupID: p.Group}
		if p.Group != "" {
			g, ok := dir.groups[p.Group]
			if !ok {
				return nil, fmt.Errorf("%w: player %s references unknown group %s", ErrInvalidRoster, p.ID, p.Group)
			}
			player.CoachID = g.Coach
		}
		dir.players[p.ID] = player
	}

	for _, s := range d.Skills {
		if s.ID == "" {
			return nil, fmt.Errorf("%w: skill without id", ErrInvalidRoster)
		}
		if _, dup := dir.skills[s.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate skill %s", ErrInvalidRoster, s.ID)
		}
		skill := model.Skill{
			ID:       s.ID,
			Name:     s.Name,
			Category: model.Category(s.Category),
			Level:    model.Level(s.Level),
			Active:   s.Active,
		}
		if !skill.Category.Valid() {
			return nil, fmt.Errorf("%w: skill %s has unknown category %q", ErrInvalidRoster, s.ID, s.Category)
		}
		if !skill.Level.Valid() {
			return nil, fmt.Errorf("%w: skill %s has unknown level %q", ErrInvalidRoster, s.ID, s.Level)
		}
		dir.skills[s.ID] = skill
	}

	for _, a := range d.Actors {
		role := model.Role(a.Role)
		if a.ID == "" || !role.Valid() {
			return nil, fmt.Errorf("%w: actor %q has unknown role %q", ErrInvalidRoster, a.ID, a.Role)
		}
		dir.actors[a.ID] = model.Actor{ID: a.ID, Role: role}
	}

	return dir, nil
}

// Player returns the player with its current coach resolved.
func (d *Directory) Player(_ context.Context, id string) (model.Player, error) {
	p, ok := d.players[id]
	if !ok {
		return model.Player{}, model.NotFound("directory.Player", "player %s not found", id)
	}
	return p, nil
}

// CoachedPlayerIDs lists players in groups coached by coachID, sorted.
func (d *Directory) CoachedPlayerIDs(_ context.Context, coachID string) ([]string, error) {
	ids := []string{}
	if coachID == "" {
		return ids, nil
	}
	for _, p := range d.players {
		if p.CoachID == coachID {
			ids = append(ids, p.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// GroupPlayerIDs lists players currently in groupID, sorted. Unknown groups
// have no members.
func (d *Directory) GroupPlayerIDs(_ context.Context, groupID string) ([]string, error) {
	ids := []string{}
	for _, p := range d.players {
		if p.GroupID == groupID {
			ids = append(ids, p.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// SkillsByID returns the catalog entries found for ids.
func (d *Directory) SkillsByID(_ context.Context, ids []string) (map[string]model.Skill, error) {
	out := make(map[string]model.Skill, len(ids))
	for _, id := range ids {
		if s, ok := d.skills[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

// ActiveSkills returns the active skills for level sorted by id.
func (d *Directory) ActiveSkills(_ context.Context, level model.Level) ([]model.Skill, error) {
	var out []model.Skill
	for _, s := range d.skills {
		if s.Active && s.Level == level {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Actor resolves a caller identity.
func (d *Directory) Actor(_ context.Context, id string) (model.Actor, error) {
	a, ok := d.actors[id]
	if !ok {
		return model.Actor{}, model.NotFound("directory.Actor", "actor %s not found", id)
	}
	return a, nil
}

// Counts reports the size of each collection, for startup logging.
func (d *Directory) Counts() (groups, players, skills, actors int) {
	return len(d.groups), len(d.players), len(d.skills), len(d.actors)
}

// bytesProvider is a koanf.Provider over an in-memory document.
type bytesProvider []byte

func (b bytesProvider) ReadBytes() ([]byte, error) {
	return b, nil
}

func (b bytesProvider) Read() (map[string]any, error) {
	return nil, errors.New("directory: bytes provider does not support Read")
}
