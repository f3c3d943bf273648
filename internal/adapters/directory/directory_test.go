package directory_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/pitchside/internal/adapters/directory"
	"github.com/okian/pitchside/internal/domain/model"
	"github.com/okian/pitchside/internal/domain/roster"
)

var (
	_ roster.Players = (*directory.Directory)(nil)
	_ roster.Skills  = (*directory.Directory)(nil)
	_ roster.Actors  = (*directory.Directory)(nil)
)

const rosterYAML = `
groups:
  - id: g1
    coach: coach-a
  - id: g2
    coach: coach-b
players:
  - id: p1
    level: Development
    active: true
    group: g1
  - id: p2
    level: Advanced
    active: true
    group: g2
  - id: p3
    level: Development
    active: true
    group: g1
skills:
  - {id: s1, category: Athletic, level: Development, active: true}
  - {id: s2, category: Technical, level: Development, active: true}
  - {id: s3, category: Technical, level: Development, active: false}
  - {id: s4, category: Mentality, level: Advanced, active: true}
actors:
  - id: coach-a
    role: Coach
  - id: boss
    role: Admin
`

func TestDirectoryParse(t *testing.T) {
	ctx := context.Background()

	Convey("Given a parsed roster", t, func() {
		dir, err := directory.Parse([]byte(rosterYAML))
		So(err, ShouldBeNil)

		Convey("players carry their group's coach", func() {
			p, err := dir.Player(ctx, "p2")
			So(err, ShouldBeNil)
			So(p.Level, ShouldEqual, model.LevelAdvanced)
			So(p.GroupID, ShouldEqual, "g2")
			So(p.CoachID, ShouldEqual, "coach-b")
		})

		Convey("unknown players are NotFound", func() {
			_, err := dir.Player(ctx, "ghost")
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})

		Convey("coach and group membership are listed sorted", func() {
			ids, err := dir.CoachedPlayerIDs(ctx, "coach-a")
			So(err, ShouldBeNil)
			So(ids, ShouldResemble, []string{"p1", "p3"})

			ids, err = dir.GroupPlayerIDs(ctx, "g2")
			So(err, ShouldBeNil)
			So(ids, ShouldResemble, []string{"p2"})

			ids, err = dir.CoachedPlayerIDs(ctx, "nobody")
			So(err, ShouldBeNil)
			So(ids, ShouldBeEmpty)
		})

		Convey("skills resolve by id and by level", func() {
			found, err := dir.SkillsByID(ctx, []string{"s1", "s3", "nope"})
			So(err, ShouldBeNil)
			So(found, ShouldHaveLength, 2)
			So(found["s1"].Category, ShouldEqual, model.CategoryAthletic)
			So(found["s3"].Active, ShouldBeFalse)

			active, err := dir.ActiveSkills(ctx, model.LevelDevelopment)
			So(err, ShouldBeNil)
			So(active, ShouldHaveLength, 2)
			So(active[0].ID, ShouldEqual, "s1")
			So(active[1].ID, ShouldEqual, "s2")
		})

		Convey("actors resolve with their role", func() {
			a, err := dir.Actor(ctx, "boss")
			So(err, ShouldBeNil)
			So(a.Elevated(), ShouldBeTrue)

			_, err = dir.Actor(ctx, "stranger")
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestDirectoryValidation(t *testing.T) {
	Convey("Given invalid roster documents", t, func() {
		cases := []struct {
			name string
			data directory.Data
		}{
			{"unknown level", directory.Data{
				Players: []directory.PlayerRecord{{ID: "p1", Level: "Elite"}},
			}},
			{"unknown group", directory.Data{
				Players: []directory.PlayerRecord{{ID: "p1", Level: "Advanced", Group: "missing"}},
			}},
			{"duplicate player", directory.Data{
				Players: []directory.PlayerRecord{{ID: "p1", Level: "Advanced"}, {ID: "p1", Level: "Advanced"}},
			}},
			{"unknown category", directory.Data{
				Skills: []directory.SkillRecord{{ID: "s1", Category: "Tactical", Level: "Advanced"}},
			}},
			{"unknown role", directory.Data{
				Actors: []directory.ActorRecord{{ID: "a1", Role: "Parent"}},
			}},
		}

		for _, tc := range cases {
			Convey("rejects "+tc.name, func() {
				_, err := directory.New(tc.data)
				So(errors.Is(err, directory.ErrInvalidRoster), ShouldBeTrue)
			})
		}
	})
}

func TestDirectorySources(t *testing.T) {
	ctx := context.Background()

	Convey("The built-in sample is a valid roster", t, func() {
		dir, err := directory.Sample()
		So(err, ShouldBeNil)

		groups, players, skills, actors := dir.Counts()
		So(groups, ShouldEqual, 2)
		So(players, ShouldEqual, 4)
		So(skills, ShouldBeGreaterThan, 16)
		So(actors, ShouldEqual, 4)

		dev, err := dir.ActiveSkills(ctx, model.LevelDevelopment)
		So(err, ShouldBeNil)
		So(dev, ShouldHaveLength, 16)
	})

	Convey("Load reads a roster file", t, func() {
		path := filepath.Join(t.TempDir(), "roster.yaml")
		So(os.WriteFile(path, []byte(rosterYAML), 0o600), ShouldBeNil)

		dir, err := directory.Load(path)
		So(err, ShouldBeNil)
		_, err = dir.Player(ctx, "p1")
		So(err, ShouldBeNil)

		Convey("and reports missing files", func() {
			_, err := directory.Load(filepath.Join(t.TempDir(), "absent.yaml"))
			So(err, ShouldNotBeNil)
		})
	})
}
