package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/pitchside/internal/adapters/cache"
	"github.com/okian/pitchside/internal/adapters/directory"
	"github.com/okian/pitchside/internal/adapters/repository"
	service "github.com/okian/pitchside/internal/app"
	"github.com/okian/pitchside/internal/domain/analytics"
	"github.com/okian/pitchside/internal/domain/model"
	"github.com/okian/pitchside/pkg/logger"
)

var (
	coachA  = model.Actor{ID: "coach-a", Role: model.RoleCoach}
	coachB  = model.Actor{ID: "coach-b", Role: model.RoleCoach}
	admin   = model.Actor{ID: "admin", Role: model.RoleAdmin}
	manager = model.Actor{ID: "manager", Role: model.RoleManager}
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// testRoster: coach-a runs g1 (p1, p3 inactive, p4 advanced), coach-b runs
// g2 (p2). Development has 16 active skills s01..s16.
func testRoster() *directory.Directory {
	var skills []directory.SkillRecord
	for i, c := range model.Categories {
		for j := 0; j < 4; j++ {
			skills = append(skills, directory.SkillRecord{
				ID:       fmt.Sprintf("s%02d", i*4+j+1),
				Category: string(c),
				Level:    "Development",
				Active:   true,
			})
		}
	}
	skills = append(skills,
		directory.SkillRecord{ID: "adv1", Category: "Athletic", Level: "Advanced", Active: true},
		directory.SkillRecord{ID: "retired", Category: "Technical", Level: "Development"},
	)

	dir, err := directory.New(directory.Data{
		Groups: []directory.Group{{ID: "g1", Coach: "coach-a"}, {ID: "g2", Coach: "coach-b"}},
		Players: []directory.PlayerRecord{
			{ID: "p1", Level: "Development", Active: true, Group: "g1"},
			{ID: "p2", Level: "Development", Active: true, Group: "g2"},
			{ID: "p3", Level: "Development", Active: false, Group: "g1"},
			{ID: "p4", Level: "Advanced", Active: true, Group: "g1"},
		},
		Skills: skills,
	})
	if err != nil {
		panic(err)
	}
	return dir
}

type fixture struct {
	svc   *service.Service
	store *repository.MemoryStore
	cache *cache.Memory
}

func newFixture(opts ...service.Option) fixture {
	dir := testRoster()
	store := repository.NewMemoryStore()
	progress := cache.NewMemory()
	base := []service.Option{
		service.WithLogger(logger.Nop()),
		service.WithStore(store),
		service.WithPlayers(dir),
		service.WithSkills(dir),
		service.WithProgressCache(progress),
	}
	svc := service.New(append(base, opts...)...)
	if err := svc.Start(context.Background()); err != nil {
		panic(err)
	}
	return fixture{svc: svc, store: store, cache: progress}
}

func ratings(pairs ...any) []model.Rating {
	out := make([]model.Rating, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, model.Rating{SkillID: pairs[i].(string), Score: pairs[i+1].(int)})
	}
	return out
}

func create(f fixture, actor model.Actor, player string, date time.Time, rs []model.Rating) (model.Assessment, error) {
	return f.svc.CreateAssessment(context.Background(), actor, service.CreateInput{
		PlayerID: player,
		Date:     date,
		Ratings:  rs,
	})
}

func TestServiceLifecycle(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service without a directory", t, func() {
		svc := service.New(service.WithLogger(logger.Nop()))

		Convey("Start refuses to run", func() {
			So(errors.Is(svc.Start(ctx), service.ErrMissingDirectory), ShouldBeTrue)
		})

		Convey("operations fail as internal errors", func() {
			_, err := svc.GetAssessment(ctx, admin, "x")
			So(model.Code(err), ShouldEqual, model.CodeInternal)
			So(model.Message(err), ShouldEqual, "internal error")
		})
	})

	Convey("Given a started service", t, func() {
		f := newFixture()

		Convey("stats report the running state", func() {
			stats := f.svc.GetStats()
			So(stats["started"], ShouldEqual, true)
			So(stats["assessments"], ShouldEqual, 0)
			So(f.svc.Ping(ctx), ShouldBeNil)
		})

		Convey("Stop closes the store", func() {
			f.svc.Stop()
			So(f.svc.GetStats()["started"], ShouldEqual, false)
			_, err := f.store.Get(ctx, "x")
			So(errors.Is(err, repository.ErrClosed), ShouldBeTrue)
		})
	})
}

func TestCreateAssessment(t *testing.T) {
	ctx := context.Background()

	Convey("Given a coach creating for their own player", t, func() {
		f := newFixture(service.WithClock(func() time.Time { return day(2024, time.March, 20) }))

		Convey("the result is a draft by default", func() {
			a, err := create(f, coachA, "p1", day(2024, time.March, 15), ratings("s01", 5, "s05", 7))
			So(err, ShouldBeNil)
			So(a.ID, ShouldNotBeEmpty)
			So(a.Finalized, ShouldBeFalse)
			So(a.AssessorID, ShouldEqual, "coach-a")
			So(a.Period, ShouldEqual, model.PeriodMonthly)
			So(a.Scores, ShouldHaveLength, 2)
			So(a.CreatedAt.Equal(day(2024, time.March, 20)), ShouldBeTrue)

			stored, err := f.store.Get(ctx, a.ID)
			So(err, ShouldBeNil)
			So(stored.Scores, ShouldHaveLength, 2)
		})

		Convey("the requested finalized flag is honoured", func() {
			a, err := f.svc.CreateAssessment(ctx, coachA, service.CreateInput{
				PlayerID:  "p1",
				Date:      day(2024, time.March, 15),
				Period:    model.PeriodQuarterly,
				Ratings:   ratings("s01", 5),
				Finalized: true,
			})
			So(err, ShouldBeNil)
			So(a.Finalized, ShouldBeTrue)
			So(a.Period, ShouldEqual, model.PeriodQuarterly)
		})

		Convey("an empty rating list is allowed", func() {
			a, err := create(f, coachA, "p1", day(2024, time.March, 15), nil)
			So(err, ShouldBeNil)
			So(a.Scores, ShouldBeEmpty)
		})

		Convey("scores of 1 and 10 are accepted", func() {
			_, err := create(f, coachA, "p1", day(2024, time.March, 15), ratings("s01", 1, "s02", 10))
			So(err, ShouldBeNil)
		})

		Convey("scores of 0 and 11 are rejected", func() {
			_, err := create(f, coachA, "p1", day(2024, time.March, 15), ratings("s01", 0))
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
			_, err = create(f, coachA, "p1", day(2024, time.March, 15), ratings("s01", 11))
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
			So(f.store.Count(ctx), ShouldEqual, 0)
		})

		Convey("skills must exist, be active and match the level", func() {
			_, err := create(f, coachA, "p1", day(2024, time.March, 15), ratings("ghost", 5))
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)

			_, err = create(f, coachA, "p1", day(2024, time.March, 15), ratings("adv1", 5))
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)

			_, err = create(f, coachA, "p1", day(2024, time.March, 15), ratings("retired", 5))
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)

			_, err = create(f, coachA, "p1", day(2024, time.March, 15), ratings("s01", 5, "s01", 6))
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
		})

		Convey("unknown and inactive players are NotFound", func() {
			_, err := create(f, coachA, "nobody", day(2024, time.March, 15), nil)
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
			_, err = create(f, coachA, "p3", day(2024, time.March, 15), nil)
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})

		Convey("missing fields and unknown periods are rejected", func() {
			_, err := create(f, coachA, "", day(2024, time.March, 15), nil)
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
			_, err = create(f, coachA, "p1", time.Time{}, nil)
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
			_, err = f.svc.CreateAssessment(ctx, coachA, service.CreateInput{PlayerID: "p1", Date: day(2024, 3, 1), Period: "Weekly"})
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
		})

		Convey("a coach cannot create for another group's player", func() {
			_, err := create(f, coachA, "p2", day(2024, time.March, 15), nil)
			So(errors.Is(err, model.ErrAccessDenied), ShouldBeTrue)
		})

		Convey("a second assessment in the same month is a Conflict", func() {
			_, err := create(f, coachA, "p1", day(2024, time.March, 15), ratings("s01", 5))
			So(err, ShouldBeNil)

			_, err = create(f, admin, "p1", day(2024, time.March, 2), ratings("s01", 6))
			So(errors.Is(err, model.ErrConflict), ShouldBeTrue)
			So(model.Message(err), ShouldContainSubstring, "March 2024")

			Convey("while other months and players stay open", func() {
				_, err := create(f, coachA, "p1", day(2024, time.April, 2), nil)
				So(err, ShouldBeNil)
				_, err = create(f, coachB, "p2", day(2024, time.March, 2), nil)
				So(err, ShouldBeNil)
			})
		})
	})
}

func TestImprovementSnapshots(t *testing.T) {
	ctx := context.Background()

	Convey("Given January and February assessments", t, func() {
		f := newFixture()
		jan, err := create(f, coachA, "p1", day(2024, time.January, 10), ratings("s01", 5, "s02", 4))
		So(err, ShouldBeNil)
		So(jan.Scores[0].PreviousScore, ShouldBeNil)
		So(jan.Scores[0].Improvement, ShouldBeNil)

		feb, err := create(f, coachA, "p1", day(2024, time.February, 10), ratings("s01", 7))
		So(err, ShouldBeNil)

		Convey("previousScore is the latest earlier score and improvement the delta", func() {
			So(*feb.Scores[0].PreviousScore, ShouldEqual, 5)
			So(*feb.Scores[0].Improvement, ShouldEqual, 2)
		})

		Convey("a later assessment looks back past gaps per skill", func() {
			mar, err := create(f, coachA, "p1", day(2024, time.March, 10), ratings("s01", 4, "s02", 9))
			So(err, ShouldBeNil)
			So(*mar.Scores[0].PreviousScore, ShouldEqual, 7)
			So(*mar.Scores[0].Improvement, ShouldEqual, -3)
			So(*mar.Scores[1].PreviousScore, ShouldEqual, 4)
		})

		Convey("replacing February's scores never uses February itself", func() {
			updated, err := f.svc.UpdateAssessment(ctx, coachA, feb.ID, service.UpdateInput{Ratings: ratings("s01", 9, "s03", 6)})
			So(err, ShouldBeNil)
			So(updated.Scores, ShouldHaveLength, 2)
			So(*updated.Scores[0].PreviousScore, ShouldEqual, 5)
			So(*updated.Scores[0].Improvement, ShouldEqual, 4)
			So(updated.Scores[1].PreviousScore, ShouldBeNil)

			stored, err := f.store.Get(ctx, feb.ID)
			So(err, ShouldBeNil)
			So(stored.Scores, ShouldHaveLength, 2)
		})

		Convey("moving February before January refreshes its snapshots", func() {
			dec := day(2023, time.December, 5)
			moved, err := f.svc.UpdateAssessment(ctx, coachA, feb.ID, service.UpdateInput{Date: &dec})
			So(err, ShouldBeNil)
			So(moved.Date.Equal(dec), ShouldBeTrue)
			So(moved.Scores, ShouldHaveLength, 1)
			So(moved.Scores[0].ID, ShouldEqual, feb.Scores[0].ID)
			So(moved.Scores[0].PreviousScore, ShouldBeNil)
		})
	})

	Convey("Given a rating whose skill id carries surrounding spaces", t, func() {
		f := newFixture()
		_, err := create(f, coachA, "p1", day(2024, time.March, 10), ratings("s01", 5))
		So(err, ShouldBeNil)

		apr, err := create(f, coachA, "p1", day(2024, time.April, 10), ratings(" s01 ", 8))
		So(err, ShouldBeNil)

		Convey("the stored score uses the trimmed id and links to March", func() {
			stored, err := f.store.Get(ctx, apr.ID)
			So(err, ShouldBeNil)
			So(stored.Scores, ShouldHaveLength, 1)
			So(stored.Scores[0].SkillID, ShouldEqual, "s01")
			So(*stored.Scores[0].PreviousScore, ShouldEqual, 5)
			So(*stored.Scores[0].Improvement, ShouldEqual, 3)
		})

		Convey("statistics count the skill as assessed", func() {
			stats, err := f.svc.AssessmentStatistics(ctx, coachA, apr.ID)
			So(err, ShouldBeNil)
			So(stats.Assessed, ShouldEqual, 1)
			So(stats.Missing, ShouldNotContain, "s01")
			So(stats.CategoryAverages[model.CategoryAthletic], ShouldEqual, 8)
		})

		Convey("a padded id on update is trimmed too", func() {
			updated, err := f.svc.UpdateAssessment(ctx, coachA, apr.ID, service.UpdateInput{Ratings: ratings("s02 ", 6)})
			So(err, ShouldBeNil)
			So(updated.Scores, ShouldHaveLength, 1)
			So(updated.Scores[0].SkillID, ShouldEqual, "s02")
		})
	})
}

func TestUpdateAssessment(t *testing.T) {
	ctx := context.Background()

	Convey("Given a draft by coach A", t, func() {
		f := newFixture()
		a, err := f.svc.CreateAssessment(ctx, coachA, service.CreateInput{
			PlayerID:   "p1",
			Date:       day(2024, time.March, 15),
			Comments:   "solid",
			CoachNotes: "work on weak foot",
			Ratings:    ratings("s01", 5),
		})
		So(err, ShouldBeNil)

		Convey("an update without fields is rejected", func() {
			_, err := f.svc.UpdateAssessment(ctx, coachA, a.ID, service.UpdateInput{})
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
		})

		Convey("only provided fields change", func() {
			comments := "excellent"
			updated, err := f.svc.UpdateAssessment(ctx, coachA, a.ID, service.UpdateInput{Comments: &comments})
			So(err, ShouldBeNil)
			So(updated.Comments, ShouldEqual, "excellent")
			So(updated.CoachNotes, ShouldEqual, "work on weak foot")
			So(updated.Scores, ShouldHaveLength, 1)
			So(updated.AssessorID, ShouldEqual, "coach-a")
		})

		Convey("an empty rating list clears the score set", func() {
			updated, err := f.svc.UpdateAssessment(ctx, coachA, a.ID, service.UpdateInput{Ratings: []model.Rating{}})
			So(err, ShouldBeNil)
			So(updated.Scores, ShouldBeEmpty)
		})

		Convey("invalid ratings leave the stored set untouched", func() {
			_, err := f.svc.UpdateAssessment(ctx, coachA, a.ID, service.UpdateInput{Ratings: ratings("s01", 11)})
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
			stored, _ := f.store.Get(ctx, a.ID)
			So(stored.Scores[0].Score, ShouldEqual, 5)
		})

		Convey("moving into an occupied month is a Conflict", func() {
			_, err := create(f, coachA, "p1", day(2024, time.April, 3), nil)
			So(err, ShouldBeNil)
			april := day(2024, time.April, 20)
			_, err = f.svc.UpdateAssessment(ctx, coachA, a.ID, service.UpdateInput{Date: &april})
			So(errors.Is(err, model.ErrConflict), ShouldBeTrue)
		})

		Convey("moving within the same month is allowed", func() {
			later := day(2024, time.March, 28)
			updated, err := f.svc.UpdateAssessment(ctx, coachA, a.ID, service.UpdateInput{Date: &later})
			So(err, ShouldBeNil)
			So(updated.Date.Equal(later), ShouldBeTrue)
		})

		Convey("unknown periods are rejected", func() {
			weekly := model.Period("Weekly")
			_, err := f.svc.UpdateAssessment(ctx, coachA, a.ID, service.UpdateInput{Period: &weekly})
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
		})

		Convey("another coach is refused and unknown ids are NotFound", func() {
			notes := "x"
			_, err := f.svc.UpdateAssessment(ctx, coachB, a.ID, service.UpdateInput{CoachNotes: &notes})
			So(errors.Is(err, model.ErrAccessDenied), ShouldBeTrue)
			_, err = f.svc.UpdateAssessment(ctx, admin, "missing", service.UpdateInput{CoachNotes: &notes})
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})

		Convey("once finalized", func() {
			_, err := f.svc.FinalizeAssessment(ctx, coachA, a.ID)
			So(err, ShouldBeNil)
			notes := "late edit"

			Convey("the coach gets a Conflict", func() {
				_, err := f.svc.UpdateAssessment(ctx, coachA, a.ID, service.UpdateInput{CoachNotes: &notes})
				So(errors.Is(err, model.ErrConflict), ShouldBeTrue)
			})

			Convey("an elevated role edits in place without a state change", func() {
				updated, err := f.svc.UpdateAssessment(ctx, manager, a.ID, service.UpdateInput{CoachNotes: &notes})
				So(err, ShouldBeNil)
				So(updated.Finalized, ShouldBeTrue)
				So(updated.CoachNotes, ShouldEqual, "late edit")
			})
		})
	})
}

func TestFinalizeAssessment(t *testing.T) {
	ctx := context.Background()

	Convey("Given a partial draft", t, func() {
		f := newFixture()
		a, err := create(f, coachA, "p1", day(2024, time.March, 15), ratings("s01", 5))
		So(err, ShouldBeNil)

		Convey("finalize succeeds once and then Conflicts", func() {
			done, err := f.svc.FinalizeAssessment(ctx, coachA, a.ID)
			So(err, ShouldBeNil)
			So(done.Finalized, ShouldBeTrue)

			_, err = f.svc.FinalizeAssessment(ctx, coachA, a.ID)
			So(errors.Is(err, model.ErrConflict), ShouldBeTrue)
			_, err = f.svc.FinalizeAssessment(ctx, admin, a.ID)
			So(errors.Is(err, model.ErrConflict), ShouldBeTrue)
		})

		Convey("another coach may not finalize it", func() {
			_, err := f.svc.FinalizeAssessment(ctx, coachB, a.ID)
			So(errors.Is(err, model.ErrAccessDenied), ShouldBeTrue)
		})

		Convey("unknown ids are NotFound", func() {
			_, err := f.svc.FinalizeAssessment(ctx, admin, "missing")
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestDeleteAssessment(t *testing.T) {
	ctx := context.Background()

	Convey("Given a draft and a finalized assessment", t, func() {
		f := newFixture()
		draft, err := create(f, coachA, "p1", day(2024, time.March, 15), ratings("s01", 5))
		So(err, ShouldBeNil)
		final, err := f.svc.CreateAssessment(ctx, coachA, service.CreateInput{
			PlayerID: "p1", Date: day(2024, time.April, 15), Ratings: ratings("s01", 6, "s02", 7), Finalized: true,
		})
		So(err, ShouldBeNil)

		Convey("a coach may never delete a draft", func() {
			err := f.svc.DeleteAssessment(ctx, coachA, draft.ID)
			So(errors.Is(err, model.ErrAccessDenied), ShouldBeTrue)
		})

		Convey("a coach deleting a finalized assessment gets a Conflict", func() {
			err := f.svc.DeleteAssessment(ctx, coachA, final.ID)
			So(errors.Is(err, model.ErrConflict), ShouldBeTrue)
		})

		Convey("an admin removes it with all its scores", func() {
			So(f.svc.DeleteAssessment(ctx, admin, final.ID), ShouldBeNil)
			_, err := f.svc.GetAssessment(ctx, admin, final.ID)
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
			_, err = f.store.Get(ctx, final.ID)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)

			Convey("and the month opens again", func() {
				_, err := create(f, coachA, "p1", day(2024, time.April, 1), nil)
				So(err, ShouldBeNil)
			})
		})

		Convey("a second delete is NotFound", func() {
			So(f.svc.DeleteAssessment(ctx, manager, draft.ID), ShouldBeNil)
			So(errors.Is(f.svc.DeleteAssessment(ctx, manager, draft.ID), model.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestReadAuthorization(t *testing.T) {
	ctx := context.Background()

	Convey("Given assessments by coach A for G1 and coach B for G2", t, func() {
		f := newFixture()
		mine, err := create(f, coachA, "p1", day(2024, time.March, 15), ratings("s01", 5))
		So(err, ShouldBeNil)
		theirs, err := create(f, coachB, "p2", day(2024, time.March, 15), ratings("s01", 8))
		So(err, ShouldBeNil)

		Convey("coach A cannot view G2's assessment but Admin can", func() {
			_, err := f.svc.GetAssessment(ctx, coachA, theirs.ID)
			So(errors.Is(err, model.ErrAccessDenied), ShouldBeTrue)

			got, err := f.svc.GetAssessment(ctx, admin, theirs.ID)
			So(err, ShouldBeNil)
			So(got.ID, ShouldEqual, theirs.ID)

			got, err = f.svc.GetAssessment(ctx, coachA, mine.ID)
			So(err, ShouldBeNil)
			So(got.Scores, ShouldHaveLength, 1)
		})

		Convey("player lists require coaching the player", func() {
			_, err := f.svc.ListAssessmentsForPlayer(ctx, coachA, "p2")
			So(errors.Is(err, model.ErrAccessDenied), ShouldBeTrue)

			list, err := f.svc.ListAssessmentsForPlayer(ctx, coachA, "p1")
			So(err, ShouldBeNil)
			So(list, ShouldHaveLength, 1)

			_, err = f.svc.ListAssessmentsForPlayer(ctx, admin, "ghost")
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})

		Convey("coaches list only their own assessor id", func() {
			_, err := f.svc.ListAssessmentsForAssessor(ctx, coachA, "coach-b")
			So(errors.Is(err, model.ErrAccessDenied), ShouldBeTrue)

			list, err := f.svc.ListAssessmentsForAssessor(ctx, coachA, "coach-a")
			So(err, ShouldBeNil)
			So(list, ShouldHaveLength, 1)

			list, err = f.svc.ListAssessmentsForAssessor(ctx, admin, "coach-b")
			So(err, ShouldBeNil)
			So(list, ShouldHaveLength, 1)
			So(list[0].ID, ShouldEqual, theirs.ID)
		})

		Convey("date range lists are scoped by role", func() {
			list, err := f.svc.ListAssessmentsInDateRange(ctx, coachA, day(2024, time.March, 1), day(2024, time.March, 31))
			So(err, ShouldBeNil)
			So(list, ShouldHaveLength, 1)
			So(list[0].PlayerID, ShouldEqual, "p1")

			list, err = f.svc.ListAssessmentsInDateRange(ctx, manager, day(2024, time.March, 1), day(2024, time.March, 31))
			So(err, ShouldBeNil)
			So(list, ShouldHaveLength, 2)

			list, err = f.svc.ListAssessmentsInDateRange(ctx, admin, day(2024, time.April, 1), time.Time{})
			So(err, ShouldBeNil)
			So(list, ShouldBeEmpty)

			_, err = f.svc.ListAssessmentsInDateRange(ctx, admin, day(2024, time.April, 1), day(2024, time.March, 1))
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
		})

		Convey("coaches do not see assessments written by someone else", func() {
			_, err := create(f, admin, "p1", day(2024, time.April, 2), nil)
			So(err, ShouldBeNil)
			list, err := f.svc.ListAssessmentsForPlayer(ctx, coachA, "p1")
			So(err, ShouldBeNil)
			So(list, ShouldHaveLength, 1)
		})
	})

	Convey("Given a service that conceals forbidden assessments", t, func() {
		f := newFixture(service.WithConcealForbidden(true))
		theirs, err := create(f, coachB, "p2", day(2024, time.March, 15), nil)
		So(err, ShouldBeNil)

		Convey("forbidden reads look like missing ones", func() {
			_, err := f.svc.GetAssessment(ctx, coachA, theirs.ID)
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
			_, err = f.svc.GetAssessment(ctx, coachA, "missing")
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})

		Convey("deleting someone else's finalized assessment looks missing too", func() {
			_, err := f.svc.FinalizeAssessment(ctx, admin, theirs.ID)
			So(err, ShouldBeNil)

			err = f.svc.DeleteAssessment(ctx, coachA, theirs.ID)
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
			So(errors.Is(err, model.ErrConflict), ShouldBeFalse)

			err = f.svc.DeleteAssessment(ctx, coachB, theirs.ID)
			So(errors.Is(err, model.ErrConflict), ShouldBeTrue)

			_, err = f.svc.GetAssessment(ctx, admin, theirs.ID)
			So(err, ShouldBeNil)
		})
	})
}

func TestAnalytics(t *testing.T) {
	ctx := context.Background()

	Convey("Given a player with rising scores", t, func() {
		f := newFixture()
		_, err := create(f, coachA, "p1", day(2024, time.January, 10), ratings("s01", 5, "s05", 5))
		So(err, ShouldBeNil)
		feb, err := f.svc.CreateAssessment(ctx, coachA, service.CreateInput{
			PlayerID: "p1", Date: day(2024, time.February, 10), Ratings: ratings("s01", 6, "s05", 7), Finalized: true,
		})
		So(err, ShouldBeNil)
		_, err = create(f, coachB, "p2", day(2024, time.February, 10), ratings("s01", 2))
		So(err, ShouldBeNil)

		Convey("progress classifies the trend and caches the result", func() {
			p, err := f.svc.PlayerProgress(ctx, coachA, "p1")
			So(err, ShouldBeNil)
			So(p.TotalAssessments, ShouldEqual, 2)
			So(p.AverageScore, ShouldEqual, 5.75)
			So(p.Trend, ShouldEqual, analytics.TrendImproving)
			So(p.LatestAssessmentDate.Equal(day(2024, time.February, 10)), ShouldBeTrue)
			So(f.cache.Len(), ShouldEqual, 1)

			Convey("and a write for the player invalidates the cache", func() {
				_, err := create(f, coachA, "p1", day(2024, time.March, 10), ratings("s01", 1))
				So(err, ShouldBeNil)
				So(f.cache.Len(), ShouldEqual, 0)

				p, err := f.svc.PlayerProgress(ctx, coachA, "p1")
				So(err, ShouldBeNil)
				So(p.TotalAssessments, ShouldEqual, 3)
				So(p.Trend, ShouldEqual, analytics.TrendDeclining)
			})
		})

		Convey("progress for another group's player is refused", func() {
			_, err := f.svc.PlayerProgress(ctx, coachA, "p2")
			So(errors.Is(err, model.ErrAccessDenied), ShouldBeTrue)
		})

		Convey("a player without assessments is Stable", func() {
			p, err := f.svc.PlayerProgress(ctx, admin, "p4")
			So(err, ShouldBeNil)
			So(p.Trend, ShouldEqual, analytics.TrendStable)
			So(p.LatestAssessmentDate, ShouldBeNil)
		})

		Convey("summaries are scoped then filtered", func() {
			s, err := f.svc.AssessmentSummary(ctx, coachA, analytics.Filters{})
			So(err, ShouldBeNil)
			So(s.TotalAssessments, ShouldEqual, 2)
			So(s.CompletedAssessments, ShouldEqual, 1)
			So(s.PendingAssessments, ShouldEqual, 1)
			So(s.AverageScoreByCategory[model.CategoryAthletic], ShouldEqual, 5.5)
			So(s.AverageScoreByCategory[model.CategoryTechnical], ShouldEqual, 6.0)

			s, err = f.svc.AssessmentSummary(ctx, admin, analytics.Filters{GroupID: "g2"})
			So(err, ShouldBeNil)
			So(s.TotalAssessments, ShouldEqual, 1)

			s, err = f.svc.AssessmentSummary(ctx, coachA, analytics.Filters{PlayerID: "p2"})
			So(err, ShouldBeNil)
			So(s.TotalAssessments, ShouldEqual, 0)

			_, err = f.svc.AssessmentSummary(ctx, admin, analytics.Filters{Period: "Weekly"})
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
		})

		Convey("per-assessment statistics report partial completeness", func() {
			stats, err := f.svc.AssessmentStatistics(ctx, coachA, feb.ID)
			So(err, ShouldBeNil)
			So(stats.OverallAverage, ShouldEqual, 6.5)
			So(stats.Partial, ShouldBeTrue)
			So(stats.Missing, ShouldHaveLength, 14)
			_, assessed := stats.CategoryAverages[model.CategoryMentality]
			So(assessed, ShouldBeFalse)
		})
	})
}
