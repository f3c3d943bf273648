// Package storetest holds behaviour checks shared by every repository.Store
// implementation.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/pitchside/internal/adapters/repository"
	"github.com/okian/pitchside/internal/domain/model"
)

// Factory returns a fresh, empty store.
type Factory func(t *testing.T) repository.Store

// Day builds a UTC calendar date.
func Day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Assessment builds a stored assessment with one score per skill id.
func Assessment(id, player string, date time.Time, scores map[string]int) model.Assessment {
	a := model.Assessment{
		ID:         id,
		PlayerID:   player,
		AssessorID: "coach-1",
		Date:       date,
		Period:     model.PeriodMonthly,
		CreatedAt:  date,
		UpdatedAt:  date,
	}
	for skill, score := range scores {
		a.Scores = append(a.Scores, model.SkillScore{
			ID:           id + "-" + skill,
			AssessmentID: id,
			SkillID:      skill,
			Score:        score,
		})
	}
	return a
}

func insert(ctx context.Context, s repository.Store, as ...model.Assessment) error {
	return s.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		for _, a := range as {
			if err := tx.Insert(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})
}

// Run exercises the Store contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()

	Convey("Given an empty store", t, func() {
		s := newStore(t)

		Convey("Get on a missing id returns ErrNotFound", func() {
			_, err := s.Get(ctx, "missing")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("Insert stores the assessment with its scores", func() {
			a := Assessment("a1", "p1", Day(2024, time.March, 10), map[string]int{"s1": 6, "s2": 8})
			a.Comments = "solid"
			a.Scores[0].PreviousScore = model.IntPtr(4)
			a.Scores[0].Improvement = model.IntPtr(2)
			So(insert(ctx, s, a), ShouldBeNil)

			got, err := s.Get(ctx, "a1")
			So(err, ShouldBeNil)
			So(got.PlayerID, ShouldEqual, "p1")
			So(got.Comments, ShouldEqual, "solid")
			So(got.Date.Equal(a.Date), ShouldBeTrue)
			So(got.Scores, ShouldHaveLength, 2)

			byID := map[string]model.SkillScore{}
			for _, sc := range got.Scores {
				byID[sc.SkillID] = sc
			}
			first := a.Scores[0]
			So(byID[first.SkillID].PreviousScore, ShouldNotBeNil)
			So(*byID[first.SkillID].PreviousScore, ShouldEqual, 4)
			So(*byID[first.SkillID].Improvement, ShouldEqual, 2)
		})

		Convey("A second assessment in the same month is rejected", func() {
			So(insert(ctx, s, Assessment("a1", "p1", Day(2024, time.March, 1), nil)), ShouldBeNil)
			err := insert(ctx, s, Assessment("a2", "p1", Day(2024, time.March, 28), nil))
			So(errors.Is(err, repository.ErrDuplicateMonth), ShouldBeTrue)

			Convey("and the failed transaction leaves nothing behind", func() {
				_, err := s.Get(ctx, "a2")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("Different months and different players do not collide", func() {
			So(insert(ctx, s,
				Assessment("a1", "p1", Day(2024, time.March, 1), nil),
				Assessment("a2", "p1", Day(2024, time.April, 1), nil),
				Assessment("a3", "p2", Day(2024, time.March, 1), nil),
			), ShouldBeNil)
		})

		Convey("A callback error rolls back every write in the unit", func() {
			boom := errors.New("boom")
			err := s.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
				if err := tx.Insert(ctx, Assessment("a1", "p1", Day(2024, time.May, 2), map[string]int{"s1": 5})); err != nil {
					return err
				}
				return boom
			})
			So(errors.Is(err, boom), ShouldBeTrue)
			_, err = s.Get(ctx, "a1")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("FindInMonth honours the excluded id", func() {
			So(insert(ctx, s, Assessment("a1", "p1", Day(2024, time.March, 5), nil)), ShouldBeNil)

			id, ok, err := s.FindInMonth(ctx, "p1", 2024, time.March, "")
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(id, ShouldEqual, "a1")

			_, ok, err = s.FindInMonth(ctx, "p1", 2024, time.March, "a1")
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)

			_, ok, err = s.FindInMonth(ctx, "p1", 2024, time.April, "")
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
		})

		Convey("LatestScoresBefore picks the most recent strictly earlier score per skill", func() {
			So(insert(ctx, s,
				Assessment("jan", "p1", Day(2024, time.January, 10), map[string]int{"s1": 3, "s2": 4}),
				Assessment("feb", "p1", Day(2024, time.February, 10), map[string]int{"s1": 5}),
				Assessment("mar", "p1", Day(2024, time.March, 10), map[string]int{"s1": 9, "s2": 9}),
				Assessment("other", "p2", Day(2024, time.February, 20), map[string]int{"s1": 1}),
			), ShouldBeNil)

			got, err := s.LatestScoresBefore(ctx, "p1", []string{"s1", "s2", "s3"}, Day(2024, time.March, 10), "")
			So(err, ShouldBeNil)
			So(got, ShouldResemble, map[string]int{"s1": 5, "s2": 4})

			Convey("excluding the record being rewritten", func() {
				got, err := s.LatestScoresBefore(ctx, "p1", []string{"s1"}, Day(2024, time.April, 1), "mar")
				So(err, ShouldBeNil)
				So(got, ShouldResemble, map[string]int{"s1": 5})
			})

			Convey("with no earlier history", func() {
				got, err := s.LatestScoresBefore(ctx, "p1", []string{"s1"}, Day(2024, time.January, 10), "")
				So(err, ShouldBeNil)
				So(got, ShouldBeEmpty)
			})
		})

		Convey("List filters and orders newest first", func() {
			jan := Assessment("jan", "p1", Day(2024, time.January, 10), map[string]int{"s1": 3})
			feb := Assessment("feb", "p2", Day(2024, time.February, 10), nil)
			feb.AssessorID = "coach-2"
			mar := Assessment("mar", "p1", Day(2024, time.March, 10), nil)
			mar.Period = model.PeriodQuarterly
			So(insert(ctx, s, jan, feb, mar), ShouldBeNil)

			all, err := s.List(ctx, repository.Filter{})
			So(err, ShouldBeNil)
			So(ids(all), ShouldResemble, []string{"mar", "feb", "jan"})

			byPlayer, err := s.List(ctx, repository.Filter{PlayerIDs: []string{"p1"}})
			So(err, ShouldBeNil)
			So(ids(byPlayer), ShouldResemble, []string{"mar", "jan"})
			So(byPlayer[1].Scores, ShouldHaveLength, 1)

			none, err := s.List(ctx, repository.Filter{PlayerIDs: []string{}})
			So(err, ShouldBeNil)
			So(none, ShouldBeEmpty)

			byAssessor, err := s.List(ctx, repository.Filter{AssessorID: "coach-2"})
			So(err, ShouldBeNil)
			So(ids(byAssessor), ShouldResemble, []string{"feb"})

			byPeriod, err := s.List(ctx, repository.Filter{Period: model.PeriodQuarterly})
			So(err, ShouldBeNil)
			So(ids(byPeriod), ShouldResemble, []string{"mar"})

			inRange, err := s.List(ctx, repository.Filter{From: Day(2024, time.February, 10), To: Day(2024, time.March, 10)})
			So(err, ShouldBeNil)
			So(ids(inRange), ShouldResemble, []string{"mar", "feb"})
		})

		Convey("Update rewrites scalars and keeps the score set", func() {
			So(insert(ctx, s, Assessment("a1", "p1", Day(2024, time.March, 5), map[string]int{"s1": 6})), ShouldBeNil)

			err := s.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
				cur, err := tx.GetForUpdate(ctx, "a1")
				if err != nil {
					return err
				}
				cur.Finalized = true
				cur.CoachNotes = "done"
				cur.Date = Day(2024, time.April, 2)
				return tx.Update(ctx, cur)
			})
			So(err, ShouldBeNil)

			got, err := s.Get(ctx, "a1")
			So(err, ShouldBeNil)
			So(got.Finalized, ShouldBeTrue)
			So(got.CoachNotes, ShouldEqual, "done")
			So(got.Scores, ShouldHaveLength, 1)

			Convey("and moves the month index with the date", func() {
				_, ok, _ := s.FindInMonth(ctx, "p1", 2024, time.March, "")
				So(ok, ShouldBeFalse)
				So(insert(ctx, s, Assessment("a2", "p1", Day(2024, time.March, 20), nil)), ShouldBeNil)
			})
		})

		Convey("Update into an occupied month is rejected", func() {
			So(insert(ctx, s,
				Assessment("a1", "p1", Day(2024, time.March, 5), nil),
				Assessment("a2", "p1", Day(2024, time.April, 5), nil),
			), ShouldBeNil)
			err := s.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
				cur, err := tx.GetForUpdate(ctx, "a2")
				if err != nil {
					return err
				}
				cur.Date = Day(2024, time.March, 30)
				return tx.Update(ctx, cur)
			})
			So(errors.Is(err, repository.ErrDuplicateMonth), ShouldBeTrue)
		})

		Convey("ReplaceScores swaps the whole set", func() {
			So(insert(ctx, s, Assessment("a1", "p1", Day(2024, time.March, 5), map[string]int{"s1": 6, "s2": 7})), ShouldBeNil)
			err := s.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
				return tx.ReplaceScores(ctx, "a1", []model.SkillScore{
					{ID: "n1", AssessmentID: "a1", SkillID: "s3", Score: 2},
				})
			})
			So(err, ShouldBeNil)
			got, err := s.Get(ctx, "a1")
			So(err, ShouldBeNil)
			So(got.Scores, ShouldHaveLength, 1)
			So(got.Scores[0].SkillID, ShouldEqual, "s3")
			So(got.Scores[0].PreviousScore, ShouldBeNil)
		})

		Convey("Delete removes the assessment and frees its month", func() {
			So(insert(ctx, s, Assessment("a1", "p1", Day(2024, time.March, 5), map[string]int{"s1": 6})), ShouldBeNil)
			err := s.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
				return tx.Delete(ctx, "a1")
			})
			So(err, ShouldBeNil)
			_, err = s.Get(ctx, "a1")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			So(insert(ctx, s, Assessment("a2", "p1", Day(2024, time.March, 6), nil)), ShouldBeNil)

			Convey("and a second delete reports ErrNotFound", func() {
				err := s.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
					return tx.Delete(ctx, "a1")
				})
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Reset(func() {
			_ = s.Close()
		})
	})
}

func ids(as []model.Assessment) []string {
	out := make([]string, 0, len(as))
	for _, a := range as {
		out = append(out, a.ID)
	}
	return out
}
