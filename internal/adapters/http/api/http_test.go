package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/pitchside/internal/adapters/directory"
	"github.com/okian/pitchside/internal/adapters/http/api"
	service "github.com/okian/pitchside/internal/app"
	"github.com/okian/pitchside/internal/domain/model"
	"github.com/okian/pitchside/pkg/logger"
)

func testDirectory() *directory.Directory {
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
	dir, err := directory.New(directory.Data{
		Groups: []directory.Group{{ID: "g1", Coach: "coach-a"}, {ID: "g2", Coach: "coach-b"}},
		Players: []directory.PlayerRecord{
			{ID: "p1", Level: "Development", Active: true, Group: "g1"},
			{ID: "p2", Level: "Development", Active: true, Group: "g2"},
		},
		Skills: skills,
		Actors: []directory.ActorRecord{
			{ID: "admin", Role: "Admin"},
			{ID: "coach-a", Role: "Coach"},
			{ID: "coach-b", Role: "Coach"},
		},
	})
	if err != nil {
		panic(err)
	}
	return dir
}

type client struct {
	mux *http.ServeMux
}

func (c client) do(method, path, actor, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if actor != "" {
		req.Header.Set(api.ActorHeader, actor)
	}
	w := httptest.NewRecorder()
	c.mux.ServeHTTP(w, req)
	return w
}

func decodeBody(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return out
}

func decodeList(w *httptest.ResponseRecorder) []map[string]any {
	var out []map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return out
}

func newClient() (client, *service.Service) {
	dir := testDirectory()
	svc := service.New(
		service.WithLogger(logger.Nop()),
		service.WithPlayers(dir),
		service.WithSkills(dir),
	)
	if err := svc.Start(context.Background()); err != nil {
		panic(err)
	}
	server := api.NewServer(svc, dir,
		api.WithLogger(logger.Nop()),
		api.WithStats(svc),
		api.WithHealth(svc),
	)
	mux := http.NewServeMux()
	server.Register(context.Background(), mux)
	return client{mux: mux}, svc
}

func TestAssessmentRoutes(t *testing.T) {
	Convey("Given a server over a started service", t, func() {
		c, svc := newClient()
		defer svc.Stop()

		Convey("health, metrics and stats respond", func() {
			So(c.do("GET", "/healthz", "", "").Code, ShouldEqual, http.StatusOK)
			So(c.do("GET", "/metrics", "", "").Code, ShouldEqual, http.StatusOK)
			w := c.do("GET", "/stats", "", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decodeBody(w)["started"], ShouldEqual, true)
		})

		Convey("requests without a known actor are unauthenticated", func() {
			w := c.do("GET", "/assessments", "", "")
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
			So(decodeBody(w)["code"], ShouldEqual, "unauthenticated")

			w = c.do("GET", "/assessments", "stranger", "")
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("malformed bodies are bad requests", func() {
			w := c.do("POST", "/assessments", "coach-a", `{"playerId":`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeBody(w)["code"], ShouldEqual, "bad_request")
		})

		Convey("missing fields fail tag validation", func() {
			w := c.do("POST", "/assessments", "coach-a", `{"assessmentDate":"15/03/2024"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			body := decodeBody(w)
			So(body["code"], ShouldEqual, "validation_error")
			So(body["message"], ShouldContainSubstring, "PlayerID")
			So(body["message"], ShouldContainSubstring, "AssessmentDate")
		})

		Convey("out-of-range scores are validation errors", func() {
			w := c.do("POST", "/assessments", "coach-a",
				`{"playerId":"p1","assessmentDate":"2024-03-15","scores":[{"skillId":"s01","score":11}]}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeBody(w)["code"], ShouldEqual, "validation_error")
		})

		Convey("creating for another coach's player is forbidden", func() {
			w := c.do("POST", "/assessments", "coach-a", `{"playerId":"p2","assessmentDate":"2024-03-15"}`)
			So(w.Code, ShouldEqual, http.StatusForbidden)
			So(decodeBody(w)["code"], ShouldEqual, "access_denied")
		})

		Convey("an unknown skill is not found", func() {
			w := c.do("POST", "/assessments", "coach-a",
				`{"playerId":"p1","assessmentDate":"2024-03-15","scores":[{"skillId":"nope","score":5}]}`)
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("when coach A creates a draft", func() {
			w := c.do("POST", "/assessments", "coach-a",
				`{"playerId":"p1","assessmentDate":"2024-03-15","comments":"good week","scores":[{"skillId":"s01","score":6},{"skillId":"s05","score":8}]}`)
			So(w.Code, ShouldEqual, http.StatusCreated)
			created := decodeBody(w)
			id := created["id"].(string)
			So(w.Header().Get("Location"), ShouldEqual, "/assessments/"+id)
			So(created["assessmentDate"], ShouldEqual, "2024-03-15")
			So(created["period"], ShouldEqual, "Monthly")
			So(created["finalized"], ShouldEqual, false)
			So(created["scores"], ShouldHaveLength, 2)
			first := created["scores"].([]any)[0].(map[string]any)
			So(first["previousScore"], ShouldBeNil)
			So(first["improvement"], ShouldBeNil)

			Convey("a second one in the same month conflicts", func() {
				w := c.do("POST", "/assessments", "admin", `{"playerId":"p1","assessmentDate":"2024-03-02"}`)
				So(w.Code, ShouldEqual, http.StatusConflict)
				So(decodeBody(w)["code"], ShouldEqual, "conflict")
			})

			Convey("the owner reads it and the other coach cannot", func() {
				So(c.do("GET", "/assessments/"+id, "coach-a", "").Code, ShouldEqual, http.StatusOK)
				So(c.do("GET", "/assessments/"+id, "coach-b", "").Code, ShouldEqual, http.StatusForbidden)
				So(c.do("GET", "/assessments/missing", "admin", "").Code, ShouldEqual, http.StatusNotFound)
			})

			Convey("a partial update keeps omitted fields", func() {
				w := c.do("PATCH", "/assessments/"+id, "coach-a", `{"coachNotes":"left foot"}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decodeBody(w)
				So(body["coachNotes"], ShouldEqual, "left foot")
				So(body["comments"], ShouldEqual, "good week")
				So(body["scores"], ShouldHaveLength, 2)

				w = c.do("PATCH", "/assessments/"+id, "coach-a", `{}`)
				So(w.Code, ShouldEqual, http.StatusBadRequest)

				w = c.do("PATCH", "/assessments/"+id, "coach-a", `{"scores":[]}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decodeBody(w)["scores"], ShouldBeEmpty)
			})

			Convey("the next month records improvement", func() {
				w := c.do("POST", "/assessments", "coach-a",
					`{"playerId":"p1","assessmentDate":"2024-04-10","scores":[{"skillId":"s01","score":9}]}`)
				So(w.Code, ShouldEqual, http.StatusCreated)
				score := decodeBody(w)["scores"].([]any)[0].(map[string]any)
				So(score["previousScore"], ShouldEqual, 6.0)
				So(score["improvement"], ShouldEqual, 3.0)

				Convey("and progress reports the trend", func() {
					w := c.do("GET", "/players/p1/progress", "coach-a", "")
					So(w.Code, ShouldEqual, http.StatusOK)
					body := decodeBody(w)
					So(body["totalAssessments"], ShouldEqual, 2.0)
					So(body["progressTrend"], ShouldEqual, "Improving")
					So(body["latestAssessmentDate"], ShouldEqual, "2024-04-10")
				})
			})

			Convey("finalize succeeds once", func() {
				w := c.do("POST", "/assessments/"+id+"/finalize", "coach-a", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decodeBody(w)["finalized"], ShouldEqual, true)

				So(c.do("POST", "/assessments/"+id+"/finalize", "coach-a", "").Code, ShouldEqual, http.StatusConflict)
				So(c.do("PATCH", "/assessments/"+id, "coach-a", `{"comments":"x"}`).Code, ShouldEqual, http.StatusConflict)

				Convey("coaches cannot delete it but admins can", func() {
					So(c.do("DELETE", "/assessments/"+id, "coach-a", "").Code, ShouldEqual, http.StatusConflict)
					So(c.do("DELETE", "/assessments/"+id, "admin", "").Code, ShouldEqual, http.StatusNoContent)
					So(c.do("GET", "/assessments/"+id, "admin", "").Code, ShouldEqual, http.StatusNotFound)
				})
			})

			Convey("statistics report partial completeness", func() {
				w := c.do("GET", "/assessments/"+id+"/stats", "coach-a", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decodeBody(w)
				So(body["overallAverage"], ShouldEqual, 7.0)
				So(body["partial"], ShouldEqual, true)
				So(body["missingSkills"], ShouldHaveLength, 14)
				avg := body["categoryAverages"].(map[string]any)
				So(avg, ShouldContainKey, "Athletic")
				So(avg, ShouldNotContainKey, "Mentality")
			})

			Convey("lists are scoped by role", func() {
				So(decodeList(c.do("GET", "/players/p1/assessments", "coach-a", "")), ShouldHaveLength, 1)
				So(c.do("GET", "/players/p1/assessments", "coach-b", "").Code, ShouldEqual, http.StatusForbidden)
				So(decodeList(c.do("GET", "/assessors/coach-a/assessments", "admin", "")), ShouldHaveLength, 1)
				So(c.do("GET", "/assessors/coach-a/assessments", "coach-b", "").Code, ShouldEqual, http.StatusForbidden)

				So(decodeList(c.do("GET", "/assessments?from=2024-03-01&to=2024-03-31", "coach-a", "")), ShouldHaveLength, 1)
				So(decodeList(c.do("GET", "/assessments?from=2024-03-01", "coach-b", "")), ShouldBeEmpty)
				So(c.do("GET", "/assessments?from=March", "admin", "").Code, ShouldEqual, http.StatusBadRequest)
			})

			Convey("the summary counts drafts as pending", func() {
				w := c.do("GET", "/assessments/summary?group_id=g1", "admin", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decodeBody(w)
				So(body["totalAssessments"], ShouldEqual, 1.0)
				So(body["pendingAssessments"], ShouldEqual, 1.0)
				So(body["averageScoreByCategory"].(map[string]any)["Technical"], ShouldEqual, 8.0)

				So(c.do("GET", "/assessments/summary?period=Weekly", "admin", "").Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

type failingService struct {
	api.Assessments
}

func (failingService) GetAssessment(context.Context, model.Actor, string) (model.Assessment, error) {
	return model.Assessment{}, model.Internal("get", errors.New("disk on fire"))
}

type pingFailure struct{}

func (pingFailure) Ping(context.Context) error { return errors.New("down") }

func TestFailureMapping(t *testing.T) {
	Convey("Given a service that fails unexpectedly", t, func() {
		dir := testDirectory()
		server := api.NewServer(failingService{}, dir, api.WithLogger(logger.Nop()), api.WithHealth(pingFailure{}))
		mux := http.NewServeMux()
		server.Register(context.Background(), mux)
		c := client{mux: mux}

		Convey("the caller sees an opaque internal error", func() {
			w := c.do("GET", "/assessments/x", "admin", "")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			body := decodeBody(w)
			So(body["code"], ShouldEqual, "internal_error")
			So(body["message"], ShouldEqual, "internal error")
			So(w.Body.String(), ShouldNotContainSubstring, "disk on fire")
		})

		Convey("health reports the failing store", func() {
			So(c.do("GET", "/healthz", "", "").Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("stats are not registered without a provider", func() {
			So(c.do("GET", "/stats", "", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}
