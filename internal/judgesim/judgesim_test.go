package judgesim

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/ecell/internal/adapters/http/api"
	"github.com/okian/ecell/internal/adapters/repository"
	"github.com/okian/ecell/internal/domain/auth"
	"github.com/okian/ecell/internal/domain/judging"
	"github.com/okian/ecell/internal/domain/model"
	"github.com/okian/ecell/internal/domain/types"
	"github.com/okian/ecell/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func newService(t *testing.T) *httptest.Server {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	_, err := store.Create(ctx, model.CollectionEvents, "ev-1", map[string]any{
		"name": "Sim Cup",
		"judgingCriteria": []any{
			map[string]any{"id": "a", "name": "A", "maxScore": 10, "weight": 0.6},
			map[string]any{"id": "b", "name": "B", "maxScore": 5, "weight": 0.4},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"t1", "t2", "t3", "t4", "t5"} {
		if _, err := store.Create(ctx, model.CollectionRegistrations, id, map[string]any{"eventId": "ev-1", "teamName": id}); err != nil {
			t.Fatal(err)
		}
	}

	provider, err := auth.NewProvider(map[string]auth.Principal{"sim": {UID: "sim", Role: auth.RoleAdmin}})
	if err != nil {
		t.Fatal(err)
	}
	mux := http.NewServeMux()
	api.NewServer(judging.NewEngine(store), nil, provider).Register(ctx, mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRun(t *testing.T) {
	Convey("Given a running judging service", t, func() {
		srv := newService(t)
		out := filepath.Join(t.TempDir(), "scores", "cells.json")
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		Convey("When a simulated pass runs", func() {
			stats, err := Run(ctx, &Config{
				BaseURL:    srv.URL,
				Token:      "sim",
				EventID:    "ev-1",
				Workers:    3,
				OutputFile: out,
			})

			Convey("Then every cell is accepted and the ranking verifies", func() {
				So(err, ShouldBeNil)
				So(stats.Teams, ShouldEqual, 5)
				So(stats.CellsGenerated, ShouldEqual, 10)
				So(stats.CellsAccepted, ShouldEqual, 10)
				So(stats.Standings, ShouldEqual, 5)
			})

			Convey("And the submitted scores are written out", func() {
				data, err := os.ReadFile(out)
				So(err, ShouldBeNil)
				var cells []Cell
				So(json.Unmarshal(data, &cells), ShouldBeNil)
				So(cells, ShouldHaveLength, 10)
			})
		})

		Convey("When the token is not accepted", func() {
			_, err := Run(ctx, &Config{BaseURL: srv.URL, Token: "wrong", EventID: "ev-1"})
			So(errors.Is(err, ErrUnexpectedStatus), ShouldBeTrue)
		})

		Convey("When no event is named", func() {
			_, err := Run(ctx, &Config{BaseURL: srv.URL, Token: "sim"})
			So(errors.Is(err, ErrNoEvent), ShouldBeTrue)
		})
	})
}

func TestGenerateScores(t *testing.T) {
	Convey("Given two teams and two criteria", t, func() {
		teams := []types.SessionTeam{{TeamID: "t1"}, {TeamID: "t2"}}
		criteria := []model.Criterion{{ID: "a", MaxScore: 10, Weight: 0.5}, {ID: "b", MaxScore: 3, Weight: 0.5}}

		cells := generateScores(teams, criteria)

		Convey("Then every pair gets an in-range value", func() {
			So(cells, ShouldHaveLength, 4)
			for _, c := range cells {
				max := 10.0
				if c.CriterionID == "b" {
					max = 3
				}
				So(c.Value, ShouldBeBetweenOrEqual, 0.0, max)
			}
		})
	})
}

func TestVerifyResults(t *testing.T) {
	Convey("Given locally computed expectations", t, func() {
		teams := []types.SessionTeam{{TeamID: "t1"}, {TeamID: "t2"}}
		criteria := []model.Criterion{{ID: "a", MaxScore: 10, Weight: 1}}
		cells := []Cell{{TeamID: "t1", CriterionID: "a", Value: 4}, {TeamID: "t2", CriterionID: "a", Value: 9}}
		expected := expectedRanking(teams, criteria, cells)

		Convey("Then the matching standings verify", func() {
			got := []types.Standing{{Rank: 1, TeamID: "t2", TotalScore: 9}, {Rank: 2, TeamID: "t1", TotalScore: 4}}
			So(verifyResults(expected, got), ShouldBeNil)
		})

		Convey("Then swapped teams are reported", func() {
			got := []types.Standing{{Rank: 1, TeamID: "t1", TotalScore: 9}, {Rank: 2, TeamID: "t2", TotalScore: 4}}
			So(errors.Is(verifyResults(expected, got), ErrMismatch), ShouldBeTrue)
		})

		Convey("Then a missing row is reported", func() {
			got := []types.Standing{{Rank: 1, TeamID: "t2", TotalScore: 9}}
			So(errors.Is(verifyResults(expected, got), ErrMismatch), ShouldBeTrue)
		})
	})
}
