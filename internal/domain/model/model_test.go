package model_test

import (
	"errors"
	"testing"
	"time"

	model "github.com/okian/ecell/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestDecodeEvent(t *testing.T) {
	convey.Convey("Given a loosely typed event document", t, func() {
		fields := map[string]any{
			"name":     "  Hackathon ",
			"teamSize": "4",
			"status":   "ongoing",
			"judgingCriteria": []any{
				map[string]any{"id": "c1", "name": " Idea ", "maxScore": "10", "weight": 0.5},
				map[string]any{"name": "Pitch", "maxScore": 10.0, "weight": "0.5"},
			},
			"scores": []any{
				map[string]any{"teamId": "t1", "scores": map[string]any{"c1": 8.0}, "totalScore": 4.0},
				map[string]any{"teamId": "t2", "totalScore": 0},
			},
			"createdAt": "2024-01-01T00:00:00Z",
		}

		convey.Convey("When decoding it", func() {
			ev, err := model.DecodeEvent("ev-1", 3, fields)

			convey.Convey("Then numbers are coerced and strings are trimmed", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(ev.ID, convey.ShouldEqual, "ev-1")
				convey.So(ev.Version, convey.ShouldEqual, 3)
				convey.So(ev.Name, convey.ShouldEqual, "Hackathon")
				convey.So(ev.TeamSize, convey.ShouldEqual, 4)
				convey.So(ev.JudgingCriteria[0].Name, convey.ShouldEqual, "Idea")
				convey.So(ev.JudgingCriteria[0].MaxScore, convey.ShouldEqual, 10)
				convey.So(ev.JudgingCriteria[1].Weight, convey.ShouldEqual, 0.5)
			})

			convey.Convey("And criteria without an id receive one", func() {
				convey.So(ev.JudgingCriteria[1].ID, convey.ShouldNotBeEmpty)
			})

			convey.Convey("And the derived id is the same on every read", func() {
				again, err := model.DecodeEvent("ev-1", 3, fields)
				convey.So(err, convey.ShouldBeNil)
				convey.So(again.JudgingCriteria[1].ID, convey.ShouldEqual, ev.JudgingCriteria[1].ID)
				convey.So(again.JudgingCriteria[0].ID, convey.ShouldEqual, "c1")
			})

			convey.Convey("And result rows always carry a scores map", func() {
				convey.So(ev.Scores[0].Scores["c1"], convey.ShouldEqual, 8)
				convey.So(ev.Scores[1].Scores, convey.ShouldNotBeNil)
				r, ok := ev.ResultFor("t2")
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(r.TotalScore, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When the status is unknown", func() {
			fields["status"] = "cancelled"
			_, err := model.DecodeEvent("ev-1", 1, fields)
			convey.So(errors.Is(err, model.ErrInvalidRecord), convey.ShouldBeTrue)
		})

		convey.Convey("When a number cannot be coerced", func() {
			fields["teamSize"] = "four"
			_, err := model.DecodeEvent("ev-1", 1, fields)
			convey.So(errors.Is(err, model.ErrDecode), convey.ShouldBeTrue)
		})
	})
}

func TestDecodeRegistration(t *testing.T) {
	convey.Convey("Given a registration document", t, func() {
		fields := map[string]any{
			"eventId":          "ev-1",
			"teamName":         " Rockets ",
			"registrationDate": "2024-02-03T10:00:00.123Z",
			"members": []any{
				map[string]any{"name": "Asha", "email": "asha@example.com", "rollNumber": 42},
				map[string]any{"name": "Ben", "email": ""},
			},
		}

		convey.Convey("When decoding it", func() {
			r, err := model.DecodeRegistration("r-1", fields)

			convey.Convey("Then it is normalized", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(r.TeamName, convey.ShouldEqual, "Rockets")
				convey.So(r.Status, convey.ShouldEqual, model.StatusPending)
				convey.So(r.TeamSize(), convey.ShouldEqual, 2)
				convey.So(r.Members[0].RollNumber, convey.ShouldEqual, "42")
				convey.So(r.RegistrationDate.Equal(time.Date(2024, 2, 3, 10, 0, 0, 123e6, time.UTC)), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the team name is missing", func() {
			delete(fields, "teamName")
			_, err := model.DecodeRegistration("r-1", fields)
			convey.So(errors.Is(err, model.ErrInvalidRecord), convey.ShouldBeTrue)
		})

		convey.Convey("When a member email is malformed", func() {
			fields["members"] = []any{map[string]any{"name": "Asha", "email": "not-an-email"}}
			_, err := model.DecodeRegistration("r-1", fields)
			convey.So(errors.Is(err, model.ErrInvalidRecord), convey.ShouldBeTrue)
		})

		convey.Convey("When the registration date is empty", func() {
			fields["registrationDate"] = ""
			r, err := model.DecodeRegistration("r-1", fields)
			convey.So(err, convey.ShouldBeNil)
			convey.So(r.RegistrationDate.IsZero(), convey.ShouldBeTrue)
		})
	})
}

func TestFields(t *testing.T) {
	convey.Convey("Given a typed result row", t, func() {
		row := model.TeamResult{TeamID: "t1", Scores: map[string]float64{"c1": 7}, TotalScore: 7}

		convey.Convey("When encoding it as a field value", func() {
			v, err := model.Value([]model.TeamResult{row})

			convey.Convey("Then it uses the stored field names", func() {
				convey.So(err, convey.ShouldBeNil)
				rows := v.([]any)
				m := rows[0].(map[string]any)
				convey.So(m["teamId"], convey.ShouldEqual, "t1")
				convey.So(m["totalScore"], convey.ShouldEqual, 7.0)
			})
		})

		convey.Convey("When encoding a registration", func() {
			f, err := model.Fields(model.Registration{ID: "r-1", EventID: "ev-1", TeamName: "A"})

			convey.Convey("Then the id stays out of the fields", func() {
				convey.So(err, convey.ShouldBeNil)
				_, hasID := f["id"]
				convey.So(hasID, convey.ShouldBeFalse)
				convey.So(f["eventId"], convey.ShouldEqual, "ev-1")
			})
		})
	})
}

func TestDecodeCriteria(t *testing.T) {
	convey.Convey("Given a request body criteria list", t, func() {
		raw := []any{map[string]any{"id": " a ", "name": "A", "maxScore": 10, "weight": 1}}

		crit, err := model.DecodeCriteria(raw)

		convey.So(err, convey.ShouldBeNil)
		convey.So(crit[0].ID, convey.ShouldEqual, "a")
		convey.So(crit[0].Weight, convey.ShouldEqual, 1)
		convey.So(model.ValidStatus("approved"), convey.ShouldBeTrue)
		convey.So(model.ValidStatus("maybe"), convey.ShouldBeFalse)
	})
}
