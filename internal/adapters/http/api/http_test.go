package api_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/ecell/internal/adapters/export"
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

const (
	adminToken       = "admin-token"
	participantToken = "participant-token"
)

type mockStatsProvider struct {
	stats map[string]any
}

func (m *mockStatsProvider) GetStats() map[string]any {
	return m.stats
}

type harness struct {
	store *repository.MemoryStore
	mux   *http.ServeMux
}

func newHarness(opts ...api.ServerOption) *harness {
	store := repository.NewMemoryStore()
	engine := judging.NewEngine(store)
	provider, err := auth.NewProvider(map[string]auth.Principal{
		adminToken:       {UID: "admin-1", Role: auth.RoleAdmin},
		participantToken: {UID: "p-1", Role: auth.RoleParticipant},
	})
	So(err, ShouldBeNil)

	server := api.NewServer(engine, &mockStatsProvider{stats: map[string]any{"sessions": 0}}, provider, opts...)
	mux := http.NewServeMux()
	server.Register(context.Background(), mux)

	h := &harness{store: store, mux: mux}
	h.seed()
	return h
}

func (h *harness) seed() {
	ctx := context.Background()
	_, err := h.store.Create(ctx, model.CollectionEvents, "ev-1", map[string]any{
		"name": "Pitch Night",
		"judgingCriteria": []any{
			map[string]any{"id": "idea", "name": "Idea", "maxScore": 10, "weight": 0.5},
			map[string]any{"id": "pitch", "name": "Pitch", "maxScore": 10, "weight": 0.5},
		},
	})
	So(err, ShouldBeNil)
	for _, team := range []struct{ id, name string }{{"t1", "Rockets"}, {"t2", "Comets"}} {
		_, err := h.store.Create(ctx, model.CollectionRegistrations, team.id, map[string]any{
			"eventId":  "ev-1",
			"teamName": team.name,
			"members":  []any{map[string]any{"name": "Asha", "email": "asha@example.com"}},
		})
		So(err, ShouldBeNil)
	}
}

func (h *harness) do(method, path, token, body string) *httptest.ResponseRecorder {
	var r io.Reader = http.NoBody
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.mux.ServeHTTP(w, req)
	return w
}

func decode[T any](w *httptest.ResponseRecorder) T {
	var v T
	So(json.Unmarshal(w.Body.Bytes(), &v), ShouldBeNil)
	return v
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func TestPublicRoutes(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		h := newHarness()

		Convey("When calling /healthz without a token", func() {
			w := h.do(http.MethodGet, "/healthz", "", "")

			Convey("Then it reports ok", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"status":"ok"`)
			})
		})

		Convey("When calling /metrics", func() {
			h.do(http.MethodGet, "/healthz", "", "")
			w := h.do(http.MethodGet, "/metrics", "", "")

			Convey("Then the exposition includes http metrics", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "http_requests_total")
			})
		})

		Convey("When calling /stats with a token", func() {
			w := h.do(http.MethodGet, "/stats", participantToken, "")

			Convey("Then the provider's stats are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode[map[string]any](w)["sessions"], ShouldEqual, 0)
			})
		})

		Convey("When using the wrong method", func() {
			w := h.do(http.MethodPost, "/healthz", "", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestAuthentication(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		h := newHarness()

		Convey("When the token is missing", func() {
			w := h.do(http.MethodGet, "/events/ev-1/results", "", "")

			Convey("Then the request is unauthorized", func() {
				So(w.Code, ShouldEqual, http.StatusUnauthorized)
				So(decode[errorBody](w).Code, ShouldEqual, "unauthenticated")
			})
		})

		Convey("When the token is unknown", func() {
			w := h.do(http.MethodGet, "/events/ev-1/results", "nope", "")
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("When a participant opens a judging session", func() {
			w := h.do(http.MethodPost, "/events/ev-1/sessions", participantToken, "")

			Convey("Then it is forbidden", func() {
				So(w.Code, ShouldEqual, http.StatusForbidden)
				So(decode[errorBody](w).Code, ShouldEqual, "forbidden")
			})
		})

		Convey("When a participant reads results", func() {
			w := h.do(http.MethodGet, "/events/ev-1/results", participantToken, "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})
	})
}

func TestJudgingFlow(t *testing.T) {
	Convey("Given an event with two teams", t, func() {
		h := newHarness()

		Convey("When an admin opens a session", func() {
			w := h.do(http.MethodPost, "/events/ev-1/sessions", adminToken, "")
			So(w.Code, ShouldEqual, http.StatusCreated)
			view := decode[types.SessionView](w)
			So(w.Header().Get("Location"), ShouldEqual, "/sessions/"+view.ID)

			Convey("Then every team is listed", func() {
				So(view.Teams, ShouldHaveLength, 2)
				So(view.Teams[0].TeamName, ShouldEqual, "Rockets")
			})

			Convey("And committed scores update the live total", func() {
				w := h.do(http.MethodPut, "/sessions/"+view.ID+"/scores/t2/idea", adminToken, `{"value":"8","commit":true}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				upd := decode[types.ScoreUpdate](w)
				So(upd.Accepted, ShouldBeTrue)
				So(upd.TotalScore, ShouldEqual, 4)

				Convey("And out-of-range commits are clamped", func() {
					w := h.do(http.MethodPut, "/sessions/"+view.ID+"/scores/t2/pitch", adminToken, `{"value":"15","commit":true}`)
					So(decode[types.ScoreUpdate](w).Input.Value, ShouldEqual, 10)
				})

				Convey("And saving persists ranked results", func() {
					w := h.do(http.MethodPost, "/sessions/"+view.ID+"/save", adminToken, "")
					So(w.Code, ShouldEqual, http.StatusOK)
					res := decode[types.Results](w)
					So(res.Standings[0].TeamID, ShouldEqual, "t2")
					So(res.Standings[0].Rank, ShouldEqual, 1)

					read := h.do(http.MethodGet, "/events/ev-1/results", participantToken, "")
					So(decode[types.Results](read).Standings[0].TotalScore, ShouldEqual, 4)

					Convey("And the saved session is gone", func() {
						w := h.do(http.MethodGet, "/sessions/"+view.ID, adminToken, "")
						So(w.Code, ShouldEqual, http.StatusNotFound)
					})
				})
			})

			Convey("And an unknown team is a bad request", func() {
				w := h.do(http.MethodPut, "/sessions/"+view.ID+"/scores/t9/idea", adminToken, `{"value":"8"}`)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})

			Convey("And a malformed body is a bad request", func() {
				w := h.do(http.MethodPut, "/sessions/"+view.ID+"/scores/t1/idea", adminToken, `{"value":8}`)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})

			Convey("And another user cannot use the session", func() {
				w := h.do(http.MethodGet, "/sessions/"+view.ID, participantToken, "")
				So(w.Code, ShouldEqual, http.StatusForbidden)
			})

			Convey("And a stale save conflicts", func() {
				put := h.do(http.MethodPut, "/events/ev-1/criteria", adminToken,
					`{"criteria":[{"id":"idea","name":"Idea","maxScore":10,"weight":1}]}`)
				So(put.Code, ShouldEqual, http.StatusOK)

				w := h.do(http.MethodPost, "/sessions/"+view.ID+"/save", adminToken, "")
				So(w.Code, ShouldEqual, http.StatusConflict)
				So(decode[errorBody](w).Code, ShouldEqual, "conflict")

				Convey("And the session survives for a retry", func() {
					So(h.do(http.MethodGet, "/sessions/"+view.ID, adminToken, "").Code, ShouldEqual, http.StatusOK)
				})
			})

			Convey("And discarding removes the session", func() {
				w := h.do(http.MethodDelete, "/sessions/"+view.ID, adminToken, "")
				So(w.Code, ShouldEqual, http.StatusNoContent)
				So(h.do(http.MethodGet, "/sessions/"+view.ID, adminToken, "").Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When opening a session for a missing event", func() {
			w := h.do(http.MethodPost, "/events/nope/sessions", adminToken, "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestCriteriaRoutes(t *testing.T) {
	Convey("Given an event with criteria", t, func() {
		h := newHarness()

		Convey("When reading them", func() {
			w := h.do(http.MethodGet, "/events/ev-1/criteria", participantToken, "")
			body := decode[map[string]any](w)

			Convey("Then the event's own list is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(body["default"], ShouldEqual, false)
				So(body["criteria"], ShouldHaveLength, 2)
			})
		})

		Convey("When the weights do not sum to one", func() {
			w := h.do(http.MethodPut, "/events/ev-1/criteria", adminToken,
				`{"criteria":[{"name":"A","maxScore":10,"weight":0.5},{"name":"B","maxScore":10,"weight":0.4}]}`)

			Convey("Then the list is refused", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(decode[errorBody](w).Code, ShouldEqual, "invalid_criteria")
			})
		})

		Convey("When numbers arrive as strings", func() {
			w := h.do(http.MethodPut, "/events/ev-1/criteria", adminToken,
				`{"criteria":[{"name":"Only","maxScore":"20","weight":"1"}]}`)

			Convey("Then they are coerced and an id is assigned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var body struct {
					Criteria []model.Criterion `json:"criteria"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body.Criteria[0].MaxScore, ShouldEqual, 20)
				So(body.Criteria[0].ID, ShouldNotBeEmpty)
			})
		})

		Convey("When the body has no criteria", func() {
			w := h.do(http.MethodPut, "/events/ev-1/criteria", adminToken, `{}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestRegistrationRoutes(t *testing.T) {
	Convey("Given two registrations", t, func() {
		h := newHarness()

		Convey("When listing them", func() {
			w := h.do(http.MethodGet, "/events/ev-1/registrations", adminToken, "")
			var regs []map[string]any
			So(json.Unmarshal(w.Body.Bytes(), &regs), ShouldBeNil)

			Convey("Then each carries its id", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(regs, ShouldHaveLength, 2)
				So(regs[0]["id"], ShouldEqual, "t1")
				So(regs[0]["status"], ShouldEqual, model.StatusPending)
			})
		})

		Convey("When approving one", func() {
			w := h.do(http.MethodPatch, "/registrations/t1", adminToken, `{"status":"approved"}`)

			Convey("Then the new status is returned and filterable", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode[map[string]any](w)["status"], ShouldEqual, model.StatusApproved)

				list := h.do(http.MethodGet, "/events/ev-1/registrations?status=approved", adminToken, "")
				var regs []map[string]any
				So(json.Unmarshal(list.Body.Bytes(), &regs), ShouldBeNil)
				So(regs, ShouldHaveLength, 1)
			})
		})

		Convey("When the status is unknown", func() {
			w := h.do(http.MethodPatch, "/registrations/t1", adminToken, `{"status":"maybe"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the filter status is unknown", func() {
			w := h.do(http.MethodGet, "/events/ev-1/registrations?status=maybe", adminToken, "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the registration does not exist", func() {
			w := h.do(http.MethodPatch, "/registrations/nope", adminToken, `{"status":"rejected"}`)
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When a participant lists registrations", func() {
			w := h.do(http.MethodGet, "/events/ev-1/registrations", participantToken, "")
			So(w.Code, ShouldEqual, http.StatusForbidden)
		})
	})
}

func TestExportRoutes(t *testing.T) {
	Convey("Given an event with registrations", t, func() {
		h := newHarness()

		Convey("When an admin exports registrations", func() {
			w := h.do(http.MethodGet, "/events/ev-1/registrations.xlsx", adminToken, "")

			Convey("Then a workbook is attached", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldEqual, export.ContentType)
				So(w.Header().Get("Content-Disposition"), ShouldContainSubstring, "registrations_ev-1.xlsx")
				So(w.Body.Len(), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When an admin exports results", func() {
			w := h.do(http.MethodGet, "/events/ev-1/results.xlsx", adminToken, "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Disposition"), ShouldContainSubstring, "results_ev-1.xlsx")
		})

		Convey("When a participant exports results", func() {
			w := h.do(http.MethodGet, "/events/ev-1/results.xlsx", participantToken, "")
			So(w.Code, ShouldEqual, http.StatusForbidden)
		})
	})
}

func TestRateLimit(t *testing.T) {
	Convey("Given a server allowing one request per second", t, func() {
		h := newHarness(api.WithRateLimit(1, 1))

		Convey("When two requests arrive back to back", func() {
			first := h.do(http.MethodGet, "/healthz", "", "")
			second := h.do(http.MethodGet, "/healthz", "", "")

			Convey("Then the second is throttled", func() {
				So(first.Code, ShouldEqual, http.StatusOK)
				So(second.Code, ShouldEqual, http.StatusTooManyRequests)
				So(second.Header().Get("Retry-After"), ShouldEqual, "1")
			})
		})
	})
}

func TestResultsStream(t *testing.T) {
	Convey("Given a running HTTP server", t, func() {
		h := newHarness()
		srv := httptest.NewServer(h.mux)
		defer srv.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		Convey("When subscribing to live results", func() {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events/ev-1/results/stream", http.NoBody)
			So(err, ShouldBeNil)
			req.Header.Set("Authorization", "Bearer "+participantToken)
			resp, err := http.DefaultClient.Do(req)
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the current results arrive as an event", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(resp.Header.Get("Content-Type"), ShouldEqual, "text/event-stream")

				reader := bufio.NewReader(resp.Body)
				line, err := reader.ReadString('\n')
				So(err, ShouldBeNil)
				So(line, ShouldEqual, "event: results\n")
				data, err := reader.ReadString('\n')
				So(err, ShouldBeNil)
				So(data, ShouldStartWith, "data: ")

				var res types.Results
				So(json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(data), "data: ")), &res), ShouldBeNil)
				So(res.EventID, ShouldEqual, "ev-1")
			})
		})

		Convey("When subscribing to an unknown event", func() {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events/missing/results/stream", http.NoBody)
			So(err, ShouldBeNil)
			req.Header.Set("Authorization", "Bearer "+participantToken)
			resp, err := http.DefaultClient.Do(req)
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then it is not found instead of an idle stream", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}
