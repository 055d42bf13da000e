package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given a dedicated registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			m.sessionsOpened.Inc()

			Convey("Then its collectors are registered under the namespace", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					So(strings.HasPrefix(f.GetName(), "test_unit_"), ShouldBeTrue)
					if f.GetName() == "test_unit_sessions_opened_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "test")
					}
				}
				So(found, ShouldBeTrue)
			})

			Convey("And registering the same manager twice panics", func() {
				So(func() { NewManager(WithNamespace("test"), WithSubsystem("unit"), WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestJudgingMetrics(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When a save is recorded", func() {
			before := testutil.ToFloat64(globalManager.saves.WithLabelValues(OutcomeSaved))
			RecordSave(OutcomeSaved, 3, 12)
			after := testutil.ToFloat64(globalManager.saves.WithLabelValues(OutcomeSaved))

			Convey("Then the outcome counter increases by one", func() {
				So(after-before, ShouldEqual, 1)
			})
		})

		Convey("When a conflict is recorded", func() {
			before := testutil.ToFloat64(globalManager.saves.WithLabelValues(OutcomeConflict))
			RecordSave(OutcomeConflict, 0, 4)

			Convey("Then only the conflict counter moves", func() {
				So(testutil.ToFloat64(globalManager.saves.WithLabelValues(OutcomeConflict))-before, ShouldEqual, 1)
			})
		})

		Convey("When gauges are updated", func() {
			UpdateActiveSessions(4)
			UpdateQueueSize(7)
			UpdateWorkerCount(2)

			Convey("Then they reflect the last value", func() {
				So(testutil.ToFloat64(globalManager.activeSessions), ShouldEqual, 4)
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 7)
				So(testutil.ToFloat64(globalManager.workerCount), ShouldEqual, 2)
			})
		})

		Convey("When score inputs are recorded", func() {
			before := testutil.ToFloat64(globalManager.scoreInputs.WithLabelValues("change", "false"))
			RecordScoreInput("change", false)

			Convey("Then the rejected change counter increases", func() {
				So(testutil.ToFloat64(globalManager.scoreInputs.WithLabelValues("change", "false"))-before, ShouldEqual, 1)
			})
		})

		Convey("When store and http metrics are recorded", func() {
			RecordStoreOperation("update", "events", "ok", 3)
			RecordHTTPRequest("results", "GET", "200")
			RecordHTTPRequestDuration("results", "GET", "200", 2)

			Convey("Then the registry can be gathered", func() {
				_, err := GetRegistry().Gather()
				So(err, ShouldBeNil)
				So(testutil.CollectAndCount(globalManager.storeOperations), ShouldBeGreaterThan, 0)
			})
		})
	})
}
