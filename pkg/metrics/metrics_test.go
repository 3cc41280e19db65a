package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("board"),
				WithLatencyBuckets([]float64{0.1, 1}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors should be registered under the namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.rebuilds.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := map[string]bool{}
				for _, f := range families {
					names[f.GetName()] = true
				}
				So(names["test_board_snapshot_rebuilds_total"], ShouldBeTrue)
			})
		})

		Convey("When empty options are given", func() {
			manager := NewManager(WithNamespace(""), WithSubsystem(""), WithLatencyBuckets(nil), WithPrometheusRegistry(registry))

			Convey("Then defaults should be kept", func() {
				So(manager.namespace, ShouldEqual, "rankboard")
				So(manager.subsystem, ShouldEqual, "leaderboard")
				So(manager.latencyBuckets, ShouldResemble, defaultLatencyBuckets)
			})
		})
	})
}

func TestGlobalHelpers(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording score updates", func() {
			before := testutil.ToFloat64(globalManager.scoreUpdates.WithLabelValues(OutcomeApplied))
			RecordScoreUpdate(OutcomeApplied)
			RecordScoreUpdate(OutcomeApplied)

			Convey("Then the counter should advance", func() {
				So(testutil.ToFloat64(globalManager.scoreUpdates.WithLabelValues(OutcomeApplied)), ShouldEqual, before+2)
			})
		})

		Convey("When recording a rebuild", func() {
			RecordRebuild(1.5, 42, 7, 1700000000)

			Convey("Then the snapshot gauges should reflect it", func() {
				So(testutil.ToFloat64(globalManager.rankedCustomers), ShouldEqual, 42)
				So(testutil.ToFloat64(globalManager.snapshotGeneration), ShouldEqual, 7)
				So(testutil.ToFloat64(globalManager.snapshotLastUnix), ShouldEqual, 1700000000)
			})
		})

		Convey("When recording a skipped rebuild", func() {
			before := testutil.ToFloat64(globalManager.rebuildsSkipped.WithLabelValues(SkipBusy))
			RecordRebuildSkipped(SkipBusy)

			Convey("Then the busy counter should advance", func() {
				So(testutil.ToFloat64(globalManager.rebuildsSkipped.WithLabelValues(SkipBusy)), ShouldEqual, before+1)
			})
		})

		Convey("When calling every helper", func() {
			So(func() {
				RecordScoreUpdateLatency(0.01)
				UpdateCustomersTracked(10)
				RecordQueryLatency(QueryRange, 0.2)
				RecordQueryLatency(QueryNeighborhood, 0.2)
				RecordQueryLatency(QueryLookup, 0.2)
				RecordHTTPRequest("/leaderboard", "GET", "200")
				RecordHTTPRequestDuration("/leaderboard", "GET", "200", 3)
				RecordError("store", "invalid_id")
				UpdateQueueSize(3)
				UpdateQueueCapacity(100)
				RecordQueueEnqueue()
				RecordQueueRejected("full")
				UpdateWorkerCount(4)
				RecordWorkerProcessed(2)
				RecordWorkerError()
				UpdateIdempotencyEntries(5)
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(12)
			}, ShouldNotPanic)

			Convey("Then the registry should gather without error", func() {
				_, err := GetRegistry().Gather()
				So(err, ShouldBeNil)
				So(testutil.ToFloat64(globalManager.queueCapacity), ShouldEqual, 100)
			})
		})
	})
}
