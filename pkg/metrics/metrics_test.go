package metrics

import (
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then collectors are registered under the default namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.featureTicks.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "hyperlocal_dashboard_feature_ticks_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("lab"),
				WithSubsystem("floor"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithConstLabels(map[string]string{"site": "notman"}),
				WithPrometheusRegistry(registry),
			)
			manager.directories.Set(3)

			Convey("Then names and const labels follow the options", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				var names []string
				for _, f := range families {
					names = append(names, f.GetName())
					if f.GetName() == "lab_floor_directories" {
						So(f.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "notman")
					}
				}
				So(strings.Join(names, ","), ShouldContainSubstring, "lab_floor_directories")
			})
		})

		Convey("When two managers share a registry", func() {
			registry := prometheus.NewRegistry()
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then the second registration panics", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording events and featuring ticks", func() {
			before := testutil.ToFloat64(globalManager.eventsProcessed.WithLabelValues("appearance"))
			ticksBefore := testutil.ToFloat64(globalManager.featureTicks)
			switchesBefore := testutil.ToFloat64(globalManager.featuredSwitches)

			RecordEventProcessed("appearance")
			RecordFeatureTick(true, 4, 0.2)
			RecordFeatureTick(false, 4, 0.1)

			Convey("Then counters and gauges move accordingly", func() {
				So(testutil.ToFloat64(globalManager.eventsProcessed.WithLabelValues("appearance")), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.featureTicks), ShouldEqual, ticksBefore+2)
				So(testutil.ToFloat64(globalManager.featuredSwitches), ShouldEqual, switchesBefore+1)
				So(testutil.ToFloat64(globalManager.featuredDirPeople), ShouldEqual, 4)
			})
		})

		Convey("When updating the queue size", func() {
			UpdateQueueSize(25, 100)

			Convey("Then utilization is derived from capacity", func() {
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 25)
				So(testutil.ToFloat64(globalManager.queueUtilization), ShouldEqual, 0.25)
			})
		})

		Convey("When the capacity is zero", func() {
			UpdateQueueSize(1, 100)
			UpdateQueueSize(5, 0)

			Convey("Then utilization keeps its previous value", func() {
				So(testutil.ToFloat64(globalManager.queueUtilization), ShouldEqual, 0.01)
			})
		})

		Convey("When every helper is called", func() {
			So(func() {
				RecordEventReceived("keep-alive", "http")
				RecordEventRejected("invalid")
				RecordEventDuplicate()
				UpdateStreamClients(2)
				RecordEventError("missing_directory")
				UpdateDirectories(3)
				UpdatePresentDevices(7)
				UpdateRegisteredDevices(9)
				RecordHandleLatency(0.3)
				RecordStoryResolution("person")
				RecordStoryLatency(12)
				UpdateStoriesCached(5)
				UpdateFeaturedStories(2)
				UpdateQueueCapacity(100)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError("queue_full")
				RecordHTTPRequest("/events", "POST", "202")
				RecordHTTPRequestDuration("/events", "POST", "202", 1.5)
				RecordErrorByEndpoint("/events", "POST", "client_error")
				RecordErrorByType("client_error", "medium")
				RecordErrorByComponent("queue", "closed")
				RecordErrorLatency("http", "client_error", 2)
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.4)
			}, ShouldNotPanic)
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}

func TestMetricsConcurrency(t *testing.T) {
	var wg sync.WaitGroup
	before := testutil.ToFloat64(globalManager.queueEnqueued)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				RecordQueueEnqueue()
			}
		}()
	}
	wg.Wait()
	if got := testutil.ToFloat64(globalManager.queueEnqueued); got != before+800 {
		t.Fatalf("expected %v enqueues, got %v", before+800, got)
	}
}
