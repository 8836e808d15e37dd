package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/okian/hyperlocal/internal/config"
	"github.com/okian/hyperlocal/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestNewService(t *testing.T) {
	convey.Convey("Given a loaded configuration", t, func() {
		_ = os.Setenv("HYPERLOCAL_QUEUE_SIZE", "1000")
		_ = os.Setenv("HYPERLOCAL_MISSING_DIRECTORY_POLICY", "empty-key")
		defer func() {
			_ = os.Unsetenv("HYPERLOCAL_QUEUE_SIZE")
			_ = os.Unsetenv("HYPERLOCAL_MISSING_DIRECTORY_POLICY")
		}()

		ctx := context.Background()
		cfg, err := config.Load(ctx, "")
		convey.So(err, convey.ShouldBeNil)
		convey.So(cfg.EventQueueSize, convey.ShouldEqual, 1000)

		convey.Convey("When building and starting the service", func() {
			svc, err := newService(cfg, logger.Nop())
			convey.So(err, convey.ShouldBeNil)
			convey.So(svc.Start(ctx), convey.ShouldBeNil)
			defer svc.Stop()

			convey.Convey("Then the configured limits apply", func() {
				convey.So(svc.GetStats(ctx).QueueCapacity, convey.ShouldEqual, 1000)
			})
		})

		convey.Convey("When the policy is unknown", func() {
			cfg.MissingDirectoryPolicy = "shrug"
			_, err := newService(cfg, logger.Nop())
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestNewMux(t *testing.T) {
	convey.Convey("Given the full route table", t, func() {
		ctx := context.Background()
		cfg := config.New(ctx)
		svc, err := newService(cfg, logger.Nop())
		convey.So(err, convey.ShouldBeNil)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		var mux *http.ServeMux
		convey.So(func() { mux = newMux(ctx, cfg, svc, logger.Nop()) }, convey.ShouldNotPanic)

		convey.Convey("Then every surface answers", func() {
			for path, want := range map[string]int{
				"/":             http.StatusOK,
				"/api-docs":     http.StatusOK,
				"/openapi.yaml": http.StatusOK,
				"/healthz":      http.StatusOK,
				"/stats":        http.StatusOK,
				"/featured":     http.StatusOK,
				"/directories":  http.StatusOK,
			} {
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
				convey.So(w.Code, convey.ShouldEqual, want)
			}
		})

		convey.Convey("Then the default policy refuses events without a directory at ingress", func() {
			body := strings.NewReader(`{"event":"appearance","deviceId":"d1"}`)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/events", body))
			convey.So(w.Code, convey.ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given the background metrics updaters", t, func() {
		convey.Convey("Then a system metrics update does not panic", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})

		convey.Convey("Then the updaters return once ctx is done", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			svc, err := newService(config.New(ctx), logger.Nop())
			convey.So(err, convey.ShouldBeNil)

			done := make(chan struct{}, 2)
			go func() { startSystemMetricsUpdater(ctx); done <- struct{}{} }()
			go func() { startServiceMetricsUpdater(ctx, svc); done <- struct{}{} }()
			for range 2 {
				select {
				case <-done:
				case <-time.After(time.Second):
					t.Fatal("updater did not stop")
				}
			}
		})
	})
}
