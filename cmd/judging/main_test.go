package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	app "github.com/okian/ecell/internal/app"
	"github.com/okian/ecell/internal/config"
	"github.com/okian/ecell/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func TestConfigFromEnv(t *testing.T) {
	convey.Convey("Given environment overrides", t, func() {
		t.Setenv("ECELL_ADDR", ":8080")
		t.Setenv("ECELL_NOTIFY_QUEUE_SIZE", "64")
		t.Setenv("ECELL_LAST_WRITE_WINS", "true")

		convey.Convey("Then configuration picks them up", func() {
			cfg, err := config.Load(context.Background())
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.NotifyQueueSize, convey.ShouldEqual, 64)
			convey.So(cfg.LastWriteWins, convey.ShouldBeTrue)
		})
	})
}

func TestNewHandler(t *testing.T) {
	convey.Convey("Given a service", t, func() {
		cfg := config.New()
		cfg.APITokens = map[string]config.TokenConfig{"t": {UID: "u", Role: "admin"}}
		svc := app.New(app.WithConfig(cfg))
		ctx := context.Background()

		convey.Convey("When it has not been started", func() {
			_, err := newHandler(ctx, cfg, svc)
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When it is started", func() {
			convey.So(svc.Start(ctx), convey.ShouldBeNil)
			defer svc.Stop()

			h, err := newHandler(ctx, cfg, svc)
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then the API and docs routes are served", func() {
				for _, path := range []string{"/healthz", "/metrics", "/openapi.yaml"} {
					w := httptest.NewRecorder()
					h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
					convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				}
			})

			convey.Convey("And stats require the configured token", func() {
				req := httptest.NewRequest(http.MethodGet, "/stats", http.NoBody)
				w := httptest.NewRecorder()
				h.ServeHTTP(w, req)
				convey.So(w.Code, convey.ShouldEqual, http.StatusUnauthorized)

				req.Header.Set("Authorization", "Bearer t")
				w = httptest.NewRecorder()
				h.ServeHTTP(w, req)
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			})
		})
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given short-lived contexts", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		convey.So(func() { updateSystemMetrics() }, convey.ShouldNotPanic)
		convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
		convey.So(func() { startServiceMetricsUpdater(ctx, app.New()) }, convey.ShouldNotPanic)
	})
}
