package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	app "github.com/okian/expwatch/internal/app"
	"github.com/okian/expwatch/internal/config"
	"github.com/okian/expwatch/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		_ = os.Setenv("EXPWATCH_ADDR", ":8080")
		_ = os.Setenv("EXPWATCH_LEDGER_DRIVER", "memory")
		_ = os.Setenv("EXPWATCH_LEVEL_TABLE_PATH", "../configs/levels.yaml")
		_ = os.Setenv("EXPWATCH_ROSTER", "캡틴김지명,아델")
		defer func() {
			_ = os.Unsetenv("EXPWATCH_ADDR")
			_ = os.Unsetenv("EXPWATCH_LEDGER_DRIVER")
			_ = os.Unsetenv("EXPWATCH_LEVEL_TABLE_PATH")
			_ = os.Unsetenv("EXPWATCH_ROSTER")
		}()

		ctx := context.Background()
		cfg, err := config.Load(ctx)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("When loading configuration", func() {
			convey.Convey("Then env overrides apply", func() {
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.LedgerDriver, convey.ShouldEqual, config.LedgerMemory)
				convey.So(cfg.Roster, convey.ShouldResemble, []string{"캡틴김지명", "아델"})
			})
		})

		convey.Convey("When wiring the HTTP routes", func() {
			svc, err := app.FromConfig(ctx, cfg, logger.NewNop())
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = svc.Close() }()
			mux := newMux(ctx, svc)

			convey.Convey("Then an empty ledger answers 404", func() {
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, httptest.NewRequest("GET", "/ranking", http.NoBody))
				convey.So(w.Code, convey.ShouldEqual, http.StatusNotFound)
			})

			convey.Convey("Then the docs are served", func() {
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, httptest.NewRequest("GET", "/openapi.yaml", http.NoBody))
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			})

			convey.Convey("Then stats report the roster", func() {
				convey.So(svc.GetStats()["roster"], convey.ShouldEqual, 2)
			})
		})
	})
}

func TestMainApplicationComponents(t *testing.T) {
	convey.Convey("Given main application components", t, func() {
		convey.Convey("When testing system metrics updater", func() {
			convey.Convey("Then it should stop with its context", func() {
				ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer cancel()

				convey.So(func() {
					startSystemMetricsUpdater(ctx, 10*time.Millisecond)
				}, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When testing system metrics update", func() {
			convey.Convey("Then it should update metrics without panicking", func() {
				convey.So(func() {
					updateSystemMetrics()
				}, convey.ShouldNotPanic)
			})
		})
	})
}
