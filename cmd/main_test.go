package main

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/okian/pulse/internal/adapters/http/api"
	"github.com/okian/pulse/internal/adapters/repository"
	app "github.com/okian/pulse/internal/app"
	"github.com/okian/pulse/internal/config"
	"github.com/okian/pulse/pkg/logger"
	"github.com/okian/pulse/pkg/metrics"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When testing configuration loading", func() {
			// Test with environment variables
			_ = os.Setenv("PULSE_ADDR", ":8080")
			_ = os.Setenv("PULSE_BATCH_SIZE", "25")
			_ = os.Setenv("PULSE_CONCURRENCY", "4")
			defer func() {
				_ = os.Unsetenv("PULSE_ADDR")
				_ = os.Unsetenv("PULSE_BATCH_SIZE")
				_ = os.Unsetenv("PULSE_CONCURRENCY")
			}()

			convey.Convey("Then configuration should be loadable", func() {
				ctx := context.Background()
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.BatchSize, convey.ShouldEqual, 25)
				convey.So(cfg.Concurrency, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When testing service creation", func() {
			convey.Convey("Then service should be creatable with default options", func() {
				svc := app.New()
				convey.So(svc, convey.ShouldNotBeNil)
			})

			convey.Convey("And service should be creatable with custom options", func() {
				svc := app.New(
					app.WithConfig(config.New()),
					app.WithStore(repository.NewMemStore()),
				)
				convey.So(svc, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When testing HTTP server creation", func() {
			svc := app.New()
			convey.So(svc, convey.ShouldNotBeNil)

			convey.Convey("Then HTTP server should be creatable", func() {
				server := api.NewServer(svc, svc)
				convey.So(server, convey.ShouldNotBeNil)

				mux := http.NewServeMux()
				convey.So(func() {
					server.Register(context.Background(), mux)
				}, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When testing metrics initialization", func() {
			convey.Convey("Then the metrics registry should be available", func() {
				metrics.Init()
				convey.So(metrics.GetRegistry(), convey.ShouldNotBeNil)
			})
		})
	})
}

func TestMainApplicationComponents(t *testing.T) {
	convey.Convey("Given main application components", t, func() {
		convey.Convey("When testing the system metrics updater", func() {
			convey.Convey("Then it should stop with its context", func() {
				ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer cancel()

				convey.So(func() {
					startSystemMetricsUpdater(ctx)
				}, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When testing the batch scheduler", func() {
			svc := app.New(app.WithStore(repository.NewMemStore()))
			convey.So(svc.Start(context.Background()), convey.ShouldBeNil)
			defer svc.Stop()

			cfg := config.New()
			cfg.PassInterval = 20 * time.Millisecond
			cfg.SweepInterval = 20 * time.Millisecond

			convey.Convey("Then it should run passes until cancelled", func() {
				ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer cancel()

				convey.So(func() {
					startScheduler(ctx, svc, cfg, logger.Get())
				}, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When testing a single run-once invocation", func() {
			svc := app.New(app.WithStore(repository.NewMemStore()))
			convey.So(svc.Start(context.Background()), convey.ShouldBeNil)
			defer svc.Stop()

			convey.Convey("Then an idle run reports exit code 2", func() {
				code := runOnce(context.Background(), svc, logger.Get())
				convey.So(code, convey.ShouldEqual, 2)
			})
		})
	})
}
