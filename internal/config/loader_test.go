package config_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/okian/pulse/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func clearConfigEnvVars() {
	for _, key := range []string{
		"PULSE_CONFIG",
		"PULSE_ADDR",
		"PULSE_LOG_LEVEL",
		"PULSE_STORE_DRIVER",
		"PULSE_SQLITE_PATH",
		"PULSE_BATCH_SIZE",
		"PULSE_PASS_INTERVAL",
		"PULSE_NEGLECT_DAYS",
		"PULSE_RUN_ONCE",
	} {
		_ = os.Unsetenv(key)
	}
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.StoreDriver, convey.ShouldEqual, config.StoreMemory)
				convey.So(cfg.BatchSize, convey.ShouldEqual, 100)
				convey.So(cfg.PassInterval, convey.ShouldEqual, 2*time.Minute)
				convey.So(cfg.SweepInterval, convey.ShouldEqual, 24*time.Hour)
				convey.So(cfg.DecayFactor, convey.ShouldEqual, 0.95)
				convey.So(cfg.DropThreshold, convey.ShouldEqual, -0.10)
				convey.So(cfg.CriticalDrop, convey.ShouldEqual, 0.25)
				convey.So(cfg.NeglectDays, convey.ShouldEqual, 7)
				convey.So(cfg.DifficultyScores["hard"], convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("PULSE_ADDR", ":8080")
			_ = os.Setenv("PULSE_STORE_DRIVER", "sqlite")
			_ = os.Setenv("PULSE_SQLITE_PATH", "/tmp/pulse-test.db")
			_ = os.Setenv("PULSE_BATCH_SIZE", "250")
			_ = os.Setenv("PULSE_PASS_INTERVAL", "30s")
			_ = os.Setenv("PULSE_NEGLECT_DAYS", "14")
			_ = os.Setenv("PULSE_RUN_ONCE", "true")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.StoreDriver, convey.ShouldEqual, config.StoreSQLite)
				convey.So(cfg.SQLitePath, convey.ShouldEqual, "/tmp/pulse-test.db")
				convey.So(cfg.BatchSize, convey.ShouldEqual, 250)
				convey.So(cfg.PassInterval, convey.ShouldEqual, 30*time.Second)
				convey.So(cfg.NeglectDays, convey.ShouldEqual, 14)
				convey.So(cfg.RunOnce, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			clearConfigEnvVars()

			content := []byte("addr: \":7070\"\nbatch_size: 50\nlog_level: debug\n")
			f, err := os.CreateTemp(t.TempDir(), "pulse-*.yaml")
			convey.So(err, convey.ShouldBeNil)
			_, err = f.Write(content)
			convey.So(err, convey.ShouldBeNil)
			convey.So(f.Close(), convey.ShouldBeNil)

			_ = os.Setenv("PULSE_CONFIG", f.Name())
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then file values override defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.BatchSize, convey.ShouldEqual, 50)
				convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")
				// Untouched keys keep their defaults
				convey.So(cfg.NeglectDays, convey.ShouldEqual, 7)
			})

			convey.Convey("And env vars override the file", func() {
				_ = os.Setenv("PULSE_ADDR", ":6060")

				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":6060")
				convey.So(cfg.BatchSize, convey.ShouldEqual, 50)
			})
		})

		convey.Convey("When the config file is missing", func() {
			clearConfigEnvVars()
			_ = os.Setenv("PULSE_CONFIG", "/nonexistent/pulse.yaml")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then loading fails with a load error", func() {
				convey.So(err, convey.ShouldWrap, config.ErrLoadConfig)
			})
		})

		convey.Convey("When env values fail validation", func() {
			clearConfigEnvVars()
			_ = os.Setenv("PULSE_STORE_DRIVER", "mongodb")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then loading fails with an invalid-config error", func() {
				convey.So(err, convey.ShouldWrap, config.ErrInvalidConfig)
			})
		})
	})
}
