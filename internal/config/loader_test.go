package config_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/okian/expwatch/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.Concurrency, convey.ShouldEqual, 10)
				convey.So(cfg.Roster, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("EXPWATCH_ADDR", ":8080")
			_ = os.Setenv("EXPWATCH_CONCURRENCY", "4")
			_ = os.Setenv("EXPWATCH_REQUEST_TIMEOUT", "3s")
			_ = os.Setenv("EXPWATCH_RUN_ON_START", "true")
			_ = os.Setenv("EXPWATCH_ROSTER", " alpha, beta ,,alpha,gamma ")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.Concurrency, convey.ShouldEqual, 4)
				convey.So(cfg.RequestTimeout, convey.ShouldEqual, 3*time.Second)
				convey.So(cfg.RunOnStart, convey.ShouldBeTrue)
			})

			convey.Convey("Then the roster is trimmed and deduplicated", func() {
				convey.So(cfg.Roster, convey.ShouldResemble, []string{"alpha", "beta", "gamma"})
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":9090"
concurrency: 6
request_timeout: 2s
ledger_driver: sqlite
ledger_path: /tmp/expwatch.db
roster:
  - alpha
  - beta
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("EXPWATCH_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.Concurrency, convey.ShouldEqual, 6)
				convey.So(cfg.RequestTimeout, convey.ShouldEqual, 2*time.Second)
				convey.So(cfg.LedgerDriver, convey.ShouldEqual, config.LedgerSQLite)
				convey.So(cfg.Roster, convey.ShouldResemble, []string{"alpha", "beta"})
			})

			convey.Convey("Then missing fields keep their defaults", func() {
				convey.So(cfg.TopN, convey.ShouldEqual, 20)
				convey.So(cfg.Schedule, convey.ShouldEqual, "*/30 * * * *")
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":9090"
concurrency: 6
top_n: 5
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("EXPWATCH_CONFIG", tmpFile)
			_ = os.Setenv("EXPWATCH_ADDR", ":8080")
			_ = os.Setenv("EXPWATCH_CONCURRENCY", "12")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")   // env
				convey.So(cfg.Concurrency, convey.ShouldEqual, 12) // env
				convey.So(cfg.TopN, convey.ShouldEqual, 5)         // file
				convey.So(cfg.MaxLimit, convey.ShouldEqual, 200)   // default
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("EXPWATCH_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("EXPWATCH_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("EXPWATCH_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("EXPWATCH_CONCURRENCY", "not_a_number")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with an invalid schedule", func() {
			_ = os.Setenv("EXPWATCH_SCHEDULE", "61 * * * *")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then the cron expression is rejected", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"EXPWATCH_CONFIG",
		"EXPWATCH_ADDR",
		"EXPWATCH_CONCURRENCY",
		"EXPWATCH_REQUEST_TIMEOUT",
		"EXPWATCH_RUN_ON_START",
		"EXPWATCH_ROSTER",
		"EXPWATCH_SCHEDULE",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "expwatch-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
