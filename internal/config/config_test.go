package config_test

import (
	"context"
	"os"
	"testing"

	config "github.com/okian/cohort/internal/config"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDefaults(t *testing.T) {
	Convey("Given a default config", t, func() {
		cfg := config.New()

		Convey("Then the defaults are sane and valid", func() {
			So(cfg.Validate(), ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":9080")
			So(cfg.StoreBackend, ShouldEqual, config.StoreMemory)
			So(cfg.Sink, ShouldEqual, config.SinkNone)
			So(cfg.ScrollThresholds, ShouldResemble, []int{25, 50, 75, 100})
			So(cfg.HeartbeatSeconds, ShouldEqual, 30)
			So(cfg.BounceThresholdSeconds, ShouldEqual, 10)
			So(cfg.Experiments, ShouldHaveLength, 1)
			So(cfg.Experiments[0].Slug, ShouldEqual, "comparison-page")
		})
	})
}

func TestValidate(t *testing.T) {
	Convey("Given a config under validation", t, func() {
		cfg := config.New()

		Convey("When the address is empty", func() {
			cfg.Addr = ""
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("When the store backend is unknown", func() {
			cfg.StoreBackend = "redis"
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("When the sink is http without a URL", func() {
			cfg.Sink = config.SinkHTTP
			cfg.SinkURL = ""
			So(cfg.Validate(), ShouldNotBeNil)

			Convey("And valid with a URL", func() {
				cfg.SinkURL = "http://collector.local/v1/events"
				So(cfg.Validate(), ShouldBeNil)
			})
		})

		Convey("When an experiment repeats a variant id", func() {
			cfg.Experiments = []config.ExperimentConfig{{
				Slug: "dup",
				Variants: []config.VariantConfig{
					{ID: "control", Weight: 50},
					{ID: "control", Weight: 50},
				},
			}}
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("When experiment weights exceed 100", func() {
			cfg.Experiments = []config.ExperimentConfig{{
				Slug: "heavy",
				Variants: []config.VariantConfig{
					{ID: "control", Weight: 80},
					{ID: "variant-b", Weight: 30},
				},
			}}
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("When experiment weights sum below 100", func() {
			cfg.Experiments = []config.ExperimentConfig{{
				Slug: "light",
				Variants: []config.VariantConfig{
					{ID: "control", Weight: 10},
					{ID: "variant-b", Weight: 10},
				},
			}}

			Convey("Then the shortfall is allowed", func() {
				So(cfg.Validate(), ShouldBeNil)
			})
		})

		Convey("When scroll thresholds are misordered", func() {
			cfg.ScrollThresholds = []int{50, 25, 75, 100}
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("When scroll thresholds repeat", func() {
			cfg.ScrollThresholds = []int{25, 25, 50}
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("When a scroll threshold is out of range", func() {
			cfg.ScrollThresholds = []int{0, 50}
			So(cfg.Validate(), ShouldNotBeNil)

			Convey("And when it exceeds 100", func() {
				cfg.ScrollThresholds = []int{25, 150}
				So(cfg.Validate(), ShouldNotBeNil)
			})
		})

		Convey("When an experiment has no variants", func() {
			cfg.Experiments = []config.ExperimentConfig{{Slug: "empty"}}
			So(cfg.Validate(), ShouldNotBeNil)
		})
	})
}

func TestLoad(t *testing.T) {
	Convey("Given environment-driven configuration", t, func() {
		ctx := context.Background()

		Convey("When no overrides are present", func() {
			cfg, err := config.Load(ctx)

			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":9080")
		})

		Convey("When env vars override defaults", func() {
			So(os.Setenv("COHORT_ADDR", ":7070"), ShouldBeNil)
			So(os.Setenv("COHORT_SINK", "log"), ShouldBeNil)
			defer func() {
				_ = os.Unsetenv("COHORT_ADDR")
				_ = os.Unsetenv("COHORT_SINK")
			}()

			cfg, err := config.Load(ctx)

			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":7070")
			So(cfg.Sink, ShouldEqual, config.SinkLog)
		})

		Convey("When an env var makes the config invalid", func() {
			So(os.Setenv("COHORT_STORE_BACKEND", "redis"), ShouldBeNil)
			defer func() { _ = os.Unsetenv("COHORT_STORE_BACKEND") }()

			_, err := config.Load(ctx)
			So(err, ShouldNotBeNil)
		})
	})
}
