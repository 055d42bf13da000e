package config_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/ecell/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.StoreBackend, convey.ShouldEqual, config.BackendMemory)
			convey.So(cfg.WeightTolerance, convey.ShouldEqual, 0.01)
			convey.So(cfg.LastWriteWins, convey.ShouldBeFalse)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("And the default criteria weights sum to one", func() {
			sum := 0.0
			for _, c := range cfg.DefaultCriteria {
				sum += c.Weight
				convey.So(c.MaxScore, convey.ShouldEqual, 10)
			}
			convey.So(math.Abs(sum-1), convey.ShouldBeLessThan, 1e-9)
			convey.So(len(cfg.DefaultCriteria), convey.ShouldEqual, 5)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a valid config", t, func() {
		cfg := config.New()

		convey.Convey("When the backend is unknown", func() {
			cfg.StoreBackend = "sqlite"
			err := cfg.Validate()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "sqlite")
		})

		convey.Convey("When redis is selected without an address", func() {
			cfg.StoreBackend = config.BackendRedis
			cfg.RedisAddr = " "
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the weight tolerance is not positive", func() {
			cfg.WeightTolerance = 0
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the default criteria fail the authoring rules", func() {
			cfg.DefaultCriteria = []config.CriterionConfig{
				{ID: "idea", Name: "Idea", MaxScore: 10, Weight: 0.5},
				{ID: "pitch", Name: " ", MaxScore: 0, Weight: 0.25},
			}
			err := cfg.Validate()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "default_criteria")
		})

		convey.Convey("When default criteria have no ids", func() {
			cfg.DefaultCriteria = []config.CriterionConfig{{Name: "Overall", MaxScore: 10, Weight: 1}}
			convey.So(cfg.Validate(), convey.ShouldBeNil)
			convey.So(cfg.Criteria()[0].ID, convey.ShouldNotBeEmpty)
			convey.So(cfg.Criteria()[0].ID, convey.ShouldEqual, cfg.Criteria()[0].ID)
		})

		convey.Convey("When a token has no uid", func() {
			cfg.APITokens = map[string]config.TokenConfig{"t": {Role: "admin"}}
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}
