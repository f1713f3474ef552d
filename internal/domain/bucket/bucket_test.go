package bucket_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/okian/cohort/internal/adapters/repository"
	bucket "github.com/okian/cohort/internal/domain/bucket"
	"github.com/okian/cohort/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func fiftyFifty() model.Experiment {
	return model.Experiment{
		Slug: "comparison-page",
		Variants: []model.Variant{
			{ID: "control", Weight: 50},
			{ID: "variant-b", Weight: 50},
		},
	}
}

func TestAssign(t *testing.T) {
	Convey("Given a bucketer over a visitor store", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore()
		defer store.Close()

		exp := fiftyFifty()

		Convey("When the visitor is not eligible", func() {
			b := bucket.New(store)
			got := b.Assign(ctx, exp, false)

			Convey("Then control is returned and nothing is persisted", func() {
				So(got.ID, ShouldEqual, "control")
				So(store.Len(ctx), ShouldEqual, 0)
			})
		})

		Convey("When an eligible visitor draws below the first weight", func() {
			b := bucket.New(store, bucket.WithRandFunc(func() float64 { return 0.25 }))
			got := b.Assign(ctx, exp, true)

			Convey("Then the first variant wins and is persisted", func() {
				So(got.ID, ShouldEqual, "control")

				id, err := store.Get(ctx, bucket.AssignmentKeyPrefix+exp.Slug)
				So(err, ShouldBeNil)
				So(id, ShouldEqual, "control")
			})
		})

		Convey("When an eligible visitor draws into the second weight band", func() {
			b := bucket.New(store, bucket.WithRandFunc(func() float64 { return 0.75 }))
			got := b.Assign(ctx, exp, true)

			So(got.ID, ShouldEqual, "variant-b")
		})

		Convey("When an assignment is already persisted", func() {
			So(store.Set(ctx, bucket.AssignmentKeyPrefix+exp.Slug, "variant-b", time.Hour), ShouldBeNil)

			// A rng that would pick control proves the store wins.
			b := bucket.New(store, bucket.WithRandFunc(func() float64 { return 0.0 }))

			Convey("Then the persisted variant is returned unchanged", func() {
				So(b.Assign(ctx, exp, true).ID, ShouldEqual, "variant-b")
				So(b.Assign(ctx, exp, true).ID, ShouldEqual, "variant-b")
			})
		})

		Convey("When the persisted id no longer names a variant", func() {
			So(store.Set(ctx, bucket.AssignmentKeyPrefix+exp.Slug, "retired-arm", time.Hour), ShouldBeNil)

			b := bucket.New(store, bucket.WithRandFunc(func() float64 { return 0.75 }))
			got := b.Assign(ctx, exp, true)

			Convey("Then a fresh draw replaces it", func() {
				So(got.ID, ShouldEqual, "variant-b")

				id, err := store.Get(ctx, bucket.AssignmentKeyPrefix+exp.Slug)
				So(err, ShouldBeNil)
				So(id, ShouldEqual, "variant-b")
			})
		})

		Convey("When weights sum to less than 100", func() {
			partial := model.Experiment{
				Slug: "partial",
				Variants: []model.Variant{
					{ID: "control", Weight: 10},
					{ID: "variant-b", Weight: 10},
				},
			}
			b := bucket.New(store, bucket.WithRandFunc(func() float64 { return 0.99 }))

			Convey("Then the residual mass falls back to control", func() {
				So(b.Assign(ctx, partial, true).ID, ShouldEqual, "control")
			})
		})

		Convey("When the experiment has no variants", func() {
			b := bucket.New(store)
			got := b.Assign(ctx, model.Experiment{Slug: "empty"}, true)

			So(got.ID, ShouldEqual, "")
		})

		Convey("When no store is available", func() {
			b := bucket.New(nil)

			So(b.Assign(ctx, exp, true).ID, ShouldEqual, "control")
		})
	})
}

func TestAssignDistribution(t *testing.T) {
	Convey("Given an unevenly weighted experiment and a seeded draw source", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore()
		defer store.Close()

		exp := model.Experiment{
			Slug: "comparison-page",
			Variants: []model.Variant{
				{ID: "control", Weight: 30},
				{ID: "variant-b", Weight: 50},
				{ID: "variant-c", Weight: 20},
			},
		}

		rng := rand.New(rand.NewSource(1))
		b := bucket.New(store, bucket.WithRandFunc(rng.Float64))

		Convey("When many independent visitors are assigned", func() {
			const draws = 100_000

			counts := make(map[string]int, len(exp.Variants))
			for i := 0; i < draws; i++ {
				counts[b.Assign(ctx, exp, true).ID]++
				// Each visitor buckets independently, so the persisted
				// assignment is dropped between draws.
				_ = store.Remove(ctx, bucket.AssignmentKeyPrefix+exp.Slug)
			}

			Convey("Then observed shares track the configured weights", func() {
				total := 0
				for _, v := range exp.Variants {
					share := float64(counts[v.ID]) / draws * 100
					So(share, ShouldAlmostEqual, float64(v.Weight), 2.0)
					total += counts[v.ID]
				}
				So(total, ShouldEqual, draws)
			})
		})
	})
}

func TestForceAndClear(t *testing.T) {
	Convey("Given a bucketer over a visitor store", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore()
		defer store.Close()

		exp := fiftyFifty()
		b := bucket.New(store, bucket.WithRandFunc(func() float64 { return 0.0 }))

		Convey("When a variant is forced", func() {
			So(b.Force(ctx, exp.Slug, "variant-b"), ShouldBeNil)

			Convey("Then Assign returns it regardless of the draw", func() {
				So(b.Assign(ctx, exp, true).ID, ShouldEqual, "variant-b")
			})

			Convey("And Clear makes the next Assign re-bucket", func() {
				So(b.Clear(ctx, exp.Slug), ShouldBeNil)
				So(b.Assign(ctx, exp, true).ID, ShouldEqual, "control")
			})
		})

		Convey("When a forced TTL is configured", func() {
			now := time.Now()
			clock := repository.NewMemStore(repository.WithNowFunc(func() time.Time { return now }))
			forced := bucket.New(clock, bucket.WithForcedTTL(time.Minute))

			So(forced.Force(ctx, exp.Slug, "variant-b"), ShouldBeNil)

			Convey("Then the override expires with the forced TTL", func() {
				now = now.Add(2 * time.Minute)

				_, err := clock.Get(ctx, bucket.AssignmentKeyPrefix+exp.Slug)
				So(err, ShouldEqual, repository.ErrNotFound)
			})
		})

		Convey("When no store is available", func() {
			nilBucketer := bucket.New(nil)

			So(nilBucketer.Force(ctx, exp.Slug, "x"), ShouldNotBeNil)
			So(nilBucketer.Clear(ctx, exp.Slug), ShouldNotBeNil)
		})
	})
}

func TestActive(t *testing.T) {
	Convey("Given persisted assignments for several experiments", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore()
		defer store.Close()

		b := bucket.New(store)
		So(b.Force(ctx, "comparison-page", "variant-b"), ShouldBeNil)
		So(b.Force(ctx, "pricing-page", "control"), ShouldBeNil)

		// Unrelated visitor state must not leak into the map.
		So(store.Set(ctx, "ab_traffic_source", "organic", time.Hour), ShouldBeNil)

		Convey("When listing active experiments", func() {
			active, err := b.Active(ctx)

			Convey("Then only assignment entries are returned, keyed by slug", func() {
				So(err, ShouldBeNil)
				So(active, ShouldResemble, map[string]string{
					"comparison-page": "variant-b",
					"pricing-page":    "control",
				})
			})
		})

		Convey("When no store is available", func() {
			active, err := bucket.New(nil).Active(ctx)

			So(err, ShouldBeNil)
			So(active, ShouldBeEmpty)
		})
	})
}
