package repository_test

import (
	"context"
	"testing"
	"time"

	repository "github.com/okian/cohort/internal/adapters/repository"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMemStore(t *testing.T) {
	Convey("Given a memory store with a controllable clock", t, func() {
		ctx := context.Background()
		now := time.Now()
		store := repository.NewMemStore(
			repository.WithNowFunc(func() time.Time { return now }),
		)
		defer store.Close()

		Convey("When setting and getting a value", func() {
			So(store.Set(ctx, "ab_traffic_source", "organic", time.Hour), ShouldBeNil)

			v, err := store.Get(ctx, "ab_traffic_source")
			So(err, ShouldBeNil)
			So(v, ShouldEqual, "organic")
			So(store.Len(ctx), ShouldEqual, 1)
		})

		Convey("When a value needs URL encoding", func() {
			So(store.Set(ctx, "k", "a b/c&d=e", time.Hour), ShouldBeNil)

			v, err := store.Get(ctx, "k")
			So(err, ShouldBeNil)
			So(v, ShouldEqual, "a b/c&d=e")
		})

		Convey("When the TTL elapses", func() {
			So(store.Set(ctx, "k", "v", time.Minute), ShouldBeNil)
			now = now.Add(2 * time.Minute)

			Convey("Then reads expire lazily before the janitor runs", func() {
				_, err := store.Get(ctx, "k")
				So(err, ShouldEqual, repository.ErrNotFound)
				So(store.Len(ctx), ShouldEqual, 0)
			})

			Convey("And Keys skips expired entries", func() {
				keys, err := store.Keys(ctx, "")
				So(err, ShouldBeNil)
				So(keys, ShouldBeEmpty)
			})
		})

		Convey("When setting with a non-positive TTL", func() {
			So(store.Set(ctx, "k", "v", 0), ShouldEqual, repository.ErrInvalidTTL)
			So(store.Set(ctx, "k", "v", -time.Second), ShouldEqual, repository.ErrInvalidTTL)
		})

		Convey("When getting a missing key", func() {
			_, err := store.Get(ctx, "missing")
			So(err, ShouldEqual, repository.ErrNotFound)
		})

		Convey("When removing a key", func() {
			So(store.Set(ctx, "k", "v", time.Hour), ShouldBeNil)
			So(store.Remove(ctx, "k"), ShouldBeNil)

			_, err := store.Get(ctx, "k")
			So(err, ShouldEqual, repository.ErrNotFound)

			Convey("And removing it again is a no-op", func() {
				So(store.Remove(ctx, "k"), ShouldBeNil)
			})
		})

		Convey("When listing by prefix", func() {
			So(store.Set(ctx, "ab_exp_one", "control", time.Hour), ShouldBeNil)
			So(store.Set(ctx, "ab_exp_two", "variant-b", time.Hour), ShouldBeNil)
			So(store.Set(ctx, "ab_traffic_source", "organic", time.Hour), ShouldBeNil)

			keys, err := store.Keys(ctx, "ab_exp_")
			So(err, ShouldBeNil)
			So(keys, ShouldHaveLength, 2)
			So(keys, ShouldContain, "ab_exp_one")
			So(keys, ShouldContain, "ab_exp_two")
		})

		Convey("When the store is closed", func() {
			So(store.Close(), ShouldBeNil)

			Convey("Then writes are rejected", func() {
				So(store.Set(ctx, "k", "v", time.Hour), ShouldEqual, repository.ErrClosed)
			})

			Convey("And closing again is a no-op", func() {
				So(store.Close(), ShouldBeNil)
			})
		})
	})
}

func TestMemStoreJanitor(t *testing.T) {
	Convey("Given a store with a fast janitor", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore(
			repository.WithJanitorInterval(10 * time.Millisecond),
		)
		defer store.Close()

		Convey("When an entry expires", func() {
			So(store.Set(ctx, "k", "v", 5*time.Millisecond), ShouldBeNil)
			time.Sleep(50 * time.Millisecond)

			Convey("Then the janitor reaps it in the background", func() {
				So(store.Len(ctx), ShouldEqual, 0)
			})
		})
	})
}

func TestNamespacedStore(t *testing.T) {
	Convey("Given two visitors over one shared store", t, func() {
		ctx := context.Background()
		shared := repository.NewMemStore()
		defer shared.Close()

		alice := repository.Namespaced(shared, "visitor-a")
		bob := repository.Namespaced(shared, "visitor-b")

		Convey("When both write the same logical key", func() {
			So(alice.Set(ctx, "ab_traffic_source", "organic", time.Hour), ShouldBeNil)
			So(bob.Set(ctx, "ab_traffic_source", "paid", time.Hour), ShouldBeNil)

			Convey("Then reads stay isolated per visitor", func() {
				a, err := alice.Get(ctx, "ab_traffic_source")
				So(err, ShouldBeNil)
				So(a, ShouldEqual, "organic")

				b, err := bob.Get(ctx, "ab_traffic_source")
				So(err, ShouldBeNil)
				So(b, ShouldEqual, "paid")
			})
		})

		Convey("When listing keys through a namespace", func() {
			So(alice.Set(ctx, "ab_exp_one", "control", time.Hour), ShouldBeNil)
			So(bob.Set(ctx, "ab_exp_two", "variant-b", time.Hour), ShouldBeNil)

			Convey("Then only this visitor's keys are returned, unprefixed", func() {
				keys, err := alice.Keys(ctx, "ab_exp_")
				So(err, ShouldBeNil)
				So(keys, ShouldResemble, []string{"ab_exp_one"})
			})
		})

		Convey("When a namespaced view is closed", func() {
			So(alice.Close(), ShouldBeNil)

			Convey("Then the shared store keeps working", func() {
				So(bob.Set(ctx, "k", "v", time.Hour), ShouldBeNil)
			})
		})
	})
}
