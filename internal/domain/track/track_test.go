package track_test

import (
	"context"
	"testing"
	"time"

	queue "github.com/okian/cohort/internal/adapters/mq/queue"
	"github.com/okian/cohort/internal/domain/model"
	track "github.com/okian/cohort/internal/domain/track"
	. "github.com/smartystreets/goconvey/convey"
)

func TestTrack(t *testing.T) {
	Convey("Given a tracker over a delivery queue", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		defer q.Close()

		stamp := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
		tr := track.New(q, track.WithNowFunc(func() time.Time { return stamp }))

		ectx := model.EventContext{
			CompetitorSlug: "acme",
			VariantID:      "variant-b",
			TrafficSource:  "organic",
		}

		Convey("When tracking an event with params", func() {
			tr.Track(ctx, model.EventCTAClick, ectx, map[string]string{"cta": "install"})

			Convey("Then the queued event carries context, params, and timestamp", func() {
				ch := q.Dequeue(ctx)
				e := <-ch

				So(e.Name, ShouldEqual, model.EventCTAClick)
				So(e.Context, ShouldResemble, ectx)
				So(e.Params["cta"], ShouldEqual, "install")
				So(e.TS.Equal(stamp), ShouldBeTrue)
			})
		})

		Convey("When the queue is full", func() {
			full := queue.NewInMemoryQueue(queue.WithCapacity(1))
			defer full.Close()
			ft := track.New(full)

			ft.Track(ctx, model.EventPageView, ectx, nil)

			Convey("Then the overflow track neither blocks nor panics", func() {
				done := make(chan struct{})
				go func() {
					ft.Track(ctx, model.EventPageView, ectx, nil)
					close(done)
				}()

				select {
				case <-done:
				case <-time.After(time.Second):
					So("Track blocked", ShouldBeEmpty)
				}
				So(full.Len(ctx), ShouldEqual, 1)
			})
		})

		Convey("When no queue is configured", func() {
			nilTracker := track.New(nil)

			Convey("Then tracking is a safe no-op", func() {
				So(func() {
					nilTracker.Track(ctx, model.EventPageView, ectx, nil)
				}, ShouldNotPanic)
			})
		})
	})
}

func TestBind(t *testing.T) {
	Convey("Given a bound emit closure", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		defer q.Close()

		tr := track.New(q)
		ectx := model.EventContext{
			CompetitorSlug: "acme",
			VariantID:      "control",
			TrafficSource:  "direct",
		}
		emit := tr.Bind(ectx)

		Convey("When emitting through the closure", func() {
			emit(ctx, model.EventScrollDepth, map[string]string{"percentage": "50"})
			emit(ctx, model.EventBounce, nil)

			Convey("Then every event carries the bound context", func() {
				ch := q.Dequeue(ctx)
				first := <-ch
				second := <-ch

				So(first.Name, ShouldEqual, model.EventScrollDepth)
				So(first.Context, ShouldResemble, ectx)
				So(second.Name, ShouldEqual, model.EventBounce)
				So(second.Context, ShouldResemble, ectx)
			})
		})
	})
}
