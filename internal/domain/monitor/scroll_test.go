package monitor_test

import (
	"context"
	"sync"
	"testing"

	monitor "github.com/okian/cohort/internal/domain/monitor"
	. "github.com/smartystreets/goconvey/convey"
)

// recorder collects emitted events for assertions.
type recorder struct {
	mu     sync.Mutex
	events []recorded
}

type recorded struct {
	name   string
	params map[string]string
}

func (r *recorder) emit(_ context.Context, name string, params map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recorded{name: name, params: params})
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.name)
	}
	return out
}

func (r *recorder) percentages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.params["percentage"])
	}
	return out
}

func TestScrollMonitor(t *testing.T) {
	Convey("Given a scroll monitor on a 3000px page with a 600px viewport", t, func() {
		ctx := context.Background()
		rec := &recorder{}
		m := monitor.NewScrollMonitor(rec.emit)

		// Scrollable range is 2400px; 25% depth is 600px.
		Convey("When scrolling to a quarter of the page", func() {
			m.Observe(ctx, 600, 3000, 600)

			Convey("Then only the 25 threshold fires", func() {
				So(rec.percentages(), ShouldResemble, []string{"25"})
			})

			Convey("And jitter around the same depth emits nothing more", func() {
				m.Observe(ctx, 610, 3000, 600)
				m.Observe(ctx, 590, 3000, 600)

				So(rec.percentages(), ShouldResemble, []string{"25"})
			})
		})

		Convey("When jumping straight to the bottom", func() {
			m.Observe(ctx, 2400, 3000, 600)

			Convey("Then every threshold fires once, ascending", func() {
				So(rec.percentages(), ShouldResemble, []string{"25", "50", "75", "100"})
			})

			Convey("And scrolling back up then down again emits nothing", func() {
				m.Observe(ctx, 0, 3000, 600)
				m.Observe(ctx, 2400, 3000, 600)

				So(rec.percentages(), ShouldResemble, []string{"25", "50", "75", "100"})
			})
		})

		Convey("When the page fits inside the viewport", func() {
			short := monitor.NewScrollMonitor(rec.emit)
			short.Observe(ctx, 0, 500, 600)

			Convey("Then the visitor counts as fully scrolled", func() {
				So(rec.percentages(), ShouldResemble, []string{"25", "50", "75", "100"})
			})
		})

		Convey("When custom thresholds are configured", func() {
			custom := monitor.NewScrollMonitor(rec.emit, monitor.WithThresholds([]int{50, 90}))
			custom.Observe(ctx, 1300, 3000, 600) // ~54%

			So(rec.percentages(), ShouldResemble, []string{"50"})
		})

		Convey("When the monitor is stopped", func() {
			m.Stop()
			m.Observe(ctx, 2400, 3000, 600)

			Convey("Then observations are ignored", func() {
				So(rec.names(), ShouldBeEmpty)
			})
		})
	})
}
