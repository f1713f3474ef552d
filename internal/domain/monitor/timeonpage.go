package monitor

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/cohort/internal/domain/dedupe"
	"github.com/okian/cohort/internal/domain/model"
	"github.com/okian/cohort/pkg/metrics"
)

// Default time-on-page configuration constants.
const (
	defaultHeartbeatInterval = 30 * time.Second
	defaultBounceThreshold   = 10 * time.Second
)

// TimeMonitor emits periodic dwell-time heartbeats and a one-shot
// bounce signal for sessions that leave early.
type TimeMonitor struct {
	emit  EmitFunc
	guard dedupe.Guard

	heartbeat       time.Duration
	bounceThreshold time.Duration
	now             func() time.Time

	start time.Time

	started   atomic.Bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	leaveOnce sync.Once
	stopOnce  sync.Once
}

// TimeOption applies a configuration option to the TimeMonitor.
type TimeOption func(*TimeMonitor)

// WithHeartbeatInterval sets the dwell heartbeat cadence.
func WithHeartbeatInterval(interval time.Duration) TimeOption {
	return func(m *TimeMonitor) {
		if interval > 0 {
			m.heartbeat = interval
		}
	}
}

// WithBounceThreshold sets the minimum engagement duration below which
// a leave counts as a bounce.
func WithBounceThreshold(threshold time.Duration) TimeOption {
	return func(m *TimeMonitor) {
		if threshold > 0 {
			m.bounceThreshold = threshold
		}
	}
}

// WithTimeNowFunc overrides the monitor clock for tests.
func WithTimeNowFunc(now func() time.Time) TimeOption {
	return func(m *TimeMonitor) {
		if now != nil {
			m.now = now
		}
	}
}

// NewTimeMonitor creates a monitor that reports through emit.
// The mount timestamp is recorded at construction.
func NewTimeMonitor(emit EmitFunc, opts ...TimeOption) *TimeMonitor {
	m := &TimeMonitor{
		emit:            emit,
		guard:           dedupe.NewGuard(),
		heartbeat:       defaultHeartbeatInterval,
		bounceThreshold: defaultBounceThreshold,
		now:             time.Now,
		stopCh:          make(chan struct{}),
		doneCh:          make(chan struct{}),
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	m.start = m.now()

	return m
}

// Start launches the heartbeat loop. It returns immediately; the loop
// runs until Stop.
func (m *TimeMonitor) Start(ctx context.Context) {
	if m.started.Swap(true) {
		return
	}
	go m.run(ctx)
}

// run emits a heartbeat every interval until the monitor stops.
func (m *TimeMonitor) run(ctx context.Context) {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.emitHeartbeat(ctx)
		}
	}
}

// Leave handles the page-leave signal: one final heartbeat, and a
// single bounce event iff the visitor stayed under the threshold.
// Duplicate leave beacons are ignored.
func (m *TimeMonitor) Leave(ctx context.Context) {
	m.leaveOnce.Do(func() {
		elapsed := m.Elapsed()
		m.emitHeartbeat(ctx)

		if elapsed < m.bounceThreshold && !m.guard.SeenAndRecord(ctx, "bounce") {
			m.emit(ctx, model.EventBounce, nil)
			metrics.RecordBounce()
		}
	})
}

// Stop tears down the heartbeat loop. Safe to call more than once.
func (m *TimeMonitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		if m.started.Load() {
			<-m.doneCh
		}
	})
}

// Elapsed returns the time since mount.
func (m *TimeMonitor) Elapsed() time.Duration {
	return m.now().Sub(m.start)
}

func (m *TimeMonitor) emitHeartbeat(ctx context.Context) {
	seconds := int(m.Elapsed().Seconds())
	m.emit(ctx, model.EventTimeOnPage, map[string]string{
		"seconds": strconv.Itoa(seconds),
	})
}
