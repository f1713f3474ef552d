package service

import (
	"context"
	"sync"
	"time"

	"github.com/okian/cohort/internal/domain/model"
	"github.com/okian/cohort/internal/domain/monitor"
	"github.com/okian/cohort/internal/domain/track"
)

// sessionConfig captures the monitor tuning a session is built with.
type sessionConfig struct {
	heartbeat        time.Duration
	bounceThreshold  time.Duration
	scrollThresholds []int
	now              func() time.Time
}

// session is one live page lifetime: its event context plus the two
// engagement monitors bound to it.
type session struct {
	id        string
	visitorID string
	ectx      model.EventContext

	scroll *monitor.ScrollMonitor
	timer  *monitor.TimeMonitor

	mu   sync.Mutex
	seen time.Time

	downOnce sync.Once
}

// newSession builds a session with monitors bound to the tracker.
func newSession(id, visitorID string, ectx model.EventContext, tracker *track.Tracker, cfg sessionConfig) *session {
	emit := tracker.Bind(ectx)

	scrollOpts := []monitor.ScrollOption{}
	if len(cfg.scrollThresholds) > 0 {
		scrollOpts = append(scrollOpts, monitor.WithThresholds(cfg.scrollThresholds))
	}

	timeOpts := []monitor.TimeOption{}
	if cfg.heartbeat > 0 {
		timeOpts = append(timeOpts, monitor.WithHeartbeatInterval(cfg.heartbeat))
	}
	if cfg.bounceThreshold > 0 {
		timeOpts = append(timeOpts, monitor.WithBounceThreshold(cfg.bounceThreshold))
	}
	if cfg.now != nil {
		timeOpts = append(timeOpts, monitor.WithTimeNowFunc(cfg.now))
	}

	now := cfg.now
	if now == nil {
		now = time.Now
	}

	return &session{
		id:        id,
		visitorID: visitorID,
		ectx:      ectx,
		scroll:    monitor.NewScrollMonitor(emit, scrollOpts...),
		timer:     monitor.NewTimeMonitor(emit, timeOpts...),
		seen:      now(),
	}
}

// start begins the heartbeat loop. The context must outlive the
// request that created the session.
func (s *session) start(ctx context.Context) {
	s.timer.Start(ctx)
}

// touch marks the session as recently active.
func (s *session) touch(now time.Time) {
	s.mu.Lock()
	s.seen = now
	s.mu.Unlock()
}

// lastSeen reports when the session last received a beacon.
func (s *session) lastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen
}

// leave emits the final time-on-page reading and, when the dwell was
// short enough, the bounce event.
func (s *session) leave(ctx context.Context) {
	s.timer.Leave(ctx)
}

// teardown stops both monitors. Safe to call more than once.
func (s *session) teardown() {
	s.downOnce.Do(func() {
		s.scroll.Stop()
		s.timer.Stop()
	})
}
