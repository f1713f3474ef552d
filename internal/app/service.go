// Package service provides the core business service that implements
// the dependencies required by the HTTP API: traffic classification,
// variant assignment, and the analytics event pipeline scoped to page
// sessions.
package service

import (
	"context"
	"net/url"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/cohort/internal/adapters/mq/queue"
	workerpool "github.com/okian/cohort/internal/adapters/mq/worker"
	"github.com/okian/cohort/internal/adapters/repository"
	"github.com/okian/cohort/internal/adapters/repository/sqlite"
	"github.com/okian/cohort/internal/adapters/sink"
	"github.com/okian/cohort/internal/config"
	"github.com/okian/cohort/internal/domain/bucket"
	"github.com/okian/cohort/internal/domain/classify"
	"github.com/okian/cohort/internal/domain/model"
	"github.com/okian/cohort/internal/domain/track"
	"github.com/okian/cohort/internal/domain/types"
	"github.com/okian/cohort/pkg/logger"
	"github.com/okian/cohort/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultQueueSize          = 10_000
	defaultHeartbeat          = 30 * time.Second
	defaultBounceThreshold    = 10 * time.Second
	defaultSessionIdleTimeout = 15 * time.Minute
	defaultTrafficTTL         = 30 * 24 * time.Hour
	defaultAssignmentTTL      = 90 * 24 * time.Hour
	defaultForcedTTL          = 24 * time.Hour

	reaperInterval = time.Minute
)

// SessionRequest carries the signals of a first page view.
type SessionRequest struct {
	VisitorID      string
	ExperimentSlug string
	CompetitorSlug string
	Referrer       string
	Query          url.Values
}

// SessionInfo is returned to the page so it can render the assigned
// variant and echo the session id on later beacons.
type SessionInfo struct {
	SessionID     string              `json:"session_id"`
	VariantID     string              `json:"variant_id"`
	TrafficSource types.TrafficSource `json:"traffic_source"`
	IsOrganic     bool                `json:"is_organic"`
}

// Service implements experiment assignment and analytics tracking.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	eventQueue queue.Queue
	snk        sink.Sink
	tracker    *track.Tracker
	workerPool *workerpool.Pool

	// Session registry
	sessions map[string]*session

	// Experiments by slug, plus the default slug assigned when a
	// session request names none.
	experiments map[string]model.Experiment
	defaultSlug string

	// Configuration
	workerCount        int
	queueSize          int
	storeBackend       string
	sqlitePath         string
	sinkKind           string
	sinkURL            string
	heartbeat          time.Duration
	bounceThreshold    time.Duration
	scrollThresholds   []int
	sessionIdleTimeout time.Duration
	trafficTTL         time.Duration
	assignmentTTL      time.Duration
	forcedTTL          time.Duration
	rng                func() float64
	now                func() time.Time

	// State
	started bool
	baseCtx context.Context
	stopCh  chan struct{}

	// Logging
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		sessions:           make(map[string]*session),
		experiments:        make(map[string]model.Experiment),
		workerCount:        runtime.NumCPU() * 2,
		queueSize:          defaultQueueSize,
		storeBackend:       config.StoreMemory,
		sinkKind:           config.SinkNone,
		heartbeat:          defaultHeartbeat,
		bounceThreshold:    defaultBounceThreshold,
		sessionIdleTimeout: defaultSessionIdleTimeout,
		trafficTTL:         defaultTrafficTTL,
		assignmentTTL:      defaultAssignmentTTL,
		forcedTTL:          defaultForcedTTL,
		now:                time.Now,
		stopCh:             make(chan struct{}),
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting experiment service...")

	// Visitor state store, unless one was injected.
	if s.store == nil {
		switch s.storeBackend {
		case config.StoreSQLite:
			st, err := sqlite.Open(s.sqlitePath)
			if err != nil {
				return err
			}
			s.store = st
			s.logger.Info(ctx, "using sqlite visitor store", logger.String("path", s.sqlitePath))
		default:
			s.store = repository.NewMemStore()
			s.logger.Info(ctx, "using in-memory visitor store")
		}
	}

	// Analytics sink, unless one was injected.
	if s.snk == nil {
		switch s.sinkKind {
		case config.SinkLog:
			s.snk = sink.NewLog()
		case config.SinkHTTP:
			s.snk = sink.NewHTTP(s.sinkURL)
		default:
			s.snk = sink.NewNoop()
		}
	}

	s.eventQueue = queue.NewInMemoryQueue(
		queue.WithCapacity(s.queueSize),
	)
	s.tracker = track.New(s.eventQueue)

	s.workerPool = workerpool.NewPool(s.workerCount, s.eventQueue, s.snk)
	s.workerPool.Start(ctx)

	s.baseCtx = ctx
	go s.reapIdleSessions(ctx)

	s.started = true
	s.logger.Info(ctx, "experiment service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.String("sink", s.snk.Name()),
		logger.Int("experiments", len(s.experiments)),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false

	live := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		live = append(live, sess)
	}
	s.sessions = make(map[string]*session)
	s.mu.Unlock()

	ctx := context.Background()
	s.logger.Info(ctx, "stopping experiment service...")

	// Tear down monitors first so no more events are produced.
	for _, sess := range live {
		sess.teardown()
		metrics.RecordSessionEnded("shutdown")
	}
	metrics.UpdateActiveSessions(0)

	// Drain the queue into the sink, then stop workers.
	if s.workerPool != nil {
		_ = s.workerPool.Shutdown(ctx)
	}

	if s.store != nil {
		_ = s.store.Close()
	}

	select {
	case <-s.stopCh:
		// Channel already closed
	default:
		close(s.stopCh)
	}

	s.logger.Info(ctx, "experiment service stopped")
}

// visitorStore returns the per-visitor view of the shared store.
func (s *Service) visitorStore(visitorID string) repository.Store {
	return repository.Namespaced(s.store, visitorID)
}

// classifier builds a classifier over the visitor's store view.
func (s *Service) classifier(visitorID string) *classify.Classifier {
	return classify.New(s.visitorStore(visitorID), classify.WithTTL(s.trafficTTL))
}

// bucketer builds a bucketer over the visitor's store view.
func (s *Service) bucketer(visitorID string) *bucket.Bucketer {
	opts := []bucket.Option{
		bucket.WithAssignmentTTL(s.assignmentTTL),
		bucket.WithForcedTTL(s.forcedTTL),
	}
	if s.rng != nil {
		opts = append(opts, bucket.WithRandFunc(s.rng))
	}
	return bucket.New(s.visitorStore(visitorID), opts...)
}

// Experiment returns the configured experiment for slug. An empty slug
// selects the default experiment.
func (s *Service) Experiment(slug string) (model.Experiment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if slug == "" {
		slug = s.defaultSlug
	}
	exp, ok := s.experiments[slug]
	return exp, ok
}

// Resolve is the composed accessor: which variant this visitor sees for
// slug, and how their traffic was classified. It performs assignment
// (and persistence, when eligible) but starts no session.
func (s *Service) Resolve(ctx context.Context, visitorID, slug, referrer string, query url.Values) (types.Resolution, error) {
	exp, ok := s.Experiment(slug)
	if !ok {
		return types.Resolution{}, ErrUnknownExperiment
	}

	source := s.classifier(visitorID).Persisted(ctx, referrer, query)
	eligible := source == types.SourceOrganic
	variant := s.bucketer(visitorID).Assign(ctx, exp, eligible)

	return types.Resolution{
		VariantID:     variant.ID,
		TrafficSource: source,
		IsOrganic:     eligible,
	}, nil
}

// StartSession begins a page lifetime: classify, assign, emit the page
// view, and start both engagement monitors bound to the session's
// event context.
func (s *Service) StartSession(ctx context.Context, req SessionRequest) (SessionInfo, error) {
	s.mu.RLock()
	started := s.started
	base := s.baseCtx
	s.mu.RUnlock()
	if !started {
		return SessionInfo{}, ErrNotStarted
	}

	res, err := s.Resolve(ctx, req.VisitorID, req.ExperimentSlug, req.Referrer, req.Query)
	if err != nil {
		return SessionInfo{}, err
	}

	ectx := model.EventContext{
		CompetitorSlug: req.CompetitorSlug,
		VariantID:      res.VariantID,
		TrafficSource:  res.TrafficSource,
	}

	s.tracker.Track(ctx, model.EventPageView, ectx, nil)

	sess := newSession(uuid.NewString(), req.VisitorID, ectx, s.tracker, sessionConfig{
		heartbeat:        s.heartbeat,
		bounceThreshold:  s.bounceThreshold,
		scrollThresholds: s.scrollThresholds,
		now:              s.now,
	})
	// Monitors outlive the HTTP request that created them; they are
	// bound to the service context and torn down with the session.
	sess.start(base)

	s.mu.Lock()
	s.sessions[sess.id] = sess
	active := len(s.sessions)
	s.mu.Unlock()

	metrics.RecordSessionStarted()
	metrics.UpdateActiveSessions(active)

	s.logger.Debug(ctx, "session started",
		logger.String("session", sess.id),
		logger.String("visitor", req.VisitorID),
		logger.String("variant", res.VariantID),
		logger.String("trafficSource", string(res.TrafficSource)),
	)

	return SessionInfo{
		SessionID:     sess.id,
		VariantID:     res.VariantID,
		TrafficSource: res.TrafficSource,
		IsOrganic:     res.IsOrganic,
	}, nil
}

// ObserveScroll feeds one scroll sample into the session's monitor.
func (s *Service) ObserveScroll(ctx context.Context, sessionID string, position, pageHeight, viewport float64) error {
	sess, err := s.session(sessionID)
	if err != nil {
		return err
	}
	sess.touch(s.now())
	sess.scroll.Observe(ctx, position, pageHeight, viewport)
	return nil
}

// TrackEvent emits a catalog event with the session's context attached.
func (s *Service) TrackEvent(ctx context.Context, sessionID, name string, params map[string]string) error {
	if !model.KnownEventName(name) {
		return ErrUnknownEvent
	}
	sess, err := s.session(sessionID)
	if err != nil {
		return err
	}
	sess.touch(s.now())
	s.tracker.Track(ctx, name, sess.ectx, params)
	return nil
}

// EndSession handles the leave beacon: final heartbeat, possible
// bounce, monitor teardown, and removal from the registry.
func (s *Service) EndSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
	}
	active := len(s.sessions)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}

	sess.leave(ctx)
	sess.teardown()

	metrics.RecordSessionEnded("leave")
	metrics.UpdateActiveSessions(active)

	return nil
}

// ForceVariant writes a short-lived assignment bypassing weighting.
func (s *Service) ForceVariant(ctx context.Context, visitorID, slug, variantID string) error {
	if _, ok := s.Experiment(slug); !ok {
		return ErrUnknownExperiment
	}
	return s.bucketer(visitorID).Force(ctx, slug, variantID)
}

// ClearVariant removes the assignment so the next resolve re-buckets.
func (s *Service) ClearVariant(ctx context.Context, visitorID, slug string) error {
	if _, ok := s.Experiment(slug); !ok {
		return ErrUnknownExperiment
	}
	return s.bucketer(visitorID).Clear(ctx, slug)
}

// ActiveExperiments returns the visitor's persisted slug -> variant map.
func (s *Service) ActiveExperiments(ctx context.Context, visitorID string) (map[string]string, error) {
	return s.bucketer(visitorID).Active(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"experiments": len(s.experiments),
	}

	if s.started {
		stats["activeSessions"] = len(s.sessions)
		stats["queueLength"] = s.eventQueue.Len(ctx)
		stats["storeEntries"] = s.store.Len(ctx)
		stats["sink"] = s.snk.Name()
	}

	return stats
}

// session looks up a live session.
func (s *Service) session(id string) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// reapIdleSessions tears down sessions whose page never sent a leave
// beacon, so listeners and timers cannot leak.
func (s *Service) reapIdleSessions(ctx context.Context) {
	ticker := time.NewTicker(reaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.reapOnce(ctx)
		}
	}
}

// reapOnce removes every session idle past the timeout.
func (s *Service) reapOnce(ctx context.Context) {
	cutoff := s.now().Add(-s.sessionIdleTimeout)

	s.mu.Lock()
	expired := make([]*session, 0)
	for id, sess := range s.sessions {
		if sess.lastSeen().Before(cutoff) {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	active := len(s.sessions)
	s.mu.Unlock()

	for _, sess := range expired {
		// An idle expiry is the closest signal we get to an unload on
		// a vanished page: emit the final heartbeat and tear down.
		sess.leave(ctx)
		sess.teardown()
		metrics.RecordSessionEnded("expired")
	}

	if len(expired) > 0 {
		metrics.UpdateActiveSessions(active)
		s.logger.Debug(ctx, "reaped idle sessions", logger.Int("count", len(expired)))
	}
}
