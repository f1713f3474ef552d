// Package bucket assigns visitors to experiment variants.
//
// Assignment is sticky: once a variant id is persisted for a slug it
// is returned unchanged until the entry expires or is cleared.
// Ineligible visitors always get control and never touch the store, so
// paid/referral/direct/unknown traffic cannot contaminate experiment
// populations.
package bucket

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/okian/cohort/internal/adapters/repository"
	"github.com/okian/cohort/internal/domain/model"
	"github.com/okian/cohort/pkg/metrics"
)

// Default bucketer configuration constants.
const (
	// AssignmentKeyPrefix namespaces assignment keys in the store.
	AssignmentKeyPrefix = "ab_exp_"

	defaultAssignmentTTL = 90 * 24 * time.Hour
	defaultForcedTTL     = 24 * time.Hour

	totalWeight = 100
)

// Bucketer performs and persists variant assignment.
type Bucketer struct {
	store repository.Store

	assignmentTTL time.Duration
	forcedTTL     time.Duration

	// rng draws uniform floats in [0,1). Injectable for tests; the
	// initial draw is deliberately random, only persistence makes it
	// stable.
	rng func() float64
}

// New creates a Bucketer over the given visitor-scoped store.
func New(store repository.Store, opts ...Option) *Bucketer {
	b := &Bucketer{
		store:         store,
		assignmentTTL: defaultAssignmentTTL,
		forcedTTL:     defaultForcedTTL,
		rng:           rand.Float64,
	}

	// Apply all options
	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Assign returns the variant the visitor should see for exp.
//
// Ineligible visitors get control with no store IO. Eligible visitors
// get their persisted assignment when it resolves to a known variant;
// otherwise a fresh weighted draw is persisted with the assignment TTL.
// A persisted id that no longer names a variant (experiment reshuffled,
// corrupted value) triggers a fresh draw instead of failing.
func (b *Bucketer) Assign(ctx context.Context, exp model.Experiment, eligible bool) model.Variant {
	control := exp.Control()
	if !eligible || len(exp.Variants) == 0 || b.store == nil {
		return control
	}

	key := AssignmentKeyPrefix + exp.Slug
	if id, err := b.store.Get(ctx, key); err == nil {
		if v, ok := exp.VariantByID(id); ok {
			return v
		}
	}

	chosen := b.draw(exp)

	// Best-effort persistence: a failed write means the next page view
	// re-buckets, which is the accepted degradation.
	_ = b.store.Set(ctx, key, chosen.ID, b.assignmentTTL)
	metrics.RecordAssignment(exp.Slug, chosen.ID)

	return chosen
}

// draw performs weighted random selection over the experiment variants
// in list order. If the weights sum to less than 100 the residual
// probability mass falls back to control.
func (b *Bucketer) draw(exp model.Experiment) model.Variant {
	r := b.rng() * totalWeight
	cumulative := 0
	for _, v := range exp.Variants {
		cumulative += v.Weight
		if r < float64(cumulative) {
			return v
		}
	}
	return exp.Control()
}

// Force writes an assignment with the short forced TTL, bypassing
// weighting and eligibility. QA/preview only.
func (b *Bucketer) Force(ctx context.Context, slug, variantID string) error {
	if b.store == nil {
		return repository.ErrClosed
	}
	if err := b.store.Set(ctx, AssignmentKeyPrefix+slug, variantID, b.forcedTTL); err != nil {
		return err
	}
	metrics.RecordAssignmentForced(slug)
	return nil
}

// Clear deletes the assignment for slug so the next Assign re-buckets.
func (b *Bucketer) Clear(ctx context.Context, slug string) error {
	if b.store == nil {
		return repository.ErrClosed
	}
	if err := b.store.Remove(ctx, AssignmentKeyPrefix+slug); err != nil {
		return err
	}
	metrics.RecordAssignmentCleared(slug)
	return nil
}

// Active scans the assignment prefix and returns a slug -> variant id
// map. Debug/telemetry overlay helper.
func (b *Bucketer) Active(ctx context.Context) (map[string]string, error) {
	if b.store == nil {
		return map[string]string{}, nil
	}

	keys, err := b.store.Keys(ctx, AssignmentKeyPrefix)
	if err != nil {
		return nil, err
	}

	active := make(map[string]string, len(keys))
	for _, key := range keys {
		id, err := b.store.Get(ctx, key)
		if err != nil {
			// Expired between Keys and Get; skip.
			continue
		}
		slug := strings.TrimPrefix(key, AssignmentKeyPrefix)
		active[slug] = id
	}
	return active, nil
}
