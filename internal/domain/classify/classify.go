// Package classify derives a traffic source from referrer and query
// signals and caches the result in the visitor store.
package classify

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/okian/cohort/internal/adapters/repository"
	"github.com/okian/cohort/internal/domain/types"
	"github.com/okian/cohort/pkg/metrics"
)

// Default classifier configuration constants.
const (
	// TrafficSourceKey is the store key holding the cached classification.
	TrafficSourceKey = "ab_traffic_source"

	defaultTrafficTTL = 30 * 24 * time.Hour
)

// searchEngines are hostname labels that mark a referrer as organic
// search traffic. Matching is label-based so "www.google.co.uk" and
// "google.com" both count.
var searchEngines = []string{
	"google",
	"bing",
	"yahoo",
	"duckduckgo",
	"baidu",
	"yandex",
	"ecosia",
}

// Detect classifies a single visit from its referrer and query params.
//
// Rule order matters: explicit paid tagging wins over everything,
// tagged organic Google wins over referrer parsing, and only then is
// the referrer consulted. No referrer and no decisive UTM means the
// visitor typed the URL or followed an untagged channel: direct.
//
// An unattributed Google referrer counts as organic even when it was
// actually untagged paid traffic. Known heuristic limitation.
func Detect(referrer string, query url.Values) types.TrafficSource {
	medium := strings.ToLower(strings.TrimSpace(query.Get("utm_medium")))
	source := strings.ToLower(strings.TrimSpace(query.Get("utm_source")))

	if medium == "cpc" || medium == "ppc" {
		return types.SourcePaid
	}
	if strings.Contains(source, "google") && medium == "organic" {
		return types.SourceOrganic
	}

	if referrer != "" {
		u, err := url.Parse(referrer)
		if err != nil || u.Hostname() == "" {
			return types.SourceUnknown
		}
		if isSearchEngine(u.Hostname()) {
			return types.SourceOrganic
		}
		return types.SourceReferral
	}

	return types.SourceDirect
}

// isSearchEngine reports whether any dot-separated label of host names
// a known search engine.
func isSearchEngine(host string) bool {
	for _, label := range strings.Split(strings.ToLower(host), ".") {
		for _, engine := range searchEngines {
			if label == engine {
				return true
			}
		}
	}
	return false
}

// Classifier caches traffic classification per visitor. The cache makes
// classification idempotent for the TTL window: the first page view of
// a visit decides the source, later navigations reuse it.
type Classifier struct {
	store repository.Store
	ttl   time.Duration
}

// Option applies a configuration option to the Classifier.
type Option func(*Classifier)

// WithTTL sets how long a classification is cached.
func WithTTL(ttl time.Duration) Option {
	return func(c *Classifier) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// New creates a Classifier over the given visitor-scoped store.
func New(store repository.Store, opts ...Option) *Classifier {
	c := &Classifier{
		store: store,
		ttl:   defaultTrafficTTL,
	}

	// Apply all options
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Persisted returns the cached classification if present; otherwise it
// computes one via Detect, persists it, and returns it. With no store
// available every call degrades to SourceUnknown without touching
// storage.
func (c *Classifier) Persisted(ctx context.Context, referrer string, query url.Values) types.TrafficSource {
	if c.store == nil {
		return types.SourceUnknown
	}

	if v, err := c.store.Get(ctx, TrafficSourceKey); err == nil {
		return types.ParseTrafficSource(v)
	}

	source := Detect(referrer, query)
	metrics.RecordTrafficClassified(string(source))

	// Persistence is best-effort: a failed write only means the next
	// page view re-classifies.
	_ = c.store.Set(ctx, TrafficSourceKey, string(source), c.ttl)

	return source
}

// Eligible reports whether this visitor participates in experiments.
// Only organic traffic consumes experiment buckets; paid, referral,
// direct and unknown visitors all see control.
func (c *Classifier) Eligible(ctx context.Context, referrer string, query url.Values) bool {
	return c.Persisted(ctx, referrer, query) == types.SourceOrganic
}
