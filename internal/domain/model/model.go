// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/okian/cohort/internal/domain/types"
)

// Variant is one treatment arm of an experiment. Weight is a traffic
// share in the 0-100 range; weights across an experiment should sum
// to 100.
type Variant struct {
	ID     string `json:"id"`
	Weight int    `json:"weight"`
}

// Experiment is an ordered set of variants keyed by slug.
// Variants[0] is always the control arm.
type Experiment struct {
	Slug     string    `json:"slug"`
	Variants []Variant `json:"variants"`
}

// Control returns the control variant. Experiments with no variants
// yield a zero Variant; callers treat an empty ID as "render default".
func (e Experiment) Control() Variant {
	if len(e.Variants) == 0 {
		return Variant{}
	}
	return e.Variants[0]
}

// VariantByID returns the variant with the given id, if present.
func (e Experiment) VariantByID(id string) (Variant, bool) {
	for _, v := range e.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}

// EventContext carries the experiment context attached to every
// analytics event emitted during a page lifetime.
type EventContext struct {
	CompetitorSlug string              `json:"competitor_slug"`
	VariantID      string              `json:"variant_id"`
	TrafficSource  types.TrafficSource `json:"traffic_source"`
}

// AnalyticsEvent is a single fire-and-forget analytics signal.
// There is no retry: a dropped event is a dropped event.
type AnalyticsEvent struct {
	Name    string            `json:"name"`
	Context EventContext      `json:"context"`
	Params  map[string]string `json:"params,omitempty"`
	TS      time.Time         `json:"ts"`
}

// Event catalog. Names match what the analytics sink expects.
const (
	EventPageView         = "page_view"
	EventScrollDepth      = "scroll_depth"
	EventTimeOnPage       = "time_on_page"
	EventCTAClick         = "cta_click"
	EventInstallClick     = "install_click"
	EventGithubClick      = "github_click"
	EventDocsClick        = "docs_click"
	EventFeatureView      = "feature_view"
	EventUsecaseView      = "usecase_view"
	EventTrustSectionView = "trust_section_view"
	EventFAQExpand        = "faq_expand"
	EventBounce           = "bounce"
)

// KnownEventName reports whether name belongs to the event catalog.
func KnownEventName(name string) bool {
	switch name {
	case EventPageView, EventScrollDepth, EventTimeOnPage, EventCTAClick,
		EventInstallClick, EventGithubClick, EventDocsClick, EventFeatureView,
		EventUsecaseView, EventTrustSectionView, EventFAQExpand, EventBounce:
		return true
	}
	return false
}
