// Package types contains common types used across the application
package types

// TrafficSource classifies where a visitor came from.
type TrafficSource string

// Known traffic sources. Anything that cannot be classified is Unknown.
const (
	SourceOrganic  TrafficSource = "organic"
	SourceDirect   TrafficSource = "direct"
	SourceReferral TrafficSource = "referral"
	SourcePaid     TrafficSource = "paid"
	SourceUnknown  TrafficSource = "unknown"
)

// Valid reports whether s is one of the known traffic sources.
func (s TrafficSource) Valid() bool {
	switch s {
	case SourceOrganic, SourceDirect, SourceReferral, SourcePaid, SourceUnknown:
		return true
	}
	return false
}

// ParseTrafficSource maps a stored string back to a TrafficSource.
// Unrecognized values collapse to SourceUnknown so stale or corrupted
// store entries never leak arbitrary strings into event payloads.
func ParseTrafficSource(s string) TrafficSource {
	ts := TrafficSource(s)
	if !ts.Valid() {
		return SourceUnknown
	}
	return ts
}

// Resolution is the composed read shape handed to page renderers:
// which variant to show and how the visitor was classified.
type Resolution struct {
	VariantID     string        `json:"variant_id"`
	TrafficSource TrafficSource `json:"traffic_source"`
	IsOrganic     bool          `json:"is_organic"`
}

// AssignmentEntry mirrors the read shape returned by experiment queries.
type AssignmentEntry struct {
	Slug      string `json:"slug"`
	VariantID string `json:"variant_id"`
}
