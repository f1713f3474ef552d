package testsessions

import "time"

// Config holds configuration for the session test
type Config struct {
	BaseURL     string        // Base URL of the service
	NumVisitors int           // Number of simulated visitors
	Experiment  string        // Experiment slug to exercise
	Competitor  string        // Competitor slug reported by pages
	Workers     int           // Number of concurrent workers
	Timeout     time.Duration // HTTP request timeout
	Tolerance   float64       // Allowed deviation from configured weights, percent
	LogFile     string        // Log file for test output
	Verbose     bool          // Enable verbose logging
}

// Visit represents one simulated page visit
type Visit struct {
	VisitorID string `json:"visitor_id"`
	Referrer  string `json:"referrer"`
	URL       string `json:"url"`
	Organic   bool   `json:"organic"`
}

// SessionInfo represents the response from session start
type SessionInfo struct {
	SessionID     string `json:"session_id"`
	VariantID     string `json:"variant_id"`
	TrafficSource string `json:"traffic_source"`
	IsOrganic     bool   `json:"is_organic"`
}

// AckResponse represents the response from beacon submission
type AckResponse struct {
	Status string `json:"status"`
}

// Result pairs a visit with the assignment it received
type Result struct {
	Visit   Visit
	First   SessionInfo
	Second  SessionInfo
	Sticky  bool
	Failed  bool
	Message string
}

// Stats holds test statistics
type Stats struct {
	VisitsGenerated  int
	VisitsCompleted  int
	VisitsFailed     int
	OrganicVisits    int
	NonOrganicVisits int
	StickyMismatches int
	VariantCounts    map[string]int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
