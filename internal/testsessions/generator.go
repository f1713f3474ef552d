package testsessions

import (
	"context"
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
	"github.com/okian/cohort/pkg/logger"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	trafficMixDivisor  = 10
)

// Traffic mix cases. Organic dominates so the weighted draw gets a
// large enough sample to verify against.
const (
	caseDirect   = 0
	casePaid     = 1
	caseReferral = 2
)

// Referrers by traffic class.
var (
	organicReferrers = []string{
		"https://www.google.com/search?q=comparison",
		"https://www.bing.com/search?q=alternatives",
		"https://duckduckgo.com/?q=which+tool",
	}
	referralReferrers = []string{
		"https://news.ycombinator.com/item?id=1",
		"https://old.reddit.com/r/golang/",
	}
)

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// generateVisits creates visitor profiles with a mixed traffic pattern.
func generateVisits(ctx context.Context, config *Config, stats *Stats) ([]Visit, error) {
	logger.Get().Info(ctx, "generating visits", logger.Int("numVisitors", config.NumVisitors))

	visits := make([]Visit, config.NumVisitors)
	for i := 0; i < config.NumVisitors; i++ {
		visits[i] = generateSingleVisit(config)
		if visits[i].Organic {
			stats.OrganicVisits++
		} else {
			stats.NonOrganicVisits++
		}
	}

	stats.VisitsGenerated = len(visits)
	logger.Get().Info(ctx, "generated visits",
		logger.Int("count", len(visits)),
		logger.Int("organic", stats.OrganicVisits),
		logger.Int("nonOrganic", stats.NonOrganicVisits))

	return visits, nil
}

// generateSingleVisit builds one visit. Seven of ten visits arrive
// from a search engine so they are assignment-eligible.
func generateSingleVisit(config *Config) Visit {
	visitorID := uuid.New().String()
	pageURL := "https://example.test/vs/" + config.Competitor

	n, _ := rand.Int(rand.Reader, big.NewInt(trafficMixDivisor))
	switch n.Int64() {
	case caseDirect:
		return Visit{VisitorID: visitorID, Referrer: "", URL: pageURL, Organic: false}
	case casePaid:
		return Visit{
			VisitorID: visitorID,
			Referrer:  pick(organicReferrers),
			URL:       pageURL + "?utm_source=google&utm_medium=cpc",
			Organic:   false,
		}
	case caseReferral:
		return Visit{VisitorID: visitorID, Referrer: pick(referralReferrers), URL: pageURL, Organic: false}
	default:
		return Visit{VisitorID: visitorID, Referrer: pick(organicReferrers), URL: pageURL, Organic: true}
	}
}

// pick returns a random element of items.
func pick(items []string) string {
	n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(items))))
	return items[n.Int64()]
}
