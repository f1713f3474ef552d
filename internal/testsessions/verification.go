package testsessions

import (
	"context"
	"fmt"
	"log"
	"sort"
)

// verifyResults checks the invariants the assignment pipeline promises:
// non-organic traffic never leaves control, assignments are sticky per
// visitor, and organic traffic splits close to the configured weights.
func verifyResults(ctx context.Context, config *Config, results []Result, stats *Stats) error {
	log.Println("Verifying results...")

	stats.VariantCounts = make(map[string]int)

	organicByVariant := make(map[string]int)
	organicTotal := 0
	nonOrganicOffControl := 0

	for _, r := range results {
		if r.Failed {
			continue
		}
		stats.VariantCounts[r.First.VariantID]++

		if !r.Sticky {
			stats.StickyMismatches++
		}

		if r.First.IsOrganic {
			organicTotal++
			organicByVariant[r.First.VariantID]++
		} else if r.First.VariantID != "control" {
			nonOrganicOffControl++
		}
	}

	if stats.StickyMismatches > 0 {
		return fmt.Errorf("%d visitors changed variant between sessions", stats.StickyMismatches)
	}
	log.Println("Assignment stickiness verified")

	if nonOrganicOffControl > 0 {
		return fmt.Errorf("%d non-organic visitors received a non-control variant", nonOrganicOffControl)
	}
	log.Println("Non-organic control pinning verified")

	if organicTotal > 0 {
		if err := verifyDistribution(organicByVariant, organicTotal, config.Tolerance); err != nil {
			return err
		}
		log.Println("Organic variant distribution verified")
	}

	displayDistribution(organicByVariant, organicTotal)
	return nil
}

// verifyDistribution checks the organic split against an even split
// across the observed variants, within tolerance. The simulator does
// not know the server's configured weights; uneven deployments should
// raise the tolerance.
func verifyDistribution(byVariant map[string]int, total int, tolerance float64) error {
	if len(byVariant) == 0 {
		return fmt.Errorf("no organic assignments observed")
	}

	expected := PercentageMultiplier / float64(len(byVariant))
	for variant, count := range byVariant {
		share := float64(count) / float64(total) * PercentageMultiplier
		if diff := share - expected; diff > tolerance || diff < -tolerance {
			return fmt.Errorf("variant %q share %.1f%% deviates from expected %.1f%% by more than %.1f%%",
				variant, share, expected, tolerance)
		}
	}
	return nil
}

// displayDistribution prints the observed organic split.
func displayDistribution(byVariant map[string]int, total int) {
	if total == 0 {
		log.Println("No organic visits to report")
		return
	}

	variants := make([]string, 0, len(byVariant))
	for v := range byVariant {
		variants = append(variants, v)
	}
	sort.Strings(variants)

	log.Printf("Organic assignment distribution (%d visits):", total)
	for _, v := range variants {
		count := byVariant[v]
		share := float64(count) / float64(total) * PercentageMultiplier
		log.Printf("   %s: %d (%.1f%%)", v, count, share)
	}
}
