package domain

import (
	"fmt"
	"math"
	"math/rand"
)

// DistributionTolerance is the allowed deviation of weight sums from 1.0.
const DistributionTolerance = 0.001

// PersonalityDistribution maps personality category to probability weight.
type PersonalityDistribution map[string]float64

// DefaultDistribution returns the standard population mix.
func DefaultDistribution() PersonalityDistribution {
	return PersonalityDistribution{
		PersonalityConservative: 0.30,
		PersonalityAggressive:   0.25,
		PersonalityContrarian:   0.20,
		PersonalityMomentum:     0.15,
		PersonalityWhale:        0.10,
	}
}

// Validate checks that all categories are known and weights sum to 1
// within DistributionTolerance.
func (d PersonalityDistribution) Validate() error {
	if len(d) == 0 {
		return fmt.Errorf("personality distribution is empty")
	}

	known := make(map[string]bool, len(Personalities))
	for _, p := range Personalities {
		known[p] = true
	}

	var sum float64
	for category, weight := range d {
		if !known[category] {
			return fmt.Errorf("unknown personality category %q", category)
		}
		if weight < 0 {
			return fmt.Errorf("negative weight %f for %q", weight, category)
		}
		sum += weight
	}

	if math.Abs(sum-1.0) > DistributionTolerance {
		return fmt.Errorf("personality weights sum to %f, want 1.0 ±%f", sum, DistributionTolerance)
	}
	return nil
}

// Sample draws one personality category according to the weights.
// Iteration is over the stable Personalities order so the draw is
// deterministic for a fixed rand source.
func (d PersonalityDistribution) Sample(rng *rand.Rand) string {
	r := rng.Float64()
	var cum float64
	for _, p := range Personalities {
		cum += d[p]
		if r < cum {
			return p
		}
	}
	return Personalities[len(Personalities)-1]
}
