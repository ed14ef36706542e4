// Package match finds the enrolled identity closest to a face descriptor.
package match

import (
	"context"
	"math"

	"github.com/coder/hnsw"

	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/store"
)

// DefaultThreshold is the Euclidean distance a match must stay strictly below.
const DefaultThreshold = 0.6

// checkEvery bounds how many candidates are scanned between context checks.
const checkEvery = 64

type Result struct {
	Identity store.Identity
	Distance float64
}

// Matcher is an exact nearest-neighbour scan over enrolled descriptors.
// A zero Threshold means DefaultThreshold.
type Matcher struct {
	Threshold float64
}

func New(threshold float64) Matcher {
	return Matcher{Threshold: threshold}
}

func (m Matcher) threshold() float64 {
	if m.Threshold <= 0 || math.IsNaN(m.Threshold) {
		return DefaultThreshold
	}
	return m.Threshold
}

// Match returns the candidate with the smallest distance to descriptor when
// that distance is strictly below the threshold. Equal distances resolve to
// the lexicographically lowest IdentityID, so the result never depends on
// candidate order.
//
// Candidates without a descriptor, or whose descriptor length differs from
// descriptor, are ignored. An empty descriptor or candidate list is no match.
// If ctx is cancelled mid-scan, Match reports no match and ctx.Err().
func (m Matcher) Match(ctx context.Context, descriptor []float32, candidates []store.Identity) (Result, bool, error) {
	if len(descriptor) == 0 || len(candidates) == 0 {
		return Result{}, false, nil
	}

	var (
		best  Result
		found bool
	)
	for i, c := range candidates {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return Result{}, false, err
			}
		}
		if len(c.Descriptor) != len(descriptor) {
			continue
		}

		d := float64(hnsw.EuclideanDistance(descriptor, c.Descriptor))
		if math.IsNaN(d) {
			continue
		}
		if !found || d < best.Distance || (d == best.Distance && c.IdentityID < best.Identity.IdentityID) {
			best = Result{Identity: c, Distance: d}
			found = true
		}
	}
	if err := ctx.Err(); err != nil {
		return Result{}, false, err
	}

	if !found || best.Distance >= m.threshold() {
		return Result{}, false, nil
	}
	return best, true, nil
}
