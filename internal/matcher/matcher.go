// Package matcher finds the gallery identity nearest to a probe embedding.
package matcher

import (
	"math"

	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/identity"
)

// Result is the outcome of a match. A nil Identity means UNKNOWN.
type Result struct {
	Identity *identity.Identity
	Distance float64
}

// Known reports whether the probe matched an identity.
func (r Result) Known() bool {
	return r.Identity != nil
}

// EuclideanDistance returns the L2 distance between two vectors, or +Inf when
// their dimensions differ.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Match scans every entry and returns the nearest one when its distance is
// strictly below threshold. Ties keep the first entry in listing order. An
// empty gallery yields UNKNOWN with an infinite distance; a rejected probe
// yields UNKNOWN with the minimum distance found.
func Match(probe []float32, idx *gallery.Index, threshold float64) Result {
	best := -1
	bestDist := math.Inf(1)
	for i := range idx.Len() {
		d := EuclideanDistance(probe, idx.At(i).Embedding)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return accept(idx, best, bestDist, threshold)
}

func accept(idx *gallery.Index, best int, dist, threshold float64) Result {
	if best < 0 || !(dist < threshold) {
		return Result{Distance: dist}
	}
	id := idx.At(best).Identity
	return Result{Identity: &id, Distance: dist}
}

// Matcher is implemented by the linear and indexed matchers.
type Matcher interface {
	Match(probe []float32, idx *gallery.Index) Result
}

// Linear is the exact matcher with a fixed threshold.
type Linear struct {
	Threshold float64
}

// Match implements Matcher.
func (l Linear) Match(probe []float32, idx *gallery.Index) Result {
	return Match(probe, idx, l.Threshold)
}
