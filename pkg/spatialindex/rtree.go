package spatialindex

import (
	"math"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
)

// rtree parameters: 2 dimension, 25 min entries and 50 max entries
const (
	dimensions = 2
	minEntries = 25
	maxEntries = 50
)

// tol side length of the rect of a degenerate bound, meters
var tol = 0.001

func newTree() *rtreego.Rtree {
	return rtreego.NewTree(dimensions, minEntries, maxEntries)
}

// boundToRect mercator bound to rtree rect, degenerate sides are widened to tol.
func boundToRect(b orb.Bound) rtreego.Rect {
	w := b.Max.X() - b.Min.X()
	h := b.Max.Y() - b.Min.Y()
	minX, minY := b.Min.X(), b.Min.Y()
	if w < tol {
		minX -= tol / 2
		w = tol
	}
	if h < tol {
		minY -= tol / 2
		h = tol
	}
	r, err := rtreego.NewRect(rtreego.Point{minX, minY}, []float64{w, h})
	if err != nil {
		// unreachable, both lengths are positive
		panic(err)
	}
	return r
}

// boundDistance planar distance from p to the closest point of b, 0 when p is inside.
func boundDistance(b orb.Bound, p orb.Point) float64 {
	dx := math.Max(math.Max(b.Min.X()-p.X(), 0), p.X()-b.Max.X())
	dy := math.Max(math.Max(b.Min.Y()-p.Y(), 0), p.Y()-b.Max.Y())
	return math.Hypot(dx, dy)
}

type candidate interface {
	rtreego.Spatial
	bound() orb.Bound
	distance(p orb.Point) float64
	order() int
}

// nearest finds the candidate whose true distance to p is smallest, ties broken by insertion order.
// Neighbors come back ordered by rect distance, which is a lower bound of the true distance, so the
// search widens until the farthest returned rect is no closer than the best true distance.
func nearest(tree *rtreego.Rtree, p orb.Point) candidate {
	if tree.Size() == 0 {
		return nil
	}
	k := 8
	for {
		neighbors := tree.NearestNeighbors(k, rtreego.Point{p.X(), p.Y()})

		var best candidate
		bestDist := math.Inf(1)
		found := 0
		lastRectDist := 0.0
		for _, n := range neighbors {
			if n == nil {
				continue
			}
			c := n.(candidate)
			found++
			lastRectDist = math.Max(lastRectDist, boundDistance(c.bound(), p))

			d := c.distance(p)
			if math.IsNaN(d) {
				continue
			}
			if best == nil || d < bestDist || (d == bestDist && c.order() < best.order()) {
				best = c
				bestDist = d
			}
		}

		if found < k || found >= tree.Size() || lastRectDist >= bestDist {
			return best
		}
		k *= 2
	}
}
