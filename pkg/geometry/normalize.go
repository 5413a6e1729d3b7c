package geometry

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Normalize reduces an edge geometry to one simple curve.
//
//   - LineString: itself
//   - MultiLineString: the merged line if merging yields one, else the longest part
//   - Ring: an open line with the same vertices
//   - Collection: its longest line member
//
// Anything else, and curves with fewer than two vertices, are unusable.
func Normalize(g orb.Geometry) (orb.LineString, bool) {
	switch geom := g.(type) {
	case orb.LineString:
		return usable(geom)
	case orb.Ring:
		return usable(orb.LineString(append([]orb.Point(nil), geom...)))
	case orb.MultiLineString:
		merged := LineMerge(geom)
		if len(merged) == 0 {
			return nil, false
		}
		if len(merged) == 1 {
			return usable(merged[0])
		}
		return usable(longest(merged))
	case orb.Collection:
		lines := make([]orb.LineString, 0, len(geom))
		for _, member := range geom {
			switch m := member.(type) {
			case orb.LineString:
				lines = append(lines, m)
			case orb.Ring:
				lines = append(lines, orb.LineString(m))
			}
		}
		if len(lines) == 0 {
			return nil, false
		}
		return usable(longest(lines))
	default:
		return nil, false
	}
}

func usable(ls orb.LineString) (orb.LineString, bool) {
	if len(ls) < 2 {
		return nil, false
	}
	return ls, true
}

// longest first line with the greatest planar length.
func longest(lines []orb.LineString) orb.LineString {
	best := lines[0]
	bestLen := planar.Length(best)
	for _, ls := range lines[1:] {
		if l := planar.Length(ls); l > bestLen {
			best = ls
			bestLen = l
		}
	}
	return best
}

// IsZeroLength true when every vertex of ls is the same point.
func IsZeroLength(ls orb.LineString) bool {
	return planar.Length(ls) == 0
}

// LineMerge joins parts of a multi line at points where exactly two part ends meet.
// Parts may be reversed to be joined.
func LineMerge(mls orb.MultiLineString) []orb.LineString {
	parts := make([]orb.LineString, 0, len(mls))
	degree := make(map[orb.Point]int)
	for _, ls := range mls {
		if len(ls) < 2 {
			continue
		}
		parts = append(parts, append(orb.LineString(nil), ls...))
		degree[ls[0]]++
		degree[ls[len(ls)-1]]++
	}

	for merged := true; merged; {
		merged = false
		for i := 0; i < len(parts) && !merged; i++ {
			for j := i + 1; j < len(parts); j++ {
				joined, ok := join(parts[i], parts[j], degree)
				if !ok {
					continue
				}
				parts[i] = joined
				parts = append(parts[:j], parts[j+1:]...)
				merged = true
				break
			}
		}
	}
	return parts
}

func join(a, b orb.LineString, degree map[orb.Point]int) (orb.LineString, bool) {
	aStart, aEnd := a[0], a[len(a)-1]
	bStart, bEnd := b[0], b[len(b)-1]

	// a closed part cannot be extended
	if aStart == aEnd || bStart == bEnd {
		return nil, false
	}

	switch {
	case aEnd == bStart && degree[aEnd] == 2:
		return concat(a, b), true
	case aEnd == bEnd && degree[aEnd] == 2:
		return concat(a, reversed(b)), true
	case aStart == bEnd && degree[aStart] == 2:
		return concat(b, a), true
	case aStart == bStart && degree[aStart] == 2:
		return concat(reversed(a), b), true
	}
	return nil, false
}

func concat(a, b orb.LineString) orb.LineString {
	res := make(orb.LineString, 0, len(a)+len(b)-1)
	res = append(res, a...)
	return append(res, b[1:]...)
}

func reversed(ls orb.LineString) orb.LineString {
	res := make(orb.LineString, len(ls))
	for i, p := range ls {
		res[len(ls)-1-i] = p
	}
	return res
}

// IsEmpty true for nil geometries and geometries without any vertex.
func IsEmpty(g orb.Geometry) bool {
	switch geom := g.(type) {
	case nil:
		return true
	case orb.Point:
		return false
	case orb.MultiPoint:
		return len(geom) == 0
	case orb.LineString:
		return len(geom) == 0
	case orb.Ring:
		return len(geom) == 0
	case orb.MultiLineString:
		for _, ls := range geom {
			if len(ls) > 0 {
				return false
			}
		}
		return true
	case orb.Polygon:
		for _, r := range geom {
			if len(r) > 0 {
				return false
			}
		}
		return true
	case orb.MultiPolygon:
		for _, p := range geom {
			if !IsEmpty(p) {
				return false
			}
		}
		return true
	case orb.Collection:
		for _, m := range geom {
			if !IsEmpty(m) {
				return false
			}
		}
		return true
	case orb.Bound:
		return false
	}
	return true
}
