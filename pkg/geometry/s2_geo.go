package geometry

import (
	"lintang/runpathx/pkg/datastructure"

	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"
)

func toS2(p orb.Point) s2.Point {
	return s2.PointFromLatLng(s2.LatLngFromDegrees(p.Lat(), p.Lon()))
}

func fromS2(p s2.Point) orb.Point {
	ll := s2.LatLngFromPoint(p)
	return orb.Point{ll.Lng.Degrees(), ll.Lat.Degrees()}
}

// ProjectOntoCurve closest point of the curve to p.
func ProjectOntoCurve(ls orb.LineString, p orb.Point) orb.Point {
	if len(ls) == 0 {
		return p
	}
	polyline := make(s2.Polyline, len(ls))
	for i, v := range ls {
		polyline[i] = toS2(v)
	}
	projected, _ := polyline.Project(toS2(p))
	return fromS2(projected)
}

// StraightLine two point line from a to b.
func StraightLine(a, b datastructure.Coordinate) orb.LineString {
	return orb.LineString{a.Point(), b.Point()}
}

// contactTolM distance in mercator meters under which two points count as touching.
const contactTolM = 0.01

// Intersects reports whether the segment a-b crosses, overlaps or touches any segment of geom at a
// point other than a or b. Contact at a or b alone is not an intersection.
func Intersects(a, b orb.Point, geom orb.Geometry) bool {
	sa, sb := toS2(a), toS2(b)
	ma, mb := PointToMercator(a), PointToMercator(b)
	hit := false
	forEachSegment(geom, func(c, d orb.Point) bool {
		if c == d {
			return true
		}
		mc, md := PointToMercator(c), PointToMercator(d)
		if touchesBeyondEndpoints(ma, mb, mc, md) {
			hit = true
			return false
		}
		// s2 may call an endpoint resting on c-d a crossing
		if s2.CrossingSign(sa, sb, toS2(c), toS2(d)) == s2.Cross &&
			planar.DistanceFromSegment(mc, md, ma) > contactTolM &&
			planar.DistanceFromSegment(mc, md, mb) > contactTolM {
			hit = true
			return false
		}
		return true
	})
	return hit
}

// touchesBeyondEndpoints planar check in mercator for the contacts s2 reports as MaybeCross or
// DoNotCross: a vertex of c-d inside a-b, or a-b lying along c-d.
func touchesBeyondEndpoints(a, b, c, d orb.Point) bool {
	for _, p := range [2]orb.Point{c, d} {
		if planar.Distance(p, a) <= contactTolM || planar.Distance(p, b) <= contactTolM {
			continue
		}
		if planar.DistanceFromSegment(a, b, p) <= contactTolM {
			return true
		}
	}
	if planar.Distance(a, b) <= contactTolM {
		return false
	}
	mid := orb.Point{(a[0] + b[0]) / 2, (a[1] + b[1]) / 2}
	return planar.DistanceFromSegment(c, d, mid) <= contactTolM
}

// forEachSegment walks the segments of every line part of g until fn returns false.
func forEachSegment(g orb.Geometry, fn func(c, d orb.Point) bool) bool {
	walk := func(ls []orb.Point) bool {
		for i := 1; i < len(ls); i++ {
			if !fn(ls[i-1], ls[i]) {
				return false
			}
		}
		return true
	}

	switch geom := g.(type) {
	case orb.LineString:
		return walk(geom)
	case orb.Ring:
		return walk(geom)
	case orb.MultiLineString:
		for _, ls := range geom {
			if !walk(ls) {
				return false
			}
		}
	case orb.Polygon:
		for _, r := range geom {
			if !walk(r) {
				return false
			}
		}
	case orb.MultiPolygon:
		for _, poly := range geom {
			if !forEachSegment(poly, fn) {
				return false
			}
		}
	case orb.Collection:
		for _, member := range geom {
			if !forEachSegment(member, fn) {
				return false
			}
		}
	}
	return true
}

// ToMercator copy of g in web mercator meters (EPSG:3857).
func ToMercator(g orb.Geometry) orb.Geometry {
	return project.Geometry(orb.Clone(g), project.WGS84.ToMercator)
}

func PointToMercator(p orb.Point) orb.Point {
	return project.Point(p, project.WGS84.ToMercator)
}
