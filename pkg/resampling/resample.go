package resampling

import (
	"lintang/runpathx/pkg/datastructure"
	"lintang/runpathx/pkg/geo"
)

// DefaultSpacing meters between two resampled points.
const DefaultSpacing = 5.0

// CumulativeDistances haversine arc length from the first point up to each point.
func CumulativeDistances(points []datastructure.Coordinate) []float64 {
	if len(points) == 0 {
		return []float64{}
	}

	dists := make([]float64, len(points))
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += geo.PointDistance(points[i-1], points[i])
		dists[i] = total
	}
	return dists
}

// PolylineLength total haversine length, 0 for fewer than two points.
func PolylineLength(points []datastructure.Coordinate) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += geo.PointDistance(points[i-1], points[i])
	}
	return total
}

func interpolate(p1, p2 datastructure.Coordinate, t float64) datastructure.Coordinate {
	return datastructure.Coordinate{
		Lat: p1.Lat + t*(p2.Lat-p1.Lat),
		Lon: p1.Lon + t*(p2.Lon-p1.Lon),
	}
}

// Resample emits points every spacing meters of arc length, starting at the first point.
// A polyline shorter than spacing collapses to its first and last point.
func Resample(points []datastructure.Coordinate, spacing float64) []datastructure.Coordinate {
	if len(points) == 0 {
		return []datastructure.Coordinate{}
	}
	if len(points) == 1 {
		return []datastructure.Coordinate{points[0]}
	}
	if spacing <= 0 {
		spacing = DefaultSpacing
	}

	cum := CumulativeDistances(points)
	totalLen := cum[len(cum)-1]
	if totalLen < spacing {
		return []datastructure.Coordinate{points[0], points[len(points)-1]}
	}

	numSamples := int(totalLen / spacing)
	resampled := make([]datastructure.Coordinate, 0, numSamples+1)

	idx := 0
	for i := 0; i <= numSamples; i++ {
		target := float64(i) * spacing
		for idx < len(cum)-1 && cum[idx+1] < target {
			idx++
		}

		if idx == len(cum)-1 {
			resampled = append(resampled, points[len(points)-1])
			continue
		}

		d0 := cum[idx]
		d1 := cum[idx+1]
		t := 0.0
		if d1 != d0 {
			t = (target - d0) / (d1 - d0)
		}
		resampled = append(resampled, interpolate(points[idx], points[idx+1], t))
	}
	return resampled
}
