package geo

import (
	"lintang/runpathx/pkg/datastructure"
)

// DefaultMaxSpeed running pace ceiling in m/s, anything faster between two fixes is a GPS spike.
const DefaultMaxSpeed = 7.0

// SpikeReference selects the point a fix is compared against when checking its implied speed.
type SpikeReference int

const (
	// ReferencePrevious compares against the previous input point, even when that point was dropped.
	ReferencePrevious SpikeReference = iota
	// ReferenceLastKept compares against the last point that survived the filter.
	ReferenceLastKept
)

func (r SpikeReference) String() string {
	switch r {
	case ReferenceLastKept:
		return "last_kept"
	default:
		return "previous"
	}
}

// ParseSpikeReference accepts "previous" and "last_kept". Unknown values fall back to ReferencePrevious.
func ParseSpikeReference(s string) SpikeReference {
	if s == "last_kept" {
		return ReferenceLastKept
	}
	return ReferencePrevious
}

// RemoveConsecutiveDuplicates drops a point iff it is exactly equal to the one before it.
func RemoveConsecutiveDuplicates(points []datastructure.Coordinate) []datastructure.Coordinate {
	cleaned, _ := removeConsecutiveDuplicates(points, nil)
	return cleaned
}

// removeConsecutiveDuplicates also drops the timestamp of every removed point so both streams stay aligned.
func removeConsecutiveDuplicates(points []datastructure.Coordinate, times []float64) ([]datastructure.Coordinate, []float64) {
	cleaned := make([]datastructure.Coordinate, 0, len(points))
	var cleanedTimes []float64
	aligned := times != nil && len(times) == len(points)
	if aligned {
		cleanedTimes = make([]float64, 0, len(times))
	}

	for i, p := range points {
		if i > 0 && p == points[i-1] {
			continue
		}
		cleaned = append(cleaned, p)
		if aligned {
			cleanedTimes = append(cleanedTimes, times[i])
		}
	}
	if !aligned {
		return cleaned, times
	}
	return cleaned, cleanedTimes
}

// RemoveSpeedSpikes drops point i (i >= 1) when the speed implied from its reference point exceeds maxSpeed.
// A non-positive elapsed time keeps the point. Mismatched lengths return the input unchanged.
func RemoveSpeedSpikes(points []datastructure.Coordinate, times []float64, maxSpeed float64,
	ref SpikeReference) []datastructure.Coordinate {
	if len(points) != len(times) {
		return points
	}
	if len(points) == 0 {
		return []datastructure.Coordinate{}
	}

	kept := make([]datastructure.Coordinate, 0, len(points))
	kept = append(kept, points[0])
	refIdx := 0

	for i := 1; i < len(points); i++ {
		if ref == ReferencePrevious {
			refIdx = i - 1
		}

		dt := times[i] - times[refIdx]
		if dt <= 0 {
			kept = append(kept, points[i])
			refIdx = i
			continue
		}

		dist := PointDistance(points[refIdx], points[i])
		if dist/dt > maxSpeed {
			continue
		}
		kept = append(kept, points[i])
		refIdx = i
	}
	return kept
}

type PreprocessOptions struct {
	MaxSpeed  float64
	Reference SpikeReference
	// AlignTimes drops the timestamps of removed duplicates too. When false the full time stream is handed
	// to spike removal, so any removed duplicate leaves the lengths mismatched and no spike is dropped.
	AlignTimes bool
}

func DefaultPreprocessOptions() PreprocessOptions {
	return PreprocessOptions{
		MaxSpeed:  DefaultMaxSpeed,
		Reference: ReferencePrevious,
	}
}

// Preprocess removes consecutive duplicates, then speed spikes when times is not nil. The result never
// holds two equal consecutive points.
func Preprocess(points []datastructure.Coordinate, times []float64, opts PreprocessOptions) []datastructure.Coordinate {
	if opts.MaxSpeed <= 0 {
		opts.MaxSpeed = DefaultMaxSpeed
	}

	cleaned, cleanedTimes := removeConsecutiveDuplicates(points, times)
	if times == nil {
		return cleaned
	}
	if !opts.AlignTimes {
		cleanedTimes = times
	}
	// dropping a spike can bring two equal fixes next to each other
	return RemoveConsecutiveDuplicates(RemoveSpeedSpikes(cleaned, cleanedTimes, opts.MaxSpeed, opts.Reference))
}
