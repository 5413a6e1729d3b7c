package runpath

import (
	"lintang/runpathx/pkg/activity"
	"lintang/runpathx/pkg/datastructure"
)

func FromActivity(g *datastructure.Graph, act activity.Activity, opts Options) (*RunPath, error) {
	return New(g, act.LatLng, act.Time, opts)
}

// FromStreams builds a run path straight from an activity streams json document.
func FromStreams(g *datastructure.Graph, streams []byte, opts Options) (*RunPath, error) {
	act, err := activity.Parse(streams)
	if err != nil {
		return nil, err
	}
	return FromActivity(g, act, opts)
}
