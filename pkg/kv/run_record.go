package kv

import (
	"encoding/json"

	"lintang/runpathx/pkg/datastructure"
	"lintang/runpathx/pkg/runpath"

	"github.com/uber/h3-go/v4"
	"golang.org/x/exp/slices"
)

const h3Resolution = 9

// RunRecord is the stored form of a matched run. The average spacing is kept as a value plus a flag,
// in JSON it is null when the flag is unset.
type RunRecord struct {
	ID               string   `json:"id"`
	StartNode        int64    `json:"start_node"`
	EndNode          int64    `json:"end_node"`
	NodeSequence     []int64  `json:"node_sequence"`
	NumRawPoints     int      `json:"num_raw_points"`
	NumCleanPoints   int      `json:"num_clean_points"`
	NumSnappedPoints int      `json:"num_snapped_points"`
	NumNodes         int      `json:"num_nodes"`
	TotalDistanceM   float64  `json:"total_distance_m"`
	AvgSpacingM      float64  `json:"-"`
	HasAvgSpacing    bool     `json:"-"`
	Polyline         string   `json:"polyline"`
	Cells            []string `json:"cells"`
}

type runRecordJSON struct {
	runRecordFields
	AvgSpacingM *float64 `json:"avg_spacing_m"`
}

type runRecordFields RunRecord

func (r RunRecord) MarshalJSON() ([]byte, error) {
	out := runRecordJSON{runRecordFields: runRecordFields(r)}
	if r.HasAvgSpacing {
		avg := r.AvgSpacingM
		out.AvgSpacingM = &avg
	}
	return json.Marshal(out)
}

func (r *RunRecord) UnmarshalJSON(data []byte) error {
	var in runRecordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = RunRecord(in.runRecordFields)
	if in.AvgSpacingM != nil {
		r.AvgSpacingM = *in.AvgSpacingM
		r.HasAvgSpacing = true
	}
	return nil
}

// Stats of the run as computed when it was matched.
func (r RunRecord) Stats() runpath.Stats {
	stats := runpath.Stats{
		NumRawPoints:     r.NumRawPoints,
		NumCleanPoints:   r.NumCleanPoints,
		NumSnappedPoints: r.NumSnappedPoints,
		NumNodes:         r.NumNodes,
		TotalDistanceM:   r.TotalDistanceM,
	}
	if r.HasAvgSpacing {
		avg := r.AvgSpacingM
		stats.AvgSpacingM = &avg
	}
	return stats
}

// NewRunRecord flattens rp and indexes its snapped trace by h3 cell.
func NewRunRecord(id string, rp *runpath.RunPath) RunRecord {
	stats := rp.Stats()
	rec := RunRecord{
		ID:               id,
		StartNode:        rp.StartNode(),
		EndNode:          rp.EndNode(),
		NodeSequence:     rp.NodeSequence(),
		NumRawPoints:     stats.NumRawPoints,
		NumCleanPoints:   stats.NumCleanPoints,
		NumSnappedPoints: stats.NumSnappedPoints,
		NumNodes:         stats.NumNodes,
		TotalDistanceM:   stats.TotalDistanceM,
		Polyline:         rp.EncodedPolyline(),
		Cells:            CellsOf(rp.SnappedPoints()),
	}
	if stats.AvgSpacingM != nil {
		rec.AvgSpacingM = *stats.AvgSpacingM
		rec.HasAvgSpacing = true
	}
	return rec
}

// CellsOf returns the sorted distinct resolution 9 cells visited by points.
func CellsOf(points []datastructure.Coordinate) []string {
	set := make(map[string]struct{})
	for _, p := range points {
		cell := h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lon), h3Resolution)
		set[cell.String()] = struct{}{}
	}
	cells := make([]string, 0, len(set))
	for c := range set {
		cells = append(cells, c)
	}
	slices.Sort(cells)
	return cells
}
