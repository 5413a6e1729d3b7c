package activity

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"lintang/runpathx/pkg/datastructure"
	"lintang/runpathx/pkg/server"
)

// Activity one recorded trace. Time is nil when the record carries no time stream.
type Activity struct {
	ID     string
	LatLng []datastructure.Coordinate
	Time   []float64
}

type stream[T any] struct {
	Type string `json:"type"`
	Data T      `json:"data"`
}

// Parse reads an activity record in one of three shapes:
//
//	{"latlng": [[lat, lon], ...], "time": [s, ...]}
//	{"latlng": {"data": [[lat, lon], ...]}, "time": {"data": [s, ...]}}
//	[{"type": "latlng", "data": [...]}, {"type": "time", "data": [...]}]
func Parse(data []byte) (Activity, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Activity{}, server.WrapErrorf(nil, server.ErrInput, "activity record is empty")
	}

	fields := map[string]json.RawMessage{}
	if trimmed[0] == '[' {
		var streams []stream[json.RawMessage]
		if err := json.Unmarshal(trimmed, &streams); err != nil {
			return Activity{}, server.WrapErrorf(err, server.ErrInput, "activity streams are malformed")
		}
		for _, s := range streams {
			fields[s.Type] = s.Data
		}
	} else if err := json.Unmarshal(trimmed, &fields); err != nil {
		return Activity{}, server.WrapErrorf(err, server.ErrInput, "activity record is malformed")
	}

	rawLatLng, ok := fields["latlng"]
	if !ok {
		return Activity{}, server.WrapErrorf(nil, server.ErrInput, "activity record has no latlng data")
	}
	var pairs [][]float64
	if err := decodeStream(rawLatLng, &pairs); err != nil {
		return Activity{}, server.WrapErrorf(err, server.ErrInput, "latlng data is malformed")
	}

	act := Activity{LatLng: make([]datastructure.Coordinate, len(pairs))}
	for i, p := range pairs {
		if len(p) < 2 {
			return Activity{}, server.WrapErrorf(nil, server.ErrInput, "latlng entry %d has %d values", i, len(p))
		}
		act.LatLng[i] = datastructure.NewCoordinate(p[0], p[1])
	}

	if rawTime, ok := fields["time"]; ok && !isNull(rawTime) {
		var times []float64
		if err := decodeStream(rawTime, &times); err != nil {
			return Activity{}, server.WrapErrorf(err, server.ErrInput, "time data is malformed")
		}
		act.Time = times
	}
	return act, nil
}

// decodeStream accepts either the bare value or an object wrapping it in "data".
func decodeStream[T any](raw json.RawMessage, out *T) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapped stream[T]
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return err
		}
		*out = wrapped.Data
		return nil
	}
	return json.Unmarshal(trimmed, out)
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

// LoadFile parses an activity file, the file name without extension becomes the activity id.
func LoadFile(path string) (Activity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Activity{}, server.WrapErrorf(err, server.ErrInput, "read activity %s", path)
	}
	act, err := Parse(data)
	if err != nil {
		return Activity{}, err
	}
	act.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return act, nil
}

// ListDir json activity files of dir in name order.
func ListDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, server.WrapErrorf(err, server.ErrInput, "read activity dir %s", dir)
	}
	files := []string{}
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}
