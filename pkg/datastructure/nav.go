package datastructure

import "github.com/paulmach/orb"

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func NewCoordinate(lat, lon float64) Coordinate {
	return Coordinate{
		Lat: lat,
		Lon: lon,
	}
}

// Point orb point, x is longitude.
func (c Coordinate) Point() orb.Point {
	return orb.Point{c.Lon, c.Lat}
}

func CoordinateFromPoint(p orb.Point) Coordinate {
	return Coordinate{Lat: p.Lat(), Lon: p.Lon()}
}

// LatLngs [[lat, lon], ...] as used by activity files and polyline encoding.
func LatLngs(coords []Coordinate) [][]float64 {
	res := make([][]float64, len(coords))
	for i, c := range coords {
		res[i] = []float64{c.Lat, c.Lon}
	}
	return res
}
