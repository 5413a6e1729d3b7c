package geo

import (
	"math"

	"lintang/runpathx/pkg/datastructure"
)

// mean earth radius, meters
const earthRadiusM = 6371000.0

type Location struct {
	Lat float64
	Lon float64
}

func NewLocation(lat, lon float64) Location {
	return Location{
		Lat: lat,
		Lon: lon,
	}
}

// HaversineDistance great-circle distance in meters.
//
// https://www.movable-type.co.uk/scripts/latlong.html
func HaversineDistance(from, to Location) float64 {
	fromLat := degToRad(from.Lat)
	toLat := degToRad(to.Lat)
	dLat := toLat - fromLat
	dLon := degToRad(to.Lon - from.Lon)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(fromLat)*math.Cos(toLat)*math.Sin(dLon/2)*math.Sin(dLon/2)
	if a > 1 {
		a = 1
	}
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}

func CalculateHaversineDistance(latOne, longOne, latTwo, longTwo float64) float64 {
	return HaversineDistance(NewLocation(latOne, longOne), NewLocation(latTwo, longTwo))
}

// PointDistance haversine meters between two coordinates.
func PointDistance(a, b datastructure.Coordinate) float64 {
	return CalculateHaversineDistance(a.Lat, a.Lon, b.Lat, b.Lon)
}

//	φ is latitude, λ is longitude
//
// https://www.movable-type.co.uk/scripts/latlong.html
func MidPoint(lat1, lon1 float64, lat2, lon2 float64) (float64, float64) {
	p1LatRad := degToRad(lat1)
	p2LatRad := degToRad(lat2)

	diffLon := degToRad(lon2 - lon1)

	bx := math.Cos(p2LatRad) * math.Cos(diffLon)
	by := math.Cos(p2LatRad) * math.Sin(diffLon)

	newLon := degToRad(lon1) + math.Atan2(by, math.Cos(p1LatRad)+bx)
	newLat := math.Atan2(math.Sin(p1LatRad)+math.Sin(p2LatRad), math.Sqrt((math.Cos(p1LatRad)+bx)*(math.Cos(p1LatRad)+bx)+by*by))

	return radToDeg(newLat), radToDeg(newLon)
}

func degToRad(d float64) float64 {
	return d * math.Pi / 180.0
}

func radToDeg(r float64) float64 {
	return 180.0 * r / math.Pi
}
