package utils

import (
	"math"
)

const EarthRadiusKM = 6371.0

// CalculateDistance returns the great-circle distance in kilometers.
func CalculateDistance(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKM * c
}

// DistanceMeters takes two [lng, lat] pairs.
func DistanceMeters(from, to []float64) float64 {
	if len(from) < 2 || len(to) < 2 {
		return math.Inf(1)
	}
	return CalculateDistance(from[1], from[0], to[1], to[0]) * 1000
}
