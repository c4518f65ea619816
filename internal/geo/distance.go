// server/internal/geo/distance.go
// Package geo filters garbage points by great-circle distance and exports them for maps.
package geo

import (
	"math"

	"spotmytrash-api-server/internal/models"
)

// EarthRadiusMeters is the spherical-Earth radius used by Distance.
const EarthRadiusMeters = 6371000.0

// Distance is the haversine distance in meters between two readings in degrees.
func Distance(a, b models.GeoReading) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// rounding can push h past 1 for antipodal pairs
	h = math.Min(1, h)
	return EarthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Within keeps the points no farther than radius meters from center, in input order.
func Within(center models.GeoReading, radius float64, points []models.GarbagePoint) []models.GarbagePoint {
	out := make([]models.GarbagePoint, 0, len(points))
	for _, p := range points {
		if Distance(center, p.GPS) <= radius {
			out = append(out, p)
		}
	}
	return out
}

func CountWithin(center models.GeoReading, radius float64, points []models.GarbagePoint) int {
	n := 0
	for _, p := range points {
		if Distance(center, p.GPS) <= radius {
			n++
		}
	}
	return n
}

// Nearest returns the point closest to center and its distance.
func Nearest(center models.GeoReading, points []models.GarbagePoint) (models.GarbagePoint, float64, bool) {
	if len(points) == 0 {
		return models.GarbagePoint{}, 0, false
	}
	best, bestDist := points[0], Distance(center, points[0].GPS)
	for _, p := range points[1:] {
		if d := Distance(center, p.GPS); d < bestDist {
			best, bestDist = p, d
		}
	}
	return best, bestDist, true
}
