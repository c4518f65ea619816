// server/internal/models/geo_reading.go
package models

import "fmt"

// GeoReading is a latitude/longitude fix with an optional accuracy radius in meters.
// Field names match the "gps" sub-document stored remotely.
type GeoReading struct {
	Latitude  float64  `bson:"latitude" json:"latitude"`
	Longitude float64  `bson:"longitude" json:"longitude"`
	Accuracy  *float64 `bson:"accuracy,omitempty" json:"accuracy,omitempty"`
}

// NewGeoReading builds a reading without accuracy.
func NewGeoReading(lat, lon float64) GeoReading {
	return GeoReading{Latitude: lat, Longitude: lon}
}

// WithAccuracy returns a copy carrying the given accuracy in meters.
func (g GeoReading) WithAccuracy(meters float64) GeoReading {
	g.Accuracy = &meters
	return g
}

// Fields is the document form used when writing to the remote store.
// Accuracy is only present when known.
func (g GeoReading) Fields() map[string]any {
	fields := map[string]any{
		"latitude":  g.Latitude,
		"longitude": g.Longitude,
	}
	if g.Accuracy != nil {
		fields["accuracy"] = *g.Accuracy
	}
	return fields
}

func (g GeoReading) String() string {
	if g.Accuracy == nil {
		return fmt.Sprintf("%.6f,%.6f", g.Latitude, g.Longitude)
	}
	return fmt.Sprintf("%.6f,%.6f (±%.0fm)", g.Latitude, g.Longitude, *g.Accuracy)
}
