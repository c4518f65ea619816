// server/internal/geo/geojson.go
package geo

import (
	"time"

	"spotmytrash-api-server/internal/models"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// FeatureCollection turns points into GeoJSON features. Coordinates are
// longitude first, as GeoJSON requires.
func FeatureCollection(points []models.GarbagePoint) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(points))}
	for _, p := range points {
		props := map[string]interface{}{
			"status":    string(p.Status),
			"photoId":   p.PhotoID,
			"createdAt": p.CreatedAt.UTC().Format(time.RFC3339),
		}
		if p.PhotoURL != "" {
			props["photoUrl"] = p.PhotoURL
		}
		if p.UserID != "" {
			props["userId"] = p.UserID
		}
		if p.GPS.Accuracy != nil {
			props["accuracy"] = *p.GPS.Accuracy
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         p.ID,
			Geometry:   geom.NewPointFlat(geom.XY, []float64{p.GPS.Longitude, p.GPS.Latitude}).SetSRID(4326),
			Properties: props,
		})
	}
	return fc
}

// MarshalFeatureCollection encodes points as a GeoJSON document.
func MarshalFeatureCollection(points []models.GarbagePoint) ([]byte, error) {
	data, err := FeatureCollection(points).MarshalJSON()
	if err != nil {
		return nil, eris.Wrap(err, "geo: encode feature collection")
	}
	return data, nil
}
