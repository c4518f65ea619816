// server/internal/garbage/normalize.go
package garbage

import (
	"math"
	"time"

	"spotmytrash-api-server/internal/docstore"
	"spotmytrash-api-server/internal/models"

	"go.uber.org/zap"
)

// ReasonMissingGPS is the only rejection: latitude or longitude absent or not a number.
const ReasonMissingGPS = "missing gps"

// Result is the outcome of normalizing one raw document: Ok or Rejected.
type Result interface {
	isResult()
}

type Ok struct {
	Point models.GarbagePoint
}

type Rejected struct {
	ID     string
	Reason string
}

func (Ok) isResult()       {}
func (Rejected) isResult() {}

// Normalize validates a raw garbage point document. Latitude and longitude must
// be numeric; everything else falls back to a default. Status is written by
// moderation outside this service, so any value other than verified or cleaned
// reads as pending.
func Normalize(doc docstore.Document) Result {
	gps, ok := doc.Fields["gps"].(map[string]any)
	if !ok {
		return Rejected{ID: doc.ID, Reason: ReasonMissingGPS}
	}
	lat, latOK := number(gps["latitude"])
	lon, lonOK := number(gps["longitude"])
	if !latOK || !lonOK {
		return Rejected{ID: doc.ID, Reason: ReasonMissingGPS}
	}

	reading := models.NewGeoReading(lat, lon)
	if acc, ok := number(gps["accuracy"]); ok && acc >= 0 {
		reading = reading.WithAccuracy(acc)
	}

	status := models.StatusPending
	if raw := doc.Fields["status"]; raw != nil {
		s, isString := raw.(string)
		if parsed, known := models.ParseStatus(s); isString && known {
			status = parsed
		} else {
			zap.L().Debug("garbage: unrecognized status, using pending",
				zap.String("id", doc.ID), zap.Any("status", raw))
		}
	}

	return Ok{Point: models.GarbagePoint{
		ID:        doc.ID,
		GPS:       reading,
		PhotoID:   str(doc.Fields["photoId"]),
		PhotoURL:  str(doc.Fields["photoUrl"]),
		CreatedAt: timestamp(doc.Fields[docstore.FieldCreatedAt]),
		Status:    status,
		UserID:    str(doc.Fields["userId"]),
	}}
}

// NormalizeAll keeps the order of docs and drops the rejected ones.
func NormalizeAll(docs []docstore.Document) ([]models.GarbagePoint, []Rejected) {
	points := make([]models.GarbagePoint, 0, len(docs))
	var rejected []Rejected
	for _, doc := range docs {
		switch r := Normalize(doc).(type) {
		case Ok:
			points = append(points, r.Point)
		case Rejected:
			rejected = append(rejected, r)
		}
	}
	return points, rejected
}

func number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func timestamp(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err == nil {
			return parsed
		}
	}
	return time.Time{}
}
