// server/internal/garbage/latest.go
package garbage

import (
	"spotmytrash-api-server/internal/docstore"
	"spotmytrash-api-server/internal/models"
)

// Latest returns the id of the most recently created point. Results ordered by
// createdAt are descending, so that is the first one; any other order needs a scan.
func Latest(points []models.GarbagePoint, orderField string) (string, bool) {
	if len(points) == 0 {
		return "", false
	}
	if orderField == "" || orderField == docstore.FieldCreatedAt {
		return points[0].ID, true
	}
	latest := points[0]
	for _, p := range points[1:] {
		if p.CreatedAt.After(latest.CreatedAt) {
			latest = p
		}
	}
	return latest.ID, true
}
