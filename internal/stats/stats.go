// server/internal/stats/stats.go
// Package stats derives counts from the current set of garbage points.
package stats

import "spotmytrash-api-server/internal/models"

// Stats is recomputed from scratch on every update and never stored.
type Stats struct {
	Total    int `json:"total"`
	Verified int `json:"verified"`
	Cleaned  int `json:"cleaned"`
	Pending  int `json:"pending"`
}

// Compute counts points by status. Anything that is neither verified nor
// cleaned counts as pending, so Total == Verified+Cleaned+Pending.
func Compute(points []models.GarbagePoint) Stats {
	s := Stats{Total: len(points)}
	for _, p := range points {
		switch p.Status {
		case models.StatusVerified:
			s.Verified++
		case models.StatusCleaned:
			s.Cleaned++
		default:
			s.Pending++
		}
	}
	return s
}

// ByUser groups points per reporting user and computes stats for each group.
// Points without a user land under the empty key.
func ByUser(points []models.GarbagePoint) map[string]Stats {
	groups := make(map[string][]models.GarbagePoint)
	for _, p := range points {
		groups[p.UserID] = append(groups[p.UserID], p)
	}
	out := make(map[string]Stats, len(groups))
	for user, pts := range groups {
		out[user] = Compute(pts)
	}
	return out
}
