// server/internal/garbage/view.go
package garbage

import (
	"sync"
	"time"

	"spotmytrash-api-server/internal/models"
	"spotmytrash-api-server/internal/stats"
)

// View is what one observer shows: the last good snapshot and the last error.
// An error does not clear the points.
type View struct {
	mu        sync.RWMutex
	points    []models.GarbagePoint
	latestID  string
	stats     stats.Stats
	updatedAt time.Time
	err       error
}

// ViewState is a copy of a View at one instant.
type ViewState struct {
	Points    []models.GarbagePoint `json:"points"`
	LatestID  string                `json:"latestId,omitempty"`
	Stats     stats.Stats           `json:"stats"`
	UpdatedAt time.Time             `json:"updatedAt"`
	Err       error                 `json:"-"`
}

func (v *View) Apply(u Update) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if u.Err != nil {
		v.err = u.Err
		return
	}
	v.points = clonePoints(u.Points)
	v.latestID = u.LatestID
	v.stats = u.Stats
	v.updatedAt = u.At
	v.err = nil
}

func (v *View) State() ViewState {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return ViewState{
		Points:    clonePoints(v.points),
		LatestID:  v.latestID,
		Stats:     v.stats,
		UpdatedAt: v.updatedAt,
		Err:       v.err,
	}
}

// IsLatest tells presentation code which point to highlight.
func (s ViewState) IsLatest(id string) bool {
	return id != "" && id == s.LatestID
}
