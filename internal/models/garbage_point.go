// server/internal/models/garbage_point.go
package models

import "time"

// Collection names shared with the mobile clients.
const (
	CollectionGarbagePoints = "garbagePoints"
	CollectionPhotos        = "photos"
)

// Status is the moderation state of a garbage point.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusCleaned  Status = "cleaned"
)

// ParseStatus maps a raw status; an empty value means pending.
func ParseStatus(raw string) (Status, bool) {
	switch Status(raw) {
	case "", StatusPending:
		return StatusPending, true
	case StatusVerified:
		return StatusVerified, true
	case StatusCleaned:
		return StatusCleaned, true
	}
	return "", false
}

// PhotoDocument is the metadata stored for every uploaded blob.
type PhotoDocument struct {
	ID          string     `json:"id"`
	URL         string     `json:"url"`
	StoragePath string     `json:"storagePath"`
	CreatedAt   time.Time  `json:"createdAt"`
	Device      string     `json:"device"`
	GPS         GeoReading `json:"gps"`
	ContentType string     `json:"contentType"`
	Size        int64      `json:"size"`
	Hash        string     `json:"hash"`
}

// GarbagePointDocument is a reported point as written to the remote store.
type GarbagePointDocument struct {
	ID        string     `json:"id"`
	GPS       GeoReading `json:"gps"`
	PhotoID   string     `json:"photoId"`
	CreatedAt time.Time  `json:"createdAt"`
	Status    Status     `json:"status"`
	UserID    string     `json:"userId,omitempty"`
}

// GarbagePoint is the validated, normalized view of a GarbagePointDocument.
type GarbagePoint struct {
	ID        string     `json:"id"`
	GPS       GeoReading `json:"gps"`
	PhotoID   string     `json:"photoId"`
	PhotoURL  string     `json:"photoUrl"`
	CreatedAt time.Time  `json:"createdAt"`
	Status    Status     `json:"status"`
	UserID    string     `json:"userId,omitempty"`
}
