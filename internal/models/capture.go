// server/internal/models/capture.go
package models

import "time"

// DefaultDevice is the device tag used when the caller does not send one.
const DefaultDevice = "android"

// Photo is the captured blob as handed over by the camera.
type Photo struct {
	Data        []byte
	ContentType string
}

// CaptureRecord pairs a photo with the location fix taken right after it.
// GPS is nil when the fix failed or permission was denied.
type CaptureRecord struct {
	Photo      Photo
	GPS        *GeoReading
	Device     string
	UserID     string
	CapturedAt time.Time
}

// HasLocation reports whether the record carries coordinates.
func (r CaptureRecord) HasLocation() bool {
	return r.GPS != nil
}

// CaptureSidecar is the JSON metadata written next to an offline photo.
type CaptureSidecar struct {
	GPS        *GeoReading `json:"gps"`
	Device     string      `json:"device"`
	UserID     string      `json:"userId,omitempty"`
	CapturedAt time.Time   `json:"capturedAt"`
}

// LocalQueuedCapture is a capture persisted on local disk while offline.
type LocalQueuedCapture struct {
	PhotoPath   string         `json:"photoPath"`
	SidecarPath string         `json:"sidecarPath"`
	Sidecar     CaptureSidecar `json:"metadata"`
}
