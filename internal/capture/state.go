// server/internal/capture/state.go
package capture

// State is a step of the capture path.
type State int

const (
	Idle State = iota
	Capturing
	Captured
	RoutingDecision
	Uploading
	Uploaded
	UploadFailed
	WritingLocal
	StoredLocal
	LocalWriteFailed
)

var stateNames = [...]string{
	Idle:             "idle",
	Capturing:        "capturing",
	Captured:         "captured",
	RoutingDecision:  "routing_decision",
	Uploading:        "uploading",
	Uploaded:         "uploaded",
	UploadFailed:     "upload_failed",
	WritingLocal:     "writing_local",
	StoredLocal:      "stored_local",
	LocalWriteFailed: "local_write_failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal states have no transition out of them.
func (s State) Terminal() bool {
	switch s {
	case Uploaded, UploadFailed, StoredLocal, LocalWriteFailed:
		return true
	}
	return false
}

// Failed reports whether the session ended without persisting the capture.
func (s State) Failed() bool {
	return s == UploadFailed || s == LocalWriteFailed
}
