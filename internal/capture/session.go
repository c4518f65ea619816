// server/internal/capture/session.go
// Package capture turns a photo and a location fix into a CaptureRecord and
// tracks that record through routing.
package capture

import (
	"context"
	"errors"
	"sync"
	"time"

	"spotmytrash-api-server/internal/apperr"
	"spotmytrash-api-server/internal/models"
	"spotmytrash-api-server/internal/routing"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const DefaultFixTimeout = 10 * time.Second

var (
	ErrSessionBusy     = errors.New("capture: session is busy")
	ErrSessionFinished = errors.New("capture: session already finished")
	ErrNothingCaptured = errors.New("capture: nothing captured")
)

// Camera produces the photo blob.
type Camera interface {
	TakePhoto(ctx context.Context) (models.Photo, error)
}

// Locator produces a location fix. A nil reading with a nil error means denied.
type Locator interface {
	RequestFix(ctx context.Context) (*models.GeoReading, error)
}

// Router is the part of routing.Router a session drives.
type Router interface {
	Decide(ctx context.Context) routing.Path
	Dispatch(ctx context.Context, path routing.Path, rec models.CaptureRecord) (routing.Result, error)
}

type Session struct {
	camera     Camera
	locator    Locator
	device     string
	userID     string
	fixTimeout time.Duration
	now        func() time.Time

	mu     sync.Mutex
	state  State
	record *models.CaptureRecord
	result routing.Result
	err    error
}

type Option func(*Session)

func WithFixTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.fixTimeout = d
		}
	}
}

func WithDevice(device string) Option {
	return func(s *Session) {
		if device != "" {
			s.device = device
		}
	}
}

func WithUserID(userID string) Option {
	return func(s *Session) { s.userID = userID }
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

func NewSession(camera Camera, locator Locator, opts ...Option) *Session {
	s := &Session{
		camera:     camera,
		locator:    locator,
		device:     models.DefaultDevice,
		fixTimeout: DefaultFixTimeout,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Record returns the held capture, if any.
func (s *Session) Record() (models.CaptureRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record == nil {
		return models.CaptureRecord{}, false
	}
	return *s.record, true
}

// Outcome returns what Submit produced once the session is terminal.
func (s *Session) Outcome() (routing.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.err
}

// Capture takes the photo and then asks for a fix. Only a camera failure fails
// the capture; a missing fix leaves GPS nil.
func (s *Session) Capture(ctx context.Context) (models.CaptureRecord, error) {
	if err := s.transition(Capturing, Idle); err != nil {
		return models.CaptureRecord{}, err
	}

	photo, err := s.camera.TakePhoto(ctx)
	if err != nil {
		s.set(Idle)
		return models.CaptureRecord{}, eris.Wrap(err, "capture: take photo")
	}

	rec := models.CaptureRecord{
		Photo:      photo,
		GPS:        s.fix(ctx),
		Device:     s.device,
		UserID:     s.userID,
		CapturedAt: s.now(),
	}

	s.mu.Lock()
	s.record = &rec
	s.state = Captured
	s.mu.Unlock()

	zap.L().Debug("capture: photo taken", zap.Bool("hasLocation", rec.HasLocation()), zap.Int("bytes", len(photo.Data)))
	return rec, nil
}

// fix never outlives fixTimeout, even if the locator ignores its context.
func (s *Session) fix(ctx context.Context) *models.GeoReading {
	ctx, cancel := context.WithTimeout(ctx, s.fixTimeout)
	defer cancel()

	type answer struct {
		gps *models.GeoReading
		err error
	}
	done := make(chan answer, 1)
	go func() {
		gps, err := s.locator.RequestFix(ctx)
		done <- answer{gps, err}
	}()

	var a answer
	select {
	case a = <-done:
	case <-ctx.Done():
		a.err = ctx.Err()
	}
	if a.err == nil && a.gps == nil {
		a.err = errors.New("permission denied")
	}
	if a.err != nil {
		err := apperr.Wrap(apperr.ErrLocationUnavailable, a.err, "capture: request fix")
		zap.L().Warn("capture: continuing without location", zap.Error(err))
		return nil
	}
	return a.gps
}

// Discard drops the held record so the user can retake.
func (s *Session) Discard() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.state == Captured:
		s.record = nil
		s.state = Idle
		return nil
	case s.state.Terminal():
		return ErrSessionFinished
	case s.state == Idle:
		return ErrNothingCaptured
	default:
		return ErrSessionBusy
	}
}

// Submit hands the held record to the router exactly once. The session ends in
// Uploaded, StoredLocal or one of the failure states and stays there.
func (s *Session) Submit(ctx context.Context, router Router) (routing.Result, error) {
	s.mu.Lock()
	switch {
	case s.state.Terminal():
		s.mu.Unlock()
		return routing.Result{}, ErrSessionFinished
	case s.state == Idle:
		s.mu.Unlock()
		return routing.Result{}, ErrNothingCaptured
	case s.state != Captured:
		s.mu.Unlock()
		return routing.Result{}, ErrSessionBusy
	}
	rec := *s.record
	s.record = nil
	s.state = RoutingDecision
	s.mu.Unlock()

	path := router.Decide(ctx)
	pending, ok, failed := Uploading, Uploaded, UploadFailed
	if path == routing.PathOffline {
		pending, ok, failed = WritingLocal, StoredLocal, LocalWriteFailed
	}
	s.set(pending)

	res, err := router.Dispatch(ctx, path, rec)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.result, s.err = res, err
	if err != nil {
		s.state = failed
		return res, err
	}
	s.state = ok
	return res, nil
}

func (s *Session) transition(to State, from State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == from {
		s.state = to
		return nil
	}
	if s.state.Terminal() {
		return ErrSessionFinished
	}
	return ErrSessionBusy
}

func (s *Session) set(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}
