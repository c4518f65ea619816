package routing

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"spotmytrash-api-server/internal/apperr"
	"spotmytrash-api-server/internal/blobstore"
	"spotmytrash-api-server/internal/docstore"
	"spotmytrash-api-server/internal/models"
	"spotmytrash-api-server/internal/offline"
	"spotmytrash-api-server/internal/reachability"
	"spotmytrash-api-server/internal/upload"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jpeg = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01}

// countingDocs and countingBlobs record whether the remote interfaces were touched.
type countingDocs struct {
	docstore.Store
	creates int
}

func (c *countingDocs) Create(ctx context.Context, coll string, f map[string]any) (string, error) {
	c.creates++
	return c.Store.Create(ctx, coll, f)
}

type countingBlobs struct {
	blobstore.Store
	uploads int
}

func (c *countingBlobs) Upload(ctx context.Context, p string, r io.Reader, n int64, ct string) error {
	c.uploads++
	return c.Store.Upload(ctx, p, r, n, ct)
}

type recorder struct {
	routed []Result
	failed []error
}

func (r *recorder) Routed(_ context.Context, _ models.CaptureRecord, res Result) {
	r.routed = append(r.routed, res)
}

func (r *recorder) Failed(_ context.Context, _ models.CaptureRecord, _ Path, err error) {
	r.failed = append(r.failed, err)
}

type failingLocal struct{ err error }

func (f failingLocal) Store(context.Context, models.CaptureRecord) (string, error) { return "", f.err }

type fixture struct {
	docs  *countingDocs
	blobs *countingBlobs
	dir   string
	obs   *recorder
}

func newFixture(t *testing.T, reachable bool) (*Router, *fixture) {
	t.Helper()
	f := &fixture{
		docs:  &countingDocs{Store: docstore.NewMemory()},
		blobs: &countingBlobs{Store: blobstore.NewMemory("https://cdn.test")},
		dir:   filepath.Join(t.TempDir(), "photos"),
		obs:   &recorder{},
	}
	r := New(
		reachability.Static(reachable),
		upload.New(f.docs, f.blobs),
		offline.New(f.dir),
		f.obs,
	)
	return r, f
}

func capture(withGPS bool) models.CaptureRecord {
	rec := models.CaptureRecord{Photo: models.Photo{Data: jpeg}, Device: "android", CapturedAt: time.Now()}
	if withGPS {
		gps := models.NewGeoReading(-33.4569, -70.6483).WithAccuracy(5)
		rec.GPS = &gps
	}
	return rec
}

func TestRouteOnline(t *testing.T) {
	r, f := newFixture(t, true)

	res, err := r.Route(context.Background(), capture(true))
	require.NoError(t, err)
	assert.Equal(t, PathOnline, res.Path)
	assert.NotEmpty(t, res.Locator)
	assert.NotEmpty(t, res.PhotoID)
	assert.NotEmpty(t, res.PhotoURL)
	assert.Equal(t, 1, f.blobs.uploads)
	assert.Equal(t, 2, f.docs.creates)
	assert.Len(t, f.obs.routed, 1)

	_, err = os.Stat(f.dir)
	assert.True(t, os.IsNotExist(err), "online path never touches local storage")
}

func TestRouteOfflineNeverTouchesRemote(t *testing.T) {
	r, f := newFixture(t, false)

	res, err := r.Route(context.Background(), capture(true))
	require.NoError(t, err)
	assert.Equal(t, PathOffline, res.Path)
	assert.FileExists(t, res.Locator)
	assert.FileExists(t, res.Locator+offline.SidecarSuffix)
	assert.Zero(t, f.blobs.uploads)
	assert.Zero(t, f.docs.creates)
}

func TestRouteOfflineAcceptsMissingGPS(t *testing.T) {
	r, _ := newFixture(t, false)

	res, err := r.Route(context.Background(), capture(false))
	require.NoError(t, err)
	assert.Equal(t, PathOffline, res.Path)
}

func TestRouteOnlineFailureDoesNotFallBack(t *testing.T) {
	r, f := newFixture(t, true)

	_, err := r.Route(context.Background(), capture(false))
	assert.ErrorIs(t, err, apperr.ErrRouting)
	assert.ErrorIs(t, err, apperr.ErrMissingGeoReading)
	assert.Len(t, f.obs.failed, 1)
	assert.Empty(t, f.obs.routed)

	_, statErr := os.Stat(f.dir)
	assert.True(t, os.IsNotExist(statErr), "no automatic fallback to offline")
}

func TestRouteOfflineFailure(t *testing.T) {
	boom := errors.New("disk full")
	r := New(reachability.Static(false), nil, failingLocal{err: apperr.Wrap(apperr.ErrLocalWrite, boom, "")})

	_, err := r.Route(context.Background(), capture(true))
	assert.ErrorIs(t, err, apperr.ErrRouting)
	assert.ErrorIs(t, err, apperr.ErrLocalWrite)
	assert.ErrorIs(t, err, boom)
}

func TestDecideAsksEveryTime(t *testing.T) {
	calls := 0
	r := New(reachability.Func(func(context.Context) bool {
		calls++
		return calls%2 == 1
	}), nil, nil)

	assert.Equal(t, PathOnline, r.Decide(context.Background()))
	assert.Equal(t, PathOffline, r.Decide(context.Background()))
	assert.Equal(t, 2, calls)
}
