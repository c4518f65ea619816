package offline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"spotmytrash-api-server/internal/apperr"
	"spotmytrash-api-server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jpeg = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01}

func pinned() time.Time { return time.UnixMilli(1743606245000) }

func record(capturedAt time.Time) models.CaptureRecord {
	gps := models.NewGeoReading(-33.4569, -70.6483).WithAccuracy(5)
	return models.CaptureRecord{
		Photo:      models.Photo{Data: jpeg},
		GPS:        &gps,
		Device:     "android",
		CapturedAt: capturedAt,
	}
}

func TestStoreWritesPhotoAndSidecar(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "photos")
	store := NewWithClock(dir, pinned)
	captured := time.Date(2025, 4, 2, 15, 4, 5, 0, time.UTC)

	path, err := store.Store(context.Background(), record(captured))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "1743606245000.jpg"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, jpeg, data)

	raw, err := os.ReadFile(path + ".json")
	require.NoError(t, err)
	var meta models.CaptureSidecar
	require.NoError(t, json.Unmarshal(raw, &meta))
	require.NotNil(t, meta.GPS)
	assert.Equal(t, -33.4569, meta.GPS.Latitude)
	assert.Equal(t, -70.6483, meta.GPS.Longitude)
	require.NotNil(t, meta.GPS.Accuracy)
	assert.Equal(t, 5.0, *meta.GPS.Accuracy)
	assert.Equal(t, "android", meta.Device)
	assert.True(t, captured.Equal(meta.CapturedAt))
}

func TestStoreKeepsNullGPS(t *testing.T) {
	store := NewWithClock(t.TempDir(), pinned)
	rec := record(time.Now())
	rec.GPS = nil

	path, err := store.Store(context.Background(), rec)
	require.NoError(t, err)

	raw, err := os.ReadFile(path + SidecarSuffix)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"gps":null`)
}

func TestStoreAvoidsNameCollisions(t *testing.T) {
	store := NewWithClock(t.TempDir(), pinned)

	first, err := store.Store(context.Background(), record(time.Now()))
	require.NoError(t, err)
	second, err := store.Store(context.Background(), record(time.Now()))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, "1743606245000-1.jpg", filepath.Base(second))
}

func TestStoreLocalWriteFailure(t *testing.T) {
	parent := t.TempDir()
	blocker := filepath.Join(parent, "photos")
	require.NoError(t, os.WriteFile(blocker, []byte("not a dir"), 0o644))

	_, err := New(blocker).Store(context.Background(), record(time.Now()))
	assert.ErrorIs(t, err, apperr.ErrLocalWrite)
}

func TestListOldestFirst(t *testing.T) {
	dir := t.TempDir()
	clock := pinned()
	store := NewWithClock(dir, func() time.Time {
		clock = clock.Add(time.Millisecond)
		return clock
	})

	late := time.Date(2025, 4, 2, 16, 0, 0, 0, time.UTC)
	early := time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC)
	_, err := store.Store(context.Background(), record(late))
	require.NoError(t, err)
	_, err = store.Store(context.Background(), record(early))
	require.NoError(t, err)

	// a photo whose sidecar is garbage is skipped
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1.jpg"), jpeg, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1.jpg.json"), []byte("{"), 0o644))

	queued, err := store.List()
	require.NoError(t, err)
	require.Len(t, queued, 2)
	assert.True(t, early.Equal(queued[0].Sidecar.CapturedAt))
	assert.True(t, late.Equal(queued[1].Sidecar.CapturedAt))
	assert.Equal(t, queued[0].PhotoPath+SidecarSuffix, queued[0].SidecarPath)
}

func TestListMissingDir(t *testing.T) {
	queued, err := New(filepath.Join(t.TempDir(), "nope")).List()
	require.NoError(t, err)
	assert.Empty(t, queued)
}
