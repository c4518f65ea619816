// server/internal/offline/store.go
// Package offline persists captures on local disk when the remote store is unreachable.
// Nothing here uploads queued captures later; List only reports what is waiting.
package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"spotmytrash-api-server/internal/apperr"
	"spotmytrash-api-server/internal/models"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// SidecarSuffix is appended to the photo file name for its metadata file.
const SidecarSuffix = ".json"

type Store struct {
	dir string
	now func() time.Time
}

func New(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// NewWithClock lets tests pin the timestamp-derived file names.
func NewWithClock(dir string, now func() time.Time) *Store {
	return &Store{dir: dir, now: now}
}

// Dir is the directory holding queued captures.
func (s *Store) Dir() string { return s.dir }

// Store writes the photo and its JSON sidecar and returns the photo path.
func (s *Store) Store(ctx context.Context, rec models.CaptureRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", apperr.Wrap(apperr.ErrLocalWrite, err, "offline: store")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", apperr.Wrap(apperr.ErrLocalWrite, err, "offline: ensure dir")
	}

	_, ext := rec.Photo.MediaType()
	photoPath, err := s.reserve(ext)
	if err != nil {
		return "", apperr.Wrap(apperr.ErrLocalWrite, err, "offline: reserve file name")
	}

	if err := writeAtomic(photoPath, rec.Photo.Data); err != nil {
		os.Remove(photoPath)
		return "", apperr.Wrap(apperr.ErrLocalWrite, err, "offline: write photo")
	}

	device := rec.Device
	if device == "" {
		device = models.DefaultDevice
	}
	meta, err := json.Marshal(models.CaptureSidecar{
		GPS:        rec.GPS,
		Device:     device,
		UserID:     rec.UserID,
		CapturedAt: rec.CapturedAt.UTC(),
	})
	if err != nil {
		os.Remove(photoPath)
		return "", apperr.Wrap(apperr.ErrLocalWrite, err, "offline: encode sidecar")
	}
	if err := writeAtomic(photoPath+SidecarSuffix, meta); err != nil {
		os.Remove(photoPath)
		return "", apperr.Wrap(apperr.ErrLocalWrite, err, "offline: write sidecar")
	}

	zap.L().Info("offline: capture queued locally",
		zap.String("path", photoPath),
		zap.Bool("hasGPS", rec.GPS != nil),
	)
	return photoPath, nil
}

// List returns queued captures, oldest first. Photos without a readable sidecar are skipped.
func (s *Store) List() ([]models.LocalQueuedCapture, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []models.LocalQueuedCapture{}, nil
		}
		return nil, eris.Wrapf(err, "offline: read dir %s", s.dir)
	}

	queued := []models.LocalQueuedCapture{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, SidecarSuffix) {
			continue
		}
		sidecarPath := filepath.Join(s.dir, name)
		photoPath := strings.TrimSuffix(sidecarPath, SidecarSuffix)
		if _, err := os.Stat(photoPath); err != nil {
			continue
		}
		raw, err := os.ReadFile(sidecarPath)
		if err != nil {
			zap.L().Warn("offline: unreadable sidecar", zap.String("path", sidecarPath), zap.Error(err))
			continue
		}
		var meta models.CaptureSidecar
		if err := json.Unmarshal(raw, &meta); err != nil {
			zap.L().Warn("offline: malformed sidecar", zap.String("path", sidecarPath), zap.Error(err))
			continue
		}
		queued = append(queued, models.LocalQueuedCapture{
			PhotoPath:   photoPath,
			SidecarPath: sidecarPath,
			Sidecar:     meta,
		})
	}
	sort.Slice(queued, func(i, j int) bool {
		return queued[i].Sidecar.CapturedAt.Before(queued[j].Sidecar.CapturedAt)
	})
	return queued, nil
}

// reserve claims a timestamp-derived file name, adding a counter on collision.
func (s *Store) reserve(ext string) (string, error) {
	base := fmt.Sprintf("%d", s.now().UnixMilli())
	for i := 0; i < 1000; i++ {
		name := base + ext
		if i > 0 {
			name = fmt.Sprintf("%s-%d%s", base, i, ext)
		}
		path := filepath.Join(s.dir, name)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		return path, f.Close()
	}
	return "", eris.Errorf("offline: no free file name for %s", base)
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
