// server/internal/upload/uploader.go
// Package upload implements the online path: photo blob, then photo document,
// then garbage point document. There is no transaction across the three steps;
// a failure part way leaves the earlier artifacts in place.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"spotmytrash-api-server/internal/apperr"
	"spotmytrash-api-server/internal/blobstore"
	"spotmytrash-api-server/internal/docstore"
	"spotmytrash-api-server/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Result links the two documents created for one capture.
type Result struct {
	Photo   models.PhotoDocument
	PointID string
}

type Uploader struct {
	docs  docstore.Store
	blobs blobstore.Store
	now   func() time.Time
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithClock sets the clock used for object keys.
func WithClock(now func() time.Time) Option {
	return func(u *Uploader) { u.now = now }
}

func New(docs docstore.Store, blobs blobstore.Store, opts ...Option) *Uploader {
	u := &Uploader{docs: docs, blobs: blobs, now: time.Now}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Upload pushes the photo and creates the PhotoDocument and GarbagePointDocument.
func (u *Uploader) Upload(ctx context.Context, rec models.CaptureRecord) (Result, error) {
	if rec.GPS == nil {
		return Result{}, apperr.New(apperr.ErrMissingGeoReading, "upload: a garbage point needs coordinates")
	}

	contentType, ext := rec.Photo.MediaType()
	path := u.objectKey(ext)
	size := int64(len(rec.Photo.Data))

	if err := u.blobs.Upload(ctx, path, bytes.NewReader(rec.Photo.Data), size, contentType); err != nil {
		return Result{}, apperr.Wrap(apperr.ErrBlobUpload, err, "upload: push photo")
	}
	url, err := u.blobs.URL(ctx, path)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.ErrBlobUpload, err, "upload: resolve photo url")
	}

	device := rec.Device
	if device == "" {
		device = models.DefaultDevice
	}
	photo := models.PhotoDocument{
		URL:         url,
		StoragePath: path,
		Device:      device,
		GPS:         *rec.GPS,
		ContentType: contentType,
		Size:        size,
		Hash:        rec.Photo.Hash(),
	}
	photo.ID, err = u.docs.Create(ctx, models.CollectionPhotos, map[string]any{
		"url":         photo.URL,
		"storagePath": photo.StoragePath,
		"device":      photo.Device,
		"gps":         photo.GPS.Fields(),
		"contentType": photo.ContentType,
		"size":        photo.Size,
		"hash":        photo.Hash,
	})
	if err != nil {
		zap.L().Warn("upload: photo blob left without metadata", zap.String("path", path))
		return Result{}, apperr.Wrap(apperr.ErrMetadataWrite, err, "upload: create photo document")
	}

	pointFields := map[string]any{
		"gps":     rec.GPS.Fields(),
		"photoId": photo.ID,
		"status":  string(models.StatusPending),
	}
	if rec.UserID != "" {
		pointFields["userId"] = rec.UserID
	}
	pointID, err := u.docs.Create(ctx, models.CollectionGarbagePoints, pointFields)
	if err != nil {
		zap.L().Warn("upload: photo document left without garbage point", zap.String("photoId", photo.ID))
		return Result{}, apperr.Wrap(apperr.ErrMetadataWrite, err, "upload: create garbage point")
	}

	zap.L().Info("upload: garbage point created",
		zap.String("pointId", pointID),
		zap.String("photoId", photo.ID),
		zap.String("gps", rec.GPS.String()),
	)
	return Result{Photo: photo, PointID: pointID}, nil
}

func (u *Uploader) objectKey(ext string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("photos/%d-%s%s", u.now().UnixMilli(), id, ext)
}
