// server/internal/capture/adapters.go
package capture

import (
	"context"
	"errors"
	"os"

	"spotmytrash-api-server/internal/models"

	"github.com/rotisserie/eris"
)

var ErrEmptyPhoto = errors.New("capture: empty photo")

// FileCamera "takes" a photo by reading an image file. The CLI uses it.
type FileCamera struct {
	Path        string
	ContentType string
}

func (c FileCamera) TakePhoto(ctx context.Context) (models.Photo, error) {
	if err := ctx.Err(); err != nil {
		return models.Photo{}, err
	}
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return models.Photo{}, eris.Wrapf(err, "capture: read %s", c.Path)
	}
	if len(data) == 0 {
		return models.Photo{}, ErrEmptyPhoto
	}
	return models.Photo{Data: data, ContentType: c.ContentType}, nil
}

// BytesCamera hands back a photo that was already received, e.g. a multipart upload.
type BytesCamera models.Photo

func (c BytesCamera) TakePhoto(context.Context) (models.Photo, error) {
	if len(c.Data) == 0 {
		return models.Photo{}, ErrEmptyPhoto
	}
	return models.Photo(c), nil
}

// StaticLocator returns a fixed reading. A nil Reading behaves like a denied permission.
type StaticLocator struct {
	Reading *models.GeoReading
}

func (l StaticLocator) RequestFix(ctx context.Context) (*models.GeoReading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.Reading == nil {
		return nil, nil
	}
	gps := *l.Reading
	return &gps, nil
}
