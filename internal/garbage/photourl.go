// server/internal/garbage/photourl.go
package garbage

import (
	"context"
	"errors"
	"time"

	"spotmytrash-api-server/internal/docstore"
	"spotmytrash-api-server/internal/models"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const resolveConcurrency = 8

// PhotoURLs looks up photo URLs by photo id. Photo documents never change, so
// hits are cached; misses are not, the photo may simply not be visible yet.
type PhotoURLs struct {
	docs  docstore.Store
	cache *cache.Cache
}

func NewPhotoURLs(docs docstore.Store, ttl time.Duration) *PhotoURLs {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &PhotoURLs{docs: docs, cache: cache.New(ttl, 2*ttl)}
}

// Resolve returns "" when the photo cannot be found or read.
func (p *PhotoURLs) Resolve(ctx context.Context, photoID string) string {
	if photoID == "" {
		return ""
	}
	if url, ok := p.cache.Get(photoID); ok {
		return url.(string)
	}
	doc, err := p.docs.Get(ctx, models.CollectionPhotos, photoID)
	if err != nil {
		if !errors.Is(err, docstore.ErrNotFound) {
			zap.L().Debug("garbage: photo lookup failed", zap.String("photoId", photoID), zap.Error(err))
		}
		return ""
	}
	url := str(doc.Fields["url"])
	if url != "" {
		p.cache.SetDefault(photoID, url)
	}
	return url
}

// Fill sets PhotoURL on every point that lacks one.
func (p *PhotoURLs) Fill(ctx context.Context, points []models.GarbagePoint) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveConcurrency)
	for i := range points {
		if points[i].PhotoURL != "" || points[i].PhotoID == "" {
			continue
		}
		i := i
		g.Go(func() error {
			points[i].PhotoURL = p.Resolve(gctx, points[i].PhotoID)
			return nil
		})
	}
	_ = g.Wait()
}

func (p *PhotoURLs) Flush() {
	p.cache.Flush()
}
