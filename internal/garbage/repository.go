// server/internal/garbage/repository.go
// Package garbage reads garbage points from the document store: one-shot
// fetches, live subscriptions and the normalization applied to both.
package garbage

import (
	"context"
	"sync"
	"time"

	"spotmytrash-api-server/internal/apperr"
	"spotmytrash-api-server/internal/docstore"
	"spotmytrash-api-server/internal/models"
	"spotmytrash-api-server/internal/stats"

	"go.uber.org/zap"
)

// FieldStatus can be used as an order field besides createdAt.
const FieldStatus = "status"

// Update is one subscription delivery: a full replacement of the point list,
// or a terminal error after which the channel is closed.
type Update struct {
	Points   []models.GarbagePoint `json:"points"`
	LatestID string                `json:"latestId,omitempty"`
	Stats    stats.Stats           `json:"stats"`
	Rejected int                   `json:"rejected"`
	At       time.Time             `json:"at"`
	Err      error                 `json:"-"`
}

// Observer sees every normalization pass and subscription lifetime.
type Observer interface {
	Normalized(kept, rejected int)
	SubscriptionOpened()
	SubscriptionClosed()
}

type Repository struct {
	docs       docstore.Store
	orderField string
	userID     string
	limit      int64
	photos     *PhotoURLs
	observers  []Observer

	mu     sync.RWMutex
	points []models.GarbagePoint
}

type Option func(*Repository)

// WithOrderField orders by createdAt (default) or status, always descending.
func WithOrderField(field string) Option {
	return func(r *Repository) { r.orderField = field }
}

// WithUserID restricts every query to one reporting user.
func WithUserID(userID string) Option {
	return func(r *Repository) { r.userID = userID }
}

func WithLimit(limit int64) Option {
	return func(r *Repository) { r.limit = limit }
}

func WithPhotoURLs(p *PhotoURLs) Option {
	return func(r *Repository) { r.photos = p }
}

func WithObserver(o Observer) Option {
	return func(r *Repository) { r.observers = append(r.observers, o) }
}

func NewRepository(docs docstore.Store, opts ...Option) *Repository {
	r := &Repository{docs: docs, orderField: docstore.FieldCreatedAt}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BuildQuery always orders descending. Unknown order fields fall back to createdAt.
func (r *Repository) BuildQuery(orderField, userID string) docstore.Query {
	switch orderField {
	case docstore.FieldCreatedAt, FieldStatus:
	default:
		if orderField != "" {
			zap.L().Warn("garbage: unsupported order field, using createdAt", zap.String("field", orderField))
		}
		orderField = docstore.FieldCreatedAt
	}
	q := docstore.Query{
		Collection: models.CollectionGarbagePoints,
		OrderBy:    orderField,
		Descending: true,
		Limit:      r.limit,
	}
	if userID != "" {
		q.Where = append(q.Where, docstore.Filter{Field: "userId", Value: userID})
	}
	return q
}

// Query is the query built from the repository's own options.
func (r *Repository) Query() docstore.Query {
	return r.BuildQuery(r.orderField, r.userID)
}

func (r *Repository) OrderField() string {
	return r.Query().OrderBy
}

// FetchOnce runs the query once. On error the previously held points stay as they were.
func (r *Repository) FetchOnce(ctx context.Context) ([]models.GarbagePoint, error) {
	docs, err := r.docs.Query(ctx, r.Query())
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrFetch, err, "garbage: fetch points")
	}
	points, _ := r.normalize(ctx, docs)
	r.hold(points)
	return clonePoints(points), nil
}

// Points returns the last successfully fetched or delivered points.
func (r *Repository) Points() []models.GarbagePoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return clonePoints(r.points)
}

// Subscribe opens a live query. Every change delivers the whole current point
// list. A transport error is delivered once and closes the channel; there is no
// reconnect. The caller must call the returned CancelFunc.
func (r *Repository) Subscribe(ctx context.Context) (<-chan Update, docstore.CancelFunc, error) {
	pumpCtx, stop := context.WithCancel(ctx)
	snaps, release, err := r.docs.Subscribe(pumpCtx, r.Query())
	if err != nil {
		stop()
		return nil, nil, apperr.Wrap(apperr.ErrSubscription, err, "garbage: open subscription")
	}
	for _, o := range r.observers {
		o.SubscriptionOpened()
	}

	out := make(chan Update)
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		defer close(out)
		for {
			var snap docstore.Snapshot
			var ok bool
			select {
			case <-pumpCtx.Done():
				return
			case snap, ok = <-snaps:
				if !ok {
					return
				}
			}

			var u Update
			if snap.Err != nil {
				u = Update{At: snap.At, Err: apperr.Wrap(apperr.ErrSubscription, snap.Err, "garbage: subscription broken")}
				zap.L().Warn("garbage: subscription ended", zap.Error(u.Err))
			} else {
				points, rejected := r.normalize(pumpCtx, snap.Documents)
				r.hold(points)
				u = r.update(points, len(rejected), snap.At)
			}

			select {
			case out <- u:
			case <-pumpCtx.Done():
				return
			}
			if u.Err != nil {
				return
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			stop()
			release()
			<-exited
			for _, o := range r.observers {
				o.SubscriptionClosed()
			}
		})
	}
	return out, cancel, nil
}

// SubscribeFunc is the callback form of Subscribe. The callbacks run on the
// subscription goroutine; calling the returned CancelFunc from inside one of
// them deadlocks.
func (r *Repository) SubscribeFunc(ctx context.Context, onUpdate func(Update), onError func(error)) (docstore.CancelFunc, error) {
	updates, cancel, err := r.Subscribe(ctx)
	if err != nil {
		return nil, err
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range updates {
			if u.Err != nil {
				if onError != nil {
					onError(u.Err)
				}
				continue
			}
			onUpdate(u)
		}
	}()
	return func() {
		cancel()
		<-done
	}, nil
}

func (r *Repository) update(points []models.GarbagePoint, rejected int, at time.Time) Update {
	latest, _ := Latest(points, r.OrderField())
	return Update{
		Points:   points,
		LatestID: latest,
		Stats:    stats.Compute(points),
		Rejected: rejected,
		At:       at,
	}
}

func (r *Repository) normalize(ctx context.Context, docs []docstore.Document) ([]models.GarbagePoint, []Rejected) {
	points, rejected := NormalizeAll(docs)
	for _, rej := range rejected {
		zap.L().Debug("garbage: dropped point", zap.String("id", rej.ID), zap.String("reason", rej.Reason))
	}
	if r.photos != nil {
		r.photos.Fill(ctx, points)
	}
	for _, o := range r.observers {
		o.Normalized(len(points), len(rejected))
	}
	return points, rejected
}

func (r *Repository) hold(points []models.GarbagePoint) {
	r.mu.Lock()
	r.points = clonePoints(points)
	r.mu.Unlock()
}

func clonePoints(points []models.GarbagePoint) []models.GarbagePoint {
	if points == nil {
		return []models.GarbagePoint{}
	}
	out := make([]models.GarbagePoint, len(points))
	copy(out, points)
	return out
}
