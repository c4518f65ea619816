// server/internal/docstore/mongo.go
package docstore

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Mongo is the production Store. Subscriptions are change streams: every change
// event on the collection triggers a re-query, and the full result is delivered.
// Change streams need a replica set (a single-node one is enough).
type Mongo struct {
	db           *mongo.Database
	requeryRate  rate.Limit
	requeryBurst int
}

// MongoOption configures a Mongo store.
type MongoOption func(*Mongo)

// WithRequeryRate caps how often a subscription re-runs its query when change
// events arrive in bursts. Events are paced, never dropped.
func WithRequeryRate(perSecond float64, burst int) MongoOption {
	return func(m *Mongo) {
		if perSecond > 0 {
			m.requeryRate = rate.Limit(perSecond)
		}
		if burst > 0 {
			m.requeryBurst = burst
		}
	}
}

// NewMongo wraps an already connected database handle.
func NewMongo(db *mongo.Database, opts ...MongoOption) *Mongo {
	m := &Mongo{db: db, requeryRate: rate.Inf, requeryBurst: 1}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Mongo) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	oid := primitive.NewObjectID()
	update := bson.M{
		"$setOnInsert": withoutReserved(fields),
		"$currentDate": bson.M{FieldCreatedAt: bson.M{"$type": "date"}},
	}
	_, err := m.db.Collection(collection).UpdateOne(ctx,
		bson.M{"_id": oid},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return "", eris.Wrapf(err, "docstore: create in %s", collection)
	}
	return oid.Hex(), nil
}

func (m *Mongo) Get(ctx context.Context, collection, id string) (Document, error) {
	var raw bson.M
	err := m.db.Collection(collection).FindOne(ctx, bson.M{"_id": idFilterValue(id)}).Decode(&raw)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return Document{}, ErrNotFound
		}
		return Document{}, eris.Wrapf(err, "docstore: get %s/%s", collection, id)
	}
	return fromBSON(raw), nil
}

func (m *Mongo) Query(ctx context.Context, q Query) ([]Document, error) {
	filter := bson.D{}
	for _, f := range q.Where {
		filter = append(filter, bson.E{Key: f.Field, Value: f.Value})
	}
	direction := 1
	if q.Descending {
		direction = -1
	}
	findOpts := options.Find().SetSort(bson.D{{Key: q.OrderBy, Value: direction}, {Key: "_id", Value: direction}})
	if q.Limit > 0 {
		findOpts.SetLimit(q.Limit)
	}

	cursor, err := m.db.Collection(q.Collection).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, eris.Wrapf(err, "docstore: query %s", q.Collection)
	}
	defer cursor.Close(ctx)

	var raws []bson.M
	if err := cursor.All(ctx, &raws); err != nil {
		return nil, eris.Wrapf(err, "docstore: decode %s", q.Collection)
	}
	docs := make([]Document, 0, len(raws))
	for _, raw := range raws {
		docs = append(docs, fromBSON(raw))
	}
	return docs, nil
}

func (m *Mongo) Subscribe(ctx context.Context, q Query) (<-chan Snapshot, CancelFunc, error) {
	subCtx, stop := context.WithCancel(ctx)
	stream, err := m.db.Collection(q.Collection).Watch(subCtx, mongo.Pipeline{})
	if err != nil {
		stop()
		return nil, nil, eris.Wrapf(err, "docstore: watch %s", q.Collection)
	}

	out := make(chan Snapshot)
	exited := make(chan struct{})
	limiter := rate.NewLimiter(m.requeryRate, m.requeryBurst)

	deliver := func(s Snapshot) bool {
		select {
		case out <- s:
			return true
		case <-subCtx.Done():
			return false
		}
	}

	go func() {
		defer close(exited)
		defer close(out)
		defer stream.Close(context.Background())

		docs, err := m.Query(subCtx, q)
		if err != nil {
			if subCtx.Err() == nil {
				deliver(Snapshot{Err: err, At: time.Now()})
			}
			return
		}
		if !deliver(Snapshot{Documents: docs, At: time.Now()}) {
			return
		}

		for stream.Next(subCtx) {
			if err := limiter.Wait(subCtx); err != nil {
				return
			}
			docs, err := m.Query(subCtx, q)
			if err != nil {
				if subCtx.Err() == nil {
					deliver(Snapshot{Err: err, At: time.Now()})
				}
				return
			}
			if !deliver(Snapshot{Documents: docs, At: time.Now()}) {
				return
			}
		}
		if subCtx.Err() != nil {
			return
		}
		err = stream.Err()
		if err == nil {
			err = eris.New("docstore: change stream closed by server")
		}
		zap.L().Warn("docstore: change stream ended", zap.String("collection", q.Collection), zap.Error(err))
		deliver(Snapshot{Err: eris.Wrapf(err, "docstore: watch %s", q.Collection), At: time.Now()})
	}()

	var once sync.Once
	cancel := func() {
		once.Do(stop)
		<-exited
	}
	return out, cancel, nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	if err := m.db.Client().Ping(ctx, readpref.Primary()); err != nil {
		return eris.Wrap(err, "docstore: ping")
	}
	return nil
}

func idFilterValue(id string) any {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

// fromBSON turns a decoded document into backend-neutral Go values.
func fromBSON(raw bson.M) Document {
	doc := Document{Fields: make(map[string]any, len(raw))}
	for k, v := range raw {
		if k == "_id" {
			switch id := v.(type) {
			case primitive.ObjectID:
				doc.ID = id.Hex()
			case string:
				doc.ID = id
			}
			continue
		}
		doc.Fields[k] = plainValue(v)
	}
	return doc
}

func plainValue(v any) any {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.Timestamp:
		return time.Unix(int64(t.T), 0).UTC()
	case primitive.ObjectID:
		return t.Hex()
	case primitive.M:
		out := make(map[string]any, len(t))
		for k, nested := range t {
			out[k] = plainValue(nested)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, nested := range t {
			out[k] = plainValue(nested)
		}
		return out
	case primitive.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = plainValue(e.Value)
		}
		return out
	case primitive.A:
		out := make([]any, 0, len(t))
		for _, nested := range t {
			out = append(out, plainValue(nested))
		}
		return out
	}
	return v
}
