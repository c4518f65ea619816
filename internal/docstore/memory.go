// server/internal/docstore/memory.go
package docstore

import (
	"context"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store. It backs the "memory" store driver for local
// development and is the document store used throughout the tests.
type Memory struct {
	mu          sync.Mutex
	now         func() time.Time
	collections map[string]map[string]Document
	subs        map[*memorySub]struct{}
}

type memorySub struct {
	query  Query
	notify chan struct{}
	broken chan error
}

// NewMemory returns an empty store whose createdAt clock is time.Now.
func NewMemory() *Memory {
	return NewMemoryWithClock(time.Now)
}

// NewMemoryWithClock lets tests control the server-assigned timestamps.
func NewMemoryWithClock(now func() time.Time) *Memory {
	return &Memory{
		now:         now,
		collections: make(map[string]map[string]Document),
		subs:        make(map[*memorySub]struct{}),
	}
}

func (m *Memory) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	doc := Document{ID: uuid.NewString(), Fields: withoutReserved(fields)}
	m.mu.Lock()
	doc.Fields[FieldCreatedAt] = m.now().UTC()
	m.put(collection, doc)
	m.mu.Unlock()
	return doc.ID, nil
}

// Put stores doc as-is, createdAt included. Used to seed raw or malformed documents.
func (m *Memory) Put(collection string, doc Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc.Fields == nil {
		doc.Fields = map[string]any{}
	}
	m.put(collection, doc)
}

// Update merges fields into an existing document, the way an external moderation
// process changes a point's status.
func (m *Memory) Update(collection, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	for k, v := range withoutReserved(fields) {
		doc.Fields[k] = v
	}
	m.put(collection, doc)
	return nil
}

// Disconnect fails every open subscription with err, as a dropped transport would.
func (m *Memory) Disconnect(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for s := range m.subs {
		select {
		case s.broken <- err:
		default:
		}
		delete(m.subs, s)
	}
}

// Count returns the number of documents in a collection.
func (m *Memory) Count(collection string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.collections[collection])
}

func (m *Memory) put(collection string, doc Document) {
	coll, ok := m.collections[collection]
	if !ok {
		coll = make(map[string]Document)
		m.collections[collection] = coll
	}
	coll[doc.ID] = doc
	for s := range m.subs {
		if s.query.Collection != collection {
			continue
		}
		select {
		case s.notify <- struct{}{}:
		default:
		}
	}
}

func (m *Memory) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.collections[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return cloneDocument(doc), nil
}

func (m *Memory) Query(ctx context.Context, q Query) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.query(q), nil
}

func (m *Memory) query(q Query) []Document {
	out := make([]Document, 0, len(m.collections[q.Collection]))
	for _, doc := range m.collections[q.Collection] {
		if matches(doc, q.Where) {
			out = append(out, cloneDocument(doc))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		c := compareValues(out[i].Fields[q.OrderBy], out[j].Fields[q.OrderBy])
		if c == 0 {
			c = strings.Compare(out[i].ID, out[j].ID)
		}
		if q.Descending {
			return c > 0
		}
		return c < 0
	})
	if q.Limit > 0 && int64(len(out)) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func (m *Memory) Subscribe(ctx context.Context, q Query) (<-chan Snapshot, CancelFunc, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	sub := &memorySub{
		query:  q,
		notify: make(chan struct{}, 1),
		broken: make(chan error, 1),
	}
	// initial snapshot
	sub.notify <- struct{}{}

	m.mu.Lock()
	m.subs[sub] = struct{}{}
	m.mu.Unlock()

	subCtx, stop := context.WithCancel(ctx)
	out := make(chan Snapshot)
	exited := make(chan struct{})

	go func() {
		defer close(exited)
		defer close(out)
		defer func() {
			m.mu.Lock()
			delete(m.subs, sub)
			m.mu.Unlock()
		}()
		for {
			select {
			case <-subCtx.Done():
				return
			case err := <-sub.broken:
				select {
				case out <- Snapshot{Err: err, At: m.now()}:
				case <-subCtx.Done():
				}
				return
			case <-sub.notify:
				m.mu.Lock()
				docs := m.query(q)
				at := m.now()
				m.mu.Unlock()
				select {
				case out <- Snapshot{Documents: docs, At: at}:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(stop)
		<-exited
	}
	return out, cancel, nil
}

func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}

func matches(doc Document, where []Filter) bool {
	for _, f := range where {
		if !reflect.DeepEqual(doc.Fields[f.Field], f.Value) {
			return false
		}
	}
	return true
}

// compareValues orders nil first, then by the natural order of times, numbers and strings.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Compare(bt)
		}
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return strings.Compare(as, bs)
		}
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func cloneDocument(doc Document) Document {
	return Document{ID: doc.ID, Fields: cloneMap(doc.Fields)}
}

func cloneMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if nested, ok := v.(map[string]any); ok {
			out[k] = cloneMap(nested)
			continue
		}
		out[k] = v
	}
	return out
}
