package garbage

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"spotmytrash-api-server/internal/apperr"
	"spotmytrash-api-server/internal/docstore"
	"spotmytrash-api-server/internal/models"
	"spotmytrash-api-server/internal/stats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var base = time.Date(2025, 4, 2, 12, 0, 0, 0, time.UTC)

// go-cache runs a janitor goroutine per cache until it is garbage collected.
var ignoreJanitor = goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run")

func gps(lat, lon float64) map[string]any {
	return map[string]any{"latitude": lat, "longitude": lon}
}

func seed(store *docstore.Memory, id string, minutes int, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	fields[docstore.FieldCreatedAt] = base.Add(time.Duration(minutes) * time.Minute)
	store.Put(models.CollectionGarbagePoints, docstore.Document{ID: id, Fields: fields})
}

func receive(t *testing.T, ch <-chan Update) Update {
	t.Helper()
	select {
	case u, ok := <-ch:
		require.True(t, ok, "update channel closed")
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("no update within 2s")
		return Update{}
	}
}

type failingQuery struct {
	*docstore.Memory
	fail bool
}

func (f *failingQuery) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if f.fail {
		return nil, errors.New("connection reset")
	}
	return f.Memory.Query(ctx, q)
}

type countingObserver struct {
	mu                   sync.Mutex
	kept, rejected       int
	opened, closed, runs int
}

func (c *countingObserver) Normalized(kept, rejected int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs++
	c.kept += kept
	c.rejected += rejected
}

func (c *countingObserver) SubscriptionOpened() { c.mu.Lock(); c.opened++; c.mu.Unlock() }
func (c *countingObserver) SubscriptionClosed() { c.mu.Lock(); c.closed++; c.mu.Unlock() }

func TestFetchDropsPointsWithoutCoordinates(t *testing.T) {
	store := docstore.NewMemory()
	seed(store, "a", 1, map[string]any{"gps": gps(-33.45, -70.65)})
	seed(store, "b", 2, map[string]any{"gps": gps(0, 0)})
	seed(store, "c", 3, map[string]any{"gps": gps(10, 20), "status": "verified"})
	seed(store, "d", 4, map[string]any{"photoId": "p"})
	seed(store, "e", 5, map[string]any{"gps": map[string]any{"latitude": 1.0}})

	points, err := NewRepository(store).FetchOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, []string{"c", "b", "a"}, ids(points))
}

func TestLatestAndStatsOnDescendingSnapshot(t *testing.T) {
	store := docstore.NewMemory()
	for i, id := range []string{"A", "B", "C", "D"} {
		seed(store, id, i, map[string]any{"gps": gps(1, 1)})
	}
	repo := NewRepository(store)

	updates, cancel, err := repo.Subscribe(context.Background())
	require.NoError(t, err)
	defer cancel()

	u := receive(t, updates)
	assert.Equal(t, []string{"D", "C", "B", "A"}, ids(u.Points))
	assert.Equal(t, "D", u.LatestID)
	assert.Equal(t, stats.Stats{Total: 4, Pending: 4}, u.Stats)
}

func TestMissingStatusIsPending(t *testing.T) {
	res := Normalize(docstore.Document{ID: "x", Fields: map[string]any{"gps": gps(1, 2)}})
	ok, isOK := res.(Ok)
	require.True(t, isOK)
	assert.Equal(t, models.StatusPending, ok.Point.Status)
}

func TestNormalize(t *testing.T) {
	created := base
	cases := []struct {
		name   string
		fields map[string]any
		reason string
	}{
		{"zero latitude is valid", map[string]any{"gps": gps(0, 12)}, ""},
		{"integer coordinates", map[string]any{"gps": map[string]any{"latitude": int32(4), "longitude": int64(5)}}, ""},
		{"no gps", map[string]any{}, ReasonMissingGPS},
		{"gps not a document", map[string]any{"gps": "1,2"}, ReasonMissingGPS},
		{"string latitude", map[string]any{"gps": map[string]any{"latitude": "1", "longitude": 2.0}}, ReasonMissingGPS},
		{"nan", map[string]any{"gps": gps(math.NaN(), 1)}, ReasonMissingGPS},
		{"missing longitude", map[string]any{"gps": map[string]any{"latitude": 1.0}}, ReasonMissingGPS},
		{"out of range is kept", map[string]any{"gps": gps(91, 1)}, ""},
		{"unknown status is kept", map[string]any{"gps": gps(1, 1), "status": "archived"}, ""},
		{"status not a string is kept", map[string]any{"gps": gps(1, 1), "status": 3}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.fields[docstore.FieldCreatedAt] = created
			res := Normalize(docstore.Document{ID: "id", Fields: tc.fields})
			if tc.reason == "" {
				_, ok := res.(Ok)
				assert.True(t, ok, "got %#v", res)
				return
			}
			rej, ok := res.(Rejected)
			require.True(t, ok, "got %#v", res)
			assert.Equal(t, tc.reason, rej.Reason)
			assert.Equal(t, "id", rej.ID)
		})
	}
}

func TestUnrecognizedStatusIsPending(t *testing.T) {
	docs := []docstore.Document{
		{ID: "a", Fields: map[string]any{"gps": gps(1, 1), "status": "rejected"}},
		{ID: "b", Fields: map[string]any{"gps": gps(2, 2), "status": "Verified"}},
		{ID: "c", Fields: map[string]any{"gps": gps(3, 3)}},
		{ID: "d", Fields: map[string]any{"gps": gps(4, 4), "status": true}},
		{ID: "e", Fields: map[string]any{"gps": gps(5, 5), "status": "cleaned"}},
		{ID: "f", Fields: map[string]any{"status": "verified"}},
	}
	points, rejected := NormalizeAll(docs)

	missing := 0
	for _, d := range docs {
		if _, ok := d.Fields["gps"]; !ok {
			missing++
		}
	}
	assert.Equal(t, missing, len(docs)-len(points), "only documents without coordinates are dropped")
	require.Len(t, rejected, 1)
	assert.Equal(t, "f", rejected[0].ID)

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids(points))
	for _, p := range points[:4] {
		assert.Equal(t, models.StatusPending, p.Status, p.ID)
	}
	assert.Equal(t, stats.Stats{Total: 5, Cleaned: 1, Pending: 4}, stats.Compute(points))
}

func TestNormalizeFields(t *testing.T) {
	g := gps(-33.4569, -70.6483)
	g["accuracy"] = 5.0
	res := Normalize(docstore.Document{ID: "p1", Fields: map[string]any{
		"gps":                   g,
		"photoId":               "ph1",
		"photoUrl":              "https://cdn.test/x.jpg",
		"status":                "cleaned",
		"userId":                "u1",
		docstore.FieldCreatedAt: base,
	}})
	ok, isOK := res.(Ok)
	require.True(t, isOK)
	p := ok.Point
	assert.Equal(t, "p1", p.ID)
	require.NotNil(t, p.GPS.Accuracy)
	assert.Equal(t, 5.0, *p.GPS.Accuracy)
	assert.Equal(t, "ph1", p.PhotoID)
	assert.Equal(t, "https://cdn.test/x.jpg", p.PhotoURL)
	assert.Equal(t, models.StatusCleaned, p.Status)
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, base, p.CreatedAt)
}

func TestNormalizeAllCountsRejected(t *testing.T) {
	docs := []docstore.Document{
		{ID: "1", Fields: map[string]any{"gps": gps(1, 1)}},
		{ID: "2", Fields: map[string]any{}},
		{ID: "3", Fields: map[string]any{"gps": gps(2, 2), "status": "verified"}},
	}
	points, rejected := NormalizeAll(docs)
	assert.Len(t, points, 2)
	require.Len(t, rejected, 1)
	assert.Equal(t, "2", rejected[0].ID)
	assert.Equal(t, len(docs), len(points)+len(rejected))

	s := stats.Compute(points)
	assert.Equal(t, s.Total, s.Verified+s.Cleaned+s.Pending)
}

func TestFetchFailureKeepsPreviousPoints(t *testing.T) {
	store := &failingQuery{Memory: docstore.NewMemory()}
	seed(store.Memory, "a", 1, map[string]any{"gps": gps(1, 1)})
	repo := NewRepository(store)

	_, err := repo.FetchOnce(context.Background())
	require.NoError(t, err)

	store.fail = true
	_, err = repo.FetchOnce(context.Background())
	assert.ErrorIs(t, err, apperr.ErrFetch)
	assert.Equal(t, []string{"a"}, ids(repo.Points()))
}

func TestBuildQuery(t *testing.T) {
	repo := NewRepository(docstore.NewMemory(), WithLimit(50))

	q := repo.BuildQuery("", "u1")
	assert.Equal(t, models.CollectionGarbagePoints, q.Collection)
	assert.Equal(t, docstore.FieldCreatedAt, q.OrderBy)
	assert.True(t, q.Descending)
	assert.Equal(t, int64(50), q.Limit)
	assert.Equal(t, []docstore.Filter{{Field: "userId", Value: "u1"}}, q.Where)

	assert.Equal(t, FieldStatus, repo.BuildQuery(FieldStatus, "").OrderBy)
	assert.Equal(t, docstore.FieldCreatedAt, repo.BuildQuery("photoId", "").OrderBy)
	assert.Empty(t, repo.BuildQuery("", "").Where)
}

func TestFetchByUser(t *testing.T) {
	store := docstore.NewMemory()
	seed(store, "mine", 1, map[string]any{"gps": gps(1, 1), "userId": "u1"})
	seed(store, "theirs", 2, map[string]any{"gps": gps(1, 1), "userId": "u2"})

	points, err := NewRepository(store, WithUserID("u1")).FetchOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"mine"}, ids(points))
}

func TestSubscribeDeliversFullSnapshots(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreJanitor)

	store := docstore.NewMemory()
	seed(store, "a", 1, map[string]any{"gps": gps(1, 1)})
	obs := &countingObserver{}
	repo := NewRepository(store, WithObserver(obs))

	updates, cancel, err := repo.Subscribe(context.Background())
	require.NoError(t, err)

	first := receive(t, updates)
	assert.Equal(t, []string{"a"}, ids(first.Points))

	_, err = store.Create(context.Background(), models.CollectionGarbagePoints, map[string]any{"gps": gps(2, 2)})
	require.NoError(t, err)
	second := receive(t, updates)
	assert.Len(t, second.Points, 2, "each delivery is the whole result set")
	assert.Equal(t, second.Points[0].ID, second.LatestID)

	require.NoError(t, store.Update(models.CollectionGarbagePoints, "a", map[string]any{"status": "verified"}))
	third := receive(t, updates)
	assert.Equal(t, 1, third.Stats.Verified)
	assert.Equal(t, 2, third.Stats.Total)

	cancel()
	cancel()
	_, open := <-updates
	assert.False(t, open)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, 1, obs.opened)
	assert.Equal(t, 1, obs.closed)
	assert.Equal(t, 3, obs.runs)
}

func TestSubscribeErrorIsDeliveredOnce(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreJanitor)

	store := docstore.NewMemory()
	seed(store, "a", 1, map[string]any{"gps": gps(1, 1)})
	repo := NewRepository(store)

	updates, cancel, err := repo.Subscribe(context.Background())
	require.NoError(t, err)
	defer cancel()

	receive(t, updates)
	store.Disconnect(errors.New("socket closed"))

	u := receive(t, updates)
	assert.ErrorIs(t, u.Err, apperr.ErrSubscription)

	select {
	case _, open := <-updates:
		assert.False(t, open, "no reconnect after an error")
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after error")
	}
	assert.Equal(t, []string{"a"}, ids(repo.Points()))
}

func TestSubscribeFunc(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreJanitor)

	store := docstore.NewMemory()
	seed(store, "a", 1, map[string]any{"gps": gps(1, 1)})
	repo := NewRepository(store)

	var view View
	got := make(chan struct{}, 4)
	failed := make(chan error, 1)
	cancel, err := repo.SubscribeFunc(context.Background(), func(u Update) {
		view.Apply(u)
		got <- struct{}{}
	}, func(err error) {
		view.Apply(Update{Err: err})
		failed <- err
	})
	require.NoError(t, err)
	defer cancel()

	<-got
	store.Disconnect(errors.New("gone"))
	select {
	case err := <-failed:
		assert.ErrorIs(t, err, apperr.ErrSubscription)
	case <-time.After(2 * time.Second):
		t.Fatal("onError not called")
	}

	state := view.State()
	assert.Error(t, state.Err)
	assert.Equal(t, []string{"a"}, ids(state.Points), "points survive an error")
	assert.True(t, state.IsLatest("a"))
}

func TestPhotoURLResolution(t *testing.T) {
	store := docstore.NewMemory()
	photoID, err := store.Create(context.Background(), models.CollectionPhotos, map[string]any{"url": "https://cdn.test/photos/1.jpg"})
	require.NoError(t, err)
	seed(store, "with-lookup", 2, map[string]any{"gps": gps(1, 1), "photoId": photoID})
	seed(store, "inline", 1, map[string]any{"gps": gps(1, 1), "photoId": "x", "photoUrl": "https://inline"})
	seed(store, "dangling", 0, map[string]any{"gps": gps(1, 1), "photoId": "missing"})

	urls := NewPhotoURLs(store, time.Minute)
	points, err := NewRepository(store, WithPhotoURLs(urls)).FetchOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, "https://cdn.test/photos/1.jpg", points[0].PhotoURL)
	assert.Equal(t, "https://inline", points[1].PhotoURL)
	assert.Empty(t, points[2].PhotoURL)

	_, cached := urls.cache.Get(photoID)
	assert.True(t, cached)
	_, cached = urls.cache.Get("missing")
	assert.False(t, cached)
}

func TestLatestByOtherOrder(t *testing.T) {
	points := []models.GarbagePoint{
		{ID: "old", CreatedAt: base},
		{ID: "new", CreatedAt: base.Add(time.Hour)},
	}
	id, ok := Latest(points, FieldStatus)
	assert.True(t, ok)
	assert.Equal(t, "new", id)

	id, _ = Latest(points, docstore.FieldCreatedAt)
	assert.Equal(t, "old", id)

	_, ok = Latest(nil, "")
	assert.False(t, ok)
}

func ids(points []models.GarbagePoint) []string {
	out := make([]string, len(points))
	for i, p := range points {
		out[i] = p.ID
	}
	return out
}
