package cachequery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cachegrid/query/internal/engine"
	"github.com/cachegrid/query/internal/errors"
	"github.com/cachegrid/query/internal/keytrans"
	"github.com/cachegrid/query/model"
	"github.com/cachegrid/query/services"
	"github.com/cachegrid/query/store"
)

type fixture struct {
	eng   *engine.Engine
	cache *store.CacheStore
	keys  *keytrans.Handler
}

// newFixture builds a cache and an engine holding the same five movie
// entries, keyed by string keys.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		eng:   engine.New(),
		cache: store.NewCacheStore("movies"),
		keys:  keytrans.NewHandler(),
	}

	entries := map[string]map[string]interface{}{
		"alien":   {"title": "Alien", "genre": "sci-fi", "year": 1979},
		"blade":   {"title": "Blade Runner", "genre": "sci-fi", "year": 1982},
		"heat":    {"title": "Heat", "genre": "crime", "year": 1995},
		"arrival": {"title": "Arrival", "genre": "sci-fi", "year": 2016},
		"fargo":   {"title": "Fargo", "genre": "crime", "year": 1996},
	}
	for key, value := range entries {
		require.NoError(t, f.cache.Put(key, value))
		docID, err := f.keys.KeyToString(key)
		require.NoError(t, err)
		require.NoError(t, f.eng.Index(docID, model.Document(value)))
	}
	return f
}

func (f *fixture) query(filter *services.FilterExpression, opts ...Option) *Query {
	return New(filter, f.eng, f.cache, f.keys, opts...)
}

func sciFiFilter() *services.FilterExpression {
	return &services.FilterExpression{Filters: []services.FilterCondition{
		{Field: "genre", Operator: services.OpEq, Value: "sci-fi"},
	}}
}

func titles(values []interface{}) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, v.(map[string]interface{})["title"].(string))
	}
	return out
}

func TestQuery_List(t *testing.T) {
	f := newFixture(t)

	q := f.query(sciFiFilter())
	q.Sort(services.SortCriterion{Field: "year", Order: services.SortAsc})

	results, err := q.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"Alien", "Blade Runner", "Arrival"}, titles(results))
}

func TestQuery_ListSkipsVanishedEntries(t *testing.T) {
	f := newFixture(t)

	// Evicting drops the entry from memory but keeps it indexed; queries must
	// silently skip it.
	require.True(t, f.cache.Evict("blade"))

	q := f.query(sciFiFilter())
	results, err := q.List()
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.NotContains(t, titles(results), "Blade Runner")

	// The index itself still counts the evicted entry.
	size, err := f.query(sciFiFilter()).ResultSize()
	require.NoError(t, err)
	assert.Equal(t, 3, size)
}

func TestQuery_IteratorDefaultsToEager(t *testing.T) {
	f := newFixture(t)

	it, err := f.query(nil).Iterator()
	require.NoError(t, err)
	defer func() { _ = it.Close() }()

	nf, ok := it.(*NullFilteringIterator)
	require.True(t, ok, "iterators are always null-filtering")
	_, ok = nf.ResultIterator.(*EagerIterator)
	assert.True(t, ok, "default iteration mode is eager")

	count := 0
	for it.Next() {
		assert.NotNil(t, it.Value())
		count++
	}
	require.NoError(t, it.Err())
	assert.Equal(t, 5, count)
}

func TestQuery_LazyIterator(t *testing.T) {
	f := newFixture(t)

	q := f.query(sciFiFilter())
	q.Sort(services.SortCriterion{Field: "year", Order: services.SortDesc})

	it, err := q.Iterator(services.FetchOptions{Mode: services.FetchModeLazy})
	require.NoError(t, err)

	var got []string
	for it.Next() {
		got = append(got, it.Value().(map[string]interface{})["title"].(string))
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []string{"Arrival", "Blade Runner", "Alien"}, got)

	require.NoError(t, it.Close())
	require.NoError(t, it.Close(), "Close is idempotent")
	assert.False(t, it.Next(), "a closed iterator has no more results")
}

func TestQuery_LazyIteratorSkipsVanishedEntries(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.cache.Evict("alien"))

	it, err := f.query(sciFiFilter()).Iterator(services.FetchOptions{Mode: services.FetchModeLazy})
	require.NoError(t, err)
	defer func() { _ = it.Close() }()

	count := 0
	for it.Next() {
		require.NotNil(t, it.Value())
		count++
	}
	require.NoError(t, it.Err())
	assert.Equal(t, 2, count)
}

func TestQuery_IteratorSmallFetchSize(t *testing.T) {
	f := newFixture(t)

	// A fetch size smaller than the hit count forces several load batches;
	// results must come back complete and in order regardless.
	q := f.query(nil)
	q.Sort(services.SortCriterion{Field: "year", Order: services.SortAsc})

	it, err := q.Iterator(services.FetchOptions{Mode: services.FetchModeEager, FetchSize: 2})
	require.NoError(t, err)
	defer func() { _ = it.Close() }()

	var got []string
	for it.Next() {
		got = append(got, it.Value().(map[string]interface{})["title"].(string))
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []string{"Alien", "Blade Runner", "Heat", "Fargo", "Arrival"}, got)
}

func TestQuery_UnknownFetchMode(t *testing.T) {
	f := newFixture(t)

	_, err := f.query(nil).Iterator(services.FetchOptions{Mode: services.FetchMode(42)})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownFetchMode)
}

func TestQuery_NegativeFirstResultSurfacesOnExecution(t *testing.T) {
	f := newFixture(t)

	q := f.query(nil)
	q.FirstResult(-1)

	// The builder keeps chaining; every executing method fails.
	_, err := q.ResultSize()
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = q.List()
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = q.Iterator()
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = q.Facets("genre", 0)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestQuery_Projection(t *testing.T) {
	f := newFixture(t)

	q := f.query(sciFiFilter())
	q.Sort(services.SortCriterion{Field: "year", Order: services.SortAsc})
	q.Projection(services.ProjectionKey, "title", services.ProjectionValue)

	results, err := q.List()
	require.NoError(t, err)
	require.Len(t, results, 3)

	row, ok := results[0].([]interface{})
	require.True(t, ok, "projected hits are rows")
	require.Len(t, row, 3)
	assert.Equal(t, "alien", row[0], "key pseudo-field resolves to the decoded cache key")
	assert.Equal(t, "Alien", row[1])

	value, ok := row[2].(map[string]interface{})
	require.True(t, ok, "value pseudo-field resolves to the live cache value")
	assert.Equal(t, "Alien", value["title"])
}

func TestQuery_ProjectionWithValueSkipsVanishedEntries(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.cache.Evict("alien"))

	q := f.query(sciFiFilter())
	q.Projection(services.ProjectionKey, services.ProjectionValue)

	results, err := q.List()
	require.NoError(t, err)
	assert.Len(t, results, 2, "rows needing the vanished value are dropped")
}

func TestQuery_ProjectionWithoutValueKeepsIndexOnlyRows(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.cache.Evict("alien"))

	// A projection served entirely from the index needs no cache read, so an
	// evicted entry still produces a row.
	q := f.query(sciFiFilter())
	q.Projection(services.ProjectionKey, "title")

	results, err := q.List()
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestQuery_Timeout(t *testing.T) {
	f := newFixture(t)

	q := f.query(nil)
	q.Timeout(1 * time.Nanosecond)

	_, err := q.List()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrQueryTimeout)
}

func TestQuery_DefaultTimeoutOption(t *testing.T) {
	f := newFixture(t)

	q := f.query(nil, WithDefaultTimeout(1*time.Nanosecond))
	_, err := q.ResultSize()
	assert.ErrorIs(t, err, errors.ErrQueryTimeout)

	// An explicit Timeout overrides the default.
	q2 := f.query(nil, WithDefaultTimeout(1*time.Nanosecond))
	q2.Timeout(10 * time.Second)
	n, err := q2.ResultSize()
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestQuery_FirstResultAndMaxResults(t *testing.T) {
	f := newFixture(t)

	q := f.query(nil)
	q.Sort(services.SortCriterion{Field: "year", Order: services.SortAsc})
	q.FirstResult(1)
	q.MaxResults(2)

	results, err := q.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"Blade Runner", "Heat"}, titles(results))
}

func TestQuery_NamedFilterPassThrough(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.eng.RegisterNamedFilter("crime_only", func(params map[string]interface{}, doc model.Document) bool {
		return doc["genre"] == "crime"
	}))

	q := f.query(nil)
	nf, err := q.EnableNamedFilter("crime_only")
	require.NoError(t, err)
	assert.Equal(t, "crime_only", nf.Name())

	n, err := q.ResultSize()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	q.DisableNamedFilter("crime_only")
	n, err = q.ResultSize()
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestQuery_EnableUnknownNamedFilter(t *testing.T) {
	f := newFixture(t)

	_, err := f.query(nil).EnableNamedFilter("missing")
	assert.ErrorIs(t, err, errors.ErrFilterNotFound)
}
