package cachequery

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cachegrid/query/services"
)

// stubLoader resolves hits from a fixed map and records batch sizes.
type stubLoader struct {
	values     map[string]interface{}
	batchSizes []int
	failAfter  int // fail on the Nth Load call; 0 disables
}

func (l *stubLoader) Load(infos []services.EntityInfo) ([]interface{}, error) {
	l.batchSizes = append(l.batchSizes, len(infos))
	if l.failAfter > 0 && len(l.batchSizes) >= l.failAfter {
		return nil, fmt.Errorf("load failed")
	}
	out := make([]interface{}, 0, len(infos))
	for _, info := range infos {
		out = append(out, l.values[info.DocumentID])
	}
	return out, nil
}

func (l *stubLoader) LoadOne(info services.EntityInfo) (interface{}, error) {
	return l.values[info.DocumentID], nil
}

func makeInfos(ids ...string) []services.EntityInfo {
	infos := make([]services.EntityInfo, 0, len(ids))
	for _, id := range ids {
		infos = append(infos, services.EntityInfo{DocumentID: id})
	}
	return infos
}

func TestEagerIterator_BatchesByFetchSize(t *testing.T) {
	loader := &stubLoader{values: map[string]interface{}{
		"a": "A", "b": "B", "c": "C", "d": "D", "e": "E",
	}}
	it := newEagerIterator(makeInfos("a", "b", "c", "d", "e"), loader, 2)

	var got []interface{}
	for it.Next() {
		got = append(got, it.Value())
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []interface{}{"A", "B", "C", "D", "E"}, got)
	assert.Equal(t, []int{2, 2, 1}, loader.batchSizes, "hits load in fetch-size batches")
	assert.NoError(t, it.Close())
}

func TestEagerIterator_LoadFailureStopsIteration(t *testing.T) {
	loader := &stubLoader{
		values:    map[string]interface{}{"a": "A", "b": "B", "c": "C"},
		failAfter: 2,
	}
	it := newEagerIterator(makeInfos("a", "b", "c"), loader, 2)

	assert.True(t, it.Next())
	assert.True(t, it.Next())
	assert.False(t, it.Next(), "the failing batch ends iteration")
	assert.Error(t, it.Err())
	assert.False(t, it.Next(), "a failed iterator stays stopped")
}

func TestEagerIterator_Empty(t *testing.T) {
	it := newEagerIterator(nil, &stubLoader{}, 4)
	assert.False(t, it.Next())
	assert.NoError(t, it.Err())
}

// stubExtractor serves a fixed hit list and records Close calls.
type stubExtractor struct {
	infos      []services.EntityInfo
	closeCount int
}

func (x *stubExtractor) Extract(index int) (services.EntityInfo, error) {
	if index < 0 || index >= len(x.infos) {
		return services.EntityInfo{}, fmt.Errorf("index %d out of range", index)
	}
	return x.infos[index], nil
}

func (x *stubExtractor) MaxIndex() int { return len(x.infos) - 1 }

func (x *stubExtractor) Close() { x.closeCount++ }

func TestLazyIterator_ExtractsOnDemand(t *testing.T) {
	extractor := &stubExtractor{infos: makeInfos("a", "b")}
	loader := &stubLoader{values: map[string]interface{}{"a": "A", "b": "B"}}
	it := newLazyIterator(extractor, loader)

	require.True(t, it.Next())
	assert.Equal(t, "A", it.Value())
	require.True(t, it.Next())
	assert.Equal(t, "B", it.Value())
	assert.False(t, it.Next())
	assert.NoError(t, it.Err())
}

func TestLazyIterator_CloseIsIdempotentAndStopsIteration(t *testing.T) {
	extractor := &stubExtractor{infos: makeInfos("a", "b")}
	loader := &stubLoader{values: map[string]interface{}{"a": "A", "b": "B"}}
	it := newLazyIterator(extractor, loader)

	require.True(t, it.Next())
	require.NoError(t, it.Close())
	require.NoError(t, it.Close())
	assert.Equal(t, 1, extractor.closeCount, "the extractor is released exactly once")
	assert.False(t, it.Next())
}

func TestLazyIterator_EmptyExtractor(t *testing.T) {
	extractor := &stubExtractor{}
	it := newLazyIterator(extractor, &stubLoader{})
	assert.False(t, it.Next())
	require.NoError(t, it.Close())
}

// nilInterleavedIterator yields a fixed sequence including nils.
type nilInterleavedIterator struct {
	values []interface{}
	pos    int
	closed bool
}

func (it *nilInterleavedIterator) Next() bool {
	if it.pos >= len(it.values) {
		return false
	}
	it.pos++
	return true
}

func (it *nilInterleavedIterator) Value() interface{} { return it.values[it.pos-1] }

func (it *nilInterleavedIterator) Err() error { return nil }

func (it *nilInterleavedIterator) Close() error {
	it.closed = true
	return nil
}

func TestNullFilteringIterator_SkipsNils(t *testing.T) {
	inner := &nilInterleavedIterator{values: []interface{}{nil, "a", nil, nil, "b", nil}}
	it := filterNulls(inner)

	var got []interface{}
	for it.Next() {
		got = append(got, it.Value())
	}
	assert.Equal(t, []interface{}{"a", "b"}, got)
	assert.NoError(t, it.Err())

	require.NoError(t, it.Close())
	assert.True(t, inner.closed, "Close passes through to the delegate")
}

func TestNullFilteringIterator_AllNils(t *testing.T) {
	inner := &nilInterleavedIterator{values: []interface{}{nil, nil}}
	it := filterNulls(inner)
	assert.False(t, it.Next())
}
