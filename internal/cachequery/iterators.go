package cachequery

import (
	"github.com/cachegrid/query/services"
)

// EagerIterator iterates hits that were all fetched from the engine up front.
// Values are resolved from the cache in batches bounded by the fetch size.
// Eager iterators hold no engine resources, so Close is a no-op.
type EagerIterator struct {
	infos     []services.EntityInfo
	loader    resultLoader
	fetchSize int

	batch      []interface{}
	batchStart int
	pos        int
	cur        interface{}
	err        error
}

func newEagerIterator(infos []services.EntityInfo, loader resultLoader, fetchSize int) *EagerIterator {
	if fetchSize <= 0 {
		fetchSize = 1
	}
	return &EagerIterator{
		infos:     infos,
		loader:    loader,
		fetchSize: fetchSize,
	}
}

func (it *EagerIterator) Next() bool {
	if it.err != nil || it.pos >= len(it.infos) {
		return false
	}

	if it.batch == nil || it.pos >= it.batchStart+len(it.batch) {
		end := it.pos + it.fetchSize
		if end > len(it.infos) {
			end = len(it.infos)
		}
		batch, err := it.loader.Load(it.infos[it.pos:end])
		if err != nil {
			it.err = err
			return false
		}
		it.batch = batch
		it.batchStart = it.pos
	}

	it.cur = it.batch[it.pos-it.batchStart]
	it.pos++
	return true
}

func (it *EagerIterator) Value() interface{} { return it.cur }

func (it *EagerIterator) Err() error { return it.err }

func (it *EagerIterator) Close() error { return nil }

// LazyIterator pulls hits from an engine-owned extractor one at a time and
// resolves each against the cache on demand. Close releases the extractor and
// must be called, also when iteration stops early. Close is idempotent.
type LazyIterator struct {
	extractor services.DocumentExtractor
	loader    resultLoader

	pos    int
	max    int
	cur    interface{}
	err    error
	closed bool
}

func newLazyIterator(extractor services.DocumentExtractor, loader resultLoader) *LazyIterator {
	return &LazyIterator{
		extractor: extractor,
		loader:    loader,
		max:       extractor.MaxIndex(),
	}
}

func (it *LazyIterator) Next() bool {
	if it.err != nil || it.closed || it.pos > it.max {
		return false
	}

	info, err := it.extractor.Extract(it.pos)
	it.pos++
	if err != nil {
		it.err = err
		return false
	}

	value, err := it.loader.LoadOne(info)
	if err != nil {
		it.err = err
		return false
	}
	it.cur = value
	return true
}

func (it *LazyIterator) Value() interface{} { return it.cur }

func (it *LazyIterator) Err() error { return it.err }

func (it *LazyIterator) Close() error {
	if !it.closed {
		it.extractor.Close()
		it.closed = true
	}
	return nil
}

// NullFilteringIterator decorates another iterator and skips hits whose
// resolved value is nil: the entry disappeared from the cache between index
// lookup and cache read. Err and Close pass through to the delegate.
type NullFilteringIterator struct {
	services.ResultIterator
	cur interface{}
}

func filterNulls(it services.ResultIterator) services.ResultIterator {
	return &NullFilteringIterator{ResultIterator: it}
}

func (it *NullFilteringIterator) Next() bool {
	for it.ResultIterator.Next() {
		if v := it.ResultIterator.Value(); v != nil {
			it.cur = v
			return true
		}
	}
	return false
}

func (it *NullFilteringIterator) Value() interface{} { return it.cur }
