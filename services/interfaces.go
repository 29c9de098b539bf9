package services

import (
	"time"

	"github.com/cachegrid/query/model"
)

// Cache is the distributed cache surface the query adapter binds to. Keys
// must be comparable values with a registered key transformer; values are
// arbitrary.
type Cache interface {
	// Name returns the cache name.
	Name() string
	// Get returns the value for key and whether it is present.
	Get(key interface{}) (interface{}, bool)
	// Put stores a key/value pair, replacing any previous value.
	Put(key, value interface{}) error
	// Remove deletes the entry and returns the previous value, if any.
	Remove(key interface{}) (interface{}, bool)
	// Evict drops the entry from memory without touching any backing store.
	Evict(key interface{}) bool
	// ContainsKey reports whether the key is present.
	ContainsKey(key interface{}) bool
	// Size returns the number of in-memory entries.
	Size() int
	// Keys returns a snapshot of all in-memory keys.
	Keys() []interface{}
	// ForEach visits a snapshot of all entries; returning false stops early.
	ForEach(fn func(key, value interface{}) bool)
	// AddListener registers for entry lifecycle events.
	AddListener(l CacheListener)
}

// CacheListener receives cache entry lifecycle events. Callbacks run on the
// mutating goroutine and must not call back into the cache.
type CacheListener interface {
	EntryPut(key, value interface{})
	EntryRemoved(key interface{})
	EntryEvicted(key interface{})
}

// KeyTransformer is the two-way mapping between cache keys and the string
// document identifiers used inside the search index. Implementations must
// guarantee an exact round trip: StringToKey(KeyToString(k)) == k.
type KeyTransformer interface {
	KeyToString(key interface{}) (string, error)
	StringToKey(s string) (interface{}, error)
}

// SearchEngine is the external full-text engine the adapter delegates to.
// The engine owns indexing, query planning and matching; the adapter only
// feeds it documents keyed by transformed cache keys and consumes hits back.
type SearchEngine interface {
	// Index adds or replaces the document stored under docID.
	Index(docID string, doc model.Document) error
	// Delete removes the document stored under docID, if present.
	Delete(docID string) error
	// DeleteAll wipes the whole index.
	DeleteAll() error
	// DocumentCount returns the number of indexed documents.
	DocumentCount() int
	// CreateQuery starts a new, unconfigured engine query.
	CreateQuery() EngineQuery
}

// EngineQuery is the engine-owned query object a CacheQuery configures and
// executes. All setters must be called before the first executing call
// (ResultSize, EntityInfos, Extractor, Facets, Explain).
type EngineQuery interface {
	SetFilter(expr *FilterExpression)
	SetSort(criteria []SortCriterion)
	SetFirstResult(n int)
	SetMaxResults(n int)
	SetTimeout(d time.Duration)
	SetProjection(fields []string)

	// EnableNamedFilter activates a filter pre-registered with the engine and
	// returns its handle so parameters can be set on it.
	EnableNamedFilter(name string) (NamedFilter, error)
	// DisableNamedFilter deactivates a previously enabled named filter.
	DisableNamedFilter(name string)

	// ResultSize returns the total hit count without loading results.
	ResultSize() (int, error)
	// EntityInfos executes the query and returns all hits within the
	// configured pagination window.
	EntityInfos() ([]EntityInfo, error)
	// Extractor executes the query and returns a handle for on-demand hit
	// extraction. The caller must Close it.
	Extractor() (DocumentExtractor, error)
	// Facets counts distinct values of field over all matches, ignoring
	// pagination. A limit <= 0 returns all buckets.
	Facets(field string, limit int) ([]FacetCount, error)
	// Explain describes why the given document does or does not match.
	Explain(docID string) (string, error)
}

// NamedFilter is the handle returned when enabling an engine-side named
// filter. SetParameter returns the handle for chaining.
type NamedFilter interface {
	Name() string
	SetParameter(name string, value interface{}) NamedFilter
}

// DocumentExtractor hands out hits one at a time for lazy iteration.
// Valid positions run from 0 to MaxIndex inclusive; an empty result has
// MaxIndex == -1. Close releases engine resources and must always be called.
type DocumentExtractor interface {
	Extract(index int) (EntityInfo, error)
	MaxIndex() int
	Close()
}

// ResultIterator iterates query results. Err reports the failure that
// stopped iteration, if any. Close is idempotent; it must be called on lazy
// iterators even when iteration terminates early.
type ResultIterator interface {
	Next() bool
	Value() interface{}
	Err() error
	Close() error
}

// CacheQuery is the query facade bound to one cache/engine pair. Builder
// methods delegate to the underlying engine query and return the facade for
// chaining; executing methods surface any deferred builder error.
type CacheQuery interface {
	// Filter attaches the filter expression to evaluate.
	Filter(expr *FilterExpression) CacheQuery
	// Sort sets the result ordering.
	Sort(criteria ...SortCriterion) CacheQuery
	// FirstResult skips the first n hits. Negative n is an error, surfaced
	// on execution.
	FirstResult(n int) CacheQuery
	// MaxResults caps the number of hits returned.
	MaxResults(n int) CacheQuery
	// Timeout bounds query execution time.
	Timeout(d time.Duration) CacheQuery
	// Projection returns projected field rows instead of whole cache values.
	// The pseudo-fields ProjectionKey and ProjectionValue resolve to the
	// decoded cache key and the live cache value.
	Projection(fields ...string) CacheQuery

	EnableNamedFilter(name string) (NamedFilter, error)
	DisableNamedFilter(name string) CacheQuery

	// ResultSize returns the total hit count without loading entries.
	ResultSize() (int, error)
	// List eagerly materializes all hits.
	List() ([]interface{}, error)
	// Iterator returns a result iterator; without options it iterates
	// eagerly, because lazy iteration requires an explicit Close the caller
	// must have opted into.
	Iterator(opts ...FetchOptions) (ResultIterator, error)
	// Facets delegates facet counting to the engine.
	Facets(field string, limit int) ([]FacetCount, error)
	// Explain delegates match explanation to the engine.
	Explain(docID string) (string, error)
}
