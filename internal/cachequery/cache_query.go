// Package cachequery binds a distributed cache to an external search engine.
// The Query facade forwards query construction to an engine-owned query and
// keeps only the adaptation concerns for itself: key transformation, eager
// vs. lazy result materialization, and filtering out hits whose backing cache
// entry disappeared between index lookup and cache read.
package cachequery

import (
	"time"

	"github.com/cachegrid/query/config"
	"github.com/cachegrid/query/internal/errors"
	"github.com/cachegrid/query/services"
)

// Iteration without explicit fetch options is EAGER: lazy iterators must be
// closed, and a caller who never picked lazy mode has no reason to know that.
var defaultFetchOptions = services.FetchOptions{Mode: services.FetchModeEager}

// Option configures adapter-level defaults of a Query.
type Option func(*Query)

// WithDefaultFetchSize overrides the batch size used when fetch options carry
// none.
func WithDefaultFetchSize(n int) Option {
	return func(q *Query) {
		if n > 0 {
			q.defaultFetchSize = n
		}
	}
}

// WithDefaultTimeout applies a query timeout up front; an explicit Timeout
// call still overrides it.
func WithDefaultTimeout(d time.Duration) Option {
	return func(q *Query) {
		if d > 0 {
			q.engineQuery.SetTimeout(d)
		}
	}
}

// Query implements services.CacheQuery on top of an engine query.
type Query struct {
	cache       services.Cache
	keys        services.KeyTransformer
	engineQuery services.EngineQuery

	projConverter    *ProjectionConverter
	defaultFetchSize int

	// Builder methods cannot return errors without breaking chaining, so the
	// first builder failure is parked here and surfaced on execution.
	err error
}

// New creates a query over the given cache/engine pair with the filter
// expression already attached. A nil filter matches everything.
func New(filter *services.FilterExpression, engine services.SearchEngine, cache services.Cache, keys services.KeyTransformer, opts ...Option) *Query {
	q := &Query{
		cache:            cache,
		keys:             keys,
		engineQuery:      engine.CreateQuery(),
		defaultFetchSize: config.DefaultFetchSize,
	}
	q.engineQuery.SetFilter(filter)
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Filter replaces the filter expression to evaluate.
func (q *Query) Filter(expr *services.FilterExpression) services.CacheQuery {
	q.engineQuery.SetFilter(expr)
	return q
}

// Sort sets the result ordering.
func (q *Query) Sort(criteria ...services.SortCriterion) services.CacheQuery {
	q.engineQuery.SetSort(criteria)
	return q
}

// FirstResult skips the first n hits. Negative n is recorded as a deferred
// error and surfaced on execution.
func (q *Query) FirstResult(n int) services.CacheQuery {
	if n < 0 {
		q.fail(errors.NewValidationError("first_result", "cannot be negative"))
		return q
	}
	q.engineQuery.SetFirstResult(n)
	return q
}

// MaxResults caps the number of hits returned.
func (q *Query) MaxResults(n int) services.CacheQuery {
	q.engineQuery.SetMaxResults(n)
	return q
}

// Timeout bounds query execution time in the engine.
func (q *Query) Timeout(d time.Duration) services.CacheQuery {
	q.engineQuery.SetTimeout(d)
	return q
}

// Projection switches the query to return projected field rows. The
// pseudo-fields services.ProjectionKey and services.ProjectionValue are
// resolved by the adapter: the engine only ever sees document identifiers.
func (q *Query) Projection(fields ...string) services.CacheQuery {
	q.projConverter = NewProjectionConverter(fields, q.keys)
	q.engineQuery.SetProjection(q.projConverter.EngineFields())
	return q
}

// EnableNamedFilter activates an engine-side named filter and returns its
// handle for parameter setting.
func (q *Query) EnableNamedFilter(name string) (services.NamedFilter, error) {
	return q.engineQuery.EnableNamedFilter(name)
}

// DisableNamedFilter deactivates a previously enabled named filter.
func (q *Query) DisableNamedFilter(name string) services.CacheQuery {
	q.engineQuery.DisableNamedFilter(name)
	return q
}

// ResultSize returns the total hit count from the engine without loading any
// cache entries.
func (q *Query) ResultSize() (int, error) {
	if q.err != nil {
		return 0, q.err
	}
	return q.engineQuery.ResultSize()
}

// List eagerly materializes all hits. Hits whose backing cache entry
// disappeared are skipped, the same rule iterators apply.
func (q *Query) List() ([]interface{}, error) {
	if q.err != nil {
		return nil, q.err
	}
	infos, err := q.engineQuery.EntityInfos()
	if err != nil {
		return nil, err
	}
	loaded, err := q.resultLoader().Load(infos)
	if err != nil {
		return nil, err
	}

	results := make([]interface{}, 0, len(loaded))
	for _, v := range loaded {
		if v != nil {
			results = append(results, v)
		}
	}
	return results, nil
}

// Iterator returns a result iterator over the hits. Both fetch modes are
// wrapped in the null-filtering decorator.
func (q *Query) Iterator(opts ...services.FetchOptions) (services.ResultIterator, error) {
	if q.err != nil {
		return nil, q.err
	}
	fetchOptions := defaultFetchOptions
	if len(opts) > 0 {
		fetchOptions = opts[0]
	}
	fetchSize := fetchOptions.FetchSize
	if fetchSize <= 0 {
		fetchSize = q.defaultFetchSize
	}

	switch fetchOptions.Mode {
	case services.FetchModeEager:
		infos, err := q.engineQuery.EntityInfos()
		if err != nil {
			return nil, err
		}
		return filterNulls(newEagerIterator(infos, q.resultLoader(), fetchSize)), nil
	case services.FetchModeLazy:
		extractor, err := q.engineQuery.Extractor()
		if err != nil {
			return nil, err
		}
		return filterNulls(newLazyIterator(extractor, q.resultLoader())), nil
	default:
		return nil, errors.NewUnknownFetchModeError(fetchOptions.Mode.String())
	}
}

// Facets delegates facet counting to the engine.
func (q *Query) Facets(field string, limit int) ([]services.FacetCount, error) {
	if q.err != nil {
		return nil, q.err
	}
	return q.engineQuery.Facets(field, limit)
}

// Explain delegates match explanation to the engine.
func (q *Query) Explain(docID string) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	return q.engineQuery.Explain(docID)
}

func (q *Query) resultLoader() resultLoader {
	if q.projConverter != nil {
		return &ProjectionLoader{converter: q.projConverter, entities: q.entityLoader()}
	}
	return q.entityLoader()
}

func (q *Query) entityLoader() *EntityLoader {
	return &EntityLoader{cache: q.cache, keys: q.keys}
}

// fail records the first builder error; later ones would only mask it.
func (q *Query) fail(err error) {
	if q.err == nil {
		q.err = err
	}
}
