// Package dsl provides a fluent builder for cache queries. A builder chain
// like
//
//	factory.Query().
//		Having("genre").Eq("sci-fi").
//		And("year").Gte(1990).
//		OrderBy("year", services.SortDesc).
//		Build()
//
// produces a filter expression tree and a ready-to-execute CacheQuery.
package dsl

import (
	"time"

	"github.com/cachegrid/query/internal/cachequery"
	"github.com/cachegrid/query/services"
)

// QueryFactory creates query builders bound to one cache/engine pair.
type QueryFactory struct {
	engine services.SearchEngine
	cache  services.Cache
	keys   services.KeyTransformer
	opts   []cachequery.Option
}

// NewQueryFactory creates a factory. The options are applied to every query
// it builds.
func NewQueryFactory(engine services.SearchEngine, cache services.Cache, keys services.KeyTransformer, opts ...cachequery.Option) *QueryFactory {
	return &QueryFactory{engine: engine, cache: cache, keys: keys, opts: opts}
}

// Query starts a new builder.
func (f *QueryFactory) Query() *QueryBuilder {
	return &QueryBuilder{
		factory:    f,
		expr:       &services.FilterExpression{},
		state:      &chain{},
		maxResults: -1,
	}
}

// QueryBuilder accumulates filter conditions, ordering, pagination and
// projection before Build turns them into a CacheQuery.
type QueryBuilder struct {
	factory     *QueryFactory
	expr        *services.FilterExpression
	state       *chain
	sorts       []services.SortCriterion
	firstResult int
	maxResults  int
	projection  []string
	timeout     time.Duration
}

// Having starts the first filter condition on the given field.
func (b *QueryBuilder) Having(field string) *FilterConditionEndContext {
	return &FilterConditionEndContext{builder: b, target: b.expr, state: b.state, field: field}
}

// Not starts a negated first filter condition on the given field.
func (b *QueryBuilder) Not(field string) *FilterConditionEndContext {
	return &FilterConditionEndContext{builder: b, target: b.expr, state: b.state, field: field, negated: true}
}

// OrderBy appends a sort criterion; criteria apply in the order given.
func (b *QueryBuilder) OrderBy(field, order string) *QueryBuilder {
	b.sorts = append(b.sorts, services.SortCriterion{Field: field, Order: order})
	return b
}

// FirstResult skips the first n hits.
func (b *QueryBuilder) FirstResult(n int) *QueryBuilder {
	b.firstResult = n
	return b
}

// MaxResults caps the number of hits returned.
func (b *QueryBuilder) MaxResults(n int) *QueryBuilder {
	b.maxResults = n
	return b
}

// Projection requests projected rows instead of whole cache values.
func (b *QueryBuilder) Projection(fields ...string) *QueryBuilder {
	b.projection = fields
	return b
}

// Timeout bounds query execution time.
func (b *QueryBuilder) Timeout(d time.Duration) *QueryBuilder {
	b.timeout = d
	return b
}

// Expression returns the filter expression built so far, or nil when no
// condition was added (match everything).
func (b *QueryBuilder) Expression() *services.FilterExpression {
	if len(b.expr.Filters) == 0 && len(b.expr.Groups) == 0 {
		return nil
	}
	return b.expr
}

// Build creates the CacheQuery for everything accumulated on the builder.
func (b *QueryBuilder) Build() services.CacheQuery {
	f := b.factory
	q := services.CacheQuery(cachequery.New(b.Expression(), f.engine, f.cache, f.keys, f.opts...))
	if len(b.sorts) > 0 {
		q = q.Sort(b.sorts...)
	}
	if b.firstResult != 0 {
		q = q.FirstResult(b.firstResult)
	}
	if b.maxResults >= 0 {
		q = q.MaxResults(b.maxResults)
	}
	if len(b.projection) > 0 {
		q = q.Projection(b.projection...)
	}
	if b.timeout > 0 {
		q = q.Timeout(b.timeout)
	}
	return q
}

// Having starts a detached condition, used to build nested groups for
// FilterConditionContext.AndGroup / OrGroup.
func Having(field string) *FilterConditionEndContext {
	return &FilterConditionEndContext{target: &services.FilterExpression{}, state: &chain{}, field: field}
}

// Not starts a detached negated condition.
func Not(field string) *FilterConditionEndContext {
	return &FilterConditionEndContext{target: &services.FilterExpression{}, state: &chain{}, field: field, negated: true}
}
