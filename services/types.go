package services

import "fmt"

// Filter operator names understood by engine queries. These mirror the
// operators the filter DSL can produce.
const (
	OpEq          = "eq"
	OpNe          = "ne"
	OpGt          = "gt"
	OpGte         = "gte"
	OpLt          = "lt"
	OpLte         = "lte"
	OpBetween     = "between"
	OpIn          = "in"
	OpLike        = "like"
	OpContains    = "contains"
	OpContainsAll = "contains_all"
	OpContainsAny = "contains_any"
	OpIsNull      = "is_null"
)

// Boolean combinators for filter expressions.
const (
	CombinatorAnd = "AND"
	CombinatorOr  = "OR"
)

// Sort orders for SortCriterion.Order.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// Pseudo-fields understood in projections. ProjectionKey and ProjectionValue
// are resolved by the adapter (decoded cache key, live cache value);
// ProjectionDocumentID is filled by the engine with the raw document
// identifier and is what the adapter requests under the hood.
const (
	ProjectionKey        = "__cache_key"
	ProjectionValue      = "__cache_value"
	ProjectionDocumentID = "__document_id"
)

// FilterCondition is a single predicate over one document field.
// UpperValue is only used by the "between" operator; IncludeLower and
// IncludeUpper control the bound inclusivity of a range.
type FilterCondition struct {
	Field        string      `json:"field"`
	Operator     string      `json:"operator"`
	Value        interface{} `json:"value,omitempty"`
	UpperValue   interface{} `json:"upper_value,omitempty"`
	IncludeLower bool        `json:"include_lower,omitempty"`
	IncludeUpper bool        `json:"include_upper,omitempty"`
	Negated      bool        `json:"negated,omitempty"`
}

// FilterExpression is a boolean combination of conditions and nested
// sub-expressions. An empty Operator on a single-condition expression is
// treated as AND.
type FilterExpression struct {
	Operator string             `json:"operator,omitempty"`
	Filters  []FilterCondition  `json:"filters,omitempty"`
	Groups   []FilterExpression `json:"groups,omitempty"`
	Negated  bool               `json:"negated,omitempty"`
}

// SortCriterion defines a single field and direction to order results by.
// Criteria are applied in the order given.
type SortCriterion struct {
	Field string `json:"field"`
	Order string `json:"order"`
}

// EntityInfo identifies a single engine hit: the document identifier the
// entry was indexed under and, for projected queries, the projected row in
// engine field order.
type EntityInfo struct {
	DocumentID string
	Projection []interface{}
}

// FacetCount is one bucket of a facet: a distinct field value and the number
// of matching documents carrying it.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// FetchMode selects how query results are materialized during iteration.
type FetchMode int

const (
	// FetchModeEager resolves all hits up front, loading cache values in
	// batches bounded by the fetch size. Iterators in this mode hold no
	// engine resources.
	FetchModeEager FetchMode = iota

	// FetchModeLazy resolves hits on demand during iteration. Lazy iterators
	// hold an engine-side extractor and MUST be closed, also on early
	// termination.
	FetchModeLazy
)

func (m FetchMode) String() string {
	switch m {
	case FetchModeEager:
		return "EAGER"
	case FetchModeLazy:
		return "LAZY"
	default:
		return fmt.Sprintf("FetchMode(%d)", int(m))
	}
}

// FetchOptions controls iteration behavior of CacheQuery.Iterator.
// A FetchSize <= 0 falls back to the query's configured default.
type FetchOptions struct {
	Mode      FetchMode
	FetchSize int
}
