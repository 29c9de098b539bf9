package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/google/uuid"

	"github.com/cachegrid/query/internal/errors"
	"github.com/cachegrid/query/model"
	"github.com/cachegrid/query/services"
)

// How many documents are scanned between query deadline checks. The first
// document is always preceded by a check.
const deadlineCheckInterval = 256

// match is one query hit before projection.
type match struct {
	docID string
	doc   model.Document
}

// Query implements services.EngineQuery for the scan engine. A Query is not
// safe for concurrent use; configure it fully, then execute.
type Query struct {
	eng        *Engine
	id         string
	filter     *services.FilterExpression
	sorts      []services.SortCriterion
	first      int
	max        int // -1 means unlimited
	timeout    time.Duration
	projection []string
	enabled    map[string]*namedFilter
}

func newQuery(e *Engine) *Query {
	return &Query{
		eng:     e,
		id:      uuid.New().String(),
		max:     -1,
		enabled: make(map[string]*namedFilter),
	}
}

func (q *Query) SetFilter(expr *services.FilterExpression) { q.filter = expr }

func (q *Query) SetSort(criteria []services.SortCriterion) { q.sorts = criteria }

func (q *Query) SetFirstResult(n int) { q.first = n }

func (q *Query) SetMaxResults(n int) { q.max = n }

func (q *Query) SetTimeout(d time.Duration) { q.timeout = d }

func (q *Query) SetProjection(fields []string) { q.projection = fields }

// EnableNamedFilter activates a filter registered with the engine and returns
// its handle so parameters can be set.
func (q *Query) EnableNamedFilter(name string) (services.NamedFilter, error) {
	q.eng.mu.RLock()
	fn, ok := q.eng.filters[name]
	q.eng.mu.RUnlock()
	if !ok {
		return nil, errors.NewFilterNotFoundError(name)
	}
	nf := &namedFilter{name: name, fn: fn, params: make(map[string]interface{})}
	q.enabled[name] = nf
	return nf, nil
}

// DisableNamedFilter deactivates a previously enabled named filter.
func (q *Query) DisableNamedFilter(name string) {
	delete(q.enabled, name)
}

// ResultSize returns the total hit count, ignoring pagination.
func (q *Query) ResultSize() (int, error) {
	matches, err := q.execute()
	if err != nil {
		return 0, err
	}
	return len(matches), nil
}

// EntityInfos executes the query and returns the hits within the configured
// pagination window, sorted and projected.
func (q *Query) EntityInfos() ([]services.EntityInfo, error) {
	matches, err := q.execute()
	if err != nil {
		return nil, err
	}
	matches = q.window(matches)

	infos := make([]services.EntityInfo, 0, len(matches))
	for _, m := range matches {
		infos = append(infos, services.EntityInfo{
			DocumentID: m.docID,
			Projection: q.projectRow(m),
		})
	}
	return infos, nil
}

// Extractor executes the query and returns a closable handle over the hits.
// A scan engine has the full hit list in hand anyway; real engines stream.
func (q *Query) Extractor() (services.DocumentExtractor, error) {
	infos, err := q.EntityInfos()
	if err != nil {
		return nil, err
	}
	return &scanExtractor{infos: infos}, nil
}

// Facets counts distinct values of field over all matches, ignoring
// pagination. Buckets are ordered by count descending, then value ascending.
func (q *Query) Facets(field string, limit int) ([]services.FacetCount, error) {
	matches, err := q.execute()
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, m := range matches {
		val, ok := m.doc[field]
		if !ok || val == nil {
			continue
		}
		for _, elem := range fieldElements(val) {
			counts[fmt.Sprintf("%v", elem)]++
		}
	}

	facets := make([]services.FacetCount, 0, len(counts))
	for value, count := range counts {
		facets = append(facets, services.FacetCount{Value: value, Count: count})
	}
	sort.Slice(facets, func(i, j int) bool {
		if facets[i].Count != facets[j].Count {
			return facets[i].Count > facets[j].Count
		}
		return facets[i].Value < facets[j].Value
	})
	if limit > 0 && len(facets) > limit {
		facets = facets[:limit]
	}
	return facets, nil
}

// Explain describes why the document under docID does or does not match the
// configured filter.
func (q *Query) Explain(docID string) (string, error) {
	q.eng.mu.RLock()
	defer q.eng.mu.RUnlock()

	id, ok := q.eng.internalIDs[docID]
	if !ok {
		return fmt.Sprintf("document '%s' is not indexed", docID), nil
	}
	doc := q.eng.docs[id]

	var b strings.Builder
	fmt.Fprintf(&b, "document '%s': match=%v\n", docID, q.matches(doc))
	explainExpression(doc, q.filter, &b, 1)
	for _, nf := range q.enabled {
		fmt.Fprintf(&b, "  named filter '%s' => %v\n", nf.name, nf.fn(nf.params, doc))
	}
	return b.String(), nil
}

// execute scans the live documents, applies the filter expression and any
// enabled named filters, and returns the sorted matches.
func (q *Query) execute() ([]match, error) {
	start := time.Now()

	q.eng.mu.RLock()
	defer q.eng.mu.RUnlock()

	matched := roaring.New()
	it := q.eng.live.Iterator()
	checked := 0
	for it.HasNext() {
		if q.timeout > 0 && checked%deadlineCheckInterval == 0 {
			if elapsed := time.Since(start); elapsed >= q.timeout {
				return nil, errors.NewQueryTimeoutError(q.timeout, elapsed)
			}
		}
		checked++

		id := it.Next()
		if q.matches(q.eng.docs[id]) {
			matched.Add(id)
		}
	}

	results := make([]match, 0, matched.GetCardinality())
	mit := matched.Iterator()
	for mit.HasNext() {
		id := mit.Next()
		results = append(results, match{docID: q.eng.externalIDs[id], doc: q.eng.docs[id]})
	}
	sortMatches(results, q.sorts)
	return results, nil
}

func (q *Query) matches(doc model.Document) bool {
	if !matchExpression(doc, q.filter) {
		return false
	}
	for _, nf := range q.enabled {
		if !nf.fn(nf.params, doc) {
			return false
		}
	}
	return true
}

func (q *Query) window(matches []match) []match {
	if q.first > 0 {
		if q.first >= len(matches) {
			return nil
		}
		matches = matches[q.first:]
	}
	if q.max >= 0 && len(matches) > q.max {
		matches = matches[:q.max]
	}
	return matches
}

func (q *Query) projectRow(m match) []interface{} {
	if q.projection == nil {
		return nil
	}
	row := make([]interface{}, len(q.projection))
	for i, field := range q.projection {
		if field == services.ProjectionDocumentID {
			row[i] = m.docID
			continue
		}
		row[i] = m.doc[field]
	}
	return row
}

// namedFilter is the handle returned by EnableNamedFilter.
type namedFilter struct {
	name   string
	fn     FilterFunc
	params map[string]interface{}
}

func (f *namedFilter) Name() string { return f.name }

func (f *namedFilter) SetParameter(name string, value interface{}) services.NamedFilter {
	f.params[name] = value
	return f
}

// scanExtractor hands out precomputed hits. Extract after Close is an error.
type scanExtractor struct {
	infos  []services.EntityInfo
	closed bool
}

func (x *scanExtractor) Extract(index int) (services.EntityInfo, error) {
	if x.closed {
		return services.EntityInfo{}, errors.ErrExtractorClosed
	}
	if index < 0 || index >= len(x.infos) {
		return services.EntityInfo{}, fmt.Errorf("extractor index %d out of range [0,%d]", index, len(x.infos)-1)
	}
	return x.infos[index], nil
}

func (x *scanExtractor) MaxIndex() int { return len(x.infos) - 1 }

func (x *scanExtractor) Close() { x.closed = true }
