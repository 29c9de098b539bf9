// Package engine ships a deliberately simple scan-based search engine used by
// tests and the demo server. The query adapter only depends on the
// services.SearchEngine interface; production deployments bind a real
// full-text engine instead. There is intentionally no inverted index,
// tokenization or relevance scoring here.
package engine

import (
	"sync"

	"github.com/RoaringBitmap/roaring"

	"github.com/cachegrid/query/internal/errors"
	"github.com/cachegrid/query/model"
	"github.com/cachegrid/query/services"
)

// FilterFunc evaluates a named filter against one document, with the
// parameters that were set on the enabled filter handle.
type FilterFunc func(params map[string]interface{}, doc model.Document) bool

// Engine holds indexed documents keyed by their document identifier and
// evaluates filter expressions directly against document fields.
// It implements services.SearchEngine.
type Engine struct {
	mu          sync.RWMutex
	docs        map[uint32]model.Document
	live        *roaring.Bitmap // internal ids of currently indexed documents
	internalIDs map[string]uint32
	externalIDs map[uint32]string
	nextID      uint32
	filters     map[string]FilterFunc
}

// New creates an empty engine.
func New() *Engine {
	return &Engine{
		docs:        make(map[uint32]model.Document),
		live:        roaring.New(),
		internalIDs: make(map[string]uint32),
		externalIDs: make(map[uint32]string),
		filters:     make(map[string]FilterFunc),
	}
}

// Index adds or replaces the document stored under docID. The document is
// cloned so later mutation by the caller cannot corrupt the index.
func (e *Engine) Index(docID string, doc model.Document) error {
	if docID == "" {
		return errors.NewValidationError("docID", "document identifier cannot be empty")
	}
	if doc == nil {
		return errors.NewValidationError("doc", "document cannot be nil")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	id, ok := e.internalIDs[docID]
	if !ok {
		id = e.nextID
		e.nextID++
		e.internalIDs[docID] = id
		e.externalIDs[id] = docID
	}
	e.docs[id] = doc.Clone()
	e.live.Add(id)
	return nil
}

// Delete removes the document stored under docID, if present.
func (e *Engine) Delete(docID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	id, ok := e.internalIDs[docID]
	if !ok {
		return nil
	}
	e.live.Remove(id)
	delete(e.docs, id)
	delete(e.internalIDs, docID)
	delete(e.externalIDs, id)
	return nil
}

// DeleteAll wipes the whole index. Named filter registrations survive.
func (e *Engine) DeleteAll() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.docs = make(map[uint32]model.Document)
	e.live = roaring.New()
	e.internalIDs = make(map[string]uint32)
	e.externalIDs = make(map[uint32]string)
	return nil
}

// DocumentCount returns the number of indexed documents.
func (e *Engine) DocumentCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return int(e.live.GetCardinality())
}

// RegisterNamedFilter makes a filter available for queries to enable by name.
// Registering an existing name replaces the previous filter.
func (e *Engine) RegisterNamedFilter(name string, fn FilterFunc) error {
	if name == "" {
		return errors.NewValidationError("name", "filter name cannot be empty")
	}
	if fn == nil {
		return errors.NewValidationError("fn", "filter function cannot be nil")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.filters[name] = fn
	return nil
}

// CreateQuery starts a new, unconfigured query against this engine.
func (e *Engine) CreateQuery() services.EngineQuery {
	return newQuery(e)
}
