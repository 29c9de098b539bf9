// Package backend keeps the search index in sync with cache contents: an
// IndexingBridge listens to entry lifecycle events, and a MassIndexer
// rebuilds the whole index from the cache as a background job.
package backend

import (
	"log"

	"github.com/cachegrid/query/services"
)

// IndexingBridge is a cache listener that mirrors cache writes into the
// search engine. Keys travel through the key transformer; values through the
// document mapper. Removals delete the document, evictions do NOT: an evicted
// entry is still logically present (e.g. in a shared store), it just cannot
// be read from memory right now, which is exactly the case the query layer's
// null filtering covers.
type IndexingBridge struct {
	engine services.SearchEngine
	keys   services.KeyTransformer
	mapper DocumentMapper
}

// NewIndexingBridge creates a bridge. A nil mapper falls back to the
// DefaultMapper.
func NewIndexingBridge(engine services.SearchEngine, keys services.KeyTransformer, mapper DocumentMapper) *IndexingBridge {
	if mapper == nil {
		mapper = DefaultMapper{}
	}
	return &IndexingBridge{engine: engine, keys: keys, mapper: mapper}
}

// Attach registers the bridge on the cache.
func (b *IndexingBridge) Attach(cache services.Cache) {
	cache.AddListener(b)
}

// EntryPut indexes the written value under the transformed key. Entries whose
// key or value cannot be transformed stay unindexed; the cache write itself
// is never blocked by index trouble.
func (b *IndexingBridge) EntryPut(key, value interface{}) {
	docID, err := b.keys.KeyToString(key)
	if err != nil {
		log.Printf("Warning: not indexing entry, key transformation failed: %v", err)
		return
	}
	doc, err := b.mapper.ToDocument(value)
	if err != nil {
		log.Printf("Warning: not indexing entry '%s', value mapping failed: %v", docID, err)
		return
	}
	if err := b.engine.Index(docID, doc); err != nil {
		log.Printf("Warning: failed to index entry '%s': %v", docID, err)
	}
}

// EntryRemoved deletes the document for a removed entry.
func (b *IndexingBridge) EntryRemoved(key interface{}) {
	docID, err := b.keys.KeyToString(key)
	if err != nil {
		log.Printf("Warning: cannot unindex removed entry, key transformation failed: %v", err)
		return
	}
	if err := b.engine.Delete(docID); err != nil {
		log.Printf("Warning: failed to unindex entry '%s': %v", docID, err)
	}
}

// EntryEvicted keeps the document indexed; see the type comment.
func (b *IndexingBridge) EntryEvicted(key interface{}) {}
