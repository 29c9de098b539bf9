package store

import (
	"encoding/gob"
	"log"
	"sync"

	"github.com/cachegrid/query/services"
)

func init() {
	// Register common value shapes so entries survive gob snapshot round
	// trips when stored as interface{} values. JSON-decoded documents are
	// map[string]interface{} with []interface{} arrays.
	gob.Register([]interface{}{})
	gob.Register(map[string]interface{}{})
	gob.Register([]string{})
	gob.Register(float64(0))
	gob.Register(false)
}

// Option configures a CacheStore.
type Option func(*CacheStore)

// WithSharedLoader attaches a shared persistent store. Mutations are written
// through; Preload pulls existing entries back into memory.
func WithSharedLoader(loader *SharedLoader) Option {
	return func(cs *CacheStore) { cs.loader = loader }
}

// WithMaxEntries caps the number of in-memory entries. When the cap is
// exceeded the oldest entry is evicted (shared store data is kept, so an
// evicted entry can still be preloaded later).
func WithMaxEntries(n int) Option {
	return func(cs *CacheStore) { cs.maxEntries = n }
}

// CacheStore is an in-memory concurrent cache. It implements services.Cache.
// Keys must be comparable; use a key type with a registered key transformer
// if the cache is going to be indexed.
type CacheStore struct {
	name       string
	mu         sync.RWMutex
	entries    map[interface{}]interface{}
	order      []interface{} // insertion order, drives cap eviction
	listeners  []services.CacheListener
	loader     *SharedLoader
	maxEntries int
}

// NewCacheStore creates a named cache.
func NewCacheStore(name string, opts ...Option) *CacheStore {
	cs := &CacheStore{
		name:    name,
		entries: make(map[interface{}]interface{}),
	}
	for _, opt := range opts {
		opt(cs)
	}
	return cs
}

// Name returns the cache name.
func (cs *CacheStore) Name() string { return cs.name }

// Get returns the value for key and whether it is present.
func (cs *CacheStore) Get(key interface{}) (interface{}, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	v, ok := cs.entries[key]
	return v, ok
}

// Put stores a key/value pair, replacing any previous value. With a shared
// loader attached the entry is written through first; a write-through failure
// leaves the cache unchanged and no listener fires.
func (cs *CacheStore) Put(key, value interface{}) error {
	if cs.loader != nil {
		if err := cs.loader.Store(key, value); err != nil {
			return err
		}
	}

	cs.mu.Lock()
	_, existed := cs.entries[key]
	cs.entries[key] = value
	if !existed {
		cs.order = append(cs.order, key)
	}

	var evictKey interface{}
	var evicted bool
	if cs.maxEntries > 0 && len(cs.entries) > cs.maxEntries {
		evictKey, evicted = cs.oldestLocked(key)
		if evicted {
			delete(cs.entries, evictKey)
			cs.dropOrderLocked(evictKey)
		}
	}
	listeners := cs.listenersLocked()
	cs.mu.Unlock()

	for _, l := range listeners {
		l.EntryPut(key, value)
	}
	if evicted {
		for _, l := range listeners {
			l.EntryEvicted(evictKey)
		}
	}
	return nil
}

// Remove deletes the entry and returns the previous value, if any. The
// shared store entry is deleted as well.
func (cs *CacheStore) Remove(key interface{}) (interface{}, bool) {
	cs.mu.Lock()
	v, ok := cs.entries[key]
	if ok {
		delete(cs.entries, key)
		cs.dropOrderLocked(key)
	}
	listeners := cs.listenersLocked()
	cs.mu.Unlock()

	if !ok {
		return nil, false
	}
	if cs.loader != nil {
		if err := cs.loader.Delete(key); err != nil {
			log.Printf("Warning: failed to delete key from shared store for cache '%s': %v", cs.name, err)
		}
	}
	for _, l := range listeners {
		l.EntryRemoved(key)
	}
	return v, true
}

// Evict drops the entry from memory only. Shared store data is kept, which is
// what makes an evicted entry "absent" for readers while still recoverable
// via preload.
func (cs *CacheStore) Evict(key interface{}) bool {
	cs.mu.Lock()
	_, ok := cs.entries[key]
	if ok {
		delete(cs.entries, key)
		cs.dropOrderLocked(key)
	}
	listeners := cs.listenersLocked()
	cs.mu.Unlock()

	if !ok {
		return false
	}
	for _, l := range listeners {
		l.EntryEvicted(key)
	}
	return true
}

// ContainsKey reports whether the key is present in memory.
func (cs *CacheStore) ContainsKey(key interface{}) bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	_, ok := cs.entries[key]
	return ok
}

// Size returns the number of in-memory entries.
func (cs *CacheStore) Size() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return len(cs.entries)
}

// Keys returns a snapshot of all in-memory keys.
func (cs *CacheStore) Keys() []interface{} {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	keys := make([]interface{}, 0, len(cs.entries))
	for k := range cs.entries {
		keys = append(keys, k)
	}
	return keys
}

// ForEach visits a snapshot of all entries; returning false stops early.
func (cs *CacheStore) ForEach(fn func(key, value interface{}) bool) {
	cs.mu.RLock()
	snapshot := make(map[interface{}]interface{}, len(cs.entries))
	for k, v := range cs.entries {
		snapshot[k] = v
	}
	cs.mu.RUnlock()

	for k, v := range snapshot {
		if !fn(k, v) {
			return
		}
	}
}

// AddListener registers for entry lifecycle events.
func (cs *CacheStore) AddListener(l services.CacheListener) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners = append(cs.listeners, l)
}

// Preload pulls all entries from the shared store into memory. Listeners are
// not notified; a preloaded cache needs a mass reindex before it is
// queryable, matching how a cold start behaves.
func (cs *CacheStore) Preload() error {
	if cs.loader == nil {
		return nil
	}
	loaded, err := cs.loader.LoadAll()
	if err != nil {
		return err
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()
	for k, v := range loaded {
		if _, existed := cs.entries[k]; !existed {
			cs.order = append(cs.order, k)
		}
		cs.entries[k] = v
	}
	log.Printf("Preloaded %d entries into cache '%s' from shared store", len(loaded), cs.name)
	return nil
}

// oldestLocked picks the eviction victim: the oldest inserted key that is not
// the key just written.
func (cs *CacheStore) oldestLocked(justWritten interface{}) (interface{}, bool) {
	for _, k := range cs.order {
		if k == justWritten {
			continue
		}
		if _, ok := cs.entries[k]; ok {
			return k, true
		}
	}
	return nil, false
}

func (cs *CacheStore) dropOrderLocked(key interface{}) {
	for i, k := range cs.order {
		if k == key {
			cs.order = append(cs.order[:i], cs.order[i+1:]...)
			return
		}
	}
}

func (cs *CacheStore) listenersLocked() []services.CacheListener {
	out := make([]services.CacheListener, len(cs.listeners))
	copy(out, cs.listeners)
	return out
}
