package store

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/cachegrid/query/internal/persistence"
	"github.com/cachegrid/query/services"
)

// SharedLoader is a persistent entry store backed by a gob snapshot file.
// Several cache instances (for example across restarts) can share one loader
// path, which is what lets a freshly started node preload entries written by
// a previous run. Keys are persisted in their transformed string form so the
// snapshot stays gob-friendly regardless of key type.
type SharedLoader struct {
	mu   sync.Mutex
	path string
	keys services.KeyTransformer
	data map[string]interface{}
}

// NewSharedLoader opens (or creates) the snapshot at path. An existing
// snapshot is loaded eagerly; a missing file means a fresh store.
func NewSharedLoader(path string, keys services.KeyTransformer) (*SharedLoader, error) {
	l := &SharedLoader{
		path: path,
		keys: keys,
		data: make(map[string]interface{}),
	}
	if err := persistence.LoadGob(path, &l.data); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load shared store snapshot %s: %w", path, err)
		}
		l.data = make(map[string]interface{})
	}
	if l.data == nil {
		l.data = make(map[string]interface{})
	}
	return l, nil
}

// Store persists one entry and flushes the snapshot.
func (l *SharedLoader) Store(key, value interface{}) error {
	id, err := l.keys.KeyToString(key)
	if err != nil {
		return fmt.Errorf("shared store cannot persist key: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.data[id] = value
	return persistence.SaveGob(l.path, l.data)
}

// Delete removes one entry and flushes the snapshot.
func (l *SharedLoader) Delete(key interface{}) error {
	id, err := l.keys.KeyToString(key)
	if err != nil {
		return fmt.Errorf("shared store cannot resolve key: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.data[id]; !ok {
		return nil
	}
	delete(l.data, id)
	return persistence.SaveGob(l.path, l.data)
}

// LoadAll returns all persisted entries with their keys decoded back to the
// original types.
func (l *SharedLoader) LoadAll() (map[interface{}]interface{}, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[interface{}]interface{}, len(l.data))
	for id, value := range l.data {
		key, err := l.keys.StringToKey(id)
		if err != nil {
			return nil, fmt.Errorf("shared store snapshot holds undecodable key %q: %w", id, err)
		}
		out[key] = value
	}
	return out, nil
}

// Purge drops all persisted entries.
func (l *SharedLoader) Purge() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.data = make(map[string]interface{})
	return persistence.SaveGob(l.path, l.data)
}

// Size returns the number of persisted entries.
func (l *SharedLoader) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.data)
}
