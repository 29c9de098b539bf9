package cachequery

import (
	"github.com/cachegrid/query/services"
)

// resultLoader resolves engine hits into the values handed to callers: live
// cache values for plain queries, projection rows for projected ones. A nil
// resolved value means the backing entry vanished; loaders pass that through
// and leave the skipping to the null-filtering decorator.
type resultLoader interface {
	Load(infos []services.EntityInfo) ([]interface{}, error)
	LoadOne(info services.EntityInfo) (interface{}, error)
}

// EntityLoader resolves a hit to the live cache value: document identifier →
// cache key → cache read.
type EntityLoader struct {
	cache services.Cache
	keys  services.KeyTransformer
}

// LoadOne returns the cache value for the hit, or nil when the entry was
// concurrently removed or evicted.
func (l *EntityLoader) LoadOne(info services.EntityInfo) (interface{}, error) {
	key, err := l.keys.StringToKey(info.DocumentID)
	if err != nil {
		return nil, err
	}
	value, _ := l.cache.Get(key)
	return value, nil
}

// Load resolves a batch of hits, preserving order. Vanished entries show up
// as nil values.
func (l *EntityLoader) Load(infos []services.EntityInfo) ([]interface{}, error) {
	values := make([]interface{}, 0, len(infos))
	for _, info := range infos {
		v, err := l.LoadOne(info)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// ProjectionLoader wraps an EntityLoader for projected queries: engine
// projection rows are converted back through the ProjectionConverter, and the
// cache value is loaded only when the projection actually asks for it.
type ProjectionLoader struct {
	converter *ProjectionConverter
	entities  *EntityLoader
}

// LoadOne returns the converted projection row ([]interface{}) for the hit.
// When the projection includes the value pseudo-field and the entry vanished,
// the whole row resolves to nil so the null filter drops it.
func (l *ProjectionLoader) LoadOne(info services.EntityInfo) (interface{}, error) {
	var entry interface{}
	if l.converter.NeedsValue() {
		loaded, err := l.entities.LoadOne(info)
		if err != nil {
			return nil, err
		}
		if loaded == nil {
			return nil, nil
		}
		entry = loaded
	}

	row, err := l.converter.ConvertRow(info, entry)
	if err != nil {
		return nil, err
	}
	return row, nil
}

// Load converts a batch of hits, preserving order.
func (l *ProjectionLoader) Load(infos []services.EntityInfo) ([]interface{}, error) {
	rows := make([]interface{}, 0, len(infos))
	for _, info := range infos {
		row, err := l.LoadOne(info)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}
