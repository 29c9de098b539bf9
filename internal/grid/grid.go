// Package grid wires the moving parts together: it manages named caches and
// binds each one to its own search engine through the indexing bridge, the
// mass indexer and a query factory.
package grid

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cachegrid/query/config"
	"github.com/cachegrid/query/internal/backend"
	"github.com/cachegrid/query/internal/cachequery"
	"github.com/cachegrid/query/internal/dsl"
	"github.com/cachegrid/query/internal/engine"
	"github.com/cachegrid/query/internal/errors"
	"github.com/cachegrid/query/internal/jobs"
	"github.com/cachegrid/query/internal/keytrans"
	"github.com/cachegrid/query/services"
	"github.com/cachegrid/query/store"
)

// Grid manages query-enabled caches.
type Grid struct {
	mu       sync.RWMutex
	settings config.Settings
	caches   map[string]*CacheBinding
	keys     *keytrans.Handler
	jobs     *jobs.Manager
}

// CacheBinding is one cache with its attached engine and index machinery.
type CacheBinding struct {
	Settings config.CacheSettings
	Cache    services.Cache
	Engine   *engine.Engine
	Indexer  *backend.MassIndexer

	factory *dsl.QueryFactory
	keys    services.KeyTransformer
}

// QueryFactory returns the DSL entry point for this cache.
func (b *CacheBinding) QueryFactory() *dsl.QueryFactory {
	return b.factory
}

// NewQuery creates a CacheQuery with the given filter attached; a nil filter
// matches everything.
func (b *CacheBinding) NewQuery(filter *services.FilterExpression, opts ...cachequery.Option) services.CacheQuery {
	return cachequery.New(filter, b.Engine, b.Cache, b.keys, opts...)
}

// New creates a grid and starts its job manager.
func New(settings config.Settings) (*Grid, error) {
	settings.ApplyDefaults()
	if conflicts := settings.Validate(); len(conflicts) > 0 {
		return nil, errors.NewValidationError("settings", strings.Join(conflicts, "; "))
	}

	g := &Grid{
		settings: settings,
		caches:   make(map[string]*CacheBinding),
		keys:     keytrans.NewHandler(),
		jobs:     jobs.NewManager(settings.MaxIndexWorkers),
	}
	g.jobs.Start()
	return g, nil
}

// KeyTransformer returns the shared key transformation registry, so callers
// can register transformers for custom key types.
func (g *Grid) KeyTransformer() *keytrans.Handler { return g.keys }

// Jobs returns the background job manager.
func (g *Grid) Jobs() *jobs.Manager { return g.jobs }

// Stop shuts the grid down, waiting for running jobs.
func (g *Grid) Stop() { g.jobs.Stop() }

// CreateCache creates and wires a new query-enabled cache.
func (g *Grid) CreateCache(cs config.CacheSettings) (*CacheBinding, error) {
	if conflicts := cs.Validate(); len(conflicts) > 0 {
		return nil, errors.NewValidationError("cache_settings", strings.Join(conflicts, "; "))
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.caches[cs.Name]; exists {
		return nil, errors.NewCacheAlreadyExistsError(cs.Name)
	}

	var opts []store.Option
	if cs.SharedStore {
		loader, err := store.NewSharedLoader(filepath.Join(g.settings.DataDir, cs.Name+".gob"), g.keys)
		if err != nil {
			return nil, fmt.Errorf("failed to open shared store for cache '%s': %w", cs.Name, err)
		}
		if cs.PurgeOnStart {
			if err := loader.Purge(); err != nil {
				return nil, fmt.Errorf("failed to purge shared store for cache '%s': %w", cs.Name, err)
			}
		}
		opts = append(opts, store.WithSharedLoader(loader))
	}
	if cs.MaxEntries > 0 {
		opts = append(opts, store.WithMaxEntries(cs.MaxEntries))
	}

	cache := store.NewCacheStore(cs.Name, opts...)
	eng := engine.New()

	if g.settings.IndexOnWrite {
		backend.NewIndexingBridge(eng, g.keys, nil).Attach(cache)
	}
	indexer := backend.NewMassIndexer(cache, eng, g.keys, nil, g.jobs)

	if g.settings.PreloadOnStart && cs.SharedStore && !cs.PurgeOnStart {
		if err := cache.Preload(); err != nil {
			return nil, fmt.Errorf("failed to preload cache '%s': %w", cs.Name, err)
		}
		// Preload bypasses listeners, so the preloaded entries are not
		// indexed yet. Rebuild synchronously before handing the cache out.
		if err := indexer.Run(context.Background()); err != nil {
			return nil, fmt.Errorf("failed to index preloaded cache '%s': %w", cs.Name, err)
		}
		log.Printf("Cache '%s' preloaded and indexed (%d entries)", cs.Name, cache.Size())
	}

	queryOpts := []cachequery.Option{cachequery.WithDefaultFetchSize(g.settings.DefaultFetchSize)}
	if g.settings.DefaultTimeout > 0 {
		queryOpts = append(queryOpts, cachequery.WithDefaultTimeout(g.settings.DefaultTimeout))
	}

	binding := &CacheBinding{
		Settings: cs,
		Cache:    cache,
		Engine:   eng,
		Indexer:  indexer,
		factory:  dsl.NewQueryFactory(eng, cache, g.keys, queryOpts...),
		keys:     g.keys,
	}
	g.caches[cs.Name] = binding
	return binding, nil
}

// GetCache returns the binding for a named cache.
func (g *Grid) GetCache(name string) (*CacheBinding, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	binding, ok := g.caches[name]
	if !ok {
		return nil, errors.NewCacheNotFoundError(name)
	}
	return binding, nil
}

// ListCaches returns the names of all caches, sorted.
func (g *Grid) ListCaches() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := make([]string, 0, len(g.caches))
	for name := range g.caches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
