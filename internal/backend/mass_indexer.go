package backend

import (
	"context"
	"fmt"

	"github.com/cachegrid/query/internal/jobs"
	"github.com/cachegrid/query/model"
	"github.com/cachegrid/query/services"
)

// Progress is reported every progressStep entries during a mass reindex.
const progressStep = 100

// MassIndexer wipes the index and re-indexes every cache entry. Used after
// preloading a cache from a shared store, or whenever index and cache may
// have drifted apart.
type MassIndexer struct {
	cache  services.Cache
	engine services.SearchEngine
	keys   services.KeyTransformer
	mapper DocumentMapper
	jobs   *jobs.Manager
}

// NewMassIndexer creates a mass indexer. A nil mapper falls back to the
// DefaultMapper; the jobs manager may be nil if only synchronous Run is used.
func NewMassIndexer(cache services.Cache, engine services.SearchEngine, keys services.KeyTransformer, mapper DocumentMapper, manager *jobs.Manager) *MassIndexer {
	if mapper == nil {
		mapper = DefaultMapper{}
	}
	return &MassIndexer{
		cache:  cache,
		engine: engine,
		keys:   keys,
		mapper: mapper,
		jobs:   manager,
	}
}

// Start launches the reindex as a background job and returns its ID.
func (mi *MassIndexer) Start() (string, error) {
	if mi.jobs == nil {
		return "", fmt.Errorf("mass indexer has no job manager; use Run for synchronous reindexing")
	}

	jobID := mi.jobs.CreateJob(model.JobTypeMassIndex, mi.cache.Name(), map[string]string{
		"operation": "mass_index",
	})
	err := mi.jobs.ExecuteJob(jobID, func(ctx context.Context, job *model.Job) error {
		return mi.run(ctx, jobID)
	})
	if err != nil {
		return "", fmt.Errorf("failed to start mass index job: %w", err)
	}
	return jobID, nil
}

// Run reindexes synchronously.
func (mi *MassIndexer) Run(ctx context.Context) error {
	return mi.run(ctx, "")
}

func (mi *MassIndexer) run(ctx context.Context, jobID string) error {
	if err := mi.engine.DeleteAll(); err != nil {
		return fmt.Errorf("failed to purge index before reindexing: %w", err)
	}

	total := mi.cache.Size()
	indexed := 0
	var indexErr error

	mi.cache.ForEach(func(key, value interface{}) bool {
		select {
		case <-ctx.Done():
			indexErr = ctx.Err()
			return false
		default:
		}

		docID, err := mi.keys.KeyToString(key)
		if err != nil {
			indexErr = fmt.Errorf("key transformation failed during reindex: %w", err)
			return false
		}
		doc, err := mi.mapper.ToDocument(value)
		if err != nil {
			indexErr = fmt.Errorf("value mapping failed during reindex of '%s': %w", docID, err)
			return false
		}
		if err := mi.engine.Index(docID, doc); err != nil {
			indexErr = fmt.Errorf("failed to index '%s' during reindex: %w", docID, err)
			return false
		}

		indexed++
		if jobID != "" && (indexed%progressStep == 0 || indexed == total) {
			mi.jobs.UpdateJobProgress(jobID, indexed, total, "reindexing cache entries")
		}
		return true
	})

	return indexErr
}
