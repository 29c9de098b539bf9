// Package config provides configuration structures for the cache query
// integration: adapter defaults, persistence locations and background job
// limits.
package config

import (
	"strings"
	"time"
)

const (
	// DefaultFetchSize bounds how many hits an eager iterator resolves per batch
	// when the caller does not override it.
	DefaultFetchSize = 32

	// DefaultMaxIndexWorkers limits concurrently running background index jobs.
	DefaultMaxIndexWorkers = 2
)

// Settings contains all configuration options for a query-enabled cache grid.
type Settings struct {
	DataDir          string        `json:"data_dir"`           // Directory for shared store snapshots
	DefaultFetchSize int           `json:"default_fetch_size"` // Batch size for eager result loading
	DefaultTimeout   time.Duration `json:"default_timeout"`    // Query timeout applied when a query sets none; 0 disables
	MaxIndexWorkers  int           `json:"max_index_workers"`  // Concurrent background index jobs
	PreloadOnStart   bool          `json:"preload_on_start"`   // Preload caches from their shared store when created
	IndexOnWrite     bool          `json:"index_on_write"`     // Keep the index in sync through cache listeners
}

// CacheSettings contains per-cache options.
type CacheSettings struct {
	Name         string `json:"name"`          // Unique cache name
	MaxEntries   int    `json:"max_entries"`   // In-memory entry cap; 0 means unbounded. Oldest entries are evicted first.
	SharedStore  bool   `json:"shared_store"`  // Persist entries to a shared gob snapshot
	PurgeOnStart bool   `json:"purge_on_start"` // Drop any existing snapshot instead of preloading it
}

// ApplyDefaults applies default values to the settings
func (s *Settings) ApplyDefaults() {
	if s.DefaultFetchSize <= 0 {
		s.DefaultFetchSize = DefaultFetchSize
	}
	if s.MaxIndexWorkers <= 0 {
		s.MaxIndexWorkers = DefaultMaxIndexWorkers
	}
	if s.DataDir == "" {
		s.DataDir = "./cache_data"
	}
}

// Validate checks the settings for basic requirements and returns a list of
// conflicts; an empty list means the settings are usable.
func (s *Settings) Validate() []string {
	var conflicts []string
	if s.DefaultTimeout < 0 {
		conflicts = append(conflicts, "default_timeout cannot be negative")
	}
	if s.DefaultFetchSize < 0 {
		conflicts = append(conflicts, "default_fetch_size cannot be negative")
	}
	if s.MaxIndexWorkers < 0 {
		conflicts = append(conflicts, "max_index_workers cannot be negative")
	}
	return conflicts
}

// Validate checks the per-cache settings and returns a list of conflicts.
func (cs *CacheSettings) Validate() []string {
	var conflicts []string
	if strings.TrimSpace(cs.Name) == "" {
		conflicts = append(conflicts, "cache name cannot be empty or whitespace-only")
	}
	if strings.ContainsAny(cs.Name, "/\\") {
		conflicts = append(conflicts, "cache name cannot contain path separators")
	}
	if cs.MaxEntries < 0 {
		conflicts = append(conflicts, "max_entries cannot be negative")
	}
	if cs.PurgeOnStart && !cs.SharedStore {
		conflicts = append(conflicts, "purge_on_start requires shared_store")
	}
	return conflicts
}
