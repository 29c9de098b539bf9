// Package api exposes the cache grid over HTTP: cache management, entry
// CRUD, query execution and background reindex jobs.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cachegrid/query/config"
	qerrors "github.com/cachegrid/query/internal/errors"
	"github.com/cachegrid/query/internal/grid"
	"github.com/cachegrid/query/model"
	"github.com/cachegrid/query/services"
)

// maxRequestBodySize caps request bodies at 10 MB.
const maxRequestBodySize = 10 << 20

// API holds dependencies for API handlers, primarily the cache grid.
type API struct {
	grid *grid.Grid
}

// NewAPI creates a new API handler structure.
func NewAPI(g *grid.Grid) *API {
	return &API{grid: g}
}

// SetupRoutes defines all the API routes for the cache grid.
func SetupRoutes(router *gin.Engine, g *grid.Grid) {
	apiHandler := NewAPI(g)

	router.Use(CORSMiddleware())
	router.Use(RequestSizeLimitMiddleware(maxRequestBodySize))

	// Health check route
	router.GET("/health", apiHandler.HealthCheckHandler)

	// Job management routes
	jobRoutes := router.Group("/jobs")
	{
		jobRoutes.GET("/:jobId", apiHandler.GetJobHandler)         // Get job status by ID
		jobRoutes.GET("/metrics", apiHandler.GetJobMetricsHandler) // Get job performance metrics
	}

	// Cache management routes
	cacheRoutes := router.Group("/caches")
	{
		cacheRoutes.POST("", apiHandler.CreateCacheHandler)                  // Create a new cache
		cacheRoutes.GET("", apiHandler.ListCachesHandler)                    // List all caches
		cacheRoutes.GET("/:cacheName/stats", apiHandler.GetCacheStatsHandler) // Get cache statistics
		cacheRoutes.POST("/:cacheName/reindex", apiHandler.ReindexHandler)   // Rebuild the cache's index
		cacheRoutes.GET("/:cacheName/jobs", apiHandler.ListJobsHandler)      // List jobs for a cache

		// Entry management routes per cache
		entryRoutes := cacheRoutes.Group("/:cacheName/entries")
		{
			entryRoutes.PUT("/:key", apiHandler.PutEntryHandler)       // Add/Update an entry
			entryRoutes.GET("/:key", apiHandler.GetEntryHandler)       // Get an entry
			entryRoutes.DELETE("/:key", apiHandler.DeleteEntryHandler) // Delete an entry
		}

		// Query routes per cache
		cacheRoutes.POST("/:cacheName/query", apiHandler.QueryHandler)
		cacheRoutes.GET("/:cacheName/facets", apiHandler.FacetsHandler)
	}
}

// HealthCheckHandler reports service liveness.
func (api *API) HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"caches": len(api.grid.ListCaches()),
	})
}

// CreateCacheHandler handles the request to create a new cache.
// Request Body: config.CacheSettings
func (api *API) CreateCacheHandler(c *gin.Context) {
	var settings config.CacheSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		SendInvalidJSONError(c, err)
		return
	}

	if _, err := api.grid.CreateCache(settings); err != nil {
		switch {
		case errors.Is(err, qerrors.ErrCacheAlreadyExists):
			SendCacheExistsError(c, settings.Name)
		case errors.Is(err, qerrors.ErrInvalidInput):
			SendError(c, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		default:
			SendInternalError(c, "cache creation", err)
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Cache '" + settings.Name + "' created successfully"})
}

// ListCachesHandler returns the names of all caches.
func (api *API) ListCachesHandler(c *gin.Context) {
	names := api.grid.ListCaches()
	c.JSON(http.StatusOK, gin.H{
		"caches": names,
		"total":  len(names),
	})
}

// GetCacheStatsHandler returns entry and index counts for a cache.
func (api *API) GetCacheStatsHandler(c *gin.Context) {
	binding, err := api.getBinding(c)
	if err != nil {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"name":              binding.Settings.Name,
		"entry_count":       binding.Cache.Size(),
		"indexed_documents": binding.Engine.DocumentCount(),
		"settings":          binding.Settings,
	})
}

// PutEntryHandler stores the request body as the entry value. The key path
// segment is decoded through the key transformer ("I:42" becomes the int 42);
// an untagged segment is used as a plain string key.
func (api *API) PutEntryHandler(c *gin.Context) {
	binding, err := api.getBinding(c)
	if err != nil {
		return
	}

	key, ok := api.pathKey(c)
	if !ok {
		return
	}

	var value interface{}
	if err := c.ShouldBindJSON(&value); err != nil {
		SendInvalidJSONError(c, err)
		return
	}

	if err := binding.Cache.Put(key, value); err != nil {
		SendError(c, http.StatusInternalServerError, ErrorCodeStoreFailed, "Failed to store entry: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Entry stored successfully"})
}

// GetEntryHandler returns the value stored under the key path segment.
func (api *API) GetEntryHandler(c *gin.Context) {
	binding, err := api.getBinding(c)
	if err != nil {
		return
	}

	key, ok := api.pathKey(c)
	if !ok {
		return
	}

	value, found := binding.Cache.Get(key)
	if !found {
		SendEntryNotFoundError(c, c.Param("key"), binding.Settings.Name)
		return
	}
	c.JSON(http.StatusOK, gin.H{"value": value})
}

// DeleteEntryHandler removes the entry stored under the key path segment.
func (api *API) DeleteEntryHandler(c *gin.Context) {
	binding, err := api.getBinding(c)
	if err != nil {
		return
	}

	key, ok := api.pathKey(c)
	if !ok {
		return
	}

	if _, found := binding.Cache.Remove(key); !found {
		SendEntryNotFoundError(c, c.Param("key"), binding.Settings.Name)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Entry deleted successfully"})
}

// QueryRequest is the body of a cache query.
type QueryRequest struct {
	Filter      *services.FilterExpression `json:"filter,omitempty"`
	Sort        []services.SortCriterion   `json:"sort,omitempty"`
	FirstResult int                        `json:"first_result,omitempty"`
	MaxResults  int                        `json:"max_results,omitempty"`
	Projection  []string                   `json:"projection,omitempty"`
	TimeoutMs   int                        `json:"timeout_ms,omitempty"`
}

// QueryResponse carries the materialized hits plus the total match count
// before pagination.
type QueryResponse struct {
	Hits   []interface{} `json:"hits"`
	Total  int           `json:"total"`
	TookMs int64         `json:"took_ms"`
}

// QueryHandler executes a query against a cache.
// Request Body: QueryRequest
func (api *API) QueryHandler(c *gin.Context) {
	binding, err := api.getBinding(c)
	if err != nil {
		return
	}

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendInvalidJSONError(c, err)
		return
	}

	query := binding.NewQuery(req.Filter)
	if len(req.Sort) > 0 {
		query.Sort(req.Sort...)
	}
	if req.FirstResult != 0 {
		query.FirstResult(req.FirstResult)
	}
	if req.MaxResults > 0 {
		query.MaxResults(req.MaxResults)
	}
	if len(req.Projection) > 0 {
		query.Projection(req.Projection...)
	}
	if req.TimeoutMs > 0 {
		query.Timeout(time.Duration(req.TimeoutMs) * time.Millisecond)
	}

	start := time.Now()
	total, err := query.ResultSize()
	if err == nil {
		var hits []interface{}
		hits, err = query.List()
		if err == nil {
			c.JSON(http.StatusOK, QueryResponse{
				Hits:   hits,
				Total:  total,
				TookMs: time.Since(start).Milliseconds(),
			})
			return
		}
	}

	switch {
	case errors.Is(err, qerrors.ErrQueryTimeout):
		SendQueryTimeoutError(c, binding.Settings.Name, err)
	case errors.Is(err, qerrors.ErrInvalidInput):
		SendError(c, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
	default:
		SendQueryError(c, binding.Settings.Name, err)
	}
}

// FacetsHandler counts distinct values of a field across all cache entries.
// Query params: field (required), limit (optional).
func (api *API) FacetsHandler(c *gin.Context) {
	binding, err := api.getBinding(c)
	if err != nil {
		return
	}

	field := c.Query("field")
	if field == "" {
		SendError(c, http.StatusBadRequest, ErrorCodeValidationFailed, "Query parameter 'field' is required")
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			SendError(c, http.StatusBadRequest, ErrorCodeValidationFailed, "Query parameter 'limit' must be an integer")
			return
		}
	}

	facets, err := binding.NewQuery(nil).Facets(field, limit)
	if err != nil {
		SendQueryError(c, binding.Settings.Name, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"field":  field,
		"facets": facets,
	})
}

// ReindexHandler starts an asynchronous mass reindex of the cache.
func (api *API) ReindexHandler(c *gin.Context) {
	binding, err := api.getBinding(c)
	if err != nil {
		return
	}

	jobID, err := binding.Indexer.Start()
	if err != nil {
		SendError(c, http.StatusInternalServerError, ErrorCodeJobFailed, "Failed to start reindex: "+err.Error())
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":  "accepted",
		"message": "Reindex started for cache '" + binding.Settings.Name + "'",
		"job_id":  jobID,
	})
}

// ListJobsHandler lists jobs for a cache, optionally filtered by ?status=.
func (api *API) ListJobsHandler(c *gin.Context) {
	binding, err := api.getBinding(c)
	if err != nil {
		return
	}

	var statusFilter *model.JobStatus
	if raw := c.Query("status"); raw != "" {
		status := model.JobStatus(strings.ToLower(raw))
		switch status {
		case model.JobStatusPending, model.JobStatusRunning, model.JobStatusCompleted,
			model.JobStatusFailed, model.JobStatusCancelled:
			statusFilter = &status
		default:
			SendError(c, http.StatusBadRequest, ErrorCodeValidationFailed, "Unknown job status '"+raw+"'")
			return
		}
	}

	jobList := api.grid.Jobs().ListJobs(binding.Settings.Name, statusFilter)
	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobList,
		"total": len(jobList),
	})
}

// GetJobHandler returns a single job by ID.
func (api *API) GetJobHandler(c *gin.Context) {
	jobID := c.Param("jobId")
	job, err := api.grid.Jobs().GetJob(jobID)
	if err != nil {
		SendJobNotFoundError(c, jobID)
		return
	}
	c.JSON(http.StatusOK, job)
}

// GetJobMetricsHandler returns aggregate job execution metrics.
func (api *API) GetJobMetricsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, api.grid.Jobs().GetMetrics())
}

// getBinding resolves the :cacheName path parameter; on failure it writes the
// 404 response and returns a non-nil error.
func (api *API) getBinding(c *gin.Context) (*grid.CacheBinding, error) {
	name := c.Param("cacheName")
	binding, err := api.grid.GetCache(name)
	if err != nil {
		SendCacheNotFoundError(c, name)
		return nil, err
	}
	return binding, nil
}

// pathKey decodes the :key path parameter through the key transformer.
// Untagged segments and unknown tags fall back to plain string keys; a
// registered tag with an undecodable payload ("I:abc") is a client error,
// answered with 400 before the handler proceeds.
func (api *API) pathKey(c *gin.Context) (interface{}, bool) {
	raw := c.Param("key")
	key, err := api.grid.KeyTransformer().StringToKey(raw)
	if err == nil {
		return key, true
	}
	if errors.Is(err, qerrors.ErrTransformerNotFound) || errors.Is(err, qerrors.ErrInvalidInput) {
		return raw, true
	}
	SendError(c, http.StatusBadRequest, ErrorCodeInvalidKey, "Invalid key '"+raw+"': "+err.Error())
	return nil, false
}
