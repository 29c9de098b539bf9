package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cachegrid/query/api"
	"github.com/cachegrid/query/config"
	"github.com/cachegrid/query/internal/grid"
)

func main() {
	// Define command-line flags
	var (
		help      = flag.Bool("help", false, "Show help message")
		version   = flag.Bool("version", false, "Show version information")
		port      = flag.String("port", "8080", "Port to run the server on")
		dataDir   = flag.String("data-dir", "./cache_data", "Directory to store shared cache snapshots")
		timeoutMs = flag.Int("query-timeout-ms", 0, "Default query timeout in milliseconds (0 disables)")
		workers   = flag.Int("index-workers", config.DefaultMaxIndexWorkers, "Max concurrent background index jobs")
	)

	flag.Parse()

	// Handle help flag
	if *help {
		fmt.Printf("Cache Grid Query Server - queryable caches backed by a search index\n\n")
		fmt.Printf("Usage: %s [options]\n\n", os.Args[0])
		fmt.Printf("Options:\n")
		flag.PrintDefaults()
		fmt.Printf("\nExamples:\n")
		fmt.Printf("  %s                          # Start server on default port 8080\n", os.Args[0])
		fmt.Printf("  %s --port 9000              # Start server on port 9000\n", os.Args[0])
		fmt.Printf("  %s --data-dir /tmp/caches   # Use custom data directory\n", os.Args[0])
		return
	}

	// Handle version flag
	if *version {
		fmt.Printf("Cache Grid Query Server v1.0.0\n")
		return
	}

	log.Printf("Using data directory: %s", *dataDir)
	g, err := grid.New(config.Settings{
		DataDir:         *dataDir,
		DefaultTimeout:  time.Duration(*timeoutMs) * time.Millisecond,
		MaxIndexWorkers: *workers,
		PreloadOnStart:  true,
		IndexOnWrite:    true,
	})
	if err != nil {
		log.Fatalf("Failed to initialize cache grid: %v", err)
	}
	defer g.Stop()

	// Initialize Gin router
	router := gin.Default()

	// Setup API routes
	api.SetupRoutes(router, g)

	// Start the server
	log.Printf("Starting server on port %s...", *port)
	if err := router.Run(":" + *port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
