package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/reelforge/reelforge/internal/api"
	"github.com/reelforge/reelforge/internal/compiler"
	"github.com/reelforge/reelforge/internal/config"
	"github.com/reelforge/reelforge/internal/db"
	"github.com/reelforge/reelforge/internal/media"
	"github.com/reelforge/reelforge/internal/models"
	"github.com/reelforge/reelforge/internal/queue"
	"github.com/reelforge/reelforge/internal/services"
	"github.com/reelforge/reelforge/internal/storage"
	"github.com/reelforge/reelforge/internal/worker"
)

func main() {
	log.Println("Starting ReelForge API...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database
	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	log.Println("Connected to database")

	// Connect to Redis queue
	q, err := queue.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()
	log.Println("Connected to Redis queue")

	// Initialize storage
	stor := storage.New(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket)
	log.Println("Initialized Supabase storage")

	// Planner runs in the API process (article submissions)
	planner := services.NewPlannerService(cfg.OpenAIKey)

	// Create API handler
	handler := api.NewHandler(database, q, stor, planner)
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	})

	if cfg.BackendAPIKey != "" {
		log.Println("API key authentication enabled")
	} else {
		log.Println("WARNING: No BACKEND_API_KEY set — API is unprotected (dev mode)")
	}

	// Start HTTP server
	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	// Start worker if enabled
	var workerCtx context.Context
	var workerCancel context.CancelFunc
	if cfg.WorkerEnabled {
		log.Println("Worker enabled, starting background processing...")

		// Initialize providers
		geminiSvc := services.NewGeminiService(cfg.GeminiKey, cfg.GeminiImageModel)
		narrationSvc := services.NewElevenLabsService(cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID)

		musicLib, err := media.LoadLibrary(cfg.MusicLibraryPath)
		if err != nil {
			log.Fatalf("Failed to load music library: %v", err)
		}

		engine := media.NewEngine(cfg.RenderWidth, cfg.RenderHeight, cfg.RenderFPS)

		comp := compiler.New(geminiSvc, narrationSvc, musicLib, engine, compiler.Options{
			WorkDir:         cfg.WorkDir,
			MaxSceneFetches: cfg.MaxSceneFetches,
			MaxSceneRenders: cfg.MaxSceneRenders,
			RetryAttempts:   cfg.RetryAttempts,
			StatusHook: func(jobID uuid.UUID, status models.CompilationStatus) {
				if err := database.UpdateCompilationStatus(context.Background(), jobID, status); err != nil {
					log.Printf("Failed to update compilation %s status: %v", jobID, err)
				}
			},
		})

		w := worker.New(database, q, stor, comp, engine)

		workerCtx, workerCancel = context.WithCancel(context.Background())
		go w.Start(workerCtx, cfg.MaxConcurrentJobs)
	}

	// Start server in goroutine
	go func() {
		log.Printf("API server listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Shutdown worker
	if workerCancel != nil {
		workerCancel()
	}

	// Shutdown HTTP server
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
