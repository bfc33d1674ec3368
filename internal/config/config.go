package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	APIPort            string
	WorkerEnabled      bool
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Supabase
	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseStorageBucket string

	// OpenAI (article → scene planning)
	OpenAIKey string

	// Gemini (image generation)
	GeminiKey        string
	GeminiImageModel string

	// ElevenLabs (narration)
	ElevenLabsKey     string
	ElevenLabsVoiceID string

	// Compilation pipeline
	WorkDir          string // Parent directory for per-job workspaces
	MusicLibraryPath string // YAML file mapping niches to background tracks
	MaxSceneFetches  int    // Concurrent asset resolutions per job
	MaxSceneRenders  int    // Concurrent scene renders per job
	RetryAttempts    int    // Provider retry budget for transient failures

	// Output geometry
	RenderWidth  int
	RenderHeight int
	RenderFPS    int

	// Worker
	MaxConcurrentJobs int
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:               getEnv("API_PORT", "8080"),
		WorkerEnabled:         getEnvBool("WORKER_ENABLED", true),
		BackendAPIKey:         getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins:    getEnv("CORS_ALLOWED_ORIGINS", ""),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		RedisURL:              getEnv("REDIS_URL", "redis://localhost:6379"),
		SupabaseURL:           getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBucket: getEnv("SUPABASE_STORAGE_BUCKET", "reelforge-videos"),
		OpenAIKey:             getEnv("OPENAI_API_KEY", ""),
		GeminiKey:             getEnv("GEMINI_API_KEY", ""),
		GeminiImageModel:      getEnv("GEMINI_IMAGE_MODEL", ""),
		ElevenLabsKey:         getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsVoiceID:     getEnv("ELEVENLABS_VOICE_ID", ""),
		WorkDir:               getEnv("WORK_DIR", "/tmp/reelforge"),
		MusicLibraryPath:      getEnv("MUSIC_LIBRARY_PATH", "assets/music/library.yaml"),
		MaxSceneFetches:       getEnvInt("MAX_SCENE_FETCHES", 4),
		MaxSceneRenders:       getEnvInt("MAX_SCENE_RENDERS", 2),
		RetryAttempts:         getEnvInt("RETRY_ATTEMPTS", 3),
		RenderWidth:           getEnvInt("RENDER_WIDTH", 1080),
		RenderHeight:          getEnvInt("RENDER_HEIGHT", 1920),
		RenderFPS:             getEnvInt("RENDER_FPS", 30),
		MaxConcurrentJobs:     getEnvInt("MAX_CONCURRENT_JOBS", 5),
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.SupabaseURL == "" || cfg.SupabaseServiceKey == "" {
		return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required")
	}

	// The planner runs in the API process
	if cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	// Render providers are only needed where the worker runs
	if cfg.WorkerEnabled {
		if cfg.GeminiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required when the worker is enabled")
		}
		if cfg.ElevenLabsKey == "" {
			return nil, fmt.Errorf("ELEVENLABS_API_KEY is required when the worker is enabled")
		}
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}
