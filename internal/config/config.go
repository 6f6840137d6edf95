package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	APIPort            string
	WorkerEnabled      bool
	BackendAPIKey      string // empty disables auth
	CorsAllowedOrigins string // comma-separated, empty allows all
	LogLevel           string

	// Database (optional job history)
	DatabaseURL string

	// Redis (optional async job queue)
	RedisURL string

	// Render
	FFmpegPath     string
	FFprobePath    string
	WorkDir        string
	FrameRate      int
	EndBuffer      float64 // seconds held on the last scene
	SegmentWorkers int
	EncodeTimeout  time.Duration
	ProbeTimeout   time.Duration
	ForceCPU       bool
	InlineMaxBytes int64
	FetchTimeout   time.Duration

	// Google Drive
	DriveFolderID        string
	DriveCredentialsJSON string
	DriveCredentialsPath string

	// Supabase
	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseStorageBucket string

	// Worker
	MaxConcurrentJobs int
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:               getEnv("API_PORT", "8080"),
		WorkerEnabled:         getEnvBool("WORKER_ENABLED", false),
		BackendAPIKey:         getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins:    getEnv("CORS_ALLOWED_ORIGINS", ""),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		RedisURL:              getEnv("REDIS_URL", ""),
		FFmpegPath:            getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:           getEnv("FFPROBE_PATH", "ffprobe"),
		WorkDir:               getEnv("WORK_DIR", os.TempDir()),
		FrameRate:             getEnvInt("RENDER_FPS", 30),
		EndBuffer:             getEnvFloat("RENDER_END_BUFFER_SEC", 0.3),
		SegmentWorkers:        getEnvInt("SEGMENT_WORKERS", 2),
		EncodeTimeout:         getEnvDuration("ENCODE_TIMEOUT", 10*time.Minute),
		ProbeTimeout:          getEnvDuration("PROBE_TIMEOUT", 30*time.Second),
		ForceCPU:              getEnvBool("FORCE_CPU_ENCODE", false),
		InlineMaxBytes:        int64(getEnvInt("INLINE_MAX_BYTES", 100*1024*1024)),
		FetchTimeout:          getEnvDuration("FETCH_TIMEOUT", 2*time.Minute),
		DriveFolderID:         getEnv("GOOGLE_DRIVE_FOLDER_ID", ""),
		DriveCredentialsJSON:  getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		DriveCredentialsPath:  getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		SupabaseURL:           getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBucket: getEnv("SUPABASE_STORAGE_BUCKET", "rendered-videos"),
		MaxConcurrentJobs:     getEnvInt("MAX_CONCURRENT_JOBS", 1),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the renderer cannot run with.
func (c *Config) Validate() error {
	if c.FrameRate <= 0 {
		return fmt.Errorf("RENDER_FPS must be > 0")
	}
	if c.EndBuffer < 0 {
		return fmt.Errorf("RENDER_END_BUFFER_SEC must be >= 0")
	}
	if c.SegmentWorkers < 1 {
		return fmt.Errorf("SEGMENT_WORKERS must be >= 1")
	}
	if c.InlineMaxBytes <= 0 {
		return fmt.Errorf("INLINE_MAX_BYTES must be > 0")
	}
	if c.WorkerEnabled && c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required when WORKER_ENABLED is set")
	}
	return nil
}

// DriveConfigured reports whether Drive credentials were provided.
func (c *Config) DriveConfigured() bool {
	return c.DriveCredentialsJSON != "" || c.DriveCredentialsPath != ""
}

// SupabaseConfigured reports whether Supabase storage was provided.
func (c *Config) SupabaseConfigured() bool {
	return c.SupabaseURL != "" && c.SupabaseServiceKey != ""
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

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}
