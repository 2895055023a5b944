package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	ApplicationName    string
	ConnectTimeoutSec  int
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
	ConnMaxIdleTimeSec int
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// S3Config holds settings for AWS S3 (or any S3 endpoint reachable through the AWS SDK).
// Credentials come from the default AWS provider chain.
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string
}

// StorageConfig selects and configures the object store used for story media.
type StorageConfig struct {
	// Driver is "minio" or "s3".
	Driver string
	// PublicBaseURL is prefixed to object keys to build content URLs. When empty a
	// long-lived presigned URL is used instead.
	PublicBaseURL string
	MinIO         MinIOConfig
	S3            S3Config
}

// StoriesConfig holds the story lifecycle and playback settings.
type StoriesConfig struct {
	TTL            time.Duration
	MaxUploadBytes int64 // 0 disables the size check
	TickInterval   time.Duration
	ProgressStep   int
	SweepInterval  time.Duration
	SweepBatchSize int

	// FeedMaxAge bounds how long a loaded story list is served before it is refetched.
	FeedMaxAge time.Duration
}

// RateLimitConfig limits story uploads per author.
type RateLimitConfig struct {
	Uploads int
	Window  time.Duration
	Burst   int
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost   string
	Port      string
	LogLevel  string
	Database  DatabaseConfig
	Storage   StorageConfig
	Stories   StoriesConfig
	RateLimit RateLimitConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:  getEnv("APP_HOST", "localhost:8080"),
		Port:     getEnv("PORT", "8080"),
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			ApplicationName:    getEnv("DB_APPLICATION_NAME", "storyapi"),
			ConnectTimeoutSec:  getEnvInt("DB_CONNECT_TIMEOUT_SEC", 5),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
			ConnMaxIdleTimeSec: getEnvInt("DB_CONN_MAX_IDLE_TIME_SEC", 60),
		},
		Storage: StorageConfig{
			Driver:        strings.ToLower(getEnv("STORAGE_DRIVER", "minio")),
			PublicBaseURL: getEnv("STORAGE_PUBLIC_BASE_URL", ""),
			MinIO: MinIOConfig{
				Endpoint:  getEnv("MINIO_ENDPOINT", ""),
				AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
				SecretKey: getEnv("MINIO_SECRET_KEY", ""),
				Bucket:    getEnv("MINIO_BUCKET", "stories"),
				UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			},
			S3: S3Config{
				Bucket:   getEnv("S3_BUCKET", ""),
				Region:   getEnv("S3_REGION", "us-east-1"),
				Endpoint: getEnv("S3_ENDPOINT", ""),
			},
		},
		Stories: StoriesConfig{
			TTL:            getEnvDuration("STORY_TTL", 24*time.Hour),
			MaxUploadBytes: int64(getEnvInt("STORY_MAX_UPLOAD_BYTES", 0)),
			TickInterval:   getEnvDuration("STORY_TICK_INTERVAL", 100*time.Millisecond),
			ProgressStep:   getEnvInt("STORY_PROGRESS_STEP", 2),
			SweepInterval:  getEnvDuration("STORY_SWEEP_INTERVAL", time.Hour),
			SweepBatchSize: getEnvInt("STORY_SWEEP_BATCH_SIZE", 100),
			FeedMaxAge:     getEnvDuration("STORY_FEED_MAX_AGE", 30*time.Second),
		},
		RateLimit: RateLimitConfig{
			Uploads: getEnvInt("UPLOAD_RATE_LIMIT", 10),
			Window:  getEnvDuration("UPLOAD_RATE_WINDOW", time.Minute),
			Burst:   getEnvInt("UPLOAD_RATE_BURST", 3),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}
