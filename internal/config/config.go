package config

import (
	"os"
	"strconv"
	"time"
)

// BackendConfig holds settings for the remote file service the panel talks to.
type BackendConfig struct {
	BaseURL       string
	FilesPath     string
	TrailingSlash bool
	TimeoutSec    int
}

// CacheConfig controls the file-list query cache.
// Store is either "memory" or "postgres".
type CacheConfig struct {
	Store  string
	TTLSec int
}

// DownloadConfig holds settings for saving downloaded files locally.
type DownloadConfig struct {
	Dir string
}

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Enabled reports whether object storage was configured at all.
func (c MinIOConfig) Enabled() bool {
	return c.Endpoint != ""
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost    string
	Port       string
	TimeZone   string
	TUILogFile string
	Backend    BackendConfig
	Cache      CacheConfig
	Download   DownloadConfig
	Database   DatabaseConfig
	MinIO      MinIOConfig
}

const (
	CacheStoreMemory   = "memory"
	CacheStorePostgres = "postgres"
)

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:    getEnv("APP_HOST", "localhost:8080"),
		Port:       getEnv("PORT", "8080"),
		TimeZone:   getEnv("APP_TIMEZONE", "UTC"),
		TUILogFile: getEnv("TUI_LOG_FILE", "filepanel-tui.log"),
		Backend: BackendConfig{
			BaseURL:       getEnv("BACKEND_BASE_URL", "http://localhost:8000/api"),
			FilesPath:     getEnv("BACKEND_FILES_PATH", "files"),
			TrailingSlash: getEnvBool("BACKEND_TRAILING_SLASH", true),
			TimeoutSec:    getEnvInt("BACKEND_TIMEOUT_SEC", 30),
		},
		Cache: CacheConfig{
			Store:  getEnv("CACHE_STORE", CacheStoreMemory),
			TTLSec: getEnvInt("CACHE_TTL_SEC", 300),
		},
		Download: DownloadConfig{
			Dir: getEnv("DOWNLOAD_DIR", "downloads"),
		},
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
	}
}

// Location resolves TimeZone, falling back to UTC when it is unknown.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// CacheTTL returns the cache freshness window. Zero means entries never expire on their own.
func (c *AppConfig) CacheTTL() time.Duration {
	if c.Cache.TTLSec <= 0 {
		return 0
	}
	return time.Duration(c.Cache.TTLSec) * time.Second
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
