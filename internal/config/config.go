package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Store   StoreConfig
	Index   IndexConfig
	Cache   CacheConfig
	HTTP    HTTPConfig
	Logging LoggingConfig
}

// StoreConfig configures the S3-compatible bucket snapshot payloads go to.
type StoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Bucket    string
}

// IndexConfig selects the snapshot index backend: "fs" keeps JSON documents
// under Dir, "pg" uses the Postgres database at URL.
type IndexConfig struct {
	Backend string
	Dir     string
	URL     string
}

type CacheConfig struct {
	Dir string
}

type HTTPConfig struct {
	Timeout     time.Duration
	MinInterval time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (Config, error) {
	cfg := Config{
		Store: StoreConfig{
			Endpoint:  getEnv("HARVESTER_STORE_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("HARVESTER_STORE_ACCESS_KEY", ""),
			SecretKey: getEnv("HARVESTER_STORE_SECRET_KEY", ""),
			Region:    getEnv("HARVESTER_STORE_REGION", "us-east-1"),
			UseSSL:    getEnvBool("HARVESTER_STORE_USE_SSL", false),
			Bucket:    getEnv("HARVESTER_STORE_BUCKET", "snapshots"),
		},
		Index: IndexConfig{
			Backend: getEnv("HARVESTER_INDEX_BACKEND", "fs"),
			Dir:     getEnv("HARVESTER_INDEX_DIR", "index"),
			URL:     getEnv("HARVESTER_INDEX_URL", ""),
		},
		Cache: CacheConfig{
			Dir: getEnv("HARVESTER_CACHE_DIR", defaultCacheDir()),
		},
		HTTP: HTTPConfig{
			Timeout:     getEnvDuration("HARVESTER_HTTP_TIMEOUT", 5*time.Minute),
			MinInterval: getEnvDuration("HARVESTER_HTTP_MIN_INTERVAL", time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("HARVESTER_LOG_LEVEL", "info"),
			Format: getEnv("HARVESTER_LOG_FORMAT", "console"),
		},
	}

	switch cfg.Index.Backend {
	case "fs":
		if cfg.Index.Dir == "" {
			return Config{}, fmt.Errorf("HARVESTER_INDEX_DIR is required for the fs index backend")
		}
	case "pg":
		if cfg.Index.URL == "" {
			return Config{}, fmt.Errorf("HARVESTER_INDEX_URL is required for the pg index backend")
		}
	default:
		return Config{}, fmt.Errorf("HARVESTER_INDEX_BACKEND must be fs or pg, got %q", cfg.Index.Backend)
	}
	return cfg, nil
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".harvester-cache"
	}
	return filepath.Join(home, ".harvester", "cache")
}

// LoadEnvFile loads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if key == "" || os.Getenv(key) != "" {
			continue
		}
		_ = os.Setenv(key, value)
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
