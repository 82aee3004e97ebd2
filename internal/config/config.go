package config

import (
	"os"
	"strconv"
)

type Config struct {
	Catalog CatalogConfig
	Storage StorageConfig
	Workers WorkerConfig
}

type CatalogConfig struct {
	URL          string // PostgreSQL connection URL (primary backend)
	MariaDBDSN   string // MariaDB DSN, used when the PostgreSQL URL is unset
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type StorageConfig struct {
	Root string // root directory of the tiered store (staging/library/archive)
}

type WorkerConfig struct {
	DecodeWorkers int // size of the shared image-decode pool (default 4)
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

func Load() *Config {
	return &Config{
		Catalog: CatalogConfig{
			URL:          os.Getenv("CATALOG_DATABASE_URL"),
			MariaDBDSN:   os.Getenv("CATALOG_MARIADB_DSN"),
			MaxOpenConns: envInt("CATALOG_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("CATALOG_MAX_IDLE_CONNS", 5),
		},
		Storage: StorageConfig{
			Root: os.Getenv("STORAGE_ROOT"),
		},
		Workers: WorkerConfig{
			DecodeWorkers: envInt("DECODE_WORKERS", 4),
		},
	}
}
