package cmd

import (
	"errors"
	"fmt"

	"github.com/kozaktomas/photo-vault/internal/burst"
	"github.com/kozaktomas/photo-vault/internal/config"
	"github.com/kozaktomas/photo-vault/internal/dedup"
	"github.com/kozaktomas/photo-vault/internal/ingest"
	"github.com/kozaktomas/photo-vault/internal/library"
	"github.com/kozaktomas/photo-vault/internal/library/mariadb"
	"github.com/kozaktomas/photo-vault/internal/library/postgres"
	"github.com/kozaktomas/photo-vault/internal/metadata"
	"github.com/kozaktomas/photo-vault/internal/storage"
	"github.com/kozaktomas/photo-vault/internal/worker"
)

// pipeline bundles the wired components a command needs. Close releases the
// catalog connection pool.
type pipeline struct {
	Catalog    library.Catalog
	Store      *storage.Store
	Service    *ingest.Service
	Resolver   *dedup.Resolver
	Classifier *burst.Classifier
	Close      func()
}

// openCatalog connects to the configured catalog backend. PostgreSQL is the
// primary backend; MariaDB is supported for setups that already run one.
func openCatalog(cfg *config.Config) (library.Catalog, func(), error) {
	switch {
	case cfg.Catalog.URL != "":
		fmt.Println("Connecting to PostgreSQL catalog...")
		pool, err := postgres.Initialize(&cfg.Catalog)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		return postgres.NewEntryRepository(pool), func() { _ = pool.Close() }, nil
	case cfg.Catalog.MariaDBDSN != "":
		fmt.Println("Connecting to MariaDB catalog...")
		pool, err := mariadb.Initialize(cfg.Catalog.MariaDBDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize MariaDB: %w", err)
		}
		return mariadb.NewEntryRepository(pool), func() { _ = pool.Close() }, nil
	default:
		return nil, nil, errors.New("CATALOG_DATABASE_URL or CATALOG_MARIADB_DSN environment variable is required")
	}
}

// buildPipeline wires the full ingest pipeline from configuration. A positive
// workers value overrides the configured decode pool size.
func buildPipeline(workers int) (*pipeline, error) {
	cfg := config.Load()

	if cfg.Storage.Root == "" {
		return nil, errors.New("STORAGE_ROOT environment variable is required")
	}

	catalog, closeCatalog, err := openCatalog(cfg)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewStore(cfg.Storage.Root)
	if err != nil {
		closeCatalog()
		return nil, fmt.Errorf("failed to open storage root: %w", err)
	}

	if workers <= 0 {
		workers = cfg.Workers.DecodeWorkers
	}
	pool := worker.NewPool(workers)
	extractor := metadata.ExifExtractor{}
	classifier := burst.NewClassifier(burst.DefaultPolicy())
	detector := dedup.NewDetector(catalog, classifier, pool, extractor)

	return &pipeline{
		Catalog:    catalog,
		Store:      store,
		Service:    ingest.NewService(catalog, store, detector, extractor, pool),
		Resolver:   dedup.NewResolver(catalog, store),
		Classifier: classifier,
		Close:      closeCatalog,
	}, nil
}
