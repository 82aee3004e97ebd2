//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kozaktomas/photo-vault/internal/config"
	"github.com/kozaktomas/photo-vault/internal/library"
	"github.com/kozaktomas/photo-vault/internal/metadata"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := &config.CatalogConfig{
		URL:          fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

func testEntry(id, hash string) *library.Entry {
	return &library.Entry{
		ID:        id,
		ExactHash: hash,
		FileName:  id + ".jpg",
		ByteSize:  1024,
		TakenAt:   time.Date(2024, 6, 15, 14, 30, 22, 0, time.UTC),
		Tier:      library.TierStaging,
		Kind:      library.KindImage,
		Path:      "/tank/staging/" + id + ".jpg",
		Camera:    &metadata.Camera{Make: "Canon", Model: "EOS R5", ISO: 400},
	}
}

func TestEntryRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewEntryRepository(pool)

	t.Run("InsertAndGet", func(t *testing.T) {
		if err := repo.Insert(ctx, testEntry("photo1", "hash1")); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}

		got, err := repo.Get(ctx, "photo1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.ExactHash != "hash1" {
			t.Errorf("ExactHash = %q; want hash1", got.ExactHash)
		}
		if got.Camera == nil || got.Camera.Model != "EOS R5" {
			t.Errorf("Camera not round-tripped: %+v", got.Camera)
		}
	})

	t.Run("UniqueExactHash", func(t *testing.T) {
		err := repo.Insert(ctx, testEntry("photo2", "hash1"))
		if !errors.Is(err, library.ErrStorageWriteConflict) {
			t.Errorf("expected ErrStorageWriteConflict, got %v", err)
		}
	})

	t.Run("FindByExactHash", func(t *testing.T) {
		got, err := repo.FindByExactHash(ctx, "hash1")
		if err != nil {
			t.Fatalf("FindByExactHash failed: %v", err)
		}
		if got == nil || got.ID != "photo1" {
			t.Errorf("FindByExactHash = %+v; want photo1", got)
		}

		missing, err := repo.FindByExactHash(ctx, "nope")
		if err != nil {
			t.Fatalf("FindByExactHash failed: %v", err)
		}
		if missing != nil {
			t.Errorf("expected nil for unknown hash, got %+v", missing)
		}
	})

	t.Run("FingerprintLifecycle", func(t *testing.T) {
		missing, err := repo.ListMissingFingerprint(ctx, library.KindImage)
		if err != nil {
			t.Fatalf("ListMissingFingerprint failed: %v", err)
		}
		if len(missing) != 1 {
			t.Fatalf("expected 1 entry missing fingerprint, got %d", len(missing))
		}

		if err := repo.PersistFingerprint(ctx, "photo1", "deadbeefcafef00d"); err != nil {
			t.Fatalf("PersistFingerprint failed: %v", err)
		}

		missing, err = repo.ListMissingFingerprint(ctx, library.KindImage)
		if err != nil {
			t.Fatalf("ListMissingFingerprint failed: %v", err)
		}
		if len(missing) != 0 {
			t.Errorf("expected no entries missing fingerprint, got %d", len(missing))
		}

		if err := repo.PersistFingerprint(ctx, "unknown", "deadbeefcafef00d"); !errors.Is(err, library.ErrNotFound) {
			t.Errorf("expected ErrNotFound for unknown id, got %v", err)
		}
	})

	t.Run("UpdateInPlace", func(t *testing.T) {
		entry, err := repo.Get(ctx, "photo1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		entry.ExactHash = "hash2"
		entry.ByteSize = 2048
		if err := repo.Update(ctx, entry); err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		got, err := repo.Get(ctx, "photo1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.ExactHash != "hash2" || got.ByteSize != 2048 {
			t.Errorf("Update not applied: %+v", got)
		}
	})

	t.Run("ListByKind", func(t *testing.T) {
		entries, err := repo.ListByKind(ctx, library.KindImage)
		if err != nil {
			t.Fatalf("ListByKind failed: %v", err)
		}
		if len(entries) != 1 {
			t.Errorf("expected 1 image entry, got %d", len(entries))
		}
	})
}
