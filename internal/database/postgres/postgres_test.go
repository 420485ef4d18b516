//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
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
	if err != nil || container == nil {
		t.Skipf("Docker not available, skipping integration test: %v", err)
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

	pool, err := Open(ctx, &config.DatabaseConfig{
		URL:          fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	})
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to open pool: %v", err)
	}

	return pool, func() {
		pool.Close()
		container.Terminate(ctx)
	}
}

func TestPostgres(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()
	ctx := context.Background()

	t.Run("Migrations", func(t *testing.T) {
		versions, err := pool.MigrationsApplied(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(versions) == 0 || versions[0] != "001_init.sql" {
			t.Errorf("applied migrations = %v", versions)
		}
		// Re-running is a no-op.
		if err := pool.Migrate(ctx); err != nil {
			t.Errorf("second Migrate() error: %v", err)
		}
	})

	t.Run("Attendance", func(t *testing.T) {
		repo := NewAttendanceRepository(pool).WithLocation(time.UTC)
		base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
		events := []ledger.Event{
			{Name: "Alice", Timestamp: base, Type: ledger.In},
			{Name: "Bob", Timestamp: base.Add(24 * time.Hour), Type: ledger.In},
			{Name: "Alice", Timestamp: base.Add(9 * time.Hour), Type: ledger.Out},
		}
		for _, e := range events {
			if err := repo.Append(ctx, e); err != nil {
				t.Fatalf("Append() error: %v", err)
			}
		}

		result, err := repo.LoadAll(ctx)
		if err != nil {
			t.Fatalf("LoadAll() error: %v", err)
		}
		if len(result.Events) != 3 {
			t.Fatalf("got %d events, want 3", len(result.Events))
		}
		for i, e := range events {
			got := result.Events[i]
			if got.Name != e.Name || got.Type != e.Type || !got.Timestamp.Equal(e.Timestamp) {
				t.Errorf("event %d = %+v, want %+v", i, got, e)
			}
		}

		start, end := ledger.DayRange(base, base)
		day, err := ledger.Query(ctx, repo, start, end)
		if err != nil {
			t.Fatal(err)
		}
		if len(day) != 2 {
			t.Errorf("Query() for first day returned %d events, want 2", len(day))
		}

		if err := repo.Append(ctx, ledger.Event{Name: "", Timestamp: base, Type: ledger.In}); !errors.Is(err, ledger.ErrInvalidEvent) {
			t.Errorf("Append(empty name) error = %v", err)
		}

		// Stored at whole seconds, so the last instant of a day stays in it.
		late := time.Date(2024, 3, 10, 23, 59, 59, 700_000_000, time.UTC)
		if err := repo.Append(ctx, ledger.Event{Name: "Bob", Timestamp: late, Type: ledger.Out}); err != nil {
			t.Fatal(err)
		}
		start, end = ledger.DayRange(late, late)
		day, err = repo.Between(ctx, start, end)
		if err != nil {
			t.Fatal(err)
		}
		if len(day) != 1 || !day[0].Timestamp.Equal(late.Truncate(time.Second)) {
			t.Errorf("Between() = %+v, want Bob at 23:59:59", day)
		}
	})

	t.Run("EmbeddingCache", func(t *testing.T) {
		repo := NewEmbeddingCacheRepository(pool)
		key := gallery.CacheKey{Filename: "Alice, Engineer.jpg", ContentHash: gallery.ContentHash([]byte("a")), Model: "facenet"}
		emb := make([]float32, 512)
		for i := range emb {
			emb[i] = float32(i) / 512
		}

		if _, ok, err := repo.Get(ctx, key); err != nil || ok {
			t.Fatalf("Get() before Put = %v, %v", ok, err)
		}
		if err := repo.Put(ctx, key, emb); err != nil {
			t.Fatalf("Put() error: %v", err)
		}
		got, ok, err := repo.Get(ctx, key)
		if err != nil || !ok {
			t.Fatalf("Get() = %v, %v", ok, err)
		}
		if len(got) != 512 || got[100] != emb[100] {
			t.Errorf("cached embedding mismatch")
		}

		stale := key
		stale.ContentHash = gallery.ContentHash([]byte("b"))
		if _, ok, _ := repo.Get(ctx, stale); ok {
			t.Error("changed content must miss the cache")
		}

		if err := repo.Rename(ctx, key.Filename, "Alice, Manager.jpg"); err != nil {
			t.Fatalf("Rename() error: %v", err)
		}
		renamed := key
		renamed.Filename = "Alice, Manager.jpg"
		if _, ok, _ := repo.Get(ctx, renamed); !ok {
			t.Error("expected cache hit under the new filename")
		}

		if err := repo.Delete(ctx, renamed.Filename); err != nil {
			t.Fatalf("Delete() error: %v", err)
		}
		count, err := repo.Count(ctx, "facenet")
		if err != nil || count != 0 {
			t.Errorf("Count() = %d, %v", count, err)
		}
	})

	t.Run("Sessions", func(t *testing.T) {
		repo := NewSessionRepository(pool)
		now := time.Now()
		if err := repo.Save(ctx, "live", "admin", now, now.Add(time.Hour)); err != nil {
			t.Fatal(err)
		}
		if err := repo.Save(ctx, "old", "admin", now.Add(-2*time.Hour), now.Add(-time.Hour)); err != nil {
			t.Fatal(err)
		}

		s, err := repo.Get(ctx, "live")
		if err != nil || s == nil || s.Username != "admin" {
			t.Fatalf("Get(live) = %+v, %v", s, err)
		}
		if s, _ := repo.Get(ctx, "old"); s != nil {
			t.Error("expired session must not be returned")
		}

		n, err := repo.DeleteExpired(ctx)
		if err != nil || n != 1 {
			t.Errorf("DeleteExpired() = %d, %v", n, err)
		}
		if err := repo.Delete(ctx, "live"); err != nil {
			t.Fatal(err)
		}
	})
}
