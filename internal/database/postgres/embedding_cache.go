package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/pgvector/pgvector-go"
)

// EmbeddingCacheRepository caches gallery embeddings in a pgvector column.
type EmbeddingCacheRepository struct {
	pool *Pool
}

var _ gallery.EmbeddingCache = (*EmbeddingCacheRepository)(nil)

// NewEmbeddingCacheRepository creates a new PostgreSQL embedding cache.
func NewEmbeddingCacheRepository(pool *Pool) *EmbeddingCacheRepository {
	return &EmbeddingCacheRepository{pool: pool}
}

// Get returns the cached embedding for key. A row with a different content
// hash is a miss.
func (r *EmbeddingCacheRepository) Get(ctx context.Context, key gallery.CacheKey) ([]float32, bool, error) {
	var vec pgvector.Vector
	err := r.pool.QueryRow(ctx, `
		SELECT embedding
		FROM gallery_embeddings
		WHERE filename = $1 AND model = $2 AND content_hash = $3
	`, key.Filename, key.Model, key.ContentHash).Scan(&vec)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query cached embedding: %w", err)
	}
	return vec.Slice(), true, nil
}

// Put stores or replaces the embedding for key.
func (r *EmbeddingCacheRepository) Put(ctx context.Context, key gallery.CacheKey, embedding []float32) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO gallery_embeddings (filename, model, content_hash, embedding, dim)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (filename, model) DO UPDATE SET
			content_hash = EXCLUDED.content_hash,
			embedding = EXCLUDED.embedding,
			dim = EXCLUDED.dim,
			created_at = NOW()
	`, key.Filename, key.Model, key.ContentHash, pgvector.NewVector(embedding), len(embedding))
	if err != nil {
		return fmt.Errorf("save cached embedding: %w", err)
	}
	return nil
}

// Rename moves every cached embedding of oldFilename to newFilename,
// replacing whatever was cached under the new name.
func (r *EmbeddingCacheRepository) Rename(ctx context.Context, oldFilename, newFilename string) error {
	if oldFilename == newFilename {
		return nil
	}

	tx, err := r.pool.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM gallery_embeddings WHERE filename = $1", newFilename); err != nil {
		return fmt.Errorf("clear rename target: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE gallery_embeddings SET filename = $2 WHERE filename = $1", oldFilename, newFilename); err != nil {
		return fmt.Errorf("rename cached embedding: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rename: %w", err)
	}
	return nil
}

// Delete removes every cached embedding of filename.
func (r *EmbeddingCacheRepository) Delete(ctx context.Context, filename string) error {
	if _, err := r.pool.Exec(ctx, "DELETE FROM gallery_embeddings WHERE filename = $1", filename); err != nil {
		return fmt.Errorf("delete cached embedding: %w", err)
	}
	return nil
}

// Count returns the number of cached embeddings for model.
func (r *EmbeddingCacheRepository) Count(ctx context.Context, model string) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM gallery_embeddings WHERE model = $1", model).Scan(&count); err != nil {
		return 0, fmt.Errorf("count cached embeddings: %w", err)
	}
	return count, nil
}
