package gallery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// CacheKey identifies a cached embedding. The content hash makes a cache entry
// stale as soon as the image on disk changes.
type CacheKey struct {
	Filename    string
	ContentHash string
	Model       string
}

// EmbeddingCache persists embeddings between loads so that a restart does not
// have to run every gallery image through the extractor again.
type EmbeddingCache interface {
	Get(ctx context.Context, key CacheKey) ([]float32, bool, error)
	Put(ctx context.Context, key CacheKey, embedding []float32) error
	Rename(ctx context.Context, oldFilename, newFilename string) error
	Delete(ctx context.Context, filename string) error
}

// ContentHash returns the hex SHA-256 of data.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
