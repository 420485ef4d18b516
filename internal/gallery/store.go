// Package gallery owns the enrolled identities: the image folder on disk and
// the in-memory index of their embeddings.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/kozaktomas/face-attendance/internal/extractor"
	"github.com/kozaktomas/face-attendance/internal/identity"
)

// Store manages the gallery folder. Writers are serialized; readers take an
// immutable snapshot via Snapshot and never block.
type Store struct {
	dir          string
	extractor    extractor.Extractor
	cache        EmbeddingCache
	model        string
	maxImageSize int

	mu    sync.Mutex
	index atomic.Pointer[Index]
}

// Option configures a Store.
type Option func(*Store)

// WithCache enables the embedding cache for the given model name.
func WithCache(cache EmbeddingCache, model string) Option {
	return func(s *Store) {
		s.cache = cache
		s.model = model
	}
}

// WithMaxImageSize bounds the longest side of newly enrolled images.
func WithMaxImageSize(size int) Option {
	return func(s *Store) {
		s.maxImageSize = size
	}
}

// NewStore creates a store over dir with an empty index. Call Reload to scan the folder.
func NewStore(dir string, ext extractor.Extractor, opts ...Option) *Store {
	s := &Store{
		dir:          dir,
		extractor:    ext,
		maxImageSize: 1024,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.index.Store(NewIndex(nil))
	return s
}

// Load creates a store and scans dir.
func Load(ctx context.Context, dir string, ext extractor.Extractor, opts ...Option) (*Store, *LoadReport, error) {
	s := NewStore(dir, ext, opts...)
	report, err := s.Reload(ctx)
	if err != nil {
		return nil, nil, err
	}
	return s, report, nil
}

// Dir returns the gallery folder.
func (s *Store) Dir() string {
	return s.dir
}

// Snapshot returns the current index.
func (s *Store) Snapshot() *Index {
	return s.index.Load()
}

// List returns the enrolled identities ordered by backing filename.
func (s *Store) List() []identity.Identity {
	return s.Snapshot().Identities()
}

// Get returns the entry for an exact name.
func (s *Store) Get(name string) (Entry, bool) {
	idx := s.Snapshot()
	i := idx.Find(name)
	if i < 0 {
		return Entry{}, false
	}
	return idx.At(i), true
}

// SkippedFile is a gallery image that was not indexed.
type SkippedFile struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

// LoadReport summarizes a folder scan.
type LoadReport struct {
	Indexed int           `json:"indexed"`
	Cached  int           `json:"cached"`
	Skipped []SkippedFile `json:"skipped"`
}

// Reload rescans the folder and atomically replaces the index.
func (s *Store) Reload(ctx context.Context) (*LoadReport, error) {
	return s.ReloadWithProgress(ctx, nil)
}

// ReloadWithProgress is Reload with a callback invoked after each candidate image.
func (s *Store) ReloadWithProgress(ctx context.Context, progress func(filename string, total int)) (*LoadReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrIO, s.dir, err)
	}

	var names []string
	for _, de := range dirEntries {
		if de.IsDir() || !identity.IsSupportedImage(de.Name()) {
			continue
		}
		names = append(names, de.Name())
	}
	sort.Strings(names)

	report := &LoadReport{}
	entries := make([]Entry, 0, len(names))
	seen := make(map[string]string, len(names))

	skip := func(name, reason string) {
		log.Printf("gallery: skipping %s: %s", name, reason)
		report.Skipped = append(report.Skipped, SkippedFile{Filename: name, Reason: reason})
	}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("gallery reload: %w", err)
		}

		entry, cached, reason := s.indexFile(ctx, name, seen)
		if reason != "" {
			skip(name, reason)
		} else {
			entries = append(entries, entry)
			seen[identity.NormalizeName(entry.Identity.Name)] = name
			report.Indexed++
			if cached {
				report.Cached++
			}
		}

		if progress != nil {
			progress(name, len(names))
		}
	}

	s.index.Store(NewIndex(entries))
	return report, nil
}

// indexFile computes the entry for one image. A non-empty reason means the
// file is skipped.
func (s *Store) indexFile(ctx context.Context, name string, seen map[string]string) (Entry, bool, string) {
	id, err := identity.Parse(name)
	if err != nil {
		return Entry{}, false, err.Error()
	}
	if first, ok := seen[identity.NormalizeName(id.Name)]; ok {
		return Entry{}, false, fmt.Sprintf("name %q already enrolled by %s", id.Name, first)
	}

	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, false, fmt.Sprintf("read failed: %v", err)
	}

	key := CacheKey{Filename: name, ContentHash: ContentHash(data), Model: s.model}
	if s.cache != nil {
		emb, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			log.Printf("gallery: embedding cache lookup for %s failed: %v", name, err)
		} else if ok {
			return Entry{Identity: id, Embedding: emb, SourcePath: path}, true, ""
		}
	}

	det, err := s.extractor.DetectAndEmbed(ctx, data)
	if err != nil {
		return Entry{}, false, fmt.Sprintf("extraction failed: %v", err)
	}
	if !det.Aligned() {
		return Entry{}, false, "no face detected"
	}

	s.cachePut(ctx, key, det.Embedding)
	return Entry{Identity: id, Embedding: det.Embedding, SourcePath: path}, false, ""
}

// Add enrolls a new identity from an encoded image, stored as
// "<name>, <position>.<ext>". JPEG and PNG uploads within the size limit are
// kept byte for byte; others are converted to JPEG.
func (s *Store) Add(ctx context.Context, id identity.Identity, image []byte) (Entry, error) {
	if err := id.Validate(); err != nil {
		return Entry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.Snapshot()
	if i := cur.FindSimilar(id.Name); i >= 0 {
		return Entry{}, fmt.Errorf("%w: %q collides with %q", ErrDuplicateIdentity, id.Name, cur.At(i).Identity.Name)
	}

	data, ext, embedding, err := s.prepare(ctx, image)
	if err != nil {
		return Entry{}, err
	}

	filename := id.Filename(ext)
	path := filepath.Join(s.dir, filename)
	// Files of the same identity on disk were skipped by the last scan.
	var stale []string
	for _, e := range identity.SupportedExtensions {
		name := id.Filename(e)
		if _, err := os.Stat(filepath.Join(s.dir, name)); err == nil {
			log.Printf("gallery: %s exists but was not indexed, replacing it with %s", name, filename)
			stale = append(stale, name)
		}
	}
	if err := writeFileAtomic(path, data); err != nil {
		return Entry{}, fmt.Errorf("%w: store %s: %w", ErrIO, filename, err)
	}
	for _, name := range stale {
		if name == filename {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("gallery: failed to remove replaced image %s: %v", name, err)
		}
		s.cacheDelete(ctx, name)
	}

	s.cachePut(ctx, CacheKey{Filename: filename, ContentHash: ContentHash(data), Model: s.model}, embedding)

	entry := Entry{Identity: id, Embedding: embedding, SourcePath: path}
	s.index.Store(cur.with(entry))
	return entry, nil
}

// Reenroll replaces the reference image of an enrolled identity and
// recomputes its embedding in the same step.
func (s *Store) Reenroll(ctx context.Context, name string, image []byte) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.Snapshot()
	i := cur.Find(name)
	if i < 0 {
		return Entry{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	old := cur.At(i)

	data, ext, embedding, err := s.prepare(ctx, image)
	if err != nil {
		return Entry{}, err
	}

	// The extension follows the new image and may change.
	path := filepath.Join(s.dir, old.Identity.Filename(ext))
	if err := writeFileAtomic(path, data); err != nil {
		return Entry{}, fmt.Errorf("%w: store %s: %w", ErrIO, filepath.Base(path), err)
	}
	if path != old.SourcePath {
		if err := os.Remove(old.SourcePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("gallery: failed to remove replaced image %s: %v", old.SourcePath, err)
		}
		s.cacheDelete(ctx, old.Filename())
	}

	s.cachePut(ctx, CacheKey{Filename: filepath.Base(path), ContentHash: ContentHash(data), Model: s.model}, embedding)

	entry := Entry{Identity: old.Identity, Embedding: embedding, SourcePath: path}
	s.index.Store(cur.replace(i, entry))
	return entry, nil
}

// Rename changes the name and position of an identity. Only metadata changes;
// the stored embedding is kept.
func (s *Store) Rename(ctx context.Context, oldName string, newID identity.Identity) (Entry, error) {
	if err := newID.Validate(); err != nil {
		return Entry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.Snapshot()
	i := cur.Find(oldName)
	if i < 0 {
		return Entry{}, fmt.Errorf("%w: %q", ErrNotFound, oldName)
	}
	if j := cur.FindSimilar(newID.Name); j >= 0 && j != i {
		return Entry{}, fmt.Errorf("%w: %q collides with %q", ErrDuplicateIdentity, newID.Name, cur.At(j).Identity.Name)
	}

	old := cur.At(i)
	newPath := filepath.Join(s.dir, newID.Filename(filepath.Ext(old.SourcePath)))
	if newPath != old.SourcePath {
		if err := checkRenameTarget(old.SourcePath, newPath); err != nil {
			return Entry{}, err
		}
		if err := os.Rename(old.SourcePath, newPath); err != nil {
			return Entry{}, fmt.Errorf("%w: rename %s: %w", ErrIO, old.Filename(), err)
		}
		if s.cache != nil {
			if err := s.cache.Rename(ctx, old.Filename(), filepath.Base(newPath)); err != nil {
				log.Printf("gallery: embedding cache rename %s failed: %v", old.Filename(), err)
			}
		}
	}

	entry := Entry{Identity: newID, Embedding: old.Embedding, SourcePath: newPath}
	s.index.Store(cur.replace(i, entry))
	return entry, nil
}

// Remove deletes an identity and its image. When the image was already gone
// the entry is still dropped and ErrArtifactMissing is returned.
func (s *Store) Remove(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.Snapshot()
	i := cur.Find(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	entry := cur.At(i)

	var missing bool
	if err := os.Remove(entry.SourcePath); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: remove %s: %w", ErrIO, entry.Filename(), err)
		}
		missing = true
	}

	s.cacheDelete(ctx, entry.Filename())
	s.index.Store(cur.without(i))

	if missing {
		return fmt.Errorf("%w: %s", ErrArtifactMissing, entry.Filename())
	}
	return nil
}

// prepare normalizes an uploaded image and extracts its embedding from the
// bytes that will be stored.
func (s *Store) prepare(ctx context.Context, image []byte) ([]byte, string, []float32, error) {
	data, ext, err := extractor.Normalize(image, s.maxImageSize)
	if err != nil {
		return nil, "", nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}

	det, err := s.extractor.DetectAndEmbed(ctx, data)
	if err != nil {
		return nil, "", nil, fmt.Errorf("extract embedding: %w", err)
	}
	if !det.Aligned() {
		return nil, "", nil, ErrNoFaceDetected
	}
	return data, ext, det.Embedding, nil
}

func (s *Store) cachePut(ctx context.Context, key CacheKey, embedding []float32) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Put(ctx, key, embedding); err != nil {
		log.Printf("gallery: embedding cache store for %s failed: %v", key.Filename, err)
	}
}

func (s *Store) cacheDelete(ctx context.Context, filename string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, filename); err != nil {
		log.Printf("gallery: embedding cache delete for %s failed: %v", filename, err)
	}
}

// checkRenameTarget refuses to overwrite an unrelated file. Renaming onto the
// same file (case-only changes on case-insensitive filesystems) is allowed.
func checkRenameTarget(oldPath, newPath string) error {
	newInfo, err := os.Stat(newPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: stat %s: %w", ErrIO, filepath.Base(newPath), err)
	}
	oldInfo, err := os.Stat(oldPath)
	if err == nil && os.SameFile(oldInfo, newInfo) {
		return nil
	}
	return fmt.Errorf("%w: %s already exists", ErrDuplicateIdentity, filepath.Base(newPath))
}

// writeFileAtomic writes data to a temporary file in the target directory and
// renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".enroll-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
