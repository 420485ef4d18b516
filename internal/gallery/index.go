package gallery

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/identity"
)

// Entry is one enrolled identity with the embedding of its reference image.
type Entry struct {
	Identity   identity.Identity `json:"identity"`
	Embedding  []float32         `json:"-"`
	SourcePath string            `json:"source_path"`
}

// Filename returns the base name of the backing image.
func (e Entry) Filename() string {
	return filepath.Base(e.SourcePath)
}

// Index is an immutable snapshot of the gallery, ordered by backing filename.
// Readers may share it freely; writers build a new one.
type Index struct {
	entries []Entry
}

// NewIndex builds an index from entries, sorting them by filename.
func NewIndex(entries []Entry) *Index {
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b Entry) int {
		return strings.Compare(a.Filename(), b.Filename())
	})
	return &Index{entries: sorted}
}

// Len returns the number of entries. A nil index is empty.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.entries)
}

// At returns the i-th entry in listing order.
func (idx *Index) At(i int) Entry {
	return idx.entries[i]
}

// Entries returns a copy of the entries in listing order.
func (idx *Index) Entries() []Entry {
	if idx == nil {
		return nil
	}
	return slices.Clone(idx.entries)
}

// Identities returns the enrolled identities in listing order.
func (idx *Index) Identities() []identity.Identity {
	ids := make([]identity.Identity, 0, idx.Len())
	for i := range idx.Len() {
		ids = append(ids, idx.entries[i].Identity)
	}
	return ids
}

// Find returns the position of the entry with exactly the given name, or -1.
func (idx *Index) Find(name string) int {
	for i := range idx.Len() {
		if idx.entries[i].Identity.Name == name {
			return i
		}
	}
	return -1
}

// FindSimilar returns the position of an entry whose name collides with name
// after normalization, or -1.
func (idx *Index) FindSimilar(name string) int {
	for i := range idx.Len() {
		if identity.SameName(idx.entries[i].Identity.Name, name) {
			return i
		}
	}
	return -1
}

// with returns a new index with e added.
func (idx *Index) with(e Entry) *Index {
	entries := append(idx.Entries(), e)
	return NewIndex(entries)
}

// replace returns a new index with the entry at i replaced by e.
func (idx *Index) replace(i int, e Entry) *Index {
	entries := idx.Entries()
	entries[i] = e
	return NewIndex(entries)
}

// without returns a new index with the entry at i removed.
func (idx *Index) without(i int) *Index {
	entries := idx.Entries()
	return NewIndex(slices.Delete(entries, i, i+1))
}
