package matcher

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/identity"
)

func randomGallery(n, dims int, seed uint64) *gallery.Index {
	rng := rand.New(rand.NewPCG(seed, seed))
	entries := make([]gallery.Entry, n)
	for i := range entries {
		emb := make([]float32, dims)
		for j := range emb {
			emb[j] = rng.Float32()*2 - 1
		}
		name := fmt.Sprintf("person-%04d", i)
		entries[i] = gallery.Entry{
			Identity:   identity.Identity{Name: name},
			Embedding:  emb,
			SourcePath: name + ".jpg",
		}
	}
	return gallery.NewIndex(entries)
}

func TestIndexed_SmallGalleryUsesLinearScan(t *testing.T) {
	idx := randomGallery(20, 8, 1)
	m := NewIndexed(10, 256)

	for i := range idx.Len() {
		probe := idx.At(i).Embedding
		got := m.Match(probe, idx)
		want := Match(probe, idx, 10)
		if got.Identity.Name != want.Identity.Name || got.Distance != want.Distance {
			t.Errorf("entry %d: got %+v, want %+v", i, got, want)
		}
	}
	if m.graph != nil {
		t.Error("graph must not be built below the minimum size")
	}
}

func TestIndexed_FindsExactEntries(t *testing.T) {
	idx := randomGallery(300, 16, 2)
	m := NewIndexed(0.5, 100)

	for i := 0; i < idx.Len(); i += 7 {
		e := idx.At(i)
		got := m.Match(e.Embedding, idx)
		if !got.Known() {
			t.Fatalf("entry %d: expected a match for its own embedding", i)
		}
		if got.Identity.Name != e.Identity.Name {
			t.Errorf("entry %d: got %s, want %s", i, got.Identity.Name, e.Identity.Name)
		}
		if got.Distance != 0 {
			t.Errorf("entry %d: distance = %v, want 0", i, got.Distance)
		}
	}
}

func TestIndexed_RejectsFarProbe(t *testing.T) {
	idx := randomGallery(300, 16, 3)
	m := NewIndexed(0.5, 100)

	probe := make([]float32, 16)
	for i := range probe {
		probe[i] = 50
	}
	got := m.Match(probe, idx)
	if got.Known() {
		t.Errorf("expected UNKNOWN, got %s", got.Identity.Name)
	}
	if got.Distance <= 0.5 {
		t.Errorf("expected distance above threshold, got %v", got.Distance)
	}
}

func TestIndexed_RebuildsOnNewSnapshot(t *testing.T) {
	m := NewIndexed(0.5, 10)
	first := randomGallery(20, 4, 4)
	second := randomGallery(20, 4, 5)

	m.Match(first.At(0).Embedding, first)
	g1 := m.graph
	m.Match(first.At(1).Embedding, first)
	if m.graph != g1 {
		t.Error("graph rebuilt for unchanged snapshot")
	}

	got := m.Match(second.At(3).Embedding, second)
	if m.graph == g1 {
		t.Error("graph not rebuilt for new snapshot")
	}
	if !got.Known() || got.Identity.Name != second.At(3).Identity.Name {
		t.Errorf("unexpected match on new snapshot: %+v", got)
	}
}

func TestIndexed_ProbeDimensionMismatch(t *testing.T) {
	idx := randomGallery(30, 4, 6)
	m := NewIndexed(0.5, 10)
	got := m.Match([]float32{1, 2}, idx)
	if got.Known() {
		t.Error("expected UNKNOWN for mismatched probe")
	}
}

func tiedGallery(n int) *gallery.Index {
	entries := make([]gallery.Entry, n)
	for i := range entries {
		name := fmt.Sprintf("p%03d", i)
		entries[i] = gallery.Entry{
			Identity:   identity.Identity{Name: name},
			Embedding:  []float32{1, 0, 0, 0},
			SourcePath: name + ".jpg",
		}
	}
	return gallery.NewIndex(entries)
}

func TestNew(t *testing.T) {
	if _, ok := New(0.9, 0).(Linear); !ok {
		t.Errorf("New(0.9, 0) = %T, want Linear", New(0.9, 0))
	}
	if _, ok := New(0.9, 50).(*Indexed); !ok {
		t.Errorf("New(0.9, 50) = %T, want *Indexed", New(0.9, 50))
	}
}

func TestNew_DefaultKeepsFirstTiedEntryInLargeGallery(t *testing.T) {
	idx := tiedGallery(300)
	m := New(0.9, 0)

	got := m.Match([]float32{1, 0, 0, 0}, idx)
	if !got.Known() || got.Identity.Name != "p000" {
		t.Fatalf("got %+v, want p000", got.Identity)
	}
	if got.Distance != 0 {
		t.Errorf("distance = %v, want 0", got.Distance)
	}
}
