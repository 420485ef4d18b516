package matcher

import (
	"math"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/identity"
)

func entry(name string, emb ...float32) gallery.Entry {
	return gallery.Entry{
		Identity:   identity.Identity{Name: name},
		Embedding:  emb,
		SourcePath: "dataset/" + name + ".jpg",
	}
}

func TestEuclideanDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"3-4-5", []float32{0, 0}, []float32{3, 4}, 5},
		{"empty", nil, nil, 0},
		{"dimension mismatch", []float32{1}, []float32{1, 2}, math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EuclideanDistance(tt.a, tt.b); got != tt.want {
				t.Errorf("EuclideanDistance(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestMatch(t *testing.T) {
	idx := gallery.NewIndex([]gallery.Entry{
		entry("Alice", 0, 0),
		entry("Bob", 1, 1),
	})

	tests := []struct {
		name      string
		probe     []float32
		threshold float64
		wantName  string
		wantDist  float64
	}{
		{"exact match", []float32{0, 0}, 0.9, "Alice", 0},
		{"nearest wins", []float32{0.9, 1}, 0.9, "Bob", 0.1},
		{"beyond threshold", []float32{10, 1}, 0.9, "", 9},
		{"distance equal to threshold rejects", []float32{0.5, 0}, 0.5, "", 0.5},
		{"dimension mismatch is unknown", []float32{0, 0, 0}, 0.9, "", math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Match(tt.probe, idx, tt.threshold)
			if tt.wantName == "" {
				if got.Known() {
					t.Fatalf("expected UNKNOWN, got %s", got.Identity.Name)
				}
			} else {
				if !got.Known() || got.Identity.Name != tt.wantName {
					t.Fatalf("expected %s, got %+v", tt.wantName, got)
				}
			}
			if math.Abs(got.Distance-tt.wantDist) > 1e-6 && got.Distance != tt.wantDist {
				t.Errorf("distance = %v, want %v", got.Distance, tt.wantDist)
			}
		})
	}
}

func TestMatch_EmptyGallery(t *testing.T) {
	for _, idx := range []*gallery.Index{nil, gallery.NewIndex(nil)} {
		got := Match([]float32{1, 2}, idx, 0.9)
		if got.Known() {
			t.Error("expected UNKNOWN for empty gallery")
		}
		if !math.IsInf(got.Distance, 1) {
			t.Errorf("expected +Inf distance, got %v", got.Distance)
		}
	}
}

func TestMatch_TieKeepsFirstInListingOrder(t *testing.T) {
	// Inserted out of order; listing order is by filename.
	idx := gallery.NewIndex([]gallery.Entry{
		entry("Zed", 1, 0),
		entry("Amy", -1, 0),
	})

	got := Match([]float32{0, 0}, idx, 2)
	if !got.Known() || got.Identity.Name != "Amy" {
		t.Fatalf("expected Amy on tie, got %+v", got)
	}
	if got.Distance != 1 {
		t.Errorf("distance = %v, want 1", got.Distance)
	}
}

func TestMatch_Deterministic(t *testing.T) {
	idx := gallery.NewIndex([]gallery.Entry{
		entry("Alice", 0.1, 0.2, 0.3),
		entry("Bob", 0.3, 0.2, 0.1),
	})
	probe := []float32{0.2, 0.2, 0.2}
	first := Match(probe, idx, 0.9)
	for range 10 {
		got := Match(probe, idx, 0.9)
		if got.Distance != first.Distance || got.Known() != first.Known() ||
			(got.Known() && got.Identity.Name != first.Identity.Name) {
			t.Fatalf("non-deterministic result: %+v vs %+v", got, first)
		}
	}
}

func TestLinear(t *testing.T) {
	idx := gallery.NewIndex([]gallery.Entry{entry("Alice", 0, 0)})
	var m Matcher = Linear{Threshold: 0.5}
	if got := m.Match([]float32{0.1, 0}, idx); !got.Known() {
		t.Error("expected match below threshold")
	}
	if got := m.Match([]float32{1, 0}, idx); got.Known() {
		t.Error("expected UNKNOWN above threshold")
	}
}
