package kiosk

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/extractor"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/identity"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/matcher"
	"github.com/kozaktomas/face-attendance/internal/session"
)

// pixelExtractor embeds the first pixels of a decoded image, so any lossy
// re-encoding of a stored reference image moves its embedding.
var pixelExtractor = extractor.Func(func(ctx context.Context, data []byte) (extractor.Detection, error) {
	img, _, err := extractor.Decode(data)
	if err != nil {
		return extractor.Detection{}, err
	}
	emb := make([]float32, 0, 8)
	for x := range 8 {
		r, g, b, _ := img.At(x, 0).RGBA()
		emb = append(emb, float32(r+g+b)/float32(3*0xffff))
	}
	return extractor.Detection{Faces: 1, Embedding: emb}, nil
})

// noisyPNG is a high-frequency pattern that JPEG cannot reproduce exactly.
func noisyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := range 32 {
		for x := range 32 {
			v := uint8((x*73 + y*151) % 256)
			if (x+y)%2 == 0 {
				v = 255 - v
			}
			img.Set(x, y, color.RGBA{R: v, G: 255 - v, B: v / 2, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestEnrollRecognizeRecord(t *testing.T) {
	ctx := context.Background()
	photo := noisyPNG(t)

	store := gallery.NewStore(t.TempDir(), pixelExtractor)
	if _, err := store.Reload(ctx); err != nil {
		t.Fatalf("Reload() error: %v", err)
	}
	bob, err := identity.New("Bob", "Engineer")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Add(ctx, bob, photo); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	// Match against the embedding of the stored file, as after a restart.
	if report, err := store.Reload(ctx); err != nil || report.Indexed != 1 {
		t.Fatalf("Reload() = %+v, %v", report, err)
	}

	attendance := newTestLedger(t)
	r := session.NewRecognizer(pixelExtractor, matcher.Linear{Threshold: 0.01}, store)
	k := New("k1", r, attendance, WithClock(func() time.Time { return fixedNow }))
	defer k.Close()

	state, err := k.Frame(ctx, photo)
	if err != nil {
		t.Fatalf("Frame() error: %v", err)
	}
	if state.Kind != session.Recognized || state.Identity == nil || state.Identity.Name != "Bob" {
		t.Fatalf("state = %+v, want Bob recognized", state)
	}
	if state.Distance != 0 {
		t.Errorf("distance = %v, want 0 for the enrolled image", state.Distance)
	}

	if _, err := k.Record(ctx, ledger.In); err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	result, err := attendance.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll() error: %v", err)
	}
	if len(result.Events) != 1 {
		t.Fatalf("events = %+v, want exactly one", result.Events)
	}
	if e := result.Events[0]; e.Name != "Bob" || e.Type != ledger.In || !e.Timestamp.Equal(fixedNow) {
		t.Errorf("event = %+v, want Bob IN at %s", e, fixedNow)
	}
}
