package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/extractor"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/identity"
	"github.com/kozaktomas/face-attendance/internal/kiosk"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/matcher"
	"github.com/kozaktomas/face-attendance/internal/session"
)

var (
	red   = color.RGBA{R: 230, G: 30, B: 30, A: 255}
	green = color.RGBA{R: 30, G: 230, B: 30, A: 255}
	blue  = color.RGBA{R: 30, G: 30, B: 230, A: 255}
	black = color.RGBA{A: 255}
)

// colorExtractor embeds the color of the top-left pixel. Dark images have no face.
var colorExtractor = extractor.Func(func(ctx context.Context, data []byte) (extractor.Detection, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return extractor.Detection{}, err
	}
	r, g, b, _ := img.At(0, 0).RGBA()
	if r>>8 < 20 && g>>8 < 20 && b>>8 < 20 {
		return extractor.Detection{}, nil
	}
	return extractor.Detection{
		Faces:     1,
		Embedding: []float32{float32(r>>8) / 255, float32(g>>8) / 255, float32(b>>8) / 255},
		Score:     0.99,
	}, nil
})

func solidPNG(t *testing.T, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := range 16 {
		for x := range 16 {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return buf.Bytes()
}

var testNow = time.Date(2024, 3, 1, 8, 59, 0, 0, time.UTC)

type fixture struct {
	gallery    *gallery.Store
	ledger     *ledger.FileStore
	recognizer *session.Recognizer
	kiosks     *kiosk.Manager
}

// newFixture creates a gallery with Alice (red) enrolled, an empty ledger and
// a kiosk manager over both.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := gallery.NewStore(t.TempDir(), colorExtractor)
	alice, _ := identity.New("Alice", "Engineer")
	if _, err := store.Add(context.Background(), alice, solidPNG(t, red)); err != nil {
		t.Fatalf("failed to enroll Alice: %v", err)
	}

	ledgerStore := ledger.NewFileStore(filepath.Join(t.TempDir(), "attendance.csv")).WithLocation(time.UTC)
	recognizer := session.NewRecognizer(colorExtractor, matcher.Linear{Threshold: 0.01}, store)
	kiosks := kiosk.NewManager(recognizer, ledgerStore, kiosk.WithClock(func() time.Time { return testNow }))

	return &fixture{gallery: store, ledger: ledgerStore, recognizer: recognizer, kiosks: kiosks}
}

func (f *fixture) newKiosk(t *testing.T) *kiosk.Kiosk {
	t.Helper()
	k, err := f.kiosks.Create()
	if err != nil {
		t.Fatalf("failed to open kiosk session: %v", err)
	}
	return k
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// multipartRequest builds a multipart request with form fields and an optional image.
func multipartRequest(t *testing.T, method, path string, fields map[string]string, image []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if image != nil {
		part, err := mw.CreateFormFile("image", "upload.png")
		if err != nil {
			t.Fatal(err)
		}
		part.Write(image)
	}
	mw.Close()

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
