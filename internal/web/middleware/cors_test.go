package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	handler := CORS("https://kiosk.example.com, https://admin.example.com")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		method     string
		origin     string
		wantOrigin string
		wantStatus int
	}{
		{"allowed origin", http.MethodGet, "https://kiosk.example.com", "https://kiosk.example.com", http.StatusNoContent},
		{"localhost", http.MethodGet, "http://localhost:5173", "http://localhost:5173", http.StatusNoContent},
		{"lookalike localhost", http.MethodGet, "http://localhost.evil.com", "", http.StatusNoContent},
		{"unknown origin", http.MethodGet, "https://evil.example.com", "", http.StatusNoContent},
		{"preflight", http.MethodOptions, "https://admin.example.com", "https://admin.example.com", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/health", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
		})
	}
}
