package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/identity"
	"github.com/kozaktomas/face-attendance/internal/kiosk"
	"github.com/kozaktomas/face-attendance/internal/ledger"
)

func TestHealthCheck(t *testing.T) {
	recorder := httptest.NewRecorder()
	HealthCheck(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	assertContentType(t, recorder, "application/json")

	var body map[string]string
	parseJSONResponse(t, recorder, &body)
	if body["status"] != "ok" {
		t.Errorf("status = %q", body["status"])
	}
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{identity.ErrInvalidIdentity, http.StatusBadRequest},
		{fmt.Errorf("%w: bad", gallery.ErrInvalidImage), http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", gallery.ErrNotFound), http.StatusNotFound},
		{kiosk.ErrSessionNotFound, http.StatusNotFound},
		{gallery.ErrDuplicateIdentity, http.StatusConflict},
		{ledger.ErrRepeatedEvent, http.StatusConflict},
		{gallery.ErrNoFaceDetected, http.StatusUnprocessableEntity},
		{kiosk.ErrNoIdentity, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: disk full", ledger.ErrIO), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := statusForError(tt.err); got != tt.want {
				t.Errorf("statusForError(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestSanitizeForLog(t *testing.T) {
	if got := sanitizeForLog("Alice\r\nforged line"); got != "Aliceforged line" {
		t.Errorf("sanitizeForLog() = %q", got)
	}
}
