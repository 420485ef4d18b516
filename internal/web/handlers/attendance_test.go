package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/ledger"
)

func seedLedger(t *testing.T, store ledger.Store) {
	t.Helper()
	day := func(d, h int) time.Time { return time.Date(2024, 3, d, h, 0, 0, 0, time.UTC) }
	for _, e := range []ledger.Event{
		{Name: "Alice", Timestamp: day(1, 9), Type: ledger.In},
		{Name: "Alice", Timestamp: day(1, 17), Type: ledger.Out},
		{Name: "Bob", Timestamp: day(2, 9), Type: ledger.In},
		{Name: "Bob", Timestamp: day(3, 17), Type: ledger.Out},
	} {
		if err := store.Append(context.Background(), e); err != nil {
			t.Fatal(err)
		}
	}
}

func TestAttendanceHandler_List(t *testing.T) {
	f := newFixture(t)
	seedLedger(t, f.ledger)
	h := NewAttendanceHandler(f.ledger, time.UTC)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantCount  int
	}{
		{"all", "", http.StatusOK, 4},
		{"single day", "?start=2024-03-01&end=2024-03-01", http.StatusOK, 2},
		{"open end", "?start=2024-03-02", http.StatusOK, 2},
		{"open start", "?end=2024-03-02", http.StatusOK, 3},
		{"empty range", "?start=2024-04-01&end=2024-04-30", http.StatusOK, 0},
		{"bad date", "?start=01/03/2024", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			h.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/attendance"+tt.query, nil))
			assertStatusCode(t, recorder, tt.wantStatus)
			if tt.wantStatus != http.StatusOK {
				return
			}

			var resp struct {
				Events []ledger.Event `json:"events"`
				Count  int            `json:"count"`
			}
			parseJSONResponse(t, recorder, &resp)
			if resp.Count != tt.wantCount || len(resp.Events) != tt.wantCount {
				t.Errorf("got %d events, want %d", resp.Count, tt.wantCount)
			}
		})
	}
}

func TestAttendanceHandler_Export(t *testing.T) {
	f := newFixture(t)
	seedLedger(t, f.ledger)
	h := NewAttendanceHandler(f.ledger, time.UTC)

	recorder := httptest.NewRecorder()
	h.Export(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/attendance/export.csv?start=2024-03-02&end=2024-03-03", nil))
	assertStatusCode(t, recorder, http.StatusOK)
	assertContentType(t, recorder, "text/csv; charset=utf-8")

	if !strings.Contains(recorder.Header().Get("Content-Disposition"), "attendance_report.csv") {
		t.Errorf("Content-Disposition = %q", recorder.Header().Get("Content-Disposition"))
	}
	want := "Name,Timestamp,Type\n" +
		"Bob,2024-03-02 09:00:00,Time In\n" +
		"Bob,2024-03-03 17:00:00,Time Out\n"
	if recorder.Body.String() != want {
		t.Errorf("export = %q, want %q", recorder.Body.String(), want)
	}
}
