package handlers

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/ledger"
)

// AttendanceHandler serves attendance reports.
type AttendanceHandler struct {
	ledger ledger.Store
	loc    *time.Location
}

// NewAttendanceHandler creates a new attendance handler. Date bounds are
// interpreted in loc.
func NewAttendanceHandler(store ledger.Store, loc *time.Location) *AttendanceHandler {
	return &AttendanceHandler{ledger: store, loc: loc}
}

func (h *AttendanceHandler) query(w http.ResponseWriter, r *http.Request) ([]ledger.Event, bool) {
	start, end, err := ledger.ParseDayRange(r.URL.Query().Get("start"), r.URL.Query().Get("end"), h.loc)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	events, err := ledger.Query(r.Context(), h.ledger, start, end)
	if err != nil {
		respondDomainError(w, r, err)
		return nil, false
	}
	return events, true
}

// List returns the events between the optional start and end dates (YYYY-MM-DD, inclusive).
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	events, ok := h.query(w, r)
	if !ok {
		return
	}
	if events == nil {
		events = []ledger.Event{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// Export streams the same selection as a CSV report.
func (h *AttendanceHandler) Export(w http.ResponseWriter, r *http.Request) {
	events, ok := h.query(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", constants.ExportFilename))
	if err := ledger.WriteCSV(w, events); err != nil {
		log.Printf("attendance export: %v", err)
	}
}
