package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/kiosk"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/session"
)

// KioskHandler serves the attendance terminal endpoints.
type KioskHandler struct {
	manager *kiosk.Manager
}

// NewKioskHandler creates a new kiosk handler.
func NewKioskHandler(m *kiosk.Manager) *KioskHandler {
	return &KioskHandler{manager: m}
}

// KioskResponse is the state of one kiosk session.
type KioskResponse struct {
	SessionID string        `json:"session_id"`
	Status    session.State `json:"status"`
	Error     string        `json:"error,omitempty"`
}

func (h *KioskHandler) kiosk(w http.ResponseWriter, r *http.Request) *kiosk.Kiosk {
	k, err := h.manager.Get(pathParam(r, "id"))
	if err != nil {
		respondDomainError(w, r, err)
		return nil
	}
	return k
}

// Create opens a new kiosk session.
func (h *KioskHandler) Create(w http.ResponseWriter, r *http.Request) {
	k, err := h.manager.Create()
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, KioskResponse{SessionID: k.ID(), Status: k.State()})
}

// Get returns the current state.
func (h *KioskHandler) Get(w http.ResponseWriter, r *http.Request) {
	k := h.kiosk(w, r)
	if k == nil {
		return
	}
	respondJSON(w, http.StatusOK, KioskResponse{SessionID: k.ID(), Status: k.State()})
}

// readFrame reads the raw request body. It writes the error response and
// returns nil when the body is unusable.
func readFrame(w http.ResponseWriter, r *http.Request) []byte {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, constants.MaxFrameSize))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, http.StatusRequestEntityTooLarge, "frame too large")
			return nil
		}
		respondError(w, http.StatusBadRequest, "failed to read frame")
		return nil
	}
	if len(data) == 0 {
		respondError(w, http.StatusBadRequest, "frame is empty")
		return nil
	}
	return data
}

// Frame processes one camera frame sent as the raw request body. An
// extraction failure is reported alongside the resulting NOT_ALIGNED state.
func (h *KioskHandler) Frame(w http.ResponseWriter, r *http.Request) {
	k := h.kiosk(w, r)
	if k == nil {
		return
	}
	data := readFrame(w, r)
	if data == nil {
		return
	}

	state, err := k.Frame(r.Context(), data)
	resp := KioskResponse{SessionID: k.ID(), Status: state}
	if err != nil {
		resp.Error = err.Error()
	}
	respondJSON(w, http.StatusOK, resp)
}

// Stream queues a frame for background recognition and answers 202 with the
// state of the last processed frame.
func (h *KioskHandler) Stream(w http.ResponseWriter, r *http.Request) {
	k := h.kiosk(w, r)
	if k == nil {
		return
	}
	data := readFrame(w, r)
	if data == nil {
		return
	}

	k.Submit(data)
	respondJSON(w, http.StatusAccepted, KioskResponse{SessionID: k.ID(), Status: k.State()})
}

// Reset is the "Again" action.
func (h *KioskHandler) Reset(w http.ResponseWriter, r *http.Request) {
	k := h.kiosk(w, r)
	if k == nil {
		return
	}
	respondJSON(w, http.StatusOK, KioskResponse{SessionID: k.ID(), Status: k.Reset()})
}

type recordRequest struct {
	Type string `json:"type"`
}

// Record logs Time In or Time Out for the recognized identity.
func (h *KioskHandler) Record(w http.ResponseWriter, r *http.Request) {
	k := h.kiosk(w, r)
	if k == nil {
		return
	}

	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	typ, err := ledger.ParseEventType(req.Type)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	event, err := k.Record(r.Context(), typ)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, event)
}

// Close ends a kiosk session.
func (h *KioskHandler) Close(w http.ResponseWriter, r *http.Request) {
	if !h.manager.Delete(pathParam(r, "id")) {
		respondDomainError(w, r, kiosk.ErrSessionNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
