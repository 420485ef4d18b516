package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/identity"
)

// UsersHandler manages enrolled identities.
type UsersHandler struct {
	gallery *gallery.Store
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(store *gallery.Store) *UsersHandler {
	return &UsersHandler{gallery: store}
}

// UserResponse is one enrolled identity.
type UserResponse struct {
	Name     string `json:"name"`
	Position string `json:"position,omitempty"`
	Filename string `json:"filename"`
}

func toUserResponse(e gallery.Entry) UserResponse {
	return UserResponse{Name: e.Identity.Name, Position: e.Identity.Position, Filename: e.Filename()}
}

// List returns the enrolled identities ordered by filename.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	entries := h.gallery.Snapshot().Entries()
	users := make([]UserResponse, 0, len(entries))
	for _, e := range entries {
		users = append(users, toUserResponse(e))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"count": len(users),
	})
}

// readImage returns the "image" part of a parsed multipart form.
func readImage(r *http.Request) ([]byte, error) {
	file, _, err := r.FormFile("image")
	if err != nil {
		return nil, errors.New("image file is required")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.New("failed to read image")
	}
	if len(data) == 0 {
		return nil, errors.New("image file is empty")
	}
	return data, nil
}

// Create enrolls a new identity from a multipart form with name, position
// and image fields.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	id, err := identity.New(r.FormValue("name"), r.FormValue("position"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	image, err := readImage(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	entry, err := h.gallery.Add(r.Context(), id, image)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	log.Printf("users: enrolled %s", sanitizeForLog(entry.Identity.String()))
	respondJSON(w, http.StatusCreated, toUserResponse(entry))
}

type renameRequest struct {
	Name     string `json:"name"`
	Position string `json:"position"`
}

// Rename changes the name and position of an identity, keeping its embedding.
func (h *UsersHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	id, err := identity.New(req.Name, req.Position)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	entry, err := h.gallery.Rename(r.Context(), pathParam(r, "name"), id)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toUserResponse(entry))
}

// Reenroll replaces the image of an identity and recomputes its embedding.
func (h *UsersHandler) Reenroll(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	image, err := readImage(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	entry, err := h.gallery.Reenroll(r.Context(), pathParam(r, "name"), image)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toUserResponse(entry))
}

// Delete removes an identity. When its image was already gone the entry is
// still dropped and the response carries a warning.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")
	err := h.gallery.Remove(r.Context(), name)
	switch {
	case errors.Is(err, gallery.ErrArtifactMissing):
		respondJSON(w, http.StatusOK, map[string]any{"removed": true, "warning": err.Error()})
	case err != nil:
		respondDomainError(w, r, err)
	default:
		respondJSON(w, http.StatusOK, map[string]any{"removed": true})
	}
}

// Reload rescans the gallery folder.
func (h *UsersHandler) Reload(w http.ResponseWriter, r *http.Request) {
	report, err := h.gallery.Reload(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}
