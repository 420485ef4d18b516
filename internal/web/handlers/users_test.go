package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestUsersHandler_List(t *testing.T) {
	f := newFixture(t)
	h := NewUsersHandler(f.gallery)

	recorder := httptest.NewRecorder()
	h.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/users", nil))
	assertStatusCode(t, recorder, http.StatusOK)

	var resp struct {
		Users []UserResponse `json:"users"`
		Count int            `json:"count"`
	}
	parseJSONResponse(t, recorder, &resp)
	if resp.Count != 1 || resp.Users[0].Name != "Alice" || resp.Users[0].Filename != "Alice, Engineer.png" {
		t.Errorf("List() = %+v", resp)
	}
}

func TestUsersHandler_Create(t *testing.T) {
	tests := []struct {
		name       string
		fields     map[string]string
		image      func(t *testing.T) []byte
		wantStatus int
	}{
		{
			name:       "enrolls",
			fields:     map[string]string{"name": "Bob", "position": "Manager"},
			image:      func(t *testing.T) []byte { return solidPNG(t, blue) },
			wantStatus: http.StatusCreated,
		},
		{
			name:       "empty name",
			fields:     map[string]string{"name": "  ", "position": "Manager"},
			image:      func(t *testing.T) []byte { return solidPNG(t, blue) },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing image",
			fields:     map[string]string{"name": "Bob"},
			image:      func(t *testing.T) []byte { return nil },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "not an image",
			fields:     map[string]string{"name": "Bob"},
			image:      func(t *testing.T) []byte { return []byte("plain text") },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "no face",
			fields:     map[string]string{"name": "Bob"},
			image:      func(t *testing.T) []byte { return solidPNG(t, black) },
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "duplicate name",
			fields:     map[string]string{"name": "alice", "position": "Intern"},
			image:      func(t *testing.T) []byte { return solidPNG(t, blue) },
			wantStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			h := NewUsersHandler(f.gallery)

			recorder := httptest.NewRecorder()
			h.Create(recorder, multipartRequest(t, http.MethodPost, "/api/v1/users", tt.fields, tt.image(t)))
			assertStatusCode(t, recorder, tt.wantStatus)

			wantLen := 1
			if tt.wantStatus == http.StatusCreated {
				wantLen = 2
			}
			if got := f.gallery.Snapshot().Len(); got != wantLen {
				t.Errorf("gallery size = %d, want %d", got, wantLen)
			}
		})
	}
}

func TestUsersHandler_Rename(t *testing.T) {
	f := newFixture(t)
	h := NewUsersHandler(f.gallery)

	req := requestWithChiParams(
		httptest.NewRequest(http.MethodPut, "/api/v1/users/Alice", bytes.NewBufferString(`{"name":"Alice","position":"CTO"}`)),
		map[string]string{"name": "Alice"},
	)
	recorder := httptest.NewRecorder()
	h.Rename(recorder, req)
	assertStatusCode(t, recorder, http.StatusOK)

	var user UserResponse
	parseJSONResponse(t, recorder, &user)
	if user.Position != "CTO" || user.Filename != "Alice, CTO.png" {
		t.Errorf("Rename() = %+v", user)
	}
	if _, err := os.Stat(filepath.Join(f.gallery.Dir(), "Alice, CTO.png")); err != nil {
		t.Errorf("renamed file missing: %v", err)
	}

	req = requestWithChiParams(
		httptest.NewRequest(http.MethodPut, "/api/v1/users/Nobody", bytes.NewBufferString(`{"name":"Somebody"}`)),
		map[string]string{"name": "Nobody"},
	)
	recorder = httptest.NewRecorder()
	h.Rename(recorder, req)
	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestUsersHandler_Reenroll(t *testing.T) {
	f := newFixture(t)
	h := NewUsersHandler(f.gallery)

	req := requestWithChiParams(
		multipartRequest(t, http.MethodPut, "/api/v1/users/Alice/image", nil, solidPNG(t, green)),
		map[string]string{"name": "Alice"},
	)
	recorder := httptest.NewRecorder()
	h.Reenroll(recorder, req)
	assertStatusCode(t, recorder, http.StatusOK)

	entry, ok := f.gallery.Get("Alice")
	if !ok || entry.Embedding[1] < 0.5 {
		t.Errorf("embedding not recomputed: %+v", entry.Embedding)
	}
}

func TestUsersHandler_Delete(t *testing.T) {
	f := newFixture(t)
	h := NewUsersHandler(f.gallery)

	del := func(name string) *httptest.ResponseRecorder {
		req := requestWithChiParams(httptest.NewRequest(http.MethodDelete, "/", nil), map[string]string{"name": name})
		recorder := httptest.NewRecorder()
		h.Delete(recorder, req)
		return recorder
	}

	// Remove the file behind the gallery's back first.
	if err := os.Remove(filepath.Join(f.gallery.Dir(), "Alice, Engineer.png")); err != nil {
		t.Fatal(err)
	}
	recorder := del("Alice")
	assertStatusCode(t, recorder, http.StatusOK)
	var resp map[string]any
	parseJSONResponse(t, recorder, &resp)
	if resp["removed"] != true || resp["warning"] == nil {
		t.Errorf("Delete() = %v", resp)
	}
	if f.gallery.Snapshot().Len() != 0 {
		t.Error("entry should be dropped")
	}

	assertStatusCode(t, del("Alice"), http.StatusNotFound)
}

func TestUsersHandler_Reload(t *testing.T) {
	f := newFixture(t)
	h := NewUsersHandler(f.gallery)

	if err := os.WriteFile(filepath.Join(f.gallery.Dir(), "Bob, Manager.png"), solidPNG(t, blue), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(f.gallery.Dir(), "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	recorder := httptest.NewRecorder()
	h.Reload(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/users/reload", nil))
	assertStatusCode(t, recorder, http.StatusOK)

	var report struct {
		Indexed int `json:"indexed"`
	}
	parseJSONResponse(t, recorder, &report)
	if report.Indexed != 2 {
		t.Errorf("indexed = %d, want 2", report.Indexed)
	}
}
