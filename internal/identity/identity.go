// Package identity describes enrolled people and the gallery filename schema
// that carries them ("<name>, <position>.<ext>").
package identity

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrInvalidIdentity is returned for identities that cannot be stored or parsed.
var ErrInvalidIdentity = errors.New("invalid identity")

// SupportedExtensions lists the image extensions the gallery indexes.
var SupportedExtensions = []string{".png", ".jpg", ".jpeg"}

// DefaultExtension is used for newly enrolled images.
const DefaultExtension = ".jpg"

// Identity is an enrolled person. Two identities are the same person when
// their names are equal.
type Identity struct {
	Name     string `json:"name"`
	Position string `json:"position"`
}

// New trims the inputs and validates the result.
func New(name, position string) (Identity, error) {
	id := Identity{Name: strings.TrimSpace(name), Position: strings.TrimSpace(position)}
	if err := id.Validate(); err != nil {
		return Identity{}, err
	}
	return id, nil
}

// Validate checks that the identity can round-trip through a filename.
func (id Identity) Validate() error {
	if strings.TrimSpace(id.Name) == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidIdentity)
	}
	// The first comma separates name from position.
	if strings.Contains(id.Name, ",") {
		return fmt.Errorf("%w: name %q contains a comma", ErrInvalidIdentity, id.Name)
	}
	for _, field := range []string{id.Name, id.Position} {
		if strings.ContainsAny(field, `/\`+"\x00") {
			return fmt.Errorf("%w: %q contains a path separator", ErrInvalidIdentity, field)
		}
	}
	if id.Name == "." || id.Name == ".." {
		return fmt.Errorf("%w: name %q is reserved", ErrInvalidIdentity, id.Name)
	}
	return nil
}

// Filename returns the gallery filename for the identity with the given extension.
func (id Identity) Filename(ext string) string {
	if ext == "" {
		ext = DefaultExtension
	}
	if id.Position == "" {
		return id.Name + ext
	}
	return id.Name + ", " + id.Position + ext
}

// String formats the identity for display.
func (id Identity) String() string {
	if id.Position == "" {
		return id.Name
	}
	return id.Name + " (" + id.Position + ")"
}

// Parse extracts the identity from a gallery filename. The stem is split on the
// first comma; without a comma the whole stem is the name.
func Parse(filename string) (Identity, error) {
	base := filepath.Base(filename)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	name, position, _ := strings.Cut(stem, ",")
	id := Identity{
		Name:     strings.TrimSpace(name),
		Position: strings.TrimSpace(position),
	}
	if id.Name == "" {
		return Identity{}, fmt.Errorf("%w: no name in filename %q", ErrInvalidIdentity, base)
	}
	return id, nil
}

// IsSupportedImage reports whether the filename has an indexed image extension.
func IsSupportedImage(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, supported := range SupportedExtensions {
		if ext == supported {
			return true
		}
	}
	return false
}
