package gallery

import "errors"

var (
	// ErrIO wraps filesystem failures on the gallery folder.
	ErrIO = errors.New("gallery I/O error")

	// ErrNoFaceDetected is returned when an enrollment image yields no aligned face.
	ErrNoFaceDetected = errors.New("no face detected")

	// ErrInvalidImage is returned when an enrollment image cannot be decoded.
	ErrInvalidImage = errors.New("invalid image")

	// ErrDuplicateIdentity is returned when a name is already enrolled.
	ErrDuplicateIdentity = errors.New("identity already enrolled")

	// ErrNotFound is returned when an identity is not in the index.
	ErrNotFound = errors.New("identity not found")

	// ErrArtifactMissing is returned by Remove when the index knew the identity
	// but its image was already gone. The entry is dropped regardless.
	ErrArtifactMissing = errors.New("gallery image already missing")
)
