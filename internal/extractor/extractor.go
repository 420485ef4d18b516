// Package extractor turns images into face embeddings.
//
// The heavy lifting is done by an external embedding server; this package
// holds the client for it, a local pigo-based presence gate and the image
// preprocessing shared by enrollment and recognition.
package extractor

import "context"

// Detection is the outcome of running the detector and embedder on one image.
type Detection struct {
	// Faces is the number of candidate face regions found.
	Faces int
	// Embedding is nil when no face was aligned well enough to embed.
	Embedding []float32
	// Score is the detector confidence of the embedded face.
	Score float64
}

// Aligned reports whether an embedding was produced.
func (d Detection) Aligned() bool {
	return len(d.Embedding) > 0
}

// Extractor detects a face in an encoded image and embeds it.
type Extractor interface {
	DetectAndEmbed(ctx context.Context, image []byte) (Detection, error)
}

// Func adapts a plain function to the Extractor interface.
type Func func(ctx context.Context, image []byte) (Detection, error)

// DetectAndEmbed calls f.
func (f Func) DetectAndEmbed(ctx context.Context, image []byte) (Detection, error) {
	return f(ctx, image)
}
