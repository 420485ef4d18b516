package extractor

import (
	"context"
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"
)

// PigoParams holds pigo face detector parameters.
type PigoParams struct {
	MinSize          int     // Minimum face size
	MaxSize          int     // Maximum face size
	ShiftFactor      float64 // Shift factor
	ScaleFactor      float64 // Scale factor
	QualityThreshold float32 // Detection quality threshold
}

// DefaultPigoParams suit webcam frames of a person standing at a kiosk.
var DefaultPigoParams = PigoParams{
	MinSize:          60,
	MaxSize:          1000,
	ShiftFactor:      0.1,
	ScaleFactor:      1.1,
	QualityThreshold: 5.0,
}

// FaceCounter counts face regions in a decoded image.
type FaceCounter interface {
	CountFaces(img image.Image) int
}

// PigoDetector is a pure Go face presence detector.
type PigoDetector struct {
	classifier *pigo.Pigo
	params     PigoParams
}

// NewPigoDetector unpacks a pigo cascade.
func NewPigoDetector(cascade []byte, params PigoParams) (*PigoDetector, error) {
	p := pigo.NewPigo()
	classifier, err := p.Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack pigo cascade: %w", err)
	}
	return &PigoDetector{classifier: classifier, params: params}, nil
}

// LoadPigoDetector reads a cascade file from disk.
func LoadPigoDetector(path string) (*PigoDetector, error) {
	cascade, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pigo cascade file: %w", err)
	}
	return NewPigoDetector(cascade, DefaultPigoParams)
}

// CountFaces returns the number of clustered detections above the quality threshold.
func (d *PigoDetector) CountFaces(img image.Image) int {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	// Luminosity grayscale.
	pixels := make([]uint8, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			pixels[y*width+x] = uint8((r*299 + g*587 + b*114) / 1000 / 256)
		}
	}

	cParams := pigo.CascadeParams{
		MinSize:     d.params.MinSize,
		MaxSize:     d.params.MaxSize,
		ShiftFactor: d.params.ShiftFactor,
		ScaleFactor: d.params.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   height,
			Cols:   width,
			Dim:    width,
		},
	}

	dets := d.classifier.RunCascade(cParams, 0.0)
	dets = d.classifier.ClusterDetections(dets, 0.2)

	count := 0
	for _, det := range dets {
		if det.Q > d.params.QualityThreshold {
			count++
		}
	}
	return count
}

// Gate answers "no face" locally and only forwards frames with a detected
// face to the wrapped extractor.
type Gate struct {
	counter FaceCounter
	next    Extractor
}

// NewGate wraps next with a local presence check.
func NewGate(counter FaceCounter, next Extractor) *Gate {
	return &Gate{counter: counter, next: next}
}

// DetectAndEmbed implements Extractor.
func (g *Gate) DetectAndEmbed(ctx context.Context, data []byte) (Detection, error) {
	img, _, err := Decode(data)
	if err != nil {
		return Detection{}, err
	}
	if g.counter.CountFaces(img) == 0 {
		return Detection{}, nil
	}
	return g.next.DetectAndEmbed(ctx, data)
}
