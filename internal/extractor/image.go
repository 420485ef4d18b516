package extractor

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Decode decodes a JPEG, PNG, BMP or WebP image.
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

// Downscale resizes an image to fit within maxSize (width or height) while
// keeping aspect ratio, and always re-encodes it as JPEG. A maxSize of zero
// only re-encodes.
func Downscale(data []byte, maxSize int) ([]byte, error) {
	img, _, err := Decode(data)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if maxSize <= 0 || (width <= maxSize && height <= maxSize) {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
			return nil, fmt.Errorf("failed to encode image: %w", err)
		}
		return buf.Bytes(), nil
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = maxSize
		newHeight = max(1, int(float64(height)*float64(maxSize)/float64(width)))
	} else {
		newHeight = maxSize
		newWidth = max(1, int(float64(width)*float64(maxSize)/float64(height)))
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode resized image: %w", err)
	}

	return buf.Bytes(), nil
}

// Normalize returns an image fit for the gallery folder and its extension.
// JPEG and PNG images within maxSize are returned unchanged, so the stored
// file embeds exactly like the upload. Anything else goes through Downscale.
func Normalize(data []byte, maxSize int) ([]byte, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	fits := maxSize <= 0 || (cfg.Width <= maxSize && cfg.Height <= maxSize)
	if fits {
		switch format {
		case "jpeg":
			if _, _, err := Decode(data); err != nil {
				return nil, "", err
			}
			return data, ".jpg", nil
		case "png":
			if _, _, err := Decode(data); err != nil {
				return nil, "", err
			}
			return data, ".png", nil
		}
	}
	out, err := Downscale(data, maxSize)
	if err != nil {
		return nil, "", err
	}
	return out, ".jpg", nil
}
