package main

import (
	"image"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/image/webp"
)

// ImageSummary is what the inspect command reports about a written frame.
type ImageSummary struct {
	Width      int
	Height     int
	ColorModel string
	Lossless   bool
}

// DecodeWebPFile reads a WebP file back into an image.
func DecodeWebPFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open '%s'", path)
	}
	defer f.Close()

	img, err := webp.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode '%s'", path)
	}
	return img, nil
}

func InspectWebPFile(path string) (*ImageSummary, error) {
	img, err := DecodeWebPFile(path)
	if err != nil {
		return nil, err
	}

	summary := &ImageSummary{
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
	}

	// The decoder returns NRGBA for VP8L and YCbCr for lossy VP8.
	switch img.(type) {
	case *image.NRGBA:
		summary.ColorModel = "NRGBA"
		summary.Lossless = true
	case *image.YCbCr:
		summary.ColorModel = "YCbCr"
	case *image.NYCbCrA:
		summary.ColorModel = "NYCbCrA"
	default:
		summary.ColorModel = "unknown"
	}

	return summary, nil
}
