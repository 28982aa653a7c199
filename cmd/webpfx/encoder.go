package main

import (
	"io"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

var ErrEmptyImage = errors.New("cannot encode an empty image")

const webpFileExt gocv.FileExt = ".webp"

// OpenCV switches its WebP writer to lossless (VP8L) for any quality above 100.
const webpLosslessQuality = 101

// ImageEncoder writes a packed 8-bit RGB pixel buffer as a complete image file.
type ImageEncoder interface {
	Encode(w io.Writer, rgb []byte, width, height int) error
}

// WebPEncoder is a lossless, three channel, no alpha WebP encoder.
type WebPEncoder struct{}

var _ ImageEncoder = &WebPEncoder{}

func NewWebPEncoder() *WebPEncoder {
	return &WebPEncoder{}
}

func (e *WebPEncoder) Encode(w io.Writer, rgb []byte, width, height int) error {
	if width <= 0 || height <= 0 {
		return errors.Wrapf(ErrEmptyImage, "%dx%d", width, height)
	}
	if len(rgb) != width*height*3 {
		return errors.Errorf("pixel buffer has %d bytes, expected %d for %dx%d RGB", len(rgb), width*height*3, width, height)
	}

	rgbMat, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC3, rgb)
	if err != nil {
		return errors.Wrap(err, "failed to wrap pixel buffer")
	}
	defer rgbMat.Close()

	// OpenCV expects BGR channel order.
	bgrMat := gocv.NewMat()
	defer bgrMat.Close()
	gocv.CvtColor(rgbMat, &bgrMat, gocv.ColorBGRToRGB)

	buf, err := gocv.IMEncodeWithParams(webpFileExt, bgrMat, []int{int(gocv.IMWriteWebpQuality), webpLosslessQuality})
	if err != nil {
		return errors.Wrap(err, "webp encode failed")
	}
	defer buf.Close()

	if _, err := w.Write(buf.GetBytes()); err != nil {
		return errors.Wrap(err, "failed to write webp data")
	}
	return nil
}
