package main

import (
	"github.com/pkg/errors"
)

// Frame is a borrowed, read-only view of one video frame.
//
// Frames are owned by whoever produced them (the core or a source); the
// slices returned by Plane must not be modified by consumers.
type Frame interface {
	Format() VideoFormat
	NumPlanes() int
	Plane(plane int) []byte
	Width(plane int) int
	Height(plane int) int
}

type PlanarFrame struct {
	format VideoFormat
	planes [][]byte
	width  int
	height int
}

var _ Frame = &PlanarFrame{}

// NewPlanarFrame wraps the given planes without copying them. All planes
// share the same dimensions and are stored without row padding.
func NewPlanarFrame(format VideoFormat, width, height int, planes ...[]byte) (*PlanarFrame, error) {
	if len(planes) != format.NumPlanes {
		return nil, errors.Errorf("format %s needs %d planes, got %d", format, format.NumPlanes, len(planes))
	}

	planeSize := width * height * format.BytesPerSample()
	for i, p := range planes {
		if len(p) != planeSize {
			return nil, errors.Errorf("plane %d has %d bytes, expected %d", i, len(p), planeSize)
		}
	}

	return &PlanarFrame{
		format: format,
		planes: planes,
		width:  width,
		height: height,
	}, nil
}

func (f *PlanarFrame) Format() VideoFormat {
	return f.format
}

func (f *PlanarFrame) NumPlanes() int {
	return len(f.planes)
}

func (f *PlanarFrame) Plane(plane int) []byte {
	if plane < 0 || plane >= len(f.planes) {
		return nil
	}
	return f.planes[plane]
}

func (f *PlanarFrame) Width(plane int) int {
	if plane < 0 || plane >= len(f.planes) {
		return 0
	}
	return f.width
}

func (f *PlanarFrame) Height(plane int) int {
	if plane < 0 || plane >= len(f.planes) {
		return 0
	}
	return f.height
}
