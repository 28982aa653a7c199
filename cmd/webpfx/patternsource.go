package main

import (
	"github.com/pkg/errors"
)

// PatternSource is a synthetic clip: plane p of frame n holds
// (x + y*width + n + 85*p) truncated to the sample size at every pixel.
type PatternSource struct {
	info VideoInfo
}

var _ Filter = &PatternSource{}

func NewPatternSource(core *Core, info VideoInfo) (*VideoNode, error) {
	if info.Width <= 0 || info.Height <= 0 {
		return nil, errors.Errorf("invalid pattern size %dx%d", info.Width, info.Height)
	}
	if info.Format.NumPlanes <= 0 {
		return nil, errors.Errorf("pattern format %s has no planes", info.Format)
	}
	if info.FPSDen == 0 {
		info.FPSNum, info.FPSDen = 25, 1
	}

	return core.CreateVideoFilter("Pattern", info, &PatternSource{info: info}, nil)
}

func (ps *PatternSource) GetFrame(n int, reason ActivationReason, _ FrameContext) (Frame, error) {
	if reason != ActivationInitial {
		return nil, nil
	}

	format := ps.info.Format
	width, height := ps.info.Width, ps.info.Height
	bps := format.BytesPerSample()

	planes := make([][]byte, format.NumPlanes)
	for p := range planes {
		plane := make([]byte, width*height*bps)
		for i := 0; i < width*height; i++ {
			// Little-endian samples; only the low byte carries the pattern.
			plane[i*bps] = PatternSample(i, n, p)
		}
		planes[p] = plane
	}

	return NewPlanarFrame(format, width, height, planes...)
}

// PatternSample is the low byte of the sample at pixel offset i of plane p in
// frame n.
func PatternSample(i, n, p int) byte {
	return byte(i + n + 85*p)
}
