package main

import (
	"fmt"
)

type ColorFamily int

const (
	ColorFamilyUndefined ColorFamily = iota
	ColorFamilyGray
	ColorFamilyRGB
	ColorFamilyYUV
)

func (cf ColorFamily) String() string {
	switch cf {
	case ColorFamilyGray:
		return "Gray"
	case ColorFamilyRGB:
		return "RGB"
	case ColorFamilyYUV:
		return "YUV"
	default:
		return "Undefined"
	}
}

type SampleType int

const (
	SampleTypeInteger SampleType = iota
	SampleTypeFloat
)

func (st SampleType) String() string {
	if st == SampleTypeFloat {
		return "Float"
	}
	return "Integer"
}

// VideoFormat describes how the samples of a frame are stored.
type VideoFormat struct {
	ColorFamily   ColorFamily
	SampleType    SampleType
	BitsPerSample int
	NumPlanes     int
}

var (
	FormatRGB24 = VideoFormat{ColorFamily: ColorFamilyRGB, SampleType: SampleTypeInteger, BitsPerSample: 8, NumPlanes: 3}
	FormatRGB48 = VideoFormat{ColorFamily: ColorFamilyRGB, SampleType: SampleTypeInteger, BitsPerSample: 16, NumPlanes: 3}
	FormatRGBS  = VideoFormat{ColorFamily: ColorFamilyRGB, SampleType: SampleTypeFloat, BitsPerSample: 32, NumPlanes: 3}
	FormatGray8 = VideoFormat{ColorFamily: ColorFamilyGray, SampleType: SampleTypeInteger, BitsPerSample: 8, NumPlanes: 1}
	FormatYUV8  = VideoFormat{ColorFamily: ColorFamilyYUV, SampleType: SampleTypeInteger, BitsPerSample: 8, NumPlanes: 3}
)

func (f VideoFormat) BytesPerSample() int {
	return (f.BitsPerSample + 7) / 8
}

func (f VideoFormat) IsRGB24() bool {
	return f.BitsPerSample == 8 &&
		f.ColorFamily == ColorFamilyRGB &&
		f.SampleType == SampleTypeInteger
}

func (f VideoFormat) String() string {
	return fmt.Sprintf("%s%s%d", f.ColorFamily, sampleTypeSuffix(f.SampleType), f.BitsPerSample)
}

func sampleTypeSuffix(st SampleType) string {
	if st == SampleTypeFloat {
		return "S"
	}
	return ""
}

// VideoInfo is the stream descriptor a node advertises to its consumers.
//
// NumFrames <= 0 means the length is unknown and frame indices are not
// bounds-checked by the core.
type VideoInfo struct {
	Format    VideoFormat
	Width     int
	Height    int
	NumFrames int
	FPSNum    int64
	FPSDen    int64
}

func (vi VideoInfo) String() string {
	return fmt.Sprintf("%s %dx%d, %d frames, %d/%d fps",
		vi.Format, vi.Width, vi.Height, vi.NumFrames, vi.FPSNum, vi.FPSDen)
}
