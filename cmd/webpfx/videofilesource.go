package main

import (
	"math"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// VideoFileSource decodes a video file with OpenCV and serves its frames as
// RGB24 planes.
type VideoFileSource struct {
	sourceId string

	// VideoCapture is stateful (read position), so every seek+read pair runs
	// under mu.
	mu          sync.Mutex
	src         *gocv.VideoCapture
	frameBuffer gocv.Mat
	rgbBuffer   gocv.Mat
	info        VideoInfo
}

var _ Filter = &VideoFileSource{}

func NewVideoFileSource(core *Core, sourceId string) (*VideoNode, error) {
	src, err := gocv.VideoCaptureFile(sourceId)
	if err != nil {
		if src != nil {
			_ = src.Close()
		}
		logger.WithError(err).Errorf("VideoCaptureFile failed")
		return nil, errors.Wrapf(err, "failed to open video file '%s'", sourceId)
	}

	vfs := &VideoFileSource{
		sourceId:    sourceId,
		src:         src,
		frameBuffer: gocv.NewMat(),
		rgbBuffer:   gocv.NewMat(),
	}

	fpsNum, fpsDen := fpsToRational(src.Get(gocv.VideoCaptureFPS))
	vfs.info = VideoInfo{
		Format:    FormatRGB24,
		Width:     int(src.Get(gocv.VideoCaptureFrameWidth)),
		Height:    int(src.Get(gocv.VideoCaptureFrameHeight)),
		NumFrames: int(src.Get(gocv.VideoCaptureFrameCount)),
		FPSNum:    fpsNum,
		FPSDen:    fpsDen,
	}

	node, err := core.CreateVideoFilter("VideoFile", vfs.info, vfs, nil)
	if err != nil {
		return nil, flattenErrors(err, vfs.Close())
	}

	logger.
		WithField("source", sourceId).
		Infof("Opened video file: %s", vfs.info)

	return node, nil
}

func (vfs *VideoFileSource) GetFrame(n int, reason ActivationReason, _ FrameContext) (Frame, error) {
	if reason != ActivationInitial {
		return nil, nil
	}

	vfs.mu.Lock()
	defer vfs.mu.Unlock()

	vfs.src.Set(gocv.VideoCapturePosFrames, float64(n))
	if ok := vfs.src.Read(&vfs.frameBuffer); !ok || vfs.frameBuffer.Empty() {
		return nil, errors.Errorf("failed to read frame %d from '%s'", n, vfs.sourceId)
	}

	if vfs.frameBuffer.Channels() != 3 {
		return nil, errors.Errorf("frame %d of '%s' has %d channels, expected 3", n, vfs.sourceId, vfs.frameBuffer.Channels())
	}

	gocv.CvtColor(vfs.frameBuffer, &vfs.rgbBuffer, gocv.ColorBGRToRGB)

	channels := gocv.Split(vfs.rgbBuffer)
	defer func() {
		for _, ch := range channels {
			ch.Close()
		}
	}()

	planes := make([][]byte, len(channels))
	for i, ch := range channels {
		// ToBytes copies out of the Mat, so the planes outlive the buffers.
		planes[i] = ch.ToBytes()
	}

	return NewPlanarFrame(FormatRGB24, vfs.rgbBuffer.Cols(), vfs.rgbBuffer.Rows(), planes...)
}

func (vfs *VideoFileSource) Close() error {
	vfs.mu.Lock()
	defer vfs.mu.Unlock()

	return flattenErrors(
		errors.Wrapf(vfs.src.Close(), "video file source teardown error"),
		errors.Wrapf(vfs.frameBuffer.Close(), "video file frame buffer teardown error"),
		errors.Wrapf(vfs.rgbBuffer.Close(), "video file rgb buffer teardown error"),
	)
}

func fpsToRational(fps float64) (num, den int64) {
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		return 0, 1
	}

	if r := math.Round(fps); math.Abs(fps-r) < 1e-3 {
		return int64(r), 1
	}

	// NTSC rates come through as e.g. 29.97002997.
	ntsc := fps * 1001 / 1000
	if r := math.Round(ntsc); math.Abs(ntsc-r) < 1e-3 {
		return int64(r) * 1000, 1001
	}

	return int64(math.Round(fps * 1000)), 1000
}
