package main

import (
	"io"
	"sync"

	"github.com/pkg/errors"
)

// recordingEncoder writes the raw pixel buffer and remembers every call.
type recordingEncoder struct {
	mu    sync.Mutex
	calls []encodeCall
}

type encodeCall struct {
	rgb    []byte
	width  int
	height int
}

var _ ImageEncoder = &recordingEncoder{}

func (e *recordingEncoder) Encode(w io.Writer, rgb []byte, width, height int) error {
	e.mu.Lock()
	e.calls = append(e.calls, encodeCall{rgb: append([]byte(nil), rgb...), width: width, height: height})
	e.mu.Unlock()

	_, err := w.Write(rgb)
	return err
}

func (e *recordingEncoder) Calls() []encodeCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]encodeCall(nil), e.calls...)
}

var errEncodeFailed = errors.New("encode failed")

// failingEncoder writes a partial header and then fails.
type failingEncoder struct{}

func (failingEncoder) Encode(w io.Writer, _ []byte, _, _ int) error {
	_, _ = w.Write([]byte("RIFF"))
	return errEncodeFailed
}

// staticSource returns the same frame for every index.
type staticSource struct {
	frame Frame
}

func (s *staticSource) GetFrame(_ int, reason ActivationReason, _ FrameContext) (Frame, error) {
	if reason != ActivationInitial {
		return nil, nil
	}
	return s.frame, nil
}

func newStaticSource(core *Core, frame Frame, numFrames int) (*VideoNode, error) {
	info := VideoInfo{
		Format:    frame.Format(),
		Width:     frame.Width(0),
		Height:    frame.Height(0),
		NumFrames: numFrames,
		FPSNum:    25,
		FPSDen:    1,
	}
	return core.CreateVideoFilter("Static", info, &staticSource{frame: frame}, nil)
}

// failingSource fails every frame request.
type failingSource struct{}

var errSourceFailed = errors.New("source failed")

func (failingSource) GetFrame(n int, reason ActivationReason, _ FrameContext) (Frame, error) {
	return nil, errors.Wrapf(errSourceFailed, "frame %d", n)
}
