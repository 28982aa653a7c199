package main

import (
	"context"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWebPNode(t *testing.T, core *Core, src *VideoNode, path string, parents int, enc ImageEncoder) *VideoNode {
	t.Helper()

	require.NoError(t, core.RegisterPlugin(NewWebPPlugin(enc)))

	out, err := core.Invoke("webp", "WebP", Args{"clip": src, "path": path, "parents": parents})
	require.NoError(t, err)

	node, err := out.VideoNode("clip")
	require.NoError(t, err)
	return node
}

func TestWebPEndToEnd(t *testing.T) {
	dir := t.TempDir()
	core := NewCore()
	frame := newTestFrame(t)

	src, err := newStaticSource(core, frame, 10)
	require.NoError(t, err)

	node := newWebPNode(t, core, src, filepath.Join(dir, "out", "frame_{n}.webp"), 1, NewWebPEncoder())

	got, err := core.GetFrame(context.Background(), 5, node)
	require.NoError(t, err)
	assert.Same(t, frame, got)

	img, err := DecodeWebPFile(filepath.Join(dir, "out", "frame_5.webp"))
	require.NoError(t, err)
	require.Equal(t, 2, img.Bounds().Dx())
	require.Equal(t, 1, img.Bounds().Dy())

	b := img.Bounds()
	assert.Equal(t, color.NRGBA{R: 10, G: 30, B: 50, A: 255}, color.NRGBAModel.Convert(img.At(b.Min.X, b.Min.Y)))
	assert.Equal(t, color.NRGBA{R: 20, G: 40, B: 60, A: 255}, color.NRGBAModel.Convert(img.At(b.Min.X+1, b.Min.Y)))

	summary, err := InspectWebPFile(filepath.Join(dir, "out", "frame_5.webp"))
	require.NoError(t, err)
	assert.True(t, summary.Lossless)
}

func TestWebPRoundTripReproducesPlanes(t *testing.T) {
	dir := t.TempDir()
	core := NewCore()

	info := VideoInfo{Format: FormatRGB24, Width: 37, Height: 19, NumFrames: 3}
	src, err := NewPatternSource(core, info)
	require.NoError(t, err)

	node := newWebPNode(t, core, src, filepath.Join(dir, "{n:03}.webp"), 0, NewWebPEncoder())

	for n := 0; n < info.NumFrames; n++ {
		frame, err := core.GetFrame(context.Background(), n, node)
		require.NoError(t, err)

		path, err := ResolvePath(filepath.Join(dir, "{n:03}.webp"), n)
		require.NoError(t, err)

		img, err := DecodeWebPFile(path)
		require.NoError(t, err)

		b := img.Bounds()
		require.Equal(t, info.Width, b.Dx())
		require.Equal(t, info.Height, b.Dy())

		for y := 0; y < info.Height; y++ {
			for x := 0; x < info.Width; x++ {
				i := y*info.Width + x
				c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
				require.Equal(t, frame.Plane(0)[i], c.R, "frame %d pixel (%d,%d)", n, x, y)
				require.Equal(t, frame.Plane(1)[i], c.G, "frame %d pixel (%d,%d)", n, x, y)
				require.Equal(t, frame.Plane(2)[i], c.B, "frame %d pixel (%d,%d)", n, x, y)
			}
		}
	}
}

func TestWebPRejectsUnsupportedFormats(t *testing.T) {
	formats := []VideoFormat{FormatRGB48, FormatRGBS, FormatGray8, FormatYUV8}

	for _, format := range formats {
		t.Run(format.String(), func(t *testing.T) {
			dir := t.TempDir()
			core := NewCore()
			require.NoError(t, core.RegisterPlugin(NewWebPPlugin(&recordingEncoder{})))

			src, err := NewPatternSource(core, VideoInfo{Format: format, Width: 2, Height: 1, NumFrames: 4})
			require.NoError(t, err)

			out, err := core.Invoke("webp", "WebP", Args{"clip": src, "path": filepath.Join(dir, "{n}.webp"), "parents": 1})
			require.Error(t, err)
			assert.Nil(t, out)
			assert.True(t, errors.Is(err, ErrUnsupportedFormat), "got %v", err)

			// Only the source got registered.
			assert.Len(t, core.nodes, 1)

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestWebPMissingArguments(t *testing.T) {
	core := NewCore()

	src, err := newStaticSource(core, newTestFrame(t), 1)
	require.NoError(t, err)

	_, err = CreateWebPFilter(Args{"path": "x.webp"}, core, &recordingEncoder{})
	assert.True(t, errors.Is(err, ErrMissingArgument), "got %v", err)

	_, err = CreateWebPFilter(Args{"clip": src}, core, &recordingEncoder{})
	assert.True(t, errors.Is(err, ErrMissingArgument), "got %v", err)

	_, err = CreateWebPFilter(Args{"clip": "not a node", "path": "x.webp"}, core, &recordingEncoder{})
	assert.Error(t, err)

	_, err = CreateWebPFilter(Args{"clip": src, "path": "x.webp", "parents": "yes"}, core, &recordingEncoder{})
	assert.Error(t, err)

	assert.Len(t, core.nodes, 1)
}

func TestWebPRegistersStrictSpatialDependency(t *testing.T) {
	core := NewCore()

	src, err := newStaticSource(core, newTestFrame(t), 3)
	require.NoError(t, err)

	node, err := CreateWebPFilter(Args{"clip": src, "path": "{n}.webp"}, core, &recordingEncoder{})
	require.NoError(t, err)

	assert.Equal(t, src.Info(), node.Info())
	assert.Equal(t, []FilterDependency{{Source: src, RequestPattern: RequestStrictSpatial}}, node.Dependencies())
}

func TestWebPParentsFlag(t *testing.T) {
	tests := []struct {
		name    string
		parents interface{}
		want    bool
	}{
		{"absent", nil, false},
		{"zero", 0, false},
		{"one", 1, true},
		{"other nonzero", 7, true},
		{"int64", int64(1), true},
		{"bool", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core := NewCore()
			src, err := newStaticSource(core, newTestFrame(t), 1)
			require.NoError(t, err)

			args := Args{"clip": src, "path": "x.webp"}
			if tt.parents != nil {
				args["parents"] = tt.parents
			}

			node, err := CreateWebPFilter(args, core, &recordingEncoder{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, node.filter.(*WebPFilter).parents)
		})
	}
}

func TestWebPMissingParentWithoutParentsFails(t *testing.T) {
	dir := t.TempDir()
	core := NewCore()
	enc := &recordingEncoder{}

	src, err := newStaticSource(core, newTestFrame(t), 1)
	require.NoError(t, err)

	node := newWebPNode(t, core, src, filepath.Join(dir, "missing", "{n}.webp"), 0, enc)

	got, err := core.GetFrame(context.Background(), 0, node)
	require.Error(t, err)
	assert.Nil(t, got)
	assert.Empty(t, enc.Calls())

	_, err = os.Stat(filepath.Join(dir, "missing"))
	assert.True(t, os.IsNotExist(err))
}

func TestWebPParentsIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	core := NewCore()
	enc := &recordingEncoder{}

	src, err := newStaticSource(core, newTestFrame(t), 1)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a", "b"), 0755))
	node := newWebPNode(t, core, src, filepath.Join(dir, "a", "b", "{n}.webp"), 1, enc)

	for i := 0; i < 3; i++ {
		_, err := core.GetFrame(context.Background(), 0, node)
		require.NoError(t, err)
	}
	assert.Len(t, enc.Calls(), 3)
}

func TestWebPDirectoryCreationFailure(t *testing.T) {
	dir := t.TempDir()
	core := NewCore()
	enc := &recordingEncoder{}

	// A regular file where a directory is needed.
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	src, err := newStaticSource(core, newTestFrame(t), 1)
	require.NoError(t, err)

	node := newWebPNode(t, core, src, filepath.Join(blocker, "sub", "{n}.webp"), 1, enc)

	_, err = core.GetFrame(context.Background(), 0, node)
	require.Error(t, err)
	assert.Empty(t, enc.Calls())
}

func TestWebPInvalidTemplateFailsFrame(t *testing.T) {
	dir := t.TempDir()
	core := NewCore()
	enc := &recordingEncoder{}

	src, err := newStaticSource(core, newTestFrame(t), 1)
	require.NoError(t, err)

	// Accepted at setup, rejected per frame.
	node := newWebPNode(t, core, src, filepath.Join(dir, "{frame}.webp"), 1, enc)

	got, err := core.GetFrame(context.Background(), 0, node)
	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, ErrInvalidTemplate), "got %v", err)
	assert.Empty(t, enc.Calls())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWebPEncodeFailureFailsFrame(t *testing.T) {
	dir := t.TempDir()
	core := NewCore()

	src, err := newStaticSource(core, newTestFrame(t), 1)
	require.NoError(t, err)

	node := newWebPNode(t, core, src, filepath.Join(dir, "{n}.webp"), 0, failingEncoder{})

	got, err := core.GetFrame(context.Background(), 0, node)
	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, errEncodeFailed), "got %v", err)

	// The partially written file is left behind.
	data, err := os.ReadFile(filepath.Join(dir, "0.webp"))
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFF"), data)
}

func TestWebPTruncatesExistingFile(t *testing.T) {
	dir := t.TempDir()
	core := NewCore()
	enc := &recordingEncoder{}

	target := filepath.Join(dir, "0.webp")
	require.NoError(t, os.WriteFile(target, make([]byte, 1024), 0644))

	src, err := newStaticSource(core, newTestFrame(t), 1)
	require.NoError(t, err)

	node := newWebPNode(t, core, src, filepath.Join(dir, "{n}.webp"), 0, enc)

	_, err = core.GetFrame(context.Background(), 0, node)
	require.NoError(t, err)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, []byte{10, 30, 50, 20, 40, 60}, data)
}

func TestWebPUpstreamErrorWritesNothing(t *testing.T) {
	dir := t.TempDir()
	core := NewCore()
	enc := &recordingEncoder{}

	src, err := core.CreateVideoFilter("Failing", VideoInfo{Format: FormatRGB24, Width: 2, Height: 1, NumFrames: 10}, failingSource{}, nil)
	require.NoError(t, err)

	node := newWebPNode(t, core, src, filepath.Join(dir, "{n}.webp"), 1, enc)

	got, err := core.GetFrame(context.Background(), 2, node)
	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, ErrUpstreamFailed), "got %v", err)
	assert.Empty(t, enc.Calls())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWebPFilterPhases(t *testing.T) {
	core := NewCore()
	enc := &recordingEncoder{}

	src, err := newStaticSource(core, newTestFrame(t), 10)
	require.NoError(t, err)

	filter := &WebPFilter{node: src, path: filepath.Join(t.TempDir(), "{n}.webp"), encoder: enc}

	fctx := newFrameContext()
	frame, err := filter.GetFrame(7, ActivationInitial, fctx)
	require.NoError(t, err)
	assert.Nil(t, frame)
	assert.Equal(t, []FrameRequest{{Node: src, N: 7}}, fctx.Requests())

	frame, err = filter.GetFrame(7, ActivationError, fctx)
	require.NoError(t, err)
	assert.Nil(t, frame)
	assert.Empty(t, enc.Calls())

	// Resident frame missing.
	_, err = filter.GetFrame(7, ActivationAllFramesReady, fctx)
	assert.Error(t, err)
}

func TestWebPConcurrentFramesOutOfOrder(t *testing.T) {
	dir := t.TempDir()
	core := NewCore()
	enc := &recordingEncoder{}

	src, err := NewPatternSource(core, VideoInfo{Format: FormatRGB24, Width: 8, Height: 4, NumFrames: 32})
	require.NoError(t, err)

	node := newWebPNode(t, core, src, filepath.Join(dir, "f_{n:02}.webp"), 0, enc)

	var wg sync.WaitGroup
	errs := make([]error, 32)
	for n := 31; n >= 0; n-- {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = core.GetFrame(context.Background(), n, node)
		}(n)
	}
	wg.Wait()

	for n, err := range errs {
		require.NoError(t, err, "frame %d", n)

		path, err := ResolvePath(filepath.Join(dir, "f_{n:02}.webp"), n)
		require.NoError(t, err)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Len(t, data, 8*4*3)
		assert.Equal(t, PatternSample(0, n, 0), data[0])
		assert.Equal(t, PatternSample(0, n, 1), data[1])
		assert.Equal(t, PatternSample(0, n, 2), data[2])
	}
	assert.Len(t, enc.Calls(), 32)
}
