package main

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

var ErrUnsupportedFormat = errors.New("only RGB24 input is supported")

const (
	webpPluginIdentifier = "sgt.webp"
	webpPluginNamespace  = "webp"
	webpFunctionName     = "WebP"
)

// WebPFilter writes every requested frame of its input to a lossless WebP
// file and passes the frame through unchanged.
type WebPFilter struct {
	node    *VideoNode
	path    string
	parents bool
	encoder ImageEncoder
}

var _ Filter = &WebPFilter{}

// NewWebPPlugin returns the "webp" plugin using enc for every WebP node it
// creates.
func NewWebPPlugin(enc ImageEncoder) *Plugin {
	return &Plugin{
		Identifier:  webpPluginIdentifier,
		Namespace:   webpPluginNamespace,
		Description: "WebP encoder.",
		Functions: map[string]*PluginFunction{
			webpFunctionName: {
				Name:       webpFunctionName,
				ArgsSpec:   "clip:vnode;path:data;parents:int:opt;",
				ReturnSpec: "clip:vnode;",
				Create: func(in Args, core *Core) (Args, error) {
					node, err := CreateWebPFilter(in, core, enc)
					if err != nil {
						return nil, err
					}
					return Args{"clip": node}, nil
				},
			},
		},
	}
}

// CreateWebPFilter validates the arguments and registers a WebP node that
// depends strictly on "clip".
func CreateWebPFilter(in Args, core *Core, enc ImageEncoder) (*VideoNode, error) {
	clip, err := in.VideoNode("clip")
	if err != nil {
		return nil, errors.Wrap(err, "failed to get clip")
	}

	vi := clip.Info()
	if !vi.Format.IsRGB24() {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "got %s", vi.Format)
	}

	path, err := in.UTF8("path")
	if err != nil {
		return nil, errors.Wrap(err, "missing required path parameter")
	}

	parents := false
	if v, err := in.Int("parents"); err == nil {
		parents = v != 0
	} else if !errors.Is(err, ErrMissingArgument) {
		return nil, err
	}

	if enc == nil {
		enc = NewWebPEncoder()
	}

	filter := &WebPFilter{
		node:    clip,
		path:    path,
		parents: parents,
		encoder: enc,
	}

	deps := []FilterDependency{{
		Source:         clip,
		RequestPattern: RequestStrictSpatial,
	}}

	node, err := core.CreateVideoFilter(webpFunctionName, vi, filter, deps)
	if err != nil {
		return nil, err
	}

	logger.
		WithField("path", path).
		WithField("parents", parents).
		Infof("WebP filter created for %s", vi)

	return node, nil
}

func (wf *WebPFilter) GetFrame(n int, reason ActivationReason, fctx FrameContext) (Frame, error) {
	switch reason {
	case ActivationInitial:
		fctx.RequestFrame(n, wf.node)

	case ActivationAllFramesReady:
		src := fctx.GetFrame(n, wf.node)
		if src == nil {
			return nil, errors.Errorf("upstream frame %d is not available", n)
		}

		if err := wf.writeFrame(n, src); err != nil {
			return nil, err
		}
		return src, nil

	case ActivationError:
	}

	return nil, nil
}

func (wf *WebPFilter) writeFrame(n int, src Frame) error {
	packed, width, height := PackFrame(src)

	outputPath, err := ResolvePath(wf.path, n)
	if err != nil {
		return errors.Wrap(err, "path format string was invalid")
	}

	if wf.parents {
		if dir := filepath.Dir(outputPath); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return errors.Wrapf(err, "failed to create output directory '%s'", dir)
			}
		}
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return errors.Wrapf(err, "failed to create output file '%s'", outputPath)
	}

	encErr := wf.encoder.Encode(file, packed, width, height)
	closeErr := file.Close()
	if encErr != nil {
		return errors.Wrapf(encErr, "failed to encode frame %d to '%s'", n, outputPath)
	}
	if closeErr != nil {
		return errors.Wrapf(closeErr, "failed to close output file '%s'", outputPath)
	}

	logger.
		WithField("frame", n).
		WithField("path", outputPath).
		Debugf("Wrote %dx%d WebP", width, height)

	return nil
}
