package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
)

type sourceMakerFunc func(core *Core) (*VideoNode, error)

func videoFileSourceMaker(sourceId string) sourceMakerFunc {
	return func(core *Core) (*VideoNode, error) {
		return NewVideoFileSource(core, sourceId)
	}
}

func patternSourceMaker(width, height, length int) sourceMakerFunc {
	return func(core *Core) (*VideoNode, error) {
		return NewPatternSource(core, VideoInfo{
			Format:    FormatRGB24,
			Width:     width,
			Height:    height,
			NumFrames: length,
		})
	}
}

// encodeMain builds source -> WebP on a fresh core and requests the selected
// frame range from the WebP node with args.Workers concurrent requesters.
func encodeMain(parentCtx context.Context, args *CliArgs, sourceMaker sourceMakerFunc) error {
	ctx, cancelCtx := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer cancelCtx()

	stats, err := runEncode(ctx, args, sourceMaker, NewWebPEncoder())
	if stats != nil {
		logger.Infof("Encoded %s", stats)
	}
	if err != nil {
		logger.WithError(err).Error("Encode run failed.")
		return err
	}

	logger.Infof("Shutdown complete.")
	return nil
}

func runEncode(ctx context.Context, args *CliArgs, sourceMaker sourceMakerFunc, enc ImageEncoder) (*RunStats, error) {
	core := NewCore()
	defer func() {
		if err := core.Close(); err != nil {
			logger.WithError(err).Error("Core teardown failed.")
		}
	}()

	if err := core.RegisterPlugin(NewWebPPlugin(enc)); err != nil {
		return nil, err
	}

	src, err := sourceMaker(core)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create source")
	}

	out, err := core.Invoke(webpPluginNamespace, webpFunctionName, Args{
		"clip":    src,
		"path":    args.Path,
		"parents": args.Parents,
	})
	if err != nil {
		return nil, err
	}

	clip, err := out.VideoNode("clip")
	if err != nil {
		return nil, err
	}

	start, end, err := args.FrameRange(clip.Info().NumFrames)
	if err != nil {
		return nil, err
	}

	logger.Infof("Encoding frames [%d, %d) with %d workers to '%s'", start, end, args.Workers, args.Path)

	stats := NewRunStats()

	graph := NewGraph("ENCODE")
	graph.SetMinTeardownTimeout(args.TeardownTimeout)

	idx := NewFrameIndexSource("IDX", start, end)
	graph.SetNodes(idx)
	for i := 1; i <= args.Workers; i++ {
		graph.SetNodes(NewFrameRequester(ctx, fmt.Sprintf("REQ-%d", i), idx.Stream(), core, clip, stats))
	}

	logger.Tracef("Starting graph.")
	graph.Run(ctx)
	err = <-graph.Err()
	logger.Tracef("Graph stopped.")

	if err == nil && ctx.Err() != nil {
		err = errors.Wrap(ctx.Err(), "encode interrupted")
	}

	return stats, err
}

const defaultTeardownTimeout = 1 * time.Minute
