package main

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// NewFrameIndexSource emits the frame indices [start, end) and then stops
// with io.EOF.
func NewFrameIndexSource(name string, start, end int) *SourceNode[int] {
	src := NewSourceNode[int](name)

	next := start
	src.StepFunc(func() (int, error) {
		if next >= end {
			return 0, io.EOF
		}
		n := next
		next++
		return n, nil
	})

	return src
}

// RunStats counts the frames that made it through the output node.
type RunStats struct {
	framesDone int64
	started    time.Time
}

func NewRunStats() *RunStats {
	return &RunStats{started: time.Now()}
}

func (s *RunStats) FramesDone() int64 {
	return atomic.LoadInt64(&s.framesDone)
}

func (s *RunStats) String() string {
	elapsed := time.Since(s.started)
	done := atomic.LoadInt64(&s.framesDone)

	fps := 0.0
	if elapsed > 0 {
		fps = float64(done) / elapsed.Seconds()
	}
	return fmt.Sprintf("%d frames in %s (%.2f fps)", done, elapsed.Round(time.Millisecond), fps)
}

// NewFrameRequester pulls frame indices from inChan and requests each one
// from node. ctx bounds the frame requests themselves, independently of the
// context the node is run with, so a frame already being processed completes
// when the graph is stopping.
func NewFrameRequester(
	ctx context.Context,
	name string,
	inChan <-chan int,
	core *Core,
	node *VideoNode,
	stats *RunStats,
) *SinkNode[int] {
	req := NewSinkNode[int](name, inChan)

	req.StepFunc(func(n int) error {
		start := time.Now()

		if _, err := core.GetFrame(ctx, n, node); err != nil {
			return errors.Wrapf(err, "frame %d", n)
		}

		atomic.AddInt64(&stats.framesDone, 1)
		logger.
			WithField("node", name).
			WithField("frame", n).
			Tracef("Frame done in %s", time.Since(start))
		return nil
	})

	return req
}
