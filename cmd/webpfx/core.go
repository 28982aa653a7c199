package main

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrUpstreamFailed  = errors.New("upstream frame request failed")
	ErrNoFrame         = errors.New("filter returned no frame")
	ErrFrameOutOfRange = errors.New("frame index out of range")
)

// ActivationReason tells a filter which phase of a frame request it is in.
type ActivationReason int

const (
	// ActivationInitial asks the filter to declare the upstream frames it needs.
	ActivationInitial ActivationReason = iota
	// ActivationAllFramesReady means every declared upstream frame is available.
	ActivationAllFramesReady
	// ActivationError means a declared upstream frame could not be produced.
	ActivationError
)

func (r ActivationReason) String() string {
	switch r {
	case ActivationInitial:
		return "Initial"
	case ActivationAllFramesReady:
		return "AllFramesReady"
	case ActivationError:
		return "Error"
	default:
		return "Unknown"
	}
}

type RequestPattern int

const (
	// RequestGeneral places no constraints on which upstream frames are requested.
	RequestGeneral RequestPattern = iota
	// RequestStrictSpatial means output frame n needs exactly upstream frame n.
	RequestStrictSpatial
)

func (p RequestPattern) String() string {
	if p == RequestStrictSpatial {
		return "StrictSpatial"
	}
	return "General"
}

type FilterDependency struct {
	Source         *VideoNode
	RequestPattern RequestPattern
}

// Filter is the per-frame logic behind a VideoNode.
//
// GetFrame is called at least twice per frame index: once with
// ActivationInitial and then either with ActivationAllFramesReady or
// ActivationError. Calls for different indices may run concurrently, and the
// two phases of one index may run on different goroutines, so a filter must
// not carry state between them. A filter that needs no upstream frames may
// return its frame directly from ActivationInitial.
type Filter interface {
	GetFrame(n int, reason ActivationReason, fctx FrameContext) (Frame, error)
}

// FilterFunc adapts a plain function to the Filter interface.
type FilterFunc func(n int, reason ActivationReason, fctx FrameContext) (Frame, error)

func (f FilterFunc) GetFrame(n int, reason ActivationReason, fctx FrameContext) (Frame, error) {
	return f(n, reason, fctx)
}

// FrameContext is the filter's handle on the host for one frame request.
type FrameContext interface {
	// RequestFrame declares that upstream frame n of node is needed.
	RequestFrame(n int, node *VideoNode)
	// GetFrame returns a previously requested upstream frame, or nil if it was
	// never requested.
	GetFrame(n int, node *VideoNode) Frame
	// Requests lists the upstream frames requested so far, in request order.
	Requests() []FrameRequest
}

// FrameRequest names one upstream frame.
type FrameRequest struct {
	Node *VideoNode
	N    int
}

type frameContext struct {
	requests []FrameRequest
	frames   map[FrameRequest]Frame
}

var _ FrameContext = &frameContext{}

func newFrameContext() *frameContext {
	return &frameContext{
		requests: make([]FrameRequest, 0, 1),
		frames:   make(map[FrameRequest]Frame, 1),
	}
}

func (fctx *frameContext) RequestFrame(n int, node *VideoNode) {
	fctx.requests = append(fctx.requests, FrameRequest{Node: node, N: n})
}

func (fctx *frameContext) GetFrame(n int, node *VideoNode) Frame {
	return fctx.frames[FrameRequest{Node: node, N: n}]
}

func (fctx *frameContext) Requests() []FrameRequest {
	return append([]FrameRequest(nil), fctx.requests...)
}

// VideoNode is a filter registered with a Core.
type VideoNode struct {
	name   string
	info   VideoInfo
	filter Filter
	deps   []FilterDependency
	core   *Core
}

func (vn *VideoNode) Name() string {
	return vn.name
}

func (vn *VideoNode) Info() VideoInfo {
	return vn.info
}

func (vn *VideoNode) Dependencies() []FilterDependency {
	return vn.deps
}

// Core is the host: it owns the node graph and drives frame requests through
// the filters' activation phases.
type Core struct {
	mu      sync.RWMutex
	nodes   []*VideoNode
	plugins map[string]*Plugin
}

func NewCore() *Core {
	return &Core{
		nodes:   make([]*VideoNode, 0),
		plugins: make(map[string]*Plugin),
	}
}

// CreateVideoFilter registers filter as a new node producing a stream
// described by info.
func (c *Core) CreateVideoFilter(name string, info VideoInfo, filter Filter, deps []FilterDependency) (*VideoNode, error) {
	if filter == nil {
		return nil, errors.Errorf("filter '%s' is nil", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i, dep := range deps {
		if dep.Source == nil {
			return nil, errors.Errorf("filter '%s': dependency %d has no source node", name, i)
		}
		if dep.Source.core != c {
			return nil, errors.Errorf("filter '%s': dependency %d ('%s') belongs to another core", name, i, dep.Source.name)
		}
	}

	node := &VideoNode{
		name:   name,
		info:   info,
		filter: filter,
		deps:   append([]FilterDependency(nil), deps...),
		core:   c,
	}
	c.nodes = append(c.nodes, node)

	logger.
		WithField("node", name).
		WithField("deps", len(deps)).
		Debugf("Registered video filter: %s", info)

	return node, nil
}

// GetFrame produces frame n of node, resolving its upstream requests first.
//
// It is safe to call concurrently; the context is only checked between
// activation phases.
func (c *Core) GetFrame(ctx context.Context, n int, node *VideoNode) (Frame, error) {
	if node == nil || node.core != c {
		return nil, errors.New("node is not registered with this core")
	}

	if n < 0 || (node.info.NumFrames > 0 && n >= node.info.NumFrames) {
		return nil, errors.Wrapf(ErrFrameOutOfRange, "node '%s' frame %d (length %d)", node.name, n, node.info.NumFrames)
	}

	log := logger.WithField("node", node.name).WithField("frame", n)

	fctx := newFrameContext()

	log.Tracef("Activation: %s", ActivationInitial)
	frame, err := node.filter.GetFrame(n, ActivationInitial, fctx)
	if err != nil {
		return nil, errors.Wrapf(err, "node '%s' frame %d", node.name, n)
	}
	if frame != nil {
		return frame, nil
	}

	var upstreamErr error
	for _, req := range fctx.requests {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		f, err := c.GetFrame(ctx, req.N, req.Node)
		if err != nil {
			upstreamErr = err
			break
		}
		fctx.frames[req] = f
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if upstreamErr != nil {
		log.WithError(upstreamErr).Tracef("Activation: %s", ActivationError)
		if _, err := node.filter.GetFrame(n, ActivationError, fctx); err != nil {
			log.WithError(err).Debugf("Filter failed during %s", ActivationError)
		}
		return nil, errors.Wrapf(ErrUpstreamFailed, "node '%s' frame %d: %v", node.name, n, upstreamErr)
	}

	log.Tracef("Activation: %s", ActivationAllFramesReady)
	frame, err = node.filter.GetFrame(n, ActivationAllFramesReady, fctx)
	if err != nil {
		return nil, errors.Wrapf(err, "node '%s' frame %d", node.name, n)
	}
	if frame == nil {
		return nil, errors.Wrapf(ErrNoFrame, "node '%s' frame %d", node.name, n)
	}

	return frame, nil
}

// Close releases every registered filter that holds resources.
func (c *Core) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for i := len(c.nodes) - 1; i >= 0; i-- {
		node := c.nodes[i]
		if closer, ok := node.filter.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, errors.Wrapf(err, "node '%s' close error", node.name))
			}
		}
	}
	c.nodes = c.nodes[:0]

	return flattenErrors(errs...)
}
