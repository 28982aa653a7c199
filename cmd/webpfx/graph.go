package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
)

var TeardownTimedOut = errors.New("teardown timed out")

type namedNodes map[string]Node

// Graph runs a set of nodes until one of them stops, then tears the rest down.
//
// A node stopping with io.EOF ends the run cleanly; any other error fails it.
// After io.EOF the remaining nodes are given as long as they need to finish,
// and the teardown timeout only starts once the parent context is done.
type Graph struct {
	name               string
	isRunningMu        sync.Mutex
	nodes              namedNodes
	errChan            chan error
	minTeardownTimeout time.Duration
}

// The Graph is a Node.
//
// This allows for nesting Graphs inside Graphs.
var _ Node = &Graph{}

func NewGraph(name string) *Graph {
	return &Graph{
		name:               name,
		isRunningMu:        sync.Mutex{},
		nodes:              make(namedNodes, 0),
		errChan:            make(chan error, 1),
		minTeardownTimeout: 1 * time.Second,
	}
}

func (g *Graph) Name() string {
	return g.name
}

func (g *Graph) SetNodes(nodes ...Node) {
	g.isRunningMu.Lock()
	defer g.isRunningMu.Unlock()

	for _, node := range nodes {
		g.nodes[node.Name()] = node
	}
}

func (g *Graph) SetMinTeardownTimeout(d time.Duration) {
	g.isRunningMu.Lock()
	defer g.isRunningMu.Unlock()

	g.minTeardownTimeout = d
}

func (g *Graph) Run(ctx context.Context) {
	go g.loop(ctx)
}

func (g *Graph) Err() <-chan error {
	return g.errChan
}

func (g *Graph) teardownTimeoutForNNodes(n int) time.Duration {
	if n <= 1 {
		return g.minTeardownTimeout
	}

	return g.minTeardownTimeout + time.Duration(math.Log10(float64(n))*float64(time.Second))
}

type nodeResult struct {
	name string
	err  error
}

// isNodeStop tells whether err is an orderly way for a node to stop.
func isNodeStop(err error) bool {
	return err == nil || errors.Is(err, io.EOF) || errors.Is(err, context.Canceled)
}

func (g *Graph) loop(parentCtx context.Context) {
	g.isRunningMu.Lock()
	defer g.isRunningMu.Unlock()

	var nodeErrs = make(map[string]error, 0)
	var running = len(g.nodes)
	var results = make(chan nodeResult, len(g.nodes))

	nodeCtx, cancelNodeCtx := context.WithCancel(parentCtx)
	defer cancelNodeCtx()

	for nodeName, node := range g.nodes {
		node.Run(nodeCtx)
		go func(name string, n Node) {
			results <- nodeResult{name: name, err: <-n.Err()}
		}(nodeName, node)
	}

	endOfStream := false
	mainLoopErr := func() error {
		for running > 0 {
			select {
			case <-parentCtx.Done():
				return nil

			case r := <-results:
				running--

				if errors.Is(r.err, io.EOF) {
					logger.WithField("node", r.name).Debugf("End of stream")
					endOfStream = true
					return nil
				}

				if r.err == nil {
					continue
				}

				// Nodes may notice a parent cancel before the loop does.
				if errors.Is(r.err, context.Canceled) && parentCtx.Err() != nil {
					return nil
				}

				logger.
					WithField("node", r.name).
					WithError(r.err).
					Errorf("Node error")

				nodeErrs[r.name] = r.err
				return errors.New("node error")
			}
		}
		return nil
	}()

	teardownErr := func() error {
		if running == 0 {
			return nil
		}

		var timer *time.Timer
		var timeoutC <-chan time.Time
		startTimer := func() {
			timer = time.NewTimer(g.teardownTimeoutForNNodes(running))
			timeoutC = timer.C
		}
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		// Nil channels block, so the parent case fires only while draining.
		var parentDone <-chan struct{}
		if endOfStream && parentCtx.Err() == nil {
			parentDone = parentCtx.Done()
		} else {
			startTimer()
		}
		cancelNodeCtx()

		for running > 0 {
			select {
			case <-parentDone:
				parentDone = nil
				startTimer()

			case <-timeoutC:
				logger.Warn("Teardown timeout.")
				return TeardownTimedOut

			case r := <-results:
				running--
				if !isNodeStop(r.err) {
					logger.Tracef("Node '%s' error: %v", r.name, r.err)
					nodeErrs[r.name] = r.err
				}
			}
		}
		return nil
	}()

	var errMsg string
	if mainLoopErr != nil {
		errMsg += fmt.Sprintf("[MainLoop: %s]", mainLoopErr.Error())
	}
	if teardownErr != nil {
		errMsg += fmt.Sprintf("[TearDown: %s]", teardownErr.Error())
	}

	names := make([]string, 0, len(nodeErrs))
	for nodeName := range nodeErrs {
		names = append(names, nodeName)
	}
	sort.Strings(names)
	for _, nodeName := range names {
		errMsg += fmt.Sprintf("[Node %s: %v]", nodeName, nodeErrs[nodeName])
	}

	var err error = nil
	if errMsg != "" {
		err = errors.Errorf("Graph %s failed: %s", g.name, errMsg)
	}
	g.errChan <- err
}
