package main

import (
	"context"

	"github.com/pkg/errors"
)

// Node is a unit of work supervised by a Graph.
//
// After Run, a node reports exactly one value on Err() when it stops: the
// error that stopped it, merged with its teardown error.
type Node interface {
	Name() string
	Run(context.Context)
	Err() <-chan error
}

// nodeFuncs holds the setup/teardown hooks shared by all node kinds.
type nodeFuncs struct {
	setup    func() error
	teardown func() error
}

func (f *nodeFuncs) SetupFunc(setup func() error) {
	f.setup = setup
}

func (f *nodeFuncs) TeardownFunc(teardown func() error) {
	f.teardown = teardown
}

// run executes body between setup and teardown and returns the combined error.
func (f *nodeFuncs) run(body func() error) error {
	if f.setup != nil {
		if err := f.setup(); err != nil {
			return errors.Wrap(err, "setup error")
		}
	}

	err := body()

	if f.teardown != nil {
		if tdErr := f.teardown(); tdErr != nil {
			err = flattenErrors(err, errors.Wrap(tdErr, "teardown error"))
		}
	}

	return err
}

type SourceNode[T any] struct {
	nodeFuncs
	name    string
	outChan chan T
	errChan chan error
	step    func() (T, error)
}

var _ Node = &SourceNode[int]{}

func NewSourceNode[T any](name string) *SourceNode[T] {
	return &SourceNode[T]{
		name:    name,
		outChan: make(chan T),
		errChan: make(chan error, 1),
		step:    nil, // set by StepFunc()
	}
}

func (n *SourceNode[T]) Name() string {
	return n.name
}

func (n *SourceNode[T]) StepFunc(step func() (T, error)) {
	n.step = step
}

func (n *SourceNode[T]) Run(ctx context.Context) {
	if n.step == nil {
		n.errChan <- errors.Errorf("source node '%s' has no step function", n.name)
		return
	}

	go func() {
		n.errChan <- n.run(func() error { return n.loop(ctx) })
	}()
}

func (n *SourceNode[T]) Err() <-chan error {
	return n.errChan
}

func (n *SourceNode[T]) Stream() <-chan T {
	return n.outChan
}

func (n *SourceNode[T]) loop(ctx context.Context) error {
	for {
		v, err := n.step()
		if err != nil {
			return err
		}

		if err := BlockingSend(ctx, n.outChan, v); err != nil {
			return err
		}
	}
}

type SinkNode[T any] struct {
	nodeFuncs
	name    string
	inChan  <-chan T
	errChan chan error
	step    func(T) error
}

var _ Node = &SinkNode[int]{}

func NewSinkNode[T any](name string, inChan <-chan T) *SinkNode[T] {
	return &SinkNode[T]{
		name:    name,
		inChan:  inChan,
		errChan: make(chan error, 1),
		step:    nil, // set by StepFunc()
	}
}

func (n *SinkNode[T]) Name() string {
	return n.name
}

func (n *SinkNode[T]) StepFunc(step func(T) error) {
	n.step = step
}

func (n *SinkNode[T]) Run(ctx context.Context) {
	if n.step == nil {
		n.errChan <- errors.Errorf("sink node '%s' has no step function", n.name)
		return
	}

	go func() {
		n.errChan <- n.run(func() error { return n.loop(ctx) })
	}()
}

func (n *SinkNode[T]) Err() <-chan error {
	return n.errChan
}

func (n *SinkNode[T]) loop(ctx context.Context) error {
	for {
		v, err := BlockingRecv(ctx, n.inChan)
		if err != nil {
			return err
		}

		// The step runs to completion even if ctx is cancelled meanwhile.
		if err := n.step(v); err != nil {
			return err
		}
	}
}
