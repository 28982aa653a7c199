package main

import (
	"context"
)

func BlockingSend[T any](ctx context.Context, sendChan chan<- T, sendValue T) error {
	select {
	case <-ctx.Done():
		return context.Canceled

	case sendChan <- sendValue:
		return nil
	}
}

func BlockingRecv[T any](ctx context.Context, recvChan <-chan T) (T, error) {
	var recvValue T

	select {
	case <-ctx.Done():
		return recvValue, context.Canceled

	case recvValue = <-recvChan:
		return recvValue, nil
	}
}
