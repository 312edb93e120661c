package session

import "context"

type FutureStatus uint8

const (
	FuturePending FutureStatus = iota
	FutureReady
	FutureFailed
)

// Future is the result of an operation running in the background. The game
// loop polls it once per frame.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func goFuture[T any](fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.value, f.err = fn()
	}()
	return f
}

// Poll never blocks.
func (f *Future[T]) Poll() (FutureStatus, T, error) {
	select {
	case <-f.done:
		if f.err != nil {
			var zero T
			return FutureFailed, zero, f.err
		}
		return FutureReady, f.value, nil
	default:
		var zero T
		return FuturePending, zero, nil
	}
}

func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the operation completes or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
