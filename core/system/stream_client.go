package system

import (
	"context"

	"github.com/torqlang/torqlang/core/actor"
	"github.com/torqlang/torqlang/core/klvm"
)

// StreamClient drains an actor.StreamObj from Go code, blocking for
// each element the way the original's StreamClient blocks on a queue
// populated by a captured ActorRef. Next calls the stream's iterator
// proc directly and, if it raises *WaitError, waits on that exact
// barrier Var before retrying — the same re-execution idempotence
// every suspending kernel instruction relies on, just driven from
// outside any Machine.
type StreamClient struct {
	iter klvm.NativeProc
}

func NewStreamClient(stream *actor.StreamObj) *StreamClient {
	return &StreamClient{iter: stream.Iter().(klvm.NativeProc)}
}

// Next blocks until the stream yields its next element or reaches
// Eof, returning (value, false, nil) for an ordinary element and
// (nil, true, nil) once the stream is exhausted.
func (c *StreamClient) Next(ctx context.Context) (klvm.Value, bool, error) {
	for {
		target := klvm.NewVar()
		_, err := c.iter([]klvm.ValueOrVar{target}, nil, nil)
		if err == nil {
			val, verr := klvm.ResolveValue(target)
			if verr != nil {
				return nil, false, verr
			}
			if val == klvm.Eof {
				return nil, true, nil
			}
			return val, false, nil
		}
		waitErr, ok := err.(*klvm.WaitError)
		if !ok {
			return nil, false, err
		}
		barrierDone := make(chan struct{})
		waitErr.Barrier.SetBindCallback(func(*klvm.Var, klvm.Value) { close(barrierDone) })
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-barrierDone:
		}
	}
}
