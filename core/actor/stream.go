package actor

import "github.com/torqlang/torqlang/core/klvm"

// StreamObj is the kernel-visible handle to a stream: an Obj whose
// only feature, "iter", produces an Iter positioned at the stream's
// current tail. Selecting "iter" more than once yields independent
// iterators sharing the same underlying tail Var, so two readers
// started at different times see the same remaining elements from
// wherever they first asked.
//
// publisher/request/owner are set only for a stream created through
// Stream.new's actor-to-actor form (see NewPublisherStream): they let
// the stream re-issue its own request to the publisher when a batch's
// trailing eof advertises more is still to come.
type StreamObj struct {
	klvm.OpaqueValue
	tail *klvm.Var

	owner     *Actor
	publisher Address
	request   klvm.Complete
}

func NewStreamObj(tail *klvm.Var) *StreamObj {
	return &StreamObj{OpaqueValue: klvm.OpaqueValue{TypeName: "Stream"}, tail: tail}
}

// NewPublisherStream creates a stream backed by an actor-to-actor
// publish/request protocol: owner issues request to publisher,
// correlated by a StreamRequestID naming this stream, and every
// subsequent response is routed through bindResponse as it arrives on
// owner's mailbox.
func NewPublisherStream(owner *Actor, publisher Address, request klvm.Complete) *StreamObj {
	s := &StreamObj{
		OpaqueValue: klvm.OpaqueValue{TypeName: "Stream"},
		tail:        klvm.NewVar(),
		owner:       owner,
		publisher:   publisher,
		request:     request,
	}
	s.fetchNext()
	return s
}

// fetchNext issues (or re-issues) request to publisher, correlated
// back to this exact StreamObj so a later response lands in
// bindResponse regardless of how many requests this stream has
// already made.
func (s *StreamObj) fetchNext() {
	s.owner.system.Deliver(s.publisher, Envelope{
		Priority:  PriorityMessage,
		Kind:      KindRequest,
		From:      s.owner.address,
		Message:   s.request,
		RequestID: StreamRequestID{Stream: s},
	})
}

// bindResponse advances the stream with one publisher response. The
// response must be either a record labeled Eof carrying a "more"
// field (re-fetch if true, terminate the stream if false), an empty
// record (a legal no-op batch), or a tuple of values appended to the
// stream's tail. klvm.ResolveValue can itself raise *WaitError here —
// a publisher's handler may call respond with a Var it has not bound
// yet — which is exactly the case onResponseBatch's suspended list
// exists to park until a later response unblocks it.
func (s *StreamObj) bindResponse(value klvm.ValueOrVar) error {
	val, err := klvm.ResolveValue(value)
	if err != nil {
		return err
	}
	if fv, ok := val.(*klvm.FailedValue); ok {
		if err := s.tail.BindToValue(fv, nil); err != nil {
			return err
		}
		s.tail = klvm.NewVar()
		return nil
	}
	switch msg := val.(type) {
	case *klvm.CompleteRec:
		if msg.FieldCount() == 0 {
			return nil
		}
		if msg.Label() == klvm.Eof {
			if more, ok := msg.FindValue(klvm.Str("more")); ok {
				if b, ok := more.(klvm.Bool); ok && bool(b) {
					s.fetchNext()
					return nil
				}
			}
			return s.tail.BindToValue(klvm.Eof, nil)
		}
		return klvm.NewThrow("StreamError", "publisher response must be eof or a tuple of values")
	case *klvm.CompleteTuple:
		return s.appendBatch(msg)
	default:
		return klvm.NewThrow("StreamError", "publisher response must be a record")
	}
}

// appendBatch extends the stream with every value in batch, ending in
// a fresh unbound tail Var ready for the next response.
func (s *StreamObj) appendBatch(batch *klvm.CompleteTuple) error {
	vals := make([]klvm.Complete, batch.FieldCount())
	for i := range vals {
		vals[i] = batch.ValueAt(i)
	}
	newTail := klvm.NewVar()
	chain := klvm.BuildStreamChain(vals, klvm.ValueOrVar(newTail))
	if err := s.tail.BindToValueOrVar(chain, nil); err != nil {
		return err
	}
	s.tail = newTail
	return nil
}

func (s *StreamObj) Select(feature klvm.Feature) (klvm.ValueOrVar, error) {
	if str, ok := feature.(klvm.Str); ok && string(str) == "iter" {
		return newStreamIter(s.tail), nil
	}
	return nil, &klvm.FeatureNotFoundError{On: s, Feature: feature}
}

func (s *StreamObj) Iter() klvm.ValueOrVar { return newStreamIter(s.tail) }

// newStreamIter returns the Iter procedure as a NativeProc closing
// over its own, independent current position. Applying it with a
// single target Var advances one step: if the current position is
// still unbound, apply raises *WaitError on that exact Var, so the
// instruction re-executes (re-reading pos, which apply has not yet
// advanced) once the producer extends the stream — satisfying the
// re-execution idempotence every suspending instruction needs, with
// no separate advertise-a-hole handshake required because the tail
// Var itself is the shared dataflow cell both sides already see.
func newStreamIter(start *klvm.Var) klvm.NativeProc {
	pos := klvm.ValueOrVar(start)
	return func(args []klvm.ValueOrVar, _ *klvm.Env, _ *klvm.Machine) ([]*klvm.StackFrame, error) {
		if len(args) != klvm.IterArgCount {
			return nil, &klvm.InvalidArgCountError{Expected: klvm.IterArgCount, Actual: len(args), Context: "stream iterator"}
		}
		val, err := klvm.ResolveValue(pos)
		if err != nil {
			return nil, err
		}
		target, ok := args[0].(*klvm.Var)
		if !ok {
			return nil, &klvm.InvalidArgCountError{Context: "stream iterator: target must be an unbound var"}
		}
		if entry, ok := val.(*klvm.StreamEntry); ok {
			pos = entry.Next
			return nil, target.BindToValue(entry.Val, nil)
		}
		return nil, target.BindToValue(val, nil)
	}
}

// Produce extends the stream with vals from outside the kernel
// entirely — a Go-hosted producer goroutine driving a StreamObj it
// created via NewStreamObj, the counterpart to StreamClient draining
// one from Go. Passing eof true terminates the stream after vals;
// otherwise s's tail advances to a fresh Var ready for the next call.
// Produce is not safe to call concurrently with itself on the same
// StreamObj: like the kernel's own stream chain, each call must see
// the tail the previous call left behind.
func (s *StreamObj) Produce(vals []klvm.Complete, eof bool) error {
	var terminal klvm.ValueOrVar
	var newTail *klvm.Var
	if eof {
		terminal = klvm.Eof
	} else {
		newTail = klvm.NewVar()
		terminal = newTail
	}
	chain := klvm.BuildStreamChain(vals, terminal)
	if err := s.tail.BindToValueOrVar(chain, nil); err != nil {
		return err
	}
	s.tail = newTail
	return nil
}

