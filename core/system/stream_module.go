package system

import (
	"github.com/torqlang/torqlang/core/actor"
	"github.com/torqlang/torqlang/core/klvm"
)

// NewStreamModule builds the Stream module record exposed through
// import("system", #(Stream)): a single field, new, constructing a
// fresh actor-to-actor stream. Stream.new(publisher, request, target)
// issues request to publisher (an actor address) and binds target to
// a StreamObj that re-issues request, correlated by a stable
// StreamRequestID, every time the publisher's response advertises
// more is still to come (see actor.StreamObj.bindResponse).
func NewStreamModule() *klvm.CompleteRec {
	newProc := klvm.NativeProc(func(args []klvm.ValueOrVar, _ *klvm.Env, m *klvm.Machine) ([]*klvm.StackFrame, error) {
		if len(args) != 3 {
			return nil, &klvm.InvalidArgCountError{Expected: 3, Actual: len(args), Context: "Stream.new"}
		}
		owner, ok := m.Owner.(*actor.Actor)
		if !ok {
			return nil, klvm.NewThrow("StreamError", "Stream.new must be called from inside an actor")
		}
		publisherVal, err := klvm.ResolveValue(args[0])
		if err != nil {
			return nil, err
		}
		publisherStr, ok := publisherVal.(klvm.Str)
		if !ok {
			return nil, klvm.NewThrow("StreamError", "Stream.new: publisher must be an actor address")
		}
		request, err := klvm.CheckComplete(args[1])
		if err != nil {
			return nil, err
		}
		target, ok := args[2].(*klvm.Var)
		if !ok {
			return nil, &klvm.InvalidArgCountError{Context: "Stream.new: target must be an unbound var"}
		}
		stream := actor.NewPublisherStream(owner, actor.Address(publisherStr), request)
		return nil, target.BindToValue(stream, nil)
	})
	b := klvm.NewCompleteRecBuilder(klvm.Str("Stream"))
	b.AddField(klvm.Str("new"), newProc)
	return b.Build()
}
