package klvm

// StreamEntry is one node of a stream: a Complete value paired with
// the Var that will be bound to either the next StreamEntry or Eof.
// A chain of these, with its final Next left unbound, is the
// singly-linked list with an unbound tail that a stream's consumer
// walks one step at a time via StreamIter.
type StreamEntry struct {
	completeBase
	Val  Complete
	Next *Var
}

func NewStreamEntry(val Complete, next *Var) *StreamEntry {
	return &StreamEntry{Val: val, Next: next}
}

func (e *StreamEntry) KernelString() string {
	return "stream_entry#{value: " + e.Val.KernelString() + ", next: " + e.Next.String() + "}"
}

// BuildStreamChain links vals into a chain of StreamEntry nodes ending
// at tail (typically Eof, or a fresh unbound Var if more is still to
// come), returning the head that should be bound to the slot the
// consumer is waiting on.
func BuildStreamChain(vals []Complete, tail ValueOrVar) ValueOrVar {
	if len(vals) == 0 {
		return tail
	}
	next := NewVar()
	head := NewStreamEntry(vals[0], next)
	if err := next.BindToValueOrVar(BuildStreamChain(vals[1:], tail), nil); err != nil {
		panic("BuildStreamChain: internal invariant violated: " + err.Error())
	}
	return head
}
