package actor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torqlang/torqlang/core/klvm"
)

type noopRegistry struct{}

func (noopRegistry) Lookup(Address) *Actor { return nil }
func (noopRegistry) Deliver(Address, Envelope) bool { return false }
func (noopRegistry) Spawn() *Actor { return nil }
func (noopRegistry) SystemModule() *klvm.CompleteRec { return nil }
func (noopRegistry) ModuleAt(string) (*klvm.CompleteRec, bool) { return nil, false }

func newTestActor() *Actor {
	return NewActor(Address("test"), noopRegistry{}, Options{})
}

// A response that binds a stream's next tuple can arrive before the
// response that resolves the Var the tuple value depends on. The
// stream response must suspend without busy-retrying and only resolve
// once the dependency's own response lands.
func TestOnResponseBatchSuspendsAndResolvesInterdependentResponses(t *testing.T) {
	a := newTestActor()

	streamHead := klvm.NewVar()
	stream := NewStreamObj(streamHead)
	dep := klvm.NewVar()

	streamEnv := Envelope{
		Kind:          KindResponse,
		RequestID:     StreamRequestID{Stream: stream},
		ResponseValue: dep,
	}
	a.onResponseBatch([]Envelope{streamEnv})

	require.Len(t, a.suspended, 1)
	assert.Empty(t, a.selectable)

	depEnv := Envelope{
		Kind:          KindResponse,
		RequestID:     VarRequestID{Var: dep},
		ResponseValue: klvm.NewCompleteTuple(klvm.Str("#"), klvm.Int64(7)),
	}
	a.onResponseBatch([]Envelope{depEnv})

	assert.Empty(t, a.suspended)
	assert.Empty(t, a.selectable)

	head, err := klvm.ResolveValue(streamHead)
	require.NoError(t, err)
	entry, ok := head.(*klvm.StreamEntry)
	require.True(t, ok)
	assert.Equal(t, klvm.Int64(7), entry.Val)
}

// A response whose dependency never arrives stays parked in suspended
// forever: onResponseBatch must not reinsert it into the mailbox or
// otherwise retry it on its own.
func TestOnResponseBatchNeverResolvedStaysSuspendedWithoutRetry(t *testing.T) {
	a := newTestActor()

	stream := NewStreamObj(klvm.NewVar())
	dep := klvm.NewVar()

	a.onResponseBatch([]Envelope{{
		Kind:          KindResponse,
		RequestID:     StreamRequestID{Stream: stream},
		ResponseValue: dep,
	}})
	require.Len(t, a.suspended, 1)

	unrelated := klvm.NewVar()
	a.onResponseBatch([]Envelope{{
		Kind:          KindResponse,
		RequestID:     VarRequestID{Var: unrelated},
		ResponseValue: klvm.Int64(1),
	}})

	require.Len(t, a.suspended, 1)
	assert.Equal(t, klvm.Int64(1), unrelated.ResolveValueOrVar())
}

// A batch that binds nothing at all must park everything into
// suspended and return without touching the Machine, per the spec's
// response-binding fixed point (step 4: "no progress... return
// NOT_FINISHED without running compute"). ran only becomes bound if
// onResponseBatch actually resumes Compute.
func TestOnResponseBatchDoesNotResumeComputeOnZeroProgress(t *testing.T) {
	a := newTestActor()

	ran := klvm.NewVar()
	env := klvm.NewEnv(nil, klvm.EnvEntry{Ident: "ran", Var: ran})
	a.machine = klvm.NewMachine(a, klvm.NewBindStmt(klvm.EmptySpan(), klvm.Ref{Ident: "ran"}, klvm.Lit{Value: klvm.Bool(true)}), env)

	dep := klvm.NewVar()
	a.onResponseBatch([]Envelope{{
		Kind:          KindResponse,
		RequestID:     StreamRequestID{Stream: NewStreamObj(klvm.NewVar())},
		ResponseValue: dep,
	}})

	require.Len(t, a.suspended, 1)
	assert.False(t, ran.IsBound())
}
