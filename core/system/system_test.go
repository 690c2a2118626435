package system

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torqlang/torqlang/core/actor"
	"github.com/torqlang/torqlang/core/klvm"
)

func greetHandler() *klvm.Closure {
	span := klvm.EmptySpan()
	body := klvm.NewLocalStmt(span,
		klvm.NewSeqStmt(span,
			klvm.NewCreateRecStmt(span,
				klvm.Lit{Value: klvm.Str("greeting")},
				klvm.Ref{Ident: "greeting"},
				klvm.RecField{Feature: klvm.Lit{Value: klvm.Str("name")}, Value: klvm.Ref{Ident: "msg"}},
			),
			klvm.NewApplyStmt(span, klvm.Ref{Ident: klvm.IdentRespond}, klvm.Ref{Ident: "greeting"}),
		),
		"greeting",
	)
	def := &klvm.ProcDef{Params: []klvm.Ident{"msg"}, Body: body, Name: "greet"}
	return &klvm.Closure{Def: def, CapturedEnv: klvm.EmptyEnv}
}

func askCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 2*time.Second)
}

func TestRequestClientAskRoundTrip(t *testing.T) {
	sys := NewActorSystem(Config{})
	sys.AddDefaultModules()
	defer sys.Close()

	addr := NewActorBuilder(sys).WithAddress("greeter").WithHandler(greetHandler()).Spawn()

	ctx, cancel := askCtx()
	defer cancel()
	reply, err := NewRequestClient(sys).Ask(ctx, addr, klvm.Str("World"))
	require.NoError(t, err)
	rec, ok := reply.(klvm.CompleteRec)
	require.True(t, ok)
	name, ok := rec.FindField(klvm.Str("name"))
	require.True(t, ok)
	assert.Equal(t, klvm.Str("World"), name)
}

func TestRequestClientAskUnknownActorErrors(t *testing.T) {
	sys := NewActorSystem(Config{})
	defer sys.Close()

	ctx, cancel := askCtx()
	defer cancel()
	_, err := NewRequestClient(sys).Ask(ctx, actor.Address("nobody"), klvm.Str("hi"))
	assert.Error(t, err)
	assert.IsType(t, &UnknownActorError{}, err)
}

func factorialHandler() *klvm.Closure {
	span := klvm.EmptySpan()
	elseBranch := klvm.NewLocalStmt(span,
		klvm.NewSeqStmt(span,
			klvm.NewArithStmt(span, klvm.OpSub, klvm.Ref{Ident: "n"}, klvm.Lit{Value: klvm.Int64(1)}, klvm.Ref{Ident: "n1"}),
			klvm.NewApplyStmt(span, klvm.Ref{Ident: "fact"}, klvm.Ref{Ident: "n1"}, klvm.Ref{Ident: "r1"}),
			klvm.NewArithStmt(span, klvm.OpMult, klvm.Ref{Ident: "n"}, klvm.Ref{Ident: "r1"}, klvm.Ref{Ident: "r"}),
		),
		"n1", "r1",
	)
	thenBranch := klvm.NewBindStmt(span, klvm.Ref{Ident: "r"}, klvm.Lit{Value: klvm.Int64(1)})
	factBody := klvm.NewLocalStmt(span,
		klvm.NewSeqStmt(span,
			klvm.NewArithStmt(span, klvm.OpLessThanOrEq, klvm.Ref{Ident: "n"}, klvm.Lit{Value: klvm.Int64(1)}, klvm.Ref{Ident: "cond"}),
			klvm.NewIfStmt(span, klvm.Ref{Ident: "cond"}, thenBranch, elseBranch),
		),
		"cond",
	)
	factDef := &klvm.ProcDef{Params: []klvm.Ident{"n", "r"}, Body: factBody, Name: "fact"}
	handlerBody := klvm.NewLocalStmt(span,
		klvm.NewSeqStmt(span,
			klvm.NewCreateProcStmt(span, factDef, klvm.Ref{Ident: "fact"}),
			klvm.NewApplyStmt(span, klvm.Ref{Ident: "fact"}, klvm.Ref{Ident: "msg"}, klvm.Ref{Ident: "result"}),
			klvm.NewApplyStmt(span, klvm.Ref{Ident: klvm.IdentRespond}, klvm.Ref{Ident: "result"}),
		),
		"fact", "result",
	)
	handlerDef := &klvm.ProcDef{Params: []klvm.Ident{"msg"}, Body: handlerBody, Name: "factorialHandler"}
	return &klvm.Closure{Def: handlerDef, CapturedEnv: klvm.EmptyEnv}
}

func TestFactorialActorRecursesToCorrectResult(t *testing.T) {
	sys := NewActorSystem(Config{})
	sys.AddDefaultModules()
	defer sys.Close()

	addr := NewActorBuilder(sys).WithAddress("factorial").WithHandler(factorialHandler()).Spawn()
	client := NewRequestClient(sys)

	cases := map[int64]int64{0: 1, 1: 1, 5: 120, 10: 3628800}
	for n, want := range cases {
		ctx, cancel := askCtx()
		reply, err := client.Ask(ctx, addr, klvm.Int64(n))
		cancel()
		require.NoError(t, err)
		assert.Equal(t, klvm.Int64(want), reply)
	}
}

func echoStreamHandler() *klvm.Closure {
	span := klvm.EmptySpan()
	body := klvm.NewApplyStmt(span, klvm.Ref{Ident: klvm.IdentRespond}, klvm.Ref{Ident: klvm.SystemArgIdent(0)})
	def := &klvm.ProcDef{Params: []klvm.Ident{"msg"}, Body: body, Name: "echoStream"}
	return &klvm.Closure{Def: def, CapturedEnv: klvm.EmptyEnv}
}

func TestStreamProducedByGoAndEchoedByActorDrainsInOrder(t *testing.T) {
	sys := NewActorSystem(Config{})
	sys.AddDefaultModules()
	defer sys.Close()

	stream := actor.NewStreamObj(klvm.NewVar())
	addr := NewActorBuilder(sys).WithAddress("streamer").WithHandler(echoStreamHandler(), stream).Spawn()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := int64(1); i <= 5; i++ {
			require.NoError(t, stream.Produce([]klvm.Complete{klvm.Int64(i)}, false))
		}
		require.NoError(t, stream.Produce(nil, true))
	}()

	ctx, cancel := askCtx()
	defer cancel()
	reply, err := NewRequestClient(sys).Ask(ctx, addr, klvm.Str("go"))
	require.NoError(t, err)

	got, ok := reply.(*actor.StreamObj)
	require.True(t, ok)

	drain := NewStreamClient(got)
	var vals []int64
	for {
		val, eof, derr := drain.Next(ctx)
		require.NoError(t, derr)
		if eof {
			break
		}
		vals = append(vals, int64(val.(klvm.Int64)))
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, vals)
	<-done
}

func TestAddModuleInvalidatesModCache(t *testing.T) {
	sys := NewActorSystem(Config{})
	defer sys.Close()

	rec1 := klvm.NewCompleteRecBuilder(klvm.Str("m")).AddField(klvm.Str("v"), klvm.Int64(1)).Build()
	sys.AddModule("m", rec1)

	got, ok := sys.ModuleAt("m")
	require.True(t, ok)
	assert.Same(t, rec1, got)

	rec2 := klvm.NewCompleteRecBuilder(klvm.Str("m")).AddField(klvm.Str("v"), klvm.Int64(2)).Build()
	sys.AddModule("m", rec2)

	got, ok = sys.ModuleAt("m")
	require.True(t, ok)
	assert.Same(t, rec2, got)
}

func throwingHandler() *klvm.Closure {
	span := klvm.EmptySpan()
	body := klvm.NewThrowStmt(span, klvm.Lit{Value: klvm.NewErrorRec("BoomError", "kaboom")})
	def := &klvm.ProcDef{Params: []klvm.Ident{"msg"}, Body: body, Name: "boom"}
	return &klvm.Closure{Def: def, CapturedEnv: klvm.EmptyEnv}
}

// actDoubleHandler responds to msg by spawning an act block that binds
// "result" to msg*2, then waits for result to resolve before answering
// its own asker with it. The wait is made explicit by an arithmetic op;
// responding with result directly would wait as well, since respond
// checks that its argument is complete before sending it.
// msg is copied into capturedMsg in the same local frame as result
// before act runs, since a Closure's captured environment mirrors only
// its own leaf frame, not every ancestor frame in its lexical chain.
func actDoubleHandler() *klvm.Closure {
	span := klvm.EmptySpan()
	childBody := klvm.NewSeqStmt(span,
		klvm.NewArithStmt(span, klvm.OpMult, klvm.Ref{Ident: "capturedMsg"}, klvm.Lit{Value: klvm.Int64(2)}, klvm.Ref{Ident: "result"}),
		klvm.NewApplyStmt(span, klvm.Ref{Ident: klvm.IdentRespond}, klvm.Ref{Ident: "result"}),
	)
	body := klvm.NewLocalStmt(span,
		klvm.NewSeqStmt(span,
			klvm.NewBindStmt(span, klvm.Ref{Ident: "capturedMsg"}, klvm.Ref{Ident: "msg"}),
			klvm.NewActStmt(span, childBody, "result"),
			klvm.NewLocalStmt(span,
				klvm.NewSeqStmt(span,
					klvm.NewArithStmt(span, klvm.OpAdd, klvm.Ref{Ident: "result"}, klvm.Lit{Value: klvm.Int64(0)}, klvm.Ref{Ident: "sum"}),
					klvm.NewApplyStmt(span, klvm.Ref{Ident: klvm.IdentRespond}, klvm.Ref{Ident: "sum"}),
				),
				"sum",
			),
		),
		"result", "capturedMsg",
	)
	def := &klvm.ProcDef{Params: []klvm.Ident{"msg"}, Body: body, Name: "actDouble"}
	return &klvm.Closure{Def: def, CapturedEnv: klvm.EmptyEnv}
}

func TestActSpawnsChildAndRoutesRespondBackToParent(t *testing.T) {
	sys := NewActorSystem(Config{})
	sys.AddDefaultModules()
	defer sys.Close()

	addr := NewActorBuilder(sys).WithAddress("acter").WithHandler(actDoubleHandler()).Spawn()

	ctx, cancel := askCtx()
	defer cancel()
	reply, err := NewRequestClient(sys).Ask(ctx, addr, klvm.Int64(21))
	require.NoError(t, err)
	assert.Equal(t, klvm.Int64(42), reply)
}

// publisherHandler answers every request with the next batch of a
// fixed three-batch sequence ([1,2,3], [4,5], then eof#{more: false}),
// tracked by a Go counter the handler's captured advance procedure
// closes over directly, the way act/spawn/respond already reach back
// into Go state rather than modeling mutation inside the kernel.
func publisherHandler() *klvm.Closure {
	calls := 0
	advance := klvm.NativeProc(func(args []klvm.ValueOrVar, _ *klvm.Env, _ *klvm.Machine) ([]*klvm.StackFrame, error) {
		target, ok := args[0].(*klvm.Var)
		if !ok {
			return nil, &klvm.InvalidArgCountError{Context: "advance: target must be an unbound var"}
		}
		calls++
		switch calls {
		case 1:
			return nil, target.BindToValue(klvm.NewCompleteTuple(klvm.Str("#"), klvm.Int64(1), klvm.Int64(2), klvm.Int64(3)), nil)
		case 2:
			return nil, target.BindToValue(klvm.NewCompleteTuple(klvm.Str("#"), klvm.Int64(4), klvm.Int64(5)), nil)
		default:
			eof := klvm.NewCompleteRecBuilder(klvm.Eof).AddField(klvm.Str("more"), klvm.False).Build()
			return nil, target.BindToValue(eof, nil)
		}
	})
	span := klvm.EmptySpan()
	body := klvm.NewLocalStmt(span,
		klvm.NewSeqStmt(span,
			klvm.NewApplyStmt(span, klvm.Ref{Ident: "advance"}, klvm.Ref{Ident: "batch"}),
			klvm.NewApplyStmt(span, klvm.Ref{Ident: klvm.IdentRespond}, klvm.Ref{Ident: "batch"}),
		),
		"batch",
	)
	def := &klvm.ProcDef{Params: []klvm.Ident{"msg"}, Body: body, Name: "publisher"}
	capturedEnv := klvm.NewEnv(nil, klvm.EnvEntry{Ident: "advance", Var: klvm.NewBoundVar(advance)})
	return &klvm.Closure{Def: def, CapturedEnv: capturedEnv}
}

// streamSubscriberHandler calls Stream.new(publisher, request, target)
// and responds with the resulting StreamObj, mirroring how a handler
// that wants to relay another actor's stream to its own asker would
// call it.
func streamSubscriberHandler(publisher actor.Address) *klvm.Closure {
	span := klvm.EmptySpan()
	body := klvm.NewLocalStmt(span,
		klvm.NewSeqStmt(span,
			klvm.NewApplyStmt(span,
				klvm.Ref{Ident: klvm.SystemArgIdent(0)},
				klvm.Lit{Value: klvm.Str(publisher)}, klvm.Lit{Value: klvm.Str("next")}, klvm.Ref{Ident: "stream"},
			),
			klvm.NewApplyStmt(span, klvm.Ref{Ident: klvm.IdentRespond}, klvm.Ref{Ident: "stream"}),
		),
		"stream",
	)
	def := &klvm.ProcDef{Params: []klvm.Ident{"msg"}, Body: body, Name: "subscriber"}
	return &klvm.Closure{Def: def, CapturedEnv: klvm.EmptyEnv}
}

func TestStreamNewDrivesActorToActorPublisherProtocol(t *testing.T) {
	sys := NewActorSystem(Config{})
	sys.AddDefaultModules()
	defer sys.Close()

	pubAddr := NewActorBuilder(sys).WithAddress("publisher").WithHandler(publisherHandler()).Spawn()

	streamNew, ok := sys.SystemModule().FindValue(klvm.Str("Stream"))
	require.True(t, ok)
	streamMod := streamNew.(*klvm.CompleteRec)
	newProc, ok := streamMod.FindValue(klvm.Str("new"))
	require.True(t, ok)
	subAddr := NewActorBuilder(sys).WithAddress("subscriber").WithHandler(streamSubscriberHandler(pubAddr), newProc).Spawn()

	ctx, cancel := askCtx()
	defer cancel()
	reply, err := NewRequestClient(sys).Ask(ctx, subAddr, klvm.Str("go"))
	require.NoError(t, err)

	stream, ok := reply.(*actor.StreamObj)
	require.True(t, ok)

	drain := NewStreamClient(stream)
	var vals []int64
	for {
		val, eof, derr := drain.Next(ctx)
		require.NoError(t, derr)
		if eof {
			break
		}
		vals = append(vals, int64(val.(klvm.Int64)))
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, vals)
}

func TestUncaughtThrowHaltsActorAndFailsPendingAsk(t *testing.T) {
	sys := NewActorSystem(Config{})
	sys.AddDefaultModules()
	defer sys.Close()

	addr := NewActorBuilder(sys).WithAddress("boomer").WithHandler(throwingHandler()).Spawn()

	ctx, cancel := askCtx()
	defer cancel()
	_, err := NewRequestClient(sys).Ask(ctx, addr, klvm.Str("go"))
	require.Error(t, err)

	fv, ok := err.(*klvm.FailedValue)
	require.True(t, ok)
	assert.Equal(t, klvm.Str(addr), fv.ActorAddress)
}

// askThroughHandler responds to msg by asking bAddr the same way a
// Go RequestClient would and forwarding whatever comes back. It is
// the kernel-instruction equivalent of `handle ask m in B.ask(m) end`
// for a runtime with no ask-expression syntax: the native "askB" proc
// blocks on a synchronous RequestClient.Ask the same way an external
// Go caller does, then binds its result Var to either the resolved
// reply or, if bAddr halted, bAddr's own FailedValue directly (never
// wrapped) — the wrapping this test exercises must happen in respond,
// not here.
func askThroughHandler(sys *ActorSystem, bAddr actor.Address) *klvm.Closure {
	askB := klvm.NativeProc(func(args []klvm.ValueOrVar, _ *klvm.Env, _ *klvm.Machine) ([]*klvm.StackFrame, error) {
		target, ok := args[0].(*klvm.Var)
		if !ok {
			return nil, &klvm.InvalidArgCountError{Context: "askB: target must be an unbound var"}
		}
		ctx, cancel := askCtx()
		defer cancel()
		reply, err := NewRequestClient(sys).Ask(ctx, bAddr, klvm.Str("go"))
		if err != nil {
			if fv, ok := err.(*klvm.FailedValue); ok {
				return nil, target.BindToValue(fv, nil)
			}
			return nil, err
		}
		return nil, target.BindToValue(reply, nil)
	})
	span := klvm.EmptySpan()
	body := klvm.NewLocalStmt(span,
		klvm.NewSeqStmt(span,
			klvm.NewApplyStmt(span, klvm.Ref{Ident: "askB"}, klvm.Ref{Ident: "result"}),
			klvm.NewApplyStmt(span, klvm.Ref{Ident: klvm.IdentRespond}, klvm.Ref{Ident: "result"}),
		),
		"result",
	)
	def := &klvm.ProcDef{Params: []klvm.Ident{"msg"}, Body: body, Name: "askThrough"}
	capturedEnv := klvm.NewEnv(nil, klvm.EnvEntry{Ident: "askB", Var: klvm.NewBoundVar(askB)})
	return &klvm.Closure{Def: def, CapturedEnv: capturedEnv}
}

func TestRespondWrapsRemoteFailedValueWithChainedCause(t *testing.T) {
	sys := NewActorSystem(Config{})
	sys.AddDefaultModules()
	defer sys.Close()

	bAddr := NewActorBuilder(sys).WithAddress("b").WithHandler(throwingHandler()).Spawn()
	aAddr := NewActorBuilder(sys).WithAddress("a").WithHandler(askThroughHandler(sys, bAddr)).Spawn()

	ctx, cancel := askCtx()
	defer cancel()
	_, err := NewRequestClient(sys).Ask(ctx, aAddr, klvm.Str("go"))
	require.Error(t, err)

	fv, ok := err.(*klvm.FailedValue)
	require.True(t, ok)
	assert.Equal(t, klvm.Str(aAddr), fv.ActorAddress)
	require.NotNil(t, fv.Cause)
	assert.Equal(t, klvm.Str(bAddr), fv.Cause.ActorAddress)
}
