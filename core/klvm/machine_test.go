package klvm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testOwner struct{ traces []string }

func (o *testOwner) Trace(msg string) { o.traces = append(o.traces, msg) }

// buildFactorial returns a statement that computes n! into the "r"
// identifier of the returned env, given n already bound in it.
func buildFactorial(span SourceSpan, n *Var) (Stmt, *Env) {
	r := NewVar()
	env := NewEnv(nil, EnvEntry{Ident: "n", Var: n}, EnvEntry{Ident: "r", Var: r})

	elseBranch := NewLocalStmt(span,
		NewSeqStmt(span,
			NewArithStmt(span, OpSub, Ref{Ident: "n"}, Lit{Value: Int64(1)}, Ref{Ident: "n1"}),
			NewApplyStmt(span, Ref{Ident: "fact"}, Ref{Ident: "n1"}, Ref{Ident: "r1"}),
			NewArithStmt(span, OpMult, Ref{Ident: "n"}, Ref{Ident: "r1"}, Ref{Ident: "r"}),
		),
		"n1", "r1",
	)
	thenBranch := NewBindStmt(span, Ref{Ident: "r"}, Lit{Value: Int64(1)})

	factBody := NewLocalStmt(span,
		NewSeqStmt(span,
			NewArithStmt(span, OpLessThanOrEq, Ref{Ident: "n"}, Lit{Value: Int64(1)}, Ref{Ident: "cond"}),
			NewIfStmt(span, Ref{Ident: "cond"}, thenBranch, elseBranch),
		),
		"cond",
	)
	factDef := &ProcDef{Params: []Ident{"n", "r"}, Body: factBody, Name: "fact"}

	top := NewLocalStmt(span,
		NewSeqStmt(span,
			NewCreateProcStmt(span, factDef, Ref{Ident: "fact"}),
			NewApplyStmt(span, Ref{Ident: "fact"}, Ref{Ident: "n"}, Ref{Ident: "r"}),
		),
		"fact",
	)
	return top, env
}

func TestMachineComputesFactorial(t *testing.T) {
	span := EmptySpan()
	n := NewBoundVar(Int64(5))
	stmt, env := buildFactorial(span, n)

	m := NewMachine(&testOwner{}, stmt, env)
	advice := m.Compute(10_000)

	require.Equal(t, Completed, advice.Kind)
	r := env.Get("r")
	val, err := ResolveValue(r)
	require.NoError(t, err)
	assert.Equal(t, Int64(120), val)
}

func TestMachinePreemptsWithinBudget(t *testing.T) {
	span := EmptySpan()
	n := NewBoundVar(Int64(10))
	stmt, env := buildFactorial(span, n)

	m := NewMachine(&testOwner{}, stmt, env)
	advice := m.Compute(1)
	assert.Equal(t, Preempt, advice.Kind)
	assert.Equal(t, 1, advice.InstructionsRun)

	for advice.Kind == Preempt {
		advice = m.Compute(1)
	}
	require.Equal(t, Completed, advice.Kind)

	val, err := ResolveValue(env.Get("r"))
	require.NoError(t, err)
	assert.Equal(t, Int64(3628800), val)
}

func TestMachineWaitsOnUnboundInput(t *testing.T) {
	span := EmptySpan()
	n := NewVar() // unbound
	stmt, env := buildFactorial(span, n)

	m := NewMachine(&testOwner{}, stmt, env)
	advice := m.Compute(10_000)
	require.Equal(t, Wait, advice.Kind)
	assert.Same(t, n, advice.Barrier)

	require.NoError(t, n.BindToValue(Int64(3), nil))
	advice = m.Compute(10_000)
	require.Equal(t, Completed, advice.Kind)

	val, err := ResolveValue(env.Get("r"))
	require.NoError(t, err)
	assert.Equal(t, Int64(6), val)
}

func TestMachineHaltsOnThrow(t *testing.T) {
	span := EmptySpan()
	stmt := NewThrowStmt(span, Lit{Value: Str("boom")})
	m := NewMachine(&testOwner{}, stmt, EmptyEnv)

	advice := m.Compute(10)
	require.Equal(t, Halt, advice.Kind)
	assert.Equal(t, Str("boom"), advice.Thrown)
}

func TestMachineTryCatchesMatchingThrow(t *testing.T) {
	span := EmptySpan()
	caught := NewVar()
	env := NewEnv(nil, EnvEntry{Ident: "caught", Var: caught})

	tryStmt := NewTryStmt(span,
		NewThrowStmt(span, Lit{Value: NewErrorRec("BoomError", "kaboom")}),
		IdentPattern{Ident: "e"},
		NewBindStmt(span, Ref{Ident: "caught"}, Ref{Ident: "e"}),
		nil,
	)

	m := NewMachine(&testOwner{}, tryStmt, env)
	advice := m.Compute(10_000)
	require.Equal(t, Completed, advice.Kind)

	val, err := ResolveValue(caught)
	require.NoError(t, err)
	errRec, ok := val.(*CompleteRec)
	require.True(t, ok)
	name, ok := errRec.FindValue(Str("name"))
	require.True(t, ok)
	assert.Equal(t, Str("BoomError"), name)
}

func TestMachineHaltsOnTouchedFailedValue(t *testing.T) {
	span := EmptySpan()
	fv := &FailedValue{ActorAddress: Str("actor-b"), Error: NewErrorRec("DivByZeroError", "/ by zero")}
	n := NewBoundVar(fv)
	target := NewVar()
	env := NewEnv(nil, EnvEntry{Ident: "n", Var: n}, EnvEntry{Ident: "r", Var: target})

	stmt := NewArithStmt(span, OpAdd, Ref{Ident: "n"}, Lit{Value: Int64(1)}, Ref{Ident: "r"})

	m := NewMachine(&testOwner{}, stmt, env)
	advice := m.Compute(10)
	require.Equal(t, Halt, advice.Kind)
	assert.Same(t, fv, advice.Thrown)
	assert.False(t, target.IsBound())
}

// A touched FailedValue is contagious, not a program-level exception:
// it must halt straight through a try whose pattern would otherwise
// match anything.
func TestMachineTryDoesNotCatchTouchedFailedValue(t *testing.T) {
	span := EmptySpan()
	fv := &FailedValue{ActorAddress: Str("actor-b"), Error: NewErrorRec("DivByZeroError", "/ by zero")}
	n := NewBoundVar(fv)
	env := NewEnv(nil, EnvEntry{Ident: "n", Var: n})

	tryStmt := NewTryStmt(span,
		NewArithStmt(span, OpAdd, Ref{Ident: "n"}, Lit{Value: Int64(1)}, Ref{Ident: "unused"}),
		IdentPattern{Ident: "e"},
		NewThrowStmt(span, Lit{Value: Str("should-not-run")}),
		nil,
	)

	m := NewMachine(&testOwner{}, tryStmt, env)
	advice := m.Compute(10_000)
	require.Equal(t, Halt, advice.Kind)
	assert.Same(t, fv, advice.Thrown)
}

func TestMachineTryPropagatesNonMatchingThrow(t *testing.T) {
	span := EmptySpan()
	tryStmt := NewTryStmt(span,
		NewThrowStmt(span, Lit{Value: Str("boom")}),
		LitPattern{Value: Str("something-else")},
		NewThrowStmt(span, Lit{Value: Str("unreachable")}),
		nil,
	)

	m := NewMachine(&testOwner{}, tryStmt, EmptyEnv)
	advice := m.Compute(10_000)
	require.Equal(t, Halt, advice.Kind)
	assert.Equal(t, Str("boom"), advice.Thrown)
}
