package klvm

// CreateProcStmt evaluates `target := proc (p1, ..., pn) in body end`,
// capturing the current environment (the whole chain, not a filtered
// set of free identifiers) into a Closure. Capture is lexical and
// shallow: the Closure stores the
// *Env chain reachable at creation time, not a snapshot of values, so
// a captured Var bound later is visible to the closure body exactly
// once it resolves.
type CreateProcStmt struct {
	baseStmt
	Def    *ProcDef
	Target Operand
}

func NewCreateProcStmt(span SourceSpan, def *ProcDef, target Operand) *CreateProcStmt {
	return &CreateProcStmt{baseStmt{span}, def, target}
}

func (s *CreateProcStmt) Exec(_ *Machine, env *Env) ([]*StackFrame, error) {
	closure := &Closure{Def: s.Def, CapturedEnv: env}
	return nil, bindValueOrVar(s.Target.resolveValueOrVar(env), closure)
}

// ApplyStmt evaluates `proc(args...)`. The callee must resolve to a
// Closure or NativeProc; arity is checked against the Closure's formal
// parameter count (NativeProc decides its own arity).
type ApplyStmt struct {
	baseStmt
	Proc Operand
	Args []Operand
}

func NewApplyStmt(span SourceSpan, proc Operand, args ...Operand) *ApplyStmt {
	return &ApplyStmt{baseStmt{span}, proc, args}
}

func (s *ApplyStmt) Exec(m *Machine, env *Env) ([]*StackFrame, error) {
	procVal, err := ResolveOperandValue(s.Proc, env)
	if err != nil {
		return nil, err
	}
	return applyProc(m, env, procVal, s.Args)
}

// applyProc dispatches a resolved callee against actual argument
// operands, shared by ApplyStmt and SelectApplyStmt.
func applyProc(m *Machine, env *Env, procVal Value, argOps []Operand) ([]*StackFrame, error) {
	switch p := procVal.(type) {
	case *Closure:
		return applyClosure(env, p, argOps)
	case NativeProc:
		args := ResolveOperands(argOps, env)
		return p(args, env, m)
	default:
		return nil, &InvalidArgCountError{Context: "apply: value is not a procedure: " + procVal.KernelString()}
	}
}

func applyClosure(callerEnv *Env, c *Closure, argOps []Operand) ([]*StackFrame, error) {
	if len(argOps) != len(c.Def.Params) {
		return nil, &InvalidArgCountError{
			Expected: len(c.Def.Params),
			Actual:   len(argOps),
			Context:  "apply " + c.KernelString(),
		}
	}
	entries := make([]EnvEntry, len(argOps))
	for i, op := range argOps {
		actual := op.resolveValueOrVar(callerEnv)
		var pv *Var
		if v, ok := actual.(*Var); ok {
			pv = v
		} else {
			pv = NewBoundVar(actual.(Value))
		}
		entries[i] = EnvEntry{Ident: c.Def.Params[i], Var: pv}
	}
	bodyEnv := NewEnv(c.CapturedEnv, entries...)
	return []*StackFrame{frame(c.Def.Body, bodyEnv, nil)}, nil
}
