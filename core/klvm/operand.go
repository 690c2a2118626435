package klvm

// Operand is an instruction argument: either a literal Complete value
// baked in at compile time, or a reference to an identifier resolved
// against the current environment. This mirrors the kernel source's
// CompleteOrIdent union.
type Operand interface {
	resolveValueOrVar(env *Env) ValueOrVar
}

// Lit is a literal operand.
type Lit struct{ Value Complete }

func (l Lit) resolveValueOrVar(*Env) ValueOrVar { return l.Value }

// Ref is an identifier operand.
type Ref struct{ Ident Ident }

func (r Ref) resolveValueOrVar(env *Env) ValueOrVar { return env.Get(r.Ident).ResolveValueOrVar() }

// ResolveOperandValue resolves an Operand directly to a Value, raising
// *WaitError if it refers to a still-unbound Var. Every instruction
// that resolves an operand in order to compute with it (arithmetic,
// select, apply, an if condition) funnels through here, so this is
// also the choke point for spec.md's touched-FailedValue halt: a
// resolved FailedValue is never handed to instruction logic, it is
// turned into a *TouchedFailedValueError instead.
func ResolveOperandValue(op Operand, env *Env) (Value, error) {
	v, err := ResolveValue(op.resolveValueOrVar(env))
	if err != nil {
		return nil, err
	}
	if err := checkTouch(v); err != nil {
		return nil, err
	}
	return v, nil
}

// ResolveOperandComplete resolves and checks completeness in one step,
// applying the same touched-FailedValue check as ResolveOperandValue.
func ResolveOperandComplete(op Operand, env *Env) (Complete, error) {
	c, err := CheckComplete(op.resolveValueOrVar(env))
	if err != nil {
		return nil, err
	}
	if err := checkTouch(c); err != nil {
		return nil, err
	}
	return c, nil
}

// ResolveOperands resolves a slice of operands to ValueOrVar, used by
// intrinsics (act/import/respond/self/spawn) which receive their
// arguments unresolved and decide themselves how far to resolve each.
func ResolveOperands(ops []Operand, env *Env) []ValueOrVar {
	out := make([]ValueOrVar, len(ops))
	for i, op := range ops {
		out[i] = op.resolveValueOrVar(env)
	}
	return out
}
