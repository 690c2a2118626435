package klvm

// RecField is one feature/value pair supplied to CreateRecStmt, in the
// literal's source order.
type RecField struct {
	Feature Operand
	Value   Operand
}

// CreateRecStmt evaluates `target := label#{f1: v1, f2: v2, ...}`,
// allocating a new, possibly partial, Rec and binding it to Target.
type CreateRecStmt struct {
	baseStmt
	Label  Operand
	Fields []RecField
	Target Operand
}

func NewCreateRecStmt(span SourceSpan, label Operand, target Operand, fields ...RecField) *CreateRecStmt {
	return &CreateRecStmt{baseStmt{span}, label, fields, target}
}

func (s *CreateRecStmt) Exec(_ *Machine, env *Env) ([]*StackFrame, error) {
	label, err := ResolveOperandComplete(s.Label, env)
	if err != nil {
		return nil, err
	}
	b := NewRecBuilder(label)
	for _, f := range s.Fields {
		feature, err := ResolveOperandComplete(f.Feature, env)
		if err != nil {
			return nil, err
		}
		feat, ok := feature.(Feature)
		if !ok {
			return nil, &InvalidArgCountError{Context: "create_rec: feature must be an atom, string, or integer"}
		}
		b.AddField(feat, f.Value.resolveValueOrVar(env))
	}
	return nil, bindValueOrVar(s.Target.resolveValueOrVar(env), b.Build())
}

// CreateTupleStmt evaluates `target := [v1, v2, ...]` or
// `target := label#[v1, v2, ...]`.
type CreateTupleStmt struct {
	baseStmt
	Label  Operand // may be nil, meaning the default "tuple" label
	Values []Operand
	Target Operand
}

func NewCreateTupleStmt(span SourceSpan, label Operand, target Operand, values ...Operand) *CreateTupleStmt {
	return &CreateTupleStmt{baseStmt{span}, label, values, target}
}

func (s *CreateTupleStmt) Exec(_ *Machine, env *Env) ([]*StackFrame, error) {
	label := Value(Str("tuple"))
	if s.Label != nil {
		l, err := ResolveOperandComplete(s.Label, env)
		if err != nil {
			return nil, err
		}
		label = l
	}
	vals := make([]ValueOrVar, len(s.Values))
	for i, v := range s.Values {
		vals[i] = v.resolveValueOrVar(env)
	}
	return nil, bindValueOrVar(s.Target.resolveValueOrVar(env), NewTuple(label, vals...))
}

// SelectStmt evaluates `target := a.feature`, raising *WaitError when
// a is an unbound Var or the feature itself is unbound. A field whose
// value is still an unbound Var is unified with target as that Var,
// without waiting; a missing feature, or a value that is not an Obj
// (a tuple included), raises *FeatureNotFoundError.
type SelectStmt struct {
	baseStmt
	On      Operand
	Feature Operand
	Target  Operand
}

func NewSelectStmt(span SourceSpan, on, feature, target Operand) *SelectStmt {
	return &SelectStmt{baseStmt{span}, on, feature, target}
}

func (s *SelectStmt) Exec(_ *Machine, env *Env) ([]*StackFrame, error) {
	result, err := resolveSelect(s.On, s.Feature, env)
	if err != nil {
		return nil, err
	}
	return nil, bindValueOrVar(s.Target.resolveValueOrVar(env), result)
}

func resolveSelect(onOp, featOp Operand, env *Env) (ValueOrVar, error) {
	onVal, err := ResolveOperandValue(onOp, env)
	if err != nil {
		return nil, err
	}
	obj, ok := onVal.(Obj)
	if !ok {
		return nil, &FeatureNotFoundError{On: onVal}
	}
	feature, err := ResolveOperandComplete(featOp, env)
	if err != nil {
		return nil, err
	}
	feat, featIsFeature := feature.(Feature)
	if !featIsFeature {
		return nil, &InvalidArgCountError{Context: "select: feature must be an atom, string, or integer"}
	}
	return obj.Select(feat)
}

// SelectApplyStmt evaluates `a.feature(args...)`, combining select and
// apply into one instruction (as the kernel source does, to avoid
// materializing an intermediate closure binding for method-style calls
// such as iterator advancement). Any result the callee produces is
// communicated by the caller passing an output Var among args, per
// kernel procedure convention; there is no separate return slot.
type SelectApplyStmt struct {
	baseStmt
	On      Operand
	Feature Operand
	Args    []Operand
}

func NewSelectApplyStmt(span SourceSpan, on, feature Operand, args ...Operand) *SelectApplyStmt {
	return &SelectApplyStmt{baseStmt{span}, on, feature, args}
}

func (s *SelectApplyStmt) Exec(m *Machine, env *Env) ([]*StackFrame, error) {
	procVV, err := resolveSelect(s.On, s.Feature, env)
	if err != nil {
		return nil, err
	}
	procVal, err := ResolveValue(procVV)
	if err != nil {
		return nil, err
	}
	if err := checkTouch(procVal); err != nil {
		return nil, err
	}
	return applyProc(m, env, procVal, s.Args)
}
