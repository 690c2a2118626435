package klvm

// ActStmt evaluates `act body in target end`: it spawns a child
// actor, sends the child's initial computation (body, with target
// naming the local variable body is expected to bind) as an Act
// control message, then lets the enclosing computation continue; the
// parent's target Var is bound once the child calls respond(target)
// from inside its own copy of body, so only a later instruction that
// needs target's value waits. Target is an Ident rather than an Operand because it names
// a variable the child binds locally, not a value resolved in the
// parent's own environment.
type ActStmt struct {
	baseStmt
	Body   Stmt
	Target Ident
}

func NewActStmt(span SourceSpan, body Stmt, target Ident) *ActStmt {
	return &ActStmt{baseStmt{span}, body, target}
}

func (s *ActStmt) Exec(m *Machine, env *Env) ([]*StackFrame, error) {
	actVar, ok := env.Lookup(IdentAct)
	if !ok {
		return nil, &InvalidArgCountError{Context: "act: intrinsic not bound in this environment"}
	}
	actVal, err := ResolveValue(actVar)
	if err != nil {
		return nil, err
	}
	proc, ok := actVal.(NativeProc)
	if !ok {
		return nil, &InvalidArgCountError{Context: "act: intrinsic is not a procedure"}
	}
	targetVar, ok := env.Lookup(s.Target)
	if !ok {
		return nil, &InvalidArgCountError{Context: "act: target not declared in this environment"}
	}
	closure := &Closure{Def: &ProcDef{Body: s.Body, Name: "$act"}, CapturedEnv: env}
	return proc([]ValueOrVar{closure, Str(s.Target), targetVar}, env, m)
}
