package klvm

// SourceSpan is a lightweight source-location tag carried by every
// instruction for diagnostics. The surface parser/lowering pass
// (out of scope here) is responsible for populating real spans;
// EmptySpan is used by synthetic instructions the runtime builds on
// the fly (e.g. the actor layer's handler invocations and the
// FailedValues it builds on halt).
type SourceSpan struct {
	File        string
	Line, Col   int
	EndLine     int
	EndCol      int
}

func EmptySpan() SourceSpan { return SourceSpan{} }

// Stmt is a kernel instruction. Exec runs one step of it against env
// and the owning Machine. On success it returns the stack frames that
// should replace this one (nil/empty means simply "pop"); on failure
// it returns a *WaitError, *ThrowSignal, *TouchedFailedValueError, or a
// native error, none of which consume budget beyond the current
// instruction and none of which may have produced a visible side
// effect (per the suspension discipline, instructions are designed to
// be fully re-executable).
type Stmt interface {
	Span() SourceSpan
	Exec(m *Machine, env *Env) ([]*StackFrame, error)
}

type baseStmt struct{ span SourceSpan }

func (b baseStmt) Span() SourceSpan { return b.span }

// StackFrame pairs one statement with the environment it executes in.
// Frames form a singly linked list (the machine stack); popping an
// empty stack means the computation completed.
type StackFrame struct {
	Stmt Stmt
	Env  *Env
	Next *StackFrame
}

func frame(stmt Stmt, env *Env, next *StackFrame) *StackFrame {
	return &StackFrame{Stmt: stmt, Env: env, Next: next}
}

// push builds a chain of frames sharing env, in the order given
// (first element ends up on top).
func pushChain(env *Env, next *StackFrame, stmts ...Stmt) []*StackFrame {
	out := make([]*StackFrame, len(stmts))
	cur := next
	for i := len(stmts) - 1; i >= 0; i-- {
		f := frame(stmts[i], env, cur)
		out[i] = f
		cur = f
	}
	return out
}

// ---- SeqStmt ----

// SeqStmt runs a list of statements in order within the same
// environment.
type SeqStmt struct {
	baseStmt
	Stmts []Stmt
}

func NewSeqStmt(span SourceSpan, stmts ...Stmt) *SeqStmt {
	return &SeqStmt{baseStmt{span}, stmts}
}

func (s *SeqStmt) Exec(_ *Machine, env *Env) ([]*StackFrame, error) {
	if len(s.Stmts) == 0 {
		return nil, nil
	}
	chain := pushChain(env, nil, s.Stmts...)
	return chain, nil
}

// ---- LocalStmt ----

// LocalStmt declares new identifiers, each bound to a fresh unbound
// Var, visible to In.
type LocalStmt struct {
	baseStmt
	Idents []Ident
	In     Stmt
}

func NewLocalStmt(span SourceSpan, in Stmt, idents ...Ident) *LocalStmt {
	return &LocalStmt{baseStmt{span}, idents, in}
}

func (s *LocalStmt) Exec(_ *Machine, env *Env) ([]*StackFrame, error) {
	entries := make([]EnvEntry, len(s.Idents))
	for i, id := range s.Idents {
		entries[i] = EnvEntry{Ident: id, Var: NewVar()}
	}
	childEnv := NewEnv(env, entries...)
	return []*StackFrame{frame(s.In, childEnv, nil)}, nil
}

// ---- BindStmt ----

// BindStmt performs `bind a to b`, unifying the two operands.
type BindStmt struct {
	baseStmt
	A, B Operand
}

func NewBindStmt(span SourceSpan, a, b Operand) *BindStmt {
	return &BindStmt{baseStmt{span}, a, b}
}

func (s *BindStmt) Exec(_ *Machine, env *Env) ([]*StackFrame, error) {
	av := s.A.resolveValueOrVar(env)
	bv := s.B.resolveValueOrVar(env)
	if err := bindValueOrVar(av, bv); err != nil {
		return nil, err
	}
	return nil, nil
}

func bindValueOrVar(target, source ValueOrVar) error {
	if tv, ok := target.(*Var); ok {
		return tv.BindToValueOrVar(source, nil)
	}
	if sv, ok := source.(*Var); ok {
		return sv.BindToValueOrVar(target, nil)
	}
	return unifyValueOrVar(target, source)
}

// ---- IfStmt ----

type IfStmt struct {
	baseStmt
	Cond       Operand
	Then, Else Stmt
}

func NewIfStmt(span SourceSpan, cond Operand, then, els Stmt) *IfStmt {
	return &IfStmt{baseStmt{span}, cond, then, els}
}

func (s *IfStmt) Exec(_ *Machine, env *Env) ([]*StackFrame, error) {
	v, err := ResolveOperandValue(s.Cond, env)
	if err != nil {
		return nil, err
	}
	b, ok := v.(Bool)
	if !ok {
		return nil, &ThrowSignal{Value: NewErrorRec("TypeError", "if condition is not a Bool")}
	}
	branch := s.Else
	if bool(b) {
		branch = s.Then
	}
	if branch == nil {
		return nil, nil
	}
	return []*StackFrame{frame(branch, env, nil)}, nil
}

// ---- CaseStmt ----

// CaseClause pattern-matches a value against Pattern; if it matches,
// bindings introduced by the pattern are added to a child environment
// and Body runs in it.
type CaseClause struct {
	Pattern Pattern
	Body    Stmt
}

type CaseStmt struct {
	baseStmt
	Value   Operand
	Clauses []CaseClause
	Else    Stmt
}

func NewCaseStmt(span SourceSpan, value Operand, els Stmt, clauses ...CaseClause) *CaseStmt {
	return &CaseStmt{baseStmt{span}, value, clauses, els}
}

func (s *CaseStmt) Exec(_ *Machine, env *Env) ([]*StackFrame, error) {
	v, err := s.Value.resolveValueOrVar(env), error(nil)
	for _, clause := range s.Clauses {
		matchEnv, matched, merr := clause.Pattern.Match(v, env)
		if merr != nil {
			return nil, merr
		}
		if matched {
			return []*StackFrame{frame(clause.Body, matchEnv, nil)}, nil
		}
	}
	if s.Else == nil {
		return nil, &ThrowSignal{Value: NewErrorRec("CaseNotMatchedError", "no case clause matched")}
	}
	return []*StackFrame{frame(s.Else, env, nil)}, err
}

// Pattern matches a value, optionally introducing new bindings into a
// derived environment.
type Pattern interface {
	Match(v ValueOrVar, env *Env) (*Env, bool, error)
}

// IdentPattern always matches, binding the value to a fresh identifier
// in a child environment (kernel `case X of Y then ...`).
type IdentPattern struct{ Ident Ident }

func (p IdentPattern) Match(v ValueOrVar, env *Env) (*Env, bool, error) {
	bound := v
	if vr, ok := v.(*Var); !ok {
		_ = vr
	}
	nv := NewVar()
	if err := bindValueOrVar(nv, bound); err != nil {
		return nil, false, err
	}
	return env.Add(EnvEntry{Ident: p.Ident, Var: nv}), true, nil
}

// RecPattern matches a record literal shape: label plus a fixed set
// of feature patterns (used for `case msg of hello then ...`-style
// label matching, and destructuring).
type RecPattern struct {
	Label    Value
	Features []Feature
	Subs     []Pattern
}

func (p RecPattern) Match(v ValueOrVar, env *Env) (*Env, bool, error) {
	val, err := ResolveValue(v)
	if err != nil {
		return nil, false, err
	}
	rec, ok := underlyingRec(val)
	if !ok || rec.label.KernelString() != p.Label.KernelString() {
		return nil, false, nil
	}
	cur := env
	for i, feat := range p.Features {
		fv, ok := rec.FindField(feat)
		if !ok {
			return nil, false, nil
		}
		var matched bool
		cur, matched, err = p.Subs[i].Match(fv, cur)
		if err != nil {
			return nil, false, err
		}
		if !matched {
			return nil, false, nil
		}
	}
	return cur, true, nil
}

func underlyingRec(v Value) (*Rec, bool) {
	switch t := v.(type) {
	case *Rec:
		return t, true
	case CompleteRec:
		return t.Rec, true
	default:
		return nil, false
	}
}

// LitPattern matches a literal constant exactly.
type LitPattern struct{ Value Complete }

func (p LitPattern) Match(v ValueOrVar, env *Env) (*Env, bool, error) {
	val, err := ResolveValue(v)
	if err != nil {
		return nil, false, err
	}
	return env, primitivesEqual(val, p.Value) || val == Value(p.Value), nil
}

// ---- ThrowStmt ----

type ThrowStmt struct {
	baseStmt
	Value Operand
}

func NewThrowStmt(span SourceSpan, value Operand) *ThrowStmt {
	return &ThrowStmt{baseStmt{span}, value}
}

func (s *ThrowStmt) Exec(_ *Machine, env *Env) ([]*StackFrame, error) {
	v, err := ResolveOperandValue(s.Value, env)
	if err != nil {
		return nil, err
	}
	return nil, &ThrowSignal{Value: v}
}

// ---- TryStmt ----

// TryStmt runs Body; if it throws and Pattern matches the thrown
// value, Catch runs instead (with the pattern's bindings visible).
// An uncaught throw (pattern does not match) propagates.
type TryStmt struct {
	baseStmt
	Body    Stmt
	Pattern Pattern
	Catch   Stmt
	Finally Stmt
}

func NewTryStmt(span SourceSpan, body Stmt, pattern Pattern, catch, finally Stmt) *TryStmt {
	return &TryStmt{baseStmt{span}, body, pattern, catch, finally}
}

func (s *TryStmt) Exec(m *Machine, env *Env) ([]*StackFrame, error) {
	// A try is implemented by pushing Body on top of a marker frame the
	// Machine recognizes during Halt/Throw unwinding (see
	// Machine.Compute / catchAt). appendFrames puts frames[0] on top,
	// so Body must come first here: the guard has to still be on the
	// stack, below Body, while Body is running and might throw.
	guard := &tryGuardStmt{try: s, env: env}
	return []*StackFrame{frame(s.Body, env, nil), frame(guard, env, nil)}, nil
}

// tryGuardStmt is a synthetic instruction pushed below a TryStmt's
// body. When reached normally (the body already ran) it runs the try's
// Finally, if any, and otherwise does nothing; it is also what
// Machine.Compute looks for when it unwinds the stack looking for a
// try whose Pattern matches a thrown value.
type tryGuardStmt struct {
	try *TryStmt
	env *Env
}

func (g *tryGuardStmt) Span() SourceSpan { return g.try.Span() }
func (g *tryGuardStmt) Exec(m *Machine, env *Env) ([]*StackFrame, error) {
	if g.try.Finally != nil {
		return []*StackFrame{frame(g.try.Finally, g.env, nil)}, nil
	}
	return nil, nil
}
