package klvm

// Proc marks a kernel value that can be applied with arguments.
type Proc interface {
	Value
	isProc()
}

// ProcDef is the static body of a procedure: its formal parameter
// identifiers and the statement to run when applied.
type ProcDef struct {
	Params []Ident
	Body   Stmt
	Name   string // diagnostic only, may be empty
}

// Closure is a procedure value created by create_proc: a ProcDef
// together with the environment captured at creation time. A Closure
// is Partial until every captured Var resolves to a Complete value.
type Closure struct {
	Def         *ProcDef
	CapturedEnv *Env
}

func (*Closure) isValueOrVar() {}
func (*Closure) isProc()       {}
func (c *Closure) KernelString() string {
	name := c.Def.Name
	if name == "" {
		name = "anonymous"
	}
	return "proc#" + name
}

func (c *Closure) checkComplete() (Complete, error) {
	for _, entry := range c.CapturedEnv.Entries() {
		if _, err := CheckComplete(entry.Var); err != nil {
			return nil, err
		}
	}
	return completeClosure{c}, nil
}

type completeClosure struct{ *Closure }

func (completeClosure) completeTag() {}

// NativeProc is a procedure implemented directly in Go rather than
// kernel instructions: the intrinsics (act, import, respond, self,
// spawn) and every builtin exposed through a module record. It is
// always Complete, mirroring the original's CompleteProc interface
// (Complete ∩ Proc).
//
// A NativeProc may push follow-on stack frames onto m (e.g. to invoke
// a kernel-level respond continuation) by returning them; returning
// (nil, nil) means the call is already fully done.
type NativeProc func(args []ValueOrVar, env *Env, m *Machine) ([]*StackFrame, error)

func (NativeProc) isValueOrVar() {}
func (NativeProc) isProc()       {}
func (NativeProc) completeTag()  {}
func (NativeProc) KernelString() string { return "proc#<native>" }
