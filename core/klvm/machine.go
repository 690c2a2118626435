package klvm

// MachineOwner is implemented by whatever hosts a Machine — in this
// runtime, always an actor. The intrinsics (act, import, self and
// spawn in the root environment, plus respond, bound per message) are
// NativeProcs supplied by the owner and call back through this
// interface; klvm itself never references the actor package,
// breaking what would otherwise be an import cycle (klvm needs actor
// behavior, actor needs the Machine type).
type MachineOwner interface {
	// Trace receives a best-effort diagnostic string; the default
	// owner used in tests may ignore it.
	Trace(msg string)
}

// AdviceKind classifies the result of a Compute call.
type AdviceKind int

const (
	// Completed means the instruction stack ran empty: the computation
	// finished normally.
	Completed AdviceKind = iota
	// Preempt means the budget was exhausted with instructions still
	// pending; the caller should reschedule a further Compute call.
	Preempt
	// Wait means execution is blocked on Barrier becoming bound; the
	// caller should register a continuation (typically via
	// Barrier.SetBindCallback) and call Compute again once it fires.
	Wait
	// Halt means an unrecoverable error escaped every enclosing try: an
	// uncaught ThrowSignal, a native Go error, or a touched FailedValue
	// (which is never caught by try/catch regardless of nesting).
	Halt
)

// Advice is returned by Compute describing why it stopped.
type Advice struct {
	Kind    AdviceKind
	Barrier *Var  // set when Kind == Wait
	Thrown  Value // set when Kind == Halt and the cause was a kernel throw
	Native  error // set when Kind == Halt and the cause was a native Go error (no kernel throw value)
	// InstructionsRun is how many Stmt.Exec calls this Compute call
	// made before stopping, for a host to report as a compute-time-slice
	// metric.
	InstructionsRun int
}

// Machine runs one stack of StackFrames to completion, suspension, or
// halt, spending at most one unit of budget per instruction executed
// so a host actor can time-slice many machines fairly.
type Machine struct {
	Owner MachineOwner
	stack *StackFrame
}

func NewMachine(owner MachineOwner, entry Stmt, env *Env) *Machine {
	return &Machine{Owner: owner, stack: frame(entry, env, nil)}
}

// PushStmt adds a new top-level statement to run after the current
// stack drains, used by the actor layer to feed an ask/tell handler
// invocation onto an already-constructed Machine instead of building
// a fresh one per message.
func (m *Machine) PushStmt(stmt Stmt, env *Env) {
	m.stack = frame(stmt, env, m.stack)
}

// Idle reports whether the instruction stack is empty.
func (m *Machine) Idle() bool { return m.stack == nil }

// Compute runs up to budget instructions. Each instruction is
// attempted atomically: on success its return frames replace the
// current one; on *WaitError the current frame is left untouched (it
// will fully re-execute, including any operand resolution already
// performed, the next time Compute is called) so partial side effects
// never leak across a suspension.
func (m *Machine) Compute(budget int) Advice {
	ran := 0
	for i := 0; i < budget; i++ {
		if m.stack == nil {
			return Advice{Kind: Completed, InstructionsRun: ran}
		}
		top := m.stack
		frames, err := top.Stmt.Exec(m, top.Env)
		ran++
		if err == nil {
			m.stack = appendFrames(frames, top.Next)
			continue
		}
		switch e := err.(type) {
		case *WaitError:
			return Advice{Kind: Wait, Barrier: e.Barrier, InstructionsRun: ran}
		case *TouchedFailedValueError:
			// A touched FailedValue is contagious, not a program-level
			// throw: it halts straight through any enclosing try, per
			// spec.md error kind 5.
			return Advice{Kind: Halt, Thrown: e.FV, InstructionsRun: ran}
		case *ThrowSignal:
			if handled, rest := m.catchAt(top.Next, e.Value); handled != nil {
				m.stack = frame(handled.Stmt, handled.Env, rest)
				continue
			}
			return Advice{Kind: Halt, Thrown: e.Value, InstructionsRun: ran}
		default:
			thrown := NewNativeThrow(err)
			if handled, rest := m.catchAt(top.Next, thrown.Value); handled != nil {
				m.stack = frame(handled.Stmt, handled.Env, rest)
				continue
			}
			return Advice{Kind: Halt, Native: err, InstructionsRun: ran}
		}
	}
	if m.stack == nil {
		return Advice{Kind: Completed, InstructionsRun: ran}
	}
	return Advice{Kind: Preempt, InstructionsRun: ran}
}

// appendFrames relinks frames (given top-to-bottom, as returned by a
// Stmt's Exec) so that frames[0] is on top, each frame's Next points
// to the one after it, and the last frame's Next is tail. Any Next
// pointers already present in the slice (e.g. from pushChain) are
// overwritten, so Exec implementations need not link correctly
// themselves.
func appendFrames(frames []*StackFrame, tail *StackFrame) *StackFrame {
	if len(frames) == 0 {
		return tail
	}
	for i := len(frames) - 1; i >= 0; i-- {
		if i == len(frames)-1 {
			frames[i].Next = tail
		} else {
			frames[i].Next = frames[i+1]
		}
	}
	return frames[0]
}

// catchAt walks the stack starting at start looking for a tryGuardStmt
// whose enclosing TryStmt.Pattern matches thrown. If found, it returns
// a synthetic frame to run the catch body (with pattern bindings
// applied) plus the remaining stack below the guard; otherwise it
// returns (nil, nil) and the throw must propagate as a Halt.
func (m *Machine) catchAt(start *StackFrame, thrown Value) (*StackFrame, *StackFrame) {
	for cur := start; cur != nil; cur = cur.Next {
		guard, ok := cur.Stmt.(*tryGuardStmt)
		if !ok {
			continue
		}
		if guard.try.Pattern == nil {
			continue
		}
		matchEnv, matched, err := guard.try.Pattern.Match(thrown, guard.env)
		if err != nil || !matched {
			continue
		}
		catch := guard.try.Catch
		if catch == nil {
			catch = &SeqStmt{}
		}
		return frame(catch, matchEnv, nil), cur.Next
	}
	return nil, nil
}
