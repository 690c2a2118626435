package klvm

import (
	"fmt"
	"sync/atomic"
)

// BindCallback observes a Var transitioning from unbound to bound. It
// fires exactly once, in registration order, with the value the
// representative was bound to.
type BindCallback func(v *Var, value Value)

var varSeq atomic.Uint64

// Var is a single-assignment dataflow cell. It starts unbound and may
// receive at most one non-contradictory binding. Two unbound Vars may
// be unified, in which case they share a union-find representative and
// a merged callback list.
//
// A Var's payload, once bound, never changes identity; nested Vars
// reachable through the payload may still be unbound and bind later
// (see CheckComplete).
type Var struct {
	id int64

	// parent is non-nil while this Var is unbound and has been unified
	// into another Var's equivalence class. Find() collapses chains.
	parent *Var

	bound bool
	value Value

	callbacks []BindCallback
}

func NewVar() *Var {
	return &Var{id: int64(varSeq.Add(1))}
}

// NewBoundVar creates a Var already bound to value. Used when an
// operand is known Complete up front (e.g. literal constants, or a
// SyncVar payload).
func NewBoundVar(value Value) *Var {
	return &Var{id: int64(varSeq.Add(1)), bound: true, value: value}
}

func (v *Var) isValueOrVar() {}

func (v *Var) String() string {
	return fmt.Sprintf("$var%d", v.id)
}

// find returns the canonical representative of v's equivalence class,
// collapsing the parent chain as it walks (path compression).
func (v *Var) find() *Var {
	root := v
	for root.parent != nil {
		root = root.parent
	}
	// path compression
	for v.parent != nil {
		next := v.parent
		v.parent = root
		v = next
	}
	return root
}

// ResolveValueOrVar walks the representative chain and returns either
// the bound Value or the canonical unbound *Var.
func (v *Var) ResolveValueOrVar() ValueOrVar {
	rep := v.find()
	if rep.bound {
		return rep.value
	}
	return rep
}

// IsBound reports whether v's representative has a binding.
func (v *Var) IsBound() bool {
	return v.find().bound
}

// SetBindCallback registers a callback fired exactly once when v's
// representative becomes bound. If it is already bound, the callback
// fires immediately (synchronously) with the current value.
func (v *Var) SetBindCallback(cb BindCallback) {
	rep := v.find()
	if rep.bound {
		cb(rep, rep.value)
		return
	}
	rep.callbacks = append(rep.callbacks, cb)
}

// BindToValue implements dataflow unification of the representative
// with value. env is reserved for future module-qualified binding
// diagnostics and may be nil.
func (v *Var) BindToValue(value Value, _ *Env) error {
	rep := v.find()
	if !rep.bound {
		rep.bound = true
		rep.value = value
		cbs := rep.callbacks
		rep.callbacks = nil
		for _, cb := range cbs {
			cb(rep, value)
		}
		return nil
	}
	return unify(rep.value, value)
}

// BindToValueOrVar unifies v with another ValueOrVar: Var-to-Var union,
// or Var-to-Value binding.
func (v *Var) BindToValueOrVar(other ValueOrVar, env *Env) error {
	if ov, ok := other.(*Var); ok {
		return v.unifyVar(ov)
	}
	return v.BindToValue(other.(Value), env)
}

// unifyVar merges two equivalence classes of unbound Vars, or, if one
// side is already bound, delegates to BindToValue.
func (v *Var) unifyVar(o *Var) error {
	r1 := v.find()
	r2 := o.find()
	if r1 == r2 {
		return nil
	}
	switch {
	case r1.bound && r2.bound:
		return unify(r1.value, r2.value)
	case r1.bound && !r2.bound:
		return r2.BindToValue(r1.value, nil)
	case !r1.bound && r2.bound:
		return r1.BindToValue(r2.value, nil)
	default:
		// Merge two unbound classes: r2 becomes a child of r1.
		r2.parent = r1
		r1.callbacks = append(r1.callbacks, r2.callbacks...)
		r2.callbacks = nil
		return nil
	}
}

// WaitError is the interpreter's suspension signal: progress requires
// Barrier to become bound. It is never user-visible; the Machine
// catches it at the instruction boundary.
type WaitError struct {
	Barrier *Var
}

func (e *WaitError) Error() string {
	return "wait: " + e.Barrier.String() + " is unbound"
}

// ResolveValue resolves vv fully to a Value, raising *WaitError if the
// representative is still unbound.
func ResolveValue(vv ValueOrVar) (Value, error) {
	switch t := vv.(type) {
	case *Var:
		r := t.ResolveValueOrVar()
		if rv, ok := r.(*Var); ok {
			return nil, &WaitError{Barrier: rv}
		}
		return r.(Value), nil
	case Value:
		return t, nil
	default:
		panic(fmt.Sprintf("not a ValueOrVar: %#v", vv))
	}
}

// CheckComplete resolves vv and verifies it is transitively Complete.
// Records, tuples, and closures recurse into their components; any
// unbound sub-Var yields *WaitError carrying that sub-Var as the
// barrier.
func CheckComplete(vv ValueOrVar) (Complete, error) {
	val, err := ResolveValue(vv)
	if err != nil {
		return nil, err
	}
	return checkValueComplete(val)
}

func checkValueComplete(val Value) (Complete, error) {
	switch t := val.(type) {
	case Complete:
		return t, nil
	case *Rec:
		return t.checkComplete()
	case *Tuple:
		return t.checkComplete()
	case *Closure:
		return t.checkComplete()
	case *ActorCfg:
		return t.checkComplete()
	default:
		panic(fmt.Sprintf("value has no completeness rule: %#v", val))
	}
}
