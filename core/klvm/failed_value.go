package klvm

import (
	"fmt"

	"github.com/torqlang/torqlang/internal/reflector"
)

// FailedValue is the permanent, Complete value an actor's free Vars
// settle to once that actor halts. It behaves as an ordinary Complete
// value for unification purposes (two FailedValues referring to the
// same halt unify trivially; anything else fails to unify against
// one) but callers that touch it are expected to recognize it and
// propagate the failure rather than operate on it as data.
type FailedValue struct {
	completeBase

	// ActorAddress identifies the actor whose halt produced this value.
	ActorAddress Value

	// Error is the top-level failure: either a kernel error record (an
	// uncaught throw) or a wrapped native Go error.
	Error Value

	// Current is the instruction that was executing when the halt
	// occurred, for diagnostics.
	Current SourceSpan

	// Cause chains to the FailedValue this one is wrapping, when the
	// halt was itself caused by touching a remote actor's FailedValue
	// (propagating through a response).
	Cause *FailedValue

	// NativeCause is set instead of Cause when the halt came directly
	// from a Go error rather than a kernel throw.
	NativeCause error
}

func (f *FailedValue) KernelString() string {
	return "failed#{address: " + KernelStringOf(f.ActorAddress) + ", error: " + KernelStringOf(f.Error) + "}"
}

// Error satisfies the Go error interface so a FailedValue can be
// returned directly by embedding-API calls such as
// core/system.RequestClient.Ask.
func (f *FailedValue) Error() string { return f.ToDetailsString() }

// ToDetailsString renders the full failure chain for logs, from this
// failure back through every wrapped cause.
func (f *FailedValue) ToDetailsString() string {
	s := fmt.Sprintf("actor %s failed: %s", KernelStringOf(f.ActorAddress), KernelStringOf(f.Error))
	if f.NativeCause != nil {
		s += fmt.Sprintf(" (native cause [%s]: %v)", reflector.TypeInfoOf(f.NativeCause).Name, f.NativeCause)
	}
	if f.Cause != nil {
		s += "\ncaused by: " + f.Cause.ToDetailsString()
	}
	return s
}

// NewFailedValueFromHalt builds a FailedValue from a Compute Halt
// advice, wrapping either the thrown kernel value or the native Go
// error, whichever the advice carries.
func NewFailedValueFromHalt(actorAddress Value, span SourceSpan, advice Advice) *FailedValue {
	fv := &FailedValue{ActorAddress: actorAddress, Current: span}
	if advice.Thrown != nil {
		fv.Error = advice.Thrown
		if cause, ok := advice.Thrown.(*FailedValue); ok {
			fv.Cause = cause
		}
	} else {
		fv.Error = NewNativeThrow(advice.Native).Value
		fv.NativeCause = advice.Native
	}
	return fv
}

// IsFailedValue reports whether v itself is a *FailedValue (a halt
// propagated as ordinary data); it does not look inside records or
// other containers. checkTouch uses it to decide whether a resolved
// operand is a contagious failure that should halt the toucher.
func IsFailedValue(v Value) (*FailedValue, bool) {
	fv, ok := v.(*FailedValue)
	return fv, ok
}

// TouchedFailedValueError is the Compute-level signal for spec.md's
// error kind 5: an operand that resolves to a FailedValue was consumed
// computationally (arithmetic, unification, select, apply, condition)
// rather than merely carried along as message data. Machine.Compute
// recognizes it and halts directly with FV attached, bypassing
// try/catch — a touched FailedValue is contagious, not a catchable
// program-level throw.
type TouchedFailedValueError struct {
	FV *FailedValue
}

func (e *TouchedFailedValueError) Error() string {
	return "touched failed value: " + e.FV.ToDetailsString()
}

// checkTouch returns a *TouchedFailedValueError if v is a FailedValue,
// for call sites that resolve an operand in order to operate on it.
// Call sites that only forward a resolved value onward as data (a
// stream tail, a case-dispatch scrutinee) must not call this — that is
// exactly the "propagates silently" half of the spec's touch policy.
func checkTouch(v Value) error {
	if fv, ok := IsFailedValue(v); ok {
		return &TouchedFailedValueError{FV: fv}
	}
	return nil
}
