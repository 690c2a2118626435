package klvm

import "fmt"

// UnificationError is raised when bind() finds two already-bound
// values that are structurally incompatible. It is non-recoverable
// within the current instruction and surfaces to user code as an
// uncaught throw of error#{name: "UnificationError", ...}.
type UnificationError struct {
	Left, Right Value
}

func (e *UnificationError) Error() string {
	return fmt.Sprintf("cannot unify %s with %s", KernelStringOf(e.Left), KernelStringOf(e.Right))
}

// ToThrowRec renders the error as the kernel-visible error record a
// throw statement would carry.
func (e *UnificationError) ToThrowRec() *CompleteRec {
	return NewErrorRec("UnificationError", e.Error())
}

// FeatureNotFoundError is raised by select/select_apply when a record
// or tuple has no such feature, or when selecting into a value type
// that forbids selection entirely (ActorCfg, NativeObj).
type FeatureNotFoundError struct {
	On      Value
	Feature Feature
}

func (e *FeatureNotFoundError) Error() string {
	return fmt.Sprintf("feature not found: %s on %s", KernelStringOf(e.Feature), KernelStringOf(e.On))
}

func (e *FeatureNotFoundError) ToThrowRec() *CompleteRec {
	return NewErrorRec("FeatureNotFoundError", e.Error())
}

// InvalidArgCountError is raised by intrinsics and native procedures
// when called with the wrong number of arguments.
type InvalidArgCountError struct {
	Expected int
	Actual   int
	Context  string
}

func (e *InvalidArgCountError) Error() string {
	return fmt.Sprintf("%s: expected %d args, got %d", e.Context, e.Expected, e.Actual)
}

func (e *InvalidArgCountError) ToThrowRec() *CompleteRec {
	return NewErrorRec("InvalidArgCountError", e.Error())
}

// NewErrorRec builds the standard error#{name: ..., message: ...}
// record used for every KLVM-surfaced throw.
func NewErrorRec(name, message string) *CompleteRec {
	b := NewCompleteRecBuilder(Str("error"))
	b.AddField(Str("name"), Str(name))
	b.AddField(Str("message"), Str(message))
	return b.Build()
}

// NewThrow builds the error#{name, message} record NewErrorRec
// describes and wraps it as a *ThrowSignal, ready to return as the
// error result of a Stmt.Exec or NativeProc call.
func NewThrow(name, message string) *ThrowSignal {
	return &ThrowSignal{Value: NewErrorRec(name, message)}
}

// ThrowSignal carries a thrown kernel value up the Go call stack until
// a TryStmt catches it (by pattern) or it escapes the Machine as an
// uncaught throw.
type ThrowSignal struct {
	Value Value
}

func (e *ThrowSignal) Error() string {
	return "throw: " + KernelStringOf(e.Value)
}

// NewNativeThrow wraps a Go error raised by native/intrinsic code into
// the same error#{name, message} shape a kernel `throw` statement
// would produce, tagging it with the native Go type name as the error
// kind when the error does not already carry a ToThrowRec.
func NewNativeThrow(err error) *ThrowSignal {
	type kernelError interface{ ToThrowRec() *CompleteRec }
	if ke, ok := err.(kernelError); ok {
		return &ThrowSignal{Value: ke.ToThrowRec()}
	}
	return &ThrowSignal{Value: NewErrorRec(fmt.Sprintf("%T", err), err.Error())}
}
