package klvm

import "github.com/torqlang/torqlang/internal/reflector"

// Obj marks an opaque native object: a value whose internals are not
// kernel-visible structure (records/tuples) but which still
// participates in select/apply via its own Select method. Actor
// references, streams, native iterators, and ActorCfg all implement
// Obj.
type Obj interface {
	Value
	Select(feature Feature) (ValueOrVar, error)
}

// CompleteObj is an Obj that is always Complete (it holds no unbound
// Vars by construction — actor references and class-like singletons
// fall in this category).
type CompleteObj interface {
	Obj
	Complete
}

// OpaqueValue is embedded by Obj implementations that want identity
// semantics and a default KernelString.
type OpaqueValue struct {
	completeBase
	TypeName string
}

func (o OpaqueValue) KernelString() string { return "<" + o.TypeName + ">" }

// NativeObj wraps an arbitrary Go value that an embedding-API caller
// wants to pass into a request or notify without going through the
// kernel's record/tuple structure. Its TypeName is derived once via
// internal/reflector rather than hardcoded, so a caller needs no
// boilerplate beyond NewNativeObj to get a sensible KernelString and
// FailedValue label for whatever type they handed in. Select always
// errors: a native value carries no kernel-visible structure.
type NativeObj struct {
	OpaqueValue
	Go any
}

func NewNativeObj(v any) *NativeObj {
	return &NativeObj{OpaqueValue: opaqueValueFor(v), Go: v}
}

func opaqueValueFor(v any) OpaqueValue {
	return OpaqueValue{TypeName: reflector.TypeInfoOf(v).Name}
}

func (n *NativeObj) Select(feature Feature) (ValueOrVar, error) {
	return nil, &FeatureNotFoundError{On: n, Feature: feature}
}

var _ CompleteObj = (*NativeObj)(nil)

// Iter marks a procedure that advances an iteration source one step
// per application, binding its single argument to the next value (or
// Eof at the end). Matches the spec's stream iteration contract.
type Iter interface {
	Proc
}

const IterArgCount = 1

// IterSource is implemented by values that can be iterated with a
// `for` statement (currently only StreamObj).
type IterSource interface {
	Obj
	Iter() ValueOrVar
}
