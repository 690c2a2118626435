package actor

import "github.com/torqlang/torqlang/core/klvm"

// newRootEnv builds the environment every handler body runs in: the
// self/spawn/import intrinsics bound once per actor, plus a fresh
// unbound $handler slot that onConfigure fills in. respond is
// deliberately not bound here — it is bound fresh per message by
// requestEnv/notifyEnv, closing over the specific request (or lack of
// one) that invocation is answering, matching the way the kernel
// source scopes respond to the request it was given for rather than
// to a single actor-wide mutable slot.
func newRootEnv(owner *Actor) *klvm.Env {
	entries := []klvm.EnvEntry{
		{Ident: klvm.IdentSelf, Var: klvm.NewBoundVar(selfIntrinsic(owner))},
		{Ident: klvm.IdentSpawn, Var: klvm.NewBoundVar(spawnIntrinsic(owner))},
		{Ident: klvm.IdentAct, Var: klvm.NewBoundVar(actIntrinsic(owner))},
		{Ident: klvm.IdentImport, Var: klvm.NewBoundVar(importIntrinsic(owner))},
		{Ident: klvm.IdentHandler, Var: klvm.NewVar()},
	}
	return klvm.NewEnv(nil, entries...)
}

// requestEnv extends base with a respond bound to req: calling it
// sends req's answer and, because this is the ask-handler variant
// (respond invoked synchronously while still processing req), clears
// owner.activeRequest so a later, unrelated respond call inside the
// same handler body cannot be mistaken for answering this request.
func requestEnv(base *klvm.Env, owner *Actor, req *Envelope) *klvm.Env {
	answered := false
	respond := klvm.NativeProc(func(args []klvm.ValueOrVar, _ *klvm.Env, _ *klvm.Machine) ([]*klvm.StackFrame, error) {
		if len(args) != 1 {
			return nil, &klvm.InvalidArgCountError{Expected: 1, Actual: len(args), Context: "respond"}
		}
		if answered {
			return nil, klvm.NewThrow("RespondError", "respond called more than once for the same request")
		}
		val, err := respondValue(owner, args[0])
		if err != nil {
			return nil, err
		}
		answered = true
		if owner.activeRequest == req {
			owner.activeRequest = nil
		}
		owner.sendResponseTo(req.From, req.RequestID, val)
		return nil, nil
	})
	return base.Add(klvm.EnvEntry{Ident: klvm.IdentRespond, Var: klvm.NewBoundVar(respond)})
}

// respondValue resolves value to a Complete value and, if it is
// already a FailedValue (the answer to this handler's own request was
// itself a halted remote actor's failure), wraps it in a new
// FailedValue naming owner and the current instruction as outer
// context, so a chain of asks preserves every actor address it passed
// through rather than exposing only the innermost one. Matches
// spec.md's respond contract: resolve, checkComplete, wrap-if-failed.
func respondValue(owner *Actor, value klvm.ValueOrVar) (klvm.Complete, error) {
	complete, err := klvm.CheckComplete(value)
	if err != nil {
		return nil, err
	}
	if cause, ok := complete.(*klvm.FailedValue); ok {
		return klvm.NewFailedValueFromHalt(klvm.Str(owner.address), klvm.EmptySpan(), klvm.Advice{Kind: klvm.Halt, Thrown: cause}), nil
	}
	return complete, nil
}

// notifyEnv extends base with a respond that always throws: a notify
// carries no request to answer, matching the spec's requirement that
// respond inside a tell handler is a programmer error, not a no-op.
func notifyEnv(base *klvm.Env) *klvm.Env {
	respond := klvm.NativeProc(func([]klvm.ValueOrVar, *klvm.Env, *klvm.Machine) ([]*klvm.StackFrame, error) {
		return nil, klvm.NewNativeThrow(errRespondOutsideRequest)
	})
	return base.Add(klvm.EnvEntry{Ident: klvm.IdentRespond, Var: klvm.NewBoundVar(respond)})
}

// RespondFreeProc implements the free-procedure variant of respond
// exposed through the "system" module (onCallbackToRespondFromProc in
// the original), for use inside act blocks and other free procedures
// that were not handed a respond bound directly to the request they
// are answering. Unlike the ask-handler respond bound by requestEnv, it
// is not closed over a single owning actor: the "system" module record
// is shared across every actor in a system, so it recovers the calling
// actor from the Machine it runs on instead. It answers that actor's
// current activeRequest but, unlike the ask-handler variant, never
// clears it: a free procedure may run before or alongside the handler
// body that owns the request, so only the handler's own respond call
// decides when the request is considered answered.
var RespondFreeProc = klvm.NativeProc(func(args []klvm.ValueOrVar, _ *klvm.Env, m *klvm.Machine) ([]*klvm.StackFrame, error) {
	if len(args) != 1 {
		return nil, &klvm.InvalidArgCountError{Expected: 1, Actual: len(args), Context: "respond"}
	}
	owner, ok := m.Owner.(*Actor)
	if !ok {
		return nil, klvm.NewNativeThrow(errRespondOutsideRequest)
	}
	req := owner.activeRequest
	if req == nil {
		return nil, klvm.NewNativeThrow(errRespondOutsideRequest)
	}
	val, err := respondValue(owner, args[0])
	if err != nil {
		return nil, err
	}
	owner.sendResponseTo(req.From, req.RequestID, val)
	return nil, nil
})

var errRespondOutsideRequest = respondOutsideRequestError{}

type respondOutsideRequestError struct{}

func (respondOutsideRequestError) Error() string { return "respond called outside of a request" }

func (respondOutsideRequestError) ToThrowRec() *klvm.CompleteRec {
	return klvm.NewErrorRec("RespondError", "respond called outside of a request")
}

// selfIntrinsic implements the self() intrinsic. Per the decision
// recorded for this runtime's open question on self-reference, it is
// intentionally left unimplemented: returning an actor's own address
// as a first-class value requires a kernel-visible actor-reference
// type this runtime does not otherwise need, so self() always raises
// a clearly labeled error instead of silently returning a stand-in.
func selfIntrinsic(owner *Actor) klvm.NativeProc {
	return func(args []klvm.ValueOrVar, _ *klvm.Env, _ *klvm.Machine) ([]*klvm.StackFrame, error) {
		return nil, klvm.NewThrow("NotImplementedError", "self() is not implemented")
	}
}

// importIntrinsic implements import(qualifier, selections). "system"
// is special-cased to the always-available system module; any other
// qualifier is resolved through the owning ActorSystem's moduleAt
// registry. The kernel source's optional third "alias" argument is
// not supported: every import call here is strictly two-argument.
func importIntrinsic(owner *Actor) klvm.NativeProc {
	return func(args []klvm.ValueOrVar, env *klvm.Env, m *klvm.Machine) ([]*klvm.StackFrame, error) {
		if len(args) != 2 {
			return nil, &klvm.InvalidArgCountError{Expected: 2, Actual: len(args), Context: "import"}
		}
		qualifier, err := klvm.ResolveValue(args[0])
		if err != nil {
			return nil, err
		}
		qualStr, ok := qualifier.(klvm.Str)
		if !ok {
			return nil, klvm.NewThrow("ImportError", "import qualifier must be a string")
		}
		selectionsTuple, err := klvm.ResolveValue(args[1])
		if err != nil {
			return nil, err
		}
		tup, ok := selectionsTuple.(*klvm.Tuple)
		if !ok {
			ct, ok2 := selectionsTuple.(*klvm.CompleteTuple)
			if !ok2 {
				return nil, klvm.NewThrow("ImportError", "import selections must be a tuple")
			}
			tup = ct.Tuple
		}
		var mod *klvm.CompleteRec
		if string(qualStr) == "system" {
			mod = owner.system.SystemModule()
		} else {
			m2, ok := owner.system.ModuleAt(string(qualStr))
			if !ok {
				return nil, klvm.NewThrow("ImportError", "no such module: "+string(qualStr))
			}
			mod = m2
		}
		var frames []*klvm.StackFrame
		for i := 0; i < tup.FieldCount(); i++ {
			selVal, err := klvm.ResolveValue(tup.ValueAt(i))
			if err != nil {
				return nil, err
			}
			selIdent, ok := selVal.(klvm.Str)
			if !ok {
				return nil, klvm.NewThrow("ImportError", "import selection must be a string naming a binding")
			}
			entry, ok := mod.FindValue(klvm.Str(selIdent))
			if !ok {
				return nil, klvm.NewThrow("ImportError", "module has no member: "+string(selIdent))
			}
			v, ok := env.Lookup(klvm.Ident(selIdent))
			if !ok {
				return nil, klvm.NewThrow("ImportError", "import target not declared: "+string(selIdent))
			}
			if err := v.BindToValue(entry, nil); err != nil {
				return nil, err
			}
		}
		return frames, nil
	}
}
