package actor

import (
	"log/slog"

	"github.com/torqlang/torqlang/core/klvm"
)

func (a *Actor) onEnvelope(e Envelope) {
	a.opts.Metrics.MessageDispatched(a.address, e.Kind)
	if a.halted {
		a.onPostHaltEnvelope(e)
		return
	}
	switch e.Kind {
	case KindControl:
		a.onControl(e)
	case KindNotify:
		a.onNotify(e)
	case KindRequest:
		a.onRequest(e)
	case KindResponse:
		a.onResponseBatch([]Envelope{e})
	}
}

// onPostHaltEnvelope implements halt monotonicity: once halted, every
// queued or future request is immediately answered with the halt's
// FailedValue, and notifies are silently dropped. Control envelopes,
// Stop included, are ignored once halted.
func (a *Actor) onPostHaltEnvelope(e Envelope) {
	switch e.Kind {
	case KindControl:
		if e.Control == ControlStop {
			return
		}
	case KindRequest:
		a.answerWithFailure(e, a.haltValue)
	case KindResponse:
		// A response arriving after halt is simply ignored: this actor
		// can make no further progress and already answered (or will
		// answer) any outstanding request with its halt value.
	}
}

func (a *Actor) onControl(e Envelope) {
	switch e.Control {
	case ControlConfigure:
		a.onConfigure(e)
	case ControlSyncVar:
		a.onSyncVars(e.SyncVars)
	case ControlResume:
		a.resumeCompute()
	case ControlAct:
		a.onAct(e)
	}
}

// onAct installs an act() child's initial computation: e.ActBody is
// mirrored into this actor's own graph exactly like a Configure's
// handler closure (see mirrorIntoChildGraph), so an unbound free
// variable on the parent side never blocks this child from running —
// only the particular capture its body ends up touching. The child
// gets one brand-new local Var bound under e.ActTarget, shadowing any
// same-named entry the mirrored capture carries, for the body to bind
// before calling respond(target); respond is wired via requestEnv
// straight back to e.From/e.RequestID, the same way an ask-handler's
// respond answers its own request.
func (a *Actor) onAct(e Envelope) {
	if e.ActBody == nil {
		return
	}
	bodyVar := klvm.NewVar()
	if err := a.mirrorIntoChildGraph(e.ActBody, bodyVar); err != nil {
		a.haltFromError(err, klvm.EmptySpan())
		return
	}
	mirrored, err := klvm.ResolveValue(bodyVar)
	if err != nil {
		a.haltFromError(err, klvm.EmptySpan())
		return
	}
	closure, ok := mirrored.(*klvm.Closure)
	if !ok {
		a.haltFromError(klvm.NewThrow("ActError", "act body did not mirror to a closure"), klvm.EmptySpan())
		return
	}
	req := Envelope{From: e.From, RequestID: e.RequestID}
	bodyEnv := closure.CapturedEnv.Add(klvm.EnvEntry{Ident: e.ActTarget, Var: klvm.NewVar()})
	bodyEnv = requestEnv(bodyEnv, a, &req)
	prior := a.activeRequest
	a.activeRequest = &req
	if a.machine == nil {
		a.machine = klvm.NewMachine(a, closure.Def.Body, bodyEnv)
	} else {
		a.machine.PushStmt(closure.Def.Body, bodyEnv)
	}
	a.runCompute()
	a.activeRequest = prior
}

// onConfigure installs the actor's handler closure by mirroring it
// into this actor's own graph: any free variable the constructor's
// captured environment still has unbound on the parent side becomes a
// fresh local Var with a trigger watching the parent (see
// mirrorIntoChildGraph), so a Configure sent without spawn's
// completeness check (e.g. by an embedding API's ActorBuilder) never
// blocks on a constructor argument the handler body may not even use.
// The handler closure itself, once mirrored, is bound directly — it
// is the actor's handler, applied fresh to each inbound message by
// runHandlerOn, not a constructor invoked once up front.
func (a *Actor) onConfigure(e Envelope) {
	if e.ConfigureCfg == nil {
		return
	}
	handlerVar := a.rootEnv.Get(klvm.IdentHandler)
	if err := a.mirrorIntoChildGraph(e.ConfigureCfg, handlerVar); err != nil {
		a.haltFromError(err, klvm.EmptySpan())
		return
	}
	a.machine = klvm.NewMachine(a, klvm.NewSeqStmt(klvm.EmptySpan()), a.rootEnv)
	a.runCompute()
}

func (a *Actor) onSyncVars(pairs []SyncVarPair) {
	for _, p := range pairs {
		a.watchParentVar(p.ParentVar, p.ChildVar)
	}
}

// watchParentVar implements onParentVarBound: once parentVar resolves,
// bind childVar to a structurally equivalent value built fresh in the
// child's own graph. If parentVar resolves to a record/tuple whose
// fields are not yet all bound, childVar is bound to a partial
// record/tuple of freshly allocated child Vars, and each of those
// Vars gets its own trigger registered recursively — exactly the
// "rewrite P -> (P, P')" recursion onParentVarBound documents for
// partial records.
func (a *Actor) watchParentVar(parentVar, childVar *klvm.Var) {
	parentVar.SetBindCallback(func(_ *klvm.Var, value klvm.Value) {
		if err := a.mirrorIntoChildGraph(value, childVar); err != nil {
			a.haltFromError(err, klvm.EmptySpan())
			return
		}
		a.resumeCompute()
	})
}

func (a *Actor) mirrorIntoChildGraph(value klvm.Value, target *klvm.Var) error {
	// A Closure always goes through mirrorClosure, complete or not: its
	// captured environment needs reparenting onto this actor's own
	// rootEnv so the handler body (and anything created within it,
	// such as an act() callback) can resolve act/import/self/spawn,
	// which are bound per-actor and were never part of the closure's
	// captured frame to begin with.
	if closure, ok := value.(*klvm.Closure); ok {
		mirrored, subPairs := a.mirrorClosure(closure)
		if err := target.BindToValue(mirrored, nil); err != nil {
			return err
		}
		for _, pair := range subPairs {
			a.watchParentVar(pair.ParentVar, pair.ChildVar)
		}
		return nil
	}
	complete, err := klvm.CheckComplete(value)
	if err == nil {
		return target.BindToValue(complete, nil)
	}
	if _, ok := err.(*klvm.WaitError); !ok {
		return err
	}
	// value is a Rec/Tuple with at least one unbound sub-Var; mirror
	// its shape into the child graph with fresh Vars and register a
	// trigger on each, keyed by the corresponding parent Var.
	mirrored, subPairs, err := mirrorPartial(value)
	if err != nil {
		return err
	}
	if err := target.BindToValue(mirrored, nil); err != nil {
		return err
	}
	for _, pair := range subPairs {
		a.watchParentVar(pair.ParentVar, pair.ChildVar)
	}
	return nil
}

// mirrorClosure mirrors v's captured environment one frame deep, the
// same way mirrorPartial mirrors a Rec/Tuple's fields, but also
// reparents the result onto this actor's rootEnv — see
// mirrorIntoChildGraph for why a Closure always needs this regardless
// of whether it is already complete.
func (a *Actor) mirrorClosure(v *klvm.Closure) (*klvm.Closure, []SyncVarPair) {
	var pairs []SyncVarPair
	entries := make([]klvm.EnvEntry, len(v.CapturedEnv.Entries()))
	for i, entry := range v.CapturedEnv.Entries() {
		if entry.Var.IsBound() {
			entries[i] = entry
			continue
		}
		cv := klvm.NewVar()
		pairs = append(pairs, SyncVarPair{ParentVar: entry.Var, ChildVar: cv})
		entries[i] = klvm.EnvEntry{Ident: entry.Ident, Var: cv}
	}
	return &klvm.Closure{Def: v.Def, CapturedEnv: klvm.NewEnv(a.rootEnv, entries...)}, pairs
}

// mirrorPartial builds a structurally matching partial value with
// fresh child-side Vars standing in for every nested parent Var, plus
// the (parentVar, childVar) pairs that still need their own triggers.
func mirrorPartial(value klvm.Value) (klvm.Value, []SyncVarPair, error) {
	switch v := value.(type) {
	case *klvm.Rec:
		b := klvm.NewRecBuilder(v.Label())
		var pairs []SyncVarPair
		for i := 0; i < v.FieldCount(); i++ {
			fv := v.ValueAt(i)
			if pv, ok := fv.(*klvm.Var); ok {
				cv := klvm.NewVar()
				b.AddField(v.FeatureAt(i), cv)
				pairs = append(pairs, SyncVarPair{ParentVar: pv, ChildVar: cv})
				continue
			}
			b.AddField(v.FeatureAt(i), fv)
		}
		return b.Build(), pairs, nil
	case *klvm.Tuple:
		values := make([]klvm.ValueOrVar, v.FieldCount())
		var pairs []SyncVarPair
		for i := 0; i < v.FieldCount(); i++ {
			fv := v.ValueAt(i)
			if pv, ok := fv.(*klvm.Var); ok {
				cv := klvm.NewVar()
				values[i] = cv
				pairs = append(pairs, SyncVarPair{ParentVar: pv, ChildVar: cv})
				continue
			}
			values[i] = fv
		}
		return klvm.NewTuple(v.Label(), values...), pairs, nil
	default:
		return value, nil, nil
	}
}

// onNotify applies the handler to a tell-shaped message: no response
// is owed, so a halt surfaces only as this actor's own failure, never
// as an answer to anyone.
func (a *Actor) onNotify(e Envelope) {
	a.runHandlerOn(e.Message, nil)
}

// onRequest applies the handler to an ask-shaped message. While this
// request is outstanding, activeRequest is set so the respond
// intrinsic knows which Envelope to answer and clears the field (the
// clearing is what distinguishes the ask-handler respond call from a
// free-standing respond on a captured request, per spec).
func (a *Actor) onRequest(e Envelope) {
	prior := a.activeRequest
	a.activeRequest = &e
	a.runHandlerOn(e.Message, &e)
	a.activeRequest = prior
}

// runHandlerOn applies the actor's handler closure to one inbound
// message. It binds the closure's body environment by hand rather
// than going through ApplyStmt, because respond must be reachable
// from inside the body scoped to this exact request (or, for a
// notify, always-throwing) — something that requires extending the
// closure's own captured environment, not the call site's, and the
// kernel's Lit operand only carries values already known Complete,
// which a long-lived handler closure generally is not.
func (a *Actor) runHandlerOn(msg klvm.Complete, req *Envelope) {
	handlerVal, err := klvm.ResolveValue(a.rootEnv.Get(klvm.IdentHandler))
	if err != nil {
		a.haltFromError(err, klvm.EmptySpan())
		return
	}
	closure, ok := handlerVal.(*klvm.Closure)
	if !ok {
		a.haltFromError(klvm.NewThrow("HandlerError", "actor handler is not a procedure"), klvm.EmptySpan())
		return
	}
	if len(closure.Def.Params) != 1 {
		a.haltFromError(&klvm.InvalidArgCountError{Expected: 1, Actual: len(closure.Def.Params), Context: "actor handler"}, klvm.EmptySpan())
		return
	}
	bodyEnv := klvm.NewEnv(closure.CapturedEnv, klvm.EnvEntry{Ident: closure.Def.Params[0], Var: klvm.NewBoundVar(msg)})
	if req != nil {
		bodyEnv = requestEnv(bodyEnv, a, req)
	} else {
		bodyEnv = notifyEnv(bodyEnv)
	}
	if a.machine == nil {
		a.machine = klvm.NewMachine(a, closure.Def.Body, bodyEnv)
	} else {
		a.machine.PushStmt(closure.Def.Body, bodyEnv)
	}
	a.runCompute()
}

func (a *Actor) runCompute() {
	advice := a.machine.Compute(a.opts.ComputeBudget)
	a.opts.Metrics.ComputeTimeSlice(a.address, advice.InstructionsRun)
	switch advice.Kind {
	case klvm.Completed:
		// Nothing further to do until the next message arrives.
	case klvm.Preempt:
		a.scheduleContinue()
	case klvm.Wait:
		advice.Barrier.SetBindCallback(func(*klvm.Var, klvm.Value) {
			a.scheduleContinue()
		})
	case klvm.Halt:
		a.onHalt(advice)
	}
}

// scheduleContinue re-enters this actor's dispatch loop to resume a
// preempted or now-unblocked Machine, via a control envelope rather
// than calling runCompute synchronously, so resumption always happens
// on this actor's own goroutine and respects pause/step control.
func (a *Actor) scheduleContinue() {
	a.TrySend(Envelope{Priority: PriorityControl, Kind: KindControl, Control: ControlResume})
}

func (a *Actor) resumeCompute() {
	if a.halted || a.machine == nil {
		return
	}
	a.runCompute()
}

func (a *Actor) onHalt(advice klvm.Advice) {
	fv := klvm.NewFailedValueFromHalt(klvm.Str(a.address), klvm.EmptySpan(), advice)
	a.halt(fv)
}

func (a *Actor) haltFromError(err error, span klvm.SourceSpan) {
	thrown := klvm.NewNativeThrow(err)
	a.halt(klvm.NewFailedValueFromHalt(klvm.Str(a.address), span, klvm.Advice{Kind: klvm.Halt, Thrown: thrown.Value}))
}

// halt implements onUnhandledError: the actor is marked permanently
// halted (monotonic, never cleared), the active request if any is
// answered with fv, and every remaining and future mailbox entry is
// drained per onPostHaltEnvelope.
func (a *Actor) halt(fv *klvm.FailedValue) {
	if a.halted {
		return
	}
	a.halted = true
	a.haltValue = fv
	a.log.Error("actor halted", slog.String("details", fv.ToDetailsString()))
	a.opts.Metrics.ActorHalted(a.address)
	if a.activeRequest != nil {
		a.answerWithFailure(*a.activeRequest, fv)
		a.activeRequest = nil
	}
	for {
		e, ok := a.mailbox.RemoveNext()
		if !ok {
			break
		}
		a.onPostHaltEnvelope(e)
	}
}

func (a *Actor) answerWithFailure(req Envelope, fv *klvm.FailedValue) {
	a.sendResponseTo(req.From, req.RequestID, fv)
}

// sendResponseTo delivers value as a response envelope to addr via the
// owning registry. addr may name a live Actor or, for a request that
// originated from Go code through core/system.RequestClient, a
// non-actor reply sink. If neither exists (already reaped, or never
// registered), the response is dropped.
func (a *Actor) sendResponseTo(addr Address, rid RequestID, value klvm.ValueOrVar) {
	a.system.Deliver(addr, Envelope{
		Priority:      PriorityResponse,
		Kind:          KindResponse,
		From:          a.address,
		RequestID:     rid,
		ResponseValue: value,
	})
}

// onResponseBatch implements the response-binding fixed point:
// selectable starts as this batch plus every response still parked in
// suspended from an earlier turn (a response can legitimately depend
// on one delivered later — see StreamObj.bindResponse). Repeated
// passes bind what they can; anything that raises *WaitError moves to
// next and is retried only within the same pass as long as some other
// response in that pass made progress. Once a full pass binds nothing,
// the remainder parks in suspended and this turn ends — there is no
// busy retry. suspended responses are reconsidered only when a future
// response arrives and onResponseBatch runs again.
func (a *Actor) onResponseBatch(batch []Envelope) {
	if a.halted {
		return
	}
	a.selectable = append(a.selectable, batch...)
	a.selectable = append(a.selectable, a.suspended...)
	a.suspended = nil
	progress := true
	madeProgress := false
	for progress && len(a.selectable) > 0 {
		progress = false
		var next []Envelope
		for _, e := range a.selectable {
			if err := bindResponseValue(e.RequestID, e.ResponseValue); err != nil {
				if _, ok := err.(*klvm.WaitError); ok {
					next = append(next, e)
					continue
				}
				a.haltFromError(err, klvm.EmptySpan())
				return
			}
			progress = true
			madeProgress = true
		}
		a.selectable = next
	}
	a.suspended = a.selectable
	a.selectable = nil
	// Per spec, a pass that binds nothing parks everything into
	// suspended and returns without running compute; only a batch that
	// made progress on at least one response is worth resuming for.
	if madeProgress {
		a.resumeCompute()
	}
}

// bindResponseValue dispatches on rid's concrete type: a Var gets the
// value bound directly; a stream gets it routed through
// StreamObj.bindResponse, which can itself raise *WaitError when the
// value it was handed is still an unbound Var on the publisher's side.
func bindResponseValue(rid RequestID, value klvm.ValueOrVar) error {
	switch r := rid.(type) {
	case VarRequestID:
		return r.Var.BindToValueOrVar(value, nil)
	case StreamRequestID:
		return r.Stream.bindResponse(value)
	default:
		return nil
	}
}
