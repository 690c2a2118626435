package actor

import "github.com/torqlang/torqlang/core/klvm"

// Priority orders an actor's mailbox. Lower values are serviced
// first. The bubble-swap insertion rule (see Mailbox.Insert) moves a
// newly inserted envelope ahead of strictly lower-priority entries
// already queued, never past an entry of equal priority, so arrival
// order within a priority is always preserved.
type Priority int

const (
	// PriorityControl carries Pause/Resume/Stop/Configure/Act/Resume(child)
	// messages: always serviced before anything else.
	PriorityControl Priority = 0
	// PriorityResponse carries answers to requests this actor issued
	// (ask calls it made on another actor, or an act child's respond).
	PriorityResponse Priority = 1
	// PriorityMessage carries ordinary notify/request envelopes sent by
	// other actors.
	PriorityMessage Priority = 2
)

// Envelope is one unit of mailbox traffic.
type Envelope struct {
	Priority Priority
	Kind     EnvelopeKind
	From     Address

	// Notify/Request payload.
	Message klvm.Complete

	// RequestID correlates a KindResponse envelope with whatever is
	// waiting for it back on the sender's side: a Var to bind directly
	// (VarRequestID), or a StreamObj mid-fetch from its publisher
	// (StreamRequestID). Carried on the outgoing Request/Act envelope
	// and copied unchanged onto the eventual Response.
	RequestID RequestID

	// Response payload, set when Kind == KindResponse: the value being
	// delivered to whatever RequestID names.
	ResponseValue klvm.ValueOrVar

	// Control payload, set when Kind == KindControl.
	Control ControlKind
	// SyncVars carries the (parent Var, child Var) pairs a SyncVar
	// control message asks the receiving actor to watch (see onSyncVars).
	SyncVars []SyncVarPair
	// ConfigureCfg is the handler closure built from the spawned
	// ActorCfg (its constructor with the arguments folded in), set only
	// on the initial Configure.
	ConfigureCfg *klvm.Closure

	// ActBody is the closure an act() call hands its freshly spawned
	// child as the child's entire initial computation, set only on a
	// Control envelope with Control == ControlAct. Like ConfigureCfg,
	// it is mirrored into the child's own graph rather than bound
	// as-is, so an unbound free variable on the parent side never
	// blocks the child from being created.
	ActBody *klvm.Closure
	// ActTarget is the identifier, local to ActBody, that the child's
	// own copy of the act body is expected to bind before calling
	// respond(ActTarget). It names a brand-new Var created fresh
	// inside the child, never one shared with the parent.
	ActTarget klvm.Ident
}

// RequestID is implemented by whatever a Request or Act envelope's
// sender wants a later Response correlated back to.
type RequestID interface {
	isRequestID()
}

// VarRequestID routes a response directly into a Var in the sender's
// own graph: the shape spawn's resultVar and act's target both use.
type VarRequestID struct{ Var *klvm.Var }

func (VarRequestID) isRequestID() {}

// StreamRequestID routes a response into a StreamObj mid-fetch from
// its publisher: the shape Stream.new's publisher/request protocol
// uses, since one stream may issue several requests over its
// lifetime, each correlated back to the same StreamObj.
type StreamRequestID struct{ Stream *StreamObj }

func (StreamRequestID) isRequestID() {}

// EnvelopeKind distinguishes payload shape independent of priority.
type EnvelopeKind int

const (
	KindControl EnvelopeKind = iota
	KindResponse
	KindNotify
	KindRequest
)

func (k EnvelopeKind) String() string {
	switch k {
	case KindControl:
		return "control"
	case KindResponse:
		return "response"
	case KindNotify:
		return "notify"
	case KindRequest:
		return "request"
	default:
		return "unknown"
	}
}

// ControlKind enumerates control-message subtypes.
type ControlKind int

const (
	ControlConfigure ControlKind = iota
	ControlResume
	ControlSyncVar
	ControlPause
	ControlStep
	ControlStop
	// ControlAct carries a freshly spawned child's initial computation,
	// sent by actIntrinsic immediately after Registry.Spawn.
	ControlAct
)

// SyncVarPair links one free Var captured from a parent's environment
// at spawn/act time to the corresponding Var inside the child's own
// graph, so a later binding on the parent side can be mirrored into
// the child (see dispatch.go's onSyncVars and watchParentVar).
type SyncVarPair struct {
	ParentVar *klvm.Var
	ChildVar  *klvm.Var
}
