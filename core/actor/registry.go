package actor

import "github.com/torqlang/torqlang/core/klvm"

// Registry is the seam between an Actor and whatever hosts the actor
// population — concretely core/system.ActorSystem. It is declared
// here, not there, for the same reason klvm.MachineOwner is declared
// inside klvm rather than core/actor: core/system needs to hold
// *Actor values, so core/actor cannot import core/system without
// creating a cycle.
type Registry interface {
	// Lookup resolves an address to its live Actor, or nil if it has
	// been reaped, used by response delivery.
	Lookup(addr Address) *Actor
	// Deliver routes e to addr, whether addr names a live Actor or a
	// non-actor reply sink registered by an embedding-API client (see
	// core/system.RequestClient). It reports whether anything was
	// found to receive e.
	Deliver(addr Address, e Envelope) bool
	// Spawn creates, registers, and starts a new unconfigured actor;
	// the caller sends it its first control envelope immediately after
	// (Configure from spawn, Act from act).
	Spawn() *Actor
	// SystemModule returns the record import("system", ...) resolves
	// against.
	SystemModule() *klvm.CompleteRec
	// ModuleAt resolves a non-"system" import qualifier.
	ModuleAt(qualifier string) (*klvm.CompleteRec, bool)
}
