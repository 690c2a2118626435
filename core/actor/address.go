// Package actor hosts the local actor scheduler: mailboxes, the
// compute-time-slice dispatch loop, spawn/act intrinsics, and the
// streaming subsystem that sit above core/klvm's kernel-language
// virtual machine.
package actor

import gonanoid "github.com/matoous/go-nanoid/v2"

// Address uniquely identifies one actor. The root actor of an
// ActorSystem gets an address supplied by its creator; every spawned
// child gets a random one.
type Address string

// NewAddress generates a random child address.
func NewAddress() Address {
	return Address(gonanoid.Must())
}

func (a Address) String() string { return string(a) }
