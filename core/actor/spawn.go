package actor

import (
	"fmt"

	"github.com/torqlang/torqlang/core/klvm"
	"github.com/torqlang/torqlang/core/sf"
)

// spawnDedup collapses concurrent spawn calls for the same owner and
// the same ActorCfg value into a single child creation. A spawn
// instruction's actual argument resolution can suspend on a *WaitError
// and be re-run once its barrier fires (the same re-execution
// idempotence every kernel instruction relies on); if two goroutines
// happen to race a re-run against the original execution for the same
// instruction, this ensures only one of them creates and registers the
// child.
var spawnDedup = sf.New[Address]()

// spawnIntrinsic implements spawn(cfg, resultVar): it starts a new
// child actor and sends it a Configure control envelope carrying the
// handler constructor closure with cfg's actual arguments folded into
// its captured environment as $arg0, $arg1, ... Before doing either,
// it runs cfg's captured environment through klvm.CheckComplete: any
// nested Var still unbound raises *WaitError, so the entire spawn
// instruction re-runs once that Var binds rather than create a child
// actor with a dangling free variable. Only once every capture is
// Complete does spawn proceed to the Configure send.
func spawnIntrinsic(owner *Actor) klvm.NativeProc {
	return func(args []klvm.ValueOrVar, _ *klvm.Env, _ *klvm.Machine) ([]*klvm.StackFrame, error) {
		if len(args) != 2 {
			return nil, &klvm.InvalidArgCountError{Expected: 2, Actual: len(args), Context: "spawn"}
		}
		cfgVal, err := klvm.ResolveValue(args[0])
		if err != nil {
			return nil, err
		}
		cfg, ok := cfgVal.(*klvm.ActorCfg)
		if !ok {
			return nil, klvm.NewThrow("SpawnError", "spawn requires an actor_cfg value")
		}
		if _, err := klvm.CheckComplete(cfg); err != nil {
			return nil, err
		}
		resultVar, ok := args[1].(*klvm.Var)
		if !ok {
			return nil, &klvm.InvalidArgCountError{Context: "spawn: result must be an unbound var"}
		}
		dedupKey := fmt.Sprintf("%s:%p", owner.address, cfg)
		addr, err := spawnDedup.Do(dedupKey, func() (*Address, error) {
			child := owner.system.Spawn()
			owner.children[child.address] = child
			child.TrySend(Envelope{
				Priority:     PriorityControl,
				Kind:         KindControl,
				Control:      ControlConfigure,
				ConfigureCfg: closureWithArgs(cfg),
			})
			owner.opts.Metrics.ActorSpawned(child.address)
			return &child.address, nil
		})
		if err != nil {
			return nil, err
		}
		return nil, resultVar.BindToValue(klvm.Str(*addr), nil)
	}
}

// actIntrinsic implements act(body, targetIdent, targetVar): it spawns
// a genuine child actor and sends it body as an Act control message
// carrying targetIdent, the identifier the child's own copy of body is
// expected to bind before answering. The child is registered the same
// way a spawned one is (owner.children, ActorSpawned metric), but with
// no ActorCfg/Configure round-trip: an act body runs on a throwaway
// actor whose only job is to compute one answer and respond(target)
// with it, which the kernel routes straight back into targetVar via
// the ordinary response-binding path.
func actIntrinsic(owner *Actor) klvm.NativeProc {
	return func(args []klvm.ValueOrVar, _ *klvm.Env, _ *klvm.Machine) ([]*klvm.StackFrame, error) {
		if len(args) != 3 {
			return nil, &klvm.InvalidArgCountError{Expected: 3, Actual: len(args), Context: "act"}
		}
		closure, ok := args[0].(*klvm.Closure)
		if !ok {
			return nil, klvm.NewThrow("ActError", "act requires a closure body")
		}
		identVal, err := klvm.ResolveValue(args[1])
		if err != nil {
			return nil, err
		}
		identStr, ok := identVal.(klvm.Str)
		if !ok {
			return nil, klvm.NewThrow("ActError", "act target identifier must be a string")
		}
		targetVar, ok := args[2].(*klvm.Var)
		if !ok {
			return nil, &klvm.InvalidArgCountError{Context: "act: target must be an unbound var"}
		}
		child := owner.system.Spawn()
		owner.children[child.address] = child
		child.TrySend(Envelope{
			Priority:  PriorityControl,
			Kind:      KindControl,
			Control:   ControlAct,
			From:      owner.address,
			RequestID: VarRequestID{Var: targetVar},
			ActBody:   closure,
			ActTarget: klvm.Ident(identStr),
		})
		owner.opts.Metrics.ActorSpawned(child.address)
		return nil, nil
	}
}

// closureWithArgs flattens cfg's handler constructor's captured
// environment and its actual arguments into a single new frame: the
// constructor's free variables plus $arg0, $arg1, ... bound to cfg's
// arguments, all visible to a single Entries() call the way mirroring
// and completeness checks expect a captured environment to be shaped.
func closureWithArgs(cfg *klvm.ActorCfg) *klvm.Closure {
	base := cfg.HandlerCtor.CapturedEnv.Entries()
	entries := make([]klvm.EnvEntry, 0, len(base)+len(cfg.Args))
	entries = append(entries, base...)
	for i, arg := range cfg.Args {
		entries = append(entries, klvm.EnvEntry{Ident: klvm.SystemArgIdent(i), Var: klvm.NewBoundVar(arg)})
	}
	return &klvm.Closure{Def: cfg.HandlerCtor.Def, CapturedEnv: klvm.NewEnv(nil, entries...)}
}
