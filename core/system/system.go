// Package system provides the embedding API a Go program uses to host
// Torqlang actors: ActorSystem (the registry and module table),
// ActorBuilder (spawning a root actor from outside any actor),
// RequestClient (synchronous ask from Go code), and StreamClient
// (draining a stream from Go code).
package system

import (
	"context"
	"sync"

	"github.com/torqlang/torqlang/core/actor"
	"github.com/torqlang/torqlang/core/klvm"
	"github.com/torqlang/torqlang/core/modcache"
	"github.com/torqlang/torqlang/core/perkey"
)

// ActorSystem owns the actor registry and the module table that
// import() resolves against. It implements actor.Registry so the
// actors it hosts can look each other up and resolve imports without
// this package depending back on them.
type ActorSystem struct {
	mu         sync.RWMutex
	actors     map[actor.Address]*actor.Actor
	replySinks map[actor.Address]func(actor.Envelope)
	modules    map[string]*klvm.CompleteRec
	modCache   *modcache.Cache
	sysMod     *klvm.CompleteRec
	opts       actor.Options

	// sinkSched serializes reply-sink invocations per destination
	// address: a streamed response arrives as several response
	// envelopes in a row (see onResponseBatch), and a sink (a
	// RequestClient.Ask waiter, or any future non-actor subscriber)
	// must see them in the order they were produced even though
	// they can be delivered from different actor goroutines.
	sinkSched *perkey.Scheduler[actor.Address]
}

// Config configures a new ActorSystem, following the teacher's
// Options/Config struct-with-defaults pattern: a zero-value Config
// produces working defaults, matching actor.Options.setDefaults.
type Config struct {
	ActorOptions actor.Options
}

func NewActorSystem(cfg Config) *ActorSystem {
	return &ActorSystem{
		actors:     make(map[actor.Address]*actor.Actor),
		replySinks: make(map[actor.Address]func(actor.Envelope)),
		modules:    make(map[string]*klvm.CompleteRec),
		modCache:   modcache.New(modcache.Opts{}),
		opts:       cfg.ActorOptions,
		sinkSched:  perkey.New[actor.Address](),
	}
}

// AddModule registers a module record under qualifier, visible to
// import(qualifier, selections) in any actor hosted by this system.
// Re-registering a qualifier invalidates any cached lookup for it so
// ModuleAt never hands out a stale record.
func (s *ActorSystem) AddModule(qualifier string, rec *klvm.CompleteRec) {
	s.mu.Lock()
	s.modules[qualifier] = rec
	s.mu.Unlock()
	s.modCache.Delete(qualifier)
}

// AddDefaultModules installs the standard "system" module — respond
// (the free-procedure variant, for use inside act blocks) and
// Stream.new — matching the original's ActorMod/SystemMod assembly.
func (s *ActorSystem) AddDefaultModules() {
	b := klvm.NewCompleteRecBuilder(klvm.Str("system"))
	b.AddField(klvm.Str("respond"), actor.RespondFreeProc)
	b.AddField(klvm.Str("Stream"), NewStreamModule())
	s.SetSystemModule(b.Build())
}

// Close releases resources owned directly by the system (currently
// just modCache's background goroutine); it does not stop any hosted
// actor.
func (s *ActorSystem) Close() {
	s.modCache.Close()
}

// Build finalizes configuration. It currently exists so callers have
// a single, named place to call once module registration is done,
// mirroring the teacher's builder-style Config.Build; ActorSystem
// itself needs no further assembly step today.
func (s *ActorSystem) Build() *ActorSystem { return s }

// ModuleAt resolves qualifier for the import intrinsic, checking
// modCache before the registry map: every import of the same
// qualifier after the first is served from the cache rather than
// retaking the registry's read lock.
func (s *ActorSystem) ModuleAt(qualifier string) (*klvm.CompleteRec, bool) {
	if rec, ok := s.modCache.Get(qualifier); ok {
		return rec, true
	}
	s.mu.RLock()
	rec, ok := s.modules[qualifier]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	s.modCache.Put(qualifier, rec)
	return rec, true
}

func (s *ActorSystem) SetSystemModule(rec *klvm.CompleteRec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sysMod = rec
}

func (s *ActorSystem) SystemModule() *klvm.CompleteRec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sysMod == nil {
		return klvm.NewCompleteRecBuilder(klvm.Str("system")).Build()
	}
	return s.sysMod
}

func (s *ActorSystem) Lookup(addr actor.Address) *actor.Actor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.actors[addr]
}

// Deliver implements actor.Registry's delivery seam: an actor address
// is routed to its mailbox; anything else is checked against the
// reply-sink table RequestClient uses for Go-code callers that are
// not actors themselves.
func (s *ActorSystem) Deliver(addr actor.Address, e actor.Envelope) bool {
	if a := s.Lookup(addr); a != nil {
		return a.TrySend(e)
	}
	s.mu.RLock()
	sink, ok := s.replySinks[addr]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	_ = s.sinkSched.Do(addr, func() error {
		sink(e)
		return nil
	})
	return true
}

// RegisterReplySink makes addr a valid Deliver target routed to sink
// instead of an actor's mailbox, used by RequestClient to receive the
// one response a synchronous Ask call is waiting for.
func (s *ActorSystem) RegisterReplySink(addr actor.Address, sink func(actor.Envelope)) {
	s.mu.Lock()
	s.replySinks[addr] = sink
	s.mu.Unlock()
}

func (s *ActorSystem) UnregisterReplySink(addr actor.Address) {
	s.mu.Lock()
	delete(s.replySinks, addr)
	s.mu.Unlock()
}

func (s *ActorSystem) register(a *actor.Actor) {
	s.mu.Lock()
	s.actors[a.Address()] = a
	s.mu.Unlock()
}

// Unregister removes addr from the registry, called once an actor has
// halted and the host no longer needs to reach it. Responses
// addressed to a removed actor are silently dropped.
func (s *ActorSystem) Unregister(addr actor.Address) {
	s.mu.Lock()
	delete(s.actors, addr)
	s.mu.Unlock()
}

// Spawn creates, registers, and starts a brand-new unconfigured
// actor, satisfying actor.Registry for the spawn/act intrinsics.
func (s *ActorSystem) Spawn() *actor.Actor {
	addr := actor.NewAddress()
	a := actor.NewActor(addr, s, s.opts)
	s.register(a)
	a.Start()
	return a
}

// ActorBuilder spawns and configures a root actor from outside any
// running actor — the entry point a Go host program uses to start a
// Torqlang actor tree, mirroring the original's top-level actor
// creation helpers (there is no spawn() intrinsic to call from Go).
type ActorBuilder struct {
	system      *ActorSystem
	address     actor.Address
	handlerCtor *klvm.Closure
	args        []klvm.Complete
}

func NewActorBuilder(system *ActorSystem) *ActorBuilder {
	return &ActorBuilder{system: system}
}

func (b *ActorBuilder) WithAddress(addr actor.Address) *ActorBuilder {
	b.address = addr
	return b
}

func (b *ActorBuilder) WithHandler(handlerCtor *klvm.Closure, args ...klvm.Complete) *ActorBuilder {
	b.handlerCtor = handlerCtor
	b.args = args
	return b
}

// Spawn starts the configured root actor and sends it its initial
// Configure envelope, returning its address without waiting for the
// actor to process it.
func (b *ActorBuilder) Spawn() actor.Address {
	addr := b.address
	if addr == "" {
		addr = actor.NewAddress()
	}
	a := actor.NewActor(addr, b.system, b.system.opts)
	b.system.register(a)
	a.Start()
	cfg := klvm.NewActorCfg(b.handlerCtor, b.args...)
	a.TrySend(actor.Envelope{
		Priority:     actor.PriorityControl,
		Kind:         actor.KindControl,
		Control:      actor.ControlConfigure,
		ConfigureCfg: configureClosure(cfg),
	})
	return addr
}

// configureClosure mirrors spawn.go's closureWithArgs, folding cfg's
// arguments into its handler constructor's captured environment as
// $arg0, $arg1, ... ActorBuilder duplicates this rather than calling
// into core/actor because closureWithArgs is unexported — the two
// copies are kept in lockstep as a deliberate, small duplication
// rather than exporting an internal helper solely for this one call
// site.
func configureClosure(cfg *klvm.ActorCfg) *klvm.Closure {
	base := cfg.HandlerCtor.CapturedEnv.Entries()
	entries := make([]klvm.EnvEntry, 0, len(base)+len(cfg.Args))
	entries = append(entries, base...)
	for i, arg := range cfg.Args {
		entries = append(entries, klvm.EnvEntry{Ident: klvm.SystemArgIdent(i), Var: klvm.NewBoundVar(arg)})
	}
	return &klvm.Closure{Def: cfg.HandlerCtor.Def, CapturedEnv: klvm.NewEnv(nil, entries...)}
}

// RequestClient lets Go code ask a running actor a question and block
// for the answer, the way the original's synchronous test harnesses
// call into an ActorRef without themselves being an actor.
type RequestClient struct {
	system *ActorSystem
}

func NewRequestClient(system *ActorSystem) *RequestClient {
	return &RequestClient{system: system}
}

// Ask sends msg to addr as a request and blocks until answered or ctx
// is done. Because the caller is plain Go code, not a Torqlang actor
// with a dataflow graph of its own, the reply is not bound to a Var:
// Ask registers a fresh reply address as a one-shot reply sink on the system
// registry (see ActorSystem.Deliver) and reads the response envelope
// that arrives on it directly.
func (c *RequestClient) Ask(ctx context.Context, addr actor.Address, msg klvm.Complete) (klvm.Value, error) {
	dest := c.system.Lookup(addr)
	if dest == nil {
		return nil, &UnknownActorError{Address: addr}
	}
	replyAddr := actor.NewAddress()
	replies := make(chan actor.Envelope, 1)
	c.system.RegisterReplySink(replyAddr, func(e actor.Envelope) { replies <- e })
	defer c.system.UnregisterReplySink(replyAddr)

	ok := dest.TrySend(actor.Envelope{
		Priority: actor.PriorityMessage,
		Kind:     actor.KindRequest,
		From:     replyAddr,
		Message:  msg,
	})
	if !ok {
		return nil, &UnknownActorError{Address: addr}
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case e := <-replies:
		val, err := klvm.ResolveValue(e.ResponseValue)
		if err != nil {
			return nil, err
		}
		if fv, ok := val.(*klvm.FailedValue); ok {
			return nil, fv
		}
		return val, nil
	}
}

// UnknownActorError is returned when Ask targets an address the
// system has no live actor for.
type UnknownActorError struct {
	Address actor.Address
}

func (e *UnknownActorError) Error() string {
	return "no such actor: " + e.Address.String()
}
