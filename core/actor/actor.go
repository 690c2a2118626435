package actor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/torqlang/torqlang/core/klvm"
)

// OnPanic receives a recovered panic from inside compute time-slicing,
// the one place user-supplied procedure bodies run on this goroutine.
type OnPanic func(recovered any, stack []byte)

type ctrlKind int

const (
	ctrlPause ctrlKind = iota
	ctrlResume
	ctrlStep
	ctrlStop
)

type ctrlMsg struct{ kind ctrlKind }

// Options configures a new Actor, mirroring the teacher's actor
// Options shape: zero-value defaults are filled in by New.
type Options struct {
	MailboxSize int
	ControlSize int
	Context     context.Context
	Logger      *slog.Logger
	OnPanic     OnPanic
	Metrics     ActorMetrics
	// ComputeBudget bounds how many klvm instructions one dispatch turn
	// executes before yielding, so no single actor can starve its
	// siblings sharing the scheduler.
	ComputeBudget int
}

func (o *Options) setDefaults() {
	if o.MailboxSize == 0 {
		o.MailboxSize = 256
	}
	if o.ControlSize == 0 {
		o.ControlSize = 16
	}
	if o.Context == nil {
		o.Context = context.Background()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Metrics == nil {
		o.Metrics = NopMetrics{}
	}
	if o.ComputeBudget == 0 {
		o.ComputeBudget = 1000
	}
	if o.OnPanic == nil {
		o.OnPanic = func(recovered any, stack []byte) {
			o.Logger.Error("actor panicked", slog.Any("recovered", recovered), slog.String("stack", string(stack)))
		}
	}
}

// Actor hosts one klvm.Machine and the mailbox/lifecycle wrapper
// around it. It implements klvm.MachineOwner so the intrinsics
// (act/import/respond/self/spawn) can call back into
// actor-level behavior without klvm depending on this package.
type Actor struct {
	address Address
	system  Registry

	opts Options
	log  *slog.Logger

	mailbox *Mailbox
	machine *klvm.Machine
	rootEnv *klvm.Env

	// activeRequest is the request envelope this actor currently owes
	// exactly one response to, or nil when idle/notify-driven.
	activeRequest *Envelope

	// selectable and suspended partition the responses this actor has
	// received but not yet bound: selectable is being tried in the
	// current onResponseBatch pass, suspended is parked between turns
	// because binding it raised *WaitError on the last attempt. See
	// onResponseBatch in dispatch.go.
	selectable []Envelope
	suspended  []Envelope

	halted    bool
	haltValue *klvm.FailedValue

	triggers map[*klvm.Var][]triggerFunc
	children map[Address]*Actor

	ctx     context.Context
	in      chan Envelope
	control chan ctrlMsg
	stop    chan struct{}
	done    chan struct{}

	mu     sync.Mutex
	closed bool
}

// triggerFunc fires once a watched parent Var becomes bound, mirroring
// onParentVarBound's recursive re-trigger for partial records.
type triggerFunc func(bound klvm.Value) error

func NewActor(address Address, system Registry, opts Options) *Actor {
	opts.setDefaults()
	a := &Actor{
		address:  address,
		system:   system,
		opts:     opts,
		log:      opts.Logger.With(slog.String("actor", string(address))),
		mailbox:  NewMailbox(),
		triggers: make(map[*klvm.Var][]triggerFunc),
		children: make(map[Address]*Actor),
		ctx:      opts.Context,
		in:       make(chan Envelope, opts.MailboxSize),
		control:  make(chan ctrlMsg, opts.ControlSize),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	a.rootEnv = newRootEnv(a)
	return a
}

func (a *Actor) Address() Address { return a.address }

func (a *Actor) Trace(msg string) { a.log.Debug(msg) }

func (a *Actor) Done() <-chan struct{} { return a.done }

// Start launches the dispatch goroutine.
func (a *Actor) Start() {
	go a.loop()
}

func (a *Actor) Stop() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		<-a.done
		return
	}
	a.closed = true
	a.mu.Unlock()
	select {
	case a.control <- ctrlMsg{kind: ctrlStop}:
	default:
	}
	close(a.stop)
	<-a.done
}

func (a *Actor) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// Send enqueues an envelope, blocking until accepted, the context is
// canceled, or the actor has stopped.
func (a *Actor) Send(ctx context.Context, e Envelope) error {
	if a.isClosed() {
		return errors.New("actor stopped")
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("send to %s failed: %w", a.address, ctx.Err())
	case <-a.stop:
		return errors.New("actor stopped")
	case a.in <- e:
		return nil
	}
}

// TrySend is a non-blocking Send, used by response delivery paths that
// must never block the sender's own dispatch loop.
func (a *Actor) TrySend(e Envelope) bool {
	if a.isClosed() {
		return false
	}
	select {
	case <-a.stop:
		return false
	case a.in <- e:
		return true
	default:
		return false
	}
}

func (a *Actor) Pause() error  { return a.sendCtrl(ctrlPause) }
func (a *Actor) Resume() error { return a.sendCtrl(ctrlResume) }
func (a *Actor) Step() error   { return a.sendCtrl(ctrlStep) }

func (a *Actor) sendCtrl(k ctrlKind) error {
	if a.isClosed() {
		return errors.New("actor stopped")
	}
	select {
	case <-a.stop:
		return errors.New("actor stopped")
	case a.control <- ctrlMsg{kind: k}:
		return nil
	}
}

func (a *Actor) loop() {
	defer close(a.done)

	paused := false
	stepMode := false
	permit := 1

	drainControl := func() bool {
		for {
			select {
			case <-a.stop:
				return false
			case c := <-a.control:
				switch c.kind {
				case ctrlStop:
					return false
				case ctrlPause:
					paused, permit = true, 0
				case ctrlResume:
					paused, stepMode = false, false
					if permit == 0 {
						permit = 1
					}
				case ctrlStep:
					permit++
				}
			default:
				return true
			}
		}
	}

	safeDispatch := func(e Envelope) {
		defer func() {
			if r := recover(); r != nil {
				a.opts.OnPanic(r, debug.Stack())
			}
		}()
		a.onEnvelope(e)
	}

	for {
		if ok := drainControl(); !ok {
			return
		}
		if permit <= 0 {
			select {
			case <-a.stop:
				return
			case c := <-a.control:
				switch c.kind {
				case ctrlStop:
					return
				case ctrlPause:
					paused, permit = true, 0
				case ctrlResume:
					paused, stepMode = false, false
					if permit == 0 {
						permit = 1
					}
				case ctrlStep:
					permit++
				}
			}
			continue
		}

		// Drain whatever has arrived on the channel into the priority
		// mailbox before selecting what to run next, so control/response
		// envelopes queued concurrently jump ahead of older notifies.
		a.drainIn()

		if a.mailbox.IsEmpty() {
			select {
			case <-a.stop:
				return
			case c := <-a.control:
				switch c.kind {
				case ctrlStop:
					return
				case ctrlPause:
					paused, permit = true, 0
				case ctrlResume:
					paused, stepMode = false, false
				case ctrlStep:
					permit++
				}
				continue
			case e := <-a.in:
				a.mailbox.Insert(e)
			}
		}

		if batch := a.mailbox.SelectNextBatch(); len(batch) > 0 {
			func() {
				defer func() {
					if r := recover(); r != nil {
						a.opts.OnPanic(r, debug.Stack())
					}
				}()
				a.onResponseBatch(batch)
			}()
			permit--
		} else if e, ok := a.mailbox.RemoveNext(); ok {
			safeDispatch(e)
			permit--
		}

		if !paused && !stepMode {
			permit++
		}
	}
}

func (a *Actor) drainIn() {
	for {
		select {
		case e := <-a.in:
			a.mailbox.Insert(e)
		default:
			return
		}
	}
}
