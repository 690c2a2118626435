package klvm

// ActorCfg is the value `spawn` consumes: a handler constructor
// closure together with the actual arguments it should be applied to
// when the new actor configures itself. (`act` takes a closure instead.)
// ActorCfg deliberately forbids select: the original kernel never
// defines field access on a configuration value, so Select always
// fails rather than silently returning something meaningless.
//
// ActorCfg is not completeBase: its HandlerCtor may still close over
// unbound Vars (a constructor argument not yet resolved in the caller's
// scope), and spawn must detect that and raise *WaitError rather than
// create a child actor prematurely. checkComplete, not an unconditional
// completeTag, decides when it is safe to proceed.
type ActorCfg struct {
	HandlerCtor *Closure
	Args        []Complete
}

func NewActorCfg(handlerCtor *Closure, args ...Complete) *ActorCfg {
	return &ActorCfg{HandlerCtor: handlerCtor, Args: args}
}

func (c *ActorCfg) isValueOrVar() {}

func (c *ActorCfg) KernelString() string {
	return "actor_cfg#{handler_ctor: " + c.HandlerCtor.KernelString() + "}"
}

// Select always fails: ActorCfg carries no kernel-visible fields.
func (c *ActorCfg) Select(feature Feature) (ValueOrVar, error) {
	return nil, &FeatureNotFoundError{On: c, Feature: feature}
}

// checkComplete walks HandlerCtor's captured environment the same way
// Closure.checkComplete does, only a Var at a time in this one leaf
// frame: any still-unbound capture raises *WaitError carrying that Var
// as the barrier, so spawn re-runs once it binds instead of creating a
// child actor with a dangling free variable.
func (c *ActorCfg) checkComplete() (Complete, error) {
	for _, entry := range c.HandlerCtor.CapturedEnv.Entries() {
		if _, err := CheckComplete(entry.Var); err != nil {
			return nil, err
		}
	}
	return completeActorCfg{c}, nil
}

type completeActorCfg struct{ *ActorCfg }

func (completeActorCfg) completeTag() {}
