package klvm

// Ident is an identifier in kernel source: a name bound to a Var in
// some environment frame.
type Ident string

// Well-known identifiers bound in the root environment and used by
// the actor layer to assemble configure/notify/request frames.
const (
	IdentAct        Ident = "act"
	IdentImport     Ident = "import"
	IdentRespond    Ident = "respond"
	IdentSelf       Ident = "self"
	IdentSpawn      Ident = "spawn"
	IdentNext       Ident = "$next"
	IdentHandler    Ident = "$handler"
	IdentHandlerCtr Ident = "$handler_ctor"
)

// SystemArgIdent names the i'th positional constructor argument
// threaded into an actor's handler constructor application.
func SystemArgIdent(i int) Ident {
	return Ident("$arg" + itoa(i))
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// EnvEntry binds one identifier to a Var within a single environment
// frame.
type EnvEntry struct {
	Ident Ident
	Var   *Var
}

// Env is an immutable, ordered, singly-chained list of EnvEntry
// frames. Lookup walks leaf-to-root. Env values are never mutated
// after construction; "adding" a binding returns a new child Env.
type Env struct {
	parent  *Env
	entries []EnvEntry
}

// EmptyEnv is the empty environment with no parent and no entries.
var EmptyEnv = &Env{}

// NewEnv creates a child environment of parent with the given
// entries visible in it. parent may be nil, meaning "root has no
// further parent" (distinct from EmptyEnv only in that EmptyEnv is a
// shared sentinel).
func NewEnv(parent *Env, entries ...EnvEntry) *Env {
	return &Env{parent: parent, entries: entries}
}

// Add returns a new Env extending e with one more entry.
func (e *Env) Add(entry EnvEntry) *Env {
	return &Env{parent: e, entries: []EnvEntry{entry}}
}

// Get resolves ident to its Var, walking from leaf to root. It panics
// if ident is unbound in this environment chain — kernel programs are
// assumed to have passed a scope-checking lowering pass (out of
// scope here) that guarantees every reference resolves.
func (e *Env) Get(ident Ident) *Var {
	v, ok := e.Lookup(ident)
	if !ok {
		panic("unbound identifier: " + string(ident))
	}
	return v
}

// Lookup resolves ident without panicking.
func (e *Env) Lookup(ident Ident) (*Var, bool) {
	for cur := e; cur != nil; cur = cur.parent {
		for i := len(cur.entries) - 1; i >= 0; i-- {
			if cur.entries[i].Ident == ident {
				return cur.entries[i].Var, true
			}
		}
	}
	return nil, false
}

// Contains reports whether ident is bound anywhere in this environment
// chain.
func (e *Env) Contains(ident Ident) bool {
	_, ok := e.Lookup(ident)
	return ok
}

// Entries returns this frame's own entries (not the parent's),
// matching the original's `for (EnvEntry e : env)` iteration used
// when walking a Closure's captured environment.
func (e *Env) Entries() []EnvEntry {
	return e.entries
}

// CollectIdents returns every identifier in this environment chain
// bound to the given Var's representative — used only for tracing.
func (e *Env) CollectIdents(target *Var) []Ident {
	rep := target.find()
	var out []Ident
	for cur := e; cur != nil; cur = cur.parent {
		for _, entry := range cur.entries {
			if entry.Var.find() == rep {
				out = append(out, entry.Ident)
			}
		}
	}
	return out
}
