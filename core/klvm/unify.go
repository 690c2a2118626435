package klvm

// unify implements bind()'s step 2: the representative is already
// bound to existing, and we must reconcile it with incoming. Equal
// primitives succeed silently; records/tuples recurse structurally;
// anything else is an incompatible shape.
func unify(existing, incoming Value) error {
	if existing == incoming {
		return nil
	}
	if err := checkTouch(existing); err != nil {
		return err
	}
	if err := checkTouch(incoming); err != nil {
		return err
	}
	switch e := existing.(type) {
	case *Rec:
		i, ok := incoming.(*Rec)
		if !ok {
			return &UnificationError{Left: existing, Right: incoming}
		}
		_, err := UnifyRecs(e, i)
		return err
	case CompleteRec:
		return unify(e.Rec, unwrapRec(incoming))
	case *Tuple:
		i, ok := incoming.(*Tuple)
		if !ok {
			return &UnificationError{Left: existing, Right: incoming}
		}
		_, err := UnifyTuples(e, i)
		return err
	case CompleteTuple:
		return unify(e.Tuple, unwrapTuple(incoming))
	default:
		if primitivesEqual(existing, incoming) {
			return nil
		}
		return &UnificationError{Left: existing, Right: incoming}
	}
}

func unwrapRec(v Value) Value {
	if cr, ok := v.(CompleteRec); ok {
		return cr.Rec
	}
	return v
}

func unwrapTuple(v Value) Value {
	if ct, ok := v.(CompleteTuple); ok {
		return ct.Tuple
	}
	return v
}

// unifyValueOrVar unifies two field/element slots during record/tuple
// unification. If either side is an unbound Var, binding happens via
// the normal Var protocol; otherwise the two resolved values unify
// structurally.
func unifyValueOrVar(a, b ValueOrVar) error {
	av, aIsVar := a.(*Var)
	bv, bIsVar := b.(*Var)
	switch {
	case aIsVar && bIsVar:
		return av.unifyVar(bv)
	case aIsVar:
		return av.BindToValue(b.(Value), nil)
	case bIsVar:
		return bv.BindToValue(a.(Value), nil)
	default:
		return unify(a.(Value), b.(Value))
	}
}

func primitivesEqual(a, b Value) bool {
	switch av := a.(type) {
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Int64:
		bv, ok := b.(Int64)
		return ok && av == bv
	case Str:
		bv, ok := b.(Str)
		return ok && av == bv
	case Char:
		bv, ok := b.(Char)
		return ok && av == bv
	case Dec128:
		bv, ok := b.(Dec128)
		return ok && av.Cmp(bv) == 0
	default:
		return false
	}
}
