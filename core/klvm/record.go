package klvm

import "strings"

// field is one label->value pair of a Rec, in insertion order.
type field struct {
	Feature Feature
	Val     ValueOrVar
}

// Rec is a labeled mapping feature→value. It may be Partial (some
// field values are unbound Vars or themselves partial) or, once every
// field resolves to a Complete value, viewable as a CompleteRec via
// checkComplete.
type Rec struct {
	label  Value // literal atom/Str naming the record kind, e.g. Str("error") or Eof
	fields []field
}

func (*Rec) isValueOrVar() {}

func (r *Rec) KernelString() string {
	parts := make([]string, len(r.fields))
	for i, f := range r.fields {
		parts[i] = f.Feature.KernelString() + ": " + KernelStringOf(f.Val)
	}
	return KernelStringOf(r.label) + "#{" + strings.Join(parts, ", ") + "}"
}

func (r *Rec) Label() Value { return r.label }

func (r *Rec) FieldCount() int { return len(r.fields) }

func (r *Rec) FeatureAt(i int) Feature { return r.fields[i].Feature }

func (r *Rec) ValueAt(i int) ValueOrVar { return r.fields[i].Val }

// FindField resolves a feature to its field value, or (nil, false).
func (r *Rec) FindField(feature Feature) (ValueOrVar, bool) {
	for _, f := range r.fields {
		if f.Feature.KernelString() == feature.KernelString() {
			return f.Val, true
		}
	}
	return nil, false
}

// Select implements the `select` instruction for records.
func (r *Rec) Select(feature Feature) (ValueOrVar, error) {
	v, ok := r.FindField(feature)
	if !ok {
		return nil, &FeatureNotFoundError{On: r, Feature: feature}
	}
	return v, nil
}

func (r *Rec) checkComplete() (Complete, error) {
	lbl, ok := r.label.(Complete)
	if !ok {
		// labels are always literal atoms/Str, constructed Complete.
		panic("record label is not complete")
	}
	out := make([]field, len(r.fields))
	for i, f := range r.fields {
		cv, err := CheckComplete(f.Val)
		if err != nil {
			return nil, err
		}
		out[i] = field{Feature: f.Feature, Val: cv}
	}
	return CompleteRec{&Rec{label: lbl, fields: out}}, nil
}

// CompleteRec wraps a Rec all of whose fields are proven Complete.
type CompleteRec struct{ *Rec }

func (CompleteRec) completeTag() {}

func (c CompleteRec) ValueAt(i int) Complete { return c.Rec.fields[i].Val.(Complete) }

// FindValue resolves a feature directly to a Complete value, used by
// module lookups where every field is already known Complete.
func (c CompleteRec) FindValue(feature Feature) (Complete, bool) {
	v, ok := c.FindField(feature)
	if !ok {
		return nil, false
	}
	return v.(Complete), true
}

// RecBuilder assembles a Rec (possibly partial) field by field in
// insertion order. Tuple fields (integer features 0..n-1) are
// supported via AddField with Int64 features.
type RecBuilder struct {
	label  Value
	fields []field
}

func NewRecBuilder(label Value) *RecBuilder {
	return &RecBuilder{label: label}
}

func (b *RecBuilder) AddField(feature Feature, val ValueOrVar) *RecBuilder {
	b.fields = append(b.fields, field{Feature: feature, Val: val})
	return b
}

func (b *RecBuilder) Build() *Rec {
	return &Rec{label: b.label, fields: b.fields}
}

// CompleteRecBuilder is the Complete-only convenience used by
// intrinsics and module assembly, where every field value is already
// known to be Complete (literal constants, other CompleteRecs, native
// procedures).
type CompleteRecBuilder struct {
	inner *RecBuilder
}

func NewCompleteRecBuilder(label Value) *CompleteRecBuilder {
	return &CompleteRecBuilder{inner: NewRecBuilder(label)}
}

func (b *CompleteRecBuilder) AddField(feature Feature, val Complete) *CompleteRecBuilder {
	b.inner.AddField(feature, val)
	return b
}

func (b *CompleteRecBuilder) Build() *CompleteRec {
	r := b.inner.Build()
	cr, err := r.checkComplete()
	if err != nil {
		panic("CompleteRecBuilder: field was not complete: " + err.Error())
	}
	out := cr.(CompleteRec)
	return &out
}

// UnifyRecs implements structural unification between two Recs:
// labels must be equal; fields of common features unify positionally
// by feature; extra features on either side become the union.
func UnifyRecs(a, b *Rec) (*Rec, error) {
	if a.label.KernelString() != b.label.KernelString() {
		return nil, &UnificationError{Left: a, Right: b}
	}
	merged := make([]field, 0, len(a.fields)+len(b.fields))
	seen := map[string]bool{}
	for _, fa := range a.fields {
		if fb, ok := b.FindField(fa.Feature); ok {
			if err := unifyValueOrVar(fa.Val, fb); err != nil {
				return nil, err
			}
		}
		merged = append(merged, fa)
		seen[fa.Feature.KernelString()] = true
	}
	for _, fb := range b.fields {
		if !seen[fb.Feature.KernelString()] {
			merged = append(merged, fb)
		}
	}
	return &Rec{label: a.label, fields: merged}, nil
}
