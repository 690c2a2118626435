package klvm

import (
	"math/big"
)

// Dec128 is a 128-bit-class decimal value, modeled as an arbitrary
// precision rational. The pack carries no third-party decimal library
// (no shopspring/decimal, no cockroachdb/apd appear anywhere in the
// examples or other_examples corpus), so Dec128 is built directly on
// the standard library's math/big, matching the teacher's own
// preference for stdlib math/big wherever a dedicated numeric tower
// package is absent (see cue-lang-cue__value.go, michaelmacinnis-oh
// in other_examples).
type Dec128 struct {
	r *big.Rat
}

// ParseDec128 parses a decimal literal such as "10" or "-1" (kernel
// source spells the latter "-1m").
func ParseDec128(s string) (Dec128, bool) {
	r := new(big.Rat)
	if _, ok := r.SetString(s); !ok {
		return Dec128{}, false
	}
	return Dec128{r: r}, true
}

func NewDec128FromInt64(i int64) Dec128 {
	return Dec128{r: new(big.Rat).SetInt64(i)}
}

func (Dec128) isValueOrVar() {}
func (Dec128) completeTag()  {}

func (d Dec128) KernelString() string {
	if d.r == nil {
		return "0m"
	}
	return d.r.RatString() + "m"
}

func (d Dec128) Add(o Dec128) Dec128 { return Dec128{r: new(big.Rat).Add(d.r, o.r)} }
func (d Dec128) Sub(o Dec128) Dec128 { return Dec128{r: new(big.Rat).Sub(d.r, o.r)} }
func (d Dec128) Mul(o Dec128) Dec128 { return Dec128{r: new(big.Rat).Mul(d.r, o.r)} }

func (d Dec128) Div(o Dec128) (Dec128, error) {
	if o.r.Sign() == 0 {
		return Dec128{}, &DivByZeroError{}
	}
	return Dec128{r: new(big.Rat).Quo(d.r, o.r)}, nil
}

// Mod implements truncated decimal remainder: d - o*trunc(d/o).
func (d Dec128) Mod(o Dec128) (Dec128, error) {
	if o.r.Sign() == 0 {
		return Dec128{}, &DivByZeroError{}
	}
	q := new(big.Rat).Quo(d.r, o.r)
	qi := new(big.Int).Quo(q.Num(), q.Denom())
	qr := new(big.Rat).SetInt(qi)
	prod := new(big.Rat).Mul(qr, o.r)
	return Dec128{r: new(big.Rat).Sub(d.r, prod)}, nil
}

func (d Dec128) Cmp(o Dec128) int { return d.r.Cmp(o.r) }

// DivByZeroError is raised by Dec128 and Int64 division/modulo by zero.
type DivByZeroError struct{}

func (e *DivByZeroError) Error() string { return "division by zero" }
