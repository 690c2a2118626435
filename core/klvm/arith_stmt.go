package klvm

import "fmt"

// ArithOp names a binary arithmetic or comparison instruction.
type ArithOp int

const (
	OpAdd ArithOp = iota
	OpSub
	OpMult
	OpDiv
	OpMod
	OpEq
	OpNotEq
	OpLessThan
	OpLessThanOrEq
	OpGreaterThan
	OpGreaterThanOrEq
)

func (op ArithOp) String() string {
	switch op {
	case OpAdd:
		return "add"
	case OpSub:
		return "sub"
	case OpMult:
		return "mult"
	case OpDiv:
		return "div"
	case OpMod:
		return "mod"
	case OpEq:
		return "eq"
	case OpNotEq:
		return "ne"
	case OpLessThan:
		return "lt"
	case OpLessThanOrEq:
		return "le"
	case OpGreaterThan:
		return "gt"
	case OpGreaterThanOrEq:
		return "ge"
	default:
		return "unknown_op"
	}
}

// ArithStmt evaluates `target := a OP b` for arithmetic and comparison
// operators. Both operands must resolve to Complete numeric (or, for
// eq/ne, any Complete) values before the operation runs; an unbound
// operand raises *WaitError and the instruction is re-run from scratch
// on resume.
type ArithStmt struct {
	baseStmt
	Op     ArithOp
	A, B   Operand
	Target Operand
}

func NewArithStmt(span SourceSpan, op ArithOp, a, b, target Operand) *ArithStmt {
	return &ArithStmt{baseStmt{span}, op, a, b, target}
}

func (s *ArithStmt) Exec(_ *Machine, env *Env) ([]*StackFrame, error) {
	av, err := ResolveOperandValue(s.A, env)
	if err != nil {
		return nil, err
	}
	bv, err := ResolveOperandValue(s.B, env)
	if err != nil {
		return nil, err
	}
	result, err := applyArith(s.Op, av, bv)
	if err != nil {
		return nil, err
	}
	return nil, bindValueOrVar(s.Target.resolveValueOrVar(env), result)
}

func applyArith(op ArithOp, a, b Value) (Value, error) {
	switch op {
	case OpEq:
		return Bool(valuesEqual(a, b)), nil
	case OpNotEq:
		return Bool(!valuesEqual(a, b)), nil
	}
	switch av := a.(type) {
	case Int64:
		bi, ok := b.(Int64)
		if !ok {
			return mixedArith(op, a, b)
		}
		return intArith(op, av, bi)
	case Dec128:
		bd, err := asDec128(b)
		if err != nil {
			return nil, err
		}
		return decArith(op, av, bd)
	case Str:
		bs, ok := b.(Str)
		if !ok {
			return nil, typeErr(op, a, b)
		}
		return strCompare(op, av, bs)
	case Char:
		bc, ok := b.(Char)
		if !ok {
			return nil, typeErr(op, a, b)
		}
		return charArith(op, av, bc)
	default:
		return nil, typeErr(op, a, b)
	}
}

func mixedArith(op ArithOp, a, b Value) (Value, error) {
	ad, err := asDec128(a)
	if err != nil {
		return nil, typeErr(op, a, b)
	}
	bd, err := asDec128(b)
	if err != nil {
		return nil, typeErr(op, a, b)
	}
	return decArith(op, ad, bd)
}

func asDec128(v Value) (Dec128, error) {
	switch t := v.(type) {
	case Dec128:
		return t, nil
	case Int64:
		return NewDec128FromInt64(int64(t)), nil
	default:
		return Dec128{}, fmt.Errorf("value is not numeric: %s", v.KernelString())
	}
}

func intArith(op ArithOp, a, b Int64) (Value, error) {
	switch op {
	case OpAdd:
		return a + b, nil
	case OpSub:
		return a - b, nil
	case OpMult:
		return a * b, nil
	case OpDiv:
		if b == 0 {
			return nil, &DivByZeroError{}
		}
		return a / b, nil
	case OpMod:
		if b == 0 {
			return nil, &DivByZeroError{}
		}
		return a % b, nil
	case OpLessThan:
		return Bool(a < b), nil
	case OpLessThanOrEq:
		return Bool(a <= b), nil
	case OpGreaterThan:
		return Bool(a > b), nil
	case OpGreaterThanOrEq:
		return Bool(a >= b), nil
	default:
		return nil, fmt.Errorf("unsupported int operation: %s", op)
	}
}

func decArith(op ArithOp, a, b Dec128) (Value, error) {
	switch op {
	case OpAdd:
		return a.Add(b), nil
	case OpSub:
		return a.Sub(b), nil
	case OpMult:
		return a.Mul(b), nil
	case OpDiv:
		return a.Div(b)
	case OpMod:
		return a.Mod(b)
	case OpLessThan:
		return Bool(a.Cmp(b) < 0), nil
	case OpLessThanOrEq:
		return Bool(a.Cmp(b) <= 0), nil
	case OpGreaterThan:
		return Bool(a.Cmp(b) > 0), nil
	case OpGreaterThanOrEq:
		return Bool(a.Cmp(b) >= 0), nil
	default:
		return nil, fmt.Errorf("unsupported decimal operation: %s", op)
	}
}

func strCompare(op ArithOp, a, b Str) (Value, error) {
	switch op {
	case OpLessThan:
		return Bool(a < b), nil
	case OpLessThanOrEq:
		return Bool(a <= b), nil
	case OpGreaterThan:
		return Bool(a > b), nil
	case OpGreaterThanOrEq:
		return Bool(a >= b), nil
	case OpAdd:
		return a + b, nil
	default:
		return nil, fmt.Errorf("unsupported string operation: %s", op)
	}
}

func charArith(op ArithOp, a, b Char) (Value, error) {
	switch op {
	case OpLessThan:
		return Bool(a < b), nil
	case OpLessThanOrEq:
		return Bool(a <= b), nil
	case OpGreaterThan:
		return Bool(a > b), nil
	case OpGreaterThanOrEq:
		return Bool(a >= b), nil
	default:
		return nil, fmt.Errorf("unsupported char operation: %s", op)
	}
}

func valuesEqual(a, b Value) bool {
	if primitivesEqual(a, b) {
		return true
	}
	ar, aok := underlyingRec(a)
	br, bok := underlyingRec(b)
	if aok && bok {
		if ar.label.KernelString() != br.label.KernelString() || ar.FieldCount() != br.FieldCount() {
			return false
		}
		for i := 0; i < ar.FieldCount(); i++ {
			av, err1 := ResolveValue(ar.ValueAt(i))
			bv, err2 := ResolveValue(br.ValueAt(i))
			if err1 != nil || err2 != nil || !valuesEqual(av, bv) {
				return false
			}
		}
		return true
	}
	return false
}

func typeErr(op ArithOp, a, b Value) error {
	return fmt.Errorf("operation %s not defined for %s and %s", op, a.KernelString(), b.KernelString())
}
