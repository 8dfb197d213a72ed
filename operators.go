package gospin

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrNotImplemented is returned when an operator application has no
// defined finite result, such as J² acting on a tensor product, or when a
// cross-basis application makes no progress.
var ErrNotImplemented = errors.New("gospin: not implemented")

// ============================================================
// Spin operators
// ============================================================

type OpKind int

const (
	OpJPlus OpKind = iota
	OpJMinus
	OpJx
	OpJy
	OpJz
	OpJ2
)

// SpinOp is a total angular-momentum operator. Operators are stateless
// values; they participate in expressions (commutator results, operator
// rewrites) as symbolic nodes.
type SpinOp struct {
	kind OpKind
}

var (
	Jplus  = SpinOp{OpJPlus}
	Jminus = SpinOp{OpJMinus}
	Jx     = SpinOp{OpJx}
	Jy     = SpinOp{OpJy}
	Jz     = SpinOp{OpJz}
	J2     = SpinOp{OpJ2}
)

func (op SpinOp) Kind() OpKind { return op.kind }

func (op SpinOp) String() string {
	switch op.kind {
	case OpJPlus:
		return "J+"
	case OpJMinus:
		return "J-"
	case OpJx:
		return "Jx"
	case OpJy:
		return "Jy"
	case OpJz:
		return "Jz"
	case OpJ2:
		return "J2"
	}
	return fmt.Sprintf("SpinOp(%d)", int(op.kind))
}

func (op SpinOp) LaTeX() string {
	switch op.kind {
	case OpJPlus:
		return "J_+"
	case OpJMinus:
		return "J_-"
	case OpJx:
		return "J_x"
	case OpJy:
		return "J_y"
	case OpJz:
		return "J_z"
	case OpJ2:
		return "J^2"
	}
	return op.String()
}

func (op SpinOp) Simplify() Expr        { return op }
func (op SpinOp) Sub(string, Expr) Expr { return op }
func (op SpinOp) Eval() (*Num, bool)    { return nil, false }
func (op SpinOp) Equal(other Expr) bool {
	o, ok := other.(SpinOp)
	return ok && o.kind == op.kind
}
func (op SpinOp) exprType() string { return "op" }

// nativeBasis is the eigenbasis an operator acts on directly. The ladder
// operators act on Jz eigenstates.
func (op SpinOp) nativeBasis() Basis {
	switch op.kind {
	case OpJx:
		return BasisJx
	case OpJy:
		return BasisJy
	default:
		return BasisJz
	}
}

// ============================================================
// Application
// ============================================================

// Apply acts an operator on an expression built from states, tensor
// products, scalar multiples, sums and formal Sum nodes. Cross-basis
// applications rewrite the state into the operator's native basis, act
// there, and rewrite the result back.
func Apply(op SpinOp, e Expr) (Expr, error) {
	switch v := e.(type) {
	case *State:
		return applyState(op, v)
	case *TensorProduct:
		return applyTensorProduct(op, v)
	case *Add:
		var terms []Expr
		for _, t := range v.terms {
			r, err := Apply(op, t)
			if err != nil {
				return nil, err
			}
			terms = append(terms, r)
		}
		return AddOf(terms...), nil
	case *Mul:
		var scalars []Expr
		var inner Expr
		for _, f := range v.factors {
			switch f.exprType() {
			case "state", "tensor", "sum":
				if inner != nil {
					return nil, fmt.Errorf("gospin: cannot apply operator to a product of states")
				}
				inner = f
			default:
				scalars = append(scalars, f)
			}
		}
		if inner == nil {
			return nil, fmt.Errorf("gospin: no state to apply %s to in %s", op, e)
		}
		r, err := Apply(op, inner)
		if err != nil {
			return nil, err
		}
		return MulOf(append(scalars, r)...), nil
	case *Sum:
		r, err := Apply(op, v.body)
		if err != nil {
			return nil, err
		}
		if r.Equal(v.body) {
			return nil, ErrNotImplemented
		}
		return (&Sum{body: r, limits: v.limits}).Simplify(), nil
	case *Num:
		if v.IsZero() {
			return N(0), nil
		}
	}
	return nil, fmt.Errorf("gospin: cannot apply %s to %s", op, e.String())
}

func applyState(op SpinOp, s *State) (Expr, error) {
	if s.bra {
		return nil, fmt.Errorf("gospin: operators act on kets, got bra %s", s)
	}
	// J² is basis independent
	if op.kind == OpJ2 {
		return MulOf(PowOf(Hbar, N(2)), s.j, AddOf(s.j, N(1)), s), nil
	}
	// eigenbasis of a component operator: J_i |j,m>_i = hbar m |j,m>_i
	if (op.kind == OpJx && s.basis == BasisJx) ||
		(op.kind == OpJy && s.basis == BasisJy) ||
		(op.kind == OpJz && s.basis == BasisJz) {
		return MulOf(Hbar, s.m, s), nil
	}
	if s.basis == BasisJz {
		switch op.kind {
		case OpJz:
			return MulOf(Hbar, s.m, s), nil
		case OpJPlus:
			return ladder(s, +1)
		case OpJMinus:
			return ladder(s, -1)
		case OpJx:
			p, err := ladder(s, +1)
			if err != nil {
				return nil, err
			}
			m, err := ladder(s, -1)
			if err != nil {
				return nil, err
			}
			return Expand(MulOf(F(1, 2), AddOf(p, m))), nil
		case OpJy:
			p, err := ladder(s, +1)
			if err != nil {
				return nil, err
			}
			m, err := ladder(s, -1)
			if err != nil {
				return nil, err
			}
			// 1/(2i) = -i/2
			return Expand(MulOf(F(-1, 2), I, AddOf(p, MulOf(N(-1), m)))), nil
		}
	}
	// cross-basis: rewrite into the operator's native basis, act, rewrite
	// back into the original basis
	native := op.nativeBasis()
	rewritten, err := Rewrite(s, native)
	if err != nil {
		return nil, err
	}
	if rewritten.Equal(s) {
		return nil, ErrNotImplemented
	}
	acted, err := Apply(op, rewritten)
	if err != nil {
		return nil, err
	}
	back, err := RewriteExpr(acted, s.basis)
	if err != nil {
		return nil, err
	}
	return Expand(back), nil
}

// ladder applies J+ (dir=+1) or J- (dir=-1) to a Jz-basis state:
//
//	J± |j,m> = hbar sqrt(j(j+1) - m(m±1)) |j,m±1>
//
// with an exact zero at the top/bottom rung.
func ladder(s *State, dir int64) (Expr, error) {
	jn, jNum := s.j.(*Num)
	mn, mNum := s.m.(*Num)
	if jNum && mNum {
		next := numAdd(mn, N(dir))
		if numCmp(next, jn) > 0 || numCmp(next, numNeg(jn)) < 0 {
			return N(0), nil
		}
		coeff := MulOf(Hbar, SqrtOf(AddOf(
			numMul(jn, numAdd(jn, N(1))),
			numNeg(numMul(mn, next)),
		)))
		return MulOf(coeff, s.withJM(s.j, next)), nil
	}
	next := AddOf(s.m, N(dir))
	coeff := MulOf(Hbar, SqrtOf(AddOf(
		MulOf(s.j, AddOf(s.j, N(1))),
		MulOf(N(-1), s.m, next),
	)))
	return MulOf(coeff, s.withJM(s.j, next)), nil
}

func applyTensorProduct(op SpinOp, tp *TensorProduct) (Expr, error) {
	if op.kind == OpJ2 {
		// J² on a product space couples the factors; there is no
		// closed action without coupling first
		return nil, ErrNotImplemented
	}
	var terms []Expr
	for i := range tp.factors {
		r, err := applyState(op, tp.factors[i])
		if err != nil {
			return nil, err
		}
		t, err := spliceTensor(r, tp.factors, i)
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	return AddOf(terms...), nil
}

// spliceTensor rebuilds a tensor product with factor i replaced by the
// (scalar-weighted sum of) states in r.
func spliceTensor(r Expr, factors []*State, i int) (Expr, error) {
	rebuild := func(st *State) Expr {
		fs := make([]*State, len(factors))
		copy(fs, factors)
		fs[i] = st
		return &TensorProduct{factors: fs}
	}
	switch v := r.(type) {
	case *Num:
		if v.IsZero() {
			return N(0), nil
		}
	case *State:
		return rebuild(v), nil
	case *Mul:
		var scalars []Expr
		var st *State
		for _, f := range v.factors {
			if s, ok := f.(*State); ok {
				st = s
			} else {
				scalars = append(scalars, f)
			}
		}
		if st != nil {
			return MulOf(append(scalars, rebuild(st))...), nil
		}
	case *Add:
		var terms []Expr
		for _, t := range v.terms {
			e, err := spliceTensor(t, factors, i)
			if err != nil {
				return nil, err
			}
			terms = append(terms, e)
		}
		return AddOf(terms...), nil
	}
	return nil, fmt.Errorf("gospin: cannot place %s into a tensor product", r.String())
}

// ============================================================
// Matrix representation
// ============================================================

// RepresentOp builds the (2j+1)x(2j+1) matrix of an operator in the Jz
// basis, rows and columns ordered by descending m.
func RepresentOp(op SpinOp, j Expr) (*Matrix, error) {
	mvals, err := mValuesDesc(j)
	if err != nil {
		return nil, err
	}
	jn := j.(*Num)
	d := len(mvals)
	switch op.kind {
	case OpJz:
		out := NewMatrix(d, d)
		for i, m := range mvals {
			out.Set(i, i, MulOf(Hbar, m))
		}
		return out, nil
	case OpJ2:
		out := NewMatrix(d, d)
		eig := MulOf(PowOf(Hbar, N(2)), jn, numAdd(jn, N(1)))
		for i := range mvals {
			out.Set(i, i, eig)
		}
		return out, nil
	case OpJPlus:
		out := NewMatrix(d, d)
		for i := 1; i < d; i++ {
			m := mvals[i]
			c := MulOf(Hbar, SqrtOf(AddOf(
				numMul(jn, numAdd(jn, N(1))),
				numNeg(numMul(m, numAdd(m, N(1)))),
			)))
			out.Set(i-1, i, c)
		}
		return out, nil
	case OpJMinus:
		out := NewMatrix(d, d)
		for i := 0; i < d-1; i++ {
			m := mvals[i]
			c := MulOf(Hbar, SqrtOf(AddOf(
				numMul(jn, numAdd(jn, N(1))),
				numNeg(numMul(m, numAdd(m, N(-1)))),
			)))
			out.Set(i+1, i, c)
		}
		return out, nil
	case OpJx:
		p, err := RepresentOp(Jplus, j)
		if err != nil {
			return nil, err
		}
		m, err := RepresentOp(Jminus, j)
		if err != nil {
			return nil, err
		}
		return p.MatAdd(m).Scale(F(1, 2)), nil
	case OpJy:
		p, err := RepresentOp(Jplus, j)
		if err != nil {
			return nil, err
		}
		m, err := RepresentOp(Jminus, j)
		if err != nil {
			return nil, err
		}
		return p.MatAdd(m.Scale(N(-1))).Scale(MulOf(F(-1, 2), I)), nil
	}
	return nil, fmt.Errorf("gospin: cannot represent %s", op)
}

// RepresentCDense evaluates RepresentOp numerically (hbar = 1) into a
// gonum complex matrix.
func RepresentCDense(op SpinOp, j Expr) (*mat.CDense, error) {
	sym, err := RepresentOp(op, j)
	if err != nil {
		return nil, err
	}
	numeric := sym.ApplySub("hbar", N(1))
	d := numeric.Rows()
	out := mat.NewCDense(d, d, nil)
	for r := 0; r < d; r++ {
		for c := 0; c < d; c++ {
			v, ok := evalComplex(numeric.Get(r, c))
			if !ok {
				return nil, fmt.Errorf("gospin: entry (%d,%d) = %s is not numeric", r, c, numeric.Get(r, c))
			}
			out.Set(r, c, v)
		}
	}
	return out, nil
}

// MatrixElement returns <j,m| op |jp,mp> in the Jz basis for numeric
// quantum numbers.
func MatrixElement(op SpinOp, j, m, jp, mp Expr) (Expr, error) {
	jn, ok1 := j.(*Num)
	mn, ok2 := m.(*Num)
	jpn, ok3 := jp.(*Num)
	mpn, ok4 := mp.(*Num)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil, fmt.Errorf("gospin: matrix elements need numeric quantum numbers")
	}
	if numCmp(jn, jpn) != 0 {
		return N(0), nil
	}
	delta := func(shift int64) bool { return numCmp(mn, numAdd(mpn, N(shift))) == 0 }
	switch op.kind {
	case OpJz:
		if delta(0) {
			return MulOf(Hbar, mpn), nil
		}
	case OpJ2:
		if delta(0) {
			return MulOf(PowOf(Hbar, N(2)), jpn, numAdd(jpn, N(1))), nil
		}
	case OpJPlus:
		if delta(1) {
			return MulOf(Hbar, SqrtOf(AddOf(
				numMul(jpn, numAdd(jpn, N(1))),
				numNeg(numMul(mpn, numAdd(mpn, N(1)))),
			))), nil
		}
	case OpJMinus:
		if delta(-1) {
			return MulOf(Hbar, SqrtOf(AddOf(
				numMul(jpn, numAdd(jpn, N(1))),
				numNeg(numMul(mpn, numAdd(mpn, N(-1)))),
			))), nil
		}
	case OpJx:
		p, err := MatrixElement(Jplus, j, m, jp, mp)
		if err != nil {
			return nil, err
		}
		q, err := MatrixElement(Jminus, j, m, jp, mp)
		if err != nil {
			return nil, err
		}
		return MulOf(F(1, 2), AddOf(p, q)), nil
	case OpJy:
		p, err := MatrixElement(Jplus, j, m, jp, mp)
		if err != nil {
			return nil, err
		}
		q, err := MatrixElement(Jminus, j, m, jp, mp)
		if err != nil {
			return nil, err
		}
		return MulOf(F(-1, 2), I, AddOf(p, MulOf(N(-1), q))), nil
	}
	return N(0), nil
}

// ============================================================
// Commutators and operator rewrites
// ============================================================

// Commutator returns [a, b] for the su(2) algebra:
//
//	[Jx,Jy] = i hbar Jz (cyclic), [Jz,J±] = ±hbar J±,
//	[J+,J-] = 2 hbar Jz, [J², ·] = 0.
func Commutator(a, b SpinOp) (Expr, error) {
	if a.kind == b.kind {
		return N(0), nil
	}
	if a.kind == OpJ2 || b.kind == OpJ2 {
		return N(0), nil
	}
	type pair struct{ a, b OpKind }
	table := map[pair]Expr{
		{OpJx, OpJy}:     MulOf(I, Hbar, Jz),
		{OpJy, OpJz}:     MulOf(I, Hbar, Jx),
		{OpJz, OpJx}:     MulOf(I, Hbar, Jy),
		{OpJz, OpJPlus}:  MulOf(Hbar, Jplus),
		{OpJz, OpJMinus}: MulOf(N(-1), Hbar, Jminus),
		{OpJPlus, OpJMinus}: MulOf(N(2), Hbar, Jz),
		{OpJx, OpJPlus}:  MulOf(N(-1), Hbar, Jz),
		{OpJx, OpJMinus}: MulOf(Hbar, Jz),
		{OpJy, OpJPlus}:  MulOf(N(-1), I, Hbar, Jz),
		{OpJy, OpJMinus}: MulOf(N(-1), I, Hbar, Jz),
	}
	if v, ok := table[pair{a.kind, b.kind}]; ok {
		return v, nil
	}
	if v, ok := table[pair{b.kind, a.kind}]; ok {
		return MulOf(N(-1), v), nil
	}
	return nil, fmt.Errorf("gospin: no commutator rule for [%s, %s]", a, b)
}

// AsXYZ rewrites an operator in terms of the Cartesian components.
func (op SpinOp) AsXYZ() Expr {
	switch op.kind {
	case OpJPlus:
		return AddOf(Jx, MulOf(I, Jy))
	case OpJMinus:
		return AddOf(Jx, MulOf(N(-1), I, Jy))
	case OpJ2:
		return AddOf(PowOf(Jx, N(2)), PowOf(Jy, N(2)), PowOf(Jz, N(2)))
	}
	return op
}

// AsLadder rewrites an operator in terms of the ladder operators and Jz.
func (op SpinOp) AsLadder() Expr {
	switch op.kind {
	case OpJx:
		return MulOf(F(1, 2), AddOf(Jplus, Jminus))
	case OpJy:
		return MulOf(F(-1, 2), I, AddOf(Jplus, MulOf(N(-1), Jminus)))
	case OpJ2:
		return AddOf(
			PowOf(Jz, N(2)),
			MulOf(F(1, 2), AddOf(MulOf(Jplus, Jminus), MulOf(Jminus, Jplus))),
		)
	}
	return op
}
