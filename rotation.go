package gospin

import (
	"fmt"
	"math/big"
	"strings"
)

// ============================================================
// Rotation operator
// ============================================================

// Rotation is the Wigner rotation operator R(alpha, beta, gamma) in the
// z-y-z Euler angle convention.
type Rotation struct {
	alpha, beta, gamma Expr
}

func NewRotation(alpha, beta, gamma Expr) *Rotation {
	return &Rotation{alpha: alpha.Simplify(), beta: beta.Simplify(), gamma: gamma.Simplify()}
}

func (r *Rotation) Alpha() Expr { return r.alpha }
func (r *Rotation) Beta() Expr  { return r.beta }
func (r *Rotation) Gamma() Expr { return r.gamma }

// Inverse returns R(-gamma, -beta, -alpha), the inverse rotation.
func (r *Rotation) Inverse() *Rotation {
	return NewRotation(MulOf(N(-1), r.gamma), MulOf(N(-1), r.beta), MulOf(N(-1), r.alpha))
}

func (r *Rotation) String() string {
	return fmt.Sprintf("R(%s, %s, %s)", r.alpha, r.beta, r.gamma)
}

// D returns the matrix element <j,m| R |j,mp> as an unevaluated WignerD
// node.
func (r *Rotation) D(j, m, mp Expr) *WignerD {
	return NewWignerD(j, m, mp, r.alpha, r.beta, r.gamma)
}

// RotationD is shorthand for the full D-function D^j_{m,mp}(alpha, beta,
// gamma).
func RotationD(j, m, mp, alpha, beta, gamma Expr) *WignerD {
	return NewWignerD(j, m, mp, alpha, beta, gamma)
}

// RotationSmallD is the small d-function d^j_{m,mp}(beta), the D-function
// with alpha = gamma = 0.
func RotationSmallD(j, m, mp, beta Expr) *WignerD {
	return NewWignerD(j, m, mp, N(0), beta, N(0))
}

// RotationMatrix builds the (2j+1)x(2j+1) Wigner D-matrix for a numeric j,
// rows and columns ordered by descending m.
func RotationMatrix(j, alpha, beta, gamma Expr) (*Matrix, error) {
	mvals, err := mValuesDesc(j)
	if err != nil {
		return nil, err
	}
	d := len(mvals)
	out := NewMatrix(d, d)
	for r := 0; r < d; r++ {
		for c := 0; c < d; c++ {
			v, err := NewWignerD(j, mvals[r], mvals[c], alpha, beta, gamma).Doit()
			if err != nil {
				return nil, err
			}
			out.Set(r, c, v)
		}
	}
	return out, nil
}

// ============================================================
// Wigner D-function
// ============================================================

// WignerD is the unevaluated matrix element D^j_{m,mp}(alpha, beta,
// gamma). It participates in expressions (the symbolic basis-rewrite sums)
// and evaluates exactly through Doit for numeric j.
type WignerD struct {
	j, m, mp, alpha, beta, gamma Expr
}

func NewWignerD(j, m, mp, alpha, beta, gamma Expr) *WignerD {
	return &WignerD{
		j: j.Simplify(), m: m.Simplify(), mp: mp.Simplify(),
		alpha: alpha.Simplify(), beta: beta.Simplify(), gamma: gamma.Simplify(),
	}
}

func (w *WignerD) Simplify() Expr { return w }

func (w *WignerD) String() string {
	parts := make([]string, 6)
	for i, a := range []Expr{w.j, w.m, w.mp, w.alpha, w.beta, w.gamma} {
		parts[i] = a.String()
	}
	return "WignerD(" + strings.Join(parts, ", ") + ")"
}

func (w *WignerD) LaTeX() string {
	if isNumEqual(w.alpha, 0) && isNumEqual(w.gamma, 0) {
		return fmt.Sprintf("d^{%s}_{%s,%s}\\left(%s\\right)",
			w.j.LaTeX(), w.m.LaTeX(), w.mp.LaTeX(), w.beta.LaTeX())
	}
	return fmt.Sprintf("D^{%s}_{%s,%s}\\left(%s,%s,%s\\right)",
		w.j.LaTeX(), w.m.LaTeX(), w.mp.LaTeX(), w.alpha.LaTeX(), w.beta.LaTeX(), w.gamma.LaTeX())
}

func (w *WignerD) Sub(varName string, value Expr) Expr {
	return NewWignerD(
		w.j.Sub(varName, value), w.m.Sub(varName, value), w.mp.Sub(varName, value),
		w.alpha.Sub(varName, value), w.beta.Sub(varName, value), w.gamma.Sub(varName, value),
	)
}

func (w *WignerD) Eval() (*Num, bool) { return nil, false }

func (w *WignerD) Equal(other Expr) bool {
	o, ok := other.(*WignerD)
	if !ok {
		return false
	}
	a := []Expr{w.j, w.m, w.mp, w.alpha, w.beta, w.gamma}
	b := []Expr{o.j, o.m, o.mp, o.alpha, o.beta, o.gamma}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func (w *WignerD) exprType() string { return "wignerd" }

var halfPi = MulOf(F(1, 2), Pi)

// Doit evaluates the D-function. j, m and mp must be numeric; the Euler
// angles may stay symbolic, in which case the result carries symbolic
// trig and exp factors.
func (w *WignerD) Doit() (Expr, error) {
	j, ok1 := w.j.(*Num)
	m, ok2 := w.m.(*Num)
	mp, ok3 := w.mp.(*Num)
	if !ok1 || !ok2 || !ok3 {
		return nil, fmt.Errorf("gospin: numeric j, m, mp required to evaluate %s", w)
	}
	if !j.IsHalfInteger() || j.IsNegative() {
		return nil, fmt.Errorf("gospin: invalid j value %s", j)
	}
	if !numAdd(j, numNeg(m)).IsInteger() || !numAdd(j, numNeg(mp)).IsInteger() {
		return nil, fmt.Errorf("gospin: m, mp must differ from j by integers in %s", w)
	}
	var r Expr
	if w.beta.Equal(halfPi) {
		// Varshalovich Eq. (5), Sec. 4.16, with alpha = gamma = 0
		r = smallDHalfPi(j, m, mp)
	} else {
		// compose two pi/2 rotations: d(j,m,mp,beta) built from
		// d(j,m,m'',pi/2) e^(-i m'' beta) d(j,m'',-mp,pi/2), then the
		// empirical normalization i^(2j-m-mp) (-1)^(2m) that matches
		// Varshalovich Tables 4.3-4.12
		mvals, err := mValuesDesc(j)
		if err != nil {
			return nil, err
		}
		var terms []Expr
		for _, mpp := range mvals {
			arg := MulOf(N(-1), mpp, w.beta)
			phase := AddOf(CosOf(arg), MulOf(I, SinOf(arg)))
			terms = append(terms, MulOf(
				smallDHalfPi(j, m, mpp),
				phase,
				smallDHalfPi(j, mpp, numNeg(mp)),
			))
		}
		r = AddOf(terms...)
		norm := numAdd(numAdd(numMul(N(2), j), numNeg(m)), numNeg(mp)) // 2j-m-mp
		r = MulOf(r, PowOf(I, norm), PowOf(N(-1), numMul(N(2), m)))
	}
	r = MulOf(r,
		expPhase(w.m, w.alpha),
		expPhase(w.mp, w.gamma),
	)
	return Expand(r), nil
}

// expPhase builds e^(-i*m*angle), exact when the exponent is an imaginary
// rational multiple of pi.
func expPhase(m, angle Expr) Expr {
	return ExpOf(MulOf(N(-1), I, m, angle))
}

// smallDHalfPi is the exact d^j_{m,mp}(pi/2) closed form.
func smallDHalfPi(j, m, mp *Num) Expr {
	jmp := numAdd(j, mp).Int64()  // j+mp
	jm := numAdd(j, numNeg(m)).Int64()   // j-m
	jpm := numAdd(j, m).Int64()   // j+m
	jmmp := numAdd(j, numNeg(mp)).Int64() // j-mp
	kLo := numAdd(mp, numNeg(m)).Int64()  // mp-m

	sum := new(big.Int)
	twoJ := doubled(j)
	for k := int64(0); k <= twoJ; k++ {
		if k > jmp || k > jm || k < kLo {
			continue
		}
		term := new(big.Int).Mul(binomInt(jmp, k), binomInt(jmmp, k+(-kLo)))
		if k%2 != 0 {
			term.Neg(term)
		}
		sum.Add(sum, term)
	}
	if sum.Sign() == 0 {
		return N(0)
	}
	coeff := new(big.Rat).SetInt(sum)
	if (jpm-jmp)%2 != 0 { // (-1)^(m-mp)
		coeff.Neg(coeff)
	}
	// ratio under the root: (j+m)! (j-m)! / ((j+mp)! (j-mp)!)
	ratio := new(big.Rat).SetFrac(
		new(big.Int).Mul(factInt(jpm), factInt(jm)),
		new(big.Int).Mul(factInt(jmp), factInt(jmmp)),
	)
	return MulOf(
		NumFromRat(coeff),
		PowOf(N(2), numNeg(j)),
		SqrtOf(NumFromRat(ratio)),
	)
}

// ============================================================
// Basis rewriting
// ============================================================

// eulerAngles gives the z-y-z rotation carrying a state of one basis into
// another; the identity triple means no rotation is needed.
func eulerAngles(from, to Basis) (alpha, beta, gamma Expr) {
	zero := Expr(N(0))
	threeHalfPi := MulOf(F(3, 2), Pi)
	negHalfPi := MulOf(F(-1, 2), Pi)
	switch from {
	case BasisJx:
		switch to {
		case BasisJy:
			return threeHalfPi, zero, zero
		case BasisJz:
			return zero, halfPi, zero
		}
	case BasisJy:
		switch to {
		case BasisJx:
			return zero, zero, halfPi
		case BasisJz:
			return threeHalfPi, negHalfPi, halfPi
		}
	case BasisJz:
		switch to {
		case BasisJx:
			return zero, threeHalfPi, zero
		case BasisJy:
			return threeHalfPi, halfPi, halfPi
		}
	}
	return zero, zero, zero
}

// coupledDim is the dimension of the degenerate space a coupled state with
// total momentum j embeds in: the sum of 2j'+1 over j' = j, j-1, ...
// down to 0 or 1/2.
func coupledDim(j *Num) int {
	dim := int64(0)
	for tj := doubled(j); tj >= 0; tj -= 2 {
		dim += tj + 1
	}
	return int(dim)
}

// coupledStart is the row offset of that embedded block: j^2 for integer
// j, (2j-1)(2j+1)/4 for half-integer j.
func coupledStart(j *Num) int {
	tj := doubled(j)
	if tj%2 == 0 {
		return int((tj / 2) * (tj / 2))
	}
	return int((tj - 1) * (tj + 1) / 4)
}

// Represent builds the column-vector representation of a state in the
// given basis, entries ordered by descending m. Coupled states embed
// their 2j+1 block at the standard offset inside the degenerate-space
// dimension. j must be numeric.
func Represent(s *State, basis Basis) (*Matrix, error) {
	j, ok := s.j.(*Num)
	if !ok {
		return nil, fmt.Errorf("gospin: cannot represent state with symbolic j: %s", s)
	}
	block, err := representBlock(s, basis)
	if err != nil {
		return nil, err
	}
	if !s.coupled {
		return block, nil
	}
	dim := coupledDim(j)
	start := coupledStart(j)
	out := NewMatrix(dim, 1)
	for i := 0; i < block.Rows(); i++ {
		out.Set(start+i, 0, block.Get(i, 0))
	}
	return out, nil
}

// representBlock is the bare (2j+1)-vector of D-function values, without
// coupled-space padding. Bra states conjugate the ket coefficients.
func representBlock(s *State, basis Basis) (*Matrix, error) {
	alpha, beta, gamma := eulerAngles(s.basis, basis)
	mvals, err := mValuesDesc(s.j)
	if err != nil {
		return nil, err
	}
	out := NewMatrix(len(mvals), 1)
	for p, mval := range mvals {
		d := NewWignerD(s.j, mval, s.m, alpha, beta, gamma)
		var entry Expr
		if _, ok := s.m.(*Num); ok {
			entry, err = d.Doit()
			if err != nil {
				return nil, err
			}
		} else {
			entry = d
		}
		if s.bra {
			entry = conjExpr(entry)
		}
		out.Set(p, 0, entry)
	}
	return out, nil
}

// Rewrite expresses a state in another eigenbasis. A numeric-j state
// expands into a weighted sum over the target basis states; a symbolic-j
// state yields a formal Sum over a fresh bound m symbol. Rewriting into
// the state's own basis is the identity.
func Rewrite(s *State, basis Basis) (Expr, error) {
	if s.basis == basis {
		return s, nil
	}
	if j, ok := s.j.(*Num); ok {
		block, err := representBlock(s, basis)
		if err != nil {
			return nil, err
		}
		mvals, err := mValuesDesc(j)
		if err != nil {
			return nil, err
		}
		var terms []Expr
		for i, mval := range mvals {
			st := &State{
				j: s.j, m: mval, basis: basis, bra: s.bra,
				coupled: s.coupled, jn: s.jn, coupledN: s.coupledN, coupledJn: s.coupledJn,
			}
			terms = append(terms, MulOf(block.Get(i, 0), st))
		}
		return AddOf(terms...), nil
	}
	// symbolic j: formal sum over the target basis m values
	mi := freshSym("mi", s)
	alpha, beta, gamma := eulerAngles(s.basis, basis)
	st := &State{
		j: s.j, m: mi, basis: basis, bra: s.bra,
		coupled: s.coupled, jn: s.jn, coupledN: s.coupledN, coupledJn: s.coupledJn,
	}
	lt := NewWignerD(s.j, mi, s.m, alpha, beta, gamma)
	return SumOf(MulOf(lt, st), SumLimit{Var: mi, Lo: MulOf(N(-1), s.j), Hi: s.j}), nil
}

// RewriteUncoupled rewrites a coupled state into the target basis and then
// expands it over uncoupled tensor products.
func RewriteUncoupled(s *State, basis Basis) (Expr, error) {
	if !s.coupled {
		return Rewrite(s, basis)
	}
	r, err := Rewrite(s, basis)
	if err != nil {
		return nil, err
	}
	return Uncouple(r, nil, nil)
}

// RewriteExpr maps Rewrite over an expression: states rewrite, tensor
// products rewrite factor-wise and expand, scalars pass through.
func RewriteExpr(e Expr, basis Basis) (Expr, error) {
	switch v := e.(type) {
	case *State:
		return Rewrite(v, basis)
	case *TensorProduct:
		return rewriteTensorProduct(v, basis)
	case *Add:
		var terms []Expr
		for _, t := range v.terms {
			r, err := RewriteExpr(t, basis)
			if err != nil {
				return nil, err
			}
			terms = append(terms, r)
		}
		return AddOf(terms...), nil
	case *Mul:
		var factors []Expr
		for _, f := range v.factors {
			r, err := RewriteExpr(f, basis)
			if err != nil {
				return nil, err
			}
			factors = append(factors, r)
		}
		return MulOf(factors...), nil
	case *Sum:
		body, err := RewriteExpr(v.body, basis)
		if err != nil {
			return nil, err
		}
		return (&Sum{body: body, limits: v.limits}).Simplify(), nil
	}
	return e, nil
}

// rewriteTensorProduct rewrites every factor and distributes the resulting
// sums back into tensor products.
func rewriteTensorProduct(tp *TensorProduct, basis Basis) (Expr, error) {
	type weighted struct {
		coeff  []Expr
		states []*State
	}
	acc := []weighted{{}}
	for _, f := range tp.factors {
		r, err := Rewrite(f, basis)
		if err != nil {
			return nil, err
		}
		options, err := weightedStates(r)
		if err != nil {
			return nil, err
		}
		var next []weighted
		for _, w := range acc {
			for _, opt := range options {
				next = append(next, weighted{
					coeff:  append(append([]Expr{}, w.coeff...), opt.coeff...),
					states: append(append([]*State{}, w.states...), opt.states...),
				})
			}
		}
		acc = next
	}
	var terms []Expr
	for _, w := range acc {
		t := &TensorProduct{factors: w.states}
		terms = append(terms, MulOf(append(w.coeff, Expr(t))...))
	}
	return AddOf(terms...), nil
}

type weightedState struct {
	coeff  []Expr
	states []*State
}

// weightedStates decomposes a rewrite result into (scalar, state) pairs.
func weightedStates(e Expr) ([]weightedState, error) {
	switch v := e.(type) {
	case *State:
		return []weightedState{{states: []*State{v}}}, nil
	case *Mul:
		var coeff []Expr
		var st *State
		for _, f := range v.factors {
			if s, ok := f.(*State); ok {
				if st != nil {
					return nil, fmt.Errorf("gospin: unexpected state product in %s", e)
				}
				st = s
			} else {
				coeff = append(coeff, f)
			}
		}
		if st == nil {
			return nil, fmt.Errorf("gospin: no state in %s", e)
		}
		return []weightedState{{coeff: coeff, states: []*State{st}}}, nil
	case *Add:
		var out []weightedState
		for _, t := range v.terms {
			ws, err := weightedStates(t)
			if err != nil {
				return nil, err
			}
			out = append(out, ws...)
		}
		return out, nil
	}
	return nil, fmt.Errorf("gospin: cannot decompose %s into weighted states", e.String())
}

// ============================================================
// Inner products
// ============================================================

// InnerProduct evaluates <bra|ket> for two plain spin states. Same-basis
// products reduce to Kronecker deltas; cross-basis products read off the
// matching component of the ket represented in the bra's basis.
func InnerProduct(bra, ket *State) (Expr, error) {
	if !bra.bra {
		return nil, fmt.Errorf("gospin: first argument must be a bra, got %s", bra)
	}
	if ket.bra {
		return nil, fmt.Errorf("gospin: second argument must be a ket, got %s", ket)
	}
	if bra.coupled || ket.coupled {
		return nil, fmt.Errorf("gospin: inner products of coupled states are not supported")
	}
	if bra.basis == ket.basis {
		if bra.j.Equal(ket.j) && bra.m.Equal(ket.m) {
			return N(1), nil
		}
		bj, ok1 := bra.j.(*Num)
		bm, ok2 := bra.m.(*Num)
		kj, ok3 := ket.j.(*Num)
		km, ok4 := ket.m.(*Num)
		if ok1 && ok2 && ok3 && ok4 {
			if numCmp(bj, kj) != 0 || numCmp(bm, km) != 0 {
				return N(0), nil
			}
			return N(1), nil
		}
		return nil, fmt.Errorf("gospin: cannot decide equality of symbolic quantum numbers in <%s|%s>",
			bra, ket)
	}
	bj, ok1 := bra.j.(*Num)
	bm, ok2 := bra.m.(*Num)
	kj, ok3 := ket.j.(*Num)
	if !ok1 || !ok2 || !ok3 {
		return nil, fmt.Errorf("gospin: cross-basis inner products need numeric quantum numbers")
	}
	if numCmp(bj, kj) != 0 {
		return N(0), nil
	}
	vect, err := Represent(ket, bra.basis)
	if err != nil {
		return nil, err
	}
	idx := numAdd(bj, numNeg(bm))
	if !idx.IsInteger() {
		return N(0), nil
	}
	return vect.Get(int(idx.Int64()), 0), nil
}
