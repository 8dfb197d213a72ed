// Package gospin is a symbolic angular-momentum algebra library.
//
// It provides spin operators, angular-momentum eigenstates, Clebsch-Gordan
// coupling and uncoupling of product states, and Wigner D-function
// evaluation, all in exact arithmetic.
//
// Design goals:
//   - Exact rational and radical arithmetic (math/big.Rat underneath)
//   - Deterministic simplification and stable output
//   - Immutable algebraic values, safe for concurrent use
//   - Embeddable in Go services and CLI tools
package gospin

import (
	"fmt"
	"math"
	"math/big"
	"sort"
	"strings"
)

// ============================================================
// Core Interface
// ============================================================

// Expr is a symbolic expression. Implementations are immutable; Simplify,
// Sub and the arithmetic constructors always return new values.
type Expr interface {
	Simplify() Expr
	String() string
	LaTeX() string
	Sub(varName string, value Expr) Expr
	Eval() (*Num, bool)
	Equal(other Expr) bool
	exprType() string
}

// ============================================================
// Num — exact rational number
// ============================================================

type Num struct{ val *big.Rat }

func N(n int64) *Num { return &Num{val: new(big.Rat).SetInt64(n)} }
func F(p, q int64) *Num {
	if q == 0 {
		panic("gospin: denominator is zero")
	}
	return &Num{val: new(big.Rat).SetFrac(big.NewInt(p), big.NewInt(q))}
}
func NumFromRat(r *big.Rat) *Num { return &Num{val: new(big.Rat).Set(r)} }

func (n *Num) Simplify() Expr        { return n }
func (n *Num) Sub(string, Expr) Expr { return n }
func (n *Num) Eval() (*Num, bool)    { return n, true }
func (n *Num) Equal(other Expr) bool { o, ok := other.(*Num); return ok && n.val.Cmp(o.val) == 0 }
func (n *Num) exprType() string      { return "num" }
func (n *Num) Float64() float64      { f, _ := n.val.Float64(); return f }
func (n *Num) IsZero() bool          { return n.val.Sign() == 0 }
func (n *Num) IsOne() bool           { return n.val.Cmp(ratOne) == 0 }
func (n *Num) IsNegOne() bool        { return n.val.Cmp(ratNegOne) == 0 }
func (n *Num) IsInteger() bool       { return n.val.IsInt() }
func (n *Num) IsPositive() bool      { return n.val.Sign() > 0 }
func (n *Num) IsNegative() bool      { return n.val.Sign() < 0 }
func (n *Num) Rat() *big.Rat         { return new(big.Rat).Set(n.val) }

// IsHalfInteger reports whether 2*n is an integer.
func (n *Num) IsHalfInteger() bool {
	two := new(big.Rat).SetInt64(2)
	return new(big.Rat).Mul(n.val, two).IsInt()
}

// Int64 returns the value as an int64. Panics if the value is not an
// integer in range; callers check IsInteger first.
func (n *Num) Int64() int64 {
	if !n.val.IsInt() {
		panic(fmt.Sprintf("gospin: Int64 on non-integer %s", n.String()))
	}
	return n.val.Num().Int64()
}

var (
	ratOne    = new(big.Rat).SetInt64(1)
	ratNegOne = new(big.Rat).SetInt64(-1)
)

func (n *Num) String() string {
	if n.val.IsInt() {
		return n.val.Num().String()
	}
	return n.val.RatString()
}

func (n *Num) LaTeX() string {
	if n.val.IsInt() {
		return n.val.Num().String()
	}
	sign := ""
	v := new(big.Rat).Set(n.val)
	if v.Sign() < 0 {
		sign = "-"
		v.Neg(v)
	}
	return fmt.Sprintf("%s\\frac{%s}{%s}", sign, v.Num().String(), v.Denom().String())
}

func numAdd(a, b *Num) *Num { return &Num{val: new(big.Rat).Add(a.val, b.val)} }
func numMul(a, b *Num) *Num { return &Num{val: new(big.Rat).Mul(a.val, b.val)} }
func numNeg(a *Num) *Num    { return &Num{val: new(big.Rat).Neg(a.val)} }
func numCmp(a, b *Num) int  { return a.val.Cmp(b.val) }

// ============================================================
// Sym — symbolic variable
// ============================================================

type Sym struct{ name string }

func S(name string) *Sym          { return &Sym{name: name} }
func (s *Sym) Simplify() Expr     { return s }
func (s *Sym) String() string     { return s.name }
func (s *Sym) LaTeX() string      { return s.name }
func (s *Sym) Eval() (*Num, bool) { return nil, false }
func (s *Sym) Equal(other Expr) bool {
	o, ok := other.(*Sym)
	return ok && s.name == o.name
}
func (s *Sym) exprType() string { return "sym" }
func (s *Sym) Name() string     { return s.name }
func (s *Sym) Sub(varName string, value Expr) Expr {
	if s.name == varName {
		return value
	}
	return s
}

// Pi is the circle constant. Trigonometric functions of rational multiples
// of Pi evaluate exactly where a closed form exists.
var Pi = S("pi")

// Hbar is the reduced Planck constant, kept symbolic in all operator
// results. Substitute it away (Sub("hbar", N(1))) for numeric work.
var Hbar = S("hbar")

// ============================================================
// Imag — the imaginary unit
// ============================================================

type Imag struct{}

// I is the imaginary unit. Products fold powers of I exactly.
var I = &Imag{}

func (i *Imag) Simplify() Expr        { return i }
func (i *Imag) String() string        { return "I" }
func (i *Imag) LaTeX() string         { return "i" }
func (i *Imag) Sub(string, Expr) Expr { return i }
func (i *Imag) Eval() (*Num, bool)    { return nil, false }
func (i *Imag) Equal(other Expr) bool { _, ok := other.(*Imag); return ok }
func (i *Imag) exprType() string      { return "imag" }

// ============================================================
// Add — sum of terms
// ============================================================

type Add struct{ terms []Expr }

func AddOf(terms ...Expr) Expr { return (&Add{terms: terms}).Simplify() }

// Simplify flattens nested sums and groups terms sharing the same
// non-numeric part, summing their rational coefficients exactly. Group
// order is first appearance, so enumeration order in the coupling engine
// is preserved in the output.
func (a *Add) Simplify() Expr {
	flat := make([]Expr, 0, len(a.terms))
	for _, t := range a.terms {
		s := t.Simplify()
		if inner, ok := s.(*Add); ok {
			flat = append(flat, inner.terms...)
		} else {
			flat = append(flat, s)
		}
	}
	numAccum := new(big.Rat)
	type group struct {
		rest  []Expr // non-numeric factors, already simplified
		coeff *big.Rat
	}
	order := []string{}
	groups := map[string]*group{}
	for _, t := range flat {
		coeff, rest := splitRatCoeff(t)
		if rest == nil {
			numAccum.Add(numAccum, coeff)
			continue
		}
		key := restKey(rest)
		g, seen := groups[key]
		if !seen {
			g = &group{rest: rest, coeff: new(big.Rat)}
			groups[key] = g
			order = append(order, key)
		}
		g.coeff.Add(g.coeff, coeff)
	}
	result := []Expr{}
	for _, key := range order {
		g := groups[key]
		switch {
		case g.coeff.Sign() == 0:
			continue
		case g.coeff.Cmp(ratOne) == 0 && len(g.rest) == 1:
			result = append(result, g.rest[0])
		case g.coeff.Cmp(ratOne) == 0:
			result = append(result, &Mul{factors: g.rest})
		default:
			fs := append([]Expr{&Num{val: new(big.Rat).Set(g.coeff)}}, g.rest...)
			result = append(result, &Mul{factors: fs})
		}
	}
	if numAccum.Sign() != 0 {
		result = append(result, &Num{val: numAccum})
	}
	if len(result) == 0 {
		return N(0)
	}
	if len(result) == 1 {
		return result[0]
	}
	return &Add{terms: result}
}

// splitRatCoeff splits a simplified term into its rational coefficient and
// remaining factors. rest is nil for a pure number.
func splitRatCoeff(t Expr) (*big.Rat, []Expr) {
	switch v := t.(type) {
	case *Num:
		return new(big.Rat).Set(v.val), nil
	case *Mul:
		if len(v.factors) > 0 {
			if c, ok := v.factors[0].(*Num); ok {
				return new(big.Rat).Set(c.val), v.factors[1:]
			}
		}
		return new(big.Rat).SetInt64(1), v.factors
	default:
		return new(big.Rat).SetInt64(1), []Expr{t}
	}
}

func restKey(rest []Expr) string {
	parts := make([]string, len(rest))
	for i, r := range rest {
		parts[i] = r.String()
	}
	return strings.Join(parts, "*")
}

func (a *Add) String() string {
	if len(a.terms) == 0 {
		return "0"
	}
	var sb strings.Builder
	for i, t := range a.terms {
		s := t.String()
		if i == 0 {
			sb.WriteString(s)
		} else if strings.HasPrefix(s, "-") {
			sb.WriteString(" - ")
			sb.WriteString(s[1:])
		} else {
			sb.WriteString(" + ")
			sb.WriteString(s)
		}
	}
	return sb.String()
}

func (a *Add) LaTeX() string {
	parts := make([]string, len(a.terms))
	for i, t := range a.terms {
		parts[i] = t.LaTeX()
	}
	return strings.Join(parts, " + ")
}

func (a *Add) Sub(varName string, value Expr) Expr {
	newTerms := make([]Expr, len(a.terms))
	for i, t := range a.terms {
		newTerms[i] = t.Sub(varName, value)
	}
	return AddOf(newTerms...)
}

func (a *Add) Eval() (*Num, bool) {
	acc := N(0)
	for _, t := range a.terms {
		v, ok := t.Eval()
		if !ok {
			return nil, false
		}
		acc = numAdd(acc, v)
	}
	return acc, true
}

func (a *Add) Equal(other Expr) bool {
	o, ok := other.(*Add)
	if !ok || len(a.terms) != len(o.terms) {
		return false
	}
	for i := range a.terms {
		if !a.terms[i].Equal(o.terms[i]) {
			return false
		}
	}
	return true
}

func (a *Add) exprType() string { return "add" }
func (a *Add) Terms() []Expr    { return a.terms }

// ============================================================
// Mul — product of factors
// ============================================================

type Mul struct{ factors []Expr }

func MulOf(factors ...Expr) Expr { return (&Mul{factors: factors}).Simplify() }

// Simplify flattens nested products and normalizes to the canonical form
//
//	coeff * sqrt(f) * I * (other factors, sorted)
//
// folding rational coefficients, merging square roots of rationals into a
// single square-free radical, reducing powers of I mod 4, and collecting
// repeated factors into powers.
func (m *Mul) Simplify() Expr {
	flat := make([]Expr, 0, len(m.factors))
	for _, f := range m.factors {
		s := f.Simplify()
		if inner, ok := s.(*Mul); ok {
			flat = append(flat, inner.factors...)
		} else {
			flat = append(flat, s)
		}
	}
	coeff := new(big.Rat).SetInt64(1)
	rad := new(big.Rat).SetInt64(1)
	imagCount := 0
	type powGroup struct {
		base Expr
		exp  *big.Rat
	}
	order := []string{}
	groups := map[string]*powGroup{}
	others := []Expr{} // factors with non-numeric exponents, kept as-is
	addPow := func(base Expr, exp *big.Rat) {
		key := base.String()
		g, seen := groups[key]
		if !seen {
			g = &powGroup{base: base, exp: new(big.Rat)}
			groups[key] = g
			order = append(order, key)
		}
		g.exp.Add(g.exp, exp)
	}
	for _, f := range flat {
		switch v := f.(type) {
		case *Num:
			coeff.Mul(coeff, v.val)
		case *Imag:
			imagCount++
		case *Pow:
			if bn, ok := v.base.(*Num); ok {
				if en, ok2 := v.exp.(*Num); ok2 && en.Equal(F(1, 2)) && bn.IsPositive() {
					rad.Mul(rad, bn.val)
					continue
				}
			}
			if _, ok := v.base.(*Imag); ok {
				if en, ok2 := v.exp.(*Num); ok2 && en.IsInteger() {
					imagCount += int(((en.Int64() % 4) + 4) % 4)
					continue
				}
			}
			if en, ok := v.exp.(*Num); ok {
				addPow(v.base, en.val)
				continue
			}
			others = append(others, v)
		default:
			addPow(v, new(big.Rat).SetInt64(1))
		}
	}
	if coeff.Sign() == 0 {
		return N(0)
	}
	// sqrt(a)*sqrt(b) = sqrt(ab), square part extracted into coeff
	radCoeff, radicand := sqrtRat(rad)
	coeff.Mul(coeff, radCoeff)
	switch imagCount % 4 {
	case 2:
		coeff.Neg(coeff)
		imagCount = 0
	case 3:
		coeff.Neg(coeff)
		imagCount = 1
	default:
		imagCount = imagCount % 4
	}
	rest := []Expr{}
	if radicand.Cmp(big.NewInt(1)) != 0 {
		rest = append(rest, &Pow{base: &Num{val: new(big.Rat).SetInt(radicand)}, exp: F(1, 2)})
	}
	if imagCount == 1 {
		rest = append(rest, I)
	}
	grouped := []Expr{}
	for _, key := range order {
		g := groups[key]
		switch {
		case g.exp.Sign() == 0:
			continue
		case g.exp.Cmp(ratOne) == 0:
			grouped = append(grouped, g.base)
		default:
			grouped = append(grouped, PowOf(g.base, &Num{val: g.exp}))
		}
	}
	grouped = append(grouped, others...)
	sort.SliceStable(grouped, func(i, j int) bool {
		return mulRank(grouped[i]) < mulRank(grouped[j])
	})
	rest = append(rest, grouped...)
	if len(rest) == 0 {
		return &Num{val: coeff}
	}
	if coeff.Cmp(ratOne) == 0 {
		if len(rest) == 1 {
			return rest[0]
		}
		return &Mul{factors: rest}
	}
	return &Mul{factors: append([]Expr{&Num{val: coeff}}, rest...)}
}

// mulRank orders product factors: scalars before states and tensor
// products, so coefficients always print in front of kets.
func mulRank(e Expr) int {
	switch e.exprType() {
	case "state", "tensor":
		return 2
	case "cg", "wignerd", "sum":
		return 1
	default:
		return 0
	}
}

func (m *Mul) String() string {
	if len(m.factors) == 0 {
		return "1"
	}
	parts := []string{}
	neg := false
	for i, f := range m.factors {
		if i == 0 {
			if n, ok := f.(*Num); ok && n.IsNegative() {
				neg = true
				abs := numNeg(n)
				if !abs.IsOne() {
					parts = append(parts, abs.String())
				}
				continue
			}
		}
		s := f.String()
		if _, isAdd := f.(*Add); isAdd {
			s = "(" + s + ")"
		}
		parts = append(parts, s)
	}
	out := strings.Join(parts, "*")
	if out == "" {
		out = "1"
	}
	if neg {
		return "-" + out
	}
	return out
}

func (m *Mul) LaTeX() string {
	parts := make([]string, len(m.factors))
	for i, f := range m.factors {
		if _, isAdd := f.(*Add); isAdd {
			parts[i] = "\\left(" + f.LaTeX() + "\\right)"
		} else {
			parts[i] = f.LaTeX()
		}
	}
	return strings.Join(parts, " ")
}

func (m *Mul) Sub(varName string, value Expr) Expr {
	newFactors := make([]Expr, len(m.factors))
	for i, f := range m.factors {
		newFactors[i] = f.Sub(varName, value)
	}
	return MulOf(newFactors...)
}

func (m *Mul) Eval() (*Num, bool) {
	acc := N(1)
	for _, f := range m.factors {
		v, ok := f.Eval()
		if !ok {
			return nil, false
		}
		acc = numMul(acc, v)
	}
	return acc, true
}

func (m *Mul) Equal(other Expr) bool {
	o, ok := other.(*Mul)
	if !ok || len(m.factors) != len(o.factors) {
		return false
	}
	for i := range m.factors {
		if !m.factors[i].Equal(o.factors[i]) {
			return false
		}
	}
	return true
}

func (m *Mul) exprType() string { return "mul" }
func (m *Mul) Factors() []Expr  { return m.factors }

// ============================================================
// Pow — base^exponent, with exact radicals
// ============================================================

type Pow struct{ base, exp Expr }

func PowOf(base, exp Expr) Expr { return (&Pow{base: base, exp: exp}).Simplify() }

// SqrtOf returns the exact square root of arg. For a rational argument the
// result is normalized to coeff*sqrt(f) with f a square-free integer;
// negative radicands pull out a factor of I.
func SqrtOf(arg Expr) Expr { return PowOf(arg, F(1, 2)) }

func (p *Pow) Simplify() Expr {
	base := p.base.Simplify()
	exp := p.exp.Simplify()

	if en, ok := exp.(*Num); ok {
		if en.IsZero() {
			return N(1)
		}
		if en.IsOne() {
			return base
		}
	}
	if bn, ok := base.(*Num); ok {
		if bn.IsZero() {
			if en, ok2 := exp.(*Num); ok2 && (en.IsZero() || en.IsNegative()) {
				return &Pow{base: base, exp: exp} // indeterminate, keep
			}
			return N(0)
		}
		if bn.IsOne() {
			return N(1)
		}
		if en, ok2 := exp.(*Num); ok2 {
			if en.IsInteger() {
				return ratIntPow(bn, en.Int64())
			}
			if en.IsHalfInteger() {
				// b^(k+1/2) = b^k * sqrt(b)
				k := new(big.Rat).Sub(en.val, new(big.Rat).SetFrac64(1, 2))
				kNum := &Num{val: k}
				root := sqrtNumExpr(bn)
				if k.Sign() == 0 {
					return root
				}
				return MulOf(ratIntPow(bn, kNum.Int64()), root)
			}
		}
	}
	if _, ok := base.(*Imag); ok {
		if en, ok2 := exp.(*Num); ok2 && en.IsInteger() {
			switch ((en.Int64() % 4) + 4) % 4 {
			case 0:
				return N(1)
			case 1:
				return I
			case 2:
				return N(-1)
			default:
				return MulOf(N(-1), I)
			}
		}
	}
	if bm, ok := base.(*Mul); ok {
		if en, ok2 := exp.(*Num); ok2 && en.IsInteger() {
			fs := make([]Expr, len(bm.factors))
			for i, f := range bm.factors {
				fs[i] = PowOf(f, en)
			}
			return MulOf(fs...)
		}
	}
	if inner, ok := base.(*Pow); ok {
		return PowOf(inner.base, MulOf(inner.exp, exp))
	}
	return &Pow{base: base, exp: exp}
}

// ratIntPow computes an exact integer power of a rational.
func ratIntPow(b *Num, e int64) *Num {
	neg := e < 0
	if neg {
		e = -e
	}
	num := new(big.Int).Exp(b.val.Num(), big.NewInt(e), nil)
	den := new(big.Int).Exp(b.val.Denom(), big.NewInt(e), nil)
	r := new(big.Rat).SetFrac(num, den)
	if neg {
		if r.Sign() == 0 {
			panic("gospin: division by zero")
		}
		r.Inv(r)
	}
	return &Num{val: r}
}

// sqrtNumExpr returns sqrt of a rational as coeff*sqrt(squarefree). The
// result is built in canonical factor order without re-simplification:
// running it back through Mul.Simplify would re-enter Pow.Simplify on the
// square-free radical and never terminate.
func sqrtNumExpr(b *Num) Expr {
	v := b.val
	negative := v.Sign() < 0
	abs := new(big.Rat).Abs(v)
	coeff, radicand := sqrtRat(abs)
	var factors []Expr
	if radicand.Cmp(big.NewInt(1)) != 0 {
		factors = append(factors, &Pow{base: &Num{val: new(big.Rat).SetInt(radicand)}, exp: F(1, 2)})
	}
	if negative {
		factors = append(factors, I)
	}
	if len(factors) == 0 {
		return &Num{val: coeff}
	}
	if coeff.Cmp(ratOne) != 0 {
		factors = append([]Expr{&Num{val: coeff}}, factors...)
	}
	if len(factors) == 1 {
		return factors[0]
	}
	return &Mul{factors: factors}
}

// sqrtRat writes sqrt(r), r > 0 rational, as coeff*sqrt(f) with f a
// square-free positive integer: sqrt(p/q) = sqrt(p*q)/q.
func sqrtRat(r *big.Rat) (*big.Rat, *big.Int) {
	if r.Sign() <= 0 {
		if r.Sign() == 0 {
			return new(big.Rat), big.NewInt(1)
		}
		panic("gospin: sqrtRat on negative radicand")
	}
	n := new(big.Int).Mul(r.Num(), r.Denom())
	square := big.NewInt(1)
	free := big.NewInt(1)
	rem := new(big.Int).Set(n)
	d := big.NewInt(2)
	dd := new(big.Int)
	mod := new(big.Int)
	for dd.Mul(d, d); dd.Cmp(rem) <= 0; dd.Mul(d, d) {
		count := 0
		for {
			q, m := new(big.Int).QuoRem(rem, d, mod)
			if m.Sign() != 0 {
				break
			}
			rem.Set(q)
			count++
		}
		for ; count >= 2; count -= 2 {
			square.Mul(square, d)
		}
		if count == 1 {
			free.Mul(free, d)
		}
		d.Add(d, big.NewInt(1))
	}
	free.Mul(free, rem)
	coeff := new(big.Rat).SetFrac(square, r.Denom())
	return coeff, free
}

func (p *Pow) String() string {
	if en, ok := p.exp.(*Num); ok && en.Equal(F(1, 2)) {
		return "sqrt(" + p.base.String() + ")"
	}
	baseStr := p.base.String()
	expStr := p.exp.String()
	switch p.base.(type) {
	case *Add, *Mul:
		baseStr = "(" + baseStr + ")"
	}
	if strings.ContainsAny(expStr, "+-*/ ") {
		expStr = "(" + expStr + ")"
	}
	return baseStr + "^" + expStr
}

func (p *Pow) LaTeX() string {
	if en, ok := p.exp.(*Num); ok && en.Equal(F(1, 2)) {
		return "\\sqrt{" + p.base.LaTeX() + "}"
	}
	baseStr := p.base.LaTeX()
	switch p.base.(type) {
	case *Add, *Mul:
		baseStr = "\\left(" + baseStr + "\\right)"
	}
	return baseStr + "^{" + p.exp.LaTeX() + "}"
}

func (p *Pow) Sub(varName string, value Expr) Expr {
	return PowOf(p.base.Sub(varName, value), p.exp.Sub(varName, value))
}

func (p *Pow) Eval() (*Num, bool) {
	b, ok1 := p.base.Eval()
	e, ok2 := p.exp.Eval()
	if !ok1 || !ok2 {
		return nil, false
	}
	pf := math.Pow(b.Float64(), e.Float64())
	if math.IsNaN(pf) || math.IsInf(pf, 0) {
		return nil, false
	}
	return &Num{val: new(big.Rat).SetFloat64(pf)}, true
}

func (p *Pow) Equal(other Expr) bool {
	o, ok := other.(*Pow)
	return ok && p.base.Equal(o.base) && p.exp.Equal(o.exp)
}

func (p *Pow) exprType() string { return "pow" }
func (p *Pow) Base() Expr       { return p.base }
func (p *Pow) Exponent() Expr   { return p.exp }

// ============================================================
// Func — named function applications
// ============================================================

type Func struct {
	name string
	arg  Expr
}

func funcOf(name string, arg Expr) *Func { return &Func{name: name, arg: arg} }

func SinOf(arg Expr) Expr { return funcOf("sin", arg).Simplify() }
func CosOf(arg Expr) Expr { return funcOf("cos", arg).Simplify() }
func ExpOf(arg Expr) Expr { return funcOf("exp", arg).Simplify() }

func (f *Func) Simplify() Expr {
	arg := f.arg.Simplify()
	switch f.name {
	case "sin":
		if isNumEqual(arg, 0) {
			return N(0)
		}
		// sin is odd: pull a negative coefficient out front
		if neg, ok := negatedArg(arg); ok {
			return MulOf(N(-1), SinOf(neg))
		}
		if q, ok := piMultiple(arg); ok {
			if v, ok2 := sinPi(q); ok2 {
				return v
			}
		}
	case "cos":
		if isNumEqual(arg, 0) {
			return N(1)
		}
		// cos is even: drop a negative coefficient
		if neg, ok := negatedArg(arg); ok {
			return CosOf(neg)
		}
		if q, ok := piMultiple(arg); ok {
			if v, ok2 := cosPi(q); ok2 {
				return v
			}
		}
	case "exp":
		if isNumEqual(arg, 0) {
			return N(1)
		}
		// exp(I*q*pi) has an exact closed form when cos/sin do
		if q, ok := imagPiMultiple(arg); ok {
			c, okC := cosPi(q)
			s, okS := sinPi(q)
			if okC && okS {
				return AddOf(c, MulOf(I, s))
			}
		}
	}
	return &Func{name: f.name, arg: arg}
}

// negatedArg reports whether e is a product with a negative rational
// coefficient, returning the negated argument.
func negatedArg(e Expr) (Expr, bool) {
	if n, ok := e.(*Num); ok && n.IsNegative() {
		return numNeg(n), true
	}
	m, ok := e.(*Mul)
	if !ok || len(m.factors) == 0 {
		return nil, false
	}
	c, ok := m.factors[0].(*Num)
	if !ok || !c.IsNegative() {
		return nil, false
	}
	fs := append([]Expr{numNeg(c)}, m.factors[1:]...)
	return MulOf(fs...), true
}

// piMultiple reports whether e is q*pi for rational q.
func piMultiple(e Expr) (*big.Rat, bool) {
	if e.Equal(Pi) {
		return new(big.Rat).SetInt64(1), true
	}
	m, ok := e.(*Mul)
	if !ok || len(m.factors) != 2 {
		return nil, false
	}
	c, ok := m.factors[0].(*Num)
	if !ok || !m.factors[1].Equal(Pi) {
		return nil, false
	}
	return c.Rat(), true
}

// imagPiMultiple reports whether e is I*q*pi for rational q.
func imagPiMultiple(e Expr) (*big.Rat, bool) {
	m, ok := e.(*Mul)
	if !ok {
		return nil, false
	}
	q := new(big.Rat).SetInt64(1)
	sawImag, sawPi := false, false
	for _, f := range m.factors {
		switch v := f.(type) {
		case *Num:
			q.Mul(q, v.val)
		case *Imag:
			if sawImag {
				return nil, false
			}
			sawImag = true
		case *Sym:
			if !v.Equal(Pi) || sawPi {
				return nil, false
			}
			sawPi = true
		default:
			return nil, false
		}
	}
	if !sawImag || !sawPi {
		return nil, false
	}
	return q, true
}

// cosPi returns the exact value of cos(q*pi) for q with denominator
// 1, 2, 3, 4 or 6.
func cosPi(q *big.Rat) (Expr, bool) {
	// reduce mod 2, fold into [0, 1] by evenness
	two := new(big.Rat).SetInt64(2)
	r := new(big.Rat).Set(q)
	for r.Sign() < 0 {
		r.Add(r, two)
	}
	for r.Cmp(two) >= 0 {
		r.Sub(r, two)
	}
	if r.Cmp(new(big.Rat).SetInt64(1)) > 0 {
		r.Sub(two, r)
	}
	den := r.Denom().Int64()
	num := r.Num().Int64()
	switch den {
	case 1:
		if num == 0 {
			return N(1), true
		}
		return N(-1), true
	case 2:
		return N(0), true
	case 3:
		if num == 1 {
			return F(1, 2), true
		}
		return F(-1, 2), true
	case 4:
		if num == 1 {
			return MulOf(F(1, 2), SqrtOf(N(2))), true
		}
		return MulOf(F(-1, 2), SqrtOf(N(2))), true
	case 6:
		if num == 1 {
			return MulOf(F(1, 2), SqrtOf(N(3))), true
		}
		return MulOf(F(-1, 2), SqrtOf(N(3))), true
	}
	return nil, false
}

func sinPi(q *big.Rat) (Expr, bool) {
	// sin(q*pi) = cos((1/2 - q)*pi)
	half := new(big.Rat).SetFrac64(1, 2)
	return cosPi(new(big.Rat).Sub(half, q))
}

func (f *Func) String() string { return f.name + "(" + f.arg.String() + ")" }

func (f *Func) LaTeX() string {
	switch f.name {
	case "sin", "cos", "exp":
		return "\\" + f.name + "\\left(" + f.arg.LaTeX() + "\\right)"
	}
	return "\\operatorname{" + f.name + "}\\left(" + f.arg.LaTeX() + "\\right)"
}

func (f *Func) Sub(varName string, value Expr) Expr {
	return funcOf(f.name, f.arg.Sub(varName, value)).Simplify()
}

func (f *Func) Eval() (*Num, bool) {
	n, ok := f.arg.Eval()
	if !ok {
		return nil, false
	}
	v := n.Float64()
	switch f.name {
	case "sin":
		return &Num{val: new(big.Rat).SetFloat64(math.Sin(v))}, true
	case "cos":
		return &Num{val: new(big.Rat).SetFloat64(math.Cos(v))}, true
	case "exp":
		return &Num{val: new(big.Rat).SetFloat64(math.Exp(v))}, true
	}
	return nil, false
}

func (f *Func) Equal(other Expr) bool {
	o, ok := other.(*Func)
	return ok && f.name == o.name && f.arg.Equal(o.arg)
}

func (f *Func) exprType() string { return "func" }
func (f *Func) FuncName() string { return f.name }
func (f *Func) Arg() Expr        { return f.arg }

func isNumEqual(e Expr, v int64) bool {
	n, ok := e.(*Num)
	return ok && n.Equal(N(v))
}

// ============================================================
// Sum — formal summation over bound variables
// ============================================================

// SumLimit is one (var, lower, upper) summation range.
type SumLimit struct {
	Var    *Sym
	Lo, Hi Expr
}

// Sum is an unevaluated summation, used for the symbolic output shapes of
// coupling, uncoupling and basis rewriting.
type Sum struct {
	body   Expr
	limits []SumLimit
}

func SumOf(body Expr, limits ...SumLimit) Expr {
	if len(limits) == 0 {
		return body.Simplify()
	}
	s := &Sum{body: body, limits: limits}
	return s.Simplify()
}

func (s *Sum) Simplify() Expr {
	body := s.body.Simplify()
	limits := make([]SumLimit, len(s.limits))
	for i, l := range s.limits {
		limits[i] = SumLimit{Var: l.Var, Lo: l.Lo.Simplify(), Hi: l.Hi.Simplify()}
	}
	return &Sum{body: body, limits: limits}
}

func (s *Sum) String() string {
	var sb strings.Builder
	sb.WriteString("Sum(")
	sb.WriteString(s.body.String())
	for _, l := range s.limits {
		fmt.Fprintf(&sb, ", (%s, %s, %s)", l.Var.String(), l.Lo.String(), l.Hi.String())
	}
	sb.WriteString(")")
	return sb.String()
}

func (s *Sum) LaTeX() string {
	var sb strings.Builder
	for _, l := range s.limits {
		fmt.Fprintf(&sb, "\\sum_{%s=%s}^{%s} ", l.Var.LaTeX(), l.Lo.LaTeX(), l.Hi.LaTeX())
	}
	sb.WriteString(s.body.LaTeX())
	return sb.String()
}

func (s *Sum) Sub(varName string, value Expr) Expr {
	for _, l := range s.limits {
		if l.Var.name == varName {
			// bound variable shadows the substitution in the body,
			// but limits may still reference it
			limits := make([]SumLimit, len(s.limits))
			for i, li := range s.limits {
				limits[i] = SumLimit{Var: li.Var, Lo: li.Lo.Sub(varName, value), Hi: li.Hi.Sub(varName, value)}
			}
			return &Sum{body: s.body, limits: limits}
		}
	}
	limits := make([]SumLimit, len(s.limits))
	for i, l := range s.limits {
		limits[i] = SumLimit{Var: l.Var, Lo: l.Lo.Sub(varName, value), Hi: l.Hi.Sub(varName, value)}
	}
	return (&Sum{body: s.body.Sub(varName, value), limits: limits}).Simplify()
}

func (s *Sum) Eval() (*Num, bool) { return nil, false }

func (s *Sum) Equal(other Expr) bool {
	o, ok := other.(*Sum)
	if !ok || len(s.limits) != len(o.limits) {
		return false
	}
	if !s.body.Equal(o.body) {
		return false
	}
	for i := range s.limits {
		if s.limits[i].Var.name != o.limits[i].Var.name ||
			!s.limits[i].Lo.Equal(o.limits[i].Lo) ||
			!s.limits[i].Hi.Equal(o.limits[i].Hi) {
			return false
		}
	}
	return true
}

func (s *Sum) exprType() string   { return "sum" }
func (s *Sum) Body() Expr         { return s.body }
func (s *Sum) Limits() []SumLimit { return s.limits }

// ============================================================
// Expansion
// ============================================================

// Expand distributes products over sums, leaving other structure alone.
// Operator application uses it to flatten rewrite results into flat
// weighted sums of states, which lets exact cancellations happen.
func Expand(e Expr) Expr {
	switch v := e.(type) {
	case *Add:
		terms := make([]Expr, len(v.terms))
		for i, t := range v.terms {
			terms[i] = Expand(t)
		}
		return AddOf(terms...)
	case *Mul:
		factors := make([]Expr, len(v.factors))
		for i, f := range v.factors {
			factors[i] = Expand(f)
		}
		for i, f := range factors {
			if sum, ok := f.(*Add); ok {
				var terms []Expr
				for _, t := range sum.terms {
					rest := make([]Expr, 0, len(factors))
					rest = append(rest, factors[:i]...)
					rest = append(rest, t)
					rest = append(rest, factors[i+1:]...)
					terms = append(terms, Expand(MulOf(rest...)))
				}
				return AddOf(terms...)
			}
		}
		return MulOf(factors...)
	case *Sum:
		return (&Sum{body: Expand(v.body), limits: v.limits}).Simplify()
	}
	return e
}

// ============================================================
// Free symbols
// ============================================================

func FreeSymbols(e Expr) map[string]struct{} {
	out := map[string]struct{}{}
	collectSymbols(e, out)
	return out
}

func collectSymbols(e Expr, out map[string]struct{}) {
	switch v := e.(type) {
	case *Sym:
		out[v.name] = struct{}{}
	case *Add:
		for _, t := range v.terms {
			collectSymbols(t, out)
		}
	case *Mul:
		for _, f := range v.factors {
			collectSymbols(f, out)
		}
	case *Pow:
		collectSymbols(v.base, out)
		collectSymbols(v.exp, out)
	case *Func:
		collectSymbols(v.arg, out)
	case *Sum:
		collectSymbols(v.body, out)
		for _, l := range v.limits {
			collectSymbols(l.Lo, out)
			collectSymbols(l.Hi, out)
		}
	case *State:
		collectSymbols(v.j, out)
		collectSymbols(v.m, out)
		for _, jn := range v.jn {
			collectSymbols(jn, out)
		}
		for _, ji := range v.coupledJn {
			collectSymbols(ji, out)
		}
	case *TensorProduct:
		for _, s := range v.factors {
			collectSymbols(s, out)
		}
	case *CG:
		for _, a := range v.args() {
			collectSymbols(a, out)
		}
	case *WignerD:
		for _, a := range []Expr{v.j, v.m, v.mp, v.alpha, v.beta, v.gamma} {
			collectSymbols(a, out)
		}
	}
}

// freshSym returns a symbol named base that does not collide with the free
// symbols of e, appending a counter if needed. Name generation is local to
// the call, never global state.
func freshSym(base string, e Expr) *Sym {
	free := FreeSymbols(e)
	if _, taken := free[base]; !taken {
		return S(base)
	}
	for i := 1; ; i++ {
		name := fmt.Sprintf("%s%d", base, i)
		if _, taken := free[name]; !taken {
			return S(name)
		}
	}
}

// ============================================================
// Integer combinatorics (exact)
// ============================================================

// factInt returns n! as a big integer. n must be non-negative.
func factInt(n int64) *big.Int {
	if n < 0 {
		panic(fmt.Sprintf("gospin: factorial of negative %d", n))
	}
	return new(big.Int).MulRange(1, n)
}

// binomInt returns C(n, k), zero outside the triangle.
func binomInt(n, k int64) *big.Int {
	if k < 0 || k > n || n < 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Binomial(n, k)
}

// ============================================================
// Numeric evaluation to complex128
// ============================================================

// evalComplex reduces a fully numeric expression (rationals, radicals, I,
// pi, trig/exp) to a complex128. Used by the gonum representation path.
func evalComplex(e Expr) (complex128, bool) {
	switch v := e.(type) {
	case *Num:
		return complex(v.Float64(), 0), true
	case *Imag:
		return complex(0, 1), true
	case *Sym:
		if v.Equal(Pi) {
			return complex(math.Pi, 0), true
		}
		return 0, false
	case *Add:
		acc := complex(0, 0)
		for _, t := range v.terms {
			c, ok := evalComplex(t)
			if !ok {
				return 0, false
			}
			acc += c
		}
		return acc, true
	case *Mul:
		acc := complex(1, 0)
		for _, f := range v.factors {
			c, ok := evalComplex(f)
			if !ok {
				return 0, false
			}
			acc *= c
		}
		return acc, true
	case *Pow:
		b, ok1 := evalComplex(v.base)
		x, ok2 := evalComplex(v.exp)
		if !ok1 || !ok2 || imag(x) != 0 {
			return 0, false
		}
		if imag(b) == 0 && real(b) >= 0 {
			return complex(math.Pow(real(b), real(x)), 0), true
		}
		return 0, false
	case *Func:
		c, ok := evalComplex(v.arg)
		if !ok {
			return 0, false
		}
		switch v.name {
		case "sin":
			if imag(c) == 0 {
				return complex(math.Sin(real(c)), 0), true
			}
		case "cos":
			if imag(c) == 0 {
				return complex(math.Cos(real(c)), 0), true
			}
		case "exp":
			if real(c) == 0 {
				return complex(math.Cos(imag(c)), math.Sin(imag(c))), true
			}
			if imag(c) == 0 {
				return complex(math.Exp(real(c)), 0), true
			}
		}
		return 0, false
	}
	return 0, false
}

// conjExpr returns the complex conjugate of e by negating every occurrence
// of the imaginary unit.
func conjExpr(e Expr) Expr {
	switch v := e.(type) {
	case *Imag:
		return MulOf(N(-1), I)
	case *Add:
		terms := make([]Expr, len(v.terms))
		for i, t := range v.terms {
			terms[i] = conjExpr(t)
		}
		return AddOf(terms...)
	case *Mul:
		fs := make([]Expr, len(v.factors))
		for i, f := range v.factors {
			fs[i] = conjExpr(f)
		}
		return MulOf(fs...)
	case *Pow:
		return PowOf(conjExpr(v.base), conjExpr(v.exp))
	case *Func:
		return funcOf(v.name, conjExpr(v.arg)).Simplify()
	}
	return e
}

// ============================================================
// Matrix — symbolic matrix
// ============================================================

type Matrix struct {
	rows, cols int
	data       [][]Expr
}

func NewMatrix(rows, cols int) *Matrix {
	data := make([][]Expr, rows)
	for i := range data {
		data[i] = make([]Expr, cols)
		for j := range data[i] {
			data[i][j] = N(0)
		}
	}
	return &Matrix{rows: rows, cols: cols, data: data}
}

func (m *Matrix) checkBounds(row, col int) {
	if row < 0 || row >= m.rows || col < 0 || col >= m.cols {
		panic(fmt.Sprintf("gospin: matrix index out of range [%d,%d] for %dx%d", row, col, m.rows, m.cols))
	}
}

func (m *Matrix) Get(row, col int) Expr {
	m.checkBounds(row, col)
	return m.data[row][col]
}
func (m *Matrix) Set(row, col int, val Expr) {
	m.checkBounds(row, col)
	m.data[row][col] = val
}
func (m *Matrix) Rows() int { return m.rows }
func (m *Matrix) Cols() int { return m.cols }

func (m *Matrix) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i := 0; i < m.rows; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("[")
		for j := 0; j < m.cols; j++ {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(m.data[i][j].String())
		}
		sb.WriteString("]")
	}
	sb.WriteString("]")
	return sb.String()
}

func (m *Matrix) LaTeX() string {
	var sb strings.Builder
	sb.WriteString("\\begin{pmatrix}")
	for i := 0; i < m.rows; i++ {
		if i > 0 {
			sb.WriteString(" \\\\ ")
		}
		for j := 0; j < m.cols; j++ {
			if j > 0 {
				sb.WriteString(" & ")
			}
			sb.WriteString(m.data[i][j].LaTeX())
		}
	}
	sb.WriteString("\\end{pmatrix}")
	return sb.String()
}

func (m *Matrix) MatAdd(other *Matrix) *Matrix {
	if m.rows != other.rows || m.cols != other.cols {
		panic("gospin: matrix dimension mismatch in MatAdd")
	}
	result := NewMatrix(m.rows, m.cols)
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			result.data[i][j] = AddOf(m.data[i][j], other.data[i][j])
		}
	}
	return result
}

func (m *Matrix) MatMul(other *Matrix) *Matrix {
	if m.cols != other.rows {
		panic("gospin: matrix dimension mismatch in MatMul")
	}
	result := NewMatrix(m.rows, other.cols)
	for i := 0; i < m.rows; i++ {
		for j := 0; j < other.cols; j++ {
			terms := make([]Expr, m.cols)
			for k := 0; k < m.cols; k++ {
				terms[k] = MulOf(m.data[i][k], other.data[k][j])
			}
			result.data[i][j] = AddOf(terms...)
		}
	}
	return result
}

func (m *Matrix) Scale(scalar Expr) *Matrix {
	result := NewMatrix(m.rows, m.cols)
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			result.data[i][j] = MulOf(scalar, m.data[i][j])
		}
	}
	return result
}

func (m *Matrix) Transpose() *Matrix {
	result := NewMatrix(m.cols, m.rows)
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			result.data[j][i] = m.data[i][j]
		}
	}
	return result
}

func (m *Matrix) ApplySub(varName string, value Expr) *Matrix {
	result := NewMatrix(m.rows, m.cols)
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			result.data[i][j] = m.data[i][j].Sub(varName, value).Simplify()
		}
	}
	return result
}

func (m *Matrix) MatEqual(other *Matrix) bool {
	if m.rows != other.rows || m.cols != other.cols {
		return false
	}
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			if !m.data[i][j].Simplify().Equal(other.data[i][j].Simplify()) {
				return false
			}
		}
	}
	return true
}

// ============================================================
// Top-level convenience functions
// ============================================================

func Simplify(e Expr) Expr { return e.Simplify() }
func String(e Expr) string { return e.String() }
func LaTeX(e Expr) string  { return e.LaTeX() }

func Sub(expr Expr, varName string, value Expr) Expr {
	return expr.Sub(varName, value).Simplify()
}
