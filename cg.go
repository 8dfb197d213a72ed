package gospin

import (
	"fmt"
	"math/big"
	"strings"
	"sync"
)

// ============================================================
// Clebsch-Gordan Coefficients
// ============================================================

// CG is the Clebsch-Gordan coefficient <j1 m1, j2 m2 | j3 m3>. It stays
// unevaluated as an expression node (the symbolic coupling paths emit sums
// over unevaluated coefficients); Doit forces exact numeric evaluation.
type CG struct {
	j1, m1, j2, m2, j3, m3 Expr
}

func NewCG(j1, m1, j2, m2, j3, m3 Expr) *CG {
	return &CG{
		j1: j1.Simplify(), m1: m1.Simplify(),
		j2: j2.Simplify(), m2: m2.Simplify(),
		j3: j3.Simplify(), m3: m3.Simplify(),
	}
}

func (c *CG) args() []Expr { return []Expr{c.j1, c.m1, c.j2, c.m2, c.j3, c.m3} }

func (c *CG) Simplify() Expr { return c }

func (c *CG) String() string {
	parts := make([]string, 6)
	for i, a := range c.args() {
		parts[i] = a.String()
	}
	return "CG(" + strings.Join(parts, ", ") + ")"
}

func (c *CG) LaTeX() string {
	return fmt.Sprintf("C^{%s,%s}_{%s,%s,%s,%s}",
		c.j3.LaTeX(), c.m3.LaTeX(), c.j1.LaTeX(), c.m1.LaTeX(), c.j2.LaTeX(), c.m2.LaTeX())
}

func (c *CG) Sub(varName string, value Expr) Expr {
	return NewCG(
		c.j1.Sub(varName, value), c.m1.Sub(varName, value),
		c.j2.Sub(varName, value), c.m2.Sub(varName, value),
		c.j3.Sub(varName, value), c.m3.Sub(varName, value),
	)
}

func (c *CG) Eval() (*Num, bool) { return nil, false }

func (c *CG) Equal(other Expr) bool {
	o, ok := other.(*CG)
	if !ok {
		return false
	}
	a, b := c.args(), o.args()
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func (c *CG) exprType() string { return "cg" }

// Doit evaluates the coefficient exactly. All six quantum numbers must be
// numeric; otherwise the node is returned unchanged.
func (c *CG) Doit() Expr {
	nums := make([]*Num, 6)
	for i, a := range c.args() {
		n, ok := a.(*Num)
		if !ok {
			return c
		}
		nums[i] = n
	}
	return evalCG(nums[0], nums[1], nums[2], nums[3], nums[4], nums[5])
}

// cgKey identifies a coefficient by its doubled quantum numbers (doubling
// makes half-integers exact map keys).
type cgKey struct{ j1, m1, j2, m2, j3, m3 int64 }

var cgCache = struct {
	sync.Mutex
	m map[cgKey]Expr
}{m: make(map[cgKey]Expr)}

// evalCG computes <j1 m1, j2 m2 | j3 m3> via the Racah closed form in
// exact arithmetic. Selection-rule violations evaluate to zero. Results
// are memoized for the life of the process.
func evalCG(j1, m1, j2, m2, j3, m3 *Num) Expr {
	for _, n := range []*Num{j1, m1, j2, m2, j3, m3} {
		if !n.IsHalfInteger() {
			return N(0)
		}
	}
	k := cgKey{
		j1: doubled(j1), m1: doubled(m1),
		j2: doubled(j2), m2: doubled(m2),
		j3: doubled(j3), m3: doubled(m3),
	}
	cgCache.Lock()
	if v, ok := cgCache.m[k]; ok {
		cgCache.Unlock()
		return v
	}
	cgCache.Unlock()

	v := racah(k)

	cgCache.Lock()
	cgCache.m[k] = v
	cgCache.Unlock()
	return v
}

func doubled(n *Num) int64 {
	two := new(big.Rat).SetInt64(2)
	d := new(big.Rat).Mul(n.Rat(), two)
	return d.Num().Int64()
}

// racah evaluates the closed form with doubled quantum numbers. All
// factorial arguments below are (doubled sums)/2 and must be integral;
// non-integral combinations are selection-rule zeros.
func racah(k cgKey) Expr {
	// m3 = m1 + m2
	if k.m3 != k.m1+k.m2 {
		return N(0)
	}
	// triangle rule |j1-j2| <= j3 <= j1+j2
	if k.j3 < abs64(k.j1-k.j2) || k.j3 > k.j1+k.j2 {
		return N(0)
	}
	// |m| <= j componentwise, matching parity
	for _, p := range [][2]int64{{k.j1, k.m1}, {k.j2, k.m2}, {k.j3, k.m3}} {
		if abs64(p[1]) > p[0] || (p[0]-p[1])%2 != 0 {
			return N(0)
		}
	}
	// j1+j2+j3 must be integral
	if (k.j1+k.j2+k.j3)%2 != 0 {
		return N(0)
	}

	// all arguments below are true (undoubled) integers
	half := func(x int64) int64 { return x / 2 }

	// prefactor (2*j3+1) * [(j3+j1-j2)! (j3-j1+j2)! (j1+j2-j3)! / (j1+j2+j3+1)!]
	//           * (j3+m3)! (j3-m3)! (j1-m1)! (j1+m1)! (j2-m2)! (j2+m2)!
	pre := new(big.Rat).SetFrac64(k.j3+1, 1) // 2*j3+1 = k.j3+1 (k holds doubled values)
	num := new(big.Int).SetInt64(1)
	for _, a := range []int64{
		half(k.j3 + k.j1 - k.j2), half(k.j3 - k.j1 + k.j2), half(k.j1 + k.j2 - k.j3),
		half(k.j3 + k.m3), half(k.j3 - k.m3),
		half(k.j1 - k.m1), half(k.j1 + k.m1),
		half(k.j2 - k.m2), half(k.j2 + k.m2),
	} {
		num.Mul(num, factInt(a))
	}
	den := factInt(half(k.j1+k.j2+k.j3) + 1)
	pre.Mul(pre, new(big.Rat).SetFrac(num, den))

	// alternating sum over t
	tMin := max64(0, max64(half(k.j2-k.j3-k.m1), half(k.j1+k.m2-k.j3)))
	tMax := min64(half(k.j1+k.j2-k.j3), min64(half(k.j1-k.m1), half(k.j2+k.m2)))
	sum := new(big.Rat)
	for t := tMin; t <= tMax; t++ {
		den := new(big.Int).SetInt64(1)
		for _, a := range []int64{
			t,
			half(k.j3-k.j2+k.m1) + t,
			half(k.j3-k.j1-k.m2) + t,
			half(k.j1+k.j2-k.j3) - t,
			half(k.j1-k.m1) - t,
			half(k.j2+k.m2) - t,
		} {
			den.Mul(den, factInt(a))
		}
		term := new(big.Rat).SetFrac(big.NewInt(1), den)
		if t%2 != 0 {
			term.Neg(term)
		}
		sum.Add(sum, term)
	}
	if sum.Sign() == 0 {
		return N(0)
	}
	// result = sum * sqrt(pre); sign carried by the sum
	root := SqrtOf(NumFromRat(pre))
	return MulOf(NumFromRat(sum), root)
}

func abs64(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}
func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
