package gospin

import (
	"fmt"
	"sort"
	"strings"
)

// ============================================================
// Bases
// ============================================================

// Basis selects the eigenbasis an angular-momentum state is expressed in.
type Basis int

const (
	BasisJx Basis = iota
	BasisJy
	BasisJz
)

func (b Basis) String() string {
	switch b {
	case BasisJx:
		return "Jx"
	case BasisJy:
		return "Jy"
	case BasisJz:
		return "Jz"
	}
	return fmt.Sprintf("Basis(%d)", int(b))
}

// ParseBasis maps "Jx"/"Jy"/"Jz" (case-insensitive) to a Basis.
func ParseBasis(s string) (Basis, error) {
	switch strings.ToLower(s) {
	case "jx", "x":
		return BasisJx, nil
	case "jy", "y":
		return BasisJy, nil
	case "jz", "z":
		return BasisJz, nil
	}
	return 0, fmt.Errorf("gospin: unknown basis %q", s)
}

// ============================================================
// State — angular-momentum eigenstate
// ============================================================

// State is an angular-momentum eigenstate |j,m> (or its dual bra) in one
// of the three Cartesian eigenbases. A coupled state additionally records
// the individual momenta jn of the spaces it was built from and the
// coupling scheme (which spaces were merged, in what order, through which
// intermediate momenta). States are immutable.
type State struct {
	j, m  Expr
	basis Basis
	bra   bool

	coupled   bool
	jn        []Expr
	coupledN  [][2][]int // per merge: the two index groups combined
	coupledJn []Expr     // per merge: the resulting intermediate j
}

// JCoupling names one merge of a coupling scheme: combine the group
// containing space N1 with the group containing space N2 into total
// momentum J. Space indices are 1-based.
type JCoupling struct {
	N1, N2 int
	J      Expr
}

// NewKet builds |j,m> in the given basis. The quantum numbers are
// validated where numeric: 2j and 2m integral, j >= 0, |m| <= j, and j, m
// of matching integer/half-integer parity.
func NewKet(basis Basis, j, m Expr) (*State, error) {
	return newState(basis, j, m, false)
}

// NewBra builds <j,m| in the given basis.
func NewBra(basis Basis, j, m Expr) (*State, error) {
	return newState(basis, j, m, true)
}

func newState(basis Basis, j, m Expr, bra bool) (*State, error) {
	j, m = j.Simplify(), m.Simplify()
	if err := validateJM(j, m); err != nil {
		return nil, err
	}
	return &State{j: j, m: m, basis: basis, bra: bra}, nil
}

// validateJ checks a bare angular momentum: 2j integral and j >= 0. It
// carries no parity constraint, so it also fits the component momenta of a
// coupled state, whose parity is tied to their own m values rather than to
// the total m.
func validateJ(j Expr) error {
	jn, ok := j.(*Num)
	if !ok {
		return nil
	}
	if !jn.IsHalfInteger() {
		return fmt.Errorf("gospin: j must be integer or half-integer, got %s", jn)
	}
	if jn.IsNegative() {
		return fmt.Errorf("gospin: j must be non-negative, got %s", jn)
	}
	return nil
}

func validateJM(j, m Expr) error {
	jn, jNum := j.(*Num)
	mn, mNum := m.(*Num)
	if err := validateJ(j); err != nil {
		return err
	}
	if mNum && !mn.IsHalfInteger() {
		return fmt.Errorf("gospin: m must be integer or half-integer, got %s", mn)
	}
	if jNum && mNum {
		if numCmp(mn, jn) > 0 || numCmp(mn, numNeg(jn)) < 0 {
			return fmt.Errorf("gospin: |m| must not exceed j, got j=%s m=%s", jn, mn)
		}
		if d := numAdd(jn, numNeg(mn)); !d.IsInteger() {
			return fmt.Errorf("gospin: j and m must both be integer or both half-integer, got j=%s m=%s", jn, mn)
		}
	}
	return nil
}

// NewCoupledKet builds a coupled ket |j,m,j1=..,j2=..,...> over the spaces
// jn. A nil jcoupling selects the default left-fold scheme
// (1,2),(1,3),...,(1,N-1) with maximal intermediate momenta. An explicit
// scheme must have N-2 entries; the final merge to the state's total j is
// implicit.
func NewCoupledKet(basis Basis, j, m Expr, jn []Expr, jcoupling []JCoupling) (*State, error) {
	return newCoupledState(basis, j, m, jn, jcoupling, false)
}

// NewCoupledBra is the dual of NewCoupledKet.
func NewCoupledBra(basis Basis, j, m Expr, jn []Expr, jcoupling []JCoupling) (*State, error) {
	return newCoupledState(basis, j, m, jn, jcoupling, true)
}

func newCoupledState(basis Basis, j, m Expr, jn []Expr, jcoupling []JCoupling, bra bool) (*State, error) {
	j, m = j.Simplify(), m.Simplify()
	if err := validateJM(j, m); err != nil {
		return nil, err
	}
	if len(jn) < 2 {
		return nil, fmt.Errorf("gospin: coupled state needs at least 2 spaces, got %d", len(jn))
	}
	jnS := make([]Expr, len(jn))
	for i, ji := range jn {
		jnS[i] = ji.Simplify()
		if err := validateJ(jnS[i]); err != nil {
			return nil, fmt.Errorf("gospin: invalid j%d: %w", i+1, err)
		}
	}
	if jcoupling == nil {
		jcoupling = defaultScheme(jnS)
	}
	if len(jcoupling) != len(jn)-2 {
		return nil, fmt.Errorf("gospin: coupling scheme must have %d entries for %d spaces, got %d",
			len(jn)-2, len(jn), len(jcoupling))
	}
	coupledN, coupledJn, err := buildCoupled(jcoupling, len(jn))
	if err != nil {
		return nil, err
	}
	return &State{
		j: j, m: m, basis: basis, bra: bra,
		coupled: true, jn: jnS, coupledN: coupledN, coupledJn: coupledJn,
	}, nil
}

// defaultScheme folds spaces left to right with maximal intermediate
// momenta: (1,2,j1+j2), (1,3,j1+j2+j3), ...
func defaultScheme(jn []Expr) []JCoupling {
	scheme := make([]JCoupling, 0, len(jn)-2)
	for n := 2; n < len(jn); n++ {
		scheme = append(scheme, JCoupling{N1: 1, N2: n, J: AddOf(jn[:n]...)})
	}
	return scheme
}

// buildCoupled replays a coupling scheme, tracking which spaces each group
// contains. A group must always be referenced through its smallest member
// index; self-coupling and out-of-range indices are rejected.
func buildCoupled(jcoupling []JCoupling, n int) ([][2][]int, []Expr, error) {
	nList := make([][]int, n)
	for i := range nList {
		nList[i] = []int{i + 1}
	}
	coupledN := make([][2][]int, 0, len(jcoupling))
	coupledJn := make([]Expr, 0, len(jcoupling))
	for _, jc := range jcoupling {
		if jc.N1 < 1 || jc.N1 > n || jc.N2 < 1 || jc.N2 > n {
			return nil, nil, fmt.Errorf("gospin: coupling indices must be in 1..%d, got (%d,%d)", n, jc.N1, jc.N2)
		}
		if jc.N1 == jc.N2 {
			return nil, nil, fmt.Errorf("gospin: cannot couple space %d to itself", jc.N1)
		}
		g1 := nList[jc.N1-1]
		g2 := nList[jc.N2-1]
		if len(g1) == 0 || len(g2) == 0 {
			return nil, nil, fmt.Errorf("gospin: coupled groups must be referenced by their smallest space index, got (%d,%d)", jc.N1, jc.N2)
		}
		coupledN = append(coupledN, [2][]int{append([]int{}, g1...), append([]int{}, g2...)})
		coupledJn = append(coupledJn, jc.J.Simplify())
		merged := append(append([]int{}, g1...), g2...)
		sort.Ints(merged)
		nList[min2(g1[0], g2[0])-1] = merged
		nList[max2(g1[0], g2[0])-1] = nil
	}
	return coupledN, coupledJn, nil
}

func min2(a, b int) int {
	if a < b {
		return a
	}
	return b
}
func max2(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// ----- accessors -----

func (s *State) J() Expr          { return s.j }
func (s *State) M() Expr          { return s.m }
func (s *State) Basis() Basis     { return s.basis }
func (s *State) IsBra() bool      { return s.bra }
func (s *State) IsCoupled() bool  { return s.coupled }
func (s *State) Jn() []Expr       { return append([]Expr{}, s.jn...) }
func (s *State) CoupledJn() []Expr {
	return append([]Expr{}, s.coupledJn...)
}

// Scheme reconstructs the explicit coupling entries of a coupled state.
func (s *State) Scheme() []JCoupling {
	out := make([]JCoupling, len(s.coupledN))
	for i, groups := range s.coupledN {
		out[i] = JCoupling{N1: groups[0][0], N2: groups[1][0], J: s.coupledJn[i]}
	}
	return out
}

// Dual returns the bra of a ket and vice versa.
func (s *State) Dual() *State {
	d := *s
	d.bra = !s.bra
	return &d
}

// withJM returns a copy with new quantum numbers and the same basis,
// duality and coupling payload. Internal paths use it after the inputs are
// already validated.
func (s *State) withJM(j, m Expr) *State {
	d := *s
	d.j = j.Simplify()
	d.m = m.Simplify()
	return &d
}

// ----- Expr implementation -----

func (s *State) Simplify() Expr { return s }

func (s *State) String() string {
	var sb strings.Builder
	if s.bra {
		sb.WriteString("<")
	} else {
		sb.WriteString("|")
	}
	sb.WriteString(s.j.String())
	sb.WriteString(",")
	sb.WriteString(s.m.String())
	if s.coupled {
		for i, ji := range s.jn {
			fmt.Fprintf(&sb, ",j%d=%s", i+1, ji.String())
		}
		for i, groups := range s.coupledN {
			union := append(append([]int{}, groups[0]...), groups[1]...)
			sort.Ints(union)
			parts := make([]string, len(union))
			for k, idx := range union {
				parts[k] = fmt.Sprintf("%d", idx)
			}
			fmt.Fprintf(&sb, ",j(%s)=%s", strings.Join(parts, ","), s.coupledJn[i].String())
		}
	}
	if s.bra {
		sb.WriteString("|")
	} else {
		sb.WriteString(">")
	}
	return sb.String()
}

func (s *State) LaTeX() string {
	inner := s.j.LaTeX() + "," + s.m.LaTeX()
	if s.coupled {
		for i, ji := range s.jn {
			inner += fmt.Sprintf(",j_{%d}=%s", i+1, ji.LaTeX())
		}
	}
	if s.bra {
		return "\\left\\langle " + inner + "\\right|"
	}
	return "\\left| " + inner + "\\right\\rangle"
}

func (s *State) Sub(varName string, value Expr) Expr {
	d := *s
	d.j = s.j.Sub(varName, value)
	d.m = s.m.Sub(varName, value)
	if s.coupled {
		d.jn = make([]Expr, len(s.jn))
		for i, ji := range s.jn {
			d.jn[i] = ji.Sub(varName, value)
		}
		d.coupledJn = make([]Expr, len(s.coupledJn))
		for i, ji := range s.coupledJn {
			d.coupledJn[i] = ji.Sub(varName, value)
		}
	}
	return &d
}

func (s *State) Eval() (*Num, bool) { return nil, false }

func (s *State) Equal(other Expr) bool {
	o, ok := other.(*State)
	if !ok || s.basis != o.basis || s.bra != o.bra || s.coupled != o.coupled {
		return false
	}
	if !s.j.Equal(o.j) || !s.m.Equal(o.m) {
		return false
	}
	if !s.coupled {
		return true
	}
	if len(s.jn) != len(o.jn) || len(s.coupledN) != len(o.coupledN) {
		return false
	}
	for i := range s.jn {
		if !s.jn[i].Equal(o.jn[i]) {
			return false
		}
	}
	for i := range s.coupledN {
		if !intSliceEq(s.coupledN[i][0], o.coupledN[i][0]) ||
			!intSliceEq(s.coupledN[i][1], o.coupledN[i][1]) ||
			!s.coupledJn[i].Equal(o.coupledJn[i]) {
			return false
		}
	}
	return true
}

func intSliceEq(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (s *State) exprType() string { return "state" }

// ----- convenience constructors (panic on invalid input) -----

func mustState(s *State, err error) *State {
	if err != nil {
		panic(err.Error())
	}
	return s
}

func JzKet(j, m Expr) *State { return mustState(NewKet(BasisJz, j, m)) }
func JxKet(j, m Expr) *State { return mustState(NewKet(BasisJx, j, m)) }
func JyKet(j, m Expr) *State { return mustState(NewKet(BasisJy, j, m)) }
func JzBra(j, m Expr) *State { return mustState(NewBra(BasisJz, j, m)) }
func JxBra(j, m Expr) *State { return mustState(NewBra(BasisJx, j, m)) }
func JyBra(j, m Expr) *State { return mustState(NewBra(BasisJy, j, m)) }

func JzKetCoupled(j, m Expr, jn []Expr, jcoupling ...JCoupling) *State {
	var scheme []JCoupling
	if len(jcoupling) > 0 {
		scheme = jcoupling
	}
	return mustState(NewCoupledKet(BasisJz, j, m, jn, scheme))
}

// ============================================================
// TensorProduct
// ============================================================

// TensorProduct is an ordered product of states over independent spaces.
type TensorProduct struct {
	factors []*State
}

func NewTensorProduct(states ...*State) (*TensorProduct, error) {
	if len(states) == 0 {
		return nil, fmt.Errorf("gospin: tensor product needs at least one factor")
	}
	return &TensorProduct{factors: append([]*State{}, states...)}, nil
}

// TP panics on an empty factor list; it exists for literals in tests and
// examples.
func TP(states ...*State) *TensorProduct {
	tp, err := NewTensorProduct(states...)
	if err != nil {
		panic(err.Error())
	}
	return tp
}

func (t *TensorProduct) Factors() []*State { return append([]*State{}, t.factors...) }

func (t *TensorProduct) Simplify() Expr { return t }

func (t *TensorProduct) String() string {
	parts := make([]string, len(t.factors))
	for i, s := range t.factors {
		parts[i] = s.String()
	}
	return strings.Join(parts, "x")
}

func (t *TensorProduct) LaTeX() string {
	parts := make([]string, len(t.factors))
	for i, s := range t.factors {
		parts[i] = s.LaTeX()
	}
	return strings.Join(parts, "\\otimes ")
}

func (t *TensorProduct) Sub(varName string, value Expr) Expr {
	fs := make([]*State, len(t.factors))
	for i, s := range t.factors {
		fs[i] = s.Sub(varName, value).(*State)
	}
	return &TensorProduct{factors: fs}
}

func (t *TensorProduct) Eval() (*Num, bool) { return nil, false }

func (t *TensorProduct) Equal(other Expr) bool {
	o, ok := other.(*TensorProduct)
	if !ok || len(t.factors) != len(o.factors) {
		return false
	}
	for i := range t.factors {
		if !t.factors[i].Equal(o.factors[i]) {
			return false
		}
	}
	return true
}

func (t *TensorProduct) exprType() string { return "tensor" }

// ============================================================
// m-value enumeration
// ============================================================

// mValuesDesc lists the m values of a numeric j in descending order:
// j, j-1, ..., -j.
func mValuesDesc(j Expr) ([]*Num, error) {
	jn, ok := j.(*Num)
	if !ok {
		return nil, fmt.Errorf("gospin: numeric j required, got %s", j.String())
	}
	if !jn.IsHalfInteger() || jn.IsNegative() {
		return nil, fmt.Errorf("gospin: invalid j value %s", jn)
	}
	size := doubled(jn) + 1
	out := make([]*Num, 0, size)
	m := jn
	for i := int64(0); i < size; i++ {
		out = append(out, m)
		m = numAdd(m, N(-1))
	}
	return out, nil
}
