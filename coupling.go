package gospin

import (
	"fmt"
	"sort"
	"strings"
)

// ============================================================
// Deficiency configuration enumeration
// ============================================================

// compositions enumerates all non-negative integer vectors of the given
// length summing to total, in lexicographic order. This is the
// stars-and-bars enumeration the coupling engine distributes angular
// momentum deficiencies with; the output order fixes the term order of
// Couple and Uncouple results.
func compositions(total, parts int) [][]int {
	if parts == 0 {
		if total == 0 {
			return [][]int{{}}
		}
		return nil
	}
	if parts == 1 {
		return [][]int{{total}}
	}
	var out [][]int
	for first := 0; first <= total; first++ {
		for _, rest := range compositions(total-first, parts-1) {
			cfg := append([]int{first}, rest...)
			out = append(out, cfg)
		}
	}
	return out
}

// ============================================================
// Coupling
// ============================================================

// merge is one step of a coupling sequence: the two groups of space
// indices being combined. The full sequence has N-1 entries, the last one
// producing the total angular momentum.
type merge struct {
	g1, g2 []int
}

func (m merge) union() []int {
	u := append(append([]int{}, m.g1...), m.g2...)
	sort.Ints(u)
	return u
}

// couplePairs expands an (n1,n2) pair list into the full merge sequence,
// validating the smallest-index referencing rule, and appends the implicit
// final merge of the two remaining groups.
func couplePairs(pairs [][2]int, n int) ([]merge, error) {
	nList := make([][]int, n)
	for i := range nList {
		nList[i] = []int{i + 1}
	}
	seq := make([]merge, 0, n-1)
	for _, p := range pairs {
		n1, n2 := p[0], p[1]
		if n1 < 1 || n1 > n || n2 < 1 || n2 > n {
			return nil, fmt.Errorf("gospin: coupling indices must be in 1..%d, got (%d,%d)", n, n1, n2)
		}
		if n1 == n2 {
			return nil, fmt.Errorf("gospin: cannot couple space %d to itself", n1)
		}
		g1, g2 := nList[n1-1], nList[n2-1]
		if len(g1) == 0 || len(g2) == 0 {
			return nil, fmt.Errorf("gospin: coupled groups must be referenced by their smallest space index, got (%d,%d)", n1, n2)
		}
		m := merge{g1: append([]int{}, g1...), g2: append([]int{}, g2...)}
		seq = append(seq, m)
		nList[min2(n1, n2)-1] = m.union()
		nList[max2(n1, n2)-1] = nil
	}
	// final merge: the two groups still standing
	var groups [][]int
	for _, g := range nList {
		if len(g) > 0 {
			groups = append(groups, g)
		}
	}
	if len(groups) != 2 {
		return nil, fmt.Errorf("gospin: coupling scheme leaves %d groups instead of 2", len(groups))
	}
	seq = append(seq, merge{g1: groups[0], g2: groups[1]})
	return seq, nil
}

// Couple expands a tensor product of same-basis states into a linear
// combination of coupled states weighted by Clebsch-Gordan coefficients.
// pairs gives the coupling order as N-2 (n1,n2) entries; nil selects the
// default scheme that folds spaces left to right. With symbolic quantum
// numbers the result is a formal Sum over the intermediate momenta.
func Couple(tp *TensorProduct, pairs [][2]int) (Expr, error) {
	states := tp.factors
	n := len(states)
	if n < 2 {
		return nil, fmt.Errorf("gospin: coupling needs at least 2 spaces, got %d", n)
	}
	basis := states[0].basis
	bra := states[0].bra
	for _, s := range states {
		if s.basis != basis || s.bra != bra {
			return nil, fmt.Errorf("gospin: all states must share one basis and duality to couple")
		}
		if s.coupled {
			return nil, fmt.Errorf("gospin: cannot couple an already coupled state %s", s)
		}
	}
	if pairs == nil {
		for k := 2; k < n; k++ {
			pairs = append(pairs, [2]int{1, k})
		}
	}
	if len(pairs) != n-2 {
		return nil, fmt.Errorf("gospin: coupling pair list must have %d entries for %d spaces, got %d",
			n-2, n, len(pairs))
	}
	seq, err := couplePairs(pairs, n)
	if err != nil {
		return nil, err
	}

	jn := make([]Expr, n)
	numeric := true
	for i, s := range states {
		jn[i] = s.j
		if _, ok := s.j.(*Num); !ok {
			numeric = false
		}
		if _, ok := s.m.(*Num); !ok {
			numeric = false
		}
	}
	if numeric {
		return coupleNumeric(states, seq, jn, basis, bra)
	}
	return coupleSymbolic(states, seq, jn, basis, bra)
}

func coupleNumeric(states []*State, seq []merge, jn []Expr, basis Basis, bra bool) (Expr, error) {
	// per-merge deficiency ceilings: sum of (j-m) over the merged spaces
	diffMax := make([]int, len(seq))
	for k, mg := range seq {
		tot := N(0)
		for _, idx := range mg.union() {
			tot = numAdd(tot, numAdd(states[idx-1].j.(*Num), numNeg(states[idx-1].m.(*Num))))
		}
		if !tot.IsInteger() || tot.IsNegative() {
			return nil, fmt.Errorf("gospin: invalid quantum numbers in %s", states[mg.union()[0]-1])
		}
		diffMax[k] = int(tot.Int64())
	}

	var terms []Expr
	for diff := 0; diff <= diffMax[len(seq)-1]; diff++ {
	config:
		for _, cfg := range compositions(diff, len(seq)) {
			for k, d := range cfg {
				if d > diffMax[k] {
					continue config
				}
			}
			coupledJ := append([]Expr{}, jn...)
			var cgs []Expr
			var scheme []JCoupling
			var j3, m3 *Num
			for k, mg := range seq {
				j1 := coupledJ[mg.g1[0]-1].(*Num)
				j2 := coupledJ[mg.g2[0]-1].(*Num)
				j3 = numAdd(numAdd(j1, j2), N(int64(-cfg[k])))
				m1 := N(0)
				for _, idx := range mg.g1 {
					m1 = numAdd(m1, states[idx-1].m.(*Num))
				}
				m2 := N(0)
				for _, idx := range mg.g2 {
					m2 = numAdd(m2, states[idx-1].m.(*Num))
				}
				m3 = numAdd(m1, m2)
				// triangle and |m|<=j pruning: these configurations carry
				// vanishing coefficients and cannot form valid states
				if j3.IsNegative() ||
					numCmp(j3, numAdd(j1, j2)) > 0 ||
					numCmp(m3, j3) > 0 || numCmp(numNeg(m3), j3) > 0 {
					continue config
				}
				coupledJ[min2(mg.g1[0], mg.g2[0])-1] = j3
				cgs = append(cgs, evalCG(j1, m1, j2, m2, j3, m3))
				scheme = append(scheme, JCoupling{N1: mg.g1[0], N2: mg.g2[0], J: j3})
			}
			coeff := MulOf(cgs...)
			if n, ok := coeff.(*Num); ok && n.IsZero() {
				continue
			}
			st, err := newCoupledState(basis, j3, m3, jn, scheme[:len(scheme)-1], bra)
			if err != nil {
				return nil, err
			}
			terms = append(terms, MulOf(coeff, st))
		}
	}
	if len(terms) == 0 {
		return N(0), nil
	}
	return AddOf(terms...), nil
}

func coupleSymbolic(states []*State, seq []merge, jn []Expr, basis Basis, bra bool) (Expr, error) {
	coupledJ := append([]Expr{}, jn...)
	var cgs []Expr
	var scheme []JCoupling
	var limits []SumLimit
	var j3, m3 Expr
	for _, mg := range seq {
		j1 := coupledJ[mg.g1[0]-1]
		j2 := coupledJ[mg.g2[0]-1]
		union := append(append([]int{}, mg.g1...), mg.g2...)
		var j3sym *Sym
		if len(union) == len(states) {
			j3sym = S("j")
		} else {
			parts := make([]string, len(union))
			for i, idx := range union {
				parts[i] = fmt.Sprintf("%d", idx)
			}
			j3sym = S("j" + strings.Join(parts, ""))
		}
		j3 = j3sym
		coupledJ[min2(mg.g1[0], mg.g2[0])-1] = j3
		var m1terms, m2terms []Expr
		for _, idx := range mg.g1 {
			m1terms = append(m1terms, states[idx-1].m)
		}
		for _, idx := range mg.g2 {
			m2terms = append(m2terms, states[idx-1].m)
		}
		m1 := AddOf(m1terms...)
		m2 := AddOf(m2terms...)
		m3 = AddOf(m1, m2)
		cgs = append(cgs, NewCG(j1, m1, j2, m2, j3, m3))
		scheme = append(scheme, JCoupling{N1: mg.g1[0], N2: mg.g2[0], J: j3})
		limits = append(limits, SumLimit{Var: j3sym, Lo: m3, Hi: AddOf(j1, j2)})
	}
	st := &State{
		j: j3, m: m3, basis: basis, bra: bra, coupled: true,
		jn: append([]Expr{}, jn...),
	}
	coupledN, coupledJn, err := buildCoupled(scheme[:len(scheme)-1], len(states))
	if err != nil {
		return nil, err
	}
	st.coupledN = coupledN
	st.coupledJn = coupledJn
	body := MulOf(append(cgs, Expr(st))...)
	return SumOf(body, limits...), nil
}

// ============================================================
// Uncoupling
// ============================================================

// Uncouple expands a coupled state into tensor products of uncoupled
// states. For a coupled state the space momenta and scheme are taken from
// the state itself; a plain state needs jn (and, for more than two spaces,
// an explicit scheme). Sums and scalar multiples distribute.
func Uncouple(e Expr, jn []Expr, jcoupling []JCoupling) (Expr, error) {
	switch v := e.(type) {
	case *Add:
		var terms []Expr
		for _, t := range v.terms {
			u, err := Uncouple(t, jn, jcoupling)
			if err != nil {
				return nil, err
			}
			terms = append(terms, u)
		}
		return AddOf(terms...), nil
	case *Mul:
		var scalars []Expr
		var inner Expr
		for _, f := range v.factors {
			switch f.(type) {
			case *State:
				if inner != nil {
					return nil, fmt.Errorf("gospin: cannot uncouple a product of states")
				}
				inner = f
			case *TensorProduct:
				return nil, fmt.Errorf("gospin: cannot uncouple an already uncoupled tensor product %s", f)
			default:
				scalars = append(scalars, f)
			}
		}
		if inner == nil {
			return e, nil
		}
		u, err := Uncouple(inner, jn, jcoupling)
		if err != nil {
			return nil, err
		}
		return MulOf(append(scalars, u)...), nil
	case *State:
		return uncoupleState(v, jn, jcoupling)
	}
	return nil, fmt.Errorf("gospin: cannot uncouple %s", e.String())
}

// uncoupleCoupling is one uncoupling step: the two space-index groups, the
// momenta they carry and the momentum they couple to.
type uncoupleCoupling struct {
	g1, g2 []int
	j1, j2 Expr
	j3     Expr
}

func uncoupleState(s *State, jn []Expr, jcoupling []JCoupling) (Expr, error) {
	var coupledN [][2][]int
	var coupledJn []Expr
	if s.coupled {
		jn = s.jn
		coupledN = s.coupledN
		coupledJn = s.coupledJn
	} else {
		if len(jn) < 2 {
			return nil, fmt.Errorf("gospin: must give at least 2 space momenta to uncouple a plain state")
		}
		if len(jn) > 2 && jcoupling == nil {
			return nil, fmt.Errorf("gospin: must give a coupling scheme for %d spaces", len(jn))
		}
		if len(jcoupling) != len(jn)-2 {
			return nil, fmt.Errorf("gospin: coupling scheme must have %d entries for %d spaces, got %d",
				len(jn)-2, len(jn), len(jcoupling))
		}
		var err error
		coupledN, coupledJn, err = buildCoupled(jcoupling, len(jn))
		if err != nil {
			return nil, err
		}
	}
	n := len(jn)

	// replay the scheme to find the momenta entering each coupling
	jList := append([]Expr{}, jn...)
	var seq []uncoupleCoupling
	for k := range coupledJn {
		g1, g2 := coupledN[k][0], coupledN[k][1]
		c := uncoupleCoupling{
			g1: g1, g2: g2,
			j1: jList[g1[0]-1], j2: jList[g2[0]-1],
			j3: coupledJn[k],
		}
		seq = append(seq, c)
		jList[min2(g1[0], g2[0])-1] = coupledJn[k]
	}
	// final coupling to the state's total j
	var last uncoupleCoupling
	if n > 2 {
		u := append(append([]int{}, coupledN[len(coupledN)-1][0]...), coupledN[len(coupledN)-1][1]...)
		sort.Ints(u)
		var rest []int
		for i := 1; i <= n; i++ {
			if !containsInt(u, i) {
				rest = append(rest, i)
			}
		}
		last = uncoupleCoupling{
			g1: u, g2: rest,
			j1: coupledJn[len(coupledJn)-1], j2: jList[rest[0]-1],
			j3: s.j,
		}
	} else {
		last = uncoupleCoupling{g1: []int{1}, g2: []int{2}, j1: jList[0], j2: jList[1], j3: s.j}
	}
	seq = append(seq, last)

	jNum, jOk := s.j.(*Num)
	mNum, mOk := s.m.(*Num)
	jnNums := make([]*Num, n)
	numeric := jOk && mOk
	for i, ji := range jn {
		if v, ok := ji.(*Num); ok {
			jnNums[i] = v
		} else {
			numeric = false
		}
	}
	if numeric {
		return uncoupleNumeric(s, seq, jnNums, jNum, mNum)
	}
	return uncoupleSymbolic(s, seq, jn)
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func uncoupleNumeric(s *State, seq []uncoupleCoupling, jn []*Num, j, m *Num) (Expr, error) {
	n := len(jn)
	total := N(0)
	for _, ji := range jn {
		total = numAdd(total, ji)
	}
	diff := numAdd(total, numNeg(m))
	if !diff.IsInteger() {
		return nil, fmt.Errorf("gospin: m=%s is incompatible with space momenta summing to %s", m, total)
	}
	if diff.IsNegative() {
		return N(0), nil
	}

	var terms []Expr
config:
	for _, cfg := range compositions(int(diff.Int64()), n) {
		for i, d := range cfg {
			if int64(d) > doubled(jn[i]) {
				continue config
			}
		}
		mval := func(group []int) *Num {
			acc := N(0)
			for _, idx := range group {
				acc = numAdd(acc, numAdd(jn[idx-1], N(int64(-cfg[idx-1]))))
			}
			return acc
		}
		var cgs []Expr
		for _, c := range seq {
			j1, ok1 := c.j1.(*Num)
			j2, ok2 := c.j2.(*Num)
			j3, ok3 := c.j3.(*Num)
			if !ok1 || !ok2 || !ok3 {
				return nil, fmt.Errorf("gospin: numeric uncoupling needs numeric intermediate momenta")
			}
			cgs = append(cgs, evalCG(j1, mval(c.g1), j2, mval(c.g2), j3, numAdd(mval(c.g1), mval(c.g2))))
		}
		coeff := MulOf(cgs...)
		if v, ok := coeff.(*Num); ok && v.IsZero() {
			continue
		}
		factors := make([]*State, n)
		for i := range jn {
			st, err := newState(s.basis, jn[i], numAdd(jn[i], N(int64(-cfg[i]))), s.bra)
			if err != nil {
				return nil, err
			}
			factors[i] = st
		}
		tp, err := NewTensorProduct(factors...)
		if err != nil {
			return nil, err
		}
		terms = append(terms, MulOf(coeff, tp))
	}
	if len(terms) == 0 {
		return N(0), nil
	}
	return AddOf(terms...), nil
}

func uncoupleSymbolic(s *State, seq []uncoupleCoupling, jn []Expr) (Expr, error) {
	n := len(jn)
	mvals := make([]*Sym, n)
	for i := range mvals {
		mvals[i] = S(fmt.Sprintf("m%d", i+1))
	}
	msum := func(group []int) Expr {
		var terms []Expr
		for _, idx := range group {
			terms = append(terms, mvals[idx-1])
		}
		return AddOf(terms...)
	}
	var cgs []Expr
	for k, c := range seq {
		if k == len(seq)-1 {
			cgs = append(cgs, NewCG(c.j1, msum(c.g1), c.j2, msum(c.g2), s.j, s.m))
		} else {
			union := append(append([]int{}, c.g1...), c.g2...)
			cgs = append(cgs, NewCG(c.j1, msum(c.g1), c.j2, msum(c.g2), c.j3, msum(union)))
		}
	}
	factors := make([]*State, n)
	for i := range jn {
		st, err := newState(s.basis, jn[i], mvals[i], s.bra)
		if err != nil {
			return nil, err
		}
		factors[i] = st
	}
	tp, err := NewTensorProduct(factors...)
	if err != nil {
		return nil, err
	}
	limits := make([]SumLimit, n)
	for i, ji := range jn {
		limits[i] = SumLimit{Var: mvals[i], Lo: MulOf(N(-1), ji), Hi: ji}
	}
	body := MulOf(append(cgs, Expr(tp))...)
	return SumOf(body, limits...), nil
}
