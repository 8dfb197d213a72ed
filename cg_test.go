package gospin_test

import (
	"sync"
	"testing"

	gospin "github.com/njchilds90/gospin"
)

// ============================================================
// Clebsch-Gordan evaluation
// ============================================================

func cgString(j1, m1, j2, m2, j3, m3 *gospin.Num) string {
	return gospin.String(gospin.NewCG(j1, m1, j2, m2, j3, m3).Doit())
}

func TestCG_TwoSpinHalf(t *testing.T) {
	// <1/2 1/2, 1/2 -1/2 | 1 0> = sqrt(2)/2
	got := cgString(gospin.F(1, 2), gospin.F(1, 2), gospin.F(1, 2), gospin.F(-1, 2), gospin.N(1), gospin.N(0))
	if got != "1/2*sqrt(2)" {
		t.Errorf("want 1/2*sqrt(2), got %s", got)
	}
}

func TestCG_SingletAntisymmetry(t *testing.T) {
	// <1/2 1/2, 1/2 -1/2 | 0 0> = sqrt(2)/2
	got := cgString(gospin.F(1, 2), gospin.F(1, 2), gospin.F(1, 2), gospin.F(-1, 2), gospin.N(0), gospin.N(0))
	if got != "1/2*sqrt(2)" {
		t.Errorf("want 1/2*sqrt(2), got %s", got)
	}
	// swapping the spins flips the sign
	got = cgString(gospin.F(1, 2), gospin.F(-1, 2), gospin.F(1, 2), gospin.F(1, 2), gospin.N(0), gospin.N(0))
	if got != "-1/2*sqrt(2)" {
		t.Errorf("want -1/2*sqrt(2), got %s", got)
	}
}

func TestCG_Stretched(t *testing.T) {
	// top of the stretched multiplet is always 1
	got := cgString(gospin.N(1), gospin.N(1), gospin.N(1), gospin.N(1), gospin.N(2), gospin.N(2))
	if got != "1" {
		t.Errorf("want 1, got %s", got)
	}
}

func TestCG_NegativeValue(t *testing.T) {
	// <1 0, 1 1 | 1 1> = -sqrt(2)/2
	got := cgString(gospin.N(1), gospin.N(0), gospin.N(1), gospin.N(1), gospin.N(1), gospin.N(1))
	if got != "-1/2*sqrt(2)" {
		t.Errorf("want -1/2*sqrt(2), got %s", got)
	}
}

func TestCG_HigherMomenta(t *testing.T) {
	// <2 2, 1 0 | 3 2> = sqrt(3)/3
	got := cgString(gospin.N(2), gospin.N(2), gospin.N(1), gospin.N(0), gospin.N(3), gospin.N(2))
	if got != "1/3*sqrt(3)" {
		t.Errorf("want 1/3*sqrt(3), got %s", got)
	}
	// <2 2, 1 0 | 2 2> = sqrt(6)/3
	got = cgString(gospin.N(2), gospin.N(2), gospin.N(1), gospin.N(0), gospin.N(2), gospin.N(2))
	if got != "1/3*sqrt(6)" {
		t.Errorf("want 1/3*sqrt(6), got %s", got)
	}
}

// ============================================================
// Selection rules
// ============================================================

func TestCG_SelectionRules(t *testing.T) {
	cases := []struct {
		name                   string
		j1, m1, j2, m2, j3, m3 *gospin.Num
	}{
		{"m3 != m1+m2", gospin.N(1), gospin.N(0), gospin.N(1), gospin.N(0), gospin.N(1), gospin.N(1)},
		{"triangle rule", gospin.N(1), gospin.N(0), gospin.N(1), gospin.N(0), gospin.N(3), gospin.N(0)},
		{"|m3| > j3", gospin.N(1), gospin.N(1), gospin.N(1), gospin.N(1), gospin.N(1), gospin.N(2)},
		{"parity mismatch", gospin.F(1, 2), gospin.F(1, 2), gospin.F(1, 2), gospin.F(-1, 2), gospin.F(1, 2), gospin.N(0)},
	}
	for _, c := range cases {
		got := cgString(c.j1, c.m1, c.j2, c.m2, c.j3, c.m3)
		if got != "0" {
			t.Errorf("%s: want 0, got %s", c.name, got)
		}
	}
}

func TestCG_VanishingSum(t *testing.T) {
	// <1 0, 1 0 | 1 0> = 0: the Racah sum cancels even though every
	// selection rule passes
	got := cgString(gospin.N(1), gospin.N(0), gospin.N(1), gospin.N(0), gospin.N(1), gospin.N(0))
	if got != "0" {
		t.Errorf("want 0, got %s", got)
	}
}

// ============================================================
// Symbolic nodes
// ============================================================

func TestCG_SymbolicStaysUnevaluated(t *testing.T) {
	cg := gospin.NewCG(gospin.S("j1"), gospin.S("m1"), gospin.S("j2"), gospin.S("m2"), gospin.S("j"), gospin.S("m"))
	if cg.String() != "CG(j1, m1, j2, m2, j, m)" {
		t.Errorf("want 'CG(j1, m1, j2, m2, j, m)', got %s", cg.String())
	}
	result := cg.Doit()
	if !result.Equal(cg) {
		t.Errorf("symbolic CG should not evaluate, got %s", gospin.String(result))
	}
}

func TestCG_SubThenDoit(t *testing.T) {
	cg := gospin.NewCG(gospin.F(1, 2), gospin.S("m1"), gospin.F(1, 2), gospin.F(-1, 2), gospin.N(1), gospin.N(0))
	bound := cg.Sub("m1", gospin.F(1, 2))
	result := bound.(*gospin.CG).Doit()
	if gospin.String(result) != "1/2*sqrt(2)" {
		t.Errorf("want 1/2*sqrt(2), got %s", gospin.String(result))
	}
}

// ============================================================
// Cache coherence
// ============================================================

func TestCG_ConcurrentEvaluation(t *testing.T) {
	want := cgString(gospin.N(1), gospin.N(0), gospin.N(1), gospin.N(1), gospin.N(2), gospin.N(1))
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := cgString(gospin.N(1), gospin.N(0), gospin.N(1), gospin.N(1), gospin.N(2), gospin.N(1))
			if got != want {
				t.Errorf("concurrent evaluation mismatch: %s != %s", got, want)
			}
		}()
	}
	wg.Wait()
}
