package gospin_test

import (
	"strings"
	"testing"

	gospin "github.com/njchilds90/gospin"
)

// ============================================================
// Basis tests
// ============================================================

func TestParseBasis(t *testing.T) {
	for name, want := range map[string]gospin.Basis{
		"Jx": gospin.BasisJx, "jy": gospin.BasisJy, "z": gospin.BasisJz,
	} {
		got, err := gospin.ParseBasis(name)
		if err != nil {
			t.Fatalf("ParseBasis(%q): %v", name, err)
		}
		if got != want {
			t.Errorf("ParseBasis(%q): want %s, got %s", name, want, got)
		}
	}
	if _, err := gospin.ParseBasis("Jw"); err == nil {
		t.Error("expected error for unknown basis")
	}
}

// ============================================================
// Plain state tests
// ============================================================

func TestState_String(t *testing.T) {
	ket := gospin.JzKet(gospin.N(1), gospin.N(0))
	if ket.String() != "|1,0>" {
		t.Errorf("want |1,0>, got %s", ket.String())
	}
	bra := gospin.JzBra(gospin.F(1, 2), gospin.F(-1, 2))
	if bra.String() != "<1/2,-1/2|" {
		t.Errorf("want <1/2,-1/2|, got %s", bra.String())
	}
}

func TestState_SymbolicQuantumNumbers(t *testing.T) {
	ket := gospin.JzKet(gospin.S("j"), gospin.S("m"))
	if ket.String() != "|j,m>" {
		t.Errorf("want |j,m>, got %s", ket.String())
	}
}

func TestNewKet_Validation(t *testing.T) {
	cases := []struct {
		name string
		j, m gospin.Expr
		want string
	}{
		{"third-integer j", gospin.F(1, 3), gospin.N(0), "integer or half-integer"},
		{"negative j", gospin.N(-1), gospin.N(0), "non-negative"},
		{"m exceeds j", gospin.N(1), gospin.N(2), "|m| must not exceed j"},
		{"parity mismatch", gospin.N(1), gospin.F(1, 2), "must both be integer or both half-integer"},
	}
	for _, c := range cases {
		_, err := gospin.NewKet(gospin.BasisJz, c.j, c.m)
		if err == nil {
			t.Errorf("%s: expected error", c.name)
			continue
		}
		if !strings.Contains(err.Error(), c.want) {
			t.Errorf("%s: error %q should mention %q", c.name, err.Error(), c.want)
		}
	}
}

func TestState_Dual(t *testing.T) {
	ket := gospin.JzKet(gospin.N(1), gospin.N(1))
	bra := ket.Dual()
	if !bra.IsBra() || bra.String() != "<1,1|" {
		t.Errorf("dual of |1,1> should be <1,1|, got %s", bra.String())
	}
	if !bra.Dual().Equal(ket) {
		t.Error("double dual should round-trip")
	}
}

func TestState_EqualAcrossBases(t *testing.T) {
	if gospin.JzKet(gospin.N(1), gospin.N(0)).Equal(gospin.JxKet(gospin.N(1), gospin.N(0))) {
		t.Error("states in different bases must not compare equal")
	}
}

// ============================================================
// Coupled state tests
// ============================================================

func TestCoupledState_TwoSpaces(t *testing.T) {
	st := gospin.JzKetCoupled(gospin.N(1), gospin.N(0), []gospin.Expr{gospin.F(1, 2), gospin.F(1, 2)})
	if st.String() != "|1,0,j1=1/2,j2=1/2>" {
		t.Errorf("want |1,0,j1=1/2,j2=1/2>, got %s", st.String())
	}
	if !st.IsCoupled() {
		t.Error("state should be coupled")
	}
}

func TestCoupledState_DefaultScheme(t *testing.T) {
	one := gospin.N(1)
	st := gospin.JzKetCoupled(gospin.N(2), gospin.N(1), []gospin.Expr{one, one, one})
	if st.String() != "|2,1,j1=1,j2=1,j3=1,j(1,2)=2>" {
		t.Errorf("want |2,1,j1=1,j2=1,j3=1,j(1,2)=2>, got %s", st.String())
	}
	scheme := st.Scheme()
	if len(scheme) != 1 || scheme[0].N1 != 1 || scheme[0].N2 != 2 {
		t.Errorf("default scheme should fold (1,2), got %+v", scheme)
	}
	if gospin.String(scheme[0].J) != "2" {
		t.Errorf("default intermediate momentum should be maximal, got %s", gospin.String(scheme[0].J))
	}
}

func TestCoupledState_ExplicitScheme(t *testing.T) {
	one := gospin.N(1)
	st, err := gospin.NewCoupledKet(gospin.BasisJz, gospin.N(2), gospin.N(1),
		[]gospin.Expr{one, one, one},
		[]gospin.JCoupling{{N1: 2, N2: 3, J: gospin.N(1)}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.String() != "|2,1,j1=1,j2=1,j3=1,j(2,3)=1>" {
		t.Errorf("want |2,1,j1=1,j2=1,j3=1,j(2,3)=1>, got %s", st.String())
	}
}

func TestCoupledState_SchemeValidation(t *testing.T) {
	one := gospin.N(1)
	jn3 := []gospin.Expr{one, one, one}
	jn4 := []gospin.Expr{one, one, one, one}

	if _, err := gospin.NewCoupledKet(gospin.BasisJz, gospin.N(1), gospin.N(0), []gospin.Expr{one}, nil); err == nil {
		t.Error("expected error for fewer than 2 spaces")
	}
	_, err := gospin.NewCoupledKet(gospin.BasisJz, gospin.N(2), gospin.N(1), jn3,
		[]gospin.JCoupling{{N1: 1, N2: 1, J: one}})
	if err == nil || !strings.Contains(err.Error(), "itself") {
		t.Errorf("expected self-coupling error, got %v", err)
	}
	_, err = gospin.NewCoupledKet(gospin.BasisJz, gospin.N(2), gospin.N(1), jn3,
		[]gospin.JCoupling{{N1: 1, N2: 5, J: one}})
	if err == nil || !strings.Contains(err.Error(), "1..3") {
		t.Errorf("expected index range error, got %v", err)
	}
	// group merged into (1,2) must be referenced through index 1
	_, err = gospin.NewCoupledKet(gospin.BasisJz, gospin.N(2), gospin.N(0), jn4,
		[]gospin.JCoupling{{N1: 1, N2: 2, J: gospin.N(2)}, {N1: 2, N2: 3, J: gospin.N(2)}})
	if err == nil || !strings.Contains(err.Error(), "smallest") {
		t.Errorf("expected smallest-index error, got %v", err)
	}
	_, err = gospin.NewCoupledKet(gospin.BasisJz, gospin.N(2), gospin.N(1), jn3, []gospin.JCoupling{})
	if err == nil || !strings.Contains(err.Error(), "must have 1 entries") {
		t.Errorf("expected scheme length error, got %v", err)
	}
}

func TestCoupledState_InvalidSpaceMomentum(t *testing.T) {
	_, err := gospin.NewCoupledKet(gospin.BasisJz, gospin.N(1), gospin.N(0),
		[]gospin.Expr{gospin.F(1, 3), gospin.F(1, 2)}, nil)
	if err == nil || !strings.Contains(err.Error(), "invalid j1") {
		t.Errorf("expected invalid j1 error, got %v", err)
	}
}

func TestCoupledState_HalfIntegerSpaces(t *testing.T) {
	// component momenta carry no parity tie to the total m: two spin-1/2
	// spaces can couple to an integer state
	half := gospin.F(1, 2)
	st, err := gospin.NewCoupledKet(gospin.BasisJz, gospin.N(1), gospin.N(0),
		[]gospin.Expr{half, half}, nil)
	if err != nil {
		t.Fatalf("half-integer space momenta should be accepted: %v", err)
	}
	if st.String() != "|1,0,j1=1/2,j2=1/2>" {
		t.Errorf("want |1,0,j1=1/2,j2=1/2>, got %s", st.String())
	}
	st, err = gospin.NewCoupledKet(gospin.BasisJz, gospin.F(3, 2), half,
		[]gospin.Expr{half, half, half},
		[]gospin.JCoupling{{N1: 1, N2: 2, J: gospin.N(1)}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.String() != "|3/2,1/2,j1=1/2,j2=1/2,j3=1/2,j(1,2)=1>" {
		t.Errorf("want |3/2,1/2,j1=1/2,j2=1/2,j3=1/2,j(1,2)=1>, got %s", st.String())
	}
}

func TestCoupledState_Accessors(t *testing.T) {
	st := gospin.JzKetCoupled(gospin.N(1), gospin.N(1), []gospin.Expr{gospin.F(1, 2), gospin.F(1, 2)})
	jn := st.Jn()
	if len(jn) != 2 || gospin.String(jn[0]) != "1/2" {
		t.Errorf("unexpected Jn: %v", jn)
	}
	// mutating the returned slice must not affect the state
	jn[0] = gospin.N(7)
	if gospin.String(st.Jn()[0]) != "1/2" {
		t.Error("Jn must return a copy")
	}
}

// ============================================================
// TensorProduct tests
// ============================================================

func TestTensorProduct_String(t *testing.T) {
	tp := gospin.TP(
		gospin.JzKet(gospin.F(1, 2), gospin.F(1, 2)),
		gospin.JzKet(gospin.F(1, 2), gospin.F(-1, 2)),
	)
	if tp.String() != "|1/2,1/2>x|1/2,-1/2>" {
		t.Errorf("want |1/2,1/2>x|1/2,-1/2>, got %s", tp.String())
	}
}

func TestTensorProduct_Empty(t *testing.T) {
	if _, err := gospin.NewTensorProduct(); err == nil {
		t.Error("expected error for empty tensor product")
	}
}

func TestTensorProduct_Sub(t *testing.T) {
	tp := gospin.TP(gospin.JzKet(gospin.S("j"), gospin.S("m")))
	result := tp.Sub("m", gospin.N(0))
	if result.String() != "|j,0>" {
		t.Errorf("want |j,0>, got %s", result.String())
	}
}
