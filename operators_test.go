package gospin_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	gospin "github.com/njchilds90/gospin"
)

// ============================================================
// Operator application — eigenbasis
// ============================================================

func applyString(t *testing.T, op gospin.SpinOp, e gospin.Expr) string {
	t.Helper()
	result, err := gospin.Apply(op, e)
	if err != nil {
		t.Fatalf("Apply(%s, %s): %v", op, gospin.String(e), err)
	}
	return gospin.String(result)
}

func TestApply_JzEigenvalue(t *testing.T) {
	got := applyString(t, gospin.Jz, gospin.JzKet(gospin.N(1), gospin.N(1)))
	if got != "hbar*|1,1>" {
		t.Errorf("want hbar*|1,1>, got %s", got)
	}
	got = applyString(t, gospin.Jz, gospin.JzKet(gospin.F(1, 2), gospin.F(-1, 2)))
	if got != "-1/2*hbar*|1/2,-1/2>" {
		t.Errorf("want -1/2*hbar*|1/2,-1/2>, got %s", got)
	}
}

func TestApply_EigenbasisComponents(t *testing.T) {
	// each component operator is diagonal on its own eigenstates
	got := applyString(t, gospin.Jx, gospin.JxKet(gospin.N(1), gospin.N(1)))
	if got != "hbar*|1,1>" {
		t.Errorf("want hbar*|1,1>, got %s", got)
	}
	got = applyString(t, gospin.Jy, gospin.JyKet(gospin.N(1), gospin.N(-1)))
	if got != "-hbar*|1,-1>" {
		t.Errorf("want -hbar*|1,-1>, got %s", got)
	}
}

func TestApply_LadderUp(t *testing.T) {
	got := applyString(t, gospin.Jplus, gospin.JzKet(gospin.N(1), gospin.N(0)))
	if got != "sqrt(2)*hbar*|1,1>" {
		t.Errorf("want sqrt(2)*hbar*|1,1>, got %s", got)
	}
}

func TestApply_LadderBoundary(t *testing.T) {
	got := applyString(t, gospin.Jplus, gospin.JzKet(gospin.N(1), gospin.N(1)))
	if got != "0" {
		t.Errorf("J+ at the top rung should vanish, got %s", got)
	}
	got = applyString(t, gospin.Jminus, gospin.JzKet(gospin.F(1, 2), gospin.F(-1, 2)))
	if got != "0" {
		t.Errorf("J- at the bottom rung should vanish, got %s", got)
	}
}

func TestApply_LadderSymbolic(t *testing.T) {
	result, err := gospin.Apply(gospin.Jplus, gospin.JzKet(gospin.S("j"), gospin.S("m")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := gospin.String(result)
	if !containsAll(s, "hbar", "sqrt(", "|j,m + 1>") {
		t.Errorf("symbolic ladder result looks wrong: %s", s)
	}
}

func TestApply_JSquared(t *testing.T) {
	got := applyString(t, gospin.J2, gospin.JzKet(gospin.N(1), gospin.N(0)))
	if got != "2*hbar^2*|1,0>" {
		t.Errorf("want 2*hbar^2*|1,0>, got %s", got)
	}
	// J^2 is basis independent
	got = applyString(t, gospin.J2, gospin.JxKet(gospin.F(1, 2), gospin.F(1, 2)))
	if got != "3/4*hbar^2*|1/2,1/2>" {
		t.Errorf("want 3/4*hbar^2*|1/2,1/2>, got %s", got)
	}
}

func TestApply_JSquaredCoupled(t *testing.T) {
	st := gospin.JzKetCoupled(gospin.N(1), gospin.N(0), []gospin.Expr{gospin.F(1, 2), gospin.F(1, 2)})
	got := applyString(t, gospin.J2, st)
	if got != "2*hbar^2*|1,0,j1=1/2,j2=1/2>" {
		t.Errorf("want 2*hbar^2*|1,0,j1=1/2,j2=1/2>, got %s", got)
	}
}

func TestApply_LadderOnCoupled(t *testing.T) {
	st := gospin.JzKetCoupled(gospin.N(1), gospin.N(0), []gospin.Expr{gospin.F(1, 2), gospin.F(1, 2)})
	got := applyString(t, gospin.Jplus, st)
	if got != "sqrt(2)*hbar*|1,1,j1=1/2,j2=1/2>" {
		t.Errorf("want sqrt(2)*hbar*|1,1,j1=1/2,j2=1/2>, got %s", got)
	}
}

func TestApply_JxOnJzBasis(t *testing.T) {
	got := applyString(t, gospin.Jx, gospin.JzKet(gospin.F(1, 2), gospin.F(1, 2)))
	if got != "1/2*hbar*|1/2,-1/2>" {
		t.Errorf("want 1/2*hbar*|1/2,-1/2>, got %s", got)
	}
	got = applyString(t, gospin.Jx, gospin.JzKet(gospin.N(1), gospin.N(0)))
	if got != "1/2*sqrt(2)*hbar*|1,1> + 1/2*sqrt(2)*hbar*|1,-1>" {
		t.Errorf("unexpected Jx|1,0>: %s", got)
	}
}

func TestApply_JyOnJzBasis(t *testing.T) {
	got := applyString(t, gospin.Jy, gospin.JzKet(gospin.F(1, 2), gospin.F(1, 2)))
	if got != "1/2*I*hbar*|1/2,-1/2>" {
		t.Errorf("want 1/2*I*hbar*|1/2,-1/2>, got %s", got)
	}
}

func TestApply_BraRejected(t *testing.T) {
	_, err := gospin.Apply(gospin.Jz, gospin.JzBra(gospin.N(1), gospin.N(0)))
	if err == nil {
		t.Error("operators must reject bras")
	}
}

// ============================================================
// Operator application — cross basis
// ============================================================

func TestApply_JzOnJxBasis(t *testing.T) {
	// Jz|x:1/2,1/2> = hbar/2 |x:1/2,-1/2>
	got := applyString(t, gospin.Jz, gospin.JxKet(gospin.F(1, 2), gospin.F(1, 2)))
	if got != "1/2*hbar*|1/2,-1/2>" {
		t.Errorf("want 1/2*hbar*|1/2,-1/2>, got %s", got)
	}
}

func TestApply_LinearCombination(t *testing.T) {
	up := gospin.JzKet(gospin.F(1, 2), gospin.F(1, 2))
	down := gospin.JzKet(gospin.F(1, 2), gospin.F(-1, 2))
	e := gospin.AddOf(gospin.MulOf(gospin.N(2), up), down)
	got := applyString(t, gospin.Jz, e)
	if got != "hbar*|1/2,1/2> - 1/2*hbar*|1/2,-1/2>" {
		t.Errorf("unexpected result: %s", got)
	}
}

// ============================================================
// Tensor products
// ============================================================

func TestApply_TensorProductSum(t *testing.T) {
	up := gospin.JzKet(gospin.F(1, 2), gospin.F(1, 2))
	tp := gospin.TP(up, up)
	got := applyString(t, gospin.Jz, tp)
	if got != "hbar*|1/2,1/2>x|1/2,1/2>" {
		t.Errorf("want hbar*|1/2,1/2>x|1/2,1/2>, got %s", got)
	}
}

func TestApply_TensorProductLadder(t *testing.T) {
	up := gospin.JzKet(gospin.F(1, 2), gospin.F(1, 2))
	down := gospin.JzKet(gospin.F(1, 2), gospin.F(-1, 2))
	got := applyString(t, gospin.Jplus, gospin.TP(up, down))
	if got != "hbar*|1/2,1/2>x|1/2,1/2>" {
		t.Errorf("want hbar*|1/2,1/2>x|1/2,1/2>, got %s", got)
	}
}

func TestApply_J2OnTensorProductNotImplemented(t *testing.T) {
	up := gospin.JzKet(gospin.F(1, 2), gospin.F(1, 2))
	_, err := gospin.Apply(gospin.J2, gospin.TP(up, up))
	if !errors.Is(err, gospin.ErrNotImplemented) {
		t.Errorf("expected ErrNotImplemented, got %v", err)
	}
}

// ============================================================
// Matrix representations
// ============================================================

func TestRepresentOp_SpinHalf(t *testing.T) {
	cases := []struct {
		op   gospin.SpinOp
		want string
	}{
		{gospin.Jz, "[[1/2*hbar, 0], [0, -1/2*hbar]]"},
		{gospin.Jx, "[[0, 1/2*hbar], [1/2*hbar, 0]]"},
		{gospin.Jy, "[[0, -1/2*I*hbar], [1/2*I*hbar, 0]]"},
		{gospin.J2, "[[3/4*hbar^2, 0], [0, 3/4*hbar^2]]"},
	}
	for _, c := range cases {
		m, err := gospin.RepresentOp(c.op, gospin.F(1, 2))
		if err != nil {
			t.Fatalf("RepresentOp(%s): %v", c.op, err)
		}
		if m.String() != c.want {
			t.Errorf("%s: want %s, got %s", c.op, c.want, m.String())
		}
	}
}

func TestRepresentOp_SpinOneLadder(t *testing.T) {
	m, err := gospin.RepresentOp(gospin.Jplus, gospin.N(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "[[0, sqrt(2)*hbar, 0], [0, 0, sqrt(2)*hbar], [0, 0, 0]]"
	if m.String() != want {
		t.Errorf("want %s, got %s", want, m.String())
	}
}

func TestRepresentOp_SymbolicJRejected(t *testing.T) {
	if _, err := gospin.RepresentOp(gospin.Jx, gospin.S("j")); err == nil {
		t.Error("expected error for symbolic j")
	}
}

func TestRepresentCDense_SU2Algebra(t *testing.T) {
	// [Jx, Jy] = i Jz numerically (hbar = 1) for j = 1
	j := gospin.N(1)
	x, err := gospin.RepresentCDense(gospin.Jx, j)
	require.NoError(t, err)
	y, err := gospin.RepresentCDense(gospin.Jy, j)
	require.NoError(t, err)
	z, err := gospin.RepresentCDense(gospin.Jz, j)
	require.NoError(t, err)

	d, _ := x.Dims()
	xy := mat.NewCDense(d, d, nil)
	xy.Mul(x, y)
	yx := mat.NewCDense(d, d, nil)
	yx.Mul(y, x)

	for r := 0; r < d; r++ {
		for c := 0; c < d; c++ {
			comm := xy.At(r, c) - yx.At(r, c)
			want := complex(0, 1) * z.At(r, c)
			assert.InDelta(t, real(want), real(comm), 1e-12, "entry (%d,%d) real part", r, c)
			assert.InDelta(t, imag(want), imag(comm), 1e-12, "entry (%d,%d) imag part", r, c)
		}
	}
}

func TestRepresentCDense_JzDiagonal(t *testing.T) {
	m, err := gospin.RepresentCDense(gospin.Jz, gospin.F(3, 2))
	require.NoError(t, err)
	d, _ := m.Dims()
	require.Equal(t, 4, d)
	want := []float64{1.5, 0.5, -0.5, -1.5}
	for i := 0; i < d; i++ {
		assert.InDelta(t, want[i], real(m.At(i, i)), 1e-12)
	}
}

// ============================================================
// Matrix elements
// ============================================================

func TestMatrixElement(t *testing.T) {
	got, err := gospin.MatrixElement(gospin.Jplus, gospin.N(1), gospin.N(1), gospin.N(1), gospin.N(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gospin.String(got) != "sqrt(2)*hbar" {
		t.Errorf("want sqrt(2)*hbar, got %s", gospin.String(got))
	}
	// off-delta elements vanish
	got, err = gospin.MatrixElement(gospin.Jplus, gospin.N(1), gospin.N(0), gospin.N(1), gospin.N(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gospin.String(got) != "0" {
		t.Errorf("want 0, got %s", gospin.String(got))
	}
	// different j never mix
	got, err = gospin.MatrixElement(gospin.Jz, gospin.N(2), gospin.N(0), gospin.N(1), gospin.N(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gospin.String(got) != "0" {
		t.Errorf("want 0, got %s", gospin.String(got))
	}
}

func TestMatrixElement_Jy(t *testing.T) {
	got, err := gospin.MatrixElement(gospin.Jy, gospin.F(1, 2), gospin.F(-1, 2), gospin.F(1, 2), gospin.F(1, 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gospin.String(got) != "1/2*I*hbar" {
		t.Errorf("want 1/2*I*hbar, got %s", gospin.String(got))
	}
}

func TestMatrixElement_SymbolicRejected(t *testing.T) {
	_, err := gospin.MatrixElement(gospin.Jz, gospin.S("j"), gospin.N(0), gospin.S("j"), gospin.N(0))
	if err == nil {
		t.Error("expected error for symbolic quantum numbers")
	}
}

// ============================================================
// Commutators
// ============================================================

func TestCommutator_Cyclic(t *testing.T) {
	cases := []struct {
		a, b gospin.SpinOp
		want string
	}{
		{gospin.Jx, gospin.Jy, "I*hbar*Jz"},
		{gospin.Jy, gospin.Jz, "I*hbar*Jx"},
		{gospin.Jz, gospin.Jx, "I*hbar*Jy"},
		{gospin.Jz, gospin.Jplus, "hbar*J+"},
		{gospin.Jz, gospin.Jminus, "-hbar*J-"},
		{gospin.Jplus, gospin.Jminus, "2*hbar*Jz"},
	}
	for _, c := range cases {
		got, err := gospin.Commutator(c.a, c.b)
		if err != nil {
			t.Fatalf("[%s, %s]: %v", c.a, c.b, err)
		}
		if gospin.String(got) != c.want {
			t.Errorf("[%s, %s]: want %s, got %s", c.a, c.b, c.want, gospin.String(got))
		}
	}
}

func TestCommutator_Antisymmetry(t *testing.T) {
	got, err := gospin.Commutator(gospin.Jy, gospin.Jx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gospin.String(got) != "-I*hbar*Jz" {
		t.Errorf("want -I*hbar*Jz, got %s", gospin.String(got))
	}
}

func TestCommutator_Casimir(t *testing.T) {
	for _, op := range []gospin.SpinOp{gospin.Jx, gospin.Jy, gospin.Jz, gospin.Jplus, gospin.Jminus} {
		got, err := gospin.Commutator(gospin.J2, op)
		if err != nil {
			t.Fatalf("[J2, %s]: %v", op, err)
		}
		if gospin.String(got) != "0" {
			t.Errorf("[J2, %s] should vanish, got %s", op, gospin.String(got))
		}
	}
}

func TestCommutator_SelfVanishes(t *testing.T) {
	got, err := gospin.Commutator(gospin.Jx, gospin.Jx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gospin.String(got) != "0" {
		t.Errorf("want 0, got %s", gospin.String(got))
	}
}

// ============================================================
// Operator rewrites
// ============================================================

func TestAsXYZ(t *testing.T) {
	if gospin.String(gospin.Jplus.AsXYZ()) != "Jx + I*Jy" {
		t.Errorf("want 'Jx + I*Jy', got %s", gospin.String(gospin.Jplus.AsXYZ()))
	}
	if gospin.String(gospin.J2.AsXYZ()) != "Jx^2 + Jy^2 + Jz^2" {
		t.Errorf("want 'Jx^2 + Jy^2 + Jz^2', got %s", gospin.String(gospin.J2.AsXYZ()))
	}
}

func TestAsLadder(t *testing.T) {
	if gospin.String(gospin.Jx.AsLadder()) != "1/2*(J+ + J-)" {
		t.Errorf("want '1/2*(J+ + J-)', got %s", gospin.String(gospin.Jx.AsLadder()))
	}
	if gospin.String(gospin.Jz.AsLadder()) != "Jz" {
		t.Errorf("Jz should rewrite to itself, got %s", gospin.String(gospin.Jz.AsLadder()))
	}
}

func containsAll(s string, frags ...string) bool {
	for _, f := range frags {
		if !strings.Contains(s, f) {
			return false
		}
	}
	return true
}
