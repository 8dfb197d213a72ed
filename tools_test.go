package gospin_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gospin "github.com/njchilds90/gospin"
)

// ============================================================
// Input parsing
// ============================================================

func TestParseRational(t *testing.T) {
	cases := map[string]string{
		"3":     "3",
		"-1/2":  "-1/2",
		" 5/10": "1/2",
	}
	for in, want := range cases {
		n, err := gospin.ParseRational(in)
		if err != nil {
			t.Fatalf("ParseRational(%q): %v", in, err)
		}
		if n.String() != want {
			t.Errorf("ParseRational(%q): want %s, got %s", in, want, n.String())
		}
	}
	if _, err := gospin.ParseRational("one half"); err == nil {
		t.Error("expected error for non-rational input")
	}
}

func TestParseAngle(t *testing.T) {
	cases := map[string]string{
		"0":       "0",
		"pi":      "pi",
		"pi/2":    "1/2*pi",
		"3*pi/2":  "3/2*pi",
		"-pi":     "-pi",
		"-pi/2":   "-1/2*pi",
		"1/2*pi":  "1/2*pi",
		" pi / 2": "1/2*pi",
	}
	for in, want := range cases {
		a, err := gospin.ParseAngle(in)
		if err != nil {
			t.Fatalf("ParseAngle(%q): %v", in, err)
		}
		if gospin.String(a) != want {
			t.Errorf("ParseAngle(%q): want %s, got %s", in, want, gospin.String(a))
		}
	}
	for _, in := range []string{"", "2pi", "pi/0", "tau"} {
		if _, err := gospin.ParseAngle(in); err == nil {
			t.Errorf("ParseAngle(%q): expected error", in)
		}
	}
}

func TestParseOp(t *testing.T) {
	cases := map[string]gospin.SpinOp{
		"J+": gospin.Jplus, "jminus": gospin.Jminus,
		"jz": gospin.Jz, "J^2": gospin.J2,
	}
	for in, want := range cases {
		op, err := gospin.ParseOp(in)
		if err != nil {
			t.Fatalf("ParseOp(%q): %v", in, err)
		}
		if op != want {
			t.Errorf("ParseOp(%q): want %s, got %s", in, want, op)
		}
	}
	if _, err := gospin.ParseOp("Jw"); err == nil {
		t.Error("expected error for unknown operator")
	}
}

// ============================================================
// Tool dispatch
// ============================================================

func callTool(t *testing.T, tool string, params map[string]interface{}) gospin.ToolResponse {
	t.Helper()
	resp := gospin.HandleToolCall(gospin.ToolRequest{Tool: tool, Params: params})
	require.True(t, resp.OK, "tool %s failed: %s", tool, resp.Error)
	return resp
}

func TestHandleToolCall_Couple(t *testing.T) {
	resp := callTool(t, "couple", map[string]interface{}{
		"states": []interface{}{
			[]interface{}{"1/2", "1/2"},
			[]interface{}{"1/2", "-1/2"},
		},
	})
	want := "1/2*sqrt(2)*|1,0,j1=1/2,j2=1/2> + 1/2*sqrt(2)*|0,0,j1=1/2,j2=1/2>"
	assert.Equal(t, want, resp.String)
	assert.NotEmpty(t, resp.LaTeX)
}

func TestHandleToolCall_Uncouple(t *testing.T) {
	resp := callTool(t, "uncouple", map[string]interface{}{
		"j": "1", "m": "0",
		"jn": []interface{}{"1/2", "1/2"},
	})
	want := "1/2*sqrt(2)*|1/2,1/2>x|1/2,-1/2> + 1/2*sqrt(2)*|1/2,-1/2>x|1/2,1/2>"
	assert.Equal(t, want, resp.String)
}

func TestHandleToolCall_CG(t *testing.T) {
	resp := callTool(t, "cg", map[string]interface{}{
		"j1": "1/2", "m1": "1/2", "j2": "1/2", "m2": "-1/2", "j3": "1", "m3": "0",
	})
	assert.Equal(t, "1/2*sqrt(2)", resp.String)
}

func TestHandleToolCall_WignerD(t *testing.T) {
	resp := callTool(t, "wignerd", map[string]interface{}{
		"j": "1", "m": "1", "mp": "0",
		"alpha": "0", "beta": "pi/2", "gamma": "0",
	})
	assert.Equal(t, "-1/2*sqrt(2)", resp.String)
}

func TestHandleToolCall_Apply(t *testing.T) {
	resp := callTool(t, "apply", map[string]interface{}{
		"op": "J+", "j": "1", "m": "0",
	})
	assert.Equal(t, "sqrt(2)*hbar*|1,1>", resp.String)
}

func TestHandleToolCall_Rewrite(t *testing.T) {
	resp := callTool(t, "rewrite", map[string]interface{}{
		"to": "Jx", "j": "1/2", "m": "1/2",
	})
	assert.Equal(t, "-1/2*sqrt(2)*|1/2,1/2> + 1/2*sqrt(2)*|1/2,-1/2>", resp.String)
}

func TestHandleToolCall_Represent(t *testing.T) {
	resp := callTool(t, "represent", map[string]interface{}{
		"op": "Jz", "j": "1",
	})
	assert.Equal(t, "[[hbar, 0, 0], [0, 0, 0], [0, 0, -hbar]]", resp.String)
}

func TestHandleToolCall_Commutator(t *testing.T) {
	resp := callTool(t, "commutator", map[string]interface{}{
		"a": "Jx", "b": "Jy",
	})
	assert.Equal(t, "I*hbar*Jz", resp.String)
}

func TestHandleToolCall_Errors(t *testing.T) {
	resp := gospin.HandleToolCall(gospin.ToolRequest{Tool: "factorize", Params: nil})
	require.False(t, resp.OK)
	assert.Contains(t, resp.Error, "unknown tool")

	resp = gospin.HandleToolCall(gospin.ToolRequest{Tool: "cg", Params: map[string]interface{}{
		"j1": "1/2",
	}})
	require.False(t, resp.OK)
	assert.Contains(t, resp.Error, "missing parameter")

	resp = gospin.HandleToolCall(gospin.ToolRequest{Tool: "couple", Params: map[string]interface{}{
		"states": []interface{}{[]interface{}{"1/2", "1/2"}},
	}})
	require.False(t, resp.OK)

	resp = gospin.HandleToolCall(gospin.ToolRequest{Tool: "apply", Params: map[string]interface{}{
		"op": "J+", "j": "1", "m": "5",
	}})
	require.False(t, resp.OK)
	assert.Contains(t, resp.Error, "|m| must not exceed j")
}

func TestToolSpec_ValidJSON(t *testing.T) {
	var spec struct {
		Tools []struct {
			Name   string            `json:"name"`
			Params map[string]string `json:"params"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal([]byte(gospin.ToolSpec()), &spec))
	names := make(map[string]bool)
	for _, tool := range spec.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"couple", "uncouple", "cg", "wignerd", "apply", "rewrite", "represent", "commutator"} {
		assert.True(t, names[want], "tool %s missing from spec", want)
	}
}
