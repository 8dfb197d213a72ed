package gospin

import (
	"fmt"
	"math/big"
	"strings"
)

// ============================================================
// Input parsing
// ============================================================

// ParseRational parses an exact rational like "3", "-1/2".
func ParseRational(s string) (*Num, error) {
	r, ok := new(big.Rat).SetString(strings.TrimSpace(s))
	if !ok {
		return nil, fmt.Errorf("gospin: cannot parse rational %q", s)
	}
	return NumFromRat(r), nil
}

// ParseAngle parses an Euler angle: a rational, "pi", "pi/2", "3*pi/2",
// "-pi" and the like. Rational multiples of pi stay exact.
func ParseAngle(s string) (Expr, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if s == "" {
		return nil, fmt.Errorf("gospin: empty angle")
	}
	if !strings.Contains(s, "pi") {
		return ParseRational(s)
	}
	coeff := new(big.Rat).SetInt64(1)
	rest := s
	if strings.HasPrefix(rest, "-") {
		coeff.Neg(coeff)
		rest = rest[1:]
	}
	// forms: pi, q*pi, pi/d, q*pi/d
	var den string
	if i := strings.Index(rest, "pi/"); i >= 0 {
		den = rest[i+3:]
		rest = rest[:i+2]
	}
	switch {
	case rest == "pi":
	case strings.HasSuffix(rest, "*pi"):
		q, ok := new(big.Rat).SetString(strings.TrimSuffix(rest, "*pi"))
		if !ok {
			return nil, fmt.Errorf("gospin: cannot parse angle %q", s)
		}
		coeff.Mul(coeff, q)
	default:
		return nil, fmt.Errorf("gospin: cannot parse angle %q", s)
	}
	if den != "" {
		d, ok := new(big.Rat).SetString(den)
		if !ok || d.Sign() == 0 {
			return nil, fmt.Errorf("gospin: cannot parse angle %q", s)
		}
		coeff.Quo(coeff, d)
	}
	return MulOf(NumFromRat(coeff), Pi), nil
}

// ParseOp maps an operator name ("J+", "Jz", ...) to the operator.
func ParseOp(s string) (SpinOp, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "j+", "jplus":
		return Jplus, nil
	case "j-", "jminus":
		return Jminus, nil
	case "jx":
		return Jx, nil
	case "jy":
		return Jy, nil
	case "jz":
		return Jz, nil
	case "j2", "j^2":
		return J2, nil
	}
	return SpinOp{}, fmt.Errorf("gospin: unknown operator %q", s)
}

// ============================================================
// Tool layer
// ============================================================

// ToolRequest is one tool invocation, as received by the HTTP server or
// assembled by the CLI.
type ToolRequest struct {
	Tool   string                 `json:"tool"`
	Params map[string]interface{} `json:"params"`
}

// ToolResponse carries the rendered result of a tool call.
type ToolResponse struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
	String string `json:"string,omitempty"`
	LaTeX  string `json:"latex,omitempty"`
}

func toolError(format string, args ...interface{}) ToolResponse {
	return ToolResponse{OK: false, Error: fmt.Sprintf(format, args...)}
}

func toolResult(e Expr) ToolResponse {
	return ToolResponse{OK: true, String: e.String(), LaTeX: e.LaTeX()}
}

func paramString(params map[string]interface{}, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", fmt.Errorf("missing parameter %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter %q must be a string", key)
	}
	return s, nil
}

func paramRational(params map[string]interface{}, key string) (*Num, error) {
	s, err := paramString(params, key)
	if err != nil {
		return nil, err
	}
	return ParseRational(s)
}

func paramBasis(params map[string]interface{}) (Basis, error) {
	v, ok := params["basis"]
	if !ok {
		return BasisJz, nil
	}
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("parameter \"basis\" must be a string")
	}
	return ParseBasis(s)
}

// HandleToolCall executes one tool request. Unknown tools and malformed
// parameters report errors in the response rather than failing the
// transport.
func HandleToolCall(req ToolRequest) ToolResponse {
	switch req.Tool {
	case "couple":
		return toolCouple(req.Params)
	case "uncouple":
		return toolUncouple(req.Params)
	case "cg":
		return toolCG(req.Params)
	case "wignerd":
		return toolWignerD(req.Params)
	case "apply":
		return toolApply(req.Params)
	case "rewrite":
		return toolRewrite(req.Params)
	case "represent":
		return toolRepresent(req.Params)
	case "commutator":
		return toolCommutator(req.Params)
	}
	return toolError("unknown tool %q", req.Tool)
}

// toolCouple couples a list of [j, m] states in one basis.
func toolCouple(params map[string]interface{}) ToolResponse {
	basis, err := paramBasis(params)
	if err != nil {
		return toolError("%v", err)
	}
	raw, ok := params["states"].([]interface{})
	if !ok || len(raw) < 2 {
		return toolError("parameter \"states\" must be a list of at least 2 [j, m] pairs")
	}
	states := make([]*State, len(raw))
	for i, item := range raw {
		pair, ok := item.([]interface{})
		if !ok || len(pair) != 2 {
			return toolError("state %d must be a [j, m] pair", i+1)
		}
		js, ok1 := pair[0].(string)
		ms, ok2 := pair[1].(string)
		if !ok1 || !ok2 {
			return toolError("state %d entries must be rational strings", i+1)
		}
		j, err := ParseRational(js)
		if err != nil {
			return toolError("state %d: %v", i+1, err)
		}
		m, err := ParseRational(ms)
		if err != nil {
			return toolError("state %d: %v", i+1, err)
		}
		st, err := NewKet(basis, j, m)
		if err != nil {
			return toolError("state %d: %v", i+1, err)
		}
		states[i] = st
	}
	tp, err := NewTensorProduct(states...)
	if err != nil {
		return toolError("%v", err)
	}
	result, err := Couple(tp, nil)
	if err != nil {
		return toolError("%v", err)
	}
	return toolResult(result)
}

// toolUncouple uncouples |j,m> over the given space momenta with the
// default scheme.
func toolUncouple(params map[string]interface{}) ToolResponse {
	basis, err := paramBasis(params)
	if err != nil {
		return toolError("%v", err)
	}
	j, err := paramRational(params, "j")
	if err != nil {
		return toolError("%v", err)
	}
	m, err := paramRational(params, "m")
	if err != nil {
		return toolError("%v", err)
	}
	raw, ok := params["jn"].([]interface{})
	if !ok || len(raw) < 2 {
		return toolError("parameter \"jn\" must be a list of at least 2 rational strings")
	}
	jn := make([]Expr, len(raw))
	for i, item := range raw {
		s, ok := item.(string)
		if !ok {
			return toolError("jn entry %d must be a rational string", i+1)
		}
		v, err := ParseRational(s)
		if err != nil {
			return toolError("jn entry %d: %v", i+1, err)
		}
		jn[i] = v
	}
	st, err := NewCoupledKet(basis, j, m, jn, nil)
	if err != nil {
		return toolError("%v", err)
	}
	result, err := Uncouple(st, nil, nil)
	if err != nil {
		return toolError("%v", err)
	}
	return toolResult(result)
}

func toolCG(params map[string]interface{}) ToolResponse {
	vals := make([]*Num, 6)
	for i, key := range []string{"j1", "m1", "j2", "m2", "j3", "m3"} {
		v, err := paramRational(params, key)
		if err != nil {
			return toolError("%v", err)
		}
		vals[i] = v
	}
	return toolResult(evalCG(vals[0], vals[1], vals[2], vals[3], vals[4], vals[5]))
}

func toolWignerD(params map[string]interface{}) ToolResponse {
	j, err := paramRational(params, "j")
	if err != nil {
		return toolError("%v", err)
	}
	m, err := paramRational(params, "m")
	if err != nil {
		return toolError("%v", err)
	}
	mp, err := paramRational(params, "mp")
	if err != nil {
		return toolError("%v", err)
	}
	angles := make([]Expr, 3)
	for i, key := range []string{"alpha", "beta", "gamma"} {
		s, err := paramString(params, key)
		if err != nil {
			return toolError("%v", err)
		}
		a, err := ParseAngle(s)
		if err != nil {
			return toolError("%v", err)
		}
		angles[i] = a
	}
	result, err := NewWignerD(j, m, mp, angles[0], angles[1], angles[2]).Doit()
	if err != nil {
		return toolError("%v", err)
	}
	return toolResult(result)
}

func toolApply(params map[string]interface{}) ToolResponse {
	opName, err := paramString(params, "op")
	if err != nil {
		return toolError("%v", err)
	}
	op, err := ParseOp(opName)
	if err != nil {
		return toolError("%v", err)
	}
	basis, err := paramBasis(params)
	if err != nil {
		return toolError("%v", err)
	}
	j, err := paramRational(params, "j")
	if err != nil {
		return toolError("%v", err)
	}
	m, err := paramRational(params, "m")
	if err != nil {
		return toolError("%v", err)
	}
	st, err := NewKet(basis, j, m)
	if err != nil {
		return toolError("%v", err)
	}
	result, err := Apply(op, st)
	if err != nil {
		return toolError("%v", err)
	}
	return toolResult(result)
}

func toolRewrite(params map[string]interface{}) ToolResponse {
	fromBasis, err := paramBasis(params)
	if err != nil {
		return toolError("%v", err)
	}
	toName, err := paramString(params, "to")
	if err != nil {
		return toolError("%v", err)
	}
	to, err := ParseBasis(toName)
	if err != nil {
		return toolError("%v", err)
	}
	j, err := paramRational(params, "j")
	if err != nil {
		return toolError("%v", err)
	}
	m, err := paramRational(params, "m")
	if err != nil {
		return toolError("%v", err)
	}
	st, err := NewKet(fromBasis, j, m)
	if err != nil {
		return toolError("%v", err)
	}
	result, err := Rewrite(st, to)
	if err != nil {
		return toolError("%v", err)
	}
	return toolResult(result)
}

func toolRepresent(params map[string]interface{}) ToolResponse {
	opName, err := paramString(params, "op")
	if err != nil {
		return toolError("%v", err)
	}
	op, err := ParseOp(opName)
	if err != nil {
		return toolError("%v", err)
	}
	j, err := paramRational(params, "j")
	if err != nil {
		return toolError("%v", err)
	}
	matrix, err := RepresentOp(op, j)
	if err != nil {
		return toolError("%v", err)
	}
	return ToolResponse{OK: true, String: matrix.String(), LaTeX: matrix.LaTeX()}
}

func toolCommutator(params map[string]interface{}) ToolResponse {
	aName, err := paramString(params, "a")
	if err != nil {
		return toolError("%v", err)
	}
	bName, err := paramString(params, "b")
	if err != nil {
		return toolError("%v", err)
	}
	a, err := ParseOp(aName)
	if err != nil {
		return toolError("%v", err)
	}
	b, err := ParseOp(bName)
	if err != nil {
		return toolError("%v", err)
	}
	result, err := Commutator(a, b)
	if err != nil {
		return toolError("%v", err)
	}
	return toolResult(result)
}

// ToolSpec returns a JSON description of the available tools for client
// registration.
func ToolSpec() string {
	return `{
  "tools": [
    {"name": "couple", "params": {"basis": "Jx|Jy|Jz (optional, default Jz)", "states": "list of [j, m] rational-string pairs"}},
    {"name": "uncouple", "params": {"basis": "optional", "j": "rational", "m": "rational", "jn": "list of rationals"}},
    {"name": "cg", "params": {"j1": "rational", "m1": "rational", "j2": "rational", "m2": "rational", "j3": "rational", "m3": "rational"}},
    {"name": "wignerd", "params": {"j": "rational", "m": "rational", "mp": "rational", "alpha": "angle", "beta": "angle", "gamma": "angle"}},
    {"name": "apply", "params": {"op": "J+|J-|Jx|Jy|Jz|J2", "basis": "optional", "j": "rational", "m": "rational"}},
    {"name": "rewrite", "params": {"basis": "source basis, optional", "to": "target basis", "j": "rational", "m": "rational"}},
    {"name": "represent", "params": {"op": "J+|J-|Jx|Jy|Jz|J2", "j": "rational"}},
    {"name": "commutator", "params": {"a": "operator", "b": "operator"}}
  ]
}`
}
