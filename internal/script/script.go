package script

// Restricted script interpreter for user-authored framing, validation,
// transform and extraction logic.
//
// Scripts are a sequence of statements separated by ';' or newlines. A
// statement is either an assignment ("name = expr") or a bare expression.
// The value of the last bare expression is the script result; assignments
// accumulate into the output variable map (extraction scripts use this).
//
// The interpreter is deliberately small: no loops, no user-defined
// functions, no I/O, no host access. Every evaluated node consumes one step
// from a fixed budget so a pathological script cannot stall the receive
// pipeline.

import (
	"fmt"
	"strconv"
)

// MaxSteps is the evaluation budget for one script invocation.
const MaxSteps = 10000

// Kind identifies a runtime value type.
type Kind int

const (
	KindNum Kind = iota
	KindStr
	KindBool
	KindBytes
)

func (k Kind) String() string {
	switch k {
	case KindNum:
		return "number"
	case KindStr:
		return "string"
	case KindBool:
		return "bool"
	case KindBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// Value is a script runtime value.
type Value struct {
	Kind  Kind
	Num   float64
	Str   string
	Bool  bool
	Bytes []byte
}

// Num returns a number value.
func NumVal(n float64) Value { return Value{Kind: KindNum, Num: n} }

// Str returns a string value.
func StrVal(s string) Value { return Value{Kind: KindStr, Str: s} }

// Bool returns a boolean value.
func BoolVal(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// BytesVal returns a bytes value.
func BytesVal(b []byte) Value { return Value{Kind: KindBytes, Bytes: b} }

// Truthy reports whether the value counts as true: non-zero numbers,
// non-empty strings/bytes, true booleans.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindNum:
		return v.Num != 0
	case KindStr:
		return v.Str != ""
	case KindBool:
		return v.Bool
	case KindBytes:
		return len(v.Bytes) > 0
	default:
		return false
	}
}

// Text renders the value as a string, the form used when merging extraction
// results into the session variable map.
func (v Value) Text() string {
	switch v.Kind {
	case KindNum:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindStr:
		return v.Str
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindBytes:
		return string(v.Bytes)
	default:
		return ""
	}
}

// Program is a compiled script.
type Program struct {
	src   string
	stmts []stmt
}

// Compile parses a script source. Parse errors report position.
func Compile(src string) (*Program, error) {
	p := &parser{lex: newLexer(src)}
	stmts, err := p.parseProgram()
	if err != nil {
		return nil, err
	}
	return &Program{src: src, stmts: stmts}, nil
}

// Run evaluates the program with the given input variables. It returns the
// value of the last bare expression (a zero Value if there was none) plus
// every assigned variable.
func (p *Program) Run(vars map[string]Value) (Value, map[string]Value, error) {
	env := &env{
		vars:  make(map[string]Value, len(vars)),
		steps: MaxSteps,
	}
	for k, v := range vars {
		env.vars[k] = v
	}

	var result Value
	assigned := make(map[string]Value)
	for _, s := range p.stmts {
		v, err := evalExpr(env, s.expr)
		if err != nil {
			return Value{}, nil, err
		}
		if s.assign != "" {
			env.vars[s.assign] = v
			assigned[s.assign] = v
		} else {
			result = v
		}
	}
	return result, assigned, nil
}

// Source returns the original script text.
func (p *Program) Source() string { return p.src }

type stmt struct {
	assign string // empty for bare expressions
	expr   expr
}

type env struct {
	vars  map[string]Value
	steps int
}

func (e *env) step() error {
	e.steps--
	if e.steps < 0 {
		return fmt.Errorf("script exceeded %d step budget", MaxSteps)
	}
	return nil
}
