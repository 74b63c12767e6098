package script

// Evaluator and builtin function table.

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

func evalExpr(e *env, x expr) (Value, error) {
	if err := e.step(); err != nil {
		return Value{}, err
	}
	switch n := x.(type) {
	case *literalExpr:
		return n.val, nil
	case *varExpr:
		v, ok := e.vars[n.name]
		if !ok {
			return Value{}, fmt.Errorf("undefined variable %q", n.name)
		}
		return v, nil
	case *unaryExpr:
		return evalUnary(e, n)
	case *binaryExpr:
		return evalBinary(e, n)
	case *callExpr:
		return evalCall(e, n)
	default:
		return Value{}, fmt.Errorf("unknown expression node %T", x)
	}
}

func evalUnary(e *env, n *unaryExpr) (Value, error) {
	v, err := evalExpr(e, n.operand)
	if err != nil {
		return Value{}, err
	}
	switch n.op {
	case "!":
		return BoolVal(!v.Truthy()), nil
	case "-":
		f, err := toNum(v)
		if err != nil {
			return Value{}, err
		}
		return NumVal(-f), nil
	}
	return Value{}, fmt.Errorf("unknown unary operator %q", n.op)
}

func evalBinary(e *env, n *binaryExpr) (Value, error) {
	// Short-circuit logic first.
	if n.op == "&&" || n.op == "||" {
		lhs, err := evalExpr(e, n.lhs)
		if err != nil {
			return Value{}, err
		}
		if n.op == "&&" && !lhs.Truthy() {
			return BoolVal(false), nil
		}
		if n.op == "||" && lhs.Truthy() {
			return BoolVal(true), nil
		}
		rhs, err := evalExpr(e, n.rhs)
		if err != nil {
			return Value{}, err
		}
		return BoolVal(rhs.Truthy()), nil
	}

	lhs, err := evalExpr(e, n.lhs)
	if err != nil {
		return Value{}, err
	}
	rhs, err := evalExpr(e, n.rhs)
	if err != nil {
		return Value{}, err
	}

	switch n.op {
	case "==", "!=":
		eq := valuesEqual(lhs, rhs)
		if n.op == "!=" {
			eq = !eq
		}
		return BoolVal(eq), nil
	case "<", "<=", ">", ">=":
		return compareValues(n.op, lhs, rhs)
	case "+":
		// String concatenation when either side is textual.
		if lhs.Kind == KindStr || rhs.Kind == KindStr {
			return StrVal(lhs.Text() + rhs.Text()), nil
		}
		a, err := toNum(lhs)
		if err != nil {
			return Value{}, err
		}
		b, err := toNum(rhs)
		if err != nil {
			return Value{}, err
		}
		return NumVal(a + b), nil
	case "-", "*", "/", "%":
		a, err := toNum(lhs)
		if err != nil {
			return Value{}, err
		}
		b, err := toNum(rhs)
		if err != nil {
			return Value{}, err
		}
		switch n.op {
		case "-":
			return NumVal(a - b), nil
		case "*":
			return NumVal(a * b), nil
		case "/":
			if b == 0 {
				return Value{}, fmt.Errorf("division by zero")
			}
			return NumVal(a / b), nil
		case "%":
			if b == 0 {
				return Value{}, fmt.Errorf("division by zero")
			}
			return NumVal(math.Mod(a, b)), nil
		}
	}
	return Value{}, fmt.Errorf("unknown operator %q", n.op)
}

func valuesEqual(a, b Value) bool {
	if a.Kind == KindNum && b.Kind == KindNum {
		return a.Num == b.Num
	}
	if a.Kind == KindBool || b.Kind == KindBool {
		return a.Truthy() == b.Truthy()
	}
	return a.Text() == b.Text()
}

func compareValues(op string, a, b Value) (Value, error) {
	// Numbers compare numerically, everything else lexically.
	if a.Kind == KindNum && b.Kind == KindNum {
		switch op {
		case "<":
			return BoolVal(a.Num < b.Num), nil
		case "<=":
			return BoolVal(a.Num <= b.Num), nil
		case ">":
			return BoolVal(a.Num > b.Num), nil
		case ">=":
			return BoolVal(a.Num >= b.Num), nil
		}
	}
	as, bs := a.Text(), b.Text()
	switch op {
	case "<":
		return BoolVal(as < bs), nil
	case "<=":
		return BoolVal(as <= bs), nil
	case ">":
		return BoolVal(as > bs), nil
	case ">=":
		return BoolVal(as >= bs), nil
	}
	return Value{}, fmt.Errorf("unknown comparison %q", op)
}

func evalCall(e *env, n *callExpr) (Value, error) {
	fn, ok := builtins[n.name]
	if !ok {
		return Value{}, fmt.Errorf("unknown function %q", n.name)
	}
	args := make([]Value, len(n.args))
	for i, a := range n.args {
		v, err := evalExpr(e, a)
		if err != nil {
			return Value{}, err
		}
		args[i] = v
	}
	return fn(args)
}

type builtinFunc func(args []Value) (Value, error)

var builtins = map[string]builtinFunc{
	"len":        biLen,
	"contains":   biContains,
	"startsWith": biStartsWith,
	"endsWith":   biEndsWith,
	"indexOf":    biIndexOf,
	"matches":    biMatches,
	"trim":       biTrim,
	"upper":      biUpper,
	"lower":      biLower,
	"slice":      biSlice,
	"byteAt":     biByteAt,
	"uint":       biUint,
	"hex":        biHex,
	"fromHex":    biFromHex,
	"str":        biStr,
	"num":        biNum,
	"min":        biMin,
	"max":        biMax,
}

func arity(args []Value, want int, name string) error {
	if len(args) != want {
		return fmt.Errorf("%s expects %d argument(s), got %d", name, want, len(args))
	}
	return nil
}

func toNum(v Value) (float64, error) {
	switch v.Kind {
	case KindNum:
		return v.Num, nil
	case KindStr:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", v.Str)
		}
		return f, nil
	case KindBool:
		if v.Bool {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("cannot use %s as number", v.Kind)
	}
}

func toInt(v Value) (int, error) {
	f, err := toNum(v)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func toBytes(v Value) []byte {
	if v.Kind == KindBytes {
		return v.Bytes
	}
	return []byte(v.Text())
}

func biLen(args []Value) (Value, error) {
	if err := arity(args, 1, "len"); err != nil {
		return Value{}, err
	}
	if args[0].Kind == KindBytes {
		return NumVal(float64(len(args[0].Bytes))), nil
	}
	return NumVal(float64(len(args[0].Text()))), nil
}

func biContains(args []Value) (Value, error) {
	if err := arity(args, 2, "contains"); err != nil {
		return Value{}, err
	}
	return BoolVal(strings.Contains(args[0].Text(), args[1].Text())), nil
}

func biStartsWith(args []Value) (Value, error) {
	if err := arity(args, 2, "startsWith"); err != nil {
		return Value{}, err
	}
	return BoolVal(strings.HasPrefix(args[0].Text(), args[1].Text())), nil
}

func biEndsWith(args []Value) (Value, error) {
	if err := arity(args, 2, "endsWith"); err != nil {
		return Value{}, err
	}
	return BoolVal(strings.HasSuffix(args[0].Text(), args[1].Text())), nil
}

func biIndexOf(args []Value) (Value, error) {
	if err := arity(args, 2, "indexOf"); err != nil {
		return Value{}, err
	}
	return NumVal(float64(strings.Index(args[0].Text(), args[1].Text()))), nil
}

func biMatches(args []Value) (Value, error) {
	if err := arity(args, 2, "matches"); err != nil {
		return Value{}, err
	}
	re, err := regexp.Compile(args[1].Text())
	if err != nil {
		return Value{}, fmt.Errorf("matches: bad pattern: %v", err)
	}
	return BoolVal(re.MatchString(args[0].Text())), nil
}

func biTrim(args []Value) (Value, error) {
	if err := arity(args, 1, "trim"); err != nil {
		return Value{}, err
	}
	return StrVal(strings.TrimSpace(args[0].Text())), nil
}

func biUpper(args []Value) (Value, error) {
	if err := arity(args, 1, "upper"); err != nil {
		return Value{}, err
	}
	return StrVal(strings.ToUpper(args[0].Text())), nil
}

func biLower(args []Value) (Value, error) {
	if err := arity(args, 1, "lower"); err != nil {
		return Value{}, err
	}
	return StrVal(strings.ToLower(args[0].Text())), nil
}

// slice(x, start, end) over bytes or strings; negative or out-of-range
// bounds are clamped.
func biSlice(args []Value) (Value, error) {
	if err := arity(args, 3, "slice"); err != nil {
		return Value{}, err
	}
	start, err := toInt(args[1])
	if err != nil {
		return Value{}, err
	}
	end, err := toInt(args[2])
	if err != nil {
		return Value{}, err
	}
	if args[0].Kind == KindBytes {
		b := args[0].Bytes
		start, end = clampRange(start, end, len(b))
		return BytesVal(b[start:end]), nil
	}
	s := args[0].Text()
	start, end = clampRange(start, end, len(s))
	return StrVal(s[start:end]), nil
}

func clampRange(start, end, n int) (int, int) {
	if start < 0 {
		start = 0
	}
	if end > n {
		end = n
	}
	if start > end {
		start = end
	}
	return start, end
}

func biByteAt(args []Value) (Value, error) {
	if err := arity(args, 2, "byteAt"); err != nil {
		return Value{}, err
	}
	b := toBytes(args[0])
	i, err := toInt(args[1])
	if err != nil {
		return Value{}, err
	}
	if i < 0 || i >= len(b) {
		return Value{}, fmt.Errorf("byteAt: index %d out of range (len %d)", i, len(b))
	}
	return NumVal(float64(b[i])), nil
}

// uint(b, offset, size, order) reads an unsigned integer of size 1..8 bytes
// with order "BE" or "LE".
func biUint(args []Value) (Value, error) {
	if err := arity(args, 4, "uint"); err != nil {
		return Value{}, err
	}
	b := toBytes(args[0])
	off, err := toInt(args[1])
	if err != nil {
		return Value{}, err
	}
	size, err := toInt(args[2])
	if err != nil {
		return Value{}, err
	}
	order := strings.ToUpper(args[3].Text())
	if size < 1 || size > 8 {
		return Value{}, fmt.Errorf("uint: size %d out of range [1,8]", size)
	}
	if off < 0 || off+size > len(b) {
		return Value{}, fmt.Errorf("uint: range [%d,%d) out of bounds (len %d)", off, off+size, len(b))
	}
	var v uint64
	if order == "LE" {
		for i := size - 1; i >= 0; i-- {
			v = v<<8 | uint64(b[off+i])
		}
	} else {
		for i := 0; i < size; i++ {
			v = v<<8 | uint64(b[off+i])
		}
	}
	return NumVal(float64(v)), nil
}

func biHex(args []Value) (Value, error) {
	if err := arity(args, 1, "hex"); err != nil {
		return Value{}, err
	}
	return StrVal(fmt.Sprintf("%x", toBytes(args[0]))), nil
}

func biFromHex(args []Value) (Value, error) {
	if err := arity(args, 1, "fromHex"); err != nil {
		return Value{}, err
	}
	s := strings.ReplaceAll(strings.TrimSpace(args[0].Text()), " ", "")
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 != 0 {
		return Value{}, fmt.Errorf("fromHex: odd number of digits")
	}
	out := make([]byte, len(s)/2)
	for i := 0; i < len(out); i++ {
		hi, err1 := hexDigit(s[2*i])
		lo, err2 := hexDigit(s[2*i+1])
		if err1 != nil || err2 != nil {
			return Value{}, fmt.Errorf("fromHex: invalid hex digit at %d", 2*i)
		}
		out[i] = hi<<4 | lo
	}
	return BytesVal(out), nil
}

func hexDigit(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	}
	return 0, fmt.Errorf("invalid digit")
}

func biStr(args []Value) (Value, error) {
	if err := arity(args, 1, "str"); err != nil {
		return Value{}, err
	}
	return StrVal(args[0].Text()), nil
}

func biNum(args []Value) (Value, error) {
	if err := arity(args, 1, "num"); err != nil {
		return Value{}, err
	}
	f, err := toNum(args[0])
	if err != nil {
		return Value{}, err
	}
	return NumVal(f), nil
}

func biMin(args []Value) (Value, error) {
	if err := arity(args, 2, "min"); err != nil {
		return Value{}, err
	}
	a, err := toNum(args[0])
	if err != nil {
		return Value{}, err
	}
	b, err := toNum(args[1])
	if err != nil {
		return Value{}, err
	}
	return NumVal(math.Min(a, b)), nil
}

func biMax(args []Value) (Value, error) {
	if err := arity(args, 2, "max"); err != nil {
		return Value{}, err
	}
	a, err := toNum(args[0])
	if err != nil {
		return Value{}, err
	}
	b, err := toNum(args[1])
	if err != nil {
		return Value{}, err
	}
	return NumVal(math.Max(a, b)), nil
}
