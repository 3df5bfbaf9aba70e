package calculator

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"

	"go.starlark.net/starlark"
)

// powName is the builtin every ** operator is rewritten to.
const powName = "_pow"

// maxPowBits bounds the size of an exact integer power.
const maxPowBits = 1 << 16

var errOperand = errors.New("** needs an operand on both sides")

// rewritePower turns every a ** b into _pow(a, b), since the interpreter has no **
// operator. Operators are rewritten right to left so a ** b ** c groups as
// a ** (b ** c), and a sign in front of the base stays outside the call so -2 ** 2 is -4.
func rewritePower(expr string) (string, error) {
	for {
		op := strings.LastIndex(expr, "**")
		if op < 0 {
			return expr, nil
		}
		start, err := operandStart(expr, op)
		if err != nil {
			return "", err
		}
		end, err := operandEnd(expr, op+2)
		if err != nil {
			return "", err
		}
		expr = expr[:start] + powName + "(" + strings.TrimSpace(expr[start:op]) + ", " +
			strings.TrimSpace(expr[op+2:end]) + ")" + expr[end:]
	}
}

// operandStart returns where the base ending before s[op] begins.
func operandStart(s string, op int) (int, error) {
	i := op
	for i > 0 && isSpace(s[i-1]) {
		i--
	}
	end := i
	for i > 0 {
		c := s[i-1]
		if c == ')' || c == ']' {
			open, ok := matchOpen(s, i-1)
			if !ok {
				return 0, errOperand
			}
			i = open
			continue
		}
		if !isAtom(c) {
			break
		}
		i--
	}
	if i == end {
		return 0, errOperand
	}
	return i, nil
}

// operandEnd returns where the exponent starting at s[from] ends.
func operandEnd(s string, from int) (int, error) {
	i := from
	for i < len(s) && (isSpace(s[i]) || s[i] == '-' || s[i] == '+') {
		i++
	}
	start := i
	for i < len(s) {
		c := s[i]
		if c == '(' || c == '[' {
			closing, ok := matchClose(s, i)
			if !ok {
				return 0, errOperand
			}
			i = closing + 1
			continue
		}
		if !isAtom(c) {
			break
		}
		i++
	}
	if i == start {
		return 0, errOperand
	}
	return i, nil
}

func matchOpen(s string, closing int) (int, bool) {
	depth := 0
	for i := closing; i >= 0; i-- {
		switch s[i] {
		case ')', ']':
			depth++
		case '(', '[':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

func matchClose(s string, open int) (int, bool) {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

func isAtom(c byte) bool {
	return c == '_' || c == '.' ||
		('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// power is the ** operator. Integer bases with non-negative integer exponents stay exact;
// everything else is computed in floating point.
func power(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var base, exp starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &base, &exp); err != nil {
		return nil, err
	}

	if x, ok := base.(starlark.Int); ok {
		if y, ok := exp.(starlark.Int); ok && y.Sign() >= 0 {
			return intPower(x, y)
		}
	}

	x, ok := starlark.AsFloat(base)
	if !ok {
		return nil, fmt.Errorf("unsupported base %s", base.Type())
	}
	y, ok := starlark.AsFloat(exp)
	if !ok {
		return nil, fmt.Errorf("unsupported exponent %s", exp.Type())
	}
	result := math.Pow(x, y)
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return nil, fmt.Errorf("%v ** %v is out of range", x, y)
	}
	return starlark.Float(result), nil
}

func intPower(x, y starlark.Int) (starlark.Value, error) {
	base, exp := x.BigInt(), y.BigInt()
	if base.CmpAbs(big.NewInt(1)) <= 0 {
		return starlark.MakeBigInt(new(big.Int).Exp(base, exp, nil)), nil
	}
	if !exp.IsInt64() || exp.Int64() > maxPowBits || int64(base.BitLen())*exp.Int64() > maxPowBits {
		return nil, fmt.Errorf("%s ** %s is too large", x, y)
	}
	return starlark.MakeBigInt(new(big.Int).Exp(base, exp, nil)), nil
}
