package scripting

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// MaxExpressionLen bounds the accepted expression length in bytes.
const MaxExpressionLen = 256

var (
	// ErrInvalidExpression means the expression contains characters or names
	// outside the arithmetic whitelist, or does not evaluate to a number.
	ErrInvalidExpression = errors.New("invalid expression")
	// ErrNotFinite means the expression evaluated to an infinity or NaN,
	// usually from division by zero.
	ErrNotFinite = errors.New("result is not a finite number")
)

var (
	identifier   = regexp.MustCompile(`[a-z]+`)
	allowedChars = regexp.MustCompile(`^[0-9a-z+\-*/%^().,\s]*$`)
	replacer     = strings.NewReplacer("×", "*", "÷", "/", "（", "(", "）", ")", "**", "^")
)

// Calculator evaluates arithmetic expressions.
type Calculator struct {
	instLimit int
	allowed   map[string]bool
}

// NewCalculator creates a Calculator. instLimit <= 0 uses DefaultInstructionLimit.
func NewCalculator(instLimit int) *Calculator {
	allowed := make(map[string]bool, len(mathFunctions))
	for _, name := range mathFunctions {
		allowed[name] = true
	}
	return &Calculator{instLimit: instLimit, allowed: allowed}
}

// Eval evaluates expr. Accepted syntax is numbers, + - * / % ^ (also ** × ÷),
// parentheses, commas and the functions in mathFunctions.
//
// Postcondition: a nil error means the result is finite.
func (c *Calculator) Eval(ctx context.Context, expr string) (float64, error) {
	expr = strings.ToLower(replacer.Replace(strings.TrimSpace(expr)))
	if expr == "" || len(expr) > MaxExpressionLen || !allowedChars.MatchString(expr) {
		return 0, ErrInvalidExpression
	}
	for _, name := range identifier.FindAllString(expr, -1) {
		if !c.allowed[name] {
			return 0, fmt.Errorf("%w: unknown name %q", ErrInvalidExpression, name)
		}
	}

	L, cancel := NewSandboxedState(ctx, c.instLimit)
	defer cancel()
	defer L.Close()
	RegisterMath(L)

	if err := L.DoString("return (" + expr + ")"); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}
	n, ok := L.Get(-1).(lua.LNumber)
	if !ok {
		return 0, ErrInvalidExpression
	}
	v := float64(n)
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, ErrNotFinite
	}
	return v, nil
}
