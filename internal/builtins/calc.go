// ABOUTME: calculate tool: the four arithmetic operations on two numbers.
// ABOUTME: Division by zero and unknown operations are handler errors.

package builtins

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/2389/toolgate/internal/tools"
)

var errDivideByZero = errors.New("division by zero")

// CalcResult is the result of calculate.
type CalcResult struct {
	Num1      float64 `json:"num1"`
	Num2      float64 `json:"num2"`
	Operation string  `json:"operation"`
	Result    float64 `json:"result"`
}

func calculate(_ context.Context, args tools.Args) (any, error) {
	a, b := args.Number("num1"), args.Number("num2")
	op := strings.ToLower(strings.TrimSpace(args.String("operation")))

	var r float64
	switch op {
	case "add", "+":
		r = a + b
	case "subtract", "-":
		r = a - b
	case "multiply", "*":
		r = a * b
	case "divide", "/":
		if b == 0 {
			return nil, errDivideByZero
		}
		r = a / b
	default:
		return nil, fmt.Errorf("unsupported operation '%s' (want add, subtract, multiply, or divide)", op)
	}

	if math.IsInf(r, 0) || math.IsNaN(r) {
		return nil, fmt.Errorf("result of %s is not a finite number", op)
	}
	return CalcResult{Num1: a, Num2: b, Operation: op, Result: r}, nil
}
