package calculator

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// FailureMarker prefixes every failed evaluation so callers (and the model
// reading tool output) can tell failures from results.
const FailureMarker = "❌"

const maxDiffOrder = 32

// Kind is the variant of a Result.
type Kind int

const (
	KindNumeric Kind = iota + 1
	KindSymbolic
	KindParseError
	KindEvaluationError
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindSymbolic:
		return "symbolic"
	case KindParseError:
		return "parse_error"
	case KindEvaluationError:
		return "evaluation_error"
	}
	return "unknown"
}

// Operation tags an evaluation failure.
type Operation string

const (
	OpDifferentiation Operation = "differentiation"
	OpIntegration     Operation = "integration"
	OpEvaluation      Operation = "evaluation"
)

// Result is the outcome of evaluating a command. Text is always populated
// and human readable; Value is set for KindNumeric, Operation for
// KindEvaluationError.
type Result struct {
	Kind      Kind
	Text      string
	Value     float64
	Operation Operation
}

// Failed reports whether the result is one of the error variants.
func (r Result) Failed() bool {
	return r.Kind == KindParseError || r.Kind == KindEvaluationError
}

func (r Result) String() string { return r.Text }

// Evaluate parses and evaluates a command and renders the result as text.
// It never panics and never returns an error; failures are rendered with
// FailureMarker.
func Evaluate(command string) string {
	return EvaluateResult(command).Text
}

// EvaluateResult is Evaluate with the structured result.
func EvaluateResult(command string) (res Result) {
	op := OpEvaluation
	defer func() {
		if r := recover(); r != nil {
			res = evaluationFailure(op, fmt.Errorf("internal error: %v", r))
		}
	}()

	cmd, err := Parse(command)
	if err != nil {
		return parseFailure(err)
	}

	switch c := cmd.(type) {
	case *DiffCall:
		op = OpDifferentiation
		return evalDiff(c)
	case *IntegrateCall:
		op = OpIntegration
		return evalIntegrate(c)
	case *PlainExpr:
		return evalPlain(c.Expr)
	default:
		return evaluationFailure(op, fmt.Errorf("unsupported command %T", cmd))
	}
}

func parseFailure(err error) Result {
	return Result{
		Kind: KindParseError,
		Text: fmt.Sprintf("%s Could not parse expression: %v", FailureMarker, err),
	}
}

func evaluationFailure(op Operation, err error) Result {
	label := string(op)
	switch op {
	case OpDifferentiation:
		label = "Differentiation"
	case OpIntegration:
		label = "Integration"
	case OpEvaluation:
		label = "Evaluation"
	}
	return Result{
		Kind:      KindEvaluationError,
		Text:      fmt.Sprintf("%s %s error: %v", FailureMarker, label, err),
		Operation: op,
	}
}

// exprResult renders a computed expression; bare numbers become numeric
// results and undefined values fail the operation.
func exprResult(op Operation, e Expr) Result {
	if u, ok := e.(*Undefined); ok {
		return evaluationFailure(op, u.Err())
	}
	if n, ok := e.(*Num); ok {
		return Result{Kind: KindNumeric, Text: n.String(), Value: n.float()}
	}
	return Result{Kind: KindSymbolic, Text: e.String()}
}

func evalPlain(e Expr) Result {
	if u, ok := e.(*Undefined); ok {
		return evaluationFailure(OpEvaluation, u.Err())
	}
	if len(FreeSymbols(e)) > 0 {
		return Result{Kind: KindSymbolic, Text: safeSimplify(e).String()}
	}
	if n, ok := e.(*Num); ok && !n.inexact && n.isInteger() && math.Abs(n.float()) < 1e15 {
		return Result{Kind: KindNumeric, Text: n.String(), Value: n.float()}
	}
	v, err := Evalf(e)
	if err != nil {
		return Result{Kind: KindSymbolic, Text: e.String()}
	}
	return Result{Kind: KindNumeric, Text: formatFloat(v), Value: v}
}

// safeSimplify falls back to the unsimplified form if simplification panics.
func safeSimplify(e Expr) (out Expr) {
	defer func() {
		if recover() != nil {
			out = e
		}
	}()
	return Simplify(e)
}

func evalDiff(c *DiffCall) Result {
	vars, err := diffVariables(c)
	if err != nil {
		return evaluationFailure(OpDifferentiation, err)
	}
	out := c.Expr
	for _, v := range vars {
		out = Diff(out, v)
	}
	return exprResult(OpDifferentiation, safeSimplify(out))
}

// diffVariables expands diff arguments into the ordered list of variables,
// honouring orders such as diff(f, x, 2).
func diffVariables(c *DiffCall) ([]string, error) {
	if len(c.Args) == 0 {
		v, err := soleSymbol(c.Expr)
		if err != nil {
			return nil, err
		}
		return []string{v}, nil
	}
	var vars []string
	for _, a := range c.Args {
		switch t := a.(type) {
		case *Sym:
			vars = append(vars, t.name)
		case *Num:
			if len(vars) == 0 || t.inexact || !t.isInteger() || t.sign() < 0 {
				return nil, fmt.Errorf("invalid derivative order %s", t)
			}
			n := t.val.Num().Int64()
			if n > maxDiffOrder {
				return nil, fmt.Errorf("derivative order %d exceeds %d", n, maxDiffOrder)
			}
			last := vars[len(vars)-1]
			vars = vars[:len(vars)-1]
			for i := int64(0); i < n; i++ {
				vars = append(vars, last)
			}
		default:
			return nil, fmt.Errorf("cannot differentiate with respect to %s: not a symbol", a)
		}
	}
	return vars, nil
}

func soleSymbol(e Expr) (string, error) {
	free := FreeSymbols(e)
	switch len(free) {
	case 1:
		return free[0], nil
	case 0:
		return "", errors.New("expression has no free symbols; specify a variable")
	}
	return "", fmt.Errorf("expression has several free symbols (%s); specify a variable", strings.Join(free, ", "))
}

func evalIntegrate(c *IntegrateCall) Result {
	var v string
	switch len(c.Args) {
	case 0:
		s, err := soleSymbol(c.Expr)
		if err != nil {
			return evaluationFailure(OpIntegration, err)
		}
		v = s
	case 1, 3:
		s, ok := c.Args[0].(*Sym)
		if !ok {
			return evaluationFailure(OpIntegration, fmt.Errorf("cannot integrate with respect to %s: not a symbol", c.Args[0]))
		}
		v = s.name
	default:
		return evaluationFailure(OpIntegration, fmt.Errorf("integrate expects 2 or 4 arguments, got %d", len(c.Args)+1))
	}

	if len(c.Args) == 3 {
		out, err := DefiniteIntegral(c.Expr, v, c.Args[1], c.Args[2])
		if err != nil {
			return evaluationFailure(OpIntegration, err)
		}
		return exprResult(OpIntegration, out)
	}
	out, err := Integrate(c.Expr, v)
	if err != nil {
		return evaluationFailure(OpIntegration, err)
	}
	return exprResult(OpIntegration, out)
}
