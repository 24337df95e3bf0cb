package calculator

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate_ExactOutputs(t *testing.T) {
	tests := []struct {
		name    string
		command string
		want    string
	}{
		{"integer arithmetic", "2+3*4", "14"},
		{"parentheses", "(2+3)*4", "20"},
		{"implicit multiplication with parentheses", "2(3+4)", "14"},
		{"power operator", "2**10", "1024"},
		{"caret power", "2^10", "1024"},
		{"float rounding noise", "0.1+0.2", "0.3"},
		{"rational as float", "1/3", "0.333333333333333"},
		{"constant pi", "pi", "3.14159265358979"},
		{"log of E", "log(E)", "1"},
		{"free symbols simplified", "x**2 + 3", "x**2 + 3"},
		{"implicit multiplication with symbol", "2x", "2*x"},
		{"expansion cancels", "(x+1)**2 - x**2 - 2*x", "1"},
		{"pythagorean identity", "sin(x)^2 + cos(x)^2", "1"},
		{"derivative of a power", "diff(x**3, x)", "3*x**2"},
		{"product rule", "diff(exp(x)*x, x)", "x*exp(x) + exp(x)"},
		{"trig product rule", "diff(sin(x)*cos(x), x)", "cos(x)**2 - sin(x)**2"},
		{"second derivative by order", "diff(x**4, x, 2)", "12*x**2"},
		{"mixed partials", "diff(x**2*y, x, y)", "2*x"},
		{"single symbol derivative", "diff(x**2)", "2*x"},
		{"polynomial integral", "integrate(x**2 + 3*x, x)", "x**3/3 + 3*x**2/2"},
		{"reciprocal integral", "integrate(1/x, x)", "log(x)"},
		{"integration by parts", "integrate(x*exp(x), x)", "x*exp(x) - exp(x)"},
		{"substitution", "integrate(2*x*exp(x**2), x)", "exp(x**2)"},
		{"definite integral", "integrate(sin(x), x, 0, pi)", "2"},
		{"definite polynomial integral", "integrate(x**2, x, 0, 3)", "9"},
		{"run of letters splits into symbols", "xy + x", "x*y + x"},
		{"function name glued to its argument", "diff(sinx, x)", "cos(x)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.command))
		})
	}
}

func TestEvaluate_NumericWithinTolerance(t *testing.T) {
	tests := []struct {
		command string
		want    float64
	}{
		{"sin(pi/4)+cos(pi/4)", 1.4142135623730951},
		{"2**0.5", 1.4142135623730951},
		{"exp(1.5)", 4.4816890703380645},
		{"integrate(exp(x**2), x, 0, 1)", 1.4626517459071816},
		{"integrate(x**2, x, 0, 1.5)", 1.125},
		{"integrate(1/(1+x**2), x, 0, 1)", 0.7853981633974483},
		{"integrate(x**-0.5, x, 0, 1)", 2},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			res := EvaluateResult(tt.command)
			require.Equal(t, KindNumeric, res.Kind, res.Text)

			parsed, err := strconv.ParseFloat(res.Text, 64)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, parsed, 1e-9)
			assert.InDelta(t, tt.want, res.Value, 1e-9)
		})
	}
}

func TestEvaluate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		command string
		kind    Kind
		op      Operation
		prefix  string
	}{
		{"malformed operators", "2+*3", KindParseError, "", "❌ Could not parse expression"},
		{"empty input", "   ", KindParseError, "", "❌ Could not parse expression"},
		{"unknown function", "foo(x)", KindParseError, "", "❌ Could not parse expression"},
		{"unbalanced parenthesis", "(1+2", KindParseError, "", "❌ Could not parse expression"},
		{"nested calculus call", "sin(diff(x, x))", KindParseError, "", "❌ Could not parse expression"},
		{"trailing input after call", "diff(x, x) + 1", KindParseError, "", "❌ Could not parse expression"},
		{"unexpected character", "2 $ 3", KindParseError, "", "❌ Could not parse expression"},
		{"non-symbol variable", "diff(x**2, 2)", KindEvaluationError, OpDifferentiation, "❌ Differentiation error"},
		{"ambiguous variable", "diff(x*y)", KindEvaluationError, OpDifferentiation, "❌ Differentiation error"},
		{"wrong integrate arity", "integrate(x, x, 1)", KindEvaluationError, OpIntegration, "❌ Integration error"},
		{"no antiderivative", "integrate(exp(x**2), x)", KindEvaluationError, OpIntegration, "❌ Integration error"},
		{"divergent integral", "integrate(1/x, x, 0, 1)", KindEvaluationError, OpIntegration, "❌ Integration error"},
		{"pole inside the interval", "integrate(x**-2, x, -1, 1)", KindEvaluationError, OpIntegration, "❌ Integration error"},
		{"pole off the grid", "integrate(1/x**2, x, -1, 2)", KindEvaluationError, OpIntegration, "❌ Integration error"},
		{"odd pole inside the interval", "integrate(1/sin(x), x, -1, 1)", KindEvaluationError, OpIntegration, "❌ Integration error"},
		{"undefined integrand", "integrate(1/0, x)", KindEvaluationError, OpIntegration, "❌ Integration error"},
		{"undefined derivative", "diff(x/0, x)", KindEvaluationError, OpDifferentiation, "❌ Differentiation error"},
		{"division by zero", "1/0", KindEvaluationError, OpEvaluation, "❌ Evaluation error"},
		{"zero over zero", "0/0", KindEvaluationError, OpEvaluation, "❌ Evaluation error"},
		{"zero times infinity", "0*(1/0)", KindEvaluationError, OpEvaluation, "❌ Evaluation error"},
		{"infinity minus infinity", "(1/0)-(1/0)", KindEvaluationError, OpEvaluation, "❌ Evaluation error"},
		{"log of zero times zero", "log(0)*0", KindEvaluationError, OpEvaluation, "❌ Evaluation error"},
		{"symbol times zero over zero", "x*0/0", KindEvaluationError, OpEvaluation, "❌ Evaluation error"},
		{"no antiderivative outside supported functions", "integrate(1/(1+x**2), x)", KindEvaluationError, OpIntegration, "❌ Integration error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var res Result
			require.NotPanics(t, func() { res = EvaluateResult(tt.command) })
			assert.Equal(t, tt.kind, res.Kind)
			assert.Equal(t, tt.op, res.Operation)
			assert.True(t, res.Failed())
			assert.True(t, strings.HasPrefix(res.Text, tt.prefix), res.Text)
			assert.Contains(t, res.Text, FailureMarker)
		})
	}
}

func TestEvaluate_UndefinedValuesAreNamed(t *testing.T) {
	assert.Equal(t, "❌ Evaluation error: result is not finite: division by zero (zoo)", Evaluate("1/0"))
	assert.Equal(t, "❌ Evaluation error: result is undefined: indeterminate form (nan)", Evaluate("0/0"))
	assert.Contains(t, Evaluate("integrate(x**-2, x, -1, 1)"), "does not converge")
}

func TestEvaluate_ParseErrorMentionsInput(t *testing.T) {
	out := Evaluate("2+*3")
	assert.Contains(t, out, `"2+*3"`)
	assert.Contains(t, out, "column 3")
}

func TestEvaluate_Idempotent(t *testing.T) {
	commands := []string{"2+3*4", "diff(sin(x)*cos(x), x)", "integrate(x*exp(x), x)", "2+*3"}
	for _, c := range commands {
		assert.Equal(t, Evaluate(c), Evaluate(c), c)
	}
}

func TestEvaluate_RejectsOversizedInput(t *testing.T) {
	res := EvaluateResult(strings.Repeat("1+", MaxInputLength))
	assert.Equal(t, KindParseError, res.Kind)

	res = EvaluateResult(strings.Repeat("(", 400) + "1" + strings.Repeat(")", 400))
	assert.Equal(t, KindParseError, res.Kind)
	assert.Contains(t, res.Text, "nested too deeply")
}

func TestEvaluate_HugePowerStaysBounded(t *testing.T) {
	var res Result
	require.NotPanics(t, func() { res = EvaluateResult("2**10**10") })
	assert.Equal(t, KindSymbolic, res.Kind)
	assert.Equal(t, "2**10000000000", res.Text)
}
