package calculator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustExpr(t *testing.T, s string) Expr {
	t.Helper()
	cmd, err := Parse(s)
	require.NoError(t, err)
	p, ok := cmd.(*PlainExpr)
	require.True(t, ok, "expected a plain expression for %q", s)
	return p.Expr
}

// assertSameFunction compares two expressions in x at a few sample points.
func assertSameFunction(t *testing.T, want, got Expr) {
	t.Helper()
	for _, x := range []float64{0.3, 0.7, 1.1, 1.9, 2.6} {
		env := map[string]float64{"x": x}
		w, err := evalFloat(want, env)
		require.NoError(t, err)
		g, err := evalFloat(got, env)
		require.NoError(t, err, "evaluating %s", got)
		assert.InDelta(t, w, g, 1e-9, "at x=%v: want %s, got %s", x, want, got)
	}
}

func TestDiff_MatchesKnownDerivatives(t *testing.T) {
	tests := []struct {
		f, df string
	}{
		{"exp(x)*x", "x*exp(x) + exp(x)"},
		{"sin(x)**3", "3*sin(x)**2*cos(x)"},
		{"log(x**2 + 1)", "2*x/(x**2 + 1)"},
		{"x**x", "x**x*(log(x) + 1)"},
		{"2**x", "2**x*log(2)"},
		{"cos(3*x + 1)", "-3*sin(3*x + 1)"},
		{"1/x", "-1/x**2"},
	}
	for _, tt := range tests {
		t.Run(tt.f, func(t *testing.T) {
			got := Diff(mustExpr(t, tt.f), "x")
			assertSameFunction(t, mustExpr(t, tt.df), got)
		})
	}
}

func TestIntegrate_DerivativeRecoversIntegrand(t *testing.T) {
	integrands := []string{
		"x**2 + 3*x",
		"1/x",
		"sin(x)",
		"cos(2*x)",
		"exp(3*x)",
		"x*exp(x)",
		"x**2*sin(x)",
		"log(x)",
		"x*log(x)",
		"sin(x)**2",
		"cos(x)**2",
		"2*x*exp(x**2)",
		"cos(x)*exp(sin(x))",
		"1/(2*x + 1)",
		"(x + 1)**3",
		"2**x",
		"x**0.5",
	}
	for _, s := range integrands {
		t.Run(s, func(t *testing.T) {
			f := mustExpr(t, s)
			F, err := Integrate(f, "x")
			require.NoError(t, err)
			assertSameFunction(t, f, Diff(F, "x"))
		})
	}
}

func TestIntegrate_NoClosedForm(t *testing.T) {
	_, err := Integrate(mustExpr(t, "exp(x**2)"), "x")
	require.ErrorIs(t, err, ErrNoAntiderivative)

	_, err = Integrate(mustExpr(t, "1/(1+x**2)"), "x")
	require.ErrorIs(t, err, ErrNoAntiderivative)
	assert.Contains(t, err.Error(), "in terms of sin, cos, exp and log")
}

func TestDefiniteIntegral_PolesDiverge(t *testing.T) {
	tests := []struct {
		f            string
		lower, upper Expr
	}{
		{"x**-2", intNum(-1), intNum(1)},
		{"1/x**2", intNum(-1), intNum(2)},
		{"1/sin(x)", intNum(-1), intNum(1)},
		{"1/x", intNum(0), intNum(1)},
		{"1/x", intNum(1), intNum(-1)},
		{"1/(x**2 - 2*x + 1)", intNum(0), intNum(3)},
		{"1/log(x)", ratNum(1, 2), intNum(2)},
		{"exp(1/x)", intNum(-1), intNum(1)},
	}
	for _, tt := range tests {
		t.Run(tt.f, func(t *testing.T) {
			_, err := DefiniteIntegral(mustExpr(t, tt.f), "x", tt.lower, tt.upper)
			require.ErrorIs(t, err, ErrDivergent)
			assert.Contains(t, err.Error(), "integral does not converge")
		})
	}
}

func TestDefiniteIntegral_IntegrableSingularities(t *testing.T) {
	tests := []struct {
		f    string
		want float64
	}{
		// removable point at 0
		{"sin(x)/x", 1.8921661407343660},
		// endpoint singularity of order 1/2
		{"x**-0.5", 2},
		{"1/(x**2 + 1)", 1.5707963267948966},
	}
	for _, tt := range tests {
		t.Run(tt.f, func(t *testing.T) {
			lower := intNum(-1)
			if tt.f == "x**-0.5" {
				lower = intNum(0)
			}
			out, err := DefiniteIntegral(mustExpr(t, tt.f), "x", lower, intNum(1))
			require.NoError(t, err)
			v, err := Evalf(out)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, v, 1e-9)
		})
	}
}

func TestUndefinedAbsorbs(t *testing.T) {
	zoo := PowOf(intNum(0), intNum(-1))
	assert.Same(t, ComplexInfinity, zoo)
	assert.Same(t, ComplexInfinity, FuncOf(FuncLog, intNum(0)))
	assert.Same(t, ComplexInfinity, MulOf(Symbol("x"), zoo))
	assert.Same(t, ComplexInfinity, AddOf(intNum(3), zoo))
	assert.Same(t, NaN, MulOf(intNum(0), zoo))
	assert.Same(t, NaN, AddOf(zoo, MulOf(intNum(-1), zoo)))
	assert.Same(t, NaN, FuncOf(FuncSin, zoo))
	assert.True(t, Equal(intNum(0), PowOf(zoo, intNum(-1))))

	_, err := Evalf(zoo)
	assert.ErrorIs(t, err, ErrNotFinite)
	_, err = Evalf(NaN)
	assert.ErrorIs(t, err, ErrUndefined)
}

func TestDefiniteIntegral_QuadratureFallback(t *testing.T) {
	out, err := DefiniteIntegral(mustExpr(t, "sin(x**2)"), "x", intNum(0), intNum(1))
	require.NoError(t, err)
	v, err := Evalf(out)
	require.NoError(t, err)
	assert.InDelta(t, 0.3102683017233811, v, 1e-9)
}

func TestDefiniteIntegral_SymbolicBoundsNeedAntiderivative(t *testing.T) {
	_, err := DefiniteIntegral(mustExpr(t, "exp(x**2)"), "x", intNum(0), Symbol("a"))
	require.Error(t, err)

	out, err := DefiniteIntegral(mustExpr(t, "2*x"), "x", intNum(0), Symbol("a"))
	require.NoError(t, err)
	assert.Equal(t, "a**2", out.String())
}

func TestSimplify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"(x+1)**2 - x**2", "2*x + 1"},
		{"3*sin(y)**2 + 3*cos(y)**2", "3"},
		{"x*(x+1) - x**2", "x"},
		{"(x+y)**2 - 2*x*y", "x**2 + y**2"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Simplify(mustExpr(t, tt.in)).String())
		})
	}
}

func TestSubsAndFreeSymbols(t *testing.T) {
	e := mustExpr(t, "x**2*y + z")
	assert.Equal(t, []string{"x", "y", "z"}, FreeSymbols(e))

	out := Subs(e, "x", intNum(3))
	assert.Equal(t, []string{"y", "z"}, FreeSymbols(out))
	assert.True(t, Equal(out, mustExpr(t, "9*y + z")))
}
