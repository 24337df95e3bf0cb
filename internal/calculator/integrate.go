package calculator

import (
	"errors"
	"fmt"
)

const maxIntegrateDepth = 24

// ErrNoAntiderivative is returned when no rule produces a closed form.
var ErrNoAntiderivative = errors.New("no closed-form antiderivative found")

// Integrate returns an antiderivative of e with respect to v (without the
// constant of integration).
func Integrate(e Expr, v string) (Expr, error) {
	r, ok := integrate(e, v, 0)
	if !ok {
		return nil, noAntiderivative(e, v)
	}
	return Simplify(r), nil
}

// DefiniteIntegral integrates e over [lower, upper]. When no antiderivative
// exists and both bounds are numeric the value is computed by quadrature.
// Numeric intervals are checked for poles first, since F(upper) - F(lower)
// is only the integral when the integrand is finite in between.
func DefiniteIntegral(e Expr, v string, lower, upper Expr) (Expr, error) {
	if u, ok := e.(*Undefined); ok {
		return nil, u.Err()
	}
	a, errA := Evalf(lower)
	b, errB := Evalf(upper)
	numeric := errA == nil && errB == nil
	if numeric && onlySymbol(e, v) {
		if err := checkIntegrable(e, v, a, b); err != nil {
			return nil, fmt.Errorf("integral does not converge: %w", err)
		}
	}

	if F, err := Integrate(e, v); err == nil {
		r := Simplify(AddOf(Subs(F, v, upper), MulOf(intNum(-1), Subs(F, v, lower))))
		if len(FreeSymbols(r)) == 0 {
			if _, err := Evalf(r); err != nil {
				return nil, fmt.Errorf("integral does not converge: %w", err)
			}
		}
		return r, nil
	}

	if !onlySymbol(e, v) {
		return nil, noAntiderivative(e, v)
	}
	if errA != nil {
		return nil, fmt.Errorf("lower bound %s is not numeric: %w", lower, errA)
	}
	if errB != nil {
		return nil, fmt.Errorf("upper bound %s is not numeric: %w", upper, errB)
	}
	val, err := quadrature(func(x float64) (float64, error) {
		return evalFloat(e, map[string]float64{v: x})
	}, a, b)
	if err != nil {
		return nil, fmt.Errorf("integral does not converge: %w", err)
	}
	return floatNum(val), nil
}

// noAntiderivative names the supported functions, since results such as
// atan(x) for 1/(x**2 + 1) cannot be written with them.
func noAntiderivative(e Expr, v string) error {
	return fmt.Errorf("%w for %s with respect to %s in terms of %s, %s, %s and %s",
		ErrNoAntiderivative, e, v, FuncSin, FuncCos, FuncExp, FuncLog)
}

// onlySymbol reports whether v is the only free symbol of e, if any.
func onlySymbol(e Expr, v string) bool {
	free := FreeSymbols(e)
	return len(free) == 0 || (len(free) == 1 && free[0] == v)
}

func integrate(e Expr, v string, depth int) (Expr, bool) {
	if depth > maxIntegrateDepth {
		return nil, false
	}
	if freeOf(e, v) {
		return MulOf(e, Symbol(v)), true
	}
	switch t := e.(type) {
	case *Sym:
		return MulOf(ratNum(1, 2), PowOf(t, intNum(2))), true
	case *Add:
		parts := make([]Expr, len(t.terms))
		for i, s := range t.terms {
			r, ok := integrate(s, v, depth+1)
			if !ok {
				return integrateExpanded(e, v, depth)
			}
			parts[i] = r
		}
		return AddOf(parts...), true
	case *Mul:
		var consts, deps []Expr
		for _, f := range t.factors {
			if freeOf(f, v) {
				consts = append(consts, f)
			} else {
				deps = append(deps, f)
			}
		}
		if len(consts) > 0 {
			r, ok := integrate(MulOf(deps...), v, depth+1)
			if !ok {
				return nil, false
			}
			return MulOf(append(consts, r)...), true
		}
		return integrateProduct(t, v, depth)
	case *Pow:
		return integratePow(t, v, depth)
	case *Func:
		return integrateFunc(t, v, depth)
	}
	return nil, false
}

func integrateExpanded(e Expr, v string, depth int) (Expr, bool) {
	ex := Expand(e)
	if Equal(ex, e) {
		return nil, false
	}
	return integrate(ex, v, depth+1)
}

// linear reports a and b when u == a*v + b with a, b free of v.
func linear(u Expr, v string) (a, b Expr, ok bool) {
	a = Diff(u, v)
	if isZero(a) || !freeOf(a, v) {
		return nil, nil, false
	}
	b = Expand(AddOf(u, MulOf(intNum(-1), a, Symbol(v))))
	if !freeOf(b, v) {
		return nil, nil, false
	}
	return a, b, true
}

func integratePow(p *Pow, v string, depth int) (Expr, bool) {
	switch {
	case freeOf(p.exp, v):
		if a, _, ok := linear(p.base, v); ok {
			if n, ok := p.exp.(*Num); ok && n.isMinusOne() {
				return MulOf(PowOf(a, intNum(-1)), FuncOf(FuncLog, p.base)), true
			}
			n1 := AddOf(p.exp, intNum(1))
			return MulOf(PowOf(p.base, n1), PowOf(MulOf(a, n1), intNum(-1))), true
		}
		if fn, ok := p.base.(*Func); ok {
			if n, ok := p.exp.(*Num); ok && !n.inexact && n.val.Cmp(intNum(2).val) == 0 {
				if r, ok := integrateTrigSquare(fn, v, depth); ok {
					return r, true
				}
			}
		}
		if r, ok := integrateExpanded(p, v, depth); ok {
			return r, true
		}
	case freeOf(p.base, v):
		if a, _, ok := linear(p.exp, v); ok {
			return MulOf(p, PowOf(MulOf(a, FuncOf(FuncLog, p.base)), intNum(-1))), true
		}
	}
	return integrateBySubstitution([]Expr{p}, v, depth)
}

// integrateTrigSquare uses sin(u)**2 = (1 - cos(2u))/2 and
// cos(u)**2 = (1 + cos(2u))/2 for linear u.
func integrateTrigSquare(fn *Func, v string, depth int) (Expr, bool) {
	if fn.name != FuncSin && fn.name != FuncCos {
		return nil, false
	}
	if _, _, ok := linear(fn.arg, v); !ok {
		return nil, false
	}
	sign := intNum(-1)
	if fn.name == FuncCos {
		sign = intNum(1)
	}
	half := ratNum(1, 2)
	rewritten := AddOf(half, MulOf(sign, half, FuncOf(FuncCos, MulOf(intNum(2), fn.arg))))
	return integrate(rewritten, v, depth+1)
}

func integrateFunc(f *Func, v string, depth int) (Expr, bool) {
	if a, _, ok := linear(f.arg, v); ok {
		inv := PowOf(a, intNum(-1))
		switch f.name {
		case FuncSin:
			return MulOf(intNum(-1), inv, FuncOf(FuncCos, f.arg)), true
		case FuncCos:
			return MulOf(inv, FuncOf(FuncSin, f.arg)), true
		case FuncExp:
			return MulOf(inv, f), true
		case FuncLog:
			return MulOf(inv, AddOf(MulOf(f.arg, f), MulOf(intNum(-1), f.arg))), true
		}
	}
	return integrateBySubstitution([]Expr{f}, v, depth)
}

// integrateProduct handles products whose factors all depend on v.
func integrateProduct(m *Mul, v string, depth int) (Expr, bool) {
	if r, ok := integrateByParts(m, v, depth); ok {
		return r, true
	}
	if r, ok := integrateBySubstitution(m.factors, v, depth); ok {
		return r, true
	}
	return integrateExpanded(m, v, depth)
}

// monomialDegree reports n when e is v or v**n for a non-negative integer n.
func monomialDegree(e Expr, v string) (int64, bool) {
	switch t := e.(type) {
	case *Sym:
		return 1, t.name == v
	case *Pow:
		s, ok := t.base.(*Sym)
		if !ok || s.name != v {
			return 0, false
		}
		n, ok := t.exp.(*Num)
		if !ok || n.inexact || !n.isInteger() || n.sign() <= 0 || !n.val.Num().IsInt64() {
			return 0, false
		}
		return n.val.Num().Int64(), true
	}
	return 0, false
}

// integrateByParts covers v**n * g for g in sin, cos, exp of a linear
// argument or a**(linear), and v**k * log(linear).
func integrateByParts(m *Mul, v string, depth int) (Expr, bool) {
	if len(m.factors) != 2 {
		return nil, false
	}
	for i := 0; i < 2; i++ {
		poly, other := m.factors[i], m.factors[1-i]

		if fn, ok := other.(*Func); ok && fn.name == FuncLog {
			if _, _, ok := linear(fn.arg, v); !ok {
				continue
			}
			// u = log(...), dv = poly
			V, ok := integrate(poly, v, depth+1)
			if !ok {
				continue
			}
			rest, ok := integrate(MulOf(V, Diff(fn, v)), v, depth+1)
			if !ok {
				continue
			}
			return AddOf(MulOf(V, fn), MulOf(intNum(-1), rest)), true
		}

		n, ok := monomialDegree(poly, v)
		if !ok || n > 8 {
			continue
		}
		if !partsCompanion(other, v) {
			continue
		}
		G, ok := integrate(other, v, depth+1)
		if !ok {
			continue
		}
		rest, ok := integrate(MulOf(Diff(poly, v), G), v, depth+1)
		if !ok {
			continue
		}
		return AddOf(MulOf(poly, G), MulOf(intNum(-1), rest)), true
	}
	return nil, false
}

func partsCompanion(e Expr, v string) bool {
	switch t := e.(type) {
	case *Func:
		if t.name == FuncLog {
			return false
		}
		_, _, ok := linear(t.arg, v)
		return ok
	case *Pow:
		if !freeOf(t.base, v) {
			return false
		}
		_, _, ok := linear(t.exp, v)
		return ok
	}
	return false
}

// integrateBySubstitution looks for an inner function u whose derivative
// divides the rest of the integrand, so that the integral becomes F(u) for
// F the antiderivative of the outer function.
func integrateBySubstitution(factors []Expr, v string, depth int) (Expr, bool) {
	if depth >= maxIntegrateDepth {
		return nil, false
	}
	placeholder := fmt.Sprintf("_u%d", depth)
	t := Symbol(placeholder)

	for i, f := range factors {
		for _, c := range substitutionCandidates(f, v, t) {
			if freeOf(c.inner, v) {
				continue
			}
			if s, ok := c.inner.(*Sym); ok && s.name == v {
				continue
			}
			du := Diff(c.inner, v)
			if isZero(du) {
				continue
			}
			rest := make([]Expr, 0, len(factors))
			rest = append(rest, factors[:i]...)
			rest = append(rest, factors[i+1:]...)
			rest = append(rest, PowOf(du, intNum(-1)))
			ratio := Simplify(MulOf(rest...))
			if !freeOf(ratio, v) {
				continue
			}
			F, ok := integrate(c.outer, placeholder, depth+1)
			if !ok {
				continue
			}
			return MulOf(ratio, Subs(F, placeholder, c.inner)), true
		}
	}
	return nil, false
}

type substitution struct {
	inner Expr // u(v)
	outer Expr // the factor written in terms of the placeholder
}

func substitutionCandidates(f Expr, v string, t *Sym) []substitution {
	var out []substitution
	switch x := f.(type) {
	case *Pow:
		if freeOf(x.exp, v) {
			out = append(out, substitution{inner: x.base, outer: PowOf(t, x.exp)})
		}
	case *Func:
		out = append(out, substitution{inner: x.arg, outer: FuncOf(x.name, t)})
	}
	return append(out, substitution{inner: f, outer: t})
}
