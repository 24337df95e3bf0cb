package calculator

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrNotReal is returned when a numeric evaluation leaves the real numbers.
	ErrNotReal = errors.New("result is not a real number")
	// ErrNotFinite is returned for infinities such as 1/0.
	ErrNotFinite = errors.New("result is not finite")
	// ErrUndefined is returned for indeterminate forms such as 0/0.
	ErrUndefined = errors.New("result is undefined")
)

// Evalf evaluates an expression without free symbols to a float64.
func Evalf(e Expr) (float64, error) {
	return evalFloat(e, nil)
}

func evalFloat(e Expr, env map[string]float64) (float64, error) {
	var out float64
	switch t := e.(type) {
	case *Num:
		out = t.float()
	case *Const:
		out = t.value()
	case *Undefined:
		return 0, t.Err()
	case *Sym:
		v, ok := env[t.name]
		if !ok {
			return 0, fmt.Errorf("cannot evaluate free symbol %s numerically", t.name)
		}
		out = v
	case *Add:
		for _, s := range t.terms {
			v, err := evalFloat(s, env)
			if err != nil {
				return 0, err
			}
			out += v
		}
	case *Mul:
		out = 1
		for _, f := range t.factors {
			v, err := evalFloat(f, env)
			if err != nil {
				return 0, err
			}
			out *= v
		}
	case *Pow:
		b, err := evalFloat(t.base, env)
		if err != nil {
			return 0, err
		}
		x, err := evalFloat(t.exp, env)
		if err != nil {
			return 0, err
		}
		out = math.Pow(b, x)
	case *Func:
		a, err := evalFloat(t.arg, env)
		if err != nil {
			return 0, err
		}
		v, err := applyFunc(t.name, a)
		if err != nil {
			return 0, err
		}
		out = v
	default:
		return 0, fmt.Errorf("unsupported expression %T", e)
	}
	return finite(out)
}

func finite(v float64) (float64, error) {
	switch {
	case math.IsNaN(v):
		return 0, ErrNotReal
	case math.IsInf(v, 0):
		return 0, ErrNotFinite
	}
	return v, nil
}

func applyFunc(name string, x float64) (float64, error) {
	switch name {
	case FuncSin:
		return finite(math.Sin(x))
	case FuncCos:
		return finite(math.Cos(x))
	case FuncExp:
		return finite(math.Exp(x))
	case FuncLog:
		if x <= 0 {
			return 0, fmt.Errorf("log is undefined for %s", formatFloat(x))
		}
		return finite(math.Log(x))
	}
	return 0, fmt.Errorf("unknown function %s", name)
}

// 10-point Gauss-Legendre rule on [-1, 1].
var (
	glNodes = [...]float64{
		-0.9739065285171717, -0.8650633666889845, -0.6794095682990244,
		-0.4333953941292472, -0.1488743389816312, 0.1488743389816312,
		0.4333953941292472, 0.6794095682990244, 0.8650633666889845,
		0.9739065285171717,
	}
	glWeights = [...]float64{
		0.0666713443086881, 0.1494513491505806, 0.2190863625159820,
		0.2692667193099963, 0.2955242247147529, 0.2955242247147529,
		0.2692667193099963, 0.2190863625159820, 0.1494513491505806,
		0.0666713443086881,
	}
)

const (
	quadTolerance = 1e-10
	quadMaxDepth  = 24
	quadMaxPanels = 4096
)

var errNoConvergence = errors.New("numerical integration did not converge")

// quadrature integrates f over [a, b] with an adaptive Gauss-Legendre rule.
// The rule never samples the endpoints, so integrable endpoint singularities
// are tolerated.
func quadrature(f func(float64) (float64, error), a, b float64) (float64, error) {
	if a == b {
		return 0, nil
	}
	q := &quad{f: f}
	whole, err := q.panel(a, b)
	if err != nil {
		return 0, err
	}
	return q.adapt(a, b, whole, 0)
}

type quad struct {
	f      func(float64) (float64, error)
	panels int
}

func (q *quad) adapt(a, b, whole float64, depth int) (float64, error) {
	mid := (a + b) / 2
	left, err := q.panel(a, mid)
	if err != nil {
		return 0, err
	}
	right, err := q.panel(mid, b)
	if err != nil {
		return 0, err
	}
	sum := left + right
	if math.Abs(sum-whole) <= quadTolerance*math.Max(1, math.Abs(sum)) {
		return sum, nil
	}
	if depth >= quadMaxDepth || q.panels >= quadMaxPanels {
		return 0, errNoConvergence
	}
	l, err := q.adapt(a, mid, left, depth+1)
	if err != nil {
		return 0, err
	}
	r, err := q.adapt(mid, b, right, depth+1)
	if err != nil {
		return 0, err
	}
	return l + r, nil
}

func (q *quad) panel(a, b float64) (float64, error) {
	q.panels++
	mid, half := (a+b)/2, (b-a)/2
	sum := 0.0
	for i, t := range glNodes {
		v, err := q.f(mid + half*t)
		if err != nil {
			return 0, err
		}
		sum += glWeights[i] * v
	}
	return finite(half * sum)
}

// ================ singularities ================

// ErrDivergent is returned when the integrand has a pole of order one or more
// on the interval.
var ErrDivergent = errors.New("integrand has a non-integrable singularity")

const (
	scanPanels     = 2048
	rootIterations = 200
	// a pole of order p grows like |x-c|**-p; p >= 1 is not integrable
	poleOrderLimit = 0.98
)

// checkIntegrable looks for poles of e on [a, b]. Candidates are the zeros of
// the bases of negative powers; each one is confirmed by measuring how fast
// the integrand grows next to it, so removable points such as sin(x)/x at 0
// pass.
func checkIntegrable(e Expr, v string, a, b float64) error {
	if a > b {
		a, b = b, a
	}
	if a == b {
		return nil
	}
	f := func(x float64) (float64, error) {
		return evalFloat(e, map[string]float64{v: x})
	}
	for _, den := range denominators(e, v) {
		g := func(x float64) (float64, bool) {
			y, err := evalFloat(den, map[string]float64{v: x})
			return y, err == nil
		}
		for _, c := range roots(g, a, b) {
			if poleOrder(f, c, a, b) >= poleOrderLimit {
				return fmt.Errorf("%w at %s = %s", ErrDivergent, v, formatFloat(c))
			}
		}
	}
	return nil
}

// denominators returns the distinct bases raised to a negative power that
// depend on v.
func denominators(e Expr, v string) []Expr {
	seen := map[string]struct{}{}
	var out []Expr
	var walk func(Expr)
	walk = func(e Expr) {
		switch t := e.(type) {
		case *Add:
			for _, s := range t.terms {
				walk(s)
			}
		case *Mul:
			for _, f := range t.factors {
				walk(f)
			}
		case *Pow:
			if n, ok := t.exp.(*Num); ok && n.sign() < 0 && !freeOf(t.base, v) {
				if _, dup := seen[t.base.key()]; !dup {
					seen[t.base.key()] = struct{}{}
					out = append(out, t.base)
				}
			}
			walk(t.base)
			walk(t.exp)
		case *Func:
			walk(t.arg)
		}
	}
	walk(e)
	return out
}

// roots locates the zeros of g on [a, b]: exact grid hits, sign changes
// refined by bisection, and touching zeros (even multiplicity) refined by
// golden-section search on |g|.
func roots(g func(float64) (float64, bool), a, b float64) []float64 {
	xs := make([]float64, scanPanels+1)
	ys := make([]float64, scanPanels+1)
	oks := make([]bool, scanPanels+1)
	scale := 0.0
	for i := range xs {
		xs[i] = a + (b-a)*float64(i)/scanPanels
		ys[i], oks[i] = g(xs[i])
		if oks[i] {
			scale = math.Max(scale, math.Abs(ys[i]))
		}
	}

	var out []float64
	add := func(c float64) {
		for _, r := range out {
			if math.Abs(r-c) <= 1e-9*math.Max(1, math.Abs(c)) {
				return
			}
		}
		out = append(out, c)
	}

	for i := range xs {
		if oks[i] && ys[i] == 0 {
			add(xs[i])
		}
		if i == len(xs)-1 || !oks[i] || !oks[i+1] {
			continue
		}
		if ys[i]*ys[i+1] < 0 {
			add(bisect(g, xs[i], xs[i+1], ys[i]))
		}
		if i > 0 && oks[i-1] && ys[i] != 0 &&
			math.Abs(ys[i]) <= math.Abs(ys[i-1]) && math.Abs(ys[i]) <= math.Abs(ys[i+1]) &&
			ys[i-1]*ys[i] > 0 && ys[i]*ys[i+1] > 0 {
			if c, ok := touchingZero(g, xs[i-1], xs[i+1], scale); ok {
				add(c)
			}
		}
	}
	return out
}

func bisect(g func(float64) (float64, bool), lo, hi, ylo float64) float64 {
	for i := 0; i < rootIterations && hi-lo > 0; i++ {
		mid := lo + (hi-lo)/2
		if mid == lo || mid == hi {
			break
		}
		y, ok := g(mid)
		if !ok || y == 0 {
			return mid
		}
		if (y < 0) == (ylo < 0) {
			lo, ylo = mid, y
		} else {
			hi = mid
		}
	}
	return lo + (hi-lo)/2
}

func touchingZero(g func(float64) (float64, bool), lo, hi, scale float64) (float64, bool) {
	abs := func(x float64) float64 {
		y, ok := g(x)
		if !ok {
			return math.Inf(1)
		}
		return math.Abs(y)
	}
	const phi = 0.6180339887498949
	x1, x2 := hi-phi*(hi-lo), lo+phi*(hi-lo)
	f1, f2 := abs(x1), abs(x2)
	for i := 0; i < rootIterations && hi-lo > 1e-15*math.Max(1, math.Abs(lo)); i++ {
		if f1 < f2 {
			hi, x2, f2 = x2, x1, f1
			x1 = hi - phi*(hi-lo)
			f1 = abs(x1)
		} else {
			lo, x1, f1 = x1, x2, f2
			x2 = lo + phi*(hi-lo)
			f2 = abs(x2)
		}
	}
	c := (lo + hi) / 2
	return c, abs(c) <= 1e-9*math.Max(1, scale)
}

// poleOrder estimates p in |f(x)| ~ |x-c|**-p on each side of c that lies in
// [a, b] and returns the largest. An integrand that overflows next to c is
// treated as an infinite-order pole.
func poleOrder(f func(float64) (float64, error), c, a, b float64) float64 {
	order := math.Inf(-1)
	for _, side := range []float64{-1, 1} {
		room := b - c
		if side < 0 {
			room = c - a
		}
		if room <= 0 {
			continue
		}
		h1 := math.Min(1e-4, room/2) * math.Max(1, math.Abs(c))
		h1 = math.Min(h1, room/2)
		h2 := h1 / 100
		y1, err1 := f(c + side*h1)
		y2, err2 := f(c + side*h2)
		if errors.Is(err2, ErrNotFinite) {
			return math.Inf(1)
		}
		if err1 != nil || err2 != nil || y1 == 0 || y2 == 0 {
			continue
		}
		p := math.Log(math.Abs(y2)/math.Abs(y1)) / math.Log(h1/h2)
		order = math.Max(order, p)
	}
	return order
}
