package calculator

// maxExpandTerms bounds the size of a product expansion.
const maxExpandTerms = 512

// Diff returns the derivative of e with respect to the symbol v.
func Diff(e Expr, v string) Expr {
	if u, ok := e.(*Undefined); ok {
		return u
	}
	if freeOf(e, v) {
		return intNum(0)
	}
	switch t := e.(type) {
	case *Sym:
		return intNum(1)
	case *Add:
		terms := make([]Expr, len(t.terms))
		for i, s := range t.terms {
			terms[i] = Diff(s, v)
		}
		return AddOf(terms...)
	case *Mul:
		terms := make([]Expr, 0, len(t.factors))
		for i, f := range t.factors {
			d := Diff(f, v)
			if isZero(d) {
				continue
			}
			fs := make([]Expr, 0, len(t.factors))
			fs = append(fs, t.factors[:i]...)
			fs = append(fs, d)
			fs = append(fs, t.factors[i+1:]...)
			terms = append(terms, MulOf(fs...))
		}
		return AddOf(terms...)
	case *Pow:
		if freeOf(t.exp, v) {
			// n * b**(n-1) * b'
			return MulOf(t.exp, PowOf(t.base, AddOf(t.exp, intNum(-1))), Diff(t.base, v))
		}
		if freeOf(t.base, v) {
			return MulOf(t, FuncOf(FuncLog, t.base), Diff(t.exp, v))
		}
		// b**g = exp(g*log(b))
		inner := MulOf(t.exp, FuncOf(FuncLog, t.base))
		return MulOf(t, Diff(inner, v))
	case *Func:
		du := Diff(t.arg, v)
		switch t.name {
		case FuncSin:
			return MulOf(FuncOf(FuncCos, t.arg), du)
		case FuncCos:
			return MulOf(intNum(-1), FuncOf(FuncSin, t.arg), du)
		case FuncExp:
			return MulOf(t, du)
		case FuncLog:
			return MulOf(du, PowOf(t.arg, intNum(-1)))
		}
	}
	return intNum(0)
}

// Expand distributes products over sums and multiplies out small positive
// integer powers of sums.
func Expand(e Expr) Expr {
	switch t := e.(type) {
	case *Add:
		terms := make([]Expr, len(t.terms))
		for i, s := range t.terms {
			terms[i] = Expand(s)
		}
		return AddOf(terms...)
	case *Mul:
		fs := make([]Expr, len(t.factors))
		for i, f := range t.factors {
			fs[i] = Expand(f)
		}
		if out, ok := distribute(fs); ok {
			return out
		}
		return MulOf(fs...)
	case *Pow:
		base, exp := Expand(t.base), Expand(t.exp)
		if _, ok := base.(*Add); ok {
			if n, ok := exp.(*Num); ok && n.isInteger() && !n.inexact && n.sign() > 0 && n.val.Num().Int64() <= 16 {
				k := int(n.val.Num().Int64())
				fs := make([]Expr, k)
				for i := range fs {
					fs[i] = base
				}
				if out, ok := distribute(fs); ok {
					return out
				}
			}
		}
		return PowOf(base, exp)
	case *Func:
		return FuncOf(t.name, Expand(t.arg))
	}
	return e
}

// distribute multiplies out the factors term by term.
func distribute(factors []Expr) (Expr, bool) {
	acc := []Expr{intNum(1)}
	for _, f := range factors {
		var terms []Expr
		if a, ok := f.(*Add); ok {
			terms = a.terms
		} else {
			terms = []Expr{f}
		}
		if len(acc)*len(terms) > maxExpandTerms {
			return nil, false
		}
		next := make([]Expr, 0, len(acc)*len(terms))
		for _, x := range acc {
			for _, y := range terms {
				next = append(next, MulOf(x, y))
			}
		}
		combined := AddOf(next...)
		if sum, ok := combined.(*Add); ok {
			acc = sum.terms
		} else {
			acc = []Expr{combined}
		}
	}
	return AddOf(acc...), true
}

// Simplify returns the least complex of a few equivalent forms of e.
func Simplify(e Expr) Expr {
	best, cost := e, complexity(e)
	expanded := Expand(e)
	for _, c := range []Expr{pythagorean(e), expanded, pythagorean(expanded)} {
		if n := complexity(c); n < cost {
			best, cost = c, n
		}
	}
	return best
}

// complexity counts the nodes of e.
func complexity(e Expr) int {
	switch t := e.(type) {
	case *Add:
		n := 1
		for _, s := range t.terms {
			n += complexity(s)
		}
		return n
	case *Mul:
		n := 1
		for _, f := range t.factors {
			n += complexity(f)
		}
		return n
	case *Pow:
		return 1 + complexity(t.base) + complexity(t.exp)
	case *Func:
		return 1 + complexity(t.arg)
	}
	return 1
}

// pythagorean rewrites c*r*sin(u)**2 + c*r*cos(u)**2 to c*r.
func pythagorean(e Expr) Expr {
	sum, ok := e.(*Add)
	if !ok {
		return e
	}
	type square struct {
		name  string
		arg   Expr
		other Expr
	}
	split := func(t Expr) (square, bool) {
		var fs []Expr
		if m, ok := t.(*Mul); ok {
			fs = m.factors
		} else {
			fs = []Expr{t}
		}
		for i, f := range fs {
			p, ok := f.(*Pow)
			if !ok {
				continue
			}
			n, ok := p.exp.(*Num)
			if !ok || n.inexact || n.val.Cmp(intNum(2).val) != 0 {
				continue
			}
			fn, ok := p.base.(*Func)
			if !ok || (fn.name != FuncSin && fn.name != FuncCos) {
				continue
			}
			rest := make([]Expr, 0, len(fs)-1)
			rest = append(rest, fs[:i]...)
			rest = append(rest, fs[i+1:]...)
			return square{name: fn.name, arg: fn.arg, other: MulOf(rest...)}, true
		}
		return square{}, false
	}

	terms := append([]Expr(nil), sum.terms...)
	used := make([]bool, len(terms))
	var out []Expr
	changed := false
	for i := range terms {
		if used[i] {
			continue
		}
		si, ok := split(terms[i])
		if !ok {
			continue
		}
		for j := i + 1; j < len(terms); j++ {
			if used[j] {
				continue
			}
			sj, ok := split(terms[j])
			if !ok || si.name == sj.name || !Equal(si.arg, sj.arg) || !Equal(si.other, sj.other) {
				continue
			}
			used[i], used[j] = true, true
			out = append(out, si.other)
			changed = true
			break
		}
	}
	if !changed {
		return e
	}
	for i, t := range terms {
		if !used[i] {
			out = append(out, t)
		}
	}
	return AddOf(out...)
}
