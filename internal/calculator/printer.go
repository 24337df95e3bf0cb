package calculator

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Printing follows the conventions of common computer algebra systems:
// "**" for powers, rational coefficients split into numerator and
// denominator, and sums ordered by descending degree with constants last.

func (n *Num) String() string {
	if n.inexact {
		return formatFloat(n.float())
	}
	if n.val.IsInt() {
		return n.val.Num().String()
	}
	return n.val.Num().String() + "/" + n.val.Denom().String()
}

func (c *Const) String() string { return c.name }

func (s *Sym) String() string { return s.name }

func (u *Undefined) String() string {
	if u.indeterminate {
		return "nan"
	}
	return "zoo"
}

func (f *Func) String() string { return f.name + "(" + f.arg.String() + ")" }

func (a *Add) String() string {
	var sb strings.Builder
	for i, t := range printOrder(a.terms) {
		s := t.String()
		switch {
		case i == 0:
			sb.WriteString(s)
		case strings.HasPrefix(s, "-"):
			sb.WriteString(" - ")
			sb.WriteString(s[1:])
		default:
			sb.WriteString(" + ")
			sb.WriteString(s)
		}
	}
	return sb.String()
}

func (m *Mul) String() string {
	coeff := intNum(1)
	var num, den []Expr
	for _, f := range m.factors {
		switch t := f.(type) {
		case *Num:
			coeff = t
		case *Pow:
			if en, ok := t.exp.(*Num); ok && en.sign() < 0 {
				den = append(den, PowOf(t.base, numNeg(en)))
				continue
			}
			num = append(num, f)
		default:
			num = append(num, f)
		}
	}

	sign := ""
	if coeff.sign() < 0 {
		sign = "-"
		coeff = numAbs(coeff)
	}

	var numParts, denParts []string
	switch {
	case coeff.inexact:
		if !coeff.isOne() || len(num) == 0 {
			numParts = append(numParts, coeff.String())
		}
	default:
		p, q := coeff.val.Num(), coeff.val.Denom()
		if !p.IsInt64() || p.Int64() != 1 || len(num) == 0 {
			numParts = append(numParts, p.String())
		}
		if !q.IsInt64() || q.Int64() != 1 {
			denParts = append(denParts, q.String())
		}
	}
	for _, f := range num {
		numParts = append(numParts, factorString(f))
	}
	for _, f := range den {
		denParts = append(denParts, factorString(f))
	}

	out := strings.Join(numParts, "*")
	if len(denParts) > 0 {
		d := strings.Join(denParts, "*")
		if len(denParts) > 1 {
			d = "(" + d + ")"
		}
		out += "/" + d
	}
	return sign + out
}

func (p *Pow) String() string {
	if en, ok := p.exp.(*Num); ok && en.sign() < 0 {
		return newMul([]Expr{p}).String()
	}

	base := p.base.String()
	switch b := p.base.(type) {
	case *Add, *Mul, *Pow:
		base = "(" + base + ")"
	case *Num:
		if b.sign() < 0 || (!b.isInteger() && !b.inexact) {
			base = "(" + base + ")"
		}
	}

	exp := p.exp.String()
	switch e := p.exp.(type) {
	case *Num:
		if e.sign() < 0 || (!e.isInteger() && !e.inexact) {
			exp = "(" + exp + ")"
		}
	case *Sym, *Const, *Func:
	default:
		exp = "(" + exp + ")"
	}
	return base + "**" + exp
}

func factorString(e Expr) string {
	if _, ok := e.(*Add); ok {
		return "(" + e.String() + ")"
	}
	return e.String()
}

// printOrder sorts the terms of a sum by descending polynomial degree; the
// numeric constant goes last.
func printOrder(terms []Expr) []Expr {
	out := make([]Expr, len(terms))
	copy(out, terms)
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := degree(out[i]), degree(out[j])
		if di != dj {
			return di > dj
		}
		_, ri := splitCoeff(out[i])
		_, rj := splitCoeff(out[j])
		return ri.key() < rj.key()
	})
	return out
}

func degree(e Expr) float64 {
	switch t := e.(type) {
	case *Num:
		return math.Inf(-1)
	case *Sym:
		return 1
	case *Pow:
		if _, ok := t.base.(*Sym); ok {
			if n, ok := t.exp.(*Num); ok {
				return n.float()
			}
		}
	case *Mul:
		d := 0.0
		for _, f := range t.factors {
			if _, ok := f.(*Num); ok {
				continue
			}
			d += degree(f)
		}
		return d
	}
	return 0
}

// formatFloat renders f with 15 significant digits, snapping values that are
// integers up to rounding noise.
func formatFloat(f float64) string {
	if r := math.Round(f); r != 0 && math.Abs(f-r) <= 1e-12*math.Abs(r) && math.Abs(r) < 1e15 {
		return strconv.FormatFloat(r, 'f', -1, 64)
	}
	if math.Abs(f) < 1e-300 {
		return "0"
	}
	return strconv.FormatFloat(f, 'g', 15, 64)
}
