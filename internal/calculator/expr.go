package calculator

import (
	"fmt"
	"math"
	"math/big"
	"sort"
	"strings"
)

// Expr is a node of an expression tree. Values are immutable and are always
// produced by the canonicalising constructors (AddOf, MulOf, PowOf, FuncOf).
type Expr interface {
	String() string
	key() string
}

// Function names understood by the evaluator.
const (
	FuncSin = "sin"
	FuncCos = "cos"
	FuncExp = "exp"
	FuncLog = "log"
)

// Constant names understood by the evaluator.
const (
	ConstPi = "pi"
	ConstE  = "E"
)

// exponents beyond this are left unevaluated instead of folded exactly
const maxFoldBits = 1 << 15

// ================ Num ================

// Num is a rational number. Inexact numbers come from decimal literals or
// floating point folding and are printed as floats.
type Num struct {
	val     *big.Rat
	inexact bool
}

func intNum(n int64) *Num { return &Num{val: new(big.Rat).SetInt64(n)} }

func ratNum(p, q int64) *Num { return &Num{val: big.NewRat(p, q)} }

func floatNum(f float64) *Num {
	r := new(big.Rat)
	if r.SetFloat64(f) == nil {
		r.SetInt64(0)
	}
	return &Num{val: r, inexact: true}
}

func (n *Num) key() string {
	if n.inexact {
		return "0:" + n.val.RatString() + "~"
	}
	return "0:" + n.val.RatString()
}

func (n *Num) float() float64 {
	f, _ := n.val.Float64()
	return f
}

func (n *Num) sign() int        { return n.val.Sign() }
func (n *Num) isZero() bool     { return n.val.Sign() == 0 }
func (n *Num) isInteger() bool  { return n.val.IsInt() }
func (n *Num) isOne() bool      { return n.val.Cmp(big.NewRat(1, 1)) == 0 }
func (n *Num) isMinusOne() bool { return n.val.Cmp(big.NewRat(-1, 1)) == 0 }

// settle rounds inexact values back to float64 so repeated folding does not
// grow the underlying rational without bound.
func settle(r *big.Rat, inexact bool) *Num {
	if !inexact {
		return &Num{val: r}
	}
	f, _ := r.Float64()
	return floatNum(f)
}

func numAdd(a, b *Num) *Num {
	return settle(new(big.Rat).Add(a.val, b.val), a.inexact || b.inexact)
}

func numMul(a, b *Num) *Num {
	return settle(new(big.Rat).Mul(a.val, b.val), a.inexact || b.inexact)
}

func numNeg(a *Num) *Num {
	return &Num{val: new(big.Rat).Neg(a.val), inexact: a.inexact}
}

func numAbs(a *Num) *Num {
	return &Num{val: new(big.Rat).Abs(a.val), inexact: a.inexact}
}

// numPow folds base**exp when the result is representable as a Num.
func numPow(base, exp *Num) (*Num, bool) {
	if base.inexact || exp.inexact {
		f := math.Pow(base.float(), exp.float())
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, false
		}
		return floatNum(f), true
	}
	if exp.isInteger() {
		if !exp.val.Num().IsInt64() {
			return nil, false
		}
		n := exp.val.Num().Int64()
		if base.isZero() {
			if n < 0 {
				return nil, false
			}
			return intNum(0), true
		}
		abs := n
		if abs < 0 {
			abs = -abs
		}
		bits := int64(base.val.Num().BitLen() + base.val.Denom().BitLen())
		if abs > maxFoldBits || bits*abs > maxFoldBits {
			return nil, false
		}
		e := big.NewInt(abs)
		num := new(big.Int).Exp(base.val.Num(), e, nil)
		den := new(big.Int).Exp(base.val.Denom(), e, nil)
		if n < 0 {
			num, den = den, num
		}
		return &Num{val: new(big.Rat).SetFrac(num, den)}, true
	}
	// exact square roots of perfect squares
	if exp.val.Denom().Cmp(big.NewInt(2)) == 0 && base.sign() > 0 {
		rn, okN := exactSqrt(base.val.Num())
		rd, okD := exactSqrt(base.val.Denom())
		if okN && okD {
			root := &Num{val: new(big.Rat).SetFrac(rn, rd)}
			return numPow(root, &Num{val: new(big.Rat).SetInt(exp.val.Num())})
		}
	}
	return nil, false
}

func exactSqrt(n *big.Int) (*big.Int, bool) {
	if n.Sign() < 0 {
		return nil, false
	}
	s := new(big.Int).Sqrt(n)
	return s, new(big.Int).Mul(s, s).Cmp(n) == 0
}

// ================ Const / Sym ================

// Const is one of the named constants pi and E.
type Const struct{ name string }

func (c *Const) key() string { return "1:" + c.name }

func (c *Const) value() float64 {
	if c.name == ConstPi {
		return math.Pi
	}
	return math.E
}

// Sym is a free symbol such as x or y2.
type Sym struct{ name string }

// Symbol returns the symbol with the given name.
func Symbol(name string) *Sym { return &Sym{name: name} }

func (s *Sym) key() string { return "2:" + s.name }

// Name returns the symbol name.
func (s *Sym) Name() string { return s.name }

// ================ Undefined ================

// Undefined is a value with no number behind it: complex infinity ("zoo")
// from a division by zero or log(0), or an indeterminate form ("nan") such
// as 0/0. It absorbs every expression it is combined with.
type Undefined struct{ indeterminate bool }

var (
	ComplexInfinity = &Undefined{}
	NaN             = &Undefined{indeterminate: true}
)

func (u *Undefined) key() string {
	if u.indeterminate {
		return "9:nan"
	}
	return "9:zoo"
}

// Err describes why the expression has no value.
func (u *Undefined) Err() error {
	if u.indeterminate {
		return fmt.Errorf("%w: indeterminate form (nan)", ErrUndefined)
	}
	return fmt.Errorf("%w: division by zero (zoo)", ErrNotFinite)
}

// ================ Add ================

// Add is a canonical sum: flattened, like terms combined, the numeric
// constant (if any) last.
type Add struct {
	terms []Expr
	k     string
}

func (a *Add) key() string { return a.k }

func newAdd(terms []Expr) *Add {
	ks := make([]string, len(terms))
	for i, t := range terms {
		ks[i] = t.key()
	}
	return &Add{terms: terms, k: "5:[" + strings.Join(ks, "+") + "]"}
}

// AddOf builds the canonical sum of terms.
func AddOf(terms ...Expr) Expr {
	constant := intNum(0)
	type group struct {
		coeff *Num
		rest  Expr
	}
	groups := map[string]*group{}
	var order []string

	var infinities, nans int

	var collect func(e Expr)
	collect = func(e Expr) {
		switch t := e.(type) {
		case *Add:
			for _, s := range t.terms {
				collect(s)
			}
		case *Undefined:
			if t.indeterminate {
				nans++
			} else {
				infinities++
			}
		case *Num:
			constant = numAdd(constant, t)
		default:
			c, rest := splitCoeff(e)
			k := rest.key()
			if g, ok := groups[k]; ok {
				g.coeff = numAdd(g.coeff, c)
				return
			}
			groups[k] = &group{coeff: c, rest: rest}
			order = append(order, k)
		}
	}
	for _, t := range terms {
		collect(t)
	}
	// zoo + zoo has no sign to cancel against
	switch {
	case nans > 0 || infinities > 1:
		return NaN
	case infinities == 1:
		return ComplexInfinity
	}

	sort.Strings(order)
	out := make([]Expr, 0, len(order)+1)
	for _, k := range order {
		g := groups[k]
		if g.coeff.isZero() {
			continue
		}
		out = append(out, scale(g.coeff, g.rest))
	}
	if !constant.isZero() {
		out = append(out, constant)
	}

	switch len(out) {
	case 0:
		return constant
	case 1:
		return out[0]
	}
	return newAdd(out)
}

// splitCoeff separates the numeric coefficient of a product.
func splitCoeff(e Expr) (*Num, Expr) {
	m, ok := e.(*Mul)
	if !ok {
		return intNum(1), e
	}
	c, ok := m.factors[0].(*Num)
	if !ok {
		return intNum(1), e
	}
	rest := m.factors[1:]
	if len(rest) == 1 {
		return c, rest[0]
	}
	return c, newMul(rest)
}

// scale multiplies an already canonical non-numeric expression by c.
func scale(c *Num, rest Expr) Expr {
	if c.isOne() && !c.inexact {
		return rest
	}
	if m, ok := rest.(*Mul); ok {
		return newMul(append([]Expr{c}, m.factors...))
	}
	return newMul([]Expr{c, rest})
}

// ================ Mul ================

// Mul is a canonical product: flattened, equal bases merged, the numeric
// coefficient (if any) first.
type Mul struct {
	factors []Expr
	k       string
}

func (m *Mul) key() string { return m.k }

func newMul(factors []Expr) *Mul {
	ks := make([]string, len(factors))
	for i, f := range factors {
		ks[i] = f.key()
	}
	return &Mul{factors: factors, k: "6:[" + strings.Join(ks, "*") + "]"}
}

// MulOf builds the canonical product of factors.
func MulOf(factors ...Expr) Expr {
	coeff := intNum(1)
	type group struct {
		base Expr
		exps []Expr
	}
	groups := map[string]*group{}
	var order []string

	var infinite, indeterminate bool

	var collect func(e Expr)
	collect = func(e Expr) {
		switch t := e.(type) {
		case *Mul:
			for _, f := range t.factors {
				collect(f)
			}
		case *Undefined:
			if t.indeterminate {
				indeterminate = true
			} else {
				infinite = true
			}
		case *Num:
			coeff = numMul(coeff, t)
		default:
			base, exp := splitPow(e)
			k := base.key()
			if g, ok := groups[k]; ok {
				g.exps = append(g.exps, exp)
				return
			}
			groups[k] = &group{base: base, exps: []Expr{exp}}
			order = append(order, k)
		}
	}
	for _, f := range factors {
		collect(f)
	}
	switch {
	case indeterminate || (infinite && coeff.isZero()):
		return NaN
	case infinite:
		return ComplexInfinity
	case coeff.isZero():
		return coeff
	}

	rebuilt := make([]Expr, 0, len(order))
	renormalise := false
	for _, k := range order {
		g := groups[k]
		exp := g.exps[0]
		if len(g.exps) > 1 {
			exp = AddOf(g.exps...)
		}
		p := PowOf(g.base, exp)
		switch p.(type) {
		case *Num, *Mul, *Undefined:
			renormalise = true
		}
		rebuilt = append(rebuilt, p)
	}
	if renormalise {
		return MulOf(append([]Expr{coeff}, rebuilt...)...)
	}

	sort.Slice(rebuilt, func(i, j int) bool {
		return mulOrderKey(rebuilt[i]) < mulOrderKey(rebuilt[j])
	})

	if len(rebuilt) == 0 {
		return coeff
	}
	trivial := coeff.isOne() && !coeff.inexact
	if len(rebuilt) == 1 {
		if trivial {
			return rebuilt[0]
		}
		// numeric coefficients distribute over a lone sum
		if sum, ok := rebuilt[0].(*Add); ok {
			terms := make([]Expr, len(sum.terms))
			for i, t := range sum.terms {
				terms[i] = MulOf(coeff, t)
			}
			return AddOf(terms...)
		}
	}
	if trivial {
		return newMul(rebuilt)
	}
	return newMul(append([]Expr{coeff}, rebuilt...))
}

func splitPow(e Expr) (Expr, Expr) {
	if p, ok := e.(*Pow); ok {
		return p.base, p.exp
	}
	return e, intNum(1)
}

func mulOrderKey(e Expr) string {
	base, _ := splitPow(e)
	return base.key()
}

// ================ Pow ================

// Pow is base**exp.
type Pow struct {
	base, exp Expr
	k         string
}

func (p *Pow) key() string { return p.k }

func newPow(base, exp Expr) *Pow {
	return &Pow{base: base, exp: exp, k: "3:(" + base.key() + ")^(" + exp.key() + ")"}
}

// PowOf builds the canonical power base**exp.
func PowOf(base, exp Expr) Expr {
	if en, ok := exp.(*Num); ok {
		if en.isZero() {
			return intNum(1)
		}
		if en.isOne() && !en.inexact {
			return base
		}
	}

	if _, ok := exp.(*Undefined); ok {
		return NaN
	}

	switch b := base.(type) {
	case *Undefined:
		en, ok := exp.(*Num)
		switch {
		case b.indeterminate || !ok:
			return NaN
		case en.sign() < 0:
			return intNum(0)
		}
		return ComplexInfinity
	case *Num:
		if b.isOne() && !b.inexact {
			return b
		}
		if en, ok := exp.(*Num); ok && b.isZero() && en.sign() < 0 {
			return ComplexInfinity
		}
		if en, ok := exp.(*Num); ok {
			if r, ok := numPow(b, en); ok {
				return r
			}
		}
	case *Pow:
		if en, ok := exp.(*Num); ok && en.isInteger() && !en.inexact {
			return PowOf(b.base, MulOf(b.exp, en))
		}
	case *Mul:
		if en, ok := exp.(*Num); ok && en.isInteger() && !en.inexact {
			fs := make([]Expr, len(b.factors))
			for i, f := range b.factors {
				fs[i] = PowOf(f, en)
			}
			return MulOf(fs...)
		}
	case *Const:
		if b.name == ConstE {
			return FuncOf(FuncExp, exp)
		}
	case *Func:
		if b.name == FuncExp {
			return FuncOf(FuncExp, MulOf(b.arg, exp))
		}
	}
	return newPow(base, exp)
}

// ================ Func ================

// Func is the application of one of sin, cos, exp or log.
type Func struct {
	name string
	arg  Expr
	k    string
}

func (f *Func) key() string { return f.k }

func newFunc(name string, arg Expr) *Func {
	return &Func{name: name, arg: arg, k: "4:" + name + "(" + arg.key() + ")"}
}

// FuncOf builds name(arg), folding the special values it knows about.
func FuncOf(name string, arg Expr) Expr {
	if u, ok := arg.(*Undefined); ok {
		if name == FuncLog && !u.indeterminate {
			return ComplexInfinity
		}
		return NaN
	}
	if n, ok := arg.(*Num); ok && name == FuncLog && n.isZero() {
		return ComplexInfinity
	}
	if n, ok := arg.(*Num); ok && n.inexact {
		if v, err := applyFunc(name, n.float()); err == nil {
			return floatNum(v)
		}
	}

	switch name {
	case FuncSin:
		if k, ok := piMultiple(arg); ok {
			if v, ok := sinOfPiMultiple(k); ok {
				return v
			}
		}
		if neg, ok := negated(arg); ok {
			return MulOf(intNum(-1), FuncOf(FuncSin, neg))
		}
	case FuncCos:
		if k, ok := piMultiple(arg); ok {
			shifted := new(big.Rat).Add(k, big.NewRat(1, 2))
			if v, ok := sinOfPiMultiple(shifted); ok {
				return v
			}
		}
		if neg, ok := negated(arg); ok {
			return FuncOf(FuncCos, neg)
		}
	case FuncExp:
		if n, ok := arg.(*Num); ok {
			if n.isZero() {
				return intNum(1)
			}
			if n.isOne() && !n.inexact {
				return &Const{name: ConstE}
			}
		}
		if f, ok := arg.(*Func); ok && f.name == FuncLog {
			return f.arg
		}
	case FuncLog:
		if n, ok := arg.(*Num); ok && n.isOne() && !n.inexact {
			return intNum(0)
		}
		if c, ok := arg.(*Const); ok && c.name == ConstE {
			return intNum(1)
		}
		if f, ok := arg.(*Func); ok && f.name == FuncExp {
			return f.arg
		}
	}
	return newFunc(name, arg)
}

// piMultiple reports k when e is exactly k*pi.
func piMultiple(e Expr) (*big.Rat, bool) {
	switch t := e.(type) {
	case *Num:
		if t.isZero() && !t.inexact {
			return new(big.Rat), true
		}
	case *Const:
		if t.name == ConstPi {
			return big.NewRat(1, 1), true
		}
	case *Mul:
		if len(t.factors) != 2 {
			return nil, false
		}
		c, ok := t.factors[0].(*Num)
		if !ok || c.inexact {
			return nil, false
		}
		if p, ok := t.factors[1].(*Const); ok && p.name == ConstPi {
			return new(big.Rat).Set(c.val), true
		}
	}
	return nil, false
}

// sinOfPiMultiple returns the exact value of sin(k*pi) for multiples of pi/6
// and pi/4.
func sinOfPiMultiple(k *big.Rat) (Expr, bool) {
	twelfths := new(big.Rat).Mul(k, big.NewRat(12, 1))
	if !twelfths.IsInt() || !twelfths.Num().IsInt64() {
		return nil, false
	}
	j := twelfths.Num().Int64() % 24
	if j < 0 {
		j += 24
	}
	sign := int64(1)
	if j >= 12 {
		j -= 12
		sign = -1
	}
	if j > 6 {
		j = 12 - j
	}
	var v Expr
	switch j {
	case 0:
		return intNum(0), true
	case 2:
		v = ratNum(1, 2)
	case 3:
		v = MulOf(ratNum(1, 2), PowOf(intNum(2), ratNum(1, 2)))
	case 4:
		v = MulOf(ratNum(1, 2), PowOf(intNum(3), ratNum(1, 2)))
	case 6:
		v = intNum(1)
	default:
		return nil, false
	}
	return MulOf(intNum(sign), v), true
}

// negated returns -e when e carries an explicit negative sign.
func negated(e Expr) (Expr, bool) {
	switch t := e.(type) {
	case *Num:
		if t.sign() < 0 {
			return numNeg(t), true
		}
	case *Mul:
		if c, ok := t.factors[0].(*Num); ok && c.sign() < 0 {
			return MulOf(intNum(-1), e), true
		}
	}
	return nil, false
}

// ================ helpers ================

func isZero(e Expr) bool {
	n, ok := e.(*Num)
	return ok && n.isZero()
}

// freeOf reports whether e does not mention the symbol v.
func freeOf(e Expr, v string) bool {
	switch t := e.(type) {
	case *Sym:
		return t.name != v
	case *Add:
		for _, s := range t.terms {
			if !freeOf(s, v) {
				return false
			}
		}
	case *Mul:
		for _, f := range t.factors {
			if !freeOf(f, v) {
				return false
			}
		}
	case *Pow:
		return freeOf(t.base, v) && freeOf(t.exp, v)
	case *Func:
		return freeOf(t.arg, v)
	}
	return true
}

// FreeSymbols returns the sorted names of the symbols in e.
func FreeSymbols(e Expr) []string {
	seen := map[string]struct{}{}
	var walk func(Expr)
	walk = func(e Expr) {
		switch t := e.(type) {
		case *Sym:
			seen[t.name] = struct{}{}
		case *Add:
			for _, s := range t.terms {
				walk(s)
			}
		case *Mul:
			for _, f := range t.factors {
				walk(f)
			}
		case *Pow:
			walk(t.base)
			walk(t.exp)
		case *Func:
			walk(t.arg)
		}
	}
	walk(e)
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Subs replaces every occurrence of the symbol v with val.
func Subs(e Expr, v string, val Expr) Expr {
	switch t := e.(type) {
	case *Sym:
		if t.name == v {
			return val
		}
		return t
	case *Add:
		terms := make([]Expr, len(t.terms))
		for i, s := range t.terms {
			terms[i] = Subs(s, v, val)
		}
		return AddOf(terms...)
	case *Mul:
		fs := make([]Expr, len(t.factors))
		for i, f := range t.factors {
			fs[i] = Subs(f, v, val)
		}
		return MulOf(fs...)
	case *Pow:
		return PowOf(Subs(t.base, v, val), Subs(t.exp, v, val))
	case *Func:
		return FuncOf(t.name, Subs(t.arg, v, val))
	}
	return e
}

// Equal reports structural equality of two canonical expressions.
func Equal(a, b Expr) bool {
	return a.key() == b.key()
}
