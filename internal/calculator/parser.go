package calculator

import (
	"fmt"
	"math/big"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Input limits.
const (
	MaxInputLength = 1000
	MaxDepth       = 256
)

// Names of the calculus calls accepted at the top level of a command.
const (
	CallDiff      = "diff"
	CallIntegrate = "integrate"
)

// ParseError describes malformed input.
type ParseError struct {
	Input  string
	Column int
	Msg    string
}

func (e *ParseError) Error() string {
	if e.Column > 0 {
		return fmt.Sprintf("%s at column %d in %q", e.Msg, e.Column, e.Input)
	}
	return fmt.Sprintf("%s in %q", e.Msg, e.Input)
}

// Command is the parsed form of a calculator command: exactly one of
// *DiffCall, *IntegrateCall or *PlainExpr.
type Command interface {
	command()
}

// DiffCall is diff(expr, args...). Args are the raw variable/order
// arguments; they are validated when the call is evaluated.
type DiffCall struct {
	Expr Expr
	Args []Expr
}

// IntegrateCall is integrate(expr, args...).
type IntegrateCall struct {
	Expr Expr
	Args []Expr
}

// PlainExpr is any expression without a top-level calculus call.
type PlainExpr struct {
	Expr Expr
}

func (*DiffCall) command()      {}
func (*IntegrateCall) command() {}
func (*PlainExpr) command()     {}

// ================ lexer ================

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokPow
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) describe() string {
	if t.kind == tokEOF {
		return "end of input"
	}
	return fmt.Sprintf("%q", t.text)
}

var operatorAliases = map[rune]tokenKind{
	'+': tokPlus,
	'-': tokMinus,
	'−': tokMinus,
	'*': tokStar,
	'×': tokStar,
	'·': tokStar,
	'/': tokSlash,
	'÷': tokSlash,
	'^': tokPow,
	'(': tokLParen,
	')': tokRParen,
	',': tokComma,
}

func lex(input string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(input) {
		r, size := utf8.DecodeRuneInString(input[i:])
		switch {
		case unicode.IsSpace(r):
			i += size
		case r == '*' && strings.HasPrefix(input[i:], "**"):
			toks = append(toks, token{kind: tokPow, text: "**", pos: i})
			i += 2
		case isDigit(r) || (r == '.' && i+1 < len(input) && isDigit(rune(input[i+1]))):
			end := scanNumber(input, i)
			toks = append(toks, token{kind: tokNumber, text: input[i:end], pos: i})
			i = end
		case isASCIILetter(r):
			end := i
			for end < len(input) && isASCIILetter(rune(input[end])) {
				end++
			}
			letters := end
			for end < len(input) && isDigit(rune(input[end])) {
				end++
			}
			toks = append(toks, identTokens(input, i, letters, end)...)
			i = end
		default:
			kind, ok := operatorAliases[r]
			if !ok {
				return nil, &ParseError{Input: input, Column: utf8.RuneCountInString(input[:i]) + 1, Msg: fmt.Sprintf("unexpected character %q", r)}
			}
			toks = append(toks, token{kind: kind, text: string(r), pos: i})
			i += size
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(input)}), nil
}

// identTokens turns the name input[start:end] (letters up to digitsAt, then
// digits) into tokens. Known names and single-letter symbols stay whole; other
// runs such as "xy" or "sinx" are split into known names and single letters,
// with trailing digits kept on the last symbol. A run directly followed by "("
// stays whole unless it ends in a function name, so "foo(x)" is reported as an
// unknown function while "xsin(x)" reads as x*sin(x).
func identTokens(input string, start, digitsAt, end int) []token {
	name := input[start:end]
	whole := []token{{kind: tokIdent, text: name, pos: start}}
	if isKnownName(name) || isSymbolName(name) {
		return whole
	}

	var toks []token
	for i := start; i < digitsAt; {
		n := 1
		for _, known := range splittableNames {
			if strings.HasPrefix(input[i:digitsAt], known) {
				n = len(known)
				break
			}
		}
		toks = append(toks, token{kind: tokIdent, text: input[i : i+n], pos: i})
		i += n
	}
	last := &toks[len(toks)-1]
	if digitsAt < end {
		if isSymbolName(last.text) {
			last.text += input[digitsAt:end]
		} else {
			toks = append(toks, token{kind: tokNumber, text: input[digitsAt:end], pos: digitsAt})
		}
	} else if strings.HasPrefix(strings.TrimLeft(input[end:], " \t"), "(") && !isFuncName(last.text) {
		return whole
	}
	return toks
}

// splittableNames are recognised inside longer runs of letters.
var splittableNames = []string{FuncSin, FuncCos, FuncExp, FuncLog, ConstPi}

func isFuncName(s string) bool {
	switch s {
	case FuncSin, FuncCos, FuncExp, FuncLog:
		return true
	}
	return false
}

func isKnownName(s string) bool {
	switch s {
	case FuncSin, FuncCos, FuncExp, FuncLog, ConstPi, ConstE, CallDiff, CallIntegrate:
		return true
	}
	return false
}

func scanNumber(s string, i int) int {
	for i < len(s) && isDigit(rune(s[i])) {
		i++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(rune(s[i])) {
			i++
		}
	}
	// scientific notation only when digits follow the exponent marker
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if j < len(s) && isDigit(rune(s[j])) {
			for j < len(s) && isDigit(rune(s[j])) {
				j++
			}
			return j
		}
	}
	return i
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isASCIILetter(r rune) bool { return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') }

// ================ parser ================

type parser struct {
	input string
	toks  []token
	pos   int
	depth int
}

// Parse turns a command into its parsed form. Grammar:
//
//	command := call | expr
//	call    := ("diff" | "integrate") "(" expr ("," expr)* ")"
//	expr    := term (("+" | "-") term)*
//	term    := unary (("*" | "/") unary | implicit)*
//	unary   := ("+" | "-") unary | power
//	power   := primary (("**" | "^") unary)?
//	primary := number | symbol | constant | func "(" expr ")" | func power | "(" expr ")"
//
// where implicit multiplication applies when a number, name or "(" directly
// follows a complete factor.
func Parse(command string) (Command, error) {
	src := strings.TrimSpace(command)
	if src == "" {
		return nil, &ParseError{Input: command, Msg: "empty expression"}
	}
	if utf8.RuneCountInString(src) > MaxInputLength {
		return nil, &ParseError{Input: truncate(src, 40), Msg: fmt.Sprintf("expression longer than %d characters", MaxInputLength)}
	}
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{input: src, toks: toks}

	if head := p.peek(); head.kind == tokIdent && (head.text == CallDiff || head.text == CallIntegrate) && p.peekAt(1).kind == tokLParen {
		p.next()
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		if t := p.peek(); t.kind != tokEOF {
			return nil, p.errorAt(t, fmt.Sprintf("%s(...) must be the whole command, unexpected %s", head.text, t.describe()))
		}
		if head.text == CallDiff {
			return &DiffCall{Expr: args[0], Args: args[1:]}, nil
		}
		return &IntegrateCall{Expr: args[0], Args: args[1:]}, nil
	}

	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorAt(t, "unexpected "+t.describe())
	}
	return &PlainExpr{Expr: e}, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) peekAt(off int) token {
	if p.pos+off >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+off]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorAt(t token, msg string) error {
	return &ParseError{Input: p.input, Column: utf8.RuneCountInString(p.input[:t.pos]) + 1, Msg: msg}
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > MaxDepth {
		return p.errorAt(p.peek(), "expression nested too deeply")
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

// parseArgs parses "(" expr ("," expr)* ")".
func (p *parser) parseArgs() ([]Expr, error) {
	if t := p.next(); t.kind != tokLParen {
		return nil, p.errorAt(t, "expected \"(\"")
	}
	var args []Expr
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, e)
		t := p.next()
		switch t.kind {
		case tokComma:
			continue
		case tokRParen:
			return args, nil
		default:
			return nil, p.errorAt(t, "expected \",\" or \")\" but found "+t.describe())
		}
	}
}

func (p *parser) parseExpr() (Expr, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().kind {
		case tokPlus:
			p.next()
			right, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			left = AddOf(left, right)
		case tokMinus:
			p.next()
			right, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			left = AddOf(left, MulOf(intNum(-1), right))
		default:
			return left, nil
		}
	}
}

func (p *parser) parseTerm() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		switch t.kind {
		case tokStar:
			p.next()
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			left = MulOf(left, right)
		case tokSlash:
			p.next()
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			left = MulOf(left, PowOf(right, intNum(-1)))
		case tokIdent, tokLParen, tokNumber:
			prev := p.toks[p.pos-1]
			if t.kind == tokNumber && prev.kind == tokNumber {
				return nil, p.errorAt(t, "unexpected number "+t.describe())
			}
			right, err := p.parsePower()
			if err != nil {
				return nil, err
			}
			left = MulOf(left, right)
		default:
			return left, nil
		}
	}
}

func (p *parser) parseUnary() (Expr, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	switch p.peek().kind {
	case tokPlus:
		p.next()
		return p.parseUnary()
	case tokMinus:
		p.next()
		e, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return MulOf(intNum(-1), e), nil
	}
	return p.parsePower()
}

func (p *parser) parsePower() (Expr, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokPow {
		return base, nil
	}
	p.next()
	exp, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return PowOf(base, exp), nil
}

func (p *parser) parsePrimary() (Expr, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	t := p.next()
	switch t.kind {
	case tokNumber:
		return p.number(t)
	case tokLParen:
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if c := p.next(); c.kind != tokRParen {
			return nil, p.errorAt(c, "expected \")\" but found "+c.describe())
		}
		return e, nil
	case tokIdent:
		return p.identifier(t)
	case tokEOF:
		return nil, p.errorAt(t, "unexpected end of input")
	}
	return nil, p.errorAt(t, "unexpected "+t.describe())
}

func (p *parser) number(t token) (Expr, error) {
	if !strings.ContainsAny(t.text, ".eE") {
		n, ok := new(big.Int).SetString(t.text, 10)
		if !ok {
			return nil, p.errorAt(t, "invalid number "+t.describe())
		}
		return &Num{val: new(big.Rat).SetInt(n)}, nil
	}
	r, ok := new(big.Rat).SetString(t.text)
	if !ok {
		return nil, p.errorAt(t, "invalid number "+t.describe())
	}
	f, _ := r.Float64()
	return floatNum(f), nil
}

func (p *parser) identifier(t token) (Expr, error) {
	switch t.text {
	case ConstPi, ConstE:
		return &Const{name: t.text}, nil
	case FuncSin, FuncCos, FuncExp, FuncLog:
		if p.peek().kind == tokLParen {
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			if len(args) != 1 {
				return nil, p.errorAt(t, fmt.Sprintf("%s expects 1 argument, got %d", t.text, len(args)))
			}
			return FuncOf(t.text, args[0]), nil
		}
		arg, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		return FuncOf(t.text, arg), nil
	case CallDiff, CallIntegrate:
		return nil, p.errorAt(t, t.text+"(...) is only supported as the outermost call")
	}
	if isSymbolName(t.text) {
		return Symbol(t.text), nil
	}
	return nil, p.errorAt(t, "unknown name "+t.describe())
}

// isSymbolName accepts one letter optionally followed by digits.
func isSymbolName(s string) bool {
	if s == "" || !isASCIILetter(rune(s[0])) {
		return false
	}
	for _, r := range s[1:] {
		if !isDigit(r) {
			return false
		}
	}
	return true
}
