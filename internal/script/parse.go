package script

// Lexer and recursive descent parser for the script language.
//
// Grammar (precedence low to high):
//
//	program  = { statement (";" | newline) }
//	statement = ident "=" or | or
//	or       = and { "||" and }
//	and      = cmp { "&&" cmp }
//	cmp      = add [ ("=="|"!="|"<"|"<="|">"|">=") add ]
//	add      = mul { ("+"|"-") mul }
//	mul      = unary { ("*"|"/"|"%") unary }
//	unary    = [ "!" | "-" ] primary
//	primary  = number | string | "true" | "false" | ident [ "(" args ")" ] | "(" or ")"

import (
	"fmt"
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNewline
	tokIdent
	tokNumber
	tokString
	tokOp // operators and punctuation
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type lexer struct {
	src  string
	pos  int
	toks []token
}

func newLexer(src string) *lexer {
	return &lexer{src: src}
}

func (l *lexer) lex() error {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			l.pos++
		case c == '\n' || c == ';':
			l.emit(tokNewline, string(c))
			l.pos++
		case c == '#':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		case isIdentStart(c):
			start := l.pos
			for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
				l.pos++
			}
			l.emit(tokIdent, l.src[start:l.pos])
		case c >= '0' && c <= '9':
			if err := l.lexNumber(); err != nil {
				return err
			}
		case c == '"':
			if err := l.lexString(); err != nil {
				return err
			}
		default:
			if err := l.lexOp(); err != nil {
				return err
			}
		}
	}
	l.emit(tokEOF, "")
	return nil
}

func (l *lexer) emit(kind tokenKind, text string) {
	l.toks = append(l.toks, token{kind: kind, text: text, pos: l.pos})
}

func (l *lexer) lexNumber() error {
	start := l.pos
	if strings.HasPrefix(l.src[l.pos:], "0x") || strings.HasPrefix(l.src[l.pos:], "0X") {
		l.pos += 2
		for l.pos < len(l.src) && isHex(l.src[l.pos]) {
			l.pos++
		}
		if l.pos == start+2 {
			return fmt.Errorf("position %d: incomplete hex literal", start)
		}
		l.emit(tokNumber, l.src[start:l.pos])
		return nil
	}
	seenDot := false
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '.' && !seenDot {
			seenDot = true
			l.pos++
			continue
		}
		if c < '0' || c > '9' {
			break
		}
		l.pos++
	}
	l.emit(tokNumber, l.src[start:l.pos])
	return nil
}

func (l *lexer) lexString() error {
	start := l.pos
	l.pos++ // opening quote
	var b strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '"' {
			l.pos++
			l.toks = append(l.toks, token{kind: tokString, text: b.String(), pos: start})
			return nil
		}
		if c == '\\' && l.pos+1 < len(l.src) {
			l.pos++
			switch l.src[l.pos] {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case '0':
				b.WriteByte(0)
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			default:
				return fmt.Errorf("position %d: unknown escape \\%c", l.pos, l.src[l.pos])
			}
			l.pos++
			continue
		}
		b.WriteByte(c)
		l.pos++
	}
	return fmt.Errorf("position %d: unterminated string", start)
}

var twoCharOps = []string{"==", "!=", "<=", ">=", "&&", "||"}

func (l *lexer) lexOp() error {
	rest := l.src[l.pos:]
	for _, op := range twoCharOps {
		if strings.HasPrefix(rest, op) {
			l.emit(tokOp, op)
			l.pos += 2
			return nil
		}
	}
	c := l.src[l.pos]
	switch c {
	case '+', '-', '*', '/', '%', '<', '>', '!', '=', '(', ')', ',':
		l.emit(tokOp, string(c))
		l.pos++
		return nil
	}
	return fmt.Errorf("position %d: unexpected character %q", l.pos, string(c))
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// --- AST ---

type expr interface{}

type literalExpr struct{ val Value }

type varExpr struct{ name string }

type unaryExpr struct {
	op      string
	operand expr
}

type binaryExpr struct {
	op       string
	lhs, rhs expr
}

type callExpr struct {
	name string
	args []expr
}

// --- parser ---

type parser struct {
	lex *lexer
	pos int
}

func (p *parser) parseProgram() ([]stmt, error) {
	if err := p.lex.lex(); err != nil {
		return nil, err
	}
	var stmts []stmt
	for {
		p.skipNewlines()
		if p.peek().kind == tokEOF {
			break
		}
		s, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
		if t := p.peek(); t.kind != tokNewline && t.kind != tokEOF {
			return nil, fmt.Errorf("position %d: unexpected %q after statement", t.pos, t.text)
		}
	}
	if len(stmts) == 0 {
		return nil, fmt.Errorf("empty script")
	}
	return stmts, nil
}

func (p *parser) parseStatement() (stmt, error) {
	// Lookahead for "ident =" (but not "ident ==").
	if p.peek().kind == tokIdent && p.peekAt(1).kind == tokOp && p.peekAt(1).text == "=" {
		name := p.next().text
		p.next() // '='
		e, err := p.parseOr()
		if err != nil {
			return stmt{}, err
		}
		return stmt{assign: name, expr: e}, nil
	}
	e, err := p.parseOr()
	if err != nil {
		return stmt{}, err
	}
	return stmt{expr: e}, nil
}

func (p *parser) parseOr() (expr, error) {
	lhs, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.acceptOp("||") {
		rhs, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		lhs = &binaryExpr{op: "||", lhs: lhs, rhs: rhs}
	}
	return lhs, nil
}

func (p *parser) parseAnd() (expr, error) {
	lhs, err := p.parseCmp()
	if err != nil {
		return nil, err
	}
	for p.acceptOp("&&") {
		rhs, err := p.parseCmp()
		if err != nil {
			return nil, err
		}
		lhs = &binaryExpr{op: "&&", lhs: lhs, rhs: rhs}
	}
	return lhs, nil
}

var cmpOps = []string{"==", "!=", "<=", ">=", "<", ">"}

func (p *parser) parseCmp() (expr, error) {
	lhs, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	for _, op := range cmpOps {
		if p.acceptOp(op) {
			rhs, err := p.parseAdd()
			if err != nil {
				return nil, err
			}
			return &binaryExpr{op: op, lhs: lhs, rhs: rhs}, nil
		}
	}
	return lhs, nil
}

func (p *parser) parseAdd() (expr, error) {
	lhs, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch {
		case p.acceptOp("+"):
			op = "+"
		case p.acceptOp("-"):
			op = "-"
		default:
			return lhs, nil
		}
		rhs, err := p.parseMul()
		if err != nil {
			return nil, err
		}
		lhs = &binaryExpr{op: op, lhs: lhs, rhs: rhs}
	}
}

func (p *parser) parseMul() (expr, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch {
		case p.acceptOp("*"):
			op = "*"
		case p.acceptOp("/"):
			op = "/"
		case p.acceptOp("%"):
			op = "%"
		default:
			return lhs, nil
		}
		rhs, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		lhs = &binaryExpr{op: op, lhs: lhs, rhs: rhs}
	}
}

func (p *parser) parseUnary() (expr, error) {
	if p.acceptOp("!") {
		e, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryExpr{op: "!", operand: e}, nil
	}
	if p.acceptOp("-") {
		e, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryExpr{op: "-", operand: e}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (expr, error) {
	t := p.peek()
	switch t.kind {
	case tokNumber:
		p.next()
		var n float64
		if strings.HasPrefix(t.text, "0x") || strings.HasPrefix(t.text, "0X") {
			u, err := strconv.ParseUint(t.text[2:], 16, 64)
			if err != nil {
				return nil, fmt.Errorf("position %d: bad hex literal %q", t.pos, t.text)
			}
			n = float64(u)
		} else {
			var err error
			n, err = strconv.ParseFloat(t.text, 64)
			if err != nil {
				return nil, fmt.Errorf("position %d: bad number %q", t.pos, t.text)
			}
		}
		return &literalExpr{val: NumVal(n)}, nil
	case tokString:
		p.next()
		return &literalExpr{val: StrVal(t.text)}, nil
	case tokIdent:
		p.next()
		switch t.text {
		case "true":
			return &literalExpr{val: BoolVal(true)}, nil
		case "false":
			return &literalExpr{val: BoolVal(false)}, nil
		}
		if p.acceptOp("(") {
			var args []expr
			if !p.acceptOp(")") {
				for {
					arg, err := p.parseOr()
					if err != nil {
						return nil, err
					}
					args = append(args, arg)
					if p.acceptOp(")") {
						break
					}
					if !p.acceptOp(",") {
						return nil, fmt.Errorf("position %d: expected ',' or ')' in call to %s", p.peek().pos, t.text)
					}
				}
			}
			return &callExpr{name: t.text, args: args}, nil
		}
		return &varExpr{name: t.text}, nil
	}
	if t.kind == tokOp && t.text == "(" {
		p.next()
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.acceptOp(")") {
			return nil, fmt.Errorf("position %d: expected ')'", p.peek().pos)
		}
		return e, nil
	}
	return nil, fmt.Errorf("position %d: unexpected %q", t.pos, t.text)
}

func (p *parser) peek() token { return p.peekAt(0) }

func (p *parser) peekAt(n int) token {
	if p.pos+n >= len(p.lex.toks) {
		return token{kind: tokEOF}
	}
	return p.lex.toks[p.pos+n]
}

func (p *parser) next() token {
	t := p.peek()
	if p.pos < len(p.lex.toks) {
		p.pos++
	}
	return t
}

func (p *parser) acceptOp(op string) bool {
	t := p.peek()
	if t.kind == tokOp && t.text == op {
		p.pos++
		return true
	}
	return false
}

func (p *parser) skipNewlines() {
	for p.peek().kind == tokNewline {
		p.pos++
	}
}
