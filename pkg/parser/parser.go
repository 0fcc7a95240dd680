// Package parser is the reference frontend: it reads juc source and produces
// the flat element sequence the compiler lowers.
package parser

import (
	"fmt"
	"strings"

	"juc/pkg/lang"
)

// Parser consumes the flat token slice produced by the Lexer and emits
// elements.
//
// Grammar:
//
//	program    = statement* EOF
//	statement  = funcDecl | varDecl | assignment | returnStmt | block | if | loop
//	           | "break" | "continue" | exitStmt | printStmt | ASM | expression
//	funcDecl   = "func" IDENTIFIER "(" (param ("," param)*)? ")" (":" type)? block
//	param      = IDENTIFIER ":" type
//	varDecl    = ("let" | "static") IDENTIFIER ":" type ("=" (expression | arrayLit))?
//	assignment = lvalue "=" (expression | arrayLit)
//	returnStmt = "ret" expression?        value on the same line only
//	if         = "if" expression block ("else" (block | if))?
//	loop       = "loop" expression? block
//	exitStmt   = "exit" expression
//	printStmt  = "print" expression
//	expression = relational
//	relational = additive (("=="|"!="|"<"|">"|"<="|">=") additive)?
//	additive   = multiplicative (("+" | "-") multiplicative)*
//	multiplicative = unary (("*" | "/") unary)*
//	unary      = "-" unary | primary
//	primary    = INTEGER | STRING | IDENTIFIER ("[" INTEGER "]" | "(" args ")")? | "(" expression ")"
//	type       = IDENTIFIER ("[" INTEGER? "]")?
//
// Statements may be separated by ";".
type Parser struct {
	tokens      []Token
	pos         int
	sourceLines []string
}

func NewParser(tokens []Token, rawSource string) *Parser {
	return &Parser{tokens: tokens, sourceLines: strings.Split(rawSource, "\n")}
}

// fmtError wraps an error message with the source line where the token appears.
func (p *Parser) fmtError(tok Token, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	lineIdx := tok.Line - 1

	snippet := "<source unavailable>"
	if lineIdx >= 0 && lineIdx < len(p.sourceLines) {
		snippet = strings.TrimSpace(p.sourceLines[lineIdx])
	}
	return fmt.Errorf("line %d: %s\n  |> %s", tok.Line, msg, snippet)
}

// peek returns the current token without consuming it.
func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: EOF}
	}
	return p.tokens[p.pos]
}

// advance consumes and returns the current token.
func (p *Parser) advance() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

// expect consumes the current token if it matches tt, otherwise returns an error.
func (p *Parser) expect(tt TokenType) (Token, error) {
	tok := p.advance()
	if tok.Type != tt {
		return tok, p.fmtError(tok, "expected %s, got %s (%q)", tt, tok.Type, tok.Lexeme)
	}
	return tok, nil
}

var comparisons = map[TokenType]lang.TokenKind{
	EQUALS:   lang.Equal,
	NOT_EQ:   lang.NotEqual,
	LESS:     lang.Less,
	GREATER:  lang.Greater,
	LESS_EQ:  lang.LessEqual,
	GREAT_EQ: lang.GreaterEqual,
}

func (p *Parser) parseExpression() (expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if k, ok := comparisons[p.peek().Type]; ok {
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &binary{op: k, left: left, right: right}
	}
	return left, nil
}

func (p *Parser) parseAdditive() (expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == PLUS || p.peek().Type == MINUS {
		k := lang.Plus
		if p.advance().Type == MINUS {
			k = lang.Minus
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &binary{op: k, left: left, right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == STAR || p.peek().Type == SLASH {
		k := lang.Multiply
		if p.advance().Type == SLASH {
			k = lang.Divide
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binary{op: k, left: left, right: right}
	}
	return left, nil
}

// parseUnary folds a minus on a literal into the literal and lowers any other
// negation to 0 - x.
func (p *Parser) parseUnary() (expr, error) {
	if p.peek().Type != MINUS {
		return p.parsePrimary()
	}
	p.advance()
	if p.peek().Type == INTEGER {
		return &leaf{text: "-" + p.advance().Lexeme}, nil
	}
	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &binary{op: lang.Minus, left: &leaf{text: "0"}, right: operand}, nil
}

func (p *Parser) parsePrimary() (expr, error) {
	tok := p.advance()
	switch tok.Type {
	case INTEGER, STRING:
		return &leaf{text: tok.Lexeme}, nil
	case LPAREN:
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		return e, nil
	case IDENTIFIER:
		switch p.peek().Type {
		case LPAREN:
			args, err := p.parseCallArgs()
			if err != nil {
				return nil, err
			}
			return &call{name: tok.Lexeme, args: args}, nil
		case LBRACKET:
			p.advance()
			idx, err := p.expect(INTEGER)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(RBRACKET); err != nil {
				return nil, err
			}
			return &leaf{text: fmt.Sprintf("%s[%s]", tok.Lexeme, idx.Lexeme)}, nil
		}
		return &leaf{text: tok.Lexeme}, nil
	}
	return nil, p.fmtError(tok, "unexpected %s (%q) in expression", tok.Type, tok.Lexeme)
}

// parseCallArgs parses "(" args ")".
func (p *Parser) parseCallArgs() ([]expr, error) {
	p.advance() // consume (
	var args []expr
	if p.peek().Type != RPAREN {
		for {
			arg, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().Type != COMMA {
				break
			}
			p.advance()
		}
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return args, nil
}

// parseArrayLit parses "[" literal ("," literal)* "]".
func (p *Parser) parseArrayLit() (*lang.Array, error) {
	p.advance() // consume [
	arr := &lang.Array{}
	for p.peek().Type != RBRACKET {
		e, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		l, ok := e.(*leaf)
		if !ok || lang.Classify(lang.Lit(l.text)) != lang.Value {
			return nil, p.fmtError(p.peek(), "array literal values must be literals")
		}
		arr.Values = append(arr.Values, lang.Lit(l.text))
		if p.peek().Type != COMMA {
			break
		}
		p.advance()
	}
	if _, err := p.expect(RBRACKET); err != nil {
		return nil, err
	}
	return arr, nil
}

func (p *Parser) parseType() (lang.Type, error) {
	tok, err := p.expect(IDENTIFIER)
	if err != nil {
		return lang.Type{}, err
	}
	spelled := tok.Lexeme
	if p.peek().Type == LBRACKET {
		p.advance()
		spelled += "["
		if p.peek().Type == INTEGER {
			spelled += p.advance().Lexeme
		}
		if _, err := p.expect(RBRACKET); err != nil {
			return lang.Type{}, err
		}
		spelled += "]"
	}
	typ, err := lang.ParseType(spelled)
	if err != nil {
		return lang.Type{}, p.fmtError(tok, "%v", err)
	}
	return typ, nil
}

// parseValue parses the right-hand side of a declaration or assignment and
// returns the token the carrying element holds plus the elements that follow
// it.
func (p *Parser) parseValue() (lang.Token, []lang.Element, error) {
	if p.peek().Type == LBRACKET {
		arr, err := p.parseArrayLit()
		if err != nil {
			return lang.Token{}, nil, err
		}
		return lang.Mark(lang.ArrayOpen), []lang.Element{arr}, nil
	}
	e, err := p.parseExpression()
	if err != nil {
		return lang.Token{}, nil, err
	}
	tok, rest := valueToken(e)
	return tok, rest, nil
}

func (p *Parser) parseVarDecl() ([]lang.Element, error) {
	static := p.advance().Type == STATIC
	name, err := p.expect(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(COLON); err != nil {
		return nil, err
	}
	typ, err := p.parseType()
	if err != nil {
		return nil, err
	}

	v := &lang.Variable{ID: name.Lexeme, Type: typ, Value: lang.NoValue, Static: static}
	if p.peek().Type != ASSIGN {
		if !static && !typ.IsArray() {
			v.Value = lang.Lit("0")
		}
		return []lang.Element{v}, nil
	}
	p.advance()
	tok, rest, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	v.Value = tok
	return append([]lang.Element{v}, rest...), nil
}

func (p *Parser) parseReturn() ([]lang.Element, error) {
	ret := p.advance()
	next := p.peek()
	if next.Line != ret.Line || next.Type == RBRACE || next.Type == SEMICOLON || next.Type == EOF {
		return []lang.Element{&lang.Return{Value: lang.NoValue}}, nil
	}
	e, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	tok, rest := valueToken(e)
	return append([]lang.Element{&lang.Return{Value: tok}}, rest...), nil
}

// parseBlock parses "{" statement* "}" into a bracketed range.
func (p *Parser) parseBlock() ([]lang.Element, error) {
	if _, err := p.expect(LBRACE); err != nil {
		return nil, err
	}
	out := []lang.Element{open()}
	for {
		for p.peek().Type == SEMICOLON {
			p.advance()
		}
		if p.peek().Type == RBRACE {
			break
		}
		if p.peek().Type == EOF {
			return nil, p.fmtError(p.peek(), "unterminated block")
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		out = append(out, stmt...)
	}
	p.advance() // consume }
	return append(out, closing()), nil
}

func (p *Parser) parseIf() ([]lang.Element, error) {
	p.advance() // consume if
	test, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	out := append([]lang.Element{mark(lang.KwIf)}, flatten(test)...)
	out = append(out, body...)
	if p.peek().Type != ELSE {
		return out, nil
	}
	p.advance()
	out = append(out, mark(lang.KwElse))
	if p.peek().Type == IF {
		nested, err := p.parseIf()
		if err != nil {
			return nil, err
		}
		out = append(out, open())
		out = append(out, nested...)
		return append(out, closing()), nil
	}
	elseBody, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return append(out, elseBody...), nil
}

func (p *Parser) parseLoop() ([]lang.Element, error) {
	p.advance() // consume loop
	out := []lang.Element{mark(lang.KwLoop)}
	if p.peek().Type == LBRACE {
		// a block after the loop must not be taken for its body
		out = append(out, mark(lang.None))
	} else {
		test, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		out = append(out, flatten(test)...)
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return append(out, body...), nil
}

func (p *Parser) parseFunctionDecl() ([]lang.Element, error) {
	p.advance() // consume func
	name, err := p.expect(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	fn := &lang.Function{ID: name.Lexeme}
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	for p.peek().Type != RPAREN {
		param, err := p.expect(IDENTIFIER)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(COLON); err != nil {
			return nil, err
		}
		typ, err := p.parseType()
		if err != nil {
			return nil, err
		}
		fn.Params = append(fn.Params, lang.Variable{ID: param.Lexeme, Type: typ})
		if p.peek().Type != COMMA {
			break
		}
		p.advance()
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	if p.peek().Type == COLON {
		p.advance()
		typ, err := p.parseType()
		if err != nil {
			return nil, err
		}
		fn.ReturnType = typ.String()
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return append([]lang.Element{fn}, body...), nil
}

// parseValueStmt parses the operand of exit and print.
func (p *Parser) parseValueStmt(k lang.TokenKind) ([]lang.Element, error) {
	p.advance()
	e, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return append([]lang.Element{mark(k)}, flatten(e)...), nil
}

func (p *Parser) parseStatement() ([]lang.Element, error) {
	for p.peek().Type == SEMICOLON {
		p.advance()
	}
	tok := p.peek()
	switch tok.Type {
	case FUNC:
		return p.parseFunctionDecl()
	case LET, STATIC:
		return p.parseVarDecl()
	case RET:
		return p.parseReturn()
	case LBRACE:
		return p.parseBlock()
	case IF:
		return p.parseIf()
	case LOOP:
		return p.parseLoop()
	case BREAK:
		p.advance()
		return []lang.Element{mark(lang.KwBreak)}, nil
	case CONTINUE:
		p.advance()
		return []lang.Element{mark(lang.KwContinue)}, nil
	case EXIT:
		return p.parseValueStmt(lang.KwExit)
	case PRINT:
		return p.parseValueStmt(lang.KwPrint)
	case ASM:
		p.advance()
		return []lang.Element{&lang.Assembly{Code: tok.Lexeme}}, nil
	case ELSE:
		return nil, p.fmtError(tok, "else without if")
	}

	e, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if p.peek().Type != ASSIGN {
		return flatten(e), nil
	}
	target, ok := e.(*leaf)
	if !ok || lang.Classify(lang.Lit(target.text)) != lang.Identifier {
		return nil, p.fmtError(tok, "cannot assign to %s", e)
	}
	p.advance()
	value, rest, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	op := &lang.Operation{Operator: lang.Assign, Left: lang.Lit(target.text), Right: value}
	return append([]lang.Element{op}, rest...), nil
}

// Parse lexes and parses src into the element sequence of one file.
func Parse(src string) ([]lang.Element, error) {
	tokens, err := Lex(src)
	if err != nil {
		return nil, fmt.Errorf("lex error: %w", err)
	}
	p := NewParser(tokens, src)
	var out []lang.Element
	for {
		for p.peek().Type == SEMICOLON {
			p.advance()
		}
		if p.peek().Type == EOF {
			return out, nil
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		out = append(out, stmt...)
	}
}
