package parser

import (
	"fmt"
	"strings"
	"unicode"
)

// keywords maps source text to its keyword TokenType.
var keywords = map[string]TokenType{
	"func":     FUNC,
	"ret":      RET,
	"let":      LET,
	"static":   STATIC,
	"if":       IF,
	"else":     ELSE,
	"loop":     LOOP,
	"break":    BREAK,
	"continue": CONTINUE,
	"exit":     EXIT,
	"print":    PRINT,
}

// Lexer holds all mutable state for a single scanning pass over src.
type Lexer struct {
	src  []rune
	pos  int // index of the next rune to consume
	line int // current 1-based source line
}

func newLexer(src string) *Lexer {
	return &Lexer{src: []rune(src), line: 1}
}

// peek returns the rune at the current position without advancing.
func (l *Lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

// peek2 returns the rune one position ahead of the current position.
func (l *Lexer) peek2() rune {
	if l.pos+1 >= len(l.src) {
		return 0
	}
	return l.src[l.pos+1]
}

// advance consumes one rune and returns it.
func (l *Lexer) advance() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
	}
	return r
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.src) && unicode.IsSpace(l.peek()) {
		l.advance()
	}
}

// skipLineComment discards everything from the current position to end-of-line.
func (l *Lexer) skipLineComment() {
	for l.pos < len(l.src) && l.peek() != '\n' {
		l.advance()
	}
}

// scanIdent collects an identifier or keyword. Dots are allowed so that
// functions of other modules can be named, e.g. util.add.
func (l *Lexer) scanIdent() Token {
	line := l.line
	start := l.pos
	for l.pos < len(l.src) {
		r := l.peek()
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '.' {
			break
		}
		l.advance()
	}
	lexeme := string(l.src[start:l.pos])
	tt := IDENTIFIER
	if kw, ok := keywords[lexeme]; ok {
		tt = kw
	}
	return Token{Type: tt, Lexeme: lexeme, Line: line}
}

// scanInt collects a decimal or hex integer literal.
func (l *Lexer) scanInt() Token {
	line := l.line
	start := l.pos
	if l.peek() == '0' && (l.peek2() == 'x' || l.peek2() == 'X') {
		l.advance()
		l.advance()
		for l.pos < len(l.src) {
			r := l.peek()
			if !unicode.IsDigit(r) && (r < 'a' || r > 'f') && (r < 'A' || r > 'F') {
				break
			}
			l.advance()
		}
	} else {
		for l.pos < len(l.src) && unicode.IsDigit(l.peek()) {
			l.advance()
		}
	}
	return Token{Type: INTEGER, Lexeme: string(l.src[start:l.pos]), Line: line}
}

// scanChar collects a character literal 'c' and emits it as an INTEGER token
// holding its code.
func (l *Lexer) scanChar() (Token, error) {
	line := l.line
	l.advance() // consume opening '

	r := l.peek()
	if r == '\'' {
		return Token{}, fmt.Errorf("empty character literal on line %d", line)
	}
	val := r
	l.advance()
	if r == '\\' {
		next := l.advance()
		switch next {
		case 'n':
			val = '\n'
		case 'r':
			val = '\r'
		case 't':
			val = '\t'
		case '0':
			val = 0
		case '\\', '\'', '"':
			val = next
		default:
			return Token{}, fmt.Errorf("unknown escape sequence \\%c on line %d", next, line)
		}
	}
	if l.peek() != '\'' {
		return Token{}, fmt.Errorf("unterminated character literal on line %d", line)
	}
	l.advance() // consume closing '
	return Token{Type: INTEGER, Lexeme: fmt.Sprintf("%d", val), Line: line}, nil
}

// scanString collects a string literal. The lexeme keeps the quotes and
// escapes as written; the assembler decodes the escapes.
func (l *Lexer) scanString() (Token, error) {
	line := l.line
	start := l.pos
	l.advance() // consume opening "
	for {
		r := l.peek()
		switch {
		case l.pos >= len(l.src) || r == '\n':
			return Token{}, fmt.Errorf("unterminated string literal on line %d", line)
		case r == '"':
			l.advance()
			return Token{Type: STRING, Lexeme: string(l.src[start:l.pos]), Line: line}, nil
		case r == '\\':
			l.advance()
			switch next := l.peek(); next {
			case 'n', 't', 'r', '0', '"', '\\':
			default:
				return Token{}, fmt.Errorf("unknown escape sequence \\%c on line %d", next, line)
			}
		}
		l.advance()
	}
}

// scanAsm takes the rest of the line after '@' as one assembly line.
func (l *Lexer) scanAsm() Token {
	line := l.line
	l.advance() // consume @
	start := l.pos
	l.skipLineComment()
	return Token{Type: ASM, Lexeme: strings.TrimSpace(string(l.src[start:l.pos])), Line: line}
}

// nextToken skips whitespace/comments and returns the next Token.
func (l *Lexer) nextToken() (Token, error) {
	for {
		l.skipWhitespace()
		if l.pos >= len(l.src) {
			return Token{Type: EOF, Line: l.line}, nil
		}
		if l.peek() == '/' && l.peek2() == '/' {
			l.skipLineComment()
			continue
		}
		break
	}

	ch := l.peek()
	line := l.line
	switch {
	case unicode.IsLetter(ch) || ch == '_':
		return l.scanIdent(), nil
	case unicode.IsDigit(ch):
		return l.scanInt(), nil
	case ch == '\'':
		return l.scanChar()
	case ch == '"':
		return l.scanString()
	case ch == '@':
		return l.scanAsm(), nil
	}

	two := string([]rune{ch, l.peek2()})
	switch two {
	case "==", "!=", "<=", ">=":
		l.advance()
		l.advance()
		tt := map[string]TokenType{"==": EQUALS, "!=": NOT_EQ, "<=": LESS_EQ, ">=": GREAT_EQ}[two]
		return Token{Type: tt, Lexeme: two, Line: line}, nil
	}

	single := map[rune]TokenType{
		'{': LBRACE, '}': RBRACE, '(': LPAREN, ')': RPAREN, '[': LBRACKET, ']': RBRACKET,
		';': SEMICOLON, ',': COMMA, ':': COLON,
		'+': PLUS, '-': MINUS, '*': STAR, '/': SLASH, '=': ASSIGN, '<': LESS, '>': GREATER,
	}
	if tt, ok := single[ch]; ok {
		l.advance()
		return Token{Type: tt, Lexeme: string(ch), Line: line}, nil
	}
	return Token{}, fmt.Errorf("unexpected character %q on line %d", ch, line)
}

// Lex scans src into tokens, ending with EOF.
func Lex(src string) ([]Token, error) {
	l := newLexer(src)
	var tokens []Token
	for {
		tok, err := l.nextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens, nil
		}
	}
}
