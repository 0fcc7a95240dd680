package parser

import "fmt"

// TokenType identifies the category of a lexed token.
type TokenType int

const (
	EOF TokenType = iota // sentinel: end of input

	// Literals
	IDENTIFIER // variable / function name
	INTEGER    // decimal or hex integer literal, char literals included
	STRING     // string literal "...", kept with its quotes and escapes
	ASM        // "@" line of inline assembly

	// Keywords
	FUNC     // "func"
	RET      // "ret"
	LET      // "let"
	STATIC   // "static"
	IF       // "if"
	ELSE     // "else"
	LOOP     // "loop"
	BREAK    // "break"
	CONTINUE // "continue"
	EXIT     // "exit"
	PRINT    // "print"

	// Paired delimiters
	LBRACE   // {
	RBRACE   // }
	LPAREN   // (
	RPAREN   // )
	LBRACKET // [
	RBRACKET // ]

	// Punctuation
	SEMICOLON // ;
	COMMA     // ,
	COLON     // :

	// Operators
	PLUS     // +
	MINUS    // -
	STAR     // *
	SLASH    // /
	ASSIGN   // =
	EQUALS   // ==
	NOT_EQ   // !=
	LESS     // <
	GREATER  // >
	LESS_EQ  // <=
	GREAT_EQ // >=
)

var tokenNames = map[TokenType]string{
	EOF:        "EOF",
	IDENTIFIER: "IDENTIFIER",
	INTEGER:    "INTEGER",
	STRING:     "STRING",
	ASM:        "ASM",
	FUNC:       "func",
	RET:        "ret",
	LET:        "let",
	STATIC:     "static",
	IF:         "if",
	ELSE:       "else",
	LOOP:       "loop",
	BREAK:      "break",
	CONTINUE:   "continue",
	EXIT:       "exit",
	PRINT:      "print",
	LBRACE:     "{",
	RBRACE:     "}",
	LPAREN:     "(",
	RPAREN:     ")",
	LBRACKET:   "[",
	RBRACKET:   "]",
	SEMICOLON:  ";",
	COMMA:      ",",
	COLON:      ":",
	PLUS:       "+",
	MINUS:      "-",
	STAR:       "*",
	SLASH:      "/",
	ASSIGN:     "=",
	EQUALS:     "==",
	NOT_EQ:     "!=",
	LESS:       "<",
	GREATER:    ">",
	LESS_EQ:    "<=",
	GREAT_EQ:   ">=",
}

func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// Token is a single lexical unit with its source line.
type Token struct {
	Type   TokenType
	Lexeme string
	Line   int
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%d", t.Type, t.Lexeme, t.Line)
}
