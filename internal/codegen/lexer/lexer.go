// Package lexer turns C++ source text into a token stream.
//
// The lexer is forgiving: it knows nothing about C++ grammar beyond literals, comments,
// punctuation and preprocessor lines. It does verify that (), [] and {} are balanced so the
// parser can skip bodies and initializers without re-checking them.
package lexer

import (
	"fmt"
	"strings"
)

// Multi-character punctuators, longest first. '>>' is deliberately absent so that nested
// template argument lists close one '>' at a time.
var puncts = []string{
	"<<=", "...", "->*",
	"::", "->", "&&", "||", "==", "!=", "<=", ">=", "+=", "-=", "*=", "/=", "%=",
	"&=", "|=", "^=", "++", "--", "<<", "##",
}

var stringPrefixes = map[string]bool{
	"L": true, "u": true, "U": true, "u8": true,
	"R": true, "LR": true, "uR": true, "UR": true, "u8R": true,
}

type lexer struct {
	src  string
	off  int
	line int
	col  int

	toks    []Token
	doc     []string
	newline bool
	stack   []Token
}

// Tokenize splits text into tokens. The returned slice always ends with an EOF token.
func Tokenize(text string) ([]Token, error) {
	l := &lexer{
		src:     strings.ReplaceAll(text, "\r\n", "\n"),
		line:    1,
		col:     1,
		newline: true,
	}
	if err := l.run(); err != nil {
		return nil, err
	}
	if len(l.stack) > 0 {
		open := l.stack[len(l.stack)-1]
		return nil, &Error{Pos: open.Pos, Msg: fmt.Sprintf("unclosed %q", open.Text)}
	}
	l.toks = append(l.toks, Token{Kind: EOF, Pos: l.pos(), Newline: true})
	return l.toks, nil
}

func (l *lexer) pos() Pos { return Pos{Line: l.line, Column: l.col} }

func (l *lexer) peek(n int) byte {
	if l.off+n < len(l.src) {
		return l.src[l.off+n]
	}
	return 0
}

func (l *lexer) advance(n int) {
	for i := 0; i < n && l.off < len(l.src); i++ {
		if l.src[l.off] == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
		l.off++
	}
}

func (l *lexer) emit(kind Kind, text string, pos Pos) {
	tok := Token{Kind: kind, Text: text, Pos: pos, Newline: l.newline}
	if len(l.doc) > 0 {
		tok.Doc = strings.Join(l.doc, "\n")
		l.doc = nil
	}
	l.newline = false
	l.toks = append(l.toks, tok)
}

func (l *lexer) run() error {
	for l.off < len(l.src) {
		c := l.src[l.off]
		switch {
		case c == '\n':
			l.newline = true
			l.advance(1)
		case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
			l.advance(1)
		case c == '\\' && l.peek(1) == '\n':
			l.advance(2)
		case c == '/' && l.peek(1) == '/':
			l.lineComment()
		case c == '/' && l.peek(1) == '*':
			if err := l.blockComment(); err != nil {
				return err
			}
		case c == '#' && l.newline:
			l.directive()
		case isIdentStart(c):
			if err := l.ident(); err != nil {
				return err
			}
		case isDigit(c) || (c == '.' && isDigit(l.peek(1))):
			l.number()
		case c == '"':
			if err := l.quoted('"', String, l.pos(), l.off); err != nil {
				return err
			}
		case c == '\'':
			if err := l.quoted('\'', Char, l.pos(), l.off); err != nil {
				return err
			}
		default:
			if err := l.punct(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *lexer) lineComment() {
	start := l.off
	for l.off < len(l.src) && l.src[l.off] != '\n' {
		l.advance(1)
	}
	text := l.src[start:l.off]
	switch {
	case strings.HasPrefix(text, "///") && !strings.HasPrefix(text, "////"):
		l.doc = append(l.doc, strings.TrimSpace(strings.TrimPrefix(text, "///")))
	case strings.HasPrefix(text, "//!"):
		l.doc = append(l.doc, strings.TrimSpace(strings.TrimPrefix(text, "//!")))
	}
}

func (l *lexer) blockComment() error {
	pos := l.pos()
	start := l.off
	l.advance(2)
	for {
		if l.off >= len(l.src) {
			return &Error{Pos: pos, Msg: "unterminated block comment"}
		}
		if l.src[l.off] == '*' && l.peek(1) == '/' {
			l.advance(2)
			break
		}
		l.advance(1)
	}
	text := l.src[start:l.off]
	if (strings.HasPrefix(text, "/**") && text != "/**/") || strings.HasPrefix(text, "/*!") {
		if doc := cleanBlockDoc(text); doc != "" {
			l.doc = append(l.doc, doc)
		}
	}
	return nil
}

func cleanBlockDoc(text string) string {
	text = strings.TrimSuffix(text, "*/")
	text = strings.TrimPrefix(text, "/**")
	text = strings.TrimPrefix(text, "/*!")
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "*")
		lines = append(lines, strings.TrimSpace(line))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func (l *lexer) directive() {
	pos := l.pos()
	var b strings.Builder
	for l.off < len(l.src) {
		c := l.src[l.off]
		if c == '\\' && l.peek(1) == '\n' {
			b.WriteByte(' ')
			l.advance(2)
			continue
		}
		if c == '\n' {
			break
		}
		if c == '/' && l.peek(1) == '/' {
			for l.off < len(l.src) && l.src[l.off] != '\n' {
				l.advance(1)
			}
			break
		}
		b.WriteByte(c)
		l.advance(1)
	}
	l.doc = nil
	l.emit(Directive, strings.TrimSpace(b.String()), pos)
	l.newline = true
}

func (l *lexer) ident() error {
	pos := l.pos()
	start := l.off
	for l.off < len(l.src) && isIdentByte(l.src[l.off]) {
		l.advance(1)
	}
	text := l.src[start:l.off]
	if l.off < len(l.src) && stringPrefixes[text] {
		switch l.src[l.off] {
		case '"':
			if strings.HasSuffix(text, "R") {
				return l.rawString(pos, start)
			}
			return l.quoted('"', String, pos, start)
		case '\'':
			if !strings.HasSuffix(text, "R") {
				return l.quoted('\'', Char, pos, start)
			}
		}
	}
	l.emit(Ident, text, pos)
	return nil
}

func (l *lexer) number() {
	pos := l.pos()
	start := l.off
	for l.off < len(l.src) {
		c := l.src[l.off]
		switch {
		case isIdentByte(c) || c == '.':
			l.advance(1)
		case c == '\'' && isIdentByte(l.peek(1)):
			l.advance(1)
		case (c == '+' || c == '-') && l.off > start && strings.ContainsRune("eEpP", rune(l.src[l.off-1])) &&
			!isHexPrefixed(l.src[start:l.off]):
			l.advance(1)
		case (c == '+' || c == '-') && l.off > start && strings.ContainsRune("pP", rune(l.src[l.off-1])):
			l.advance(1)
		default:
			l.emit(Number, l.src[start:l.off], pos)
			return
		}
	}
	l.emit(Number, l.src[start:l.off], pos)
}

func isHexPrefixed(s string) bool {
	return strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")
}

// quoted scans a string or character literal whose opening quote is at l.off.
// start is the offset of any encoding prefix.
func (l *lexer) quoted(q byte, kind Kind, pos Pos, start int) error {
	l.advance(1)
	for {
		if l.off >= len(l.src) || l.src[l.off] == '\n' {
			return &Error{Pos: pos, Msg: "unterminated " + kind.String()}
		}
		c := l.src[l.off]
		if c == '\\' {
			l.advance(2)
			continue
		}
		l.advance(1)
		if c == q {
			break
		}
	}
	l.emit(kind, l.src[start:l.off], pos)
	return nil
}

func (l *lexer) rawString(pos Pos, start int) error {
	l.advance(1)
	open := strings.IndexByte(l.src[l.off:], '(')
	if open < 0 {
		return &Error{Pos: pos, Msg: "malformed raw string literal"}
	}
	delim := l.src[l.off : l.off+open]
	l.advance(open + 1)
	end := strings.Index(l.src[l.off:], ")"+delim+"\"")
	if end < 0 {
		return &Error{Pos: pos, Msg: "unterminated raw string literal"}
	}
	l.advance(end + len(delim) + 2)
	l.emit(String, l.src[start:l.off], pos)
	return nil
}

func (l *lexer) punct() error {
	pos := l.pos()
	rest := l.src[l.off:]
	for _, p := range puncts {
		if strings.HasPrefix(rest, p) {
			l.advance(len(p))
			l.emit(Punct, p, pos)
			return nil
		}
	}
	c := l.src[l.off]
	l.advance(1)
	tok := string(c)
	switch c {
	case '(', '[', '{':
		l.stack = append(l.stack, Token{Kind: Punct, Text: tok, Pos: pos})
	case ')', ']', '}':
		if len(l.stack) == 0 {
			return &Error{Pos: pos, Msg: fmt.Sprintf("unexpected %q", tok)}
		}
		open := l.stack[len(l.stack)-1]
		if closerOf(open.Text) != tok {
			return &Error{Pos: pos, Msg: fmt.Sprintf("mismatched %q (opened %q at %s)", tok, open.Text, open.Pos)}
		}
		l.stack = l.stack[:len(l.stack)-1]
	}
	l.emit(Punct, tok, pos)
	return nil
}

func closerOf(open string) string {
	switch open {
	case "(":
		return ")"
	case "[":
		return "]"
	case "{":
		return "}"
	}
	return ""
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentByte(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
