package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/cxxwrap/internal/codegen/lexer"
)

func texts(toks []lexer.Token) []string {
	out := make([]string, 0, len(toks))
	for _, t := range toks {
		if t.Kind == lexer.EOF {
			continue
		}
		out = append(out, t.Text)
	}
	return out
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			name: "prototype",
			src:  "int add(int a, int b);",
			want: []string{"int", "add", "(", "int", "a", ",", "int", "b", ")", ";"},
		},
		{
			name: "nested template closes one bracket at a time",
			src:  "std::vector<std::vector<int>> v;",
			want: []string{"std", "::", "vector", "<", "std", "::", "vector", "<", "int", ">", ">", "v", ";"},
		},
		{
			name: "comments are dropped",
			src:  "int /* inline */ x; // trailing",
			want: []string{"int", "x", ";"},
		},
		{
			name: "numbers",
			src:  "1.5e-3f 0x1Fp+2 1'000 0xFF-1",
			want: []string{"1.5e-3f", "0x1Fp+2", "1'000", "0xFF", "-", "1"},
		},
		{
			name: "string literals",
			src:  `f(u8"a\"b", L'x', R"x(a)b)x");`,
			want: []string{"f", "(", `u8"a\"b"`, ",", "L'x'", ",", `R"x(a)b)x"`, ")", ";"},
		},
		{
			name: "multi-character punctuation",
			src:  "a->b && c != d ... ::e",
			want: []string{"a", "->", "b", "&&", "c", "!=", "d", "...", "::", "e"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, err := lexer.Tokenize(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, texts(toks))
			assert.Equal(t, lexer.EOF, toks[len(toks)-1].Kind)
		})
	}
}

func TestDocComments(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{name: "triple slash", src: "/// Adds two ints.\nint add();", want: "Adds two ints."},
		{name: "bang", src: "//! Bang doc\nint add();", want: "Bang doc"},
		{name: "block", src: "/** Multi\n * line */\nvoid f();", want: "Multi\nline"},
		{name: "consecutive lines", src: "/// one\n/// two\nint x;", want: "one\ntwo"},
		{name: "plain comment", src: "// not doc\nint x;", want: ""},
		{name: "plain block", src: "/* not doc */ int x;", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, err := lexer.Tokenize(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, toks[0].Doc)
		})
	}
}

func TestDirectives(t *testing.T) {
	toks, err := lexer.Tokenize("#define FOO 1 // c\n#define LONG \\\n  2\nint x;")
	require.NoError(t, err)

	require.Equal(t, lexer.Directive, toks[0].Kind)
	assert.Equal(t, "#define FOO 1", toks[0].Text)
	assert.Equal(t, "define", lexer.DirectiveName(toks[0].Text))
	assert.Equal(t, "FOO 1", lexer.DirectiveBody(toks[0].Text))

	require.Equal(t, lexer.Directive, toks[1].Kind)
	assert.Contains(t, toks[1].Text, "LONG")
	assert.Contains(t, toks[1].Text, "2")

	assert.Equal(t, "int", toks[2].Text)
	assert.True(t, toks[2].Newline)
}

func TestNewlineFlag(t *testing.T) {
	toks, err := lexer.Tokenize("int a;\nint b;")
	require.NoError(t, err)
	assert.True(t, toks[0].Newline)
	assert.False(t, toks[1].Newline)
	assert.True(t, toks[3].Newline)
	assert.Equal(t, lexer.Pos{Line: 2, Column: 1}, toks[3].Pos)
}

func TestTokenizeErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		pos  lexer.Pos
		msg  string
	}{
		{name: "unclosed paren", src: "int f(;", pos: lexer.Pos{Line: 1, Column: 6}, msg: `unclosed "("`},
		{name: "mismatched bracket", src: "int f(int a];", pos: lexer.Pos{Line: 1, Column: 12}, msg: "mismatched"},
		{name: "stray brace", src: "}", pos: lexer.Pos{Line: 1, Column: 1}, msg: "unexpected"},
		{name: "unterminated comment", src: "int x; /* open", pos: lexer.Pos{Line: 1, Column: 8}, msg: "unterminated block comment"},
		{name: "unterminated string", src: "\n\"abc", pos: lexer.Pos{Line: 2, Column: 1}, msg: "unterminated string literal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := lexer.Tokenize(tt.src)
			require.Error(t, err)
			var lerr *lexer.Error
			require.ErrorAs(t, err, &lerr)
			assert.Equal(t, tt.pos, lerr.Pos)
			assert.Contains(t, lerr.Msg, tt.msg)
		})
	}
}
