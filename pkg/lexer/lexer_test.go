package lexer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/xplshn/typeof/pkg/config"
	"github.com/xplshn/typeof/pkg/token"
)

type tok struct {
	Type  token.Type
	Value string
}

func lex(t *testing.T, std, src string) ([]tok, *Lexer) {
	t.Helper()
	cfg := config.NewConfig()
	require.NoError(t, cfg.ApplyStd(std))
	l := NewLexer([]rune(src), 0, cfg, nil)
	var out []tok
	for _, tk := range l.Tokenize() {
		out = append(out, tok{tk.Type, tk.Value})
	}
	return out, l
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		std  string
		src  string
		want []tok
	}{
		{"binary", "EDL", "a+b*c", []tok{
			{token.Ident, "a"}, {token.Operator, "+"}, {token.Ident, "b"}, {token.Operator, "*"}, {token.Ident, "c"},
		}},
		{"numbers", "EDL", "1 0x1F 1.5 .5 1e-3 2.0f 10ul", []tok{
			{token.Number, "1"}, {token.Number, "0x1F"}, {token.FloatNumber, "1.5"}, {token.FloatNumber, ".5"},
			{token.FloatNumber, "1e-3"}, {token.FloatNumber, "2.0f"}, {token.Number, "10ul"},
		}},
		{"accessor dot", "EDL", "1.x", []tok{
			{token.Number, "1"}, {token.Dot, "."}, {token.Ident, "x"},
		}},
		{"decimal dot in C", "C", "1.x", []tok{
			{token.FloatNumber, "1."}, {token.Ident, "x"},
		}},
		{"word operators", "EDL", "sizeof new delete compl x", []tok{
			{token.Operator, "sizeof"}, {token.Operator, "new"}, {token.Operator, "delete"},
			{token.Operator, "compl"}, {token.Ident, "x"},
		}},
		{"member access", "EDL", "p->x.y", []tok{
			{token.Ident, "p"}, {token.Arrow, "->"}, {token.Ident, "x"}, {token.Dot, "."}, {token.Ident, "y"},
		}},
		{"qualified", "EDL", "ns::T::x", []tok{{token.Ident, "ns::T::x"}}},
		{"longest match", "EDL", "a<<=b**c", []tok{
			{token.Ident, "a"}, {token.Operator, "<<="}, {token.Ident, "b"},
			{token.Operator, "*"}, {token.Operator, "*"}, {token.Ident, "c"},
		}},
		{"postfix minus", "EDL", "i-- -1", []tok{
			{token.Ident, "i"}, {token.Operator, "--"}, {token.Operator, "-"}, {token.Number, "1"},
		}},
		{"brackets", "EDL", "f(a)[0]", []tok{
			{token.Ident, "f"}, {token.Operator, "("}, {token.Ident, "a"}, {token.Operator, ")"},
			{token.Operator, "["}, {token.Number, "0"}, {token.Operator, "]"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := lex(t, tt.std, tt.src)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Tokenize(%q) mismatch (-want +got):\n%s", tt.src, diff)
			}
		})
	}
}

func TestQualifiedWithoutMemberAccess(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatMemberAccess, false)
	l := NewLexer([]rune("ns::x"), 0, cfg, nil)
	toks := l.Tokenize()
	require.Len(t, toks, 4)
	require.Equal(t, "ns", toks[0].Value)
	require.Equal(t, ":", toks[1].Value)
}

func TestStray(t *testing.T) {
	got, l := lex(t, "EDL", "a @ b $")
	require.Equal(t, []tok{{token.Ident, "a"}, {token.Ident, "b"}}, got)
	require.Len(t, l.Stray, 2)
	require.Equal(t, "@", l.Stray[0].Value)
	require.Equal(t, 3, l.Stray[0].Column)
	require.Equal(t, "$", l.Stray[1].Value)
}

func TestPositions(t *testing.T) {
	cfg := config.NewConfig()
	l := NewLexer([]rune("a +\n  bb"), 2, cfg, nil)
	toks := l.Tokenize()
	require.Len(t, toks, 3)

	last := toks[2]
	require.Equal(t, 2, last.FileIndex)
	require.Equal(t, 2, last.Line)
	require.Equal(t, 3, last.Column)
	require.Equal(t, 2, last.Len)
}
