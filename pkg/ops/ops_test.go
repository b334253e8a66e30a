package ops

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	table := Standard()
	tests := []struct {
		lexeme string
		want   Info
	}{
		{"*", Info{"*", Binary | UnaryPre, 18}},
		{"+", Info{"+", Binary | UnaryPre, 17}},
		{"<<=", Info{"<<=", Binary, 6}},
		{"++", Info{"++", Unary, 20}},
		{"sizeof", Info{"sizeof", UnaryPre, 19}},
		{"compl", Info{"compl", UnaryPre, 19}},
		{",", Info{",", Binary, 4}},
		{"(", Info{"(", Binary, 0}},
	}
	for _, tt := range tests {
		got, ok := table.Lookup(tt.lexeme)
		require.True(t, ok, tt.lexeme)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("Lookup(%q) mismatch (-want +got):\n%s", tt.lexeme, diff)
		}
	}

	_, ok := table.Lookup("**")
	require.False(t, ok)
}

func TestMatch(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"<<=x", "<<="},
		{"<<x", "<<"},
		{"<=x", "<="},
		{"<x", "<"},
		{"**p", "*"},
		{"&&", "&&"},
		{"->", "-"},
		{"==", "=="},
		{"=", "="},
		{"!=", "!="},
		{"^^", "^^"},
	}
	for _, tt := range tests {
		info, ok := Standard().Match([]rune(tt.src), 0)
		require.True(t, ok, tt.src)
		require.Equal(t, tt.want, info.Lexeme, tt.src)
	}

	_, ok := Standard().Match([]rune("@"), 0)
	require.False(t, ok)
	_, ok = Standard().Match([]rune("sizeof"), 0)
	require.False(t, ok, "word operators are matched by the lexer as identifiers")
}

func TestMatchRegistered(t *testing.T) {
	table := Standard().Clone()
	require.NoError(t, table.Register("<=>", Binary, 15))
	require.NoError(t, table.Register("<>", Binary, 15))
	require.NoError(t, table.Register("@", Binary, 10))

	for src, want := range map[string]string{
		"<=>x": "<=>",
		"<>x":  "<>",
		"<=x":  "<=",
		"<<=":  "<<=",
		"@x":   "@",
	} {
		info, ok := table.Match([]rune(src), 0)
		require.True(t, ok, src)
		require.Equal(t, want, info.Lexeme, src)
	}

	info, ok := Standard().Match([]rune("<>x"), 0)
	require.True(t, ok)
	require.Equal(t, "<", info.Lexeme)
}

func TestRegister(t *testing.T) {
	require.True(t, errors.Is(Standard().Register("mystery", Binary, 10), ErrFrozen))

	table := Standard().Clone()
	require.NoError(t, table.Register("mystery", Binary, 10))
	require.NoError(t, table.Register("<=>", Binary, 15))

	info, ok := table.Lookup("mystery")
	require.True(t, ok)
	require.Equal(t, 10, info.Prec)

	_, ok = Standard().Lookup("mystery")
	require.False(t, ok, "clones do not leak into the standard table")

	require.Error(t, table.Register("(", Binary, 3))
	require.Error(t, table.Register("<<<=", Binary, 3))
	require.Error(t, table.Register("op", Binary, 0))
	require.Error(t, table.Register("op", Binary, PrefixPrec))
	require.Error(t, table.Register("op", 0, 5))
}

func TestInitResets(t *testing.T) {
	table := NewTable()
	require.NoError(t, table.Register("mystery", Binary, 10))
	table.Init()
	_, ok := table.Lookup("mystery")
	require.False(t, ok)
	require.Equal(t, len(Standard().All()), len(table.All()))
}

func TestAllOrder(t *testing.T) {
	all := Standard().All()
	for i := 1; i < len(all); i++ {
		require.GreaterOrEqual(t, all[i-1].Prec, all[i].Prec)
	}
	require.Equal(t, "++", all[0].Lexeme)
}

func TestFixityString(t *testing.T) {
	require.Equal(t, "binary", Binary.String())
	require.Equal(t, "prefix|postfix", Unary.String())
	require.Equal(t, "binary|prefix", (Binary | UnaryPre).String())
}
