package resolver_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/xplshn/typeof/pkg/config"
	"github.com/xplshn/typeof/pkg/ops"
	"github.com/xplshn/typeof/pkg/resolver"
	"github.com/xplshn/typeof/pkg/symtab"
	"github.com/xplshn/typeof/pkg/token"
)

const fixture = `{
  "types": [
    {"name": "A", "operators": [
      {"op": "+", "param": "B", "result": "S"},
      {"op": "+", "param": "M1", "result": "M2"}
    ]},
    {"name": "B", "operators": [{"op": "*", "param": "C", "result": "M1"}]},
    {"name": "C"},
    {"name": "M1"},
    {"name": "M2"},
    {"name": "S", "operators": [{"op": "*", "param": "C", "result": "P"}]},
    {"name": "P"},
    {"name": "Container", "args": [null, null]},
    {"name": "Vec", "size": 16,
      "members": [
        {"name": "x", "type": "float"},
        {"name": "data", "type": "int", "refs": "*"},
        {"name": "len", "type": "int", "refs": "()"},
        {"name": "count", "type": "int"}
      ],
      "operators": [
        {"op": "[]", "param": "int", "result": "float"},
        {"op": "()", "result": "int"}
      ]},
    {"name": "Iter", "operators": [
      {"op": "->", "result": "Vec", "refs": "*"},
      {"op": "*", "result": "Vec"}
    ]}
  ],
  "typedefs": [{"name": "IntPtr", "type": "int", "refs": "*"}],
  "vars": [
    {"name": "a", "type": "A"},
    {"name": "b", "type": "B"},
    {"name": "c", "type": "C"},
    {"name": "i", "type": "int"},
    {"name": "fl", "type": "float"},
    {"name": "p", "type": "int", "refs": "*"},
    {"name": "pp", "type": "int", "refs": "**"},
    {"name": "arr", "type": "int", "refs": "[4]"},
    {"name": "v", "type": "Vec"},
    {"name": "vp", "type": "Vec", "refs": "*"},
    {"name": "box", "type": "Container"},
    {"name": "ip", "type": "IntPtr"},
    {"name": "fp", "type": "int", "refs": "()*"},
    {"name": "it", "type": "Iter"}
  ],
  "funcs": [
    {"name": "f", "type": "int"},
    {"name": "g", "type": "int", "refs": "*"}
  ]
}`

type warning struct {
	kind config.Warning
	msg  string
}

type harness struct {
	cfg      *config.Config
	table    *symtab.Table
	warnings []warning
}

func newHarness(t *testing.T, std string) *harness {
	t.Helper()
	cfg := config.NewConfig()
	require.NoError(t, cfg.ApplyStd(std))
	table := symtab.NewTable(8)
	require.NoError(t, table.Load(strings.NewReader(fixture)))
	return &harness{cfg: cfg, table: table}
}

func (h *harness) resolver(opts ...resolver.Option) *resolver.Resolver {
	opts = append([]resolver.Option{resolver.WithWarnings(func(w config.Warning, _ token.Token, msg string) {
		h.warnings = append(h.warnings, warning{w, msg})
	})}, opts...)
	return resolver.New(h.cfg, h.table, opts...)
}

func (h *harness) typeOf(t *testing.T, expr string) string {
	t.Helper()
	node, err := h.resolver().Resolve(expr)
	require.NoError(t, err, expr)
	return resolver.Describe(node)
}

func TestResolve(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		// literals
		{"1", "int"},
		{"0x1F", "int"},
		{"10u", "int"},
		{"1.5", "float"},
		{".5", "float"},
		{"1e3", "float"},
		{"2.0f", "float"},

		// precedence and grouping
		{"a + b * c", "M2"},
		{"(a + b) * c", "P"},
		{"((a))", "A"},
		{"i + fl", "float"},
		{"fl * i", "float"},
		{"fl < i", "int"},
		{"i + i * i", "int"},
		{"i = i + 1", "int"},

		// unary operators
		{"*&i", "int"},
		{"&i", "int*"},
		{"*p", "int"},
		{"**pp", "int"},
		{"&p", "int**"},
		{"-fl", "float"},
		{"~i", "int"},
		{"compl i", "int"},
		{"!a", "int"},
		{"++i", "int"},
		{"i++", "int"},
		{"i--", "int"},
		{"*it", "Vec"},
		{"sizeof i", "int"},
		{"sizeof(Vec)", "int"},
		{"new Vec", "Vec*"},
		{"new Vec(1)", "Vec*"},
		{"new Vec()", "Vec*"},
		{"new Vec*", "Vec**"},
		{"new Vec[4]", "Vec*"},
		{"new int[4]", "int*"},
		{"sizeof(int*)", "int"},
		{"sizeof(Vec*)", "int"},
		{"sizeof(int) * 2", "int"},
		{"delete p", "void"},

		// casts
		{"(float)i", "float"},
		{"(int*)fl", "int*"},
		{"(int**)fl", "int**"},
		{"(IntPtr)i", "int*"},
		{"float(i)", "float"},
		{"(Vec)(a + b)", "Vec"},
		{"Vec()", "Vec"},
		{"int()", "int"},

		// calls and subscripts
		{"f()", "int"},
		{"f(1, 2)", "int"},
		{"g(i)", "int*"},
		{"*g(i)", "int"},
		{"fp(1)", "int"},
		{"v(1)", "int"},
		{"arr[0]", "int"},
		{"p[i]", "int"},
		{"pp[0]", "int*"},
		{"pp[0][1]", "int"},
		{"v[0]", "float"},
		{"arr", "int[4]"},

		// member access
		{"v.x", "float"},
		{"v.data", "int*"},
		{"*v.data", "int"},
		{"v.len()", "int"},
		{"vp->x", "float"},
		{"(*vp).x", "float"},
		{"it->x", "float"},
		{"Vec::count + 1", "int"},

		// typedefs and templates
		{"ip", "int*"},
		{"*ip", "int"},
		{"box", "Container<NULL,NULL>"},

		// sequence and conditional
		{"a, b", "A"},
		{"i ? a : b", "int"},
		{"c ? a : b", "C"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			h := newHarness(t, "EDL")
			require.Equal(t, tt.want, h.typeOf(t, tt.expr))
		})
	}
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		std  string
		expr string
		kind *resolver.ErrorKind
	}{
		{"EDL", "", resolver.ErrMalformedOperatorUse},
		{"EDL", "i +", resolver.ErrMalformedOperatorUse},
		{"EDL", "(i", resolver.ErrMalformedOperatorUse},
		{"EDL", "i)", resolver.ErrMalformedOperatorUse},
		{"EDL", "(i]", resolver.ErrMalformedOperatorUse},
		{"EDL", "i i", resolver.ErrMalformedOperatorUse},
		{"EDL", "&&i", resolver.ErrMalformedOperatorUse},
		{"EDL", "[0]", resolver.ErrMalformedOperatorUse},
		{"EDL", "()", resolver.ErrMalformedOperatorUse},
		{"EDL", "i + ()", resolver.ErrMalformedOperatorUse},
		{"EDL", "vp.x", resolver.ErrMalformedOperatorUse},
		{"EDL", "a B", resolver.ErrInvalidCastPosition},
		{"EDL", "i int", resolver.ErrInvalidCastPosition},
		{"EDL", "*i", resolver.ErrOverloadNotFound},
		{"EDL", "i()", resolver.ErrOverloadNotFound},
		{"EDL", "i[0]", resolver.ErrOverloadNotFound},
		{"EDL", "v->x", resolver.ErrOverloadNotFound},
		{"EDL", "v.nope", resolver.ErrUnknownMember},
		{"C", "undeclared", resolver.ErrUnknownIdentifier},
		{"C", "undeclared + 1", resolver.ErrUnknownIdentifier},
	}
	for _, tt := range tests {
		t.Run(tt.std+"/"+tt.expr, func(t *testing.T) {
			h := newHarness(t, tt.std)
			_, err := h.resolver().Resolve(tt.expr)
			require.Error(t, err)
			require.True(t, errors.Is(err, tt.kind), "got %v", err)

			var rerr *resolver.Error
			require.True(t, errors.As(err, &rerr))
			require.True(t, strings.HasPrefix(err.Error(), tt.kind.Code+": "))
		})
	}
}

func TestErrorPosition(t *testing.T) {
	h := newHarness(t, "EDL")
	_, err := h.resolver().Resolve("i + a B")

	var rerr *resolver.Error
	require.True(t, errors.As(err, &rerr))
	require.Equal(t, "B", rerr.Tok.Value)
	require.Equal(t, 7, rerr.Tok.Column)
}

func TestUntypedVariable(t *testing.T) {
	h := newHarness(t, "EDL")
	_, err := h.table.DeclareVar(h.table.Global(), "ghost", nil, nil)
	require.NoError(t, err)

	_, err = h.resolver().Resolve("ghost + 1")
	require.True(t, errors.Is(err, resolver.ErrUnresolvedOperand))
}

func TestAddressOfDereferenceRoundTrip(t *testing.T) {
	h := newHarness(t, "EDL")
	r := h.resolver()
	for _, name := range []string{"i", "p", "pp", "arr", "v", "ip"} {
		plain, err := r.Resolve(name)
		require.NoError(t, err)
		round, err := r.Resolve("*&" + name)
		require.NoError(t, err)
		require.Equal(t, plain, round, name)
	}
}

func TestDeterministic(t *testing.T) {
	h := newHarness(t, "EDL")
	r := h.resolver()
	for _, expr := range []string{"a + b * c", "(int*)fl", "vp->data[2]", "undeclared * 2"} {
		first, err := r.Resolve(expr)
		require.NoError(t, err)
		second, err := r.Resolve(expr)
		require.NoError(t, err)
		require.Equal(t, first, second, expr)
	}
}

func TestCustomOperator(t *testing.T) {
	h := newHarness(t, "EDL")
	table := ops.Standard().Clone()
	require.NoError(t, table.Register("mystery", ops.Binary, 10))

	node, err := h.resolver(resolver.WithOperators(table)).Resolve("a mystery c")
	require.NoError(t, err)
	require.Equal(t, "A", resolver.Describe(node))

	_, err = h.resolver().Resolve("a mystery c")
	require.Error(t, err, "mystery is an identifier without the custom table")
}

func TestCustomSymbolOperator(t *testing.T) {
	h := newHarness(t, "EDL")
	table := ops.Standard().Clone()
	require.NoError(t, table.Register("<=>", ops.Binary, 9))
	require.NoError(t, table.Register("<>", ops.Binary, 9))

	r := h.resolver(resolver.WithOperators(table))
	for _, expr := range []string{"a <=> c", "a <> c", "a<=>c"} {
		node, err := r.Resolve(expr)
		require.NoError(t, err, expr)
		require.Equal(t, "A", resolver.Describe(node), expr)
	}
}

func TestOverloadFallback(t *testing.T) {
	h := newHarness(t, "EDL")
	h.cfg.SetWarning(config.WarnOverloadFallback, true)

	require.Equal(t, "A", h.typeOf(t, "a * c"))
	require.Len(t, h.warnings, 1)
	require.Equal(t, config.WarnOverloadFallback, h.warnings[0].kind)

	h.warnings = nil
	require.Equal(t, "int", h.typeOf(t, "i % i"))
	require.Empty(t, h.warnings, "builtin operands never warn")
}

func TestStrictOverloads(t *testing.T) {
	h := newHarness(t, "EDL")
	h.cfg.SetFeature(config.FeatStrictOverloads, true)

	_, err := h.resolver().Resolve("a * c")
	require.True(t, errors.Is(err, resolver.ErrOverloadNotFound))

	require.Equal(t, "int", h.typeOf(t, "i + i"))
	require.Equal(t, "A", h.typeOf(t, "a, b"))
	require.Equal(t, "int", h.typeOf(t, "i ? a : b"))
	require.Equal(t, "M2", h.typeOf(t, "a + b * c"))
}

func TestSequenceRight(t *testing.T) {
	h := newHarness(t, "EDL")
	h.cfg.SetWarning(config.WarnOverloadFallback, true)
	h.cfg.SetFeature(config.FeatSequenceRight, true)

	require.Equal(t, "B", h.typeOf(t, "a, b"))
	require.Equal(t, "A", h.typeOf(t, "i ? a : b"))
	require.Equal(t, "int", h.typeOf(t, "a, b, i"))
	require.Empty(t, h.warnings)
}

func TestPointerArithmetic(t *testing.T) {
	tests := []struct {
		expr     string
		verbatim string
		modeled  string
	}{
		{"p - p", "int*", "int"},
		{"i + p", "int", "int*"},
		{"p + i", "int*", "int*"},
		{"p == p", "int*", "int"},
		{"a - p", "A", "A"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			h := newHarness(t, "EDL")
			require.Equal(t, tt.verbatim, h.typeOf(t, tt.expr))
			h.cfg.SetFeature(config.FeatPtrArith, true)
			require.Equal(t, tt.modeled, h.typeOf(t, tt.expr))
		})
	}
}

func TestDialects(t *testing.T) {
	edl := newHarness(t, "EDL")
	require.Equal(t, "var", edl.typeOf(t, "undeclared"))
	require.Len(t, edl.warnings, 1)
	require.Equal(t, config.WarnDefaultVar, edl.warnings[0].kind)
	require.Equal(t, "var", edl.typeOf(t, "undeclared.field"))
	require.Equal(t, "float", edl.typeOf(t, "1.5"))

	c := newHarness(t, "C")
	require.Equal(t, "float", c.typeOf(t, "1.5"))
	require.Equal(t, "int", c.typeOf(t, "i"))
	require.Empty(t, c.warnings)
}

func TestMemberAccessDisabled(t *testing.T) {
	h := newHarness(t, "EDL")
	h.cfg.SetFeature(config.FeatMemberAccess, false)
	_, err := h.resolver().Resolve("v.x")
	require.True(t, errors.Is(err, resolver.ErrMalformedOperatorUse))
}

func TestTypedefsDisabled(t *testing.T) {
	h := newHarness(t, "EDL")
	h.cfg.SetFeature(config.FeatTypedefs, false)
	require.Equal(t, "IntPtr", h.typeOf(t, "ip"))
}

func TestWithScope(t *testing.T) {
	h := newHarness(t, "C")
	scope := symtab.NewScope("fn", h.table.Global())
	_, err := h.table.DeclareVar(scope, "local", h.table.Float, nil)
	require.NoError(t, err)

	r := h.resolver(resolver.WithScope(scope))
	node, err := r.Resolve("local + i")
	require.NoError(t, err)
	require.Equal(t, "float", resolver.Describe(node))

	_, err = h.resolver().Resolve("local")
	require.True(t, errors.Is(err, resolver.ErrUnknownIdentifier))
}

func TestStrayCharacters(t *testing.T) {
	h := newHarness(t, "EDL")
	require.Equal(t, "int", h.typeOf(t, "i @"))
	require.Len(t, h.warnings, 1)
	require.Equal(t, config.WarnStrayChar, h.warnings[0].kind)
}

func TestResolveAll(t *testing.T) {
	h := newHarness(t, "C")
	nodes, err := h.resolver().ResolveAll([]string{"i", "undeclared", "fl", "i +"})
	require.Error(t, err)
	require.Len(t, nodes, 4)
	require.Equal(t, "int", resolver.Describe(nodes[0]))
	require.Nil(t, nodes[1].Type)
	require.Equal(t, "float", resolver.Describe(nodes[2]))

	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	require.Len(t, merr.Errors, 2)
	require.True(t, errors.Is(merr.Errors[0], resolver.ErrUnknownIdentifier))
	require.True(t, errors.Is(merr.Errors[1], resolver.ErrMalformedOperatorUse))

	var rerr *resolver.Error
	require.True(t, errors.As(merr.Errors[1], &rerr))
	require.Equal(t, 3, rerr.Tok.FileIndex)

	nodes, err = h.resolver().ResolveAll([]string{"i", "p"})
	require.NoError(t, err)
	require.Equal(t, "int*", resolver.Describe(nodes[1]))
}

func TestTraceLogging(t *testing.T) {
	var buf bytes.Buffer
	h := newHarness(t, "EDL")
	r := h.resolver(resolver.WithLogger(zerolog.New(&buf).Level(zerolog.DebugLevel)))

	_, err := r.Resolve("a + b * c")
	require.NoError(t, err)
	require.Contains(t, buf.String(), `"message":"reduce"`)
	require.Contains(t, buf.String(), `"result":"M1"`)
	require.Contains(t, buf.String(), `"type":"M2"`)
}

func TestName(t *testing.T) {
	h := newHarness(t, "EDL")
	box, ok := h.table.Lookup("Container", nil)
	require.True(t, ok)

	require.Equal(t, "Container<NULL,NULL>", resolver.Name(resolver.Node{Type: box}))
	require.Equal(t, "NULL", resolver.Name(resolver.Node{}))

	pair, err := h.table.DeclareTemplate(nil, "Pair", 8, h.table.Int, nil)
	require.NoError(t, err)
	require.Equal(t, "Pair<int,NULL>", resolver.Name(resolver.Node{Type: pair}))
}
