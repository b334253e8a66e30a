// Package resolver determines the static type of a C-like expression
// without evaluating it.
//
// Expressions are scanned once, left to right. Operands set the type state
// of the node on top of an explicit stack; operators are pushed as pending
// nodes and reduced by precedence, so the single node left at the end holds
// the type of the whole expression. '(' and '[' push barrier nodes that only
// their closing token reduces.
package resolver

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/xplshn/typeof/pkg/config"
	"github.com/xplshn/typeof/pkg/lexer"
	"github.com/xplshn/typeof/pkg/ops"
	"github.com/xplshn/typeof/pkg/symtab"
	"github.com/xplshn/typeof/pkg/token"
)

// WarnFunc receives non-fatal diagnostics that are enabled in the config.
type WarnFunc func(w config.Warning, tok token.Token, msg string)

type Resolver struct {
	cfg    *config.Config
	table  *symtab.Table
	ops    *ops.Table
	scope  *symtab.Scope
	log    zerolog.Logger
	onWarn WarnFunc
}

type Option func(*Resolver)

// WithScope makes lookups start at scope instead of the global scope.
func WithScope(scope *symtab.Scope) Option { return func(r *Resolver) { r.scope = scope } }

// WithOperators replaces the standard operator table.
func WithOperators(table *ops.Table) Option { return func(r *Resolver) { r.ops = table } }

// WithLogger traces every reduction at debug level.
func WithLogger(log zerolog.Logger) Option { return func(r *Resolver) { r.log = log } }

// WithWarnings delivers enabled warnings to fn; without it they are dropped.
func WithWarnings(fn WarnFunc) Option { return func(r *Resolver) { r.onWarn = fn } }

func New(cfg *config.Config, table *symtab.Table, opts ...Option) *Resolver {
	r := &Resolver{
		cfg:   cfg,
		table: table,
		ops:   ops.Standard(),
		scope: table.Global(),
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Operators() *ops.Table { return r.ops }

// Resolve returns the type of expr, or an *Error describing why it has none.
func (r *Resolver) Resolve(expr string) (Node, error) { return r.ResolveAt(expr, 0) }

// ResolveAt is Resolve with tokens attributed to the given source record, so
// diagnostics can point into it.
func (r *Resolver) ResolveAt(expr string, fileIndex int) (Node, error) {
	lex := lexer.NewLexer([]rune(expr), fileIndex, r.cfg, r.ops)
	toks := lex.Tokenize()
	for _, stray := range lex.Stray {
		r.warn(config.WarnStrayChar, stray, "ignoring stray '%s'", stray.Value)
	}

	e := &evaluator{r: r, toks: toks, stack: []Node{{}}, expectOperand: true}
	e.end = token.Token{Type: token.EOF, FileIndex: fileIndex, Line: 1, Column: len([]rune(expr)) + 1}
	if n := len(toks); n > 0 {
		last := toks[n-1]
		e.end.Line, e.end.Column = last.Line, last.Column+last.Len
	}

	node, err := e.run()
	if err != nil {
		r.log.Debug().Str("expr", expr).Err(err).Msg("unresolved")
		return Node{}, err
	}
	r.log.Debug().Str("expr", expr).Str("type", Describe(node)).Msg("resolved")
	return node, nil
}

// ResolveAll resolves every expression and reports all failures together.
// Nodes of failed expressions are left zero.
func (r *Resolver) ResolveAll(exprs []string) ([]Node, error) {
	var result *multierror.Error
	nodes := make([]Node, len(exprs))
	for i, expr := range exprs {
		node, err := r.ResolveAt(expr, i)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%q: %w", expr, err))
			continue
		}
		nodes[i] = node
	}
	return nodes, result.ErrorOrNil()
}

func (r *Resolver) warn(w config.Warning, tok token.Token, format string, args ...interface{}) {
	if r.onWarn == nil || !r.cfg.IsWarningEnabled(w) {
		return
	}
	r.onWarn(w, tok, fmt.Sprintf(format, args...))
}

func (r *Resolver) simplify(sym *symtab.Symbol) (*symtab.Symbol, []symtab.Ref) {
	if !r.cfg.IsFeatureEnabled(config.FeatTypedefs) {
		return sym, nil
	}
	return symtab.Simplify(sym)
}

type evaluator struct {
	r             *Resolver
	toks          []token.Token
	pos           int
	end           token.Token
	stack         []Node
	expectOperand bool
}

func (e *evaluator) top() *Node { return &e.stack[len(e.stack)-1] }
func (e *evaluator) push(n Node) { e.stack = append(e.stack, n) }
func (e *evaluator) pop() Node {
	n := e.stack[len(e.stack)-1]
	e.stack = e.stack[:len(e.stack)-1]
	return n
}

func (e *evaluator) run() (Node, error) {
	for e.pos = 0; e.pos < len(e.toks); e.pos++ {
		tok := e.toks[e.pos]
		var err error
		switch tok.Type {
		case token.Number:
			err = e.operand(tok, operandOf(e.r.table.Int, nil))
		case token.FloatNumber:
			err = e.operand(tok, operandOf(e.r.table.Float, nil))
		case token.Ident:
			err = e.identifier(tok)
		case token.Dot, token.Arrow:
			err = e.member(tok)
		case token.Operator:
			err = e.operator(tok)
		}
		if err != nil {
			return Node{}, err
		}
	}
	return e.finish()
}

func (e *evaluator) operand(tok token.Token, n Node) error {
	if !e.expectOperand {
		return newError(ErrMalformedOperatorUse, tok, "expected an operator before '%s'", tok.Value)
	}
	e.top().adopt(n)
	e.expectOperand = false
	return nil
}

func (e *evaluator) identifier(tok token.Token) error {
	sym, ok := e.r.table.LookupQualified(strings.Split(tok.Value, "::"), e.r.scope)
	if !ok {
		if !e.r.cfg.IsFeatureEnabled(config.FeatDefaultVar) {
			return newError(ErrUnknownIdentifier, tok, "'%s' was not declared", tok.Value)
		}
		e.r.warn(config.WarnDefaultVar, tok, "'%s' was not declared; assuming '%s'", tok.Value, e.r.table.Var.Name)
		return e.operand(tok, operandOf(e.r.table.Var, nil))
	}

	if sym.IsType() {
		if !e.expectOperand {
			return newError(ErrInvalidCastPosition, tok, "typename '%s' cannot follow an operand", tok.Value)
		}
		typ, refs := e.r.simplify(sym)
		if e.takesTypeOperand() {
			n := operandOf(typ, refs)
			n.typeOperand = true
			return e.operand(tok, n)
		}
		e.push(Node{Op: "cast", Fixity: ops.UnaryPre, Prec: ops.PrefixPrec, Cast: typ, CastRefs: refs, tok: tok})
		return nil
	}

	if sym.Type == nil {
		return newError(ErrUnresolvedOperand, tok, "'%s' has no declared type", tok.Value)
	}
	typ, refs := e.r.simplify(sym.Type)
	return e.operand(tok, operandOf(typ, append(refs, sym.Refs...)))
}

// takesTypeOperand reports whether a typename here is the operand of sizeof
// or new, possibly parenthesized, rather than a cast.
func (e *evaluator) takesTypeOperand() bool {
	n := len(e.stack) - 1
	if e.stack[n].Op == "(" && n > 0 {
		n--
	}
	return e.stack[n].Op == "sizeof" || e.stack[n].Op == "new"
}

func (e *evaluator) member(tok token.Token) error {
	if !e.r.cfg.IsFeatureEnabled(config.FeatMemberAccess) {
		return newError(ErrMalformedOperatorUse, tok, "member access is disabled")
	}
	if e.expectOperand {
		return newError(ErrMalformedOperatorUse, tok, "'%s' needs an operand on its left", tok.Value)
	}
	if e.pos+1 >= len(e.toks) || e.toks[e.pos+1].Type != token.Ident {
		return newError(ErrMalformedOperatorUse, tok, "expected a member name after '%s'", tok.Value)
	}
	e.pos++
	res, err := e.r.applyMember(e.top().operand(), tok, e.toks[e.pos])
	if err != nil {
		return err
	}
	e.top().adopt(res)
	return nil
}

func (e *evaluator) operator(tok token.Token) error {
	info, ok := e.r.ops.Lookup(tok.Value)
	if !ok {
		return newError(ErrMalformedOperatorUse, tok, "unknown operator '%s'", tok.Value)
	}
	switch {
	case ops.IsOpener(tok.Value):
		return e.open(tok)
	case ops.IsCloser(tok.Value):
		return e.close(tok)
	}

	if e.expectOperand {
		if !info.Has(ops.UnaryPre) {
			return newError(ErrMalformedOperatorUse, tok, "'%s' is not a prefix operator", tok.Value)
		}
		e.push(Node{Op: tok.Value, Fixity: ops.UnaryPre, Prec: ops.PrefixPrec, tok: tok})
		return nil
	}

	switch top := e.top(); {
	case top.typeOperand && tok.Value == "*":
		// "sizeof(T*)", "new T*": declarator levels of the type operand
		top.Refs = append(append([]symtab.Ref{}, top.ActiveRefs()...), symtab.Ref{Kind: symtab.RefPointer})
		top.Deref = len(top.Refs)
		return nil
	case info.Has(ops.Binary):
		return e.binary(tok, info)
	case info.Has(ops.UnaryPost):
		top.adopt(e.r.applyPostfix(top.operand()))
		return nil
	}
	return newError(ErrMalformedOperatorUse, tok, "'%s' cannot follow an operand", tok.Value)
}

func (e *evaluator) binary(tok token.Token, info ops.Info) error {
	if e.top().Type == nil {
		return newError(ErrUnresolvedOperand, tok, "left operand of '%s' has no type", tok.Value)
	}
	for e.top().Prec > info.Prec {
		if err := e.reduce(); err != nil {
			return err
		}
	}
	e.push(Node{Op: tok.Value, Fixity: ops.Binary, Prec: info.Prec, tok: tok})
	e.expectOperand = true
	return nil
}

// reduce pops the pending operator on top and folds it into the node below,
// which keeps its own operator identity.
func (e *evaluator) reduce() error {
	op := e.pop()
	left := e.top()
	res, err := e.r.apply(*left, op)
	if err != nil {
		return err
	}
	if res.Type == nil {
		return newError(ErrUnresolvedOperand, op.tok, "'%s' produced no type", op.Op)
	}
	e.r.log.Debug().
		Str("op", op.Op).
		Str("left", Describe(left.operand())).
		Str("right", Describe(op.operand())).
		Str("result", Describe(res)).
		Msg("reduce")
	left.adopt(res)
	return nil
}

func (e *evaluator) open(tok token.Token) error {
	if e.expectOperand && tok.Value == "[" {
		return newError(ErrMalformedOperatorUse, tok, "'[' needs an operand on its left")
	}
	if !e.expectOperand && e.top().Type == nil {
		return newError(ErrUnresolvedOperand, tok, "operand before '%s' has no type", tok.Value)
	}
	e.push(Node{Op: tok.Value, Fixity: ops.Binary, tok: tok})
	e.expectOperand = true
	return nil
}

func (e *evaluator) close(tok token.Token) error {
	if e.expectOperand {
		if e.closeCast(tok) {
			return nil
		}
		if !e.emptyCall(tok) {
			return newError(ErrMalformedOperatorUse, tok, "unexpected '%s'", tok.Value)
		}
	}

	for !e.top().isBarrier() {
		if err := e.reduce(); err != nil {
			return err
		}
	}
	if len(e.stack) == 1 {
		return newError(ErrMalformedOperatorUse, tok, "unmatched '%s'", tok.Value)
	}
	opener := e.pop()
	if ops.Closer(opener.Op) != tok.Value {
		return newError(ErrMalformedOperatorUse, tok, "'%s' cannot close '%s'", tok.Value, opener.Op)
	}

	left := e.top()
	res, err := e.r.applyOpener(*left, opener)
	if err != nil {
		return err
	}
	if res.Type == nil {
		return newError(ErrUnresolvedOperand, opener.tok, "'%s%s' produced no type", opener.Op, tok.Value)
	}
	e.r.log.Debug().
		Str("op", opener.Op+tok.Value).
		Str("left", Describe(left.operand())).
		Str("inner", Describe(opener.operand())).
		Str("result", Describe(res)).
		Msg("close")
	left.adopt(res)
	e.expectOperand = false
	return nil
}

// closeCast turns "( T )" or "( T * ... )" into a prefix cast.
func (e *evaluator) closeCast(tok token.Token) bool {
	if tok.Value != ")" {
		return false
	}
	i, ptrs := len(e.stack)-1, 0
	for i > 0 && e.stack[i].Op == "*" && e.stack[i].Fixity == ops.UnaryPre && e.stack[i].Type == nil {
		ptrs++
		i--
	}
	if i < 1 || e.stack[i].Op != "cast" || e.stack[i].Type != nil || e.stack[i-1].Op != "(" {
		return false
	}
	cast := e.stack[i]
	refs := append([]symtab.Ref{}, cast.CastRefs...)
	for ; ptrs > 0; ptrs-- {
		refs = append(refs, symtab.Ref{Kind: symtab.RefPointer})
	}
	cast.CastRefs = refs
	e.stack = e.stack[:i-1]
	e.push(cast)
	return true
}

// emptyCall accepts "f()" and "T()": a ')' right after the '(' of a call or
// of a functional cast.
func (e *evaluator) emptyCall(tok token.Token) bool {
	n := len(e.stack)
	if tok.Value != ")" || n < 2 || e.stack[n-1].Op != "(" || e.stack[n-1].Type != nil {
		return false
	}
	below := e.stack[n-2]
	return below.Type != nil || (below.Op == "cast" && below.Cast != nil)
}

func (e *evaluator) finish() (Node, error) {
	if e.expectOperand {
		if len(e.stack) == 1 {
			return Node{}, newError(ErrMalformedOperatorUse, e.end, "empty expression")
		}
		return Node{}, newError(ErrMalformedOperatorUse, e.end, "expression ends where an operand was expected")
	}
	for len(e.stack) > 1 {
		if e.top().isBarrier() {
			return Node{}, newError(ErrMalformedOperatorUse, e.top().tok, "unclosed '%s'", e.top().Op)
		}
		if err := e.reduce(); err != nil {
			return Node{}, err
		}
	}
	root := e.stack[0]
	if root.Type == nil {
		return Node{}, newError(ErrUnresolvedOperand, e.end, "expression has no type")
	}
	return root.operand(), nil
}
