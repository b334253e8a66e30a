package resolver

import (
	"github.com/xplshn/typeof/pkg/config"
	"github.com/xplshn/typeof/pkg/ops"
	"github.com/xplshn/typeof/pkg/symtab"
	"github.com/xplshn/typeof/pkg/token"
)

// apply reduces the pending operator op against left, the node below it.
// Prefix and postfix operators only look at their own operand.
func (r *Resolver) apply(left, op Node) (Node, error) {
	switch op.Fixity {
	case ops.Binary:
		return r.applyBinary(left.operand(), op)
	case ops.UnaryPre:
		return r.applyPrefix(op)
	case ops.UnaryPost:
		return r.applyPostfix(op.operand()), nil
	}
	return Node{}, newError(ErrMalformedOperatorUse, op.tok, "'%s' cannot be reduced here", op.Op)
}

func (r *Resolver) applyBinary(left, op Node) (Node, error) {
	right := op.operand()
	if left.indirect() || right.indirect() {
		if r.cfg.IsFeatureEnabled(config.FeatPtrArith) {
			return r.pointerArith(left, op.Op, right), nil
		}
		return left, nil
	}

	if ov := r.table.OperatorResult(left.Type, op.Op, right.Type); ov != nil {
		return r.overloadResult(ov), nil
	}

	switch {
	case op.Op == "," || op.Op == "?":
		if r.cfg.IsFeatureEnabled(config.FeatSequenceRight) {
			return right, nil
		}
		return left, nil
	case op.Op == ":":
		return left, nil
	case left.Type.IsBuiltin() && right.Type.IsBuiltin():
		return left, nil
	case r.cfg.IsFeatureEnabled(config.FeatStrictOverloads):
		return Node{}, newError(ErrOverloadNotFound, op.tok, "no operator%s for '%s' and '%s'",
			op.Op, Describe(left), Describe(right))
	}
	r.warn(config.WarnOverloadFallback, op.tok, "no operator%s for '%s' and '%s'; assuming '%s'",
		op.Op, Describe(left), Describe(right), Describe(left))
	return left, nil
}

var comparisons = map[string]bool{
	"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true, "&&": true, "||": true,
}

func (r *Resolver) pointerArith(left Node, lexeme string, right Node) Node {
	switch {
	case comparisons[lexeme]:
		return operandOf(r.table.Int, nil)
	case lexeme == "-" && left.indirect() && right.indirect():
		return operandOf(r.table.Int, nil)
	case lexeme == "+" && !left.indirect() && right.indirect():
		return right
	}
	return left
}

// overloadResult is the value an overload returns.
func (r *Resolver) overloadResult(ov *symtab.Symbol) Node {
	typ, refs := r.simplify(ov.Type)
	return operandOf(typ, append(refs, ov.Refs...))
}

func (r *Resolver) unaryOverload(operand Node, lexeme string) *symtab.Symbol {
	if operand.indirect() {
		return nil
	}
	return r.table.OperatorResult(operand.Type, lexeme, r.table.Void)
}

func (r *Resolver) applyPrefix(op Node) (Node, error) {
	operand := op.operand()
	switch op.Op {
	case "*":
		switch {
		case operand.Pad > 0:
			operand.Pad--
			return operand, nil
		case operand.Deref > 0:
			operand.Deref--
			return operand, nil
		}
		if ov := r.unaryOverload(operand, "*"); ov != nil {
			return r.overloadResult(ov), nil
		}
		return Node{}, newError(ErrOverloadNotFound, op.tok, "cannot dereference '%s'", Describe(operand))
	case "&":
		operand.Pad++
	case "cast":
		if op.Cast != nil {
			return operandOf(op.Cast, op.CastRefs), nil
		}
	case "sizeof":
		return operandOf(r.table.Int, nil), nil
	case "new":
		operand.typeOperand = false
		operand.Pad++
	case "delete":
		return operandOf(r.table.Void, nil), nil
	case "!":
		if ov := r.unaryOverload(operand, "!"); ov != nil {
			return r.overloadResult(ov), nil
		}
		return operandOf(r.table.Int, nil), nil
	default:
		if ov := r.unaryOverload(operand, op.Op); ov != nil {
			return r.overloadResult(ov), nil
		}
	}
	operand.typeOperand = false
	return operand, nil
}

// applyPostfix handles x++ and x--, which keep the operand's type.
func (r *Resolver) applyPostfix(operand Node) Node {
	return operand
}

// applyOpener folds a closed group into left. An untyped left makes the
// group plain parentheses, or the empty argument list of a functional cast;
// otherwise it is a call or a subscript.
func (r *Resolver) applyOpener(pending, opener Node) (Node, error) {
	inner := opener.operand()
	left := pending.operand()
	if left.Type == nil {
		switch {
		case opener.Op == "(" && inner.Type != nil:
			inner.typeOperand = false
			return inner, nil
		case opener.Op == "(" && pending.Op == "cast" && pending.Cast != nil:
			return operandOf(pending.Cast, pending.CastRefs), nil
		}
		return Node{}, newError(ErrMalformedOperatorUse, opener.tok, "'%s' needs an operand on its left", opener.Op)
	}
	if opener.Op == "[" {
		return r.applySubscript(left, inner, opener.tok)
	}
	return r.applyCall(left, inner, opener.tok)
}

func (r *Resolver) applyCall(callee, args Node, tok token.Token) (Node, error) {
	switch {
	case callee.typeOperand:
		return operandOf(callee.Type, callee.ActiveRefs()), nil
	case callee.Pad > 0:
		callee.Pad--
		return callee, nil
	}
	if ref, ok := callee.cursor(); ok && ref.Kind != symtab.RefArray {
		callee.Deref--
		if next, ok := callee.cursor(); ok && ref.Kind == symtab.RefPointer && next.Kind == symtab.RefFunction {
			callee.Deref--
		}
		return callee, nil
	}
	if ov := r.table.OperatorResult(callee.Type, "()", args.Type); ov != nil && !callee.indirect() {
		return r.overloadResult(ov), nil
	}
	return Node{}, newError(ErrOverloadNotFound, tok, "'%s' is not callable", Describe(callee))
}

func (r *Resolver) applySubscript(arr, index Node, tok token.Token) (Node, error) {
	switch {
	case arr.typeOperand:
		// array new: "new T[n]" allocates Ts
		return arr, nil
	case arr.Pad > 0:
		arr.Pad--
		return arr, nil
	case arr.Deref > 0:
		arr.Deref--
		return arr, nil
	}
	if ov := r.table.OperatorResult(arr.Type, "[]", index.Type); ov != nil {
		return r.overloadResult(ov), nil
	}
	return Node{}, newError(ErrOverloadNotFound, tok, "'%s' cannot be subscripted", Describe(arr))
}

func (r *Resolver) applyMember(obj Node, access, name token.Token) (Node, error) {
	if access.Type == token.Arrow {
		switch {
		case obj.Pad > 0:
			obj.Pad--
		case obj.Deref > 0:
			obj.Deref--
		default:
			ov := r.unaryOverload(obj, "->")
			if ov == nil {
				return Node{}, newError(ErrOverloadNotFound, access, "'%s' is not a pointer", Describe(obj))
			}
			obj = r.overloadResult(ov)
			if obj.Deref > 0 {
				obj.Deref--
			}
		}
	}
	if obj.indirect() {
		return Node{}, newError(ErrMalformedOperatorUse, access, "'%s' on '%s' needs '->'", access.Value, Describe(obj))
	}

	mem, ok := r.table.LookupMember(obj.Type, name.Value)
	if !ok {
		if obj.Type == r.table.Var && r.cfg.IsFeatureEnabled(config.FeatDefaultVar) {
			return operandOf(r.table.Var, nil), nil
		}
		return Node{}, newError(ErrUnknownMember, name, "'%s' has no member '%s'", Name(obj), name.Value)
	}
	if mem.IsType() || mem.Type == nil {
		return Node{}, newError(ErrUnresolvedOperand, name, "member '%s' of '%s' has no value type", name.Value, Name(obj))
	}
	typ, refs := r.simplify(mem.Type)
	return operandOf(typ, append(refs, mem.Refs...)), nil
}
