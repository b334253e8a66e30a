package resolver

import (
	"strings"

	"github.com/xplshn/typeof/pkg/ops"
	"github.com/xplshn/typeof/pkg/symtab"
	"github.com/xplshn/typeof/pkg/token"
)

// Node is one entry of the evaluation stack. Operand state (Type, Refs,
// Deref, Pad) describes a resolved value; Op, Fixity and Prec describe the
// pending operator the node stands for. Barriers (the root and '(' / '['
// openers) have Prec 0.
type Node struct {
	Type  *symtab.Symbol
	Refs  []symtab.Ref
	Deref int // active levels are Refs[:Deref]
	Pad   int // pending address-of applications

	Op       string
	Fixity   ops.Fixity
	Prec     int
	Cast     *symtab.Symbol // target of a pending cast
	CastRefs []symtab.Ref

	typeOperand bool // a typename used as a value (sizeof int, new T, T(x))
	tok         token.Token
}

func operandOf(typ *symtab.Symbol, refs []symtab.Ref) Node {
	return Node{Type: typ, Refs: refs, Deref: len(refs)}
}

func (n Node) isBarrier() bool { return n.Prec == 0 }

// indirect reports whether the node is currently a pointer, array or function.
func (n Node) indirect() bool { return n.Pad > 0 || n.Deref > 0 }

// cursor returns the level a dereference would consume.
func (n Node) cursor() (symtab.Ref, bool) {
	if n.Deref <= 0 || n.Deref > len(n.Refs) {
		return symtab.Ref{}, false
	}
	return n.Refs[n.Deref-1], true
}

// adopt takes the operand state of res and keeps n's own operator identity.
func (n *Node) adopt(res Node) {
	n.Type, n.Refs, n.Deref, n.Pad = res.Type, res.Refs, res.Deref, res.Pad
	n.typeOperand = res.typeOperand
}

// operand strips the operator identity.
func (n Node) operand() Node {
	return Node{Type: n.Type, Refs: n.Refs, Deref: n.Deref, Pad: n.Pad, typeOperand: n.typeOperand}
}

// ActiveRefs returns the declared levels not yet consumed.
func (n Node) ActiveRefs() []symtab.Ref {
	if n.Deref <= 0 {
		return nil
	}
	return n.Refs[:n.Deref]
}

// Name renders the node's type for diagnostics: the type name followed by
// its template arguments, with NULL standing for a missing type.
func Name(n Node) string {
	if n.Type == nil {
		return "NULL"
	}
	res := n.Type.Name
	if len(n.Type.TempArgs) > 0 {
		args := make([]string, len(n.Type.TempArgs))
		for i, arg := range n.Type.TempArgs {
			if arg == nil || arg.Type == nil {
				args[i] = "NULL"
			} else {
				args[i] = arg.Type.Name
			}
		}
		res += "<" + strings.Join(args, ",") + ">"
	}
	return res
}

// Describe is Name plus the node's active indirection, e.g. "int*[4]".
func Describe(n Node) string {
	s := Name(n)
	if n.Type == nil {
		return s
	}
	return s + symtab.RefsString(n.ActiveRefs()) + strings.Repeat("*", n.Pad)
}

func (n Node) String() string { return Describe(n) }
