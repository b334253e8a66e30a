package symtab

import (
	"fmt"
	"strconv"
	"strings"
)

type Flags uint32

const (
	FlagTypename Flags = 1 << iota
	FlagTypedef
	FlagFunction
	FlagOperator
	FlagTemplateArg
	FlagBuiltin
)

type RefKind int

const (
	RefPointer RefKind = iota
	RefArray
	RefFunction
)

// Ref is one level of a declarator: a pointer, an array bound or a
// parameter list.
type Ref struct {
	Kind RefKind
	Size int // array length, 0 when unknown
}

func (r Ref) String() string {
	switch r.Kind {
	case RefArray:
		if r.Size > 0 {
			return "[" + strconv.Itoa(r.Size) + "]"
		}
		return "[]"
	case RefFunction:
		return "()"
	}
	return "*"
}

// ParseRefs reads a declarator suffix such as "*[4]" or "()*". Levels are
// listed innermost first: "*[4]" is an array of four pointers and "()*" a
// pointer to a function.
func ParseRefs(s string) ([]Ref, error) {
	var refs []Ref
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ':
		case '*':
			refs = append(refs, Ref{Kind: RefPointer})
		case '(':
			if i+1 >= len(s) || s[i+1] != ')' {
				return nil, fmt.Errorf("unterminated '(' in declarator %q", s)
			}
			refs = append(refs, Ref{Kind: RefFunction})
			i++
		case '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("unterminated '[' in declarator %q", s)
			}
			ref := Ref{Kind: RefArray}
			if bound := strings.TrimSpace(s[i+1 : i+end]); bound != "" {
				n, err := strconv.Atoi(bound)
				if err != nil || n < 0 {
					return nil, fmt.Errorf("invalid array bound %q in declarator %q", bound, s)
				}
				ref.Size = n
			}
			refs = append(refs, ref)
			i += end
		default:
			return nil, fmt.Errorf("unexpected %q in declarator %q", s[i], s)
		}
	}
	return refs, nil
}

func RefsString(refs []Ref) string {
	var sb strings.Builder
	for _, r := range refs {
		sb.WriteString(r.String())
	}
	return sb.String()
}

type Symbol struct {
	Name     string
	Flags    Flags
	Type     *Symbol   // declared type of a variable, return type of a function or overload, aliased type of a typedef
	Refs     []Ref     // declared indirection, innermost first
	TempArgs []*Symbol // template arguments; an argument's Type is nil while unresolved
	Members  *Scope    // fields and operator overloads of a type
	Param    *Symbol   // right-hand parameter type of an operator overload, nil matches anything
	Size     int64
	Next     *Symbol
}

func (s *Symbol) IsType() bool    { return s.Flags&FlagTypename != 0 }
func (s *Symbol) IsTypedef() bool { return s.Flags&FlagTypedef != 0 }
func (s *Symbol) IsBuiltin() bool { return s.Flags&FlagBuiltin != 0 }

type Scope struct {
	Name    string
	Symbols *Symbol
	Parent  *Scope
}

func NewScope(name string, parent *Scope) *Scope { return &Scope{Name: name, Parent: parent} }

func (s *Scope) add(sym *Symbol) {
	sym.Next = s.Symbols
	s.Symbols = sym
}

func (s *Scope) find(name string) *Symbol {
	for sym := s.Symbols; sym != nil; sym = sym.Next {
		if sym.Name == name {
			return sym
		}
	}
	return nil
}

// Each visits the scope's own symbols, most recent first.
func (s *Scope) Each(fn func(*Symbol)) {
	for sym := s.Symbols; sym != nil; sym = sym.Next {
		fn(sym)
	}
}

// Table is the symbol-table bridge consulted by the resolver. All lookups
// take the scope to search explicitly.
type Table struct {
	global   *Scope
	wordSize int

	Void  *Symbol
	Int   *Symbol
	Float *Symbol
	Var   *Symbol
}

func (t *Table) Global() *Scope { return t.global }
func (t *Table) WordSize() int  { return t.wordSize }

// Lookup searches scope and then its parents.
func (t *Table) Lookup(name string, scope *Scope) (*Symbol, bool) {
	if scope == nil {
		scope = t.global
	}
	for s := scope; s != nil; s = s.Parent {
		if sym := s.find(name); sym != nil {
			return sym, true
		}
	}
	return nil, false
}

// LookupQualified resolves "a::b::c": the first part through the scope chain,
// the rest as members of what the previous part names.
func (t *Table) LookupQualified(path []string, scope *Scope) (*Symbol, bool) {
	if len(path) == 0 {
		return nil, false
	}
	sym, ok := t.Lookup(path[0], scope)
	for _, name := range path[1:] {
		if !ok {
			return nil, false
		}
		owner := sym
		if !owner.IsType() && owner.Type != nil {
			owner = owner.Type
		}
		sym, ok = t.LookupMember(owner, name)
	}
	return sym, ok
}

// LookupMember searches only the member scope of typ (after typedefs).
func (t *Table) LookupMember(typ *Symbol, name string) (*Symbol, bool) {
	typ, _ = Simplify(typ)
	if typ == nil || typ.Members == nil {
		return nil, false
	}
	if sym := typ.Members.find(name); sym != nil {
		return sym, true
	}
	return nil, false
}

// OperatorResult finds "left operator<lexeme> right". An overload whose
// parameter names right's type wins over a parameterless one; nil means no
// overload exists.
func (t *Table) OperatorResult(left *Symbol, lexeme string, right *Symbol) *Symbol {
	left, _ = Simplify(left)
	if left == nil || left.Members == nil {
		return nil
	}
	right, _ = Simplify(right)
	name := "operator" + lexeme

	var fallback *Symbol
	for sym := left.Members.Symbols; sym != nil; sym = sym.Next {
		if sym.Name != name || sym.Flags&FlagOperator == 0 {
			continue
		}
		param, _ := Simplify(sym.Param)
		if param == nil {
			if fallback == nil {
				fallback = sym
			}
			continue
		}
		if param == right {
			return sym
		}
	}
	return fallback
}

// Simplify follows typedef chains to the underlying type. The returned refs
// are the levels the typedefs contributed, innermost first.
func Simplify(sym *Symbol) (*Symbol, []Ref) {
	var refs []Ref
	seen := make(map[*Symbol]bool)
	for sym != nil && sym.IsTypedef() && sym.Type != nil && !seen[sym] {
		seen[sym] = true
		refs = append(append([]Ref{}, sym.Refs...), refs...)
		sym = sym.Type
	}
	return sym, refs
}

// SizeOf reports the storage size of typ with the given active indirection.
func (t *Table) SizeOf(typ *Symbol, refs []Ref) int64 {
	if len(refs) > 0 {
		outer := refs[len(refs)-1]
		switch outer.Kind {
		case RefPointer:
			return int64(t.wordSize)
		case RefFunction:
			return 0
		case RefArray:
			n := int64(outer.Size)
			if n == 0 {
				n = 1
			}
			return n * t.SizeOf(typ, refs[:len(refs)-1])
		}
	}
	base, extra := Simplify(typ)
	if len(extra) > 0 {
		return t.SizeOf(base, extra)
	}
	if base == nil {
		return int64(t.wordSize)
	}
	return base.Size
}
