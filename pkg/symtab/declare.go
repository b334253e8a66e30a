package symtab

import "fmt"

// NewTable creates a table whose global scope holds the builtin types and
// their arithmetic promotion overloads. wordSize sizes pointers, long and var.
func NewTable(wordSize int) *Table {
	if wordSize <= 0 {
		wordSize = 8
	}
	t := &Table{global: NewScope("global", nil), wordSize: wordSize}

	builtin := func(name string, size int64) *Symbol {
		sym, _ := t.DeclareType(t.global, name, size)
		sym.Flags |= FlagBuiltin
		return sym
	}
	t.Void = builtin("void", 0)
	builtin("char", 1)
	builtin("bool", 1)
	builtin("short", 2)
	t.Int = builtin("int", 4)
	builtin("long", int64(wordSize))
	t.Float = builtin("float", 4)
	builtin("double", 8)
	t.Var = builtin("var", int64(2*wordSize))

	for _, op := range []string{"+", "-", "*", "/"} {
		t.DeclareOperator(t.Int, op, t.Float, t.Float)
		t.DeclareOperator(t.Float, op, t.Int, t.Float)
		t.DeclareOperator(t.Float, op, t.Float, t.Float)
	}
	for _, op := range []string{"<", "<=", ">", ">=", "==", "!="} {
		t.DeclareOperator(t.Float, op, t.Int, t.Int)
		t.DeclareOperator(t.Float, op, t.Float, t.Int)
	}
	return t
}

func (t *Table) declare(scope *Scope, sym *Symbol) (*Symbol, error) {
	if scope == nil {
		scope = t.global
	}
	if existing := scope.find(sym.Name); existing != nil {
		return existing, fmt.Errorf("redefinition of '%s' in scope '%s'", sym.Name, scope.Name)
	}
	scope.add(sym)
	return sym, nil
}

func (t *Table) DeclareType(scope *Scope, name string, size int64) (*Symbol, error) {
	sym := &Symbol{Name: name, Flags: FlagTypename, Size: size}
	sym.Members = NewScope(name, scope)
	return t.declare(scope, sym)
}

// DeclareTemplate declares a type instantiated with the given arguments. A
// nil argument type stays unresolved.
func (t *Table) DeclareTemplate(scope *Scope, name string, size int64, args ...*Symbol) (*Symbol, error) {
	sym, err := t.DeclareType(scope, name, size)
	if err != nil {
		return sym, err
	}
	for i, arg := range args {
		sym.TempArgs = append(sym.TempArgs, &Symbol{
			Name: fmt.Sprintf("%s#%d", name, i), Flags: FlagTemplateArg, Type: arg,
		})
	}
	return sym, nil
}

func (t *Table) DeclareTypedef(scope *Scope, name string, target *Symbol, refs []Ref) (*Symbol, error) {
	if target == nil {
		return nil, fmt.Errorf("typedef '%s' has no target type", name)
	}
	return t.declare(scope, &Symbol{Name: name, Flags: FlagTypename | FlagTypedef, Type: target, Refs: refs})
}

func (t *Table) DeclareVar(scope *Scope, name string, typ *Symbol, refs []Ref) (*Symbol, error) {
	return t.declare(scope, &Symbol{Name: name, Type: typ, Refs: refs})
}

// DeclareFunc declares a function returning ret with the return declarator
// refs; the parameter list becomes the outermost level.
func (t *Table) DeclareFunc(scope *Scope, name string, ret *Symbol, refs []Ref) (*Symbol, error) {
	all := append(append([]Ref{}, refs...), Ref{Kind: RefFunction})
	return t.declare(scope, &Symbol{Name: name, Flags: FlagFunction, Type: ret, Refs: all})
}

// DeclareMember adds a field to a type's member scope.
func (t *Table) DeclareMember(owner *Symbol, name string, typ *Symbol, refs []Ref) (*Symbol, error) {
	if owner == nil || owner.Members == nil {
		return nil, fmt.Errorf("cannot add member '%s' to a non-type", name)
	}
	return t.declare(owner.Members, &Symbol{Name: name, Type: typ, Refs: refs})
}

// DeclareOperator registers "owner operator<lexeme> param" yielding result.
// Overloads of one lexeme may coexist as long as their params differ.
func (t *Table) DeclareOperator(owner *Symbol, lexeme string, param, result *Symbol, refs ...Ref) (*Symbol, error) {
	if owner == nil || owner.Members == nil {
		return nil, fmt.Errorf("cannot add operator%s to a non-type", lexeme)
	}
	name := "operator" + lexeme
	for sym := owner.Members.Symbols; sym != nil; sym = sym.Next {
		if sym.Name == name && sym.Param == param {
			return sym, fmt.Errorf("redefinition of '%s::%s'", owner.Name, name)
		}
	}
	sym := &Symbol{Name: name, Flags: FlagFunction | FlagOperator, Type: result, Refs: refs, Param: param}
	owner.Members.add(sym)
	return sym, nil
}
