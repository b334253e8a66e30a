package symtab

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Declarations is the JSON form of a symbol table, used by the tooling to
// stand in for a compiler's populated extern table.
type Declarations struct {
	Types    []TypeDecl `json:"types,omitempty"`
	Typedefs []DeclRef  `json:"typedefs,omitempty"`
	Vars     []DeclRef  `json:"vars,omitempty"`
	Funcs    []DeclRef  `json:"funcs,omitempty"`
}

type TypeDecl struct {
	Name      string     `json:"name"`
	Size      int64      `json:"size,omitempty"`
	Args      []*string  `json:"args,omitempty"` // null entries stay unresolved
	Members   []DeclRef  `json:"members,omitempty"`
	Operators []OperDecl `json:"operators,omitempty"`
}

// DeclRef names a symbol, its type and declarator, e.g. {"name":"p","type":"int","refs":"*"}.
type DeclRef struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Refs string `json:"refs,omitempty"`
}

type OperDecl struct {
	Op     string `json:"op"`
	Param  string `json:"param,omitempty"`
	Result string `json:"result"`
	Refs   string `json:"refs,omitempty"`
}

func (t *Table) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("could not open declarations: %w", err)
	}
	defer f.Close()
	if err := t.Load(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func (t *Table) Load(r io.Reader) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var decls Declarations
	if err := dec.Decode(&decls); err != nil {
		return fmt.Errorf("invalid declarations: %w", err)
	}
	return t.Apply(&decls)
}

// Apply declares everything in d into the global scope. Types are declared
// first so members, operators and variables may refer to any of them.
func (t *Table) Apply(d *Declarations) error {
	declared := make([]*Symbol, len(d.Types))
	for i, td := range d.Types {
		sym, err := t.DeclareType(t.global, td.Name, td.Size)
		if err != nil {
			return err
		}
		declared[i] = sym
	}

	for _, td := range d.Typedefs {
		target, refs, err := t.resolveRef(td)
		if err != nil {
			return err
		}
		if _, err := t.DeclareTypedef(t.global, td.Name, target, refs); err != nil {
			return err
		}
	}

	for i, td := range d.Types {
		sym := declared[i]
		for j, arg := range td.Args {
			argSym := &Symbol{Name: fmt.Sprintf("%s#%d", td.Name, j), Flags: FlagTemplateArg}
			if arg != nil {
				typ, err := t.lookupType(*arg)
				if err != nil {
					return err
				}
				argSym.Type = typ
			}
			sym.TempArgs = append(sym.TempArgs, argSym)
		}
		for _, m := range td.Members {
			typ, refs, err := t.resolveRef(m)
			if err != nil {
				return err
			}
			if _, err := t.DeclareMember(sym, m.Name, typ, refs); err != nil {
				return err
			}
		}
		for _, o := range td.Operators {
			var param *Symbol
			if o.Param != "" {
				p, err := t.lookupType(o.Param)
				if err != nil {
					return err
				}
				param = p
			}
			result, refs, err := t.resolveRef(DeclRef{Name: "operator" + o.Op, Type: o.Result, Refs: o.Refs})
			if err != nil {
				return err
			}
			if _, err := t.DeclareOperator(sym, o.Op, param, result, refs...); err != nil {
				return err
			}
		}
	}

	for _, v := range d.Vars {
		typ, refs, err := t.resolveRef(v)
		if err != nil {
			return err
		}
		if _, err := t.DeclareVar(t.global, v.Name, typ, refs); err != nil {
			return err
		}
	}
	for _, f := range d.Funcs {
		typ, refs, err := t.resolveRef(f)
		if err != nil {
			return err
		}
		if _, err := t.DeclareFunc(t.global, f.Name, typ, refs); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) lookupType(name string) (*Symbol, error) {
	sym, ok := t.Lookup(name, t.global)
	if !ok || !sym.IsType() {
		return nil, fmt.Errorf("unknown type '%s'", name)
	}
	return sym, nil
}

func (t *Table) resolveRef(d DeclRef) (*Symbol, []Ref, error) {
	if d.Name == "" {
		return nil, nil, fmt.Errorf("declaration without a name")
	}
	typ, err := t.lookupType(d.Type)
	if err != nil {
		return nil, nil, fmt.Errorf("'%s': %w", d.Name, err)
	}
	refs, err := ParseRefs(d.Refs)
	if err != nil {
		return nil, nil, fmt.Errorf("'%s': %w", d.Name, err)
	}
	return typ, refs, nil
}
