// Package ops holds the operator table: each lexeme's precedence and the
// fixities (binary, unary prefix, unary postfix) it may be used in.
package ops

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"unicode"
)

type Fixity uint8

const (
	Binary Fixity = 1 << iota
	UnaryPre
	UnaryPost
	Unary = UnaryPre | UnaryPost
)

func (f Fixity) String() string {
	switch f {
	case Binary:
		return "binary"
	case UnaryPre:
		return "prefix"
	case UnaryPost:
		return "postfix"
	}
	var s string
	for _, part := range []Fixity{Binary, UnaryPre, UnaryPost} {
		if f&part != 0 {
			if s != "" {
				s += "|"
			}
			s += part.String()
		}
	}
	return s
}

const maxSymbolLen = 3

// PrefixPrec is the precedence a unary prefix operator is pushed with, so it
// binds to the operand that follows before anything else reduces it.
const PrefixPrec = 100

type Info struct {
	Lexeme string
	Flags  Fixity
	Prec   int
}

func (i Info) Has(f Fixity) bool { return i.Flags&f != 0 }

// IsOpener reports whether the lexeme opens a barrier.
func IsOpener(lexeme string) bool { return lexeme == "(" || lexeme == "[" }

// IsCloser reports whether the lexeme closes a barrier.
func IsCloser(lexeme string) bool { return lexeme == ")" || lexeme == "]" }

// Closer returns the token that closes the given opener.
func Closer(opener string) string {
	switch opener {
	case "(":
		return ")"
	case "[":
		return "]"
	}
	return ""
}

var ErrFrozen = errors.New("operator table is read-only; Clone it first")

type Table struct {
	ops    map[string]Info
	frozen bool
}

func NewTable() *Table {
	t := &Table{}
	t.Init()
	return t
}

var (
	standard     *Table
	standardOnce sync.Once
)

// Standard returns the process-wide table. It is built on first use and is
// read-only afterwards.
func Standard() *Table {
	standardOnce.Do(func() {
		standard = NewTable()
		standard.frozen = true
	})
	return standard
}

// Init (re)populates the builtin operators. Calling it again yields the same
// table; custom registrations are dropped.
func (t *Table) Init() {
	t.ops = make(map[string]Info)
	set := func(flags Fixity, prec int, lexemes ...string) {
		for _, l := range lexemes {
			t.ops[l] = Info{Lexeme: l, Flags: flags, Prec: prec}
		}
	}

	// ')' and ']' reduce immediately; '(' and '[' wait until their closer.
	set(UnaryPost, 0, ")", "]")
	set(Binary, 0, "(", "[")

	set(Unary, 20, "++", "--")
	set(UnaryPre, 19, "!", "~", "compl", "sizeof", "new", "delete", "cast")
	set(Binary|UnaryPre, 18, "*")
	set(Binary, 18, "/", "%")
	set(Binary|UnaryPre, 17, "+", "-")
	set(Binary, 16, "<<", ">>")
	set(Binary, 15, "<", "<=", ">", ">=")
	set(Binary, 14, "==", "!=")
	set(Binary|UnaryPre, 13, "&")
	set(Binary, 12, "^")
	set(Binary, 11, "|")
	set(Binary, 10, "&&")
	set(Binary, 9, "^^")
	set(Binary, 8, "||")
	set(Binary, 7, "?", ":")
	set(Binary, 6, "=", "+=", "-=", "*=", "/=", "%=", "&=", "^=", "|=", "<<=", ">>=")
	set(Binary, 5, "throw")
	set(Binary, 4, ",")
}

func (t *Table) Lookup(lexeme string) (Info, bool) {
	info, ok := t.ops[lexeme]
	return info, ok
}

// Clone returns a mutable copy.
func (t *Table) Clone() *Table {
	c := &Table{ops: make(map[string]Info, len(t.ops))}
	for k, v := range t.ops {
		c.ops[k] = v
	}
	return c
}

// Register adds or replaces an operator. Symbolic lexemes are limited to
// three characters; word operators must be identifiers.
func (t *Table) Register(lexeme string, flags Fixity, prec int) error {
	if t.frozen {
		return ErrFrozen
	}
	if lexeme == "" || flags == 0 {
		return fmt.Errorf("invalid operator %q", lexeme)
	}
	if IsOpener(lexeme) || IsCloser(lexeme) {
		return fmt.Errorf("operator %q is reserved", lexeme)
	}
	if !IsWord(lexeme) && len([]rune(lexeme)) > maxSymbolLen {
		return fmt.Errorf("symbolic operator %q is longer than %d characters", lexeme, maxSymbolLen)
	}
	if prec <= 0 || prec >= PrefixPrec {
		return fmt.Errorf("precedence %d of %q out of range (1-%d)", prec, lexeme, PrefixPrec-1)
	}
	t.ops[lexeme] = Info{Lexeme: lexeme, Flags: flags, Prec: prec}
	return nil
}

// IsWord reports whether lexeme is spelled like an identifier (sizeof, new...).
func IsWord(lexeme string) bool {
	for i, r := range lexeme {
		if !(unicode.IsLetter(r) || r == '_' || (i > 0 && unicode.IsDigit(r))) {
			return false
		}
	}
	return lexeme != ""
}

// Match finds the longest symbolic operator in the table starting at
// src[pos], trying three characters, then two, then one. Word operators are
// not matched here.
func (t *Table) Match(src []rune, pos int) (Info, bool) {
	for length := maxSymbolLen; length > 0; length-- {
		if pos+length > len(src) {
			continue
		}
		if info, ok := t.ops[string(src[pos:pos+length])]; ok && !IsWord(info.Lexeme) {
			return info, true
		}
	}
	return Info{}, false
}

// All returns every operator sorted by descending precedence, then lexeme.
func (t *Table) All() []Info {
	all := make([]Info, 0, len(t.ops))
	for _, info := range t.ops {
		all = append(all, info)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Prec != all[j].Prec {
			return all[i].Prec > all[j].Prec
		}
		return all[i].Lexeme < all[j].Lexeme
	})
	return all
}
