package token

type Type int

const (
	EOF Type = iota
	Number
	FloatNumber
	Ident
	Operator
	Dot
	Arrow
)

var TypeStrings = map[Type]string{
	EOF:         "EOF",
	Number:      "Number",
	FloatNumber: "FloatNumber",
	Ident:       "Ident",
	Operator:    "Operator",
	Dot:         ".",
	Arrow:       "->",
}

func (t Type) String() string {
	if s, ok := TypeStrings[t]; ok {
		return s
	}
	return "Unknown"
}

// Token is one lexeme of an expression. Value holds the literal text, the
// operator lexeme, or the (possibly '::'-qualified) identifier.
type Token struct {
	Type      Type
	Value     string
	FileIndex int
	Line      int
	Column    int
	Len       int
}
