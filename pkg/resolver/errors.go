package resolver

import (
	"fmt"

	"github.com/xplshn/typeof/pkg/token"
)

// ErrorKind classifies why a resolution failed.
type ErrorKind struct {
	Code        string
	Name        string
	Description string
}

func (k *ErrorKind) Error() string { return k.Name }

var (
	ErrUnknownIdentifier    = &ErrorKind{"T001", "unknown-identifier", "name not found and no default type available"}
	ErrInvalidCastPosition  = &ErrorKind{"T002", "invalid-cast-position", "typename used where an operator was expected"}
	ErrMalformedOperatorUse = &ErrorKind{"T003", "malformed-operator-use", "operator or operand not valid in this position"}
	ErrUnresolvedOperand    = &ErrorKind{"T004", "unresolved-operand", "operand carries no type"}
	ErrOverloadNotFound     = &ErrorKind{"T005", "overload-not-found", "no operator overload for the operand type"}
	ErrUnknownMember        = &ErrorKind{"T006", "unknown-member", "type has no member of that name"}
)

// Error is a resolution failure at a token. errors.Is matches its Kind.
type Error struct {
	Kind *ErrorKind
	Tok  token.Token
	Msg  string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Kind.Code, e.Msg) }
func (e *Error) Unwrap() error { return e.Kind }

func newError(kind *ErrorKind, tok token.Token, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Tok: tok, Msg: fmt.Sprintf(format, args...)}
}
