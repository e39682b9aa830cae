package distill

import "fmt"

// ErrorKind classifies distillation failures
type ErrorKind int

const (
	// ErrorKindEmptyInput - the request carried no messages (or no content at all)
	ErrorKindEmptyInput ErrorKind = iota

	// ErrorKindInvalidOptions - options outside their domain, e.g. a negative maxLength
	ErrorKindInvalidOptions

	// ErrorKindDegenerateResult - distillation would produce empty content;
	// an empty result never counts as success
	ErrorKindDegenerateResult
)

// String returns the error kind's wire name
func (k ErrorKind) String() string {
	switch k {
	case ErrorKindEmptyInput:
		return "EmptyInputError"
	case ErrorKindInvalidOptions:
		return "InvalidOptionsError"
	case ErrorKindDegenerateResult:
		return "DegenerateResultError"
	default:
		return "UnknownError"
	}
}

// Error is a typed distillation failure. Callers pattern-match on Kind.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
