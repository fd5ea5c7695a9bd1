package srs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure returned by this package.
type Kind int

const (
	// KindInternal is an unexpected fault normalised at an operation boundary.
	KindInternal Kind = iota
	// KindValidation is a request that violates an input constraint.
	KindValidation
	// KindNotFound is an unknown source or card id.
	KindNotFound
	// KindEmptyInput is a request with nothing to work on.
	KindEmptyInput
)

var kindNames = [...]string{
	KindInternal:   "internal",
	KindValidation: "validation",
	KindNotFound:   "not_found",
	KindEmptyInput: "empty_input",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Sentinel errors. Check with errors.Is; they are always wrapped in *Error.
var (
	ErrInvalidQuality      = errors.New("srs: quality out of range")
	ErrInvalidCardLimit    = errors.New("srs: card limit out of range")
	ErrInvalidResponseTime = errors.New("srs: negative response time")
	ErrInvalidDifficulty   = errors.New("srs: unknown difficulty")
	ErrMissingSourceID     = errors.New("srs: source id is required")
	ErrNilDeck             = errors.New("srs: deck is nil")
	ErrInvalidConfig       = errors.New("srs: scheduler config out of bounds")
	ErrCardNotFound        = errors.New("srs: card not found")
	ErrSourceNotFound      = errors.New("srs: source not found")
	ErrNoEligibleContent   = errors.New("srs: no eligible segments")
)

// Error is the structured failure value returned by every public operation.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an *Error wrapping cause.
func NewError(kind Kind, op string, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...), Err: cause}
}

// KindOf reports the kind of err. Errors that did not come from this package
// are reported as KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// recoverInternal converts a panic inside op into an internal *Error stored in *errp.
func recoverInternal(op string, errp *error) {
	if r := recover(); r != nil {
		*errp = &Error{Kind: KindInternal, Op: op, Message: fmt.Sprintf("unexpected fault: %v", r)}
	}
}
