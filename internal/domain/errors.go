package domain

import (
	"errors"
	"fmt"
)

// Kind classifies ledger failures so transports can map them to status codes.
type Kind string

const (
	KindUnauthorized          Kind = "Unauthorized"
	KindInvalidInput          Kind = "InvalidInput"
	KindInvalidRecipient      Kind = "InvalidRecipient"
	KindInvalidAmount         Kind = "InvalidAmount"
	KindDuplicateFacility     Kind = "DuplicateFacility"
	KindUnknownFacility       Kind = "UnknownFacility"
	KindFacilityInactive      Kind = "FacilityInactive"
	KindInsufficientBalance   Kind = "InsufficientBalance"
	KindInsufficientAllowance Kind = "InsufficientAllowance"
	KindMissingReason         Kind = "MissingReason"
	KindSystemPaused          Kind = "SystemPaused"
	KindArithmeticOverflow    Kind = "ArithmeticOverflow"
	KindUnknownEntry          Kind = "UnknownEntry"
	KindUnauthenticated       Kind = "Unauthenticated"
)

// Error is the single error type returned by ledger operations.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	case e.Msg != "":
		return e.Msg
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return string(e.Kind)
	}
}

// Is matches on Kind. InvalidRecipient and InvalidAmount are refinements of
// InvalidInput and also match ErrInvalidInput.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == e.Kind {
		return true
	}
	return t.Kind == KindInvalidInput && (e.Kind == KindInvalidRecipient || e.Kind == KindInvalidAmount)
}

var (
	ErrUnauthorized          = &Error{Kind: KindUnauthorized}
	ErrInvalidInput          = &Error{Kind: KindInvalidInput}
	ErrInvalidRecipient      = &Error{Kind: KindInvalidRecipient}
	ErrInvalidAmount         = &Error{Kind: KindInvalidAmount}
	ErrDuplicateFacility     = &Error{Kind: KindDuplicateFacility}
	ErrUnknownFacility       = &Error{Kind: KindUnknownFacility}
	ErrFacilityInactive      = &Error{Kind: KindFacilityInactive}
	ErrInsufficientBalance   = &Error{Kind: KindInsufficientBalance}
	ErrInsufficientAllowance = &Error{Kind: KindInsufficientAllowance}
	ErrMissingReason         = &Error{Kind: KindMissingReason}
	ErrSystemPaused          = &Error{Kind: KindSystemPaused}
	ErrArithmeticOverflow    = &Error{Kind: KindArithmeticOverflow}
	ErrUnknownEntry          = &Error{Kind: KindUnknownEntry}
	ErrUnauthenticated       = &Error{Kind: KindUnauthenticated}
)

// E builds a ledger error of the given kind.
func E(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind carried by err, or "" when err is not a ledger error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
