// Package service holds the booking, membership and payment workflows.
// Each workflow runs in one transaction obtained from a database.TxRunner
// and reports failures as *Error values whose Kind decides the HTTP status.
package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/swimming-pool-reservation/internal/repository"
)

// Kind classifies a workflow failure.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindBusinessRule
	KindUnauthorized
	KindForbidden
	KindConflict
	KindUploadFailed
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindNotFound:
		return "NotFound"
	case KindBusinessRule:
		return "BusinessRuleViolation"
	case KindUnauthorized:
		return "Unauthorized"
	case KindForbidden:
		return "Forbidden"
	case KindConflict:
		return "Conflict"
	case KindUploadFailed:
		return "UploadFailed"
	case KindStore:
		return "StoreError"
	}
	return "Unknown"
}

// Error is returned by every workflow.  Message is safe to show to the
// client except for KindStore, whose cause is only logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Business rule sentinels.  They are wrapped in a KindBusinessRule error so
// callers can test for them with errors.Is.
var (
	ErrCapacityExceeded     = errors.New("capacity exceeded")
	ErrAlreadyReserved      = errors.New("already reserved")
	ErrInvalidState         = errors.New("invalid state")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrCategoryNotFound     = errors.New("category not found")
)

func validationErr(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func notFoundErr(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func ruleErr(sentinel error, format string, args ...any) *Error {
	return &Error{Kind: KindBusinessRule, Message: fmt.Sprintf(format, args...), Err: sentinel}
}

func storeErr(op string, err error) *Error {
	return &Error{Kind: KindStore, Message: op, Err: err}
}

// KindOf returns the Kind of err, or KindStore for foreign errors.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindStore
}

// errNoMembership marks payments that cannot pay for a membership.  It
// wraps repository.ErrNotFound so the workflows treat it as "none found".
var errNoMembership = fmt.Errorf("payment is not for a membership: %w", repository.ErrNotFound)
