// Package domainerrors carries coded errors across the service boundary.
//
// Services return *Error values with a Code naming the failure kind. Transport
// layers translate the code into a status without inspecting messages:
//
//	if dErrors.HasCode(err, dErrors.CodeAssetFlagged) { ... }
//
// Stores do not use this package; they return sentinel errors from
// pkg/platform/sentinel which services translate.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies the kind of a domain failure.
type Code string

// Ledger failure kinds.
const (
	CodeUnauthorized       Code = "unauthorized"
	CodeNotFound           Code = "not_found"
	CodeDuplicateAsset     Code = "duplicate_asset"
	CodeZeroFunding        Code = "zero_funding"
	CodeUnregisteredNGO    Code = "unregistered_ngo"
	CodeAssetFlagged       Code = "asset_flagged"
	CodeAlreadyRefunded    Code = "already_refunded"
	CodeNotEligible        Code = "not_eligible"
	CodeNothingToRefund    Code = "nothing_to_refund"
	CodeInsufficientEscrow Code = "insufficient_escrow"
	CodeInvalidAmount      Code = "invalid_amount"
	CodeTransferFailed     Code = "transfer_failed"
	CodeInvalidState       Code = "invalid_state"
)

// Transport and platform failure kinds.
const (
	CodeInvalidInput        Code = "invalid_input"
	CodeBadRequest          Code = "bad_request"
	CodeUnauthenticated     Code = "unauthenticated"
	CodeUnsolicitedTransfer Code = "unsolicited_transfer"
	CodeTimeout             Code = "timeout"
	CodeRateLimited         Code = "rate_limited"
	CodeInternal            Code = "internal_error"
)

// Error is a coded domain error. Err, when set, is the underlying cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Newf creates an error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to err. A nil err yields nil.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode reports whether any *Error in err's chain carries code.
func HasCode(err error, code Code) bool {
	var de *Error
	for err != nil {
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// Is is an alias of HasCode kept for call sites that read better with it.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost code in err's chain, or CodeInternal when err
// carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the outermost domain message, or the error text.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}
