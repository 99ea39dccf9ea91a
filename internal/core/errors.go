package core

import "fmt"

// Kind is the error taxonomy of §7, a small closed set shared by Error and
// Warning. The recoverable per-row kinds (UnmappedSku, Shortfall,
// ZeroDenominator) appear as the Kind of a Warning accompanying a successful
// result; the others are returned in an Error, and InvalidInbound also tags
// the warnings for sales rows skipped during CSV parsing.
type Kind string

const (
	KindInvalidInbound    Kind = "InvalidInbound"
	KindUnmappedSku       Kind = "UnmappedSku"
	KindShortfall         Kind = "Shortfall"
	KindZeroDenominator   Kind = "ZeroDenominator"
	KindBusyWriter        Kind = "BusyWriter"
	KindAbortedByCancel   Kind = "AbortedByCancel"
	KindAbortedByTimeout  Kind = "AbortedByTimeout"
	KindStoreError        Kind = "StoreError"
)

// Error wraps an operation-fatal failure with its taxonomy Kind so callers
// can branch on errors.As instead of string matching.
type Error struct {
	Kind    Kind
	Message string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Result is the structured command response shape of §6: {ok, warnings,
// error?}. The Service methods do not build it: they return their payload,
// a []Warning and a Go error, from which a transport can fill one in.
type Result struct {
	OK       bool      `json:"ok"`
	Warnings []Warning `json:"warnings,omitempty"`
	Error    *Error    `json:"error,omitempty"`
}
