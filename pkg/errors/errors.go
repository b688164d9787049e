// Package errors defines the ledger error taxonomy. Every failure the
// engine can produce carries a machine-checkable Kind and a canonical
// human-readable message; callers branch on the kind, audit trails and
// tests rely on the exact message text.
package errors

import (
	"errors"
	"fmt"
)

// Standard error functions
var (
	Is     = errors.Is
	As     = errors.As
	Join   = errors.Join
	Unwrap = errors.Unwrap
)

// Kind discriminates ledger failures.
type Kind string

const (
	KindRestricted       Kind = "Restricted"
	KindReadOnly         Kind = "ReadOnly"
	KindBadFeeArgs       Kind = "BadFeeArgs"
	KindBadNullTransfer  Kind = "BadNullTransfer"
	KindBadTransferTypes Kind = "BadTransferTypes"
	KindBadTransferType  Kind = "BadTransferType"

	KindBadCcyTypeIdA Kind = "BadCcyTypeIdA"
	KindBadCcyTypeIdB Kind = "BadCcyTypeIdB"
	KindBadTokTypeIdA Kind = "BadTokTypeIdA"
	KindBadTokTypeIdB Kind = "BadTokTypeIdB"

	KindBadQtyA Kind = "BadQtyA"
	KindBadQtyB Kind = "BadQtyB"

	KindInsufficientCurrencyA Kind = "InsufficientCurrencyA"
	KindInsufficientCurrencyB Kind = "InsufficientCurrencyB"
	KindInsufficientTokensA   Kind = "InsufficientTokensA"
	KindInsufficientTokensB   Kind = "InsufficientTokensB"

	// Store-level kinds; the engine maps these to the leg-suffixed
	// variants during settlement.
	KindInsufficientBalance Kind = "InsufficientBalance"
	KindInsufficientTokens  Kind = "InsufficientTokens"

	// Registry collaborator kinds, surfaced as-is.
	KindBadCcyTypeId  Kind = "BadCcyTypeId"
	KindBadTokTypeId  Kind = "BadTokTypeId"
	KindDuplicateName Kind = "DuplicateName"

	KindNotFound Kind = "NotFound"
	KindUnknown  Kind = "Unknown"
)

// canonical maps each kind to its single reason string.
var canonical = map[Kind]string{
	KindRestricted:       "caller lacks required privilege",
	KindReadOnly:         "ledger is read-only",
	KindBadFeeArgs:       "invalid fee schedule arguments",
	KindBadNullTransfer:  "transfer moves no value",
	KindBadTransferTypes: "unsupported asset combination",
	KindBadTransferType:  "one-sided transfer requires an explicit transfer type",

	KindBadCcyTypeIdA: "invalid currency type id on leg A",
	KindBadCcyTypeIdB: "invalid currency type id on leg B",
	KindBadTokTypeIdA: "invalid token type id on leg A",
	KindBadTokTypeIdB: "invalid token type id on leg B",

	KindBadQtyA: "quantity out of range on leg A",
	KindBadQtyB: "quantity out of range on leg B",

	KindInsufficientCurrencyA: "insufficient currency balance on leg A",
	KindInsufficientCurrencyB: "insufficient currency balance on leg B",
	KindInsufficientTokensA:   "insufficient token holdings on leg A",
	KindInsufficientTokensB:   "insufficient token holdings on leg B",

	KindInsufficientBalance: "insufficient balance",
	KindInsufficientTokens:  "insufficient token holdings",

	KindBadCcyTypeId:  "unknown currency type id",
	KindBadTokTypeId:  "unknown token type id",
	KindDuplicateName: "name already registered",

	KindNotFound: "not found",
	KindUnknown:  "unknown error",
}

// Error is the ledger error type.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`

	cause error
}

var _ error = (*Error)(nil)

// New returns the canonical error for kind.
func New(kind Kind) *Error {
	msg, ok := canonical[kind]
	if !ok {
		msg = canonical[KindUnknown]
	}
	return &Error{Kind: kind, Message: msg}
}

// Wrap attaches a cause to the canonical error for kind.
func Wrap(kind Kind, cause error) *Error {
	e := New(kind)
	e.cause = cause
	return e
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Reason returns the canonical message alone.
func (e *Error) Reason() string { return e.Message }

func (e *Error) Unwrap() error { return e.cause }

// Is matches on kind so errors.Is(err, errors.New(KindX)) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// KindOf extracts the kind from err, or KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Canonical returns the reason string registered for kind.
func Canonical(kind Kind) string {
	return canonical[kind]
}
