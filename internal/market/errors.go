package market

import (
	"errors"

	"dgnmMarket/internal/registry"
)

// Kind classifies an engine failure by how a caller should react to it.
type Kind uint8

const (
	// KindValidation: bad input, nothing changed, retry after correcting it.
	KindValidation Kind = iota + 1
	// KindAuthorization: caller may not perform the operation. Never retried.
	KindAuthorization
	// KindConflict: current state forbids the operation. Re-fetch before retrying.
	KindConflict
	// KindNotFound: the referenced entity does not exist.
	KindNotFound
	// KindIntegrity: a defect or a rejected commit. The operation was rejected in full.
	KindIntegrity
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindIntegrity:
		return "integrity"
	default:
		return "unknown"
	}
}

// Error is a classified engine error. Engine methods wrap these sentinels with
// context, so compare with errors.Is.
type Error struct {
	Kind Kind
	Code string
	msg  string
}

func (e *Error) Error() string {
	return e.msg
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, msg: msg}
}

var (
	ErrTokenNotAccepted    = newError(KindValidation, "TokenNotAccepted", "token not accepted")
	ErrEmptyTokenSet       = newError(KindValidation, "EmptyTokenSet", "empty token set")
	ErrInsufficientPayment = newError(KindValidation, "InsufficientPayment", "insufficient payment")
	ErrInvalidTransition   = newError(KindValidation, "InvalidTransition", "invalid lifecycle transition")
	ErrInvalidPrice        = newError(KindValidation, "InvalidPrice", "invalid price")
	ErrInvalidAmount       = newError(KindValidation, "InvalidAmount", "invalid amount")
	ErrInvalidRecipient    = newError(KindValidation, "InvalidRecipient", "invalid recipient")

	ErrUnauthorized = newError(KindAuthorization, "Unauthorized", "unauthorized")
	ErrNotOwner     = newError(KindAuthorization, "NotOwner", "caller does not own the nft")

	ErrListingNotActive         = newError(KindConflict, "ListingNotActive", "listing not active")
	ErrMintingNotOpen           = newError(KindConflict, "MintingNotOpen", "minting not open")
	ErrTokenLocked              = newError(KindConflict, "TokenLocked", "nft is locked by a listing")
	ErrInsufficientVaultBalance = newError(KindConflict, "InsufficientVaultBalance", "insufficient vault balance")
	ErrNotInitialized           = newError(KindConflict, "NotInitialized", "collection not initialized")
	ErrAlreadyInitialized       = newError(KindConflict, "AlreadyInitialized", "collection already initialized")

	ErrListingNotFound = newError(KindNotFound, "ListingNotFound", "listing not found")
	ErrNFTNotFound     = newError(KindNotFound, "NFTNotFound", "nft not found")

	ErrIntegrity = newError(KindIntegrity, "Integrity", "ledger integrity failure")
)

// KindOf classifies err. Unknown registry tokens are validation failures;
// anything unclassified is treated as an integrity failure.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, registry.ErrUnknownToken) {
		return KindValidation
	}
	return KindIntegrity
}

// CodeOf returns the stable error code for err.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	if errors.Is(err, registry.ErrUnknownToken) {
		return "UnknownToken"
	}
	return ErrIntegrity.Code
}
