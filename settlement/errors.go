package settlement

import (
	"errors"
	"fmt"
)

// Code classifies a failed settlement.
type Code string

const (
	CodeInvalid                  Code = "Invalid"
	CodeInvalidSplitTotal        Code = "InvalidSplitTotal"
	CodeMintExpired              Code = "MintExpired"
	CodeMintSignatureInvalid     Code = "MintSignatureInvalid"
	CodeListingExpired           Code = "ListingExpired"
	CodeListingInvalid           Code = "ListingInvalid"
	CodeOperatorExpired          Code = "OperatorExpired"
	CodeOperatorSignatureInvalid Code = "OperatorSignatureInvalid"
	CodeOperatorUnavailable      Code = "OperatorUnavailable"
	CodeInsufficientPayment      Code = "InsufficientPayment"
	CodeAlreadyIssued            Code = "AlreadyIssued"
	CodeNotApproved              Code = "NotApproved"
	CodeTransferFailed           Code = "TransferFailed"
	CodeRequestMismatch          Code = "RequestMismatch"
	CodeAuthorizationReplayed    Code = "AuthorizationReplayed"
	CodeGrantExpired             Code = "GrantExpired"
	CodeGrantSignatureInvalid    Code = "GrantSignatureInvalid"
	CodeCollectionExists         Code = "CollectionExists"
)

var (
	// ErrInvalid indicates a malformed request or missing ledger record.
	ErrInvalid = errors.New("settlement: invalid request")

	// ErrInvalidSplitTotal indicates a split table in the request does not sum
	// to 10000. It is reported by InvalidRequest while decoding input.
	ErrInvalidSplitTotal = errors.New("settlement: invalid split total")

	// ErrMintExpired indicates the mint authorization is past its expiry.
	ErrMintExpired = errors.New("settlement: mint authorization expired")

	// ErrMintSignatureInvalid indicates the mint authorization signer is not allowed to mint.
	ErrMintSignatureInvalid = errors.New("settlement: mint signature invalid")

	// ErrListingExpired indicates the seller's listing is past its expiry.
	ErrListingExpired = errors.New("settlement: listing expired")

	// ErrListingInvalid indicates the listing was not signed by the seller.
	ErrListingInvalid = errors.New("settlement: listing invalid")

	// ErrOperatorExpired indicates the operator co-signature is past its expiry.
	ErrOperatorExpired = errors.New("settlement: operator authorization expired")

	// ErrOperatorSignatureInvalid indicates the co-signer is not a registered operator.
	ErrOperatorSignatureInvalid = errors.New("settlement: operator signature invalid")

	// ErrOperatorUnavailable indicates the operator registry could not answer.
	ErrOperatorUnavailable = errors.New("settlement: operator registry unavailable")

	// ErrInsufficientPayment indicates the buyer paid, or holds, less than the price.
	ErrInsufficientPayment = errors.New("settlement: insufficient payment")

	// ErrAlreadyIssued indicates the token id was already minted.
	ErrAlreadyIssued = errors.New("settlement: token already issued")

	// ErrNotApproved indicates the marketplace may not move the seller's token.
	ErrNotApproved = errors.New("settlement: marketplace not approved")

	// ErrTransferFailed indicates a payout could not be credited.
	ErrTransferFailed = errors.New("settlement: transfer failed")

	// ErrRequestMismatch indicates the authorizations disagree with the request or each other.
	ErrRequestMismatch = errors.New("settlement: request does not match authorizations")

	// ErrAuthorizationReplayed indicates a consumed authorization was submitted again.
	ErrAuthorizationReplayed = errors.New("settlement: authorization already used")

	// ErrGrantExpired indicates an approval, deposit or collection grant is past its expiry.
	ErrGrantExpired = errors.New("settlement: grant expired")

	// ErrGrantSignatureInvalid indicates a grant was not signed by an accepted signer.
	ErrGrantSignatureInvalid = errors.New("settlement: grant signature invalid")

	// ErrCollectionExists indicates the collection is already registered.
	ErrCollectionExists = errors.New("settlement: collection already registered")
)

var sentinels = map[Code]error{
	CodeInvalid:                  ErrInvalid,
	CodeInvalidSplitTotal:        ErrInvalidSplitTotal,
	CodeMintExpired:              ErrMintExpired,
	CodeMintSignatureInvalid:     ErrMintSignatureInvalid,
	CodeListingExpired:           ErrListingExpired,
	CodeListingInvalid:           ErrListingInvalid,
	CodeOperatorExpired:          ErrOperatorExpired,
	CodeOperatorSignatureInvalid: ErrOperatorSignatureInvalid,
	CodeOperatorUnavailable:      ErrOperatorUnavailable,
	CodeInsufficientPayment:      ErrInsufficientPayment,
	CodeAlreadyIssued:            ErrAlreadyIssued,
	CodeNotApproved:              ErrNotApproved,
	CodeTransferFailed:           ErrTransferFailed,
	CodeRequestMismatch:          ErrRequestMismatch,
	CodeAuthorizationReplayed:    ErrAuthorizationReplayed,
	CodeGrantExpired:             ErrGrantExpired,
	CodeGrantSignatureInvalid:    ErrGrantSignatureInvalid,
	CodeCollectionExists:         ErrCollectionExists,
}

// Error is returned by every failed settlement. errors.Is matches both the
// code's sentinel and the underlying cause.
type Error struct {
	Code Code
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

func fail(code Code, cause error) error {
	sentinel := sentinels[code]
	if cause == nil {
		return &Error{Code: code, Err: sentinel}
	}
	return &Error{Code: code, Err: fmt.Errorf("%w: %w", sentinel, cause)}
}

func failf(code Code, format string, args ...interface{}) error {
	return fail(code, fmt.Errorf(format, args...))
}

// CodeOf returns the code of a settlement error, or "" if err is not one.
func CodeOf(err error) Code {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.Code
	}
	return ""
}
