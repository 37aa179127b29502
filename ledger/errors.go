package ledger

import "errors"

var (
	// ErrAlreadyIssued indicates the token id already exists in the collection.
	ErrAlreadyIssued = errors.New("ledger: token already issued")

	// ErrTokenNotFound indicates the token was never issued.
	ErrTokenNotFound = errors.New("ledger: token not found")

	// ErrCollectionNotFound indicates the collection was never created.
	ErrCollectionNotFound = errors.New("ledger: collection not found")

	// ErrCollectionExists indicates the collection address is already registered.
	ErrCollectionExists = errors.New("ledger: collection already exists")

	// ErrNotOwner indicates the transfer source does not own the token.
	ErrNotOwner = errors.New("ledger: not the token owner")

	// ErrNotApproved indicates the spender may not move the owner's tokens.
	ErrNotApproved = errors.New("ledger: transfer not approved")

	// ErrTransferFailed indicates a value transfer could not be credited.
	ErrTransferFailed = errors.New("ledger: value transfer failed")

	// ErrInsufficientBalance indicates a debit larger than the account balance.
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")

	// ErrInvalidAmount indicates a nil or negative amount.
	ErrInvalidAmount = errors.New("ledger: invalid amount")

	// ErrInvalidTokenID indicates a nil, negative or oversized token id.
	ErrInvalidTokenID = errors.New("ledger: invalid token id")

	// ErrZeroAddress indicates a required address is the zero address.
	ErrZeroAddress = errors.New("ledger: zero address")

	// ErrAlreadyConsumed indicates an authorization digest was already used.
	ErrAlreadyConsumed = errors.New("ledger: authorization already consumed")

	// ErrReadOnly indicates a write inside a View transaction.
	ErrReadOnly = errors.New("ledger: read-only transaction")

	// ErrClosed indicates the ledger has been closed.
	ErrClosed = errors.New("ledger: closed")
)
