// Package ledger keeps the marketplace's book of record: collections, issued
// tokens with their royalty tables, transfer approvals, account balances and
// the set of consumed authorizations.
//
// All reads and writes happen inside a transaction. Update runs fn against a
// private view and commits only when fn returns nil, so every mutation in one
// settlement lands together or not at all.
package ledger

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bitfsorg/libmarket-go/revshare"
)

// Ledger runs transactions against the book of record.
type Ledger interface {
	// Update runs fn in a read-write transaction. Writes are discarded if fn
	// returns an error or panics. Updates are serialized.
	Update(ctx context.Context, fn func(Tx) error) error

	// View runs fn in a read-only transaction. Writes fail with ErrReadOnly.
	View(ctx context.Context, fn func(Tx) error) error

	// Close releases the underlying storage.
	Close() error
}

// Tx is the set of operations available inside a transaction.
type Tx interface {
	// CreateCollection registers a collection and the address that owns it.
	CreateCollection(collection, owner common.Address) error
	// CollectionOwner returns the collection's owner (the minting authority).
	CollectionOwner(collection common.Address) (common.Address, error)

	// Mint issues tokenID to owner. Fails with ErrAlreadyIssued if it exists.
	Mint(collection common.Address, tokenID *big.Int, owner common.Address, uri string, royalty *revshare.RoyaltyInfo) error
	// Exists reports whether tokenID has been issued.
	Exists(collection common.Address, tokenID *big.Int) (bool, error)
	// Token returns the full token record.
	Token(collection common.Address, tokenID *big.Int) (*Token, error)
	// OwnerOf returns the current owner of record.
	OwnerOf(collection common.Address, tokenID *big.Int) (common.Address, error)
	// Royalty returns the royalty attached at issuance; never nil for an issued token.
	Royalty(collection common.Address, tokenID *big.Int) (*revshare.RoyaltyInfo, error)

	// Approve grants or revokes spender's right to move all of owner's tokens
	// in collection.
	Approve(collection, owner, spender common.Address, approved bool) error
	// TransferApproved reports whether spender may move tokenID.
	TransferApproved(collection common.Address, tokenID *big.Int, spender common.Address) (bool, error)
	// Transfer moves tokenID from -> to on behalf of spender.
	// Fails with ErrNotOwner or ErrNotApproved.
	Transfer(collection common.Address, tokenID *big.Int, from, to, spender common.Address) error

	// Deposit credits an account from outside the ledger.
	Deposit(account common.Address, amount *big.Int) error
	// Debit removes amount from an account. Fails with ErrInsufficientBalance.
	Debit(account common.Address, amount *big.Int) error
	// Pay credits recipient as part of a settlement. Fails with ErrTransferFailed.
	Pay(recipient common.Address, amount *big.Int) error
	// Balance returns the account balance; unknown accounts hold zero.
	Balance(account common.Address) (*big.Int, error)

	// ConsumeAuthorization marks digest as used. Fails with ErrAlreadyConsumed.
	ConsumeAuthorization(digest common.Hash) error

	// AddOperator, RemoveOperator and Operators manage the stored operator set.
	AddOperator(addr common.Address) error
	RemoveOperator(addr common.Address) error
	Operators() ([]common.Address, error)
}

// Token is an issued asset.
type Token struct {
	Collection common.Address
	ID         *big.Int
	Owner      common.Address
	URI        string
	Royalty    *revshare.RoyaltyInfo
}
