package auth

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	approvalType   = "Approval(address collection,address owner,address spender,bool approved,uint256 nonce,uint256 expiry)"
	depositType    = "Deposit(address account,uint256 amount,uint256 nonce,uint256 expiry)"
	collectionType = "Collection(address collection,address owner,uint256 nonce,uint256 expiry)"
)

var (
	ApprovalTypeTag   = crypto.Keccak256Hash([]byte(approvalType))
	DepositTypeTag    = crypto.Keccak256Hash([]byte(depositType))
	CollectionTypeTag = crypto.Keccak256Hash([]byte(collectionType))
)

// ApprovalAuthorization grants or revokes Spender's right to move all of
// Owner's tokens in Collection. Signed by Owner.
type ApprovalAuthorization struct {
	Collection common.Address
	Owner      common.Address
	Spender    common.Address
	Approved   bool
	Nonce      *big.Int
	Expiry     uint64
	Signature  []byte
}

// StructHash implements Message.
//
//	keccak256(ApprovalTypeTag || collection || owner || spender || approved || nonce || expiry)
func (a *ApprovalAuthorization) StructHash() ([32]byte, error) {
	nonce, err := word(a.Nonce)
	if err != nil {
		return [32]byte{}, err
	}
	var approved uint64
	if a.Approved {
		approved = 1
	}
	return crypto.Keccak256Hash(
		ApprovalTypeTag[:],
		addressWord(a.Collection),
		addressWord(a.Owner),
		addressWord(a.Spender),
		uintWord(approved),
		nonce,
		uintWord(a.Expiry),
	), nil
}

// ExpiresAt implements Message.
func (a *ApprovalAuthorization) ExpiresAt() uint64 { return a.Expiry }

// DepositAuthorization credits Amount to Account's escrow. Signed by a
// registered operator once the funds have arrived outside the ledger.
type DepositAuthorization struct {
	Account   common.Address
	Amount    *big.Int
	Nonce     *big.Int
	Expiry    uint64
	Signature []byte
}

// StructHash implements Message.
//
//	keccak256(DepositTypeTag || account || amount || nonce || expiry)
func (d *DepositAuthorization) StructHash() ([32]byte, error) {
	amount, err := word(d.Amount)
	if err != nil {
		return [32]byte{}, err
	}
	nonce, err := word(d.Nonce)
	if err != nil {
		return [32]byte{}, err
	}
	return crypto.Keccak256Hash(
		DepositTypeTag[:],
		addressWord(d.Account),
		amount,
		nonce,
		uintWord(d.Expiry),
	), nil
}

// ExpiresAt implements Message.
func (d *DepositAuthorization) ExpiresAt() uint64 { return d.Expiry }

// CollectionAuthorization registers Collection with Owner as its minting
// authority. Signed by a registered operator.
type CollectionAuthorization struct {
	Collection common.Address
	Owner      common.Address
	Nonce      *big.Int
	Expiry     uint64
	Signature  []byte
}

// StructHash implements Message.
//
//	keccak256(CollectionTypeTag || collection || owner || nonce || expiry)
func (c *CollectionAuthorization) StructHash() ([32]byte, error) {
	nonce, err := word(c.Nonce)
	if err != nil {
		return [32]byte{}, err
	}
	return crypto.Keccak256Hash(
		CollectionTypeTag[:],
		addressWord(c.Collection),
		addressWord(c.Owner),
		nonce,
		uintWord(c.Expiry),
	), nil
}

// ExpiresAt implements Message.
func (c *CollectionAuthorization) ExpiresAt() uint64 { return c.Expiry }

// SignApproval signs a in place.
func SignApproval(a *ApprovalAuthorization, key *ecdsa.PrivateKey) error {
	sig, err := Sign(a, key)
	if err != nil {
		return err
	}
	a.Signature = sig
	return nil
}

// SignDeposit signs d in place.
func SignDeposit(d *DepositAuthorization, key *ecdsa.PrivateKey) error {
	sig, err := Sign(d, key)
	if err != nil {
		return err
	}
	d.Signature = sig
	return nil
}

// SignCollection signs c in place.
func SignCollection(c *CollectionAuthorization, key *ecdsa.PrivateKey) error {
	sig, err := Sign(c, key)
	if err != nil {
		return err
	}
	c.Signature = sig
	return nil
}

// VerifyApproval checks that a is unexpired and signed by a.Owner.
func VerifyApproval(ctx context.Context, a *ApprovalAuthorization, now time.Time) (common.Address, error) {
	if a == nil {
		return common.Address{}, &Error{Kind: KindApproval, Err: ErrNilMessage}
	}
	return Verify(ctx, KindApproval, a, a.Signature, ExactSigner(a.Owner), now)
}

// VerifyDeposit checks d against policy, normally AnyOperator.
func VerifyDeposit(ctx context.Context, d *DepositAuthorization, policy SignerPolicy, now time.Time) (common.Address, error) {
	if d == nil {
		return common.Address{}, &Error{Kind: KindDeposit, Err: ErrNilMessage}
	}
	return Verify(ctx, KindDeposit, d, d.Signature, policy, now)
}

// VerifyCollection checks c against policy, normally AnyOperator.
func VerifyCollection(ctx context.Context, c *CollectionAuthorization, policy SignerPolicy, now time.Time) (common.Address, error) {
	if c == nil {
		return common.Address{}, &Error{Kind: KindCollection, Err: ErrNilMessage}
	}
	return Verify(ctx, KindCollection, c, c.Signature, policy, now)
}
