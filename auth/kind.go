// Package auth builds and checks the signed authorizations that gate a sale:
// the creator's mint authorization, the seller's listing and the marketplace
// operator's co-signature. Ledger grants (transfer approvals, escrow deposits
// and collection registrations) are signed the same way.
//
// All of them share one verification path. They differ in the digest they
// commit to and in which signer is accepted.
package auth

// Kind selects the digest layout and error attribution of an authorization.
type Kind uint8

const (
	KindMint Kind = iota + 1
	KindListing
	KindOperator
	KindApproval
	KindDeposit
	KindCollection
)

func (k Kind) String() string {
	switch k {
	case KindMint:
		return "mint"
	case KindListing:
		return "listing"
	case KindOperator:
		return "operator"
	case KindApproval:
		return "approval"
	case KindDeposit:
		return "deposit"
	case KindCollection:
		return "collection"
	default:
		return "unknown"
	}
}

// Message is an unsigned authorization payload.
type Message interface {
	// StructHash commits to the message's type tag and fields.
	StructHash() ([32]byte, error)

	// ExpiresAt is the last unix second at which the message is valid.
	ExpiresAt() uint64
}

func (k Kind) accepts(msg Message) bool {
	switch msg.(type) {
	case *MintAuthorization:
		return k == KindMint
	case *SaleAuthorization:
		return k == KindListing || k == KindOperator
	case *ApprovalAuthorization:
		return k == KindApproval
	case *DepositAuthorization:
		return k == KindDeposit
	case *CollectionAuthorization:
		return k == KindCollection
	default:
		return false
	}
}
