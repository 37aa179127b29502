package auth

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/bitfsorg/libmarket-go/revshare"
)

// MintAuthorization lets the holder issue TokenID in Collection with the given
// URI and royalty. Signed by the collection owner or a registered operator.
type MintAuthorization struct {
	Collection common.Address
	TokenID    *big.Int
	TokenURI   string
	Royalty    *revshare.RoyaltyInfo
	Expiry     uint64
	Signature  []byte
}

// StructHash implements Message.
//
//	keccak256(MintTypeTag || collection || tokenId || keccak256(tokenURI) || royaltyHash || expiry)
func (m *MintAuthorization) StructHash() ([32]byte, error) {
	id, err := word(m.TokenID)
	if err != nil {
		return [32]byte{}, err
	}
	royalty := RoyaltyHash(m.Royalty)
	return crypto.Keccak256Hash(
		MintTypeTag[:],
		addressWord(m.Collection),
		id,
		crypto.Keccak256([]byte(m.TokenURI)),
		royalty[:],
		uintWord(m.Expiry),
	), nil
}

// ExpiresAt implements Message.
func (m *MintAuthorization) ExpiresAt() uint64 { return m.Expiry }

// SaleAuthorization commits a signer to selling TokenID at Price. The same
// layout carries both the seller's listing and the operator's co-signature;
// each has its own expiry and signer.
type SaleAuthorization struct {
	Collection common.Address
	TokenID    *big.Int
	Price      *big.Int
	Expiry     uint64
	Signature  []byte
}

// StructHash implements Message.
//
//	keccak256(SaleTypeTag || collection || tokenId || price || expiry)
func (s *SaleAuthorization) StructHash() ([32]byte, error) {
	id, err := word(s.TokenID)
	if err != nil {
		return [32]byte{}, err
	}
	price, err := word(s.Price)
	if err != nil {
		return [32]byte{}, err
	}
	return crypto.Keccak256Hash(
		SaleTypeTag[:],
		addressWord(s.Collection),
		id,
		price,
		uintWord(s.Expiry),
	), nil
}

// ExpiresAt implements Message.
func (s *SaleAuthorization) ExpiresAt() uint64 { return s.Expiry }
