package auth

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/bitfsorg/libmarket-go/revshare"
)

// Type tags. Each hashed message starts with one so a signature over one
// layout can never verify as another.
const (
	splitType   = "Split(address account,uint96 shares)"
	royaltyType = "Royalty(Split[] splits,uint96 percentage)"
	mintType    = "Mint(address collection,uint256 tokenId,string tokenURI,Royalty royalty,uint256 expiry)"
	saleType    = "Sale(address collection,uint256 tokenId,uint256 price,uint256 expiry)"
)

var (
	SplitTypeTag   = crypto.Keccak256Hash([]byte(splitType))
	RoyaltyTypeTag = crypto.Keccak256Hash([]byte(royaltyType + splitType))
	MintTypeTag    = crypto.Keccak256Hash([]byte(mintType + royaltyType + splitType))
	SaleTypeTag    = crypto.Keccak256Hash([]byte(saleType))
)

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// word encodes a non-negative integer as a 32-byte big-endian word.
func word(v *big.Int) ([]byte, error) {
	if v == nil || v.Sign() < 0 || v.Cmp(maxUint256) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrValueOutOfRange, v)
	}
	return common.LeftPadBytes(v.Bytes(), 32), nil
}

func uintWord(v uint64) []byte {
	return common.LeftPadBytes(new(big.Int).SetUint64(v).Bytes(), 32)
}

func addressWord(a common.Address) []byte {
	return common.LeftPadBytes(a.Bytes(), 32)
}

// SplitHash hashes one split entry under SplitTypeTag.
func SplitHash(e revshare.SplitEntry) common.Hash {
	return crypto.Keccak256Hash(SplitTypeTag[:], addressWord(e.Beneficiary), uintWord(e.Shares))
}

// RoyaltyHash binds the exact royalty table: every entry is hashed on its own,
// then the ordered sequence of entry hashes is hashed together with the rate.
// A nil royalty hashes as an empty table with a zero rate.
func RoyaltyHash(r *revshare.RoyaltyInfo) common.Hash {
	var entries []revshare.SplitEntry
	var rate uint64
	if r != nil {
		entries = r.Splits.Entries()
		rate = r.BasisPoints
	}

	seq := make([]byte, 0, 32*len(entries))
	for _, e := range entries {
		h := SplitHash(e)
		seq = append(seq, h[:]...)
	}
	return crypto.Keccak256Hash(RoyaltyTypeTag[:], crypto.Keccak256(seq), uintWord(rate))
}

// SignedDigest wraps a struct hash in the personal-message envelope
// ("\x19Ethereum Signed Message:\n32" || hash) that wallets sign.
func SignedDigest(structHash [32]byte) common.Hash {
	return common.BytesToHash(accounts.TextHash(structHash[:]))
}

// Digest returns the signed digest of msg.
func Digest(msg Message) (common.Hash, error) {
	if msg == nil {
		return common.Hash{}, ErrNilMessage
	}
	h, err := msg.StructHash()
	if err != nil {
		return common.Hash{}, err
	}
	return SignedDigest(h), nil
}
