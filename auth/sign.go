package auth

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the size of an r || s || v signature.
const SignatureLength = 65

// Sign signs msg's digest with key and returns r || s || v with v in {27, 28}.
func Sign(msg Message, key *ecdsa.PrivateKey) ([]byte, error) {
	if key == nil {
		return nil, ErrNilKey
	}
	digest, err := Digest(msg)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(digest.Bytes(), key)
	if err != nil {
		return nil, fmt.Errorf("auth: sign: %w", err)
	}
	sig[64] += 27
	return sig, nil
}

// SignMint signs m in place.
func SignMint(m *MintAuthorization, key *ecdsa.PrivateKey) error {
	sig, err := Sign(m, key)
	if err != nil {
		return err
	}
	m.Signature = sig
	return nil
}

// SignSale signs s in place.
func SignSale(s *SaleAuthorization, key *ecdsa.PrivateKey) error {
	sig, err := Sign(s, key)
	if err != nil {
		return err
	}
	s.Signature = sig
	return nil
}

// Recover returns the address that produced sig over digest. Both v encodings
// (0/1 and 27/28) are accepted; signatures with a high s value are rejected.
func Recover(digest common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, fmt.Errorf("%w: length %d", ErrMalformedSignature, len(sig))
	}

	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}

	r := new(big.Int).SetBytes(normalized[:32])
	s := new(big.Int).SetBytes(normalized[32:64])
	if !crypto.ValidateSignatureValues(normalized[64], r, s, true) {
		return common.Address{}, fmt.Errorf("%w: invalid r, s or v", ErrMalformedSignature)
	}

	pub, err := crypto.SigToPub(digest.Bytes(), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %w", ErrMalformedSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
