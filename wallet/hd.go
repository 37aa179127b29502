package wallet

import (
	"crypto/ecdsa"
	"fmt"

	bip32 "github.com/bsv-blockchain/go-sdk/compat/bip32"
	chaincfg "github.com/bsv-blockchain/go-sdk/transaction/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// BIP44 path constants.
	PurposeBIP44     = 44
	CoinTypeEthereum = 60
	ExternalChain    = 0

	// MaxIndex is the largest non-hardened BIP32 child index.
	MaxIndex = 1<<31 - 1

	// Hardened is the BIP32 hardened offset.
	Hardened = 0x80000000
)

// Wallet derives signer keys from a BIP39 seed.
type Wallet struct {
	masterKey *bip32.ExtendedKey
}

// Signer is one derived key and its account address.
type Signer struct {
	Key     *ecdsa.PrivateKey `json:"-"`
	Address common.Address    `json:"address"`
	Path    string            `json:"path"`
}

// NewWallet creates a Wallet from a BIP39 seed.
func NewWallet(seed []byte) (*Wallet, error) {
	if len(seed) == 0 {
		return nil, ErrInvalidSeed
	}
	// Network parameters only affect extended key serialization, which is
	// never exposed here.
	masterKey, err := bip32.NewMaster(seed, &chaincfg.MainNet)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDerivationFailed, err)
	}
	return &Wallet{masterKey: masterKey}, nil
}

// FromMnemonic is SeedFromMnemonic followed by NewWallet.
func FromMnemonic(mnemonic, passphrase string) (*Wallet, error) {
	seed, err := SeedFromMnemonic(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}
	return NewWallet(seed)
}

// Path returns the derivation path of a signer.
func Path(account, index uint32) string {
	return fmt.Sprintf("m/44'/60'/%d'/0/%d", account, index)
}

// DeriveSigner derives the key at m/44'/60'/account'/0/index.
func (w *Wallet) DeriveSigner(account, index uint32) (*Signer, error) {
	if account > MaxIndex || index > MaxIndex {
		return nil, ErrIndexOutOfRange
	}

	key := w.masterKey
	steps := []struct {
		name  string
		child uint32
	}{
		{"purpose", PurposeBIP44 + Hardened},
		{"coin type", CoinTypeEthereum + Hardened},
		{"account", account + Hardened},
		{"chain", ExternalChain},
		{"index", index},
	}
	for _, s := range steps {
		next, err := key.Child(s.child)
		if err != nil {
			return nil, fmt.Errorf("%w: %s derivation: %w", ErrDerivationFailed, s.name, err)
		}
		key = next
	}
	return toSigner(key, Path(account, index))
}

// DeriveSigners derives count consecutive signers of one account starting at
// index 0.
func (w *Wallet) DeriveSigners(account uint32, count int) ([]*Signer, error) {
	signers := make([]*Signer, 0, count)
	for i := 0; i < count; i++ {
		s, err := w.DeriveSigner(account, uint32(i))
		if err != nil {
			return nil, err
		}
		signers = append(signers, s)
	}
	return signers, nil
}

// toSigner converts a BIP32 key into a go-ethereum key.
func toSigner(extKey *bip32.ExtendedKey, path string) (*Signer, error) {
	priv, err := extKey.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to extract EC private key: %w", ErrDerivationFailed, err)
	}
	key, err := crypto.ToECDSA(priv.Serialize())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDerivationFailed, err)
	}
	return &Signer{
		Key:     key,
		Address: crypto.PubkeyToAddress(key.PublicKey),
		Path:    path,
	}, nil
}
