package wallet

import "errors"

var (
	// ErrInvalidMnemonic indicates the mnemonic fails BIP39 validation.
	ErrInvalidMnemonic = errors.New("wallet: invalid BIP39 mnemonic")

	// ErrInvalidEntropy indicates entropy bits is not 128 or 256.
	ErrInvalidEntropy = errors.New("wallet: entropy bits must be 128 or 256")

	// ErrInvalidSeed indicates the seed is empty.
	ErrInvalidSeed = errors.New("wallet: invalid seed")

	// ErrIndexOutOfRange indicates an account or address index is at or above
	// the BIP32 hardened offset.
	ErrIndexOutOfRange = errors.New("wallet: index exceeds maximum (2^31-1)")

	// ErrDerivationFailed indicates BIP32 key derivation failed.
	ErrDerivationFailed = errors.New("wallet: key derivation failed")

	// ErrDecryptionFailed indicates wrong password or corrupted wallet data.
	ErrDecryptionFailed = errors.New("wallet: seed decryption failed (wrong password or corrupted data)")

	// ErrChecksumMismatch indicates the seed checksum did not verify after decryption.
	ErrChecksumMismatch = errors.New("wallet: seed checksum mismatch")

	// ErrUnsupportedVersion indicates an encrypted wallet written by an unknown format version.
	ErrUnsupportedVersion = errors.New("wallet: unsupported wallet file version")

	// ErrWalletNotFound indicates no wallet file exists at the given path.
	ErrWalletNotFound = errors.New("wallet: wallet file not found")

	// ErrWalletExists indicates a wallet file is already present.
	ErrWalletExists = errors.New("wallet: wallet file already exists")
)
