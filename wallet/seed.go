// Package wallet holds the marketplace's signing keys: a BIP39 mnemonic, the
// seed encrypted at rest, and secp256k1 signer keys derived along the
// Ethereum BIP44 path m/44'/60'/{account}'/0/{index}.
package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/binary"
	"fmt"

	"github.com/bsv-blockchain/go-sdk/compat/bip39"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/argon2"
)

const (
	// Mnemonic entropy sizes.
	Mnemonic12Words = 128
	Mnemonic24Words = 256

	// Encrypted seed layout.
	FormatVersion = 1
	SaltLen       = 16
	NonceLen      = 12
	ChecksumLen   = 4
	headerLen     = 1 + 4 + 4 + 1 + SaltLen + NonceLen
)

// KDFParams are the Argon2id cost parameters stored with each encrypted seed.
type KDFParams struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
}

// DefaultKDFParams are used by EncryptSeed.
var DefaultKDFParams = KDFParams{Time: 3, Memory: 64 * 1024, Threads: 4}

// GenerateMnemonic creates a BIP39 mnemonic from entropyBits of randomness.
func GenerateMnemonic(entropyBits int) (string, error) {
	if entropyBits != Mnemonic12Words && entropyBits != Mnemonic24Words {
		return "", ErrInvalidEntropy
	}
	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return "", fmt.Errorf("wallet: failed to generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("wallet: failed to generate mnemonic: %w", err)
	}
	return mnemonic, nil
}

// ValidateMnemonic reports whether mnemonic is valid BIP39.
func ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(mnemonic)
}

// SeedFromMnemonic derives the 64-byte BIP39 seed. An empty passphrase still
// takes part in the derivation.
func SeedFromMnemonic(mnemonic, passphrase string) ([]byte, error) {
	if !ValidateMnemonic(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, fmt.Errorf("wallet: failed to derive seed: %w", err)
	}
	return seed, nil
}

// EncryptSeed encrypts seed under password with DefaultKDFParams.
func EncryptSeed(seed []byte, password string) ([]byte, error) {
	return EncryptSeedWithParams(seed, password, DefaultKDFParams)
}

// EncryptSeedWithParams encrypts seed with Argon2id and AES-256-GCM.
//
// Layout: version(1) || time(4) || memory(4) || threads(1) || salt(16) ||
// nonce(12) || GCM(seed || keccak256(seed)[:4]). The header is bound to the
// ciphertext as additional data.
func EncryptSeedWithParams(seed []byte, password string, p KDFParams) ([]byte, error) {
	if len(seed) == 0 {
		return nil, ErrInvalidSeed
	}
	if p.Time == 0 || p.Memory == 0 || p.Threads == 0 {
		return nil, fmt.Errorf("wallet: invalid KDF parameters %+v", p)
	}

	header := make([]byte, headerLen)
	header[0] = FormatVersion
	binary.BigEndian.PutUint32(header[1:5], p.Time)
	binary.BigEndian.PutUint32(header[5:9], p.Memory)
	header[9] = p.Threads
	salt := header[10 : 10+SaltLen]
	nonce := header[10+SaltLen:]
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("wallet: failed to generate salt: %w", err)
	}
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("wallet: failed to generate nonce: %w", err)
	}

	gcm, err := newGCM(password, salt, p)
	if err != nil {
		return nil, err
	}

	plaintext := make([]byte, 0, len(seed)+ChecksumLen)
	plaintext = append(plaintext, seed...)
	plaintext = append(plaintext, checksum(seed)...)

	return gcm.Seal(header, nonce, plaintext, header), nil
}

// DecryptSeed reverses EncryptSeedWithParams using the parameters stored in
// the header.
func DecryptSeed(encrypted []byte, password string) ([]byte, error) {
	if len(encrypted) < headerLen+ChecksumLen {
		return nil, ErrDecryptionFailed
	}
	header := encrypted[:headerLen]
	if header[0] != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, header[0])
	}
	p := KDFParams{
		Time:    binary.BigEndian.Uint32(header[1:5]),
		Memory:  binary.BigEndian.Uint32(header[5:9]),
		Threads: header[9],
	}
	if p.Time == 0 || p.Memory == 0 || p.Threads == 0 {
		return nil, ErrDecryptionFailed
	}
	salt := header[10 : 10+SaltLen]
	nonce := header[10+SaltLen:]

	gcm, err := newGCM(password, salt, p)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	plaintext, err := gcm.Open(nil, nonce, encrypted[headerLen:], header)
	if err != nil || len(plaintext) <= ChecksumLen {
		return nil, ErrDecryptionFailed
	}

	seed := plaintext[:len(plaintext)-ChecksumLen]
	if subtle.ConstantTimeCompare(plaintext[len(seed):], checksum(seed)) != 1 {
		return nil, ErrChecksumMismatch
	}
	return seed, nil
}

func newGCM(password string, salt []byte, p KDFParams) (cipher.AEAD, error) {
	key := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, 32)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("wallet: AES cipher creation failed: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("wallet: GCM creation failed: %w", err)
	}
	return gcm, nil
}

func checksum(seed []byte) []byte {
	return crypto.Keccak256(seed)[:ChecksumLen]
}
