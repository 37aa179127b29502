package wallet

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Create encrypts seed and writes it to path. It fails if path exists.
func Create(path string, seed []byte, password string, p KDFParams) error {
	data, err := EncryptSeedWithParams(seed, password, p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("wallet: create directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrWalletExists, path)
		}
		return fmt.Errorf("wallet: create: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("wallet: write: %w", err)
	}
	return f.Close()
}

// Open reads and decrypts the wallet at path.
func Open(path, password string) (*Wallet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrWalletNotFound, path)
		}
		return nil, fmt.Errorf("wallet: read: %w", err)
	}
	seed, err := DecryptSeed(data, password)
	if err != nil {
		return nil, err
	}
	return NewWallet(seed)
}
