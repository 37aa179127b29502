package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

// BoltLedger is a Ledger persisted in a bbolt database. Each Update is a
// single bbolt read-write transaction.
type BoltLedger struct {
	db *bbolt.DB
}

var _ Ledger = (*BoltLedger)(nil)

// OpenBoltLedger opens or creates the ledger database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltLedger(dbPath string) (*BoltLedger, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("ledger: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("ledger: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: create buckets: %w", err)
	}

	return &BoltLedger{db: db}, nil
}

// Path returns the database file path.
func (l *BoltLedger) Path() string { return l.db.Path() }

// Close closes the underlying database.
func (l *BoltLedger) Close() error { return l.db.Close() }

// Update runs fn inside one bbolt read-write transaction.
func (l *BoltLedger) Update(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.db.Update(func(btx *bbolt.Tx) error {
		return fn(&ledgerTx{s: boltStore{btx}, writable: true})
	})
}

// View runs fn inside a bbolt read-only transaction.
func (l *BoltLedger) View(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.db.View(func(btx *bbolt.Tx) error {
		return fn(&ledgerTx{s: boltStore{btx}})
	})
}

// boltStore adapts a bbolt transaction to store.
type boltStore struct {
	tx *bbolt.Tx
}

func (s boltStore) bucket(name []byte) (*bbolt.Bucket, error) {
	b := s.tx.Bucket(name)
	if b == nil {
		return nil, fmt.Errorf("ledger: missing bucket %q", name)
	}
	return b, nil
}

func (s boltStore) get(bucket, key []byte) []byte {
	b, err := s.bucket(bucket)
	if err != nil {
		return nil
	}
	v := b.Get(key)
	if v == nil {
		return nil
	}
	// Values are only valid for the life of the transaction.
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp
}

func (s boltStore) put(bucket, key, value []byte) error {
	b, err := s.bucket(bucket)
	if err != nil {
		return err
	}
	if err := b.Put(key, value); err != nil {
		return fmt.Errorf("ledger: put %s: %w", bucket, err)
	}
	return nil
}

func (s boltStore) del(bucket, key []byte) error {
	b, err := s.bucket(bucket)
	if err != nil {
		return err
	}
	if err := b.Delete(key); err != nil {
		return fmt.Errorf("ledger: delete %s: %w", bucket, err)
	}
	return nil
}

func (s boltStore) forEach(bucket []byte, fn func(k, v []byte) error) error {
	b, err := s.bucket(bucket)
	if err != nil {
		return err
	}
	return b.ForEach(fn)
}
