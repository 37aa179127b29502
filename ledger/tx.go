package ledger

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bitfsorg/libmarket-go/revshare"
)

var (
	bucketCollections = []byte("collections")
	bucketTokens      = []byte("tokens")
	bucketApprovals   = []byte("approvals")
	bucketBalances    = []byte("balances")
	bucketConsumed    = []byte("consumed")
	bucketOperators   = []byte("operators")
)

var allBuckets = [][]byte{
	bucketCollections, bucketTokens, bucketApprovals,
	bucketBalances, bucketConsumed, bucketOperators,
}

// store is the raw bucket/key/value surface a backend provides to a
// transaction. get returns nil for a missing key.
type store interface {
	get(bucket, key []byte) []byte
	put(bucket, key, value []byte) error
	del(bucket, key []byte) error
	forEach(bucket []byte, fn func(k, v []byte) error) error
}

type collectionRecord struct {
	Owner common.Address
}

type tokenRecord struct {
	Owner   common.Address
	URI     string
	Royalty []byte // revshare.MarshalRoyalty
}

// ledgerTx implements Tx on top of a backend store.
type ledgerTx struct {
	s        store
	writable bool
}

var _ Tx = (*ledgerTx)(nil)

var maxTokenID = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// tokenKey is collection(20) || tokenID(32, big-endian).
func tokenKey(collection common.Address, tokenID *big.Int) ([]byte, error) {
	if tokenID == nil || tokenID.Sign() < 0 || tokenID.Cmp(maxTokenID) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTokenID, tokenID)
	}
	k := make([]byte, common.AddressLength+32)
	copy(k, collection[:])
	tokenID.FillBytes(k[common.AddressLength:])
	return k, nil
}

// approvalKey is collection || owner || spender.
func approvalKey(collection, owner, spender common.Address) []byte {
	k := make([]byte, 0, 3*common.AddressLength)
	k = append(k, collection[:]...)
	k = append(k, owner[:]...)
	return append(k, spender[:]...)
}

func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	return nil
}

func (t *ledgerTx) checkWritable() error {
	if !t.writable {
		return ErrReadOnly
	}
	return nil
}

// ---------------------------------------------------------------------------
// Collections
// ---------------------------------------------------------------------------

func (t *ledgerTx) CreateCollection(collection, owner common.Address) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	if collection == (common.Address{}) || owner == (common.Address{}) {
		return fmt.Errorf("%w: collection and owner are required", ErrZeroAddress)
	}
	if t.s.get(bucketCollections, collection[:]) != nil {
		return fmt.Errorf("%w: %s", ErrCollectionExists, collection.Hex())
	}
	data, err := encodeGob(collectionRecord{Owner: owner})
	if err != nil {
		return fmt.Errorf("ledger: encode collection: %w", err)
	}
	return t.s.put(bucketCollections, collection[:], data)
}

func (t *ledgerTx) CollectionOwner(collection common.Address) (common.Address, error) {
	data := t.s.get(bucketCollections, collection[:])
	if data == nil {
		return common.Address{}, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection.Hex())
	}
	var rec collectionRecord
	if err := decodeGob(data, &rec); err != nil {
		return common.Address{}, fmt.Errorf("ledger: decode collection: %w", err)
	}
	return rec.Owner, nil
}

// ---------------------------------------------------------------------------
// Tokens
// ---------------------------------------------------------------------------

func (t *ledgerTx) Mint(collection common.Address, tokenID *big.Int, owner common.Address, uri string, royalty *revshare.RoyaltyInfo) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	if owner == (common.Address{}) {
		return fmt.Errorf("%w: token owner", ErrZeroAddress)
	}
	key, err := tokenKey(collection, tokenID)
	if err != nil {
		return err
	}
	if _, err := t.CollectionOwner(collection); err != nil {
		return err
	}
	if t.s.get(bucketTokens, key) != nil {
		return fmt.Errorf("%w: %s #%s", ErrAlreadyIssued, collection.Hex(), tokenID)
	}

	if err := royalty.Validate(); err != nil {
		return err
	}
	encRoyalty, err := revshare.MarshalRoyalty(royalty)
	if err != nil {
		return err
	}
	data, err := encodeGob(tokenRecord{Owner: owner, URI: uri, Royalty: encRoyalty})
	if err != nil {
		return fmt.Errorf("ledger: encode token: %w", err)
	}
	return t.s.put(bucketTokens, key, data)
}

func (t *ledgerTx) record(collection common.Address, tokenID *big.Int) (*tokenRecord, []byte, error) {
	key, err := tokenKey(collection, tokenID)
	if err != nil {
		return nil, nil, err
	}
	data := t.s.get(bucketTokens, key)
	if data == nil {
		return nil, nil, fmt.Errorf("%w: %s #%s", ErrTokenNotFound, collection.Hex(), tokenID)
	}
	var rec tokenRecord
	if err := decodeGob(data, &rec); err != nil {
		return nil, nil, fmt.Errorf("ledger: decode token: %w", err)
	}
	return &rec, key, nil
}

func (t *ledgerTx) Exists(collection common.Address, tokenID *big.Int) (bool, error) {
	key, err := tokenKey(collection, tokenID)
	if err != nil {
		return false, err
	}
	return t.s.get(bucketTokens, key) != nil, nil
}

func (t *ledgerTx) Token(collection common.Address, tokenID *big.Int) (*Token, error) {
	rec, _, err := t.record(collection, tokenID)
	if err != nil {
		return nil, err
	}
	royalty, err := revshare.UnmarshalRoyalty(rec.Royalty)
	if err != nil {
		return nil, err
	}
	return &Token{
		Collection: collection,
		ID:         new(big.Int).Set(tokenID),
		Owner:      rec.Owner,
		URI:        rec.URI,
		Royalty:    royalty,
	}, nil
}

func (t *ledgerTx) OwnerOf(collection common.Address, tokenID *big.Int) (common.Address, error) {
	rec, _, err := t.record(collection, tokenID)
	if err != nil {
		return common.Address{}, err
	}
	return rec.Owner, nil
}

func (t *ledgerTx) Royalty(collection common.Address, tokenID *big.Int) (*revshare.RoyaltyInfo, error) {
	rec, _, err := t.record(collection, tokenID)
	if err != nil {
		return nil, err
	}
	return revshare.UnmarshalRoyalty(rec.Royalty)
}

// ---------------------------------------------------------------------------
// Approvals and transfers
// ---------------------------------------------------------------------------

func (t *ledgerTx) Approve(collection, owner, spender common.Address, approved bool) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	if owner == (common.Address{}) || spender == (common.Address{}) {
		return fmt.Errorf("%w: owner and spender are required", ErrZeroAddress)
	}
	key := approvalKey(collection, owner, spender)
	if !approved {
		return t.s.del(bucketApprovals, key)
	}
	return t.s.put(bucketApprovals, key, []byte{1})
}

func (t *ledgerTx) approved(collection, owner, spender common.Address) bool {
	return owner == spender || t.s.get(bucketApprovals, approvalKey(collection, owner, spender)) != nil
}

func (t *ledgerTx) TransferApproved(collection common.Address, tokenID *big.Int, spender common.Address) (bool, error) {
	owner, err := t.OwnerOf(collection, tokenID)
	if err != nil {
		return false, err
	}
	return t.approved(collection, owner, spender), nil
}

func (t *ledgerTx) Transfer(collection common.Address, tokenID *big.Int, from, to, spender common.Address) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return fmt.Errorf("%w: transfer recipient", ErrZeroAddress)
	}
	rec, key, err := t.record(collection, tokenID)
	if err != nil {
		return err
	}
	if rec.Owner != from {
		return fmt.Errorf("%w: %s does not own %s #%s", ErrNotOwner, from.Hex(), collection.Hex(), tokenID)
	}
	if !t.approved(collection, from, spender) {
		return fmt.Errorf("%w: %s for %s", ErrNotApproved, spender.Hex(), from.Hex())
	}

	rec.Owner = to
	data, err := encodeGob(rec)
	if err != nil {
		return fmt.Errorf("ledger: encode token: %w", err)
	}
	return t.s.put(bucketTokens, key, data)
}

// ---------------------------------------------------------------------------
// Balances
// ---------------------------------------------------------------------------

func (t *ledgerTx) Balance(account common.Address) (*big.Int, error) {
	return new(big.Int).SetBytes(t.s.get(bucketBalances, account[:])), nil
}

func (t *ledgerTx) setBalance(account common.Address, v *big.Int) error {
	if v.Sign() == 0 {
		return t.s.del(bucketBalances, account[:])
	}
	return t.s.put(bucketBalances, account[:], v.Bytes())
}

func (t *ledgerTx) credit(account common.Address, amount *big.Int) error {
	bal, err := t.Balance(account)
	if err != nil {
		return err
	}
	return t.setBalance(account, bal.Add(bal, amount))
}

func (t *ledgerTx) Deposit(account common.Address, amount *big.Int) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	if account == (common.Address{}) {
		return fmt.Errorf("%w: deposit account", ErrZeroAddress)
	}
	return t.credit(account, amount)
}

func (t *ledgerTx) Debit(account common.Address, amount *big.Int) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	bal, err := t.Balance(account)
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s, needs %s", ErrInsufficientBalance, account.Hex(), bal, amount)
	}
	return t.setBalance(account, bal.Sub(bal, amount))
}

func (t *ledgerTx) Pay(recipient common.Address, amount *big.Int) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	if err := checkAmount(amount); err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	if recipient == (common.Address{}) {
		return fmt.Errorf("%w: zero recipient", ErrTransferFailed)
	}
	if err := t.credit(recipient, amount); err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Consumed authorizations
// ---------------------------------------------------------------------------

func (t *ledgerTx) ConsumeAuthorization(digest common.Hash) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	if t.s.get(bucketConsumed, digest[:]) != nil {
		return fmt.Errorf("%w: %s", ErrAlreadyConsumed, digest.Hex())
	}
	return t.s.put(bucketConsumed, digest[:], []byte{1})
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

func (t *ledgerTx) AddOperator(addr common.Address) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	if addr == (common.Address{}) {
		return fmt.Errorf("%w: operator", ErrZeroAddress)
	}
	return t.s.put(bucketOperators, addr[:], []byte{1})
}

func (t *ledgerTx) RemoveOperator(addr common.Address) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	return t.s.del(bucketOperators, addr[:])
}

func (t *ledgerTx) Operators() ([]common.Address, error) {
	var out []common.Address
	err := t.s.forEach(bucketOperators, func(k, _ []byte) error {
		out = append(out, common.BytesToAddress(k))
		return nil
	})
	return out, err
}
