package auth

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libmarket-go/revshare"
)

var (
	collection = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	tokenID    = big.NewInt(3)
	price      = new(big.Int).Mul(big.NewInt(1), big.NewInt(1e18))
	now        = time.Unix(1_700_000_000, 0)
)

func newKey(t *testing.T) (*ecdsa.PrivateKey, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key, crypto.PubkeyToAddress(key.PublicKey)
}

func testRoyalty(t *testing.T) *revshare.RoyaltyInfo {
	t.Helper()
	r, err := revshare.NewRoyaltyInfo([]revshare.SplitEntry{
		{Beneficiary: common.HexToAddress("0x01"), Shares: 5000},
		{Beneficiary: common.HexToAddress("0x02"), Shares: 2500},
		{Beneficiary: common.HexToAddress("0x03"), Shares: 2500},
	}, 1000)
	require.NoError(t, err)
	return r
}

func mintAuth(t *testing.T, key *ecdsa.PrivateKey, expiry uint64) *MintAuthorization {
	t.Helper()
	m := &MintAuthorization{
		Collection: collection,
		TokenID:    tokenID,
		TokenURI:   "ipfs://123123",
		Royalty:    testRoyalty(t),
		Expiry:     expiry,
	}
	require.NoError(t, SignMint(m, key))
	return m
}

func saleAuth(t *testing.T, key *ecdsa.PrivateKey, expiry uint64) *SaleAuthorization {
	t.Helper()
	s := &SaleAuthorization{
		Collection: collection,
		TokenID:    tokenID,
		Price:      price,
		Expiry:     expiry,
	}
	require.NoError(t, SignSale(s, key))
	return s
}

type fakeOperators map[common.Address]bool

func (f fakeOperators) IsOperator(_ context.Context, addr common.Address) (bool, error) {
	return f[addr], nil
}

// --- Digest tests ---

func TestRoyaltyHash_EmptyTable(t *testing.T) {
	emptySeq := common.HexToHash("0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470")
	assert.Equal(t, emptySeq, crypto.Keccak256Hash(nil))

	want := crypto.Keccak256Hash(RoyaltyTypeTag[:], emptySeq[:], make([]byte, 32))
	assert.Equal(t, want, RoyaltyHash(nil))
	assert.Equal(t, want, RoyaltyHash(&revshare.RoyaltyInfo{}))
}

func TestRoyaltyHash_BindsExactTable(t *testing.T) {
	base := testRoyalty(t)
	h := RoyaltyHash(base)

	reordered, err := revshare.NewRoyaltyInfo([]revshare.SplitEntry{
		{Beneficiary: common.HexToAddress("0x02"), Shares: 2500},
		{Beneficiary: common.HexToAddress("0x01"), Shares: 5000},
		{Beneficiary: common.HexToAddress("0x03"), Shares: 2500},
	}, 1000)
	require.NoError(t, err)
	assert.NotEqual(t, h, RoyaltyHash(reordered), "entry order is committed")

	otherRate, err := revshare.NewRoyaltyInfo(base.Splits.Entries(), 999)
	require.NoError(t, err)
	assert.NotEqual(t, h, RoyaltyHash(otherRate))

	assert.Equal(t, h, RoyaltyHash(testRoyalty(t)), "hash is deterministic")
}

func TestDigest_FieldSensitivity(t *testing.T) {
	base := &SaleAuthorization{Collection: collection, TokenID: tokenID, Price: price, Expiry: 100}
	d0, err := Digest(base)
	require.NoError(t, err)

	variants := map[string]*SaleAuthorization{
		"collection": {Collection: common.HexToAddress("0x01"), TokenID: tokenID, Price: price, Expiry: 100},
		"token":      {Collection: collection, TokenID: big.NewInt(4), Price: price, Expiry: 100},
		"price":      {Collection: collection, TokenID: tokenID, Price: big.NewInt(1), Expiry: 100},
		"expiry":     {Collection: collection, TokenID: tokenID, Price: price, Expiry: 101},
	}
	for name, v := range variants {
		t.Run(name, func(t *testing.T) {
			d, err := Digest(v)
			require.NoError(t, err)
			assert.NotEqual(t, d0, d)
		})
	}
}

func TestDigest_TypeTagSeparatesKinds(t *testing.T) {
	assert.NotEqual(t, MintTypeTag, SaleTypeTag)

	m := &MintAuthorization{Collection: collection, TokenID: tokenID, Expiry: 100}
	s := &SaleAuthorization{Collection: collection, TokenID: tokenID, Price: big.NewInt(0), Expiry: 100}
	dm, err := Digest(m)
	require.NoError(t, err)
	ds, err := Digest(s)
	require.NoError(t, err)
	assert.NotEqual(t, dm, ds)
}

func TestDigest_OutOfRange(t *testing.T) {
	tooBig := new(big.Int).Lsh(big.NewInt(1), 256)
	_, err := Digest(&SaleAuthorization{Collection: collection, TokenID: tooBig, Price: price})
	assert.ErrorIs(t, err, ErrValueOutOfRange)

	_, err = Digest(&SaleAuthorization{Collection: collection, TokenID: tokenID, Price: big.NewInt(-1)})
	assert.ErrorIs(t, err, ErrValueOutOfRange)

	_, err = Digest(&MintAuthorization{Collection: collection})
	assert.ErrorIs(t, err, ErrValueOutOfRange)

	_, err = Digest(nil)
	assert.ErrorIs(t, err, ErrNilMessage)
}

// --- Signing and recovery tests ---

func TestRecover_KnownKey(t *testing.T) {
	key, err := crypto.ToECDSA(common.LeftPadBytes([]byte{1}, 32))
	require.NoError(t, err)
	want := common.HexToAddress("0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf")

	s := &SaleAuthorization{Collection: collection, TokenID: tokenID, Price: price, Expiry: 1}
	require.NoError(t, SignSale(s, key))
	assert.Len(t, s.Signature, SignatureLength)
	assert.Contains(t, []byte{27, 28}, s.Signature[64])

	digest, err := Digest(s)
	require.NoError(t, err)
	got, err := Recover(digest, s.Signature)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Raw 0/1 recovery id is accepted too.
	raw := append([]byte(nil), s.Signature...)
	raw[64] -= 27
	got, err = Recover(digest, raw)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRecover_Malformed(t *testing.T) {
	digest := crypto.Keccak256Hash([]byte("x"))

	_, err := Recover(digest, make([]byte, 64))
	assert.ErrorIs(t, err, ErrMalformedSignature)

	_, err = Recover(digest, make([]byte, 65))
	assert.ErrorIs(t, err, ErrMalformedSignature)

	key, _ := newKey(t)
	sig, err := crypto.Sign(digest.Bytes(), key)
	require.NoError(t, err)
	sig[64] = 5
	_, err = Recover(digest, sig)
	assert.ErrorIs(t, err, ErrMalformedSignature)
}

// --- Verify tests ---

func TestVerify_ExpiryBoundary(t *testing.T) {
	key, signer := newKey(t)
	expiry := uint64(now.Unix())

	_, err := VerifySale(context.Background(), KindListing, saleAuth(t, key, expiry), ExactSigner(signer), now)
	assert.NoError(t, err, "now == expiry is valid")

	_, err = VerifySale(context.Background(), KindListing, saleAuth(t, key, expiry-1), ExactSigner(signer), now)
	assert.ErrorIs(t, err, ErrExpired, "expiry == now-1 fails")

	_, err = VerifySale(context.Background(), KindListing, saleAuth(t, key, expiry), ExactSigner(signer), now.Add(time.Second))
	assert.ErrorIs(t, err, ErrExpired)
}

func TestVerify_ErrorCarriesKind(t *testing.T) {
	key, _ := newKey(t)
	_, other := newKey(t)

	_, err := VerifySale(context.Background(), KindOperator, saleAuth(t, key, 2e9), ExactSigner(other), now)
	require.ErrorIs(t, err, ErrSignatureMismatch)

	var aerr *Error
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, KindOperator, aerr.Kind)
	assert.Contains(t, err.Error(), "operator authorization")
}

func TestVerify_MintSignedByOwner(t *testing.T) {
	ownerKey, owner := newKey(t)
	m := mintAuth(t, ownerKey, 2e9)

	signer, err := VerifyMint(context.Background(), m, ExactSigner(owner), now)
	require.NoError(t, err)
	assert.Equal(t, owner, signer)
}

func TestVerify_MintTamperedRoyalty(t *testing.T) {
	ownerKey, owner := newKey(t)
	m := mintAuth(t, ownerKey, 2e9)

	other, err := revshare.NewRoyaltyInfo([]revshare.SplitEntry{
		{Beneficiary: common.HexToAddress("0x09"), Shares: 10000},
	}, 1000)
	require.NoError(t, err)
	m.Royalty = other

	_, err = VerifyMint(context.Background(), m, ExactSigner(owner), now)
	assert.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestVerify_MintWrongTokenID(t *testing.T) {
	ownerKey, owner := newKey(t)
	m := mintAuth(t, ownerKey, 2e9)
	m.TokenID = big.NewInt(5)

	_, err := VerifyMint(context.Background(), m, ExactSigner(owner), now)
	assert.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestVerify_SaleSignatureNotReplayableAsMint(t *testing.T) {
	key, signer := newKey(t)
	s := saleAuth(t, key, 2e9)

	m := &MintAuthorization{Collection: collection, TokenID: tokenID, Expiry: 2e9}
	_, err := Verify(context.Background(), KindMint, m, s.Signature, ExactSigner(signer), now)
	assert.ErrorIs(t, err, ErrSignatureMismatch)

	_, err = Verify(context.Background(), KindMint, s, s.Signature, ExactSigner(signer), now)
	assert.ErrorIs(t, err, ErrKindMismatch)
}

func TestVerify_Policies(t *testing.T) {
	ownerKey, owner := newKey(t)
	opKey, op := newKey(t)
	strangerKey, _ := newKey(t)
	ops := fakeOperators{op: true}
	ctx := context.Background()

	tests := []struct {
		name   string
		key    *ecdsa.PrivateKey
		policy SignerPolicy
		ok     bool
	}{
		{"exact match", ownerKey, ExactSigner(owner), true},
		{"exact zero address", ownerKey, ExactSigner(common.Address{}), false},
		{"operator registered", opKey, AnyOperator(ops), true},
		{"operator unregistered", strangerKey, AnyOperator(ops), false},
		{"operator nil registry", opKey, AnyOperator(nil), false},
		{"signer or operator: owner", ownerKey, SignerOrOperator(owner, ops), true},
		{"signer or operator: operator", opKey, SignerOrOperator(owner, ops), true},
		{"signer or operator: stranger", strangerKey, SignerOrOperator(owner, ops), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := VerifySale(ctx, KindOperator, saleAuth(t, tt.key, 2e9), tt.policy, now)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrSignatureMismatch)
			}
		})
	}
}

func TestVerify_PolicyError(t *testing.T) {
	key, _ := newKey(t)
	boom := errors.New("registry down")
	policy := SignerFunc(func(context.Context, common.Address) (bool, error) { return false, boom })

	_, err := VerifySale(context.Background(), KindOperator, saleAuth(t, key, 2e9), policy, now)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, ErrSignerPolicy)
	assert.NotErrorIs(t, err, ErrSignatureMismatch)
}

func TestSign_NilKey(t *testing.T) {
	_, err := Sign(&SaleAuthorization{Collection: collection, TokenID: tokenID, Price: price}, nil)
	assert.ErrorIs(t, err, ErrNilKey)

	assert.ErrorIs(t, SignMint(&MintAuthorization{Collection: collection, TokenID: tokenID}, nil), ErrNilKey)
}

func TestVerify_NilAuthorization(t *testing.T) {
	_, err := VerifyMint(context.Background(), nil, ExactSigner(collection), now)
	assert.ErrorIs(t, err, ErrNilMessage)

	_, err = VerifySale(context.Background(), KindListing, nil, ExactSigner(collection), now)
	assert.ErrorIs(t, err, ErrNilMessage)
}

// --- Ledger grant tests ---

func TestVerifyApproval(t *testing.T) {
	ownerKey, owner := newKey(t)
	otherKey, _ := newKey(t)
	spender := common.HexToAddress("0xee")

	a := &ApprovalAuthorization{Collection: collection, Owner: owner, Spender: spender, Approved: true, Nonce: big.NewInt(1), Expiry: 2e9}
	require.NoError(t, SignApproval(a, ownerKey))
	signer, err := VerifyApproval(context.Background(), a, now)
	require.NoError(t, err)
	assert.Equal(t, owner, signer)

	revoked := *a
	revoked.Approved = false
	_, err = VerifyApproval(context.Background(), &revoked, now)
	assert.ErrorIs(t, err, ErrSignatureMismatch, "approved flag is signed")

	forged := *a
	require.NoError(t, SignApproval(&forged, otherKey))
	_, err = VerifyApproval(context.Background(), &forged, now)
	assert.ErrorIs(t, err, ErrSignatureMismatch)

	_, err = VerifyApproval(context.Background(), nil, now)
	assert.ErrorIs(t, err, ErrNilMessage)
}

func TestVerifyDepositAndCollection(t *testing.T) {
	opKey, op := newKey(t)
	strangerKey, _ := newKey(t)
	ops := fakeOperators{op: true}

	d := &DepositAuthorization{Account: collection, Amount: price, Nonce: big.NewInt(7), Expiry: 2e9}
	require.NoError(t, SignDeposit(d, opKey))
	signer, err := VerifyDeposit(context.Background(), d, AnyOperator(ops), now)
	require.NoError(t, err)
	assert.Equal(t, op, signer)

	require.NoError(t, SignDeposit(d, strangerKey))
	_, err = VerifyDeposit(context.Background(), d, AnyOperator(ops), now)
	assert.ErrorIs(t, err, ErrSignatureMismatch)

	c := &CollectionAuthorization{Collection: collection, Owner: op, Nonce: big.NewInt(1), Expiry: 1}
	require.NoError(t, SignCollection(c, opKey))
	_, err = VerifyCollection(context.Background(), c, AnyOperator(ops), now)
	assert.ErrorIs(t, err, ErrExpired)

	var aerr *Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, KindCollection, aerr.Kind)
}

func TestDigest_GrantTypeTagsDistinct(t *testing.T) {
	tags := []common.Hash{MintTypeTag, SaleTypeTag, ApprovalTypeTag, DepositTypeTag, CollectionTypeTag}
	seen := map[common.Hash]bool{}
	for _, tag := range tags {
		assert.False(t, seen[tag])
		seen[tag] = true
	}

	_, err := Digest(&DepositAuthorization{Account: collection, Amount: big.NewInt(-1), Nonce: big.NewInt(0)})
	assert.ErrorIs(t, err, ErrValueOutOfRange)
	_, err = Digest(&ApprovalAuthorization{Collection: collection})
	assert.ErrorIs(t, err, ErrValueOutOfRange, "nonce is required")
}
