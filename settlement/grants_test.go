package settlement

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libmarket-go/auth"
	"github.com/bitfsorg/libmarket-go/ledger"
)

func (f *fixture) approval(owner party, approved bool, nonce int64) *auth.ApprovalAuthorization {
	f.t.Helper()
	a := &auth.ApprovalAuthorization{
		Collection: collection,
		Owner:      owner.addr,
		Spender:    marketplace,
		Approved:   approved,
		Nonce:      big.NewInt(nonce),
		Expiry:     later(),
	}
	require.NoError(f.t, auth.SignApproval(a, owner.key))
	return a
}

func (f *fixture) depositGrant(signer party, account common.Address, amount *big.Int, nonce int64) *auth.DepositAuthorization {
	f.t.Helper()
	d := &auth.DepositAuthorization{
		Account: account,
		Amount:  amount,
		Nonce:   big.NewInt(nonce),
		Expiry:  later(),
	}
	require.NoError(f.t, auth.SignDeposit(d, signer.key))
	return d
}

func TestDeposit_OperatorSigned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.Deposit(ctx, f.depositGrant(f.operator, f.buyer.addr, eth("1"), 1)))
	assert.Equal(t, eth("1").String(), f.balance(f.buyer.addr))

	err := f.engine.Deposit(ctx, f.depositGrant(f.operator, f.buyer.addr, eth("1"), 1))
	require.ErrorIs(t, err, ErrAuthorizationReplayed)
	assert.Equal(t, CodeAuthorizationReplayed, CodeOf(err))

	require.NoError(t, f.engine.Deposit(ctx, f.depositGrant(f.operator, f.buyer.addr, eth("1"), 2)))
	assert.Equal(t, eth("2").String(), f.balance(f.buyer.addr))

	err = f.engine.Deposit(ctx, f.depositGrant(f.buyer, f.buyer.addr, eth("5"), 3))
	require.ErrorIs(t, err, ErrGrantSignatureInvalid)
	assert.Equal(t, CodeGrantSignatureInvalid, CodeOf(err))
	assert.Equal(t, eth("2").String(), f.balance(f.buyer.addr))

	err = f.engine.Deposit(ctx, nil)
	assert.ErrorIs(t, err, auth.ErrNilMessage)
}

func TestDeposit_Expired(t *testing.T) {
	f := newFixture(t)
	d := &auth.DepositAuthorization{Account: f.buyer.addr, Amount: eth("1"), Nonce: big.NewInt(1), Expiry: uint64(testNow.Unix() - 1)}
	require.NoError(t, auth.SignDeposit(d, f.operator.key))

	err := f.engine.Deposit(context.Background(), d)
	require.ErrorIs(t, err, ErrGrantExpired)
	assert.Equal(t, "0", f.balance(f.buyer.addr))
}

func TestDeposit_RegistryUnavailable(t *testing.T) {
	f := newFixture(t)
	engine, err := NewEngine(f.ledger, unreachableRegistry{}, f.engine.Config(), WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)

	err = engine.Deposit(context.Background(), f.depositGrant(f.operator, f.buyer.addr, eth("1"), 1))
	assert.Equal(t, CodeOperatorUnavailable, CodeOf(err))
}

func TestApprove_EnablesResale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	holder := newParty(t)
	f.issueTo(holder, 1, nil)
	f.deposit(f.buyer.addr, eth("1"))

	_, err := f.engine.TransferAndSell(ctx, f.resaleRequest(holder, f.buyer.addr, 1, eth("1"), eth("1")))
	require.ErrorIs(t, err, ErrNotApproved)

	require.NoError(t, f.engine.Approve(ctx, f.approval(holder, true, 1)))
	_, err = f.engine.TransferAndSell(ctx, f.resaleRequest(holder, f.buyer.addr, 1, eth("1"), eth("1")))
	require.NoError(t, err)

	owner, _ := f.owner(1)
	assert.Equal(t, f.buyer.addr, owner)
}

func TestApprove_RevokeAndReplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	holder := newParty(t)

	grant := f.approval(holder, true, 1)
	require.NoError(t, f.engine.Approve(ctx, grant))
	require.NoError(t, f.engine.Approve(ctx, f.approval(holder, false, 2)))

	// A captured grant cannot undo the later revocation.
	err := f.engine.Approve(ctx, grant)
	require.ErrorIs(t, err, ErrAuthorizationReplayed)

	var approved bool
	require.NoError(t, f.ledger.Update(ctx, func(tx ledger.Tx) error {
		if err := tx.Mint(collection, big.NewInt(9), holder.addr, "", nil); err != nil {
			return err
		}
		var err error
		approved, err = tx.TransferApproved(collection, big.NewInt(9), marketplace)
		return err
	}))
	assert.False(t, approved)
}

func TestApprove_SignedByOtherParty(t *testing.T) {
	f := newFixture(t)
	holder := newParty(t)

	a := f.approval(holder, true, 1)
	require.NoError(t, auth.SignApproval(a, f.operator.key))

	err := f.engine.Approve(context.Background(), a)
	require.ErrorIs(t, err, ErrGrantSignatureInvalid)
	assert.ErrorIs(t, err, auth.ErrSignatureMismatch)
}

func TestRegisterCollection(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)
	f := newFixture(t, WithMetrics(m))
	ctx := context.Background()
	fresh := common.HexToAddress("0xc011ec7100000000000000000000000000000002")

	c := &auth.CollectionAuthorization{Collection: fresh, Owner: f.creator.addr, Nonce: big.NewInt(1), Expiry: later()}
	require.NoError(t, auth.SignCollection(c, f.operator.key))
	require.NoError(t, f.engine.RegisterCollection(ctx, c))

	var owner common.Address
	require.NoError(t, f.ledger.View(ctx, func(tx ledger.Tx) error {
		var err error
		owner, err = tx.CollectionOwner(fresh)
		return err
	}))
	assert.Equal(t, f.creator.addr, owner)

	dup := &auth.CollectionAuthorization{Collection: fresh, Owner: f.stranger.addr, Nonce: big.NewInt(2), Expiry: later()}
	require.NoError(t, auth.SignCollection(dup, f.operator.key))
	err = f.engine.RegisterCollection(ctx, dup)
	require.ErrorIs(t, err, ErrCollectionExists)
	assert.Equal(t, CodeCollectionExists, CodeOf(err))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Grants.WithLabelValues("collection", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Grants.WithLabelValues("collection", string(CodeCollectionExists))))
}
