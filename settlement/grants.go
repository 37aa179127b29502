package settlement

import (
	"context"
	"errors"

	"github.com/bitfsorg/libmarket-go/auth"
	"github.com/bitfsorg/libmarket-go/ledger"
)

// Approve applies a signed transfer approval or revocation. Each approval is
// accepted once; the nonce distinguishes repeated grants.
func (e *Engine) Approve(ctx context.Context, a *auth.ApprovalAuthorization) error {
	err := e.ledger.Update(ctx, func(tx ledger.Tx) error {
		signer, err := auth.VerifyApproval(ctx, a, e.now())
		if err != nil {
			return authError(auth.KindApproval, err)
		}
		if err := consume(tx, used{a, signer}); err != nil {
			return err
		}
		if err := tx.Approve(a.Collection, a.Owner, a.Spender, a.Approved); err != nil {
			return fail(CodeInvalid, err)
		}
		return nil
	})
	e.observeGrant(auth.KindApproval, err)
	return asGrantError(err)
}

// Deposit credits escrow on the strength of an operator-signed deposit.
func (e *Engine) Deposit(ctx context.Context, d *auth.DepositAuthorization) error {
	err := e.ledger.Update(ctx, func(tx ledger.Tx) error {
		signer, err := auth.VerifyDeposit(ctx, d, auth.AnyOperator(e.operators), e.now())
		if err != nil {
			return authError(auth.KindDeposit, err)
		}
		if err := consume(tx, used{d, signer}); err != nil {
			return err
		}
		if err := tx.Deposit(d.Account, d.Amount); err != nil {
			return fail(CodeInvalid, err)
		}
		return nil
	})
	e.observeGrant(auth.KindDeposit, err)
	return asGrantError(err)
}

// RegisterCollection creates a collection from an operator-signed
// registration.
func (e *Engine) RegisterCollection(ctx context.Context, c *auth.CollectionAuthorization) error {
	err := e.ledger.Update(ctx, func(tx ledger.Tx) error {
		signer, err := auth.VerifyCollection(ctx, c, auth.AnyOperator(e.operators), e.now())
		if err != nil {
			return authError(auth.KindCollection, err)
		}
		if err := consume(tx, used{c, signer}); err != nil {
			return err
		}
		if err := tx.CreateCollection(c.Collection, c.Owner); err != nil {
			if errors.Is(err, ledger.ErrCollectionExists) {
				return fail(CodeCollectionExists, err)
			}
			return fail(CodeInvalid, err)
		}
		return nil
	})
	e.observeGrant(auth.KindCollection, err)
	return asGrantError(err)
}

func asGrantError(err error) error {
	if err == nil {
		return nil
	}
	return asSettlementError(err)
}
