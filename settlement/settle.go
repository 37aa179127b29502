package settlement

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/bitfsorg/libmarket-go/auth"
	"github.com/bitfsorg/libmarket-go/ledger"
	"github.com/bitfsorg/libmarket-go/revshare"
)

// IssueAndSell mints req.TokenID to the buyer and pays the collection's split
// table from the listing price.
//
// Checks run in order: payment covers the price; the listing is signed by the
// collection owner; the co-signature comes from a registered operator; the
// mint authorization is signed by the owner or an operator; the token does not
// exist yet. Any failure leaves the ledger untouched.
func (e *Engine) IssueAndSell(ctx context.Context, req Request) (*Receipt, error) {
	start := time.Now()
	receipt, err := e.issueAndSell(ctx, req)
	e.observe(KindIssue, receipt, err, start)
	return receipt, err
}

func (e *Engine) issueAndSell(ctx context.Context, req Request) (*Receipt, error) {
	if req.Mint == nil {
		return nil, failf(CodeInvalid, "mint authorization is required")
	}
	if err := e.checkSaleRequest(req); err != nil {
		return nil, err
	}
	mint := req.Mint
	if mint.Collection != req.Collection || !sameID(mint.TokenID, req.TokenID) {
		return nil, failf(CodeRequestMismatch, "mint authorization names %s #%v", mint.Collection.Hex(), mint.TokenID)
	}
	if req.TokenURI != "" && req.TokenURI != mint.TokenURI {
		return nil, failf(CodeRequestMismatch, "token URI differs from mint authorization")
	}
	if err := mint.Royalty.Validate(); err != nil {
		return nil, fail(CodeInvalid, err)
	}
	if req.Royalty != nil {
		if err := req.Royalty.Validate(); err != nil {
			return nil, fail(CodeInvalid, err)
		}
		if auth.RoyaltyHash(req.Royalty) != auth.RoyaltyHash(mint.Royalty) {
			return nil, failf(CodeRequestMismatch, "royalty differs from mint authorization")
		}
	}

	price := req.Listing.Price
	if err := checkPayment(req.Payment, price); err != nil {
		return nil, err
	}

	now := e.now()
	var receipt *Receipt
	err := e.ledger.Update(ctx, func(tx ledger.Tx) error {
		owner, err := tx.CollectionOwner(req.Collection)
		if err != nil {
			return fail(CodeInvalid, err)
		}

		if _, err := auth.VerifySale(ctx, auth.KindListing, req.Listing, auth.ExactSigner(owner), now); err != nil {
			return authError(auth.KindListing, err)
		}
		if _, err := auth.VerifySale(ctx, auth.KindOperator, req.Operator, auth.AnyOperator(e.operators), now); err != nil {
			return authError(auth.KindOperator, err)
		}
		minter, err := auth.VerifyMint(ctx, mint, auth.SignerOrOperator(owner, e.operators), now)
		if err != nil {
			return authError(auth.KindMint, err)
		}

		if e.replay {
			if err := consume(tx, used{req.Listing, owner}, used{mint, minter}); err != nil {
				return err
			}
		}

		royalty := mint.Royalty
		if royalty == nil {
			royalty = &revshare.RoyaltyInfo{}
		}
		if err := tx.Mint(req.Collection, req.TokenID, req.Buyer, mint.TokenURI, royalty); err != nil {
			if errors.Is(err, ledger.ErrAlreadyIssued) {
				return fail(CodeAlreadyIssued, err)
			}
			return fail(CodeInvalid, err)
		}

		plan, err := revshare.Distribute(price, e.cfg.ProtocolFee, royalty.Splits, owner)
		if err != nil {
			return fail(CodeInvalid, err)
		}
		receipt, err = e.execute(tx, KindIssue, req, owner, price, plan, now)
		return err
	})
	if err != nil {
		return nil, asSettlementError(err)
	}
	return receipt, nil
}

// TransferAndSell moves an issued token from its current owner to the buyer
// and pays the resale plan: protocol cut, royalty recorded at issuance, then
// the seller's proceeds.
//
// The listing must be signed by the owner of record and the marketplace must
// be approved to move the owner's tokens.
func (e *Engine) TransferAndSell(ctx context.Context, req Request) (*Receipt, error) {
	start := time.Now()
	receipt, err := e.transferAndSell(ctx, req)
	e.observe(KindTransfer, receipt, err, start)
	return receipt, err
}

func (e *Engine) transferAndSell(ctx context.Context, req Request) (*Receipt, error) {
	if err := e.checkSaleRequest(req); err != nil {
		return nil, err
	}
	price := req.Listing.Price
	if err := checkPayment(req.Payment, price); err != nil {
		return nil, err
	}

	now := e.now()
	var receipt *Receipt
	err := e.ledger.Update(ctx, func(tx ledger.Tx) error {
		seller, err := tx.OwnerOf(req.Collection, req.TokenID)
		if err != nil {
			return fail(CodeInvalid, err)
		}
		if seller == req.Buyer {
			return failf(CodeInvalid, "buyer already owns the token")
		}

		if _, err := auth.VerifySale(ctx, auth.KindListing, req.Listing, auth.ExactSigner(seller), now); err != nil {
			return authError(auth.KindListing, err)
		}
		if _, err := auth.VerifySale(ctx, auth.KindOperator, req.Operator, auth.AnyOperator(e.operators), now); err != nil {
			return authError(auth.KindOperator, err)
		}

		if e.replay {
			if err := consume(tx, used{req.Listing, seller}); err != nil {
				return err
			}
		}

		if err := tx.Transfer(req.Collection, req.TokenID, seller, req.Buyer, e.cfg.Marketplace); err != nil {
			if errors.Is(err, ledger.ErrNotApproved) {
				return fail(CodeNotApproved, err)
			}
			return fail(CodeTransferFailed, err)
		}

		royalty, err := tx.Royalty(req.Collection, req.TokenID)
		if err != nil {
			return fail(CodeInvalid, err)
		}
		plan, err := revshare.DistributeResale(price, e.cfg.ProtocolFee, royalty, seller)
		if err != nil {
			return fail(CodeInvalid, err)
		}
		receipt, err = e.execute(tx, KindTransfer, req, seller, price, plan, now)
		return err
	})
	if err != nil {
		return nil, asSettlementError(err)
	}
	return receipt, nil
}

// execute takes the buyer's payment, credits every non-zero payout and
// settles any excess. It runs inside the settlement transaction.
func (e *Engine) execute(tx ledger.Tx, kind Kind, req Request, seller common.Address, price *big.Int, plan []revshare.Payout, now time.Time) (*Receipt, error) {
	if err := tx.Debit(req.Buyer, req.Payment); err != nil {
		if errors.Is(err, ledger.ErrInsufficientBalance) {
			return nil, fail(CodeInsufficientPayment, err)
		}
		return nil, fail(CodeInvalid, err)
	}

	for _, p := range plan {
		if p.Amount.Sign() == 0 {
			continue
		}
		if err := tx.Pay(p.Recipient, p.Amount); err != nil {
			return nil, fail(CodeTransferFailed, err)
		}
	}

	receipt := &Receipt{
		ID:         e.newID(),
		Kind:       kind,
		Collection: req.Collection,
		TokenID:    new(big.Int).Set(req.TokenID),
		Buyer:      req.Buyer,
		Seller:     seller,
		Price:      new(big.Int).Set(price),
		Payouts:    plan,
		Refund:     new(big.Int),
		Retained:   new(big.Int),
		SettledAt:  now,
	}

	excess := new(big.Int).Sub(req.Payment, price)
	if excess.Sign() > 0 {
		recipient := req.Buyer
		if e.overpayment == Retain {
			recipient = e.cfg.ProtocolFee.Recipient
			if recipient == (common.Address{}) {
				recipient = e.cfg.Marketplace
			}
		}
		if err := tx.Pay(recipient, excess); err != nil {
			return nil, fail(CodeTransferFailed, err)
		}
		if e.overpayment == Retain {
			receipt.Retained = excess
		} else {
			receipt.Refund = excess
		}
	}
	return receipt, nil
}

// checkSaleRequest validates the fields shared by both entry points and that
// the listing and operator co-signature describe the same sale.
func (e *Engine) checkSaleRequest(req Request) error {
	if req.Listing == nil {
		return failf(CodeInvalid, "listing authorization is required")
	}
	if req.Operator == nil {
		return failf(CodeInvalid, "operator authorization is required")
	}
	if req.TokenID == nil || req.TokenID.Sign() < 0 {
		return failf(CodeInvalid, "invalid token id %v", req.TokenID)
	}
	if req.Buyer == (common.Address{}) {
		return failf(CodeInvalid, "buyer is required")
	}
	if req.Payment == nil || req.Payment.Sign() < 0 {
		return failf(CodeInvalid, "invalid payment %v", req.Payment)
	}

	for _, s := range []*auth.SaleAuthorization{req.Listing, req.Operator} {
		if s.Collection != req.Collection || !sameID(s.TokenID, req.TokenID) {
			return failf(CodeRequestMismatch, "authorization names %s #%v", s.Collection.Hex(), s.TokenID)
		}
		if s.Price == nil || s.Price.Sign() < 0 {
			return failf(CodeInvalid, "invalid price %v", s.Price)
		}
	}
	if req.Listing.Price.Cmp(req.Operator.Price) != 0 {
		return failf(CodeRequestMismatch, "listing price %s, operator price %s", req.Listing.Price, req.Operator.Price)
	}
	return nil
}

func checkPayment(payment, price *big.Int) error {
	if payment.Cmp(price) < 0 {
		return failf(CodeInsufficientPayment, "sent %s, price %s", payment, price)
	}
	return nil
}

func sameID(a, b *big.Int) bool {
	return a != nil && b != nil && a.Cmp(b) == 0
}

// used is one authorization and the signer it was verified against.
type used struct {
	msg    auth.Message
	signer common.Address
}

// consume marks each authorization as spent. The key binds the signer as
// well as the digest: a listing and an operator co-signature share a digest.
func consume(tx ledger.Tx, auths ...used) error {
	for _, a := range auths {
		d, err := auth.Digest(a.msg)
		if err != nil {
			return fail(CodeInvalid, err)
		}
		key := crypto.Keccak256Hash(d[:], a.signer[:])
		if err := tx.ConsumeAuthorization(key); err != nil {
			if errors.Is(err, ledger.ErrAlreadyConsumed) {
				return fail(CodeAuthorizationReplayed, err)
			}
			return fail(CodeInvalid, err)
		}
	}
	return nil
}

// authError maps an auth failure onto the code for its authorization kind.
// A registry that cannot answer is not a bad signature.
func authError(kind auth.Kind, err error) error {
	if errors.Is(err, auth.ErrSignerPolicy) {
		return fail(CodeOperatorUnavailable, err)
	}
	expired := errors.Is(err, auth.ErrExpired)
	switch kind {
	case auth.KindMint:
		if expired {
			return fail(CodeMintExpired, err)
		}
		return fail(CodeMintSignatureInvalid, err)
	case auth.KindListing:
		if expired {
			return fail(CodeListingExpired, err)
		}
		return fail(CodeListingInvalid, err)
	case auth.KindApproval, auth.KindDeposit, auth.KindCollection:
		if expired {
			return fail(CodeGrantExpired, err)
		}
		return fail(CodeGrantSignatureInvalid, err)
	default:
		if expired {
			return fail(CodeOperatorExpired, err)
		}
		return fail(CodeOperatorSignatureInvalid, err)
	}
}

// InvalidRequest classifies an error from building a Request out of untrusted
// input. Split tables only fail their total there: NewSplitTable is the only
// way to fill one.
func InvalidRequest(err error) error {
	if errors.Is(err, revshare.ErrInvalidSplitTotal) {
		return fail(CodeInvalidSplitTotal, err)
	}
	return fail(CodeInvalid, err)
}

// asSettlementError leaves settlement errors alone and classifies anything
// else (context cancellation, storage failures) as CodeInvalid.
func asSettlementError(err error) error {
	var serr *Error
	if errors.As(err, &serr) {
		return err
	}
	return fail(CodeInvalid, err)
}
