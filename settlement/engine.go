// Package settlement executes marketplace sales. IssueAndSell mints a token
// on its first sale; TransferAndSell resells an issued one. Each runs
// verification, issuance or transfer, and the payout plan inside a single
// ledger transaction, so a failed settlement leaves no trace.
package settlement

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	logging "github.com/ipfs/go-log/v2"

	"github.com/bitfsorg/libmarket-go/auth"
	"github.com/bitfsorg/libmarket-go/ledger"
	"github.com/bitfsorg/libmarket-go/revshare"
)

var log = logging.Logger("settlement")

// OverpaymentPolicy decides where payment above the price goes.
type OverpaymentPolicy uint8

const (
	// Refund pays the excess back to the buyer.
	Refund OverpaymentPolicy = iota
	// Retain credits the excess to the protocol recipient.
	Retain
)

func (p OverpaymentPolicy) String() string {
	switch p {
	case Refund:
		return "refund"
	case Retain:
		return "retain"
	default:
		return "unknown"
	}
}

// ParseOverpaymentPolicy parses "refund" or "retain".
func ParseOverpaymentPolicy(s string) (OverpaymentPolicy, error) {
	switch s {
	case "refund", "":
		return Refund, nil
	case "retain":
		return Retain, nil
	default:
		return 0, errors.New("settlement: unknown overpayment policy " + s)
	}
}

// Kind names the settlement entry point.
type Kind string

const (
	KindIssue    Kind = "issue"
	KindTransfer Kind = "transfer"
)

// Request is one settlement attempt. It is never stored.
type Request struct {
	Collection common.Address
	TokenID    *big.Int

	// TokenURI and Royalty are optional on issue; when set they must match
	// the mint authorization.
	TokenURI string
	Royalty  *revshare.RoyaltyInfo

	Buyer    common.Address
	Mint     *auth.MintAuthorization // issue only
	Listing  *auth.SaleAuthorization
	Operator *auth.SaleAuthorization
	Payment  *big.Int
}

// Receipt describes a completed settlement.
type Receipt struct {
	ID         string
	Kind       Kind
	Collection common.Address
	TokenID    *big.Int
	Buyer      common.Address
	Seller     common.Address
	Price      *big.Int
	Payouts    []revshare.Payout
	Refund     *big.Int // paid back to the buyer
	Retained   *big.Int // kept by the protocol recipient
	SettledAt  time.Time
}

// Config holds the marketplace parameters every settlement uses.
type Config struct {
	// Marketplace is the identity sellers approve to move their tokens.
	Marketplace common.Address
	// ProtocolFee is taken from every sale before splits.
	ProtocolFee revshare.ProtocolFee
}

// Engine runs settlements against a ledger.
type Engine struct {
	ledger    ledger.Ledger
	operators auth.OperatorSet
	cfg       Config

	overpayment OverpaymentPolicy
	replay      bool
	now         func() time.Time
	newID       func() string
	metrics     *Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source used for expiry checks and receipts.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMetrics records settlement outcomes in m.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithReplayProtection records every used listing and mint authorization in
// the ledger and rejects them when submitted again.
func WithReplayProtection() Option {
	return func(e *Engine) { e.replay = true }
}

// WithOverpaymentPolicy selects what happens to payment above the price.
func WithOverpaymentPolicy(p OverpaymentPolicy) Option {
	return func(e *Engine) { e.overpayment = p }
}

// WithIDGenerator replaces the receipt id source.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// NewEngine creates an Engine. ops is consulted for operator co-signatures
// and operator-signed mints.
func NewEngine(l ledger.Ledger, ops auth.OperatorSet, cfg Config, opts ...Option) (*Engine, error) {
	if l == nil {
		return nil, errors.New("settlement: nil ledger")
	}
	if ops == nil {
		return nil, errors.New("settlement: nil operator registry")
	}
	if cfg.Marketplace == (common.Address{}) {
		return nil, errors.New("settlement: marketplace address is required")
	}
	if err := revshare.ValidateProtocolFee(cfg.ProtocolFee); err != nil {
		return nil, err
	}

	e := &Engine{
		ledger:    l,
		operators: ops,
		cfg:       cfg,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the engine's marketplace parameters.
func (e *Engine) Config() Config { return e.cfg }
