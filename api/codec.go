package api

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/bitfsorg/libmarket-go/auth"
	"github.com/bitfsorg/libmarket-go/revshare"
	"github.com/bitfsorg/libmarket-go/settlement"
)

// Addresses are 0x-prefixed hex, amounts and token ids are decimal strings
// and signatures are 0x-prefixed hex.

// Split is one split table entry.
type Split struct {
	Beneficiary string `json:"beneficiary"`
	Shares      uint64 `json:"shares"`
}

// Royalty is the wire form of revshare.RoyaltyInfo.
type Royalty struct {
	Splits      []Split `json:"splits"`
	BasisPoints uint64  `json:"basis_points"`
}

// Mint is the wire form of auth.MintAuthorization.
type Mint struct {
	Collection string   `json:"collection"`
	TokenID    string   `json:"token_id"`
	TokenURI   string   `json:"token_uri"`
	Royalty    *Royalty `json:"royalty,omitempty"`
	Expiry     uint64   `json:"expiry"`
	Signature  string   `json:"signature"`
}

// Sale is the wire form of auth.SaleAuthorization.
type Sale struct {
	Collection string `json:"collection"`
	TokenID    string `json:"token_id"`
	Price      string `json:"price"`
	Expiry     uint64 `json:"expiry"`
	Signature  string `json:"signature"`
}

// SettleRequest is the body of both settlement endpoints. Mint is required
// for issue and ignored for transfer.
type SettleRequest struct {
	Collection string   `json:"collection"`
	TokenID    string   `json:"token_id"`
	TokenURI   string   `json:"token_uri,omitempty"`
	Royalty    *Royalty `json:"royalty,omitempty"`
	Buyer      string   `json:"buyer"`
	Payment    string   `json:"payment"`
	Mint       *Mint    `json:"mint,omitempty"`
	Listing    *Sale    `json:"listing"`
	Operator   *Sale    `json:"operator"`
}

// Payout is one line of a receipt.
type Payout struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Role      string `json:"role"`
}

// Receipt is the wire form of settlement.Receipt.
type Receipt struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Collection string    `json:"collection"`
	TokenID    string    `json:"token_id"`
	Buyer      string    `json:"buyer"`
	Seller     string    `json:"seller"`
	Price      string    `json:"price"`
	Payouts    []Payout  `json:"payouts"`
	Refund     string    `json:"refund"`
	Retained   string    `json:"retained"`
	SettledAt  time.Time `json:"settled_at"`
}

// Token is the wire form of ledger.Token.
type Token struct {
	Collection string   `json:"collection"`
	TokenID    string   `json:"token_id"`
	Owner      string   `json:"owner"`
	URI        string   `json:"uri"`
	Royalty    *Royalty `json:"royalty"`
}

// ParseAddress parses a 0x-prefixed hex address.
func ParseAddress(field, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", field, s)
	}
	return common.HexToAddress(s), nil
}

// ParseAmount parses a non-negative decimal integer.
func ParseAmount(field, s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%s: invalid amount %q", field, s)
	}
	return v, nil
}

func parseSignature(field, s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	sig, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return sig, nil
}

// RoyaltyInfo converts r. A nil r yields nil. Split totals are validated.
func (r *Royalty) RoyaltyInfo() (*revshare.RoyaltyInfo, error) {
	if r == nil {
		return nil, nil
	}
	entries := make([]revshare.SplitEntry, 0, len(r.Splits))
	for i, s := range r.Splits {
		addr, err := ParseAddress(fmt.Sprintf("royalty.splits[%d].beneficiary", i), s.Beneficiary)
		if err != nil {
			return nil, err
		}
		entries = append(entries, revshare.SplitEntry{Beneficiary: addr, Shares: s.Shares})
	}
	return revshare.NewRoyaltyInfo(entries, r.BasisPoints)
}

// FromRoyaltyInfo converts r. A nil r yields nil.
func FromRoyaltyInfo(r *revshare.RoyaltyInfo) *Royalty {
	if r == nil {
		return nil
	}
	out := &Royalty{BasisPoints: r.BasisPoints, Splits: []Split{}}
	for _, e := range r.Splits.Entries() {
		out.Splits = append(out.Splits, Split{Beneficiary: e.Beneficiary.Hex(), Shares: e.Shares})
	}
	return out
}

// Authorization converts m.
func (m *Mint) Authorization() (*auth.MintAuthorization, error) {
	collection, err := ParseAddress("mint.collection", m.Collection)
	if err != nil {
		return nil, err
	}
	id, err := ParseAmount("mint.token_id", m.TokenID)
	if err != nil {
		return nil, err
	}
	royalty, err := m.Royalty.RoyaltyInfo()
	if err != nil {
		return nil, err
	}
	sig, err := parseSignature("mint.signature", m.Signature)
	if err != nil {
		return nil, err
	}
	return &auth.MintAuthorization{
		Collection: collection,
		TokenID:    id,
		TokenURI:   m.TokenURI,
		Royalty:    royalty,
		Expiry:     m.Expiry,
		Signature:  sig,
	}, nil
}

// FromMint converts m.
func FromMint(m *auth.MintAuthorization) *Mint {
	return &Mint{
		Collection: m.Collection.Hex(),
		TokenID:    m.TokenID.String(),
		TokenURI:   m.TokenURI,
		Royalty:    FromRoyaltyInfo(m.Royalty),
		Expiry:     m.Expiry,
		Signature:  encodeSignature(m.Signature),
	}
}

// Authorization converts s. field names the authorization in errors.
func (s *Sale) Authorization(field string) (*auth.SaleAuthorization, error) {
	collection, err := ParseAddress(field+".collection", s.Collection)
	if err != nil {
		return nil, err
	}
	id, err := ParseAmount(field+".token_id", s.TokenID)
	if err != nil {
		return nil, err
	}
	price, err := ParseAmount(field+".price", s.Price)
	if err != nil {
		return nil, err
	}
	sig, err := parseSignature(field+".signature", s.Signature)
	if err != nil {
		return nil, err
	}
	return &auth.SaleAuthorization{
		Collection: collection,
		TokenID:    id,
		Price:      price,
		Expiry:     s.Expiry,
		Signature:  sig,
	}, nil
}

// FromSale converts s.
func FromSale(s *auth.SaleAuthorization) *Sale {
	return &Sale{
		Collection: s.Collection.Hex(),
		TokenID:    s.TokenID.String(),
		Price:      s.Price.String(),
		Expiry:     s.Expiry,
		Signature:  encodeSignature(s.Signature),
	}
}

func encodeSignature(sig []byte) string {
	if len(sig) == 0 {
		return ""
	}
	return hexutil.Encode(sig)
}

// Request converts r into a settlement request.
func (r *SettleRequest) Request() (settlement.Request, error) {
	var req settlement.Request
	var err error

	if req.Collection, err = ParseAddress("collection", r.Collection); err != nil {
		return req, err
	}
	if req.TokenID, err = ParseAmount("token_id", r.TokenID); err != nil {
		return req, err
	}
	if req.Buyer, err = ParseAddress("buyer", r.Buyer); err != nil {
		return req, err
	}
	if req.Payment, err = ParseAmount("payment", r.Payment); err != nil {
		return req, err
	}
	if req.Royalty, err = r.Royalty.RoyaltyInfo(); err != nil {
		return req, err
	}
	req.TokenURI = r.TokenURI

	if r.Mint != nil {
		if req.Mint, err = r.Mint.Authorization(); err != nil {
			return req, err
		}
	}
	if r.Listing != nil {
		if req.Listing, err = r.Listing.Authorization("listing"); err != nil {
			return req, err
		}
	}
	if r.Operator != nil {
		if req.Operator, err = r.Operator.Authorization("operator"); err != nil {
			return req, err
		}
	}
	return req, nil
}

// FromReceipt converts r.
func FromReceipt(r *settlement.Receipt) *Receipt {
	out := &Receipt{
		ID:         r.ID,
		Kind:       string(r.Kind),
		Collection: r.Collection.Hex(),
		TokenID:    r.TokenID.String(),
		Buyer:      r.Buyer.Hex(),
		Seller:     r.Seller.Hex(),
		Price:      r.Price.String(),
		Payouts:    make([]Payout, 0, len(r.Payouts)),
		Refund:     r.Refund.String(),
		Retained:   r.Retained.String(),
		SettledAt:  r.SettledAt.UTC(),
	}
	for _, p := range r.Payouts {
		out.Payouts = append(out.Payouts, Payout{
			Recipient: p.Recipient.Hex(),
			Amount:    p.Amount.String(),
			Role:      p.Role.String(),
		})
	}
	return out
}

// Approval is the wire form of auth.ApprovalAuthorization. The collection
// comes from the URL.
type Approval struct {
	Owner     string `json:"owner"`
	Spender   string `json:"spender"`
	Approved  bool   `json:"approved"`
	Nonce     string `json:"nonce"`
	Expiry    uint64 `json:"expiry"`
	Signature string `json:"signature"`
}

// Authorization converts a to the domain type for collection.
func (a *Approval) Authorization(collection common.Address) (*auth.ApprovalAuthorization, error) {
	owner, err := ParseAddress("owner", a.Owner)
	if err != nil {
		return nil, err
	}
	spender, err := ParseAddress("spender", a.Spender)
	if err != nil {
		return nil, err
	}
	nonce, err := ParseAmount("nonce", a.Nonce)
	if err != nil {
		return nil, err
	}
	sig, err := parseSignature("signature", a.Signature)
	if err != nil {
		return nil, err
	}
	return &auth.ApprovalAuthorization{
		Collection: collection,
		Owner:      owner,
		Spender:    spender,
		Approved:   a.Approved,
		Nonce:      nonce,
		Expiry:     a.Expiry,
		Signature:  sig,
	}, nil
}

// FromApproval converts a signed approval to its wire form.
func FromApproval(a *auth.ApprovalAuthorization) *Approval {
	return &Approval{
		Owner:     a.Owner.Hex(),
		Spender:   a.Spender.Hex(),
		Approved:  a.Approved,
		Nonce:     a.Nonce.String(),
		Expiry:    a.Expiry,
		Signature: encodeSignature(a.Signature),
	}
}

// Deposit is the wire form of auth.DepositAuthorization. The account comes
// from the URL.
type Deposit struct {
	Amount    string `json:"amount"`
	Nonce     string `json:"nonce"`
	Expiry    uint64 `json:"expiry"`
	Signature string `json:"signature"`
}

// Authorization converts d to the domain type for account.
func (d *Deposit) Authorization(account common.Address) (*auth.DepositAuthorization, error) {
	amount, err := ParseAmount("amount", d.Amount)
	if err != nil {
		return nil, err
	}
	nonce, err := ParseAmount("nonce", d.Nonce)
	if err != nil {
		return nil, err
	}
	sig, err := parseSignature("signature", d.Signature)
	if err != nil {
		return nil, err
	}
	return &auth.DepositAuthorization{
		Account:   account,
		Amount:    amount,
		Nonce:     nonce,
		Expiry:    d.Expiry,
		Signature: sig,
	}, nil
}

// FromDeposit converts a signed deposit to its wire form.
func FromDeposit(d *auth.DepositAuthorization) *Deposit {
	return &Deposit{
		Amount:    d.Amount.String(),
		Nonce:     d.Nonce.String(),
		Expiry:    d.Expiry,
		Signature: encodeSignature(d.Signature),
	}
}

// Collection is the wire form of auth.CollectionAuthorization.
type Collection struct {
	Collection string `json:"collection"`
	Owner      string `json:"owner"`
	Nonce      string `json:"nonce"`
	Expiry     uint64 `json:"expiry"`
	Signature  string `json:"signature"`
}

// Authorization converts c to the domain type.
func (c *Collection) Authorization() (*auth.CollectionAuthorization, error) {
	collection, err := ParseAddress("collection", c.Collection)
	if err != nil {
		return nil, err
	}
	owner, err := ParseAddress("owner", c.Owner)
	if err != nil {
		return nil, err
	}
	nonce, err := ParseAmount("nonce", c.Nonce)
	if err != nil {
		return nil, err
	}
	sig, err := parseSignature("signature", c.Signature)
	if err != nil {
		return nil, err
	}
	return &auth.CollectionAuthorization{
		Collection: collection,
		Owner:      owner,
		Nonce:      nonce,
		Expiry:     c.Expiry,
		Signature:  sig,
	}, nil
}

// FromCollection converts a signed registration to its wire form.
func FromCollection(c *auth.CollectionAuthorization) *Collection {
	return &Collection{
		Collection: c.Collection.Hex(),
		Owner:      c.Owner.Hex(),
		Nonce:      c.Nonce.String(),
		Expiry:     c.Expiry,
		Signature:  encodeSignature(c.Signature),
	}
}
