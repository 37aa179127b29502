package revshare

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var denominator = big.NewInt(Denominator)

// bps returns floor(amount * basisPoints / Denominator).
func bps(amount *big.Int, basisPoints uint64) *big.Int {
	v := new(big.Int).Mul(amount, new(big.Int).SetUint64(basisPoints))
	return v.Quo(v, denominator)
}

// splitAmount spreads amount over the table. Every entry but the last gets its
// floor share; the last gets amount minus everything already assigned, so the
// payouts always add up to amount.
func splitAmount(amount *big.Int, table SplitTable) []Payout {
	payouts := make([]Payout, len(table.entries))
	distributed := new(big.Int)
	for i, e := range table.entries {
		payouts[i].Recipient = e.Beneficiary
		payouts[i].Role = RoleSplit
		if i == len(table.entries)-1 {
			payouts[i].Amount = new(big.Int).Sub(amount, distributed)
			break
		}
		share := bps(amount, e.Shares)
		payouts[i].Amount = share
		distributed.Add(distributed, share)
	}
	return payouts
}

func checkPayment(payment *big.Int) error {
	if payment == nil || payment.Sign() < 0 {
		return ErrInvalidPayment
	}
	return nil
}

// Distribute computes the primary-sale payout plan.
//
//	protocolCut = floor(payment * fee.BasisPoints / 10000)
//	remainder   = payment - protocolCut
//
// The remainder goes through splits; an empty table sends it all to fallback.
// The first payout is always the protocol cut, followed by the split entries
// in table order.
func Distribute(payment *big.Int, fee ProtocolFee, splits SplitTable, fallback common.Address) ([]Payout, error) {
	if err := checkPayment(payment); err != nil {
		return nil, err
	}
	if err := ValidateProtocolFee(fee); err != nil {
		return nil, err
	}
	if splits.IsEmpty() && fallback == (common.Address{}) {
		return nil, ErrNoBeneficiary
	}

	protocolCut := bps(payment, fee.BasisPoints)
	remainder := new(big.Int).Sub(payment, protocolCut)

	plan := make([]Payout, 0, splits.Len()+1)
	plan = append(plan, Payout{Recipient: fee.Recipient, Amount: protocolCut, Role: RoleProtocol})
	if splits.IsEmpty() {
		return append(plan, Payout{Recipient: fallback, Amount: remainder, Role: RoleSplit}), nil
	}
	return append(plan, splitAmount(remainder, splits)...), nil
}

// DistributeResale computes the payout plan for a sale of an already issued
// asset. The royalty is taken from the full price and spread over the royalty
// table; the seller receives what is left after the protocol cut and royalty.
func DistributeResale(price *big.Int, fee ProtocolFee, royalty *RoyaltyInfo, seller common.Address) ([]Payout, error) {
	if err := checkPayment(price); err != nil {
		return nil, err
	}
	if err := ValidateProtocolFee(fee); err != nil {
		return nil, err
	}
	if seller == (common.Address{}) {
		return nil, ErrNoBeneficiary
	}

	protocolCut := bps(price, fee.BasisPoints)
	plan := []Payout{{Recipient: fee.Recipient, Amount: protocolCut, Role: RoleProtocol}}

	royaltyAmount := new(big.Int)
	if royalty != nil && !royalty.Splits.IsEmpty() && royalty.BasisPoints > 0 {
		royaltyAmount = bps(price, royalty.BasisPoints)
		plan = append(plan, splitAmount(royaltyAmount, royalty.Splits)...)
	}

	proceeds := new(big.Int).Sub(price, protocolCut)
	proceeds.Sub(proceeds, royaltyAmount)
	if proceeds.Sign() < 0 {
		return nil, fmt.Errorf("%w: protocol fee and royalty exceed price", ErrInvalidPayment)
	}
	return append(plan, Payout{Recipient: seller, Amount: proceeds, Role: RoleSeller}), nil
}

// Total sums the amounts of a plan.
func Total(plan []Payout) *big.Int {
	sum := new(big.Int)
	for _, p := range plan {
		sum.Add(sum, p.Amount)
	}
	return sum
}

// ValidateDistribution checks that plan is exactly what Distribute produces for
// the same inputs.
func ValidateDistribution(plan []Payout, payment *big.Int, fee ProtocolFee, splits SplitTable, fallback common.Address) error {
	expected, err := Distribute(payment, fee, splits, fallback)
	if err != nil {
		return err
	}
	if len(plan) != len(expected) {
		return fmt.Errorf("payout count %d != expected %d", len(plan), len(expected))
	}
	for i := range plan {
		if plan[i].Recipient != expected[i].Recipient {
			return fmt.Errorf("payout %d: recipient mismatch", i)
		}
		if plan[i].Amount.Cmp(expected[i].Amount) != 0 {
			return fmt.Errorf("payout %d: amount %s != expected %s", i, plan[i].Amount, expected[i].Amount)
		}
	}
	return nil
}
