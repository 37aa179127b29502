package revshare

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// NewSplitTable validates entries and returns an immutable table.
// Every share must be positive and the shares must sum to exactly Denominator.
// An empty slice yields the empty table.
func NewSplitTable(entries []SplitEntry) (SplitTable, error) {
	if len(entries) == 0 {
		return SplitTable{}, nil
	}

	var total uint64
	for i, e := range entries {
		if e.Shares == 0 {
			return SplitTable{}, fmt.Errorf("%w: entry %d", ErrZeroShares, i)
		}
		if e.Beneficiary == (common.Address{}) {
			return SplitTable{}, fmt.Errorf("%w: entry %d", ErrZeroBeneficiary, i)
		}
		if e.Shares > Denominator || total+e.Shares > Denominator {
			return SplitTable{}, fmt.Errorf("%w: running total exceeds %d at entry %d", ErrInvalidSplitTotal, Denominator, i)
		}
		total += e.Shares
	}
	if total != Denominator {
		return SplitTable{}, fmt.Errorf("%w: got %d", ErrInvalidSplitTotal, total)
	}

	cp := make([]SplitEntry, len(entries))
	copy(cp, entries)
	return SplitTable{entries: cp}, nil
}

// MustSplitTable is NewSplitTable that panics on error. For fixed tables in tests and defaults.
func MustSplitTable(entries ...SplitEntry) SplitTable {
	t, err := NewSplitTable(entries)
	if err != nil {
		panic(err)
	}
	return t
}

// NewRoyaltyInfo validates the split entries and royalty rate.
func NewRoyaltyInfo(entries []SplitEntry, basisPoints uint64) (*RoyaltyInfo, error) {
	if basisPoints > Denominator {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRoyaltyRate, basisPoints)
	}
	table, err := NewSplitTable(entries)
	if err != nil {
		return nil, err
	}
	return &RoyaltyInfo{Splits: table, BasisPoints: basisPoints}, nil
}

// Validate re-checks a royalty that may have been assembled without NewRoyaltyInfo.
func (r *RoyaltyInfo) Validate() error {
	if r == nil {
		return nil
	}
	_, err := NewRoyaltyInfo(r.Splits.entries, r.BasisPoints)
	return err
}

// ValidateProtocolFee checks the treasury fee rate.
func ValidateProtocolFee(fee ProtocolFee) error {
	if fee.BasisPoints > Denominator {
		return fmt.Errorf("%w: %d", ErrInvalidFeeRate, fee.BasisPoints)
	}
	if fee.BasisPoints > 0 && fee.Recipient == (common.Address{}) {
		return fmt.Errorf("%w: protocol recipient", ErrZeroBeneficiary)
	}
	return nil
}
