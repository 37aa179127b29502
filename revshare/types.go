// Package revshare holds the split tables that route sale proceeds to
// beneficiaries and the deterministic integer arithmetic that pays them out.
package revshare

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Denominator is the fixed basis-point total every split table must reach.
const Denominator = 10000

// SplitEntry is one beneficiary's share of a split table.
type SplitEntry struct {
	Beneficiary common.Address // Payout address
	Shares      uint64         // Basis points of Denominator
}

// SplitTable is a validated, insertion-ordered list of split entries.
// The zero value is the empty table.
type SplitTable struct {
	entries []SplitEntry
}

// Entries returns a copy of the table's entries in payout order.
func (t SplitTable) Entries() []SplitEntry {
	if len(t.entries) == 0 {
		return nil
	}
	out := make([]SplitEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of entries.
func (t SplitTable) Len() int { return len(t.entries) }

// IsEmpty reports whether the table routes everything to a fallback beneficiary.
func (t SplitTable) IsEmpty() bool { return len(t.entries) == 0 }

// RoyaltyInfo is attached to an asset at issuance and never changes afterwards.
// BasisPoints only applies to resales; on the primary sale the whole
// non-protocol remainder goes through Splits.
type RoyaltyInfo struct {
	Splits      SplitTable
	BasisPoints uint64
}

// ProtocolFee is the marketplace treasury's cut, taken before any split.
type ProtocolFee struct {
	Recipient   common.Address
	BasisPoints uint64
}

// PayoutRole tells why a payout exists.
type PayoutRole uint8

const (
	RoleProtocol PayoutRole = iota // Treasury cut
	RoleSplit                      // Split table entry
	RoleSeller                     // Resale proceeds to the current owner
)

// String returns the role name used in logs and receipts.
func (r PayoutRole) String() string {
	switch r {
	case RoleProtocol:
		return "protocol"
	case RoleSplit:
		return "split"
	case RoleSeller:
		return "seller"
	default:
		return "unknown"
	}
}

// Payout is a single value transfer in a distribution plan.
type Payout struct {
	Recipient common.Address
	Amount    *big.Int
	Role      PayoutRole
}
