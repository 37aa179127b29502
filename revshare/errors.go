package revshare

import "errors"

var (
	// ErrInvalidSplitTotal indicates the split shares do not add up to Denominator.
	ErrInvalidSplitTotal = errors.New("revshare: total shares should be equal to 10000")

	// ErrZeroShares indicates a split entry with a zero share.
	ErrZeroShares = errors.New("revshare: zero share amount")

	// ErrZeroBeneficiary indicates a split entry paying the zero address.
	ErrZeroBeneficiary = errors.New("revshare: zero beneficiary address")

	// ErrInvalidRoyaltyRate indicates a royalty above 100%.
	ErrInvalidRoyaltyRate = errors.New("revshare: royalty basis points exceed 10000")

	// ErrInvalidFeeRate indicates a protocol fee above 100%.
	ErrInvalidFeeRate = errors.New("revshare: protocol fee basis points exceed 10000")

	// ErrInvalidPayment indicates a nil or negative payment amount.
	ErrInvalidPayment = errors.New("revshare: invalid payment amount")

	// ErrNoBeneficiary indicates an empty table with no fallback beneficiary.
	ErrNoBeneficiary = errors.New("revshare: empty split table requires a fallback beneficiary")

	// ErrInvalidRoyaltyData indicates encoded royalty data is malformed.
	ErrInvalidRoyaltyData = errors.New("revshare: invalid royalty data")
)
