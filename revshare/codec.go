package revshare

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	royaltyHeaderSize = 12 // basis_points(8) + num_entries(4)
	royaltyEntrySize  = 28 // beneficiary(20) + shares(8)
)

// MarshalRoyalty encodes a royalty to its stored binary form.
// A nil royalty encodes as an empty table with zero basis points.
func MarshalRoyalty(r *RoyaltyInfo) ([]byte, error) {
	var entries []SplitEntry
	var rate uint64
	if r != nil {
		entries = r.Splits.entries
		rate = r.BasisPoints
	}
	if len(entries) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d entries", ErrInvalidRoyaltyData, len(entries))
	}

	buf := make([]byte, royaltyHeaderSize+royaltyEntrySize*len(entries))
	binary.BigEndian.PutUint64(buf[0:8], rate)
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(entries)))

	offset := royaltyHeaderSize
	for _, e := range entries {
		copy(buf[offset:offset+20], e.Beneficiary[:])
		binary.BigEndian.PutUint64(buf[offset+20:offset+28], e.Shares)
		offset += royaltyEntrySize
	}
	return buf, nil
}

// UnmarshalRoyalty decodes and re-validates stored royalty data.
func UnmarshalRoyalty(data []byte) (*RoyaltyInfo, error) {
	if len(data) < royaltyHeaderSize {
		return nil, fmt.Errorf("%w: too short (%d bytes)", ErrInvalidRoyaltyData, len(data))
	}
	rate := binary.BigEndian.Uint64(data[0:8])
	n := int(binary.BigEndian.Uint32(data[8:12]))

	if want := royaltyHeaderSize + royaltyEntrySize*n; len(data) != want {
		return nil, fmt.Errorf("%w: expected %d bytes for %d entries, got %d",
			ErrInvalidRoyaltyData, want, n, len(data))
	}

	entries := make([]SplitEntry, n)
	offset := royaltyHeaderSize
	for i := range entries {
		copy(entries[i].Beneficiary[:], data[offset:offset+20])
		entries[i].Shares = binary.BigEndian.Uint64(data[offset+20 : offset+28])
		offset += royaltyEntrySize
	}
	return NewRoyaltyInfo(entries, rate)
}
