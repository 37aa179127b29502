package operators

import "errors"

var (
	// ErrDNSLookupFailed indicates the operator TXT lookup failed.
	ErrDNSLookupFailed = errors.New("operators: DNS lookup failed")

	// ErrDNSSECValidationFailed indicates the upstream did not authenticate the answer.
	ErrDNSSECValidationFailed = errors.New("operators: DNSSEC validation failed")

	// ErrInvalidRecord indicates an operator TXT record is malformed.
	ErrInvalidRecord = errors.New("operators: invalid operator record")

	// ErrEmptyDomain indicates no operator domain was configured.
	ErrEmptyDomain = errors.New("operators: empty domain")

	// ErrZeroAddress indicates an attempt to register the zero address.
	ErrZeroAddress = errors.New("operators: zero address")
)
