package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrExpired indicates the authorization is past its expiry timestamp.
	ErrExpired = errors.New("auth: authorization expired")

	// ErrSignatureMismatch indicates the recovered signer is not an accepted signer.
	ErrSignatureMismatch = errors.New("auth: signature does not match expected signer")

	// ErrMalformedSignature indicates the signature is not 65 bytes r||s||v or v is out of range.
	ErrMalformedSignature = errors.New("auth: malformed signature")

	// ErrValueOutOfRange indicates an integer that does not fit in a uint256 word.
	ErrValueOutOfRange = errors.New("auth: value out of uint256 range")

	// ErrNilMessage indicates a missing authorization.
	ErrNilMessage = errors.New("auth: nil authorization")

	// ErrSignerPolicy indicates the signer policy could not decide, for example
	// because the operator registry was unreachable.
	ErrSignerPolicy = errors.New("auth: signer policy unavailable")

	// ErrNilKey indicates a missing signing key.
	ErrNilKey = errors.New("auth: nil signing key")

	// ErrKindMismatch indicates a message was checked under a kind it cannot carry.
	ErrKindMismatch = errors.New("auth: message type does not match authorization kind")
)

// Error attributes a verification failure to one authorization kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s authorization: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
