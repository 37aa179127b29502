package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// OperatorSet answers whether an address is a registered marketplace operator.
type OperatorSet interface {
	IsOperator(ctx context.Context, addr common.Address) (bool, error)
}

// SignerPolicy decides whether a recovered signer is acceptable.
type SignerPolicy interface {
	Accepts(ctx context.Context, signer common.Address) (bool, error)
}

// SignerFunc adapts a function to SignerPolicy.
type SignerFunc func(ctx context.Context, signer common.Address) (bool, error)

// Accepts implements SignerPolicy.
func (f SignerFunc) Accepts(ctx context.Context, signer common.Address) (bool, error) {
	return f(ctx, signer)
}

// ExactSigner accepts only want.
func ExactSigner(want common.Address) SignerPolicy {
	return SignerFunc(func(_ context.Context, signer common.Address) (bool, error) {
		return want != (common.Address{}) && signer == want, nil
	})
}

// AnyOperator accepts any address currently in ops.
func AnyOperator(ops OperatorSet) SignerPolicy {
	return SignerFunc(func(ctx context.Context, signer common.Address) (bool, error) {
		if ops == nil {
			return false, nil
		}
		return ops.IsOperator(ctx, signer)
	})
}

// SignerOrOperator accepts want or any address in ops.
func SignerOrOperator(want common.Address, ops OperatorSet) SignerPolicy {
	exact, anyOp := ExactSigner(want), AnyOperator(ops)
	return SignerFunc(func(ctx context.Context, signer common.Address) (bool, error) {
		if ok, _ := exact.Accepts(ctx, signer); ok {
			return true, nil
		}
		return anyOp.Accepts(ctx, signer)
	})
}

// Verify checks that msg is unexpired at now and that sig was produced by a
// signer policy accepts. now == expiry is still valid.
//
// Failures are returned as *Error carrying kind; ErrExpired,
// ErrSignatureMismatch and ErrSignerPolicy are reachable through errors.Is.
func Verify(ctx context.Context, kind Kind, msg Message, sig []byte, policy SignerPolicy, now time.Time) (common.Address, error) {
	fail := func(err error) (common.Address, error) {
		return common.Address{}, &Error{Kind: kind, Err: err}
	}

	if msg == nil {
		return fail(ErrNilMessage)
	}
	if !kind.accepts(msg) {
		return fail(fmt.Errorf("%w: %T as %s", ErrKindMismatch, msg, kind))
	}

	if expired(msg.ExpiresAt(), now) {
		return fail(fmt.Errorf("%w: expiry %d, now %d", ErrExpired, msg.ExpiresAt(), now.Unix()))
	}

	digest, err := Digest(msg)
	if err != nil {
		return fail(err)
	}
	signer, err := Recover(digest, sig)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrSignatureMismatch, err))
	}

	ok, err := policy.Accepts(ctx, signer)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrSignerPolicy, err))
	}
	if !ok {
		return fail(fmt.Errorf("%w: recovered %s", ErrSignatureMismatch, signer.Hex()))
	}
	return signer, nil
}

func expired(expiry uint64, now time.Time) bool {
	unix := now.Unix()
	if unix < 0 {
		return false
	}
	return uint64(unix) > expiry
}

// VerifyMint verifies a mint authorization using its embedded signature.
func VerifyMint(ctx context.Context, m *MintAuthorization, policy SignerPolicy, now time.Time) (common.Address, error) {
	if m == nil {
		return common.Address{}, &Error{Kind: KindMint, Err: ErrNilMessage}
	}
	return Verify(ctx, KindMint, m, m.Signature, policy, now)
}

// VerifySale verifies a listing or operator authorization using its embedded signature.
func VerifySale(ctx context.Context, kind Kind, s *SaleAuthorization, policy SignerPolicy, now time.Time) (common.Address, error) {
	if s == nil {
		return common.Address{}, &Error{Kind: kind, Err: ErrNilMessage}
	}
	return Verify(ctx, kind, s, s.Signature, policy, now)
}
