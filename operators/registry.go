// Package operators answers whether an address is an authorized marketplace
// operator. Sources can be a static set, a set stored in the ledger, or TXT
// records published under a DNS domain; CachedRegistry and Chain combine them.
package operators

import (
	"context"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bitfsorg/libmarket-go/ledger"
)

// Registry answers operator membership queries.
type Registry interface {
	IsOperator(ctx context.Context, addr common.Address) (bool, error)
}

// Lister is a Registry that can enumerate its members.
type Lister interface {
	Registry
	Operators(ctx context.Context) ([]common.Address, error)
}

// StaticRegistry is an in-memory operator set safe for concurrent use.
type StaticRegistry struct {
	mu  sync.RWMutex
	set map[common.Address]struct{}
}

var _ Lister = (*StaticRegistry)(nil)

// NewStaticRegistry creates a registry holding addrs.
func NewStaticRegistry(addrs ...common.Address) *StaticRegistry {
	r := &StaticRegistry{set: make(map[common.Address]struct{}, len(addrs))}
	for _, a := range addrs {
		if a != (common.Address{}) {
			r.set[a] = struct{}{}
		}
	}
	return r
}

// Add registers addr.
func (r *StaticRegistry) Add(addr common.Address) error {
	if addr == (common.Address{}) {
		return ErrZeroAddress
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.set[addr] = struct{}{}
	return nil
}

// Remove unregisters addr. Removing an absent address is a no-op.
func (r *StaticRegistry) Remove(addr common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.set, addr)
}

// IsOperator implements Registry.
func (r *StaticRegistry) IsOperator(_ context.Context, addr common.Address) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.set[addr]
	return ok, nil
}

// Operators returns the members sorted by address.
func (r *StaticRegistry) Operators(_ context.Context) ([]common.Address, error) {
	r.mu.RLock()
	out := make([]common.Address, 0, len(r.set))
	for a := range r.set {
		out = append(out, a)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out, nil
}

// Load reads the operator set stored in l into a StaticRegistry.
// The result is a snapshot; call Load again after the stored set changes.
func Load(ctx context.Context, l ledger.Ledger) (*StaticRegistry, error) {
	var addrs []common.Address
	err := l.View(ctx, func(tx ledger.Tx) error {
		var err error
		addrs, err = tx.Operators()
		return err
	})
	if err != nil {
		return nil, err
	}
	return NewStaticRegistry(addrs...), nil
}

// Chain accepts an address if any member registry does. Registries are asked
// in order; the first error stops the walk.
type Chain []Registry

// IsOperator implements Registry.
func (c Chain) IsOperator(ctx context.Context, addr common.Address) (bool, error) {
	for _, r := range c {
		if r == nil {
			continue
		}
		ok, err := r.IsOperator(ctx, addr)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
