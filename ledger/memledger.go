package ledger

import (
	"context"
	"sort"
	"sync"
)

// MemLedger is an in-memory Ledger. Update stages its writes in an overlay
// and applies them only after fn succeeds.
type MemLedger struct {
	mu     sync.RWMutex
	data   map[string]map[string][]byte
	closed bool
}

var _ Ledger = (*MemLedger)(nil)

// NewMemLedger creates an empty in-memory ledger.
func NewMemLedger() *MemLedger {
	data := make(map[string]map[string][]byte, len(allBuckets))
	for _, b := range allBuckets {
		data[string(b)] = make(map[string][]byte)
	}
	return &MemLedger{data: data}
}

// Update runs fn with exclusive access. Nothing is applied unless fn returns nil.
func (l *MemLedger) Update(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}

	ov := &overlay{base: l.data, writes: make(map[string]map[string]*[]byte)}
	if err := fn(&ledgerTx{s: ov, writable: true}); err != nil {
		return err
	}
	ov.apply()
	return nil
}

// View runs fn against the committed state.
func (l *MemLedger) View(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrClosed
	}
	ov := &overlay{base: l.data}
	return fn(&ledgerTx{s: ov})
}

// Close marks the ledger closed.
func (l *MemLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// overlay reads through to base and buffers writes. A nil *[]byte in writes
// is a deletion.
type overlay struct {
	base   map[string]map[string][]byte
	writes map[string]map[string]*[]byte
}

func (o *overlay) get(bucket, key []byte) []byte {
	if w, ok := o.writes[string(bucket)][string(key)]; ok {
		if w == nil {
			return nil
		}
		return *w
	}
	return o.base[string(bucket)][string(key)]
}

func (o *overlay) set(bucket, key []byte, v *[]byte) {
	b := o.writes[string(bucket)]
	if b == nil {
		b = make(map[string]*[]byte)
		o.writes[string(bucket)] = b
	}
	b[string(key)] = v
}

func (o *overlay) put(bucket, key, value []byte) error {
	cp := make([]byte, len(value))
	copy(cp, value)
	o.set(bucket, key, &cp)
	return nil
}

func (o *overlay) del(bucket, key []byte) error {
	o.set(bucket, key, nil)
	return nil
}

func (o *overlay) forEach(bucket []byte, fn func(k, v []byte) error) error {
	merged := make(map[string][]byte, len(o.base[string(bucket)]))
	for k, v := range o.base[string(bucket)] {
		merged[k] = v
	}
	for k, w := range o.writes[string(bucket)] {
		if w == nil {
			delete(merged, k)
			continue
		}
		merged[k] = *w
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := fn([]byte(k), merged[k]); err != nil {
			return err
		}
	}
	return nil
}

func (o *overlay) apply() {
	for bucket, writes := range o.writes {
		b := o.base[bucket]
		for k, w := range writes {
			if w == nil {
				delete(b, k)
				continue
			}
			b[k] = *w
		}
	}
}
