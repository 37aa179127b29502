package operators

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libmarket-go/ledger"
)

var (
	opA = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	opB = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	opC = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

// mockResolver is a test double for TXTResolver.
type mockResolver struct {
	LookupTXTFn func(ctx context.Context, name string) ([]string, error)
}

func (m *mockResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	return m.LookupTXTFn(ctx, name)
}

// countingRegistry counts calls to an inner function.
type countingRegistry struct {
	calls atomic.Int32
	fn    func(addr common.Address) (bool, error)
}

func (c *countingRegistry) IsOperator(_ context.Context, addr common.Address) (bool, error) {
	c.calls.Add(1)
	return c.fn(addr)
}

// startDNSServer serves TXT records from a local UDP socket. Each record is
// sent split in two strings so clients must join them.
func startDNSServer(t *testing.T, records map[string][]string) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	handler := dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		q := r.Question[0]
		txts, ok := records[q.Name]
		if !ok {
			m.Rcode = dns.RcodeNameError
		}
		for _, txt := range txts {
			half := len(txt) / 2
			m.Answer = append(m.Answer, &dns.TXT{
				Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeTXT, Class: dns.ClassINET, Ttl: 60},
				Txt: []string{txt[:half], txt[half:]},
			})
		}
		_ = w.WriteMsg(m)
	})

	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: handler, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = srv.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = srv.Shutdown() })
	return pc.LocalAddr().String()
}

// ---------------------------------------------------------------------------
// StaticRegistry / Load / Chain
// ---------------------------------------------------------------------------

func TestStaticRegistry(t *testing.T) {
	ctx := context.Background()
	r := NewStaticRegistry(opB, common.Address{})

	ok, err := r.IsOperator(ctx, opB)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, r.Add(opA))
	assert.ErrorIs(t, r.Add(common.Address{}), ErrZeroAddress)

	ops, err := r.Operators(ctx)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{opA, opB}, ops)

	r.Remove(opB)
	ok, err = r.IsOperator(ctx, opB)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoad_FromLedger(t *testing.T) {
	l := ledger.NewMemLedger()
	require.NoError(t, l.Update(context.Background(), func(tx ledger.Tx) error {
		if err := tx.AddOperator(opA); err != nil {
			return err
		}
		return tx.AddOperator(opC)
	}))

	r, err := Load(context.Background(), l)
	require.NoError(t, err)
	ops, err := r.Operators(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []common.Address{opA, opC}, ops)
}

func TestChain(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	failing := &countingRegistry{fn: func(common.Address) (bool, error) { return false, boom }}

	c := Chain{NewStaticRegistry(opA), nil, failing}

	ok, err := c.IsOperator(ctx, opA)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, failing.calls.Load(), "later registries are not asked after a hit")

	_, err = c.IsOperator(ctx, opB)
	assert.ErrorIs(t, err, boom)

	ok, err = Chain{}.IsOperator(ctx, opA)
	require.NoError(t, err)
	assert.False(t, ok)
}

// ---------------------------------------------------------------------------
// DNS records
// ---------------------------------------------------------------------------

func TestParseRecord(t *testing.T) {
	tests := []struct {
		name  string
		txt   string
		addr  common.Address
		ok    bool
		errIs error
	}{
		{"valid", "operator=" + opA.Hex(), opA, true, nil},
		{"lowercase with spaces", "  operator= " + "0x00000000000000000000000000000000000000b2", opB, true, nil},
		{"other record", "v=spf1 -all", common.Address{}, false, nil},
		{"bad hex", "operator=0xnothex", common.Address{}, true, ErrInvalidRecord},
		{"zero address", "operator=0x0000000000000000000000000000000000000000", common.Address{}, true, ErrInvalidRecord},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, ok, err := ParseRecord(tt.txt)
			assert.Equal(t, tt.ok, ok)
			if tt.errIs != nil {
				assert.ErrorIs(t, err, tt.errIs)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.addr, addr)
		})
	}
}

func TestDNSRegistry_Operators(t *testing.T) {
	var asked string
	resolver := &mockResolver{LookupTXTFn: func(_ context.Context, name string) ([]string, error) {
		asked = name
		return []string{
			"operator=" + opB.Hex(),
			"unrelated",
			"operator=garbage",
			"operator=" + opA.Hex(),
			"operator=" + opB.Hex(),
		}, nil
	}}

	r := NewDNSRegistry("market.example.", resolver)
	ops, err := r.Operators(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "_operators.market.example", asked)
	assert.Equal(t, []common.Address{opB, opA}, ops)

	ok, err := r.IsOperator(context.Background(), opA)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.IsOperator(context.Background(), opC)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDNSRegistry_Errors(t *testing.T) {
	_, err := NewDNSRegistry("", nil).Operators(context.Background())
	assert.ErrorIs(t, err, ErrEmptyDomain)

	resolver := &mockResolver{LookupTXTFn: func(context.Context, string) ([]string, error) {
		return nil, ErrDNSLookupFailed
	}}
	_, err = NewDNSRegistry("market.example", resolver).IsOperator(context.Background(), opA)
	assert.ErrorIs(t, err, ErrDNSLookupFailed)
}

func TestUpstreamResolver_LocalServer(t *testing.T) {
	addr := startDNSServer(t, map[string][]string{
		"_operators.market.example.": {"operator=" + opA.Hex(), "operator=" + opC.Hex()},
	})

	resolver := NewUpstreamResolver(addr)
	r := NewDNSRegistry("market.example", resolver)

	ops, err := r.Operators(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []common.Address{opA, opC}, ops)

	// NXDOMAIN is an empty set.
	txts, err := resolver.LookupTXT(context.Background(), "_operators.missing.example")
	require.NoError(t, err)
	assert.Empty(t, txts)
}

func TestUpstreamResolver_RequireDNSSEC(t *testing.T) {
	addr := startDNSServer(t, map[string][]string{
		"_operators.market.example.": {"operator=" + opA.Hex()},
	})

	resolver := NewUpstreamResolver(addr)
	resolver.RequireDNSSEC = true
	_, err := resolver.LookupTXT(context.Background(), "_operators.market.example")
	assert.ErrorIs(t, err, ErrDNSSECValidationFailed)
}

func TestNewUpstreamResolver_Defaults(t *testing.T) {
	r := NewUpstreamResolver("")
	assert.Equal(t, DefaultUpstream, r.Upstream)
	assert.False(t, r.RequireDNSSEC)
}

// ---------------------------------------------------------------------------
// CachedRegistry
// ---------------------------------------------------------------------------

func TestCachedRegistry_CachesAnswers(t *testing.T) {
	inner := &countingRegistry{fn: func(addr common.Address) (bool, error) { return addr == opA, nil }}
	c := NewCachedRegistry(inner, 0, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := c.IsOperator(ctx, opA)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = c.IsOperator(ctx, opB)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, int32(2), inner.calls.Load())

	c.Purge()
	_, err := c.IsOperator(ctx, opA)
	require.NoError(t, err)
	assert.Equal(t, int32(3), inner.calls.Load())
}

func TestCachedRegistry_Expires(t *testing.T) {
	inner := &countingRegistry{fn: func(common.Address) (bool, error) { return true, nil }}
	c := NewCachedRegistry(inner, 8, 20*time.Millisecond)

	_, err := c.IsOperator(context.Background(), opA)
	require.NoError(t, err)
	time.Sleep(60 * time.Millisecond)
	_, err = c.IsOperator(context.Background(), opA)
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestCachedRegistry_ErrorsNotCached(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	inner := &countingRegistry{fn: func(common.Address) (bool, error) {
		if fail.Load() {
			return false, ErrDNSLookupFailed
		}
		return true, nil
	}}
	c := NewCachedRegistry(inner, 8, time.Minute)

	_, err := c.IsOperator(context.Background(), opA)
	assert.ErrorIs(t, err, ErrDNSLookupFailed)

	fail.Store(false)
	ok, err := c.IsOperator(context.Background(), opA)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCachedRegistry_SharesConcurrentLookups(t *testing.T) {
	release := make(chan struct{})
	inner := &countingRegistry{fn: func(common.Address) (bool, error) {
		<-release
		return true, nil
	}}
	c := NewCachedRegistry(inner, 8, time.Minute)

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := c.IsOperator(context.Background(), opA)
			assert.NoError(t, err)
			assert.True(t, ok)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	// Callers that arrived after the shared lookup finished hit the cache.
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestCachedRegistry_CanceledCallerDoesNotFailWaiters(t *testing.T) {
	release := make(chan struct{})
	var innerErr atomic.Value
	inner := &countingRegistry{}
	inner.fn = func(common.Address) (bool, error) {
		<-release
		return true, nil
	}
	c := NewCachedRegistry(ctxRegistry{inner: inner, seen: &innerErr}, 8, time.Minute)

	first, cancel := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, err := c.IsOperator(first, opA)
		firstDone <- err
	}()
	time.Sleep(20 * time.Millisecond)

	secondDone := make(chan bool, 1)
	go func() {
		ok, err := c.IsOperator(context.Background(), opA)
		assert.NoError(t, err)
		secondDone <- ok
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstDone, context.Canceled)

	close(release)
	assert.True(t, <-secondDone)
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.Nil(t, innerErr.Load(), "shared lookup must not see the first caller's cancellation")
}

// ctxRegistry records the lookup context's error after the inner call returns.
type ctxRegistry struct {
	inner *countingRegistry
	seen  *atomic.Value
}

func (r ctxRegistry) IsOperator(ctx context.Context, addr common.Address) (bool, error) {
	ok, err := r.inner.IsOperator(ctx, addr)
	if ctxErr := ctx.Err(); ctxErr != nil {
		r.seen.Store(ctxErr)
	}
	return ok, err
}

func TestCachedRegistry_OverDNS(t *testing.T) {
	var lookups atomic.Int32
	resolver := &mockResolver{LookupTXTFn: func(context.Context, string) ([]string, error) {
		lookups.Add(1)
		return []string{"operator=" + opA.Hex()}, nil
	}}
	c := NewCachedRegistry(NewDNSRegistry("market.example", resolver), 0, 0)

	for i := 0; i < 5; i++ {
		ok, err := c.IsOperator(context.Background(), opA)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, int32(1), lookups.Load())
}
