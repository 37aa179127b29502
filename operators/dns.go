package operators

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	logging "github.com/ipfs/go-log/v2"
	"github.com/miekg/dns"
)

var log = logging.Logger("operators")

const (
	// DefaultUpstream is the recursive resolver used when none is configured.
	DefaultUpstream = "8.8.8.8:53"

	// RecordPrefix starts every operator TXT record: "operator=0x<address>".
	RecordPrefix = "operator="

	// recordLabel is prepended to the domain: _operators.<domain>.
	recordLabel = "_operators."

	defaultTimeout = 5 * time.Second
	edns0BufSize   = 4096
)

// TXTResolver looks up TXT records. Tests substitute their own.
type TXTResolver interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// UpstreamResolver queries a recursive resolver directly.
type UpstreamResolver struct {
	// Upstream is the resolver address (e.g. "8.8.8.8:53").
	Upstream string
	// RequireDNSSEC rejects answers without the AD flag.
	RequireDNSSEC bool
	// Timeout bounds each exchange.
	Timeout time.Duration
}

var _ TXTResolver = (*UpstreamResolver)(nil)

// NewUpstreamResolver creates a resolver for upstream, or DefaultUpstream if empty.
func NewUpstreamResolver(upstream string) *UpstreamResolver {
	if upstream == "" {
		upstream = DefaultUpstream
	}
	return &UpstreamResolver{Upstream: upstream, Timeout: defaultTimeout}
}

// LookupTXT implements TXTResolver. NXDOMAIN yields no records and no error.
func (r *UpstreamResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), dns.TypeTXT)
	msg.RecursionDesired = true
	msg.SetEdns0(edns0BufSize, r.RequireDNSSEC)

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := &dns.Client{Timeout: timeout}
	resp, _, err := client.ExchangeContext(ctx, msg, r.Upstream)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s TXT: %w", ErrDNSLookupFailed, name, err)
	}

	switch resp.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: query %s TXT: rcode %s",
			ErrDNSLookupFailed, name, dns.RcodeToString[resp.Rcode])
	}

	if r.RequireDNSSEC && !resp.AuthenticatedData {
		return nil, fmt.Errorf("%w: AD flag not set for %s", ErrDNSSECValidationFailed, name)
	}

	var txts []string
	for _, rr := range resp.Answer {
		if txt, ok := rr.(*dns.TXT); ok {
			// Long records arrive split into several strings.
			txts = append(txts, strings.Join(txt.Txt, ""))
		}
	}
	return txts, nil
}

// DNSRegistry reads the operator set from TXT records at _operators.<Domain>.
// Every lookup goes to the resolver; wrap it in a CachedRegistry.
type DNSRegistry struct {
	Domain   string
	Resolver TXTResolver
}

var _ Lister = (*DNSRegistry)(nil)

// NewDNSRegistry creates a registry for domain using resolver.
func NewDNSRegistry(domain string, resolver TXTResolver) *DNSRegistry {
	return &DNSRegistry{Domain: strings.TrimSuffix(domain, "."), Resolver: resolver}
}

// RecordName returns the TXT owner name queried for domain.
func RecordName(domain string) string {
	return recordLabel + strings.TrimSuffix(domain, ".")
}

// ParseRecord extracts the address from one "operator=0x…" record.
// ok is false for TXT records that are not operator records.
func ParseRecord(txt string) (addr common.Address, ok bool, err error) {
	txt = strings.TrimSpace(txt)
	if !strings.HasPrefix(txt, RecordPrefix) {
		return common.Address{}, false, nil
	}
	value := strings.TrimSpace(strings.TrimPrefix(txt, RecordPrefix))
	if !common.IsHexAddress(value) {
		return common.Address{}, true, fmt.Errorf("%w: %q", ErrInvalidRecord, value)
	}
	addr = common.HexToAddress(value)
	if addr == (common.Address{}) {
		return common.Address{}, true, fmt.Errorf("%w: zero address", ErrInvalidRecord)
	}
	return addr, true, nil
}

// Operators returns the published operator addresses in record order.
// Malformed operator records are skipped and logged.
func (r *DNSRegistry) Operators(ctx context.Context) ([]common.Address, error) {
	if r.Domain == "" {
		return nil, ErrEmptyDomain
	}
	name := RecordName(r.Domain)
	txts, err := r.Resolver.LookupTXT(ctx, name)
	if err != nil {
		return nil, err
	}

	var out []common.Address
	seen := make(map[common.Address]bool)
	for _, txt := range txts {
		addr, ok, err := ParseRecord(txt)
		if !ok {
			continue
		}
		if err != nil {
			log.Warnw("skipping operator record", "name", name, "error", err)
			continue
		}
		if !seen[addr] {
			seen[addr] = true
			out = append(out, addr)
		}
	}
	log.Debugw("operator records resolved", "name", name, "count", len(out))
	return out, nil
}

// IsOperator implements Registry.
func (r *DNSRegistry) IsOperator(ctx context.Context, addr common.Address) (bool, error) {
	ops, err := r.Operators(ctx)
	if err != nil {
		return false, err
	}
	for _, op := range ops {
		if op == addr {
			return true, nil
		}
	}
	return false, nil
}
