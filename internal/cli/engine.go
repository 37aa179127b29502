package cli

import (
	"context"
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bitfsorg/libmarket-go/ledger"
	"github.com/bitfsorg/libmarket-go/operators"
	"github.com/bitfsorg/libmarket-go/revshare"
	"github.com/bitfsorg/libmarket-go/settlement"
)

var errMarketplaceUnset = errors.New("marketplace address is not configured")

// newEngine builds a settlement engine from the node config. Operators come
// from the ledger and, when operator_domain is set, from DNS.
func (a *app) newEngine(ctx context.Context, l ledger.Ledger, reg prometheus.Registerer) (*settlement.Engine, error) {
	cfg := a.cfg
	if cfg.Marketplace == "" {
		return nil, errMarketplaceUnset
	}

	stored, err := operators.Load(ctx, l)
	if err != nil {
		return nil, err
	}
	var ops operators.Registry = stored
	if cfg.OperatorDomain != "" {
		dns := operators.NewDNSRegistry(cfg.OperatorDomain, operators.NewUpstreamResolver(cfg.DNSUpstream))
		ops = operators.Chain{stored, operators.NewCachedRegistry(dns, operators.DefaultCacheSize, cfg.OperatorCacheTTL)}
		log.Infow("dns operators enabled", "domain", cfg.OperatorDomain, "upstream", cfg.DNSUpstream)
	}

	policy, err := settlement.ParseOverpaymentPolicy(strings.ToLower(cfg.Overpayment))
	if err != nil {
		return nil, err
	}
	opts := []settlement.Option{settlement.WithOverpaymentPolicy(policy)}
	if cfg.ReplayProtection {
		opts = append(opts, settlement.WithReplayProtection())
	}
	if reg != nil {
		m, err := settlement.NewMetrics(reg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, settlement.WithMetrics(m))
	}

	return settlement.NewEngine(l, ops, settlement.Config{
		Marketplace: cfg.MarketplaceAddress(),
		ProtocolFee: revshare.ProtocolFee{
			Recipient:   cfg.ProtocolRecipientAddress(),
			BasisPoints: cfg.ProtocolFeeBPS,
		},
	}, opts...)
}
