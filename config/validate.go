// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// validLogLevels lists the accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateConfig checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid.
// Marketplace may be empty here; commands that settle require it separately.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	if err := validateAddr(cfg.ListenAddr); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidListenAddr, err)
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}

	for name, addr := range map[string]string{
		"marketplace":        cfg.Marketplace,
		"protocol_recipient": cfg.ProtocolRecipient,
	} {
		if addr != "" && !common.IsHexAddress(addr) {
			return fmt.Errorf("%w: %s = %q", ErrInvalidAddress, name, addr)
		}
	}

	if cfg.ProtocolFeeBPS > 10000 {
		return ErrInvalidFee
	}
	if cfg.ProtocolFeeBPS > 0 && cfg.ProtocolRecipient == "" {
		return ErrMissingProtocolRecipient
	}

	switch strings.ToLower(cfg.Overpayment) {
	case "refund", "retain":
	default:
		return ErrInvalidOverpayment
	}

	if cfg.OperatorDomain != "" {
		if err := validateAddr(cfg.DNSUpstream); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidUpstream, err)
		}
	}

	return nil
}

// validateAddr checks that addr is a valid host:port address.
func validateAddr(addr string) error {
	_, _, err := net.SplitHostPort(addr)
	return err
}

// MarketplaceAddress returns the configured marketplace address.
func (c Config) MarketplaceAddress() common.Address {
	return common.HexToAddress(c.Marketplace)
}

// ProtocolRecipientAddress returns the configured treasury address.
func (c Config) ProtocolRecipientAddress() common.Address {
	return common.HexToAddress(c.ProtocolRecipient)
}
