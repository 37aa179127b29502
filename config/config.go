// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

// Package config reads and writes the marketplace node configuration, a plain
// "key = value" file stored at <datadir>/config.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds the node configuration.
type Config struct {
	DataDir    string
	ListenAddr string
	LogLevel   string
	LogFile    string

	// Marketplace is the address sellers approve to move their tokens.
	Marketplace       string
	ProtocolRecipient string
	ProtocolFeeBPS    uint64

	Overpayment      string // "refund" or "retain"
	ReplayProtection bool

	// OperatorDomain enables the DNS operator source when set.
	OperatorDomain   string
	DNSUpstream      string
	OperatorCacheTTL time.Duration
}

// DefaultDataDir returns ~/.market, or ./.market if the home directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".market"
	}
	return filepath.Join(home, ".market")
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() Config {
	return Config{
		DataDir:          DefaultDataDir(),
		ListenAddr:       ":8080",
		LogLevel:         "info",
		Overpayment:      "refund",
		DNSUpstream:      "8.8.8.8:53",
		OperatorCacheTTL: 5 * time.Minute,
	}
}

// ConfigPath returns the config file path inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config")
}

// LedgerPath returns the ledger database path inside dataDir.
func LedgerPath(dataDir string) string {
	return filepath.Join(dataDir, "ledger.db")
}

// WalletPath returns the encrypted wallet path inside dataDir.
func WalletPath(dataDir string) string {
	return filepath.Join(dataDir, "wallet.enc")
}

// LoadConfig reads path on top of DefaultConfig. Blank lines and lines
// starting with '#' are skipped; unknown keys are ignored.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return cfg, fmt.Errorf("config: open: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, err := parseKeyValue(line)
		if err != nil {
			return cfg, fmt.Errorf("%w: line %d: %q", ErrInvalidConfigLine, lineNo, line)
		}
		if err := cfg.set(key, value); err != nil {
			return cfg, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return cfg, fmt.Errorf("config: read: %w", err)
	}
	return cfg, nil
}

// parseKeyValue splits "key = value" on the first '='.
func parseKeyValue(line string) (string, string, error) {
	idx := strings.Index(line, "=")
	if idx < 0 {
		return "", "", ErrInvalidConfigLine
	}
	key := strings.TrimSpace(line[:idx])
	if key == "" {
		return "", "", ErrInvalidConfigLine
	}
	return strings.ToLower(key), strings.TrimSpace(line[idx+1:]), nil
}

// Set assigns one key by its file name.
func (c *Config) Set(key, value string) error {
	return c.set(strings.ToLower(strings.TrimSpace(key)), strings.TrimSpace(value))
}

func (c *Config) set(key, value string) error {
	switch key {
	case "datadir":
		c.DataDir = value
	case "listen":
		c.ListenAddr = value
	case "loglevel":
		c.LogLevel = value
	case "logfile":
		c.LogFile = value
	case "marketplace":
		c.Marketplace = value
	case "protocol_recipient":
		c.ProtocolRecipient = value
	case "protocol_fee_bps":
		v, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s = %q", ErrInvalidConfigValue, key, value)
		}
		c.ProtocolFeeBPS = v
	case "overpayment":
		c.Overpayment = value
	case "replay_protection":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: %s = %q", ErrInvalidConfigValue, key, value)
		}
		c.ReplayProtection = v
	case "operator_domain":
		c.OperatorDomain = value
	case "dns_upstream":
		c.DNSUpstream = value
	case "operator_cache_ttl":
		v, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: %s = %q", ErrInvalidConfigValue, key, value)
		}
		c.OperatorCacheTTL = v
	}
	return nil
}

// SaveConfig writes cfg to path, creating parent directories as needed.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("# Marketplace Configuration\n\n")
	fmt.Fprintf(&b, "datadir = %s\n", cfg.DataDir)
	fmt.Fprintf(&b, "listen = %s\n", cfg.ListenAddr)
	fmt.Fprintf(&b, "loglevel = %s\n", cfg.LogLevel)
	fmt.Fprintf(&b, "logfile = %s\n", cfg.LogFile)
	b.WriteString("\n# Settlement\n")
	fmt.Fprintf(&b, "marketplace = %s\n", cfg.Marketplace)
	fmt.Fprintf(&b, "protocol_recipient = %s\n", cfg.ProtocolRecipient)
	fmt.Fprintf(&b, "protocol_fee_bps = %d\n", cfg.ProtocolFeeBPS)
	fmt.Fprintf(&b, "overpayment = %s\n", cfg.Overpayment)
	fmt.Fprintf(&b, "replay_protection = %t\n", cfg.ReplayProtection)
	b.WriteString("\n# Operators\n")
	fmt.Fprintf(&b, "operator_domain = %s\n", cfg.OperatorDomain)
	fmt.Fprintf(&b, "dns_upstream = %s\n", cfg.DNSUpstream)
	fmt.Fprintf(&b, "operator_cache_ttl = %s\n", cfg.OperatorCacheTTL)

	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("config: write: %w", err)
	}
	return nil
}
