// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import "errors"

var (
	// ErrInvalidListenAddr indicates the listen address is malformed.
	ErrInvalidListenAddr = errors.New("config: invalid listen address")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("config: invalid log level (must be \"debug\", \"info\", \"warn\", or \"error\")")

	// ErrEmptyDataDir indicates the data directory path is empty.
	ErrEmptyDataDir = errors.New("config: data directory must not be empty")

	// ErrInvalidAddress indicates a marketplace or treasury address is not 0x-prefixed hex.
	ErrInvalidAddress = errors.New("config: invalid address")

	// ErrInvalidFee indicates the protocol fee is above 10000 basis points.
	ErrInvalidFee = errors.New("config: protocol fee basis points exceed 10000")

	// ErrMissingProtocolRecipient indicates a non-zero fee with no recipient.
	ErrMissingProtocolRecipient = errors.New("config: protocol fee requires protocol_recipient")

	// ErrInvalidOverpayment indicates the overpayment policy is not recognized.
	ErrInvalidOverpayment = errors.New("config: invalid overpayment policy (must be \"refund\" or \"retain\")")

	// ErrInvalidUpstream indicates the DNS upstream is not host:port.
	ErrInvalidUpstream = errors.New("config: invalid DNS upstream")

	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = errors.New("config: configuration file not found")

	// ErrInvalidConfigLine indicates a line in the config file is malformed.
	ErrInvalidConfigLine = errors.New("config: invalid configuration line")

	// ErrInvalidConfigValue indicates a value cannot be parsed for its key.
	ErrInvalidConfigValue = errors.New("config: invalid configuration value")
)
