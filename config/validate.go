// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"net/url"
	"strings"
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
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	if cfg.Network != "mainnet" && cfg.Network != "testnet" && cfg.Network != "regtest" {
		return ErrInvalidNetwork
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}

	if cfg.SyncBackend != "http" && cfg.SyncBackend != "node" {
		return fmt.Errorf("%w: backend %q", ErrInvalidSync, cfg.SyncBackend)
	}
	if cfg.SyncURL != "" {
		if err := validateURL(cfg.SyncURL); err != nil {
			return fmt.Errorf("%w: url: %w", ErrInvalidSync, err)
		}
	}
	if cfg.SyncPageSize <= 0 {
		return fmt.Errorf("%w: page size %d must be positive", ErrInvalidSync, cfg.SyncPageSize)
	}
	if cfg.SyncOffset < 0 {
		return fmt.Errorf("%w: offset %d must not be negative", ErrInvalidSync, cfg.SyncOffset)
	}
	if cfg.SyncTimeout <= 0 {
		return fmt.Errorf("%w: timeout %s must be positive", ErrInvalidSync, cfg.SyncTimeout)
	}
	if cfg.SyncRateLimit < 0 {
		return fmt.Errorf("%w: rate limit %d must not be negative", ErrInvalidSync, cfg.SyncRateLimit)
	}

	if cfg.Persistence != "bolt" && cfg.Persistence != "file" {
		return ErrInvalidPersistence
	}

	return nil
}

// validateURL checks that raw is an absolute http(s) URL.
func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme %q is not http or https", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}
