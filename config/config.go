// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

// Package config loads wallet settings from a key=value file overlaid with
// LIBWALLET_* environment variables.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the wallet library settings.
type Config struct {
	DataDir       string        // wallet files live here
	Network       string        // "mainnet", "testnet" or "regtest"
	LogLevel      string        // "debug", "info", "warn" or "error"
	LogFile       string        // empty logs to stderr
	SyncBackend   string        // "http" or "node"
	SyncURL       string        // multiaddr service root or node RPC url
	SyncPageSize  int           // default transaction page size
	SyncOffset    int           // default transaction page offset
	SyncTimeout   time.Duration // upper bound for one multi-address sync
	SyncRateLimit int           // sync requests per second, 0 is unlimited
	Persistence   string        // "bolt" or "file"
	UniqueLabels  bool          // reject duplicate labels among active accounts
}

// Config file keys.
const (
	KeyDataDir       = "datadir"
	KeyNetwork       = "network"
	KeyLogLevel      = "loglevel"
	KeyLogFile       = "logfile"
	KeySyncBackend   = "syncbackend"
	KeySyncURL       = "syncurl"
	KeySyncPageSize  = "syncpagesize"
	KeySyncOffset    = "syncoffset"
	KeySyncTimeout   = "synctimeout"
	KeySyncRateLimit = "syncratelimit"
	KeyPersistence   = "persistence"
	KeyUniqueLabels  = "uniquelabels"
)

// EnvPrefix prefixes every environment override, e.g. LIBWALLET_SYNC_URL.
const EnvPrefix = "LIBWALLET"

// envKeys maps config file keys to environment variable suffixes.
var envKeys = map[string]string{
	KeyDataDir:       "DATA_DIR",
	KeyNetwork:       "NETWORK",
	KeyLogLevel:      "LOG_LEVEL",
	KeyLogFile:       "LOG_FILE",
	KeySyncBackend:   "SYNC_BACKEND",
	KeySyncURL:       "SYNC_URL",
	KeySyncPageSize:  "SYNC_PAGE_SIZE",
	KeySyncOffset:    "SYNC_OFFSET",
	KeySyncTimeout:   "SYNC_TIMEOUT",
	KeySyncRateLimit: "SYNC_RATE_LIMIT",
	KeyPersistence:   "PERSISTENCE",
	KeyUniqueLabels:  "UNIQUE_LABELS",
}

// DefaultDataDir returns ~/.libwallet, or .libwallet when the home
// directory cannot be determined.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".libwallet"
	}
	return filepath.Join(home, ".libwallet")
}

// ConfigPath returns the config file path inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(filepath.Clean(dataDir), "config")
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	return Config{
		DataDir:       DefaultDataDir(),
		Network:       "mainnet",
		LogLevel:      "info",
		SyncBackend:   "http",
		SyncPageSize:  50,
		SyncOffset:    0,
		SyncTimeout:   30 * time.Second,
		SyncRateLimit: 0,
		Persistence:   "bolt",
	}
}

// LoadConfig reads path over DefaultConfig. Blank lines and lines starting
// with '#' are skipped; unknown keys are ignored.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return cfg, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := parseKeyValue(line)
		if !ok {
			return cfg, fmt.Errorf("%w: line %d: %q", ErrInvalidConfigLine, lineNo, line)
		}
		if err := cfg.set(key, value); err != nil {
			return cfg, fmt.Errorf("%w: line %d: %w", ErrInvalidConfigLine, lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	return cfg, nil
}

// parseKeyValue splits on the first '='.
func parseKeyValue(line string) (string, string, bool) {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", false
	}
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return "", "", false
	}
	return key, strings.TrimSpace(value), true
}

func (c *Config) set(key, value string) error {
	switch key {
	case KeyDataDir:
		c.DataDir = value
	case KeyNetwork:
		c.Network = value
	case KeyLogLevel:
		c.LogLevel = value
	case KeyLogFile:
		c.LogFile = value
	case KeySyncBackend:
		c.SyncBackend = value
	case KeySyncURL:
		c.SyncURL = value
	case KeyPersistence:
		c.Persistence = value
	case KeySyncPageSize, KeySyncOffset, KeySyncRateLimit:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		switch key {
		case KeySyncPageSize:
			c.SyncPageSize = n
		case KeySyncOffset:
			c.SyncOffset = n
		default:
			c.SyncRateLimit = n
		}
	case KeySyncTimeout:
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		c.SyncTimeout = d
	case KeyUniqueLabels:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		c.UniqueLabels = b
	}
	return nil
}

// SaveConfig writes cfg to path in the format LoadConfig reads, creating
// the parent directory if needed.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("# libwallet configuration\n\n")
	for _, kv := range []struct{ k, v string }{
		{KeyDataDir, cfg.DataDir},
		{KeyNetwork, cfg.Network},
		{KeyLogLevel, cfg.LogLevel},
		{KeyLogFile, cfg.LogFile},
		{KeySyncBackend, cfg.SyncBackend},
		{KeySyncURL, cfg.SyncURL},
		{KeySyncPageSize, strconv.Itoa(cfg.SyncPageSize)},
		{KeySyncOffset, strconv.Itoa(cfg.SyncOffset)},
		{KeySyncTimeout, cfg.SyncTimeout.String()},
		{KeySyncRateLimit, strconv.Itoa(cfg.SyncRateLimit)},
		{KeyPersistence, cfg.Persistence},
		{KeyUniqueLabels, strconv.FormatBool(cfg.UniqueLabels)},
	} {
		fmt.Fprintf(&b, "%s = %s\n", kv.k, kv.v)
	}

	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays LIBWALLET_* environment variables on cfg. Empty
// variables are ignored.
func ApplyEnv(cfg Config) (Config, error) {
	vip := viper.New()
	vip.SetEnvPrefix(EnvPrefix)
	vip.AutomaticEnv()

	out := cfg
	for key, suffix := range envKeys {
		if !vip.IsSet(suffix) {
			continue
		}
		if err := out.set(key, vip.GetString(suffix)); err != nil {
			return cfg, fmt.Errorf("%w: %s_%s: %w", ErrInvalidEnv, EnvPrefix, suffix, err)
		}
	}
	return out, nil
}

// Load reads the config file in dataDir, if present, applies environment
// overrides and validates the result.
func Load(dataDir string) (Config, error) {
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	cfg, err := LoadConfig(ConfigPath(dataDir))
	switch {
	case err == nil:
	case errors.Is(err, ErrConfigNotFound):
		cfg = DefaultConfig()
		cfg.DataDir = dataDir
	default:
		return Config{}, err
	}

	cfg, err = ApplyEnv(cfg)
	if err != nil {
		return Config{}, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
