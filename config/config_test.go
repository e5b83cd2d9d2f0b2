// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
)

// ---------------------------------------------------------------------------
// DefaultConfig tests
// ---------------------------------------------------------------------------

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"Network", cfg.Network, "mainnet"},
		{"LogLevel", cfg.LogLevel, "info"},
		{"LogFile", cfg.LogFile, ""},
		{"SyncBackend", cfg.SyncBackend, "http"},
		{"SyncPageSize", cfg.SyncPageSize, 50},
		{"SyncOffset", cfg.SyncOffset, 0},
		{"SyncTimeout", cfg.SyncTimeout, 30 * time.Second},
		{"Persistence", cfg.Persistence, "bolt"},
		{"UniqueLabels", cfg.UniqueLabels, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("got %v, want %v", tc.got, tc.want)
			}
		})
	}

	// The full path depends on the home directory.
	if cfg.DataDir == "" {
		t.Error("DataDir should not be empty")
	}
}

// ---------------------------------------------------------------------------
// SaveConfig / LoadConfig round-trip tests
// ---------------------------------------------------------------------------

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")

	original := Config{
		DataDir:       "/tmp/test-wallet",
		Network:       "testnet",
		LogLevel:      "debug",
		LogFile:       "/tmp/wallet.log",
		SyncBackend:   "node",
		SyncURL:       "http://localhost:18333",
		SyncPageSize:  25,
		SyncOffset:    5,
		SyncTimeout:   90 * time.Second,
		SyncRateLimit: 3,
		Persistence:   "file",
		UniqueLabels:  true,
	}

	if err := SaveConfig(path, original); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if loaded != original {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", loaded, original)
	}
}

func TestSaveConfigCreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subdir", "config")

	cfg := DefaultConfig()
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig should create parent dirs: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("Config file not created: %v", err)
	}
}

// ---------------------------------------------------------------------------
// LoadConfig error tests
// ---------------------------------------------------------------------------

func TestLoadConfigNotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/config")
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("LoadConfig nonexistent: got %v, want ErrConfigNotFound", err)
	}
}

func TestLoadConfigInvalidLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")

	content := "this-is-not-key-value\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := LoadConfig(path)
	if !errors.Is(err, ErrInvalidConfigLine) {
		t.Errorf("LoadConfig bad line: got %v, want ErrInvalidConfigLine", err)
	}
}

func TestLoadConfigCommentsAndBlanks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")

	content := `# This is a comment
network = testnet

# Another comment
loglevel = debug
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Network != "testnet" {
		t.Errorf("Network = %q, want %q", cfg.Network, "testnet")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	// Unset fields should retain defaults.
	if cfg.SyncPageSize != 50 {
		t.Errorf("SyncPageSize = %d, want default %d", cfg.SyncPageSize, 50)
	}
}

func TestLoadConfigUnknownKeysIgnored(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")

	content := "futurekey = futurevalue\nnetwork = testnet\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig with unknown key: %v", err)
	}
	if cfg.Network != "testnet" {
		t.Errorf("Network = %q, want %q", cfg.Network, "testnet")
	}
}

// ---------------------------------------------------------------------------
// ValidateConfig tests
// ---------------------------------------------------------------------------

func TestValidateConfigDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if err := ValidateConfig(cfg); err != nil {
		t.Errorf("ValidateConfig(DefaultConfig()) = %v, want nil", err)
	}
}

func TestValidateConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{
			name:    "empty_datadir",
			modify:  func(c *Config) { c.DataDir = "" },
			wantErr: ErrEmptyDataDir,
		},
		{
			name:    "bad_network",
			modify:  func(c *Config) { c.Network = "devnet" },
			wantErr: ErrInvalidNetwork,
		},
		{
			name:    "bad_sync_backend",
			modify:  func(c *Config) { c.SyncBackend = "grpc" },
			wantErr: ErrInvalidSync,
		},
		{
			name:    "bad_sync_url",
			modify:  func(c *Config) { c.SyncURL = "ftp://example.com" },
			wantErr: ErrInvalidSync,
		},
		{
			name:    "zero_page_size",
			modify:  func(c *Config) { c.SyncPageSize = 0 },
			wantErr: ErrInvalidSync,
		},
		{
			name:    "negative_offset",
			modify:  func(c *Config) { c.SyncOffset = -1 },
			wantErr: ErrInvalidSync,
		},
		{
			name:    "zero_timeout",
			modify:  func(c *Config) { c.SyncTimeout = 0 },
			wantErr: ErrInvalidSync,
		},
		{
			name:    "negative_rate_limit",
			modify:  func(c *Config) { c.SyncRateLimit = -1 },
			wantErr: ErrInvalidSync,
		},
		{
			name:    "bad_persistence",
			modify:  func(c *Config) { c.Persistence = "sqlite" },
			wantErr: ErrInvalidPersistence,
		},
		{
			name:    "bad_loglevel",
			modify:  func(c *Config) { c.LogLevel = "verbose" },
			wantErr: ErrInvalidLogLevel,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(&cfg)
			err := ValidateConfig(cfg)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("ValidateConfig: got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestValidateConfigValidNetworks(t *testing.T) {
	for _, network := range []string{"mainnet", "testnet", "regtest"} {
		cfg := DefaultConfig()
		cfg.Network = network
		if err := ValidateConfig(cfg); err != nil {
			t.Errorf("ValidateConfig with network %q: %v", network, err)
		}
	}
}

func TestValidateConfigValidLogLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		cfg := DefaultConfig()
		cfg.LogLevel = level
		if err := ValidateConfig(cfg); err != nil {
			t.Errorf("ValidateConfig with loglevel %q: %v", level, err)
		}
	}
}

// ---------------------------------------------------------------------------
// ConfigPath tests
// ---------------------------------------------------------------------------

func TestConfigPath(t *testing.T) {
	got := ConfigPath("/home/user/.libwallet")
	want := filepath.Join("/home/user/.libwallet", "config")
	if got != want {
		t.Errorf("ConfigPath = %q, want %q", got, want)
	}
}

// ---------------------------------------------------------------------------
// Supplementary tests: DefaultDataDir
// ---------------------------------------------------------------------------

func TestDefaultDataDir_EndsWith_DotLibwallet(t *testing.T) {
	dir := DefaultDataDir()
	if !strings.HasSuffix(dir, ".libwallet") {
		t.Errorf("DefaultDataDir() = %q, want suffix %q", dir, ".libwallet")
	}
}

// ---------------------------------------------------------------------------
// Supplementary tests: LoadConfig parser edge cases
// ---------------------------------------------------------------------------

func TestLoadConfig_EmptyValue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")

	content := "network=\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Network != "" {
		t.Errorf("Network = %q, want empty string", cfg.Network)
	}
}

func TestLoadConfig_MultipleEquals(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")

	// The value "/tmp/a=b.log" contains an extra '='.
	// parseKeyValue should split on the first '=' only.
	content := "logfile=/tmp/a=b.log\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LogFile != "/tmp/a=b.log" {
		t.Errorf("LogFile = %q, want %q", cfg.LogFile, "/tmp/a=b.log")
	}
}

func TestLoadConfig_WhitespaceAroundEquals(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")

	// Leading/trailing whitespace on the line and around '='.
	content := "  network = testnet  \n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Network != "testnet" {
		t.Errorf("Network = %q, want %q", cfg.Network, "testnet")
	}
}

// ---------------------------------------------------------------------------
// Supplementary tests: SaveConfig output format
// ---------------------------------------------------------------------------

func TestSaveConfig_OutputContainsHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")

	cfg := DefaultConfig()
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "# libwallet configuration") {
		t.Error("saved config should contain header '# libwallet configuration'")
	}
}

func TestSaveConfig_OutputContainsAllKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")

	cfg := DefaultConfig()
	cfg.DataDir = "/data"
	cfg.Network = "testnet"
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	content := string(data)

	keys := []string{
		KeyDataDir, KeyNetwork, KeyLogLevel, KeyLogFile, KeySyncBackend, KeySyncURL,
		KeySyncPageSize, KeySyncOffset, KeySyncTimeout, KeySyncRateLimit, KeyPersistence, KeyUniqueLabels,
	}
	for _, key := range keys {
		if !strings.Contains(content, key+" = ") {
			t.Errorf("saved config should contain key %q", key)
		}
	}
}

// ---------------------------------------------------------------------------
// Supplementary tests: ValidateConfig boundary cases
// ---------------------------------------------------------------------------

func TestValidateConfig_LogLevelCaseInsensitive(t *testing.T) {
	// ValidateConfig lowercases the log level before lookup,
	// so mixed-case values should be accepted.
	levels := []string{"INFO", "Debug", "WARN", "Error", "dEbUg"}
	for _, level := range levels {
		t.Run(level, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.LogLevel = level
			if err := ValidateConfig(cfg); err != nil {
				t.Errorf("ValidateConfig with LogLevel %q: %v", level, err)
			}
		})
	}
}

func TestValidateConfig_EmptyNetwork(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Network = ""
	err := ValidateConfig(cfg)
	if !errors.Is(err, ErrInvalidNetwork) {
		t.Errorf("ValidateConfig empty Network: got %v, want ErrInvalidNetwork", err)
	}
}

// ---------------------------------------------------------------------------
// Supplementary tests: LoadConfig error paths
// ---------------------------------------------------------------------------

func TestLoadConfig_PermissionDenied(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission test not reliable on Windows")
	}
	if os.Getuid() == 0 {
		t.Skip("cannot test permission denial as root")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "config")

	if err := os.WriteFile(path, []byte("network=testnet\n"), 0600); err != nil {
		t.Fatal(err)
	}
	// Remove read permission.
	if err := os.Chmod(path, 0000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(path, 0600) })

	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("LoadConfig on unreadable file: expected error, got nil")
	}
	// The error should NOT be ErrConfigNotFound, the file exists.
	if errors.Is(err, ErrConfigNotFound) {
		t.Error("LoadConfig on unreadable file should not return ErrConfigNotFound")
	}
}

// ---------------------------------------------------------------------------
// Supplementary tests: ConfigPath
// ---------------------------------------------------------------------------

func TestConfigPath_WithTrailingSlash(t *testing.T) {
	got := ConfigPath("/foo/")
	want := filepath.Join("/foo", "config")
	if got != want {
		t.Errorf("ConfigPath(%q) = %q, want %q", "/foo/", got, want)
	}
}

func TestLoadConfig_BadTypedValues(t *testing.T) {
	for _, line := range []string{"syncpagesize = many", "synctimeout = soon", "uniquelabels = maybe"} {
		t.Run(line, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config")
			if err := os.WriteFile(path, []byte(line+"\n"), 0600); err != nil {
				t.Fatal(err)
			}
			_, err := LoadConfig(path)
			if !errors.Is(err, ErrInvalidConfigLine) {
				t.Errorf("LoadConfig(%q): got %v, want ErrInvalidConfigLine", line, err)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Environment overrides
// ---------------------------------------------------------------------------

func TestApplyEnv(t *testing.T) {
	t.Setenv("LIBWALLET_SYNC_PAGE_SIZE", "25")
	t.Setenv("LIBWALLET_NETWORK", "testnet")
	t.Setenv("LIBWALLET_SYNC_TIMEOUT", "5s")
	t.Setenv("LIBWALLET_UNIQUE_LABELS", "true")

	cfg, err := ApplyEnv(DefaultConfig())
	if err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.SyncPageSize != 25 {
		t.Errorf("SyncPageSize = %d, want 25", cfg.SyncPageSize)
	}
	if cfg.Network != "testnet" {
		t.Errorf("Network = %q, want testnet", cfg.Network)
	}
	if cfg.SyncTimeout != 5*time.Second {
		t.Errorf("SyncTimeout = %s, want 5s", cfg.SyncTimeout)
	}
	if !cfg.UniqueLabels {
		t.Error("UniqueLabels should be true")
	}
	if cfg.Persistence != "bolt" {
		t.Errorf("Persistence = %q, want untouched default", cfg.Persistence)
	}
}

func TestApplyEnv_Invalid(t *testing.T) {
	t.Setenv("LIBWALLET_SYNC_OFFSET", "ten")

	in := DefaultConfig()
	out, err := ApplyEnv(in)
	if !errors.Is(err, ErrInvalidEnv) {
		t.Fatalf("ApplyEnv: got %v, want ErrInvalidEnv", err)
	}
	if out != in {
		t.Error("ApplyEnv should return the input unchanged on error")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != dir {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, dir)
	}
	if cfg.SyncPageSize != 50 || cfg.SyncOffset != 0 {
		t.Errorf("sync defaults = %d/%d, want 50/0", cfg.SyncPageSize, cfg.SyncOffset)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.DataDir = dir
	cfg.Network = "testnet"
	cfg.Persistence = "file"
	if err := SaveConfig(ConfigPath(dir), cfg); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LIBWALLET_PERSISTENCE", "bolt")

	got, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Network != "testnet" {
		t.Errorf("Network = %q, want testnet from file", got.Network)
	}
	if got.Persistence != "bolt" {
		t.Errorf("Persistence = %q, want bolt from env", got.Persistence)
	}
}

func TestLoad_InvalidAfterEnv(t *testing.T) {
	t.Setenv("LIBWALLET_SYNC_PAGE_SIZE", "0")
	_, err := Load(t.TempDir())
	if !errors.Is(err, ErrInvalidSync) {
		t.Errorf("Load: got %v, want ErrInvalidSync", err)
	}
}

// ---------------------------------------------------------------------------
// NewLogger
// ---------------------------------------------------------------------------

func TestNewLogger_Level(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "WARN"
	logger, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if logger.GetLevel() != log.WarnLevel {
		t.Errorf("level = %s, want warning", logger.GetLevel())
	}

	cfg.LogLevel = "loud"
	if _, err := NewLogger(cfg); !errors.Is(err, ErrInvalidLogLevel) {
		t.Errorf("NewLogger bad level: got %v, want ErrInvalidLogLevel", err)
	}
}

func TestNewLogger_File(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogFile = filepath.Join(t.TempDir(), "logs", "wallet.log")
	logger, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.WithField("op", "sync").Info("hello")

	data, err := os.ReadFile(cfg.LogFile)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) || !strings.Contains(string(data), `"op":"sync"`) {
		t.Errorf("log file = %q, want JSON entry", data)
	}
}
