package network

import (
	"fmt"
	"time"
)

// RPCConfig holds the connection parameters for a node's JSON-RPC interface.
type RPCConfig struct {
	URL      string        `json:"url"`
	User     string        `json:"user"`
	Password string        `json:"password"`
	Network  string        `json:"network"`
	Timeout  time.Duration `json:"timeout,omitempty"`
}

// Environment variables read by ResolveConfig.
const (
	EnvRPCURL  = "LIBWALLET_RPC_URL"
	EnvRPCUser = "LIBWALLET_RPC_USER"
	EnvRPCPass = "LIBWALLET_RPC_PASS"
)

// NetworkPresets holds local-node defaults. Mainnet has none.
var NetworkPresets = map[string]RPCConfig{
	"regtest": {URL: "http://localhost:18332", User: "wallet", Password: "wallet"},
	"testnet": {URL: "http://localhost:18333", User: "wallet", Password: "wallet"},
}

// ResolveConfig layers explicit settings over environment variables over
// network presets. The resulting URL must be non-empty.
func ResolveConfig(explicit *RPCConfig, env map[string]string, network string) (*RPCConfig, error) {
	result := RPCConfig{Network: network}

	if preset, ok := NetworkPresets[network]; ok {
		result = preset
		result.Network = network
	}

	if v := env[EnvRPCURL]; v != "" {
		result.URL = v
	}
	if v := env[EnvRPCUser]; v != "" {
		result.User = v
	}
	if v := env[EnvRPCPass]; v != "" {
		result.Password = v
	}

	if explicit != nil {
		if explicit.URL != "" {
			result.URL = explicit.URL
		}
		if explicit.User != "" {
			result.User = explicit.User
		}
		if explicit.Password != "" {
			result.Password = explicit.Password
		}
		if explicit.Timeout > 0 {
			result.Timeout = explicit.Timeout
		}
	}

	if result.URL == "" {
		return nil, fmt.Errorf("network: %s requires an explicit RPC url (set %s or the config file)", network, EnvRPCURL)
	}
	return &result, nil
}
