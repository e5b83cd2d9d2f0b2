package wallet

import (
	"encoding/json"
	"fmt"
	"os"

	chaincfg "github.com/bsv-blockchain/go-sdk/transaction/chaincfg"
)

// NetworkConfig defines the version bytes and BIP44 coin type of a network.
type NetworkConfig struct {
	Name           string `json:"name"`
	AddressVersion byte   `json:"address_version"`
	P2SHVersion    byte   `json:"p2sh_version"`
	WIFVersion     byte   `json:"wif_version"`
	CoinType       uint32 `json:"coin_type"`
}

// Predefined network configurations.
var (
	MainNet = NetworkConfig{
		Name:           "mainnet",
		AddressVersion: 0x00,
		P2SHVersion:    0x05,
		WIFVersion:     0x80,
		CoinType:       0,
	}

	TestNet = NetworkConfig{
		Name:           "testnet",
		AddressVersion: 0x6f,
		P2SHVersion:    0xc4,
		WIFVersion:     0xef,
		CoinType:       1,
	}

	RegTest = NetworkConfig{
		Name:           "regtest",
		AddressVersion: 0x6f,
		P2SHVersion:    0xc4,
		WIFVersion:     0xef,
		CoinType:       1,
	}
)

// predefined maps network names to their configs.
var predefined = map[string]*NetworkConfig{
	"mainnet": &MainNet,
	"testnet": &TestNet,
	"regtest": &RegTest,
}

// GetNetwork returns a predefined network by name.
// If the name is not predefined, it returns ErrInvalidNetwork.
func GetNetwork(name string) (*NetworkConfig, error) {
	if net, ok := predefined[name]; ok {
		return net, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidNetwork, name)
}

// LoadCustomNetwork loads a NetworkConfig from a JSON file.
func LoadCustomNetwork(path string) (*NetworkConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("wallet: failed to read network config: %w", err)
	}

	var config NetworkConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("wallet: failed to parse network config: %w", err)
	}

	if config.Name == "" {
		return nil, fmt.Errorf("wallet: network config must have a name")
	}

	return &config, nil
}

// chainParams maps a NetworkConfig to go-sdk chaincfg.Params for BIP32
// extended key serialization.
func (n *NetworkConfig) chainParams() *chaincfg.Params {
	if n.Name == "mainnet" {
		return &chaincfg.MainNet
	}
	return &chaincfg.TestNet
}
