package mintsdk

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// NetworkID represents an EVM chain ID
type NetworkID int64

const (
	NetworkEthereum NetworkID = 1
	NetworkOptimism NetworkID = 10
	NetworkBase     NetworkID = 8453
	NetworkSepolia  NetworkID = 11155111
)

// ContractAddresses holds the extension contract for each product family
type ContractAddresses struct {
	Edition    string `yaml:"edition" toml:"edition"`
	BurnRedeem string `yaml:"burn_redeem" toml:"burn_redeem"`
	BlindMint  string `yaml:"blind_mint" toml:"blind_mint"`
}

// For returns the extension address configured for family, zero if none
func (c ContractAddresses) For(family ProductFamily) common.Address {
	var addr string
	switch family {
	case FamilyEdition:
		addr = c.Edition
	case FamilyBurnRedeem:
		addr = c.BurnRedeem
	case FamilyBlindMint:
		addr = c.BlindMint
	}
	if addr == "" {
		return common.Address{}
	}
	return common.HexToAddress(addr)
}

// Network describes one chain the client can read from and purchase on
type Network struct {
	ID             NetworkID         `yaml:"id" toml:"id"`
	Name           string            `yaml:"name" toml:"name"`
	NativeSymbol   string            `yaml:"native_symbol" toml:"native_symbol"`
	RPCURL         string            `yaml:"rpc_url" toml:"rpc_url"`
	FallbackRPCURL string            `yaml:"fallback_rpc_url" toml:"fallback_rpc_url"`
	WSURL          string            `yaml:"ws_url" toml:"ws_url"`
	Contracts      ContractAddresses `yaml:"contracts" toml:"contracts"`
}

// DefaultNetworks maps chain IDs to their presets
var DefaultNetworks = map[NetworkID]Network{
	NetworkEthereum: {
		ID:             NetworkEthereum,
		Name:           "ethereum",
		NativeSymbol:   "ETH",
		FallbackRPCURL: "https://ethereum-rpc.publicnode.com",
		Contracts: ContractAddresses{
			Edition: "0x26BBEA7803DcAc346D5F5f135b57Cf2c752A02bE",
		},
	},
	NetworkOptimism: {
		ID:             NetworkOptimism,
		Name:           "optimism",
		NativeSymbol:   "ETH",
		FallbackRPCURL: "https://mainnet.optimism.io",
	},
	NetworkBase: {
		ID:             NetworkBase,
		Name:           "base",
		NativeSymbol:   "ETH",
		FallbackRPCURL: "https://mainnet.base.org",
		Contracts: ContractAddresses{
			Edition: "0x26BBEA7803DcAc346D5F5f135b57Cf2c752A02bE",
		},
	},
	NetworkSepolia: {
		ID:             NetworkSepolia,
		Name:           "sepolia",
		NativeSymbol:   "ETH",
		FallbackRPCURL: "https://ethereum-sepolia-rpc.publicnode.com",
	},
}

// FileConfig is the on-disk configuration format
type FileConfig struct {
	Networks         []Network `yaml:"networks" toml:"networks"`
	AllowlistHost    string    `yaml:"allowlist_host" toml:"allowlist_host"`
	ReadTimeout      string    `yaml:"read_timeout" toml:"read_timeout"`
	FallbackRPS      float64   `yaml:"fallback_rps" toml:"fallback_rps"`
	GasBufferPercent uint64    `yaml:"gas_buffer_percent" toml:"gas_buffer_percent"`
	Confirmations    uint64    `yaml:"confirmations" toml:"confirmations"`
	ReceiptTimeout   string    `yaml:"receipt_timeout" toml:"receipt_timeout"`
	JournalPath      string    `yaml:"journal_path" toml:"journal_path"`
}

// LoadConfig reads a YAML or TOML config file, chosen by extension
func LoadConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse yaml config: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse toml config: %w", err)
		}
	default:
		return nil, invalidParam("unsupported config format %q", filepath.Ext(path))
	}
	return &cfg, nil
}

// ClientConfig converts the file settings into a ClientConfig. Networks listed in the
// file are merged over DefaultNetworks field by field.
func (fc *FileConfig) ClientConfig() (ClientConfig, error) {
	cfg := ClientConfig{
		AllowlistHost:    fc.AllowlistHost,
		FallbackRPS:      fc.FallbackRPS,
		GasBufferPercent: fc.GasBufferPercent,
		Confirmations:    fc.Confirmations,
		Networks:         make(map[NetworkID]Network, len(fc.Networks)),
	}

	var err error
	if cfg.ReadTimeout, err = parseDuration("read_timeout", fc.ReadTimeout); err != nil {
		return ClientConfig{}, err
	}
	if cfg.ReceiptTimeout, err = parseDuration("receipt_timeout", fc.ReceiptTimeout); err != nil {
		return ClientConfig{}, err
	}

	for _, n := range fc.Networks {
		if n.ID <= 0 {
			return ClientConfig{}, invalidParam("network %q has no id", n.Name)
		}
		cfg.Networks[n.ID] = mergeNetwork(DefaultNetworks[n.ID], n)
	}
	return cfg, nil
}

func parseDuration(field, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, invalidParam("invalid %s %q: %v", field, raw, err)
	}
	return d, nil
}

func mergeNetwork(base, override Network) Network {
	out := base
	out.ID = override.ID
	if override.Name != "" {
		out.Name = override.Name
	}
	if override.NativeSymbol != "" {
		out.NativeSymbol = override.NativeSymbol
	}
	if override.RPCURL != "" {
		out.RPCURL = override.RPCURL
	}
	if override.FallbackRPCURL != "" {
		out.FallbackRPCURL = override.FallbackRPCURL
	}
	if override.WSURL != "" {
		out.WSURL = override.WSURL
	}
	if override.Contracts.Edition != "" {
		out.Contracts.Edition = override.Contracts.Edition
	}
	if override.Contracts.BurnRedeem != "" {
		out.Contracts.BurnRedeem = override.Contracts.BurnRedeem
	}
	if override.Contracts.BlindMint != "" {
		out.Contracts.BlindMint = override.Contracts.BlindMint
	}
	if out.NativeSymbol == "" {
		out.NativeSymbol = "ETH"
	}
	return out
}
