// Copyright 2025 Certen Protocol
//
// Relayer process and per-chain configuration. The process config is a flat
// env-var struct read through config.go's getEnv; the per-chain config is a
// YAML document that uses anchor_config.go's Duration yaml type.

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ProcessConfig holds the flat, env-var-driven settings that apply to the
// relayer process as a whole, independent of any one chain.
type ProcessConfig struct {
	LogLevel    string
	StorePath   string
	MetricsAddr string
	HealthAddr  string
}

// LoadProcessConfig reads ProcessConfig from the environment, following
// config.go's getEnv helper.
func LoadProcessConfig() *ProcessConfig {
	return &ProcessConfig{
		LogLevel:    getEnv("RELAYER_LOG_LEVEL", "info"),
		StorePath:   getEnv("RELAYER_STORE_PATH", "./data/relayer.db"),
		MetricsAddr: getEnv("RELAYER_METRICS_ADDR", "0.0.0.0:9090"),
		HealthAddr:  getEnv("RELAYER_HEALTH_ADDR", "0.0.0.0:8080"),
	}
}

// EndpointSettings is a chain's RPC endpoints.
type EndpointSettings struct {
	HTTP string `yaml:"http"`
	WS   string `yaml:"ws"`
}

// TxQueueSettings bounds the drainer's desync sleep window.
type TxQueueSettings struct {
	MaxSleepInterval Duration `yaml:"max_sleep_interval"`
}

// ChainEventsWatcherSettings holds the fields spec.md §6 names for a
// per-contract watcher.
type ChainEventsWatcherSettings struct {
	Enabled          bool     `yaml:"enabled"`
	PollingInterval  Duration `yaml:"polling_interval"`
	MaxBlocksPerStep uint64   `yaml:"max_blocks_per_step"`
	Confirmations    uint64   `yaml:"confirmations"`
	EnableDataQuery  bool     `yaml:"enable_data_query"`
}

// LinkedAnchorSettings names one linked anchor a deposit can be relayed to.
type LinkedAnchorSettings struct {
	ResourceID string `yaml:"resource_id"`
}

// ProposalSigningBackendSettings selects and configures one of the two
// signing backend variants (spec §4.3).
type ProposalSigningBackendSettings struct {
	Type               string `yaml:"type"` // "dkg" or "mocked"
	VotingContract     string `yaml:"voting_contract,omitempty"`
	Phase1JobID        string `yaml:"phase1_job_id,omitempty"`
	Phase1DetailsHex   string `yaml:"phase1_details,omitempty"`
}

// ContractSettings describes one anchor contract watched on a chain.
type ContractSettings struct {
	Address               string                         `yaml:"address"`
	DeployedAt            uint64                         `yaml:"deployed_at"`
	EventsWatcher         ChainEventsWatcherSettings     `yaml:"events_watcher"`
	LinkedAnchors         []LinkedAnchorSettings         `yaml:"linked_anchors"`
	ProposalSigningBackend ProposalSigningBackendSettings `yaml:"proposal_signing_backend"`
}

// ChainConfig is the per-chain YAML document described in spec.md §6.
type ChainConfig struct {
	ChainID     uint64                      `yaml:"chain_id"`
	Endpoints   EndpointSettings            `yaml:"endpoints"`
	Enabled     bool                        `yaml:"enabled"`
	Beneficiary string                      `yaml:"beneficiary,omitempty"`
	PrivateKey  string                      `yaml:"private_key"`
	TxQueue     TxQueueSettings             `yaml:"tx_queue"`
	Contracts   map[string]ContractSettings `yaml:"contracts"`
}

// LoadChainConfig reads and parses one chain's YAML config file.
func LoadChainConfig(path string) (*ChainConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chain config %s: %w", path, err)
	}
	var cfg ChainConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse chain config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate chain config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate rejects a chain config missing fields the rest of the pipeline
// assumes are present (spec §6 names these as required, not optional).
func (c *ChainConfig) Validate() error {
	if c.ChainID == 0 {
		return fmt.Errorf("chain_id is required")
	}
	if c.Endpoints.HTTP == "" {
		return fmt.Errorf("endpoints.http is required")
	}
	if c.PrivateKey == "" {
		return fmt.Errorf("private_key is required")
	}
	for name, contract := range c.Contracts {
		if contract.Address == "" {
			return fmt.Errorf("contract %s: address is required", name)
		}
		switch contract.ProposalSigningBackend.Type {
		case "dkg", "mocked", "":
		default:
			return fmt.Errorf("contract %s: unknown proposal_signing_backend.type %q", name, contract.ProposalSigningBackend.Type)
		}
	}
	return nil
}
