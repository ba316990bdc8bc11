// Package config loads the indexer's static YAML configuration. Remote
// config (the teacher's zk/apollo Apollo client) is intentionally not
// carried forward here — see DESIGN.md for why — so this stays a plain
// load-once-at-startup struct, still decoded with the same YAML library the
// teacher uses for its own config blobs (gopkg.in/yaml.v2, see
// zk/apollo/common.go's getConfigContext).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config is the full set of knobs a Driver run needs. Field names match the
// external interface table: chain identity, RPC endpoint, warehouse
// datasets, and the tip-buffering/backfill-range controls.
type Config struct {
	ChainName string `yaml:"chain_name"`
	RPCURL    string `yaml:"rpc_url"`

	ChainTipBuffer uint64  `yaml:"chain_tip_buffer"`
	StartBlock     *uint64 `yaml:"start_block"`
	EndBlock       *uint64 `yaml:"end_block"`

	// ProjectID is the GCP project the warehouse dataset lives in. Required
	// whenever DatasetLocation is set (selecting bigquerywh over sqlitewh).
	ProjectID       string   `yaml:"project_id"`
	DatasetLocation string   `yaml:"dataset_location"`
	Datasets        Datasets `yaml:"datasets"`

	// EnabledDatasets restricts the Driver to a subset of
	// {blocks, transactions, logs, traces}; an empty list means all four are
	// enabled. A disabled dataset is skipped at Bootstrap and Commit time.
	EnabledDatasets []string `yaml:"enabled_datasets"`

	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`

	// StrictDedup makes the pipeline Driver skip, before each window, every
	// block at or below the warehouse's durable watermark instead of
	// re-fetching and re-appending it, resolving Open Question #1 (see
	// DESIGN.md).
	StrictDedup bool `yaml:"strict_dedup"`

	// ResumeGapCheck makes the Driver log, at startup, each enabled dataset's
	// durable watermark next to the resume point. It does not query the
	// warehouse for gaps below the resume cursor.
	ResumeGapCheck bool `yaml:"resume_gap_check"`

	// StrictPreBedrock, on an Optimism chain, makes an OVM1 pre-Bedrock
	// block (extraData length 97) a fatal condition instead of indexing it
	// with a reduced field set. See chainfamily.Traits.StrictPreBedrock and
	// SPEC_FULL.md Open Question #2.
	StrictPreBedrock bool `yaml:"strict_pre_bedrock"`

	// Concurrency bounds the Driver's sliding window of in-flight blocks.
	Concurrency int `yaml:"concurrency"`

	// RPCTimeout is decoded from rpc_timeout but not passed to the RPC
	// adapter: RPC call attempts run without a per-attempt timeout.
	RPCTimeout time.Duration `yaml:"rpc_timeout"`
}

type Datasets struct {
	Blocks       string `yaml:"blocks"`
	Transactions string `yaml:"transactions"`
	Logs         string `yaml:"logs"`
	Traces       string `yaml:"traces"`
}

// knownDatasets is the set spec.md §4.5/§6 allows enabled_datasets to name.
var knownDatasets = map[string]bool{
	"blocks":       true,
	"transactions": true,
	"logs":         true,
	"traces":       true,
}

// EnabledDatasetSet returns EnabledDatasets as a lookup set for
// warehouse.Sinks. A nil map (returned when EnabledDatasets is empty) means
// "every dataset enabled" to the caller.
func (c Config) EnabledDatasetSet() map[string]bool {
	if len(c.EnabledDatasets) == 0 {
		return nil
	}
	set := make(map[string]bool, len(c.EnabledDatasets))
	for _, d := range c.EnabledDatasets {
		set[d] = true
	}
	return set
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

type LoggingConfig struct {
	ConsoleVerbosity string `yaml:"console_verbosity"`
	DirPath          string `yaml:"dir_path"`
	JSON             bool   `yaml:"json"`
}

// Default fills in the values spec.md §6 lists as defaults.
func Default() Config {
	return Config{
		ChainTipBuffer: 15,
		Concurrency:    8,
		RPCTimeout:     30 * time.Second,
		Metrics: MetricsConfig{
			Enabled: true,
			Address: "0.0.0.0",
			Port:    9090,
		},
		Logging: LoggingConfig{
			ConsoleVerbosity: "info",
		},
	}
}

// Load reads and validates a YAML config file, starting from Default() so a
// minimal file only needs to override what it cares about.
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(f, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the invariants spec.md §6 requires before a Driver run
// starts: a chain and RPC endpoint are mandatory, and an explicit block
// range must be well-formed.
func (c Config) Validate() error {
	if c.ChainName == "" {
		return fmt.Errorf("chain_name is required")
	}
	if c.RPCURL == "" {
		return fmt.Errorf("rpc_url is required")
	}
	if c.StartBlock != nil && c.EndBlock != nil && *c.EndBlock < *c.StartBlock {
		return fmt.Errorf("end_block %d is before start_block %d", *c.EndBlock, *c.StartBlock)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}
	if c.DatasetLocation != "" && c.ProjectID == "" {
		return fmt.Errorf("project_id is required when dataset_location selects the BigQuery warehouse")
	}
	for _, d := range c.EnabledDatasets {
		if !knownDatasets[d] {
			return fmt.Errorf("enabled_datasets: unknown dataset %q, must be one of blocks/transactions/logs/traces", d)
		}
	}
	return nil
}
