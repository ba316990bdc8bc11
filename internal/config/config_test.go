package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidate_RequiresChainNameAndRPCURL(t *testing.T) {
	cfg := Default()
	require.Error(t, cfg.Validate())

	cfg.ChainName = "ethereum"
	require.Error(t, cfg.Validate(), "rpc_url still missing")

	cfg.RPCURL = "https://rpc.example/v1"
	require.NoError(t, cfg.Validate())
}

func TestValidate_RejectsEndBeforeStart(t *testing.T) {
	cfg := Default()
	cfg.ChainName = "ethereum"
	cfg.RPCURL = "https://rpc.example/v1"
	start, end := uint64(100), uint64(50)
	cfg.StartBlock = &start
	cfg.EndBlock = &end

	err := cfg.Validate()
	require.Error(t, err)
}

func TestValidate_RejectsNonPositiveConcurrency(t *testing.T) {
	cfg := Default()
	cfg.ChainName = "ethereum"
	cfg.RPCURL = "https://rpc.example/v1"
	cfg.Concurrency = 0

	require.Error(t, cfg.Validate())
}

func TestValidate_RequiresProjectIDWhenDatasetLocationSet(t *testing.T) {
	cfg := Default()
	cfg.ChainName = "ethereum"
	cfg.RPCURL = "https://rpc.example/v1"
	cfg.DatasetLocation = "US"

	err := cfg.Validate()
	require.Error(t, err)

	cfg.ProjectID = "my-gcp-project"
	require.NoError(t, cfg.Validate())
}

func TestValidate_RejectsUnknownEnabledDataset(t *testing.T) {
	cfg := Default()
	cfg.ChainName = "ethereum"
	cfg.RPCURL = "https://rpc.example/v1"
	cfg.EnabledDatasets = []string{"blocks", "bogus"}

	require.Error(t, cfg.Validate())
}

func TestEnabledDatasetSet_EmptyMeansAllEnabled(t *testing.T) {
	cfg := Default()
	require.Nil(t, cfg.EnabledDatasetSet())
}

func TestEnabledDatasetSet_BuildsLookupFromList(t *testing.T) {
	cfg := Default()
	cfg.EnabledDatasets = []string{"blocks", "logs"}

	set := cfg.EnabledDatasetSet()
	require.True(t, set["blocks"])
	require.True(t, set["logs"])
	require.False(t, set["transactions"])
	require.False(t, set["traces"])
}

func TestDefault_FillsSpecDefaults(t *testing.T) {
	cfg := Default()
	require.Equal(t, uint64(15), cfg.ChainTipBuffer)
	require.Equal(t, 8, cfg.Concurrency)
	require.True(t, cfg.Metrics.Enabled)
	require.Equal(t, "info", cfg.Logging.ConsoleVerbosity)
}

func TestLoad_OverridesDefaultsFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := []byte(`
chain_name: ethereum
rpc_url: https://rpc.example/v1
concurrency: 4
chain_tip_buffer: 20
`)
	require.NoError(t, os.WriteFile(path, contents, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "ethereum", cfg.ChainName)
	require.Equal(t, 4, cfg.Concurrency)
	require.Equal(t, uint64(20), cfg.ChainTipBuffer)
	// Fields the override didn't touch keep Default()'s values.
	require.True(t, cfg.Metrics.Enabled)
}

func TestLoad_RejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`rpc_url: https://rpc.example/v1`), 0o644)) // chain_name missing

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_MissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}
