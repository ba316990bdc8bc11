package chainfamily

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry_KnownChains(t *testing.T) {
	r := DefaultRegistry()

	cases := []struct {
		chainID uint64
		want    Family
	}{
		{1, Ethereum},
		{42161, Arbitrum},
		{10, Optimism},
		{324, ZkSyncEra},
		{11155111, Ethereum},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, r.Family(tc.chainID), "chain id %d", tc.chainID)
	}
}

func TestDefaultRegistry_UnknownChainDefaultsToEthereum(t *testing.T) {
	r := DefaultRegistry()
	require.Equal(t, Ethereum, r.Family(999999))
	require.Equal(t, defaults[Ethereum].TraceMethod, r.Traits(999999).TraceMethod)
}

func TestTraits_ArbitrumExtensionColumns(t *testing.T) {
	r := DefaultRegistry()
	traits := r.Traits(42161)
	require.ElementsMatch(t, []string{"l1_block_number", "send_count", "send_root", "gas_used_for_l1"}, traits.ExtensionColumns)
}

func TestTraits_ZkSyncEraUsesPerTxReceipts(t *testing.T) {
	r := DefaultRegistry()
	traits := r.Traits(324)
	require.False(t, traits.UsesBlockReceiptsBatch, "zksync era should default to per-tx receipt fetching")
}

func TestTraits_EthereumUsesBatchReceipts(t *testing.T) {
	r := DefaultRegistry()
	traits := r.Traits(1)
	require.True(t, traits.UsesBlockReceiptsBatch)
}

func TestNewRegistry_CopiesInputMap(t *testing.T) {
	src := map[uint64]Family{7: Arbitrum}
	r := NewRegistry(src)
	src[7] = Optimism // mutating caller's map must not affect the registry

	require.Equal(t, Arbitrum, r.Family(7))
}

func TestTraits_StrictPreBedrockDefaultsFalse(t *testing.T) {
	r := DefaultRegistry()
	require.False(t, r.Traits(10).StrictPreBedrock)
}
