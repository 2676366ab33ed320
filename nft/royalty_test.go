package nft

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestRoyaltyToPayout(t *testing.T) {
	price, err := uint256.FromDecimal("30000000000000000000000000")
	require.NoError(t, err)
	require.Equal(t, "6000000000000000000000000", royaltyToPayout(price, 2000).Dec())
	require.Equal(t, "30000000000000000000000000", royaltyToPayout(price, 10000).Dec())
	require.Equal(t, "3000000000000000000000", royaltyToPayout(price, 1).Dec())

	// rounds down
	require.Equal(t, "0", royaltyToPayout(uint256.NewInt(9999), 1).Dec())
	require.Equal(t, "1", royaltyToPayout(uint256.NewInt(10001), 1).Dec())
}

func TestComputePayout(t *testing.T) {
	price, err := uint256.FromDecimal("30000000000000000000000000")
	require.NoError(t, err)

	t.Run("seller absorbs the remainder", func(t *testing.T) {
		payout, err := computePayout("seller", map[string]uint32{
			"artist":  2000,
			"charity": 500,
		}, price, maxPayoutAccounts)
		require.NoError(t, err)
		require.Len(t, payout, 3)
		require.Equal(t, "6000000000000000000000000", payout["artist"])
		require.Equal(t, "1500000000000000000000000", payout["charity"])
		require.Equal(t, "22500000000000000000000000", payout["seller"])
	})

	t.Run("payouts sum to the price", func(t *testing.T) {
		payout, err := computePayout("seller", map[string]uint32{
			"a": 1,
			"b": 333,
			"c": 4999,
		}, uint256.NewInt(1000003), maxPayoutAccounts)
		require.NoError(t, err)
		total := uint256.NewInt(0)
		for _, amount := range payout {
			v, err := uint256.FromDecimal(amount)
			require.NoError(t, err)
			total.Add(total, v)
		}
		require.Equal(t, "1000003", total.Dec())
	})

	t.Run("seller royalty folds into the remainder", func(t *testing.T) {
		payout, err := computePayout("seller", map[string]uint32{
			"seller": 2000,
			"artist": 1000,
		}, price, maxPayoutAccounts)
		require.NoError(t, err)
		require.Len(t, payout, 2)
		require.Equal(t, "3000000000000000000000000", payout["artist"])
		require.Equal(t, "27000000000000000000000000", payout["seller"])
	})

	t.Run("zero amounts are dropped", func(t *testing.T) {
		payout, err := computePayout("seller", map[string]uint32{
			"dust": 1,
		}, uint256.NewInt(100), maxPayoutAccounts)
		require.NoError(t, err)
		require.Len(t, payout, 1)
		require.Equal(t, "100", payout["seller"])
	})

	t.Run("too many accounts", func(t *testing.T) {
		royalty := map[string]uint32{
			"a": 100, "b": 100, "c": 100, "d": 100,
			"e": 100, "f": 100, "g": 100,
		}
		_, err := computePayout("seller", royalty, price, maxPayoutAccounts)
		require.ErrorContains(t, err, "cannot pay out to more than")
	})

	t.Run("no royalties", func(t *testing.T) {
		payout, err := computePayout("seller", nil, price, maxPayoutAccounts)
		require.NoError(t, err)
		require.Equal(t, map[string]string{"seller": price.Dec()}, payout)
	})
}
