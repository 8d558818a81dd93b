package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/omenmarkets/omen/internal/domain"
)

func TestMulDiv(t *testing.T) {
	require.Equal(t, int64(50), mulDiv(100, 1, 2))
	require.Equal(t, int64(0), mulDiv(100, 1, 0))
	require.Equal(t, int64(333_333), mulDiv(1, domain.PriceScale, 3))

	// Large operands that would overflow a 64-bit intermediate product.
	big := int64(5_000_000_000_000_000)
	require.Equal(t, big/2, mulDiv(big, domain.PriceScale/2, domain.PriceScale))
}

func TestQuoteUniformWhenEmpty(t *testing.T) {
	prices := quotePrices([]int64{0, 0})
	require.Equal(t, []int64{500_000, 500_000}, prices)

	prices = quotePrices([]int64{0, 0, 0, 0})
	require.Equal(t, []int64{250_000, 250_000, 250_000, 250_000}, prices)
}

func TestQuoteSumsToScale(t *testing.T) {
	cases := [][]int64{
		{1_000_000, 1_000_000},
		{10_000_000, 5_000_000, 1},
		{7, 13, 29, 1_000_000_000},
	}
	for _, shares := range cases {
		prices := quotePrices(shares)
		var sum int64
		for _, p := range prices {
			sum += p
		}
		// Integer division may lose up to one tick per option.
		require.LessOrEqual(t, sum, domain.PriceScale)
		require.Greater(t, sum, domain.PriceScale-int64(len(shares)))
	}
}

func TestQuoteMonotonic(t *testing.T) {
	shares := []int64{3_000_000, 2_000_000, 1_000_000}
	before := quotePrices(shares)

	shares[0] += 500_000
	after := quotePrices(shares)

	require.Greater(t, after[0], before[0])
	require.Less(t, after[1], before[1])
	require.Less(t, after[2], before[2])
}

func TestSellPayoutBounds(t *testing.T) {
	// Payout never exceeds the shares burned.
	require.LessOrEqual(t, sellPayout(5_000_000, 8_000_000, 2_000_000), int64(2_000_000))

	// Selling the entire outstanding supply pays nothing.
	require.Equal(t, int64(0), sellPayout(3_000_000, 3_000_000, 3_000_000))

	// Post-sale price is below the pre-sale price.
	pre := quotePrices([]int64{5_000_000, 3_000_000})[0]
	payout := sellPayout(5_000_000, 8_000_000, 1_000_000)
	require.Less(t, payout, mulDiv(1_000_000, pre, domain.PriceScale))
}
