package engine

import (
	"math/bits"

	"github.com/omenmarkets/omen/internal/domain"
)

// The pricing curve is a constant-sum cost function over the share ledger:
// a buy of amount a mints exactly a shares on the chosen option and adds a
// to the pool, so pool >= sum(totalShares) holds after every operation.
// The quoted price of option i is q_i / sum(q), interpreted as a probability
// at PriceScale fixed-point. A sell of s shares pays s times the price
// evaluated at the post-sale distribution, which is at most s; the pool can
// therefore never be drained below the outstanding share total, and never
// goes negative. Solvency holds by construction, not by clamping.

// mulDiv computes a*b/c with a 128-bit intermediate so the product cannot
// overflow. All arguments must be non-negative and the quotient must fit in
// int64; every engine call site satisfies both because b <= c or the result
// is a sub-share of a.
func mulDiv(a, b, c int64) int64 {
	if c == 0 {
		return 0
	}
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	quo, _ := bits.Div64(hi, lo, uint64(c))
	return int64(quo)
}

// quotePrices returns the price vector for the given share ledger, at
// PriceScale fixed-point. An empty ledger quotes uniform odds.
func quotePrices(totalShares []int64) []int64 {
	n := len(totalShares)
	prices := make([]int64, n)

	var sum int64
	for _, q := range totalShares {
		sum += q
	}
	if sum == 0 {
		uniform := domain.PriceScale / int64(n)
		for i := range prices {
			prices[i] = uniform
		}
		return prices
	}

	for i, q := range totalShares {
		prices[i] = mulDiv(q, domain.PriceScale, sum)
	}
	return prices
}

// buyShares returns the shares minted for a stake of amount on an option.
// The constant-sum curve mints 1:1.
func buyShares(amount int64) int64 {
	return amount
}

// sellPayout returns the payout for burning s shares of an option currently
// holding q shares out of total outstanding. The price is evaluated at the
// post-sale distribution, so the payout per share is strictly below the
// pre-sale marginal price and the round trip buy-then-sell can never exceed
// the amount paid in. Burning the last outstanding shares pays nothing.
func sellPayout(q, total, s int64) int64 {
	remOption := q - s
	remTotal := total - s
	if remTotal <= 0 {
		return 0
	}
	return mulDiv(s, remOption, remTotal)
}
