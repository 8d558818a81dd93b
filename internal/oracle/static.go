package oracle

import (
	"context"

	"github.com/omenmarkets/omen/internal/domain"
)

// Confirming returns an adjudicator that always upholds the original
// proposal. Useful for development environments without a real adjudication
// service; every dispute loses.
func Confirming() domain.Adjudicator {
	return domain.AdjudicatorFunc(func(_ context.Context, _ string, proposedWinners []int) ([]int, error) {
		return append([]int(nil), proposedWinners...), nil
	})
}

// Fixed returns an adjudicator that always rules the given winner set,
// regardless of the proposal. Useful in tests.
func Fixed(winners []int) domain.Adjudicator {
	return domain.AdjudicatorFunc(func(_ context.Context, _ string, _ []int) ([]int, error) {
		return append([]int(nil), winners...), nil
	})
}
