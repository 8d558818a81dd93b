package engine

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/omenmarkets/omen/internal/domain"
)

const unit = domain.PriceScale

var testStart = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// newTestEngine returns an engine with a manual clock. Advance time by
// mutating *now.
func newTestEngine(oracle domain.Adjudicator) (*Engine, *time.Time) {
	now := testStart
	e := New(Config{LivenessWindow: time.Hour, MinBond: 100 * unit}, oracle, func() time.Time { return now })
	return e, &now
}

func createMarket(t *testing.T, e *Engine, creator string, options []string, endTime time.Time) domain.Market {
	t.Helper()
	m, events, err := e.CreateMarket(creator, "Who wins the final?", options, endTime)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, domain.EventMarketCreated, events[0].Type)
	return m
}

// requireLedger asserts the share ledger invariant: per option, position
// shares sum to the market's outstanding total, and the pool is not negative.
func requireLedger(t *testing.T, e *Engine, marketID string) {
	t.Helper()
	e.mu.Lock()
	defer e.mu.Unlock()

	ms, ok := e.markets[marketID]
	require.True(t, ok)

	sums := make([]int64, len(ms.market.Options))
	for _, p := range ms.positions {
		for i, q := range p.Shares {
			sums[i] += q
		}
	}
	require.Equal(t, ms.market.TotalShares, sums)
	require.GreaterOrEqual(t, ms.market.Pool, int64(0))
	require.GreaterOrEqual(t, ms.market.Pool, ms.market.SumShares())
}

func TestCreateMarketValidation(t *testing.T) {
	e, now := newTestEngine(nil)
	end := now.Add(24 * time.Hour)

	_, _, err := e.CreateMarket("", "q", []string{"a", "b"}, end)
	require.ErrorIs(t, err, domain.ErrInvalidAccount)

	_, _, err = e.CreateMarket("alice", "  ", []string{"a", "b"}, end)
	require.ErrorIs(t, err, domain.ErrEmptyQuestion)

	_, _, err = e.CreateMarket("alice", "q", []string{"a"}, end)
	require.ErrorIs(t, err, domain.ErrOptionCount)

	_, _, err = e.CreateMarket("alice", "q", []string{"a", "b", "c", "d", "e"}, end)
	require.ErrorIs(t, err, domain.ErrOptionCount)

	_, _, err = e.CreateMarket("alice", "q", []string{"a", " "}, end)
	require.ErrorIs(t, err, domain.ErrBlankOption)

	_, _, err = e.CreateMarket("alice", "q", []string{"a", "b"}, *now)
	require.ErrorIs(t, err, domain.ErrEndTimeInPast)

	for _, kind := range []error{domain.ErrInvalidAccount, domain.ErrEmptyQuestion, domain.ErrOptionCount, domain.ErrEndTimeInPast} {
		require.Equal(t, domain.KindValidation, domain.Kind(kind))
	}
}

func TestBuyMovesOdds(t *testing.T) {
	e, now := newTestEngine(nil)
	m := createMarket(t, e, "alice", []string{"yes", "no"}, now.Add(24*time.Hour))

	before, err := e.Quote(m.ID)
	require.NoError(t, err)
	require.Equal(t, []int64{500_000, 500_000}, before)

	w, events, err := e.Buy("bob", m.ID, 0, 10*unit)
	require.NoError(t, err)
	require.Equal(t, int64(10*unit), w.Shares)
	require.Len(t, events, 1)
	require.Equal(t, domain.EventSharesBought, events[0].Type)

	after, err := e.Quote(m.ID)
	require.NoError(t, err)
	require.Greater(t, after[0], before[0])
	require.Less(t, after[1], before[1])

	// A further buy on the same option keeps pushing its price up.
	_, _, err = e.Buy("carol", m.ID, 1, 4*unit)
	require.NoError(t, err)
	third, err := e.Quote(m.ID)
	require.NoError(t, err)
	require.Less(t, third[0], after[0])
	require.Greater(t, third[1], after[1])

	requireLedger(t, e, m.ID)
}

func TestBuyValidation(t *testing.T) {
	e, now := newTestEngine(nil)
	m := createMarket(t, e, "alice", []string{"yes", "no"}, now.Add(time.Hour))

	_, _, err := e.Buy("bob", "missing", 0, unit)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, _, err = e.Buy("bob", m.ID, 2, unit)
	require.ErrorIs(t, err, domain.ErrInvalidOption)

	_, _, err = e.Buy("bob", m.ID, -1, unit)
	require.ErrorIs(t, err, domain.ErrInvalidOption)

	_, _, err = e.Buy("bob", m.ID, 0, 0)
	require.ErrorIs(t, err, domain.ErrZeroAmount)

	*now = now.Add(time.Hour)
	_, _, err = e.Buy("bob", m.ID, 0, unit)
	require.ErrorIs(t, err, domain.ErrBettingClosed)
	require.Equal(t, domain.KindState, domain.Kind(err))
}

func TestBuyStakeCap(t *testing.T) {
	e, now := newTestEngine(nil)
	m := createMarket(t, e, "alice", []string{"yes", "no"}, now.Add(time.Hour))

	_, _, err := e.Buy("bob", m.ID, 0, math.MaxInt64)
	require.ErrorIs(t, err, domain.ErrStakeTooLarge)
	require.Equal(t, domain.KindValidation, domain.Kind(err))

	// The cap boundary itself is accepted.
	_, _, err = e.Buy("bob", m.ID, 0, e.cfg.MaxStake)
	require.NoError(t, err)
	requireLedger(t, e, m.ID)
}

func TestBuyRejectsPoolOverflow(t *testing.T) {
	now := testStart
	e := New(Config{LivenessWindow: time.Hour, MinBond: 100 * unit, MaxStake: math.MaxInt64},
		nil, func() time.Time { return now })
	m := createMarket(t, e, "alice", []string{"yes", "no"}, now.Add(time.Hour))

	_, _, err := e.Buy("bob", m.ID, 0, math.MaxInt64-1)
	require.NoError(t, err)

	// A second near-max stake would wrap the pool and the option's share
	// total negative. It must abort with no partial mutation.
	_, _, err = e.Buy("carol", m.ID, 0, math.MaxInt64-1)
	require.ErrorIs(t, err, domain.ErrStakeTooLarge)

	_, _, err = e.Buy("carol", m.ID, 1, math.MaxInt64-1)
	require.ErrorIs(t, err, domain.ErrStakeTooLarge)

	requireLedger(t, e, m.ID)
}

func TestBatchLegStakeCap(t *testing.T) {
	e, now := newTestEngine(nil)
	m := createMarket(t, e, "alice", []string{"yes", "no"}, now.Add(time.Hour))

	legs := []domain.WagerLeg{
		{MarketID: m.ID, Option: 0, Amount: 2 * unit},
		{MarketID: m.ID, Option: 1, Amount: math.MaxInt64},
	}

	result, wagers, _, err := e.BatchBuy("bob", math.MaxInt64, legs)
	require.NoError(t, err)
	require.Len(t, wagers, 1)
	require.Equal(t, domain.LegStatusFilled, result.Legs[0].Status)
	require.Equal(t, domain.LegStatusRejected, result.Legs[1].Status)
	require.Equal(t, domain.KindValidation, result.Legs[1].Kind)
	requireLedger(t, e, m.ID)
}

func TestSellRoundTripNeverProfits(t *testing.T) {
	e, now := newTestEngine(nil)
	m := createMarket(t, e, "alice", []string{"yes", "no", "maybe"}, now.Add(24*time.Hour))

	_, _, err := e.Buy("carol", m.ID, 0, 7*unit)
	require.NoError(t, err)
	_, _, err = e.Buy("carol", m.ID, 1, 3*unit)
	require.NoError(t, err)

	stake := int64(5 * unit)
	w, _, err := e.Buy("bob", m.ID, 0, stake)
	require.NoError(t, err)

	sw, events, err := e.Sell("bob", m.ID, 0, w.Shares)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, domain.EventSharesSold, events[0].Type)
	require.LessOrEqual(t, sw.Amount, stake)
	require.Greater(t, sw.Amount, int64(0))

	pos, err := e.GetPosition(m.ID, "bob")
	require.NoError(t, err)
	require.Equal(t, int64(0), pos.Shares[0])
	require.Equal(t, stake, pos.Staked)
	require.Equal(t, sw.Amount, pos.Recovered)

	requireLedger(t, e, m.ID)
}

func TestSellLastHolderPaysNothing(t *testing.T) {
	e, now := newTestEngine(nil)
	m := createMarket(t, e, "alice", []string{"yes", "no"}, now.Add(24*time.Hour))

	w, _, err := e.Buy("bob", m.ID, 0, 3*unit)
	require.NoError(t, err)

	sw, _, err := e.Sell("bob", m.ID, 0, w.Shares)
	require.NoError(t, err)
	require.Equal(t, int64(0), sw.Amount)

	// The stake stays in the pool for later settlement or refund.
	got, err := e.GetMarket(m.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3*unit), got.Pool)
	requireLedger(t, e, m.ID)
}

func TestSellValidation(t *testing.T) {
	e, now := newTestEngine(nil)
	m := createMarket(t, e, "alice", []string{"yes", "no"}, now.Add(time.Hour))

	_, _, err := e.Sell("bob", m.ID, 0, unit)
	require.ErrorIs(t, err, domain.ErrInsufficientShares)

	_, _, err = e.Buy("bob", m.ID, 0, unit)
	require.NoError(t, err)

	_, _, err = e.Sell("bob", m.ID, 0, 2*unit)
	require.ErrorIs(t, err, domain.ErrInsufficientShares)
	require.Equal(t, domain.KindSolvency, domain.Kind(err))

	_, _, err = e.Sell("bob", m.ID, 0, 0)
	require.ErrorIs(t, err, domain.ErrZeroAmount)

	*now = now.Add(time.Hour)
	_, _, err = e.Sell("bob", m.ID, 0, unit)
	require.ErrorIs(t, err, domain.ErrBettingClosed)
}

func TestResolveGuards(t *testing.T) {
	e, now := newTestEngine(nil)
	m := createMarket(t, e, "alice", []string{"yes", "no"}, now.Add(time.Hour))

	_, err := e.Resolve("alice", m.ID, []int{0})
	require.ErrorIs(t, err, domain.ErrMarketStillOpen)

	*now = now.Add(time.Hour)

	_, err = e.Resolve("bob", m.ID, []int{0})
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	require.Equal(t, domain.KindAuthorization, domain.Kind(err))

	_, err = e.Resolve("alice", m.ID, nil)
	require.ErrorIs(t, err, domain.ErrInvalidWinners)

	_, err = e.Resolve("alice", m.ID, []int{0, 1})
	require.ErrorIs(t, err, domain.ErrInvalidWinners)

	_, err = e.Resolve("alice", m.ID, []int{2})
	require.ErrorIs(t, err, domain.ErrInvalidWinners)

	events, err := e.Resolve("alice", m.ID, []int{1})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, domain.EventMarketResolved, events[0].Type)
	require.Equal(t, []int{1}, events[0].Winners)

	// Terminal states are final.
	_, err = e.Resolve("alice", m.ID, []int{0})
	require.ErrorIs(t, err, domain.ErrMarketClosed)
	_, err = e.Cancel("alice", m.ID)
	require.ErrorIs(t, err, domain.ErrMarketClosed)
	_, _, err = e.Buy("bob", m.ID, 0, unit)
	require.ErrorIs(t, err, domain.ErrMarketClosed)
	_, _, err = e.Sell("bob", m.ID, 0, unit)
	require.ErrorIs(t, err, domain.ErrMarketClosed)
}

func TestClaimWinningsProRata(t *testing.T) {
	e, now := newTestEngine(nil)
	m := createMarket(t, e, "alice", []string{"yes", "no"}, now.Add(time.Hour))

	_, _, err := e.Buy("bob", m.ID, 0, 6*unit)
	require.NoError(t, err)
	_, _, err = e.Buy("carol", m.ID, 0, 2*unit)
	require.NoError(t, err)
	_, _, err = e.Buy("dave", m.ID, 1, 8*unit)
	require.NoError(t, err)

	*now = now.Add(time.Hour)
	_, err = e.Resolve("alice", m.ID, []int{0})
	require.NoError(t, err)

	// Pool is 16 units; yes holds 8 units of shares, split 6:2.
	payout, events, err := e.ClaimWinnings("bob", m.ID)
	require.NoError(t, err)
	require.Equal(t, int64(12*unit), payout)
	require.Len(t, events, 1)
	require.Equal(t, domain.EventWinningsClaimed, events[0].Type)

	// Claim order does not change anyone's payout.
	payout, _, err = e.ClaimWinnings("carol", m.ID)
	require.NoError(t, err)
	require.Equal(t, int64(4*unit), payout)

	got, err := e.GetMarket(m.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), got.Pool)

	// Exactly once.
	_, _, err = e.ClaimWinnings("bob", m.ID)
	require.ErrorIs(t, err, domain.ErrAlreadyClaimed)

	// A losing position has nothing to claim.
	_, _, err = e.ClaimWinnings("dave", m.ID)
	require.ErrorIs(t, err, domain.ErrNothingToClaim)

	// So does an account that never wagered.
	_, _, err = e.ClaimWinnings("erin", m.ID)
	require.ErrorIs(t, err, domain.ErrNothingToClaim)
}

func TestClaimBeforeResolution(t *testing.T) {
	e, now := newTestEngine(nil)
	m := createMarket(t, e, "alice", []string{"yes", "no"}, now.Add(time.Hour))

	_, _, err := e.Buy("bob", m.ID, 0, unit)
	require.NoError(t, err)

	_, _, err = e.ClaimWinnings("bob", m.ID)
	require.ErrorIs(t, err, domain.ErrMarketNotResolved)

	_, _, err = e.ClaimRefund("bob", m.ID)
	require.ErrorIs(t, err, domain.ErrMarketNotCancelled)
}

func TestCancelRefundsStakes(t *testing.T) {
	e, now := newTestEngine(nil)
	m := createMarket(t, e, "alice", []string{"yes", "no"}, now.Add(time.Hour))

	_, _, err := e.Buy("bob", m.ID, 0, 5*unit)
	require.NoError(t, err)
	_, _, err = e.Buy("carol", m.ID, 1, 15*unit)
	require.NoError(t, err)

	events, err := e.Cancel("alice", m.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, domain.EventMarketCancelled, events[0].Type)

	refund, events, err := e.ClaimRefund("bob", m.ID)
	require.NoError(t, err)
	require.Equal(t, int64(5*unit), refund)
	require.Equal(t, domain.EventStakeRefunded, events[0].Type)

	refund, _, err = e.ClaimRefund("carol", m.ID)
	require.NoError(t, err)
	require.Equal(t, int64(15*unit), refund)

	got, err := e.GetMarket(m.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), got.Pool)

	_, _, err = e.ClaimRefund("bob", m.ID)
	require.ErrorIs(t, err, domain.ErrAlreadyClaimed)

	_, _, err = e.ClaimRefund("erin", m.ID)
	require.ErrorIs(t, err, domain.ErrNothingToRefund)
}

func TestRefundNetsOutRecoveredStake(t *testing.T) {
	e, now := newTestEngine(nil)
	m := createMarket(t, e, "alice", []string{"yes", "no"}, now.Add(time.Hour))

	_, _, err := e.Buy("carol", m.ID, 1, 10*unit)
	require.NoError(t, err)
	w, _, err := e.Buy("bob", m.ID, 0, 10*unit)
	require.NoError(t, err)

	sw, _, err := e.Sell("bob", m.ID, 0, w.Shares/2)
	require.NoError(t, err)
	require.Greater(t, sw.Amount, int64(0))

	_, err = e.Cancel("alice", m.ID)
	require.NoError(t, err)

	refund, _, err := e.ClaimRefund("bob", m.ID)
	require.NoError(t, err)
	require.Equal(t, 10*unit-sw.Amount, refund)
}

func TestBatchBuyBestEffort(t *testing.T) {
	e, now := newTestEngine(nil)
	end := now.Add(24 * time.Hour)
	m1 := createMarket(t, e, "alice", []string{"yes", "no"}, end)
	m2 := createMarket(t, e, "alice", []string{"yes", "no"}, now.Add(time.Hour))
	m3 := createMarket(t, e, "alice", []string{"a", "b", "c"}, end)

	// Close and resolve the middle market so its leg must be rejected.
	*now = now.Add(2 * time.Hour)
	_, err := e.Resolve("alice", m2.ID, []int{0})
	require.NoError(t, err)

	legs := []domain.WagerLeg{
		{MarketID: m1.ID, Option: 0, Amount: 3 * unit},
		{MarketID: m2.ID, Option: 1, Amount: 4 * unit},
		{MarketID: m3.ID, Option: 2, Amount: 5 * unit},
	}

	result, wagers, events, err := e.BatchBuy("bob", 12*unit, legs)
	require.NoError(t, err)
	require.Len(t, result.Legs, 3)

	require.Equal(t, domain.LegStatusFilled, result.Legs[0].Status)
	require.Equal(t, domain.LegStatusRejected, result.Legs[1].Status)
	require.Equal(t, domain.KindState, result.Legs[1].Kind)
	require.NotEmpty(t, result.Legs[1].Reason)
	require.Equal(t, domain.LegStatusFilled, result.Legs[2].Status)

	require.Equal(t, int64(8*unit), result.Spent)
	require.Equal(t, int64(4*unit), result.Refund)

	require.Len(t, wagers, 2)
	require.Equal(t, result.BatchID, wagers[0].BatchID)
	require.Equal(t, result.BatchID, wagers[1].BatchID)

	var filled, rejected int
	for _, ev := range events {
		switch ev.Type {
		case domain.EventBatchLegFilled:
			filled++
		case domain.EventBatchLegRejected:
			rejected++
		}
	}
	require.Equal(t, 2, filled)
	require.Equal(t, 1, rejected)

	pos, err := e.GetPosition(m2.ID, "bob")
	require.NoError(t, err)
	require.Equal(t, int64(0), pos.Staked)

	requireLedger(t, e, m1.ID)
	requireLedger(t, e, m3.ID)
}

func TestBatchBuyFundsExhaustion(t *testing.T) {
	e, now := newTestEngine(nil)
	m := createMarket(t, e, "alice", []string{"yes", "no"}, now.Add(time.Hour))

	legs := []domain.WagerLeg{
		{MarketID: m.ID, Option: 0, Amount: 3 * unit},
		{MarketID: m.ID, Option: 1, Amount: 3 * unit},
	}

	result, _, _, err := e.BatchBuy("bob", 5*unit, legs)
	require.NoError(t, err)
	require.Equal(t, domain.LegStatusFilled, result.Legs[0].Status)
	require.Equal(t, domain.LegStatusRejected, result.Legs[1].Status)
	require.Equal(t, domain.KindSolvency, result.Legs[1].Kind)
	require.Equal(t, int64(3*unit), result.Spent)
	require.Equal(t, int64(2*unit), result.Refund)
}

func TestBatchBuyAllLegsRejected(t *testing.T) {
	e, _ := newTestEngine(nil)

	legs := []domain.WagerLeg{
		{MarketID: "missing", Option: 0, Amount: unit},
	}
	result, wagers, _, err := e.BatchBuy("bob", 10*unit, legs)
	require.NoError(t, err)
	require.Empty(t, wagers)
	require.Equal(t, int64(0), result.Spent)
	require.Equal(t, int64(10*unit), result.Refund)
}

func TestValidateWagersIsPure(t *testing.T) {
	e, now := newTestEngine(nil)
	m := createMarket(t, e, "alice", []string{"yes", "no"}, now.Add(time.Hour))

	legs := []domain.WagerLeg{
		{MarketID: m.ID, Option: 0, Amount: 3 * unit},
		{MarketID: m.ID, Option: 5, Amount: unit},
		{MarketID: "missing", Option: 0, Amount: unit},
	}

	checks, total := e.ValidateWagers(legs)
	require.Len(t, checks, 3)
	require.True(t, checks[0].Valid)
	require.False(t, checks[1].Valid)
	require.Equal(t, domain.KindValidation, checks[1].Kind)
	require.False(t, checks[2].Valid)
	require.Equal(t, int64(3*unit), total)

	got, err := e.GetMarket(m.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), got.Pool)
}

func TestListMarketsPagination(t *testing.T) {
	e, now := newTestEngine(nil)
	end := now.Add(time.Hour)

	var ids []string
	for i := 0; i < 5; i++ {
		creator := "alice"
		if i%2 == 1 {
			creator = "bob"
		}
		m := createMarket(t, e, creator, []string{"yes", "no"}, end)
		ids = append(ids, m.ID)
	}

	page, total := e.ListMarkets(domain.ListOpts{Limit: 2})
	require.Equal(t, int64(5), total)
	require.Len(t, page, 2)
	require.Equal(t, ids[0], page[0].ID)
	require.Equal(t, ids[1], page[1].ID)

	page, total = e.ListMarkets(domain.ListOpts{Limit: 2, Offset: 4})
	require.Equal(t, int64(5), total)
	require.Len(t, page, 1)
	require.Equal(t, ids[4], page[0].ID)

	page, total = e.ListMarkets(domain.ListOpts{Offset: 10})
	require.Equal(t, int64(5), total)
	require.Empty(t, page)

	_, total = e.ListMarketsByCreator("bob", domain.ListOpts{})
	require.Equal(t, int64(2), total)

	// Resolving one market drops it from the active listing only.
	*now = now.Add(2 * time.Hour)
	_, err := e.Resolve("alice", ids[0], []int{0})
	require.NoError(t, err)

	_, total = e.ListActiveMarkets(domain.ListOpts{})
	require.Equal(t, int64(4), total)
	require.Equal(t, int64(5), e.Count())
}

func TestGetPositionZeroValue(t *testing.T) {
	e, now := newTestEngine(nil)
	m := createMarket(t, e, "alice", []string{"yes", "no"}, now.Add(time.Hour))

	pos, err := e.GetPosition(m.ID, "nobody")
	require.NoError(t, err)
	require.Equal(t, int64(0), pos.Staked)
	require.Equal(t, []int64{0, 0}, pos.Shares)

	_, err = e.GetPosition("missing", "nobody")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRestoreRoundTrip(t *testing.T) {
	e, now := newTestEngine(nil)
	m := createMarket(t, e, "alice", []string{"yes", "no"}, now.Add(time.Hour))

	_, _, err := e.Buy("bob", m.ID, 0, 5*unit)
	require.NoError(t, err)
	_, _, err = e.Buy("carol", m.ID, 1, 3*unit)
	require.NoError(t, err)

	snapshot, err := e.GetMarket(m.ID)
	require.NoError(t, err)
	bob, err := e.GetPosition(m.ID, "bob")
	require.NoError(t, err)
	carol, err := e.GetPosition(m.ID, "carol")
	require.NoError(t, err)

	restored, _ := newTestEngine(nil)
	err = restored.Restore([]domain.Market{snapshot}, []domain.Position{bob, carol}, nil)
	require.NoError(t, err)

	got, err := restored.GetMarket(m.ID)
	require.NoError(t, err)
	require.Equal(t, snapshot.Pool, got.Pool)
	require.Equal(t, snapshot.TotalShares, got.TotalShares)
	requireLedger(t, restored, m.ID)

	// The restored engine keeps serving wagers.
	_, _, err = restored.Buy("dave", m.ID, 1, unit)
	require.NoError(t, err)
}

func TestRestoreRejectsLedgerMismatch(t *testing.T) {
	e, now := newTestEngine(nil)
	m := createMarket(t, e, "alice", []string{"yes", "no"}, now.Add(time.Hour))

	_, _, err := e.Buy("bob", m.ID, 0, 5*unit)
	require.NoError(t, err)

	snapshot, err := e.GetMarket(m.ID)
	require.NoError(t, err)
	bob, err := e.GetPosition(m.ID, "bob")
	require.NoError(t, err)
	bob.Shares[0]++

	restored, _ := newTestEngine(nil)
	err = restored.Restore([]domain.Market{snapshot}, []domain.Position{bob}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "ledger mismatch")
}

func TestRestoreRejectsOrphanPosition(t *testing.T) {
	restored, _ := newTestEngine(nil)
	err := restored.Restore(nil, []domain.Position{{MarketID: "ghost", Account: "bob"}}, nil)
	require.Error(t, err)
}
