package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/omenmarkets/omen/internal/domain"
)

// fakeAdjudicator records calls and returns a fixed ruling.
type fakeAdjudicator struct {
	winners []int
	err     error
	calls   int
}

func (f *fakeAdjudicator) Adjudicate(_ context.Context, _ string, _ []int) ([]int, error) {
	f.calls++
	return f.winners, f.err
}

func closedMarket(t *testing.T, e *Engine, now *time.Time) domain.Market {
	t.Helper()
	m := createMarket(t, e, "alice", []string{"yes", "no"}, now.Add(time.Hour))
	_, _, err := e.Buy("bob", m.ID, 0, 10*unit)
	require.NoError(t, err)
	_, _, err = e.Buy("carol", m.ID, 1, 10*unit)
	require.NoError(t, err)
	*now = now.Add(time.Hour)
	return m
}

func TestRequestResolutionGuards(t *testing.T) {
	e, now := newTestEngine(nil)
	m := createMarket(t, e, "alice", []string{"yes", "no"}, now.Add(time.Hour))

	_, _, err := e.RequestResolution("pam", m.ID, []int{0}, 100*unit)
	require.ErrorIs(t, err, domain.ErrMarketStillOpen)

	*now = now.Add(time.Hour)

	_, _, err = e.RequestResolution("pam", m.ID, []int{0}, 99*unit)
	require.ErrorIs(t, err, domain.ErrInsufficientBond)

	_, _, err = e.RequestResolution("pam", m.ID, []int{3}, 100*unit)
	require.ErrorIs(t, err, domain.ErrInvalidWinners)

	req, events, err := e.RequestResolution("pam", m.ID, []int{0}, 100*unit)
	require.NoError(t, err)
	require.Equal(t, domain.ResolutionStatusPending, req.Status)
	require.Equal(t, now.Add(time.Hour).UTC(), req.LivenessDeadline)
	require.Len(t, events, 1)
	require.Equal(t, domain.EventResolutionRequested, events[0].Type)
	require.Equal(t, int64(100*unit), e.BondVault())

	// One live request per market.
	_, _, err = e.RequestResolution("quinn", m.ID, []int{1}, 100*unit)
	require.ErrorIs(t, err, domain.ErrResolutionInProgress)

	// A pending request also blocks the direct paths.
	_, err = e.Resolve("alice", m.ID, []int{0})
	require.ErrorIs(t, err, domain.ErrResolutionInProgress)
	_, err = e.Cancel("alice", m.ID)
	require.ErrorIs(t, err, domain.ErrResolutionInProgress)
}

func TestSettleUndisputed(t *testing.T) {
	e, now := newTestEngine(nil)
	m := closedMarket(t, e, now)

	_, _, err := e.RequestResolution("pam", m.ID, []int{0}, 100*unit)
	require.NoError(t, err)

	_, _, err = e.Settle(context.Background(), m.ID)
	require.ErrorIs(t, err, domain.ErrLivenessNotElapsed)

	*now = now.Add(time.Hour)

	req, events, err := e.Settle(context.Background(), m.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ResolutionStatusSettled, req.Status)
	require.Equal(t, []int{0}, req.FinalWinners)
	require.NotNil(t, req.SettledAt)

	require.Len(t, events, 2)
	require.Equal(t, domain.EventResolutionSettled, events[0].Type)
	require.Equal(t, "pam", events[0].Account)
	require.Equal(t, int64(100*unit), events[0].Amount)
	require.Equal(t, domain.EventMarketResolved, events[1].Type)

	got, err := e.GetMarket(m.ID)
	require.NoError(t, err)
	require.Equal(t, domain.MarketStatusResolved, got.Status)
	require.Equal(t, []int{0}, got.WinningOptions)

	// The bond vault is drained; market pools never held the bond.
	require.Equal(t, int64(0), e.BondVault())
	require.Equal(t, int64(20*unit), got.Pool)

	_, _, err = e.Settle(context.Background(), m.ID)
	require.ErrorIs(t, err, domain.ErrNoResolution)
}

func TestDisputeGuards(t *testing.T) {
	e, now := newTestEngine(&fakeAdjudicator{winners: []int{0}})
	m := closedMarket(t, e, now)

	_, _, err := e.Dispute("dan", m.ID, 100*unit)
	require.ErrorIs(t, err, domain.ErrNoResolution)

	_, _, err = e.RequestResolution("pam", m.ID, []int{0}, 150*unit)
	require.NoError(t, err)

	// The dispute bond must match the proposer's.
	_, _, err = e.Dispute("dan", m.ID, 100*unit)
	require.ErrorIs(t, err, domain.ErrInsufficientBond)

	req, events, err := e.Dispute("dan", m.ID, 150*unit)
	require.NoError(t, err)
	require.True(t, req.Disputed)
	require.Equal(t, "dan", req.Disputer)
	require.Equal(t, domain.EventResolutionDisputed, events[0].Type)
	require.Equal(t, int64(300*unit), e.BondVault())

	_, _, err = e.Dispute("erin", m.ID, 150*unit)
	require.ErrorIs(t, err, domain.ErrAlreadyDisputed)
}

func TestDisputeAfterDeadline(t *testing.T) {
	e, now := newTestEngine(nil)
	m := closedMarket(t, e, now)

	_, _, err := e.RequestResolution("pam", m.ID, []int{0}, 100*unit)
	require.NoError(t, err)

	*now = now.Add(time.Hour)
	_, _, err = e.Dispute("dan", m.ID, 100*unit)
	require.ErrorIs(t, err, domain.ErrLivenessElapsed)
}

func TestSettleDisputedDisputerWins(t *testing.T) {
	oracle := &fakeAdjudicator{winners: []int{1}}
	e, now := newTestEngine(oracle)
	m := closedMarket(t, e, now)

	_, _, err := e.RequestResolution("pam", m.ID, []int{0}, 100*unit)
	require.NoError(t, err)
	_, _, err = e.Dispute("dan", m.ID, 100*unit)
	require.NoError(t, err)

	// A disputed request settles immediately, no liveness wait.
	req, events, err := e.Settle(context.Background(), m.ID)
	require.NoError(t, err)
	require.Equal(t, 1, oracle.calls)
	require.Equal(t, domain.ResolutionStatusRejected, req.Status)
	require.Equal(t, []int{1}, req.FinalWinners)

	// The disputer takes both bonds.
	require.Equal(t, "dan", events[0].Account)
	require.Equal(t, int64(200*unit), events[0].Amount)
	require.Equal(t, int64(0), e.BondVault())

	got, err := e.GetMarket(m.ID)
	require.NoError(t, err)
	require.Equal(t, []int{1}, got.WinningOptions)

	// Only carol's side won; she claims the whole pool.
	payout, _, err := e.ClaimWinnings("carol", m.ID)
	require.NoError(t, err)
	require.Equal(t, int64(20*unit), payout)
	_, _, err = e.ClaimWinnings("bob", m.ID)
	require.ErrorIs(t, err, domain.ErrNothingToClaim)
}

func TestSettleDisputedProposerWins(t *testing.T) {
	oracle := &fakeAdjudicator{winners: []int{0}}
	e, now := newTestEngine(oracle)
	m := closedMarket(t, e, now)

	_, _, err := e.RequestResolution("pam", m.ID, []int{0}, 100*unit)
	require.NoError(t, err)
	_, _, err = e.Dispute("dan", m.ID, 120*unit)
	require.NoError(t, err)

	req, events, err := e.Settle(context.Background(), m.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ResolutionStatusSettled, req.Status)
	require.Equal(t, "pam", events[0].Account)
	require.Equal(t, int64(220*unit), events[0].Amount)
	require.Equal(t, int64(0), e.BondVault())
}

func TestSettleDisputedAdjudicatorFailure(t *testing.T) {
	oracle := &fakeAdjudicator{err: errors.New("backend down")}
	e, now := newTestEngine(oracle)
	m := closedMarket(t, e, now)

	_, _, err := e.RequestResolution("pam", m.ID, []int{0}, 100*unit)
	require.NoError(t, err)
	_, _, err = e.Dispute("dan", m.ID, 100*unit)
	require.NoError(t, err)

	_, _, err = e.Settle(context.Background(), m.ID)
	require.Error(t, err)

	// The request stays pending; a later settle retries the adjudicator.
	req, err := e.PendingResolution(m.ID)
	require.NoError(t, err)
	require.True(t, req.Disputed)

	oracle.err = nil
	oracle.winners = []int{0}
	_, _, err = e.Settle(context.Background(), m.ID)
	require.NoError(t, err)
	require.Equal(t, 2, oracle.calls)
}

func TestSettleDisputedNoAdjudicator(t *testing.T) {
	e, now := newTestEngine(nil)
	m := closedMarket(t, e, now)

	_, _, err := e.RequestResolution("pam", m.ID, []int{0}, 100*unit)
	require.NoError(t, err)
	_, _, err = e.Dispute("dan", m.ID, 100*unit)
	require.NoError(t, err)

	_, _, err = e.Settle(context.Background(), m.ID)
	require.Error(t, err)
}

func TestRestorePendingRequest(t *testing.T) {
	e, now := newTestEngine(nil)
	m := closedMarket(t, e, now)

	req, _, err := e.RequestResolution("pam", m.ID, []int{0}, 100*unit)
	require.NoError(t, err)

	snapshot, err := e.GetMarket(m.ID)
	require.NoError(t, err)
	bob, err := e.GetPosition(m.ID, "bob")
	require.NoError(t, err)
	carol, err := e.GetPosition(m.ID, "carol")
	require.NoError(t, err)

	restored, rnow := newTestEngine(nil)
	*rnow = *now
	err = restored.Restore([]domain.Market{snapshot}, []domain.Position{bob, carol}, []domain.ResolutionRequest{req})
	require.NoError(t, err)
	require.Equal(t, int64(100*unit), restored.BondVault())

	got, err := restored.PendingResolution(m.ID)
	require.NoError(t, err)
	require.Equal(t, req.ID, got.ID)

	*rnow = rnow.Add(time.Hour)
	settled, _, err := restored.Settle(context.Background(), m.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ResolutionStatusSettled, settled.Status)
	require.Equal(t, int64(0), restored.BondVault())
}
