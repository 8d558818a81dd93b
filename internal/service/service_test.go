package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/omenmarkets/omen/internal/domain"
	"github.com/omenmarkets/omen/internal/engine"
)

// ---------------------------------------------------------------------------
// In-memory fakes
// ---------------------------------------------------------------------------

type memMarketStore struct {
	mu      sync.Mutex
	markets map[string]domain.Market
}

func newMemMarketStore() *memMarketStore {
	return &memMarketStore{markets: make(map[string]domain.Market)}
}

func (s *memMarketStore) Create(_ context.Context, m domain.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.markets[m.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.markets[m.ID] = m
	return nil
}

func (s *memMarketStore) Update(_ context.Context, m domain.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.markets[m.ID]; !ok {
		return domain.ErrNotFound
	}
	s.markets[m.ID] = m
	return nil
}

func (s *memMarketStore) GetByID(_ context.Context, id string) (domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (s *memMarketStore) List(context.Context, domain.ListOpts) ([]domain.Market, error) {
	return nil, nil
}
func (s *memMarketStore) ListActive(context.Context, domain.ListOpts) ([]domain.Market, error) {
	return nil, nil
}
func (s *memMarketStore) ListByCreator(context.Context, string, domain.ListOpts) ([]domain.Market, error) {
	return nil, nil
}
func (s *memMarketStore) ListSettledBefore(context.Context, time.Time) ([]domain.Market, error) {
	return nil, nil
}
func (s *memMarketStore) Count(context.Context) (int64, error)           { return 0, nil }
func (s *memMarketStore) CountActive(context.Context) (int64, error)     { return 0, nil }
func (s *memMarketStore) CountByCreator(context.Context, string) (int64, error) { return 0, nil }

type memPositionStore struct {
	mu        sync.Mutex
	positions map[string]domain.Position
}

func newMemPositionStore() *memPositionStore {
	return &memPositionStore{positions: make(map[string]domain.Position)}
}

func (s *memPositionStore) Upsert(_ context.Context, p domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[p.MarketID+"/"+p.Account] = p
	return nil
}

func (s *memPositionStore) Get(_ context.Context, marketID, account string) (domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[marketID+"/"+account]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *memPositionStore) ListByMarket(context.Context, string) ([]domain.Position, error) {
	return nil, nil
}
func (s *memPositionStore) ListByAccount(context.Context, string, domain.ListOpts) ([]domain.Position, error) {
	return nil, nil
}

type memWagerStore struct {
	mu     sync.Mutex
	wagers []domain.Wager
}

func (s *memWagerStore) Insert(_ context.Context, w domain.Wager) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wagers = append(s.wagers, w)
	return nil
}

func (s *memWagerStore) InsertBatch(ctx context.Context, wagers []domain.Wager) error {
	for _, w := range wagers {
		if err := s.Insert(ctx, w); err != nil {
			return err
		}
	}
	return nil
}

func (s *memWagerStore) ListByMarket(context.Context, string, domain.ListOpts) ([]domain.Wager, error) {
	return nil, nil
}
func (s *memWagerStore) ListByAccount(context.Context, string, domain.ListOpts) ([]domain.Wager, error) {
	return nil, nil
}
func (s *memWagerStore) ListBefore(context.Context, time.Time) ([]domain.Wager, error) {
	return nil, nil
}

// memLedgerStore applies ledger writes through the other fakes all-or-nothing,
// the way the postgres implementation commits them in one transaction.
type memLedgerStore struct {
	mu        sync.Mutex
	markets   *memMarketStore
	positions *memPositionStore
	wagers    *memWagerStore
	applies   []int // wager count per apply
	failNext  bool
}

func (s *memLedgerStore) ApplyLedger(ctx context.Context, m domain.Market, p domain.Position, wagers []domain.Wager) error {
	s.mu.Lock()
	if s.failNext {
		s.failNext = false
		s.mu.Unlock()
		return errors.New("ledger store down")
	}
	s.applies = append(s.applies, len(wagers))
	s.mu.Unlock()

	if err := s.markets.Update(ctx, m); err != nil {
		return err
	}
	if err := s.positions.Upsert(ctx, p); err != nil {
		return err
	}
	for _, w := range wagers {
		if err := s.wagers.Insert(ctx, w); err != nil {
			return err
		}
	}
	return nil
}

type memResolutionStore struct {
	mu   sync.Mutex
	reqs map[string]domain.ResolutionRequest
}

func newMemResolutionStore() *memResolutionStore {
	return &memResolutionStore{reqs: make(map[string]domain.ResolutionRequest)}
}

func (s *memResolutionStore) Create(_ context.Context, r domain.ResolutionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs[r.ID] = r
	return nil
}

func (s *memResolutionStore) Update(_ context.Context, r domain.ResolutionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reqs[r.ID]; !ok {
		return domain.ErrNotFound
	}
	s.reqs[r.ID] = r
	return nil
}

func (s *memResolutionStore) GetByMarket(_ context.Context, marketID string) (domain.ResolutionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reqs {
		if r.MarketID == marketID && r.Status == domain.ResolutionStatusPending {
			return r, nil
		}
	}
	return domain.ResolutionRequest{}, domain.ErrNotFound
}

func (s *memResolutionStore) ListPending(context.Context) ([]domain.ResolutionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending []domain.ResolutionRequest
	for _, r := range s.reqs {
		if r.Status == domain.ResolutionStatusPending {
			pending = append(pending, r)
		}
	}
	return pending, nil
}

type memBus struct {
	mu        sync.Mutex
	published []string
	streamed  int
}

func (b *memBus) Publish(_ context.Context, channel string, _ []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, channel)
	return nil
}

func (b *memBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (b *memBus) StreamAppend(_ context.Context, _ string, _ []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streamed++
	return nil
}

func (b *memBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

type memAudit struct {
	mu     sync.Mutex
	events []string
}

func (a *memAudit) Log(_ context.Context, event string, _ map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *memAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

type fixture struct {
	engine      *engine.Engine
	now         *time.Time
	markets     *memMarketStore
	positions   *memPositionStore
	wagers      *memWagerStore
	ledger      *memLedgerStore
	resolutions *memResolutionStore
	bus         *memBus
	audit       *memAudit

	marketSvc     *MarketService
	wagerSvc      *WagerService
	resolutionSvc *ResolutionService
	settlementSvc *SettlementService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := &fixture{
		now:         &now,
		markets:     newMemMarketStore(),
		positions:   newMemPositionStore(),
		wagers:      &memWagerStore{},
		resolutions: newMemResolutionStore(),
		bus:         &memBus{},
		audit:       &memAudit{},
	}
	f.ledger = &memLedgerStore{markets: f.markets, positions: f.positions, wagers: f.wagers}

	f.engine = engine.New(
		engine.Config{LivenessWindow: time.Hour, MinBond: 100},
		domain.AdjudicatorFunc(func(_ context.Context, _ string, proposed []int) ([]int, error) {
			return proposed, nil
		}),
		func() time.Time { return *f.now },
	)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sink := NewEventSink(f.bus, f.audit, nil, logger)

	f.marketSvc = NewMarketService(f.engine, f.markets, nil, nil, sink, logger)
	f.wagerSvc = NewWagerService(f.engine, f.ledger, f.positions, f.wagers, nil, sink, logger)
	f.resolutionSvc = NewResolutionService(f.engine, f.markets, f.resolutions, nil, sink, logger)
	f.settlementSvc = NewSettlementService(f.engine, f.markets, f.positions, sink, logger)

	return f
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestMarketServicePersistsAndEmits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.marketSvc.Create(ctx, "alice", "Will it rain?", []string{"yes", "no"}, f.now.Add(time.Hour))
	require.NoError(t, err)

	stored, err := f.markets.GetByID(ctx, m.ID)
	require.NoError(t, err)
	require.Equal(t, domain.MarketStatusActive, stored.Status)

	require.Contains(t, f.bus.published, "events:market_created")
	require.Contains(t, f.audit.events, "market_created")
}

func TestWagerServicePersistsLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.marketSvc.Create(ctx, "alice", "q", []string{"yes", "no"}, f.now.Add(time.Hour))
	require.NoError(t, err)

	w, err := f.wagerSvc.Buy(ctx, "bob", m.ID, 0, 5_000_000)
	require.NoError(t, err)
	require.Equal(t, int64(5_000_000), w.Shares)

	require.Len(t, f.wagers.wagers, 1)

	stored, err := f.markets.GetByID(ctx, m.ID)
	require.NoError(t, err)
	require.Equal(t, int64(5_000_000), stored.Pool)

	pos, err := f.positions.Get(ctx, m.ID, "bob")
	require.NoError(t, err)
	require.Equal(t, int64(5_000_000), pos.Staked)

	require.Contains(t, f.bus.published, "events:shares_bought")
}

func TestResolveAndClaimRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.marketSvc.Create(ctx, "alice", "q", []string{"yes", "no"}, f.now.Add(time.Hour))
	require.NoError(t, err)

	_, err = f.wagerSvc.Buy(ctx, "bob", m.ID, 0, 5_000_000)
	require.NoError(t, err)
	_, err = f.wagerSvc.Buy(ctx, "carol", m.ID, 1, 5_000_000)
	require.NoError(t, err)

	*f.now = f.now.Add(time.Hour)
	require.NoError(t, f.marketSvc.Resolve(ctx, "alice", m.ID, []int{0}))

	payout, err := f.settlementSvc.Claim(ctx, "bob", m.ID)
	require.NoError(t, err)
	require.Equal(t, int64(10_000_000), payout)

	stored, err := f.markets.GetByID(ctx, m.ID)
	require.NoError(t, err)
	require.Equal(t, domain.MarketStatusResolved, stored.Status)
	require.Equal(t, int64(0), stored.Pool)

	pos, err := f.positions.Get(ctx, m.ID, "bob")
	require.NoError(t, err)
	require.True(t, pos.Claimed)

	_, err = f.settlementSvc.Claim(ctx, "bob", m.ID)
	require.ErrorIs(t, err, domain.ErrAlreadyClaimed)
}

func TestSettleDueSweepsElapsedRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.marketSvc.Create(ctx, "alice", "q", []string{"yes", "no"}, f.now.Add(time.Hour))
	require.NoError(t, err)
	_, err = f.wagerSvc.Buy(ctx, "bob", m.ID, 0, 1_000_000)
	require.NoError(t, err)

	*f.now = f.now.Add(time.Hour)
	_, err = f.resolutionSvc.Request(ctx, "pam", m.ID, []int{0}, 100)
	require.NoError(t, err)

	// Window still open in wall-clock terms only once the stored deadline
	// has passed; force it by backdating the persisted request.
	n, err := f.resolutionSvc.SettleDue(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	// Advance the engine clock past the liveness deadline and backdate the
	// stored deadline so the sweep picks the request up.
	*f.now = f.now.Add(2 * time.Hour)
	for id, r := range f.resolutions.reqs {
		r.LivenessDeadline = time.Now().Add(-time.Minute)
		f.resolutions.reqs[id] = r
	}

	n, err = f.resolutionSvc.SettleDue(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	stored, err := f.markets.GetByID(ctx, m.ID)
	require.NoError(t, err)
	require.Equal(t, domain.MarketStatusResolved, stored.Status)
	require.Contains(t, f.bus.published, "events:resolution_settled")
}

func TestBatchPersistsOnlyFilledLegs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m1, err := f.marketSvc.Create(ctx, "alice", "q1", []string{"yes", "no"}, f.now.Add(time.Hour))
	require.NoError(t, err)
	m2, err := f.marketSvc.Create(ctx, "alice", "q2", []string{"yes", "no"}, f.now.Add(time.Hour))
	require.NoError(t, err)

	legs := []domain.WagerLeg{
		{MarketID: m1.ID, Option: 0, Amount: 1_000_000},
		{MarketID: "missing", Option: 0, Amount: 1_000_000},
		{MarketID: m2.ID, Option: 1, Amount: 2_000_000},
	}

	result, err := f.wagerSvc.Batch(ctx, "bob", 4_000_000, legs)
	require.NoError(t, err)
	require.Equal(t, int64(3_000_000), result.Spent)
	require.Equal(t, int64(1_000_000), result.Refund)
	require.Len(t, f.wagers.wagers, 2)

	// Each touched market commits its legs in its own ledger write.
	require.Equal(t, []int{1, 1}, f.ledger.applies)

	require.Contains(t, f.bus.published, "events:batch_leg_rejected")
}

func TestWagerWriteIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.marketSvc.Create(ctx, "alice", "q", []string{"yes", "no"}, f.now.Add(time.Hour))
	require.NoError(t, err)

	f.ledger.failNext = true
	_, err = f.wagerSvc.Buy(ctx, "bob", m.ID, 0, 5_000_000)
	require.Error(t, err)

	// The single ledger transaction failed, so the market row, the position,
	// and the wager all stay unwritten together.
	stored, err := f.markets.GetByID(ctx, m.ID)
	require.NoError(t, err)
	require.Zero(t, stored.Pool)
	_, err = f.positions.Get(ctx, m.ID, "bob")
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.Empty(t, f.wagers.wagers)

	// A restart from the persisted snapshot rehydrates cleanly.
	restored := engine.New(engine.Config{LivenessWindow: time.Hour, MinBond: 100}, nil,
		func() time.Time { return *f.now })
	require.NoError(t, restored.Restore([]domain.Market{stored}, nil, nil))
}
