package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// MarketStore persists market state.
type MarketStore interface {
	Create(ctx context.Context, market Market) error
	Update(ctx context.Context, market Market) error
	GetByID(ctx context.Context, id string) (Market, error)
	List(ctx context.Context, opts ListOpts) ([]Market, error)
	ListActive(ctx context.Context, opts ListOpts) ([]Market, error)
	ListByCreator(ctx context.Context, creator string, opts ListOpts) ([]Market, error)
	// ListSettledBefore returns resolved or cancelled markets whose betting
	// window closed strictly before the cutoff. Used by the archiver.
	ListSettledBefore(ctx context.Context, before time.Time) ([]Market, error)
	Count(ctx context.Context) (int64, error)
	CountActive(ctx context.Context) (int64, error)
	CountByCreator(ctx context.Context, creator string) (int64, error)
}

// PositionStore persists per-account, per-market positions.
type PositionStore interface {
	Upsert(ctx context.Context, pos Position) error
	Get(ctx context.Context, marketID, account string) (Position, error)
	ListByMarket(ctx context.Context, marketID string) ([]Position, error)
	ListByAccount(ctx context.Context, account string, opts ListOpts) ([]Position, error)
}

// WagerStore persists the append-only wager history.
type WagerStore interface {
	Insert(ctx context.Context, wager Wager) error
	InsertBatch(ctx context.Context, wagers []Wager) error
	ListByMarket(ctx context.Context, marketID string, opts ListOpts) ([]Wager, error)
	ListByAccount(ctx context.Context, account string, opts ListOpts) ([]Wager, error)
	ListBefore(ctx context.Context, before time.Time) ([]Wager, error)
}

// LedgerStore applies one market's ledger mutation atomically: the wagers it
// produced, the market's post-mutation state, and the touched position commit
// in a single transaction. A crash can lose the whole write but never leave
// the market totals and the position sums disagreeing.
type LedgerStore interface {
	ApplyLedger(ctx context.Context, market Market, pos Position, wagers []Wager) error
}

// ResolutionStore persists oracle resolution requests.
type ResolutionStore interface {
	Create(ctx context.Context, req ResolutionRequest) error
	Update(ctx context.Context, req ResolutionRequest) error
	GetByMarket(ctx context.Context, marketID string) (ResolutionRequest, error)
	ListPending(ctx context.Context) ([]ResolutionRequest, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
