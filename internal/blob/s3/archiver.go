package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/omenmarkets/omen/internal/domain"
)

// ---------------------------------------------------------------------------
// Narrow store interfaces required by the archiver.
//
// The archiver only requires the query methods it actually calls, not the
// full domain store interfaces. The Postgres stores satisfy these implicitly.
// ---------------------------------------------------------------------------

// MarketArchiveStore provides read access to settled markets for archival.
type MarketArchiveStore interface {
	// ListSettledBefore returns all resolved or cancelled markets whose
	// betting window closed strictly before the given cutoff time.
	ListSettledBefore(ctx context.Context, before time.Time) ([]domain.Market, error)
}

// PositionArchiveStore provides read access to the positions of a market.
type PositionArchiveStore interface {
	ListByMarket(ctx context.Context, marketID string) ([]domain.Position, error)
}

// WagerArchiveStore provides read access to wager history for archival.
type WagerArchiveStore interface {
	// ListBefore returns all wagers executed strictly before the given
	// cutoff time.
	ListBefore(ctx context.Context, before time.Time) ([]domain.Wager, error)
}

// ---------------------------------------------------------------------------
// ArchiveImpl
// ---------------------------------------------------------------------------

// marketSnapshot is the frozen ledger record written to cold storage for one
// settled market: the final market state plus every position it held.
type marketSnapshot struct {
	Market    domain.Market     `json:"market"`
	Positions []domain.Position `json:"positions"`
}

// ArchiveImpl implements domain.Archiver by querying the domain stores for
// settled history, serializing it to JSONL, and uploading the result to S3.
//
// Deletion of the archived records from the primary store is intentionally
// NOT performed here -- that is a separate, explicit step to be executed
// after the archive has been verified.
type ArchiveImpl struct {
	writer    domain.BlobWriter
	markets   MarketArchiveStore
	positions PositionArchiveStore
	wagers    WagerArchiveStore
	audit     domain.AuditStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(
	writer domain.BlobWriter,
	markets MarketArchiveStore,
	positions PositionArchiveStore,
	wagers WagerArchiveStore,
	audit domain.AuditStore,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer:    writer,
		markets:   markets,
		positions: positions,
		wagers:    wagers,
		audit:     audit,
	}
}

var _ domain.Archiver = (*ArchiveImpl)(nil)

// ArchiveSettledMarkets queries every settled market before the cutoff,
// bundles each with its final positions, and uploads the snapshots as JSONL
// to archive/markets/YYYY-MM.jsonl. The archival event is recorded in the
// audit log and the count of archived markets is returned.
func (a *ArchiveImpl) ArchiveSettledMarkets(ctx context.Context, before time.Time) (int64, error) {
	markets, err := a.markets.ListSettledBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive markets query: %w", err)
	}
	if len(markets) == 0 {
		return 0, nil
	}

	snapshots := make([]marketSnapshot, 0, len(markets))
	for _, m := range markets {
		positions, err := a.positions.ListByMarket(ctx, m.ID)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive markets positions for %s: %w", m.ID, err)
		}
		snapshots = append(snapshots, marketSnapshot{
			Market:    m,
			Positions: positions,
		})
	}

	buf, err := marshalJSONL(snapshots)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive markets marshal: %w", err)
	}

	path := archivePath("markets", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive markets upload: %w", err)
	}

	count := int64(len(snapshots))

	if err := a.audit.Log(ctx, "archive.markets", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive markets audit log: %w", err)
	}

	return count, nil
}

// ArchiveWagers queries all wagers before the cutoff, serializes them to
// JSONL, and uploads the file to S3 at archive/wagers/YYYY-MM.jsonl. The
// archival event is recorded in the audit log and the count of archived
// records is returned.
func (a *ArchiveImpl) ArchiveWagers(ctx context.Context, before time.Time) (int64, error) {
	wagers, err := a.wagers.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive wagers query: %w", err)
	}
	if len(wagers) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(wagers)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive wagers marshal: %w", err)
	}

	path := archivePath("wagers", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive wagers upload: %w", err)
	}

	count := int64(len(wagers))

	if err := a.audit.Log(ctx, "archive.wagers", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive wagers audit log: %w", err)
	}

	return count, nil
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/markets/2025-01.jsonl
//	archive/wagers/2025-01.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
