package store

import (
	"context"

	"github.com/nsyte-agents/auction-sync/internal/model"
)

// RowFilter specifies criteria for listing reconciled rows.
type RowFilter struct {
	Zone   string          `json:"zone,omitempty"`
	State  string          `json:"state,omitempty"`
	SoldTo model.BuyerType `json:"sold_to,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store persists reconciled rows between pipeline runs and tracks which
// mailbox messages have already been ingested.
type Store interface {
	// Rows
	UpsertRows(ctx context.Context, rows []model.ReconciledRow) error
	GetRow(ctx context.Context, propertyID string) (*model.ReconciledRow, error)
	ListRows(ctx context.Context, filter RowFilter) ([]model.ReconciledRow, error)
	CountRows(ctx context.Context) (int, error)

	// Message ledger
	MessageProcessed(ctx context.Context, messageID string) (bool, error)
	MarkMessageProcessed(ctx context.Context, messageID string) error

	// Sync runs
	StartRun(ctx context.Context, kind model.RunKind) (*model.SyncRun, error)
	FinishRun(ctx context.Context, runID string, ingested, rejected int, runErr error) error
	LastRun(ctx context.Context, kind model.RunKind) (*model.SyncRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
