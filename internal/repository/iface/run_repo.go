package repository

import (
	"context"

	"simflow/internal/domain"
)

// RunPage is one page of ledger records.
type RunPage struct {
	Runs      []*domain.RunRecord
	NextToken string
}

// RunRepository is the run ledger.
type RunRepository interface {
	// Create stores a new record. It fails with ErrAlreadyQueued when a
	// record with the same run id is still QUEUED.
	Create(ctx context.Context, rec *domain.RunRecord) error
	// Put stores rec unconditionally.
	Put(ctx context.Context, rec *domain.RunRecord) error
	GetByID(ctx context.Context, runID string) (*domain.RunRecord, error)
	// ListByStatus returns records newest first.
	ListByStatus(ctx context.Context, status domain.RecordStatus, limit int, nextToken string) (*RunPage, error)
}
