package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"simflow/internal/domain"
	"simflow/internal/repository"
	repositoryIface "simflow/internal/repository/iface"
)

// runRepository keeps the ledger in process. It is the default backend for
// local development and tests.
type runRepository struct {
	mu   sync.RWMutex
	runs map[string]domain.RunRecord
}

func NewRunRepository() repositoryIface.RunRepository {
	return &runRepository{runs: make(map[string]domain.RunRecord)}
}

func (r *runRepository) Create(_ context.Context, rec *domain.RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.runs[rec.RunID]; ok && existing.Status == domain.RecordQueued {
		return fmt.Errorf("%w: run_id=%s", repository.ErrAlreadyQueued, rec.RunID)
	}
	r.runs[rec.RunID] = *rec
	return nil
}

func (r *runRepository) Put(_ context.Context, rec *domain.RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.runs[rec.RunID] = *rec
	return nil
}

func (r *runRepository) GetByID(_ context.Context, runID string) (*domain.RunRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrNotFound, runID)
	}
	return &rec, nil
}

// ListByStatus pages by offset; the token is the decimal offset.
func (r *runRepository) ListByStatus(_ context.Context, status domain.RecordStatus, limit int, nextToken string) (*repositoryIface.RunPage, error) {
	offset := 0
	if nextToken != "" {
		n, err := strconv.Atoi(nextToken)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: %s", repository.ErrInvalidToken, nextToken)
		}
		offset = n
	}

	r.mu.RLock()
	matched := make([]*domain.RunRecord, 0)
	for _, rec := range r.runs {
		if rec.Status == status {
			rec := rec
			matched = append(matched, &rec)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].SubmittedAt != matched[j].SubmittedAt {
			return matched[i].SubmittedAt > matched[j].SubmittedAt
		}
		return matched[i].RunID < matched[j].RunID
	})

	if offset >= len(matched) {
		return &repositoryIface.RunPage{Runs: []*domain.RunRecord{}}, nil
	}
	end := offset + limit
	page := &repositoryIface.RunPage{}
	if limit <= 0 || end >= len(matched) {
		end = len(matched)
	} else {
		page.NextToken = strconv.Itoa(end)
	}
	page.Runs = matched[offset:end]
	return page, nil
}
