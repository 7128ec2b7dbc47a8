package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"simflow/internal/domain"
	"simflow/internal/logger"
	"simflow/internal/repository"
	repositoryIface "simflow/internal/repository/iface"
)

const schema = `
CREATE TABLE IF NOT EXISTS %[1]s (
	run_id        TEXT PRIMARY KEY,
	status        TEXT NOT NULL,
	analysis_type TEXT NOT NULL,
	building_type TEXT NOT NULL,
	failed_stage  TEXT,
	error_message TEXT,
	result        TEXT,
	submitted_at  BIGINT NOT NULL,
	completed_at  BIGINT,
	updated_at    BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS %[1]s_status_idx ON %[1]s (status, submitted_at DESC, run_id);
`

const columns = `run_id, status, analysis_type, building_type, failed_stage, error_message, result, submitted_at, completed_at, updated_at`

type runRepository struct {
	db     *sql.DB
	table  string
	logger logger.Logger
}

// NewRunRepository creates the ledger table if needed and returns a
// repository over it.
func NewRunRepository(ctx context.Context, db *sql.DB, table string, log logger.Logger) (repositoryIface.RunRepository, error) {
	if !validIdentifier(table) {
		return nil, fmt.Errorf("invalid ledger table name %q", table)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf(schema, table)); err != nil {
		return nil, fmt.Errorf("failed to migrate ledger table: %w", err)
	}
	return &runRepository{
		db:     db,
		table:  table,
		logger: log.With(logger.String("component", "run_repository")),
	}, nil
}

func (r *runRepository) Create(ctx context.Context, rec *domain.RunRecord) error {
	query := fmt.Sprintf(`INSERT INTO %[1]s (%[2]s) VALUES ($1,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (run_id) DO UPDATE SET
			status = EXCLUDED.status, analysis_type = EXCLUDED.analysis_type,
			building_type = EXCLUDED.building_type, failed_stage = EXCLUDED.failed_stage,
			error_message = EXCLUDED.error_message, result = EXCLUDED.result,
			submitted_at = EXCLUDED.submitted_at, completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at
		WHERE %[1]s.status <> $2`, r.table, columns)

	res, err := r.db.ExecContext(ctx, query, r.args(rec, string(domain.RecordQueued))...)
	if err != nil {
		r.logger.Error("failed to create run", logger.Error(err))
		return fmt.Errorf("failed to create run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		r.logger.Warn("run already queued", logger.String("run_id", rec.RunID))
		return fmt.Errorf("%w: run_id=%s", repository.ErrAlreadyQueued, rec.RunID)
	}
	return nil
}

func (r *runRepository) Put(ctx context.Context, rec *domain.RunRecord) error {
	query := fmt.Sprintf(`INSERT INTO %[1]s (%[2]s) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (run_id) DO UPDATE SET
			status = EXCLUDED.status, analysis_type = EXCLUDED.analysis_type,
			building_type = EXCLUDED.building_type, failed_stage = EXCLUDED.failed_stage,
			error_message = EXCLUDED.error_message, result = EXCLUDED.result,
			submitted_at = EXCLUDED.submitted_at, completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at`, r.table, columns)

	if _, err := r.db.ExecContext(ctx, query, r.args(rec)...); err != nil {
		r.logger.Error("failed to put run", logger.String("run_id", rec.RunID), logger.Error(err))
		return fmt.Errorf("failed to put run: %w", err)
	}
	return nil
}

func (r *runRepository) GetByID(ctx context.Context, runID string) (*domain.RunRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE run_id = $1`, columns, r.table)
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", repository.ErrNotFound, runID)
	}
	if err != nil {
		r.logger.Error("failed to get run", logger.Error(err))
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return rec, nil
}

// ListByStatus uses keyset pagination; the token is "<submitted_at>:<run_id>"
// of the last row returned.
func (r *runRepository) ListByStatus(ctx context.Context, status domain.RecordStatus, limit int, nextToken string) (*repositoryIface.RunPage, error) {
	if limit <= 0 {
		limit = 50
	}

	args := []any{string(status), limit + 1}
	where := "status = $1"
	if nextToken != "" {
		submittedAt, runID, err := parseToken(nextToken)
		if err != nil {
			return nil, err
		}
		where += " AND (submitted_at, run_id) < ($3, $4)"
		args = append(args, submittedAt, runID)
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY submitted_at DESC, run_id DESC LIMIT $2`, columns, r.table, where)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to query runs", logger.Error(err))
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]*domain.RunRecord, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	page := &repositoryIface.RunPage{Runs: runs}
	if len(runs) > limit {
		page.Runs = runs[:limit]
		last := page.Runs[limit-1]
		page.NextToken = fmt.Sprintf("%d:%s", last.SubmittedAt, last.RunID)
	}
	return page, nil
}

func (r *runRepository) args(rec *domain.RunRecord, extra ...string) []any {
	out := []any{rec.RunID}
	for _, e := range extra {
		out = append(out, e)
	}
	return append(out,
		string(rec.Status),
		string(rec.AnalysisType),
		rec.BuildingType,
		nullString(string(rec.FailedStage)),
		nullString(rec.ErrorMessage),
		nullString(rec.Result),
		rec.SubmittedAt,
		nullInt(rec.CompletedAt),
		rec.UpdatedAt,
	)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.RunRecord, error) {
	var (
		rec                         domain.RunRecord
		status, analysis            string
		failedStage, errMsg, result sql.NullString
		completedAt                 sql.NullInt64
	)
	err := row.Scan(&rec.RunID, &status, &analysis, &rec.BuildingType, &failedStage, &errMsg, &result,
		&rec.SubmittedAt, &completedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.Status = domain.RecordStatus(status)
	rec.AnalysisType = domain.AnalysisType(analysis)
	rec.FailedStage = domain.Stage(failedStage.String)
	rec.ErrorMessage = errMsg.String
	rec.Result = result.String
	rec.CompletedAt = completedAt.Int64
	return &rec, nil
}

func parseToken(token string) (int64, string, error) {
	ts, runID, ok := strings.Cut(token, ":")
	if !ok || runID == "" {
		return 0, "", fmt.Errorf("%w: %s", repository.ErrInvalidToken, token)
	}
	submittedAt, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %s", repository.ErrInvalidToken, token)
	}
	return submittedAt, runID, nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullInt(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}

func validIdentifier(name string) bool {
	if name == "" || len(name) > 63 {
		return false
	}
	for i, c := range name {
		switch {
		case c == '_', c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
