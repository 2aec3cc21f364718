package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"repo-freeze-service/internal/domain"
)

// FreezeRepository implements the freeze-record store on PostgreSQL.
type FreezeRepository struct {
	db *sql.DB
}

// NewFreezeRepository creates a new FreezeRepository.
func NewFreezeRepository(db *sql.DB) domain.FreezeStore {
	return &FreezeRepository{db: db}
}

const freezeColumns = "id, repository, installation_id, branch, started_at, expires_at, ended_at, reason, initiated_by, ended_by, status, created_at"

// Create persists a new freeze record.
func (r *FreezeRepository) Create(ctx context.Context, record *domain.FreezeRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO freeze_records
		(id, repository, installation_id, branch, started_at, expires_at, ended_at, reason, initiated_by, ended_by, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		record.ID, record.Repository, record.InstallationID, record.Branch,
		record.StartedAt, record.ExpiresAt, record.EndedAt, record.Reason,
		record.InitiatedBy, record.EndedBy, string(record.Status), record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create freeze record: %w", err)
	}
	return nil
}

// FindByScope returns records matching the exact scope. A nil branch matches
// only repo-wide records, keeping branch scopes independent.
func (r *FreezeRepository) FindByScope(ctx context.Context, installationID int64, repository string, branch *string, statuses ...domain.FreezeStatus) ([]*domain.FreezeRecord, error) {
	query := "SELECT " + freezeColumns + " FROM freeze_records WHERE installation_id = $1 AND repository = $2"
	args := []any{installationID, repository}

	if branch == nil {
		query += " AND branch IS NULL"
	} else {
		args = append(args, *branch)
		query += fmt.Sprintf(" AND branch = $%d", len(args))
	}

	query += statusFilter(&args, statuses)
	query += " ORDER BY created_at DESC"

	return r.queryRecords(ctx, query, args...)
}

// FindForRepository returns records for the repository across all scopes.
func (r *FreezeRepository) FindForRepository(ctx context.Context, installationID int64, repository string, statuses ...domain.FreezeStatus) ([]*domain.FreezeRecord, error) {
	query := "SELECT " + freezeColumns + " FROM freeze_records WHERE installation_id = $1 AND repository = $2"
	args := []any{installationID, repository}
	query += statusFilter(&args, statuses)
	query += " ORDER BY created_at DESC"

	return r.queryRecords(ctx, query, args...)
}

// ListActive returns every active record, ordered by start time.
func (r *FreezeRepository) ListActive(ctx context.Context) ([]*domain.FreezeRecord, error) {
	query := "SELECT " + freezeColumns + " FROM freeze_records WHERE status = 'active' ORDER BY started_at ASC"
	return r.queryRecords(ctx, query)
}

// FindExpiring returns active records whose expiry has passed.
func (r *FreezeRepository) FindExpiring(ctx context.Context, before time.Time) ([]*domain.FreezeRecord, error) {
	query := "SELECT " + freezeColumns + ` FROM freeze_records
		WHERE status = 'active' AND expires_at IS NOT NULL AND expires_at <= $1
		ORDER BY expires_at ASC`
	return r.queryRecords(ctx, query, before)
}

// FindDueScheduled returns scheduled records whose start time has passed.
func (r *FreezeRepository) FindDueScheduled(ctx context.Context, asOf time.Time) ([]*domain.FreezeRecord, error) {
	query := "SELECT " + freezeColumns + ` FROM freeze_records
		WHERE status = 'scheduled' AND started_at <= $1
		ORDER BY started_at ASC`
	return r.queryRecords(ctx, query, asOf)
}

// UpdateStatus transitions a record with a compare-and-set on the current
// status, so concurrent instances cannot double-apply a transition. Ending
// a freeze also stamps ended_at.
func (r *FreezeRepository) UpdateStatus(ctx context.Context, id uuid.UUID, expect, next domain.FreezeStatus, endedBy *string) (bool, error) {
	var endedAt *time.Time
	if next == domain.FreezeEnded {
		now := time.Now().UTC()
		endedAt = &now
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE freeze_records
		SET status = $1, ended_at = COALESCE($2, ended_at), ended_by = COALESCE($3, ended_by)
		WHERE id = $4 AND status = $5`,
		string(next), endedAt, endedBy, id, string(expect),
	)
	if err != nil {
		return false, fmt.Errorf("failed to update freeze status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected == 1, nil
}

func statusFilter(args *[]any, statuses []domain.FreezeStatus) string {
	if len(statuses) == 0 {
		return ""
	}
	placeholders := make([]string, len(statuses))
	for i, status := range statuses {
		*args = append(*args, string(status))
		placeholders[i] = fmt.Sprintf("$%d", len(*args))
	}
	return " AND status IN (" + strings.Join(placeholders, ", ") + ")"
}

func (r *FreezeRepository) queryRecords(ctx context.Context, query string, args ...any) ([]*domain.FreezeRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query freeze records: %w", err)
	}
	defer rows.Close()

	var records []*domain.FreezeRecord
	for rows.Next() {
		record, err := scanFreezeRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate freeze records: %w", err)
	}
	return records, nil
}

func scanFreezeRecord(rows *sql.Rows) (*domain.FreezeRecord, error) {
	var (
		record    domain.FreezeRecord
		branch    sql.NullString
		expiresAt sql.NullTime
		endedAt   sql.NullTime
		reason    sql.NullString
		endedBy   sql.NullString
		status    string
	)

	err := rows.Scan(
		&record.ID, &record.Repository, &record.InstallationID, &branch,
		&record.StartedAt, &expiresAt, &endedAt, &reason,
		&record.InitiatedBy, &endedBy, &status, &record.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan freeze record: %w", err)
	}

	record.Status = domain.FreezeStatus(status)
	if branch.Valid {
		record.Branch = &branch.String
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		record.ExpiresAt = &t
	}
	if endedAt.Valid {
		t := endedAt.Time
		record.EndedAt = &t
	}
	if reason.Valid {
		record.Reason = &reason.String
	}
	if endedBy.Valid {
		record.EndedBy = &endedBy.String
	}
	return &record, nil
}
