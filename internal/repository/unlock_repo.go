package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"repo-freeze-service/internal/domain"
)

// UnlockRepository implements the unlock-override store on PostgreSQL.
type UnlockRepository struct {
	db *sql.DB
}

// NewUnlockRepository creates a new UnlockRepository.
func NewUnlockRepository(db *sql.DB) domain.UnlockStore {
	return &UnlockRepository{db: db}
}

// CreateUnlock records an unlock override. A repeated unlock for the same PR
// replaces the previous row, refreshing its timestamp so it applies to the
// current freeze generation.
func (r *UnlockRepository) CreateUnlock(ctx context.Context, unlock *domain.UnlockedPr) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO unlocked_prs (id, repository, installation_id, pr_number, unlocked_by, unlocked_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (installation_id, repository, pr_number)
		DO UPDATE SET unlocked_by = EXCLUDED.unlocked_by, unlocked_at = EXCLUDED.unlocked_at`,
		unlock.ID, unlock.Repository, unlock.InstallationID, unlock.PRNumber,
		unlock.UnlockedBy, unlock.UnlockedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create unlock override: %w", err)
	}
	return nil
}

// FindUnlock returns the unlock override for a PR, or nil when none exists.
func (r *UnlockRepository) FindUnlock(ctx context.Context, installationID int64, repository string, prNumber int) (*domain.UnlockedPr, error) {
	var unlock domain.UnlockedPr
	err := r.db.QueryRowContext(ctx, `
		SELECT id, repository, installation_id, pr_number, unlocked_by, unlocked_at
		FROM unlocked_prs
		WHERE installation_id = $1 AND repository = $2 AND pr_number = $3`,
		installationID, repository, prNumber,
	).Scan(&unlock.ID, &unlock.Repository, &unlock.InstallationID, &unlock.PRNumber, &unlock.UnlockedBy, &unlock.UnlockedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find unlock override: %w", err)
	}
	return &unlock, nil
}
