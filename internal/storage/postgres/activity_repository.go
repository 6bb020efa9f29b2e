package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/makkenzo/license-key-service/internal/domain/activity"
	"go.uber.org/zap"
)

type ActivityRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewActivityRepository(db *pgxpool.Pool, logger *zap.Logger) *ActivityRepository {
	return &ActivityRepository{
		db:     db,
		logger: logger.Named("ActivityRepository"),
	}
}

var _ activity.Repository = (*ActivityRepository)(nil)

func (r *ActivityRepository) Append(ctx context.Context, entry *activity.Entry) error {
	query := `
        INSERT INTO activity_log (action, details, license_key)
        VALUES ($1, $2, $3)
        RETURNING id, created_at
    `
	err := r.db.QueryRow(ctx, query, entry.Action, entry.Details, entry.LicenseKey).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append activity entry: %w", err)
	}
	return nil
}

func (r *ActivityRepository) Recent(ctx context.Context, limit int) ([]*activity.Entry, error) {
	query := `
        SELECT id, action, details, license_key, created_at
        FROM activity_log
        ORDER BY created_at DESC, id DESC
        LIMIT $1
    `
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		r.logger.Error("Failed to query recent activity", zap.Error(err))
		return nil, fmt.Errorf("database error on recent activity: %w", err)
	}
	defer rows.Close()

	entries := make([]*activity.Entry, 0, limit)
	for rows.Next() {
		var e activity.Entry
		if err := rows.Scan(&e.ID, &e.Action, &e.Details, &e.LicenseKey, &e.CreatedAt); err != nil {
			r.logger.Error("Failed to scan activity row", zap.Error(err))
			return nil, fmt.Errorf("database scan error during recent activity: %w", err)
		}
		e.CreatedAt = e.CreatedAt.UTC()
		entries = append(entries, &e)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("database iteration error on recent activity: %w", err)
	}

	return entries, nil
}
