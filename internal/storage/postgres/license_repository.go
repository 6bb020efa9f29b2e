package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/makkenzo/license-key-service/internal/domain/license"
	"go.uber.org/zap"
)

const keyColumns = `id, key, type, key_type, expiration_date, created_at, is_active, used, used_by, used_at`

type LicenseRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewLicenseRepository(db *pgxpool.Pool, logger *zap.Logger) *LicenseRepository {
	return &LicenseRepository{
		db:     db,
		logger: logger.Named("LicenseRepository"),
	}
}

var _ license.Repository = (*LicenseRepository)(nil)

func (r *LicenseRepository) CreateBatch(ctx context.Context, keys []*license.LicenseKey) error {
	if len(keys) == 0 {
		return nil
	}

	insert := `
        INSERT INTO keys (key, type, key_type, expiration_date, created_at, is_active, used)
        VALUES ($1, $2, $3, $4, $5, TRUE, FALSE)
        RETURNING id
    `

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, k := range keys {
			batch.Queue(insert, k.Key, k.Type, k.KeyType, k.ExpirationDate, k.CreatedAt)
		}

		br := tx.SendBatch(ctx, batch)
		for _, k := range keys {
			if err := br.QueryRow().Scan(&k.ID); err != nil {
				_ = br.Close()
				return err
			}
		}
		if err := br.Close(); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `
            UPDATE key_stats
            SET total_generated = total_generated + $1,
                active_keys = active_keys + $1,
                updated_at = now()
            WHERE id = 1
        `, len(keys))
		return err
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			r.logger.Warn("Attempted to create license key with duplicate value",
				zap.String("constraint", pgErr.ConstraintName),
				zap.Int("batch_size", len(keys)),
			)
			return license.ErrDuplicateKey
		}

		r.logger.Error("Failed to create license keys in database", zap.Int("batch_size", len(keys)), zap.Error(err))
		return fmt.Errorf("database error on create license keys: %w", err)
	}

	r.logger.Info("License keys created successfully", zap.Int("count", len(keys)))
	return nil
}

func (r *LicenseRepository) FindByKey(ctx context.Context, key string) (*license.LicenseKey, error) {
	query := `SELECT ` + keyColumns + ` FROM keys WHERE key = $1`

	row := r.db.QueryRow(ctx, query, key)
	return r.scanKey(row)
}

func (r *LicenseRepository) List(ctx context.Context) ([]*license.LicenseKey, error) {
	query := `SELECT ` + keyColumns + ` FROM keys ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to query list of license keys", zap.Error(err))
		return nil, fmt.Errorf("database error on list license keys: %w", err)
	}
	defer rows.Close()

	keys := make([]*license.LicenseKey, 0)
	for rows.Next() {
		k, err := r.scanKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}

	if err = rows.Err(); err != nil {
		r.logger.Error("Error iterating license key rows", zap.Error(err))
		return nil, fmt.Errorf("database iteration error on list license keys: %w", err)
	}

	return keys, nil
}

func (r *LicenseRepository) Revoke(ctx context.Context, key string) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		cmdTag, err := tx.Exec(ctx, `UPDATE keys SET is_active = FALSE WHERE key = $1 AND is_active = TRUE`, key)
		if err != nil {
			return err
		}

		if cmdTag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM keys WHERE key = $1)`, key).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return license.ErrNotFound
			}
			return license.ErrAlreadyRevoked
		}

		_, err = tx.Exec(ctx, `
            UPDATE key_stats
            SET active_keys = active_keys - 1,
                revoked_keys = revoked_keys + 1,
                updated_at = now()
            WHERE id = 1
        `)
		return err
	})

	switch {
	case err == nil:
		r.logger.Info("License key revoked", zap.String("key", key))
		return nil
	case errors.Is(err, license.ErrNotFound), errors.Is(err, license.ErrAlreadyRevoked):
		return err
	default:
		r.logger.Error("Failed to revoke license key", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("database error on revoke license key: %w", err)
	}
}

func (r *LicenseRepository) Delete(ctx context.Context, key string) (*license.LicenseKey, error) {
	var deleted *license.LicenseKey

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `DELETE FROM keys WHERE key = $1 RETURNING `+keyColumns, key)
		k, err := r.scanKey(row)
		if err != nil {
			return err
		}

		// The bucket adjusted follows the active flag the row had when it was removed.
		_, err = tx.Exec(ctx, `
            UPDATE key_stats
            SET total_generated = total_generated - 1,
                active_keys = active_keys - CASE WHEN $1 THEN 1 ELSE 0 END,
                revoked_keys = revoked_keys - CASE WHEN $1 THEN 0 ELSE 1 END,
                updated_at = now()
            WHERE id = 1
        `, k.IsActive)
		if err != nil {
			return err
		}

		deleted = k
		return nil
	})

	switch {
	case err == nil:
		r.logger.Info("License key deleted", zap.String("key", key), zap.Bool("was_active", deleted.IsActive))
		return deleted, nil
	case errors.Is(err, license.ErrNotFound):
		return nil, err
	default:
		r.logger.Error("Failed to delete license key", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("database error on delete license key: %w", err)
	}
}

func (r *LicenseRepository) Activate(ctx context.Context, key, deviceID string, at time.Time) (bool, error) {
	query := `
        UPDATE keys
        SET used = TRUE, used_by = $2, used_at = $3
        WHERE key = $1 AND used = FALSE AND is_active = TRUE
    `

	cmdTag, err := r.db.Exec(ctx, query, key, deviceID, at)
	if err != nil {
		r.logger.Error("Failed to activate license key", zap.String("key", key), zap.Error(err))
		return false, fmt.Errorf("database error on activate license key: %w", err)
	}

	return cmdTag.RowsAffected() == 1, nil
}

func (r *LicenseRepository) Stats(ctx context.Context) (license.Stats, error) {
	var s license.Stats
	err := r.db.QueryRow(ctx,
		`SELECT total_generated, active_keys, revoked_keys, updated_at FROM key_stats WHERE id = 1`,
	).Scan(&s.TotalGenerated, &s.ActiveKeys, &s.RevokedKeys, &s.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Warn("Stats row is missing, reporting zero counters")
			return license.Stats{}, nil
		}
		r.logger.Error("Failed to read key stats", zap.Error(err))
		return license.Stats{}, fmt.Errorf("database error on read stats: %w", err)
	}

	return s, nil
}

func (r *LicenseRepository) Reconcile(ctx context.Context) (license.ReconcileResult, error) {
	var res license.ReconcileResult

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		// Locking the stats row first makes concurrent mutations queue behind the recount.
		err := tx.QueryRow(ctx, `
            INSERT INTO key_stats (id) VALUES (1) ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
            RETURNING total_generated, active_keys, revoked_keys, updated_at
        `).Scan(&res.Before.TotalGenerated, &res.Before.ActiveKeys, &res.Before.RevokedKeys, &res.Before.UpdatedAt)
		if err != nil {
			return err
		}

		return tx.QueryRow(ctx, `
            WITH counts AS (
                SELECT count(*)                                AS total,
                       count(*) FILTER (WHERE is_active)       AS active,
                       count(*) FILTER (WHERE NOT is_active)   AS revoked
                FROM keys
            )
            UPDATE key_stats
            SET total_generated = counts.total,
                active_keys = counts.active,
                revoked_keys = counts.revoked,
                updated_at = now()
            FROM counts
            WHERE key_stats.id = 1
            RETURNING total_generated, active_keys, revoked_keys, updated_at
        `).Scan(&res.After.TotalGenerated, &res.After.ActiveKeys, &res.After.RevokedKeys, &res.After.UpdatedAt)
	})

	if err != nil {
		r.logger.Error("Failed to reconcile key stats", zap.Error(err))
		return license.ReconcileResult{}, fmt.Errorf("database error on reconcile stats: %w", err)
	}

	return res, nil
}

func (r *LicenseRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM keys`).Scan(&n); err != nil {
		return 0, fmt.Errorf("database error on count license keys: %w", err)
	}
	return n, nil
}

func (r *LicenseRepository) scanKey(row pgx.Row) (*license.LicenseKey, error) {
	var k license.LicenseKey
	err := row.Scan(
		&k.ID,
		&k.Key,
		&k.Type,
		&k.KeyType,
		&k.ExpirationDate,
		&k.CreatedAt,
		&k.IsActive,
		&k.Used,
		&k.UsedBy,
		&k.UsedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, license.ErrNotFound
		}

		r.logger.Error("Failed to scan license key row", zap.Error(err))
		return nil, fmt.Errorf("database scan error: %w", err)
	}

	k.ExpirationDate = k.ExpirationDate.UTC()
	k.CreatedAt = k.CreatedAt.UTC()
	if k.UsedAt.Valid {
		k.UsedAt.Time = k.UsedAt.Time.UTC()
	}
	return &k, nil
}
