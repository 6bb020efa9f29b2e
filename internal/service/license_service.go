package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/makkenzo/license-key-service/internal/config"
	"github.com/makkenzo/license-key-service/internal/domain/activity"
	"github.com/makkenzo/license-key-service/internal/domain/license"
	"github.com/makkenzo/license-key-service/internal/metrics"
	"go.uber.org/zap"
)

const maxSuffixAttempts = 5

type GenerateParams struct {
	Type       string
	Quantity   int
	CustomDays int
}

type Dashboard struct {
	Stats     license.Stats
	Breakdown license.Breakdown
	Activity  []*activity.Entry
}

type LicenseService struct {
	repo      license.Repository
	activity  *ActivityService
	cfg       config.LicenseConfig
	logger    *zap.Logger
	now       func() time.Time
	newSuffix license.SuffixFunc
}

func NewLicenseService(repo license.Repository, activity *ActivityService, cfg config.LicenseConfig, logger *zap.Logger) *LicenseService {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = license.DefaultKeyPrefix
	}
	if cfg.MaxBatch < 1 {
		cfg.MaxBatch = 100
	}
	return &LicenseService{
		repo:      repo,
		activity:  activity,
		cfg:       cfg,
		logger:    logger.Named("LicenseService"),
		now:       time.Now,
		newSuffix: license.RandomSuffix,
	}
}

// Generate creates Quantity keys of one class. Either every key is stored
// and counted, or none is.
func (s *LicenseService) Generate(ctx context.Context, p GenerateParams) ([]*license.LicenseKey, error) {
	typ, err := license.ParseType(p.Type)
	if err != nil {
		return nil, err
	}
	if p.Quantity < 1 || p.Quantity > s.cfg.MaxBatch {
		return nil, fmt.Errorf("%w: must be between 1 and %d", license.ErrInvalidQuantity, s.cfg.MaxBatch)
	}

	s.logger.Info("Generating license keys", zap.String("type", string(typ)), zap.Int("quantity", p.Quantity))

	now := s.now()
	keys := make([]*license.LicenseKey, 0, p.Quantity)
	seen := make(map[string]struct{}, p.Quantity)
	for len(keys) < p.Quantity {
		k, err := s.uniqueKey(typ, p.CustomDays, now, seen)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}

	if err := s.repo.CreateBatch(ctx, keys); err != nil {
		metrics.AdminActions.WithLabelValues(string(activity.ActionKeyGenerated), "error").Inc()
		s.logger.Error("Failed to store generated keys", zap.Int("quantity", p.Quantity), zap.Error(err))
		if errors.Is(err, license.ErrDuplicateKey) {
			return nil, err
		}
		return nil, fmt.Errorf("repository error during key generation: %w", err)
	}

	metrics.KeysGenerated.WithLabelValues(string(typ)).Add(float64(len(keys)))
	metrics.AdminActions.WithLabelValues(string(activity.ActionKeyGenerated), "ok").Inc()
	s.activity.Append(ctx, activity.ActionKeyGenerated,
		fmt.Sprintf("Generated %d %s key(s)", len(keys), typ), keys[0].Key)

	s.logger.Info("License keys generated", zap.Int("count", len(keys)), zap.String("first_key", keys[0].Key))
	return keys, nil
}

func (s *LicenseService) uniqueKey(typ license.KeyType, customDays int, now time.Time, seen map[string]struct{}) (*license.LicenseKey, error) {
	for attempt := 0; attempt < maxSuffixAttempts; attempt++ {
		k, err := license.NewKey(s.cfg.KeyPrefix, typ, customDays, s.newSuffix(), now)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[k.Key]; dup {
			continue
		}
		seen[k.Key] = struct{}{}
		return k, nil
	}
	s.logger.Error("Could not produce a unique key suffix", zap.Int("attempts", maxSuffixAttempts))
	return nil, license.ErrDuplicateKey
}

func (s *LicenseService) Find(ctx context.Context, key string) (*license.LicenseKey, error) {
	k, err := s.repo.FindByKey(ctx, key)
	if err != nil {
		if errors.Is(err, license.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("repository error finding key: %w", err)
	}
	return k, nil
}

func (s *LicenseService) List(ctx context.Context) ([]*license.LicenseKey, license.Stats, error) {
	keys, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("Failed to list license keys", zap.Error(err))
		return nil, license.Stats{}, fmt.Errorf("repository error listing keys: %w", err)
	}

	stats, err := s.repo.Stats(ctx)
	if err != nil {
		s.logger.Error("Failed to read stats", zap.Error(err))
		return nil, license.Stats{}, fmt.Errorf("repository error reading stats: %w", err)
	}

	s.logger.Debug("License keys listed", zap.Int("count", len(keys)))
	return keys, stats, nil
}

func (s *LicenseService) Revoke(ctx context.Context, key string) error {
	s.logger.Info("Attempting to revoke license key", zap.String("key", key))

	if err := s.repo.Revoke(ctx, key); err != nil {
		metrics.AdminActions.WithLabelValues(string(activity.ActionKeyRevoked), "error").Inc()
		if errors.Is(err, license.ErrNotFound) || errors.Is(err, license.ErrAlreadyRevoked) {
			s.logger.Info("License key not revoked", zap.String("key", key), zap.Error(err))
			return err
		}
		return fmt.Errorf("repository error revoking key: %w", err)
	}

	metrics.AdminActions.WithLabelValues(string(activity.ActionKeyRevoked), "ok").Inc()
	s.activity.Append(ctx, activity.ActionKeyRevoked, "License key revoked", key)
	return nil
}

func (s *LicenseService) Delete(ctx context.Context, key string) error {
	s.logger.Info("Attempting to delete license key", zap.String("key", key))

	deleted, err := s.repo.Delete(ctx, key)
	if err != nil {
		metrics.AdminActions.WithLabelValues(string(activity.ActionKeyDeleted), "error").Inc()
		if errors.Is(err, license.ErrNotFound) {
			return err
		}
		return fmt.Errorf("repository error deleting key: %w", err)
	}

	metrics.AdminActions.WithLabelValues(string(activity.ActionKeyDeleted), "ok").Inc()
	details := "License key deleted (was active)"
	if !deleted.IsActive {
		details = "License key deleted (was revoked)"
	}
	s.activity.Append(ctx, activity.ActionKeyDeleted, details, key)
	return nil
}

func (s *LicenseService) Dashboard(ctx context.Context, activityLimit int) (*Dashboard, error) {
	keys, stats, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := s.activity.Recent(ctx, activityLimit)
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		Stats:     stats,
		Breakdown: license.BreakdownOf(keys, s.now()),
		Activity:  entries,
	}, nil
}

// Reconcile recounts the stats row from the keys table.
func (s *LicenseService) Reconcile(ctx context.Context) (license.ReconcileResult, error) {
	res, err := s.repo.Reconcile(ctx)
	if err != nil {
		return license.ReconcileResult{}, fmt.Errorf("repository error reconciling stats: %w", err)
	}

	if res.Drifted() {
		s.logger.Warn("Stats counters drifted and were corrected",
			zap.Int64("total_before", res.Before.TotalGenerated), zap.Int64("total_after", res.After.TotalGenerated),
			zap.Int64("active_before", res.Before.ActiveKeys), zap.Int64("active_after", res.After.ActiveKeys),
			zap.Int64("revoked_before", res.Before.RevokedKeys), zap.Int64("revoked_after", res.After.RevokedKeys),
		)
	} else {
		s.logger.Info("Stats counters are consistent")
	}
	return res, nil
}

func (s *LicenseService) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}
