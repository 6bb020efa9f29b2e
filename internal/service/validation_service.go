package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/makkenzo/license-key-service/internal/domain/license"
	"github.com/makkenzo/license-key-service/internal/metrics"
	"go.uber.org/zap"
)

const maxActivationAttempts = 3

type ValidationService struct {
	repo   license.Repository
	logger *zap.Logger
	now    func() time.Time
}

func NewValidationService(repo license.Repository, logger *zap.Logger) *ValidationService {
	return &ValidationService{
		repo:   repo,
		logger: logger.Named("ValidationService"),
		now:    time.Now,
	}
}

// Validate checks a (key, device) pair and binds an unused key to the
// device on its first successful check. Rejections are returned as a
// result; the error is reserved for storage failures.
func (s *ValidationService) Validate(ctx context.Context, key, deviceID string) (*license.ValidationResult, error) {
	key = strings.TrimSpace(key)
	deviceID = strings.TrimSpace(deviceID)
	if key == "" || deviceID == "" {
		return s.finish(&license.ValidationResult{Reason: license.ReasonMissingParameters}), nil
	}

	for attempt := 0; attempt < maxActivationAttempts; attempt++ {
		k, err := s.repo.FindByKey(ctx, key)
		if err != nil {
			if errors.Is(err, license.ErrNotFound) {
				return s.finish(&license.ValidationResult{Reason: license.ReasonInvalidKey}), nil
			}
			s.logger.Error("Failed to load license key", zap.String("key", key), zap.Error(err))
			return nil, fmt.Errorf("repository error during validation: %w", err)
		}

		now := s.now()
		res := license.Evaluate(k, deviceID, now)
		if !res.Valid || k.Used {
			return s.finish(&res), nil
		}

		bound, err := s.repo.Activate(ctx, key, deviceID, now)
		if err != nil {
			s.logger.Error("Failed to activate license key", zap.String("key", key), zap.Error(err))
			return nil, fmt.Errorf("repository error during activation: %w", err)
		}
		if bound {
			k.Used = true
			k.UsedBy = sql.NullString{String: deviceID, Valid: true}
			k.UsedAt = sql.NullTime{Time: now.UTC(), Valid: true}
			res.FirstUse = true
			metrics.ActivationsTotal.Inc()
			s.logger.Info("License key activated", zap.String("key", key), zap.String("device_id", deviceID))
			return s.finish(&res), nil
		}

		// Lost the race to a concurrent activation or revocation: re-read and
		// judge against the record as it now stands.
		s.logger.Debug("Activation lost to concurrent update, re-reading", zap.String("key", key), zap.Int("attempt", attempt+1))
	}

	s.logger.Warn("License key kept changing during validation", zap.String("key", key))
	return nil, fmt.Errorf("validation of %q did not settle after %d attempts", key, maxActivationAttempts)
}

func (s *ValidationService) finish(res *license.ValidationResult) *license.ValidationResult {
	outcome := "valid"
	if !res.Valid {
		outcome = string(res.Reason)
	}
	metrics.ValidationsTotal.WithLabelValues(outcome).Inc()
	return res
}
