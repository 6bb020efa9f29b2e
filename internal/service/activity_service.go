package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/makkenzo/license-key-service/internal/domain/activity"
	"github.com/makkenzo/license-key-service/internal/metrics"
	"go.uber.org/zap"
)

const (
	activityWriteTimeout = 5 * time.Second
	DefaultActivityLimit = 10
)

// ActivityService is the audit feed. Writes are detached from the caller:
// a failed or slow write never affects the operation that triggered it.
type ActivityService struct {
	repo   activity.Repository
	logger *zap.Logger
	wg     sync.WaitGroup
}

func NewActivityService(repo activity.Repository, logger *zap.Logger) *ActivityService {
	return &ActivityService{
		repo:   repo,
		logger: logger.Named("ActivityService"),
	}
}

// Append records an entry in the background. licenseKey may be empty.
func (s *ActivityService) Append(ctx context.Context, action activity.Action, details, licenseKey string) {
	entry := &activity.Entry{
		Action:     action,
		Details:    details,
		LicenseKey: sql.NullString{String: licenseKey, Valid: licenseKey != ""},
	}

	s.wg.Add(1)
	go func(parent context.Context) {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				metrics.ActivityWriteFailures.Inc()
				s.logger.Error("Panic while writing activity entry", zap.String("action", string(action)), zap.Any("panic", r))
			}
		}()

		ctxAsync, cancel := context.WithTimeout(context.WithoutCancel(parent), activityWriteTimeout)
		defer cancel()

		if err := s.repo.Append(ctxAsync, entry); err != nil {
			metrics.ActivityWriteFailures.Inc()
			s.logger.Error("Failed to write activity entry",
				zap.String("action", string(action)),
				zap.String("license_key", licenseKey),
				zap.Error(err),
			)
		}
	}(ctx)
}

func (s *ActivityService) Recent(ctx context.Context, limit int) ([]*activity.Entry, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	entries, err := s.repo.Recent(ctx, limit)
	if err != nil {
		s.logger.Error("Failed to load recent activity", zap.Error(err))
		return nil, fmt.Errorf("repository error loading activity: %w", err)
	}
	return entries, nil
}

// Wait blocks until pending writes have finished. Used on shutdown.
func (s *ActivityService) Wait() {
	s.wg.Wait()
}
