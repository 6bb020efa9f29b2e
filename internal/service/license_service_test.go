package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/makkenzo/license-key-service/internal/config"
	"github.com/makkenzo/license-key-service/internal/domain/activity"
	"github.com/makkenzo/license-key-service/internal/domain/license"
	"github.com/makkenzo/license-key-service/internal/ierr"
	"github.com/makkenzo/license-key-service/internal/storage/memstorage"
)

var keyFormat = regexp.MustCompile(`^VERDANT-KEY-[0-9A-Z]+-[0-9A-Z]{8}$`)

type testEnv struct {
	repo        *memstorage.LicenseRepository
	activityRep *memstorage.ActivityRepository
	activity    *ActivityService
	licenses    *LicenseService
	validation  *ValidationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	repo := memstorage.NewLicenseRepository()
	activityRepo := memstorage.NewActivityRepository()
	activitySvc := NewActivityService(activityRepo, logger)
	return &testEnv{
		repo:        repo,
		activityRep: activityRepo,
		activity:    activitySvc,
		licenses:    NewLicenseService(repo, activitySvc, config.LicenseConfig{MaxBatch: 50}, logger),
		validation:  NewValidationService(repo, logger),
	}
}

func TestLicenseService_GenerateTypes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	env.licenses.now = func() time.Time { return now }

	tests := []struct {
		typ     string
		days    int
		label   string
		expires time.Time
	}{
		{"hour", 0, "1HOUR", now.Add(time.Hour)},
		{"day", 0, "1DAY", now.AddDate(0, 0, 1)},
		{"week", 0, "7DAYS", now.AddDate(0, 0, 7)},
		{"month", 0, "30DAYS", now.AddDate(0, 0, 30)},
		{"permanent", 0, "LIFETIME", now.AddDate(0, 0, license.PermanentDays)},
		{"custom", 45, "45DAYS", now.AddDate(0, 0, 45)},
	}

	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			keys, err := env.licenses.Generate(ctx, GenerateParams{Type: tt.typ, Quantity: 1, CustomDays: tt.days})
			require.NoError(t, err)
			require.Len(t, keys, 1)

			k := keys[0]
			assert.Regexp(t, keyFormat, k.Key)
			assert.Equal(t, tt.label, k.KeyType)
			assert.Equal(t, tt.expires, k.ExpirationDate)
			assert.True(t, k.IsActive)
			assert.False(t, k.Used)
		})
	}

	stats, err := env.repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(tests)), stats.TotalGenerated)
	assert.Equal(t, int64(len(tests)), stats.ActiveKeys)
}

func TestLicenseService_GenerateRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   GenerateParams
		want error
	}{
		{"unknown type", GenerateParams{Type: "decade", Quantity: 1}, license.ErrInvalidType},
		{"custom without days", GenerateParams{Type: "custom", Quantity: 1}, license.ErrInvalidCustomDays},
		{"custom negative days", GenerateParams{Type: "custom", Quantity: 1, CustomDays: -3}, license.ErrInvalidCustomDays},
		{"zero quantity", GenerateParams{Type: "day", Quantity: 0}, license.ErrInvalidQuantity},
		{"quantity over batch limit", GenerateParams{Type: "day", Quantity: 51}, license.ErrInvalidQuantity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys, err := env.licenses.Generate(ctx, tt.in)
			assert.Nil(t, keys)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, ierr.ErrValidation)
		})
	}

	stats, _ := env.repo.Stats(ctx)
	assert.Zero(t, stats.TotalGenerated)
}

func TestLicenseService_GenerateBatchIsUnique(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	keys, err := env.licenses.Generate(ctx, GenerateParams{Type: "week", Quantity: 50})
	require.NoError(t, err)
	require.Len(t, keys, 50)

	seen := map[string]bool{}
	for _, k := range keys {
		assert.False(t, seen[k.Key], "duplicate key %s", k.Key)
		seen[k.Key] = true
	}

	stats, _ := env.repo.Stats(ctx)
	assert.Equal(t, int64(50), stats.TotalGenerated)
	assert.Equal(t, int64(50), stats.ActiveKeys)
}

func TestLicenseService_GenerateCollisionLeavesStoreUntouched(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.licenses.newSuffix = func() string { return "SAMESAME" }

	_, err := env.licenses.Generate(ctx, GenerateParams{Type: "day", Quantity: 1})
	require.NoError(t, err)

	// Second batch collides with the stored key.
	_, err = env.licenses.Generate(ctx, GenerateParams{Type: "day", Quantity: 1})
	assert.ErrorIs(t, err, license.ErrDuplicateKey)

	// A batch of two cannot find a second suffix at all.
	_, err = env.licenses.Generate(ctx, GenerateParams{Type: "week", Quantity: 2})
	assert.ErrorIs(t, err, license.ErrDuplicateKey)
	assert.ErrorIs(t, err, ierr.ErrConflict)

	stats, _ := env.repo.Stats(ctx)
	assert.Equal(t, int64(1), stats.TotalGenerated)
	assert.Equal(t, int64(1), stats.ActiveKeys)
	n, _ := env.repo.Count(ctx)
	assert.Equal(t, int64(1), n)
}

func TestLicenseService_RevokeAndDeleteKeepCountersConsistent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	keys, err := env.licenses.Generate(ctx, GenerateParams{Type: "day", Quantity: 3})
	require.NoError(t, err)
	k1, k2 := keys[0].Key, keys[1].Key

	require.NoError(t, env.licenses.Revoke(ctx, k1))
	err = env.licenses.Revoke(ctx, k1)
	assert.ErrorIs(t, err, license.ErrAlreadyRevoked)
	assert.ErrorIs(t, env.licenses.Revoke(ctx, "VERDANT-KEY-1DAY-MISSING0"), license.ErrNotFound)

	_, stats, err := env.licenses.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, license.Stats{TotalGenerated: 3, ActiveKeys: 2, RevokedKeys: 1}, withoutUpdatedAt(stats))

	require.NoError(t, env.licenses.Delete(ctx, k1))
	require.NoError(t, env.licenses.Delete(ctx, k2))
	assert.ErrorIs(t, env.licenses.Delete(ctx, k2), license.ErrNotFound)

	list, stats, err := env.licenses.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, license.Stats{TotalGenerated: 1, ActiveKeys: 1, RevokedKeys: 0}, withoutUpdatedAt(stats))
	assert.Equal(t, stats.TotalGenerated, stats.ActiveKeys+stats.RevokedKeys)

	res, err := env.licenses.Reconcile(ctx)
	require.NoError(t, err)
	assert.False(t, res.Drifted())
}

func TestLicenseService_ActivityTrail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	keys, err := env.licenses.Generate(ctx, GenerateParams{Type: "month", Quantity: 2})
	require.NoError(t, err)
	env.activity.Wait()
	require.NoError(t, env.licenses.Revoke(ctx, keys[0].Key))
	env.activity.Wait()
	require.NoError(t, env.licenses.Delete(ctx, keys[0].Key))
	env.activity.Wait()

	entries, err := env.activity.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, activity.ActionKeyDeleted, entries[0].Action)
	assert.Equal(t, "License key deleted (was revoked)", entries[0].Details)
	assert.Equal(t, activity.ActionKeyRevoked, entries[1].Action)
	assert.Equal(t, activity.ActionKeyGenerated, entries[2].Action)
	assert.Equal(t, "Generated 2 month key(s)", entries[2].Details)
	assert.Equal(t, keys[0].Key, entries[2].LicenseKey.String)
}

func TestLicenseService_Dashboard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Now()

	keys, err := env.licenses.Generate(ctx, GenerateParams{Type: "hour", Quantity: 4})
	require.NoError(t, err)
	require.NoError(t, env.licenses.Revoke(ctx, keys[0].Key))
	_, err = env.validation.Validate(ctx, keys[1].Key, "device-1")
	require.NoError(t, err)
	env.activity.Wait()

	env.licenses.now = func() time.Time { return now.Add(30 * time.Minute) }
	d, err := env.licenses.Dashboard(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, license.Breakdown{Active: 2, Used: 1, Revoked: 1}, d.Breakdown)
	assert.Equal(t, int64(4), d.Stats.TotalGenerated)
	assert.Len(t, d.Activity, 2)

	env.licenses.now = func() time.Time { return now.Add(2 * time.Hour) }
	d, err = env.licenses.Dashboard(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, license.Breakdown{Expired: 3, Revoked: 1}, d.Breakdown)
	assert.Len(t, d.Activity, 1)
}

type failingActivityRepo struct{}

func (failingActivityRepo) Append(context.Context, *activity.Entry) error {
	return errors.New("disk full")
}

func (failingActivityRepo) Recent(context.Context, int) ([]*activity.Entry, error) {
	return nil, errors.New("disk full")
}

func TestLicenseService_ActivityFailureDoesNotFailOperation(t *testing.T) {
	logger := zap.NewNop()
	repo := memstorage.NewLicenseRepository()
	act := NewActivityService(failingActivityRepo{}, logger)
	svc := NewLicenseService(repo, act, config.LicenseConfig{}, logger)

	keys, err := svc.Generate(context.Background(), GenerateParams{Type: "day", Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(context.Background(), keys[0].Key))
	act.Wait()

	_, err = svc.Dashboard(context.Background(), 10)
	assert.Error(t, err)
}

func TestLicenseService_ConcurrentGenerate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.licenses.Generate(ctx, GenerateParams{Type: "custom", Quantity: 5, CustomDays: i + 1})
			assert.NoError(t, err, fmt.Sprintf("batch %d", i))
		}(i)
	}
	wg.Wait()

	stats, _ := env.repo.Stats(ctx)
	assert.Equal(t, int64(50), stats.TotalGenerated)
	n, _ := env.repo.Count(ctx)
	assert.Equal(t, int64(50), n)
}

func withoutUpdatedAt(s license.Stats) license.Stats {
	s.UpdatedAt = time.Time{}
	return s
}
