package memstorage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makkenzo/license-key-service/internal/config"
	"github.com/makkenzo/license-key-service/internal/domain/activity"
	"github.com/makkenzo/license-key-service/internal/domain/license"
	"github.com/makkenzo/license-key-service/internal/ierr"
)

func mustKey(t *testing.T, typ license.KeyType, suffix string, created time.Time) *license.LicenseKey {
	t.Helper()
	k, err := license.NewKey(license.DefaultKeyPrefix, typ, 5, suffix, created)
	require.NoError(t, err)
	return k
}

func TestLicenseRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewLicenseRepository()
	now := time.Now().UTC()

	a := mustKey(t, license.TypeDay, "00000001", now.Add(-2*time.Second))
	b := mustKey(t, license.TypeWeek, "00000002", now.Add(-time.Second))
	c := mustKey(t, license.TypeCustom, "00000003", now)
	require.NoError(t, repo.CreateBatch(ctx, []*license.LicenseKey{a, b, c}))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, c.Key, list[0].Key)
	assert.Equal(t, a.Key, list[2].Key)

	require.NoError(t, repo.Revoke(ctx, b.Key))
	assert.ErrorIs(t, repo.Revoke(ctx, b.Key), license.ErrAlreadyRevoked)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalGenerated)
	assert.Equal(t, int64(2), stats.ActiveKeys)
	assert.Equal(t, int64(1), stats.RevokedKeys)

	deleted, err := repo.Delete(ctx, b.Key)
	require.NoError(t, err)
	assert.False(t, deleted.IsActive)

	stats, err = repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalGenerated)
	assert.Equal(t, int64(2), stats.ActiveKeys)
	assert.Equal(t, int64(0), stats.RevokedKeys)

	_, err = repo.Delete(ctx, b.Key)
	assert.ErrorIs(t, err, license.ErrNotFound)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestLicenseRepository_DuplicateRejectsWholeBatch(t *testing.T) {
	ctx := context.Background()
	repo := NewLicenseRepository()
	now := time.Now()

	require.NoError(t, repo.CreateBatch(ctx, []*license.LicenseKey{mustKey(t, license.TypeDay, "DUPE0001", now)}))

	err := repo.CreateBatch(ctx, []*license.LicenseKey{
		mustKey(t, license.TypeDay, "FRESH001", now),
		mustKey(t, license.TypeDay, "DUPE0001", now),
	})
	assert.ErrorIs(t, err, license.ErrDuplicateKey)
	assert.ErrorIs(t, err, ierr.ErrConflict)

	_, err = repo.FindByKey(ctx, "VERDANT-KEY-1DAY-FRESH001")
	assert.ErrorIs(t, err, license.ErrNotFound)

	stats, _ := repo.Stats(ctx)
	assert.Equal(t, int64(1), stats.TotalGenerated)
}

func TestLicenseRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewLicenseRepository()
	k := mustKey(t, license.TypeDay, "COPY0001", time.Now())
	require.NoError(t, repo.CreateBatch(ctx, []*license.LicenseKey{k}))

	got, err := repo.FindByKey(ctx, k.Key)
	require.NoError(t, err)
	got.IsActive = false

	again, err := repo.FindByKey(ctx, k.Key)
	require.NoError(t, err)
	assert.True(t, again.IsActive)
}

func TestLicenseRepository_ActivateFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	repo := NewLicenseRepository()
	k := mustKey(t, license.TypeDay, "RACE0001", time.Now())
	require.NoError(t, repo.CreateBatch(ctx, []*license.LicenseKey{k}))

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := []string{}
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			device := fmt.Sprintf("device-%d", i)
			ok, err := repo.Activate(ctx, k.Key, device, time.Now())
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				winners = append(winners, device)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	require.Len(t, winners, 1)
	got, err := repo.FindByKey(ctx, k.Key)
	require.NoError(t, err)
	assert.Equal(t, winners[0], got.UsedBy.String)

	require.NoError(t, repo.Revoke(ctx, k.Key))
	ok, err := repo.Activate(ctx, k.Key, "late", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLicenseRepository_Reconcile(t *testing.T) {
	ctx := context.Background()
	repo := NewLicenseRepository()
	now := time.Now()
	require.NoError(t, repo.CreateBatch(ctx, []*license.LicenseKey{
		mustKey(t, license.TypeDay, "RECO0001", now),
		mustKey(t, license.TypeDay, "RECO0002", now),
	}))
	require.NoError(t, repo.Revoke(ctx, "VERDANT-KEY-1DAY-RECO0002"))

	repo.mu.Lock()
	repo.stats.TotalGenerated = 9
	repo.stats.ActiveKeys = 0
	repo.mu.Unlock()

	res, err := repo.Reconcile(ctx)
	require.NoError(t, err)
	assert.True(t, res.Drifted())
	assert.Equal(t, int64(9), res.Before.TotalGenerated)
	assert.Equal(t, license.Stats{TotalGenerated: 2, ActiveKeys: 1, RevokedKeys: 1}, withoutTime(res.After))

	res, err = repo.Reconcile(ctx)
	require.NoError(t, err)
	assert.False(t, res.Drifted())
}

func withoutTime(s license.Stats) license.Stats {
	s.UpdatedAt = time.Time{}
	return s
}

func TestActivityRepository_RecentNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewActivityRepository()

	for _, a := range []activity.Action{activity.ActionLogin, activity.ActionKeyGenerated, activity.ActionLogout} {
		require.NoError(t, repo.Append(ctx, &activity.Entry{Action: a}))
	}

	entries, err := repo.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, activity.ActionLogout, entries[0].Action)
	assert.Equal(t, activity.ActionKeyGenerated, entries[1].Action)
	assert.Greater(t, entries[0].ID, entries[1].ID)
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo, err := NewUserRepository(config.AdminConfig{Username: "Admin", Password: "s3cret"})
	require.NoError(t, err)

	u, err := repo.FindByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, "admin", u.Role)
	assert.True(t, u.CheckPassword("s3cret"))
	assert.False(t, u.CheckPassword("wrong"))

	_, err = repo.FindByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, ierr.ErrUserNotFound)
}
