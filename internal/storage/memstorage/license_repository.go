package memstorage

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/makkenzo/license-key-service/internal/domain/license"
)

// LicenseRepository is a process-local License Store. A single mutex makes
// every operation, including the stats adjustment, atomic.
type LicenseRepository struct {
	mu     sync.RWMutex
	keys   map[string]*license.LicenseKey
	stats  license.Stats
	nextID int64
}

var _ license.Repository = (*LicenseRepository)(nil)

func NewLicenseRepository() *LicenseRepository {
	return &LicenseRepository{
		keys:  make(map[string]*license.LicenseKey),
		stats: license.Stats{UpdatedAt: time.Now().UTC()},
	}
}

func (r *LicenseRepository) CreateBatch(ctx context.Context, keys []*license.LicenseKey) error {
	if len(keys) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, exists := r.keys[k.Key]; exists {
			return license.ErrDuplicateKey
		}
		if _, dup := seen[k.Key]; dup {
			return license.ErrDuplicateKey
		}
		seen[k.Key] = struct{}{}
	}

	for _, k := range keys {
		r.nextID++
		k.ID = r.nextID
		stored := *k
		stored.IsActive = true
		stored.Used = false
		stored.UsedBy = sql.NullString{}
		stored.UsedAt = sql.NullTime{}
		r.keys[k.Key] = &stored
	}

	n := int64(len(keys))
	r.stats.TotalGenerated += n
	r.stats.ActiveKeys += n
	r.stats.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *LicenseRepository) FindByKey(ctx context.Context, key string) (*license.LicenseKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	k, ok := r.keys[key]
	if !ok {
		return nil, license.ErrNotFound
	}
	keyCopy := *k
	return &keyCopy, nil
}

func (r *LicenseRepository) List(ctx context.Context) ([]*license.LicenseKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*license.LicenseKey, 0, len(r.keys))
	for _, k := range r.keys {
		keyCopy := *k
		out = append(out, &keyCopy)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *LicenseRepository) Revoke(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k, ok := r.keys[key]
	if !ok {
		return license.ErrNotFound
	}
	if !k.IsActive {
		return license.ErrAlreadyRevoked
	}

	k.IsActive = false
	r.stats.ActiveKeys--
	r.stats.RevokedKeys++
	r.stats.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *LicenseRepository) Delete(ctx context.Context, key string) (*license.LicenseKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k, ok := r.keys[key]
	if !ok {
		return nil, license.ErrNotFound
	}
	delete(r.keys, key)

	r.stats.TotalGenerated--
	if k.IsActive {
		r.stats.ActiveKeys--
	} else {
		r.stats.RevokedKeys--
	}
	r.stats.UpdatedAt = time.Now().UTC()
	return k, nil
}

func (r *LicenseRepository) Activate(ctx context.Context, key, deviceID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k, ok := r.keys[key]
	if !ok || k.Used || !k.IsActive {
		return false, nil
	}

	k.Used = true
	k.UsedBy = sql.NullString{String: deviceID, Valid: true}
	k.UsedAt = sql.NullTime{Time: at.UTC(), Valid: true}
	return true, nil
}

func (r *LicenseRepository) Stats(ctx context.Context) (license.Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats, nil
}

func (r *LicenseRepository) Reconcile(ctx context.Context) (license.ReconcileResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := license.ReconcileResult{Before: r.stats}

	var counted license.Stats
	for _, k := range r.keys {
		counted.TotalGenerated++
		if k.IsActive {
			counted.ActiveKeys++
		} else {
			counted.RevokedKeys++
		}
	}
	counted.UpdatedAt = time.Now().UTC()

	r.stats = counted
	res.After = counted
	return res, nil
}

func (r *LicenseRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.keys)), nil
}
