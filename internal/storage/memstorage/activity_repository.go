package memstorage

import (
	"context"
	"sync"
	"time"

	"github.com/makkenzo/license-key-service/internal/domain/activity"
)

type ActivityRepository struct {
	mu      sync.RWMutex
	entries []activity.Entry
	nextID  int64
}

var _ activity.Repository = (*ActivityRepository)(nil)

func NewActivityRepository() *ActivityRepository {
	return &ActivityRepository{}
}

func (r *ActivityRepository) Append(ctx context.Context, entry *activity.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	entry.ID = r.nextID
	entry.CreatedAt = time.Now().UTC()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *ActivityRepository) Recent(ctx context.Context, limit int) ([]*activity.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*activity.Entry, 0, limit)
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := r.entries[i]
		out = append(out, &e)
	}
	return out, nil
}
