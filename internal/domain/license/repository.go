package license

import (
	"context"
	"time"

	"github.com/makkenzo/license-key-service/internal/ierr"
)

var (
	ErrInvalidType       = ierr.New(ierr.ErrValidation, "invalid key type")
	ErrInvalidCustomDays = ierr.New(ierr.ErrValidation, "custom keys require days >= 1")
	ErrInvalidQuantity   = ierr.New(ierr.ErrValidation, "quantity out of range")
	ErrNotFound          = ierr.New(ierr.ErrNotFound, "not found")
	ErrAlreadyRevoked    = ierr.New(ierr.ErrConflict, "already revoked")
	ErrDuplicateKey      = ierr.New(ierr.ErrConflict, "generated key collided with an existing key")
)

// Repository is the License Store. Every mutation adjusts the stats row in
// the same transaction as the key rows it touches.
type Repository interface {
	// CreateBatch persists all keys and adds len(keys) to totalGenerated and
	// activeKeys, or persists nothing.
	CreateBatch(ctx context.Context, keys []*LicenseKey) error
	FindByKey(ctx context.Context, key string) (*LicenseKey, error)
	// List returns all keys, newest first.
	List(ctx context.Context) ([]*LicenseKey, error)
	Revoke(ctx context.Context, key string) error
	// Delete removes the key and returns the record as it was.
	Delete(ctx context.Context, key string) (*LicenseKey, error)
	// Activate binds deviceID only if the key is active and still unused.
	// It reports false when another caller got there first.
	Activate(ctx context.Context, key, deviceID string, at time.Time) (bool, error)
	Stats(ctx context.Context) (Stats, error)
	Reconcile(ctx context.Context) (ReconcileResult, error)
	Count(ctx context.Context) (int64, error)
}
