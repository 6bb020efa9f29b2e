package license

import (
	"database/sql"
	"time"
)

// LicenseKey is a single issued key. Key and CreatedAt never change after
// creation; Used/UsedBy/UsedAt are written exactly once, on first activation.
type LicenseKey struct {
	ID             int64          `db:"id" json:"-"`
	Key            string         `db:"key" json:"key"`
	Type           KeyType        `db:"type" json:"type"`
	KeyType        string         `db:"key_type" json:"keyType"`
	ExpirationDate time.Time      `db:"expiration_date" json:"expirationDate"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
	IsActive       bool           `db:"is_active" json:"isActive"`
	Used           bool           `db:"used" json:"used"`
	UsedBy         sql.NullString `db:"used_by" json:"usedBy,omitempty"`
	UsedAt         sql.NullTime   `db:"used_at" json:"usedAt,omitempty"`
}

// Status classifies the key at the given instant.
func (k *LicenseKey) Status(now time.Time) Status {
	return StatusOf(k.IsActive, k.ExpirationDate, k.Used, now)
}

// BoundTo reports whether the key has been activated by deviceID.
func (k *LicenseKey) BoundTo(deviceID string) bool {
	return k.Used && k.UsedBy.Valid && k.UsedBy.String == deviceID
}

// Stats is the singleton counters row kept in step with the keys table.
type Stats struct {
	TotalGenerated int64     `db:"total_generated" json:"totalGenerated"`
	ActiveKeys     int64     `db:"active_keys" json:"activeKeys"`
	RevokedKeys    int64     `db:"revoked_keys" json:"revokedKeys"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// ReconcileResult carries the counters before and after a recount.
type ReconcileResult struct {
	Before Stats
	After  Stats
}

func (r ReconcileResult) Drifted() bool {
	return r.Before.TotalGenerated != r.After.TotalGenerated ||
		r.Before.ActiveKeys != r.After.ActiveKeys ||
		r.Before.RevokedKeys != r.After.RevokedKeys
}
