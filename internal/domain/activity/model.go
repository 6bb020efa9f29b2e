package activity

import (
	"database/sql"
	"time"
)

type Action string

const (
	ActionLogin        Action = "LOGIN"
	ActionLogout       Action = "LOGOUT"
	ActionKeyGenerated Action = "KEY_GENERATED"
	ActionKeyRevoked   Action = "KEY_REVOKED"
	ActionKeyDeleted   Action = "KEY_DELETED"
)

// Entry is one audit record. LicenseKey is informational only; the key it
// names may since have been deleted.
type Entry struct {
	ID         int64          `db:"id"`
	Action     Action         `db:"action"`
	Details    string         `db:"details"`
	LicenseKey sql.NullString `db:"license_key"`
	CreatedAt  time.Time      `db:"created_at"`
}
