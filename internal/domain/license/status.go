package license

import "time"

type Status string

const (
	StatusActive  Status = "active"
	StatusUsed    Status = "used"
	StatusExpired Status = "expired"
	StatusRevoked Status = "revoked"
)

// StatusOf is the single classification used by validation, listing and the
// dashboard. Revocation wins over expiry, and expiry wins over activation.
func StatusOf(isActive bool, expirationDate time.Time, used bool, now time.Time) Status {
	switch {
	case !isActive:
		return StatusRevoked
	case now.After(expirationDate):
		return StatusExpired
	case used:
		return StatusUsed
	default:
		return StatusActive
	}
}

// Breakdown counts keys per derived status.
type Breakdown struct {
	Active  int64 `json:"active"`
	Used    int64 `json:"used"`
	Expired int64 `json:"expired"`
	Revoked int64 `json:"revoked"`
}

func BreakdownOf(keys []*LicenseKey, now time.Time) Breakdown {
	var b Breakdown
	for _, k := range keys {
		switch k.Status(now) {
		case StatusActive:
			b.Active++
		case StatusUsed:
			b.Used++
		case StatusExpired:
			b.Expired++
		case StatusRevoked:
			b.Revoked++
		}
	}
	return b
}
