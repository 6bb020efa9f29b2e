package license

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusOf(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	assert.Equal(t, StatusActive, StatusOf(true, future, false, now))
	assert.Equal(t, StatusUsed, StatusOf(true, future, true, now))
	assert.Equal(t, StatusExpired, StatusOf(true, past, false, now))
	assert.Equal(t, StatusExpired, StatusOf(true, past, true, now))
	assert.Equal(t, StatusRevoked, StatusOf(false, past, true, now))
	assert.Equal(t, StatusRevoked, StatusOf(false, future, false, now))
	// the expiration instant itself is still inside the validity window
	assert.Equal(t, StatusActive, StatusOf(true, now, false, now))
}

func TestEvaluate_Precedence(t *testing.T) {
	now := time.Now().UTC()

	t.Run("missing record", func(t *testing.T) {
		res := Evaluate(nil, "dev", now)
		assert.False(t, res.Valid)
		assert.Equal(t, ReasonInvalidKey, res.Reason)
	})

	t.Run("revoked beats expired", func(t *testing.T) {
		k := &LicenseKey{IsActive: false, ExpirationDate: now.AddDate(0, 0, -5)}
		res := Evaluate(k, "fresh-device", now)
		assert.False(t, res.Valid)
		assert.Equal(t, ReasonRevoked, res.Reason)
	})

	t.Run("expired beats other device", func(t *testing.T) {
		k := &LicenseKey{
			IsActive:       true,
			ExpirationDate: now.Add(-time.Minute),
			Used:           true,
			UsedBy:         sql.NullString{String: "a", Valid: true},
		}
		res := Evaluate(k, "b", now)
		assert.Equal(t, ReasonExpired, res.Reason)
	})

	t.Run("bound to another device", func(t *testing.T) {
		k := &LicenseKey{
			IsActive:       true,
			ExpirationDate: now.Add(time.Hour),
			Used:           true,
			UsedBy:         sql.NullString{String: "a", Valid: true},
		}
		assert.Equal(t, ReasonOtherDevice, Evaluate(k, "b", now).Reason)
		assert.True(t, Evaluate(k, "a", now).Valid)
	})

	t.Run("unused", func(t *testing.T) {
		k := &LicenseKey{IsActive: true, ExpirationDate: now.Add(time.Hour)}
		res := Evaluate(k, "a", now)
		assert.True(t, res.Valid)
		assert.Equal(t, ReasonNone, res.Reason)
	})
}

func TestBreakdownOf(t *testing.T) {
	now := time.Now().UTC()
	keys := []*LicenseKey{
		{IsActive: true, ExpirationDate: now.Add(time.Hour)},
		{IsActive: true, ExpirationDate: now.Add(time.Hour), Used: true},
		{IsActive: true, ExpirationDate: now.Add(-time.Hour)},
		{IsActive: false, ExpirationDate: now.Add(time.Hour)},
		{IsActive: false, ExpirationDate: now.Add(-time.Hour)},
	}
	assert.Equal(t, Breakdown{Active: 1, Used: 1, Expired: 1, Revoked: 2}, BreakdownOf(keys, now))
}
