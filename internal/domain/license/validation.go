package license

import "time"

type Reason string

const (
	ReasonNone              Reason = ""
	ReasonMissingParameters Reason = "missing parameters"
	ReasonInvalidKey        Reason = "invalid key"
	ReasonRevoked           Reason = "revoked"
	ReasonExpired           Reason = "expired"
	ReasonOtherDevice       Reason = "already activated on another device"
)

// ValidationResult is the outcome of checking a (key, device) pair. A
// rejected pair is a normal result, not an error.
type ValidationResult struct {
	Valid bool
	// FirstUse is set when this call performed the device binding.
	FirstUse bool
	Reason   Reason
	Key      *LicenseKey
}

// Evaluate applies the validation precedence to a stored record without
// touching the store. A nil record means the key does not exist.
func Evaluate(k *LicenseKey, deviceID string, now time.Time) ValidationResult {
	if k == nil {
		return ValidationResult{Reason: ReasonInvalidKey}
	}
	switch k.Status(now) {
	case StatusRevoked:
		return ValidationResult{Reason: ReasonRevoked, Key: k}
	case StatusExpired:
		return ValidationResult{Reason: ReasonExpired, Key: k}
	case StatusUsed:
		if !k.BoundTo(deviceID) {
			return ValidationResult{Reason: ReasonOtherDevice, Key: k}
		}
	}
	return ValidationResult{Valid: true, Key: k}
}
