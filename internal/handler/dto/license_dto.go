package dto

import (
	"time"

	"github.com/makkenzo/license-key-service/internal/domain/license"
)

const (
	dateLayout    = "2006-01-02"
	usedByVisible = 8
)

type GenerateKeysRequest struct {
	Type       string `json:"type" binding:"required,keytype"`
	Quantity   int    `json:"quantity" binding:"omitempty,gte=1"`
	CustomDays int    `json:"customDays" binding:"omitempty,gte=1"`
	// Days is the older name of CustomDays.
	Days int `json:"days" binding:"omitempty,gte=1"`
}

// Normalize fills defaults: a single key, and customDays from days.
func (r *GenerateKeysRequest) Normalize() {
	if r.Quantity == 0 {
		r.Quantity = 1
	}
	if r.CustomDays == 0 {
		r.CustomDays = r.Days
	}
}

type KeyRequest struct {
	Key string `json:"key" binding:"required"`
}

type LicenseKeyResponse struct {
	Key            string     `json:"key"`
	Type           string     `json:"type"`
	KeyType        string     `json:"keyType"`
	Status         string     `json:"status"`
	ExpirationDate string     `json:"expirationDate"`
	ExpiresAt      time.Time  `json:"expiresAt"`
	CreatedAt      time.Time  `json:"createdAt"`
	IsActive       bool       `json:"isActive"`
	Used           bool       `json:"used"`
	UsedBy         *string    `json:"usedBy"`
	UsedAt         *time.Time `json:"usedAt"`
}

func NewLicenseKeyResponse(k *license.LicenseKey, now time.Time) *LicenseKeyResponse {
	resp := &LicenseKeyResponse{
		Key:            k.Key,
		Type:           string(k.Type),
		KeyType:        k.KeyType,
		Status:         string(k.Status(now)),
		ExpirationDate: k.ExpirationDate.Format(dateLayout),
		ExpiresAt:      k.ExpirationDate,
		CreatedAt:      k.CreatedAt,
		IsActive:       k.IsActive,
		Used:           k.Used,
	}
	if k.UsedBy.Valid {
		resp.UsedBy = &k.UsedBy.String
	}
	if k.UsedAt.Valid {
		resp.UsedAt = &k.UsedAt.Time
	}
	return resp
}

// NewMaskedLicenseKeyResponse hides all but the start of the device id.
func NewMaskedLicenseKeyResponse(k *license.LicenseKey, now time.Time) *LicenseKeyResponse {
	resp := NewLicenseKeyResponse(k, now)
	if resp.UsedBy != nil {
		masked := MaskDeviceID(*resp.UsedBy)
		resp.UsedBy = &masked
	}
	return resp
}

func MaskDeviceID(id string) string {
	if len(id) <= usedByVisible {
		return id + "..."
	}
	return id[:usedByVisible] + "..."
}

type GenerateKeysResponse struct {
	Success bool                  `json:"success"`
	Message string                `json:"message"`
	Keys    []*LicenseKeyResponse `json:"keys"`
}

type StatsResponse struct {
	TotalGenerated int64     `json:"totalGenerated"`
	ActiveKeys     int64     `json:"activeKeys"`
	RevokedKeys    int64     `json:"revokedKeys"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func NewStatsResponse(s license.Stats) StatsResponse {
	return StatsResponse{
		TotalGenerated: s.TotalGenerated,
		ActiveKeys:     s.ActiveKeys,
		RevokedKeys:    s.RevokedKeys,
		UpdatedAt:      s.UpdatedAt,
	}
}

type ListKeysResponse struct {
	Success bool                  `json:"success"`
	Keys    []*LicenseKeyResponse `json:"keys"`
	Stats   StatsResponse         `json:"stats"`
}

type ValidateRequest struct {
	Key      string `json:"key"`
	DeviceID string `json:"deviceId"`
	// LegacyDeviceID accepts clients that still send device_id.
	LegacyDeviceID string `json:"device_id"`
}

func (r *ValidateRequest) Device() string {
	if r.DeviceID != "" {
		return r.DeviceID
	}
	return r.LegacyDeviceID
}

type ValidateResponse struct {
	Success        bool       `json:"success"`
	Valid          bool       `json:"valid"`
	Reason         string     `json:"reason,omitempty"`
	Message        string     `json:"message"`
	ExpirationDate string     `json:"expirationDate,omitempty"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
	KeyType        string     `json:"keyType,omitempty"`
	FirstUse       bool       `json:"firstUse,omitempty"`
}

var reasonMessages = map[license.Reason]string{
	license.ReasonMissingParameters: "Missing key or device ID",
	license.ReasonInvalidKey:        "Invalid license key",
	license.ReasonRevoked:           "Key has been revoked",
	license.ReasonExpired:           "License has expired",
	license.ReasonOtherDevice:       "Key already activated on another device",
}

func NewValidateResponse(res *license.ValidationResult) *ValidateResponse {
	if !res.Valid {
		return &ValidateResponse{
			Success: true,
			Reason:  string(res.Reason),
			Message: reasonMessages[res.Reason],
		}
	}

	expires := res.Key.ExpirationDate
	return &ValidateResponse{
		Success:        true,
		Valid:          true,
		Message:        "Access granted",
		ExpirationDate: expires.Format(dateLayout),
		ExpiresAt:      &expires,
		KeyType:        res.Key.KeyType,
		FirstUse:       res.FirstUse,
	}
}
