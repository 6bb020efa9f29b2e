package license

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type KeyType string

const (
	TypeHour      KeyType = "hour"
	TypeDay       KeyType = "day"
	TypeWeek      KeyType = "week"
	TypeMonth     KeyType = "month"
	TypePermanent KeyType = "permanent"
	TypeCustom    KeyType = "custom"
)

const (
	DefaultKeyPrefix = "VERDANT-KEY"
	SuffixLength     = 8
	PermanentDays    = 36500
)

var AllTypes = []KeyType{TypeHour, TypeDay, TypeWeek, TypeMonth, TypePermanent, TypeCustom}

func ParseType(s string) (KeyType, error) {
	t := KeyType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", ErrInvalidType
	}
	return t, nil
}

func (t KeyType) Valid() bool {
	for _, known := range AllTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Label is the display class embedded in the key, e.g. 7DAYS or LIFETIME.
func (t KeyType) Label(customDays int) string {
	switch t {
	case TypeHour:
		return "1HOUR"
	case TypeDay:
		return "1DAY"
	case TypeWeek:
		return "7DAYS"
	case TypeMonth:
		return "30DAYS"
	case TypePermanent:
		return "LIFETIME"
	case TypeCustom:
		return fmt.Sprintf("%dDAYS", customDays)
	}
	return ""
}

// ExpiresAt adds the duration of the class to createdAt. Day based classes
// use calendar days; hour keys last exactly one hour.
func (t KeyType) ExpiresAt(createdAt time.Time, customDays int) time.Time {
	switch t {
	case TypeHour:
		return createdAt.Add(time.Hour)
	case TypeDay:
		return createdAt.AddDate(0, 0, 1)
	case TypeWeek:
		return createdAt.AddDate(0, 0, 7)
	case TypeMonth:
		return createdAt.AddDate(0, 0, 30)
	case TypePermanent:
		return createdAt.AddDate(0, 0, PermanentDays)
	case TypeCustom:
		return createdAt.AddDate(0, 0, customDays)
	}
	return createdAt
}

// SuffixFunc produces the unique part of a key.
type SuffixFunc func() string

func RandomSuffix() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:SuffixLength])
}

// NewKey builds an unsaved key record. customDays is only read for TypeCustom.
func NewKey(prefix string, t KeyType, customDays int, suffix string, now time.Time) (*LicenseKey, error) {
	if !t.Valid() {
		return nil, ErrInvalidType
	}
	if t == TypeCustom && customDays < 1 {
		return nil, ErrInvalidCustomDays
	}
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	created := now.UTC()
	label := t.Label(customDays)
	return &LicenseKey{
		Key:            fmt.Sprintf("%s-%s-%s", prefix, label, suffix),
		Type:           t,
		KeyType:        label,
		ExpirationDate: t.ExpiresAt(created, customDays),
		CreatedAt:      created,
		IsActive:       true,
	}, nil
}
