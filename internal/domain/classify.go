package domain

import (
	"math"
	"time"

	apperrors "pfagent/internal/errors"
)

// WarningThresholdDays is the inclusive days-to-expiry bound below which a
// still-valid license is tagged WARNING.
const WarningThresholdDays = 30

// expiryLayouts are the accepted expiry date formats, tried in order.
// Timezone-naive values are interpreted as UTC.
var expiryLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// ParseExpiry parses a license expiry date string. A date without timezone
// information is treated as UTC.
func ParseExpiry(value string) (time.Time, error) {
	var lastErr error
	for _, layout := range expiryLayouts {
		t, err := time.ParseInLocation(layout, value, time.UTC)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, apperrors.NewValidationError("unparseable expiry date: "+value, lastErr)
}

// DaysToExpiry returns floor((expiry - now) in days). Negative values mean
// the expiry is in the past.
func DaysToExpiry(expiry, now time.Time) int {
	return int(math.Floor(expiry.Sub(now).Hours() / 24))
}

// ClassifyDays maps a day count onto a status tag. This is the single place
// the status thresholds live.
func ClassifyDays(days int) Status {
	switch {
	case days < 0:
		return StatusExpired
	case days <= WarningThresholdDays:
		return StatusWarning
	default:
		return StatusOK
	}
}

// Classify computes days-to-expiry and status for an expiry date relative
// to a reference time.
func Classify(expiry, now time.Time) (int, Status) {
	days := DaysToExpiry(expiry, now)
	return days, ClassifyDays(days)
}

// ToRecord converts an API license view into a cached LicenseRecord for the
// given instance, classified relative to now. An unparseable expiry date
// fails the conversion with a validation error.
func ToRecord(view LicenseView, instanceID, instanceName, env string, now time.Time) (LicenseRecord, error) {
	expiry, err := ParseExpiry(view.ExpiryDate)
	if err != nil {
		return LicenseRecord{}, err
	}

	days, status := Classify(expiry, now)

	return LicenseRecord{
		InstanceID:   instanceID,
		InstanceName: instanceName,
		Env:          env,
		LicenseKeyID: view.LicenseKeyID,
		IssuedTo:     view.IssuedTo,
		Product:      view.Product,
		ExpiryDate:   view.ExpiryDate,
		DaysToExpiry: days,
		Status:       status,
		LastSyncedAt: now.UTC(),
		Source:       SourcePFAPI,
	}, nil
}

// ToView converts a cached record back into the API license shape.
func ToView(record LicenseRecord) LicenseView {
	return LicenseView{
		IssuedTo:     record.IssuedTo,
		Product:      record.Product,
		ExpiryDate:   record.ExpiryDate,
		LicenseKeyID: record.LicenseKeyID,
	}
}
