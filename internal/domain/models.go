package domain

import "time"

// Status is the derived three-valued license health tag.
type Status string

const (
	StatusOK      Status = "OK"
	StatusWarning Status = "WARNING"
	StatusExpired Status = "EXPIRED"
)

// Valid reports whether s is one of the known status values.
func (s Status) Valid() bool {
	switch s {
	case StatusOK, StatusWarning, StatusExpired:
		return true
	}
	return false
}

// Source tags where a license record came from.
type Source string

const (
	SourcePFAPI  Source = "pf-api"
	SourceManual Source = "manual"
)

// Action is the kind of audited operation.
type Action string

const (
	ActionRefresh      Action = "refresh"
	ActionApplyLicense Action = "apply_license"
)

// LicenseView is the license resource shape exposed by the PingFederate
// admin API (matches the swagger field names).
type LicenseView struct {
	IssuedTo     string `json:"issuedTo"`
	Product      string `json:"product"`
	ExpiryDate   string `json:"expiryDate"` // YYYY-MM-DD
	LicenseKeyID string `json:"licenseKeyId"`
}

// LicenseRecord is the cached license state for a single instance. Records
// are replaced wholesale on every refresh or apply, never partially updated.
type LicenseRecord struct {
	InstanceID   string    `json:"instance_id" bson:"instance_id"`
	InstanceName string    `json:"instance_name" bson:"instance_name"`
	Env          string    `json:"env" bson:"env"`
	LicenseKeyID string    `json:"license_key_id" bson:"license_key_id"`
	IssuedTo     string    `json:"issued_to" bson:"issued_to"`
	Product      string    `json:"product" bson:"product"`
	ExpiryDate   string    `json:"expiry_date" bson:"expiry_date"` // YYYY-MM-DD
	DaysToExpiry int       `json:"days_to_expiry" bson:"days_to_expiry"`
	Status       Status    `json:"status" bson:"status"`
	LastSyncedAt time.Time `json:"last_synced_at" bson:"last_synced_at"`
	Source       Source    `json:"source" bson:"source"`
}

// AuditRecord is one append-only entry in the audit trail.
type AuditRecord struct {
	ID         string                 `json:"id" bson:"id"`
	Timestamp  time.Time              `json:"timestamp" bson:"timestamp"`
	Actor      string                 `json:"actor" bson:"actor"`
	Action     Action                 `json:"action" bson:"action"`
	InstanceID string                 `json:"instance_id" bson:"instance_id"`
	Details    map[string]interface{} `json:"details" bson:"details"`
}

// InstanceSummary is the result of a refresh or apply for one instance.
type InstanceSummary struct {
	InstanceID   string `json:"instance_id"`
	ExpiryDate   string `json:"expiry_date"`
	Status       Status `json:"status"`
	DaysToExpiry int    `json:"days_to_expiry"`
}

// ApplyLicenseRequest is the PUT /license request body.
type ApplyLicenseRequest struct {
	Value string `json:"value"` // base64 encoded license file
}

// LicenseAgreement is the license agreement resource.
type LicenseAgreement struct {
	Link     string `json:"link"`
	Accepted bool   `json:"accepted"`
}
