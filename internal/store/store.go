// Package store provides the persistence layer for cached license records
// and the audit trail. Two backends exist behind the same interfaces: a
// flat-file JSON store and a MongoDB store. The backend is selected once at
// startup from configuration.
package store

import (
	"context"
	"errors"

	"pfagent/internal/domain"
)

// ErrNotFound signals a simple cache miss. Callers decide whether a miss is
// an error; the store never treats it as one.
var ErrNotFound = errors.New("record not found")

// MaxAuditEntries is the retention cap enforced by the file-backed audit
// store. The MongoDB store delegates retention to the database.
const MaxAuditEntries = 1000

// LicenseStore owns LicenseRecord storage, keyed by instance id.
type LicenseStore interface {
	// Upsert replaces the record for its instance id wholesale, inserting
	// when absent. Calling it repeatedly with identical input is a no-op
	// beyond the first call.
	Upsert(ctx context.Context, record domain.LicenseRecord) error
	// GetAll returns all records ordered by instance id ascending.
	GetAll(ctx context.Context) ([]domain.LicenseRecord, error)
	// GetByInstance returns the record for an instance, or ErrNotFound.
	GetByInstance(ctx context.Context, instanceID string) (*domain.LicenseRecord, error)
	// GetByStatus returns records with the given status, ordered by expiry
	// date ascending.
	GetByStatus(ctx context.Context, status domain.Status) ([]domain.LicenseRecord, error)
	// GetExpiringSoon returns records with days-to-expiry <= days, ordered
	// by days-to-expiry ascending.
	GetExpiringSoon(ctx context.Context, days int) ([]domain.LicenseRecord, error)
}

// AuditStore owns the append-only AuditRecord trail.
type AuditStore interface {
	// Append inserts one audit record. Write failures propagate; there is
	// no best-effort mode.
	Append(ctx context.Context, record domain.AuditRecord) error
	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]domain.AuditRecord, error)
	// ByInstance returns up to limit records for one instance, newest first.
	ByInstance(ctx context.Context, instanceID string, limit int) ([]domain.AuditRecord, error)
}
