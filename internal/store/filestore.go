package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"pfagent/internal/domain"
	apperrors "pfagent/internal/errors"
)

const (
	licensesFile = "licenses.json"
	auditsFile   = "audits.json"
)

// FileLicenseStore is a flat-file LicenseStore keeping the full record set
// in a single JSON document.
type FileLicenseStore struct {
	mu   sync.Mutex
	path string
}

// NewFileLicenseStore creates the data directory if needed and returns a
// file-backed license store.
func NewFileLicenseStore(dataDir string) (*FileLicenseStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, apperrors.NewStorageError("failed to create data directory", err)
	}
	return &FileLicenseStore{path: filepath.Join(dataDir, licensesFile)}, nil
}

func (s *FileLicenseStore) load() ([]domain.LicenseRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperrors.NewStorageError("failed to read license file", err)
	}

	var records []domain.LicenseRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, apperrors.NewStorageError("corrupt license file", err)
	}
	return records, nil
}

func (s *FileLicenseStore) save(records []domain.LicenseRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return apperrors.NewStorageError("failed to encode license records", err)
	}

	// Write to a temp file and rename so a crash mid-write never leaves a
	// truncated document behind.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return apperrors.NewStorageError("failed to write license file", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return apperrors.NewStorageError("failed to replace license file", err)
	}
	return nil
}

// Upsert implements LicenseStore.
func (s *FileLicenseStore) Upsert(_ context.Context, record domain.LicenseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}

	replaced := false
	for i := range records {
		if records[i].InstanceID == record.InstanceID {
			records[i] = record
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, record)
	}

	return s.save(records)
}

// GetAll implements LicenseStore.
func (s *FileLicenseStore) GetAll(_ context.Context) ([]domain.LicenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].InstanceID < records[j].InstanceID
	})
	return records, nil
}

// GetByInstance implements LicenseStore.
func (s *FileLicenseStore) GetByInstance(_ context.Context, instanceID string) (*domain.LicenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].InstanceID == instanceID {
			return &records[i], nil
		}
	}
	return nil, ErrNotFound
}

// GetByStatus implements LicenseStore.
func (s *FileLicenseStore) GetByStatus(_ context.Context, status domain.Status) ([]domain.LicenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}

	var matched []domain.LicenseRecord
	for _, r := range records {
		if r.Status == status {
			matched = append(matched, r)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ExpiryDate < matched[j].ExpiryDate
	})
	return matched, nil
}

// GetExpiringSoon implements LicenseStore.
func (s *FileLicenseStore) GetExpiringSoon(_ context.Context, days int) ([]domain.LicenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}

	var matched []domain.LicenseRecord
	for _, r := range records {
		if r.DaysToExpiry <= days {
			matched = append(matched, r)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].DaysToExpiry < matched[j].DaysToExpiry
	})
	return matched, nil
}

// FileAuditStore is a flat-file AuditStore capped at MaxAuditEntries.
type FileAuditStore struct {
	mu   sync.Mutex
	path string
}

// NewFileAuditStore creates the data directory if needed and returns a
// file-backed audit store.
func NewFileAuditStore(dataDir string) (*FileAuditStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, apperrors.NewStorageError("failed to create data directory", err)
	}
	return &FileAuditStore{path: filepath.Join(dataDir, auditsFile)}, nil
}

func (s *FileAuditStore) load() ([]domain.AuditRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperrors.NewStorageError("failed to read audit file", err)
	}

	var records []domain.AuditRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, apperrors.NewStorageError("corrupt audit file", err)
	}
	return records, nil
}

// Append implements AuditStore. The trail is kept oldest-first on disk and
// truncated to the most recent MaxAuditEntries at write time.
func (s *FileAuditStore) Append(_ context.Context, record domain.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}

	records = append(records, record)
	if len(records) > MaxAuditEntries {
		records = records[len(records)-MaxAuditEntries:]
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return apperrors.NewStorageError("failed to encode audit records", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return apperrors.NewStorageError("failed to write audit file", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return apperrors.NewStorageError("failed to replace audit file", err)
	}
	return nil
}

// Recent implements AuditStore.
func (s *FileAuditStore) Recent(_ context.Context, limit int) ([]domain.AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}
	return newestFirst(records, limit), nil
}

// ByInstance implements AuditStore.
func (s *FileAuditStore) ByInstance(_ context.Context, instanceID string, limit int) ([]domain.AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}

	var matched []domain.AuditRecord
	for _, r := range records {
		if r.InstanceID == instanceID {
			matched = append(matched, r)
		}
	}
	return newestFirst(matched, limit), nil
}

// newestFirst reverses an oldest-first slice and truncates it to limit.
func newestFirst(records []domain.AuditRecord, limit int) []domain.AuditRecord {
	out := make([]domain.AuditRecord, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		out = append(out, records[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
