package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"pfagent/internal/config"
	"pfagent/internal/domain"
	apperrors "pfagent/internal/errors"
	"pfagent/internal/metrics"
	"pfagent/internal/store"
)

// ActorSystem is the audit actor for scheduler-driven refreshes.
const ActorSystem = "system"

// PFClient is the subset of the PingFederate client the service needs.
type PFClient interface {
	GetLicense(ctx context.Context, instance config.InstanceConfig) (*domain.LicenseView, error)
	PutLicense(ctx context.Context, instance config.InstanceConfig, encodedLicense string) (*domain.LicenseView, error)
}

// SkippedInstance describes one instance left out of a batch refresh.
type SkippedInstance struct {
	InstanceID string `json:"instance_id"`
	Error      string `json:"error"`
}

// RefreshReport is the outcome of a batch refresh: which instances
// succeeded and which were skipped with their cause.
type RefreshReport struct {
	Succeeded []domain.InstanceSummary `json:"succeeded"`
	Skipped   []SkippedInstance        `json:"skipped"`
}

// LicenseService implements the license refresh/apply pipeline: read from
// the instance endpoint, classify, cache, audit.
type LicenseService struct {
	inventory *config.Inventory
	licenses  store.LicenseStore
	audits    store.AuditStore
	client    PFClient
	collector *metrics.Collector
	logger    *slog.Logger
	now       func() time.Time
}

// NewLicenseService wires the pipeline. collector may be nil when metrics
// are not wanted (CLI one-shot commands).
func NewLicenseService(
	inventory *config.Inventory,
	licenses store.LicenseStore,
	audits store.AuditStore,
	client PFClient,
	collector *metrics.Collector,
	logger *slog.Logger,
) *LicenseService {
	return &LicenseService{
		inventory: inventory,
		licenses:  licenses,
		audits:    audits,
		client:    client,
		collector: collector,
		logger:    logger.With(slog.String("component", "license_service")),
		now:       time.Now,
	}
}

// WithClock overrides the service clock. Tests only.
func (s *LicenseService) WithClock(now func() time.Time) *LicenseService {
	s.now = now
	return s
}

// RefreshOne pulls the current license truth for a single instance,
// classifies it, updates the cache and appends an audit entry.
func (s *LicenseService) RefreshOne(ctx context.Context, instanceID string) (*domain.InstanceSummary, error) {
	summary, err := s.refreshInstance(ctx, instanceID)
	if err != nil {
		s.collector.IncRefresh(instanceID, "error")
		return nil, err
	}
	s.collector.IncRefresh(instanceID, "success")
	return summary, nil
}

func (s *LicenseService) refreshInstance(ctx context.Context, instanceID string) (*domain.InstanceSummary, error) {
	instance, err := s.inventory.ByID(instanceID)
	if err != nil {
		return nil, err
	}

	view, err := s.client.GetLicense(ctx, *instance)
	if err != nil {
		return nil, err
	}

	record, err := domain.ToRecord(*view, instance.ID, instance.Name, instance.Env, s.now().UTC())
	if err != nil {
		return nil, err
	}

	if err := s.licenses.Upsert(ctx, record); err != nil {
		return nil, err
	}
	s.collector.ObserveRecord(record)

	audit := domain.AuditRecord{
		ID:         uuid.New().String(),
		Timestamp:  record.LastSyncedAt,
		Actor:      ActorSystem,
		Action:     domain.ActionRefresh,
		InstanceID: instance.ID,
		Details: map[string]interface{}{
			"status":         string(record.Status),
			"days_to_expiry": record.DaysToExpiry,
			"expiry_date":    record.ExpiryDate,
		},
	}
	if err := s.audits.Append(ctx, audit); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "license refreshed",
		"instance_id", instance.ID,
		"status", record.Status,
		"days_to_expiry", record.DaysToExpiry,
	)

	return &domain.InstanceSummary{
		InstanceID:   record.InstanceID,
		ExpiryDate:   record.ExpiryDate,
		Status:       record.Status,
		DaysToExpiry: record.DaysToExpiry,
	}, nil
}

// RefreshAll refreshes every configured instance sequentially. A failing
// instance is logged and skipped; it never aborts the batch.
func (s *LicenseService) RefreshAll(ctx context.Context) (*RefreshReport, error) {
	report := &RefreshReport{}

	for _, instance := range s.inventory.Instances {
		summary, err := s.RefreshOne(ctx, instance.ID)
		if err != nil {
			s.logger.ErrorContext(ctx, "refresh failed, skipping instance",
				"instance_id", instance.ID,
				"error", err,
			)
			report.Skipped = append(report.Skipped, SkippedInstance{
				InstanceID: instance.ID,
				Error:      err.Error(),
			})
			continue
		}
		report.Succeeded = append(report.Succeeded, *summary)
	}

	s.logger.InfoContext(ctx, "refresh batch completed",
		"succeeded", len(report.Succeeded),
		"skipped", len(report.Skipped),
	)
	return report, nil
}

// ApplyLicense pushes a license file to an instance and re-fetches the
// endpoint state to confirm. The file is read before any network call; an
// unreadable file fails the operation up front. The re-fetch, not the PUT
// response, is the source of truth for the resulting record.
func (s *LicenseService) ApplyLicense(ctx context.Context, instanceID, filePath, actor string) (*domain.InstanceSummary, error) {
	instance, err := s.inventory.ByID(instanceID)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		s.collector.IncApply(instanceID, "error")
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("failed to read license file %s", filePath), err)
	}
	encoded := base64.StdEncoding.EncodeToString(content)

	if _, err := s.client.PutLicense(ctx, *instance, encoded); err != nil {
		s.collector.IncApply(instanceID, "error")
		return nil, err
	}

	view, err := s.client.GetLicense(ctx, *instance)
	if err != nil {
		s.collector.IncApply(instanceID, "error")
		return nil, err
	}

	record, err := domain.ToRecord(*view, instance.ID, instance.Name, instance.Env, s.now().UTC())
	if err != nil {
		s.collector.IncApply(instanceID, "error")
		return nil, err
	}
	record.Source = domain.SourceManual

	if err := s.licenses.Upsert(ctx, record); err != nil {
		s.collector.IncApply(instanceID, "error")
		return nil, err
	}
	s.collector.ObserveRecord(record)

	audit := domain.AuditRecord{
		ID:         uuid.New().String(),
		Timestamp:  record.LastSyncedAt,
		Actor:      actor,
		Action:     domain.ActionApplyLicense,
		InstanceID: instance.ID,
		Details: map[string]interface{}{
			"file_path":  filePath,
			"new_expiry": record.ExpiryDate,
			"status":     string(record.Status),
		},
	}
	if err := s.audits.Append(ctx, audit); err != nil {
		s.collector.IncApply(instanceID, "error")
		return nil, err
	}
	s.collector.IncApply(instanceID, "success")

	s.logger.InfoContext(ctx, "license applied",
		"instance_id", instance.ID,
		"actor", actor,
		"new_expiry", record.ExpiryDate,
		"status", record.Status,
	)

	return &domain.InstanceSummary{
		InstanceID:   record.InstanceID,
		ExpiryDate:   record.ExpiryDate,
		Status:       record.Status,
		DaysToExpiry: record.DaysToExpiry,
	}, nil
}

// GetAll returns all cached license records.
func (s *LicenseService) GetAll(ctx context.Context) ([]domain.LicenseRecord, error) {
	return s.licenses.GetAll(ctx)
}

// GetByInstance returns the cached record for one instance. A cache miss is
// surfaced as a not-found error at this layer.
func (s *LicenseService) GetByInstance(ctx context.Context, instanceID string) (*domain.LicenseRecord, error) {
	record, err := s.licenses.GetByInstance(ctx, instanceID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("license record", instanceID)
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// GetByEnv returns cached records filtered by environment tag.
func (s *LicenseService) GetByEnv(ctx context.Context, env string) ([]domain.LicenseRecord, error) {
	all, err := s.licenses.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	var matched []domain.LicenseRecord
	for _, r := range all {
		if r.Env == env {
			matched = append(matched, r)
		}
	}
	return matched, nil
}

// GetByStatus returns cached records with the given status.
func (s *LicenseService) GetByStatus(ctx context.Context, status domain.Status) ([]domain.LicenseRecord, error) {
	if !status.Valid() {
		return nil, apperrors.NewValidationError("unknown status: "+string(status), nil)
	}
	return s.licenses.GetByStatus(ctx, status)
}

// GetExpiringSoon returns cached records expiring within the given days.
func (s *LicenseService) GetExpiringSoon(ctx context.Context, days int) ([]domain.LicenseRecord, error) {
	return s.licenses.GetExpiringSoon(ctx, days)
}

// RecentAudit returns recent audit entries, optionally scoped to one
// instance.
func (s *LicenseService) RecentAudit(ctx context.Context, instanceID string, limit int) ([]domain.AuditRecord, error) {
	if instanceID != "" {
		return s.audits.ByInstance(ctx, instanceID, limit)
	}
	return s.audits.Recent(ctx, limit)
}
