package services

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pfagent/internal/config"
	"pfagent/internal/domain"
	apperrors "pfagent/internal/errors"
	"pfagent/internal/store"
)

// fakeClient serves canned license views per instance and records the call
// order so tests can assert what fired before what.
type fakeClient struct {
	views    map[string]domain.LicenseView
	failing  map[string]error
	calls    []string
	lastPut  string
	putLogic func(instanceID, encoded string) (*domain.LicenseView, error)
}

func (f *fakeClient) GetLicense(_ context.Context, instance config.InstanceConfig) (*domain.LicenseView, error) {
	f.calls = append(f.calls, "GET "+instance.ID)
	if err, ok := f.failing[instance.ID]; ok {
		return nil, err
	}
	view, ok := f.views[instance.ID]
	if !ok {
		return nil, apperrors.NewTransportError(instance.ID, "no canned view", nil)
	}
	return &view, nil
}

func (f *fakeClient) PutLicense(_ context.Context, instance config.InstanceConfig, encoded string) (*domain.LicenseView, error) {
	f.calls = append(f.calls, "PUT "+instance.ID)
	f.lastPut = encoded
	if f.putLogic != nil {
		return f.putLogic(instance.ID, encoded)
	}
	view := f.views[instance.ID]
	return &view, nil
}

var testNow = time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

func testInventory() *config.Inventory {
	return &config.Inventory{Instances: []config.InstanceConfig{
		{ID: "pf-dev-1", Name: "Dev Admin 1", Env: "dev", BaseURL: "http://sim/pf-dev-1"},
		{ID: "pf-prod-2", Name: "Prod Admin 2", Env: "prod", BaseURL: "http://sim/pf-prod-2"},
		{ID: "pf-stage-3", Name: "Stage Admin 3", Env: "stage", BaseURL: "http://sim/pf-stage-3"},
	}}
}

func expiryIn(days int) string {
	return testNow.AddDate(0, 0, days).Format("2006-01-02")
}

func cannedView(days int) domain.LicenseView {
	return domain.LicenseView{
		IssuedTo:     "Acme Corporation",
		Product:      "PingFederate",
		ExpiryDate:   expiryIn(days),
		LicenseKeyID: "LIC-TEST",
	}
}

func newTestService(t *testing.T, client *fakeClient) (*LicenseService, store.LicenseStore, store.AuditStore) {
	t.Helper()
	dir := t.TempDir()
	licenses, err := store.NewFileLicenseStore(dir)
	require.NoError(t, err)
	audits, err := store.NewFileAuditStore(dir)
	require.NoError(t, err)

	svc := NewLicenseService(testInventory(), licenses, audits, client, nil, slog.Default()).
		WithClock(func() time.Time { return testNow })
	return svc, licenses, audits
}

func TestRefreshOneScenarios(t *testing.T) {
	tests := []struct {
		name       string
		instanceID string
		days       int
		wantStatus domain.Status
	}{
		{"ten days out warns", "pf-dev-1", 10, domain.StatusWarning},
		{"400 days out is ok", "pf-prod-2", 400, domain.StatusOK},
		{"five days past is expired", "pf-stage-3", -5, domain.StatusExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{views: map[string]domain.LicenseView{
				tt.instanceID: cannedView(tt.days),
			}}
			svc, _, _ := newTestService(t, client)

			summary, err := svc.RefreshOne(context.Background(), tt.instanceID)
			require.NoError(t, err)
			assert.Equal(t, tt.instanceID, summary.InstanceID)
			assert.Equal(t, tt.wantStatus, summary.Status)
			assert.Equal(t, tt.days, summary.DaysToExpiry)
		})
	}
}

func TestRefreshOneCachesAndAudits(t *testing.T) {
	client := &fakeClient{views: map[string]domain.LicenseView{"pf-dev-1": cannedView(10)}}
	svc, licenses, audits := newTestService(t, client)
	ctx := context.Background()

	_, err := svc.RefreshOne(ctx, "pf-dev-1")
	require.NoError(t, err)

	record, err := licenses.GetByInstance(ctx, "pf-dev-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWarning, record.Status)
	assert.Equal(t, "Dev Admin 1", record.InstanceName)
	assert.Equal(t, domain.SourcePFAPI, record.Source)

	trail, err := audits.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, domain.ActionRefresh, trail[0].Action)
	assert.Equal(t, ActorSystem, trail[0].Actor)
	assert.Equal(t, "WARNING", trail[0].Details["status"])
}

func TestRefreshOneUnknownInstance(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeClient{})

	_, err := svc.RefreshOne(context.Background(), "pf-ghost")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestRefreshOneRejectsBadExpiry(t *testing.T) {
	client := &fakeClient{views: map[string]domain.LicenseView{
		"pf-dev-1": {ExpiryDate: "garbage"},
	}}
	svc, licenses, _ := newTestService(t, client)

	_, err := svc.RefreshOne(context.Background(), "pf-dev-1")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))

	// Nothing was cached for the failing instance.
	_, err = licenses.GetByInstance(context.Background(), "pf-dev-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRefreshAllIsolatesFailures(t *testing.T) {
	client := &fakeClient{
		views: map[string]domain.LicenseView{
			"pf-dev-1":  cannedView(10),
			"pf-prod-2": cannedView(400),
		},
		failing: map[string]error{
			"pf-stage-3": apperrors.NewTransportError("pf-stage-3", "connection refused", errors.New("dial tcp")),
		},
	}
	svc, _, audits := newTestService(t, client)

	report, err := svc.RefreshAll(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Succeeded, 2)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "pf-stage-3", report.Skipped[0].InstanceID)
	assert.Contains(t, report.Skipped[0].Error, "connection refused")

	// Exactly K audit entries for K reachable endpoints.
	trail, err := audits.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, trail, 2)
}

func TestRefreshAllAllFailing(t *testing.T) {
	client := &fakeClient{failing: map[string]error{
		"pf-dev-1":   errors.New("down"),
		"pf-prod-2":  errors.New("down"),
		"pf-stage-3": errors.New("down"),
	}}
	svc, _, _ := newTestService(t, client)

	report, err := svc.RefreshAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Succeeded)
	assert.Len(t, report.Skipped, 3)
}

func TestApplyLicenseHappyPath(t *testing.T) {
	content := []byte("Organization=Acme Corporation\nEXPIRY=" + expiryIn(200) + "\nID=NEWKEY12\n")
	path := filepath.Join(t.TempDir(), "pingfederate.lic")
	require.NoError(t, os.WriteFile(path, content, 0644))

	client := &fakeClient{views: map[string]domain.LicenseView{"pf-dev-1": cannedView(200)}}
	svc, licenses, audits := newTestService(t, client)
	ctx := context.Background()

	summary, err := svc.ApplyLicense(ctx, "pf-dev-1", path, "user:admin")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOK, summary.Status)
	assert.Equal(t, 200, summary.DaysToExpiry)

	// The payload was base64 encoded on the wire.
	decoded, err := base64.StdEncoding.DecodeString(client.lastPut)
	require.NoError(t, err)
	assert.Equal(t, content, decoded)

	// PUT fired before the confirming GET.
	require.Equal(t, []string{"PUT pf-dev-1", "GET pf-dev-1"}, client.calls)

	// The cached record is tagged as manually applied.
	record, err := licenses.GetByInstance(ctx, "pf-dev-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SourceManual, record.Source)

	trail, err := audits.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, domain.ActionApplyLicense, trail[0].Action)
	assert.Equal(t, "user:admin", trail[0].Actor)
	assert.Equal(t, path, trail[0].Details["file_path"])
}

func TestApplyLicenseMissingFileFailsBeforeNetwork(t *testing.T) {
	client := &fakeClient{views: map[string]domain.LicenseView{"pf-dev-1": cannedView(200)}}
	svc, _, _ := newTestService(t, client)

	_, err := svc.ApplyLicense(context.Background(), "pf-dev-1", filepath.Join(t.TempDir(), "missing.lic"), "user:admin")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
	assert.Empty(t, client.calls, "no network call may fire for an unreadable file")
}

func TestApplyLicenseUnknownInstance(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeClient{})

	_, err := svc.ApplyLicense(context.Background(), "pf-ghost", "/tmp/whatever.lic", "user:admin")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestApplyLicenseTransportErrorPropagates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pingfederate.lic")
	require.NoError(t, os.WriteFile(path, []byte("EXPIRY="+expiryIn(100)), 0644))

	client := &fakeClient{
		views: map[string]domain.LicenseView{"pf-dev-1": cannedView(100)},
		putLogic: func(string, string) (*domain.LicenseView, error) {
			return nil, apperrors.NewTransportError("pf-dev-1", "PUT rejected", nil)
		},
	}
	svc, _, _ := newTestService(t, client)

	_, err := svc.ApplyLicense(context.Background(), "pf-dev-1", path, "user:admin")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeTransport))
}

func TestGetByInstanceMissIsNotFound(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeClient{})

	_, err := svc.GetByInstance(context.Background(), "pf-never-refreshed")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestGetByEnvFilters(t *testing.T) {
	client := &fakeClient{views: map[string]domain.LicenseView{
		"pf-dev-1":   cannedView(10),
		"pf-prod-2":  cannedView(400),
		"pf-stage-3": cannedView(50),
	}}
	svc, _, _ := newTestService(t, client)
	ctx := context.Background()

	_, err := svc.RefreshAll(ctx)
	require.NoError(t, err)

	prod, err := svc.GetByEnv(ctx, "prod")
	require.NoError(t, err)
	require.Len(t, prod, 1)
	assert.Equal(t, "pf-prod-2", prod[0].InstanceID)
}

func TestGetByStatusRejectsUnknownStatus(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeClient{})

	_, err := svc.GetByStatus(context.Background(), domain.Status("MAYBE"))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
}

func TestRefreshOneIdempotentCache(t *testing.T) {
	client := &fakeClient{views: map[string]domain.LicenseView{"pf-dev-1": cannedView(10)}}
	svc, licenses, _ := newTestService(t, client)
	ctx := context.Background()

	_, err := svc.RefreshOne(ctx, "pf-dev-1")
	require.NoError(t, err)
	_, err = svc.RefreshOne(ctx, "pf-dev-1")
	require.NoError(t, err)

	all, err := licenses.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "repeated refresh must not duplicate cache entries")
}
