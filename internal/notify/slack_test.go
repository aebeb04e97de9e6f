package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pfagent/internal/domain"
)

func TestLicenseAlertPostsWarning(t *testing.T) {
	var received map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
	}))
	defer srv.Close()

	n := New(srv.URL, slog.Default())
	n.LicenseAlert(context.Background(), domain.InstanceSummary{
		InstanceID:   "pf-dev-1",
		ExpiryDate:   "2025-07-01",
		Status:       domain.StatusWarning,
		DaysToExpiry: 10,
	})

	require.NotNil(t, received)
	assert.Contains(t, received["text"], "WARNING")
	assert.Contains(t, received["text"], "pf-dev-1")
	assert.Contains(t, received["text"], "10d")
}

func TestLicenseAlertPostsExpired(t *testing.T) {
	var received map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
	}))
	defer srv.Close()

	n := New(srv.URL, slog.Default())
	n.LicenseAlert(context.Background(), domain.InstanceSummary{
		InstanceID:   "pf-stage-3",
		ExpiryDate:   "2025-06-10",
		Status:       domain.StatusExpired,
		DaysToExpiry: -5,
	})

	require.NotNil(t, received)
	assert.Contains(t, received["text"], "EXPIRED")
	assert.Contains(t, received["text"], "expired 5d ago")
}

func TestLicenseAlertIgnoresOK(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	n := New(srv.URL, slog.Default())
	n.LicenseAlert(context.Background(), domain.InstanceSummary{
		InstanceID: "pf-prod-2",
		Status:     domain.StatusOK,
	})

	assert.False(t, called)
}

func TestDisabledNotifier(t *testing.T) {
	n := New("", slog.Default())
	assert.False(t, n.Enabled())

	// Must not panic or attempt network I/O.
	n.LicenseAlert(context.Background(), domain.InstanceSummary{Status: domain.StatusExpired})
}
