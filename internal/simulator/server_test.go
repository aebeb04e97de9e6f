package simulator

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pfagent/internal/domain"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	sim := New([]string{"pf-dev-1", "pf-prod-2"}, slog.Default(), WithLicenses(map[string]domain.LicenseView{
		"pf-dev-1": {
			IssuedTo:     "Acme Corporation",
			Product:      "PingFederate",
			ExpiryDate:   "2026-03-01",
			LicenseKeyID: "LIC-DEV1",
		},
		"pf-prod-2": {
			IssuedTo:     "TechCorp Inc",
			Product:      "PingFederate",
			ExpiryDate:   "2027-01-01",
			LicenseKeyID: "LIC-PROD2",
		},
	}))

	srv := httptest.NewServer(sim.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, method, url string, body []byte, auth bool, xsrf bool) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	require.NoError(t, err)
	if auth {
		req.SetBasicAuth("Administrator", "2FederateM0re")
	}
	if xsrf {
		req.Header.Set("X-XSRF-Header", "PingFederate")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestGetLicenseRequiresAuth(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/pf-dev-1/license", nil, false, true)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "Basic")
}

func TestGetLicenseRequiresXSRFHeader(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/pf-dev-1/license", nil, true, false)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestGetLicenseWrongPassword(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/pf-dev-1/license", nil)
	require.NoError(t, err)
	req.SetBasicAuth("Administrator", "wrong")
	req.Header.Set("X-XSRF-Header", "PingFederate")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGetLicense(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/pf-dev-1/license", nil, true, true)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view domain.LicenseView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.Equal(t, "Acme Corporation", view.IssuedTo)
	assert.Equal(t, "2026-03-01", view.ExpiryDate)
}

func TestGetLicenseUnknownInstance(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/pf-ghost/license", nil, true, true)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func putLicenseBody(t *testing.T, content string) []byte {
	t.Helper()
	body, err := json.Marshal(domain.ApplyLicenseRequest{
		Value: base64.StdEncoding.EncodeToString([]byte(content)),
	})
	require.NoError(t, err)
	return body
}

func TestPutLicenseUpdatesState(t *testing.T) {
	srv := newTestServer(t)

	body := putLicenseBody(t, "Organization=Initech\nEXPIRY=2028-06-30\nID=FRESH123\n")
	resp := doRequest(t, http.MethodPut, srv.URL+"/pf-dev-1/license", body, true, true)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view domain.LicenseView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.Equal(t, "2028-06-30", view.ExpiryDate)
	assert.Equal(t, "Initech", view.IssuedTo)
	assert.Equal(t, "LIC-FRESH123", view.LicenseKeyID)

	// The subsequent GET reflects the applied license.
	getResp := doRequest(t, http.MethodGet, srv.URL+"/pf-dev-1/license", nil, true, true)
	defer getResp.Body.Close()
	var after domain.LicenseView
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&after))
	assert.Equal(t, "2028-06-30", after.ExpiryDate)
}

func TestPutLicenseRejectsMissingExpiry(t *testing.T) {
	srv := newTestServer(t)

	body := putLicenseBody(t, "Organization=Initech\nID=NOEXPIRY\n")
	resp := doRequest(t, http.MethodPut, srv.URL+"/pf-dev-1/license", body, true, true)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPutLicenseRejectsBadBase64(t *testing.T) {
	srv := newTestServer(t)

	body, err := json.Marshal(domain.ApplyLicenseRequest{Value: "!!not-base64!!"})
	require.NoError(t, err)

	resp := doRequest(t, http.MethodPut, srv.URL+"/pf-dev-1/license", body, true, true)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAgreementRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/pf-dev-1/license/agreement", nil, true, true)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var agreement domain.LicenseAgreement
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&agreement))
	assert.True(t, agreement.Accepted)

	update, err := json.Marshal(domain.LicenseAgreement{Link: agreement.Link, Accepted: false})
	require.NoError(t, err)
	putResp := doRequest(t, http.MethodPut, srv.URL+"/pf-dev-1/license/agreement", update, true, true)
	defer putResp.Body.Close()
	require.Equal(t, http.StatusOK, putResp.StatusCode)
}

func TestClusterStatusIsPublic(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/cluster/status", nil, false, false)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, float64(2), status["instance_count"])
}

func TestSeedLicensesDeterministic(t *testing.T) {
	ids := []string{"pf-dev-1", "pf-prod-2", "pf-stage-3"}
	a := SeedLicenses(ids)
	b := SeedLicenses(ids)
	assert.Equal(t, a, b)
	assert.Len(t, a, 3)
	for _, view := range a {
		assert.Equal(t, "PingFederate", view.Product)
		_, err := domain.ParseExpiry(view.ExpiryDate)
		assert.NoError(t, err)
	}
}
