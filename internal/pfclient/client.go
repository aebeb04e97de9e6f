// Package pfclient implements the REST client for the PingFederate admin
// API license endpoints.
package pfclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"pfagent/internal/config"
	"pfagent/internal/domain"
	apperrors "pfagent/internal/errors"
)

// xsrfHeaderValue is the static CSRF token PingFederate requires on every
// admin API request.
const xsrfHeaderValue = "PingFederate"

// Client talks to per-instance PingFederate admin APIs using HTTP Basic
// auth. All requests carry a bounded timeout so one unreachable instance
// cannot stall a refresh batch.
type Client struct {
	httpClient *http.Client
	username   string
	password   string
	logger     *slog.Logger
}

// New creates a client from the shared admin credentials configuration.
func New(cfg config.PingFedConfig, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		username:   cfg.Username,
		password:   cfg.Password,
		logger:     logger.With(slog.String("component", "pfclient")),
	}
}

// GetLicense reads the current license state from an instance.
func (c *Client) GetLicense(ctx context.Context, instance config.InstanceConfig) (*domain.LicenseView, error) {
	var view domain.LicenseView
	url := instance.BaseURL + "/license"
	if err := c.do(ctx, http.MethodGet, url, nil, &view); err != nil {
		return nil, apperrors.NewTransportError(instance.ID,
			fmt.Sprintf("failed to get license from %s", instance.ID), err)
	}
	return &view, nil
}

// PutLicense applies a base64-encoded license payload to an instance and
// returns the post-update license view.
func (c *Client) PutLicense(ctx context.Context, instance config.InstanceConfig, encodedLicense string) (*domain.LicenseView, error) {
	var view domain.LicenseView
	url := instance.BaseURL + "/license"
	body := domain.ApplyLicenseRequest{Value: encodedLicense}
	if err := c.do(ctx, http.MethodPut, url, body, &view); err != nil {
		return nil, apperrors.NewTransportError(instance.ID,
			fmt.Sprintf("failed to apply license to %s", instance.ID), err)
	}
	return &view, nil
}

// GetAgreement reads the license agreement status from an instance.
func (c *Client) GetAgreement(ctx context.Context, instance config.InstanceConfig) (*domain.LicenseAgreement, error) {
	var agreement domain.LicenseAgreement
	url := instance.BaseURL + "/license/agreement"
	if err := c.do(ctx, http.MethodGet, url, nil, &agreement); err != nil {
		return nil, apperrors.NewTransportError(instance.ID,
			fmt.Sprintf("failed to get license agreement from %s", instance.ID), err)
	}
	return &agreement, nil
}

// PutAgreement updates the license agreement status on an instance.
func (c *Client) PutAgreement(ctx context.Context, instance config.InstanceConfig, agreement domain.LicenseAgreement) (*domain.LicenseAgreement, error) {
	var updated domain.LicenseAgreement
	url := instance.BaseURL + "/license/agreement"
	if err := c.do(ctx, http.MethodPut, url, agreement, &updated); err != nil {
		return nil, apperrors.NewTransportError(instance.ID,
			fmt.Sprintf("failed to update license agreement for %s", instance.ID), err)
	}
	return &updated, nil
}

// do performs one authenticated request and decodes a JSON response into
// out. Any non-2xx response is an error.
func (c *Client) do(ctx context.Context, method, url string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-XSRF-Header", xsrfHeaderValue)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Read a bounded amount of the body for the error message.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s returned %d: %s", method, url, resp.StatusCode, string(snippet))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
