// Package notify posts license alerts to a Slack incoming webhook.
// Notification failures are logged and never fail the triggering operation.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"pfagent/internal/domain"
)

// Notifier sends Slack alerts for licenses in WARNING or EXPIRED state.
// A Notifier with an empty webhook URL is disabled and silently drops
// everything.
type Notifier struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a notifier for the given webhook URL. Pass an empty URL to
// disable alerting.
func New(webhookURL string, logger *slog.Logger) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether a webhook URL is configured.
func (n *Notifier) Enabled() bool {
	return n.webhookURL != ""
}

// LicenseAlert posts an alert for one instance summary. OK summaries are
// ignored.
func (n *Notifier) LicenseAlert(ctx context.Context, summary domain.InstanceSummary) {
	if !n.Enabled() {
		return
	}

	var text string
	switch summary.Status {
	case domain.StatusWarning:
		text = fmt.Sprintf("PF License WARNING: instance=%s expires in %dd (%s)",
			summary.InstanceID, summary.DaysToExpiry, summary.ExpiryDate)
	case domain.StatusExpired:
		text = fmt.Sprintf("PF License EXPIRED: instance=%s expired %dd ago (%s)",
			summary.InstanceID, -summary.DaysToExpiry, summary.ExpiryDate)
	default:
		return
	}

	n.post(ctx, text)
}

func (n *Notifier) post(ctx context.Context, text string) {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		n.logger.ErrorContext(ctx, "failed to encode slack payload", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		n.logger.ErrorContext(ctx, "failed to build slack request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.WarnContext(ctx, "slack notification failed", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		n.logger.WarnContext(ctx, "slack webhook rejected notification", "status", resp.StatusCode)
	}
}
