package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPReportBack posts a JSON summary to an executive's fan-in webhook,
// the "invoked best-effort post-reply" integration hook named by spec §4.5.
type HTTPReportBack struct {
	Client  *http.Client
	Timeout time.Duration
}

// NewHTTPReportBack builds an HTTPReportBack with sane defaults.
func NewHTTPReportBack() *HTTPReportBack {
	return &HTTPReportBack{Client: http.DefaultClient, Timeout: 5 * time.Second}
}

type reportBackPayload struct {
	Location string `json:"location"`
	Label    string `json:"label"`
	Summary  string `json:"summary"`
}

// Notify implements ReportBackNotifier.
func (h *HTTPReportBack) Notify(ctx context.Context, target ReportBackTarget, location, summary string) error {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(reportBackPayload{Location: location, Label: target.Label, Summary: summary})
	if err != nil {
		return fmt.Errorf("reportback: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("reportback: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("reportback: post to %s: %w", target.Label, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("reportback: %s returned status %d", target.Label, resp.StatusCode)
	}
	return nil
}
