package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/areawatch/areawatch/server/alerts"
	"github.com/cyclopcam/logs"
)

// WebhookNotifier delivers alerts to an external HTTP endpoint as JSON.
// Delivery is best effort. A failed POST is reported to the caller, who
// decides whether the failure matters (the alert gate only logs it).
type WebhookNotifier struct {
	log         logs.Log
	url         string
	bearerToken string
	httpTimeout time.Duration
	client      *http.Client
}

func NewWebhookNotifier(logger logs.Log, url, bearerToken string) *WebhookNotifier {
	return &WebhookNotifier{
		log:         logger,
		url:         url,
		bearerToken: bearerToken,
		httpTimeout: 10 * time.Second,
		client:      http.DefaultClient,
	}
}

func (n *WebhookNotifier) newRequest(method, url string, body io.Reader) (*http.Request, error, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), n.httpTimeout)
	r, err := http.NewRequestWithContext(ctx, method, url, body)
	if err == nil {
		r.Header.Set("Content-Type", "application/json")
		if n.bearerToken != "" {
			r.Header.Set("Authorization", "Bearer "+n.bearerToken)
		}
	}
	return r, err, cancel
}

func (n *WebhookNotifier) Notify(alert *alerts.Alert) error {
	// SYNC-WEBHOOK-ALERT-JSON
	type alertJSON struct {
		ID             string `json:"id"`
		Time           int64  `json:"time"`
		Level          string `json:"level"`
		Message        string `json:"message"`
		ZoneID         string `json:"zoneId,omitempty"`
		DetectionCount int    `json:"detectionCount"`
	}

	aj := alertJSON{
		ID:             alert.ID,
		Time:           alert.Time.UnixMilli(),
		Level:          string(alert.Level),
		Message:        alert.Message,
		ZoneID:         alert.ZoneID,
		DetectionCount: alert.DetectionCount,
	}
	j, _ := json.Marshal(&aj)
	req, err, cancel := n.newRequest("POST", n.url, bytes.NewReader(j))
	if err != nil {
		cancel()
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	defer cancel()
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver alert %v: %w", alert.ID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook rejected alert %v: %v (%v)", alert.ID, resp.Status, string(msg))
	}
	return nil
}

// FanOut sends every alert to all of its children, and returns the first
// error encountered. Children after a failed child still receive the alert.
type FanOut struct {
	Children []alerts.Notifier
}

func (f *FanOut) Notify(alert *alerts.Alert) error {
	var firstErr error
	for _, child := range f.Children {
		if err := child.Notify(alert); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
