package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// HTTPNotifier posts envelopes to the notification service endpoint.
type HTTPNotifier struct {
	url    string
	client *http.Client
	logger *logrus.Logger
}

// NewHTTPNotifier creates a notifier targeting url.
func NewHTTPNotifier(url string, logger *logrus.Logger) *HTTPNotifier {
	return &HTTPNotifier{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Notify delivers a single envelope.
func (n *HTTPNotifier) Notify(ctx context.Context, envelope Envelope) error {
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification service returned status %d", resp.StatusCode)
	}

	n.logger.WithFields(logrus.Fields{
		"event_type": envelope.EventType,
		"org_id":     envelope.OrgID,
	}).Debug("notification delivered")
	return nil
}

// LogNotifier writes envelopes to the log instead of delivering them. Used
// when no notification endpoint is configured.
type LogNotifier struct {
	logger *logrus.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the envelope.
func (n *LogNotifier) Notify(_ context.Context, envelope Envelope) error {
	n.logger.WithFields(logrus.Fields{
		"event_type": envelope.EventType,
		"account_id": envelope.AccountID,
		"org_id":     envelope.OrgID,
	}).Info("notification event")
	return nil
}

// Recorder captures envelopes for tests.
type Recorder struct {
	mu        sync.Mutex
	Envelopes []Envelope
}

// Notify records the envelope.
func (r *Recorder) Notify(_ context.Context, envelope Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Envelopes = append(r.Envelopes, envelope)
	return nil
}

// EventTypes returns the recorded event types in delivery order.
func (r *Recorder) EventTypes() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]EventType, len(r.Envelopes))
	for i, e := range r.Envelopes {
		types[i] = e.EventType
	}
	return types
}
