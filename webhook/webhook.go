// Package webhook posts audit lifecycle events to caller-supplied
// endpoints, with HMAC signing and a short retry schedule.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/seolens/seolens/models"
)

const deliverTimeout = 10 * time.Second

// retrySchedule is the wait before each redelivery attempt. The first
// attempt is immediate.
var retrySchedule = []time.Duration{1 * time.Second, 5 * time.Second, 30 * time.Second}

// client is shared across deliveries so connections to a busy endpoint
// are reused.
var client = &http.Client{Timeout: deliverTimeout}

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string `json:"type"` // "report.completed", "report.failed", "batch.completed"
	ReportID  string `json:"report_id,omitempty"`
	BatchID   string `json:"batch_id,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data"`
}

// ReportCompleted builds the event delivered when an async audit
// finishes. Data carries the full report.
func ReportCompleted(report *models.AuditReport) *Event {
	return &Event{
		Type:      "report.completed",
		ReportID:  report.ID,
		Timestamp: time.Now().Unix(),
		Data:      report,
	}
}

// ReportFailed builds the event delivered when an async audit cannot
// produce a report.
func ReportFailed(reportID string, detail *models.ErrorDetail) *Event {
	return &Event{
		Type:      "report.failed",
		ReportID:  reportID,
		Timestamp: time.Now().Unix(),
		Data:      detail,
	}
}

// BatchCompleted builds the event delivered when a batch job finishes.
func BatchCompleted(batchID string, data any) *Event {
	return &Event{
		Type:      "batch.completed",
		BatchID:   batchID,
		Timestamp: time.Now().Unix(),
		Data:      data,
	}
}

// ref returns the event's report or batch ID for log fields.
func (e *Event) ref() string {
	if e.ReportID != "" {
		return e.ReportID
	}
	return e.BatchID
}

// Deliver posts one event to url. With a non-empty secret the body is
// signed and the signature sent as X-Seolens-Signature: sha256=<hex>.
// Any non-2xx answer is an error so the caller can retry.
func Deliver(ctx context.Context, url, secret string, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Seolens-Webhook/1.0")
	if secret != "" {
		req.Header.Set("X-Seolens-Signature", sign(body, secret))
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: post: %w", err)
	}
	// Drain so the keep-alive connection goes back to the pool.
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("webhook: endpoint answered status %d", resp.StatusCode)
	}
	return nil
}

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// DeliverAsync posts the event from a goroutine, retrying per
// retrySchedule. Exhausted deliveries are logged and dropped; the report
// itself stays retrievable through the store.
func DeliverAsync(url, secret string, event *Event) {
	go func() {
		fields := []any{"url", url, "event", event.Type, "id", event.ref()}

		for attempt := 0; attempt <= len(retrySchedule); attempt++ {
			if attempt > 0 {
				time.Sleep(retrySchedule[attempt-1])
			}

			ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
			err := Deliver(ctx, url, secret, event)
			cancel()

			if err == nil {
				slog.Info("webhook delivered", append(fields, "attempt", attempt+1)...)
				return
			}
			slog.Warn("webhook delivery failed", append(fields, "attempt", attempt+1, "error", err)...)
		}
		slog.Error("webhook delivery exhausted all retries", fields...)
	}()
}
