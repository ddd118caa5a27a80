package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/EstateFlowDigital/photoproos-sub008/internal/domain"
	"github.com/EstateFlowDigital/photoproos-sub008/internal/logging"
)

type WebhookClient struct {
	url        string
	httpClient *http.Client
}

func NewWebhookClient(url string) *WebhookClient {
	return &WebhookClient{
		url: url,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type Payload struct {
	EventID        string    `json:"event_id"`
	EventType      string    `json:"event_type"`
	AccountID      string    `json:"account_id"`
	ClientID       string    `json:"client_id"`
	Balance        string    `json:"balance"`
	Threshold      string    `json:"threshold"`
	BalanceCents   int64     `json:"balance_cents"`
	ThresholdCents int64     `json:"threshold_cents"`
	OccurredAt     time.Time `json:"occurred_at"`
}

func NewPayload(event domain.AlertEvent) Payload {
	return Payload{
		EventID:        event.ID.String(),
		EventType:      string(event.EventType),
		AccountID:      event.AccountID.String(),
		ClientID:       event.ClientID.String(),
		Balance:        domain.FormatCents(event.BalanceCents),
		Threshold:      domain.FormatCents(event.ThresholdCents),
		BalanceCents:   event.BalanceCents,
		ThresholdCents: event.ThresholdCents,
		OccurredAt:     event.CreatedAt,
	}
}

func (c *WebhookClient) Send(ctx context.Context, event domain.AlertEvent) error {
	log := logging.FromContext(ctx)

	body, err := json.Marshal(NewPayload(event))
	if err != nil {
		return fmt.Errorf("Send: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("Send: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", event.ID.String())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("Send: %w", err)
	}
	defer resp.Body.Close()

	log.Info("alert webhook response received",
		"alert_event_id", event.ID,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("Send: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
