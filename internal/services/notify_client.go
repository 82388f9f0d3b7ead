package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bizmarket/backend/internal/events"
	"go.uber.org/zap"
)

// NotifyClient talks to the marketplace notification service, which owns
// email and in-app delivery.
type NotifyClient struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

func NewNotifyClient(baseURL string, timeout time.Duration, log *zap.Logger) *NotifyClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &NotifyClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

type Notification struct {
	UserID  string         `json:"user_id"`
	Type    string         `json:"type"`
	Text    string         `json:"text"`
	Payload map[string]any `json:"payload,omitempty"`
}

func (c *NotifyClient) Send(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/internal/notify", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("notify service returned %d: %s", resp.StatusCode, string(b))
	}
	return nil
}

// Forward sends one notification per party named in the event.
func (c *NotifyClient) Forward(ctx context.Context, event events.Event) error {
	text := NotificationText(event)
	var firstErr error
	for _, userID := range event.Recipients() {
		err := c.Send(ctx, Notification{UserID: userID, Type: event.Type, Text: text, Payload: event.Payload})
		if err != nil {
			c.log.Warn("failed to send notification",
				zap.String("type", event.Type),
				zap.String("user_id", userID),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// NotificationText renders a short human message for an event.
func NotificationText(event events.Event) string {
	status, _ := event.Payload["status"].(string)
	switch event.Type {
	case events.EventEscrowStatusChanged:
		return fmt.Sprintf("Escrow status is now %s.", status)
	case events.EventEscrowFeeInvoiced:
		return "A platform fee invoice was issued for your escrow."
	case events.EventEscrowFeeTransferred:
		return "The platform fee for your escrow has been settled."
	case events.EventTaskConfirmed:
		taskStatus, _ := event.Payload["task_status"].(string)
		if taskStatus == "complete" {
			return "A migration task was confirmed by both parties."
		}
		return "A migration task is waiting for your confirmation."
	case events.EventChecklistCompleted:
		return "All migration tasks are complete."
	default:
		return fmt.Sprintf("Event: %s", event.Type)
	}
}
