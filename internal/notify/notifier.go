package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Template kinds for owner notifications
const (
	TemplateWalletFunded        = "wallet_funded"
	TemplateSubscriptionExpired = "subscription_expired"
	TemplateTransferCompleted   = "fund_transfer_completed"
)

// Notifier delivers owner notifications. Delivery is best-effort:
// failures are logged and swallowed, never propagated into financial
// state.
type Notifier interface {
	Notify(recipient, templateKind string, data map[string]any) error
}

// WebhookNotifier posts notification events to the notification
// service's webhook endpoint.
type WebhookNotifier struct {
	url        string
	httpClient *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:        url,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func (n *WebhookNotifier) Notify(recipient, templateKind string, data map[string]any) error {
	if n.url == "" {
		log.Printf("[NOTIFY] No notification endpoint configured, dropping %s for %s", templateKind, recipient)
		return nil
	}

	payload := map[string]any{
		"recipient": recipient,
		"template":  templateKind,
		"data":      data,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, n.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("notification service returned status %d", resp.StatusCode)
}
