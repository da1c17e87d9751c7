package events

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	SignatureHeader = "X-Webhook-Signature"
	EventNameHeader = "X-Event-Name"
	EventIDHeader   = "X-Event-ID"
)

// WebhookSink POSTs each event as JSON to a single URL. There are no
// retries; a failed delivery is logged by the bus and dropped.
type WebhookSink struct {
	client *resty.Client
	url    string
	secret string
}

func NewWebhookSink(url, secret string, timeout time.Duration) *WebhookSink {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &WebhookSink{client: client, url: url, secret: secret}
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Handle(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req := s.client.R().
		SetContext(ctx).
		SetHeader(EventNameHeader, ev.Name).
		SetHeader(EventIDHeader, ev.ID).
		SetBody(body)
	if s.secret != "" {
		req.SetHeader(SignatureHeader, "sha256="+Sign(s.secret, body))
	}

	resp, err := req.Post(s.url)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook responded with status %d", resp.StatusCode())
	}
	return nil
}

// Sign returns the hex-encoded HMAC-SHA256 of body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a "sha256=<hex>" header value against body.
func VerifySignature(secret string, body []byte, header string) bool {
	return hmac.Equal([]byte("sha256="+Sign(secret, body)), []byte(header))
}
