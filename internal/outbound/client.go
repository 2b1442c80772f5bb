package outbound

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"whatsapp-gateway/internal/config"
)

// Client sends text messages through the Meta Cloud API.
//
// One responsibility: a single POST to {base}/{phone_number_id}/messages with
// bearer auth. Missing credentials short-circuit to a failure result before
// any network activity.
type Client struct {
	cfg  config.WhatsAppConfig
	http *http.Client
}

const sendTimeout = 30 * time.Second

func NewClient(cfg config.WhatsAppConfig) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: sendTimeout},
	}
}

// NewClientWithHTTP injects the HTTP client, for tests.
func NewClientWithHTTP(cfg config.WhatsAppConfig, hc *http.Client) *Client {
	if hc == nil {
		return NewClient(cfg)
	}
	return &Client{cfg: cfg, http: hc}
}

// SendResult is the uniform outcome of one send attempt. HTTP-level and
// transport-level failures are distinguished in Error but share the same
// shape for the caller.
type SendResult struct {
	Success   bool
	MessageID string
	// Response is the raw provider response body, when one was received.
	Response json.RawMessage
	Error    string
}

type textEnvelope struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type textBody struct {
	Body string `json:"body"`
}

// SendText delivers one text message. The result is never an error value:
// every failure mode collapses into SendResult so the caller can persist it.
func (c *Client) SendText(ctx context.Context, to, body string) SendResult {
	if c.cfg.AccessToken == "" || c.cfg.PhoneNumberID == "" {
		return SendResult{
			Error: "WhatsApp API credentials not configured. Set WHATSAPP_ACCESS_TOKEN and WHATSAPP_PHONE_NUMBER_ID.",
		}
	}

	url := fmt.Sprintf("%s/%s/messages", c.cfg.APIBaseURL, c.cfg.PhoneNumberID)

	payload, err := json.Marshal(textEnvelope{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             textBody{Body: body},
	})
	if err != nil {
		return SendResult{Error: fmt.Sprintf("Request Error: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return SendResult{Error: fmt.Sprintf("Request Error: %v", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// Timeouts and connection failures land here.
		return SendResult{Error: fmt.Sprintf("Request Error: %v", err)}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return SendResult{
			Response: rawJSON(raw),
			Error:    fmt.Sprintf("HTTP Error: %d - %s", resp.StatusCode, string(raw)),
		}
	}

	var parsed struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return SendResult{
			Response: rawJSON(raw),
			Error:    fmt.Sprintf("Request Error: invalid response body: %v", err),
		}
	}

	var messageID string
	if len(parsed.Messages) > 0 {
		messageID = parsed.Messages[0].ID
	}

	return SendResult{
		Success:   true,
		MessageID: messageID,
		Response:  rawJSON(raw),
	}
}

// rawJSON keeps only bodies that are valid JSON; anything else is dropped so
// the stored api_response column stays queryable.
func rawJSON(b []byte) json.RawMessage {
	if len(b) == 0 || !json.Valid(b) {
		return nil
	}
	return json.RawMessage(b)
}
