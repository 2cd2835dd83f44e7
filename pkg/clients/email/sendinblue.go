package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"outreach/api/pkg/metrics"
)

const defaultSendinblueURL = "https://api.sendinblue.com"

// SendinblueClient delivers mail through the Sendinblue (Brevo)
// transactional SMTP API.
type SendinblueClient struct {
	apiKey      string
	baseURL     string
	senderName  string
	senderEmail string
	httpClient  *http.Client
}

// NewSendinblueClient creates a client for the given API key and sender
// identity. An empty baseURL selects the public endpoint; a nil httpClient
// selects http.DefaultClient.
func NewSendinblueClient(apiKey, baseURL, senderName, senderEmail string, httpClient *http.Client) *SendinblueClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = defaultSendinblueURL
	}
	return &SendinblueClient{
		apiKey:      apiKey,
		baseURL:     strings.TrimRight(baseURL, "/"),
		senderName:  senderName,
		senderEmail: senderEmail,
		httpClient:  httpClient,
	}
}

// Validate reports a missing API key or sender address. The provider
// rejects mail without a sender.
func (c *SendinblueClient) Validate() error {
	if c.apiKey == "" {
		return fmt.Errorf("sendinblue API key not configured: %w", ErrNotConfigured)
	}
	if c.senderEmail == "" {
		return fmt.Errorf("sendinblue sender email not configured: %w", ErrNotConfigured)
	}
	return nil
}

type sendinblueAddress struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type sendinblueRequest struct {
	Sender      sendinblueAddress   `json:"sender"`
	To          []sendinblueAddress `json:"to"`
	Subject     string              `json:"subject"`
	HTMLContent string              `json:"htmlContent,omitempty"`
	TextContent string              `json:"textContent,omitempty"`
}

func (c *SendinblueClient) Send(ctx context.Context, msg Message) (*Result, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	sender := sendinblueAddress{Name: c.senderName, Email: c.senderEmail}
	if msg.From != "" {
		sender.Email = msg.From
	}
	if msg.FromName != "" {
		sender.Name = msg.FromName
	}
	payload := sendinblueRequest{
		Sender:      sender,
		To:          []sendinblueAddress{{Email: msg.To}},
		Subject:     msg.Subject,
		HTMLContent: msg.HTML,
	}
	if payload.HTMLContent == "" {
		payload.TextContent = msg.Body
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal sendinblue request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v3/smtp/email", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create sendinblue request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordIntegrationError("sendinblue")
		return nil, fmt.Errorf("sendinblue request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read sendinblue response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.RecordIntegrationError("sendinblue")
		return nil, fmt.Errorf("failed to send email: sendinblue returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var out struct {
		MessageID string `json:"messageId"`
	}
	// The body is informational; a 2xx without JSON still counts as sent.
	_ = json.Unmarshal(respBody, &out)

	return &Result{
		DeliveryStatus: "sent",
		Sent:           true,
		MessageID:      out.MessageID,
	}, nil
}
