package mailboxlayer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"outreach/api/pkg/metrics"
)

const defaultBaseURL = "https://apilayer.net"

// ErrNotConfigured is returned when no access key is set.
var ErrNotConfigured = errors.New("mailboxlayer API key not configured")

// Check is the subset of the mailboxlayer check response the service uses.
type Check struct {
	Email       string    `json:"email"`
	FormatValid bool      `json:"format_valid"`
	MXFound     bool      `json:"mx_found"`
	SMTPCheck   bool      `json:"smtp_check"`
	Disposable  bool      `json:"disposable"`
	Score       float64   `json:"score"`
	Error       *APIError `json:"error,omitempty"`
}

// APIError is the error envelope mailboxlayer returns with a 200 status.
type APIError struct {
	Code int    `json:"code"`
	Type string `json:"type"`
	Info string `json:"info"`
}

func (e *APIError) Error() string {
	switch {
	case e.Info != "":
		return e.Info
	case e.Type != "":
		return e.Type
	}
	return "mailboxlayer API error"
}

// Client calls the mailboxlayer SMTP verification API.
type Client struct {
	accessKey  string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a mailboxlayer client. An empty baseURL selects the
// public endpoint; a nil httpClient selects http.DefaultClient.
func NewClient(accessKey, baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		accessKey:  accessKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Configured reports whether an access key is set.
func (c *Client) Configured() bool {
	return c != nil && c.accessKey != ""
}

// Check runs an SMTP-level verification of address. A provider error
// envelope is returned as *APIError.
func (c *Client) Check(ctx context.Context, address string) (*Check, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	q := url.Values{}
	q.Set("access_key", c.accessKey)
	q.Set("email", address)
	q.Set("smtp", "1")
	q.Set("format", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/check?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create mailboxlayer request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordIntegrationError("mailboxlayer")
		return nil, fmt.Errorf("mailboxlayer request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read mailboxlayer response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		metrics.RecordIntegrationError("mailboxlayer")
		return nil, fmt.Errorf("mailboxlayer returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var check Check
	if err := json.Unmarshal(body, &check); err != nil {
		return nil, fmt.Errorf("decode mailboxlayer response: %w", err)
	}
	if check.Error != nil {
		metrics.RecordIntegrationError("mailboxlayer")
		return nil, check.Error
	}
	return &check, nil
}
