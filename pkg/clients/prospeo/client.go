package prospeo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"outreach/api/pkg/metrics"
)

const defaultBaseURL = "https://api.prospeo.io"

var (
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("prospeo API key not configured")
	// ErrNoMatch is returned when the finder has no address for the person.
	ErrNoMatch = errors.New("no email found")
)

// Match is an address returned by the email finder.
type Match struct {
	Email      string
	Confidence string
}

// Client calls the Prospeo email-finder API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Prospeo client. An empty baseURL selects the public
// endpoint; a nil httpClient selects http.DefaultClient.
func NewClient(apiKey, baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

type findRequest struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	CompanyDomain string `json:"company_domain"`
}

type findResponse struct {
	Email      string          `json:"email"`
	Score      json.RawMessage `json:"score"`
	Confidence json.RawMessage `json:"confidence"`
	Message    string          `json:"message"`
}

// FindEmail looks up the address of a person at domain.
func (c *Client) FindEmail(ctx context.Context, firstName, lastName, domain string) (*Match, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(domain) == "" {
		return nil, errors.New("domain is required")
	}

	body, err := json.Marshal(findRequest{FirstName: firstName, LastName: lastName, CompanyDomain: domain})
	if err != nil {
		return nil, fmt.Errorf("marshal prospeo request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/email-finder", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create prospeo request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-KEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordIntegrationError("prospeo")
		return nil, fmt.Errorf("prospeo request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read prospeo response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.RecordIntegrationError("prospeo")
		return nil, fmt.Errorf("prospeo returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var out findResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("decode prospeo response: %w", err)
	}
	if out.Email == "" {
		if out.Message != "" {
			return nil, fmt.Errorf("%w: %s", ErrNoMatch, out.Message)
		}
		return nil, ErrNoMatch
	}

	confidence := scalar(out.Score)
	if confidence == "" {
		confidence = scalar(out.Confidence)
	}
	return &Match{Email: strings.ToLower(strings.TrimSpace(out.Email)), Confidence: confidence}, nil
}

// scalar renders a JSON number or string as text; anything else is "".
func scalar(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil && f != 0 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}
