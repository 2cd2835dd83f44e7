package email

import (
	"context"
	"errors"
	"log/slog"
)

// ErrNotConfigured is returned when a provider is missing credentials.
var ErrNotConfigured = errors.New("email provider not configured")

// Message represents an email to be sent. HTML is optional; providers that
// only send plain text use Body.
type Message struct {
	To       string
	From     string
	FromName string
	Subject  string
	Body     string
	HTML     string
}

// Result holds the outcome of a send attempt.
type Result struct {
	DeliveryStatus string
	Sent           bool
	MessageID      string
}

// Client defines the interface for sending emails.
type Client interface {
	Send(ctx context.Context, msg Message) (*Result, error)
}

// Validator is implemented by clients that can report missing
// configuration before any message is attempted.
type Validator interface {
	Validate() error
}

// Validate reports whether c is ready to send. Clients that do not
// implement Validator are assumed ready.
func Validate(c Client) error {
	if c == nil {
		return ErrNotConfigured
	}
	if v, ok := c.(Validator); ok {
		return v.Validate()
	}
	return nil
}

// StubClient simulates sending emails by logging them.
// Used for local development without provider credentials.
type StubClient struct {
	FromAddress string
}

// NewStubClient creates an email client that logs instead of sending.
func NewStubClient(fromAddress string) *StubClient {
	return &StubClient{FromAddress: fromAddress}
}

func (c *StubClient) Send(_ context.Context, msg Message) (*Result, error) {
	from := msg.From
	if from == "" {
		from = c.FromAddress
	}
	slog.Info("sending email (stub)", "to", msg.To, "from", from, "subject", msg.Subject)
	return &Result{
		DeliveryStatus: "sent",
		Sent:           true,
	}, nil
}
