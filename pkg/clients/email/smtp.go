package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// SMTPClient delivers mail through a plain SMTP relay.
type SMTPClient struct {
	host        string
	port        int
	user        string
	password    string
	senderName  string
	senderEmail string
	dial        func(m *gomail.Message) error
}

// NewSMTPClient creates an SMTP client. Credentials may be empty for
// relays that accept unauthenticated mail.
func NewSMTPClient(host string, port int, user, password, senderName, senderEmail string) *SMTPClient {
	c := &SMTPClient{
		host:        host,
		port:        port,
		user:        user,
		password:    password,
		senderName:  senderName,
		senderEmail: senderEmail,
	}
	c.dial = func(m *gomail.Message) error {
		return gomail.NewDialer(c.host, c.port, c.user, c.password).DialAndSend(m)
	}
	return c
}

func (c *SMTPClient) Validate() error {
	if c.host == "" || c.port == 0 {
		return fmt.Errorf("smtp host not configured: %w", ErrNotConfigured)
	}
	if c.senderEmail == "" {
		return fmt.Errorf("smtp sender email not configured: %w", ErrNotConfigured)
	}
	return nil
}

func (c *SMTPClient) Send(ctx context.Context, msg Message) (*Result, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	from, name := c.senderEmail, c.senderName
	if msg.From != "" {
		from = msg.From
	}
	if msg.FromName != "" {
		name = msg.FromName
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", from, name)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)
	if msg.HTML != "" {
		m.AddAlternative("text/html", msg.HTML)
	}

	if err := c.dial(m); err != nil {
		return nil, fmt.Errorf("failed to send email via smtp: %w", err)
	}
	return &Result{DeliveryStatus: "sent", Sent: true}, nil
}
