package email

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

func TestSendinblueClient_Send(t *testing.T) {
	t.Parallel()

	var got sendinblueRequest
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/smtp/email", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		gotKey = r.Header.Get("api-key")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"messageId":"<abc@smtp>"}`))
	}))
	defer srv.Close()

	c := NewSendinblueClient("key-123", srv.URL, "Zasha", "hello@zasha.io", srv.Client())
	res, err := c.Send(context.Background(), Message{
		To:      "john@acme.com",
		Subject: "Quick idea for Acme",
		HTML:    "<p>Hi John</p>",
	})
	require.NoError(t, err)

	assert.True(t, res.Sent)
	assert.Equal(t, "<abc@smtp>", res.MessageID)
	assert.Equal(t, "key-123", gotKey)
	assert.Equal(t, "Zasha", got.Sender.Name)
	assert.Equal(t, "hello@zasha.io", got.Sender.Email)
	require.Len(t, got.To, 1)
	assert.Equal(t, "john@acme.com", got.To[0].Email)
	assert.Equal(t, "<p>Hi John</p>", got.HTMLContent)
}

func TestSendinblueClient_ProviderError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"invalid_parameter"}`))
	}))
	defer srv.Close()

	c := NewSendinblueClient("key", srv.URL, "n", "e@x.io", srv.Client())
	_, err := c.Send(context.Background(), Message{To: "a@b.co", Subject: "s", HTML: "<p>b</p>"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "invalid_parameter")
}

func TestSendinblueClient_NotConfigured(t *testing.T) {
	t.Parallel()
	c := NewSendinblueClient("", "http://127.0.0.1:1", "n", "e@x.io", nil)

	assert.ErrorIs(t, Validate(c), ErrNotConfigured)
	_, err := c.Send(context.Background(), Message{To: "a@b.co"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSendinblueClient_MissingSender(t *testing.T) {
	t.Parallel()
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewSendinblueClient("key", srv.URL, "n", "", srv.Client())
	err := Validate(c)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Contains(t, err.Error(), "sender email")

	_, err = c.Send(context.Background(), Message{To: "a@b.co", Subject: "s", HTML: "<p>b</p>"})
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Zero(t, calls)
}

func TestValidate(t *testing.T) {
	t.Parallel()
	assert.ErrorIs(t, Validate(nil), ErrNotConfigured)
	assert.NoError(t, Validate(NewStubClient("x@y.io")))
	assert.ErrorIs(t, Validate(NewSMTPClient("", 0, "", "", "", "")), ErrNotConfigured)
	assert.ErrorIs(t, Validate(NewSMTPClient("smtp.local", 587, "", "", "n", "")), ErrNotConfigured)
	assert.NoError(t, Validate(NewSMTPClient("smtp.local", 587, "", "", "n", "e@x.io")))
}

func TestSMTPClient_Send(t *testing.T) {
	t.Parallel()

	c := NewSMTPClient("smtp.local", 587, "u", "p", "Zasha", "hello@zasha.io")
	var sent *gomail.Message
	c.dial = func(m *gomail.Message) error {
		sent = m
		return nil
	}

	res, err := c.Send(context.Background(), Message{To: "a@b.co", Subject: "Hi", Body: "line", HTML: "<p>line</p>"})
	require.NoError(t, err)
	assert.True(t, res.Sent)
	require.NotNil(t, sent)
	assert.Equal(t, []string{"a@b.co"}, sent.GetHeader("To"))
	assert.Equal(t, []string{"Hi"}, sent.GetHeader("Subject"))

	c.dial = func(*gomail.Message) error { return errors.New("connection refused") }
	_, err = c.Send(context.Background(), Message{To: "a@b.co"})
	assert.ErrorContains(t, err, "connection refused")
}
