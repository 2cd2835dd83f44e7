package mailboxlayer_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outreach/api/pkg/clients/mailboxlayer"
)

func TestClient_Check(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/check", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "secret", q.Get("access_key"))
		assert.Equal(t, "john.doe@acme.com", q.Get("email"))
		assert.Equal(t, "1", q.Get("smtp"))
		assert.Equal(t, "1", q.Get("format"))
		_, _ = w.Write([]byte(`{"email":"john.doe@acme.com","format_valid":true,"mx_found":true,"smtp_check":true,"score":0.96}`))
	}))
	defer srv.Close()

	c := mailboxlayer.NewClient("secret", srv.URL, srv.Client())
	check, err := c.Check(context.Background(), "john.doe@acme.com")
	require.NoError(t, err)
	assert.True(t, check.SMTPCheck)
	assert.InDelta(t, 0.96, check.Score, 1e-9)
}

func TestClient_CheckErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{
			name:    "error envelope",
			status:  http.StatusOK,
			body:    `{"success":false,"error":{"code":101,"type":"invalid_access_key","info":"You have not supplied a valid API Access Key."}}`,
			wantMsg: "You have not supplied a valid API Access Key.",
		},
		{
			name:    "error envelope without info",
			status:  http.StatusOK,
			body:    `{"success":false,"error":{"code":104,"type":"usage_limit_reached"}}`,
			wantMsg: "usage_limit_reached",
		},
		{
			name:    "non-200",
			status:  http.StatusBadGateway,
			body:    "upstream down",
			wantMsg: "mailboxlayer returned 502: upstream down",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := mailboxlayer.NewClient("k", srv.URL, srv.Client())
			_, err := c.Check(context.Background(), "a@b.co")
			require.Error(t, err)
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}

func TestClient_NotConfigured(t *testing.T) {
	t.Parallel()
	c := mailboxlayer.NewClient("", "", nil)
	assert.False(t, c.Configured())
	_, err := c.Check(context.Background(), "a@b.co")
	assert.True(t, errors.Is(err, mailboxlayer.ErrNotConfigured))
}
