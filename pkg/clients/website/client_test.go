package website_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outreach/api/pkg/clients/website"
)

const page = `<html><head><script>var x = "tracker@ads.example";</script></head>
<body>
  <a href="mailto:Hello@Acme.com?subject=Hi">Email us</a>
  <a href="/about">About</a>
  <footer>Orders: orders@acme.com | hello@acme.com</footer>
</body></html>`

func TestClient_ContactEmails(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	c := website.NewClient(srv.Client())
	got, err := c.ContactEmails(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello@acme.com", "orders@acme.com"}, got)
}

func TestClient_ContactEmailsNotFound(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := website.NewClient(srv.Client()).ContactEmails(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "404")
}

func TestDomain(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"https://www.Acme.com/contact": "acme.com",
		"acme.com":                     "acme.com",
		"http://shop.acme.co.uk:8080":  "shop.acme.co.uk",
		"//bakery.io/menu":             "bakery.io",
		"":                             "",
		"not a url":                    "",
		"ftp://files.acme.com":         "",
	}
	for in, want := range tests {
		assert.Equal(t, want, website.Domain(in), "Domain(%q)", in)
	}
}

func TestSameDomain(t *testing.T) {
	t.Parallel()
	assert.True(t, website.SameDomain("a@acme.com", "acme.com"))
	assert.True(t, website.SameDomain("a@mail.acme.com", "acme.com"))
	assert.False(t, website.SameDomain("a@notacme.com", "acme.com"))
	assert.False(t, website.SameDomain("nobody", "acme.com"))
}
