package website

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"outreach/api/pkg/metrics"
)

const maxPageBytes = 2 << 20

var emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

// Client scrapes contact addresses from a company homepage.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// NewClient creates a scraper. A nil httpClient gets a 10s timeout client.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{httpClient: httpClient, userAgent: "Mozilla/5.0 (compatible; outreach-bot/1.0)"}
}

// ContactEmails fetches site and returns the distinct addresses found in
// mailto links and visible text, lower-cased and sorted.
func (c *Client) ContactEmails(ctx context.Context, site string) ([]string, error) {
	u, err := NormalizeURL(site)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create website request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordIntegrationError("website")
		return nil, fmt.Errorf("fetch %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxPageBytes))
		return nil, fmt.Errorf("website returned %d for %s", resp.StatusCode, u)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", u, err)
	}
	return extractEmails(doc), nil
}

func extractEmails(doc *goquery.Document) []string {
	seen := map[string]struct{}{}
	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if emailPattern.MatchString(s) {
			seen[s] = struct{}{}
		}
	}

	doc.Find(`a[href^="mailto:"]`).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		addr := strings.TrimPrefix(href, "mailto:")
		if i := strings.IndexByte(addr, '?'); i >= 0 {
			addr = addr[:i]
		}
		if dec, err := url.QueryUnescape(addr); err == nil {
			addr = dec
		}
		for _, part := range strings.Split(addr, ",") {
			add(part)
		}
	})

	doc.Find("script, style, noscript").Remove()
	for _, m := range emailPattern.FindAllString(doc.Find("body").Text(), -1) {
		add(m)
	}

	out := make([]string, 0, len(seen))
	for e := range seen {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// NormalizeURL turns "acme.com" or "//acme.com" into an absolute https URL.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("website is empty")
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	} else if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid website %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return u.String(), nil
}

// Domain extracts the bare host of a website, lower-cased and without a
// leading "www.". It returns "" when raw is not a usable URL.
func Domain(raw string) string {
	u, err := NormalizeURL(raw)
	if err != nil {
		return ""
	}
	parsed, _ := url.Parse(u)
	host := strings.ToLower(parsed.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if !strings.Contains(host, ".") {
		return ""
	}
	return host
}

// SameDomain reports whether address belongs to domain or one of its subdomains.
func SameDomain(address, domain string) bool {
	at := strings.LastIndexByte(address, '@')
	if at < 0 || domain == "" {
		return false
	}
	host := strings.ToLower(address[at+1:])
	domain = strings.ToLower(domain)
	return host == domain || strings.HasSuffix(host, "."+domain)
}
