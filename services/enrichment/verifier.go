package enrichment

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"outreach/api/pkg/clients/mailboxlayer"
	"outreach/api/pkg/metrics"
)

const (
	// ValidScoreThreshold is the quality score an SMTP-confirmed address
	// must exceed to count as valid.
	ValidScoreThreshold = 0.7
	// DefaultProbeInterval spaces consecutive verification probes.
	DefaultProbeInterval = 500 * time.Millisecond
)

// VerificationResult is the outcome of one verification probe. Failures
// are reported in Error, never as a Go error.
type VerificationResult struct {
	Email     string   `json:"email"`
	Valid     bool     `json:"valid"`
	Score     *float64 `json:"score"`
	SMTPCheck bool     `json:"smtpCheck"`
	Error     string   `json:"error,omitempty"`
}

// FindResult is the outcome of probing a person's candidate addresses.
type FindResult struct {
	FoundEmail string               `json:"foundEmail"`
	Score      *float64             `json:"score"`
	Guesses    []EmailGuess         `json:"guesses"`
	Results    []VerificationResult `json:"verificationResults"`
}

// Checker is the SMTP verification backend.
type Checker interface {
	Configured() bool
	Check(ctx context.Context, address string) (*mailboxlayer.Check, error)
}

type pacer interface {
	Wait(ctx context.Context) error
}

// Verifier checks candidate addresses against an SMTP verification service.
type Verifier struct {
	checker  Checker
	interval time.Duration
	newPacer func(time.Duration) pacer
}

// NewVerifier creates a Verifier. An interval of zero uses DefaultProbeInterval.
func NewVerifier(checker Checker, interval time.Duration) *Verifier {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	return &Verifier{
		checker:  checker,
		interval: interval,
		newPacer: func(d time.Duration) pacer { return rate.NewLimiter(rate.Every(d), 1) },
	}
}

// Configured reports whether probes can reach the verification service.
func (v *Verifier) Configured() bool {
	return v != nil && v.checker != nil && v.checker.Configured()
}

// Verify probes a single address.
func (v *Verifier) Verify(ctx context.Context, address string) VerificationResult {
	address = strings.TrimSpace(address)
	res := VerificationResult{Email: address}
	if !v.Configured() {
		res.Error = mailboxlayer.ErrNotConfigured.Error()
		metrics.RecordVerification("unconfigured")
		return res
	}
	if address == "" {
		res.Error = "email is required"
		return res
	}

	check, err := v.checker.Check(ctx, address)
	if err != nil {
		var apiErr *mailboxlayer.APIError
		if errors.As(err, &apiErr) {
			res.Error = apiErr.Error()
		} else {
			res.Error = err.Error()
		}
		metrics.RecordVerification("error")
		return res
	}

	score := check.Score
	res.Score = &score
	res.SMTPCheck = check.SMTPCheck
	res.Valid = check.SMTPCheck && score > ValidScoreThreshold
	if res.Valid {
		metrics.RecordVerification("valid")
	} else {
		metrics.RecordVerification("invalid")
	}
	return res
}

// FindValidEmail probes the candidate addresses for a person one at a time,
// in pattern order, spaced by the probe interval. It stops at the first
// valid address; cancelling ctx stops probing early.
func (v *Verifier) FindValidEmail(ctx context.Context, firstName, lastName, domain string) FindResult {
	guesses := GeneratePatterns(firstName, lastName, domain)
	out := FindResult{Guesses: guesses, Results: []VerificationResult{}}
	if len(guesses) == 0 {
		return out
	}

	p := v.newPacer(v.interval)
	for _, g := range guesses {
		if err := p.Wait(ctx); err != nil {
			break
		}
		res := v.Verify(ctx, g.Email)
		out.Results = append(out.Results, res)
		if res.Valid {
			out.FoundEmail = res.Email
			out.Score = res.Score
			break
		}
		if !v.Configured() {
			break
		}
	}
	return out
}
