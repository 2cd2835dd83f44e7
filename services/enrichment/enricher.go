package enrichment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"outreach/api/pkg/clients/prospeo"
	"outreach/api/pkg/clients/website"
	"outreach/api/pkg/events"
	"outreach/api/pkg/metrics"
	"outreach/api/services/storage"
)

// DefaultBatchSize is how many leads one enrichment pass processes unless
// the request asks otherwise. A pass runs inside a single HTTP request, so
// it stays small.
const DefaultBatchSize = 5

// MaxBatchSize caps a requested limit.
const MaxBatchSize = 50

// Confidence labels stored for addresses not scored by the verifier.
const (
	ConfidenceWebsite = "website"
	ConfidenceFinder  = "prospeo"
)

// Finder looks up a person's address from an external directory.
type Finder interface {
	Configured() bool
	FindEmail(ctx context.Context, firstName, lastName, domain string) (*prospeo.Match, error)
}

// Scraper collects contact addresses published on a website.
type Scraper interface {
	ContactEmails(ctx context.Context, site string) ([]string, error)
}

// Options tune an Enricher.
type Options struct {
	// BatchSize is the default number of leads per pass; 0 selects
	// DefaultBatchSize.
	BatchSize int
}

// Request selects the leads for one enrichment pass.
type Request struct {
	// Limit overrides the batch size when positive, up to MaxBatchSize.
	Limit int `json:"limit"`
	// RetryFailed also picks up leads whose previous enrichment failed.
	RetryFailed bool `json:"retryFailed"`
}

// Summary counts the outcomes of an enrichment pass.
type Summary struct {
	Total    int `json:"total"`
	Enriched int `json:"successCount"`
	Failed   int `json:"failCount"`
	Skipped  int `json:"skippedCount"`
}

// Enricher discovers addresses for leads that do not have one.
type Enricher struct {
	store     storage.Storage
	verifier  *Verifier
	finder    Finder
	scraper   Scraper
	events    events.Publisher
	batchSize int
}

// NewEnricher creates an Enricher. finder, scraper and pub may be nil.
func NewEnricher(store storage.Storage, verifier *Verifier, finder Finder, scraper Scraper, pub events.Publisher, opts Options) (*Enricher, error) {
	if store == nil {
		return nil, fmt.Errorf("enricher: store cannot be nil")
	}
	if verifier == nil {
		verifier = NewVerifier(nil, 0)
	}
	return &Enricher{
		store:     store,
		verifier:  verifier,
		finder:    finder,
		scraper:   scraper,
		events:    pub,
		batchSize: batchSize(opts.BatchSize),
	}, nil
}

func batchSize(n int) int {
	switch {
	case n <= 0:
		return DefaultBatchSize
	case n > MaxBatchSize:
		return MaxBatchSize
	}
	return n
}

// Verifier exposes the verifier used for pattern probing.
func (e *Enricher) Verifier() *Verifier {
	return e.verifier
}

// Run enriches up to the batch size of pending leads, one at a time.
func (e *Enricher) Run(ctx context.Context, req Request, reqID string) (Summary, error) {
	leads, err := e.store.ListLeads(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list leads: %w", err)
	}

	limit := e.batchSize
	if req.Limit > 0 {
		limit = batchSize(req.Limit)
	}

	var sum Summary
	for _, l := range leads {
		if sum.Total >= limit {
			break
		}
		if !selectable(l, req.RetryFailed) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Total++

		status, err := e.EnrichLead(ctx, l)
		if err != nil {
			if errors.Is(err, storage.ErrLeadNotFound) {
				sum.Total--
				continue
			}
			slog.Error("failed to enrich lead", "id", l.ID, "requestId", reqID, "error", err)
			sum.Failed++
			continue
		}
		switch status {
		case storage.EnrichmentEnriched:
			sum.Enriched++
		case storage.EnrichmentSkipped:
			sum.Skipped++
		default:
			sum.Failed++
		}
	}

	slog.Info("enrichment finished", "total", sum.Total, "enriched", sum.Enriched,
		"failed", sum.Failed, "skipped", sum.Skipped, "requestId", reqID)
	events.Emit(e.events, reqID, events.TypeEnrichDone, sum)
	return sum, nil
}

func selectable(l *storage.Lead, retryFailed bool) bool {
	if l.SendStatus != storage.SendPending {
		return false
	}
	switch l.EnrichmentStatus {
	case storage.EnrichmentPending:
		return true
	case storage.EnrichmentFailed:
		return retryFailed
	}
	return false
}

// EnrichLead tries each discovery strategy for one lead and records the
// outcome on it.
func (e *Enricher) EnrichLead(ctx context.Context, l *storage.Lead) (storage.EnrichmentStatus, error) {
	upd := storage.LeadUpdate{}
	status := storage.EnrichmentFailed

	domain := storage.Value(l.Domain)
	if domain == "" {
		if domain = website.Domain(storage.Value(l.Website)); domain != "" {
			upd.Domain = &domain
		}
	}

	switch {
	case storage.Value(l.Email) != "":
		status = storage.EnrichmentSkipped
	case domain == "":
		slog.Debug("no domain to enrich", "id", l.ID)
	default:
		if found, confidence := e.discover(ctx, l, domain); found != "" {
			status = storage.EnrichmentEnriched
			upd.FoundEmail = &found
			upd.EmailConfidence = &confidence
		}
	}

	upd.EnrichmentStatus = &status
	updated, err := e.store.UpdateLead(ctx, l.ID, upd)
	if err != nil {
		return "", fmt.Errorf("record enrichment: %w", err)
	}
	metrics.RecordEnrichment(string(status))
	events.Emit(e.events, "", events.TypeLeadUpdated, updated)
	return status, nil
}

// discover runs the strategies in order: published contact address, finder
// lookup, then pattern guessing with SMTP verification.
func (e *Enricher) discover(ctx context.Context, l *storage.Lead, domain string) (string, string) {
	if site := storage.Value(l.Website); site != "" && e.scraper != nil {
		addrs, err := e.scraper.ContactEmails(ctx, site)
		if err != nil {
			slog.Debug("website scrape failed", "id", l.ID, "error", err)
		}
		for _, a := range addrs {
			if website.SameDomain(a, domain) {
				return a, ConfidenceWebsite
			}
		}
	}

	if e.finder != nil && e.finder.Configured() {
		m, err := e.finder.FindEmail(ctx, l.FirstName, storage.Value(l.LastName), domain)
		switch {
		case err == nil:
			confidence := m.Confidence
			if confidence == "" {
				confidence = ConfidenceFinder
			}
			return m.Email, confidence
		case !errors.Is(err, prospeo.ErrNoMatch):
			slog.Warn("email finder failed", "id", l.ID, "error", err)
		}
	}

	if e.verifier.Configured() {
		res := e.verifier.FindValidEmail(ctx, l.FirstName, storage.Value(l.LastName), domain)
		if res.FoundEmail != "" {
			confidence := ""
			if res.Score != nil {
				confidence = strconv.FormatFloat(*res.Score, 'f', 2, 64)
			}
			return res.FoundEmail, confidence
		}
	}
	return "", ""
}
