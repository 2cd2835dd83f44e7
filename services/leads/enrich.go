package leads

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"outreach/api/services/enrichment"
)

// findEmailsTimeout bounds one synchronous enrichment pass.
const findEmailsTimeout = 3 * time.Minute

// HandleFindEmails runs one enrichment pass and returns its summary.
func (s *Service) HandleFindEmails(w http.ResponseWriter, r *http.Request) {
	rid := reqID(r)
	var req enrichment.Request
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Limit < 0 {
		writeErrorJSON(w, "VALIDATION_ERROR", "limit must not be negative", http.StatusBadRequest)
		return
	}

	// A pass makes several remote lookups per lead, which can outlast the
	// server write timeout.
	ctx, cancel := context.WithTimeout(r.Context(), findEmailsTimeout)
	defer cancel()
	_ = http.NewResponseController(w).SetWriteDeadline(time.Now().Add(findEmailsTimeout + 5*time.Second))

	sum, err := s.enricher.Run(ctx, req, rid)
	if err != nil {
		slog.Error("email discovery failed", "requestId", rid, "error", err)
		writeErrorJSON(w, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, r, http.StatusOK, sum)
}

// HandleVerifyEmail probes a single address.
func (s *Service) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	writeJSON(w, r, http.StatusOK, s.enricher.Verifier().Verify(r.Context(), body.Email))
}
