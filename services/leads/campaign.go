package leads

import (
	"errors"
	"log/slog"
	"net/http"

	"outreach/api/pkg/clients/email"
	"outreach/api/services/campaign"
	"outreach/api/services/storage"
)

// HandleSendBulk starts a throttled send to every eligible lead and returns
// the run handle with 202. Progress is published on /api/events.
func (s *Service) HandleSendBulk(w http.ResponseWriter, r *http.Request) {
	rid := reqID(r)
	body := struct {
		ThrottlePerSecond *int `json:"throttlePerSecond"`
	}{}
	if !decodeBody(w, r, &body) {
		return
	}
	throttle := campaign.DefaultThrottlePerSecond
	if body.ThrottlePerSecond != nil {
		throttle = *body.ThrottlePerSecond
	}

	run, err := s.sender.Start(r.Context(), throttle, rid)
	if err != nil {
		switch {
		case errors.Is(err, campaign.ErrInvalidThrottle):
			writeErrorJSON(w, "INVALID_THROTTLE", err.Error(), http.StatusBadRequest)
		case errors.Is(err, email.ErrNotConfigured):
			slog.Warn("bulk send without a configured mail provider", "requestId", rid, "error", err)
			writeErrorJSON(w, "EMAIL_NOT_CONFIGURED", "email provider is not configured", http.StatusServiceUnavailable)
		default:
			slog.Error("failed to start bulk send", "requestId", rid, "error", err)
			writeErrorJSON(w, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, r, http.StatusAccepted, run.Snapshot())
}

// HandleSendTest sends a lead's message once without changing its status.
func (s *Service) HandleSendTest(w http.ResponseWriter, r *http.Request) {
	rid := reqID(r)
	id, ok := pathID(w, r, "lead")
	if !ok {
		return
	}

	res, err := s.sender.SendTest(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrLeadNotFound):
			writeErrorJSON(w, "NOT_FOUND", "lead not found", http.StatusNotFound)
		case errors.Is(err, campaign.ErrMissingAddress):
			writeErrorJSON(w, "VALIDATION_ERROR", "Lead has no email address", http.StatusBadRequest)
		case errors.Is(err, campaign.ErrMissingMessage):
			writeErrorJSON(w, "VALIDATION_ERROR", "Lead has no message template", http.StatusBadRequest)
		case errors.Is(err, email.ErrNotConfigured):
			writeErrorJSON(w, "EMAIL_NOT_CONFIGURED", "email provider is not configured", http.StatusServiceUnavailable)
		default:
			slog.Warn("test send failed", "id", id, "requestId", rid, "error", err)
			writeErrorJSON(w, "SEND_FAILED", err.Error(), http.StatusBadGateway)
		}
		return
	}
	slog.Info("test email sent", "id", id, "messageId", res.MessageID, "requestId", rid)
	writeJSON(w, r, http.StatusOK, map[string]any{"success": true, "result": res})
}

// HandleListRuns returns every bulk send started since the process began.
func (s *Service) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.sender.Runs())
}

// HandleGetRun returns a bulk send's progress.
func (s *Service) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "run")
	if !ok {
		return
	}
	run, found := s.sender.Run(id)
	if !found {
		writeErrorJSON(w, "NOT_FOUND", "run not found", http.StatusNotFound)
		return
	}
	writeJSON(w, r, http.StatusOK, run.Snapshot())
}

// HandleCancelRun stops a bulk send before its next lead. Cancelling a
// finished run is a no-op.
func (s *Service) HandleCancelRun(w http.ResponseWriter, r *http.Request) {
	rid := reqID(r)
	id, ok := pathID(w, r, "run")
	if !ok {
		return
	}
	run, found := s.sender.Run(id)
	if !found {
		writeErrorJSON(w, "NOT_FOUND", "run not found", http.StatusNotFound)
		return
	}
	run.Cancel()
	slog.Info("bulk send cancel requested", "runId", id, "requestId", rid)
	writeJSON(w, r, http.StatusOK, run.Snapshot())
}

// HandleEvents streams lead and run events as server-sent events.
func (s *Service) HandleEvents(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeSSE(w, r, reqID(r))
}
