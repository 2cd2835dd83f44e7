package leads

import (
	"errors"
	"log/slog"
	"math"
	"net/http"

	"outreach/api/pkg/events"
	"outreach/api/services/ingest"
	"outreach/api/services/storage"
)

// Stats summarizes the lead table for the dashboard.
type Stats struct {
	Total          int     `json:"total"`
	WithEmail      int     `json:"withEmail"`
	WithEmailShare float64 `json:"withEmailPercentage"`
	Sent           int     `json:"sent"`
	Failed         int     `json:"failed"`
	Pending        int     `json:"pending"`
	Enriched       int     `json:"enriched"`
}

func computeStats(leads []*storage.Lead) Stats {
	var st Stats
	st.Total = len(leads)
	for _, l := range leads {
		if l.Address() != "" {
			st.WithEmail++
		}
		switch l.SendStatus {
		case storage.SendSent:
			st.Sent++
		case storage.SendFailed:
			st.Failed++
		case storage.SendPending, storage.SendSending:
			st.Pending++
		}
		if l.EnrichmentStatus == storage.EnrichmentEnriched {
			st.Enriched++
		}
	}
	if st.Total > 0 {
		st.WithEmailShare = math.Round(float64(st.WithEmail)*1000/float64(st.Total)) / 10
	}
	return st
}

// HandleListLeads returns every lead in creation order.
func (s *Service) HandleListLeads(w http.ResponseWriter, r *http.Request) {
	rid := reqID(r)
	leads, err := s.store.ListLeads(r.Context())
	if err != nil {
		slog.Error("failed to list leads", "requestId", rid, "error", err)
		writeErrorJSON(w, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, r, http.StatusOK, leads)
}

// HandleStats returns dashboard counters.
func (s *Service) HandleStats(w http.ResponseWriter, r *http.Request) {
	rid := reqID(r)
	leads, err := s.store.ListLeads(r.Context())
	if err != nil {
		slog.Error("failed to list leads for stats", "requestId", rid, "error", err)
		writeErrorJSON(w, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, r, http.StatusOK, computeStats(leads))
}

// HandleGetLead returns a single lead.
func (s *Service) HandleGetLead(w http.ResponseWriter, r *http.Request) {
	rid := reqID(r)
	id, ok := pathID(w, r, "lead")
	if !ok {
		return
	}
	lead, err := s.store.GetLead(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrLeadNotFound) {
			writeErrorJSON(w, "NOT_FOUND", "lead not found", http.StatusNotFound)
			return
		}
		slog.Error("failed to get lead", "id", id, "requestId", rid, "error", err)
		writeErrorJSON(w, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, r, http.StatusOK, lead)
}

// HandleCreateLead creates one lead and generates its message.
func (s *Service) HandleCreateLead(w http.ResponseWriter, r *http.Request) {
	rid := reqID(r)
	var in storage.LeadInput
	if !decodeBody(w, r, &in) {
		return
	}
	if err := in.Validate(); err != nil {
		writeErrorJSON(w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	lead, err := s.store.CreateLead(ctx, in)
	if err != nil {
		slog.Error("failed to create lead", "requestId", rid, "error", err)
		writeErrorJSON(w, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		return
	}
	templated, err := s.templater.Apply(ctx, []*storage.Lead{lead})
	if err != nil {
		slog.Warn("failed to generate message", "id", lead.ID, "requestId", rid, "error", err)
	} else if len(templated) == 1 {
		lead = templated[0]
	}
	slog.Info("lead created", "id", lead.ID, "requestId", rid)
	writeJSON(w, r, http.StatusCreated, lead)
}

// HandleUpdateLead applies a partial update to a lead.
func (s *Service) HandleUpdateLead(w http.ResponseWriter, r *http.Request) {
	rid := reqID(r)
	id, ok := pathID(w, r, "lead")
	if !ok {
		return
	}
	var upd storage.LeadUpdate
	if !decodeBody(w, r, &upd) {
		return
	}
	if err := upd.Validate(); err != nil {
		writeErrorJSON(w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	lead, err := s.store.UpdateLead(r.Context(), id, upd)
	if err != nil {
		if errors.Is(err, storage.ErrLeadNotFound) {
			writeErrorJSON(w, "NOT_FOUND", "lead not found", http.StatusNotFound)
			return
		}
		slog.Error("failed to update lead", "id", id, "requestId", rid, "error", err)
		writeErrorJSON(w, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		return
	}
	events.Emit(s.hub, rid, events.TypeLeadUpdated, lead)
	writeJSON(w, r, http.StatusOK, lead)
}

// HandleDeleteLead removes a lead.
func (s *Service) HandleDeleteLead(w http.ResponseWriter, r *http.Request) {
	rid := reqID(r)
	id, ok := pathID(w, r, "lead")
	if !ok {
		return
	}
	removed, err := s.store.DeleteLead(r.Context(), id)
	if err != nil {
		slog.Error("failed to delete lead", "id", id, "requestId", rid, "error", err)
		writeErrorJSON(w, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		return
	}
	if !removed {
		writeErrorJSON(w, "NOT_FOUND", "lead not found", http.StatusNotFound)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"success": true, "deleted": true})
}

// HandleDeleteAllLeads empties the lead table.
func (s *Service) HandleDeleteAllLeads(w http.ResponseWriter, r *http.Request) {
	rid := reqID(r)
	if err := s.store.DeleteAllLeads(r.Context()); err != nil {
		slog.Error("failed to delete leads", "requestId", rid, "error", err)
		writeErrorJSON(w, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		return
	}
	slog.Info("all leads deleted", "requestId", rid)
	writeJSON(w, r, http.StatusOK, map[string]any{"success": true})
}

// HandleUpload imports leads from a CSV file in the multipart field "file".
func (s *Service) HandleUpload(w http.ResponseWriter, r *http.Request) {
	rid := reqID(r)
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, _, err := r.FormFile("file")
	if err != nil {
		slog.Warn("missing upload file", "requestId", rid, "error", err)
		writeErrorJSON(w, "INVALID_BODY", "no file uploaded", http.StatusBadRequest)
		return
	}
	defer file.Close()

	inputs, rowErrs, err := ingest.Parse(file)
	if err != nil {
		slog.Warn("failed to parse upload", "requestId", rid, "error", err)
		writeErrorJSON(w, "INVALID_CSV", err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	created, err := s.store.CreateLeads(ctx, inputs)
	if err != nil && len(created) == 0 && len(inputs) > 0 {
		slog.Error("failed to store uploaded leads", "requestId", rid, "error", err)
		writeErrorJSON(w, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		return
	}
	if err != nil {
		slog.Warn("some uploaded leads were not stored", "requestId", rid, "error", err)
	}

	templated, err := s.templater.Apply(ctx, created)
	if err != nil {
		slog.Warn("failed to generate messages for upload", "requestId", rid, "error", err)
		templated = created
	}

	slog.Info("leads uploaded", "count", len(templated), "rejected", len(rowErrs), "requestId", rid)
	resp := map[string]any{
		"success":    true,
		"leadsCount": len(templated),
		"leads":      templated,
	}
	if len(rowErrs) > 0 {
		resp["errors"] = rowErrs
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// HandleGenerate regenerates messages for every lead that has not been sent.
func (s *Service) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	rid := reqID(r)
	updated, err := s.templater.Regenerate(r.Context())
	if err != nil {
		slog.Error("failed to regenerate messages", "requestId", rid, "error", err)
		writeErrorJSON(w, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"success": true, "count": len(updated)})
}
