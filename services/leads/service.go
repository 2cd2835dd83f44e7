package leads

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"outreach/api/pkg/events"
	"outreach/api/services/campaign"
	"outreach/api/services/enrichment"
	"outreach/api/services/storage"
)

// maxRequestBody limits JSON request bodies.
const maxRequestBody = 1 << 20 // 1MB

// maxUploadSize limits CSV uploads.
const maxUploadSize = 10 << 20 // 10MB

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Deps are the collaborators the HTTP layer drives.
type Deps struct {
	Store     storage.Storage
	Sender    *campaign.Sender
	Templater *campaign.Templater
	Enricher  *enrichment.Enricher
	Hub       *events.Hub
	Health    map[string]HealthCheck
}

// Service handles HTTP requests for lead and campaign operations.
type Service struct {
	store     storage.Storage
	sender    *campaign.Sender
	templater *campaign.Templater
	enricher  *enrichment.Enricher
	hub       *events.Hub
	health    map[string]HealthCheck
}

// NewService creates a leads Service. Store, Sender, Templater and Enricher
// are required.
func NewService(d Deps) (*Service, error) {
	switch {
	case d.Store == nil:
		return nil, fmt.Errorf("service: store cannot be nil")
	case d.Sender == nil:
		return nil, fmt.Errorf("service: sender cannot be nil")
	case d.Templater == nil:
		return nil, fmt.Errorf("service: templater cannot be nil")
	case d.Enricher == nil:
		return nil, fmt.Errorf("service: enricher cannot be nil")
	}
	hub := d.Hub
	if hub == nil {
		hub = events.NewHub()
	}
	return &Service{
		store:     d.Store,
		sender:    d.Sender,
		templater: d.Templater,
		enricher:  d.Enricher,
		hub:       hub,
		health:    d.Health,
	}, nil
}

// jsonMiddleware sets the Content-Type header to application/json
func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// LoadRoutes mounts the API under parentRouter. Fixed paths are registered
// before the {id} routes so they are not captured as ids.
func (s *Service) LoadRoutes(parentRouter *mux.Router) {
	router := parentRouter.PathPrefix("/leads").Subrouter()
	router.StrictSlash(false)
	router.Use(jsonMiddleware)

	router.HandleFunc("", s.HandleListLeads).Methods("GET")
	router.HandleFunc("", s.HandleCreateLead).Methods("POST")
	router.HandleFunc("", s.HandleDeleteAllLeads).Methods("DELETE")
	router.HandleFunc("/stats", s.HandleStats).Methods("GET")
	router.HandleFunc("/upload", s.HandleUpload).Methods("POST")
	router.HandleFunc("/generate", s.HandleGenerate).Methods("POST")
	router.HandleFunc("/find-emails", s.HandleFindEmails).Methods("POST")
	router.HandleFunc("/verify-email", s.HandleVerifyEmail).Methods("POST")
	router.HandleFunc("/send-bulk", s.HandleSendBulk).Methods("POST")
	router.HandleFunc("/{id}", s.HandleGetLead).Methods("GET")
	router.HandleFunc("/{id}", s.HandleUpdateLead).Methods("PATCH")
	router.HandleFunc("/{id}", s.HandleDeleteLead).Methods("DELETE")
	router.HandleFunc("/{id}/send-test", s.HandleSendTest).Methods("POST")

	runs := parentRouter.PathPrefix("/runs").Subrouter()
	runs.Use(jsonMiddleware)
	runs.HandleFunc("", s.HandleListRuns).Methods("GET")
	runs.HandleFunc("/{id}", s.HandleGetRun).Methods("GET")
	runs.HandleFunc("/{id}/cancel", s.HandleCancelRun).Methods("POST")

	parentRouter.HandleFunc("/events", s.HandleEvents).Methods("GET")
}

// LoadHealthRoutes mounts GET /health on the root router.
func (s *Service) LoadHealthRoutes(router *mux.Router) {
	router.Handle("/health", jsonMiddleware(http.HandlerFunc(s.HandleHealth))).Methods("GET")
}

// pathID parses the {id} route variable, writing a 400 when it is not a uuid.
func pathID(w http.ResponseWriter, r *http.Request, what string) (uuid.UUID, bool) {
	raw := mux.Vars(r)["id"]
	id, err := uuid.Parse(raw)
	if err != nil {
		writeErrorJSON(w, "INVALID_ID", "invalid "+what+" id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}
