package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EnrichmentStatus tracks the email discovery lifecycle of a lead.
type EnrichmentStatus string

const (
	EnrichmentPending  EnrichmentStatus = "pending"
	EnrichmentEnriched EnrichmentStatus = "enriched"
	EnrichmentFailed   EnrichmentStatus = "failed"
	EnrichmentSkipped  EnrichmentStatus = "skipped"
)

// Valid reports whether s is one of the known enrichment states.
func (s EnrichmentStatus) Valid() bool {
	switch s {
	case EnrichmentPending, EnrichmentEnriched, EnrichmentFailed, EnrichmentSkipped:
		return true
	}
	return false
}

// SendStatus tracks the delivery lifecycle of a lead's message.
type SendStatus string

const (
	SendPending SendStatus = "pending"
	SendSending SendStatus = "sending"
	SendSent    SendStatus = "sent"
	SendFailed  SendStatus = "failed"
)

// Valid reports whether s is one of the known send states.
func (s SendStatus) Valid() bool {
	switch s {
	case SendPending, SendSending, SendSent, SendFailed:
		return true
	}
	return false
}

var (
	// ErrLeadNotFound is returned when no lead matches the requested id.
	ErrLeadNotFound = errors.New("lead not found")
	// ErrFirstNameRequired is returned when a lead would be stored without a first name.
	ErrFirstNameRequired = errors.New("first name is required")
	// ErrLeadNotPending is returned when a send claims a lead another run already took.
	ErrLeadNotPending = errors.New("lead is no longer pending")
)

// Lead is one prospective contact together with its generated message and
// enrichment/delivery state. Nullable columns are pointers so the JSON shape
// carries explicit nulls.
type Lead struct {
	ID               uuid.UUID        `json:"id"`
	FirstName        string           `json:"firstName"`
	LastName         *string          `json:"lastName"`
	Company          *string          `json:"company"`
	Website          *string          `json:"website"`
	Domain           *string          `json:"domain"`
	HasWebsite       bool             `json:"hasWebsite"`
	ProfileURL       *string          `json:"profileUrl"`
	Email            *string          `json:"email"`
	FoundEmail       *string          `json:"foundEmail"`
	EmailConfidence  *string          `json:"emailConfidence"`
	EnrichmentStatus EnrichmentStatus `json:"enrichmentStatus"`
	SendStatus       SendStatus       `json:"sendStatus"`
	Subject          *string          `json:"subject"`
	MessageBody      *string          `json:"messageBody"`
	ErrorMessage     *string          `json:"errorMessage"`
	SentAt           *time.Time       `json:"sentAt"`
	CreatedAt        time.Time        `json:"createdAt"`
}

// Address returns the address a message should go to: the original email
// if present, otherwise the discovered one, otherwise "".
func (l *Lead) Address() string {
	if v := Value(l.Email); v != "" {
		return v
	}
	return Value(l.FoundEmail)
}

// HasMessage reports whether both subject and body are set.
func (l *Lead) HasMessage() bool {
	return Value(l.Subject) != "" && Value(l.MessageBody) != ""
}

// Eligible reports whether the lead can be picked up by a bulk send.
func (l *Lead) Eligible() bool {
	return l.Address() != "" && l.HasMessage() && l.SendStatus == SendPending
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (l *Lead) Clone() *Lead {
	c := *l
	c.LastName = cloneString(l.LastName)
	c.Company = cloneString(l.Company)
	c.Website = cloneString(l.Website)
	c.Domain = cloneString(l.Domain)
	c.ProfileURL = cloneString(l.ProfileURL)
	c.Email = cloneString(l.Email)
	c.FoundEmail = cloneString(l.FoundEmail)
	c.EmailConfidence = cloneString(l.EmailConfidence)
	c.Subject = cloneString(l.Subject)
	c.MessageBody = cloneString(l.MessageBody)
	c.ErrorMessage = cloneString(l.ErrorMessage)
	if l.SentAt != nil {
		t := *l.SentAt
		c.SentAt = &t
	}
	return &c
}

// LeadInput is the creation payload for a lead.
type LeadInput struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Company    string `json:"company"`
	Website    string `json:"website"`
	Domain     string `json:"domain"`
	HasWebsite bool   `json:"hasWebsite"`
	ProfileURL string `json:"profileUrl"`
	Email      string `json:"email"`
}

// Validate rejects inputs that cannot become a lead.
func (in LeadInput) Validate() error {
	if strings.TrimSpace(in.FirstName) == "" {
		return ErrFirstNameRequired
	}
	return nil
}

// newLead builds the initial state of a lead from its input.
func newLead(id uuid.UUID, in LeadInput, now time.Time) *Lead {
	return &Lead{
		ID:               id,
		FirstName:        strings.TrimSpace(in.FirstName),
		LastName:         Ptr(in.LastName),
		Company:          Ptr(in.Company),
		Website:          Ptr(in.Website),
		Domain:           Ptr(in.Domain),
		HasWebsite:       in.HasWebsite,
		ProfileURL:       Ptr(in.ProfileURL),
		Email:            Ptr(in.Email),
		EnrichmentStatus: EnrichmentPending,
		SendStatus:       SendPending,
		CreatedAt:        now.UTC(),
	}
}

// LeadUpdate is a partial update. A nil field is left unchanged; for
// nullable text fields a pointer to "" clears the stored value.
type LeadUpdate struct {
	FirstName        *string           `json:"firstName,omitempty"`
	LastName         *string           `json:"lastName,omitempty"`
	Company          *string           `json:"company,omitempty"`
	Website          *string           `json:"website,omitempty"`
	Domain           *string           `json:"domain,omitempty"`
	HasWebsite       *bool             `json:"hasWebsite,omitempty"`
	ProfileURL       *string           `json:"profileUrl,omitempty"`
	Email            *string           `json:"email,omitempty"`
	FoundEmail       *string           `json:"foundEmail,omitempty"`
	EmailConfidence  *string           `json:"emailConfidence,omitempty"`
	EnrichmentStatus *EnrichmentStatus `json:"enrichmentStatus,omitempty"`
	SendStatus       *SendStatus       `json:"sendStatus,omitempty"`
	Subject          *string           `json:"subject,omitempty"`
	MessageBody      *string           `json:"messageBody,omitempty"`
	ErrorMessage     *string           `json:"errorMessage,omitempty"`
	SentAt           *time.Time        `json:"sentAt,omitempty"`
}

// LeadPatch pairs an update with the lead it targets.
type LeadPatch struct {
	ID     uuid.UUID
	Update LeadUpdate
}

// Validate rejects updates that would put a lead into an impossible state.
func (u LeadUpdate) Validate() error {
	if u.FirstName != nil && strings.TrimSpace(*u.FirstName) == "" {
		return ErrFirstNameRequired
	}
	if u.EnrichmentStatus != nil && !u.EnrichmentStatus.Valid() {
		return fmt.Errorf("invalid enrichment status %q", *u.EnrichmentStatus)
	}
	if u.SendStatus != nil && !u.SendStatus.Valid() {
		return fmt.Errorf("invalid send status %q", *u.SendStatus)
	}
	return nil
}

// IsEmpty reports whether the update changes nothing.
func (u LeadUpdate) IsEmpty() bool {
	return len(u.assignments()) == 0
}

// Apply writes the set fields of u onto l.
func (u LeadUpdate) Apply(l *Lead) {
	if u.FirstName != nil {
		l.FirstName = strings.TrimSpace(*u.FirstName)
	}
	setNullable(&l.LastName, u.LastName)
	setNullable(&l.Company, u.Company)
	setNullable(&l.Website, u.Website)
	setNullable(&l.Domain, u.Domain)
	if u.HasWebsite != nil {
		l.HasWebsite = *u.HasWebsite
	}
	setNullable(&l.ProfileURL, u.ProfileURL)
	setNullable(&l.Email, u.Email)
	setNullable(&l.FoundEmail, u.FoundEmail)
	setNullable(&l.EmailConfidence, u.EmailConfidence)
	if u.EnrichmentStatus != nil {
		l.EnrichmentStatus = *u.EnrichmentStatus
	}
	if u.SendStatus != nil {
		l.SendStatus = *u.SendStatus
	}
	setNullable(&l.Subject, u.Subject)
	setNullable(&l.MessageBody, u.MessageBody)
	setNullable(&l.ErrorMessage, u.ErrorMessage)
	if u.SentAt != nil {
		t := u.SentAt.UTC()
		l.SentAt = &t
	}
}

// assignment is one column = value pair of a SQL update.
type assignment struct {
	column string
	value  any
}

// assignments lists the columns touched by u in a stable order.
func (u LeadUpdate) assignments() []assignment {
	var out []assignment
	text := func(col string, v *string) {
		if v != nil {
			out = append(out, assignment{col, nullString(*v)})
		}
	}
	if u.FirstName != nil {
		out = append(out, assignment{"first_name", strings.TrimSpace(*u.FirstName)})
	}
	text("last_name", u.LastName)
	text("company", u.Company)
	text("website", u.Website)
	text("domain", u.Domain)
	if u.HasWebsite != nil {
		out = append(out, assignment{"has_website", *u.HasWebsite})
	}
	text("profile_url", u.ProfileURL)
	text("email", u.Email)
	text("found_email", u.FoundEmail)
	text("email_confidence", u.EmailConfidence)
	if u.EnrichmentStatus != nil {
		out = append(out, assignment{"enrichment_status", string(*u.EnrichmentStatus)})
	}
	if u.SendStatus != nil {
		out = append(out, assignment{"send_status", string(*u.SendStatus)})
	}
	text("subject", u.Subject)
	text("message_body", u.MessageBody)
	text("error_message", u.ErrorMessage)
	if u.SentAt != nil {
		out = append(out, assignment{"sent_at", u.SentAt.UTC()})
	}
	return out
}

// Ptr returns a pointer to the trimmed value, or nil when it is blank.
func Ptr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Value dereferences p, returning "" for nil.
func Value(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func setNullable(dst **string, v *string) {
	if v != nil {
		*dst = Ptr(*v)
	}
}

func nullString(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
