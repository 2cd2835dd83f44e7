package campaign

import (
	"context"
	"fmt"
	"strings"

	"outreach/api/services/storage"
)

const (
	defaultFirstName = "there"
	defaultCompany   = "your business"
)

// Message is a generated subject and plain-text body.
type Message struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// GenerateMessage picks one of the two outreach templates depending on
// whether the lead already has a website. Blank names fall back to
// neutral placeholders.
func GenerateMessage(firstName, company string, hasWebsite bool, senderName string) Message {
	first := strings.TrimSpace(firstName)
	if first == "" {
		first = defaultFirstName
	}
	biz := strings.TrimSpace(company)
	if biz == "" {
		biz = defaultCompany
	}
	signoff := "\n\n— " + strings.TrimSpace(senderName)

	if hasWebsite {
		return Message{
			Subject: fmt.Sprintf("Quick idea for %s", biz),
			Body: fmt.Sprintf("Hi %s, noticed %s's site — quick idea to add AI automation that increases online orders and cuts staff time.\n\n"+
				"We build a small automation (menu + chatbot + order routing) that typically lifts online conversions in 30 days. "+
				"Interested in a 15-minute demo next week?", first, biz) + signoff,
		}
	}
	return Message{
		Subject: fmt.Sprintf("Build a modern site + AI for %s", biz),
		Body: fmt.Sprintf("Hi %s, I scraped your profile — I can build a modern website for %s and add simple AI automations "+
			"(chat/order/booking) so you start taking more orders online.\n\n"+
			"I can show a one-page plan and estimate in 15 minutes. When works best for a quick call?", first, biz) + signoff,
	}
}

// MessageFor generates the message for a stored lead.
func MessageFor(l *storage.Lead, senderName string) Message {
	return GenerateMessage(l.FirstName, storage.Value(l.Company), l.HasWebsite, senderName)
}

// Templater writes generated messages onto stored leads.
type Templater struct {
	store      storage.Storage
	senderName string
}

func NewTemplater(store storage.Storage, senderName string) (*Templater, error) {
	if store == nil {
		return nil, fmt.Errorf("templater: store cannot be nil")
	}
	return &Templater{store: store, senderName: senderName}, nil
}

// Apply generates and persists a message for each lead that has not been
// sent yet, returning the updated leads. Sent leads keep their message.
func (t *Templater) Apply(ctx context.Context, leads []*storage.Lead) ([]*storage.Lead, error) {
	patches := make([]storage.LeadPatch, 0, len(leads))
	for _, l := range leads {
		if l.SendStatus != storage.SendPending {
			continue
		}
		msg := MessageFor(l, t.senderName)
		patches = append(patches, storage.LeadPatch{
			ID: l.ID,
			Update: storage.LeadUpdate{
				Subject:     &msg.Subject,
				MessageBody: &msg.Body,
			},
		})
	}
	if len(patches) == 0 {
		return []*storage.Lead{}, nil
	}
	updated, err := t.store.UpdateLeads(ctx, patches)
	if err != nil {
		return updated, fmt.Errorf("apply templates: %w", err)
	}
	return updated, nil
}

// Regenerate re-applies templates to every unsent lead in the store.
func (t *Templater) Regenerate(ctx context.Context) ([]*storage.Lead, error) {
	leads, err := t.store.ListLeads(ctx)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	return t.Apply(ctx, leads)
}
