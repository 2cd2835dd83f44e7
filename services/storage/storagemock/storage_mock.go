package storagemock

import (
	"context"
	"time"

	"github.com/google/uuid"

	"outreach/api/services/storage"
)

// StorageMock lets handler tests override individual Storage methods.
// Methods without an override return a canned lead or a zero value.
type StorageMock struct {
	CreateLeadMock     func(ctx context.Context, in storage.LeadInput) (*storage.Lead, error)
	CreateLeadsMock    func(ctx context.Context, in []storage.LeadInput) ([]*storage.Lead, error)
	GetLeadMock        func(ctx context.Context, id uuid.UUID) (*storage.Lead, error)
	ListLeadsMock      func(ctx context.Context) ([]*storage.Lead, error)
	UpdateLeadMock     func(ctx context.Context, id uuid.UUID, upd storage.LeadUpdate) (*storage.Lead, error)
	UpdateLeadsMock    func(ctx context.Context, patches []storage.LeadPatch) ([]*storage.Lead, error)
	ClaimLeadMock      func(ctx context.Context, id uuid.UUID) (*storage.Lead, error)
	DeleteLeadMock     func(ctx context.Context, id uuid.UUID) (bool, error)
	DeleteAllLeadsMock func(ctx context.Context) error
}

// SampleLead is the lead returned by default from the read methods.
func SampleLead(id uuid.UUID) *storage.Lead {
	email := "john@acme.com"
	company := "Acme"
	subject := "Quick idea for Acme"
	body := "Hi John"
	return &storage.Lead{
		ID:               id,
		FirstName:        "John",
		Company:          &company,
		HasWebsite:       true,
		Email:            &email,
		EnrichmentStatus: storage.EnrichmentPending,
		SendStatus:       storage.SendPending,
		Subject:          &subject,
		MessageBody:      &body,
		CreatedAt:        time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *StorageMock) CreateLead(ctx context.Context, in storage.LeadInput) (*storage.Lead, error) {
	if m != nil && m.CreateLeadMock != nil {
		return m.CreateLeadMock(ctx, in)
	}
	l := SampleLead(uuid.New())
	l.FirstName = in.FirstName
	return l, nil
}

func (m *StorageMock) CreateLeads(ctx context.Context, in []storage.LeadInput) ([]*storage.Lead, error) {
	if m != nil && m.CreateLeadsMock != nil {
		return m.CreateLeadsMock(ctx, in)
	}
	out := make([]*storage.Lead, 0, len(in))
	for _, item := range in {
		l, _ := m.CreateLead(ctx, item)
		out = append(out, l)
	}
	return out, nil
}

func (m *StorageMock) GetLead(ctx context.Context, id uuid.UUID) (*storage.Lead, error) {
	if m != nil && m.GetLeadMock != nil {
		return m.GetLeadMock(ctx, id)
	}
	return SampleLead(id), nil
}

func (m *StorageMock) ListLeads(ctx context.Context) ([]*storage.Lead, error) {
	if m != nil && m.ListLeadsMock != nil {
		return m.ListLeadsMock(ctx)
	}
	return []*storage.Lead{}, nil
}

func (m *StorageMock) UpdateLead(ctx context.Context, id uuid.UUID, upd storage.LeadUpdate) (*storage.Lead, error) {
	if m != nil && m.UpdateLeadMock != nil {
		return m.UpdateLeadMock(ctx, id, upd)
	}
	l := SampleLead(id)
	upd.Apply(l)
	return l, nil
}

func (m *StorageMock) UpdateLeads(ctx context.Context, patches []storage.LeadPatch) ([]*storage.Lead, error) {
	if m != nil && m.UpdateLeadsMock != nil {
		return m.UpdateLeadsMock(ctx, patches)
	}
	out := make([]*storage.Lead, 0, len(patches))
	for _, p := range patches {
		l, _ := m.UpdateLead(ctx, p.ID, p.Update)
		out = append(out, l)
	}
	return out, nil
}

func (m *StorageMock) ClaimLead(ctx context.Context, id uuid.UUID) (*storage.Lead, error) {
	if m != nil && m.ClaimLeadMock != nil {
		return m.ClaimLeadMock(ctx, id)
	}
	l := SampleLead(id)
	l.SendStatus = storage.SendSending
	return l, nil
}

func (m *StorageMock) DeleteLead(ctx context.Context, id uuid.UUID) (bool, error) {
	if m != nil && m.DeleteLeadMock != nil {
		return m.DeleteLeadMock(ctx, id)
	}
	return true, nil
}

func (m *StorageMock) DeleteAllLeads(ctx context.Context) error {
	if m != nil && m.DeleteAllLeadsMock != nil {
		return m.DeleteAllLeadsMock(ctx)
	}
	return nil
}
