package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage keeps leads in process memory. It is the default store for
// local runs and the reference implementation in tests.
type MemoryStorage struct {
	mu    sync.RWMutex
	leads map[uuid.UUID]*Lead
	order []uuid.UUID
	now   func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *MemoryStorage {
	return &MemoryStorage{
		leads: make(map[uuid.UUID]*Lead),
		now:   time.Now,
	}
}

func (m *MemoryStorage) CreateLead(_ context.Context, in LeadInput) (*Lead, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	l := newLead(uuid.New(), in, m.now())

	m.mu.Lock()
	defer m.mu.Unlock()
	m.leads[l.ID] = l
	m.order = append(m.order, l.ID)
	return l.Clone(), nil
}

func (m *MemoryStorage) CreateLeads(ctx context.Context, in []LeadInput) ([]*Lead, error) {
	return createEach(ctx, m, in)
}

func (m *MemoryStorage) GetLead(_ context.Context, id uuid.UUID) (*Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.leads[id]
	if !ok {
		return nil, ErrLeadNotFound
	}
	return l.Clone(), nil
}

func (m *MemoryStorage) ListLeads(_ context.Context) ([]*Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Lead, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.leads[id].Clone())
	}
	return out, nil
}

func (m *MemoryStorage) UpdateLead(_ context.Context, id uuid.UUID, upd LeadUpdate) (*Lead, error) {
	if err := upd.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[id]
	if !ok {
		return nil, ErrLeadNotFound
	}
	upd.Apply(l)
	return l.Clone(), nil
}

func (m *MemoryStorage) UpdateLeads(ctx context.Context, patches []LeadPatch) ([]*Lead, error) {
	return updateEach(ctx, m, patches)
}

func (m *MemoryStorage) ClaimLead(_ context.Context, id uuid.UUID) (*Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[id]
	if !ok {
		return nil, ErrLeadNotFound
	}
	if l.SendStatus != SendPending {
		return nil, ErrLeadNotPending
	}
	l.SendStatus = SendSending
	l.ErrorMessage = nil
	return l.Clone(), nil
}

func (m *MemoryStorage) DeleteLead(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.leads[id]; !ok {
		return false, nil
	}
	delete(m.leads, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (m *MemoryStorage) DeleteAllLeads(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leads = make(map[uuid.UUID]*Lead)
	m.order = nil
	return nil
}
