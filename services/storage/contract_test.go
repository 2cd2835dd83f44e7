package storage_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"outreach/api/pkg/db"
	"outreach/api/services/storage"
)

// storeFactories lists every non-mock Storage implementation so they are
// held to the same behaviour.
var storeFactories = map[string]func(t *testing.T) storage.Storage{
	"memory": func(*testing.T) storage.Storage { return storage.NewMemory() },
	"sqlite": func(t *testing.T) storage.Storage {
		t.Helper()
		conn, err := db.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "leads.db"))
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(func() { conn.Close() })
		s, err := storage.NewSQLite(conn)
		if err != nil {
			t.Fatalf("new sqlite store: %v", err)
		}
		return s
	},
}

func TestStoreContract(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			t.Run("create applies defaults", func(t *testing.T) {
				s := factory(t)
				ctx := context.Background()
				lead, err := s.CreateLead(ctx, storage.LeadInput{FirstName: " Ann ", Company: "Bakery", Email: ""})
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if lead.ID == uuid.Nil {
					t.Error("expected an id to be assigned")
				}
				if lead.FirstName != "Ann" {
					t.Errorf("expected trimmed first name, got %q", lead.FirstName)
				}
				if lead.HasWebsite {
					t.Error("expected hasWebsite to default to false")
				}
				if lead.EnrichmentStatus != storage.EnrichmentPending || lead.SendStatus != storage.SendPending {
					t.Errorf("expected pending/pending, got %s/%s", lead.EnrichmentStatus, lead.SendStatus)
				}
				if lead.Email != nil || lead.FoundEmail != nil || lead.Subject != nil || lead.SentAt != nil {
					t.Errorf("expected absent optional fields, got %+v", lead)
				}
				if time.Since(lead.CreatedAt) > time.Minute {
					t.Errorf("unexpected createdAt %v", lead.CreatedAt)
				}
			})

			t.Run("create many keeps order and reports bad rows", func(t *testing.T) {
				s := factory(t)
				ctx := context.Background()
				created, err := s.CreateLeads(ctx, []storage.LeadInput{
					{FirstName: "A"}, {FirstName: ""}, {FirstName: "C"},
				})
				if !errors.Is(err, storage.ErrFirstNameRequired) {
					t.Fatalf("expected joined ErrFirstNameRequired, got %v", err)
				}
				if len(created) != 2 {
					t.Fatalf("expected 2 created, got %d", len(created))
				}
				all, err := s.ListLeads(ctx)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if len(all) != 2 || all[0].FirstName != "A" || all[1].FirstName != "C" {
					t.Errorf("expected [A C] in creation order, got %+v", all)
				}
			})

			t.Run("update is visible and clears nullable fields", func(t *testing.T) {
				s := factory(t)
				ctx := context.Background()
				lead, err := s.CreateLead(ctx, storage.LeadInput{FirstName: "Bob", Email: "bob@x.io"})
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				sent := storage.SendSent
				now := time.Now()
				empty := ""
				if _, err := s.UpdateLead(ctx, lead.ID, storage.LeadUpdate{SendStatus: &sent, SentAt: &now, Email: &empty}); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				got, err := s.GetLead(ctx, lead.ID)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got.SendStatus != storage.SendSent {
					t.Errorf("expected sent, got %s", got.SendStatus)
				}
				if got.SentAt == nil || !got.SentAt.Equal(now.UTC()) {
					t.Errorf("expected sentAt %v, got %v", now, got.SentAt)
				}
				if got.Email != nil {
					t.Errorf("expected email cleared, got %q", *got.Email)
				}
			})

			t.Run("unknown ids", func(t *testing.T) {
				s := factory(t)
				ctx := context.Background()
				missing := uuid.New()
				if _, err := s.GetLead(ctx, missing); !errors.Is(err, storage.ErrLeadNotFound) {
					t.Errorf("get: expected ErrLeadNotFound, got %v", err)
				}
				sending := storage.SendSending
				if _, err := s.UpdateLead(ctx, missing, storage.LeadUpdate{SendStatus: &sending}); !errors.Is(err, storage.ErrLeadNotFound) {
					t.Errorf("update: expected ErrLeadNotFound, got %v", err)
				}
				removed, err := s.DeleteLead(ctx, missing)
				if err != nil || removed {
					t.Errorf("delete: expected (false, nil), got (%v, %v)", removed, err)
				}
			})

			t.Run("update many skips missing ids", func(t *testing.T) {
				s := factory(t)
				ctx := context.Background()
				lead, err := s.CreateLead(ctx, storage.LeadInput{FirstName: "Cy"})
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				subject := "Hello"
				updated, err := s.UpdateLeads(ctx, []storage.LeadPatch{
					{ID: uuid.New(), Update: storage.LeadUpdate{Subject: &subject}},
					{ID: lead.ID, Update: storage.LeadUpdate{Subject: &subject}},
				})
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if len(updated) != 1 || storage.Value(updated[0].Subject) != "Hello" {
					t.Errorf("expected one updated lead with subject, got %+v", updated)
				}
			})

			t.Run("claim only takes pending leads", func(t *testing.T) {
				s := factory(t)
				ctx := context.Background()
				lead, err := s.CreateLead(ctx, storage.LeadInput{FirstName: "Cal", Email: "cal@x.io"})
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				msg := "previous failure"
				if _, err := s.UpdateLead(ctx, lead.ID, storage.LeadUpdate{ErrorMessage: &msg}); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}

				claimed, err := s.ClaimLead(ctx, lead.ID)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if claimed.SendStatus != storage.SendSending || claimed.ErrorMessage != nil {
					t.Errorf("expected sending with no error, got %s / %v", claimed.SendStatus, claimed.ErrorMessage)
				}
				if _, err := s.ClaimLead(ctx, lead.ID); !errors.Is(err, storage.ErrLeadNotPending) {
					t.Errorf("second claim: expected ErrLeadNotPending, got %v", err)
				}

				sent := storage.SendSent
				if _, err := s.UpdateLead(ctx, lead.ID, storage.LeadUpdate{SendStatus: &sent}); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if _, err := s.ClaimLead(ctx, lead.ID); !errors.Is(err, storage.ErrLeadNotPending) {
					t.Errorf("claim of sent lead: expected ErrLeadNotPending, got %v", err)
				}
				if _, err := s.ClaimLead(ctx, uuid.New()); !errors.Is(err, storage.ErrLeadNotFound) {
					t.Errorf("claim of unknown lead: expected ErrLeadNotFound, got %v", err)
				}
			})

			t.Run("concurrent claims have one winner", func(t *testing.T) {
				s := factory(t)
				ctx := context.Background()
				lead, err := s.CreateLead(ctx, storage.LeadInput{FirstName: "Dot"})
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}

				var (
					wg   sync.WaitGroup
					mu   sync.Mutex
					wins int
				)
				for i := 0; i < 10; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						_, err := s.ClaimLead(ctx, lead.ID)
						switch {
						case err == nil:
							mu.Lock()
							wins++
							mu.Unlock()
						case !errors.Is(err, storage.ErrLeadNotPending):
							t.Errorf("unexpected error: %v", err)
						}
					}()
				}
				wg.Wait()
				if wins != 1 {
					t.Errorf("expected exactly one successful claim, got %d", wins)
				}
			})

			t.Run("invalid status is rejected", func(t *testing.T) {
				s := factory(t)
				ctx := context.Background()
				lead, err := s.CreateLead(ctx, storage.LeadInput{FirstName: "Di"})
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				bad := storage.EnrichmentStatus("guessed")
				if _, err := s.UpdateLead(ctx, lead.ID, storage.LeadUpdate{EnrichmentStatus: &bad}); err == nil {
					t.Error("expected error for unknown enrichment status")
				}
				got, _ := s.GetLead(ctx, lead.ID)
				if got.EnrichmentStatus != storage.EnrichmentPending {
					t.Errorf("expected status unchanged, got %s", got.EnrichmentStatus)
				}
			})

			t.Run("delete one and delete all are idempotent", func(t *testing.T) {
				s := factory(t)
				ctx := context.Background()
				lead, err := s.CreateLead(ctx, storage.LeadInput{FirstName: "Ed"})
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if _, err := s.CreateLead(ctx, storage.LeadInput{FirstName: "Flo"}); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if removed, err := s.DeleteLead(ctx, lead.ID); err != nil || !removed {
					t.Fatalf("expected delete to remove lead, got (%v, %v)", removed, err)
				}
				if removed, _ := s.DeleteLead(ctx, lead.ID); removed {
					t.Error("second delete should report nothing removed")
				}
				for i := 0; i < 2; i++ {
					if err := s.DeleteAllLeads(ctx); err != nil {
						t.Fatalf("delete all #%d: %v", i+1, err)
					}
					all, err := s.ListLeads(ctx)
					if err != nil {
						t.Fatalf("unexpected error: %v", err)
					}
					if len(all) != 0 {
						t.Errorf("expected empty store, got %d leads", len(all))
					}
				}
			})
		})
	}
}

func TestMemoryStorage_ConcurrentUpdates(t *testing.T) {
	t.Parallel()
	s := storage.NewMemory()
	ctx := context.Background()
	lead, err := s.CreateLead(ctx, storage.LeadInput{FirstName: "Gus"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			subject := "s"
			if _, err := s.UpdateLead(ctx, lead.ID, storage.LeadUpdate{Subject: &subject}); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if _, err := s.GetLead(ctx, lead.ID); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestMemoryStorage_ReturnsCopies(t *testing.T) {
	t.Parallel()
	s := storage.NewMemory()
	ctx := context.Background()
	lead, err := s.CreateLead(ctx, storage.LeadInput{FirstName: "Hal", Company: "Hal's"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	*lead.Company = "mutated"
	lead.SendStatus = storage.SendSent

	got, _ := s.GetLead(ctx, lead.ID)
	if storage.Value(got.Company) != "Hal's" || got.SendStatus != storage.SendPending {
		t.Errorf("stored lead was mutated through a returned pointer: %+v", got)
	}
}
