package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// queryTimeout bounds every statement issued by the SQL-backed stores.
const queryTimeout = 5 * time.Second

// DB abstracts the database operations used by the storage layer.
// Satisfied by *pgxpool.Pool in production and pgxmock in tests.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Storage defines the interface for lead data access. Every write is
// visible to subsequent reads and each single-lead update is atomic.
type Storage interface {
	CreateLead(ctx context.Context, in LeadInput) (*Lead, error)
	CreateLeads(ctx context.Context, in []LeadInput) ([]*Lead, error)
	GetLead(ctx context.Context, id uuid.UUID) (*Lead, error)
	ListLeads(ctx context.Context) ([]*Lead, error)
	UpdateLead(ctx context.Context, id uuid.UUID, upd LeadUpdate) (*Lead, error)
	UpdateLeads(ctx context.Context, patches []LeadPatch) ([]*Lead, error)
	// ClaimLead moves a pending lead to sending and clears its error in one
	// step. A lead in any other send status yields ErrLeadNotPending.
	ClaimLead(ctx context.Context, id uuid.UUID) (*Lead, error)
	DeleteLead(ctx context.Context, id uuid.UUID) (bool, error)
	DeleteAllLeads(ctx context.Context) error
}

// PgStorage implements Storage on PostgreSQL.
type PgStorage struct {
	DB DB
}

// NewInstance creates a new PostgreSQL-backed Storage implementation.
func NewInstance(db *pgxpool.Pool) (*PgStorage, error) {
	if db == nil {
		return nil, fmt.Errorf("repository: db connection cannot be nil")
	}
	return &PgStorage{DB: db}, nil
}

const leadColumns = `id, first_name, last_name, company, website, domain, has_website,
       profile_url, email, found_email, email_confidence, enrichment_status,
       send_status, subject, message_body, error_message, sent_at, created_at`

func scanPgLead(row pgx.Row) (*Lead, error) {
	var (
		l          Lead
		id         string
		enrichment string
		send       string
	)
	err := row.Scan(
		&id, &l.FirstName, &l.LastName, &l.Company, &l.Website, &l.Domain, &l.HasWebsite,
		&l.ProfileURL, &l.Email, &l.FoundEmail, &l.EmailConfidence, &enrichment,
		&send, &l.Subject, &l.MessageBody, &l.ErrorMessage, &l.SentAt, &l.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if l.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse id %q: %w", id, err)
	}
	l.EnrichmentStatus = EnrichmentStatus(enrichment)
	l.SendStatus = SendStatus(send)
	return &l, nil
}

func (s *PgStorage) CreateLead(ctx context.Context, in LeadInput) (*Lead, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	l, err := scanPgLead(s.DB.QueryRow(ctx, `
        INSERT INTO leads (id, first_name, last_name, company, website, domain,
                           has_website, profile_url, email)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING `+leadColumns,
		uuid.New(), strings.TrimSpace(in.FirstName), nullString(in.LastName), nullString(in.Company),
		nullString(in.Website), nullString(in.Domain), in.HasWebsite, nullString(in.ProfileURL),
		nullString(in.Email),
	))
	if err != nil {
		return nil, fmt.Errorf("insert lead: %w", err)
	}
	return l, nil
}

func (s *PgStorage) CreateLeads(ctx context.Context, in []LeadInput) ([]*Lead, error) {
	return createEach(ctx, s, in)
}

func (s *PgStorage) GetLead(ctx context.Context, id uuid.UUID) (*Lead, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	l, err := scanPgLead(s.DB.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("get lead %s: %w", id, err)
	}
	return l, nil
}

func (s *PgStorage) ListLeads(ctx context.Context) ([]*Lead, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.DB.Query(ctx, `SELECT `+leadColumns+` FROM leads ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	leads := []*Lead{}
	for rows.Next() {
		l, err := scanPgLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		leads = append(leads, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	return leads, nil
}

// UpdateLead applies upd in a single UPDATE ... RETURNING statement so the
// read-modify-write of one lead is atomic.
func (s *PgStorage) UpdateLead(ctx context.Context, id uuid.UUID, upd LeadUpdate) (*Lead, error) {
	if err := upd.Validate(); err != nil {
		return nil, err
	}
	sets := upd.assignments()
	if len(sets) == 0 {
		return s.GetLead(ctx, id)
	}

	clauses := make([]string, 0, len(sets))
	args := make([]any, 0, len(sets)+1)
	for i, a := range sets {
		clauses = append(clauses, fmt.Sprintf("%s = $%d", a.column, i+1))
		args = append(args, a.value)
	}
	args = append(args, id)

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := fmt.Sprintf(`UPDATE leads SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(clauses, ", "), len(args), leadColumns)
	l, err := scanPgLead(s.DB.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("update lead %s: %w", id, err)
	}
	return l, nil
}

func (s *PgStorage) UpdateLeads(ctx context.Context, patches []LeadPatch) ([]*Lead, error) {
	return updateEach(ctx, s, patches)
}

func (s *PgStorage) ClaimLead(ctx context.Context, id uuid.UUID) (*Lead, error) {
	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	l, err := scanPgLead(s.DB.QueryRow(qctx, `
        UPDATE leads SET send_status = 'sending', error_message = NULL
        WHERE id = $1 AND send_status = 'pending'
        RETURNING `+leadColumns, id))
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("claim lead %s: %w", id, err)
	}
	return nil, claimMiss(ctx, s, id)
}

func (s *PgStorage) DeleteLead(ctx context.Context, id uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := s.DB.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete lead %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PgStorage) DeleteAllLeads(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := s.DB.Exec(ctx, `DELETE FROM leads`); err != nil {
		return fmt.Errorf("delete leads: %w", err)
	}
	return nil
}

// createEach inserts leads one at a time, keeping input order. A failed
// item does not stop the rest; failures are joined into the returned error.
func createEach(ctx context.Context, s Storage, in []LeadInput) ([]*Lead, error) {
	created := make([]*Lead, 0, len(in))
	var errs []error
	for i, item := range in {
		l, err := s.CreateLead(ctx, item)
		if err != nil {
			errs = append(errs, fmt.Errorf("lead %d: %w", i, err))
			continue
		}
		created = append(created, l)
	}
	return created, errors.Join(errs...)
}

// claimMiss tells a missing lead apart from one that is no longer pending.
func claimMiss(ctx context.Context, s Storage, id uuid.UUID) error {
	if _, err := s.GetLead(ctx, id); err != nil {
		return err
	}
	return ErrLeadNotPending
}

// updateEach applies patches in order, skipping ids that no longer exist.
func updateEach(ctx context.Context, s Storage, patches []LeadPatch) ([]*Lead, error) {
	updated := make([]*Lead, 0, len(patches))
	for _, p := range patches {
		l, err := s.UpdateLead(ctx, p.ID, p.Update)
		if err != nil {
			if errors.Is(err, ErrLeadNotFound) {
				continue
			}
			return updated, err
		}
		updated = append(updated, l)
	}
	return updated, nil
}
