package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SQLiteStorage implements Storage on a single-file SQLite database.
// Timestamps are stored as RFC 3339 text.
type SQLiteStorage struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite wraps an open SQLite handle whose schema is already applied.
func NewSQLite(db *sql.DB) (*SQLiteStorage, error) {
	if db == nil {
		return nil, fmt.Errorf("repository: db connection cannot be nil")
	}
	return &SQLiteStorage{db: db, now: time.Now}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteLead(row rowScanner) (*Lead, error) {
	var (
		l          Lead
		id         string
		enrichment string
		send       string
		sentAt     *string
		createdAt  string
	)
	err := row.Scan(
		&id, &l.FirstName, &l.LastName, &l.Company, &l.Website, &l.Domain, &l.HasWebsite,
		&l.ProfileURL, &l.Email, &l.FoundEmail, &l.EmailConfidence, &enrichment,
		&send, &l.Subject, &l.MessageBody, &l.ErrorMessage, &sentAt, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	if l.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse id %q: %w", id, err)
	}
	if l.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if sentAt != nil {
		t, err := time.Parse(time.RFC3339Nano, *sentAt)
		if err != nil {
			return nil, fmt.Errorf("parse sent_at: %w", err)
		}
		l.SentAt = &t
	}
	l.EnrichmentStatus = EnrichmentStatus(enrichment)
	l.SendStatus = SendStatus(send)
	return &l, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func (s *SQLiteStorage) CreateLead(ctx context.Context, in LeadInput) (*Lead, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	l, err := scanSQLiteLead(s.db.QueryRowContext(ctx, `
        INSERT INTO leads (id, first_name, last_name, company, website, domain,
                           has_website, profile_url, email, enrichment_status,
                           send_status, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        RETURNING `+leadColumns,
		uuid.New().String(), strings.TrimSpace(in.FirstName), nullString(in.LastName),
		nullString(in.Company), nullString(in.Website), nullString(in.Domain), in.HasWebsite,
		nullString(in.ProfileURL), nullString(in.Email), string(EnrichmentPending),
		string(SendPending), formatTime(s.now()),
	))
	if err != nil {
		return nil, fmt.Errorf("insert lead: %w", err)
	}
	return l, nil
}

func (s *SQLiteStorage) CreateLeads(ctx context.Context, in []LeadInput) ([]*Lead, error) {
	return createEach(ctx, s, in)
}

func (s *SQLiteStorage) GetLead(ctx context.Context, id uuid.UUID) (*Lead, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	l, err := scanSQLiteLead(s.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = ?`, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("get lead %s: %w", id, err)
	}
	return l, nil
}

func (s *SQLiteStorage) ListLeads(ctx context.Context) ([]*Lead, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT `+leadColumns+` FROM leads ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	leads := []*Lead{}
	for rows.Next() {
		l, err := scanSQLiteLead(rows)
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

func (s *SQLiteStorage) UpdateLead(ctx context.Context, id uuid.UUID, upd LeadUpdate) (*Lead, error) {
	if err := upd.Validate(); err != nil {
		return nil, err
	}
	sets := upd.assignments()
	if len(sets) == 0 {
		return s.GetLead(ctx, id)
	}

	clauses := make([]string, 0, len(sets))
	args := make([]any, 0, len(sets)+1)
	for _, a := range sets {
		clauses = append(clauses, a.column+" = ?")
		if t, ok := a.value.(time.Time); ok {
			args = append(args, formatTime(t))
			continue
		}
		args = append(args, a.value)
	}
	args = append(args, id.String())

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := fmt.Sprintf(`UPDATE leads SET %s WHERE id = ? RETURNING %s`,
		strings.Join(clauses, ", "), leadColumns)
	l, err := scanSQLiteLead(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("update lead %s: %w", id, err)
	}
	return l, nil
}

func (s *SQLiteStorage) UpdateLeads(ctx context.Context, patches []LeadPatch) ([]*Lead, error) {
	return updateEach(ctx, s, patches)
}

func (s *SQLiteStorage) ClaimLead(ctx context.Context, id uuid.UUID) (*Lead, error) {
	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	l, err := scanSQLiteLead(s.db.QueryRowContext(qctx, `
        UPDATE leads SET send_status = 'sending', error_message = NULL
        WHERE id = ? AND send_status = 'pending'
        RETURNING `+leadColumns, id.String()))
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("claim lead %s: %w", id, err)
	}
	return nil, claimMiss(ctx, s, id)
}

func (s *SQLiteStorage) DeleteLead(ctx context.Context, id uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM leads WHERE id = ?`, id.String())
	if err != nil {
		return false, fmt.Errorf("delete lead %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete lead %s: %w", id, err)
	}
	return n > 0, nil
}

func (s *SQLiteStorage) DeleteAllLeads(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM leads`); err != nil {
		return fmt.Errorf("delete leads: %w", err)
	}
	return nil
}
