// Package ingest turns uploaded lead spreadsheets into lead inputs.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"outreach/api/pkg/clients/website"
	"outreach/api/services/storage"
)

// ErrNoHeader is returned for an empty upload.
var ErrNoHeader = errors.New("csv has no header row")

// RowError describes a row that could not become a lead. Row is 1-based and
// counts the header.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

type field int

const (
	fieldFirstName field = iota
	fieldFullName
	fieldLastName
	fieldCompany
	fieldWebsite
	fieldDomain
	fieldHasWebsite
	fieldProfileURL
	fieldEmail
)

// headerAliases maps normalized header names to lead fields. Headers are
// lower-cased with spaces, dashes and underscores removed before lookup.
var headerAliases = map[string]field{
	"firstname":    fieldFirstName,
	"first":        fieldFirstName,
	"name":         fieldFullName,
	"fullname":     fieldFullName,
	"lastname":     fieldLastName,
	"last":         fieldLastName,
	"surname":      fieldLastName,
	"company":      fieldCompany,
	"companyname":  fieldCompany,
	"business":     fieldCompany,
	"businessname": fieldCompany,
	"website":      fieldWebsite,
	"websiteurl":   fieldWebsite,
	"url":          fieldWebsite,
	"domain":       fieldDomain,
	"haswebsite":   fieldHasWebsite,
	"profileurl":   fieldProfileURL,
	"profile":      fieldProfileURL,
	"instagram":    fieldProfileURL,
	"instagramurl": fieldProfileURL,
	"email":        fieldEmail,
	"emailaddress": fieldEmail,
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(h)
}

// Parse reads a CSV export of leads. Unknown columns are ignored. Rows
// without a first name are reported in the returned row errors and do not
// stop the parse; a malformed file returns an error.
func Parse(r io.Reader) ([]storage.LeadInput, []RowError, error) {
	cr := csv.NewReader(r)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, ErrNoHeader
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}

	columns := make(map[field]int, len(header))
	for i, h := range header {
		f, ok := headerAliases[normalizeHeader(h)]
		if !ok {
			continue
		}
		if _, dup := columns[f]; !dup {
			columns[f] = i
		}
	}

	var (
		inputs  []storage.LeadInput
		rowErrs []RowError
	)
	for row := 2; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return inputs, rowErrs, fmt.Errorf("read row %d: %w", row, err)
		}
		if blank(rec) {
			continue
		}

		get := func(f field) string {
			i, ok := columns[f]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		in := storage.LeadInput{
			FirstName:  get(fieldFirstName),
			LastName:   get(fieldLastName),
			Company:    get(fieldCompany),
			Website:    get(fieldWebsite),
			Domain:     strings.ToLower(get(fieldDomain)),
			ProfileURL: get(fieldProfileURL),
			Email:      strings.ToLower(get(fieldEmail)),
		}
		if in.FirstName == "" {
			in.FirstName, in.LastName = splitName(get(fieldFullName), in.LastName)
		}
		if in.Domain == "" {
			in.Domain = website.Domain(in.Website)
		}
		in.HasWebsite = truthy(get(fieldHasWebsite)) || in.Website != "" || in.Domain != ""

		if err := in.Validate(); err != nil {
			rowErrs = append(rowErrs, RowError{Row: row, Message: err.Error()})
			continue
		}
		inputs = append(inputs, in)
	}
	return inputs, rowErrs, nil
}

// splitName takes the first word of a full name as the first name. The rest
// becomes the last name unless one was given in its own column.
func splitName(full, last string) (string, string) {
	first, rest, _ := strings.Cut(strings.Join(strings.Fields(full), " "), " ")
	if last == "" {
		last = rest
	}
	return first, last
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func truthy(v string) bool {
	switch strings.ToLower(v) {
	case "true", "1", "yes", "y":
		return true
	}
	return false
}
